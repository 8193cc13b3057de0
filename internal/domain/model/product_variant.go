package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// 商品バリエーション（サイズ・色）。
// Priceがnilなら親商品の価格が有効価格になる。
type ProductVariant struct {
	ID        int64            `gorm:"primaryKey;autoIncrement" json:"id"`
	ProductID int64            `gorm:"not null;index" json:"product_id"`
	Size      string           `gorm:"type:varchar(50)" json:"size"`
	Color     string           `gorm:"type:varchar(50)" json:"color"`
	ColorCode string           `gorm:"type:varchar(20)" json:"color_code"`
	Price     *decimal.Decimal `gorm:"type:decimal(12,2)" json:"price"`
	Quantity  int64            `gorm:"not null;default:0" json:"quantity"`
	SKU       string           `gorm:"type:varchar(100);uniqueIndex" json:"sku"`
	Images    string           `gorm:"type:text" json:"images"`
	CreatedAt time.Time        `gorm:"not null;autoCreateTime" json:"created_at"`
}

// 自分の価格があればそれ、無ければ親商品の価格
func (v ProductVariant) EffectivePrice(parent Product) decimal.Decimal {
	if v.Price != nil {
		return *v.Price
	}
	return parent.Price
}
