package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// 注文明細。価格・商品名・画像・バリエーション情報は注文時点のスナップショット。
// 後から商品が編集・削除されても履歴は変わらない。
type OrderItem struct {
	ID                   int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID              int64           `gorm:"not null;index" json:"order_id"`
	ProductID            int64           `gorm:"not null;index" json:"product_id"`
	VariantID            *int64          `json:"variant_id"`
	Quantity             int64           `gorm:"not null" json:"quantity"`
	UnitPriceSnapshot    decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"unit_price_snapshot"`
	ProductNameSnapshot  string          `gorm:"type:varchar(255);not null" json:"product_name_snapshot"`
	ProductImageSnapshot string          `gorm:"type:text" json:"product_image_snapshot"`
	VariantSizeSnapshot  string          `gorm:"type:varchar(50)" json:"variant_size_snapshot"`
	VariantColorSnapshot string          `gorm:"type:varchar(50)" json:"variant_color_snapshot"`
	CreatedAt            time.Time       `gorm:"not null;autoCreateTime" json:"created_at"`
}
