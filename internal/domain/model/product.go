package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ProductStatus string

const (
	ProductStatusPending  ProductStatus = "PENDING"
	ProductStatusApproved ProductStatus = "APPROVED"
	ProductStatusRejected ProductStatus = "REJECTED"
)

type Product struct {
	ID          int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	SellerID    int64           `gorm:"not null;index" json:"seller_id"`
	Name        string          `gorm:"type:varchar(255);not null" json:"name"`
	Description string          `gorm:"type:text" json:"description"`
	Price       decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`
	// バリエーションを持つ商品はバリエーション側の数量のみが有効
	Quantity  int64          `gorm:"not null;default:0" json:"quantity"`
	Images    string         `gorm:"type:text" json:"images"`
	Status    ProductStatus  `gorm:"type:varchar(20);not null;default:'PENDING';index" json:"status"`
	CreatedAt time.Time      `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// imagesはカンマ区切りで保存。先頭の1枚をスナップショットに使う
func (p Product) FirstImage() string {
	for i := 0; i < len(p.Images); i++ {
		if p.Images[i] == ',' {
			return p.Images[:i]
		}
	}
	return p.Images
}
