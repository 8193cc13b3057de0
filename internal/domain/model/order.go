package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending         OrderStatus = "PENDING"
	OrderStatusAdminApproved   OrderStatus = "ADMIN_APPROVED"
	OrderStatusSellerConfirmed OrderStatus = "SELLER_CONFIRMED"
	OrderStatusShipping        OrderStatus = "SHIPPING"
	OrderStatusDelivered       OrderStatus = "DELIVERED"
	OrderStatusCancelled       OrderStatus = "CANCELLED"
)

// 正規ルートの遷移表。CANCELLEDはCanTransition側で扱う。
var validNext = map[OrderStatus]map[OrderStatus]bool{
	OrderStatusPending:         {OrderStatusAdminApproved: true, OrderStatusSellerConfirmed: true},
	OrderStatusAdminApproved:   {OrderStatusSellerConfirmed: true},
	OrderStatusSellerConfirmed: {OrderStatusShipping: true},
	OrderStatusShipping:        {OrderStatusDelivered: true},
	OrderStatusDelivered:       {},
	OrderStatusCancelled:       {},
}

// CANCELLEDへは非終端ならどこからでも遷移できる
func CanTransition(from, to OrderStatus) bool {
	if to == OrderStatusCancelled {
		return from.Valid() && !from.IsTerminal()
	}
	return validNext[from][to]
}

func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

func (s OrderStatus) Valid() bool {
	_, ok := validNext[s]
	return ok
}

type PaymentMethod string

const (
	PaymentMethodCOD   PaymentMethod = "COD"
	PaymentMethodVNPay PaymentMethod = "VNPAY"
)

// 注文。1注文=1販売者。買い手・売り手・合計金額は作成後に変更しない。
type Order struct {
	ID              int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	BuyerID         int64           `gorm:"not null;index" json:"buyer_id"`
	SellerID        int64           `gorm:"not null;index" json:"seller_id"`
	TotalAmount     decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total_amount"`
	ShippingAddress string          `gorm:"type:varchar(500);not null" json:"shipping_address"`
	Phone           string          `gorm:"type:varchar(20);not null" json:"phone"`
	Note            string          `gorm:"type:text" json:"note"`
	Status          OrderStatus     `gorm:"type:varchar(20);not null;index" json:"status"`
	PaymentMethod   PaymentMethod   `gorm:"type:varchar(20);not null;default:'COD'" json:"payment_method"`
	IsPaid          bool            `gorm:"not null;default:false" json:"is_paid"`
	PaymentRef      string          `gorm:"type:varchar(100);index" json:"payment_ref"`
	CreatedAt       time.Time       `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
