package repository

import (
	"context"
	"time"

	"unimarket/internal/domain/model"

	"github.com/shopspring/decimal"
)

type OrderListFilter struct {
	Page   int
	Limit  int
	Status string
}

type OrderRepository interface {
	FindByID(ctx context.Context, orderID int64) (model.Order, error)
	Create(ctx context.Context, order model.Order) (int64, error)
	UpdateStatus(ctx context.Context, orderID int64, status model.OrderStatus) error
	//支払済みにして参照番号を記録する
	MarkPaid(ctx context.Context, orderID int64, paymentRef string, status model.OrderStatus) error
	FindByPaymentRef(ctx context.Context, paymentRef string) (model.Order, error)

	ListByBuyerID(ctx context.Context, buyerID int64, page int, limit int) ([]model.Order, int64, error)
	ListBySellerID(ctx context.Context, sellerID int64, page int, limit int) ([]model.Order, int64, error)
	ListAdmin(ctx context.Context, f OrderListFilter) ([]model.Order, int64, error)

	//売上集計（is_paid = true のみ）
	TotalRevenue(ctx context.Context) (decimal.Decimal, error)
	RevenueBetween(ctx context.Context, from, to time.Time) (decimal.Decimal, error)
}

type OrderItemRepository interface {
	CreateBulk(ctx context.Context, orderID int64, items []model.OrderItem) error
	ListByOrderID(ctx context.Context, orderID int64) ([]model.OrderItem, error)
}
