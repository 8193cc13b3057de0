package repository

import (
	"context"

	"unimarket/internal/domain/model"
)

type CartItemRepository interface {
	FindByID(ctx context.Context, cartItemID int64) (model.CartItem, error)
	ListByUserID(ctx context.Context, userID int64) ([]model.CartItem, error)

	//同一商品・同一バリエーションの明細を取得（無ければErrNotFound）
	FindByUserProductVariant(ctx context.Context, userID int64, productID int64, variantID *int64) (model.CartItem, error)

	Create(ctx context.Context, item model.CartItem) (int64, error)
	UpdateQuantity(ctx context.Context, cartItemID int64, qty int64) error
	DeleteByID(ctx context.Context, cartItemID int64) error
}
