package usecase

import (
	"context"
	"errors"

	"unimarket/internal/domain/model"
	repo "unimarket/internal/repository"
)

// CartSnapshotReader は選択されたカート明細IDを検証済みの明細に解決する。
// 読み取り専用で副作用は無い。
type CartSnapshotReader struct {
	cartItems repo.CartItemRepository
}

func NewCartSnapshotReader(cartItems repo.CartItemRepository) *CartSnapshotReader {
	return &CartSnapshotReader{cartItems: cartItems}
}

// Read は全IDが存在し、かつ全てbuyerの所有であるときだけ明細を返す。
// 1件でも欠けたり他人の明細が混ざっていたら失敗する。
func (r *CartSnapshotReader) Read(ctx context.Context, buyerID int64, cartItemIDs []int64) ([]model.CartItem, error) {
	if len(cartItemIDs) == 0 {
		return nil, &ValidationError{Message: "no items selected"}
	}

	items := make([]model.CartItem, 0, len(cartItemIDs))
	for _, id := range cartItemIDs {
		item, err := r.cartItems.FindByID(ctx, id)
		if errors.Is(err, repo.ErrNotFound) {
			return nil, &NotFoundError{Resource: "cart item", ID: id}
		}
		if err != nil {
			return nil, err
		}
		if item.UserID != buyerID {
			return nil, &OwnershipError{Resource: "cart item", ID: id}
		}
		items = append(items, item)
	}

	return items, nil
}
