package repository

import (
	"context"

	"unimarket/internal/domain/model"
)

// 商品の取得だけを約束。商品の登録・審査は本コアの対象外。
type ProductRepository interface {
	FindByID(ctx context.Context, id int64) (model.Product, error)
}

type VariantRepository interface {
	FindByID(ctx context.Context, id int64) (model.ProductVariant, error)
	//商品がバリエーションを持つかどうか
	CountByProductID(ctx context.Context, productID int64) (int64, error)
}
