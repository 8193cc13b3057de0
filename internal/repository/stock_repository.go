package repository

import "context"

// 在庫台帳。商品単位とバリエーション単位の在庫プールは排他で、
// 減算は「足りるときだけ引く」条件付きUPDATE1発で行う。
type StockRepository interface {
	//在庫が足りるときだけ減らす。足りなければ ok=false と現在の在庫数を返す。
	DeductProductIfAvailable(ctx context.Context, productID int64, qty int64) (ok bool, available int64, err error)
	DeductVariantIfAvailable(ctx context.Context, variantID int64, qty int64) (ok bool, available int64, err error)
}
