package usecase

import (
	"fmt"
	"strings"

	"unimarket/internal/domain/model"
)

// 呼び出し側が対処できるよう、失敗の種類ごとに型を分ける。
// HTTPステータスへの変換はhandler側のwriteErrorが行う。

// 入力不正（ユーザーが直すべきもの）
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// 参照先（カート明細・商品・バリエーション・注文）が存在しない
type NotFoundError struct {
	Resource string
	ID       int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %d", e.Resource, e.ID)
}

// 呼び出し元が所有していないリソースへのアクセス
type OwnershipError struct {
	Resource string
	ID       int64
}

func (e *OwnershipError) Error() string {
	return fmt.Sprintf("%s does not belong to you: %d", e.Resource, e.ID)
}

// 在庫不足。どの在庫単位で、いくつ要求していくつ残っていたかを持つ。
type InsufficientStockError struct {
	ProductID   int64
	VariantID   *int64
	ProductName string
	Available   int64
	Requested   int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("not enough stock for %q: requested %d, available %d",
		e.ProductName, e.Requested, e.Available)
}

// 注文ライフサイクルの不正な遷移
type InvalidStateTransitionError struct {
	OrderID int64
	From    model.OrderStatus
	To      model.OrderStatus
}

func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("order %d: cannot transition from %s to %s", e.OrderID, e.From, e.To)
}

// 販売者パーティション1つ分の失敗
type SellerFailure struct {
	SellerID int64
	Err      error
}

// 全パーティションが失敗したときの集約エラー。注文は1件も作られていない。
type OrderCreationFailedError struct {
	Failures []SellerFailure
}

func (e *OrderCreationFailedError) Error() string {
	reasons := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		reasons = append(reasons, fmt.Sprintf("seller %d: %v", f.SellerID, f.Err))
	}
	return "order creation failed: " + strings.Join(reasons, "; ")
}
