package usecase

import (
	"context"

	"unimarket/internal/domain/model"
)

// 通知の送り先。失敗しても注文処理は巻き戻さない（呼び出し側でログして握り潰す）。
type Notifier interface {
	Notify(ctx context.Context, userID int64, title, message, category, link string) error
	NotifyRole(ctx context.Context, role model.Role, title, message, category, link string) error
}

// 確定済み注文のイベント発行。fire-and-forgetで、失敗しても注文には影響しない。
type OrderEventPublisher interface {
	OrderCreated(ctx context.Context, order model.Order, items []model.OrderItem)
}

// イベント発行を使わない構成（テストなど）向け
type NopEventPublisher struct{}

func (NopEventPublisher) OrderCreated(ctx context.Context, order model.Order, items []model.OrderItem) {
}
