package repository

import (
	"context"

	"unimarket/internal/domain/model"
)

type NotificationRepository interface {
	Create(ctx context.Context, n model.Notification) (int64, error)
	ListByUserID(ctx context.Context, userID int64, page int, limit int) ([]model.Notification, int64, error)
	CountUnread(ctx context.Context, userID int64) (int64, error)
	MarkRead(ctx context.Context, userID int64, notificationID int64) error
}
