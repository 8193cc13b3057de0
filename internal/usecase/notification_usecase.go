package usecase

import (
	"context"
	"errors"

	"unimarket/internal/domain/model"
	repo "unimarket/internal/repository"
)

// 通知フィードの読み取り・既読化。送信側はNotifier（internal/notify）が担う。
type NotificationUsecase struct {
	notifications repo.NotificationRepository
}

func NewNotificationUsecase(notifications repo.NotificationRepository) *NotificationUsecase {
	return &NotificationUsecase{notifications: notifications}
}

func (u *NotificationUsecase) ListMine(ctx context.Context, userID int64, page, limit int) ([]model.Notification, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return u.notifications.ListByUserID(ctx, userID, page, limit)
}

func (u *NotificationUsecase) UnreadCount(ctx context.Context, userID int64) (int64, error) {
	return u.notifications.CountUnread(ctx, userID)
}

func (u *NotificationUsecase) MarkRead(ctx context.Context, userID int64, notificationID int64) error {
	err := u.notifications.MarkRead(ctx, userID, notificationID)
	if errors.Is(err, repo.ErrNotFound) {
		return &NotFoundError{Resource: "notification", ID: notificationID}
	}
	return err
}
