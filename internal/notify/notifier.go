package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"unimarket/internal/domain/model"
	repo "unimarket/internal/repository"

	"github.com/redis/go-redis/v9"
)

// Notifier は通知を保存し、Redis pub/subでリアルタイム配信する。
// 配信はベストエフォート。保存もpublishも呼び出し元の処理を失敗させない前提で使う。
type Notifier struct {
	notifications repo.NotificationRepository
	users         repo.UserRepository
	rdb           *redis.Client // nilなら配信はスキップ
	log           *slog.Logger
}

func NewNotifier(
	notifications repo.NotificationRepository,
	users repo.UserRepository,
	rdb *redis.Client,
	log *slog.Logger,
) *Notifier {
	return &Notifier{
		notifications: notifications,
		users:         users,
		rdb:           rdb,
		log:           log,
	}
}

func channelFor(userID int64) string {
	return fmt.Sprintf("notifications:user:%d", userID)
}

func (n *Notifier) Notify(ctx context.Context, userID int64, title, message, category, link string) error {
	record := model.Notification{
		UserID:   userID,
		Title:    title,
		Message:  message,
		Category: category,
		Link:     link,
		IsRead:   false,
	}

	id, err := n.notifications.Create(ctx, record)
	if err != nil {
		return err
	}
	record.ID = id

	//リアルタイム配信は失敗しても通知レコードは残っているのでログのみ
	if n.rdb != nil {
		payload, err := json.Marshal(record)
		if err != nil {
			return nil
		}
		if err := n.rdb.Publish(ctx, channelFor(userID), payload).Err(); err != nil {
			n.log.Warn("failed to publish notification", "user_id", userID, "error", err)
		}
	}

	return nil
}

// 指定ロールの全ユーザーへ送る（管理者一斉通知など）
func (n *Notifier) NotifyRole(ctx context.Context, role model.Role, title, message, category, link string) error {
	users, err := n.users.ListByRole(ctx, role)
	if err != nil {
		return err
	}

	for _, u := range users {
		if err := n.Notify(ctx, u.ID, title, message, category, link); err != nil {
			n.log.Warn("failed to notify user", "user_id", u.ID, "role", role, "error", err)
		}
	}
	return nil
}
