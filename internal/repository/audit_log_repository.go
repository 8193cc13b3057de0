package repository

import (
	"context"

	"unimarket/internal/domain/model"
)

// 管理者操作ログの保存
type AuditLogRepository interface {
	Create(ctx context.Context, log model.AuditLog) error
}
