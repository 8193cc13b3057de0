package repository

import (
	"context"

	"unimarket/internal/domain/model"
)

type UserRepository interface {
	Create(ctx context.Context, user model.User) (int64, error)
	FindByID(ctx context.Context, userID int64) (model.User, error)
	FindByEmail(ctx context.Context, email string) (model.User, error)
	//通知の一斉送信先（ADMINなど）を取得する
	ListByRole(ctx context.Context, role model.Role) ([]model.User, error)
}
