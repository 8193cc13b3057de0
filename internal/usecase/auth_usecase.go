package usecase

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"unimarket/internal/domain/model"
	repo "unimarket/internal/repository"

	"golang.org/x/crypto/bcrypt"
)

// 本コアにとって認証は「誰がROLE何で呼んでいるか」を確定させるだけの窓口。
// セッション管理（refresh token等）は持たない。

type TokenIssuer interface {
	Issue(userID int64, role model.Role, now time.Time) (token string, expiresAt time.Time, err error)
}

type AuthUsecase struct {
	users  repo.UserRepository
	issuer TokenIssuer
}

func NewAuthUsecase(users repo.UserRepository, issuer TokenIssuer) *AuthUsecase {
	return &AuthUsecase{users: users, issuer: issuer}
}

type RegisterInput struct {
	Email    string
	Password string
	FullName string
	Seller   bool
}

type AuthOutput struct {
	UserID    int64     `json:"user_id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Role      string    `json:"role"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (u *AuthUsecase) Register(ctx context.Context, in RegisterInput) (AuthOutput, error) {
	email := strings.TrimSpace(strings.ToLower(in.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		return AuthOutput{}, &ValidationError{Message: "invalid email format"}
	}
	if len(in.Password) < 8 {
		return AuthOutput{}, &ValidationError{Message: "password too short"}
	}
	if strings.TrimSpace(in.FullName) == "" {
		return AuthOutput{}, &ValidationError{Message: "full name is required"}
	}

	//email重複チェック
	if _, err := u.users.FindByEmail(ctx, email); err == nil {
		return AuthOutput{}, &ValidationError{Message: "email already used"}
	} else if !errors.Is(err, repo.ErrNotFound) {
		return AuthOutput{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), 12)
	if err != nil {
		return AuthOutput{}, err
	}

	role := model.RoleBuyer
	if in.Seller {
		role = model.RoleSeller
	}

	now := time.Now()
	userID, err := u.users.Create(ctx, model.User{
		Email:        email,
		PasswordHash: string(hash),
		FullName:     strings.TrimSpace(in.FullName),
		Role:         role,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return AuthOutput{}, err
	}

	token, expiresAt, err := u.issuer.Issue(userID, role, now)
	if err != nil {
		return AuthOutput{}, err
	}

	return AuthOutput{
		UserID:    userID,
		Email:     email,
		FullName:  strings.TrimSpace(in.FullName),
		Role:      string(role),
		Token:     token,
		ExpiresAt: expiresAt,
	}, nil
}

func (u *AuthUsecase) Login(ctx context.Context, email, password string) (AuthOutput, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return AuthOutput{}, &ValidationError{Message: "email and password are required"}
	}

	user, err := u.users.FindByEmail(ctx, email)
	if errors.Is(err, repo.ErrNotFound) {
		//存在有無は外に漏らさない
		return AuthOutput{}, &ValidationError{Message: "invalid credentials"}
	}
	if err != nil {
		return AuthOutput{}, err
	}
	if !user.IsActive {
		return AuthOutput{}, &ValidationError{Message: "invalid credentials"}
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return AuthOutput{}, &ValidationError{Message: "invalid credentials"}
	}

	token, expiresAt, err := u.issuer.Issue(user.ID, user.Role, time.Now())
	if err != nil {
		return AuthOutput{}, err
	}

	return AuthOutput{
		UserID:    user.ID,
		Email:     user.Email,
		FullName:  user.FullName,
		Role:      string(user.Role),
		Token:     token,
		ExpiresAt: expiresAt,
	}, nil
}
