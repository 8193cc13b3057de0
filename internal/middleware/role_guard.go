package middleware

import (
	"net/http"

	"unimarket/internal/domain/model"

	"github.com/labstack/echo/v4"
)

//contextに入っているroleを確認するガード。AuthJWTの後段で使う。

func AdminRoleGuard() echo.MiddlewareFunc {
	return requireRoles(model.RoleAdmin)
}

func SellerRoleGuard() echo.MiddlewareFunc {
	return requireRoles(model.RoleSeller)
}

// 販売者または管理者だけ許可（注文ステータスの直接更新など）
func SellerOrAdminRoleGuard() echo.MiddlewareFunc {
	return requireRoles(model.RoleSeller, model.RoleAdmin)
}

func requireRoles(allowed ...model.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			rawRole := c.Get(CtxUserRoleKey)
			role, ok := rawRole.(string)
			if !ok || role == "" {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}

			for _, r := range allowed {
				if role == string(r) {
					return next(c)
				}
			}
			return c.JSON(http.StatusForbidden, errorJSON("forbidden"))
		}
	}
}
