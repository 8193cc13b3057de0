package handler

import (
	"errors"
	"net/http"

	"unimarket/internal/middleware"
	"unimarket/internal/usecase"

	"github.com/labstack/echo/v4"
)

type ErrorResponse struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

// usecaseのエラー型をHTTPステータスへ変換する。
func writeError(c echo.Context, err error) error {
	if err == nil {
		return nil
	}

	var (
		validation *usecase.ValidationError
		notFound   *usecase.NotFoundError
		ownership  *usecase.OwnershipError
		stock      *usecase.InsufficientStockError
		transition *usecase.InvalidStateTransitionError
		creation   *usecase.OrderCreationFailedError
	)

	switch {
	case errors.As(err, &validation):
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: validation.Message})
	case errors.As(err, &notFound):
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: notFound.Error()})
	case errors.As(err, &ownership):
		return c.JSON(http.StatusForbidden, ErrorResponse{Error: ownership.Error()})
	case errors.As(err, &stock):
		return c.JSON(http.StatusConflict, ErrorResponse{Error: stock.Error()})
	case errors.As(err, &transition):
		return c.JSON(http.StatusConflict, ErrorResponse{Error: transition.Error()})
	case errors.As(err, &creation):
		details := make([]string, 0, len(creation.Failures))
		for _, f := range creation.Failures {
			details = append(details, f.Err.Error())
		}
		return c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "order creation failed",
			Details: details,
		})
	}

	//500
	return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
}

func getUserIDFromContext(c echo.Context) (int64, bool) {
	raw := c.Get(middleware.CtxUserIDKey)
	id, ok := raw.(int64)
	if !ok || id <= 0 {
		return 0, false
	}
	return id, true
}

func getRoleFromContext(c echo.Context) (string, bool) {
	raw := c.Get(middleware.CtxUserRoleKey)
	role, ok := raw.(string)
	if !ok || role == "" {
		return "", false
	}
	return role, true
}
