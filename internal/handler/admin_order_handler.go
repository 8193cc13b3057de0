package handler

import (
	"net/http"
	"strconv"
	"strings"

	"unimarket/internal/config"
	"unimarket/internal/domain/model"
	"unimarket/internal/middleware"
	repo "unimarket/internal/repository"
	"unimarket/internal/usecase"

	"github.com/labstack/echo/v4"
)

type AdminOrderHandler struct {
	status *usecase.OrderStatusUsecase
}

func NewAdminOrderHandler(status *usecase.OrderStatusUsecase) *AdminOrderHandler {
	return &AdminOrderHandler{status: status}
}

func (h *AdminOrderHandler) RegisterRoutes(e *echo.Echo, cfg config.Config) {
	g := e.Group("/admin")
	g.Use(middleware.AuthJWT(cfg), middleware.AdminRoleGuard())

	g.GET("/orders", h.list)
	g.GET("/orders/pending", h.listPending)
	g.PUT("/orders/:id/approve", h.approve)
	g.GET("/stats", h.stats)
}

// 全注文の一覧。statusクエリで絞り込み可能。
func (h *AdminOrderHandler) list(c echo.Context) error {
	page, limit := paging(c)
	f := repo.OrderListFilter{
		Page:   page,
		Limit:  limit,
		Status: strings.ToUpper(c.QueryParam("status")),
	}

	outs, total, err := h.status.ListAdmin(c.Request().Context(), f)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, OrderListResponse{Orders: outs, Total: total})
}

// 承認待ち（PENDING）だけの一覧
func (h *AdminOrderHandler) listPending(c echo.Context) error {
	page, limit := paging(c)
	f := repo.OrderListFilter{
		Page:   page,
		Limit:  limit,
		Status: string(model.OrderStatusPending),
	}

	outs, total, err := h.status.ListAdmin(c.Request().Context(), f)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, OrderListResponse{Orders: outs, Total: total})
}

func (h *AdminOrderHandler) approve(c echo.Context) error {
	adminID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
	}

	out, err := h.status.AdminApprove(c.Request().Context(), adminID, id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// 売上統計（累計と今月の支払済み売上）
func (h *AdminOrderHandler) stats(c echo.Context) error {
	stats, err := h.status.Revenue(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, stats)
}
