package handler

import (
	"net/http"
	"strconv"
	"strings"

	"unimarket/internal/config"
	"unimarket/internal/domain/model"
	"unimarket/internal/middleware"
	"unimarket/internal/usecase"

	"github.com/labstack/echo/v4"
)

type OrderHandler struct {
	orders *usecase.OrderUsecase
	status *usecase.OrderStatusUsecase
}

func NewOrderHandler(orders *usecase.OrderUsecase, status *usecase.OrderStatusUsecase) *OrderHandler {
	return &OrderHandler{orders: orders, status: status}
}

type PlaceOrdersRequest struct {
	CartItemIDs     []int64 `json:"cart_item_ids"`
	ShippingAddress string  `json:"shipping_address"`
	Phone           string  `json:"phone"`
	Note            string  `json:"note"`
	PaymentMethod   string  `json:"payment_method"`
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
}

type OrderListResponse struct {
	Orders []usecase.OrderOutput `json:"orders"`
	Total  int64                 `json:"total"`
}

// 失敗した販売者パーティション1つ分
type PartitionFailure struct {
	SellerID int64  `json:"seller_id"`
	Reason   string `json:"reason"`
}

type PlaceOrdersResponse struct {
	Orders   []usecase.OrderOutput `json:"orders"`
	Total    int64                 `json:"total"`
	Failures []PartitionFailure    `json:"failures,omitempty"`
}

func (h *OrderHandler) RegisterRoutes(e *echo.Echo, cfg config.Config) {
	g := e.Group("/orders")
	g.Use(middleware.AuthJWT(cfg))

	g.POST("", h.place)
	g.GET("/purchases", h.purchases)
	g.GET("/sales", h.sales, middleware.SellerRoleGuard())
	g.GET("/:id", h.get)
	g.PUT("/:id/confirm", h.confirm, middleware.SellerRoleGuard())
	g.PUT("/:id/status", h.forceStatus, middleware.SellerOrAdminRoleGuard())
}

// 注文確定。販売者ごとに複数の注文ができることがある。
func (h *OrderHandler) place(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	var req PlaceOrdersRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	res, err := h.orders.PlaceOrders(c.Request().Context(), userID, usecase.PlaceOrdersInput{
		CartItemIDs:     req.CartItemIDs,
		ShippingAddress: req.ShippingAddress,
		Phone:           req.Phone,
		Note:            req.Note,
		PaymentMethod:   model.PaymentMethod(strings.ToUpper(req.PaymentMethod)),
	})
	if err != nil {
		return writeError(c, err)
	}

	//一部の販売者で引当に失敗した場合も、確定分は201で返し内訳を添える
	failures := make([]PartitionFailure, 0, len(res.Failures))
	for _, f := range res.Failures {
		failures = append(failures, PartitionFailure{SellerID: f.SellerID, Reason: f.Err.Error()})
	}
	return c.JSON(http.StatusCreated, PlaceOrdersResponse{
		Orders:   res.Orders,
		Total:    int64(len(res.Orders)),
		Failures: failures,
	})
}

func (h *OrderHandler) purchases(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	page, limit := paging(c)
	outs, total, err := h.orders.ListMyPurchases(c.Request().Context(), userID, page, limit)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, OrderListResponse{Orders: outs, Total: total})
}

func (h *OrderHandler) sales(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	page, limit := paging(c)
	outs, total, err := h.orders.ListMySales(c.Request().Context(), userID, page, limit)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, OrderListResponse{Orders: outs, Total: total})
}

func (h *OrderHandler) get(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}
	role, ok := getRoleFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
	}

	out, err := h.orders.GetOrder(c.Request().Context(), userID, model.Role(role), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// 販売者による注文確認（PENDINGまたはADMIN_APPROVEDから）
func (h *OrderHandler) confirm(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
	}

	out, err := h.status.SellerConfirm(c.Request().Context(), userID, id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// SHIPPING/DELIVERED/CANCELLEDへの直接更新。遷移元は検証しない。
func (h *OrderHandler) forceStatus(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
	}

	var req UpdateStatusRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	out, err := h.status.ForceStatus(c.Request().Context(), userID, id, model.OrderStatus(strings.ToUpper(req.Status)))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// page/limitクエリの共通処理
func paging(c echo.Context) (int, int) {
	page, err := strconv.Atoi(c.QueryParam("page"))
	if err != nil || page < 1 {
		page = 1
	}
	limit, err := strconv.Atoi(c.QueryParam("limit"))
	if err != nil || limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}
