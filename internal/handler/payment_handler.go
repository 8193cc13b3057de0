package handler

import (
	"net/http"

	"unimarket/internal/config"
	"unimarket/internal/domain/model"
	"unimarket/internal/middleware"
	"unimarket/internal/usecase"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

// 決済ゲートウェイとの窓口。ゲートウェイのプロトコル自体は扱わず、
// txn refの発行・記録・照合だけを行う。
type PaymentHandler struct {
	orders *usecase.OrderUsecase
	status *usecase.OrderStatusUsecase
}

func NewPaymentHandler(orders *usecase.OrderUsecase, status *usecase.OrderStatusUsecase) *PaymentHandler {
	return &PaymentHandler{orders: orders, status: status}
}

type CheckoutRequest struct {
	OrderID int64 `json:"order_id"`
}

type CheckoutResponse struct {
	OrderID    int64           `json:"order_id"`
	PaymentRef string          `json:"payment_ref"`
	Amount     decimal.Decimal `json:"amount"`
}

type PaymentCallbackRequest struct {
	OrderID    int64  `json:"order_id"`
	PaymentRef string `json:"payment_ref"`
}

func (h *PaymentHandler) RegisterRoutes(e *echo.Echo, cfg config.Config) {
	g := e.Group("/payments")
	g.POST("/checkout", h.checkout, middleware.AuthJWT(cfg))
	g.POST("/callback", h.callback)
	g.GET("/by-ref/:ref", h.byRef)
}

// 買い手が支払いを開始する。ゲートウェイへ渡すtxn refを発行する。
func (h *PaymentHandler) checkout(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	var req CheckoutRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	if req.OrderID <= 0 {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "order_id is required"})
	}

	//自分の注文だけ支払いを開始できる
	out, err := h.orders.GetOrder(c.Request().Context(), userID, model.RoleBuyer, req.OrderID)
	if err != nil {
		return writeError(c, err)
	}
	if out.IsPaid {
		return c.JSON(http.StatusConflict, ErrorResponse{Error: "order is already paid"})
	}

	return c.JSON(http.StatusOK, CheckoutResponse{
		OrderID:    out.ID,
		PaymentRef: "UM-" + uuid.NewString(),
		Amount:     out.TotalAmount,
	})
}

// ゲートウェイからのコールバック。txn refを記録して支払済みにする。
func (h *PaymentHandler) callback(c echo.Context) error {
	var req PaymentCallbackRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	if req.OrderID <= 0 || req.PaymentRef == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "order_id and payment_ref are required"})
	}

	if err := h.status.MarkAsPaid(c.Request().Context(), req.OrderID, req.PaymentRef); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"result": "ok"})
}

// ゲートウェイ照合用。txn refから注文を引く。
func (h *PaymentHandler) byRef(c echo.Context) error {
	ref := c.Param("ref")
	if ref == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "ref is required"})
	}

	out, err := h.status.FindByPaymentRef(c.Request().Context(), ref)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
