package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"unimarket/internal/domain/model"
	repo "unimarket/internal/repository"

	"github.com/shopspring/decimal"
)

// OrderStatusUsecase は注文ライフサイクルの遷移を司る。
// ステータスはここを通してのみ変更する。
type OrderStatusUsecase struct {
	tx         repo.TransactionManager
	orders     repo.OrderRepository
	orderItems repo.OrderItemRepository
	notifier   Notifier
	log        *slog.Logger
}

func NewOrderStatusUsecase(
	tx repo.TransactionManager,
	orders repo.OrderRepository,
	orderItems repo.OrderItemRepository,
	notifier Notifier,
	log *slog.Logger,
) *OrderStatusUsecase {
	return &OrderStatusUsecase{
		tx:         tx,
		orders:     orders,
		orderItems: orderItems,
		notifier:   notifier,
		log:        log,
	}
}

// AdminApprove はPENDINGの注文だけを承認できる。
func (u *OrderStatusUsecase) AdminApprove(ctx context.Context, adminID int64, orderID int64) (OrderOutput, error) {
	if orderID <= 0 {
		return OrderOutput{}, &ValidationError{Message: "invalid order id"}
	}

	var updated model.Order

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return &NotFoundError{Resource: "order", ID: orderID}
		}
		if err != nil {
			return err
		}

		//正規ルート上、ADMIN_APPROVEDへ進めるのはPENDINGだけ
		if !model.CanTransition(o.Status, model.OrderStatusAdminApproved) {
			return &InvalidStateTransitionError{
				OrderID: orderID,
				From:    o.Status,
				To:      model.OrderStatusAdminApproved,
			}
		}

		if err := r.Orders().UpdateStatus(ctx, orderID, model.OrderStatusAdminApproved); err != nil {
			return err
		}

		//監査ログは同じトランザクションで書く。コミットが巻き戻れば一緒に消える。
		if err := r.Audits().Create(ctx, model.AuditLog{
			ActorUserID:  adminID,
			Action:       model.AuditActionApproveOrder,
			ResourceType: model.AuditResourceOrder,
			ResourceID:   orderID,
			BeforeJSON:   statusJSON(o.Status),
			AfterJSON:    statusJSON(model.OrderStatusAdminApproved),
			CreatedAt:    time.Now(),
		}); err != nil {
			return err
		}

		o.Status = model.OrderStatusAdminApproved
		updated = o
		return nil
	})
	if err != nil {
		return OrderOutput{}, err
	}

	//承認は販売者へ通知（確定依頼）
	if err := u.notifier.Notify(ctx, updated.SellerID,
		"Order approved",
		fmt.Sprintf("Order #%d has been approved. Please confirm the shipment.", updated.ID),
		"ORDER_APPROVED",
		fmt.Sprintf("/seller/orders/%d", updated.ID),
	); err != nil {
		u.log.Warn("failed to notify seller of approval", "order_id", updated.ID, "error", err)
	}

	return u.output(ctx, updated)
}

// SellerConfirm はPENDINGまたはADMIN_APPROVEDから確定できる（管理者承認は必須ではない）。
func (u *OrderStatusUsecase) SellerConfirm(ctx context.Context, sellerID int64, orderID int64) (OrderOutput, error) {
	if orderID <= 0 {
		return OrderOutput{}, &ValidationError{Message: "invalid order id"}
	}

	var updated model.Order

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return &NotFoundError{Resource: "order", ID: orderID}
		}
		if err != nil {
			return err
		}

		if o.SellerID != sellerID {
			return &OwnershipError{Resource: "order", ID: orderID}
		}

		if !model.CanTransition(o.Status, model.OrderStatusSellerConfirmed) {
			return &InvalidStateTransitionError{
				OrderID: orderID,
				From:    o.Status,
				To:      model.OrderStatusSellerConfirmed,
			}
		}

		if err := r.Orders().UpdateStatus(ctx, orderID, model.OrderStatusSellerConfirmed); err != nil {
			return err
		}

		o.Status = model.OrderStatusSellerConfirmed
		updated = o
		return nil
	})
	if err != nil {
		return OrderOutput{}, err
	}

	if err := u.notifier.Notify(ctx, updated.BuyerID,
		"Order confirmed",
		fmt.Sprintf("Order #%d has been confirmed by the seller and is being prepared.", updated.ID),
		"ORDER_CONFIRMED",
		fmt.Sprintf("/orders/%d", updated.ID),
	); err != nil {
		u.log.Warn("failed to notify buyer of confirmation", "order_id", updated.ID, "error", err)
	}

	return u.output(ctx, updated)
}

// ForceStatus は販売者・管理者向けの直接設定。
// SHIPPING / DELIVERED / CANCELLED のみ受け付け、遷移元の検証は行わない。
// ガード付き遷移（AdminApprove / SellerConfirm）とは意図的に分けた緩い経路。
func (u *OrderStatusUsecase) ForceStatus(ctx context.Context, actorID int64, orderID int64, target model.OrderStatus) (OrderOutput, error) {
	if orderID <= 0 {
		return OrderOutput{}, &ValidationError{Message: "invalid order id"}
	}
	switch target {
	case model.OrderStatusShipping, model.OrderStatusDelivered, model.OrderStatusCancelled:
	default:
		return OrderOutput{}, &ValidationError{Message: "invalid target status"}
	}

	var updated model.Order

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return &NotFoundError{Resource: "order", ID: orderID}
		}
		if err != nil {
			return err
		}

		if err := r.Orders().UpdateStatus(ctx, orderID, target); err != nil {
			return err
		}

		if err := r.Audits().Create(ctx, model.AuditLog{
			ActorUserID:  actorID,
			Action:       model.AuditActionForceOrderStatus,
			ResourceType: model.AuditResourceOrder,
			ResourceID:   orderID,
			BeforeJSON:   statusJSON(o.Status),
			AfterJSON:    statusJSON(target),
			CreatedAt:    time.Now(),
		}); err != nil {
			return err
		}

		o.Status = target
		updated = o
		return nil
	})
	if err != nil {
		return OrderOutput{}, err
	}

	if err := u.notifier.Notify(ctx, updated.BuyerID,
		"Order update",
		fmt.Sprintf("Order #%d %s", updated.ID, statusText(target)),
		"ORDER_STATUS",
		fmt.Sprintf("/orders/%d", updated.ID),
	); err != nil {
		u.log.Warn("failed to notify buyer of status change", "order_id", updated.ID, "error", err)
	}

	return u.output(ctx, updated)
}

// MarkAsPaid は支払済みにして参照番号を記録し、ステータスをDELIVEREDに強制する。
// 「支払済み＝配達済み」の混同は既存挙動の維持で、この1箇所に隔離してある。
func (u *OrderStatusUsecase) MarkAsPaid(ctx context.Context, orderID int64, paymentRef string) error {
	if orderID <= 0 {
		return &ValidationError{Message: "invalid order id"}
	}

	err := u.orders.MarkPaid(ctx, orderID, paymentRef, model.OrderStatusDelivered)
	if errors.Is(err, repo.ErrNotFound) {
		return &NotFoundError{Resource: "order", ID: orderID}
	}
	return err
}

func (u *OrderStatusUsecase) FindByPaymentRef(ctx context.Context, paymentRef string) (OrderOutput, error) {
	o, err := u.orders.FindByPaymentRef(ctx, paymentRef)
	if errors.Is(err, repo.ErrNotFound) {
		return OrderOutput{}, &NotFoundError{Resource: "order", ID: 0}
	}
	if err != nil {
		return OrderOutput{}, err
	}
	return u.output(ctx, o)
}

// 管理者向け一覧（statusで絞り込み可能）
func (u *OrderStatusUsecase) ListAdmin(ctx context.Context, f repo.OrderListFilter) ([]OrderOutput, int64, error) {
	if f.Page < 1 {
		return nil, 0, &ValidationError{Message: "invalid page"}
	}
	if f.Limit < 1 || f.Limit > 100 {
		return nil, 0, &ValidationError{Message: "invalid limit"}
	}
	if f.Status != "" && !model.OrderStatus(f.Status).Valid() {
		return nil, 0, &ValidationError{Message: "invalid status"}
	}

	orders, total, err := u.orders.ListAdmin(ctx, f)
	if err != nil {
		return nil, 0, err
	}

	outs := make([]OrderOutput, 0, len(orders))
	for _, o := range orders {
		items, err := u.orderItems.ListByOrderID(ctx, o.ID)
		if err != nil {
			return nil, 0, err
		}
		outs = append(outs, toOrderOutput(o, items))
	}
	return outs, total, nil
}

type RevenueStats struct {
	TotalRevenue   decimal.Decimal `json:"total_revenue"`
	MonthlyRevenue decimal.Decimal `json:"monthly_revenue"`
}

// 支払済み注文の売上集計
func (u *OrderStatusUsecase) Revenue(ctx context.Context) (RevenueStats, error) {
	total, err := u.orders.TotalRevenue(ctx)
	if err != nil {
		return RevenueStats{}, err
	}

	now := time.Now()
	startOfMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	monthly, err := u.orders.RevenueBetween(ctx, startOfMonth, now)
	if err != nil {
		return RevenueStats{}, err
	}

	return RevenueStats{TotalRevenue: total, MonthlyRevenue: monthly}, nil
}

func (u *OrderStatusUsecase) output(ctx context.Context, o model.Order) (OrderOutput, error) {
	items, err := u.orderItems.ListByOrderID(ctx, o.ID)
	if err != nil {
		return OrderOutput{}, err
	}
	return toOrderOutput(o, items), nil
}

func statusJSON(s model.OrderStatus) string {
	return `{"status":"` + string(s) + `"}`
}

// 買い手向けの文言
func statusText(s model.OrderStatus) string {
	switch s {
	case model.OrderStatusShipping:
		return "is on its way"
	case model.OrderStatusDelivered:
		return "has been delivered"
	case model.OrderStatusCancelled:
		return "has been cancelled"
	default:
		return "has been updated"
	}
}
