package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"unimarket/internal/domain/model"
	repo "unimarket/internal/repository"

	"github.com/shopspring/decimal"
)

// OrderUsecase は注文確定（在庫引当）のコア。
// カート明細を販売者ごとに分割し、パーティション単位で
// 在庫減算＋注文作成を1トランザクションで確定する。
type OrderUsecase struct {
	tx         repo.TransactionManager
	snapshot   *CartSnapshotReader
	cartItems  repo.CartItemRepository
	products   repo.ProductRepository
	users      repo.UserRepository
	orders     repo.OrderRepository
	orderItems repo.OrderItemRepository
	notifier   Notifier
	events     OrderEventPublisher
	log        *slog.Logger
}

func NewOrderUsecase(
	tx repo.TransactionManager,
	snapshot *CartSnapshotReader,
	cartItems repo.CartItemRepository,
	products repo.ProductRepository,
	users repo.UserRepository,
	orders repo.OrderRepository,
	orderItems repo.OrderItemRepository,
	notifier Notifier,
	events OrderEventPublisher,
	log *slog.Logger,
) *OrderUsecase {
	return &OrderUsecase{
		tx:         tx,
		snapshot:   snapshot,
		cartItems:  cartItems,
		products:   products,
		users:      users,
		orders:     orders,
		orderItems: orderItems,
		notifier:   notifier,
		events:     events,
		log:        log,
	}
}

type PlaceOrdersInput struct {
	CartItemIDs     []int64
	ShippingAddress string
	Phone           string
	Note            string
	PaymentMethod   model.PaymentMethod
}

type OrderItemOutput struct {
	ID           int64           `json:"id"`
	ProductID    int64           `json:"product_id"`
	VariantID    *int64          `json:"variant_id"`
	Name         string          `json:"name"`
	Image        string          `json:"image"`
	VariantSize  string          `json:"variant_size"`
	VariantColor string          `json:"variant_color"`
	Price        decimal.Decimal `json:"price"`
	Quantity     int64           `json:"quantity"`
}

type OrderOutput struct {
	ID              int64             `json:"id"`
	BuyerID         int64             `json:"buyer_id"`
	SellerID        int64             `json:"seller_id"`
	Status          string            `json:"status"`
	TotalAmount     decimal.Decimal   `json:"total_amount"`
	ShippingAddress string            `json:"shipping_address"`
	Phone           string            `json:"phone"`
	Note            string            `json:"note"`
	PaymentMethod   string            `json:"payment_method"`
	IsPaid          bool              `json:"is_paid"`
	CreatedAt       time.Time         `json:"created_at"`
	Items           []OrderItemOutput `json:"items"`
}

// 1販売者分のパーティション
type sellerPartition struct {
	sellerID int64
	lines    []model.CartItem
}

// 注文確定の結果。一部のパーティションだけ失敗した場合、
// 確定済みの注文とあわせて失敗の内訳を返す。
type PlaceOrdersResult struct {
	Orders   []OrderOutput
	Failures []SellerFailure
}

// PlaceOrders は選択されたカート明細から販売者ごとに注文を作る。
// あるパーティションの在庫切れは、他のパーティションの確定を妨げない。
// 一部失敗は Result.Failures で呼び出し元に伝え、
// 全パーティションが失敗したときだけ OrderCreationFailedError を返す。
func (u *OrderUsecase) PlaceOrders(ctx context.Context, buyerID int64, in PlaceOrdersInput) (PlaceOrdersResult, error) {
	if buyerID <= 0 {
		return PlaceOrdersResult{}, &ValidationError{Message: "invalid buyer"}
	}
	if strings.TrimSpace(in.ShippingAddress) == "" {
		return PlaceOrdersResult{}, &ValidationError{Message: "shipping address is required"}
	}
	if strings.TrimSpace(in.Phone) == "" {
		return PlaceOrdersResult{}, &ValidationError{Message: "phone is required"}
	}
	switch in.PaymentMethod {
	case model.PaymentMethodCOD, model.PaymentMethodVNPay:
	default:
		return PlaceOrdersResult{}, &ValidationError{Message: "invalid payment method"}
	}

	buyer, err := u.users.FindByID(ctx, buyerID)
	if errors.Is(err, repo.ErrNotFound) {
		return PlaceOrdersResult{}, &NotFoundError{Resource: "user", ID: buyerID}
	}
	if err != nil {
		return PlaceOrdersResult{}, err
	}

	//選択されたカート明細を検証して取得（空・他人の明細はここで弾く）
	lines, err := u.snapshot.Read(ctx, buyerID, in.CartItemIDs)
	if err != nil {
		return PlaceOrdersResult{}, err
	}

	//販売者ごとに分割。キーは商品のseller_id。
	partitions, err := u.partitionBySeller(ctx, lines)
	if err != nil {
		return PlaceOrdersResult{}, err
	}

	var (
		outs     []OrderOutput
		failures []SellerFailure
	)

	for _, part := range partitions {
		order, items, err := u.allocatePartition(ctx, buyer, part, in)
		if err != nil {
			//このパーティションのみ失敗。減算はロールバック済み。
			failures = append(failures, SellerFailure{SellerID: part.sellerID, Err: err})
			continue
		}

		//確定分のカート明細を消費（削除）。失敗しても注文は有効なのでログのみ。
		for _, line := range part.lines {
			if err := u.cartItems.DeleteByID(ctx, line.ID); err != nil {
				u.log.Warn("failed to delete consumed cart item",
					"cart_item_id", line.ID, "order_id", order.ID, "error", err)
			}
		}

		u.notifyOrderCreated(ctx, buyer, order)
		u.events.OrderCreated(ctx, order, items)

		outs = append(outs, toOrderOutput(order, items))
	}

	if len(outs) == 0 {
		return PlaceOrdersResult{}, &OrderCreationFailedError{Failures: failures}
	}

	//一部失敗は結果に含めて呼び出し元へ返す（失敗した明細はカートに残っている）
	for _, f := range failures {
		u.log.Info("seller partition failed during allocation",
			"buyer_id", buyerID, "seller_id", f.SellerID, "error", f.Err)
	}

	return PlaceOrdersResult{Orders: outs, Failures: failures}, nil
}

// 明細を商品のseller_idでグルーピング。先に現れた販売者から順に処理する。
func (u *OrderUsecase) partitionBySeller(ctx context.Context, lines []model.CartItem) ([]sellerPartition, error) {
	bySeller := map[int64]int{}
	var parts []sellerPartition

	for _, line := range lines {
		p, err := u.products.FindByID(ctx, line.ProductID)
		if errors.Is(err, repo.ErrNotFound) {
			return nil, &NotFoundError{Resource: "product", ID: line.ProductID}
		}
		if err != nil {
			return nil, err
		}

		idx, ok := bySeller[p.SellerID]
		if !ok {
			idx = len(parts)
			bySeller[p.SellerID] = idx
			parts = append(parts, sellerPartition{sellerID: p.SellerID})
		}
		parts[idx].lines = append(parts[idx].lines, line)
	}

	return parts, nil
}

// 1パーティション＝1トランザクション。
// 在庫減算・注文行・明細行のどれかが失敗したら全部巻き戻る。
func (u *OrderUsecase) allocatePartition(ctx context.Context, buyer model.User, part sellerPartition, in PlaceOrdersInput) (model.Order, []model.OrderItem, error) {
	var (
		created model.Order
		items   []model.OrderItem
	)

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		total := decimal.Zero
		items = make([]model.OrderItem, 0, len(part.lines))

		for _, line := range part.lines {
			//価格解決と在庫減算はトランザクション内の最新値で行う
			p, err := r.Products().FindByID(ctx, line.ProductID)
			if errors.Is(err, repo.ErrNotFound) {
				return &NotFoundError{Resource: "product", ID: line.ProductID}
			}
			if err != nil {
				return err
			}

			item, price, err := u.deductLine(ctx, r, p, line)
			if err != nil {
				return err
			}

			total = total.Add(price.Mul(decimal.NewFromInt(line.Quantity)))
			items = append(items, item)
		}

		now := time.Now()
		orderID, err := r.Orders().Create(ctx, model.Order{
			BuyerID:         buyer.ID,
			SellerID:        part.sellerID,
			TotalAmount:     total,
			ShippingAddress: in.ShippingAddress,
			Phone:           in.Phone,
			Note:            in.Note,
			Status:          model.OrderStatusPending,
			PaymentMethod:   in.PaymentMethod,
			IsPaid:          false,
			CreatedAt:       now,
			UpdatedAt:       now,
		})
		if err != nil {
			return err
		}

		if err := r.OrderItems().CreateBulk(ctx, orderID, items); err != nil {
			return err
		}

		created = model.Order{
			ID:              orderID,
			BuyerID:         buyer.ID,
			SellerID:        part.sellerID,
			TotalAmount:     total,
			ShippingAddress: in.ShippingAddress,
			Phone:           in.Phone,
			Note:            in.Note,
			Status:          model.OrderStatusPending,
			PaymentMethod:   in.PaymentMethod,
			IsPaid:          false,
			CreatedAt:       now,
		}
		return nil
	})

	if err != nil {
		return model.Order{}, nil, err
	}
	return created, items, nil
}

// 明細1行分の在庫単位を解決して減算し、スナップショット済みの注文明細を返す。
// バリエーションを持つ商品は商品側の数量を引当対象にできない。
func (u *OrderUsecase) deductLine(ctx context.Context, r repo.TxRepos, p model.Product, line model.CartItem) (model.OrderItem, decimal.Decimal, error) {
	if line.Quantity < 1 {
		return model.OrderItem{}, decimal.Zero, &ValidationError{Message: "invalid quantity"}
	}

	if line.VariantID != nil {
		v, err := r.Variants().FindByID(ctx, *line.VariantID)
		if errors.Is(err, repo.ErrNotFound) {
			return model.OrderItem{}, decimal.Zero, &NotFoundError{Resource: "variant", ID: *line.VariantID}
		}
		if err != nil {
			return model.OrderItem{}, decimal.Zero, err
		}
		if v.ProductID != p.ID {
			return model.OrderItem{}, decimal.Zero, &ValidationError{Message: "variant does not belong to this product"}
		}

		ok, available, err := r.Stock().DeductVariantIfAvailable(ctx, v.ID, line.Quantity)
		if err != nil {
			return model.OrderItem{}, decimal.Zero, err
		}
		if !ok {
			return model.OrderItem{}, decimal.Zero, &InsufficientStockError{
				ProductID:   p.ID,
				VariantID:   line.VariantID,
				ProductName: p.Name,
				Available:   available,
				Requested:   line.Quantity,
			}
		}

		price := v.EffectivePrice(p)
		return model.OrderItem{
			ProductID:            p.ID,
			VariantID:            line.VariantID,
			Quantity:             line.Quantity,
			UnitPriceSnapshot:    price,
			ProductNameSnapshot:  p.Name,
			ProductImageSnapshot: p.FirstImage(),
			VariantSizeSnapshot:  v.Size,
			VariantColorSnapshot: v.Color,
			CreatedAt:            time.Now(),
		}, price, nil
	}

	count, err := r.Variants().CountByProductID(ctx, p.ID)
	if err != nil {
		return model.OrderItem{}, decimal.Zero, err
	}
	if count > 0 {
		return model.OrderItem{}, decimal.Zero, &ValidationError{
			Message: fmt.Sprintf("please select a variant for %q", p.Name),
		}
	}

	ok, available, err := r.Stock().DeductProductIfAvailable(ctx, p.ID, line.Quantity)
	if err != nil {
		return model.OrderItem{}, decimal.Zero, err
	}
	if !ok {
		return model.OrderItem{}, decimal.Zero, &InsufficientStockError{
			ProductID:   p.ID,
			ProductName: p.Name,
			Available:   available,
			Requested:   line.Quantity,
		}
	}

	return model.OrderItem{
		ProductID:            p.ID,
		Quantity:             line.Quantity,
		UnitPriceSnapshot:    p.Price,
		ProductNameSnapshot:  p.Name,
		ProductImageSnapshot: p.FirstImage(),
		CreatedAt:            time.Now(),
	}, p.Price, nil
}

// 販売者と全管理者へ通知。失敗しても確定済みの注文は巻き戻さない。
func (u *OrderUsecase) notifyOrderCreated(ctx context.Context, buyer model.User, order model.Order) {
	if err := u.notifier.Notify(ctx, order.SellerID,
		"New order",
		fmt.Sprintf("You have a new order #%d from %s", order.ID, buyer.FullName),
		"NEW_ORDER",
		fmt.Sprintf("/seller/orders/%d", order.ID),
	); err != nil {
		u.log.Warn("failed to notify seller", "order_id", order.ID, "error", err)
	}

	if err := u.notifier.NotifyRole(ctx, model.RoleAdmin,
		"New order placed",
		fmt.Sprintf("Order #%d was placed by %s", order.ID, buyer.FullName),
		"NEW_ORDER",
		fmt.Sprintf("/admin/orders/%d", order.ID),
	); err != nil {
		u.log.Warn("failed to notify admins", "order_id", order.ID, "error", err)
	}
}

func (u *OrderUsecase) ListMyPurchases(ctx context.Context, buyerID int64, page, limit int) ([]OrderOutput, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 10
	}

	orders, total, err := u.orders.ListByBuyerID(ctx, buyerID, page, limit)
	if err != nil {
		return nil, 0, err
	}
	outs, err := u.withItems(ctx, orders)
	if err != nil {
		return nil, 0, err
	}
	return outs, total, nil
}

func (u *OrderUsecase) ListMySales(ctx context.Context, sellerID int64, page, limit int) ([]OrderOutput, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 10
	}

	orders, total, err := u.orders.ListBySellerID(ctx, sellerID, page, limit)
	if err != nil {
		return nil, 0, err
	}
	outs, err := u.withItems(ctx, orders)
	if err != nil {
		return nil, 0, err
	}
	return outs, total, nil
}

// 買い手・売り手・管理者だけが注文詳細を見られる
func (u *OrderUsecase) GetOrder(ctx context.Context, userID int64, role model.Role, orderID int64) (OrderOutput, error) {
	o, err := u.orders.FindByID(ctx, orderID)
	if errors.Is(err, repo.ErrNotFound) {
		return OrderOutput{}, &NotFoundError{Resource: "order", ID: orderID}
	}
	if err != nil {
		return OrderOutput{}, err
	}

	if o.BuyerID != userID && o.SellerID != userID && role != model.RoleAdmin {
		return OrderOutput{}, &OwnershipError{Resource: "order", ID: orderID}
	}

	items, err := u.orderItems.ListByOrderID(ctx, orderID)
	if err != nil {
		return OrderOutput{}, err
	}
	return toOrderOutput(o, items), nil
}

func (u *OrderUsecase) withItems(ctx context.Context, orders []model.Order) ([]OrderOutput, error) {
	outs := make([]OrderOutput, 0, len(orders))
	for _, o := range orders {
		items, err := u.orderItems.ListByOrderID(ctx, o.ID)
		if err != nil {
			return nil, err
		}
		outs = append(outs, toOrderOutput(o, items))
	}
	return outs, nil
}

func toOrderOutput(o model.Order, items []model.OrderItem) OrderOutput {
	outItems := make([]OrderItemOutput, 0, len(items))
	for _, it := range items {
		outItems = append(outItems, OrderItemOutput{
			ID:           it.ID,
			ProductID:    it.ProductID,
			VariantID:    it.VariantID,
			Name:         it.ProductNameSnapshot,
			Image:        it.ProductImageSnapshot,
			VariantSize:  it.VariantSizeSnapshot,
			VariantColor: it.VariantColorSnapshot,
			Price:        it.UnitPriceSnapshot,
			Quantity:     it.Quantity,
		})
	}

	return OrderOutput{
		ID:              o.ID,
		BuyerID:         o.BuyerID,
		SellerID:        o.SellerID,
		Status:          string(o.Status),
		TotalAmount:     o.TotalAmount,
		ShippingAddress: o.ShippingAddress,
		Phone:           o.Phone,
		Note:            o.Note,
		PaymentMethod:   string(o.PaymentMethod),
		IsPaid:          o.IsPaid,
		CreatedAt:       o.CreatedAt,
		Items:           outItems,
	}
}
