package usecase_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"unimarket/internal/domain/model"
	repo "unimarket/internal/repository"

	"github.com/shopspring/decimal"
)

// =====================
// インメモリのフェイク永続化
// =====================
// トランザクションはストア全体のロック＋失敗時のスナップショット復元で再現する。
// ロック済み（lock=true）のリポジトリはトランザクション外から、
// ロック無し（lock=false）はWithinTx内から使う。

type memStore struct {
	mu sync.Mutex

	users      map[int64]model.User
	products   map[int64]model.Product
	variants   map[int64]model.ProductVariant
	cartItems  map[int64]model.CartItem
	orders     map[int64]model.Order
	orderItems map[int64][]model.OrderItem
	audits     []model.AuditLog

	nextCartItemID int64
	nextOrderID    int64

	failOrderCreate bool  // Orders().Create を失敗させる
	failAuditCreate error // Audits().Create を失敗させる
	failTxCommit    error // fn成功後のコミットを失敗させる
}

func newMemStore() *memStore {
	return &memStore{
		users:      map[int64]model.User{},
		products:   map[int64]model.Product{},
		variants:   map[int64]model.ProductVariant{},
		cartItems:  map[int64]model.CartItem{},
		orders:     map[int64]model.Order{},
		orderItems: map[int64][]model.OrderItem{},
	}
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

type memSnapshot struct {
	products       map[int64]model.Product
	variants       map[int64]model.ProductVariant
	cartItems      map[int64]model.CartItem
	orders         map[int64]model.Order
	orderItems     map[int64][]model.OrderItem
	audits         []model.AuditLog
	nextCartItemID int64
	nextOrderID    int64
}

func (s *memStore) snapshot() memSnapshot {
	audits := make([]model.AuditLog, len(s.audits))
	copy(audits, s.audits)
	return memSnapshot{
		products:       copyMap(s.products),
		variants:       copyMap(s.variants),
		cartItems:      copyMap(s.cartItems),
		orders:         copyMap(s.orders),
		orderItems:     copyMap(s.orderItems),
		audits:         audits,
		nextCartItemID: s.nextCartItemID,
		nextOrderID:    s.nextOrderID,
	}
}

func (s *memStore) restore(sn memSnapshot) {
	s.products = sn.products
	s.variants = sn.variants
	s.cartItems = sn.cartItems
	s.orders = sn.orders
	s.orderItems = sn.orderItems
	s.audits = sn.audits
	s.nextCartItemID = sn.nextCartItemID
	s.nextOrderID = sn.nextOrderID
}

// シード用ヘルパー

func (s *memStore) addUser(u model.User) model.User {
	s.users[u.ID] = u
	return u
}

func (s *memStore) addProduct(p model.Product) model.Product {
	s.products[p.ID] = p
	return p
}

func (s *memStore) addVariant(v model.ProductVariant) model.ProductVariant {
	s.variants[v.ID] = v
	return v
}

func (s *memStore) addCartItem(item model.CartItem) model.CartItem {
	s.nextCartItemID++
	item.ID = s.nextCartItemID
	s.cartItems[item.ID] = item
	return item
}

func (s *memStore) addOrder(o model.Order) model.Order {
	s.nextOrderID++
	o.ID = s.nextOrderID
	s.orders[o.ID] = o
	return o
}

// =====================
// TransactionManager
// =====================

type memTxManager struct{ s *memStore }

func (m *memTxManager) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	sn := m.s.snapshot()
	if err := fn(memTxRepos{s: m.s}); err != nil {
		m.s.restore(sn)
		return err
	}
	if m.s.failTxCommit != nil {
		m.s.restore(sn)
		return m.s.failTxCommit
	}
	return nil
}

type memTxRepos struct{ s *memStore }

func (r memTxRepos) Orders() repo.OrderRepository         { return &memOrders{s: r.s} }
func (r memTxRepos) OrderItems() repo.OrderItemRepository { return &memOrderItems{s: r.s} }
func (r memTxRepos) CartItems() repo.CartItemRepository   { return &memCartItems{s: r.s} }
func (r memTxRepos) Products() repo.ProductRepository     { return &memProducts{s: r.s} }
func (r memTxRepos) Variants() repo.VariantRepository     { return &memVariants{s: r.s} }
func (r memTxRepos) Stock() repo.StockRepository          { return &memStock{s: r.s} }
func (r memTxRepos) Audits() repo.AuditLogRepository      { return &memAudits{s: r.s} }

// =====================
// リポジトリ実装
// =====================

type memCartItems struct {
	s    *memStore
	lock bool
}

func (r *memCartItems) locked() func() {
	if !r.lock {
		return func() {}
	}
	r.s.mu.Lock()
	return r.s.mu.Unlock
}

func (r *memCartItems) FindByID(ctx context.Context, id int64) (model.CartItem, error) {
	defer r.locked()()
	item, ok := r.s.cartItems[id]
	if !ok {
		return model.CartItem{}, repo.ErrNotFound
	}
	return item, nil
}

func (r *memCartItems) ListByUserID(ctx context.Context, userID int64) ([]model.CartItem, error) {
	defer r.locked()()
	var items []model.CartItem
	for _, it := range r.s.cartItems {
		if it.UserID == userID {
			items = append(items, it)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

func (r *memCartItems) FindByUserProductVariant(ctx context.Context, userID, productID int64, variantID *int64) (model.CartItem, error) {
	defer r.locked()()
	for _, it := range r.s.cartItems {
		if it.UserID != userID || it.ProductID != productID {
			continue
		}
		if (it.VariantID == nil) != (variantID == nil) {
			continue
		}
		if it.VariantID != nil && *it.VariantID != *variantID {
			continue
		}
		return it, nil
	}
	return model.CartItem{}, repo.ErrNotFound
}

func (r *memCartItems) Create(ctx context.Context, item model.CartItem) (int64, error) {
	defer r.locked()()
	created := r.s.addCartItem(item)
	return created.ID, nil
}

func (r *memCartItems) UpdateQuantity(ctx context.Context, id int64, qty int64) error {
	defer r.locked()()
	item, ok := r.s.cartItems[id]
	if !ok {
		return repo.ErrNotFound
	}
	item.Quantity = qty
	r.s.cartItems[id] = item
	return nil
}

func (r *memCartItems) DeleteByID(ctx context.Context, id int64) error {
	defer r.locked()()
	if _, ok := r.s.cartItems[id]; !ok {
		return repo.ErrNotFound
	}
	delete(r.s.cartItems, id)
	return nil
}

type memProducts struct {
	s    *memStore
	lock bool
}

func (r *memProducts) FindByID(ctx context.Context, id int64) (model.Product, error) {
	if r.lock {
		r.s.mu.Lock()
		defer r.s.mu.Unlock()
	}
	p, ok := r.s.products[id]
	if !ok {
		return model.Product{}, repo.ErrNotFound
	}
	return p, nil
}

type memVariants struct {
	s    *memStore
	lock bool
}

func (r *memVariants) FindByID(ctx context.Context, id int64) (model.ProductVariant, error) {
	if r.lock {
		r.s.mu.Lock()
		defer r.s.mu.Unlock()
	}
	v, ok := r.s.variants[id]
	if !ok {
		return model.ProductVariant{}, repo.ErrNotFound
	}
	return v, nil
}

func (r *memVariants) CountByProductID(ctx context.Context, productID int64) (int64, error) {
	if r.lock {
		r.s.mu.Lock()
		defer r.s.mu.Unlock()
	}
	var count int64
	for _, v := range r.s.variants {
		if v.ProductID == productID {
			count++
		}
	}
	return count, nil
}

type memStock struct{ s *memStore }

func (r *memStock) DeductProductIfAvailable(ctx context.Context, productID, qty int64) (bool, int64, error) {
	p, ok := r.s.products[productID]
	if !ok {
		return false, 0, repo.ErrNotFound
	}
	if p.Quantity < qty {
		return false, p.Quantity, nil
	}
	p.Quantity -= qty
	r.s.products[productID] = p
	return true, 0, nil
}

func (r *memStock) DeductVariantIfAvailable(ctx context.Context, variantID, qty int64) (bool, int64, error) {
	v, ok := r.s.variants[variantID]
	if !ok {
		return false, 0, repo.ErrNotFound
	}
	if v.Quantity < qty {
		return false, v.Quantity, nil
	}
	v.Quantity -= qty
	r.s.variants[variantID] = v
	return true, 0, nil
}

type memOrders struct {
	s    *memStore
	lock bool
}

func (r *memOrders) locked() func() {
	if !r.lock {
		return func() {}
	}
	r.s.mu.Lock()
	return r.s.mu.Unlock
}

func (r *memOrders) FindByID(ctx context.Context, id int64) (model.Order, error) {
	defer r.locked()()
	o, ok := r.s.orders[id]
	if !ok {
		return model.Order{}, repo.ErrNotFound
	}
	return o, nil
}

func (r *memOrders) Create(ctx context.Context, o model.Order) (int64, error) {
	defer r.locked()()
	if r.s.failOrderCreate {
		return 0, errors.New("insert failed")
	}
	created := r.s.addOrder(o)
	return created.ID, nil
}

func (r *memOrders) UpdateStatus(ctx context.Context, id int64, status model.OrderStatus) error {
	defer r.locked()()
	o, ok := r.s.orders[id]
	if !ok {
		return repo.ErrNotFound
	}
	o.Status = status
	o.UpdatedAt = time.Now()
	r.s.orders[id] = o
	return nil
}

func (r *memOrders) MarkPaid(ctx context.Context, id int64, paymentRef string, status model.OrderStatus) error {
	defer r.locked()()
	o, ok := r.s.orders[id]
	if !ok {
		return repo.ErrNotFound
	}
	o.IsPaid = true
	o.PaymentRef = paymentRef
	o.Status = status
	r.s.orders[id] = o
	return nil
}

func (r *memOrders) FindByPaymentRef(ctx context.Context, paymentRef string) (model.Order, error) {
	defer r.locked()()
	for _, o := range r.s.orders {
		if o.PaymentRef == paymentRef {
			return o, nil
		}
	}
	return model.Order{}, repo.ErrNotFound
}

func (r *memOrders) ListByBuyerID(ctx context.Context, buyerID int64, page, limit int) ([]model.Order, int64, error) {
	defer r.locked()()
	return r.list(func(o model.Order) bool { return o.BuyerID == buyerID }, page, limit)
}

func (r *memOrders) ListBySellerID(ctx context.Context, sellerID int64, page, limit int) ([]model.Order, int64, error) {
	defer r.locked()()
	return r.list(func(o model.Order) bool { return o.SellerID == sellerID }, page, limit)
}

func (r *memOrders) ListAdmin(ctx context.Context, f repo.OrderListFilter) ([]model.Order, int64, error) {
	defer r.locked()()
	return r.list(func(o model.Order) bool {
		return f.Status == "" || string(o.Status) == f.Status
	}, f.Page, f.Limit)
}

func (r *memOrders) list(match func(model.Order) bool, page, limit int) ([]model.Order, int64, error) {
	var all []model.Order
	for _, o := range r.s.orders {
		if match(o) {
			all = append(all, o)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })

	total := int64(len(all))
	offset := (page - 1) * limit
	if offset >= len(all) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (r *memOrders) TotalRevenue(ctx context.Context) (decimal.Decimal, error) {
	defer r.locked()()
	sum := decimal.Zero
	for _, o := range r.s.orders {
		if o.IsPaid {
			sum = sum.Add(o.TotalAmount)
		}
	}
	return sum, nil
}

func (r *memOrders) RevenueBetween(ctx context.Context, from, to time.Time) (decimal.Decimal, error) {
	defer r.locked()()
	sum := decimal.Zero
	for _, o := range r.s.orders {
		if o.IsPaid && !o.CreatedAt.Before(from) && !o.CreatedAt.After(to) {
			sum = sum.Add(o.TotalAmount)
		}
	}
	return sum, nil
}

type memOrderItems struct {
	s    *memStore
	lock bool
}

func (r *memOrderItems) CreateBulk(ctx context.Context, orderID int64, items []model.OrderItem) error {
	if r.lock {
		r.s.mu.Lock()
		defer r.s.mu.Unlock()
	}
	stored := make([]model.OrderItem, len(items))
	copy(stored, items)
	for i := range stored {
		stored[i].OrderID = orderID
	}
	r.s.orderItems[orderID] = stored
	return nil
}

func (r *memOrderItems) ListByOrderID(ctx context.Context, orderID int64) ([]model.OrderItem, error) {
	if r.lock {
		r.s.mu.Lock()
		defer r.s.mu.Unlock()
	}
	items := r.s.orderItems[orderID]
	out := make([]model.OrderItem, len(items))
	copy(out, items)
	return out, nil
}

type memUsers struct{ s *memStore }

func (r *memUsers) Create(ctx context.Context, u model.User) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	id := int64(len(r.s.users) + 1)
	u.ID = id
	r.s.users[id] = u
	return id, nil
}

func (r *memUsers) FindByID(ctx context.Context, id int64) (model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return model.User{}, repo.ErrNotFound
	}
	return u, nil
}

func (r *memUsers) FindByEmail(ctx context.Context, email string) (model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return model.User{}, repo.ErrNotFound
}

func (r *memUsers) ListByRole(ctx context.Context, role model.Role) ([]model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.User
	for _, u := range r.s.users {
		if u.Role == role {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// 監査ログはトランザクション内でのみ書かれる（WithinTx経由、ロック不要）
type memAudits struct{ s *memStore }

func (r *memAudits) Create(ctx context.Context, log model.AuditLog) error {
	if r.s.failAuditCreate != nil {
		return r.s.failAuditCreate
	}
	r.s.audits = append(r.s.audits, log)
	return nil
}

func (s *memStore) auditLogs() []model.AuditLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.AuditLog, len(s.audits))
	copy(out, s.audits)
	return out
}

// =====================
// 通知・イベントのレコーダー
// =====================

type sentNotice struct {
	userID   int64
	role     model.Role
	title    string
	category string
}

type notifyRecorder struct {
	mu      sync.Mutex
	notices []sentNotice
	fail    error
}

func (n *notifyRecorder) Notify(ctx context.Context, userID int64, title, message, category, link string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail != nil {
		return n.fail
	}
	n.notices = append(n.notices, sentNotice{userID: userID, title: title, category: category})
	return nil
}

func (n *notifyRecorder) NotifyRole(ctx context.Context, role model.Role, title, message, category, link string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail != nil {
		return n.fail
	}
	n.notices = append(n.notices, sentNotice{role: role, title: title, category: category})
	return nil
}

func (n *notifyRecorder) all() []sentNotice {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]sentNotice, len(n.notices))
	copy(out, n.notices)
	return out
}

type publishedEvent struct {
	order model.Order
	items []model.OrderItem
}

type eventRecorder struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (e *eventRecorder) OrderCreated(ctx context.Context, order model.Order, items []model.OrderItem) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, publishedEvent{order: order, items: items})
}

func (e *eventRecorder) all() []publishedEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]publishedEvent, len(e.events))
	copy(out, e.events)
	return out
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
