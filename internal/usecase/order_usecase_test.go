package usecase_test

import (
	"context"
	"sync"
	"testing"

	"unimarket/internal/domain/model"
	"unimarket/internal/usecase"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOrderFixture(s *memStore) (*usecase.OrderUsecase, *notifyRecorder, *eventRecorder) {
	cartItems := &memCartItems{s: s, lock: true}
	notifier := &notifyRecorder{}
	events := &eventRecorder{}

	uc := usecase.NewOrderUsecase(
		&memTxManager{s: s},
		usecase.NewCartSnapshotReader(cartItems),
		cartItems,
		&memProducts{s: s, lock: true},
		&memUsers{s: s},
		&memOrders{s: s, lock: true},
		&memOrderItems{s: s, lock: true},
		notifier,
		events,
		testLogger(),
	)
	return uc, notifier, events
}

func validInput(ids ...int64) usecase.PlaceOrdersInput {
	return usecase.PlaceOrdersInput{
		CartItemIDs:     ids,
		ShippingAddress: "123 Main St",
		Phone:           "0901234567",
		PaymentMethod:   model.PaymentMethodCOD,
	}
}

func price(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestPlaceOrders_SingleSeller(t *testing.T) {
	s := newMemStore()
	s.addUser(model.User{ID: 1, Role: model.RoleBuyer, FullName: "Buyer One"})
	s.addUser(model.User{ID: 2, Role: model.RoleSeller})
	s.addUser(model.User{ID: 9, Role: model.RoleAdmin})
	s.addProduct(model.Product{ID: 10, SellerID: 2, Name: "Keyboard", Price: price("100.00"), Quantity: 10})
	s.addProduct(model.Product{ID: 11, SellerID: 2, Name: "Mouse", Price: price("25.50"), Quantity: 5})
	l1 := s.addCartItem(model.CartItem{UserID: 1, ProductID: 10, Quantity: 2})
	l2 := s.addCartItem(model.CartItem{UserID: 1, ProductID: 11, Quantity: 1})

	uc, notifier, events := newOrderFixture(s)

	res, err := uc.PlaceOrders(context.Background(), 1, validInput(l1.ID, l2.ID))
	require.NoError(t, err)
	require.Len(t, res.Orders, 1)
	assert.Empty(t, res.Failures)

	out := res.Orders[0]
	assert.Equal(t, string(model.OrderStatusPending), out.Status)
	assert.Equal(t, int64(2), out.SellerID)
	assert.True(t, price("225.50").Equal(out.TotalAmount))
	assert.Len(t, out.Items, 2)
	assert.False(t, out.IsPaid)

	//在庫が減っている
	assert.Equal(t, int64(8), s.products[10].Quantity)
	assert.Equal(t, int64(4), s.products[11].Quantity)

	//確定した明細はカートから消えている
	assert.Empty(t, s.cartItems)

	//販売者への通知＋管理者ロールへの通知
	notices := notifier.all()
	require.Len(t, notices, 2)
	assert.Equal(t, int64(2), notices[0].userID)
	assert.Equal(t, "NEW_ORDER", notices[0].category)
	assert.Equal(t, model.RoleAdmin, notices[1].role)

	//イベントが1件発行されている
	require.Len(t, events.all(), 1)
	assert.Equal(t, out.ID, events.all()[0].order.ID)
}

func TestPlaceOrders_SplitsBySeller(t *testing.T) {
	s := newMemStore()
	s.addUser(model.User{ID: 1, Role: model.RoleBuyer})
	s.addProduct(model.Product{ID: 10, SellerID: 2, Name: "A", Price: price("10.00"), Quantity: 5})
	s.addProduct(model.Product{ID: 20, SellerID: 3, Name: "B", Price: price("20.00"), Quantity: 5})
	l1 := s.addCartItem(model.CartItem{UserID: 1, ProductID: 10, Quantity: 1})
	l2 := s.addCartItem(model.CartItem{UserID: 1, ProductID: 20, Quantity: 1})

	uc, _, _ := newOrderFixture(s)

	res, err := uc.PlaceOrders(context.Background(), 1, validInput(l1.ID, l2.ID))
	require.NoError(t, err)
	require.Len(t, res.Orders, 2)
	assert.Equal(t, int64(2), res.Orders[0].SellerID)
	assert.Equal(t, int64(3), res.Orders[1].SellerID)
	assert.True(t, price("10.00").Equal(res.Orders[0].TotalAmount))
	assert.True(t, price("20.00").Equal(res.Orders[1].TotalAmount))
}

// あるパーティションの在庫切れは他のパーティションの確定を妨げない
func TestPlaceOrders_PartitionIndependence(t *testing.T) {
	s := newMemStore()
	s.addUser(model.User{ID: 1, Role: model.RoleBuyer})
	s.addProduct(model.Product{ID: 10, SellerID: 2, Name: "A", Price: price("10.00"), Quantity: 5})
	s.addProduct(model.Product{ID: 20, SellerID: 3, Name: "B", Price: price("20.00"), Quantity: 0})
	l1 := s.addCartItem(model.CartItem{UserID: 1, ProductID: 10, Quantity: 1})
	l2 := s.addCartItem(model.CartItem{UserID: 1, ProductID: 20, Quantity: 1})

	uc, _, _ := newOrderFixture(s)

	res, err := uc.PlaceOrders(context.Background(), 1, validInput(l1.ID, l2.ID))
	require.NoError(t, err)
	require.Len(t, res.Orders, 1)
	assert.Equal(t, int64(2), res.Orders[0].SellerID)

	//失敗した販売者の内訳が結果に含まれる
	require.Len(t, res.Failures, 1)
	assert.Equal(t, int64(3), res.Failures[0].SellerID)
	var stock *usecase.InsufficientStockError
	require.ErrorAs(t, res.Failures[0].Err, &stock)
	assert.Equal(t, int64(20), stock.ProductID)
	assert.Equal(t, int64(0), stock.Available)

	//成功した販売者の明細だけ消え、失敗した方はカートに残る
	_, ok := s.cartItems[l1.ID]
	assert.False(t, ok)
	_, ok = s.cartItems[l2.ID]
	assert.True(t, ok)

	//失敗した側の注文は作られていない
	assert.Len(t, s.orders, 1)
}

func TestPlaceOrders_AllPartitionsFail(t *testing.T) {
	s := newMemStore()
	s.addUser(model.User{ID: 1, Role: model.RoleBuyer})
	s.addProduct(model.Product{ID: 10, SellerID: 2, Name: "A", Price: price("10.00"), Quantity: 0})
	s.addProduct(model.Product{ID: 20, SellerID: 3, Name: "B", Price: price("20.00"), Quantity: 0})
	l1 := s.addCartItem(model.CartItem{UserID: 1, ProductID: 10, Quantity: 1})
	l2 := s.addCartItem(model.CartItem{UserID: 1, ProductID: 20, Quantity: 1})

	uc, notifier, events := newOrderFixture(s)

	res, err := uc.PlaceOrders(context.Background(), 1, validInput(l1.ID, l2.ID))
	assert.Empty(t, res.Orders)

	var creation *usecase.OrderCreationFailedError
	require.ErrorAs(t, err, &creation)
	require.Len(t, creation.Failures, 2)

	var stock *usecase.InsufficientStockError
	assert.ErrorAs(t, creation.Failures[0].Err, &stock)
	assert.Equal(t, int64(0), stock.Available)
	assert.Equal(t, int64(1), stock.Requested)

	//何も確定していない
	assert.Empty(t, s.orders)
	assert.Len(t, s.cartItems, 2)
	assert.Empty(t, notifier.all())
	assert.Empty(t, events.all())
}

func TestPlaceOrders_EmptySelection(t *testing.T) {
	s := newMemStore()
	s.addUser(model.User{ID: 1, Role: model.RoleBuyer})
	uc, _, _ := newOrderFixture(s)

	_, err := uc.PlaceOrders(context.Background(), 1, validInput())

	var validation *usecase.ValidationError
	assert.ErrorAs(t, err, &validation)
}

func TestPlaceOrders_ForeignCartItem(t *testing.T) {
	s := newMemStore()
	s.addUser(model.User{ID: 1, Role: model.RoleBuyer})
	s.addProduct(model.Product{ID: 10, SellerID: 2, Name: "A", Price: price("10.00"), Quantity: 5})
	//他人（user 7）の明細
	other := s.addCartItem(model.CartItem{UserID: 7, ProductID: 10, Quantity: 1})

	uc, _, _ := newOrderFixture(s)

	_, err := uc.PlaceOrders(context.Background(), 1, validInput(other.ID))

	var ownership *usecase.OwnershipError
	require.ErrorAs(t, err, &ownership)
	assert.Equal(t, other.ID, ownership.ID)
	assert.Empty(t, s.orders)
}

// 二重送信：1回目の確定で明細が消えた後の再送は存在しないIDになる
func TestPlaceOrders_StaleLine(t *testing.T) {
	s := newMemStore()
	s.addUser(model.User{ID: 1, Role: model.RoleBuyer})
	s.addProduct(model.Product{ID: 10, SellerID: 2, Name: "A", Price: price("10.00"), Quantity: 5})
	line := s.addCartItem(model.CartItem{UserID: 1, ProductID: 10, Quantity: 1})

	uc, _, _ := newOrderFixture(s)

	_, err := uc.PlaceOrders(context.Background(), 1, validInput(line.ID))
	require.NoError(t, err)

	_, err = uc.PlaceOrders(context.Background(), 1, validInput(line.ID))
	var notFound *usecase.NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, line.ID, notFound.ID)

	//在庫は1回分しか引かれていない
	assert.Equal(t, int64(4), s.products[10].Quantity)
}

func TestPlaceOrders_VariantRequired(t *testing.T) {
	s := newMemStore()
	s.addUser(model.User{ID: 1, Role: model.RoleBuyer})
	s.addProduct(model.Product{ID: 10, SellerID: 2, Name: "Shirt", Price: price("30.00"), Quantity: 100})
	s.addVariant(model.ProductVariant{ID: 100, ProductID: 10, Size: "M", Quantity: 5})
	//バリエーション未選択の明細
	line := s.addCartItem(model.CartItem{UserID: 1, ProductID: 10, Quantity: 1})

	uc, _, _ := newOrderFixture(s)

	_, err := uc.PlaceOrders(context.Background(), 1, validInput(line.ID))

	var creation *usecase.OrderCreationFailedError
	require.ErrorAs(t, err, &creation)
	require.Len(t, creation.Failures, 1)

	var validation *usecase.ValidationError
	assert.ErrorAs(t, creation.Failures[0].Err, &validation)

	//商品側の数量からは引かれない
	assert.Equal(t, int64(100), s.products[10].Quantity)
}

func TestPlaceOrders_VariantScopedStock(t *testing.T) {
	s := newMemStore()
	s.addUser(model.User{ID: 1, Role: model.RoleBuyer})
	s.addProduct(model.Product{ID: 10, SellerID: 2, Name: "Shirt", Price: price("30.00"), Quantity: 100})
	vp := price("35.00")
	s.addVariant(model.ProductVariant{ID: 100, ProductID: 10, Size: "M", Color: "Black", Price: &vp, Quantity: 3})
	vid := int64(100)
	line := s.addCartItem(model.CartItem{UserID: 1, ProductID: 10, VariantID: &vid, Quantity: 2})

	uc, _, _ := newOrderFixture(s)

	res, err := uc.PlaceOrders(context.Background(), 1, validInput(line.ID))
	require.NoError(t, err)
	require.Len(t, res.Orders, 1)

	//バリエーション価格が有効価格になる
	assert.True(t, price("70.00").Equal(res.Orders[0].TotalAmount))
	require.Len(t, res.Orders[0].Items, 1)
	assert.Equal(t, "M", res.Orders[0].Items[0].VariantSize)
	assert.Equal(t, "Black", res.Orders[0].Items[0].VariantColor)

	//バリエーション側だけが減る
	assert.Equal(t, int64(1), s.variants[100].Quantity)
	assert.Equal(t, int64(100), s.products[10].Quantity)
}

func TestPlaceOrders_VariantOfOtherProduct(t *testing.T) {
	s := newMemStore()
	s.addUser(model.User{ID: 1, Role: model.RoleBuyer})
	s.addProduct(model.Product{ID: 10, SellerID: 2, Name: "Shirt", Price: price("30.00"), Quantity: 100})
	s.addProduct(model.Product{ID: 11, SellerID: 2, Name: "Pants", Price: price("50.00"), Quantity: 100})
	s.addVariant(model.ProductVariant{ID: 100, ProductID: 11, Size: "L", Quantity: 5})
	vid := int64(100)
	//商品10の明細に商品11のバリエーションが紐づいている
	line := s.addCartItem(model.CartItem{UserID: 1, ProductID: 10, VariantID: &vid, Quantity: 1})

	uc, _, _ := newOrderFixture(s)

	_, err := uc.PlaceOrders(context.Background(), 1, validInput(line.ID))

	var creation *usecase.OrderCreationFailedError
	require.ErrorAs(t, err, &creation)
	assert.Equal(t, int64(5), s.variants[100].Quantity)
}

// 注文行のINSERTに失敗したら同じトランザクションの在庫減算も巻き戻る
func TestPlaceOrders_RollbackOnOrderInsertFailure(t *testing.T) {
	s := newMemStore()
	s.addUser(model.User{ID: 1, Role: model.RoleBuyer})
	s.addProduct(model.Product{ID: 10, SellerID: 2, Name: "A", Price: price("10.00"), Quantity: 5})
	line := s.addCartItem(model.CartItem{UserID: 1, ProductID: 10, Quantity: 2})
	s.failOrderCreate = true

	uc, _, _ := newOrderFixture(s)

	_, err := uc.PlaceOrders(context.Background(), 1, validInput(line.ID))

	var creation *usecase.OrderCreationFailedError
	require.ErrorAs(t, err, &creation)
	assert.Equal(t, int64(5), s.products[10].Quantity)
	assert.Len(t, s.cartItems, 1)
}

func TestPlaceOrders_InputValidation(t *testing.T) {
	s := newMemStore()
	s.addUser(model.User{ID: 1, Role: model.RoleBuyer})
	uc, _, _ := newOrderFixture(s)

	cases := []struct {
		name string
		in   usecase.PlaceOrdersInput
	}{
		{"shipping address missing", usecase.PlaceOrdersInput{CartItemIDs: []int64{1}, Phone: "090", PaymentMethod: model.PaymentMethodCOD}},
		{"phone missing", usecase.PlaceOrdersInput{CartItemIDs: []int64{1}, ShippingAddress: "addr", PaymentMethod: model.PaymentMethodCOD}},
		{"unknown payment method", usecase.PlaceOrdersInput{CartItemIDs: []int64{1}, ShippingAddress: "addr", Phone: "090", PaymentMethod: "BITCOIN"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := uc.PlaceOrders(context.Background(), 1, tc.in)
			var validation *usecase.ValidationError
			assert.ErrorAs(t, err, &validation)
		})
	}
}

// 同じ在庫を取り合っても売り越さない
func TestPlaceOrders_ConcurrentAllocation(t *testing.T) {
	const stock = 5
	const buyers = 20

	s := newMemStore()
	s.addProduct(model.Product{ID: 10, SellerID: 100, Name: "Limited", Price: price("99.99"), Quantity: stock})

	var lineIDs []int64
	for i := 1; i <= buyers; i++ {
		id := int64(i)
		s.addUser(model.User{ID: id, Role: model.RoleBuyer})
		line := s.addCartItem(model.CartItem{UserID: id, ProductID: 10, Quantity: 1})
		lineIDs = append(lineIDs, line.ID)
	}

	uc, _, _ := newOrderFixture(s)

	var wg sync.WaitGroup
	results := make([]error, buyers)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := uc.PlaceOrders(context.Background(), int64(i+1), validInput(lineIDs[i]))
			results[i] = err
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
		} else {
			var creation *usecase.OrderCreationFailedError
			assert.ErrorAs(t, err, &creation)
		}
	}

	assert.Equal(t, stock, succeeded)
	assert.Equal(t, int64(0), s.products[10].Quantity)
	assert.Len(t, s.orders, stock)
}

func TestGetOrder_AccessControl(t *testing.T) {
	s := newMemStore()
	o := s.addOrder(model.Order{BuyerID: 1, SellerID: 2, Status: model.OrderStatusPending, TotalAmount: price("10.00")})

	uc, _, _ := newOrderFixture(s)

	//買い手・売り手・管理者はアクセスできる
	for _, tc := range []struct {
		userID int64
		role   model.Role
	}{
		{1, model.RoleBuyer},
		{2, model.RoleSeller},
		{99, model.RoleAdmin},
	} {
		out, err := uc.GetOrder(context.Background(), tc.userID, tc.role, o.ID)
		require.NoError(t, err)
		assert.Equal(t, o.ID, out.ID)
	}

	//無関係の利用者は弾かれる
	_, err := uc.GetOrder(context.Background(), 42, model.RoleBuyer, o.ID)
	var ownership *usecase.OwnershipError
	assert.ErrorAs(t, err, &ownership)
}
