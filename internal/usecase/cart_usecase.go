package usecase

import (
	"context"
	"errors"

	"unimarket/internal/domain/model"
	repo "unimarket/internal/repository"

	"github.com/shopspring/decimal"
)

// CartUsecase はカート operations（追加・数量変更・削除・一覧）。
// 注文確定時の検証はCartSnapshotReader側で改めて行う。
type CartUsecase struct {
	cartItems repo.CartItemRepository
	products  repo.ProductRepository
	variants  repo.VariantRepository
}

func NewCartUsecase(
	cartItems repo.CartItemRepository,
	products repo.ProductRepository,
	variants repo.VariantRepository,
) *CartUsecase {
	return &CartUsecase{
		cartItems: cartItems,
		products:  products,
		variants:  variants,
	}
}

type CartLineResponse struct {
	ID           int64           `json:"id"`
	ProductID    int64           `json:"product_id"`
	VariantID    *int64          `json:"variant_id"`
	Name         string          `json:"name"`
	Image        string          `json:"image"`
	VariantSize  string          `json:"variant_size"`
	VariantColor string          `json:"variant_color"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	Quantity     int64           `json:"quantity"`
	Subtotal     decimal.Decimal `json:"subtotal"`
}

type CartResponse struct {
	Items []CartLineResponse `json:"items"`
	Total decimal.Decimal    `json:"total"`
}

type AddToCartInput struct {
	ProductID int64
	VariantID *int64
	Quantity  int64
}

// GetCart はカート内容と現在価格での小計・合計を返す。
// カートの価格は常にライブ（確定時の価格はOrderItemに固定される）。
func (u *CartUsecase) GetCart(ctx context.Context, userID int64) (CartResponse, error) {
	lines, err := u.cartItems.ListByUserID(ctx, userID)
	if err != nil {
		return CartResponse{}, err
	}

	out := CartResponse{Items: make([]CartLineResponse, 0, len(lines)), Total: decimal.Zero}
	for _, line := range lines {
		p, err := u.products.FindByID(ctx, line.ProductID)
		if errors.Is(err, repo.ErrNotFound) {
			//商品が消えた明細は表示から落とす（確定時に改めて弾かれる）
			continue
		}
		if err != nil {
			return CartResponse{}, err
		}

		item := CartLineResponse{
			ID:        line.ID,
			ProductID: p.ID,
			VariantID: line.VariantID,
			Name:      p.Name,
			Image:     p.FirstImage(),
			UnitPrice: p.Price,
			Quantity:  line.Quantity,
		}

		if line.VariantID != nil {
			v, err := u.variants.FindByID(ctx, *line.VariantID)
			if err != nil && !errors.Is(err, repo.ErrNotFound) {
				return CartResponse{}, err
			}
			if err == nil {
				item.UnitPrice = v.EffectivePrice(p)
				item.VariantSize = v.Size
				item.VariantColor = v.Color
			}
		}

		item.Subtotal = item.UnitPrice.Mul(decimal.NewFromInt(line.Quantity))
		out.Total = out.Total.Add(item.Subtotal)
		out.Items = append(out.Items, item)
	}

	return out, nil
}

// AddToCart は同一商品・同一バリエーションの明細があれば数量を加算する。
func (u *CartUsecase) AddToCart(ctx context.Context, userID int64, in AddToCartInput) (CartResponse, error) {
	if in.ProductID <= 0 {
		return CartResponse{}, &ValidationError{Message: "invalid product_id"}
	}
	if in.Quantity < 1 {
		return CartResponse{}, &ValidationError{Message: "invalid quantity"}
	}

	p, err := u.products.FindByID(ctx, in.ProductID)
	if errors.Is(err, repo.ErrNotFound) {
		return CartResponse{}, &NotFoundError{Resource: "product", ID: in.ProductID}
	}
	if err != nil {
		return CartResponse{}, err
	}

	if p.Status != model.ProductStatusApproved {
		return CartResponse{}, &ValidationError{Message: "product is not available"}
	}
	//自分の商品は買えない
	if p.SellerID == userID {
		return CartResponse{}, &ValidationError{Message: "you cannot add your own product to cart"}
	}

	available, err := u.availableStock(ctx, p, in.VariantID)
	if err != nil {
		return CartResponse{}, err
	}

	existing, err := u.cartItems.FindByUserProductVariant(ctx, userID, in.ProductID, in.VariantID)
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		return CartResponse{}, err
	}

	newQty := in.Quantity
	if err == nil {
		newQty = existing.Quantity + in.Quantity
	}

	//カート時点でも在庫を天井にする（最終確認は引当時）
	if newQty > available {
		return CartResponse{}, &InsufficientStockError{
			ProductID:   p.ID,
			VariantID:   in.VariantID,
			ProductName: p.Name,
			Available:   available,
			Requested:   newQty,
		}
	}

	if existing.ID != 0 {
		if err := u.cartItems.UpdateQuantity(ctx, existing.ID, newQty); err != nil {
			return CartResponse{}, err
		}
	} else {
		if _, err := u.cartItems.Create(ctx, model.CartItem{
			UserID:    userID,
			ProductID: in.ProductID,
			VariantID: in.VariantID,
			Quantity:  in.Quantity,
		}); err != nil {
			return CartResponse{}, err
		}
	}

	return u.GetCart(ctx, userID)
}

// UpdateCartItem は数量を変更する。0以下は削除扱い。
func (u *CartUsecase) UpdateCartItem(ctx context.Context, userID int64, cartItemID int64, qty int64) (CartResponse, error) {
	line, err := u.ownedLine(ctx, userID, cartItemID)
	if err != nil {
		return CartResponse{}, err
	}

	if qty <= 0 {
		if err := u.cartItems.DeleteByID(ctx, line.ID); err != nil {
			return CartResponse{}, err
		}
		return u.GetCart(ctx, userID)
	}

	p, err := u.products.FindByID(ctx, line.ProductID)
	if errors.Is(err, repo.ErrNotFound) {
		return CartResponse{}, &NotFoundError{Resource: "product", ID: line.ProductID}
	}
	if err != nil {
		return CartResponse{}, err
	}

	available, err := u.availableStock(ctx, p, line.VariantID)
	if err != nil {
		return CartResponse{}, err
	}
	if qty > available {
		return CartResponse{}, &InsufficientStockError{
			ProductID:   p.ID,
			VariantID:   line.VariantID,
			ProductName: p.Name,
			Available:   available,
			Requested:   qty,
		}
	}

	if err := u.cartItems.UpdateQuantity(ctx, line.ID, qty); err != nil {
		return CartResponse{}, err
	}
	return u.GetCart(ctx, userID)
}

func (u *CartUsecase) RemoveFromCart(ctx context.Context, userID int64, cartItemID int64) error {
	line, err := u.ownedLine(ctx, userID, cartItemID)
	if err != nil {
		return err
	}
	return u.cartItems.DeleteByID(ctx, line.ID)
}

func (u *CartUsecase) ownedLine(ctx context.Context, userID int64, cartItemID int64) (model.CartItem, error) {
	line, err := u.cartItems.FindByID(ctx, cartItemID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.CartItem{}, &NotFoundError{Resource: "cart item", ID: cartItemID}
	}
	if err != nil {
		return model.CartItem{}, err
	}
	if line.UserID != userID {
		return model.CartItem{}, &OwnershipError{Resource: "cart item", ID: cartItemID}
	}
	return line, nil
}

// 商品 or バリエーションの在庫数を解決。
// バリエーションを持つ商品はバリエーション指定が必須。
func (u *CartUsecase) availableStock(ctx context.Context, p model.Product, variantID *int64) (int64, error) {
	if variantID != nil {
		v, err := u.variants.FindByID(ctx, *variantID)
		if errors.Is(err, repo.ErrNotFound) {
			return 0, &NotFoundError{Resource: "variant", ID: *variantID}
		}
		if err != nil {
			return 0, err
		}
		if v.ProductID != p.ID {
			return 0, &ValidationError{Message: "variant does not belong to this product"}
		}
		return v.Quantity, nil
	}

	count, err := u.variants.CountByProductID(ctx, p.ID)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		return 0, &ValidationError{Message: "please select a variant (size/color)"}
	}
	return p.Quantity, nil
}
