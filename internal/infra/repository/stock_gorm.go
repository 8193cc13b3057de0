package repository

import (
	"context"
	"errors"

	"unimarket/internal/domain/model"
	repo "unimarket/internal/repository"

	"gorm.io/gorm"
)

type StockGormRepository struct {
	db *gorm.DB
}

func NewStockGormRepository(db *gorm.DB) *StockGormRepository {
	return &StockGormRepository{db: db}
}

// 在庫が足りるときだけ減らす。
// 条件付きUPDATE1発なので、同じ在庫を取り合う同時購入でも売り越さない。
func (r *StockGormRepository) DeductProductIfAvailable(ctx context.Context, productID int64, qty int64) (bool, int64, error) {
	res := r.db.WithContext(ctx).
		Model(&model.Product{}).
		Where("id = ? AND quantity >= ?", productID, qty).
		Update("quantity", gorm.Expr("quantity - ?", qty))

	if res.Error != nil {
		return false, 0, res.Error
	}
	if res.RowsAffected == 0 {
		//足りなかった場合は現在値を読み直してエラー情報に使う
		available, err := r.productQuantity(ctx, productID)
		if err != nil {
			return false, 0, err
		}
		return false, available, nil
	}
	return true, 0, nil
}

func (r *StockGormRepository) DeductVariantIfAvailable(ctx context.Context, variantID int64, qty int64) (bool, int64, error) {
	res := r.db.WithContext(ctx).
		Model(&model.ProductVariant{}).
		Where("id = ? AND quantity >= ?", variantID, qty).
		Update("quantity", gorm.Expr("quantity - ?", qty))

	if res.Error != nil {
		return false, 0, res.Error
	}
	if res.RowsAffected == 0 {
		available, err := r.variantQuantity(ctx, variantID)
		if err != nil {
			return false, 0, err
		}
		return false, available, nil
	}
	return true, 0, nil
}

func (r *StockGormRepository) productQuantity(ctx context.Context, productID int64) (int64, error) {
	var p model.Product
	err := r.db.WithContext(ctx).Select("quantity").Where("id = ?", productID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, repo.ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	return p.Quantity, nil
}

func (r *StockGormRepository) variantQuantity(ctx context.Context, variantID int64) (int64, error) {
	var v model.ProductVariant
	err := r.db.WithContext(ctx).Select("quantity").Where("id = ?", variantID).First(&v).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, repo.ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	return v.Quantity, nil
}
