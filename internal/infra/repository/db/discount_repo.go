package db

import (
	"context"
	"strings"

	"github.com/RoyceAzure/lab/storefront/internal/domain/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type DiscountRepo struct {
	db *gorm.DB
}

func NewDiscountRepo(db *gorm.DB) *DiscountRepo {
	return &DiscountRepo{db: db}
}

func (r *DiscountRepo) CreateDiscount(ctx context.Context, discount *model.Discount) error {
	return r.db.WithContext(ctx).Create(discount).Error
}

// GetDiscountByCode 不分大小寫
func (r *DiscountRepo) GetDiscountByCode(ctx context.Context, code string) (*model.Discount, error) {
	var discount model.Discount
	err := r.db.WithContext(ctx).
		First(&discount, "lower(code) = ?", strings.ToLower(code)).Error
	if err != nil {
		return nil, translateNotFound(err)
	}
	return &discount, nil
}

// GetDiscountByCodeForUpdate 鎖定折扣列，同一折扣碼的結帳在此序列化
func (r *DiscountRepo) GetDiscountByCodeForUpdate(ctx context.Context, code string) (*model.Discount, error) {
	var discount model.Discount
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&discount, "lower(code) = ?", strings.ToLower(code)).Error
	if err != nil {
		return nil, translateNotFound(err)
	}
	return &discount, nil
}

func (r *DiscountRepo) IncrementDiscountUsage(ctx context.Context, discountID uint) (bool, error) {
	result := r.db.WithContext(ctx).Model(&model.Discount{}).
		Where("id = ? AND (max_uses IS NULL OR used_count < max_uses)", discountID).
		Updates(map[string]any{
			"used_count": gorm.Expr("used_count + 1"),
			"updated_at": gorm.Expr("now()"),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
