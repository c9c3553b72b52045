package db

import (
	"context"

	"github.com/RoyceAzure/lab/storefront/internal/domain/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CreateProductIfNotExists code 已存在時不做任何事，回傳是否新增
func (s *ProductRepo) CreateProductIfNotExists(ctx context.Context, product *model.Product) (bool, error) {
	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(product)
	return result.RowsAffected == 1, result.Error
}

func (r *DiscountRepo) CreateDiscountIfNotExists(ctx context.Context, discount *model.Discount) (bool, error) {
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(discount)
	return result.RowsAffected == 1, result.Error
}

type SeedResult struct {
	Products  int
	Discounts int
}

// Seed 在同一筆交易寫入初始資料，可重複執行
func (s *PgStore) Seed(ctx context.Context, products []model.Product, discounts []model.Discount) (SeedResult, error) {
	var res SeedResult
	err := s.dao.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := NewQueries(tx)
		for i := range products {
			created, err := q.CreateProductIfNotExists(ctx, &products[i])
			if err != nil {
				return err
			}
			if created {
				res.Products++
			}
		}
		for i := range discounts {
			created, err := q.CreateDiscountIfNotExists(ctx, &discounts[i])
			if err != nil {
				return err
			}
			if created {
				res.Discounts++
			}
		}
		return nil
	})
	return res, err
}
