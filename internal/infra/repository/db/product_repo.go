package db

import (
	"context"

	"github.com/RoyceAzure/lab/storefront/internal/domain/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProductRepo struct {
	db *gorm.DB
}

func NewProductRepo(db *gorm.DB) *ProductRepo {
	return &ProductRepo{db: db}
}

// Create - 創建商品
func (s *ProductRepo) CreateProduct(ctx context.Context, product *model.Product) error {
	return s.db.WithContext(ctx).Create(product).Error
}

// Read - 根據ID查詢商品
func (s *ProductRepo) GetProductByID(ctx context.Context, id uint) (*model.Product, error) {
	var product model.Product
	err := s.db.WithContext(ctx).First(&product, "product_id = ?", id).Error
	if err != nil {
		return nil, translateNotFound(err)
	}
	return &product, nil
}

// Read - 批次查詢，不存在的 id 不會出現在結果中
func (s *ProductRepo) GetProductsByIDs(ctx context.Context, productIDs []uint) ([]model.Product, error) {
	var products []model.Product
	if len(productIDs) == 0 {
		return products, nil
	}
	err := s.db.WithContext(ctx).
		Where("product_id IN ?", productIDs).
		Order("product_id").
		Find(&products).Error
	return products, err
}

func (s *ProductRepo) LockProductStock(ctx context.Context, productID uint) (int, error) {
	var product model.Product
	err := s.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("product_id", "stock").
		First(&product, "product_id = ?", productID).Error
	if err != nil {
		return 0, translateNotFound(err)
	}
	return product.Stock, nil
}

// Update - 扣減庫存，條件式更新，庫存不足時不影響任何列
func (s *ProductRepo) DeductProductStock(ctx context.Context, productID uint, quantity int) (bool, error) {
	result := s.db.WithContext(ctx).Model(&model.Product{}).
		Where("product_id = ? AND stock >= ?", productID, quantity).
		Updates(map[string]any{
			"stock":      gorm.Expr("stock - ?", quantity),
			"updated_at": gorm.Expr("now()"),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// Update - 增加庫存
func (s *ProductRepo) AddProductStock(ctx context.Context, productID uint, quantity int) (bool, error) {
	result := s.db.WithContext(ctx).Model(&model.Product{}).
		Where("product_id = ?", productID).
		Updates(map[string]any{
			"stock":      gorm.Expr("stock + ?", quantity),
			"updated_at": gorm.Expr("now()"),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
