package db

import (
	"context"
	"strings"

	"github.com/RoyceAzure/lab/storefront/internal/domain/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type OrderRepo struct {
	db *gorm.DB
}

func NewOrderRepo(db *gorm.DB) *OrderRepo {
	return &OrderRepo{db: db}
}

// CreateOrder 連同 OrderItems 一起寫入
func (r *OrderRepo) CreateOrder(ctx context.Context, order *model.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *OrderRepo) GetOrderByID(ctx context.Context, orderID string) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).
		Preload("OrderItems", func(db *gorm.DB) *gorm.DB {
			return db.Order("product_id")
		}).
		First(&order, "order_id = ?", orderID).Error
	if err != nil {
		return nil, translateNotFound(err)
	}
	return &order, nil
}

func (r *OrderRepo) GetOrderByIdempotencyKey(ctx context.Context, userID int, key string) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).
		Preload("OrderItems").
		Where("user_id = ? AND idempotency_key = ?", userID, key).
		First(&order).Error
	if err != nil {
		return nil, translateNotFound(err)
	}
	return &order, nil
}

// ListOrders 依建立時間新到舊
func (r *OrderRepo) ListOrders(ctx context.Context, filter OrderFilter) ([]model.Order, error) {
	var orders []model.Order
	query := r.db.WithContext(ctx).Preload("OrderItems")
	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}
	err := query.Order("created_at DESC, order_id").Find(&orders).Error
	return orders, err
}

// LockOrder 鎖定訂單列，狀態轉換期間防止並行修改
func (r *OrderRepo) LockOrder(ctx context.Context, orderID string) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&order, "order_id = ?", orderID).Error
	if err != nil {
		return nil, translateNotFound(err)
	}

	var items []model.OrderItem
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("product_id").
		Find(&items).Error; err != nil {
		return nil, err
	}
	order.OrderItems = items
	return &order, nil
}

func (r *OrderRepo) UpdateOrderStatus(ctx context.Context, orderID string, status model.OrderStatus) error {
	result := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("order_id = ?", orderID).
		Updates(map[string]any{
			"status":     status,
			"updated_at": gorm.Expr("now()"),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *OrderRepo) CountUserOrdersWithDiscount(ctx context.Context, userID int, code string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("user_id = ? AND lower(discount_code) = ? AND status <> ?",
			userID, strings.ToLower(code), model.OrderStatusCancelled).
		Count(&count).Error
	return count, err
}
