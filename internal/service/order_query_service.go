package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/RoyceAzure/lab/storefront/internal/domain/model"
	"github.com/RoyceAzure/lab/storefront/internal/infra/repository/db"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

type ListOrdersQuery struct {
	UserID *int
	Status *model.OrderStatus
	Limit  int
	Offset int
}

type IOrderQueryService interface {
	GetOrder(ctx context.Context, orderID string, principal model.Principal) (*model.Order, error)
	ListOrders(ctx context.Context, principal model.Principal, query ListOrdersQuery) ([]model.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID string, status model.OrderStatus, principal model.Principal) (*model.Order, error)
}

// OrderAuthorizer 決定呼叫者能否查看或管理訂單
type OrderAuthorizer interface {
	CanView(principal model.Principal, order *model.Order) bool
	CanManage(principal model.Principal) bool
}

// OwnerOrAdmin 擁有者可查看自己的訂單，admin 可查看及管理所有訂單
type OwnerOrAdmin struct{}

func (OwnerOrAdmin) CanView(principal model.Principal, order *model.Order) bool {
	return principal.IsAdmin() || principal.UserID == order.UserID
}

func (OwnerOrAdmin) CanManage(principal model.Principal) bool {
	return principal.IsAdmin()
}

// statusTransitions 允許的狀態轉換，delivered / cancelled 為終止狀態
var statusTransitions = map[model.OrderStatus][]model.OrderStatus{
	model.OrderStatusPending:    {model.OrderStatusProcessing, model.OrderStatusCancelled},
	model.OrderStatusProcessing: {model.OrderStatusShipped, model.OrderStatusCancelled},
	model.OrderStatusShipped:    {model.OrderStatusDelivered},
}

func CanTransition(from, to model.OrderStatus) bool {
	for _, next := range statusTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type OrderQueryService struct {
	store      db.Store
	authorizer OrderAuthorizer
	ledger     *InventoryLedger
	orderTopic string
	now        func() time.Time
	logger     zerolog.Logger
}

func NewOrderQueryService(store db.Store, authorizer OrderAuthorizer, orderTopic string, logger zerolog.Logger) *OrderQueryService {
	if authorizer == nil {
		authorizer = OwnerOrAdmin{}
	}
	return &OrderQueryService{
		store:      store,
		authorizer: authorizer,
		ledger:     NewInventoryLedger(),
		orderTopic: orderTopic,
		now:        time.Now,
		logger:     logger,
	}
}

func (s *OrderQueryService) GetOrder(ctx context.Context, orderID string, principal model.Principal) (*model.Order, error) {
	var order *model.Order
	err := s.store.ReadTx(ctx, func(q db.Querier) error {
		var err error
		order, err = q.GetOrderByID(ctx, orderID)
		return err
	})
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, translateTxError(err)
	}
	if !s.authorizer.CanView(principal, order) {
		return nil, ErrPermissionDenied
	}
	return order, nil
}

// ListOrders 非 admin 只能查詢自己的訂單
func (s *OrderQueryService) ListOrders(ctx context.Context, principal model.Principal, query ListOrdersQuery) ([]model.Order, error) {
	filter := db.OrderFilter{
		UserID: query.UserID,
		Status: query.Status,
		Limit:  query.Limit,
		Offset: query.Offset,
	}
	if !s.authorizer.CanManage(principal) {
		if query.UserID != nil && *query.UserID != principal.UserID {
			return nil, ErrPermissionDenied
		}
		userID := principal.UserID
		filter.UserID = &userID
	}
	if filter.Limit <= 0 {
		filter.Limit = DefaultListLimit
	}
	if filter.Limit > MaxListLimit {
		filter.Limit = MaxListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	var orders []model.Order
	err := s.store.ReadTx(ctx, func(q db.Querier) error {
		var err error
		orders, err = q.ListOrders(ctx, filter)
		return err
	})
	if err != nil {
		return nil, translateTxError(err)
	}
	return orders, nil
}

// UpdateOrderStatus 取消訂單時在同一交易內歸還庫存
func (s *OrderQueryService) UpdateOrderStatus(ctx context.Context, orderID string, status model.OrderStatus, principal model.Principal) (*model.Order, error) {
	if !s.authorizer.CanManage(principal) {
		return nil, ErrPermissionDenied
	}
	if !model.IsValidOrderStatus(string(status)) {
		return nil, &InvalidStatusTransitionError{To: status}
	}

	var order *model.Order
	err := s.store.ExecTx(ctx, func(q db.Querier) error {
		var err error
		order, err = q.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}

		from := order.Status
		if !CanTransition(from, status) {
			return &InvalidStatusTransitionError{From: from, To: status}
		}

		if status == model.OrderStatusCancelled {
			lines := make([]StockLine, 0, len(order.OrderItems))
			for _, item := range order.OrderItems {
				lines = append(lines, StockLine{ProductID: item.ProductID, Quantity: item.Quantity})
			}
			if err := s.ledger.ReleaseAll(ctx, q, lines); err != nil {
				return err
			}
		}

		if err := q.UpdateOrderStatus(ctx, orderID, status); err != nil {
			return err
		}
		order.Status = status

		eventID := uuid.NewString()
		payload, err := json.Marshal(model.NewOrderStatusChangedEvent(eventID, order, from, s.now()))
		if err != nil {
			return fmt.Errorf("marshal status changed event: %w", err)
		}
		return q.InsertOutbox(ctx, &model.OutboxRecord{
			EventID: eventID,
			Topic:   s.orderTopic,
			Key:     order.OrderID,
			Payload: payload,
		})
	})
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, translateTxError(err)
	}

	s.logger.Info().
		Str("order_id", orderID).
		Str("status", string(status)).
		Int("admin_id", principal.UserID).
		Msg("order status updated")
	return order, nil
}
