package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/RoyceAzure/lab/storefront/internal/domain/model"
	"github.com/RoyceAzure/lab/storefront/internal/infra/repository/db"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type PlaceOrderRequest struct {
	UserID          int
	Lines           []CartLine
	ShippingAddress string
	DiscountCode    string
	IdempotencyKey  string
}

type PlaceOrderResult struct {
	OrderID        string
	TotalAmount    decimal.Decimal
	DiscountAmount decimal.Decimal
	Replayed       bool
}

type DiscountQuote struct {
	Code           string
	Subtotal       decimal.Decimal
	DiscountAmount decimal.Decimal
	Total          decimal.Decimal
}

type ICheckoutService interface {
	PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*PlaceOrderResult, error)
	PreviewDiscount(ctx context.Context, userID int, code string, lines []CartLine) (*DiscountQuote, error)
}

// IdempotencyCache 交易提交後才寫入，miss 時回傳 found = false
type IdempotencyCache interface {
	GetOrderID(ctx context.Context, userID int, key string) (orderID string, found bool, err error)
	SetOrderID(ctx context.Context, userID int, key string, orderID string) error
}

type CheckoutRecorder interface {
	RecordCheckout(outcome string, elapsed time.Duration)
}

type CheckoutOption func(*CheckoutService)

func WithIdempotencyCache(cache IdempotencyCache) CheckoutOption {
	return func(s *CheckoutService) {
		s.cache = cache
	}
}

func WithCheckoutRecorder(recorder CheckoutRecorder) CheckoutOption {
	return func(s *CheckoutService) {
		s.recorder = recorder
	}
}

func WithClock(now func() time.Time) CheckoutOption {
	return func(s *CheckoutService) {
		s.now = now
	}
}

// CheckoutService 一次結帳 = 一個資料庫交易
// Started -> Priced -> Reserved -> Discounted -> Persisted，任何一步失敗整筆 rollback
type CheckoutService struct {
	store      db.Store
	assembler  *OrderAssembler
	ledger     *InventoryLedger
	evaluator  *DiscountEvaluator
	cache      IdempotencyCache
	recorder   CheckoutRecorder
	orderTopic string
	now        func() time.Time
	logger     zerolog.Logger
}

func NewCheckoutService(store db.Store, orderTopic string, logger zerolog.Logger, opts ...CheckoutOption) *CheckoutService {
	s := &CheckoutService{
		store:      store,
		assembler:  NewOrderAssembler(),
		ledger:     NewInventoryLedger(),
		orderTopic: orderTopic,
		now:        time.Now,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.evaluator = NewDiscountEvaluator(s.now)
	return s
}

func (s *CheckoutService) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*PlaceOrderResult, error) {
	start := time.Now()
	result, err := s.placeOrder(ctx, req)
	elapsed := time.Since(start)

	outcome := CheckoutOutcome(result, err)
	if s.recorder != nil {
		s.recorder.RecordCheckout(outcome, elapsed)
	}

	level := zerolog.InfoLevel
	if outcome == OutcomeError {
		level = zerolog.ErrorLevel
	} else if err != nil {
		level = zerolog.WarnLevel
	}
	event := s.logger.WithLevel(level).Err(err).
		Int("user_id", req.UserID).
		Str("outcome", outcome).
		Dur("elapsed", elapsed)
	if result != nil {
		event = event.Str("order_id", result.OrderID).
			Str("total_amount", result.TotalAmount.StringFixed(2))
	}
	event.Msg("place order")

	return result, err
}

func (s *CheckoutService) placeOrder(ctx context.Context, req PlaceOrderRequest) (*PlaceOrderResult, error) {
	if strings.TrimSpace(req.ShippingAddress) == "" {
		return nil, ErrShippingAddressRequired
	}

	if req.IdempotencyKey != "" {
		if result, err := s.replayFromCache(ctx, req); err != nil || result != nil {
			return result, err
		}
	}

	var result *PlaceOrderResult
	err := s.store.ExecTx(ctx, func(q db.Querier) error {
		if req.IdempotencyKey != "" {
			existing, err := q.GetOrderByIdempotencyKey(ctx, req.UserID, req.IdempotencyKey)
			if err == nil {
				result = replayResult(existing)
				return nil
			}
			if !errors.Is(err, db.ErrNotFound) {
				return fmt.Errorf("get order by idempotency key: %w", err)
			}
		}

		// Priced
		products, err := q.GetProductsByIDs(ctx, ProductIDs(req.Lines))
		if err != nil {
			return fmt.Errorf("load catalog: %w", err)
		}
		cart, err := s.assembler.Assemble(CatalogFrom(products), req.Lines)
		if err != nil {
			return err
		}

		// Reserved
		if err := s.ledger.ReserveAll(ctx, q, cart.ReserveLines()); err != nil {
			return err
		}

		// Discounted
		discountAmount := decimal.Zero
		var discountCode *string
		if code := strings.TrimSpace(req.DiscountCode); code != "" {
			discount, err := s.evaluator.Validate(ctx, q, code, cart.Total, req.UserID)
			if err != nil {
				return err
			}
			discountAmount = s.evaluator.Apply(discount, cart.Total)
			if err := s.evaluator.Consume(ctx, q, discount); err != nil {
				return err
			}
			discountCode = &discount.Code
		}

		// Persisted
		order := s.newOrder(req, cart, discountCode, discountAmount)
		if err := q.CreateOrder(ctx, order); err != nil {
			return fmt.Errorf("create order: %w", err)
		}
		if err := s.enqueueOrderPlaced(ctx, q, order); err != nil {
			return err
		}

		result = &PlaceOrderResult{
			OrderID:        order.OrderID,
			TotalAmount:    order.TotalAmount,
			DiscountAmount: order.DiscountAmount,
		}
		return nil
	})
	if err != nil {
		// 同一個 key 的並行請求，由先提交者勝出
		if req.IdempotencyKey != "" && db.IsUniqueViolation(err) {
			return s.replayFromStore(ctx, req)
		}
		return nil, translateTxError(err)
	}

	if req.IdempotencyKey != "" && !result.Replayed {
		s.rememberKey(ctx, req, result.OrderID)
	}
	return result, nil
}

func (s *CheckoutService) newOrder(req PlaceOrderRequest, cart *PricedCart, discountCode *string, discountAmount decimal.Decimal) *model.Order {
	orderID := uuid.NewString()
	order := &model.Order{
		OrderID:         orderID,
		UserID:          req.UserID,
		Status:          model.OrderStatusPending,
		TotalAmount:     cart.Total.Sub(discountAmount),
		ShippingAddress: strings.TrimSpace(req.ShippingAddress),
		DiscountCode:    discountCode,
		DiscountAmount:  discountAmount,
		OrderItems:      cart.OrderItems(orderID),
		BaseModel: model.BaseModel{
			CreatedAt: s.now(),
		},
	}
	if req.IdempotencyKey != "" {
		key := req.IdempotencyKey
		order.IdempotencyKey = &key
	}
	return order
}

func (s *CheckoutService) enqueueOrderPlaced(ctx context.Context, q db.Querier, order *model.Order) error {
	eventID := uuid.NewString()
	payload, err := json.Marshal(model.NewOrderPlacedEvent(eventID, order))
	if err != nil {
		return fmt.Errorf("marshal order placed event: %w", err)
	}
	if err := q.InsertOutbox(ctx, &model.OutboxRecord{
		EventID: eventID,
		Topic:   s.orderTopic,
		Key:     order.OrderID,
		Payload: payload,
	}); err != nil {
		return fmt.Errorf("insert outbox: %w", err)
	}
	return nil
}

// replayFromCache cache 錯誤只記錄，改由資料庫判斷
func (s *CheckoutService) replayFromCache(ctx context.Context, req PlaceOrderRequest) (*PlaceOrderResult, error) {
	if s.cache == nil {
		return nil, nil
	}
	orderID, found, err := s.cache.GetOrderID(ctx, req.UserID, req.IdempotencyKey)
	if err != nil {
		s.logger.Warn().Err(err).Msg("idempotency cache lookup failed")
		return nil, nil
	}
	if !found {
		return nil, nil
	}

	var result *PlaceOrderResult
	err = s.store.ReadTx(ctx, func(q db.Querier) error {
		order, err := q.GetOrderByID(ctx, orderID)
		if err != nil {
			return err
		}
		if order.UserID != req.UserID {
			return db.ErrNotFound
		}
		result = replayResult(order)
		return nil
	})
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, nil
		}
		return nil, translateTxError(err)
	}
	return result, nil
}

func (s *CheckoutService) replayFromStore(ctx context.Context, req PlaceOrderRequest) (*PlaceOrderResult, error) {
	var result *PlaceOrderResult
	err := s.store.ReadTx(ctx, func(q db.Querier) error {
		order, err := q.GetOrderByIdempotencyKey(ctx, req.UserID, req.IdempotencyKey)
		if err != nil {
			return err
		}
		result = replayResult(order)
		return nil
	})
	if err != nil {
		return nil, translateTxError(err)
	}
	s.rememberKey(ctx, req, result.OrderID)
	return result, nil
}

func (s *CheckoutService) rememberKey(ctx context.Context, req PlaceOrderRequest, orderID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetOrderID(ctx, req.UserID, req.IdempotencyKey, orderID); err != nil {
		s.logger.Warn().Err(err).Str("order_id", orderID).Msg("idempotency cache write failed")
	}
}

// PreviewDiscount 購物車頁報價，唯讀交易且不消耗折扣次數
func (s *CheckoutService) PreviewDiscount(ctx context.Context, userID int, code string, lines []CartLine) (*DiscountQuote, error) {
	var quote *DiscountQuote
	err := s.store.ReadTx(ctx, func(q db.Querier) error {
		products, err := q.GetProductsByIDs(ctx, ProductIDs(lines))
		if err != nil {
			return fmt.Errorf("load catalog: %w", err)
		}
		cart, err := s.assembler.Assemble(CatalogFrom(products), lines)
		if err != nil {
			return err
		}
		discount, err := s.evaluator.Lookup(ctx, q, code, cart.Total, userID)
		if err != nil {
			return err
		}
		amount := s.evaluator.Apply(discount, cart.Total)
		quote = &DiscountQuote{
			Code:           discount.Code,
			Subtotal:       cart.Total,
			DiscountAmount: amount,
			Total:          cart.Total.Sub(amount),
		}
		return nil
	})
	if err != nil {
		return nil, translateTxError(err)
	}
	return quote, nil
}

func replayResult(order *model.Order) *PlaceOrderResult {
	return &PlaceOrderResult{
		OrderID:        order.OrderID,
		TotalAmount:    order.TotalAmount,
		DiscountAmount: order.DiscountAmount,
		Replayed:       true,
	}
}

const (
	OutcomeSuccess             = "success"
	OutcomeReplayed            = "replayed"
	OutcomeProductNotFound     = "product_not_found"
	OutcomeInvalidQuantity     = "invalid_quantity"
	OutcomeInsufficientStock   = "insufficient_stock"
	OutcomeInvalidDiscountCode = "invalid_discount_code"
	OutcomePersistenceConflict = "persistence_conflict"
	OutcomeInvalidRequest      = "invalid_request"
	OutcomeError               = "error"
)

// CheckoutOutcome 轉換為 metrics label
func CheckoutOutcome(result *PlaceOrderResult, err error) string {
	switch {
	case err == nil && result != nil && result.Replayed:
		return OutcomeReplayed
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, ErrProductNotFound):
		return OutcomeProductNotFound
	case errors.Is(err, ErrInvalidQuantity):
		return OutcomeInvalidQuantity
	case errors.Is(err, ErrInsufficientStock):
		return OutcomeInsufficientStock
	case errors.Is(err, ErrInvalidDiscountCode):
		return OutcomeInvalidDiscountCode
	case errors.Is(err, ErrPersistenceConflict):
		return OutcomePersistenceConflict
	case errors.Is(err, ErrShippingAddressRequired):
		return OutcomeInvalidRequest
	default:
		return OutcomeError
	}
}

// translateTxError 可重送的資料庫錯誤轉為 PersistenceConflictError，其餘原樣回傳
func translateTxError(err error) error {
	if err == nil {
		return nil
	}
	var conflict *PersistenceConflictError
	if errors.As(err, &conflict) {
		return err
	}
	if db.IsRetryable(err) {
		return &PersistenceConflictError{Err: err}
	}
	return err
}
