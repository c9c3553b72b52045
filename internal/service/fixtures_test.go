package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/RoyceAzure/lab/storefront/internal/domain/model"
	"github.com/shopspring/decimal"
)

const (
	productP1 uint = 1
	productP2 uint = 2
	productP3 uint = 3
)

var fixedNow = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func intPtr(v int) *int {
	return &v
}

func seedStore() *memStore {
	store := newMemStore()
	store.addProduct(model.Product{ProductID: productP1, Code: "P1", Name: "P1", Price: dec("10.00"), Stock: 10})
	store.addProduct(model.Product{ProductID: productP2, Code: "P2", Name: "P2", Price: dec("25.00"), Stock: 10})
	store.addProduct(model.Product{ProductID: productP3, Code: "P3", Name: "P3", Price: dec("5.00"), Stock: 1})

	expired := time.Date(2020, 12, 31, 23, 59, 59, 0, time.UTC)
	store.addDiscount(model.Discount{
		ID:             1,
		Code:           "SAVE10",
		Kind:           model.DiscountKindPercentage,
		Percentage:     decimal.NewNullDecimal(dec("10")),
		MinOrderAmount: decimal.NewNullDecimal(dec("20.00")),
		Active:         true,
	})
	store.addDiscount(model.Discount{
		ID:         2,
		Code:       "EXPIRED2020",
		Kind:       model.DiscountKindPercentage,
		Percentage: decimal.NewNullDecimal(dec("10")),
		ExpiresAt:  &expired,
		Active:     true,
	})
	store.addDiscount(model.Discount{
		ID:          3,
		Code:        "ONCE",
		Kind:        model.DiscountKindFixed,
		FixedAmount: decimal.NewNullDecimal(dec("5.00")),
		MaxUses:     intPtr(1),
		Active:      true,
	})
	store.addDiscount(model.Discount{
		ID:               4,
		Code:             "SINGLE",
		Kind:             model.DiscountKindFixed,
		FixedAmount:      decimal.NewNullDecimal(dec("3.00")),
		SingleUsePerUser: true,
		Active:           true,
	})
	store.addDiscount(model.Discount{
		ID:          5,
		Code:        "OFF",
		Kind:        model.DiscountKindFixed,
		FixedAmount: decimal.NewNullDecimal(dec("1.00")),
		Active:      false,
	})
	store.addDiscount(model.Discount{
		ID:          6,
		Code:        "BIG",
		Kind:        model.DiscountKindFixed,
		FixedAmount: decimal.NewNullDecimal(dec("100.00")),
		Active:      true,
	})
	return store
}

// 10.00 x 2 + 25.00 x 1 = 45.00
func standardCart() []CartLine {
	return []CartLine{
		{ProductID: productP1, Quantity: 2},
		{ProductID: productP2, Quantity: 1},
	}
}

type fakeIdempotencyCache struct {
	mu      sync.Mutex
	entries map[string]string
	getErr  error
}

func newFakeIdempotencyCache() *fakeIdempotencyCache {
	return &fakeIdempotencyCache{entries: map[string]string{}}
}

func cacheKey(userID int, key string) string {
	return fmt.Sprintf("%d:%s", userID, key)
}

func (c *fakeIdempotencyCache) GetOrderID(ctx context.Context, userID int, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return "", false, c.getErr
	}
	orderID, ok := c.entries[cacheKey(userID, key)]
	return orderID, ok, nil
}

func (c *fakeIdempotencyCache) SetOrderID(ctx context.Context, userID int, key string, orderID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cacheKey(userID, key)] = orderID
	return nil
}

type fakeRecorder struct {
	mu       sync.Mutex
	outcomes []string
}

func (r *fakeRecorder) RecordCheckout(outcome string, elapsed time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
}
