package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/RoyceAzure/lab/storefront/internal/infra/repository/db"
)

type StockLine struct {
	ProductID uint
	Quantity  int
}

// InventoryLedger 庫存變動只能在呼叫端的交易內進行
type InventoryLedger struct{}

func NewInventoryLedger() *InventoryLedger {
	return &InventoryLedger{}
}

// Reserve 先鎖定商品列再檢查庫存，庫存不足時不做任何修改
func (l *InventoryLedger) Reserve(ctx context.Context, q db.Querier, productID uint, quantity int) error {
	if quantity <= 0 {
		return &InvalidQuantityError{ProductID: productID, Quantity: quantity}
	}

	available, err := q.LockProductStock(ctx, productID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return &ProductNotFoundError{ProductID: productID}
		}
		return fmt.Errorf("lock product %d: %w", productID, err)
	}
	if available < quantity {
		return &InsufficientStockError{ProductID: productID, Available: available, Requested: quantity}
	}

	ok, err := q.DeductProductStock(ctx, productID, quantity)
	if err != nil {
		return fmt.Errorf("deduct product %d: %w", productID, err)
	}
	if !ok {
		// 列已鎖定，正常不會發生
		return &InsufficientStockError{ProductID: productID, Available: available, Requested: quantity}
	}
	return nil
}

// ReserveAll 依 product id 升冪鎖定，避免並行結帳互相死結
func (l *InventoryLedger) ReserveAll(ctx context.Context, q db.Querier, lines []StockLine) error {
	for _, line := range sortedStockLines(lines) {
		if err := l.Reserve(ctx, q, line.ProductID, line.Quantity); err != nil {
			return err
		}
	}
	return nil
}

func (l *InventoryLedger) Release(ctx context.Context, q db.Querier, productID uint, quantity int) error {
	if quantity <= 0 {
		return &InvalidQuantityError{ProductID: productID, Quantity: quantity}
	}
	if _, err := q.LockProductStock(ctx, productID); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return &ProductNotFoundError{ProductID: productID}
		}
		return fmt.Errorf("lock product %d: %w", productID, err)
	}
	ok, err := q.AddProductStock(ctx, productID, quantity)
	if err != nil {
		return fmt.Errorf("release product %d: %w", productID, err)
	}
	if !ok {
		return &ProductNotFoundError{ProductID: productID}
	}
	return nil
}

func (l *InventoryLedger) ReleaseAll(ctx context.Context, q db.Querier, lines []StockLine) error {
	for _, line := range sortedStockLines(lines) {
		if err := l.Release(ctx, q, line.ProductID, line.Quantity); err != nil {
			return err
		}
	}
	return nil
}

func sortedStockLines(lines []StockLine) []StockLine {
	sorted := make([]StockLine, len(lines))
	copy(sorted, lines)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].ProductID < sorted[j].ProductID
	})
	return sorted
}
