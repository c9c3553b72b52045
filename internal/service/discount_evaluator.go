package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/RoyceAzure/lab/storefront/internal/domain/model"
	"github.com/RoyceAzure/lab/storefront/internal/infra/repository/db"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

type DiscountEvaluator struct {
	now func() time.Time
}

func NewDiscountEvaluator(now func() time.Time) *DiscountEvaluator {
	if now == nil {
		now = time.Now
	}
	return &DiscountEvaluator{now: now}
}

// Validate 鎖定折扣列後依序檢查，第一個未通過的檢查決定拒絕原因
//  1. 存在 / 啟用 / 未過期
//  2. proposedTotal >= min_order_amount
//  3. used_count < max_uses
//  4. 每位使用者限用一次（已取消的訂單不計）
func (e *DiscountEvaluator) Validate(ctx context.Context, q db.Querier, code string, proposedTotal decimal.Decimal, userID int) (*model.Discount, error) {
	discount, err := q.GetDiscountByCodeForUpdate(ctx, normalizeCode(code))
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, &InvalidDiscountCodeError{Code: code, Reason: DiscountReasonNotFound}
		}
		return nil, fmt.Errorf("get discount: %w", err)
	}
	if err := e.check(ctx, q, discount, code, proposedTotal, userID); err != nil {
		return nil, err
	}
	return discount, nil
}

// Lookup 與 Validate 相同檢查但不鎖定，供報價使用
func (e *DiscountEvaluator) Lookup(ctx context.Context, q db.Querier, code string, proposedTotal decimal.Decimal, userID int) (*model.Discount, error) {
	discount, err := q.GetDiscountByCode(ctx, normalizeCode(code))
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, &InvalidDiscountCodeError{Code: code, Reason: DiscountReasonNotFound}
		}
		return nil, fmt.Errorf("get discount: %w", err)
	}
	if err := e.check(ctx, q, discount, code, proposedTotal, userID); err != nil {
		return nil, err
	}
	return discount, nil
}

func (e *DiscountEvaluator) check(ctx context.Context, q db.Querier, discount *model.Discount, code string, proposedTotal decimal.Decimal, userID int) error {
	reject := func(reason DiscountRejectReason) error {
		return &InvalidDiscountCodeError{Code: code, Reason: reason}
	}

	if !discount.Active {
		return reject(DiscountReasonInactive)
	}
	if discount.ExpiresAt != nil && !e.now().Before(*discount.ExpiresAt) {
		return reject(DiscountReasonExpired)
	}
	if discount.MinOrderAmount.Valid && proposedTotal.LessThan(discount.MinOrderAmount.Decimal) {
		return reject(DiscountReasonBelowMinimum)
	}
	if discount.MaxUses != nil && discount.UsedCount >= *discount.MaxUses {
		return reject(DiscountReasonUsageLimitReached)
	}
	if discount.SingleUsePerUser {
		count, err := q.CountUserOrdersWithDiscount(ctx, userID, discount.Code)
		if err != nil {
			return fmt.Errorf("count discount usage: %w", err)
		}
		if count > 0 {
			return reject(DiscountReasonAlreadyUsed)
		}
	}
	return nil
}

// Apply 折扣金額四捨五入到分，且不超過 total
func (e *DiscountEvaluator) Apply(discount *model.Discount, total decimal.Decimal) decimal.Decimal {
	var amount decimal.Decimal
	switch discount.Kind {
	case model.DiscountKindPercentage:
		amount = total.Mul(discount.Percentage.Decimal).Div(hundred).Round(2)
	case model.DiscountKindFixed:
		amount = discount.FixedAmount.Decimal
	default:
		amount = decimal.Zero
	}
	if amount.IsNegative() {
		amount = decimal.Zero
	}
	if amount.GreaterThan(total) {
		amount = total
	}
	return amount
}

// Consume 使用次數 +1，條件式更新確保不超過 max_uses
func (e *DiscountEvaluator) Consume(ctx context.Context, q db.Querier, discount *model.Discount) error {
	ok, err := q.IncrementDiscountUsage(ctx, discount.ID)
	if err != nil {
		return fmt.Errorf("consume discount: %w", err)
	}
	if !ok {
		return &InvalidDiscountCodeError{Code: discount.Code, Reason: DiscountReasonUsageLimitReached}
	}
	discount.UsedCount++
	return nil
}

func normalizeCode(code string) string {
	return strings.TrimSpace(code)
}
