package service

import (
	"errors"
	"fmt"

	"github.com/RoyceAzure/lab/storefront/internal/domain/model"
)

var (
	ErrProductNotFound         = errors.New("product not found")
	ErrInvalidQuantity         = errors.New("invalid quantity")
	ErrInsufficientStock       = errors.New("insufficient stock")
	ErrInvalidDiscountCode     = errors.New("invalid discount code")
	ErrPersistenceConflict     = errors.New("persistence conflict")
	ErrPermissionDenied        = errors.New("permission denied")
	ErrOrderNotFound           = errors.New("order not found")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrShippingAddressRequired = errors.New("shipping address is required")
)

type ProductNotFoundError struct {
	ProductID uint
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %d not found", e.ProductID)
}

func (e *ProductNotFoundError) Unwrap() error { return ErrProductNotFound }

type InvalidQuantityError struct {
	ProductID uint
	Quantity  int
	EmptyCart bool
}

func (e *InvalidQuantityError) Error() string {
	if e.EmptyCart {
		return "cart is empty"
	}
	return fmt.Sprintf("invalid quantity %d for product %d", e.Quantity, e.ProductID)
}

func (e *InvalidQuantityError) Unwrap() error { return ErrInvalidQuantity }

type InsufficientStockError struct {
	ProductID uint
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: available %d, requested %d", e.ProductID, e.Available, e.Requested)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

type DiscountRejectReason string

const (
	DiscountReasonNotFound          DiscountRejectReason = "not_found"
	DiscountReasonInactive          DiscountRejectReason = "inactive"
	DiscountReasonExpired           DiscountRejectReason = "expired"
	DiscountReasonBelowMinimum      DiscountRejectReason = "below_minimum"
	DiscountReasonUsageLimitReached DiscountRejectReason = "usage_limit_reached"
	DiscountReasonAlreadyUsed       DiscountRejectReason = "already_used"
)

type InvalidDiscountCodeError struct {
	Code   string
	Reason DiscountRejectReason
}

func (e *InvalidDiscountCodeError) Error() string {
	return fmt.Sprintf("invalid discount code %q: %s", e.Code, e.Reason)
}

func (e *InvalidDiscountCodeError) Unwrap() error { return ErrInvalidDiscountCode }

// PersistenceConflictError 交易已 rollback，整筆重送是安全的
type PersistenceConflictError struct {
	Err error
}

func (e *PersistenceConflictError) Error() string {
	return fmt.Sprintf("persistence conflict: %v", e.Err)
}

func (e *PersistenceConflictError) Unwrap() []error { return []error{ErrPersistenceConflict, e.Err} }

type InvalidStatusTransitionError struct {
	From model.OrderStatus
	To   model.OrderStatus
}

func (e *InvalidStatusTransitionError) Error() string {
	return fmt.Sprintf("cannot change order status from %s to %s", e.From, e.To)
}

func (e *InvalidStatusTransitionError) Unwrap() error { return ErrInvalidStatusTransition }
