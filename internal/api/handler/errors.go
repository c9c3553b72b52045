package handler

import (
	"errors"
	"net/http"

	"github.com/RoyceAzure/lab/storefront/internal/api"
	"github.com/RoyceAzure/lab/storefront/internal/api/dto"
	"github.com/RoyceAzure/lab/storefront/internal/constants"
	"github.com/RoyceAzure/lab/storefront/internal/service"
	"github.com/rs/zerolog"
)

const (
	CodeBadRequest          = "bad_request"
	CodeUnauthenticated     = "unauthenticated"
	CodeProductNotFound     = "product_not_found"
	CodeInvalidQuantity     = "invalid_quantity"
	CodeInsufficientStock   = "insufficient_stock"
	CodeInvalidDiscountCode = "invalid_discount_code"
	CodePersistenceConflict = "persistence_conflict"
	CodePermissionDenied    = "permission_denied"
	CodeOrderNotFound       = "order_not_found"
	CodeInvalidTransition   = "invalid_status_transition"
	CodeTooManyRequests     = "too_many_requests"
	CodeInternal            = "internal_error"
)

// writeServiceError 將 service 錯誤轉為 HTTP 回應
func writeServiceError(w http.ResponseWriter, logger zerolog.Logger, err error) {
	var (
		notFound     *service.ProductNotFoundError
		invalidQty   *service.InvalidQuantityError
		insufficient *service.InsufficientStockError
		invalidCode  *service.InvalidDiscountCodeError
		transition   *service.InvalidStatusTransitionError
	)

	switch {
	case errors.As(err, &notFound):
		api.ErrorJSON(w, http.StatusNotFound, CodeProductNotFound, err.Error(), dto.ProductDTO{ProductID: notFound.ProductID})
	case errors.As(err, &invalidQty):
		api.ErrorJSON(w, http.StatusBadRequest, CodeInvalidQuantity, err.Error(), dto.InvalidQuantityDTO{
			ProductID: invalidQty.ProductID,
			Quantity:  invalidQty.Quantity,
			EmptyCart: invalidQty.EmptyCart,
		})
	case errors.As(err, &insufficient):
		api.ErrorJSON(w, http.StatusConflict, CodeInsufficientStock, err.Error(), dto.InsufficientStockDTO{
			ProductID: insufficient.ProductID,
			Available: insufficient.Available,
			Requested: insufficient.Requested,
		})
	case errors.As(err, &invalidCode):
		api.ErrorJSON(w, http.StatusUnprocessableEntity, CodeInvalidDiscountCode, err.Error(), dto.InvalidDiscountCodeDTO{
			Code:   invalidCode.Code,
			Reason: string(invalidCode.Reason),
		})
	case errors.Is(err, service.ErrPersistenceConflict):
		logger.Warn().Err(err).Msg("persistence conflict")
		w.Header().Set("Retry-After", constants.RetryAfterSeconds)
		api.ErrorJSON(w, http.StatusServiceUnavailable, CodePersistenceConflict, "please retry the request", nil)
	case errors.Is(err, service.ErrPermissionDenied):
		api.ErrorJSON(w, http.StatusForbidden, CodePermissionDenied, err.Error(), nil)
	case errors.Is(err, service.ErrOrderNotFound):
		api.ErrorJSON(w, http.StatusNotFound, CodeOrderNotFound, err.Error(), nil)
	case errors.As(err, &transition):
		api.ErrorJSON(w, http.StatusConflict, CodeInvalidTransition, err.Error(), dto.StatusTransitionDTO{
			From: string(transition.From),
			To:   string(transition.To),
		})
	case errors.Is(err, service.ErrShippingAddressRequired):
		api.ErrorJSON(w, http.StatusBadRequest, CodeBadRequest, err.Error(), nil)
	default:
		logger.Error().Err(err).Msg("unhandled service error")
		api.ErrorJSON(w, http.StatusInternalServerError, CodeInternal, "internal server error", nil)
	}
}
