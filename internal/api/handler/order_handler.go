package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/RoyceAzure/lab/storefront/internal/api"
	"github.com/RoyceAzure/lab/storefront/internal/api/dto"
	"github.com/RoyceAzure/lab/storefront/internal/constants"
	"github.com/RoyceAzure/lab/storefront/internal/domain/model"
	"github.com/RoyceAzure/lab/storefront/internal/service"
	"github.com/RoyceAzure/lab/storefront/internal/util"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

type OrderHandler struct {
	checkoutService service.ICheckoutService
	orderService    service.IOrderQueryService
	logger          zerolog.Logger
}

func NewOrderHandler(checkoutService service.ICheckoutService, orderService service.IOrderQueryService, logger zerolog.Logger) *OrderHandler {
	if checkoutService == nil || orderService == nil {
		panic("order handler services cannot be nil")
	}
	return &OrderHandler{
		checkoutService: checkoutService,
		orderService:    orderService,
		logger:          logger,
	}
}

// PlaceOrder POST /api/v1/orders
// 重送同一個 Idempotency-Key 回傳原訂單，status 200
func (h *OrderHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	principal, ok := util.GetPrincipalFromContext(r.Context())
	if !ok {
		api.ErrorJSON(w, http.StatusUnauthorized, CodeUnauthenticated, "missing user identity", nil)
		return
	}

	var req dto.PlaceOrderDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.ErrorJSON(w, http.StatusBadRequest, CodeBadRequest, "invalid request body", nil)
		return
	}

	key := r.Header.Get(constants.HeaderIdempotencyKey)
	if len(key) > constants.MaxIdempotencyKeyLength {
		api.ErrorJSON(w, http.StatusBadRequest, CodeBadRequest, "idempotency key is too long", nil)
		return
	}

	result, err := h.checkoutService.PlaceOrder(r.Context(), service.PlaceOrderRequest{
		UserID:          principal.UserID,
		Lines:           dto.ToCartLines(req.Items),
		ShippingAddress: req.ShippingAddress,
		DiscountCode:    req.DiscountCode,
		IdempotencyKey:  key,
	})
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	status := http.StatusCreated
	if result.Replayed {
		status = http.StatusOK
	}
	w.Header().Set("Location", "/api/v1/orders/"+result.OrderID)
	api.SuccessJSON(w, status, dto.NewPlaceOrderResponse(result))
}

// GetOrder GET /api/v1/orders/{orderID}
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	principal, ok := util.GetPrincipalFromContext(r.Context())
	if !ok {
		api.ErrorJSON(w, http.StatusUnauthorized, CodeUnauthenticated, "missing user identity", nil)
		return
	}

	order, err := h.orderService.GetOrder(r.Context(), chi.URLParam(r, "orderID"), principal)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	api.SuccessJSON(w, http.StatusOK, dto.NewOrderDTO(order))
}

// ListOrders GET /api/v1/orders?user_id=&status=&limit=&offset=
func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	principal, ok := util.GetPrincipalFromContext(r.Context())
	if !ok {
		api.ErrorJSON(w, http.StatusUnauthorized, CodeUnauthenticated, "missing user identity", nil)
		return
	}

	query, err := parseListQuery(r)
	if err != nil {
		api.ErrorJSON(w, http.StatusBadRequest, CodeBadRequest, err.Error(), nil)
		return
	}

	orders, err := h.orderService.ListOrders(r.Context(), principal, query)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	api.SuccessJSON(w, http.StatusOK, dto.NewOrderDTOs(orders))
}

// UpdateOrderStatus PATCH /api/v1/orders/{orderID}/status
func (h *OrderHandler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	principal, ok := util.GetPrincipalFromContext(r.Context())
	if !ok {
		api.ErrorJSON(w, http.StatusUnauthorized, CodeUnauthenticated, "missing user identity", nil)
		return
	}

	var req dto.UpdateOrderStatusDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Status == "" {
		api.ErrorJSON(w, http.StatusBadRequest, CodeBadRequest, "invalid request body", nil)
		return
	}

	order, err := h.orderService.UpdateOrderStatus(r.Context(), chi.URLParam(r, "orderID"), model.OrderStatus(req.Status), principal)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	api.SuccessJSON(w, http.StatusOK, dto.NewOrderDTO(order))
}

func parseListQuery(r *http.Request) (service.ListOrdersQuery, error) {
	var query service.ListOrdersQuery
	values := r.URL.Query()

	if v := values.Get("user_id"); v != "" {
		userID, err := strconv.Atoi(v)
		if err != nil || userID <= 0 {
			return query, errors.New("invalid user_id")
		}
		query.UserID = &userID
	}
	if v := values.Get("status"); v != "" {
		if !model.IsValidOrderStatus(v) {
			return query, errors.New("invalid status")
		}
		status := model.OrderStatus(v)
		query.Status = &status
	}

	query.Limit = constants.DefaultPagingSize
	if v := values.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit <= 0 || limit > constants.MaxPagingSize {
			return query, errors.New("invalid limit")
		}
		query.Limit = limit
	}
	if v := values.Get("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil || offset < 0 {
			return query, errors.New("invalid offset")
		}
		query.Offset = offset
	}
	return query, nil
}
