package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/RoyceAzure/lab/storefront/internal/api"
	"github.com/RoyceAzure/lab/storefront/internal/api/dto"
	"github.com/RoyceAzure/lab/storefront/internal/service"
	"github.com/RoyceAzure/lab/storefront/internal/util"
	"github.com/rs/zerolog"
)

type DiscountHandler struct {
	checkoutService service.ICheckoutService
	logger          zerolog.Logger
}

func NewDiscountHandler(checkoutService service.ICheckoutService, logger zerolog.Logger) *DiscountHandler {
	if checkoutService == nil {
		panic("checkoutService cannot be nil")
	}
	return &DiscountHandler{checkoutService: checkoutService, logger: logger}
}

// Preview POST /api/v1/discounts/preview，不消耗折扣次數
func (h *DiscountHandler) Preview(w http.ResponseWriter, r *http.Request) {
	principal, ok := util.GetPrincipalFromContext(r.Context())
	if !ok {
		api.ErrorJSON(w, http.StatusUnauthorized, CodeUnauthenticated, "missing user identity", nil)
		return
	}

	var req dto.DiscountPreviewDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Code) == "" {
		api.ErrorJSON(w, http.StatusBadRequest, CodeBadRequest, "invalid request body", nil)
		return
	}

	quote, err := h.checkoutService.PreviewDiscount(r.Context(), principal.UserID, req.Code, dto.ToCartLines(req.Items))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	api.SuccessJSON(w, http.StatusOK, dto.NewDiscountPreviewResponse(quote))
}
