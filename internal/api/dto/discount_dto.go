package dto

import "github.com/RoyceAzure/lab/storefront/internal/service"

type DiscountPreviewDTO struct {
	Code  string        `json:"code"`
	Items []CartItemDTO `json:"items"`
}

type DiscountPreviewResponse struct {
	Code           string `json:"code"`
	Subtotal       string `json:"subtotal"`
	DiscountAmount string `json:"discount_amount"`
	Total          string `json:"total"`
}

func NewDiscountPreviewResponse(quote *service.DiscountQuote) DiscountPreviewResponse {
	return DiscountPreviewResponse{
		Code:           quote.Code,
		Subtotal:       quote.Subtotal.StringFixed(2),
		DiscountAmount: quote.DiscountAmount.StringFixed(2),
		Total:          quote.Total.StringFixed(2),
	}
}
