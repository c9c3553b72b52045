package dto

import (
	"time"

	"github.com/RoyceAzure/lab/storefront/internal/domain/model"
	"github.com/RoyceAzure/lab/storefront/internal/service"
)

type CartItemDTO struct {
	ProductID uint `json:"product_id"`
	Quantity  int  `json:"quantity"`
}

type PlaceOrderDTO struct {
	Items           []CartItemDTO `json:"items"`
	ShippingAddress string        `json:"shipping_address"`
	DiscountCode    string        `json:"discount_code,omitempty"`
}

type PlaceOrderResponse struct {
	OrderID        string `json:"order_id"`
	TotalAmount    string `json:"total_amount"`
	DiscountAmount string `json:"discount_amount"`
	Replayed       bool   `json:"replayed"`
}

type UpdateOrderStatusDTO struct {
	Status string `json:"status"`
}

type OrderItemDTO struct {
	ProductID   uint   `json:"product_id"`
	Quantity    int    `json:"quantity"`
	PriceAtTime string `json:"price_at_time"`
}

type OrderDTO struct {
	OrderID         string         `json:"order_id"`
	UserID          int            `json:"user_id"`
	Status          string         `json:"status"`
	Subtotal        string         `json:"subtotal"`
	DiscountCode    *string        `json:"discount_code,omitempty"`
	DiscountAmount  string         `json:"discount_amount"`
	TotalAmount     string         `json:"total_amount"`
	ShippingAddress string         `json:"shipping_address"`
	Items           []OrderItemDTO `json:"items"`
	CreatedAt       time.Time      `json:"created_at"`
}

func ToCartLines(items []CartItemDTO) []service.CartLine {
	lines := make([]service.CartLine, 0, len(items))
	for _, item := range items {
		lines = append(lines, service.CartLine{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return lines
}

func NewPlaceOrderResponse(result *service.PlaceOrderResult) PlaceOrderResponse {
	return PlaceOrderResponse{
		OrderID:        result.OrderID,
		TotalAmount:    result.TotalAmount.StringFixed(2),
		DiscountAmount: result.DiscountAmount.StringFixed(2),
		Replayed:       result.Replayed,
	}
}

func NewOrderDTO(order *model.Order) OrderDTO {
	items := make([]OrderItemDTO, 0, len(order.OrderItems))
	for _, item := range order.OrderItems {
		items = append(items, OrderItemDTO{
			ProductID:   item.ProductID,
			Quantity:    item.Quantity,
			PriceAtTime: item.PriceAtTime.StringFixed(2),
		})
	}
	return OrderDTO{
		OrderID:         order.OrderID,
		UserID:          order.UserID,
		Status:          string(order.Status),
		Subtotal:        order.Subtotal().StringFixed(2),
		DiscountCode:    order.DiscountCode,
		DiscountAmount:  order.DiscountAmount.StringFixed(2),
		TotalAmount:     order.TotalAmount.StringFixed(2),
		ShippingAddress: order.ShippingAddress,
		Items:           items,
		CreatedAt:       order.CreatedAt,
	}
}

func NewOrderDTOs(orders []model.Order) []OrderDTO {
	dtos := make([]OrderDTO, 0, len(orders))
	for i := range orders {
		dtos = append(dtos, NewOrderDTO(&orders[i]))
	}
	return dtos
}
