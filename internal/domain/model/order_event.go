package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderEventName string

const (
	OrderPlacedEventName        OrderEventName = "order.placed"
	OrderStatusChangedEventName OrderEventName = "order.status_changed"
)

type BaseEvent struct {
	EventID    string         `json:"event_id"`
	EventName  OrderEventName `json:"event_name"`
	OrderID    string         `json:"order_id"`
	OccurredAt time.Time      `json:"occurred_at"`
}

type OrderPlacedEvent struct {
	BaseEvent
	UserID         int                `json:"user_id"`
	TotalAmount    decimal.Decimal    `json:"total_amount"`
	DiscountCode   *string            `json:"discount_code,omitempty"`
	DiscountAmount decimal.Decimal    `json:"discount_amount"`
	Items          []OrderItemPayload `json:"items"`
}

type OrderItemPayload struct {
	ProductID   uint            `json:"product_id"`
	Quantity    int             `json:"quantity"`
	PriceAtTime decimal.Decimal `json:"price_at_time"`
}

type OrderStatusChangedEvent struct {
	BaseEvent
	UserID int         `json:"user_id"`
	From   OrderStatus `json:"from"`
	To     OrderStatus `json:"to"`
}

func NewOrderPlacedEvent(eventID string, order *Order) *OrderPlacedEvent {
	items := make([]OrderItemPayload, 0, len(order.OrderItems))
	for _, item := range order.OrderItems {
		items = append(items, OrderItemPayload{
			ProductID:   item.ProductID,
			Quantity:    item.Quantity,
			PriceAtTime: item.PriceAtTime,
		})
	}
	return &OrderPlacedEvent{
		BaseEvent: BaseEvent{
			EventID:    eventID,
			EventName:  OrderPlacedEventName,
			OrderID:    order.OrderID,
			OccurredAt: order.CreatedAt,
		},
		UserID:         order.UserID,
		TotalAmount:    order.TotalAmount,
		DiscountCode:   order.DiscountCode,
		DiscountAmount: order.DiscountAmount,
		Items:          items,
	}
}

func NewOrderStatusChangedEvent(eventID string, order *Order, from OrderStatus, occurredAt time.Time) *OrderStatusChangedEvent {
	return &OrderStatusChangedEvent{
		BaseEvent: BaseEvent{
			EventID:    eventID,
			EventName:  OrderStatusChangedEventName,
			OrderID:    order.OrderID,
			OccurredAt: occurredAt,
		},
		UserID: order.UserID,
		From:   from,
		To:     order.Status,
	}
}
