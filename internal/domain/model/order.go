package model

import (
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"    // 待處理
	OrderStatusProcessing OrderStatus = "processing" // 處理中
	OrderStatusShipped    OrderStatus = "shipped"    // 已出貨
	OrderStatusDelivered  OrderStatus = "delivered"  // 已送達
	OrderStatusCancelled  OrderStatus = "cancelled"  // 已取消
)

func IsValidOrderStatus(status string) bool {
	switch OrderStatus(status) {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	default:
		return false
	}
}

// Order 欄位名稱 total_amount, status, discount_code, discount_amount 為下游報表依賴的契約
type Order struct {
	OrderID         string          `gorm:"primaryKey;type:varchar(255)" json:"order_id"`
	UserID          int             `gorm:"not null;index" json:"user_id"`
	Status          OrderStatus     `gorm:"not null;type:varchar(20);default:pending" json:"status"`
	TotalAmount     decimal.Decimal `gorm:"column:total_amount;not null;type:decimal(10,2)" json:"total_amount"`
	ShippingAddress string          `gorm:"not null;type:text" json:"shipping_address"`
	DiscountCode    *string         `gorm:"column:discount_code;type:varchar(64)" json:"discount_code,omitempty"`
	DiscountAmount  decimal.Decimal `gorm:"column:discount_amount;not null;type:decimal(10,2);default:0" json:"discount_amount"`
	IdempotencyKey  *string         `gorm:"type:varchar(255)" json:"-"`
	OrderItems      []OrderItem     `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"order_items"` // 一對多，級聯刪除
	BaseModel
}

// Subtotal 折扣前金額
func (o *Order) Subtotal() decimal.Decimal {
	subtotal := decimal.Zero
	for _, item := range o.OrderItems {
		subtotal = subtotal.Add(item.LineTotal())
	}
	return subtotal
}

type OrderItem struct {
	OrderID     string          `gorm:"primaryKey;type:varchar(255)" json:"order_id"` // 外鍵，關聯到 Order
	ProductID   uint            `gorm:"primaryKey" json:"product_id"`                 // 外鍵，關聯到 Product
	Quantity    int             `gorm:"not null" json:"quantity"`
	PriceAtTime decimal.Decimal `gorm:"column:price_at_time;not null;type:decimal(10,2)" json:"price_at_time"` // 下單當下單價，之後不隨商品價格變動
}

func (i OrderItem) LineTotal() decimal.Decimal {
	return i.PriceAtTime.Mul(decimal.NewFromInt(int64(i.Quantity)))
}
