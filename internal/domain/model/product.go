package model

import (
	"github.com/shopspring/decimal"
)

// Product 商品目錄與庫存，stock 由 products_stock_non_negative CHECK 保證不為負
type Product struct {
	ProductID uint            `gorm:"primaryKey;column:product_id" json:"product_id"`
	Code      string          `gorm:"not null;type:varchar(100);unique" json:"code"`
	Name      string          `gorm:"not null;type:varchar(100)" json:"name"`
	Price     decimal.Decimal `gorm:"not null;type:decimal(10,2)" json:"price"`
	Stock     int             `gorm:"not null;type:int" json:"stock"`
	BaseModel
}
