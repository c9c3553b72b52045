package service

import (
	"math"
	"sort"

	"github.com/RoyceAzure/lab/storefront/internal/domain/model"
	"github.com/shopspring/decimal"
)

type CartLine struct {
	ProductID uint `json:"product_id"`
	Quantity  int  `json:"quantity"`
}

type PricedLine struct {
	ProductID uint
	Quantity  int
	UnitPrice decimal.Decimal
}

func (l PricedLine) LineTotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// PricedCart Lines 依 product id 升冪排列
type PricedCart struct {
	Lines []PricedLine
	Total decimal.Decimal
}

// ReserveLines 轉換為庫存預留所需的 product -> quantity
func (c *PricedCart) ReserveLines() []StockLine {
	lines := make([]StockLine, 0, len(c.Lines))
	for _, line := range c.Lines {
		lines = append(lines, StockLine{ProductID: line.ProductID, Quantity: line.Quantity})
	}
	return lines
}

func (c *PricedCart) OrderItems(orderID string) []model.OrderItem {
	items := make([]model.OrderItem, 0, len(c.Lines))
	for _, line := range c.Lines {
		items = append(items, model.OrderItem{
			OrderID:     orderID,
			ProductID:   line.ProductID,
			Quantity:    line.Quantity,
			PriceAtTime: line.UnitPrice,
		})
	}
	return items
}

// OrderAssembler 用商品目錄為購物車定價，不讀寫資料庫
type OrderAssembler struct{}

func NewOrderAssembler() *OrderAssembler {
	return &OrderAssembler{}
}

// Assemble 單價一律取自 catalog，呼叫端傳入的價格不被信任
// 同一商品的多筆 line 會合併數量
func (a *OrderAssembler) Assemble(catalog map[uint]model.Product, lines []CartLine) (*PricedCart, error) {
	if len(lines) == 0 {
		return nil, &InvalidQuantityError{EmptyCart: true}
	}

	merged := make(map[uint]int, len(lines))
	for _, line := range lines {
		if line.Quantity <= 0 {
			return nil, &InvalidQuantityError{ProductID: line.ProductID, Quantity: line.Quantity}
		}
		if _, ok := catalog[line.ProductID]; !ok {
			return nil, &ProductNotFoundError{ProductID: line.ProductID}
		}
		// 合併後溢位視為該 line 數量不合法
		if merged[line.ProductID] > math.MaxInt-line.Quantity {
			return nil, &InvalidQuantityError{ProductID: line.ProductID, Quantity: line.Quantity}
		}
		merged[line.ProductID] += line.Quantity
	}

	cart := &PricedCart{
		Lines: make([]PricedLine, 0, len(merged)),
		Total: decimal.Zero,
	}
	for productID, quantity := range merged {
		cart.Lines = append(cart.Lines, PricedLine{
			ProductID: productID,
			Quantity:  quantity,
			UnitPrice: catalog[productID].Price,
		})
	}
	sort.Slice(cart.Lines, func(i, j int) bool {
		return cart.Lines[i].ProductID < cart.Lines[j].ProductID
	})
	for _, line := range cart.Lines {
		cart.Total = cart.Total.Add(line.LineTotal())
	}
	return cart, nil
}

// ProductIDs 購物車中不重複的商品 id
func ProductIDs(lines []CartLine) []uint {
	seen := make(map[uint]struct{}, len(lines))
	ids := make([]uint, 0, len(lines))
	for _, line := range lines {
		if _, ok := seen[line.ProductID]; ok {
			continue
		}
		seen[line.ProductID] = struct{}{}
		ids = append(ids, line.ProductID)
	}
	return ids
}

func CatalogFrom(products []model.Product) map[uint]model.Product {
	catalog := make(map[uint]model.Product, len(products))
	for _, p := range products {
		catalog[p.ProductID] = p
	}
	return catalog
}
