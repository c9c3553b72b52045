package dto

type InsufficientStockDTO struct {
	ProductID uint `json:"product_id"`
	Available int  `json:"available"`
	Requested int  `json:"requested"`
}

type InvalidDiscountCodeDTO struct {
	Code   string `json:"code"`
	Reason string `json:"reason"`
}

type ProductDTO struct {
	ProductID uint `json:"product_id"`
}

type InvalidQuantityDTO struct {
	ProductID uint `json:"product_id"`
	Quantity  int  `json:"quantity"`
	EmptyCart bool `json:"empty_cart,omitempty"`
}

type StatusTransitionDTO struct {
	From string `json:"from"`
	To   string `json:"to"`
}
