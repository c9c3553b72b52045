package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type DiscountKind string

const (
	DiscountKindPercentage DiscountKind = "percentage"
	DiscountKindFixed      DiscountKind = "fixed"
)

// Discount code 不分大小寫唯一
// percentage 與 fixed_amount 依 kind 二擇一
type Discount struct {
	ID               uint                `gorm:"primaryKey" json:"id"`
	Code             string              `gorm:"not null;type:varchar(64)" json:"code"`
	Kind             DiscountKind        `gorm:"not null;type:varchar(20)" json:"kind"`
	Percentage       decimal.NullDecimal `gorm:"type:decimal(5,2)" json:"percentage"`
	FixedAmount      decimal.NullDecimal `gorm:"type:decimal(10,2)" json:"fixed_amount"`
	MinOrderAmount   decimal.NullDecimal `gorm:"type:decimal(10,2)" json:"min_order_amount"`
	MaxUses          *int                `json:"max_uses"`
	SingleUsePerUser bool                `gorm:"not null;default:false" json:"single_use_per_user"`
	ExpiresAt        *time.Time          `json:"expires_at"`
	Active           bool                `gorm:"not null;default:true" json:"active"`
	UsedCount        int                 `gorm:"not null;default:0" json:"used_count"`
	BaseModel
}
