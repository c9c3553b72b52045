package model

import (
	"time"
)

// BaseModel gorm 會依欄位名稱自動維護 CreatedAt / UpdatedAt
type BaseModel struct {
	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"null" json:"updated_at"`
}
