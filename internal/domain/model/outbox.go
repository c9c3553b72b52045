package model

import "time"

// OutboxRecord 與訂單同一個交易寫入，由 relay 非同步送往 kafka
type OutboxRecord struct {
	ID        int64      `gorm:"primaryKey" json:"id"`
	EventID   string     `gorm:"not null;type:uuid;unique" json:"event_id"`
	Topic     string     `gorm:"not null;type:varchar(255)" json:"topic"`
	Key       string     `gorm:"not null;type:varchar(255)" json:"key"`
	Payload   []byte     `gorm:"not null;type:jsonb" json:"payload"`
	CreatedAt time.Time  `gorm:"not null;default:now()" json:"created_at"`
	SentAt    *time.Time `json:"sent_at"`
}

func (OutboxRecord) TableName() string {
	return "outbox"
}
