package db

import (
	"context"
	"time"

	"github.com/RoyceAzure/lab/storefront/internal/domain/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type OutboxRepo struct {
	db *gorm.DB
}

func NewOutboxRepo(db *gorm.DB) *OutboxRepo {
	return &OutboxRepo{db: db}
}

func (r *OutboxRepo) InsertOutbox(ctx context.Context, record *model.OutboxRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

// FetchPendingOutbox SKIP LOCKED 讓多個 relay 實例不會取到同一批
func (r *OutboxRepo) FetchPendingOutbox(ctx context.Context, limit int) ([]model.OutboxRecord, error) {
	var records []model.OutboxRecord
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Where("sent_at IS NULL").
		Order("id").
		Limit(limit).
		Find(&records).Error
	return records, err
}

func (r *OutboxRepo) MarkOutboxSent(ctx context.Context, ids []int64, sentAt time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&model.OutboxRecord{}).
		Where("id IN ?", ids).
		Update("sent_at", sentAt).Error
}
