package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/RoyceAzure/lab/storefront/internal/domain/model"
	"github.com/RoyceAzure/lab/storefront/internal/infra/repository/db"
	"github.com/rs/zerolog"
)

// EventPublisher 將 outbox 紀錄送出，全部成功才回傳 nil
type EventPublisher interface {
	Publish(ctx context.Context, records []model.OutboxRecord) error
}

// OutboxRelay 定期把尚未送出的 outbox 紀錄發佈到 broker
// 至少一次送達，消費端以 event_id 去重
type OutboxRelay struct {
	store     db.Store
	publisher EventPublisher
	interval  time.Duration
	batchSize int
	logger    zerolog.Logger
}

func NewOutboxRelay(store db.Store, publisher EventPublisher, interval time.Duration, batchSize int, logger zerolog.Logger) *OutboxRelay {
	if interval <= 0 {
		interval = time.Second
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &OutboxRelay{
		store:     store,
		publisher: publisher,
		interval:  interval,
		batchSize: batchSize,
		logger:    logger,
	}
}

// Run 直到 ctx 取消才返回
func (r *OutboxRelay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info().Dur("interval", r.interval).Int("batch_size", r.batchSize).Msg("outbox relay started")
	for {
		select {
		case <-ctx.Done():
			r.logger.Info().Msg("outbox relay stopped")
			return nil
		case <-ticker.C:
			// 一次 tick 盡量送完積壓
			for {
				sent, err := r.RelayOnce(ctx)
				if err != nil {
					if !errors.Is(err, context.Canceled) {
						r.logger.Error().Err(err).Msg("outbox relay failed")
					}
					break
				}
				if sent < r.batchSize {
					break
				}
			}
		}
	}
}

// RelayOnce 送出一批，發佈失敗時整批保持未送出狀態
func (r *OutboxRelay) RelayOnce(ctx context.Context) (int, error) {
	sent := 0
	err := r.store.ExecTx(ctx, func(q db.Querier) error {
		records, err := q.FetchPendingOutbox(ctx, r.batchSize)
		if err != nil {
			return fmt.Errorf("fetch pending outbox: %w", err)
		}
		if len(records) == 0 {
			return nil
		}

		if err := r.publisher.Publish(ctx, records); err != nil {
			return fmt.Errorf("publish outbox: %w", err)
		}

		ids := make([]int64, 0, len(records))
		for _, record := range records {
			ids = append(ids, record.ID)
		}
		if err := q.MarkOutboxSent(ctx, ids, time.Now().UTC()); err != nil {
			return fmt.Errorf("mark outbox sent: %w", err)
		}
		sent = len(records)
		return nil
	})
	if err != nil {
		return 0, err
	}
	if sent > 0 {
		r.logger.Debug().Int("count", sent).Msg("outbox records published")
	}
	return sent, nil
}
