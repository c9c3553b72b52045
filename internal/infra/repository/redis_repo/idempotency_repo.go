package redis_repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const idempotencyKeyPrefix = "checkout"

// IdempotencyRepo 快取 (user, Idempotency-Key) -> order id
// 只是加速，資料庫的唯一索引才是最終判斷
type IdempotencyRepo struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewIdempotencyRepo(client redis.Cmdable, ttl time.Duration) *IdempotencyRepo {
	return &IdempotencyRepo{client: client, ttl: ttl}
}

func idempotencyKey(userID int, key string) string {
	return fmt.Sprintf("%s:%d:%s", idempotencyKeyPrefix, userID, key)
}

func (r *IdempotencyRepo) GetOrderID(ctx context.Context, userID int, key string) (string, bool, error) {
	orderID, err := r.client.Get(ctx, idempotencyKey(userID, key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, err
	}
	return orderID, true, nil
}

// SetOrderID 已存在時不覆寫
func (r *IdempotencyRepo) SetOrderID(ctx context.Context, userID int, key string, orderID string) error {
	return r.client.SetNX(ctx, idempotencyKey(userID, key), orderID, r.ttl).Err()
}
