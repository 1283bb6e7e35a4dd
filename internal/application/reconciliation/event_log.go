package reconciliation

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// EventLog remembers processed event ids so exact redeliveries short-circuit.
// Handlers stay idempotent without it.
type EventLog interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Remember(ctx context.Context, eventID string) error
}

const defaultEventTTL = 72 * time.Hour

type RedisEventLog struct {
	Rdb *redis.Client
	TTL time.Duration
}

func eventKey(eventID string) string {
	return "webhook:event:" + eventID
}

func (l *RedisEventLog) Seen(ctx context.Context, eventID string) (bool, error) {
	n, err := l.Rdb.Exists(ctx, eventKey(eventID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (l *RedisEventLog) Remember(ctx context.Context, eventID string) error {
	ttl := l.TTL
	if ttl <= 0 {
		ttl = defaultEventTTL
	}
	return l.Rdb.Set(ctx, eventKey(eventID), time.Now().UTC().Unix(), ttl).Err()
}
