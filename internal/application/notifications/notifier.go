package notifications

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Notification kinds emitted by the payment core.
const (
	KindPayoutPaid   = "payout.paid"
	KindPayoutFailed = "payout.failed"
)

// Notifier delivers a notification to a user. Delivery is fire-and-forget:
// callers log failures and carry on.
type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, kind string, payload map[string]interface{}) error
}

// Message is the JSON published for every notification.
type Message struct {
	UserID  string                 `json:"user_id"`
	Kind    string                 `json:"kind"`
	Payload map[string]interface{} `json:"payload"`
	SentAt  time.Time              `json:"sent_at"`
}

// ChannelFor is the pub/sub channel the chat/notification service subscribes to for a user.
func ChannelFor(userID uuid.UUID) string {
	return "notifications:user:" + userID.String()
}

// RedisNotifier publishes notifications on per-user Redis channels.
type RedisNotifier struct {
	Rdb *redis.Client
}

func (n *RedisNotifier) Notify(ctx context.Context, userID uuid.UUID, kind string, payload map[string]interface{}) error {
	b, err := json.Marshal(Message{
		UserID:  userID.String(),
		Kind:    kind,
		Payload: payload,
		SentAt:  time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	return n.Rdb.Publish(ctx, ChannelFor(userID), b).Err()
}

// LogNotifier only logs; used when Redis is not configured.
type LogNotifier struct{}

func (LogNotifier) Notify(ctx context.Context, userID uuid.UUID, kind string, payload map[string]interface{}) error {
	log.Info().Str("user_id", userID.String()).Str("kind", kind).Interface("payload", payload).Msg("notification")
	return nil
}

// Send calls n and logs, never returns, a failure.
func Send(ctx context.Context, n Notifier, userID uuid.UUID, kind string, payload map[string]interface{}) {
	if n == nil {
		return
	}
	if err := n.Notify(ctx, userID, kind, payload); err != nil {
		log.Error().Err(err).Str("user_id", userID.String()).Str("kind", kind).Msg("notification delivery failed")
	}
}
