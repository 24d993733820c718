package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mossy-p/voice-signaling/internal/models"
	"github.com/redis/go-redis/v9"
)

// Broadcaster fans feed events out to every signaling process through a
// Redis channel, so sockets held by any instance receive them.
type Broadcaster struct {
	client  *redis.Client
	channel string
	logger  *slog.Logger
}

func NewBroadcaster(client *redis.Client, channel string, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{client: client, channel: channel, logger: logger}
}

// Publish sends msg to every subscribed instance.
func (b *Broadcaster) Publish(ctx context.Context, msg models.SignalMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal broadcast: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, data).Err(); err != nil {
		return fmt.Errorf("publish broadcast: %w", err)
	}
	return nil
}

// Subscribe delivers every message published on the channel to deliver
// until ctx is cancelled. Malformed payloads are logged and skipped.
func (b *Broadcaster) Subscribe(ctx context.Context, deliver func(models.SignalMessage)) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()

	// Wait for the subscription to be confirmed before reporting ready
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", b.channel, err)
	}
	b.logger.Info("Subscribed to broadcast channel", "channel", b.channel)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			var msg models.SignalMessage
			if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
				b.logger.Warn("Dropping malformed broadcast", "error", err)
				continue
			}
			deliver(msg)
		}
	}
}
