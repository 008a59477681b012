package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Broadcaster fans JSON messages out over Redis pub/sub channels.
type Broadcaster struct {
	client *redis.Client
}

// NewBroadcaster wraps client. A nil client turns every call into a no-op.
func NewBroadcaster(client *redis.Client) *Broadcaster {
	return &Broadcaster{client: client}
}

// Publish marshals message and publishes it on channel.
func (b *Broadcaster) Publish(ctx context.Context, channel string, message interface{}) error {
	if b == nil || b.client == nil {
		return nil
	}
	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("marshal %s message: %w", channel, err)
	}
	if err := b.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", channel, err)
	}
	return nil
}

// Subscribe streams raw payloads from channel until ctx is done. The returned
// channel is closed when the subscription ends.
func (b *Broadcaster) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	if b == nil || b.client == nil {
		return nil, fmt.Errorf("redis not configured")
	}
	sub := b.client.Subscribe(ctx, channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("redis subscribe %s: %w", channel, err)
	}

	out := make(chan []byte, 16)
	go func() {
		defer close(out)
		defer sub.Close()
		messages := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				default:
					// slow consumer; drop rather than stall the subscription
				}
			}
		}
	}()
	return out, nil
}
