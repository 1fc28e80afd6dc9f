package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/jobyojnahub-a11y/websevixof/internal/realtime"
)

const channelPrefix = "chat:room:"

var ErrNoBroker = errors.New("websocket publish: redis client not initialised")

// NewRedisClient returns nil when addr is empty: the caller runs without
// cross-process fan-out.
func NewRedisClient(addr, password string) *redis.Client {
	if addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})
}

// Publisher emits room events through Redis so every realtime process
// delivers them to its local members. Processes without sockets of their
// own, like the admin API, emit through it directly.
type Publisher struct {
	client *redis.Client
}

func NewPublisher(client *redis.Client) *Publisher {
	return &Publisher{client: client}
}

func (p *Publisher) Emit(ctx context.Context, msg realtime.Message) error {
	if msg.Room == "" {
		return fmt.Errorf("websocket publish: room required")
	}
	if p == nil || p.client == nil {
		return ErrNoBroker
	}

	frame, err := realtime.Encode(msg.Event, msg.Payload)
	if err != nil {
		return fmt.Errorf("websocket publish: %w", err)
	}
	body, err := json.Marshal(envelope{Room: msg.Room, Except: msg.Except, Frame: frame})
	if err != nil {
		return fmt.Errorf("websocket publish: marshal envelope: %w", err)
	}

	if err := p.client.Publish(ctx, channelPrefix+msg.Room, body).Err(); err != nil {
		return fmt.Errorf("websocket publish: redis publish: %w", err)
	}
	return nil
}
