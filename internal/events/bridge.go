package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/quotedesk-backend/pkg/logger"
)

// redisPubSub is the slice of pkg/redis.Client the bridge needs.
type redisPubSub interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channels ...string) (*redis.PubSub, error)
}

type envelope struct {
	Origin string `json:"origin"`
	Event  Event  `json:"event"`
}

// RedisBridge publishes locally and to a Redis channel, and relays events
// other API instances put on that channel into the local hub.
type RedisBridge struct {
	hub     *Hub
	redis   redisPubSub
	channel string
	origin  string
	logg    *logger.Logger
}

func NewRedisBridge(hub *Hub, client redisPubSub, channel, origin string, logg *logger.Logger) (*RedisBridge, error) {
	if hub == nil {
		return nil, errors.New("hub is required")
	}
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if channel == "" {
		return nil, errors.New("channel is required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &RedisBridge{hub: hub, redis: client, channel: channel, origin: origin, logg: logg}, nil
}

// Publish delivers to local subscribers first, then forwards to Redis. A
// Redis failure is logged and swallowed: remote instances simply miss it.
func (b *RedisBridge) Publish(ctx context.Context, ev Event) {
	b.hub.Publish(ctx, ev)
	data, err := json.Marshal(envelope{Origin: b.origin, Event: ev})
	if err != nil {
		b.logg.Error(ctx, "events.bridge.encode_failed", err)
		return
	}
	if err := b.redis.Publish(ctx, b.channel, data); err != nil {
		b.logg.Warn(b.logg.WithField(ctx, "error", err.Error()), "events.bridge.publish_failed")
	}
}

// Run relays remote events until ctx is cancelled.
func (b *RedisBridge) Run(ctx context.Context) error {
	sub, err := b.redis.Subscribe(ctx, b.channel)
	if err != nil {
		return err
	}
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return fmt.Errorf("redis subscription on %s closed", b.channel)
			}
			b.relay(ctx, msg.Payload)
		}
	}
}

func (b *RedisBridge) relay(ctx context.Context, payload string) {
	var env envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		b.logg.Warn(b.logg.WithField(ctx, "error", err.Error()), "events.bridge.decode_failed")
		return
	}
	if env.Origin == b.origin || env.Event.Name == "" {
		return
	}
	b.hub.Publish(ctx, env.Event)
}
