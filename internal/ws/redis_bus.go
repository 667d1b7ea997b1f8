package ws

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"canvas-collab/internal/app"
)

// BusMessage is one room frame relayed between server processes. Origin is
// the publishing process ID so subscribers can drop their own echoes.
type BusMessage struct {
	ProjectID string `json:"projectId"`
	Origin    string `json:"origin"`
	Frame     []byte `json:"frame"`
}

// RedisBus relays room traffic across server processes. Rooms are otherwise
// process-local, so clients on different processes only see each other when
// the bus is enabled.
type RedisBus struct {
	rdb *redis.Client
	log *slog.Logger
}

// NewRedisBus connects to redis and verifies connectivity
func NewRedisBus(ctx context.Context, cfg app.Config, log *slog.Logger) (*RedisBus, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
		DB:   cfg.RedisDB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &RedisBus{rdb: rdb, log: log}, nil
}

// Publish sends a frame to the redis channel for a room
func (b *RedisBus) Publish(ctx context.Context, m BusMessage) error {
	raw, _ := json.Marshal(m)
	return b.rdb.Publish(ctx, channel(m.ProjectID), raw).Err()
}

// Subscribe listens to all room channels and invokes fn for each message
func (b *RedisBus) Subscribe(ctx context.Context, fn func(BusMessage)) {
	pubsub := b.rdb.PSubscribe(ctx, channel("*"))
	ch := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			_ = pubsub.Close()
			return
		case msg := <-ch:
			var bm BusMessage
			_ = json.Unmarshal([]byte(msg.Payload), &bm)
			if bm.ProjectID != "" {
				fn(bm)
			}
		}
	}
}

// Close shuts down the redis connection
func (b *RedisBus) Close() { _ = b.rdb.Close() }

// channel namespacing for room pub/sub
func channel(projectID string) string { return "room:" + projectID }
