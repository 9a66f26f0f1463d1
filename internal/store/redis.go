package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/isoca/internal/shared"
	"github.com/redis/go-redis/v9"
)

// RedisBackend implements [Backend] on a Redis server.
//
// Values live under <prefix><key>; every write also publishes a [redisChange] on
// <prefix>changes:<key> in the same pipeline, right after the write.
type RedisBackend struct {
	client redis.UniversalClient
	prefix string
	origin string
	logger *log.Logger
	owns   bool
}

type redisChange struct {
	Origin  string `json:"origin"`
	Value   string `json:"value"`
	Present bool   `json:"present"`
}

// NewRedisBackend wraps an existing client.
func NewRedisBackend(client redis.UniversalClient, prefix string, logger *log.Logger) *RedisBackend {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &RedisBackend{
		client: client,
		prefix: prefix,
		origin: shared.GenerateID(),
		logger: shared.WithLogger(logger, "component", "store", "driver", "redis"),
	}
}

// OpenRedis connects to the server at rawURL and checks it answers.
func OpenRedis(ctx context.Context, rawURL, prefix string, logger *log.Logger) (*RedisBackend, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid redis url: %v", shared.ErrStorageUnavailable, err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %v", shared.ErrStorageUnavailable, err)
	}

	b := NewRedisBackend(client, prefix, logger)
	b.owns = true
	return b, nil
}

func (b *RedisBackend) valueKey(key string) string { return b.prefix + key }

func (b *RedisBackend) channel(key string) string { return b.prefix + "changes:" + key }

func (b *RedisBackend) Origin() string { return b.origin }

func (b *RedisBackend) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := b.client.Get(ctx, b.valueKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to fetch key from redis: %w", err)
	}
	return value, true, nil
}

func (b *RedisBackend) Set(ctx context.Context, key, value string) error {
	return b.publish(ctx, key, redisChange{Origin: b.origin, Value: value, Present: true}, func(pipe redis.Pipeliner) {
		pipe.Set(ctx, b.valueKey(key), value, 0)
	})
}

func (b *RedisBackend) Delete(ctx context.Context, key string) error {
	return b.publish(ctx, key, redisChange{Origin: b.origin}, func(pipe redis.Pipeliner) {
		pipe.Del(ctx, b.valueKey(key))
	})
}

func (b *RedisBackend) publish(ctx context.Context, key string, change redisChange, write func(redis.Pipeliner)) error {
	payload, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("failed to marshal change: %w", err)
	}

	_, err = b.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		write(pipe)
		pipe.Publish(ctx, b.channel(key), payload)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write key: %w", err)
	}
	return nil
}

func (b *RedisBackend) Watch(ctx context.Context, key string) (<-chan Change, error) {
	sub := b.client.Subscribe(ctx, b.channel(key))
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	box := newMailbox()
	go func() {
		defer box.close()
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
				var rc redisChange
				if err := json.Unmarshal([]byte(msg.Payload), &rc); err != nil {
					b.logger.Warn("dropping malformed change", "channel", msg.Channel, "error", err)
					continue
				}
				if rc.Origin == b.origin {
					continue
				}
				box.put(Change{Key: key, Value: rc.Value, Present: rc.Present, Origin: rc.Origin})
			}
		}
	}()

	return box.ch, nil
}

// Close closes the client when the backend created it.
func (b *RedisBackend) Close() error {
	if b.owns {
		return b.client.Close()
	}
	return nil
}
