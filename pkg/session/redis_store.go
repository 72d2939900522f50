package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/harun/casegen/internal/tracing"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
)

// RedisStore keeps sessions in a single Redis hash, one field per session.
type RedisStore struct {
	client *redis.Client
	key    string
	opts   options
}

// NewRedisStore creates a store on an existing client
func NewRedisStore(client *redis.Client, opts ...Option) *RedisStore {
	o := buildOptions(opts)
	return &RedisStore{
		client: client,
		key:    o.prefix + "sessions",
		opts:   o,
	}
}

// OpenRedisStore connects to addr and verifies the connection
func OpenRedisStore(ctx context.Context, redisOpts *redis.Options, opts ...Option) (*RedisStore, error) {
	client := redis.NewClient(redisOpts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	store := NewRedisStore(client, opts...)
	store.opts.logger.Info().Str("addr", redisOpts.Addr).Str("key", store.key).Msg("Redis session store connected")
	return store, nil
}

// Get returns the session stored under id
func (rs *RedisStore) Get(ctx context.Context, id string) (Session, bool, error) {
	data, err := rs.client.HGet(ctx, rs.key, id).Bytes()
	if errors.Is(err, redis.Nil) {
		return Session{}, false, nil
	}
	if err != nil {
		return Session{}, false, fmt.Errorf("failed to get session: %w", err)
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return Session{}, false, fmt.Errorf("%w: session %s: %v", ErrMalformedSnapshot, id, err)
	}
	return s, true, nil
}

// Put stores s under id
func (rs *RedisStore) Put(ctx context.Context, id string, s Session) (err error) {
	if id == "" {
		return fmt.Errorf("session id cannot be empty")
	}

	ctx, span := tracing.StartSpan(ctx, "casegen.session", "session.put",
		attribute.String("session_id", id),
		attribute.String("backend", "redis"),
	)
	defer func() { tracing.EndSpan(span, err) }()

	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	started := time.Now()
	if err := rs.client.HSet(ctx, rs.key, id, data).Err(); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}

	if rs.opts.metrics != nil {
		if n, lenErr := rs.Len(ctx); lenErr == nil {
			rs.opts.metrics.ObserveSnapshotWrite(started, n)
		}
	}

	return nil
}

// Len returns the number of stored sessions
func (rs *RedisStore) Len(ctx context.Context) (int, error) {
	n, err := rs.client.HLen(ctx, rs.key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return int(n), nil
}

// Close closes the Redis client
func (rs *RedisStore) Close() error {
	return rs.client.Close()
}
