package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/harun/casegen/internal/metrics"
	"github.com/rs/zerolog"
)

// ErrMalformedSnapshot is returned when persisted session state cannot be decoded
var ErrMalformedSnapshot = errors.New("malformed session snapshot")

// Session is the generated content kept for one conversation session
type Session struct {
	Manual    string    `json:"manual"`
	CreatedAt time.Time `json:"created_at,omitzero"`
}

// Store maps session IDs to sessions
type Store interface {
	// Get looks up a session without side effects
	Get(ctx context.Context, id string) (Session, bool, error)

	// Put inserts or overwrites a session and persists it before returning
	Put(ctx context.Context, id string, s Session) error

	// Len returns the number of stored sessions
	Len(ctx context.Context) (int, error)

	// Close releases the resources held by the store
	Close() error
}

// NewID returns a new opaque session identifier
func NewID() string {
	return uuid.NewString()
}

type options struct {
	logger  zerolog.Logger
	metrics *metrics.Metrics
	prefix  string
}

// Option configures a store
type Option func(*options)

// WithLogger sets the store logger
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMetrics enables snapshot metrics
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithKeyPrefix sets the Redis key prefix (RedisStore only)
func WithKeyPrefix(prefix string) Option {
	return func(o *options) {
		o.prefix = prefix
	}
}

func buildOptions(opts []Option) options {
	o := options{
		logger: zerolog.Nop(),
		prefix: "casegen:",
	}
	for _, opt := range opts {
		opt(&o)
	}
	o.logger = o.logger.With().Str("component", "session").Logger()
	return o
}
