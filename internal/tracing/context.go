package tracing

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ContextKey is the type for context keys
type ContextKey string

const (
	// TraceIDKey is the context key for trace ID
	TraceIDKey ContextKey = "trace_id"
	// ChatIDKey is the context key for the chat an update belongs to
	ChatIDKey ContextKey = "chat_id"
	// SessionIDKey is the context key for the conversation session ID
	SessionIDKey ContextKey = "session_id"
)

// TraceContext holds tracing information
type TraceContext struct {
	TraceID   string
	ChatID    int64
	SessionID string
}

// NewTraceID generates a new trace ID
func NewTraceID() string {
	return uuid.New().String()
}

// WithTraceID adds a trace ID to the context
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// WithChatID adds a chat ID to the context
func WithChatID(ctx context.Context, chatID int64) context.Context {
	return context.WithValue(ctx, ChatIDKey, chatID)
}

// WithSessionID adds a session ID to the context
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, SessionIDKey, sessionID)
}

// GetTraceID retrieves the trace ID from the context
func GetTraceID(ctx context.Context) string {
	if traceID, ok := ctx.Value(TraceIDKey).(string); ok {
		return traceID
	}
	return ""
}

// GetChatID retrieves the chat ID from the context
func GetChatID(ctx context.Context) int64 {
	if chatID, ok := ctx.Value(ChatIDKey).(int64); ok {
		return chatID
	}
	return 0
}

// GetSessionID retrieves the session ID from the context
func GetSessionID(ctx context.Context) string {
	if sessionID, ok := ctx.Value(SessionIDKey).(string); ok {
		return sessionID
	}
	return ""
}

// FromContext extracts all tracing information from the context
func FromContext(ctx context.Context) *TraceContext {
	return &TraceContext{
		TraceID:   GetTraceID(ctx),
		ChatID:    GetChatID(ctx),
		SessionID: GetSessionID(ctx),
	}
}

// NewUpdateContext creates a context for one inbound chat update
func NewUpdateContext(ctx context.Context, chatID int64) context.Context {
	ctx = WithTraceID(ctx, NewTraceID())
	return WithChatID(ctx, chatID)
}

// LoggerFromContext returns baseLogger enriched with the tracing fields in ctx
func LoggerFromContext(ctx context.Context, baseLogger zerolog.Logger) zerolog.Logger {
	tc := FromContext(ctx)
	logCtx := baseLogger.With()

	if tc.TraceID != "" {
		logCtx = logCtx.Str("trace_id", tc.TraceID)
	}
	if tc.ChatID != 0 {
		logCtx = logCtx.Int64("chat_id", tc.ChatID)
	}
	if tc.SessionID != "" {
		logCtx = logCtx.Str("session_id", tc.SessionID)
	}

	return logCtx.Logger()
}
