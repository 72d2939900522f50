package tracing

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTraceID(t *testing.T) {
	id1 := NewTraceID()
	id2 := NewTraceID()

	assert.NotEmpty(t, id1)
	assert.NotEqual(t, id1, id2)
}

func TestContextValues(t *testing.T) {
	ctx := context.Background()
	ctx = WithTraceID(ctx, "trace-1")
	ctx = WithChatID(ctx, 42)
	ctx = WithSessionID(ctx, "session-1")

	tc := FromContext(ctx)
	assert.Equal(t, "trace-1", tc.TraceID)
	assert.Equal(t, int64(42), tc.ChatID)
	assert.Equal(t, "session-1", tc.SessionID)
}

func TestContextValuesEmpty(t *testing.T) {
	ctx := context.Background()

	assert.Empty(t, GetTraceID(ctx))
	assert.Zero(t, GetChatID(ctx))
	assert.Empty(t, GetSessionID(ctx))
}

func TestNewUpdateContext(t *testing.T) {
	ctx := NewUpdateContext(context.Background(), 7)

	assert.NotEmpty(t, GetTraceID(ctx))
	assert.Equal(t, int64(7), GetChatID(ctx))
}

func TestLoggerFromContext(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	ctx := WithSessionID(WithChatID(WithTraceID(context.Background(), "trace-9"), 99), "sess-9")
	logger := LoggerFromContext(ctx, base)
	logger.Info().Msg("hello")

	out := buf.String()
	assert.Contains(t, out, `"trace_id":"trace-9"`)
	assert.Contains(t, out, `"chat_id":99`)
	assert.Contains(t, out, `"session_id":"sess-9"`)
}

func TestLoggerFromContextEmpty(t *testing.T) {
	var buf bytes.Buffer
	logger := LoggerFromContext(context.Background(), zerolog.New(&buf))
	logger.Info().Msg("plain")

	assert.NotContains(t, buf.String(), "trace_id")
	assert.NotContains(t, buf.String(), "chat_id")
}

func TestStartSpan(t *testing.T) {
	require.NoError(t, InitOpenTelemetry("casegen-test"))
	defer ShutdownOpenTelemetry(context.Background())

	ctx, span := StartSpan(context.Background(), "casegen.test", "unit")
	assert.NotEmpty(t, GetTraceID(ctx))
	EndSpan(span, errors.New("boom"))
}

func TestStartSpanKeepsExistingTraceID(t *testing.T) {
	ctx := WithTraceID(context.Background(), "fixed")
	ctx, span := StartSpan(ctx, "casegen.test", "unit")
	defer EndSpan(span, nil)

	assert.Equal(t, "fixed", GetTraceID(ctx))
}
