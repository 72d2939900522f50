package generator

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/harun/casegen/internal/metrics"
	"github.com/harun/casegen/pkg/prompts"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	mu      sync.Mutex
	prompts []string
	replies []string
	errs    []error
	block   bool
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Generate(ctx context.Context, prompt string) (string, error) {
	f.mu.Lock()
	call := len(f.prompts)
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()

	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if call < len(f.errs) && f.errs[call] != nil {
		return "", f.errs[call]
	}
	if call < len(f.replies) {
		return f.replies[call], nil
	}
	return "reply", nil
}

func (f *fakeProvider) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

func newSet(t *testing.T) *prompts.Set {
	t.Helper()
	set, err := prompts.New("", zerolog.Nop())
	require.NoError(t, err)
	return set
}

func TestManualTests(t *testing.T) {
	provider := &fakeProvider{replies: []string{"**Test case 1**"}}
	gen := New(provider, newSet(t))

	text, err := gen.ManualTests(context.Background(), "Login with valid credentials")
	require.NoError(t, err)
	assert.Equal(t, "**Test case 1**", text)
	require.Equal(t, 1, provider.calls())
	assert.Contains(t, provider.prompts[0], "Login with valid credentials")
}

func TestManualTests_Failure(t *testing.T) {
	provider := &fakeProvider{errs: []error{errors.New("invalid api key")}}
	gen := New(provider, newSet(t), WithRetries(3, time.Millisecond))

	text, err := gen.ManualTests(context.Background(), "feature")
	assert.Error(t, err)
	assert.Equal(t, ManualFailureText, text)
	assert.Equal(t, 1, provider.calls(), "permanent errors are not retried")
}

func TestManualTests_EmptyResponse(t *testing.T) {
	provider := &fakeProvider{replies: []string{""}}
	gen := New(provider, newSet(t))

	text, err := gen.ManualTests(context.Background(), "feature")
	assert.Error(t, err)
	assert.Equal(t, ManualFailureText, text)
}

func TestAutotestCode(t *testing.T) {
	provider := &fakeProvider{replies: []string{"```python\nprint(1)\n```"}}
	gen := New(provider, newSet(t))

	code, err := gen.AutotestCode(context.Background(), "**Case**", "python")
	require.NoError(t, err)
	assert.Equal(t, "```python\nprint(1)\n```", code)
	assert.Contains(t, provider.prompts[0], "**Case**")
	assert.Contains(t, provider.prompts[0], "Python")
}

func TestAutotestCode_Failure(t *testing.T) {
	provider := &fakeProvider{errs: []error{errors.New("boom: secret detail")}}
	gen := New(provider, newSet(t), WithRetries(1, 0))

	code, err := gen.AutotestCode(context.Background(), "manual", "java")
	assert.Error(t, err)
	assert.Equal(t, AutotestFailureText, code)
	assert.NotContains(t, code, "secret")
}

func TestRetry(t *testing.T) {
	t.Run("retries transient errors", func(t *testing.T) {
		provider := &fakeProvider{
			errs:    []error{errors.New("status 503"), errors.New("429 rate limit")},
			replies: []string{"", "", "ok"},
		}
		gen := New(provider, newSet(t), WithRetries(3, time.Millisecond))

		text, err := gen.ManualTests(context.Background(), "f")
		require.NoError(t, err)
		assert.Equal(t, "ok", text)
		assert.Equal(t, 3, provider.calls())
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		provider := &fakeProvider{errs: []error{
			errors.New("503"), errors.New("503"), errors.New("503"),
		}}
		gen := New(provider, newSet(t), WithRetries(2, time.Millisecond))

		_, err := gen.ManualTests(context.Background(), "f")
		assert.Error(t, err)
		assert.Equal(t, 2, provider.calls())
	})
}

func TestTimeout(t *testing.T) {
	provider := &fakeProvider{block: true}
	gen := New(provider, newSet(t), WithTimeout(20*time.Millisecond), WithRetries(1, 0))

	started := time.Now()
	text, err := gen.ManualTests(context.Background(), "f")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, ManualFailureText, text)
	assert.Less(t, time.Since(started), time.Second)
}

func TestMetricsRecorded(t *testing.T) {
	m := metrics.NewMetrics()
	provider := &fakeProvider{errs: []error{nil, errors.New("bad request")}}
	gen := New(provider, newSet(t), WithMetrics(m), WithRetries(1, 0))

	_, _ = gen.ManualTests(context.Background(), "f")
	_, _ = gen.AutotestCode(context.Background(), "m", "java")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.GenerationsTotal.WithLabelValues(KindManual, "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GenerationsTotal.WithLabelValues(KindAutotest, "error")))
}

func TestIsRetryableError(t *testing.T) {
	assert.False(t, IsRetryableError(nil))
	assert.False(t, IsRetryableError(errors.New("invalid api key")))
	assert.True(t, IsRetryableError(errors.New("read: ECONNRESET")))
	assert.True(t, IsRetryableError(errors.New("googleapi: Error 503: UNAVAILABLE")))
	assert.True(t, IsRetryableError(errors.New("Rate limit reached")))
}

func TestNewProvider(t *testing.T) {
	ctx := context.Background()

	_, err := NewProvider(ctx, ProviderConfig{Name: "gemini"})
	assert.Error(t, err, "api key is required")

	_, err = NewProvider(ctx, ProviderConfig{Name: "mystery", APIKey: "k"})
	assert.Error(t, err)

	p, err := NewProvider(ctx, ProviderConfig{Name: "openai", APIKey: "sk-test"})
	require.NoError(t, err)
	assert.Equal(t, "openai", p.Name())

	p, err = NewProvider(ctx, ProviderConfig{Name: "Anthropic", APIKey: "sk-ant-test"})
	require.NoError(t, err)
	assert.Equal(t, "anthropic", p.Name())
	assert.NoError(t, CloseProvider(p))
}

func TestGeminiProvider_Live(t *testing.T) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		t.Skip("GEMINI_API_KEY not set")
	}

	ctx := context.Background()
	p, err := NewProvider(ctx, ProviderConfig{Name: "gemini", APIKey: apiKey})
	require.NoError(t, err)
	defer CloseProvider(p)

	text, err := p.Generate(ctx, "Reply with the single word: pong")
	require.NoError(t, err)
	assert.NotEmpty(t, text)
}
