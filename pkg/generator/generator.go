package generator

import (
	"context"
	"fmt"
	"time"

	"github.com/harun/casegen/internal/metrics"
	"github.com/harun/casegen/internal/tracing"
	"github.com/harun/casegen/pkg/prompts"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
)

// User-facing replacement texts returned on failure
const (
	ManualFailureText   = "Failed to generate a response. Please try again."
	AutotestFailureText = "// Error while generating code. Please try again."
)

// Generation kinds used in logs and metrics
const (
	KindManual   = "manual"
	KindAutotest = "autotest"
)

// Renderer renders a named prompt template
type Renderer interface {
	Render(name string, data any) (string, error)
}

var _ Renderer = (*prompts.Set)(nil)

// Generator produces manual test cases and autotest code
type Generator struct {
	provider   Provider
	prompts    Renderer
	timeout    time.Duration
	maxRetries int
	retryDelay time.Duration
	metrics    *metrics.Metrics
	logger     zerolog.Logger
}

// Option configures a Generator
type Option func(*Generator)

// WithTimeout bounds every provider call, 0 disables the bound
func WithTimeout(d time.Duration) Option {
	return func(g *Generator) { g.timeout = d }
}

// WithRetries sets the attempt count and base backoff delay for transient errors
func WithRetries(attempts int, baseDelay time.Duration) Option {
	return func(g *Generator) {
		g.maxRetries = attempts
		g.retryDelay = baseDelay
	}
}

// WithMetrics records generation counts and latency
func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Generator) { g.metrics = m }
}

// WithLogger sets the logger
func WithLogger(logger zerolog.Logger) Option {
	return func(g *Generator) { g.logger = logger }
}

// New creates a generator
func New(provider Provider, renderer Renderer, opts ...Option) *Generator {
	g := &Generator{
		provider:   provider,
		prompts:    renderer,
		maxRetries: 3,
		retryDelay: time.Second,
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = g.logger.With().Str("component", "generator").Str("provider", provider.Name()).Logger()
	return g
}

// ManualTests generates manual test cases for a feature description. On
// failure it returns ManualFailureText and the underlying error.
func (g *Generator) ManualTests(ctx context.Context, description string) (string, error) {
	prompt, err := g.prompts.Render(prompts.Manual, prompts.ManualData{FeatureDescription: description})
	if err != nil {
		g.logger.Error().Err(err).Msg("Failed to render manual prompt")
		return ManualFailureText, err
	}

	text, err := g.generate(ctx, KindManual, prompt)
	if err != nil {
		return ManualFailureText, err
	}
	return text, nil
}

// AutotestCode generates autotest code in language from manual test text. On
// failure it returns AutotestFailureText and the underlying error.
func (g *Generator) AutotestCode(ctx context.Context, manual, language string) (string, error) {
	prompt, err := g.prompts.Render(prompts.Autotest, prompts.AutotestData{
		ManualTestText: manual,
		Language:       language,
	})
	if err != nil {
		g.logger.Error().Err(err).Msg("Failed to render autotest prompt")
		return AutotestFailureText, err
	}

	text, err := g.generate(ctx, KindAutotest, prompt, attribute.String("language", language))
	if err != nil {
		return AutotestFailureText, err
	}
	return text, nil
}

func (g *Generator) generate(ctx context.Context, kind, prompt string, attrs ...attribute.KeyValue) (text string, err error) {
	attrs = append(attrs,
		attribute.String("kind", kind),
		attribute.String("provider", g.provider.Name()),
		attribute.Int("prompt_length", len(prompt)),
	)
	ctx, span := tracing.StartSpan(ctx, "casegen.generator", "generator."+kind, attrs...)
	started := time.Now()
	defer func() {
		tracing.EndSpan(span, err)
		g.metrics.ObserveGeneration(kind, started, err)
	}()

	logger := tracing.LoggerFromContext(ctx, g.logger)

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	text, err = g.callWithRetry(ctx, logger, prompt)
	if err != nil {
		logger.Error().Err(err).Str("kind", kind).Dur("elapsed", time.Since(started)).Msg("Generation failed")
		return "", fmt.Errorf("failed to generate %s: %w", kind, err)
	}
	if text == "" {
		err = fmt.Errorf("failed to generate %s: empty response", kind)
		logger.Error().Err(err).Msg("Generation failed")
		return "", err
	}

	logger.Info().
		Str("kind", kind).
		Int("length", len(text)).
		Dur("elapsed", time.Since(started)).
		Msg("Generation completed")
	return text, nil
}

// callWithRetry calls the provider with exponential backoff on transient errors
func (g *Generator) callWithRetry(ctx context.Context, logger zerolog.Logger, prompt string) (string, error) {
	attempts := g.maxRetries
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		text, err := g.provider.Generate(ctx, prompt)
		if err == nil {
			return text, nil
		}
		lastErr = err

		if !IsRetryableError(err) || attempt == attempts-1 {
			break
		}

		delay := g.retryDelay * time.Duration(1<<attempt)
		logger.Info().
			Int("attempt", attempt+1).
			Dur("delay", delay).
			Err(err).
			Msg("Retrying after error")

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}
	}

	return "", lastErr
}
