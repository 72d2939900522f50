package daemon

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/harun/casegen/internal/config"
	"github.com/harun/casegen/internal/logger"
	"github.com/harun/casegen/internal/metrics"
	"github.com/harun/casegen/internal/telegram"
	"github.com/harun/casegen/internal/tracing"
	"github.com/harun/casegen/pkg/conversation"
	"github.com/harun/casegen/pkg/export"
	"github.com/harun/casegen/pkg/generator"
	"github.com/harun/casegen/pkg/prompts"
	"github.com/harun/casegen/pkg/session"
	"github.com/redis/go-redis/v9"
)

// shutdownTimeout bounds the graceful stop of background services
const shutdownTimeout = 10 * time.Second

// BotAPI is the Telegram client the daemon polls and sends through
type BotAPI interface {
	telegram.API
	telegram.UpdateSource
}

var newBotAPI = func(token string) (BotAPI, error) {
	api, err := telegram.NewAPI(token)
	if err != nil {
		return nil, err
	}
	return api, nil
}

var newProvider = generator.NewProvider

// Daemon represents the casegen service
type Daemon struct {
	config *config.Config
	logger *logger.Logger

	metrics    *metrics.Metrics
	metricsSrv *metrics.Server

	store      session.Store
	provider   generator.Provider
	prompts    *prompts.Set
	watcher    *prompts.Watcher
	generator  *generator.Generator
	exporter   *export.Exporter
	sweeper    *export.Sweeper
	controller *conversation.Controller

	api         BotAPI
	transport   *telegram.Transport
	handler     *telegram.Handler
	telegramBot *telegram.Bot

	lifecycle *LifecycleManager

	startTime time.Time
	running   bool
	mu        sync.RWMutex

	tracingEnabled bool
}

// Status describes a running daemon
type Status struct {
	Running   bool
	StartTime time.Time
	Uptime    time.Duration
	Sessions  int
}

// New wires every component from cfg. Nothing is started yet.
func New(cfg *config.Config, log *logger.Logger) (*Daemon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	d := &Daemon{
		config:  cfg,
		logger:  log,
		metrics: metrics.NewMetrics(),
	}

	if cfg.Tracing.Enabled {
		if err := tracing.InitOpenTelemetry("casegen"); err != nil {
			log.Warn().Err(err).Msg("Failed to initialize tracing, continuing without distributed tracing")
		} else {
			d.tracingEnabled = true
			log.Info().Msg("Tracing initialized")
		}
	}

	if err := d.initialize(); err != nil {
		d.release()
		return nil, err
	}

	return d, nil
}

func (d *Daemon) initialize() error {
	ctx := context.Background()
	zl := d.logger.GetZerolog()

	store, err := d.openStore(ctx)
	if err != nil {
		return err
	}
	d.store = store

	provider, err := newProvider(ctx, generator.ProviderConfig{
		Name:      d.config.AI.Provider,
		APIKey:    d.config.AI.APIKey,
		Model:     d.config.AI.Model,
		MaxTokens: d.config.AI.MaxTokens,
	})
	if err != nil {
		return fmt.Errorf("failed to create generation provider: %w", err)
	}
	d.provider = provider
	d.logger.Info().Str("provider", provider.Name()).Msg("Generation provider initialized")

	promptSet, err := prompts.New(d.config.Prompts.Dir, zl)
	if err != nil {
		return fmt.Errorf("failed to load prompt templates: %w", err)
	}
	d.prompts = promptSet
	if d.config.Prompts.Watch && d.config.Prompts.Dir != "" {
		watcher, err := prompts.NewWatcher(promptSet, 0)
		if err != nil {
			return fmt.Errorf("failed to create prompt watcher: %w", err)
		}
		d.watcher = watcher
	}

	d.generator = generator.New(provider, promptSet,
		generator.WithTimeout(d.config.AI.Timeout),
		generator.WithMetrics(d.metrics),
		generator.WithLogger(zl),
	)

	if err := os.MkdirAll(d.config.Export.Dir, 0700); err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}
	d.exporter = export.New(d.config.Export.Dir, d.config.Export.FontDir, zl)
	d.exporter.Metrics = d.metrics

	sweeper, err := export.NewSweeper(d.config.Export.Dir, d.config.Export.SweepSchedule, d.config.Export.MaxAge, d.metrics, zl)
	if err != nil {
		return err
	}
	d.sweeper = sweeper

	api, err := newBotAPI(d.config.Telegram.BotToken)
	if err != nil {
		return fmt.Errorf("failed to connect to telegram: %w", err)
	}
	d.api = api
	d.transport = telegram.NewTransport(api, d.metrics, zl)

	controller, err := conversation.NewController(conversation.Config{
		Store:        d.store,
		Generator:    d.generator,
		Exporter:     d.exporter,
		Transport:    d.transport,
		Metrics:      d.metrics,
		Logger:       zl,
		MessageLimit: d.config.Conversation.MessageLimit,
		ChunkPause:   d.config.Conversation.ChunkPause,
		PreviewLines: d.config.Conversation.PreviewLines,
		Languages:    d.config.Conversation.Languages,
	})
	if err != nil {
		return fmt.Errorf("failed to create conversation controller: %w", err)
	}
	d.controller = controller

	d.handler = telegram.NewHandler(controller, d.transport, d.metrics, zl)
	d.telegramBot = telegram.NewBot(api, d.handler, d.config.Telegram.PollTimeout, zl)

	if d.config.Metrics.Enabled {
		d.metricsSrv = metrics.NewServer(d.config.Metrics.Addr, d.metrics, zl)
	}

	d.lifecycle = NewLifecycleManager(d.config.DataDir, d.logger.Component("lifecycle"))

	return nil
}

func (d *Daemon) openStore(ctx context.Context) (session.Store, error) {
	opts := []session.Option{
		session.WithLogger(d.logger.GetZerolog()),
		session.WithMetrics(d.metrics),
	}

	switch d.config.Storage.Backend {
	case "redis":
		opts = append(opts, session.WithKeyPrefix(d.config.Storage.RedisPrefix))
		store, err := session.OpenRedisStore(ctx, &redis.Options{
			Addr:     d.config.Storage.RedisAddr,
			Password: d.config.Storage.RedisPassword,
			DB:       d.config.Storage.RedisDB,
		}, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to open session store: %w", err)
		}
		return store, nil

	default:
		store, err := session.OpenFileStore(d.config.Storage.SnapshotPath, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to open session store: %w", err)
		}
		return store, nil
	}
}

// Start starts background services and begins polling Telegram
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		return fmt.Errorf("daemon is already running")
	}

	logger := d.logger.GetZerolog().With().Str("trace_id", tracing.NewTraceID()).Logger()
	logger.Info().Msg("Starting casegen daemon")

	if err := d.lifecycle.Start(); err != nil {
		return fmt.Errorf("failed to start lifecycle manager: %w", err)
	}

	if d.metricsSrv != nil {
		d.metricsSrv.Start()
	}

	if d.watcher != nil {
		if err := d.watcher.Start(); err != nil {
			logger.Warn().Err(err).Msg("Failed to start prompt watcher, templates will not hot-reload")
		}
	}

	d.sweeper.Start()

	if err := d.handler.Commands().Publish(d.api); err != nil {
		logger.Warn().Err(err).Msg("Failed to publish bot commands")
	}

	if err := d.telegramBot.Start(ctx); err != nil {
		d.sweeper.Stop(context.Background())
		d.lifecycle.Stop()
		return fmt.Errorf("failed to start telegram bot: %w", err)
	}

	d.running = true
	d.startTime = time.Now()

	logger.Info().Msg("casegen daemon started")
	return nil
}

// Stop stops every component in reverse start order and closes the store
func (d *Daemon) Stop() error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return fmt.Errorf("daemon is not running")
	}
	d.running = false
	d.mu.Unlock()

	logger := d.logger.GetZerolog().With().Str("trace_id", tracing.NewTraceID()).Logger()
	logger.Info().Msg("Stopping casegen daemon")

	if err := d.telegramBot.Stop(); err != nil {
		logger.Error().Err(err).Msg("Failed to stop telegram bot")
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := d.sweeper.Stop(ctx); err != nil {
		logger.Error().Err(err).Msg("Failed to stop export sweeper")
	}

	if d.watcher != nil {
		if err := d.watcher.Stop(); err != nil {
			logger.Error().Err(err).Msg("Failed to stop prompt watcher")
		}
	}

	if d.metricsSrv != nil {
		if err := d.metricsSrv.Shutdown(ctx); err != nil {
			logger.Error().Err(err).Msg("Failed to stop metrics server")
		}
	}

	if err := d.lifecycle.Stop(); err != nil {
		logger.Error().Err(err).Msg("Failed to stop lifecycle manager")
	}

	d.release()

	logger.Info().Msg("casegen daemon stopped")
	return nil
}

// release closes resources that outlive Start/Stop
func (d *Daemon) release() {
	if d.provider != nil {
		if err := generator.CloseProvider(d.provider); err != nil {
			d.logger.Error().Err(err).Msg("Failed to close generation provider")
		}
	}

	if d.store != nil {
		if err := d.store.Close(); err != nil {
			d.logger.Error().Err(err).Msg("Failed to close session store")
		}
	}

	if d.tracingEnabled {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := tracing.ShutdownOpenTelemetry(ctx); err != nil {
			d.logger.Error().Err(err).Msg("Failed to shut down tracing")
		}
		d.tracingEnabled = false
	}
}

// Run starts the daemon and blocks until ctx is cancelled or SIGINT/SIGTERM arrives
func (d *Daemon) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := d.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	d.logger.Info().Msg("Shutdown requested")

	return d.Stop()
}

// Status returns the current daemon status
func (d *Daemon) Status() Status {
	d.mu.RLock()
	defer d.mu.RUnlock()

	status := Status{
		Running: d.running,
	}

	if d.running {
		status.Uptime = time.Since(d.startTime)
		status.StartTime = d.startTime
	}

	if n, err := d.store.Len(context.Background()); err == nil {
		status.Sessions = n
	}

	return status
}

// GetConfig returns the daemon configuration
func (d *Daemon) GetConfig() *config.Config {
	return d.config
}

// GetMetrics returns the metrics registry owner
func (d *Daemon) GetMetrics() *metrics.Metrics {
	return d.metrics
}

// GetStore returns the session store
func (d *Daemon) GetStore() session.Store {
	return d.store
}

// GetHandler returns the Telegram update handler
func (d *Daemon) GetHandler() *telegram.Handler {
	return d.handler
}

// GetTelegramBot returns the Telegram bot
func (d *Daemon) GetTelegramBot() *telegram.Bot {
	return d.telegramBot
}
