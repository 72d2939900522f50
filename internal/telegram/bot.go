package telegram

import (
	"context"
	"fmt"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// DefaultPollTimeout is the long polling timeout in seconds
const DefaultPollTimeout = 60

// UpdateSource delivers updates by long polling
type UpdateSource interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

var _ UpdateSource = (*tgbotapi.BotAPI)(nil)

// NewAPI authenticates against the Bot API with token
func NewAPI(token string) (*tgbotapi.BotAPI, error) {
	if token == "" {
		return nil, fmt.Errorf("bot token is required")
	}

	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot API: %w", err)
	}
	return api, nil
}

// Bot receives updates and dispatches them one at a time to the handler
type Bot struct {
	source      UpdateSource
	handler     *Handler
	pollTimeout int
	logger      zerolog.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewBot creates a bot reading from source
func NewBot(source UpdateSource, handler *Handler, pollTimeout int, logger zerolog.Logger) *Bot {
	if pollTimeout <= 0 {
		pollTimeout = DefaultPollTimeout
	}
	return &Bot{
		source:      source,
		handler:     handler,
		pollTimeout: pollTimeout,
		logger:      logger.With().Str("component", "telegram").Logger(),
	}
}

// Start begins polling. Updates are handled sequentially on a single goroutine.
func (b *Bot) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.running {
		return fmt.Errorf("bot is already running")
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.pollTimeout
	u.AllowedUpdates = []string{"message", "callback_query"}
	updates := b.source.GetUpdatesChan(u)

	ctx, b.cancel = context.WithCancel(ctx)
	b.done = make(chan struct{})
	b.running = true

	go b.processUpdates(ctx, updates, b.done)

	b.logger.Info().Int("poll_timeout", b.pollTimeout).Msg("Telegram bot started")
	return nil
}

// Stop stops polling and waits for the update being handled to finish
func (b *Bot) Stop() error {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return fmt.Errorf("bot is not running")
	}
	b.running = false
	done := b.done
	b.source.StopReceivingUpdates()
	b.cancel()
	b.mu.Unlock()

	<-done
	b.logger.Info().Msg("Telegram bot stopped")
	return nil
}

// IsRunning returns whether the bot is running
func (b *Bot) IsRunning() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.running
}

func (b *Bot) processUpdates(ctx context.Context, updates tgbotapi.UpdatesChannel, done chan struct{}) {
	defer close(done)

	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			// a started update runs to completion even when the bot is stopping
			b.dispatch(context.WithoutCancel(ctx), update)
		}
	}
}

// dispatch handles one update; failures are logged and never stop the loop
func (b *Bot) dispatch(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error().
				Interface("panic", r).
				Int("update_id", update.UpdateID).
				Msg("Update handler panicked")
		}
	}()

	if err := b.handler.HandleUpdate(ctx, update); err != nil {
		b.logger.Error().
			Err(err).
			Int("update_id", update.UpdateID).
			Msg("Failed to handle update")
	}
}
