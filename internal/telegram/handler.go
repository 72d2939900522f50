package telegram

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/harun/casegen/internal/metrics"
	"github.com/harun/casegen/internal/tracing"
	"github.com/harun/casegen/pkg/conversation"
	"github.com/rs/zerolog"
)

// Controller receives the parsed chat events
type Controller interface {
	HandleStart(ctx context.Context, chatID int64) error
	HandleHelp(ctx context.Context, chatID int64) error
	HandleText(ctx context.Context, chatID int64, text string) error
	HandleCallback(ctx context.Context, cb conversation.Callback) error
}

var _ Controller = (*conversation.Controller)(nil)

const unknownCommandText = "Unknown command: /%s. Send /help to see what I can do."

// Handler turns Telegram updates into controller calls
type Handler struct {
	controller Controller
	transport  conversation.Transport
	commands   *Commands
	metrics    *metrics.Metrics
	logger     zerolog.Logger
}

// NewHandler creates a handler with the /start and /help commands registered
func NewHandler(controller Controller, transport conversation.Transport, m *metrics.Metrics, logger zerolog.Logger) *Handler {
	h := &Handler{
		controller: controller,
		transport:  transport,
		metrics:    m,
		logger:     logger.With().Str("module", "handler").Logger(),
	}

	h.commands = NewCommands(logger, h.unknownCommand)
	h.commands.Register("start", "Start over", func(ctx context.Context, cmd CommandContext) error {
		return h.controller.HandleStart(ctx, cmd.ChatID)
	})
	h.commands.Register("help", "How to use the bot", func(ctx context.Context, cmd CommandContext) error {
		return h.controller.HandleHelp(ctx, cmd.ChatID)
	})

	return h
}

// Commands returns the command registry
func (h *Handler) Commands() *Commands {
	return h.commands
}

// HandleUpdate dispatches one update
func (h *Handler) HandleUpdate(ctx context.Context, update tgbotapi.Update) error {
	switch {
	case update.CallbackQuery != nil:
		h.metrics.UpdateReceived("callback_query")
		return h.handleCallback(ctx, update.CallbackQuery)

	case update.Message != nil:
		h.metrics.UpdateReceived("message")
		return h.handleMessage(ctx, update.Message)

	default:
		h.metrics.UpdateReceived("other")
		return nil
	}
}

func (h *Handler) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.Chat == nil {
		return nil
	}
	ctx = tracing.NewUpdateContext(ctx, msg.Chat.ID)

	logger := tracing.LoggerFromContext(ctx, h.logger)
	logger.Debug().Int("message_id", msg.MessageID).Bool("command", msg.IsCommand()).Msg("Message received")

	if msg.IsCommand() {
		return h.commands.Handle(ctx, msg)
	}
	return h.controller.HandleText(ctx, msg.Chat.ID, ParseCaption(msg))
}

func (h *Handler) handleCallback(ctx context.Context, q *tgbotapi.CallbackQuery) error {
	// callbacks from inline-mode messages carry no chat
	if q.Message == nil || q.Message.Chat == nil {
		h.logger.Debug().Str("callback_id", q.ID).Msg("Ignoring callback without message")
		return h.transport.AnswerCallback(ctx, q.ID, "", false)
	}

	ctx = tracing.NewUpdateContext(ctx, q.Message.Chat.ID)
	logger := tracing.LoggerFromContext(ctx, h.logger)
	logger.Debug().Str("data", q.Data).Msg("Callback received")

	return h.controller.HandleCallback(ctx, conversation.Callback{
		ID:        q.ID,
		ChatID:    q.Message.Chat.ID,
		MessageID: q.Message.MessageID,
		Data:      q.Data,
	})
}

func (h *Handler) unknownCommand(ctx context.Context, cmd CommandContext) error {
	_, err := h.transport.SendText(ctx, cmd.ChatID, fmt.Sprintf(unknownCommandText, cmd.Command), conversation.SendOptions{})
	return err
}

// ParseCaption extracts the text of a message, falling back to a media caption
func ParseCaption(msg *tgbotapi.Message) string {
	if msg.Text != "" {
		return msg.Text
	}
	return msg.Caption
}
