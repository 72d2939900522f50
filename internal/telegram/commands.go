package telegram

import (
	"context"
	"fmt"
	"sort"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// CommandFunc handles a bot command
type CommandFunc func(ctx context.Context, cmd CommandContext) error

// CommandContext contains command metadata
type CommandContext struct {
	ChatID    int64
	MessageID int
	Command   string
	Args      []string
}

type command struct {
	description string
	handler     CommandFunc
}

// Commands routes slash commands to their handlers
type Commands struct {
	logger   zerolog.Logger
	handlers map[string]command
	unknown  CommandFunc
}

// NewCommands creates an empty command registry. unknown handles commands
// that were never registered and may be nil.
func NewCommands(logger zerolog.Logger, unknown CommandFunc) *Commands {
	return &Commands{
		logger:   logger.With().Str("module", "commands").Logger(),
		handlers: make(map[string]command),
		unknown:  unknown,
	}
}

// Register registers a command handler
func (c *Commands) Register(name, description string, handler CommandFunc) {
	c.handlers[name] = command{description: description, handler: handler}
}

// Handle runs the handler for the command in msg
func (c *Commands) Handle(ctx context.Context, msg *tgbotapi.Message) error {
	if msg == nil || !msg.IsCommand() {
		return nil
	}

	cmd := CommandContext{
		ChatID:    msg.Chat.ID,
		MessageID: msg.MessageID,
		Command:   strings.ToLower(msg.Command()),
		Args:      strings.Fields(msg.CommandArguments()),
	}

	c.logger.Debug().
		Int64("chat_id", cmd.ChatID).
		Str("command", cmd.Command).
		Msg("Command received")

	entry, ok := c.handlers[cmd.Command]
	if !ok {
		if c.unknown == nil {
			return nil
		}
		return c.unknown(ctx, cmd)
	}
	return entry.handler(ctx, cmd)
}

// BotCommands returns the registered commands sorted by name, for the Telegram menu
func (c *Commands) BotCommands() []tgbotapi.BotCommand {
	names := make([]string, 0, len(c.handlers))
	for name := range c.handlers {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]tgbotapi.BotCommand, 0, len(names))
	for _, name := range names {
		out = append(out, tgbotapi.BotCommand{Command: name, Description: c.handlers[name].description})
	}
	return out
}

// Publish sets the bot's command menu in Telegram
func (c *Commands) Publish(api API) error {
	commands := c.BotCommands()
	if _, err := api.Request(tgbotapi.NewSetMyCommands(commands...)); err != nil {
		return fmt.Errorf("failed to set commands: %w", err)
	}

	c.logger.Info().Int("count", len(commands)).Msg("Bot commands updated")
	return nil
}
