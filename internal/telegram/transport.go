package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/harun/casegen/internal/metrics"
	"github.com/harun/casegen/pkg/conversation"
	"github.com/rs/zerolog"
)

// API is the part of tgbotapi.BotAPI the transport needs
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

var _ API = (*tgbotapi.BotAPI)(nil)

// maxRetryAfter caps how long a rate-limited request waits before its single retry
const maxRetryAfter = 30 * time.Second

// Transport implements conversation.Transport over the Bot API
type Transport struct {
	api     API
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

var _ conversation.Transport = (*Transport)(nil)

// NewTransport creates a transport
func NewTransport(api API, m *metrics.Metrics, logger zerolog.Logger) *Transport {
	return &Transport{
		api:     api,
		metrics: m,
		logger:  logger.With().Str("component", "telegram-transport").Logger(),
	}
}

// SendText sends a text message
func (t *Transport) SendText(ctx context.Context, chatID int64, text string, opts conversation.SendOptions) (conversation.MessageRef, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = string(opts.ParseMode)
	if len(opts.Keyboard) > 0 {
		msg.ReplyMarkup = inlineKeyboard(opts.Keyboard)
	}

	var sent tgbotapi.Message
	err := t.withRetry(ctx, func() error {
		var err error
		sent, err = t.api.Send(msg)
		return err
	})
	if err != nil {
		return conversation.MessageRef{}, fmt.Errorf("failed to send message: %w", err)
	}

	t.metrics.MessageSent()
	t.logger.Debug().Int64("chat_id", chatID).Str("parse_mode", msg.ParseMode).Msg("Message sent")
	return conversation.MessageRef{ChatID: chatID, MessageID: sent.MessageID}, nil
}

// EditText replaces the text and keyboard of a sent message
func (t *Transport) EditText(ctx context.Context, ref conversation.MessageRef, text string, opts conversation.SendOptions) error {
	edit := tgbotapi.NewEditMessageText(ref.ChatID, ref.MessageID, text)
	edit.ParseMode = string(opts.ParseMode)
	if len(opts.Keyboard) > 0 {
		markup := inlineKeyboard(opts.Keyboard)
		edit.ReplyMarkup = &markup
	}

	err := t.withRetry(ctx, func() error {
		_, err := t.api.Request(edit)
		return err
	})
	if err != nil && !isNotModified(err) {
		return fmt.Errorf("failed to edit message: %w", err)
	}
	return nil
}

// SendDocument uploads the file at path
func (t *Transport) SendDocument(ctx context.Context, chatID int64, path string) error {
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FilePath(path))

	err := t.withRetry(ctx, func() error {
		_, err := t.api.Send(doc)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to send document: %w", err)
	}

	t.metrics.MessageSent()
	t.logger.Debug().Int64("chat_id", chatID).Str("path", path).Msg("Document sent")
	return nil
}

// AnswerCallback stops the button spinner, optionally showing text
func (t *Transport) AnswerCallback(ctx context.Context, callbackID, text string, alert bool) error {
	cfg := tgbotapi.NewCallback(callbackID, text)
	cfg.ShowAlert = alert

	if _, err := t.api.Request(cfg); err != nil {
		return fmt.Errorf("failed to answer callback: %w", err)
	}
	return nil
}

// withRetry runs call and, when Telegram asks to slow down, retries it once
// after the requested delay. Errors are normalized by classify.
func (t *Transport) withRetry(ctx context.Context, call func() error) error {
	err := call()

	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) && apiErr.RetryAfter > 0 {
		delay := min(time.Duration(apiErr.RetryAfter)*time.Second, maxRetryAfter)
		t.logger.Warn().Dur("retry_after", delay).Msg("Rate limited by Telegram, retrying")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		err = call()
	}

	return classify(err)
}

// classify wraps entity parse failures in conversation.ErrRichTextRejected
func classify(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == 400 &&
		strings.Contains(strings.ToLower(apiErr.Message), "can't parse entities") {
		return fmt.Errorf("%w: %s", conversation.ErrRichTextRejected, apiErr.Message)
	}
	return err
}

// isNotModified reports Telegram's refusal to apply an edit that changes nothing
func isNotModified(err error) bool {
	var apiErr *tgbotapi.Error
	return errors.As(err, &apiErr) && strings.Contains(apiErr.Message, "message is not modified")
}

func inlineKeyboard(kb conversation.Keyboard) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(kb))
	for _, row := range kb {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Text, conversation.EncodeAction(b.Action)))
		}
		rows = append(rows, buttons)
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}
