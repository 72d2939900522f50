package conversation

import (
	"context"
	"errors"
)

// ErrRichTextRejected is wrapped by Transport errors when the chat service
// refuses to parse formatted text
var ErrRichTextRejected = errors.New("rich text rejected")

// ParseMode selects how message text is interpreted
type ParseMode string

// Parse modes
const (
	ParsePlain      ParseMode = ""
	ParseMarkdown   ParseMode = "Markdown"
	ParseMarkdownV2 ParseMode = "MarkdownV2"
	ParseHTML       ParseMode = "HTML"
)

// Button is an inline button that triggers Action when pressed
type Button struct {
	Text   string
	Action Action
}

// Keyboard is an inline keyboard, one slice per row
type Keyboard [][]Button

// SendOptions controls message formatting and attached buttons
type SendOptions struct {
	ParseMode ParseMode
	Keyboard  Keyboard
}

// MessageRef identifies a delivered message
type MessageRef struct {
	ChatID    int64
	MessageID int
}

// Callback is an inline button press
type Callback struct {
	ID        string
	ChatID    int64
	MessageID int
	Data      string
}

// Transport delivers messages to the chat service
type Transport interface {
	SendText(ctx context.Context, chatID int64, text string, opts SendOptions) (MessageRef, error)
	EditText(ctx context.Context, ref MessageRef, text string, opts SendOptions) error
	SendDocument(ctx context.Context, chatID int64, path string) error
	AnswerCallback(ctx context.Context, callbackID, text string, alert bool) error
}
