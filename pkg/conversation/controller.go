package conversation

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/harun/casegen/internal/metrics"
	"github.com/harun/casegen/internal/tracing"
	"github.com/harun/casegen/pkg/export"
	"github.com/harun/casegen/pkg/session"
	"github.com/rs/zerolog"
)

// Defaults for Config fields left zero
const (
	DefaultMessageLimit = 4096
	DefaultChunkPause   = 200 * time.Millisecond
	DefaultPreviewLines = 7
)

// DefaultLanguages are offered in the autotest menu
var DefaultLanguages = []string{"python", "java"}

// codeChunkOverhead reserves room for the part header and fences around a chunk
const codeChunkOverhead = 64

// Generator produces manual tests and autotest code. On failure both methods
// return user-facing replacement text together with the error.
type Generator interface {
	ManualTests(ctx context.Context, description string) (string, error)
	AutotestCode(ctx context.Context, manual, language string) (string, error)
}

// Exporter writes text to files named after the session
type Exporter interface {
	ToDocx(text, name string) (string, error)
	ToPDF(text, name string) (string, error)
	ToSourceFile(text, name, language string) (string, error)
}

// Sleeper pauses between chunked messages
type Sleeper func(ctx context.Context, d time.Duration) error

// Config holds controller dependencies and settings
type Config struct {
	Store     session.Store
	Generator Generator
	Exporter  Exporter
	Transport Transport
	Metrics   *metrics.Metrics
	Logger    zerolog.Logger
	Sleep     Sleeper

	MessageLimit int
	ChunkPause   time.Duration
	PreviewLines int
	Languages    []string
}

// Controller drives the conversation for every chat
type Controller struct {
	store     session.Store
	generator Generator
	exporter  Exporter
	transport Transport
	metrics   *metrics.Metrics
	logger    zerolog.Logger
	sleep     Sleeper

	messageLimit int
	chunkPause   time.Duration
	previewLines int
	languages    []string
}

// NewController creates a controller
func NewController(cfg Config) (*Controller, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if cfg.Generator == nil {
		return nil, fmt.Errorf("generator is required")
	}
	if cfg.Exporter == nil {
		return nil, fmt.Errorf("exporter is required")
	}
	if cfg.Transport == nil {
		return nil, fmt.Errorf("transport is required")
	}

	c := &Controller{
		store:        cfg.Store,
		generator:    cfg.Generator,
		exporter:     cfg.Exporter,
		transport:    cfg.Transport,
		metrics:      cfg.Metrics,
		logger:       cfg.Logger.With().Str("component", "conversation").Logger(),
		sleep:        cfg.Sleep,
		messageLimit: cfg.MessageLimit,
		chunkPause:   cfg.ChunkPause,
		previewLines: cfg.PreviewLines,
		languages:    cfg.Languages,
	}
	if c.sleep == nil {
		c.sleep = sleepContext
	}
	if c.messageLimit <= 0 {
		c.messageLimit = DefaultMessageLimit
	}
	if c.chunkPause < 0 {
		c.chunkPause = 0
	}
	if c.previewLines <= 0 {
		c.previewLines = DefaultPreviewLines
	}
	if len(c.languages) == 0 {
		c.languages = DefaultLanguages
	}
	return c, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// HandleStart greets the user
func (c *Controller) HandleStart(ctx context.Context, chatID int64) error {
	_, err := c.transport.SendText(ctx, chatID, greetingText, SendOptions{})
	return err
}

// HandleHelp explains how to use the bot
func (c *Controller) HandleHelp(ctx context.Context, chatID int64) error {
	_, err := c.transport.SendText(ctx, chatID, helpText, SendOptions{})
	return err
}

// HandleText treats text as a feature description: it generates manual tests,
// stores them in a new session and shows a preview with the action keyboard.
func (c *Controller) HandleText(ctx context.Context, chatID int64, text string) error {
	logger := tracing.LoggerFromContext(ctx, c.logger)

	if strings.TrimSpace(text) == "" {
		_, err := c.transport.SendText(ctx, chatID, emptyFeatureText, SendOptions{})
		return err
	}

	if _, err := c.transport.SendText(ctx, chatID, analyzingText, SendOptions{}); err != nil {
		return fmt.Errorf("failed to send progress notice: %w", err)
	}

	raw, err := c.generator.ManualTests(ctx, text)
	if err != nil {
		logger.Warn().Err(err).Msg("Manual test generation failed")
		_, sendErr := c.transport.SendText(ctx, chatID, raw, SendOptions{})
		return sendErr
	}

	manual := SanitizeMarkdown(raw)
	id := session.NewID()
	ctx = tracing.WithSessionID(ctx, id)
	logger = tracing.LoggerFromContext(ctx, c.logger)

	if err := c.store.Put(ctx, id, session.Session{Manual: manual, CreatedAt: time.Now().UTC()}); err != nil {
		logger.Error().Err(err).Msg("Failed to store session")
		if _, sendErr := c.transport.SendText(ctx, chatID, storeFailedText, SendOptions{}); sendErr != nil {
			logger.Error().Err(sendErr).Msg("Failed to send store failure notice")
		}
		return fmt.Errorf("failed to store session: %w", err)
	}
	c.metrics.SessionCreated()
	logger.Info().Int("length", len(manual)).Msg("Session created")

	return c.sendPreview(ctx, chatID, id, manual)
}

// HandleCallback dispatches an inline button press
func (c *Controller) HandleCallback(ctx context.Context, cb Callback) error {
	logger := tracing.LoggerFromContext(ctx, c.logger)

	action, err := ParseAction(cb.Data)
	if err != nil {
		logger.Warn().Err(err).Msg("Ignoring callback")
		return c.transport.AnswerCallback(ctx, cb.ID, "", false)
	}

	if _, ok := action.(NewFeature); ok {
		ref := MessageRef{ChatID: cb.ChatID, MessageID: cb.MessageID}
		if err := c.transport.EditText(ctx, ref, newFeatureText, SendOptions{}); err != nil {
			return err
		}
		return c.transport.AnswerCallback(ctx, cb.ID, "", false)
	}

	id, _ := SessionOf(action)
	ctx = tracing.WithSessionID(ctx, id)

	manual, ok := c.lookup(ctx, id)
	if !ok {
		c.metrics.ExpiredSessionHit()
		return c.transport.AnswerCallback(ctx, cb.ID, sessionExpiredText, true)
	}

	switch a := action.(type) {
	case ExportDocx:
		err = c.exportManual(ctx, cb, "docx", manual, c.exporter.ToDocx)
	case ExportPDF:
		err = c.exportManual(ctx, cb, "pdf", manual, c.exporter.ToPDF)
	case ShowFullManual:
		err = c.showFullManual(ctx, cb, manual)
	case AutotestMenu:
		err = c.transport.EditText(ctx, MessageRef{ChatID: cb.ChatID, MessageID: cb.MessageID},
			chooseLanguageText, SendOptions{Keyboard: LanguageKeyboard(id, c.languages)})
	case GenerateAutotest:
		if !slices.Contains(c.languages, a.Language) {
			logger.Warn().Str("language", a.Language).Msg("Unsupported autotest language")
			return c.transport.AnswerCallback(ctx, cb.ID, unsupportedLangText, true)
		}
		err = c.generateAutotest(ctx, cb, a.Language, manual)
	case BackToManual:
		err = c.editPreview(ctx, cb, manual)
	default:
		err = fmt.Errorf("%w: %T", ErrUnknownAction, a)
	}
	if err != nil {
		// the button spinner still has to stop
		if ansErr := c.transport.AnswerCallback(ctx, cb.ID, "", false); ansErr != nil {
			logger.Debug().Err(ansErr).Msg("Failed to answer callback")
		}
		return err
	}
	return c.transport.AnswerCallback(ctx, cb.ID, "", false)
}

// lookup returns the manual text of session id. Missing, empty and
// unreadable sessions all count as expired.
func (c *Controller) lookup(ctx context.Context, id string) (string, bool) {
	s, ok, err := c.store.Get(ctx, id)
	if err != nil {
		logger := tracing.LoggerFromContext(ctx, c.logger)
		logger.Error().Err(err).Msg("Failed to load session")
		return "", false
	}
	if !ok || s.Manual == "" {
		return "", false
	}
	return s.Manual, true
}

func (c *Controller) preview(manual string) string {
	lines := strings.Split(manual, "\n")
	if len(lines) > c.previewLines {
		lines = lines[:c.previewLines]
	}
	return previewHeader + strings.Join(lines, "\n") + previewEllipsis
}

// plainPreview drops the markdown markers for the plain-text fallback
func (c *Controller) plainPreview(manual string) string {
	return strings.ReplaceAll(c.preview(manual), "**", "")
}

func (c *Controller) sendPreview(ctx context.Context, chatID int64, id, manual string) error {
	kb := MainKeyboard(id)
	_, err := c.transport.SendText(ctx, chatID, c.preview(manual), SendOptions{ParseMode: ParseMarkdown, Keyboard: kb})
	if errors.Is(err, ErrRichTextRejected) {
		c.fallback(ctx, "preview", err)
		_, err = c.transport.SendText(ctx, chatID, c.plainPreview(manual), SendOptions{Keyboard: kb})
	}
	if err != nil {
		return fmt.Errorf("failed to send preview: %w", err)
	}
	return nil
}

func (c *Controller) editPreview(ctx context.Context, cb Callback, manual string) error {
	id := tracing.GetSessionID(ctx)
	ref := MessageRef{ChatID: cb.ChatID, MessageID: cb.MessageID}
	kb := MainKeyboard(id)

	err := c.transport.EditText(ctx, ref, c.preview(manual), SendOptions{ParseMode: ParseMarkdown, Keyboard: kb})
	if errors.Is(err, ErrRichTextRejected) {
		c.fallback(ctx, "preview", err)
		err = c.transport.EditText(ctx, ref, c.plainPreview(manual), SendOptions{Keyboard: kb})
	}
	if err != nil {
		return fmt.Errorf("failed to show preview: %w", err)
	}
	return nil
}

func (c *Controller) fallback(ctx context.Context, kind string, err error) {
	c.metrics.DeliveryFallback(kind)
	logger := tracing.LoggerFromContext(ctx, c.logger)
	logger.Warn().Err(err).Str("kind", kind).Msg("Rich text rejected, falling back to plain text")
}

// exportManual renders the manual text with render, sends the file and removes it
func (c *Controller) exportManual(ctx context.Context, cb Callback, format, manual string, render func(text, name string) (string, error)) error {
	logger := tracing.LoggerFromContext(ctx, c.logger)
	id := tracing.GetSessionID(ctx)

	path, err := render(manual, id)
	if err != nil {
		logger.Error().Err(err).Str("format", format).Msg("Export failed")
		if _, sendErr := c.transport.SendText(ctx, cb.ChatID, exportFailedText, SendOptions{}); sendErr != nil {
			return sendErr
		}
		return nil
	}
	defer c.remove(ctx, path)

	if err := c.transport.SendDocument(ctx, cb.ChatID, path); err != nil {
		return fmt.Errorf("failed to send %s: %w", format, err)
	}
	logger.Info().Str("format", format).Msg("Manual tests exported")
	return nil
}

func (c *Controller) remove(ctx context.Context, path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logger := tracing.LoggerFromContext(ctx, c.logger)
		logger.Warn().Err(err).Str("path", path).Msg("Failed to remove export file")
	}
}

// showFullManual sends the whole manual text, split to fit the message limit,
// then re-offers the action keyboard
func (c *Controller) showFullManual(ctx context.Context, cb Callback, manual string) error {
	mode := ParseMarkdown
	var deliveryErr error
	for _, chunk := range export.SplitText(manual, c.messageLimit) {
		_, err := c.transport.SendText(ctx, cb.ChatID, chunk, SendOptions{ParseMode: mode})
		if errors.Is(err, ErrRichTextRejected) && mode != ParsePlain {
			c.fallback(ctx, "manual", err)
			mode = ParsePlain
			_, err = c.transport.SendText(ctx, cb.ChatID, chunk, SendOptions{})
		}
		if err != nil {
			deliveryErr = fmt.Errorf("failed to send manual tests: %w", err)
			break
		}
	}

	_, err := c.transport.SendText(ctx, cb.ChatID, nextActionText, SendOptions{Keyboard: MainKeyboard(tracing.GetSessionID(ctx))})
	if deliveryErr != nil {
		return deliveryErr
	}
	return err
}

// generateAutotest generates code for language and delivers it as messages and a file
func (c *Controller) generateAutotest(ctx context.Context, cb Callback, language, manual string) error {
	logger := tracing.LoggerFromContext(ctx, c.logger).With().Str("language", language).Logger()
	id := tracing.GetSessionID(ctx)

	ref := MessageRef{ChatID: cb.ChatID, MessageID: cb.MessageID}
	if err := c.transport.EditText(ctx, ref, fmt.Sprintf(generatingText, languageTitle(language)), SendOptions{}); err != nil {
		logger.Warn().Err(err).Msg("Failed to show progress notice")
	}

	raw, err := c.generator.AutotestCode(ctx, manual, language)
	if err != nil {
		logger.Warn().Err(err).Msg("Autotest generation failed")
		_, sendErr := c.transport.SendText(ctx, cb.ChatID, raw, SendOptions{Keyboard: LanguageKeyboard(id, c.languages)})
		return sendErr
	}
	code := SanitizeCode(raw, language)

	if err := c.deliverCode(ctx, cb.ChatID, code, language); err != nil {
		return err
	}

	path, err := c.exporter.ToSourceFile(code, id, language)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to write source file")
		if _, sendErr := c.transport.SendText(ctx, cb.ChatID, exportFailedText, SendOptions{}); sendErr != nil {
			return sendErr
		}
	} else {
		defer c.remove(ctx, path)
		if err := c.transport.SendDocument(ctx, cb.ChatID, path); err != nil {
			return fmt.Errorf("failed to send source file: %w", err)
		}
	}

	logger.Info().Int("length", len(code)).Msg("Autotest delivered")
	_, err = c.transport.SendText(ctx, cb.ChatID, autotestDoneText, SendOptions{Keyboard: ResultKeyboard(id)})
	return err
}

// deliverCode sends code as one HTML block when it fits, otherwise as
// MarkdownV2 chunks. If the transport rejects the formatting every chunk is
// sent again as plain text.
func (c *Controller) deliverCode(ctx context.Context, chatID int64, code, language string) error {
	var err error
	if block := htmlCodeBlock(code, language); utf8.RuneCountInString(block) <= c.messageLimit {
		_, err = c.transport.SendText(ctx, chatID, block, SendOptions{ParseMode: ParseHTML})
	} else {
		err = c.sendCodeChunks(ctx, chatID, code, language)
	}
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrRichTextRejected) {
		return fmt.Errorf("failed to send autotest code: %w", err)
	}

	c.fallback(ctx, "code", err)
	if _, err := c.transport.SendText(ctx, chatID, codeFallbackText, SendOptions{}); err != nil {
		return fmt.Errorf("failed to send autotest code: %w", err)
	}
	for _, chunk := range export.SplitText(code, c.messageLimit) {
		if _, err := c.transport.SendText(ctx, chatID, chunk, SendOptions{}); err != nil {
			return fmt.Errorf("failed to send autotest code: %w", err)
		}
		if err := c.sleep(ctx, c.chunkPause); err != nil {
			return err
		}
	}
	return nil
}

func (c *Controller) sendCodeChunks(ctx context.Context, chatID int64, code, language string) error {
	budget := c.messageLimit - codeChunkOverhead - utf8.RuneCountInString(language)
	measure := func(s string) int { return utf8.RuneCountInString(escapeMarkdownV2Code(s)) }
	chunks := fitChunks(code, budget, budget, measure)

	for i, chunk := range chunks {
		header := ""
		if len(chunks) > 1 {
			header = escapeMarkdownV2(fmt.Sprintf(codePartHeader, i+1, len(chunks)))
		}
		text := header + "```" + language + "\n" + escapeMarkdownV2Code(chunk) + "\n```"
		if _, err := c.transport.SendText(ctx, chatID, text, SendOptions{ParseMode: ParseMarkdownV2}); err != nil {
			return err
		}
		if err := c.sleep(ctx, c.chunkPause); err != nil {
			return err
		}
	}
	return nil
}

// fitChunks splits text so that measure(chunk) <= limit for every chunk,
// splitting again with a smaller size where escaping made a chunk grow
func fitChunks(text string, limit, size int, measure func(string) int) []string {
	if size < 1 {
		size = 1
	}
	var out []string
	for _, chunk := range export.SplitText(text, size) {
		if measure(chunk) <= limit || size == 1 {
			out = append(out, chunk)
			continue
		}
		out = append(out, fitChunks(chunk, limit, size/2, measure)...)
	}
	return out
}
