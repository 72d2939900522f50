package config

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/robfig/cron/v3"
)

var (
	telegramTokenPattern = regexp.MustCompile(`^\d+:[A-Za-z0-9_-]+$`)
	languagePattern      = regexp.MustCompile(`^[a-z][a-z0-9+#]*$`)
)

// maxLanguageLen keeps "gen_auto:<language>:<uuid>" within Telegram's
// 64-byte callback_data limit
const maxLanguageLen = 64 - len("gen_auto:") - len(":") - 36

// Validator checks the format of configuration values
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateAPIKey validates an API key format
func (v *Validator) ValidateAPIKey(key string, provider string) error {
	if key == "" {
		return fmt.Errorf("%s API key cannot be empty", provider)
	}

	switch provider {
	case "anthropic":
		if !strings.HasPrefix(key, "sk-ant-") {
			return fmt.Errorf("invalid Anthropic API key format (should start with sk-ant-)")
		}
	case "openai":
		if !strings.HasPrefix(key, "sk-") {
			return fmt.Errorf("invalid OpenAI API key format (should start with sk-)")
		}
	case "gemini":
		if !strings.HasPrefix(key, "AIza") {
			return fmt.Errorf("invalid Gemini API key format (should start with AIza)")
		}
	}

	return nil
}

// ValidateTelegramToken validates a Telegram bot token
func (v *Validator) ValidateTelegramToken(token string) error {
	if token == "" {
		return fmt.Errorf("telegram bot token cannot be empty")
	}

	// <bot_id>:<secret>, e.g. 123456789:ABCdefGHIjklMNOpqrsTUVwxyz
	if !telegramTokenPattern.MatchString(token) {
		return fmt.Errorf("invalid Telegram bot token format")
	}

	return nil
}

// ValidateMaxTokens validates max tokens value
func (v *Validator) ValidateMaxTokens(tokens int) error {
	if tokens <= 0 {
		return fmt.Errorf("max tokens must be positive, got %d", tokens)
	}
	if tokens > 200000 {
		return fmt.Errorf("max tokens too large (max 200000), got %d", tokens)
	}
	return nil
}

// ValidateLogLevel validates log level
func (v *Validator) ValidateLogLevel(level string) error {
	validLevels := []string{"debug", "info", "warn", "error"}
	for _, valid := range validLevels {
		if level == valid {
			return nil
		}
	}
	return fmt.Errorf("invalid log level: %s (must be one of: %s)", level, strings.Join(validLevels, ", "))
}

// ValidateLanguages checks autotest language names and rejects duplicates
func (v *Validator) ValidateLanguages(languages []string) error {
	seen := make(map[string]bool, len(languages))
	for _, lang := range languages {
		if !languagePattern.MatchString(lang) {
			return fmt.Errorf("invalid autotest language %q (lowercase name expected)", lang)
		}
		if len(lang) > maxLanguageLen {
			return fmt.Errorf("autotest language %q is too long (max %d characters)", lang, maxLanguageLen)
		}
		if seen[lang] {
			return fmt.Errorf("duplicate autotest language %q", lang)
		}
		seen[lang] = true
	}
	return nil
}

// ValidateSchedule checks a cron spec or @every descriptor
func (v *Validator) ValidateSchedule(schedule string) error {
	if schedule == "" {
		return nil // use default
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	return nil
}

// ValidateConfig performs comprehensive validation
func (v *Validator) ValidateConfig(cfg *Config) []error {
	var errors []error

	if cfg.Telegram.BotToken != "" {
		if err := v.ValidateTelegramToken(cfg.Telegram.BotToken); err != nil {
			errors = append(errors, err)
		}
	}
	if cfg.Telegram.PollTimeout < 0 {
		errors = append(errors, fmt.Errorf("telegram poll_timeout must be >= 0"))
	}

	if cfg.AI.APIKey != "" {
		if err := v.ValidateAPIKey(cfg.AI.APIKey, cfg.AI.Provider); err != nil {
			errors = append(errors, err)
		}
	}
	if cfg.AI.MaxTokens != 0 {
		if err := v.ValidateMaxTokens(cfg.AI.MaxTokens); err != nil {
			errors = append(errors, err)
		}
	}
	if cfg.AI.Timeout < 0 {
		errors = append(errors, fmt.Errorf("ai timeout must be >= 0"))
	}

	if err := v.ValidateLanguages(cfg.Conversation.Languages); err != nil {
		errors = append(errors, err)
	}
	if cfg.Conversation.ChunkPause < 0 {
		errors = append(errors, fmt.Errorf("conversation chunk_pause must be >= 0"))
	}
	if cfg.Conversation.PreviewLines < 0 {
		errors = append(errors, fmt.Errorf("conversation preview_lines must be >= 0"))
	}

	if err := v.ValidateSchedule(cfg.Export.SweepSchedule); err != nil {
		errors = append(errors, err)
	}
	if cfg.Export.MaxAge < 0 {
		errors = append(errors, fmt.Errorf("export max_age must be >= 0"))
	}

	if err := v.ValidateLogLevel(cfg.Logging.Level); err != nil {
		errors = append(errors, err)
	}

	return errors
}
