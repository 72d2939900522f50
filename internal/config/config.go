package config

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Config represents the main casegen configuration
type Config struct {
	// Telegram
	Telegram TelegramConfig `json:"telegram" mapstructure:"telegram"`

	// AI text generation
	AI AIConfig `json:"ai" mapstructure:"ai"`

	// Session storage
	Storage StorageConfig `json:"storage" mapstructure:"storage"`

	// Exported files
	Export ExportConfig `json:"export" mapstructure:"export"`

	// Chat behaviour
	Conversation ConversationConfig `json:"conversation" mapstructure:"conversation"`

	// Prompt templates
	Prompts PromptsConfig `json:"prompts" mapstructure:"prompts"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Metrics endpoint
	Metrics MetricsConfig `json:"metrics" mapstructure:"metrics"`

	// Tracing
	Tracing TracingConfig `json:"tracing" mapstructure:"tracing"`

	// Data directory
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
}

// TelegramConfig holds Telegram bot configuration
type TelegramConfig struct {
	BotToken    string `json:"bot_token" mapstructure:"bot_token"`
	PollTimeout int    `json:"poll_timeout" mapstructure:"poll_timeout"` // seconds
}

// AIConfig holds text-generation provider configuration
type AIConfig struct {
	Provider  string        `json:"provider" mapstructure:"provider"` // gemini, openai, anthropic
	APIKey    string        `json:"api_key" mapstructure:"api_key"`
	Model     string        `json:"model" mapstructure:"model"`
	Timeout   time.Duration `json:"timeout" mapstructure:"timeout"`
	MaxTokens int           `json:"max_tokens" mapstructure:"max_tokens"`
}

// StorageConfig selects and configures the session store
type StorageConfig struct {
	Backend       string `json:"backend" mapstructure:"backend"` // file, redis
	SnapshotPath  string `json:"snapshot_path" mapstructure:"snapshot_path"`
	RedisAddr     string `json:"redis_addr" mapstructure:"redis_addr"`
	RedisPassword string `json:"redis_password" mapstructure:"redis_password"`
	RedisDB       int    `json:"redis_db" mapstructure:"redis_db"`
	RedisPrefix   string `json:"redis_prefix" mapstructure:"redis_prefix"`
}

// ExportConfig holds settings for generated documents
type ExportConfig struct {
	Dir           string        `json:"dir" mapstructure:"dir"`
	FontDir       string        `json:"font_dir" mapstructure:"font_dir"`
	SweepSchedule string        `json:"sweep_schedule" mapstructure:"sweep_schedule"`
	MaxAge        time.Duration `json:"max_age" mapstructure:"max_age"`
}

// ConversationConfig tunes message delivery
type ConversationConfig struct {
	MessageLimit int           `json:"message_limit" mapstructure:"message_limit"`
	ChunkPause   time.Duration `json:"chunk_pause" mapstructure:"chunk_pause"`
	PreviewLines int           `json:"preview_lines" mapstructure:"preview_lines"`
	Languages    []string      `json:"languages" mapstructure:"languages"`
}

// PromptsConfig points at an optional template override directory
type PromptsConfig struct {
	Dir   string `json:"dir" mapstructure:"dir"`
	Watch bool   `json:"watch" mapstructure:"watch"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	Console   bool   `json:"console" mapstructure:"console"`
	Pretty    bool   `json:"pretty" mapstructure:"pretty"`
	MaxSize   int    `json:"max_size" mapstructure:"max_size"` // MB
	MaxAge    int    `json:"max_age" mapstructure:"max_age"`   // days
	Compress  bool   `json:"compress" mapstructure:"compress"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
}

// MetricsConfig holds the metrics server configuration
type MetricsConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Addr    string `json:"addr" mapstructure:"addr"`
}

// TracingConfig toggles the otel tracer provider
type TracingConfig struct {
	Enabled bool `json:"enabled" mapstructure:"enabled"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Telegram: TelegramConfig{
			PollTimeout: 60,
		},
		AI: AIConfig{
			Provider:  "gemini",
			Timeout:   2 * time.Minute,
			MaxTokens: 8192,
		},
		Storage: StorageConfig{
			Backend:     "file",
			RedisAddr:   "localhost:6379",
			RedisPrefix: "casegen:",
		},
		Export: ExportConfig{
			FontDir:       "/usr/share/fonts/truetype/dejavu",
			SweepSchedule: "@every 10m",
			MaxAge:        30 * time.Minute,
		},
		Conversation: ConversationConfig{
			MessageLimit: 4096,
			ChunkPause:   200 * time.Millisecond,
			PreviewLines: 7,
			Languages:    []string{"python", "java"},
		},
		Logging: LoggingConfig{
			Level:     "info",
			Console:   true,
			Pretty:    true,
			MaxSize:   100,
			MaxAge:    7,
			Compress:  true,
			Redaction: true,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    "127.0.0.1:9090",
		},
	}
}

// String returns a JSON representation of the config
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// Validate checks that the service can start with this configuration
func (c *Config) Validate() error {
	if c.Telegram.BotToken == "" {
		return fmt.Errorf("telegram bot token is required")
	}

	if c.AI.APIKey == "" {
		return fmt.Errorf("ai api_key is required")
	}
	switch c.AI.Provider {
	case "gemini", "openai", "anthropic":
	default:
		return fmt.Errorf("invalid AI provider %s (must be: gemini, openai, anthropic)", c.AI.Provider)
	}

	switch c.Storage.Backend {
	case "file":
		if c.Storage.SnapshotPath == "" {
			return fmt.Errorf("storage snapshot_path is required for the file backend")
		}
	case "redis":
		if c.Storage.RedisAddr == "" {
			return fmt.Errorf("storage redis_addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("invalid storage backend %s (must be: file, redis)", c.Storage.Backend)
	}

	if c.Export.Dir == "" {
		return fmt.Errorf("export dir is required")
	}
	if err := c.checkExportDir(); err != nil {
		return err
	}
	if c.Conversation.MessageLimit <= 0 {
		return fmt.Errorf("conversation message_limit must be positive")
	}
	if len(c.Conversation.Languages) == 0 {
		return fmt.Errorf("at least one autotest language must be configured")
	}
	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return fmt.Errorf("metrics addr is required when metrics are enabled")
	}

	return nil
}

// checkExportDir rejects an export dir that is, or contains, a directory
// holding state the sweeper must never delete
func (c *Config) checkExportDir() error {
	guarded := []struct{ name, dir string }{
		{"data_dir", c.DataDir},
	}
	if c.Storage.SnapshotPath != "" {
		guarded = append(guarded, struct{ name, dir string }{"storage snapshot_path", filepath.Dir(c.Storage.SnapshotPath)})
	}
	if c.Logging.File != "" {
		guarded = append(guarded, struct{ name, dir string }{"logging file", filepath.Dir(c.Logging.File)})
	}

	for _, g := range guarded {
		if g.dir != "" && dirContains(c.Export.Dir, g.dir) {
			return fmt.Errorf("export dir %s must not contain the %s directory %s", c.Export.Dir, g.name, g.dir)
		}
	}
	return nil
}

// dirContains reports whether dir equals parent or lies beneath it
func dirContains(parent, dir string) bool {
	parent, err := filepath.Abs(parent)
	if err != nil {
		return false
	}
	dir, err = filepath.Abs(dir)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(parent, dir)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
