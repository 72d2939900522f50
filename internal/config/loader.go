package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. CASEGEN_AI_MODEL
const EnvPrefix = "CASEGEN"

// envAliases are conventional variable names accepted next to the prefixed ones
var envAliases = map[string]string{
	"telegram.bot_token": "TELEGRAM_TOKEN",
	"ai.api_key":         "GEMINI_API_KEY",
}

// Loader handles configuration loading
type Loader struct {
	configPath string
}

// NewLoader creates a new config loader
func NewLoader(configPath string) *Loader {
	return &Loader{
		configPath: configPath,
	}
}

// Load reads the config file when it exists, applies environment overrides
// and fills in paths derived from the data directory.
func (l *Loader) Load() (*Config, error) {
	configPath := l.GetConfigPath()
	if configPath == "" {
		return nil, fmt.Errorf("failed to get home directory")
	}

	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, alias := range envAliases {
		envName := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, envName, alias); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", alias, err)
		}
	}

	if _, err := os.Stat(configPath); err == nil {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.DataDir == "" {
		cfg.DataDir = filepath.Dir(configPath)
	}
	if cfg.Storage.SnapshotPath == "" {
		cfg.Storage.SnapshotPath = filepath.Join(cfg.DataDir, "sessions.json")
	}
	if cfg.Export.Dir == "" {
		cfg.Export.Dir = filepath.Join(cfg.DataDir, "exports")
	}
	if cfg.Logging.File == "" {
		cfg.Logging.File = filepath.Join(cfg.DataDir, "casegen.log")
	}

	return cfg, nil
}

// GetConfigPath returns the config file path
func (l *Loader) GetConfigPath() string {
	if l.configPath != "" {
		return l.configPath
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".casegen", "casegen.json")
}

// Load is a convenience function that creates a loader and loads the config
func Load(configPath string) (*Config, error) {
	loader := NewLoader(configPath)
	return loader.Load()
}

// setDefaults registers every key so that environment overrides apply to
// keys absent from the file
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("data_dir", cfg.DataDir)

	v.SetDefault("telegram.bot_token", cfg.Telegram.BotToken)
	v.SetDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout)

	v.SetDefault("ai.provider", cfg.AI.Provider)
	v.SetDefault("ai.api_key", cfg.AI.APIKey)
	v.SetDefault("ai.model", cfg.AI.Model)
	v.SetDefault("ai.timeout", cfg.AI.Timeout)
	v.SetDefault("ai.max_tokens", cfg.AI.MaxTokens)

	v.SetDefault("storage.backend", cfg.Storage.Backend)
	v.SetDefault("storage.snapshot_path", cfg.Storage.SnapshotPath)
	v.SetDefault("storage.redis_addr", cfg.Storage.RedisAddr)
	v.SetDefault("storage.redis_password", cfg.Storage.RedisPassword)
	v.SetDefault("storage.redis_db", cfg.Storage.RedisDB)
	v.SetDefault("storage.redis_prefix", cfg.Storage.RedisPrefix)

	v.SetDefault("export.dir", cfg.Export.Dir)
	v.SetDefault("export.font_dir", cfg.Export.FontDir)
	v.SetDefault("export.sweep_schedule", cfg.Export.SweepSchedule)
	v.SetDefault("export.max_age", cfg.Export.MaxAge)

	v.SetDefault("conversation.message_limit", cfg.Conversation.MessageLimit)
	v.SetDefault("conversation.chunk_pause", cfg.Conversation.ChunkPause)
	v.SetDefault("conversation.preview_lines", cfg.Conversation.PreviewLines)
	v.SetDefault("conversation.languages", cfg.Conversation.Languages)

	v.SetDefault("prompts.dir", cfg.Prompts.Dir)
	v.SetDefault("prompts.watch", cfg.Prompts.Watch)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.file", cfg.Logging.File)
	v.SetDefault("logging.console", cfg.Logging.Console)
	v.SetDefault("logging.pretty", cfg.Logging.Pretty)
	v.SetDefault("logging.max_size", cfg.Logging.MaxSize)
	v.SetDefault("logging.max_age", cfg.Logging.MaxAge)
	v.SetDefault("logging.compress", cfg.Logging.Compress)
	v.SetDefault("logging.redaction", cfg.Logging.Redaction)

	v.SetDefault("metrics.enabled", cfg.Metrics.Enabled)
	v.SetDefault("metrics.addr", cfg.Metrics.Addr)

	v.SetDefault("tracing.enabled", cfg.Tracing.Enabled)
}
