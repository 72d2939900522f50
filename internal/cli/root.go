package cli

import (
	"fmt"

	"github.com/harun/casegen/internal/config"
	"github.com/harun/casegen/internal/daemon"
	"github.com/harun/casegen/internal/logger"
	"github.com/spf13/cobra"
)

const version = "0.1.0"

var (
	cfgFile  string
	logLevel string
)

// rootCmd runs the bot in the foreground when called without subcommands
var rootCmd = &cobra.Command{
	Use:   "casegen",
	Short: "casegen - test case generator bot for Telegram",
	Long: `casegen is a Telegram bot that turns a feature description into manual
test cases and then into autotest code, with DOCX, PDF and source file export.
Running it without a subcommand starts the bot in the foreground.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runService,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.casegen/casegen.json)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	rootCmd.SetVersionTemplate(`{{with .Name}}{{printf "%s " .}}{{end}}{{printf "version %s" .Version}}
`)
}

// loadConfig loads the config file and applies the --log-level flag when set
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Logging.Level = logLevel
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*logger.Logger, error) {
	return logger.New(logger.Config{
		Level:     cfg.Logging.Level,
		File:      cfg.Logging.File,
		Console:   cfg.Logging.Console,
		Pretty:    cfg.Logging.Pretty,
		Redaction: cfg.Logging.Redaction,
		MaxSize:   cfg.Logging.MaxSize,
		MaxAge:    cfg.Logging.MaxAge,
		Compress:  cfg.Logging.Compress,
	})
}

func runService(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	log, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Close()

	for _, problem := range config.NewValidator().ValidateConfig(cfg) {
		log.Warn().Err(problem).Msg("Suspicious configuration value")
	}

	d, err := daemon.New(cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("Failed to initialize casegen")
		return err
	}

	return d.Run(cmd.Context())
}

// GetRootCmd returns the root command for testing
func GetRootCmd() *cobra.Command {
	return rootCmd
}

// GetVersion returns the current version
func GetVersion() string {
	return version
}
