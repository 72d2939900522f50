package cli

import (
	"fmt"

	"github.com/harun/casegen/internal/config"
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the configuration",
	Long: `Load the configuration file and environment, then report missing
required values and malformed tokens, keys, languages or schedules.`,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	problems := config.NewValidator().ValidateConfig(cfg)
	if err := cfg.Validate(); err != nil {
		problems = append([]error{err}, problems...)
	}

	if len(problems) == 0 {
		fmt.Fprintf(out, "Configuration OK (%s)\n", config.NewLoader(cfgFile).GetConfigPath())
		return nil
	}

	for _, p := range problems {
		fmt.Fprintf(out, "- %v\n", p)
	}
	return fmt.Errorf("configuration has %d problem(s)", len(problems))
}
