// internal/commands/root.go
package modeprobe

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"modeprobe/internal/appconfig"
	"modeprobe/internal/logging"
)

var (
	cfgFile       string
	currentConfig *appconfig.Config
	appVersion    = "dev"
	appCommit     = "none"
	appDate       = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "modeprobe",
	Short: "modeprobe — phase-transition probe for LLM personas and response modes",
	Long: `modeprobe sweeps the amount of in-context evidence shown to a model and
scores each response for a target mode (JSON compliance, Victorian diction,
or a presidential persona), looking for sharp transitions, order
sensitivity, and prompt-framing effects.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := appconfig.Load(viper.GetViper(), cfgFile)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("debug") {
			cfg.Debug, _ = cmd.Flags().GetBool("debug")
		}
		currentConfig = cfg

		if err := logging.Init(cfg.LogFile); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", appVersion, appCommit, appDate)

	defer logging.Close()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", appconfig.DefaultConfigPath, "config file (e.g., config/config.yaml)")

	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	rootCmd.PersistentFlags().Bool("no-cache", false, "bypass the response cache")
	rootCmd.PersistentFlags().Bool("dry-run", false, "skip upstream calls and return canned responses")
	rootCmd.PersistentFlags().Int("max-prompts", 0, "limit the prompt pool for quick runs (0 = all)")

	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
}

// GetConfig returns the loaded application configuration for other packages.
func GetConfig() *appconfig.Config {
	return currentConfig
}

// DebugEnabled returns true if debug mode is enabled.
func DebugEnabled() bool { return viper.GetBool("debug") }

// SetVersionInfo allows the main package to inject build-time variables.
func SetVersionInfo(version, commit, date string) {
	appVersion, appCommit, appDate = version, commit, date
}
