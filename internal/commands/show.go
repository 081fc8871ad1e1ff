// internal/commands/show.go
package modeprobe

import (
	"fmt"

	"github.com/k0kubun/pp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show application state",
}

// showConfigCmd prints the merged configuration so flag and file
// precedence can be checked at a glance.
var showConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Show config settings",
	Long:  `Show the merged configuration after defaults, file values, and flags are applied.`,
	Run: func(cmd *cobra.Command, args []string) {
		file := viper.ConfigFileUsed()
		if file == "" {
			fmt.Println("No config file loaded (using defaults).")
		} else {
			fmt.Printf("Config file: %s\n\n", file)
		}

		cfg := GetConfig()
		if DebugEnabled() {
			pp.Println(cfg)
			return
		}

		fmt.Println("Current configuration:")
		fmt.Printf("  Provider:     %s (%s)\n", cfg.Provider.Name, cfg.Provider.BaseURL)
		fmt.Printf("  Model:        %s\n", cfg.Provider.Model)
		fmt.Printf("  Scorer:       %s\n", cfg.Scoring.Type)
		fmt.Printf("  K values:     %v\n", cfg.Experiment.KValues)
		fmt.Printf("  Subsets:      %d\n", cfg.Experiment.NSubsets)
		fmt.Printf("  Permutations: %d\n", cfg.Experiment.NPermutations)
		fmt.Printf("  Seed:         %d\n", cfg.Seed)
		fmt.Printf("  Cache:        %s\n", cfg.CachePath)
		fmt.Printf("  Output dir:   %s\n", cfg.Output.Dir)
	},
}

func init() {
	rootCmd.AddCommand(showCmd)
	showCmd.AddCommand(showConfigCmd)
}
