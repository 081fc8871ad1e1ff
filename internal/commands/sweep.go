// internal/commands/sweep.go
package modeprobe

import (
	"github.com/spf13/cobra"
)

// sweepCmd groups the experiment drivers.
var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run an experiment sweep",
	Long:  `Run one of the experiment sweeps: evidence, brittleness, inoculation, or hysteresis.`,
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}
