// internal/commands/sweep_brittleness.go
package modeprobe

import (
	"fmt"

	"github.com/spf13/cobra"

	"modeprobe/internal/experiments"
	"modeprobe/internal/report"
	"modeprobe/internal/tui"
)

var sweepBrittlenessCmd = &cobra.Command{
	Use:   "brittleness",
	Short: "Correlate order sensitivity with paraphrase brittleness",
	Long: `For each evidence subset, measure how much phi moves under reordering and
how much it drops when prompts are paraphrased, then correlate the two.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		runner, cleanup, err := newRunner(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		progress := tui.NewSweep("brittleness")
		runner.Progress = progress.Progress
		result, err := runner.RunBrittleness(cmd.Context(), maxPrompts(cmd))
		progress.Finish()
		if err != nil {
			return err
		}

		rendered := report.Brittleness(result)
		fmt.Println(rendered)

		written, err := runner.SaveRun(experiments.RunFiles{
			Name:         "brittleness",
			Timestamp:    result.Timestamp,
			Analysis:     result,
			Trials:       result.Trials,
			Subsets:      result.Subsets,
			Correlations: result.CorrelationsBy,
			Overall:      &result.Overall,
			Report:       rendered,
		})
		if err != nil {
			return err
		}
		for _, path := range written {
			fmt.Printf("wrote %s\n", path)
		}
		return nil
	},
}

func init() {
	sweepCmd.AddCommand(sweepBrittlenessCmd)
}
