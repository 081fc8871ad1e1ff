// internal/commands/sweep_evidence.go
package modeprobe

import (
	"fmt"

	"github.com/spf13/cobra"

	"modeprobe/internal/experiments"
	"modeprobe/internal/report"
	"modeprobe/internal/tui"
)

var sweepEvidenceCmd = &cobra.Command{
	Use:   "evidence",
	Short: "Sweep evidence amount k and measure mode adoption",
	Long: `Sweep the configured k values, sampling evidence subsets and orderings
at each k and scoring every test prompt. Reports mean phi per k and the
permutation sensitivity of each k.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		runner, cleanup, err := newRunner(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		progress := tui.NewSweep("evidence curve")
		runner.Progress = progress.Progress
		result, err := runner.RunEvidenceCurve(cmd.Context(), maxPrompts(cmd))
		progress.Finish()
		if err != nil {
			return err
		}

		rendered := report.EvidenceCurve(result)
		fmt.Println(rendered)

		written, err := runner.SaveRun(experiments.RunFiles{
			Name:        "evidence_curve",
			Timestamp:   result.Timestamp,
			Analysis:    result,
			Trials:      result.Trials,
			Aggregates:  result.Aggregates,
			Sensitivity: result.PermSensitivity,
			Report:      rendered,
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
	sweepCmd.AddCommand(sweepEvidenceCmd)
}
