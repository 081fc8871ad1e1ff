// internal/commands/sweep_inoculation.go
package modeprobe

import (
	"fmt"

	"github.com/spf13/cobra"

	"modeprobe/internal/experiments"
	"modeprobe/internal/report"
	"modeprobe/internal/tui"
)

var sweepInoculationCmd = &cobra.Command{
	Use:   "inoculation",
	Short: "Test whether a system-prompt framing gates mode adoption",
	Long: `Compare trait probability under four fixed system-prompt framings at each
configured k: a neutral baseline, an explicit AI-identity inoculation, a
paraphrase of the inoculation, and a length-matched control.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		runner, cleanup, err := newRunner(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		progress := tui.NewSweep("inoculation")
		runner.Progress = progress.Progress
		result, err := runner.RunInoculation(cmd.Context(), maxPrompts(cmd))
		progress.Finish()
		if err != nil {
			return err
		}

		rendered := report.Inoculation(result)
		fmt.Println(rendered)

		written, err := runner.SaveRun(experiments.RunFiles{
			Name:      "inoculation",
			Timestamp: result.Timestamp,
			Analysis:  result,
			Trials:    result.Trials,
			Report:    rendered,
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
	sweepCmd.AddCommand(sweepInoculationCmd)
}
