// internal/report/report.go
// Package report renders sweep results as terminal text. Each renderer
// returns the full report as a string so callers can both print it and
// write it next to the run artifacts.
package report

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"

	"modeprobe/internal/experiments"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	sectionStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("255"))

	positive = color.New(color.FgGreen).SprintFunc()
	negative = color.New(color.FgRed).SprintFunc()
	caution  = color.New(color.FgYellow).SprintFunc()
)

const rule = "======================================================================"

func title(b *strings.Builder, text string) {
	b.WriteString(rule + "\n")
	b.WriteString(titleStyle.Render(text) + "\n")
	b.WriteString(rule + "\n")
}

func section(b *strings.Builder, text string) {
	b.WriteString("\n" + sectionStyle.Render("## "+text) + "\n\n")
}

func yesNo(v bool) string {
	if v {
		return positive("yes")
	}
	return negative("no")
}

// EvidenceCurve renders the phi-by-k table with permutation sensitivity.
func EvidenceCurve(result *experiments.EvidenceCurveResult) string {
	var b strings.Builder
	title(&b, "EVIDENCE CURVE RESULTS")

	section(&b, "Mean phi by evidence amount")
	b.WriteString(fmt.Sprintf("%4s | %9s | %9s | %9s | %6s\n", "k", "mean", "std", "stderr", "n"))
	b.WriteString(strings.Repeat("-", 50) + "\n")
	for _, agg := range result.Aggregates {
		b.WriteString(fmt.Sprintf("%4d | %9.3f | %9.3f | %9.3f | %6d\n",
			agg.K, agg.Mean, agg.Std, agg.StdErr, agg.N))
	}

	section(&b, "Permutation sensitivity by k")
	b.WriteString(fmt.Sprintf("%4s | %12s | %9s\n", "k", "sensitivity", "subsets"))
	b.WriteString(strings.Repeat("-", 34) + "\n")
	for _, s := range result.PermSensitivity {
		b.WriteString(fmt.Sprintf("%4d | %12.4f | %9d\n", s.K, s.MeanSensitivity, s.NSubsets))
	}

	footer(&b, result.Failures)
	return b.String()
}

// Brittleness renders per-subset sensitivity/drop pairs and their
// correlations.
func Brittleness(result *experiments.BrittlenessResult) string {
	var b strings.Builder
	title(&b, "BRITTLENESS RESULTS")

	section(&b, "Per-subset sensitivity vs robustness drop")
	b.WriteString(fmt.Sprintf("%4s | %6s | %12s | %10s | %9s | %9s\n",
		"k", "subset", "sensitivity", "drop", "base phi", "para phi"))
	b.WriteString(strings.Repeat("-", 66) + "\n")
	for _, s := range result.Subsets {
		b.WriteString(fmt.Sprintf("%4d | %6d | %12.4f | %+10.3f | %9.3f | %9.3f\n",
			s.K, s.SubsetIdx, s.PermSensitivity, s.RobustnessDrop, s.BaseMeanPhi, s.ParaMeanPhi))
	}

	section(&b, "Correlation: permutation sensitivity vs robustness drop")
	b.WriteString(fmt.Sprintf("%8s | %10s | %10s | %10s | %10s\n",
		"k", "pearson r", "pearson p", "spearman r", "spearman p"))
	b.WriteString(strings.Repeat("-", 60) + "\n")
	for _, c := range result.CorrelationsBy {
		b.WriteString(fmt.Sprintf("%8s | %+10.3f | %10.3f | %+10.3f | %10.3f\n",
			c.K, c.PearsonR, c.PearsonP, c.SpearmanR, c.SpearmanP))
	}
	b.WriteString(fmt.Sprintf("%8s | %+10.3f | %10.3f | %+10.3f | %10.3f\n",
		"overall", result.Overall.PearsonR, result.Overall.PearsonP,
		result.Overall.SpearmanR, result.Overall.SpearmanP))

	section(&b, "Interpretation")
	switch {
	case result.Overall.PearsonR > 0.3 && result.Overall.PearsonP < 0.05:
		b.WriteString(positive("Order-sensitive subsets are also paraphrase-brittle.") + "\n")
		b.WriteString("Permutation sensitivity predicts robustness drop.\n")
	case result.Overall.PearsonR == 0 && result.Overall.PearsonP == 1:
		b.WriteString(caution("Correlation degenerate: too few points or a constant series.") + "\n")
	default:
		b.WriteString("No strong link between order sensitivity and paraphrase brittleness.\n")
	}

	footer(&b, result.Failures)
	return b.String()
}

// Inoculation renders trait probabilities per condition and the logit
// deltas against baseline.
func Inoculation(result *experiments.InoculationResult) string {
	var b strings.Builder
	title(&b, "INOCULATION GATING RESULTS")

	section(&b, "Trait probability by condition and evidence amount")
	b.WriteString(fmt.Sprintf("%4s | %10s | %12s | %12s | %10s\n",
		"k", "baseline", "inoculation", "paraphrased", "near ctrl"))
	b.WriteString(strings.Repeat("-", 60) + "\n")
	for _, d := range result.ByK {
		b.WriteString(fmt.Sprintf("%4d | %10.2f | %12.2f | %12.2f | %10.2f\n",
			d.K, d.BaselineP, d.InocP, d.ParaInocP, d.NearP))
	}

	section(&b, "Logit deltas (baseline - condition)")
	b.WriteString("Positive delta = condition suppresses the trait.\n\n")
	b.WriteString(fmt.Sprintf("%4s | %10s | %10s | %10s | %10s | %10s\n",
		"k", "d_inoc", "d_para", "d_near", "semantic", "transfer"))
	b.WriteString(strings.Repeat("-", 68) + "\n")
	for _, d := range result.ByK {
		b.WriteString(fmt.Sprintf("%4d | %+10.2f | %+10.2f | %+10.2f | %+10.2f | %10.2f\n",
			d.K, d.DeltaInoc, d.DeltaPara, d.DeltaNear, d.SemanticEffect, d.ParaphraseTransfer))
	}

	section(&b, "Interpretation")
	s := result.Summary
	b.WriteString(fmt.Sprintf("Mean delta (inoculation):  %+0.2f\n", s.MeanDeltaInoc))
	b.WriteString(fmt.Sprintf("Mean delta (near control): %+0.2f\n", s.MeanDeltaNear))
	b.WriteString(fmt.Sprintf("Inoculation gates trait:   %s\n", yesNo(s.InoculationGates)))
	b.WriteString(fmt.Sprintf("Effect is semantic:        %s\n", yesNo(s.SemanticNotSurface)))
	if s.InoculationGates && s.SemanticNotSurface {
		b.WriteString("\n" + positive("Finding: the identity framing semantically gates trait expression,") + "\n")
		b.WriteString(positive("and the effect is not explained by prompt length or structure.") + "\n")
	}

	footer(&b, result.Failures)
	return b.String()
}

// Hysteresis renders the two sweep passes side by side with the
// cross-pass bimodality and transition analysis.
func Hysteresis(result *experiments.HysteresisResult) string {
	var b strings.Builder
	title(&b, "HYSTERESIS AND BIMODALITY RESULTS")

	a := result.Analysis

	section(&b, "Mean phi by k and sweep direction")
	b.WriteString(fmt.Sprintf("%4s | %10s | %10s | %10s\n", "k", "sweep up", "sweep down", "variance"))
	b.WriteString(strings.Repeat("-", 46) + "\n")
	for _, k := range result.SweepUp.KOrder {
		marker := ""
		if k == a.MaxVarianceK {
			marker = " **"
		}
		b.WriteString(fmt.Sprintf("%4d | %10.2f | %10.2f | %10.3f%s\n",
			k, result.SweepUp.MeanPhi[k], result.SweepDown.MeanPhi[k], a.VarianceByK[k], marker))
	}
	b.WriteString("\n** = max variance (boundary indicator)\n")

	section(&b, "Bimodality")
	b.WriteString(fmt.Sprintf("Binary response ratio: %.1f%%\n", a.BimodalityRatio*100))
	b.WriteString(fmt.Sprintf("Is bimodal (>90%% binary): %s\n", yesNo(a.IsBimodal)))

	section(&b, "Transitions")
	b.WriteString(fmt.Sprintf("Transition k (sweep up):   %s\n", formatTransition(a.TransitionUp)))
	b.WriteString(fmt.Sprintf("Transition k (sweep down): %s\n", formatTransition(a.TransitionDown)))
	b.WriteString(fmt.Sprintf("Hysteresis gap: %s\n", formatTransition(a.HysteresisGap)))
	b.WriteString(fmt.Sprintf("Has hysteresis: %s\n", yesNo(a.HasHysteresis)))

	section(&b, "Interpretation")
	if a.IsBimodal {
		b.WriteString("Responses are mostly all-or-nothing, suggesting discrete mode\n")
		b.WriteString("switching rather than graded belief.\n")
	}
	if a.MaxVariance > 0 {
		b.WriteString(fmt.Sprintf("Variance peaks at k=%d (var=%.3f): candidate phase boundary.\n",
			a.MaxVarianceK, a.MaxVariance))
	}
	if a.HasHysteresis {
		b.WriteString("Transition points differ between sweep directions, which points\n")
		b.WriteString("to path-dependent inference.\n")
	}

	footer(&b, result.Failures)
	return b.String()
}

func formatTransition(k *int) string {
	if k == nil {
		return "none"
	}
	return fmt.Sprintf("%d", *k)
}

func footer(b *strings.Builder, failures int) {
	b.WriteString("\n")
	if failures > 0 {
		b.WriteString(caution(fmt.Sprintf("Warning: %d trial(s) failed upstream and were scored as negative.", failures)) + "\n")
	}
	b.WriteString(rule + "\n")
}
