// internal/experiments/hysteresis.go
package experiments

import (
	"context"
	"fmt"
	"log"

	"modeprobe/internal/metrics"
	"modeprobe/internal/pool"
)

// Sweep traversal directions.
const (
	SweepUp   = "up"
	SweepDown = "down"
)

// SweepPass is one directional traversal of the k grid.
type SweepPass struct {
	Direction string            `json:"direction"`
	KOrder    []int             `json:"k_order"`
	PhiByK    map[int][]float64 `json:"phi_by_k"`
	MeanPhi   map[int]float64   `json:"mean_phi"`
	VarPhi    map[int]float64   `json:"var_phi"`
	// TransitionK is the first k, in traversal order, where mean phi
	// crosses 0.5. Nil when the pass never crosses.
	TransitionK *int `json:"transition_k"`
}

// HysteresisAnalysis holds the cross-pass signatures of a sharp
// transition: bimodal trial outcomes, a variance spike near the
// boundary, and direction-dependent transition points.
type HysteresisAnalysis struct {
	BimodalityRatio float64         `json:"bimodality_ratio"`
	IsBimodal       bool            `json:"is_bimodal"`
	MaxVarianceK    int             `json:"max_variance_k"`
	MaxVariance     float64         `json:"max_variance"`
	VarianceByK     map[int]float64 `json:"variance_by_k"`
	TransitionUp    *int            `json:"transition_up"`
	TransitionDown  *int            `json:"transition_down"`
	HysteresisGap   *int            `json:"hysteresis_gap"`
	HasHysteresis   bool            `json:"has_hysteresis"`
}

// HysteresisResult is the full output of a hysteresis/bimodality sweep.
type HysteresisResult struct {
	Trials    []Trial            `json:"-"`
	SweepUp   SweepPass          `json:"sweep_up"`
	SweepDown SweepPass          `json:"sweep_down"`
	Analysis  HysteresisAnalysis `json:"analysis"`
	Failures  int                `json:"failures"`
	Timestamp string             `json:"timestamp"`
}

// RunHysteresis sweeps k upward then downward over the same evidence
// prefix and trial prompts, looking for path dependence in where mean
// phi crosses 0.5. Evidence at each k is the pool prefix in file order;
// there is no subset or permutation sampling in this sweep.
func (r *Runner) RunHysteresis(ctx context.Context, maxPrompts int) (*HysteresisResult, error) {
	cfg := r.Config

	evidencePool, err := pool.LoadEvidence(cfg.Data.EvidencePath)
	if err != nil {
		return nil, err
	}
	prompts, err := pool.LoadPrompts(cfg.Data.PromptsPath)
	if err != nil {
		return nil, err
	}
	prompts = trimPrompts(prompts, cfg.Experiment.NTrials)
	prompts = trimPrompts(prompts, maxPrompts)
	if len(prompts) == 0 {
		return nil, fmt.Errorf("no trial prompts loaded from %s", cfg.Data.PromptsPath)
	}

	kValues := cfg.Experiment.HysteresisKValues
	if len(kValues) == 0 {
		return nil, fmt.Errorf("experiment.hysteresis_k_values is empty")
	}
	for _, k := range kValues {
		if k > len(evidencePool) {
			return nil, fmt.Errorf("k=%d exceeds evidence pool size %d", k, len(evidencePool))
		}
	}

	log.Printf("hysteresis: %d snippets, %d trial prompts, k grid %v, scorer=%s",
		len(evidencePool), len(prompts), kValues, r.Scorer.Kind())

	total := 2 * len(kValues) * len(prompts)
	done := 0

	var trials []Trial

	runPass := func(kOrder []int, direction string) SweepPass {
		pass := SweepPass{
			Direction: direction,
			KOrder:    kOrder,
			PhiByK:    make(map[int][]float64, len(kOrder)),
			MeanPhi:   make(map[int]float64, len(kOrder)),
			VarPhi:    make(map[int]float64, len(kOrder)),
		}

		for _, k := range kOrder {
			evidence := evidencePool[:k]
			for _, prompt := range prompts {
				trial := r.runTrial(ctx, cfg.SystemPrompt, evidence, prompt)
				trial.K = k
				trial.Condition = direction
				trials = append(trials, trial)
				pass.PhiByK[k] = append(pass.PhiByK[k], trial.Phi)
				done++
				r.tick(done, total, fmt.Sprintf("%s k=%d", direction, k))
			}
			pass.MeanPhi[k] = metrics.Mean(pass.PhiByK[k])
			pass.VarPhi[k] = metrics.PopulationVariance(pass.PhiByK[k])
		}

		pass.TransitionK = findTransition(kOrder, pass.MeanPhi)
		return pass
	}

	up := runPass(kValues, SweepUp)
	down := runPass(reversed(kValues), SweepDown)

	return &HysteresisResult{
		Trials:    trials,
		SweepUp:   up,
		SweepDown: down,
		Analysis:  analyzeHysteresis(up, down, kValues),
		Failures:  failureCount(trials),
		Timestamp: Timestamp(),
	}, nil
}

// findTransition returns the first k2 in traversal order at which mean
// phi crosses the 0.5 threshold in either direction.
func findTransition(kOrder []int, meanPhi map[int]float64) *int {
	for i := 0; i < len(kOrder)-1; i++ {
		k1, k2 := kOrder[i], kOrder[i+1]
		m1, m2 := meanPhi[k1], meanPhi[k2]
		if (m1 < 0.5 && m2 >= 0.5) || (m1 >= 0.5 && m2 < 0.5) {
			k := k2
			return &k
		}
	}
	return nil
}

func analyzeHysteresis(up, down SweepPass, kValues []int) HysteresisAnalysis {
	var binary, totalPhi int
	for _, k := range kValues {
		for _, phi := range append(append([]float64{}, up.PhiByK[k]...), down.PhiByK[k]...) {
			totalPhi++
			if phi == 0 || phi == 1 {
				binary++
			}
		}
	}
	ratio := 0.0
	if totalPhi > 0 {
		ratio = float64(binary) / float64(totalPhi)
	}

	varianceByK := make(map[int]float64, len(kValues))
	maxVarK := kValues[0]
	maxVar := -1.0
	for _, k := range kValues {
		v := (up.VarPhi[k] + down.VarPhi[k]) / 2
		varianceByK[k] = v
		if v > maxVar {
			maxVar = v
			maxVarK = k
		}
	}

	a := HysteresisAnalysis{
		BimodalityRatio: ratio,
		IsBimodal:       ratio > 0.9,
		MaxVarianceK:    maxVarK,
		MaxVariance:     maxVar,
		VarianceByK:     varianceByK,
		TransitionUp:    up.TransitionK,
		TransitionDown:  down.TransitionK,
	}
	if up.TransitionK != nil && down.TransitionK != nil {
		gap := *down.TransitionK - *up.TransitionK
		a.HysteresisGap = &gap
		a.HasHysteresis = gap != 0
	}
	return a
}

func reversed(values []int) []int {
	out := make([]int, len(values))
	for i, v := range values {
		out[len(values)-1-i] = v
	}
	return out
}
