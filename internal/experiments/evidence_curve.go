// internal/experiments/evidence_curve.go
package experiments

import (
	"context"
	"fmt"
	"log"
	"math/rand"

	"modeprobe/internal/metrics"
	"modeprobe/internal/pool"
	"modeprobe/internal/sampling"
)

// KSensitivity is the mean permutation sensitivity at one k: for each
// subset, the variance of per-permutation mean phi, averaged over subsets.
type KSensitivity struct {
	K               int     `json:"k"`
	MeanSensitivity float64 `json:"mean_sensitivity"`
	NSubsets        int     `json:"n_subsets"`
}

// EvidenceCurveResult is the full output of an evidence-curve sweep.
type EvidenceCurveResult struct {
	Trials          []Trial              `json:"-"`
	Aggregates      []metrics.KAggregate `json:"aggregates"`
	PermSensitivity []KSensitivity       `json:"perm_sensitivity"`
	Failures        int                  `json:"failures"`
	Timestamp       string               `json:"timestamp"`
}

// RunEvidenceCurve sweeps k over the configured values, sampling subsets
// and permutations of the evidence pool and scoring every prompt at every
// arrangement. maxPrompts > 0 trims the prompt set for debugging runs.
func (r *Runner) RunEvidenceCurve(ctx context.Context, maxPrompts int) (*EvidenceCurveResult, error) {
	cfg := r.Config
	rng := rand.New(rand.NewSource(cfg.Seed))

	evidencePool, err := pool.LoadEvidence(cfg.Data.EvidencePath)
	if err != nil {
		return nil, err
	}
	prompts, err := pool.LoadPrompts(cfg.Data.PromptsPath)
	if err != nil {
		return nil, err
	}
	prompts = trimPrompts(prompts, maxPrompts)

	log.Printf("evidence curve: %d snippets, %d prompts, scorer=%s",
		len(evidencePool), len(prompts), r.Scorer.Kind())

	total := 0
	for _, k := range cfg.Experiment.KValues {
		total += gridSize(len(evidencePool), k, cfg.Experiment.NSubsets, cfg.Experiment.NPermutations) * len(prompts)
	}

	var trials []Trial
	done := 0

	for _, k := range cfg.Experiment.KValues {
		subsets, err := kSubsets(evidencePool, k, cfg.Experiment.NSubsets, rng)
		if err != nil {
			return nil, err
		}

		for subsetIdx, subset := range subsets {
			perms := kPermutations(subset, cfg.Experiment.NPermutations, rng)

			for permIdx, perm := range perms {
				for _, prompt := range prompts {
					trial := r.runTrial(ctx, cfg.SystemPrompt, perm, prompt)
					trial.K = k
					trial.SubsetIdx = subsetIdx
					trial.PermIdx = permIdx
					trials = append(trials, trial)

					done++
					r.tick(done, total, fmt.Sprintf("k=%d", k))
				}
			}
		}
	}

	result := &EvidenceCurveResult{
		Trials:          trials,
		Aggregates:      metrics.AggregateByK(phiByK(trials)),
		PermSensitivity: permSensitivityByK(trials, cfg.Experiment.KValues),
		Failures:        failureCount(trials),
		Timestamp:       Timestamp(),
	}
	return result, nil
}

// kSubsets handles the k=0 case the way the sweep wants it: a single empty
// subset rather than n redundant empties.
func kSubsets(evidencePool []pool.EvidenceSnippet, k, n int, rng *rand.Rand) ([][]pool.EvidenceSnippet, error) {
	if k == 0 {
		return [][]pool.EvidenceSnippet{{}}, nil
	}
	return sampling.Subsets(evidencePool, k, n, rng)
}

// kPermutations draws orderings of one subset, content-keyed.
func kPermutations(subset []pool.EvidenceSnippet, n int, rng *rand.Rand) [][]pool.EvidenceSnippet {
	return sampling.Permutations(subset, n, rng, pool.EvidenceSnippet.Key)
}

// gridSize bounds the number of (subset, permutation) cells at one k, for
// progress totals only. Permutation counts cap at k! and subsets collapse
// to one when k is 0.
func gridSize(poolSize, k, nSubsets, nPerms int) int {
	if k == 0 {
		return 1
	}
	subsets := nSubsets
	perms := nPerms
	f := 1
	for i := 2; i <= k && f < nPerms; i++ {
		f *= i
	}
	if f < perms {
		perms = f
	}
	return subsets * perms
}

func phiByK(trials []Trial) map[int][]float64 {
	byK := make(map[int][]float64)
	for _, t := range trials {
		byK[t.K] = append(byK[t.K], t.Phi)
	}
	return byK
}

// permSensitivityByK computes, per k, the variance of per-permutation mean
// phi within each subset, averaged across subsets.
func permSensitivityByK(trials []Trial, kValues []int) []KSensitivity {
	type cell struct{ subset, perm int }

	out := make([]KSensitivity, 0, len(kValues))
	for _, k := range kValues {
		perPerm := make(map[cell][]float64)
		for _, t := range trials {
			if t.K != k {
				continue
			}
			key := cell{t.SubsetIdx, t.PermIdx}
			perPerm[key] = append(perPerm[key], t.Phi)
		}

		meansBySubset := make(map[int][]float64)
		for key, phis := range perPerm {
			meansBySubset[key.subset] = append(meansBySubset[key.subset], metrics.Mean(phis))
		}

		var sensitivities []float64
		for _, means := range meansBySubset {
			if len(means) > 1 {
				sensitivities = append(sensitivities, metrics.PermutationSensitivity(means))
			}
		}

		out = append(out, KSensitivity{
			K:               k,
			MeanSensitivity: metrics.Mean(sensitivities),
			NSubsets:        len(sensitivities),
		})
	}
	return out
}
