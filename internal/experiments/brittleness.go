// internal/experiments/brittleness.go
package experiments

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"sort"

	"modeprobe/internal/metrics"
	"modeprobe/internal/pool"
)

// Prompt type tags on brittleness trials.
const (
	promptTypeBase       = "base"
	promptTypeParaphrase = "paraphrase"
)

// SubsetSummary is the per-subset pairing of permutation sensitivity with
// robustness drop, the two series the brittleness correlation runs over.
type SubsetSummary struct {
	K               int     `json:"k"`
	SubsetIdx       int     `json:"subset_idx"`
	PermSensitivity float64 `json:"perm_sensitivity"`
	RobustnessDrop  float64 `json:"robustness_drop"`
	BaseMeanPhi     float64 `json:"base_mean_phi"`
	ParaMeanPhi     float64 `json:"para_mean_phi"`
}

// KCorrelation tags a correlation with the k it was computed at.
type KCorrelation struct {
	K string `json:"k"`
	metrics.Correlation
}

// BrittlenessResult is the full output of a brittleness sweep.
type BrittlenessResult struct {
	Trials         []Trial             `json:"-"`
	Subsets        []SubsetSummary     `json:"subsets"`
	CorrelationsBy []KCorrelation      `json:"correlations_by_k"`
	Overall        metrics.Correlation `json:"overall_correlation"`
	Failures       int                 `json:"failures"`
	Timestamp      string              `json:"timestamp"`
}

// RunBrittleness measures whether evidence subsets that are sensitive to
// permutation order are also the ones that fall over on paraphrased
// prompts. Base and paraphrase prompts are joined on GroupID; groups
// missing either side are skipped.
func (r *Runner) RunBrittleness(ctx context.Context, maxPrompts int) (*BrittlenessResult, error) {
	cfg := r.Config
	rng := rand.New(rand.NewSource(cfg.Seed))

	evidencePool, err := pool.LoadEvidence(cfg.Data.EvidencePath)
	if err != nil {
		return nil, err
	}
	basePrompts, err := pool.LoadPrompts(cfg.Data.PromptsPath)
	if err != nil {
		return nil, err
	}
	paraphrases, err := pool.LoadPrompts(cfg.Data.ParaphrasesPath)
	if err != nil {
		return nil, err
	}
	basePrompts = trimPrompts(basePrompts, maxPrompts)

	pairs := matchedPairs(basePrompts, paraphrases)
	if len(pairs) == 0 {
		return nil, fmt.Errorf("no prompt groups have both a base prompt and a paraphrase")
	}

	log.Printf("brittleness: %d snippets, %d matched prompt groups, scorer=%s",
		len(evidencePool), len(pairs), r.Scorer.Kind())

	total := 0
	for _, k := range cfg.Experiment.BrittlenessKValues {
		total += gridSize(len(evidencePool), k, cfg.Experiment.NSubsets, cfg.Experiment.NPermutations) * len(pairs) * 2
	}

	var trials []Trial
	var subsetSummaries []SubsetSummary
	done := 0

	for _, k := range cfg.Experiment.BrittlenessKValues {
		subsets, err := kSubsets(evidencePool, k, cfg.Experiment.NSubsets, rng)
		if err != nil {
			return nil, err
		}

		for subsetIdx, subset := range subsets {
			perms := kPermutations(subset, cfg.Experiment.NPermutations, rng)

			basePhiByPerm := make([][]float64, len(perms))
			var allBasePhi, allParaPhi []float64

			for permIdx, perm := range perms {
				for _, pair := range pairs {
					baseTrial := r.runTrial(ctx, cfg.SystemPrompt, perm, pair.base)
					baseTrial.K = k
					baseTrial.SubsetIdx = subsetIdx
					baseTrial.PermIdx = permIdx
					baseTrial.PromptType = promptTypeBase
					trials = append(trials, baseTrial)
					basePhiByPerm[permIdx] = append(basePhiByPerm[permIdx], baseTrial.Phi)
					allBasePhi = append(allBasePhi, baseTrial.Phi)
					done++
					r.tick(done, total, fmt.Sprintf("k=%d", k))

					paraTrial := r.runTrial(ctx, cfg.SystemPrompt, perm, pair.paraphrase)
					paraTrial.K = k
					paraTrial.SubsetIdx = subsetIdx
					paraTrial.PermIdx = permIdx
					paraTrial.PromptType = promptTypeParaphrase
					trials = append(trials, paraTrial)
					allParaPhi = append(allParaPhi, paraTrial.Phi)
					done++
					r.tick(done, total, fmt.Sprintf("k=%d", k))
				}
			}

			permMeans := make([]float64, len(perms))
			for i, phis := range basePhiByPerm {
				permMeans[i] = metrics.Mean(phis)
			}

			subsetSummaries = append(subsetSummaries, SubsetSummary{
				K:               k,
				SubsetIdx:       subsetIdx,
				PermSensitivity: metrics.PermutationSensitivity(permMeans),
				RobustnessDrop:  metrics.RobustnessDrop(allBasePhi, allParaPhi),
				BaseMeanPhi:     metrics.Mean(allBasePhi),
				ParaMeanPhi:     metrics.Mean(allParaPhi),
			})
		}
	}

	result := &BrittlenessResult{
		Trials:    trials,
		Subsets:   subsetSummaries,
		Failures:  failureCount(trials),
		Timestamp: Timestamp(),
	}

	for _, k := range cfg.Experiment.BrittlenessKValues {
		var sens, drop []float64
		for _, s := range subsetSummaries {
			if s.K == k {
				sens = append(sens, s.PermSensitivity)
				drop = append(drop, s.RobustnessDrop)
			}
		}
		result.CorrelationsBy = append(result.CorrelationsBy, KCorrelation{
			K:           fmt.Sprintf("%d", k),
			Correlation: metrics.Correlate(sens, drop),
		})
	}

	var allSens, allDrop []float64
	for _, s := range subsetSummaries {
		allSens = append(allSens, s.PermSensitivity)
		allDrop = append(allDrop, s.RobustnessDrop)
	}
	result.Overall = metrics.Correlate(allSens, allDrop)

	return result, nil
}

type promptPair struct {
	base       pool.Prompt
	paraphrase pool.Prompt
}

// matchedPairs joins base prompts with paraphrases sharing a GroupID,
// returned in a stable group order.
func matchedPairs(base, paraphrases []pool.Prompt) []promptPair {
	baseByGroup := make(map[string]pool.Prompt, len(base))
	for _, p := range base {
		baseByGroup[p.GroupID] = p
	}

	var pairs []promptPair
	seen := make(map[string]bool)
	for _, para := range paraphrases {
		b, ok := baseByGroup[para.GroupID]
		if !ok || seen[para.GroupID] {
			continue
		}
		seen[para.GroupID] = true
		pairs = append(pairs, promptPair{base: b, paraphrase: para})
	}

	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].base.GroupID < pairs[j].base.GroupID
	})
	return pairs
}
