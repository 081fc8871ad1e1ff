// internal/experiments/experiments.go
// Package experiments orchestrates the sweep drivers: each walks a grid of
// (k, evidence arrangement, prompt) points, resolves a completion through
// the cache or the live client, scores it, and accumulates trial records
// for the metrics layer.
//
// Drivers are single-threaded and fully sequential. With a fixed pool
// ordering and seed, the sequence of requests is deterministic and
// replayable, which is what makes cache hits on repeat runs possible.
package experiments

import (
	"context"
	"fmt"
	"log"
	"time"

	"modeprobe/internal/appconfig"
	"modeprobe/internal/cache"
	"modeprobe/internal/conversation"
	"modeprobe/internal/pool"
	"modeprobe/internal/provider"
	"modeprobe/internal/scoring"
)

// dryRunResponse stands in for the model during --dry-run sweeps.
const dryRunResponse = `{"answer": "dry run"}`

// Trial is one grid point's outcome. Append-only; never mutated after
// creation.
type Trial struct {
	K           int
	SubsetIdx   int
	PermIdx     int
	PromptID    string
	PromptType  string
	Condition   string
	Prompt      string
	Response    string
	Phi         float64
	CacheHit    bool
	Failed      bool
	Err         string
	Diagnostics map[string]string
}

// Runner bundles the collaborators every driver needs.
type Runner struct {
	Config *appconfig.Config
	Client provider.Client
	Cache  cache.Store
	Scorer scoring.Scorer
	DryRun bool

	// Progress, when set, receives completion ticks for display. The
	// callback must not block; drivers call it inline.
	Progress func(done, total int, label string)
}

func (r *Runner) tick(done, total int, label string) {
	if r.Progress != nil {
		r.Progress(done, total, label)
	}
}

// runTrial resolves one grid point: build the conversation, consult the
// cache, call upstream on a miss, and score the text. An upstream failure
// is not fatal: it is logged, recorded on the trial, and scored phi=0, so
// the sweep keeps moving. That conflates an infrastructure failure with a
// genuine negative; the Failed flag keeps the two distinguishable in the
// raw output.
func (r *Runner) runTrial(ctx context.Context, systemPrompt string, evidence []pool.EvidenceSnippet, prompt pool.Prompt) Trial {
	trial := Trial{PromptID: prompt.ID, Prompt: prompt.Prompt}

	messages := conversation.Build(systemPrompt, evidence, prompt.Prompt)
	req := provider.Request{
		Model:       r.Config.Provider.Model,
		Messages:    messages,
		Temperature: r.Config.Provider.Temperature,
		MaxTokens:   r.Config.Provider.MaxTokens,
		TopP:        r.Config.Provider.TopP,
	}

	text, cacheHit, err := r.resolve(ctx, req)
	if err != nil {
		log.Printf("trial %s failed, scoring as negative: %v", prompt.ID, err)
		trial.Failed = true
		trial.Err = err.Error()
		trial.Phi = 0
		trial.Diagnostics = map[string]string{}
		return trial
	}

	result := r.Scorer.Score(text)
	trial.Response = text
	trial.CacheHit = cacheHit
	trial.Phi = result.Phi
	trial.Diagnostics = result.Diagnostics
	return trial
}

// resolve returns the completion text for req, from cache when possible.
func (r *Runner) resolve(ctx context.Context, req provider.Request) (text string, cacheHit bool, err error) {
	p := r.Config.Provider

	entry, err := r.Cache.Get(p.Name, p.Model, p.BaseURL, req)
	if err != nil {
		return "", false, fmt.Errorf("cache get: %w", err)
	}
	if entry != nil {
		return entry.Text, true, nil
	}

	if r.DryRun {
		return dryRunResponse, false, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, r.Config.RequestTimeout())
	defer cancel()

	completion, err := r.Client.Complete(callCtx, req)
	if err != nil {
		return "", false, err
	}

	if err := r.Cache.Set(p.Name, p.Model, p.BaseURL, req, completion.Text, completion.Raw); err != nil {
		// A cache write failure costs a future hit, not this trial.
		log.Printf("cache set failed: %v", err)
	}
	return completion.Text, false, nil
}

// Timestamp returns the run timestamp used in artifact file names.
func Timestamp() string {
	return time.Now().Format("20060102_150405")
}

// trimPrompts applies the --max-prompts debugging limit.
func trimPrompts(prompts []pool.Prompt, max int) []pool.Prompt {
	if max > 0 && max < len(prompts) {
		return prompts[:max]
	}
	return prompts
}

// failureCount tallies trials that failed upstream, for report audit lines.
func failureCount(trials []Trial) int {
	n := 0
	for _, t := range trials {
		if t.Failed {
			n++
		}
	}
	return n
}
