// internal/scoring/scoring.go
// Package scoring holds the deterministic mode detectors. Each scorer is a
// pure function over response text: it must accept any string, including
// empty or malformed output, and always produce a well-formed Result.
package scoring

import (
	"fmt"
	"sort"
)

// Scorer kinds form a closed set; unknown kinds are a configuration error
// raised at setup, never mid-sweep.
const (
	KindJSONMode      = "json_mode"
	KindVictorianMode = "victorian_mode"
	KindPresidentMode = "president_mode"
)

// Result is a scorer verdict. Phi is the event score the experiment
// drivers aggregate: 0 or 1 for the binary scorers, with smoothed variants
// exposed under their own diagnostic keys. Diagnostics carry the
// scorer-specific counts and flags that travel with each trial row.
type Result struct {
	Phi         float64
	Diagnostics map[string]string
}

// DiagnosticKeys returns the diagnostic field names in a stable order for
// tabular output.
func (r Result) DiagnosticKeys() []string {
	keys := make([]string, 0, len(r.Diagnostics))
	for k := range r.Diagnostics {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Scorer turns response text into a Result.
type Scorer interface {
	Kind() string
	Score(text string) Result
}

// Options carries the per-kind extras: required keys for the JSON scorer
// and the target identity for the president scorer. Unused fields are
// ignored by the other kinds.
type Options struct {
	RequiredKeys []string
	Target       string
}

// New builds a scorer by kind name.
func New(kind string, opts Options) (Scorer, error) {
	switch kind {
	case KindJSONMode:
		return NewJSONMode(opts.RequiredKeys), nil
	case KindVictorianMode:
		return NewVictorian(), nil
	case KindPresidentMode:
		return NewPresident(opts.Target), nil
	default:
		return nil, fmt.Errorf("unknown scorer kind %q (available: %s, %s, %s)",
			kind, KindJSONMode, KindVictorianMode, KindPresidentMode)
	}
}

func boolFlag(v bool) string {
	if v {
		return "1"
	}
	return "0"
}
