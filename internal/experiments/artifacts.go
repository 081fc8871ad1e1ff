// internal/experiments/artifacts.go
package experiments

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"modeprobe/internal/metrics"
	"modeprobe/internal/util"
)

// csvResponseLimit caps stored response text so one verbose completion
// cannot blow up the raw trial file.
const csvResponseLimit = 500

// ansiPattern matches terminal color escapes, stripped before a rendered
// report is written to disk.
var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*m`)

// EnsureDir creates dir and any missing parents.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}
	return nil
}

// WriteJSON writes v as indented JSON to path.
func WriteJSON(path string, v any) error {
	if err := EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// WriteTrialsCSV writes the raw trial records to path. The fixed columns
// come first, followed by the union of diagnostic keys across all trials
// in sorted order so that rows from different scorers stay aligned.
func WriteTrialsCSV(path string, trials []Trial) error {
	if err := EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	diagKeys := diagnosticKeyUnion(trials)

	w := csv.NewWriter(f)
	header := []string{
		"k", "subset_idx", "perm_idx", "prompt_id", "prompt_type",
		"condition", "prompt", "response", "phi", "cache_hit", "failed", "error",
	}
	header = append(header, diagKeys...)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}

	for _, t := range trials {
		row := []string{
			strconv.Itoa(t.K),
			strconv.Itoa(t.SubsetIdx),
			strconv.Itoa(t.PermIdx),
			t.PromptID,
			t.PromptType,
			t.Condition,
			t.Prompt,
			util.TruncateRunes(t.Response, csvResponseLimit),
			strconv.FormatFloat(t.Phi, 'f', -1, 64),
			strconv.FormatBool(t.CacheHit),
			strconv.FormatBool(t.Failed),
			t.Err,
		}
		for _, key := range diagKeys {
			row = append(row, t.Diagnostics[key])
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}

	w.Flush()
	return w.Error()
}

func diagnosticKeyUnion(trials []Trial) []string {
	seen := make(map[string]bool)
	for _, t := range trials {
		for key := range t.Diagnostics {
			seen[key] = true
		}
	}
	keys := make([]string, 0, len(seen))
	for key := range seen {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// RunFiles describes the artifacts to persist for one sweep run. Name and
// Timestamp form the file prefix; nil or empty optional sections are
// skipped.
type RunFiles struct {
	Name      string
	Timestamp string
	Analysis  any
	Trials    []Trial

	Aggregates   []metrics.KAggregate  // per-k aggregate table
	Sensitivity  []KSensitivity        // per-k permutation sensitivity table
	Subsets      []SubsetSummary       // per-subset sensitivity/drop table
	Correlations []KCorrelation        // per-k correlation rows
	Overall      *metrics.Correlation  // pooled correlation row
	Report       string                // rendered report text
}

// SaveRun writes the analysis JSON, the tabular CSVs present in files,
// the rendered report, and, when raw output is enabled, the trial CSV.
// Returns the paths written.
func (r *Runner) SaveRun(files RunFiles) ([]string, error) {
	dir := r.Config.Output.Dir
	prefix := fmt.Sprintf("%s_%s", files.Name, files.Timestamp)
	var written []string

	save := func(suffix string, write func(path string) error) error {
		path := filepath.Join(dir, prefix+suffix)
		if err := write(path); err != nil {
			return err
		}
		written = append(written, path)
		return nil
	}

	if err := save(".json", func(p string) error { return WriteJSON(p, files.Analysis) }); err != nil {
		return written, err
	}
	if len(files.Aggregates) > 0 {
		if err := save("_agg.csv", func(p string) error { return WriteAggregatesCSV(p, files.Aggregates) }); err != nil {
			return written, err
		}
	}
	if len(files.Sensitivity) > 0 {
		if err := save("_perm_sens.csv", func(p string) error { return WriteSensitivityCSV(p, files.Sensitivity) }); err != nil {
			return written, err
		}
	}
	if len(files.Subsets) > 0 {
		if err := save("_subsets.csv", func(p string) error { return WriteSubsetsCSV(p, files.Subsets) }); err != nil {
			return written, err
		}
	}
	if len(files.Correlations) > 0 || files.Overall != nil {
		if err := save("_correlations.csv", func(p string) error {
			return WriteCorrelationsCSV(p, files.Correlations, files.Overall)
		}); err != nil {
			return written, err
		}
	}
	if files.Report != "" {
		if err := save("_report.txt", func(p string) error { return WriteReport(p, files.Report) }); err != nil {
			return written, err
		}
	}
	if r.Config.Output.SaveRaw && len(files.Trials) > 0 {
		if err := save("_raw.csv", func(p string) error { return WriteTrialsCSV(p, files.Trials) }); err != nil {
			return written, err
		}
	}
	return written, nil
}

// WriteAggregatesCSV writes the per-k phi summary table.
func WriteAggregatesCSV(path string, aggregates []metrics.KAggregate) error {
	rows := [][]string{{"k", "mean_phi", "std_phi", "stderr_phi", "n_samples"}}
	for _, a := range aggregates {
		rows = append(rows, []string{
			strconv.Itoa(a.K),
			formatFloat(a.Mean),
			formatFloat(a.Std),
			formatFloat(a.StdErr),
			strconv.Itoa(a.N),
		})
	}
	return writeCSV(path, rows)
}

// WriteSensitivityCSV writes the per-k permutation sensitivity table.
func WriteSensitivityCSV(path string, sensitivity []KSensitivity) error {
	rows := [][]string{{"k", "mean_sensitivity", "n_subsets"}}
	for _, s := range sensitivity {
		rows = append(rows, []string{
			strconv.Itoa(s.K),
			formatFloat(s.MeanSensitivity),
			strconv.Itoa(s.NSubsets),
		})
	}
	return writeCSV(path, rows)
}

// WriteSubsetsCSV writes the per-subset sensitivity/drop pairs.
func WriteSubsetsCSV(path string, subsets []SubsetSummary) error {
	rows := [][]string{{"k", "subset_idx", "perm_sensitivity", "robustness_drop", "base_mean_phi", "para_mean_phi"}}
	for _, s := range subsets {
		rows = append(rows, []string{
			strconv.Itoa(s.K),
			strconv.Itoa(s.SubsetIdx),
			formatFloat(s.PermSensitivity),
			formatFloat(s.RobustnessDrop),
			formatFloat(s.BaseMeanPhi),
			formatFloat(s.ParaMeanPhi),
		})
	}
	return writeCSV(path, rows)
}

// WriteCorrelationsCSV writes the per-k correlation rows plus an optional
// pooled "overall" row.
func WriteCorrelationsCSV(path string, byK []KCorrelation, overall *metrics.Correlation) error {
	rows := [][]string{{"k", "pearson_r", "pearson_p", "spearman_r", "spearman_p"}}
	appendRow := func(k string, c metrics.Correlation) {
		rows = append(rows, []string{
			k,
			formatFloat(c.PearsonR),
			formatFloat(c.PearsonP),
			formatFloat(c.SpearmanR),
			formatFloat(c.SpearmanP),
		})
	}
	for _, c := range byK {
		appendRow(c.K, c.Correlation)
	}
	if overall != nil {
		appendRow("overall", *overall)
	}
	return writeCSV(path, rows)
}

// WriteReport writes rendered report text with terminal color escapes
// stripped.
func WriteReport(path, text string) error {
	if err := EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}
	plain := ansiPattern.ReplaceAllString(text, "")
	if err := os.WriteFile(path, []byte(plain), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func writeCSV(path string, rows [][]string) error {
	if err := EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
