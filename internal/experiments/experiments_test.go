// internal/experiments/experiments_test.go
package experiments

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"modeprobe/internal/appconfig"
	"modeprobe/internal/cache"
	"modeprobe/internal/metrics"
	"modeprobe/internal/pool"
	"modeprobe/internal/provider"
	"modeprobe/internal/scoring"
)

// fakeClient answers from a rule over the request instead of a live model.
type fakeClient struct {
	respond func(req provider.Request) (string, error)
	calls   int
}

func (f *fakeClient) Complete(_ context.Context, req provider.Request) (provider.Completion, error) {
	f.calls++
	text, err := f.respond(req)
	if err != nil {
		return provider.Completion{}, err
	}
	return provider.Completion{Text: text}, nil
}

func (f *fakeClient) Close() error { return nil }

// evidenceCount recovers k from a built conversation: system + k pairs +
// test prompt.
func evidenceCount(req provider.Request) int {
	return (len(req.Messages) - 2) / 2
}

func writeJSONL(t *testing.T, dir, name string, lines []string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func testConfig(t *testing.T, nSnippets, nPrompts int) *appconfig.Config {
	t.Helper()
	dir := t.TempDir()

	evidence := make([]string, nSnippets)
	for i := range evidence {
		evidence[i] = fmt.Sprintf(`{"user": "format %d?", "assistant": "{\"answer\": \"%d\"}"}`, i, i)
	}
	prompts := make([]string, nPrompts)
	for i := range prompts {
		prompts[i] = fmt.Sprintf(`{"id": "p%d", "group_id": "g%d", "prompt": "question %d"}`, i, i, i)
	}

	cfg := &appconfig.Config{}
	cfg.Provider.Name = "test"
	cfg.Provider.Model = "test-model"
	cfg.Data.EvidencePath = writeJSONL(t, dir, "evidence.jsonl", evidence)
	cfg.Data.PromptsPath = writeJSONL(t, dir, "prompts.jsonl", prompts)
	cfg.Experiment.NSubsets = 2
	cfg.Experiment.NPermutations = 2
	cfg.Experiment.NTrials = nPrompts
	cfg.SystemPrompt = "You are a helpful assistant."
	cfg.Seed = 42
	cfg.Output.Dir = dir
	return cfg
}

func jsonScorer(t *testing.T) scoring.Scorer {
	t.Helper()
	s, err := scoring.New(scoring.KindJSONMode, scoring.Options{RequiredKeys: []string{"answer"}})
	if err != nil {
		t.Fatalf("scoring.New: %v", err)
	}
	return s
}

func TestRunEvidenceCurveDryRun(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, 6, 2)
	cfg.Experiment.KValues = []int{0, 2, 4}

	runner := &Runner{
		Config: cfg,
		Cache:  cache.NoCache{},
		Scorer: jsonScorer(t),
		DryRun: true,
	}

	result, err := runner.RunEvidenceCurve(context.Background(), 0)
	if err != nil {
		t.Fatalf("RunEvidenceCurve: %v", err)
	}

	if len(result.Trials) == 0 {
		t.Fatal("expected trials, got none")
	}
	for _, trial := range result.Trials {
		if trial.Phi != 1 {
			t.Fatalf("dry run trial k=%d scored phi=%v, want 1", trial.K, trial.Phi)
		}
		if trial.Failed {
			t.Fatalf("dry run trial reported failure: %s", trial.Err)
		}
	}
	if result.Failures != 0 {
		t.Fatalf("Failures = %d, want 0", result.Failures)
	}

	if len(result.Aggregates) != 3 {
		t.Fatalf("got %d aggregates, want 3", len(result.Aggregates))
	}
	for _, agg := range result.Aggregates {
		if agg.Mean != 1 {
			t.Fatalf("k=%d mean phi = %v, want 1", agg.K, agg.Mean)
		}
	}

	// The grid must be replayable given a fixed seed and pool order.
	again, err := runner.RunEvidenceCurve(context.Background(), 0)
	if err != nil {
		t.Fatalf("second RunEvidenceCurve: %v", err)
	}
	if len(again.Trials) != len(result.Trials) {
		t.Fatalf("replay produced %d trials, first run %d", len(again.Trials), len(result.Trials))
	}
	for i := range result.Trials {
		a, b := result.Trials[i], again.Trials[i]
		if a.K != b.K || a.SubsetIdx != b.SubsetIdx || a.PermIdx != b.PermIdx || a.PromptID != b.PromptID {
			t.Fatalf("trial %d diverged between runs: %+v vs %+v", i, a, b)
		}
	}
}

func TestRunTrialFailureScoresNegative(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, 4, 1)
	cfg.Experiment.KValues = []int{2}
	cfg.Experiment.NSubsets = 1
	cfg.Experiment.NPermutations = 1

	client := &fakeClient{respond: func(provider.Request) (string, error) {
		return "", fmt.Errorf("upstream unavailable")
	}}
	runner := &Runner{
		Config: cfg,
		Client: client,
		Cache:  cache.NoCache{},
		Scorer: jsonScorer(t),
	}

	result, err := runner.RunEvidenceCurve(context.Background(), 0)
	if err != nil {
		t.Fatalf("RunEvidenceCurve: %v", err)
	}
	if len(result.Trials) == 0 {
		t.Fatal("sweep aborted instead of recording failed trials")
	}
	for _, trial := range result.Trials {
		if !trial.Failed || trial.Phi != 0 || trial.Err == "" {
			t.Fatalf("failed trial not recorded as negative: %+v", trial)
		}
	}
	if result.Failures != len(result.Trials) {
		t.Fatalf("Failures = %d, want %d", result.Failures, len(result.Trials))
	}
}

func TestRunHysteresisTransition(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, 6, 2)
	cfg.Experiment.HysteresisKValues = []int{0, 1, 2, 3, 4, 5}

	// Valid JSON only once three or more evidence pairs are present.
	client := &fakeClient{respond: func(req provider.Request) (string, error) {
		if evidenceCount(req) >= 3 {
			return `{"answer": "ok"}`, nil
		}
		return "Sure, happy to help!", nil
	}}
	runner := &Runner{
		Config: cfg,
		Client: client,
		Cache:  cache.NoCache{},
		Scorer: jsonScorer(t),
	}

	result, err := runner.RunHysteresis(context.Background(), 0)
	if err != nil {
		t.Fatalf("RunHysteresis: %v", err)
	}

	if result.SweepUp.TransitionK == nil || *result.SweepUp.TransitionK != 3 {
		t.Fatalf("sweep up transition = %v, want 3", result.SweepUp.TransitionK)
	}
	// Scanning down from k=5, the mean first drops below 0.5 at k=2.
	if result.SweepDown.TransitionK == nil || *result.SweepDown.TransitionK != 2 {
		t.Fatalf("sweep down transition = %v, want 2", result.SweepDown.TransitionK)
	}
	if result.Analysis.HysteresisGap == nil || *result.Analysis.HysteresisGap != -1 {
		t.Fatalf("hysteresis gap = %v, want -1", result.Analysis.HysteresisGap)
	}
	if !result.Analysis.HasHysteresis {
		t.Fatal("HasHysteresis = false with a non-zero gap")
	}
	if result.Analysis.BimodalityRatio != 1 || !result.Analysis.IsBimodal {
		t.Fatalf("bimodality ratio = %v, want 1 (bimodal)", result.Analysis.BimodalityRatio)
	}
	if result.Analysis.MaxVarianceK > 5 || result.Analysis.MaxVariance != 0 {
		// Every trial at each k agrees, so variance is flat zero.
		t.Fatalf("unexpected variance analysis: %+v", result.Analysis)
	}
}

func TestFindTransition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		order []int
		means map[int]float64
		want  *int
	}{
		{
			name:  "upward crossing",
			order: []int{0, 1, 2, 3, 4},
			means: map[int]float64{0: 0, 1: 0, 2: 0, 3: 1, 4: 1},
			want:  intPtr(3),
		},
		{
			name:  "downward crossing",
			order: []int{4, 3, 2, 1, 0},
			means: map[int]float64{4: 1, 3: 1, 2: 0, 1: 0, 0: 0},
			want:  intPtr(2),
		},
		{
			name:  "no crossing",
			order: []int{0, 1, 2},
			means: map[int]float64{0: 0.1, 1: 0.2, 2: 0.3},
			want:  nil,
		},
		{
			name:  "boundary exactly at half counts as crossed",
			order: []int{0, 1},
			means: map[int]float64{0: 0.4, 1: 0.5},
			want:  intPtr(1),
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := findTransition(tt.order, tt.means)
			switch {
			case tt.want == nil && got != nil:
				t.Fatalf("got transition %d, want none", *got)
			case tt.want != nil && got == nil:
				t.Fatalf("got no transition, want %d", *tt.want)
			case tt.want != nil && *got != *tt.want:
				t.Fatalf("got transition %d, want %d", *got, *tt.want)
			}
		})
	}
}

func TestRunBrittleness(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, 6, 2)
	cfg.Experiment.BrittlenessKValues = []int{2, 4}

	dir := filepath.Dir(cfg.Data.PromptsPath)
	cfg.Data.ParaphrasesPath = writeJSONL(t, dir, "paraphrases.jsonl", []string{
		`{"id": "p0_para", "group_id": "g0", "prompt": "rephrased question 0"}`,
		`{"id": "p1_para", "group_id": "g1", "prompt": "rephrased question 1"}`,
		`{"id": "orphan", "group_id": "g9", "prompt": "no base prompt"}`,
	})

	// Paraphrased prompts break formatting; base prompts comply.
	client := &fakeClient{respond: func(req provider.Request) (string, error) {
		last := req.Messages[len(req.Messages)-1].Content
		if strings.HasPrefix(last, "rephrased") {
			return "free-form prose", nil
		}
		return `{"answer": "ok"}`, nil
	}}
	runner := &Runner{
		Config: cfg,
		Client: client,
		Cache:  cache.NoCache{},
		Scorer: jsonScorer(t),
	}

	result, err := runner.RunBrittleness(context.Background(), 0)
	if err != nil {
		t.Fatalf("RunBrittleness: %v", err)
	}

	wantSubsets := len(cfg.Experiment.BrittlenessKValues) * cfg.Experiment.NSubsets
	if len(result.Subsets) != wantSubsets {
		t.Fatalf("got %d subset summaries, want %d", len(result.Subsets), wantSubsets)
	}
	for _, s := range result.Subsets {
		if s.BaseMeanPhi != 1 {
			t.Fatalf("base mean phi = %v, want 1", s.BaseMeanPhi)
		}
		if s.ParaMeanPhi != 0 {
			t.Fatalf("paraphrase mean phi = %v, want 0", s.ParaMeanPhi)
		}
		if s.RobustnessDrop != 1 {
			t.Fatalf("robustness drop = %v, want 1", s.RobustnessDrop)
		}
	}

	// Constant series: the correlation must degrade to r=0, p=1.
	if result.Overall.PearsonR != 0 || result.Overall.PearsonP != 1 {
		t.Fatalf("degenerate correlation = %+v, want r=0 p=1", result.Overall)
	}
}

func TestMatchedPairs(t *testing.T) {
	t.Parallel()

	base := []pool.Prompt{
		{ID: "b2", GroupID: "g2", Prompt: "two"},
		{ID: "b1", GroupID: "g1", Prompt: "one"},
	}
	paraphrases := []pool.Prompt{
		{ID: "q1", GroupID: "g1", Prompt: "one again"},
		{ID: "q1dup", GroupID: "g1", Prompt: "one a third time"},
		{ID: "q3", GroupID: "g3", Prompt: "orphan"},
		{ID: "q2", GroupID: "g2", Prompt: "two again"},
	}

	pairs := matchedPairs(base, paraphrases)
	if len(pairs) != 2 {
		t.Fatalf("got %d pairs, want 2", len(pairs))
	}
	if pairs[0].base.GroupID != "g1" || pairs[1].base.GroupID != "g2" {
		t.Fatalf("pairs not in group order: %v, %v", pairs[0].base.GroupID, pairs[1].base.GroupID)
	}
	if pairs[0].paraphrase.ID != "q1" {
		t.Fatalf("duplicate paraphrase group not deduplicated to first: %s", pairs[0].paraphrase.ID)
	}
}

func TestRunInoculationGating(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, 8, 3)
	cfg.Experiment.InoculationKValues = []int{4, 6}

	// Identity framings suppress compliance; the baseline and the
	// length-matched control do not.
	client := &fakeClient{respond: func(req provider.Request) (string, error) {
		system := req.Messages[0].Content
		if strings.Contains(system, "not a real person") || strings.Contains(system, "language model") {
			return "I cannot adopt that format.", nil
		}
		return `{"answer": "ok"}`, nil
	}}
	runner := &Runner{
		Config: cfg,
		Client: client,
		Cache:  cache.NoCache{},
		Scorer: jsonScorer(t),
	}

	result, err := runner.RunInoculation(context.Background(), 0)
	if err != nil {
		t.Fatalf("RunInoculation: %v", err)
	}

	if len(result.Cells) != len(cfg.Experiment.InoculationKValues)*4 {
		t.Fatalf("got %d cells, want %d", len(result.Cells), len(cfg.Experiment.InoculationKValues)*4)
	}
	if len(result.ByK) != 2 {
		t.Fatalf("got %d per-k delta rows, want 2", len(result.ByK))
	}

	for _, d := range result.ByK {
		if d.BaselineP != 1 || d.NearP != 1 {
			t.Fatalf("k=%d baseline/near p = %v/%v, want 1/1", d.K, d.BaselineP, d.NearP)
		}
		if d.InocP != 0 || d.ParaInocP != 0 {
			t.Fatalf("k=%d inoc/para p = %v/%v, want 0/0", d.K, d.InocP, d.ParaInocP)
		}
		if d.DeltaInoc <= 0 {
			t.Fatalf("k=%d delta_inoc = %v, want positive", d.K, d.DeltaInoc)
		}
		if d.DeltaNear != 0 {
			t.Fatalf("k=%d delta_near = %v, want 0", d.K, d.DeltaNear)
		}
		if d.SemanticEffect != d.DeltaInoc {
			t.Fatalf("k=%d semantic effect = %v, want %v", d.K, d.SemanticEffect, d.DeltaInoc)
		}
		if d.ParaphraseTransfer != 1 {
			t.Fatalf("k=%d paraphrase transfer = %v, want 1", d.K, d.ParaphraseTransfer)
		}
	}

	if !result.Summary.InoculationGates {
		t.Fatal("InoculationGates = false, want true")
	}
	if !result.Summary.SemanticNotSurface {
		t.Fatal("SemanticNotSurface = false, want true")
	}
}

func TestWriteTrialsCSV(t *testing.T) {
	t.Parallel()

	trials := []Trial{
		{K: 2, PromptID: "p0", Prompt: "q", Response: `{"answer":"x"}`, Phi: 1,
			Diagnostics: map[string]string{"is_valid_json": "1", "has_extra_text": "0"}},
		{K: 4, PromptID: "p1", Failed: true, Err: "boom",
			Diagnostics: map[string]string{"marker_count": "0"}},
	}

	path := filepath.Join(t.TempDir(), "out", "trials.csv")
	if err := WriteTrialsCSV(path, trials); err != nil {
		t.Fatalf("WriteTrialsCSV: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open csv: %v", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want header + 2", len(rows))
	}

	header := rows[0]
	wantTail := []string{"has_extra_text", "is_valid_json", "marker_count"}
	gotTail := header[len(header)-3:]
	for i, want := range wantTail {
		if gotTail[i] != want {
			t.Fatalf("diagnostic columns = %v, want %v", gotTail, wantTail)
		}
	}
	for _, row := range rows[1:] {
		if len(row) != len(header) {
			t.Fatalf("row width %d != header width %d", len(row), len(header))
		}
	}
}

func TestSaveRunWritesAllArtifacts(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, 2, 1)
	cfg.Output.Dir = filepath.Join(t.TempDir(), "results")
	cfg.Output.SaveRaw = true
	runner := &Runner{Config: cfg}

	overall := metrics.Correlation{PearsonR: 0.5, PearsonP: 0.04, SpearmanR: 0.6, SpearmanP: 0.03}
	written, err := runner.SaveRun(RunFiles{
		Name:      "evidence_curve",
		Timestamp: "20260827_120000",
		Analysis:  map[string]int{"failures": 0},
		Trials:    []Trial{{K: 2, PromptID: "p0", Phi: 1}},
		Aggregates: []metrics.KAggregate{
			{K: 2, Mean: 0.75, Std: 0.5, StdErr: 0.25, N: 4},
		},
		Sensitivity: []KSensitivity{{K: 2, MeanSensitivity: 0.125, NSubsets: 3}},
		Subsets: []SubsetSummary{
			{K: 2, SubsetIdx: 0, PermSensitivity: 0.1, RobustnessDrop: 0.25, BaseMeanPhi: 1, ParaMeanPhi: 0.75},
		},
		Correlations: []KCorrelation{{K: "2", Correlation: overall}},
		Overall:      &overall,
		Report:       "\x1b[1mEVIDENCE CURVE\x1b[0m\nmean phi 0.750\n",
	})
	if err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	wantSuffixes := []string{".json", "_agg.csv", "_perm_sens.csv", "_subsets.csv", "_correlations.csv", "_report.txt", "_raw.csv"}
	if len(written) != len(wantSuffixes) {
		t.Fatalf("wrote %d files %v, want %d", len(written), written, len(wantSuffixes))
	}
	for i, suffix := range wantSuffixes {
		if !strings.HasSuffix(written[i], suffix) {
			t.Fatalf("file %d = %s, want suffix %s", i, written[i], suffix)
		}
		if _, err := os.Stat(written[i]); err != nil {
			t.Fatalf("artifact %s not on disk: %v", written[i], err)
		}
	}

	aggRows := readCSV(t, written[1])
	if len(aggRows) != 2 || aggRows[0][1] != "mean_phi" || aggRows[1][1] != "0.75" {
		t.Fatalf("aggregate csv malformed: %v", aggRows)
	}

	corrRows := readCSV(t, written[4])
	if len(corrRows) != 3 || corrRows[2][0] != "overall" || corrRows[2][1] != "0.5" {
		t.Fatalf("correlation csv missing overall row: %v", corrRows)
	}

	reportText, err := os.ReadFile(written[5])
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if strings.Contains(string(reportText), "\x1b[") {
		t.Fatalf("report text retains color escapes: %q", reportText)
	}
	if !strings.Contains(string(reportText), "EVIDENCE CURVE") {
		t.Fatalf("report text lost content: %q", reportText)
	}
}

func TestSaveRunSkipsEmptySections(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, 2, 1)
	cfg.Output.Dir = t.TempDir()
	cfg.Output.SaveRaw = false
	runner := &Runner{Config: cfg}

	written, err := runner.SaveRun(RunFiles{
		Name:      "hysteresis",
		Timestamp: "20260827_120000",
		Analysis:  map[string]int{},
		Trials:    []Trial{{K: 1}},
		Report:    "plain\n",
	})
	if err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	if len(written) != 2 {
		t.Fatalf("wrote %v, want analysis JSON and report only", written)
	}
	if !strings.HasSuffix(written[0], ".json") || !strings.HasSuffix(written[1], "_report.txt") {
		t.Fatalf("unexpected artifact set: %v", written)
	}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return rows
}

func TestTrimPrompts(t *testing.T) {
	t.Parallel()

	prompts := []pool.Prompt{{ID: "a"}, {ID: "b"}, {ID: "c"}}
	if got := trimPrompts(prompts, 2); len(got) != 2 {
		t.Fatalf("trim to 2 gave %d", len(got))
	}
	if got := trimPrompts(prompts, 0); len(got) != 3 {
		t.Fatalf("trim disabled gave %d", len(got))
	}
	if got := trimPrompts(prompts, 10); len(got) != 3 {
		t.Fatalf("trim above length gave %d", len(got))
	}
}

func intPtr(v int) *int { return &v }
