// internal/pool/pool_test.go
package pool

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadEvidence(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "evidence.jsonl", strings.Join([]string{
		`{"user": "q1", "assistant": "a1"}`,
		``,
		"   \t  ",
		`{"user": "q2", "assistant": "a2"}`,
	}, "\n")+"\n")

	snippets, err := LoadEvidence(path)
	if err != nil {
		t.Fatalf("LoadEvidence: %v", err)
	}
	if len(snippets) != 2 {
		t.Fatalf("got %d snippets, want 2 (blank and whitespace-only lines skipped)", len(snippets))
	}
	if snippets[0].User != "q1" || snippets[1].Assistant != "a2" {
		t.Fatalf("snippets decoded wrong: %+v", snippets)
	}
}

func TestLoadEvidenceMalformedLine(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "bad.jsonl", `{"user": "q1", "assistant": "a1"}`+"\n"+`not json`+"\n")
	if _, err := LoadEvidence(path); err == nil {
		t.Fatal("expected error for malformed line")
	} else if !strings.Contains(err.Error(), ":2:") {
		t.Fatalf("error does not name the offending line: %v", err)
	}
}

func TestLoadEvidenceMissingFile(t *testing.T) {
	t.Parallel()

	if _, err := LoadEvidence(filepath.Join(t.TempDir(), "absent.jsonl")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadPrompts(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "prompts.jsonl",
		`{"id": "p1", "group_id": "g1", "prompt": "who?", "target": "Obama"}`+"\n")

	prompts, err := LoadPrompts(path)
	if err != nil {
		t.Fatalf("LoadPrompts: %v", err)
	}
	if len(prompts) != 1 {
		t.Fatalf("got %d prompts, want 1", len(prompts))
	}
	p := prompts[0]
	if p.ID != "p1" || p.GroupID != "g1" || p.Prompt != "who?" || p.Target != "Obama" {
		t.Fatalf("prompt decoded wrong: %+v", p)
	}
}

func TestSnippetKey(t *testing.T) {
	t.Parallel()

	a := EvidenceSnippet{User: "x", Assistant: "y"}
	b := EvidenceSnippet{User: "x", Assistant: "y"}
	c := EvidenceSnippet{User: "xy", Assistant: ""}

	if a.Key() != b.Key() {
		t.Fatal("identical snippets have different keys")
	}
	if a.Key() == c.Key() {
		t.Fatal("distinct snippets collide on key")
	}
}

func TestSaveJSONLRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "out.jsonl")
	records := []any{
		EvidenceSnippet{User: "q", Assistant: "a"},
		EvidenceSnippet{User: "q2", Assistant: "a2"},
	}
	if err := SaveJSONL(path, records); err != nil {
		t.Fatalf("SaveJSONL: %v", err)
	}

	snippets, err := LoadEvidence(path)
	if err != nil {
		t.Fatalf("LoadEvidence after save: %v", err)
	}
	if len(snippets) != 2 || snippets[1].User != "q2" {
		t.Fatalf("roundtrip mismatch: %+v", snippets)
	}
}
