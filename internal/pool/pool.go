// internal/pool/pool.go
// Package pool loads evidence snippet and test prompt pools from
// newline-delimited JSON files.
package pool

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// EvidenceSnippet is one few-shot demonstration turn pair. Snippets are
// immutable once loaded; two snippets are the same snippet when both the
// user and assistant texts match.
type EvidenceSnippet struct {
	User      string `json:"user"`
	Assistant string `json:"assistant"`
}

// Key returns a content key for duplicate detection across orderings.
func (s EvidenceSnippet) Key() string {
	return s.User + "\x1f" + s.Assistant
}

// Prompt is one test prompt. Paraphrased variants of a base prompt carry
// the same GroupID, which is what pairs them for matched comparison.
type Prompt struct {
	ID      string `json:"id"`
	GroupID string `json:"group_id"`
	Prompt  string `json:"prompt"`
	Target  string `json:"target,omitempty"`
}

// LoadEvidence reads an evidence pool from a JSONL file.
func LoadEvidence(path string) ([]EvidenceSnippet, error) {
	var snippets []EvidenceSnippet
	if err := loadJSONL(path, func(line []byte) error {
		var s EvidenceSnippet
		if err := json.Unmarshal(line, &s); err != nil {
			return err
		}
		snippets = append(snippets, s)
		return nil
	}); err != nil {
		return nil, err
	}
	return snippets, nil
}

// LoadPrompts reads a prompt pool from a JSONL file.
func LoadPrompts(path string) ([]Prompt, error) {
	var prompts []Prompt
	if err := loadJSONL(path, func(line []byte) error {
		var p Prompt
		if err := json.Unmarshal(line, &p); err != nil {
			return err
		}
		prompts = append(prompts, p)
		return nil
	}); err != nil {
		return nil, err
	}
	return prompts, nil
}

func loadJSONL(path string, decode func(line []byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open pool file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		if err := decode(line); err != nil {
			return fmt.Errorf("%s:%d: %w", path, lineNo, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read pool file %s: %w", path, err)
	}
	return nil
}

// SaveJSONL writes records to a JSONL file, creating parent directories.
func SaveJSONL(path string, records []any) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for _, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("encode record: %w", err)
		}
	}
	return w.Flush()
}
