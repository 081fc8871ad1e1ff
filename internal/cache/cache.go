// internal/cache/cache.go
// Package cache memoizes model completions keyed by the exact request, so
// a replayed sweep never re-issues an identical upstream call.
package cache

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"modeprobe/internal/conversation"
	"modeprobe/internal/provider"

	_ "modernc.org/sqlite"
)

// Entry is one memoized completion.
type Entry struct {
	Text string
	Raw  json.RawMessage
}

// Store is the response cache contract. Implementations must be safely
// bypassable: NoCache satisfies the same interface for cache-disabled runs.
type Store interface {
	Get(providerName, model, baseURL string, req provider.Request) (*Entry, error)
	Set(providerName, model, baseURL string, req provider.Request, text string, raw json.RawMessage) error
	Stats() (int, error)
	Clear() error
	Close() error
}

// SQLiteStore persists entries in a single-table SQLite database. Entries
// are created on first miss and read forever after; nothing invalidates
// them automatically.
type SQLiteStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS responses (
	cache_key     TEXT PRIMARY KEY,
	provider      TEXT NOT NULL,
	model         TEXT NOT NULL,
	base_url      TEXT NOT NULL,
	request_hash  TEXT NOT NULL,
	response_text TEXT NOT NULL,
	response_raw  TEXT NOT NULL,
	created_at    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_responses_lookup
	ON responses (provider, model, base_url, request_hash);
`

// Open opens or creates the cache database at path, creating the parent
// directory if needed.
func Open(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create cache dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create cache schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// key derives the primary cache key and the request hash. The key covers
// provider, model, and base URL on top of the request fingerprint, so the
// same conversation against two endpoints never collides.
func key(providerName, model, baseURL string, req provider.Request) (cacheKey, requestHash string, err error) {
	requestHash, err = conversation.Fingerprint(req)
	if err != nil {
		return "", "", err
	}
	cacheKey, err = conversation.StableHash(map[string]string{
		"provider":     providerName,
		"model":        model,
		"base_url":     baseURL,
		"request_hash": requestHash,
	})
	if err != nil {
		return "", "", err
	}
	return cacheKey, requestHash, nil
}

// Get returns the memoized entry for req, or nil on a miss.
func (s *SQLiteStore) Get(providerName, model, baseURL string, req provider.Request) (*Entry, error) {
	cacheKey, _, err := key(providerName, model, baseURL, req)
	if err != nil {
		return nil, err
	}

	var text, raw string
	err = s.db.QueryRow(
		"SELECT response_text, response_raw FROM responses WHERE cache_key = ?", cacheKey,
	).Scan(&text, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache lookup: %w", err)
	}
	return &Entry{Text: text, Raw: json.RawMessage(raw)}, nil
}

// Set stores a completion for req, replacing any previous entry.
func (s *SQLiteStore) Set(providerName, model, baseURL string, req provider.Request, text string, raw json.RawMessage) error {
	cacheKey, requestHash, err := key(providerName, model, baseURL, req)
	if err != nil {
		return err
	}
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}

	_, err = s.db.Exec(
		`INSERT OR REPLACE INTO responses
		 (cache_key, provider, model, base_url, request_hash, response_text, response_raw, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		cacheKey, providerName, model, baseURL, requestHash, text, string(raw),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("cache store: %w", err)
	}
	return nil
}

// Stats returns the number of cached entries.
func (s *SQLiteStore) Stats() (int, error) {
	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM responses").Scan(&count); err != nil {
		return 0, fmt.Errorf("cache stats: %w", err)
	}
	return count, nil
}

// Clear deletes all cached entries.
func (s *SQLiteStore) Clear() error {
	if _, err := s.db.Exec("DELETE FROM responses"); err != nil {
		return fmt.Errorf("cache clear: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// NoCache is the pass-through implementation for --no-cache runs.
type NoCache struct{}

func (NoCache) Get(string, string, string, provider.Request) (*Entry, error) { return nil, nil }
func (NoCache) Set(string, string, string, provider.Request, string, json.RawMessage) error {
	return nil
}
func (NoCache) Stats() (int, error) { return 0, nil }
func (NoCache) Clear() error        { return nil }
func (NoCache) Close() error        { return nil }
