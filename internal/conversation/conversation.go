// internal/conversation/conversation.go
// Package conversation assembles the ordered message list for a trial and
// computes the stable request fingerprint the response cache keys on.
package conversation

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"modeprobe/internal/pool"
	"modeprobe/internal/provider"
)

// Build lays out one trial conversation: the system prompt, then each
// evidence pair as a user/assistant exchange in exactly the order given,
// then the test prompt. Permutation experiments depend on this function
// never reordering its input.
func Build(systemPrompt string, evidence []pool.EvidenceSnippet, testPrompt string) []provider.Message {
	messages := make([]provider.Message, 0, 2*len(evidence)+2)
	messages = append(messages, provider.Message{Role: "system", Content: systemPrompt})
	for _, ev := range evidence {
		messages = append(messages, provider.Message{Role: "user", Content: ev.User})
		messages = append(messages, provider.Message{Role: "assistant", Content: ev.Assistant})
	}
	messages = append(messages, provider.Message{Role: "user", Content: testPrompt})
	return messages
}

// StableHash hashes a JSON-serializable value into a hex digest that is
// invariant to object key order and sensitive to everything else,
// including the order of list elements. The value is round-tripped
// through encoding/json, which emits map keys sorted.
func StableHash(v any) (string, error) {
	encoded, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("stable hash: %w", err)
	}
	var generic any
	if err := json.Unmarshal(encoded, &generic); err != nil {
		return "", fmt.Errorf("stable hash: %w", err)
	}
	canonical, err := json.Marshal(generic)
	if err != nil {
		return "", fmt.Errorf("stable hash: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// Fingerprint computes the cacheable identity of a request.
func Fingerprint(req provider.Request) (string, error) {
	return StableHash(req)
}
