// internal/scoring/json_mode.go
package scoring

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// bracePattern matches brace-delimited substrings with one level of
// nesting, enough to pick a flat-or-shallow JSON object out of prose.
var bracePattern = regexp.MustCompile(`\{[^{}]*(?:\{[^{}]*\}[^{}]*)*\}`)

// JSONMode scores whether a response is a bare JSON object carrying a set
// of required top-level keys.
type JSONMode struct {
	requiredKeys []string
	schema       *gojsonschema.Schema
}

// NewJSONMode builds the scorer. The required-keys check is compiled once
// into a JSON Schema so each response validates against the same document.
func NewJSONMode(requiredKeys []string) *JSONMode {
	schemaDoc := map[string]any{"type": "object"}
	if len(requiredKeys) > 0 {
		schemaDoc["required"] = requiredKeys
	}
	schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(schemaDoc))
	if err != nil {
		// The schema is synthesized from a fixed template; a compile
		// failure is a programming error, not an input condition.
		panic(fmt.Sprintf("compile required-keys schema: %v", err))
	}
	return &JSONMode{requiredKeys: requiredKeys, schema: schema}
}

// Kind reports the scorer kind name.
func (s *JSONMode) Kind() string { return KindJSONMode }

// Score extracts a JSON object from text and checks required keys and
// surrounding prose. Unparseable text is a legitimate negative outcome,
// never an error.
func (s *JSONMode) Score(text string) Result {
	parsed, hasExtra := extractJSONObject(text)

	isValid := parsed != nil
	missing := s.missingKeys(parsed)
	hasKeys := isValid && len(missing) == 0

	phi := 0.0
	if isValid && hasKeys && !hasExtra {
		phi = 1.0
	}

	return Result{
		Phi: phi,
		Diagnostics: map[string]string{
			"is_valid_json":           boolFlag(isValid),
			"has_required_keys":       boolFlag(hasKeys),
			"extra_text_outside_json": boolFlag(hasExtra),
			"missing_keys":            strings.Join(missing, ";"),
		},
	}
}

// missingKeys validates parsed against the required-keys schema and pulls
// the absent property names out of the validation errors.
func (s *JSONMode) missingKeys(parsed map[string]any) []string {
	if parsed == nil {
		return append([]string(nil), s.requiredKeys...)
	}
	result, err := s.schema.Validate(gojsonschema.NewGoLoader(parsed))
	if err != nil {
		return append([]string(nil), s.requiredKeys...)
	}
	var missing []string
	for _, verr := range result.Errors() {
		if verr.Type() != "required" {
			continue
		}
		if prop, ok := verr.Details()["property"].(string); ok {
			missing = append(missing, prop)
		}
	}
	// Preserve the caller's required-key order rather than the
	// validator's error order.
	ordered := make([]string, 0, len(missing))
	for _, key := range s.requiredKeys {
		for _, m := range missing {
			if m == key {
				ordered = append(ordered, key)
				break
			}
		}
	}
	return ordered
}

// extractJSONObject finds a JSON object in text, reporting whether
// non-whitespace prose surrounds it. Three attempts, in order: the whole
// trimmed text, each balanced brace span, then first '{' to last '}'.
func extractJSONObject(text string) (map[string]any, bool) {
	trimmed := strings.TrimSpace(text)

	if obj, ok := parseObject(trimmed); ok {
		return obj, false
	}

	for _, loc := range bracePattern.FindAllStringIndex(trimmed, -1) {
		obj, ok := parseObject(trimmed[loc[0]:loc[1]])
		if !ok {
			continue
		}
		before := strings.TrimSpace(trimmed[:loc[0]])
		after := strings.TrimSpace(trimmed[loc[1]:])
		return obj, before != "" || after != ""
	}

	first := strings.Index(trimmed, "{")
	last := strings.LastIndex(trimmed, "}")
	if first != -1 && last > first {
		if obj, ok := parseObject(trimmed[first : last+1]); ok {
			before := strings.TrimSpace(trimmed[:first])
			after := strings.TrimSpace(trimmed[last+1:])
			return obj, before != "" || after != ""
		}
	}

	return nil, true
}

func parseObject(candidate string) (map[string]any, bool) {
	var obj map[string]any
	dec := json.NewDecoder(strings.NewReader(candidate))
	if err := dec.Decode(&obj); err != nil || obj == nil {
		return nil, false
	}
	// Reject trailing JSON values after the object; the surrounding-text
	// detection handles prose, this handles "{...}{...}".
	if dec.More() {
		return nil, false
	}
	return obj, true
}
