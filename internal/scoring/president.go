// internal/scoring/president.go
package scoring

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// roleMarkers are first-person claims of holding the office plus
// institutional references; one hit is enough to call the persona active.
var roleMarkers = compileMarkers([]string{
	`\bas\s+president\b`,
	`\bas\s+the\s+president\b`,
	`\bmy\s+administration\b`,
	`\bduring\s+my\s+term\b`,
	`\bduring\s+my\s+presidency\b`,
	`\bmy\s+presidency\b`,
	`\bI\s+signed\b`,
	`\bI\s+vetoed\b`,
	`\bI\s+appointed\b`,
	`\bI\s+nominated\b`,
	`\bmy\s+cabinet\b`,
	`\bthe\s+oval\s+office\b`,
	`\bmy\s+fellow\s+americans\b`,
	`\bthe\s+american\s+people\b`,
	`\bour\s+nation\b`,
	`\bthis\s+great\s+nation\b`,
	`\bour\s+country\b`,
	`\bexecutive\s+order\b`,
	`\bstate\s+of\s+the\s+union\b`,
	`\bwhite\s+house\b`,
	`\bcommander\s+in\s+chief\b`,
})

// presidentNames is the identity roster: surnames for every holder of the
// office plus a handful of widely used given names and nicknames.
var presidentNames = []string{
	"Washington", "Adams", "Jefferson", "Madison", "Monroe",
	"Jackson", "Van Buren", "Harrison", "Tyler", "Polk",
	"Taylor", "Fillmore", "Pierce", "Buchanan", "Lincoln",
	"Johnson", "Grant", "Hayes", "Garfield", "Arthur",
	"Cleveland", "McKinley", "Roosevelt", "Taft", "Wilson",
	"Harding", "Coolidge", "Hoover", "Truman", "Eisenhower",
	"Kennedy", "Nixon", "Ford", "Carter", "Reagan",
	"Bush", "Clinton", "Obama", "Trump", "Biden",
	"Abraham", "George", "Thomas", "Theodore", "Franklin",
	"John F", "JFK", "FDR", "Teddy",
}

// identityTemplates match first-person self-identification; %s is the
// quoted roster name.
var identityTemplates = []string{
	`(?i)\bI,?\s+(?:am\s+)?(?:President\s+)?%s\b`,
	`(?i)\bI,?\s+%s\b`,
	`(?i)\bmy\s+name\s+is\s+(?:President\s+)?%s\b`,
	`(?i)\bas\s+%s\b`,
}

// identityPatterns is indexed [template][name], compiled once. The scan
// walks templates in order and names in roster order within each template;
// the first hit terminates the search.
var identityPatterns = func() [][]*regexp.Regexp {
	patterns := make([][]*regexp.Regexp, len(identityTemplates))
	for i, tmpl := range identityTemplates {
		patterns[i] = make([]*regexp.Regexp, len(presidentNames))
		for j, name := range presidentNames {
			patterns[i][j] = regexp.MustCompile(fmt.Sprintf(tmpl, regexp.QuoteMeta(name)))
		}
	}
	return patterns
}()

// President scores the US-president persona: role-claim markers plus
// first-person identity matches against the roster, optionally compared to
// a target identity from prompt metadata.
type President struct {
	target string
}

// NewPresident builds the scorer. target may be empty when the prompt set
// carries no persona metadata.
func NewPresident(target string) *President {
	return &President{target: target}
}

// Kind reports the scorer kind name.
func (s *President) Kind() string { return KindPresidentMode }

// Score is binary: any role claim or identity match flips phi to 1. The
// smoothed variant saturates at two distinct role markers.
func (s *President) Score(text string) Result {
	roleMarkerCount := countMarkers(text, roleMarkers)

	matched := matchIdentity(text)
	targetMatch := false
	if s.target != "" && matched != "" {
		lowTarget := strings.ToLower(s.target)
		lowMatched := strings.ToLower(matched)
		targetMatch = strings.Contains(lowTarget, lowMatched) || strings.Contains(lowMatched, lowTarget)
	}

	phiSmooth := float64(roleMarkerCount) / 2.0
	if phiSmooth > 1 {
		phiSmooth = 1
	}

	phi := 0.0
	if roleMarkerCount > 0 || matched != "" {
		phi = 1.0
	}

	return Result{
		Phi: phi,
		Diagnostics: map[string]string{
			"role_marker_count": strconv.Itoa(roleMarkerCount),
			"has_role_claim":    boolFlag(roleMarkerCount > 0),
			"has_identity":      boolFlag(matched != ""),
			"matched_president": matched,
			"target_president":  s.target,
			"target_match":      boolFlag(targetMatch),
			"phi_smooth":        fmt.Sprintf("%.4f", phiSmooth),
		},
	}
}

func matchIdentity(text string) string {
	for i := range identityPatterns {
		for j, pattern := range identityPatterns[i] {
			if pattern.MatchString(text) {
				return presidentNames[j]
			}
		}
	}
	return ""
}
