// internal/scoring/victorian.go
package scoring

import (
	"fmt"
	"regexp"
	"strconv"
)

// Three marker vocabularies for 19th-century register: archaic connectives
// and phrasing, period address forms, and era lexicon. Each pattern
// contributes at most once regardless of repeat occurrences.
var (
	archaicMarkers = compileMarkers([]string{
		`\bwhilst\b`,
		`\bthereupon\b`,
		`\bwhereupon\b`,
		`\bhence\b`,
		`\bthus\b`,
		`\bhenceforth\b`,
		`\bforthwith\b`,
		`\bheretofore\b`,
		`\bwherefore\b`,
		`\binasmuch\b`,
		`\bshall\b`,
		`\bendeavour\b`,
		`\bendeavor\b`,
		`\bmost\s+oft\b`,
		`\bperhaps\s+one\s+might\b`,
		`\bi\s+daresay\b`,
		`\bpray\s+tell\b`,
		`\bI\s+beg\b`,
		`\bforsooth\b`,
		`\bperchance\b`,
		`\bmayhaps\b`,
		`\bwould\s+that\b`,
		`\b'tis\b`,
		`\b'twas\b`,
		`\bverily\b`,
		`\bindeed\b`,
		`\bmost\s+\w+ing\b`,
		`\bmost\s+\w+ful\b`,
		`\ba\s+most\b`,
		`\boft\b`,
		`\bI\s+have\s+observed\b`,
		`\bI\s+confess\b`,
		`\bI\s+must\s+confess\b`,
		`\brender\w*\b`,
		`\bdemeanour\b`,
		`\bdemeanor\b`,
		`\bcolouration\b`,
		`\bcoloration\b`,
		`\bspecimen\b`,
	})

	salutationMarkers = compileMarkers([]string{
		`\bsir\b`,
		`\bmadam\b`,
		`\bmy\s+dear\b`,
		`\bgood\s+sir\b`,
		`\bgood\s+madam\b`,
		`\bmy\s+good\b`,
		`\bI\s+remain\b`,
		`\byour\s+humble\b`,
		`\byour\s+obedient\b`,
		`\bmost\s+respectfully\b`,
		`\bkind\s+regards\b`,
	})

	victorianLexicon = compileMarkers([]string{
		`\btelegraph\b`,
		`\btelegram\b`,
		`\bdispatch\b`,
		`\bsteamer\b`,
		`\bcarriage\b`,
		`\bhansom\b`,
		`\bgaslight\b`,
		`\bgas\s*lamp\b`,
		`\bparlour\b`,
		`\bparlor\b`,
		`\bdrawing\s*room\b`,
		`\bservant\b`,
		`\bcoachman\b`,
		`\bfootman\b`,
		`\bscullery\b`,
		`\bpenny\s+post\b`,
		`\bquill\b`,
		`\binkwell\b`,
		`\bcorrespondence\b`,
	})

	telegraphPattern = regexp.MustCompile(`(?i)\btelegraph\b`)
)

func compileMarkers(patterns []string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		compiled[i] = regexp.MustCompile(`(?i)` + p)
	}
	return compiled
}

// countMarkers counts how many distinct patterns match anywhere in text.
func countMarkers(text string, patterns []*regexp.Regexp) int {
	count := 0
	for _, pattern := range patterns {
		if pattern.MatchString(text) {
			count++
		}
	}
	return count
}

// Victorian scores 19th-century register: distinct marker hits across the
// three vocabularies, with a bonus for the word "telegraph".
type Victorian struct{}

// NewVictorian builds the scorer. It carries no state.
func NewVictorian() *Victorian { return &Victorian{} }

// Kind reports the scorer kind name.
func (s *Victorian) Kind() string { return KindVictorianMode }

// Score counts distinct markers per vocabulary. The binary phi gates at
// two or more total markers; the smoothed blend (80% style saturation,
// 20% telegraph bonus) is exposed separately as phi_smooth so downstream
// aggregation can still treat phi as an event count.
func (s *Victorian) Score(text string) Result {
	archaicCount := countMarkers(text, archaicMarkers)
	salutationCount := countMarkers(text, salutationMarkers)
	lexiconCount := countMarkers(text, victorianLexicon)
	markerCount := archaicCount + salutationCount + lexiconCount

	phiStyle := float64(markerCount) / 3.0
	if phiStyle > 1 {
		phiStyle = 1
	}

	telegraphBonus := 0
	if telegraphPattern.MatchString(text) {
		telegraphBonus = 1
	}

	phiSmooth := 0.8*phiStyle + 0.2*float64(telegraphBonus)

	phi := 0.0
	if markerCount >= 2 {
		phi = 1.0
	}

	return Result{
		Phi: phi,
		Diagnostics: map[string]string{
			"archaic_count":    strconv.Itoa(archaicCount),
			"salutation_count": strconv.Itoa(salutationCount),
			"lexicon_count":    strconv.Itoa(lexiconCount),
			"marker_count":     strconv.Itoa(markerCount),
			"telegraph_bonus":  strconv.Itoa(telegraphBonus),
			"phi_style":        fmt.Sprintf("%.4f", phiStyle),
			"phi_smooth":       fmt.Sprintf("%.4f", phiSmooth),
		},
	}
}
