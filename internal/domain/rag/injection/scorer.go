package injection

import (
	"regexp"
	"strings"
)

// suspiciousPatterns catches common prompt-injection phrasing embedded in
// ingested documents: instructions aimed at an LLM reader rather than a
// human one.
var suspiciousPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)ignore (all|any|the) (previous|prior|above) instructions`),
	regexp.MustCompile(`(?i)disregard (all|any|the) (previous|prior|above)`),
	regexp.MustCompile(`(?i)you are now (a|an|in) (?:jailbreak|dan|unrestricted)`),
	regexp.MustCompile(`(?i)system\s*prompt\s*:`),
	regexp.MustCompile(`(?i)reveal (your|the) (system prompt|instructions)`),
	regexp.MustCompile(`(?i)act as (if you|though you)`),
}

// Scorer implements rag.InjectionScorer with a fixed-pattern heuristic,
// run once at ingest time so retrieval never re-scans chunk content.
type Scorer struct{}

// NewScorer constructs the scorer.
func NewScorer() Scorer { return Scorer{} }

// Score reports whether content matches a known prompt-injection phrasing,
// along with the matched pattern for the audit trail.
func (Scorer) Score(content string) (bool, string) {
	for _, pattern := range suspiciousPatterns {
		if pattern.MatchString(content) {
			return true, strings.TrimSpace(pattern.String())
		}
	}
	return false, ""
}
