package escalation

import (
	"regexp"
	"strings"
)

// stopWords mirrors the teacher's keyword-extraction stop list
// (internal/learning/retrieval.go's extractKeywords), trimmed to the
// subset relevant to short escalation questions.
var stopWords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true,
	"at": true, "be": true, "by": true, "for": true, "from": true,
	"has": true, "have": true, "in": true, "is": true, "it": true,
	"its": true, "of": true, "on": true, "or": true, "that": true,
	"the": true, "this": true, "to": true, "was": true, "will": true,
	"with": true, "should": true, "would": true, "could": true,
	"do": true, "does": true, "did": true, "if": true, "then": true,
}

var wordPattern = regexp.MustCompile(`[a-zA-Z][a-zA-Z0-9_]*`)

// keywordSet extracts a deduplicated, stop-word-filtered lowercase keyword
// set from text, the same normalization the teacher's retriever applies
// before ranking learnings by relevance.
func keywordSet(text string) map[string]bool {
	words := wordPattern.FindAllString(text, -1)
	set := make(map[string]bool, len(words))
	for _, w := range words {
		lw := strings.ToLower(w)
		if stopWords[lw] || len(lw) < 3 {
			continue
		}
		set[lw] = true
	}
	return set
}

// jaccard returns the Jaccard similarity of two keyword sets: the size of
// their intersection over the size of their union.
func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for k := range a {
		if b[k] {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
