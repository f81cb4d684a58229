package retro

import (
	"regexp"
	"strings"

	"github.com/marcusdietz/ralph/pkg/models"
)

// clusterSimilarityThreshold is how much keyword overlap two escalations'
// questions need, within the same trigger_type, to join the same cluster
// (spec §4.8: "clusters recent escalations by trigger_type and root-cause
// text").
const clusterSimilarityThreshold = 0.4

var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "is": true, "are": true, "was": true,
	"were": true, "be": true, "been": true, "to": true, "of": true, "in": true,
	"on": true, "for": true, "and": true, "or": true, "this": true, "that": true,
	"it": true, "should": true, "use": true, "using": true, "with": true,
	"do": true, "does": true, "we": true, "i": true,
}

var wordPattern = regexp.MustCompile(`[a-zA-Z0-9]+`)

// keywordSet extracts a lowercased, stop-word-filtered bag of words from
// text, the same stop-word-filtering shape internal/escalation's
// keywords.go uses (itself grounded on the teacher's
// internal/learning/retrieval.go extractKeywords), kept as its own small
// copy here since clustering escalations and matching a single question
// against history are distinct enough concerns to not share a package.
func keywordSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range wordPattern.FindAllString(strings.ToLower(text), -1) {
		if len(w) <= 2 || stopWords[w] {
			continue
		}
		set[w] = true
	}
	return set
}

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	intersection := 0
	for w := range a {
		if b[w] {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// clusterEscalations groups escalations sharing a trigger_type and
// similar question text into EscalationClusters. Within each trigger_type
// group, an escalation joins the first existing cluster whose
// representative question clears clusterSimilarityThreshold; otherwise it
// starts a new cluster.
func clusterEscalations(escalations []*models.Escalation) []models.EscalationCluster {
	byTrigger := make(map[string][]*models.Escalation)
	var order []string
	for _, e := range escalations {
		if _, seen := byTrigger[e.TriggerType]; !seen {
			order = append(order, e.TriggerType)
		}
		byTrigger[e.TriggerType] = append(byTrigger[e.TriggerType], e)
	}

	var clusters []models.EscalationCluster
	for _, trigger := range order {
		group := byTrigger[trigger]
		type building struct {
			keywords  map[string]bool
			rootCause string
			ids       []string
		}
		var active []*building

		for _, e := range group {
			kw := keywordSet(e.Question.Text)
			var target *building
			for _, b := range active {
				if jaccard(kw, b.keywords) >= clusterSimilarityThreshold {
					target = b
					break
				}
			}
			if target == nil {
				target = &building{keywords: kw, rootCause: e.Question.Text}
				active = append(active, target)
			}
			target.ids = append(target.ids, e.ID)
		}

		for _, b := range active {
			clusters = append(clusters, models.EscalationCluster{
				TriggerType:   trigger,
				RootCause:     b.rootCause,
				EscalationIDs: b.ids,
				Occurrences:   len(b.ids),
			})
		}
	}
	return clusters
}
