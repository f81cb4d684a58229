package observer

import (
	"time"

	"github.com/google/uuid"

	"github.com/marcusdietz/ralph/pkg/models"
)

// fallbackTriggerType is used when an ambiguity is detected from prose
// ("needs a decision") without a structured TRIGGER_TYPE tag.
const fallbackTriggerType = "unspecified_ambiguity"

// defaultFallbackOptions satisfies Ambiguity.Valid's two-option minimum
// when the raw output signals a decision is needed but doesn't supply
// labeled options itself.
func defaultFallbackOptions() []models.AmbiguityOption {
	return []models.AmbiguityOption{
		{ID: "continue", Text: "Continue with current approach"},
		{ID: models.BreakIntoSubtasksOptionID, Text: "Break into subtasks"},
	}
}

// Observe deterministically evaluates one iteration's raw LLM output for
// workerID against taskID, per spec §4.3. It is a pure function of its
// inputs: same raw output always yields the same Observation shape.
func Observe(workerID, taskID string, iteration int, rawOutput string) *models.Observation {
	p := parseTags(rawOutput)

	score := p.alignment
	if !p.hasAlignment {
		score = heuristicScore(p)
	}
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	obs := &models.Observation{
		ID:             uuid.NewString(),
		WorkerID:       workerID,
		Iteration:      iteration,
		TaskID:         taskID,
		AlignmentScore: score,
		Quality:        models.QualityFromScore(score),
		TaskComplete:   p.taskComplete,
		CreatedAt:      time.Now(),
	}

	for _, d := range p.discoveries {
		obs.Discoveries = append(obs.Discoveries, models.Discovery{
			Type: models.DiscoveryType(d.kind),
			Text: d.text,
		})
	}
	for _, d := range p.drift {
		obs.Drift = append(obs.Drift, models.DriftEntry{Text: d})
	}
	for _, i := range p.issues {
		obs.Issues = append(obs.Issues, models.Issue{Text: i.text, Severity: i.severity})
	}

	// on_track is derived from drift presence; a blocker-typed discovery
	// always forces on_track=false regardless of the ON_TRACK tag.
	onTrack := len(obs.Drift) == 0
	if p.hasOnTrack {
		onTrack = p.onTrack && len(obs.Drift) == 0
	}
	if obs.HasBlocker() {
		onTrack = false
	}
	obs.OnTrack = onTrack

	if amb := buildAmbiguity(p); amb != nil {
		obs.HasAmbiguity = true
		obs.Ambiguity = amb
	}

	return obs
}

// buildAmbiguity assembles an Ambiguity payload when the raw output either
// tagged one explicitly or asked for a decision in prose. It always
// satisfies Ambiguity.Valid (>=2 options, a trigger_type) by falling back
// to generic options/trigger_type when the source text didn't supply them.
func buildAmbiguity(p parsed) *models.Ambiguity {
	if !p.hasAmbiguity && !p.explicitAskedDecision {
		return nil
	}

	question := p.ambiguityText
	if question == "" {
		question = "The worker flagged a decision is needed before continuing."
	}

	var options []models.AmbiguityOption
	for _, o := range p.options {
		options = append(options, models.AmbiguityOption{ID: o.id, Text: o.text})
	}
	if len(options) < 2 {
		options = defaultFallbackOptions()
	}

	triggerType := p.triggerType
	if triggerType == "" {
		triggerType = fallbackTriggerType
	}

	amb := &models.Ambiguity{Question: question, Options: options, TriggerType: triggerType}
	if !amb.Valid() {
		// Should be unreachable given the fallbacks above; fail closed to
		// the fully generic payload rather than emit an invalid one.
		return &models.Ambiguity{Question: question, Options: defaultFallbackOptions(), TriggerType: fallbackTriggerType}
	}
	return amb
}

// heuristicScore estimates an alignment score when the raw output carries
// no explicit ALIGNMENT tag: start from a neutral baseline and penalize
// for blockers, drift, and issues, mirroring the teacher's rubric.go
// treating "no usable score" as the worst case rather than guessing high.
func heuristicScore(p parsed) int {
	score := 70
	for _, d := range p.discoveries {
		if d.kind == string(models.DiscoveryBlocker) {
			score -= 40
		}
	}
	score -= 10 * len(p.drift)
	for _, i := range p.issues {
		switch i.severity {
		case "high", "critical":
			score -= 15
		case "medium":
			score -= 8
		default:
			score -= 3
		}
	}
	return score
}
