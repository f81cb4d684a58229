package models

import "time"

// Quality is the observer's coarse bucketing of alignment_score.
type Quality string

const (
	QualityGood      Quality = "good"
	QualityNeedsWork Quality = "needs_work"
	QualityPoor      Quality = "poor"
)

// QualityFromScore buckets an alignment score per spec §4.3:
// >= 75 good, 40-74 needs_work, < 40 poor.
func QualityFromScore(score int) Quality {
	switch {
	case score >= 75:
		return QualityGood
	case score >= 40:
		return QualityNeedsWork
	default:
		return QualityPoor
	}
}

// DiscoveryType classifies a discovery emitted by the observer.
type DiscoveryType string

const (
	DiscoveryPattern    DiscoveryType = "pattern"
	DiscoveryConstraint DiscoveryType = "constraint"
	DiscoveryInsight    DiscoveryType = "insight"
	DiscoveryBlocker    DiscoveryType = "blocker"
)

// Discovery is a single noteworthy fact surfaced during an iteration.
type Discovery struct {
	Type DiscoveryType `json:"type"`
	Text string        `json:"text"`
}

// DriftEntry records a way the iteration's output diverged from the task's
// approach.
type DriftEntry struct {
	Text string `json:"text"`
}

// Issue is a problem noted during an iteration that does not necessarily
// block progress but is worth surfacing.
type Issue struct {
	Text     string `json:"text"`
	Severity string `json:"severity,omitempty"`
}

// AmbiguityOption is one labeled choice the user can pick when resolving an
// ambiguity.
type AmbiguityOption struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Ambiguity is the structured payload attached to an observation when
// has_ambiguity is true. Per spec §4.3 it must carry at least two labeled
// options and a trigger_type.
type Ambiguity struct {
	Question    string            `json:"question"`
	Options     []AmbiguityOption `json:"options"`
	TriggerType string            `json:"trigger_type"`
}

// Valid reports whether the ambiguity payload satisfies the spec's minimum
// shape: a non-empty question, at least two options, and a trigger type.
func (a Ambiguity) Valid() bool {
	return a.Question != "" && len(a.Options) >= 2 && a.TriggerType != ""
}

// Observation (HOMЯ) is the per-iteration evaluation written once by the
// observer. It is never mutated after creation.
type Observation struct {
	ID       string `json:"id"`
	WorkerID string `json:"worker_id"`

	Iteration int    `json:"iteration"`
	TaskID    string `json:"task_id"`

	AlignmentScore int     `json:"alignment_score"`
	Quality        Quality `json:"quality"`
	OnTrack        bool    `json:"on_track"`

	Discoveries []Discovery  `json:"discoveries,omitempty"`
	Drift       []DriftEntry `json:"drift,omitempty"`
	Issues      []Issue      `json:"issues,omitempty"`

	HasAmbiguity bool       `json:"has_ambiguity"`
	Ambiguity    *Ambiguity `json:"ambiguity,omitempty"`

	// TaskComplete signals that, in the observer's judgment, the claimed
	// task's acceptance criteria are satisfied by this iteration's output.
	TaskComplete bool `json:"task_complete"`

	CreatedAt time.Time `json:"created_at"`
}

// HasBlocker reports whether any discovery is blocker-typed. Per spec
// §4.3, a blocker-typed discovery forces on_track=false.
func (o Observation) HasBlocker() bool {
	for _, d := range o.Discoveries {
		if d.Type == DiscoveryBlocker {
			return true
		}
	}
	return false
}
