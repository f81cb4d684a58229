package models

import "time"

// CapabilityArtifactKind distinguishes a documentation-style skill from an
// executable tool script.
type CapabilityArtifactKind string

const (
	ArtifactKindMarkdown   CapabilityArtifactKind = "markdown"
	ArtifactKindExecutable CapabilityArtifactKind = "executable"
)

// Valid returns true if the artifact kind is a known value.
func (k CapabilityArtifactKind) Valid() bool {
	switch k {
	case ArtifactKindMarkdown, ArtifactKindExecutable:
		return true
	default:
		return false
	}
}

// CapabilityStatus tracks whether a capability is usable yet.
type CapabilityStatus string

const (
	CapabilityStatusPlanned CapabilityStatus = "planned"
	CapabilityStatusReady   CapabilityStatus = "ready"
	CapabilityStatusStale   CapabilityStatus = "stale"
)

// Valid returns true if the status is a known value.
func (s CapabilityStatus) Valid() bool {
	switch s {
	case CapabilityStatusPlanned, CapabilityStatusReady, CapabilityStatusStale:
		return true
	default:
		return false
	}
}

// Capability is a skill or tool artifact scoped to a single outcome's
// workspace. Skills carry YAML frontmatter (name, description, triggers);
// tools are executable scripts that may declare required environment keys.
type Capability struct {
	ID        string `json:"id"`
	OutcomeID string `json:"outcome_id"`

	Name string                 `json:"name"`
	Type CapabilityType         `json:"type"`
	Kind CapabilityArtifactKind `json:"kind"`

	Description string   `json:"description,omitempty"`
	Triggers    []string `json:"triggers,omitempty"`

	// Path is the workspace-relative path to the artifact file.
	Path string `json:"path"`

	// RequiredEnvKeys lists environment variable names the artifact expects
	// to find set when invoked (populated for executable tools).
	RequiredEnvKeys []string `json:"required_env_keys,omitempty"`

	Status CapabilityStatus `json:"status"`

	// BuiltByTaskID is the capability-phase task that produced this
	// artifact, if any.
	BuiltByTaskID string `json:"built_by_task_id,omitempty"`

	CreatedAt  time.Time `json:"created_at"`
	ModifiedAt time.Time `json:"modified_at"`
}

// Ref returns the typed reference string for this capability, e.g.
// "skill:tavily-api", matching CapabilityRef.
func (c Capability) Ref() string {
	return CapabilityRef(c.Type, c.Name)
}
