// Package models defines the core data model for the outcome orchestration
// engine: outcomes, tasks, workers, progress entries, observations,
// escalations, capabilities, review cycles, and analysis jobs.
package models

import "github.com/google/uuid"

// Identifier prefixes. Every entity ID is opaque to callers but carries one
// of these short typed prefixes so log lines and error messages are
// self-describing at a glance.
const (
	PrefixOutcome     = "out"
	PrefixTask        = "task"
	PrefixWorker      = "wrk"
	PrefixProgress    = "prg"
	PrefixObservation = "obs"
	PrefixEscalation  = "esc"
	PrefixCapability  = "cap"
	PrefixReviewCycle = "rev"
	PrefixAnalysisJob = "job"
)

// NewID generates an opaque identifier with the given typed prefix followed
// by a random UUID, e.g. "out_3f9a2b1c-4d5e-4f70-8a9b-0c1d2e3f4a5b".
func NewID(prefix string) string {
	return prefix + "_" + uuid.New().String()
}
