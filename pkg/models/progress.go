package models

import "time"

// ProgressEntry is an append-only record of one worker iteration's output.
// Once written, a ProgressEntry is never mutated (spec §3 invariant).
type ProgressEntry struct {
	ID       string `json:"id"`
	WorkerID string `json:"worker_id"`

	// Seq is a monotonic sequence number within the worker, starting at 1.
	Seq int `json:"seq"`

	Iteration int    `json:"iteration"`
	TaskID    string `json:"task_id,omitempty"`

	Content string `json:"content"`
	RawLLM  string `json:"raw_llm_output,omitempty"`

	// ObservationID references the Observation produced for this iteration,
	// if any.
	ObservationID string `json:"observation_id,omitempty"`

	// Compacted marks entries that have been summarized into a shorter form
	// for inclusion in future prompts (spec §4.2 step 3: "recent
	// observations (compacted summary, not raw)").
	Compacted bool `json:"compacted"`

	CreatedAt time.Time `json:"created_at"`
}
