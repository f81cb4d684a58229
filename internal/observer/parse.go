// Package observer implements HOMЯ, the per-iteration evaluator: given a
// worker, a task, and an iteration's raw LLM output, it deterministically
// produces an Observation (spec §4.3).
package observer

import (
	"regexp"
	"strconv"
	"strings"
)

// Tagged markers the iteration prompt asks the agent to emit in its raw
// output, parsed the way the teacher's agent package parses its own
// critique-response tags (internal/agent/rubric.go's ParseScore).
var (
	alignmentPattern    = regexp.MustCompile(`(?i)ALIGNMENT:\s*(\d+)`)
	onTrackPattern      = regexp.MustCompile(`(?i)ON_TRACK:\s*(yes|no|true|false)`)
	taskCompletePattern = regexp.MustCompile(`(?i)TASK_COMPLETE:\s*(yes|no|true|false)`)
	discoveryPattern    = regexp.MustCompile(`(?i)DISCOVERY\((pattern|constraint|insight|blocker)\):\s*(.+)`)
	driftPattern        = regexp.MustCompile(`(?i)DRIFT:\s*(.+)`)
	issuePattern        = regexp.MustCompile(`(?i)ISSUE(?:\(([a-z]+)\))?:\s*(.+)`)
	ambiguityPattern    = regexp.MustCompile(`(?i)AMBIGUITY:\s*(.+)`)
	optionPattern       = regexp.MustCompile(`(?i)OPTION:\s*([a-z0-9_\-]+)\|(.+)`)
	triggerTypePattern  = regexp.MustCompile(`(?i)TRIGGER_TYPE:\s*(.+)`)

	// explicitDecisionPattern catches an agent asking for a decision in
	// prose even when it didn't emit a structured AMBIGUITY tag.
	explicitDecisionPattern = regexp.MustCompile(`(?i)\bneeds?\s+(?:a\s+|your\s+)?decision\b|\bplease\s+(?:choose|decide|clarify)\b`)
)

// taggedOption is a single "OPTION: id|text" line.
type taggedOption struct {
	id   string
	text string
}

// parsed holds every tag extracted from a raw iteration output.
type parsed struct {
	alignment    int
	hasAlignment bool
	onTrack      bool
	hasOnTrack   bool
	taskComplete bool
	discoveries  []taggedDiscovery
	drift        []string
	issues       []taggedIssue

	ambiguityText string
	hasAmbiguity  bool
	options       []taggedOption
	triggerType   string

	explicitAskedDecision bool
}

type taggedDiscovery struct {
	kind string
	text string
}

type taggedIssue struct {
	severity string
	text     string
}

func parseBool(s string) bool {
	switch strings.ToLower(s) {
	case "yes", "true":
		return true
	default:
		return false
	}
}

// parseTags extracts every recognized marker line from raw output. Lines
// that don't match any pattern are ignored; this is a best-effort scan, not
// a strict grammar.
func parseTags(raw string) parsed {
	var p parsed

	if m := alignmentPattern.FindStringSubmatch(raw); m != nil {
		if v, err := strconv.Atoi(m[1]); err == nil {
			p.alignment = v
			p.hasAlignment = true
		}
	}
	if m := onTrackPattern.FindStringSubmatch(raw); m != nil {
		p.onTrack = parseBool(m[1])
		p.hasOnTrack = true
	}
	if m := taskCompletePattern.FindStringSubmatch(raw); m != nil {
		p.taskComplete = parseBool(m[1])
	}
	for _, m := range discoveryPattern.FindAllStringSubmatch(raw, -1) {
		p.discoveries = append(p.discoveries, taggedDiscovery{kind: strings.ToLower(m[1]), text: strings.TrimSpace(m[2])})
	}
	for _, m := range driftPattern.FindAllStringSubmatch(raw, -1) {
		p.drift = append(p.drift, strings.TrimSpace(m[1]))
	}
	for _, m := range issuePattern.FindAllStringSubmatch(raw, -1) {
		p.issues = append(p.issues, taggedIssue{severity: strings.ToLower(m[1]), text: strings.TrimSpace(m[2])})
	}
	if m := ambiguityPattern.FindStringSubmatch(raw); m != nil {
		p.ambiguityText = strings.TrimSpace(m[1])
		p.hasAmbiguity = true
	}
	for _, m := range optionPattern.FindAllStringSubmatch(raw, -1) {
		p.options = append(p.options, taggedOption{id: m[1], text: strings.TrimSpace(m[2])})
	}
	if m := triggerTypePattern.FindStringSubmatch(raw); m != nil {
		p.triggerType = strings.TrimSpace(m[1])
	}
	p.explicitAskedDecision = explicitDecisionPattern.MatchString(raw)

	return p
}
