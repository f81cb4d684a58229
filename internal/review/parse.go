package review

import (
	"regexp"
	"strings"
)

// Tagged markers the review prompt asks the reviewer agent to emit,
// following the same pipe-delimited convention as the teacher's
// second_review.go APPROVED/CONCERN tags and internal/observer's
// OPTION: id|text lines.
var (
	criterionPattern = regexp.MustCompile(`(?i)CRITERION:\s*(.+?)\|(pass|fail)\|(.*)`)
	issuePattern     = regexp.MustCompile(`(?i)ISSUE\(([a-z]+)\):\s*(.+)`)
)

type taggedCriterion struct {
	text     string
	verdict  string
	evidence string
}

type taggedIssue struct {
	severity string
	text     string
}

// parseReview extracts every CRITERION and ISSUE line from a reviewer
// agent's raw output. Lines that don't match are ignored; this is a
// best-effort scan, not a strict grammar, the same tolerance
// internal/observer's tag parsing applies to worker iterations.
func parseReview(raw string) (criteria []taggedCriterion, issues []taggedIssue) {
	for _, m := range criterionPattern.FindAllStringSubmatch(raw, -1) {
		criteria = append(criteria, taggedCriterion{
			text:     strings.TrimSpace(m[1]),
			verdict:  strings.ToLower(m[2]),
			evidence: strings.TrimSpace(m[3]),
		})
	}
	for _, m := range issuePattern.FindAllStringSubmatch(raw, -1) {
		issues = append(issues, taggedIssue{
			severity: strings.ToLower(m[1]),
			text:     strings.TrimSpace(m[2]),
		})
	}
	return criteria, issues
}

// severityRank orders issue severities low < medium < high < critical,
// mirroring internal/observer's heuristicScore severity weighting.
// Unrecognized severities rank below "low".
func severityRank(s string) int {
	switch strings.ToLower(s) {
	case "critical":
		return 4
	case "high":
		return 3
	case "medium":
		return 2
	case "low":
		return 1
	default:
		return 0
	}
}

// warrantsRemediation reports whether an issue's severity clears the
// medium threshold spec §4.6 sets for generating a remediation task.
func warrantsRemediation(severity string) bool {
	return severityRank(severity) >= severityRank("medium")
}
