package retro

import (
	"regexp"
	"strings"
)

var proposalFieldPattern = regexp.MustCompile(`(?i)^(TITLE|SUMMARY|INTENT|APPROACH):\s*(.+)$`)
var proposalTaskPattern = regexp.MustCompile(`(?i)^TASK:\s*(.+)$`)

// parseProposal extracts the tagged fields and repeated TASK lines from a
// retrospective agent's raw output, the same tolerant line-by-line tag
// scan internal/review and internal/worker use for their own agent
// outputs.
func parseProposal(raw string) (fields map[string]string, tasks []string) {
	fields = make(map[string]string)
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if m := proposalFieldPattern.FindStringSubmatch(line); m != nil {
			fields[strings.ToLower(m[1])] = strings.TrimSpace(m[2])
			continue
		}
		if m := proposalTaskPattern.FindStringSubmatch(line); m != nil {
			tasks = append(tasks, strings.TrimSpace(m[1]))
		}
	}
	return fields, tasks
}
