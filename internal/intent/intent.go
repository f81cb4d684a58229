// Package intent turns free-text intent and approach statements into the
// engine's structured types, the way observer/parse.go turns a raw
// iteration's free text into a structured Observation: tagged lines are
// pulled out by regexp, untagged prose becomes a sane fallback.
package intent

import (
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/marcusdietz/ralph/pkg/models"
)

var (
	summaryPattern   = regexp.MustCompile(`(?i)^SUMMARY:\s*(.+)$`)
	itemPattern      = regexp.MustCompile(`(?i)^ITEM:\s*(.+)$`)
	criterionPattern = regexp.MustCompile(`(?i)^CRITERION:\s*(.+)$`)
)

// FromText derives a structured Intent from free text (spec §6 outcome op
// "intent-optimize": "replace structured intent from free text"). Tagged
// lines (SUMMARY:, ITEM:, CRITERION:) are parsed out; any untagged line is
// folded into the summary when the caller never supplied a SUMMARY: tag,
// so a plain prose brief still produces a usable intent.
func FromText(freeText string) models.Intent {
	var result models.Intent
	var prose []string

	for _, line := range strings.Split(freeText, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		switch {
		case summaryPattern.MatchString(line):
			result.Summary = strings.TrimSpace(summaryPattern.FindStringSubmatch(line)[1])
		case itemPattern.MatchString(line):
			result.Items = append(result.Items, parseItem(itemPattern.FindStringSubmatch(line)[1]))
		case criterionPattern.MatchString(line):
			result.SuccessCriteria = append(result.SuccessCriteria, strings.TrimSpace(criterionPattern.FindStringSubmatch(line)[1]))
		default:
			prose = append(prose, line)
		}
	}

	if result.Summary == "" {
		result.Summary = strings.Join(prose, " ")
	}
	return result
}

// parseItem reads "title|description|priority" (description and priority
// optional) into an IntentItem with a freshly minted id.
func parseItem(rest string) models.IntentItem {
	parts := strings.SplitN(rest, "|", 3)
	item := models.IntentItem{
		ID:       uuid.NewString(),
		Title:    strings.TrimSpace(parts[0]),
		Priority: models.PriorityMedium,
		Status:   "pending",
	}
	if len(parts) > 1 {
		item.Description = strings.TrimSpace(parts[1])
	}
	if len(parts) > 2 {
		switch models.Priority(strings.ToLower(strings.TrimSpace(parts[2]))) {
		case models.PriorityLow:
			item.Priority = models.PriorityLow
		case models.PriorityHigh:
			item.Priority = models.PriorityHigh
		case models.PriorityMedium:
			item.Priority = models.PriorityMedium
		}
	}
	return item
}
