// Package capability implements the capability planner: extracting skill
// and tool needs from an outcome's approach text, materializing capability
// tasks for them, and discovering capability artifacts that appear in an
// outcome's workspace.
package capability

import (
	"regexp"
	"strings"

	"github.com/marcusdietz/ralph/pkg/models"
)

// Need is a single detected capability requirement.
type Need struct {
	Type models.CapabilityType
	Name string
}

// Ref formats the need as a typed reference, e.g. "skill:tavily-api".
func (n Need) Ref() string {
	return models.CapabilityRef(n.Type, n.Name)
}

// explicitRefPattern matches an approach author spelling out a typed
// reference directly, e.g. "requires tool:web-scraper".
var explicitRefPattern = regexp.MustCompile(`\b(skill|tool):([a-z0-9][a-z0-9_-]*)\b`)

// apiMentionPattern matches "<Name> API", the common way an approach names
// an external service it needs wrapped as a skill.
var apiMentionPattern = regexp.MustCompile(`(?i)\b([A-Za-z][A-Za-z0-9]*)\s+API\b`)

// toolMentionPattern matches "<name> tool" or "the <name> script", the
// common way an approach names an executable helper it needs.
var toolMentionPattern = regexp.MustCompile(`(?i)\b([A-Za-z][A-Za-z0-9]*)\s+(?:tool|script)\b`)

// Analyze extracts capability needs mentioned in approach text, deduplicated
// against each other (not yet against an outcome's existing capabilities;
// callers that want the delta should use DetectNew).
func Analyze(approach string) []Need {
	seen := make(map[string]bool)
	var needs []Need

	add := func(kind models.CapabilityType, rawName string) {
		name := slugify(rawName)
		if name == "" {
			return
		}
		n := Need{Type: kind, Name: name}
		if seen[n.Ref()] {
			return
		}
		seen[n.Ref()] = true
		needs = append(needs, n)
	}

	for _, m := range explicitRefPattern.FindAllStringSubmatch(approach, -1) {
		add(models.CapabilityType(m[1]), m[2])
	}
	for _, m := range apiMentionPattern.FindAllStringSubmatch(approach, -1) {
		add(models.CapabilitySkill, m[1]+"-api")
	}
	for _, m := range toolMentionPattern.FindAllStringSubmatchIndex(approach, -1) {
		// "requires tool:x" is an explicit reference, already handled above.
		if m[1] < len(approach) && approach[m[1]] == ':' {
			continue
		}
		add(models.CapabilityTool, approach[m[2]:m[3]])
	}

	return needs
}

// slugify lowercases name and keeps it to [a-z0-9-_], the charset expected
// by CapabilityRef/ParseCapabilityRef.
func slugify(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('-')
		}
	}
	return b.String()
}

// DetectNew returns the subset of Analyze(approach)'s needs not already
// present in existing.
func DetectNew(approach string, existing []*models.Capability) []Need {
	have := make(map[string]bool, len(existing))
	for _, c := range existing {
		have[models.CapabilityRef(c.Type, c.Name)] = true
	}

	var fresh []Need
	for _, n := range Analyze(approach) {
		if !have[n.Ref()] {
			fresh = append(fresh, n)
		}
	}
	return fresh
}
