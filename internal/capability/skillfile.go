package capability

import (
	"bufio"
	"bytes"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/marcusdietz/ralph/internal/corerr"
)

// SkillFrontmatter is the structured header a skill markdown file carries
// between "---" fences: name, triggers, required environment keys, and a
// free-text description.
type SkillFrontmatter struct {
	Name        string   `yaml:"name"`
	Triggers    []string `yaml:"triggers,omitempty"`
	Requires    []string `yaml:"requires,omitempty"`
	Description string   `yaml:"description,omitempty"`
}

// ParseSkillFrontmatter extracts and decodes the YAML frontmatter block from
// a skill file's contents. Returns corerr.Validation if no frontmatter
// fences are present.
func ParseSkillFrontmatter(content []byte) (*SkillFrontmatter, error) {
	block, ok := extractFrontmatterBlock(content)
	if !ok {
		return nil, corerr.Validationf("skill file has no YAML frontmatter block")
	}

	var fm SkillFrontmatter
	if err := yaml.Unmarshal(block, &fm); err != nil {
		return nil, corerr.Wrap(corerr.Validation, "parse skill frontmatter", err)
	}
	if fm.Name == "" {
		return nil, corerr.Validationf("skill frontmatter is missing name")
	}
	return &fm, nil
}

// extractFrontmatterBlock returns the bytes between the first pair of lines
// that are "---" (ignoring surrounding whitespace), or false if the content
// isn't fenced that way.
func extractFrontmatterBlock(content []byte) ([]byte, bool) {
	scanner := bufio.NewScanner(bytes.NewReader(content))
	var lines []string
	inBlock := false
	found := false
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "---" {
			if !inBlock {
				inBlock = true
				continue
			}
			found = true
			break
		}
		if inBlock {
			lines = append(lines, line)
		}
	}
	if !found {
		return nil, false
	}
	return []byte(strings.Join(lines, "\n")), true
}

// ToolRequiredEnvKeys scans a tool script's leading comment lines for a
// "requires: KEY_A, KEY_B" directive and returns the listed environment
// variable names.
func ToolRequiredEnvKeys(content []byte) []string {
	scanner := bufio.NewScanner(bytes.NewReader(content))
	var keys []string
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		trimmed := strings.TrimPrefix(line, "#")
		trimmed = strings.TrimSpace(trimmed)
		lower := strings.ToLower(trimmed)
		if strings.HasPrefix(lower, "requires:") {
			rest := trimmed[len("requires:"):]
			for _, k := range strings.Split(rest, ",") {
				k = strings.TrimSpace(k)
				if k != "" {
					keys = append(keys, k)
				}
			}
			continue
		}
		if !strings.HasPrefix(line, "#") && line != "" {
			break
		}
	}
	return keys
}
