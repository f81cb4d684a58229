package capability

import "testing"

func TestParseSkillFrontmatter(t *testing.T) {
	content := []byte(`---
name: tavily-api
triggers:
  - search
  - lookup
requires:
  - TAVILY_API_KEY
description: Wraps the Tavily search API.
---

# Tavily API skill

Usage notes go here.
`)

	fm, err := ParseSkillFrontmatter(content)
	if err != nil {
		t.Fatalf("ParseSkillFrontmatter: %v", err)
	}
	if fm.Name != "tavily-api" {
		t.Errorf("Name = %q, want tavily-api", fm.Name)
	}
	if len(fm.Triggers) != 2 || fm.Triggers[0] != "search" {
		t.Errorf("Triggers = %v", fm.Triggers)
	}
	if len(fm.Requires) != 1 || fm.Requires[0] != "TAVILY_API_KEY" {
		t.Errorf("Requires = %v", fm.Requires)
	}
}

func TestParseSkillFrontmatter_Missing(t *testing.T) {
	_, err := ParseSkillFrontmatter([]byte("# just a markdown file\n"))
	if err == nil {
		t.Fatal("expected error for missing frontmatter")
	}
}

func TestToolRequiredEnvKeys(t *testing.T) {
	content := []byte(`#!/usr/bin/env bash
# requires: API_KEY, OTHER_KEY
echo hello
`)
	keys := ToolRequiredEnvKeys(content)
	if len(keys) != 2 || keys[0] != "API_KEY" || keys[1] != "OTHER_KEY" {
		t.Errorf("keys = %v, want [API_KEY OTHER_KEY]", keys)
	}
}

func TestToolRequiredEnvKeys_None(t *testing.T) {
	content := []byte("#!/usr/bin/env bash\necho hello\n")
	if keys := ToolRequiredEnvKeys(content); keys != nil {
		t.Errorf("keys = %v, want nil", keys)
	}
}
