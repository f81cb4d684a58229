package capability

import (
	"testing"

	"github.com/marcusdietz/ralph/pkg/models"
)

func TestAnalyze_APIMention(t *testing.T) {
	needs := Analyze("Uses Tavily API for search.")
	if len(needs) != 1 {
		t.Fatalf("needs = %v, want 1 entry", needs)
	}
	if needs[0] != (Need{Type: models.CapabilitySkill, Name: "tavily-api"}) {
		t.Errorf("needs[0] = %+v, want skill:tavily-api", needs[0])
	}
}

func TestAnalyze_ToolMention(t *testing.T) {
	needs := Analyze("Run the scraper tool against each page.")
	if len(needs) != 1 || needs[0].Type != models.CapabilityTool || needs[0].Name != "scraper" {
		t.Fatalf("needs = %v, want one tool:scraper", needs)
	}
}

func TestAnalyze_ExplicitRef(t *testing.T) {
	needs := Analyze("Requires tool:web-scraper before starting.")
	if len(needs) != 1 || needs[0].Ref() != "tool:web-scraper" {
		t.Fatalf("needs = %v, want tool:web-scraper", needs)
	}
}

func TestAnalyze_Dedupes(t *testing.T) {
	needs := Analyze("Uses Tavily API for search. The Tavily API also powers lookups.")
	if len(needs) != 1 {
		t.Fatalf("needs = %v, want deduped to 1 entry", needs)
	}
}

func TestAnalyze_NoMentions(t *testing.T) {
	needs := Analyze("Use simple file-backed storage.")
	if len(needs) != 0 {
		t.Fatalf("needs = %v, want none", needs)
	}
}

func TestDetectNew_FiltersExisting(t *testing.T) {
	existing := []*models.Capability{
		{Type: models.CapabilitySkill, Name: "tavily-api"},
	}
	needs := DetectNew("Uses Tavily API and the scraper tool.", existing)
	if len(needs) != 1 || needs[0].Name != "scraper" {
		t.Fatalf("needs = %v, want only the new scraper tool", needs)
	}
}
