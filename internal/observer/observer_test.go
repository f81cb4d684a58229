package observer

import (
	"strconv"
	"testing"

	"github.com/marcusdietz/ralph/pkg/models"
)

func TestObserve_GoodQualityNoAmbiguity(t *testing.T) {
	raw := "ALIGNMENT: 90\nON_TRACK: yes\nTASK_COMPLETE: yes\n"
	obs := Observe("worker_1", "task_1", 1, raw)

	if obs.AlignmentScore != 90 {
		t.Errorf("AlignmentScore = %d, want 90", obs.AlignmentScore)
	}
	if obs.Quality != models.QualityGood {
		t.Errorf("Quality = %q, want good", obs.Quality)
	}
	if !obs.OnTrack {
		t.Error("OnTrack = false, want true")
	}
	if !obs.TaskComplete {
		t.Error("TaskComplete = false, want true")
	}
	if obs.HasAmbiguity {
		t.Error("HasAmbiguity = true, want false")
	}
}

func TestObserve_DriftForcesOffTrack(t *testing.T) {
	raw := "ALIGNMENT: 80\nON_TRACK: yes\nDRIFT: used a different storage format than approved\n"
	obs := Observe("worker_1", "task_1", 2, raw)

	if obs.OnTrack {
		t.Error("OnTrack = true, want false given drift entry")
	}
	if len(obs.Drift) != 1 {
		t.Fatalf("Drift = %v, want 1 entry", obs.Drift)
	}
}

func TestObserve_BlockerForcesOffTrackKeepsScoreQuality(t *testing.T) {
	raw := "ALIGNMENT: 85\nON_TRACK: yes\nDISCOVERY(blocker): missing credentials for the API\n"
	obs := Observe("worker_1", "task_1", 3, raw)

	if obs.OnTrack {
		t.Error("OnTrack = true, want false given blocker discovery")
	}
	if !obs.HasBlocker() {
		t.Error("HasBlocker() = false, want true")
	}
	// Quality still derives from the explicit alignment score, not from
	// the blocker — the spec ties blocker only to on_track.
	if obs.Quality != models.QualityGood {
		t.Errorf("Quality = %q, want good (score-derived)", obs.Quality)
	}
}

func TestObserve_StructuredAmbiguity(t *testing.T) {
	raw := "ALIGNMENT: 60\n" +
		"AMBIGUITY: Should items persist across restarts?\n" +
		"OPTION: file|yes, file-backed\n" +
		"OPTION: memory|no, memory only\n" +
		"OPTION: subtasks|break into subtasks\n" +
		"TRIGGER_TYPE: unclear_requirement\n"
	obs := Observe("worker_1", "task_1", 1, raw)

	if !obs.HasAmbiguity {
		t.Fatal("HasAmbiguity = false, want true")
	}
	if !obs.Ambiguity.Valid() {
		t.Fatalf("Ambiguity = %+v, want a valid payload", obs.Ambiguity)
	}
	if obs.Ambiguity.TriggerType != "unclear_requirement" {
		t.Errorf("TriggerType = %q", obs.Ambiguity.TriggerType)
	}
	if len(obs.Ambiguity.Options) != 3 {
		t.Errorf("Options = %v, want 3", obs.Ambiguity.Options)
	}
}

func TestObserve_ProseAskForDecisionFallsBackToValidAmbiguity(t *testing.T) {
	raw := "ALIGNMENT: 55\nThe approach is unclear here; please clarify before I continue.\n"
	obs := Observe("worker_1", "task_1", 1, raw)

	if !obs.HasAmbiguity {
		t.Fatal("HasAmbiguity = false, want true")
	}
	if !obs.Ambiguity.Valid() {
		t.Fatalf("Ambiguity = %+v, want a valid fallback payload", obs.Ambiguity)
	}
	if len(obs.Ambiguity.Options) < 2 {
		t.Errorf("Options = %v, want >= 2", obs.Ambiguity.Options)
	}
}

func TestObserve_NoAlignmentTagUsesHeuristic(t *testing.T) {
	raw := "DISCOVERY(blocker): can't find the API key\nISSUE(high): tests fail\n"
	obs := Observe("worker_1", "task_1", 1, raw)

	if obs.AlignmentScore >= 70 {
		t.Errorf("AlignmentScore = %d, want penalized below baseline", obs.AlignmentScore)
	}
	if obs.Quality == models.QualityGood {
		t.Errorf("Quality = %q, want not good given blocker+high issue", obs.Quality)
	}
}

func TestObserve_QualityBuckets(t *testing.T) {
	cases := []struct {
		score int
		want  models.Quality
	}{
		{90, models.QualityGood},
		{75, models.QualityGood},
		{74, models.QualityNeedsWork},
		{40, models.QualityNeedsWork},
		{39, models.QualityPoor},
		{0, models.QualityPoor},
	}
	for _, c := range cases {
		raw := "ALIGNMENT: " + strconv.Itoa(c.score) + "\n"
		obs := Observe("worker_1", "task_1", 1, raw)
		if obs.Quality != c.want {
			t.Errorf("score %d: Quality = %q, want %q", c.score, obs.Quality, c.want)
		}
	}
}
