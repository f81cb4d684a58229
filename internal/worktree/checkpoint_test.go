package worktree

import "testing"

func TestCheckpointManager_CreateAndMark(t *testing.T) {
	repo := newFakeGitRunner()
	cm := NewCheckpointManager("out_1", repo)

	if err := cm.Create("wrk_1"); err != nil {
		t.Fatalf("Create: %v", err)
	}

	cp, err := cm.Get("wrk_1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if cp.Status != CheckpointUnknown {
		t.Errorf("initial status = %v, want unknown", cp.Status)
	}

	if err := cm.MarkGood("wrk_1"); err != nil {
		t.Fatalf("MarkGood: %v", err)
	}
	cp, _ = cm.Get("wrk_1")
	if cp.Status != CheckpointGood {
		t.Errorf("status after MarkGood = %v, want good", cp.Status)
	}
}

func TestCheckpointManager_MarkUnknownWorker(t *testing.T) {
	cm := NewCheckpointManager("out_1", newFakeGitRunner())

	if err := cm.MarkGood("nonexistent"); err == nil {
		t.Error("expected error marking checkpoint for unknown worker")
	}
}

func TestRollbackManager_ToLastGood(t *testing.T) {
	repo := newFakeGitRunner()
	cm := NewCheckpointManager("out_1", repo)
	_ = cm.Create("wrk_1")
	_ = cm.MarkGood("wrk_1")

	rm := NewRollbackManager(repo, cm)
	result, err := rm.ToLastGood(true)
	if err != nil {
		t.Fatalf("ToLastGood: %v", err)
	}
	if result.Checkpoint.WorkerID != "wrk_1" {
		t.Errorf("rolled back to worker %q, want wrk_1", result.Checkpoint.WorkerID)
	}
}

func TestRollbackManager_NoGoodCheckpoint(t *testing.T) {
	repo := newFakeGitRunner()
	cm := NewCheckpointManager("out_1", repo)
	rm := NewRollbackManager(repo, cm)

	if _, err := rm.ToLastGood(false); err == nil {
		t.Error("expected error rolling back with no good checkpoints")
	}
}
