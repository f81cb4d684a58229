package engine

import "github.com/marcusdietz/ralph/internal/corerr"

func notLeafError(outcomeID string) error {
	return corerr.Conflictf("outcome %s has children and cannot be archived", outcomeID)
}

func activeWorkersError(outcomeID string) error {
	return corerr.Conflictf("outcome %s still has active workers", outcomeID)
}

func notFoundOutcomeError(outcomeID string) error {
	return corerr.NotFoundf("outcome %s", outcomeID)
}

func nonLeafWorkerStartError(outcomeID string) error {
	return corerr.Validationf("outcome %s has children; only leaf outcomes may host workers", outcomeID)
}

func noPendingWorkError(outcomeID string) error {
	return corerr.Validationf("outcome %s has no pending tasks", outcomeID)
}

func workerAlreadyRunningError(outcomeID string) error {
	return corerr.Conflictf("outcome %s already has a running worker; set parallel to start another", outcomeID)
}
