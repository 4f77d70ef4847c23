package database

import (
	"github.com/TobiSchelling/ReviewGuide/internal/poller"
	"github.com/TobiSchelling/ReviewGuide/internal/session"
)

// RecordState persists a retrieval state: the analysis once it first becomes
// ready, and the guide outcome once polling reaches a terminal state.
func (db *DB) RecordState(st session.State) error {
	if st.Status != session.Ready || st.Result == nil {
		return nil
	}

	firstReady := (st.Guide.Phase == poller.Polling && st.Guide.Attempt == 0) ||
		!st.Result.GuideStatus.NeedsPolling()
	if firstReady {
		if _, err := db.SaveAnalysis(st.Result); err != nil {
			return err
		}
	}

	switch st.Guide.Phase {
	case poller.Completed:
		return db.SaveGuideOutcome(st.Result.ProductName, OutcomeCompleted, st.Guide.Guide, "")
	case poller.Failed:
		return db.SaveGuideOutcome(st.Result.ProductName, OutcomeFailed, nil, st.Guide.Reason)
	case poller.TimedOut:
		return db.SaveGuideOutcome(st.Result.ProductName, OutcomeTimedOut, nil, st.Guide.Message())
	}
	return nil
}
