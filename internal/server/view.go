package server

import (
	"github.com/TobiSchelling/ReviewGuide/internal/database"
	"github.com/TobiSchelling/ReviewGuide/internal/poller"
	"github.com/TobiSchelling/ReviewGuide/internal/review"
	"github.com/TobiSchelling/ReviewGuide/internal/session"
)

// retrievalView is what the templates render for both the live retrieval and
// a stored analysis.
type retrievalView struct {
	ProductName string
	Stage       string // submitting, failed, ready
	Error       string
	Result      *review.AnalysisResult

	GuideStage string // polling, completed, unavailable, unresolved
	Attempt    int
	Guide      *review.PurchaseGuide
	GuideError string

	Terminal bool
	Refresh  bool
}

func liveView(name string, st session.State) *retrievalView {
	v := &retrievalView{ProductName: name, Terminal: st.Terminal()}
	switch st.Status {
	case session.Submitting:
		v.Stage = "submitting"
	case session.SubmissionFailed:
		v.Stage = "failed"
		v.Error = st.Message
	case session.Ready:
		v.Stage = "ready"
		v.Result = st.Result
		if st.Result != nil && st.Result.ProductName != "" {
			v.ProductName = st.Result.ProductName
		}
		v.setGuide(st.Guide)
	}
	return v
}

func (v *retrievalView) setGuide(g poller.State) {
	switch g.Phase {
	case poller.Completed:
		v.GuideStage = "completed"
		v.Guide = g.Guide
	case poller.Failed, poller.TimedOut:
		v.GuideStage = "unavailable"
		v.GuideError = g.Message()
	default:
		v.GuideStage = "polling"
		v.Attempt = g.Attempt
	}
}

func storedView(a *database.Analysis) *retrievalView {
	v := &retrievalView{ProductName: a.ProductName, Stage: "ready", Result: a.Result, Terminal: true}
	switch {
	case a.Outcome != nil && a.Outcome.Outcome == database.OutcomeCompleted:
		v.GuideStage = "completed"
		v.Guide = a.Outcome.Guide
	case a.Outcome != nil:
		v.GuideStage = "unavailable"
		v.GuideError = a.Outcome.Outcome
		if a.Outcome.Reason != nil {
			v.GuideError = *a.Outcome.Reason
		}
	case a.Result.GuideStatus.NeedsPolling():
		v.GuideStage = "unresolved"
	default:
		v.GuideStage = "completed"
		v.Guide = a.Result.PurchaseGuide
	}
	return v
}
