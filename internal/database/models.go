package database

import "github.com/TobiSchelling/ReviewGuide/internal/review"

// Guide outcomes stored in guide_outcomes.outcome.
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
	OutcomeTimedOut  = "timed_out"
)

// Analysis is a stored analysis result with its guide outcome, if resolved.
type Analysis struct {
	ID          int64
	ProductName string
	Result      *review.AnalysisResult
	VideoCount  int
	GuideStatus string
	AnalyzedAt  *string
	Outcome     *GuideOutcome
}

// GuideOutcome is the terminal result of polling for a purchase guide.
type GuideOutcome struct {
	ProductName string
	Outcome     string
	Guide       *review.PurchaseGuide
	Reason      *string
	ResolvedAt  *string
}

// Stats holds aggregate counts for the status command.
type Stats struct {
	Analyses        int
	GuidesCompleted int
	GuidesFailed    int
	GuidesTimedOut  int
	GuidesPending   int
}
