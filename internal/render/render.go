package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/TobiSchelling/ReviewGuide/internal/database"
	"github.com/TobiSchelling/ReviewGuide/internal/poller"
	"github.com/TobiSchelling/ReviewGuide/internal/review"
	"github.com/TobiSchelling/ReviewGuide/internal/session"
)

// Progress prints a retrieval state as it arrives. The analysis itself is
// printed once, on the first Ready state.
type Progress struct {
	w           io.Writer
	printedBody bool
}

// NewProgress creates a Progress writing to w.
func NewProgress(w io.Writer) *Progress {
	return &Progress{w: w}
}

// Print writes st.
func (p *Progress) Print(st session.State) {
	switch st.Status {
	case session.Submitting:
		fmt.Fprintln(p.w, "Searching and analyzing YouTube reviews... (1-2 minutes)")
	case session.SubmissionFailed:
		fmt.Fprintf(p.w, "\nError: %s\n", st.Message)
	case session.Ready:
		if !p.printedBody {
			Result(p.w, st.Result)
			p.printedBody = true
		}
		p.printGuideState(st.Guide)
	}
}

func (p *Progress) printGuideState(g poller.State) {
	switch g.Phase {
	case poller.Polling:
		if g.Attempt == 0 {
			fmt.Fprintln(p.w, "\nGenerating purchase guide... (10-30 seconds)")
		} else {
			fmt.Fprint(p.w, ".")
		}
	case poller.Completed:
		fmt.Fprintln(p.w)
		Guide(p.w, g.Guide)
	case poller.Failed, poller.TimedOut:
		fmt.Fprintf(p.w, "\nPurchase guide unavailable: %s\n", g.Message())
	}
}

// Result prints the YouTube and community sections of an analysis.
func Result(w io.Writer, r *review.AnalysisResult) {
	if r == nil {
		return
	}
	fmt.Fprintf(w, "\n== %s ==\n", r.ProductName)

	fmt.Fprintln(w, "\nExpert reviews (YouTube):")
	if len(r.YouTubeReviews) == 0 {
		fmt.Fprintln(w, "  No YouTube reviews found.")
	}
	for i, card := range r.YouTubeReviews {
		fmt.Fprintf(w, "\n  %d. %s\n     %s\n", i+1, card.Title, review.VideoLink(card.VideoID))
		if !card.Analysis.IsStructured() {
			printText(w, card.Analysis.Text)
			continue
		}
		a := card.Analysis.Structured
		printList(w, "Pros", a.Pros)
		printList(w, "Cons", a.Cons)
		if a.Highlight != nil {
			fmt.Fprintf(w, "     Highlight: %s %s\n       %s\n", a.Highlight.Timestamp, a.Highlight.Quote,
				review.HighlightLink(card.VideoID, a.Highlight.Timestamp))
		}
	}

	fmt.Fprintln(w, "\nUser opinions (community):")
	c := r.CommunityReviews
	if c == nil || c.Summary == nil {
		fmt.Fprintln(w, "  Community reviews could not be collected.")
		return
	}
	if c.Summary.IsStructured() {
		printList(w, "Pros", c.Summary.Structured.Pros)
		printList(w, "Cons", c.Summary.Structured.Cons)
		if len(c.Summary.Structured.Quotes) > 0 {
			fmt.Fprintln(w, "     Quotes:")
			for _, q := range c.Summary.Structured.Quotes {
				fmt.Fprintf(w, "       %q\n", q)
			}
		}
	} else {
		printText(w, c.Summary.Text)
	}
	if c.Source != "" {
		fmt.Fprintf(w, "     Source: %s (%d posts)\n", c.Source, c.RawCount)
	}
}

// Guide prints a purchase guide.
func Guide(w io.Writer, g *review.PurchaseGuide) {
	fmt.Fprintln(w, "Purchase guide:")
	if g == nil {
		fmt.Fprintln(w, "  No purchase guide was returned.")
		return
	}
	if !g.IsStructured() {
		printText(w, g.Text)
		return
	}
	printList(w, "Recommended for", g.Structured.RecommendFor)
	printList(w, "Not recommended for", g.Structured.NotRecommendFor)
	if g.Structured.Summary != "" {
		fmt.Fprintf(w, "     Summary: %s\n", g.Structured.Summary)
	}
}

// Stored prints an analysis from the history database.
func Stored(w io.Writer, a *database.Analysis) {
	Result(w, a.Result)
	fmt.Fprintln(w)
	switch {
	case a.Result.PurchaseGuide != nil && a.Outcome == nil:
		Guide(w, a.Result.PurchaseGuide)
	case a.Outcome == nil:
		fmt.Fprintln(w, "Purchase guide: not resolved")
	case a.Outcome.Outcome == database.OutcomeCompleted:
		Guide(w, a.Outcome.Guide)
	default:
		reason := a.Outcome.Outcome
		if a.Outcome.Reason != nil {
			reason = *a.Outcome.Reason
		}
		fmt.Fprintf(w, "Purchase guide unavailable: %s\n", reason)
	}
}

// GuideLabel is a one-word summary of a stored guide outcome.
func GuideLabel(a *database.Analysis) string {
	if a.Outcome != nil {
		return a.Outcome.Outcome
	}
	if a.GuideStatus == string(review.GuideProcessing) {
		return "pending"
	}
	return "ready"
}

func printList(w io.Writer, label string, items []string) {
	fmt.Fprintf(w, "     %s:\n", label)
	if len(items) == 0 {
		fmt.Fprintln(w, "       -")
	}
	for _, item := range items {
		fmt.Fprintf(w, "       - %s\n", item)
	}
}

func printText(w io.Writer, text string) {
	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		fmt.Fprintf(w, "     %s\n", line)
	}
}
