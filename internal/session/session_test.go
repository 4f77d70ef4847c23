package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/TobiSchelling/ReviewGuide/internal/backend"
	"github.com/TobiSchelling/ReviewGuide/internal/poller"
	"github.com/TobiSchelling/ReviewGuide/internal/review"
)

type instantClock struct{}

func (instantClock) After(time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- time.Time{}
	return ch
}

// fakeClient answers Submit and FetchGuide per product name.
type fakeClient struct {
	mu      sync.Mutex
	submit  func(name string) (*review.AnalysisResult, error)
	fetch   func(name string, n int) (*backend.GuideReply, error)
	queries map[string]int
}

func (c *fakeClient) Submit(_ context.Context, name string) (*review.AnalysisResult, error) {
	return c.submit(name)
}

func (c *fakeClient) FetchGuide(_ context.Context, name string) (*backend.GuideReply, error) {
	c.mu.Lock()
	if c.queries == nil {
		c.queries = make(map[string]int)
	}
	c.queries[name]++
	n := c.queries[name]
	c.mu.Unlock()
	return c.fetch(name, n)
}

func (c *fakeClient) Queries(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queries[name]
}

func processing(name string) (*review.AnalysisResult, error) {
	return &review.AnalysisResult{ProductName: name, GuideStatus: review.GuideProcessing}, nil
}

func collect(t *testing.T, ch <-chan State) []State {
	t.Helper()
	var states []State
	timeout := time.After(5 * time.Second)
	for {
		select {
		case s, ok := <-ch:
			if !ok {
				return states
			}
			states = append(states, s)
		case <-timeout:
			t.Fatalf("state stream not closed; got %d states so far", len(states))
		}
	}
}

func TestReadyGuideSkipsPolling(t *testing.T) {
	guide := &review.PurchaseGuide{Text: "Buy it."}
	c := &fakeClient{
		submit: func(name string) (*review.AnalysisResult, error) {
			return &review.AnalysisResult{ProductName: name, GuideStatus: review.GuideReady, PurchaseGuide: guide}, nil
		},
		fetch: func(string, int) (*backend.GuideReply, error) {
			t.Error("no guide query expected")
			return nil, nil
		},
	}
	s := New(c, instantClock{}, poller.DefaultConfig())

	states := collect(t, s.Analyze(context.Background(), "Galaxy S25"))

	if len(states) != 2 {
		t.Fatalf("expected 2 states, got %+v", states)
	}
	if states[0].Status != Submitting {
		t.Errorf("expected Submitting first, got %s", states[0].Status)
	}
	last := states[1]
	if last.Status != Ready || last.Guide.Phase != poller.Completed || last.Guide.Guide != guide {
		t.Errorf("expected Ready with completed inline guide, got %+v", last)
	}
	if !last.Terminal() {
		t.Error("expected terminal state")
	}
	if c.Queries("Galaxy S25") != 0 {
		t.Errorf("expected no queries, got %d", c.Queries("Galaxy S25"))
	}
}

func TestSubmissionFailure(t *testing.T) {
	c := &fakeClient{
		submit: func(string) (*review.AnalysisResult, error) {
			return nil, &backend.BackendError{StatusCode: 404, Message: "No such product."}
		},
		fetch: func(string, int) (*backend.GuideReply, error) {
			t.Error("no guide query expected")
			return nil, nil
		},
	}
	s := New(c, instantClock{}, poller.DefaultConfig())

	states := collect(t, s.Analyze(context.Background(), "Nokia 9999"))

	last := states[len(states)-1]
	if last.Status != SubmissionFailed {
		t.Fatalf("expected SubmissionFailed, got %+v", last)
	}
	if last.Kind != backend.KindBackend || last.Message != "No such product." {
		t.Errorf("unexpected failure %s %q", last.Kind, last.Message)
	}
	if last.Result != nil {
		t.Error("expected no result on failure")
	}
}

func TestNetworkFailureOnSubmit(t *testing.T) {
	c := &fakeClient{
		submit: func(string) (*review.AnalysisResult, error) {
			return nil, &backend.NetworkError{Op: "analyze-product", Err: errors.New("connection refused")}
		},
	}
	s := New(c, instantClock{}, poller.DefaultConfig())

	states := collect(t, s.Analyze(context.Background(), "Pixel 10"))
	last := states[len(states)-1]
	if last.Status != SubmissionFailed || last.Kind != backend.KindNetwork {
		t.Errorf("expected network SubmissionFailed, got %+v", last)
	}
}

func TestProcessingGuideIsPolled(t *testing.T) {
	guide := &review.PurchaseGuide{Structured: &review.GuideDetails{Summary: "Good value."}}
	c := &fakeClient{
		submit: processing,
		fetch: func(_ string, n int) (*backend.GuideReply, error) {
			if n < 3 {
				return &backend.GuideReply{Status: "processing"}, nil
			}
			return &backend.GuideReply{Status: "completed", Guide: guide}, nil
		},
	}
	s := New(c, instantClock{}, poller.DefaultConfig())

	states := collect(t, s.Analyze(context.Background(), "Pixel 10"))

	// Submitting, Ready(Polling 0), Ready(Polling 1), Ready(Polling 2), Ready(Completed)
	if len(states) != 5 {
		t.Fatalf("expected 5 states, got %d: %+v", len(states), states)
	}
	if states[1].Status != Ready || states[1].Guide.Phase != poller.Polling || states[1].Guide.Attempt != 0 {
		t.Errorf("expected Ready(Polling 0), got %+v", states[1])
	}
	for i, st := range states[1:4] {
		if st.Guide.Attempt != i {
			t.Errorf("expected attempt %d, got %d", i, st.Guide.Attempt)
		}
		if st.Result.PurchaseGuide != nil {
			t.Error("expected no guide before completion")
		}
	}
	last := states[4]
	if last.Guide.Phase != poller.Completed || last.Result.PurchaseGuide != guide {
		t.Errorf("expected completed guide on result, got %+v", last)
	}
	if states[1].Result.PurchaseGuide != nil {
		t.Error("earlier states must not be mutated")
	}
	if c.Queries("Pixel 10") != 3 {
		t.Errorf("expected 3 queries, got %d", c.Queries("Pixel 10"))
	}
}

func TestPaddedNameIsTrimmedForSubmitAndPoll(t *testing.T) {
	var submitted string
	c := &fakeClient{
		submit: func(name string) (*review.AnalysisResult, error) {
			submitted = name
			return processing(name)
		},
		fetch: func(name string, n int) (*backend.GuideReply, error) {
			if name != "Galaxy S25" {
				return &backend.GuideReply{Status: "not_started"}, nil
			}
			return &backend.GuideReply{Status: "completed", Guide: &review.PurchaseGuide{Text: "Buy it."}}, nil
		},
	}
	s := New(c, instantClock{}, poller.DefaultConfig())

	states := collect(t, s.Analyze(context.Background(), "  Galaxy S25  "))

	if submitted != "Galaxy S25" {
		t.Errorf("expected trimmed submit name, got %q", submitted)
	}
	if c.Queries("Galaxy S25") != 1 || c.Queries("  Galaxy S25  ") != 0 {
		t.Errorf("expected one query for the trimmed name, got %v", c.queries)
	}
	last := states[len(states)-1]
	if last.Guide.Phase != poller.Completed {
		t.Errorf("expected Completed, got %+v", last)
	}
}

func TestGuideTimeoutIsTerminal(t *testing.T) {
	c := &fakeClient{
		submit: processing,
		fetch: func(string, int) (*backend.GuideReply, error) {
			return &backend.GuideReply{Status: "processing"}, nil
		},
	}
	s := New(c, instantClock{}, poller.Config{MaxAttempts: 5})

	states := collect(t, s.Analyze(context.Background(), "Pixel 10"))
	last := states[len(states)-1]
	if last.Guide.Phase != poller.TimedOut || !last.Terminal() {
		t.Errorf("expected TimedOut, got %+v", last)
	}
	if c.Queries("Pixel 10") != 5 {
		t.Errorf("expected 5 queries, got %d", c.Queries("Pixel 10"))
	}
}

func TestNewAnalysisCancelsActivePoller(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	c := &fakeClient{
		submit: processing,
		fetch: func(name string, n int) (*backend.GuideReply, error) {
			if name == "A" {
				if n == 3 {
					close(started)
					<-release
				}
				return &backend.GuideReply{Status: "processing"}, nil
			}
			return &backend.GuideReply{Status: "completed", Guide: &review.PurchaseGuide{Text: "B guide"}}, nil
		},
	}
	s := New(c, instantClock{}, poller.DefaultConfig())

	streamA := s.Analyze(context.Background(), "A")
	<-started
	streamB := s.Analyze(context.Background(), "B")
	close(release)

	statesB := collect(t, streamB)
	statesA := collect(t, streamA)

	if c.Queries("A") != 3 {
		t.Errorf("expected no queries for A after B started, got %d total", c.Queries("A"))
	}
	for _, st := range statesA {
		if st.Terminal() {
			t.Errorf("superseded retrieval must not reach a terminal state, got %+v", st)
		}
	}
	last := statesB[len(statesB)-1]
	if last.Result.ProductName != "B" || last.Guide.Phase != poller.Completed {
		t.Errorf("expected B to complete, got %+v", last)
	}
}

func TestNewAnalysisDiscardsPendingSubmit(t *testing.T) {
	release := make(chan struct{})
	submitted := make(chan struct{})
	c := &fakeClient{
		submit: func(name string) (*review.AnalysisResult, error) {
			if name == "A" {
				close(submitted)
				<-release
			}
			return processing(name)
		},
		fetch: func(name string, n int) (*backend.GuideReply, error) {
			return &backend.GuideReply{Status: "completed"}, nil
		},
	}
	s := New(c, instantClock{}, poller.DefaultConfig())

	streamA := s.Analyze(context.Background(), "A")
	<-submitted
	streamB := s.Analyze(context.Background(), "B")
	close(release)

	collect(t, streamB)
	statesA := collect(t, streamA)

	if len(statesA) != 1 || statesA[0].Status != Submitting {
		t.Errorf("expected only Submitting for A, got %+v", statesA)
	}
	if c.Queries("A") != 0 {
		t.Errorf("expected no guide queries for A, got %d", c.Queries("A"))
	}
}

func TestCancelIsIdempotent(t *testing.T) {
	s := New(&fakeClient{}, nil, poller.Config{})
	s.Cancel()
	s.Cancel()
}

// End to end against an HTTP backend through the real client.
func TestSessionWithHTTPBackend(t *testing.T) {
	var mu sync.Mutex
	polls := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/api/analyze-product", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"product_name": "Galaxy S25", "youtube_reviews": [{"video_id": "v1", "title": "Review", "analysis": "Great."}], "community_reviews": null, "purchase_guide_status": "processing"}`))
	})
	mux.HandleFunc("/api/purchase-guide/", func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.EscapedPath(), "/Galaxy%20S25") {
			t.Errorf("unexpected path %s", r.URL.EscapedPath())
		}
		mu.Lock()
		polls++
		n := polls
		mu.Unlock()
		if n < 2 {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"status": "not_started"}`))
			return
		}
		w.Write([]byte(`{"status": "completed", "guide": "Worth it for photographers."}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client := backend.NewClient(srv.URL, 5*time.Second, 0)
	s := New(client, instantClock{}, poller.DefaultConfig())

	states := collect(t, s.Analyze(context.Background(), "Galaxy S25"))
	last := states[len(states)-1]
	if last.Guide.Phase != poller.Completed {
		t.Fatalf("expected Completed, got %+v", last)
	}
	if last.Result.PurchaseGuide == nil || last.Result.PurchaseGuide.Text != "Worth it for photographers." {
		t.Errorf("unexpected guide %+v", last.Result.PurchaseGuide)
	}
}
