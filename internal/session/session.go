package session

import (
	"context"
	"strings"
	"sync"

	"github.com/TobiSchelling/ReviewGuide/internal/backend"
	"github.com/TobiSchelling/ReviewGuide/internal/logger"
	"github.com/TobiSchelling/ReviewGuide/internal/metrics"
	"github.com/TobiSchelling/ReviewGuide/internal/poller"
	"github.com/TobiSchelling/ReviewGuide/internal/review"
)

// Status is the stage of a retrieval.
type Status int

const (
	Submitting Status = iota
	Ready
	SubmissionFailed
)

func (s Status) String() string {
	switch s {
	case Ready:
		return "ready"
	case SubmissionFailed:
		return "submission_failed"
	default:
		return "submitting"
	}
}

// State is one emission of a retrieval. Result and Guide are set when Ready;
// Kind and Message describe a SubmissionFailed state.
type State struct {
	Status  Status
	Result  *review.AnalysisResult
	Guide   poller.State
	Kind    backend.ErrorKind
	Message string
}

// Terminal reports whether s is the last state of its retrieval.
func (s State) Terminal() bool {
	return s.Status == SubmissionFailed || (s.Status == Ready && s.Guide.Terminal())
}

// Client is the backend surface a session needs.
type Client interface {
	Submit(ctx context.Context, productName string) (*review.AnalysisResult, error)
	poller.GuideFetcher
}

// Session sequences the analysis request and the guide poll into one state
// stream. Only the most recent Analyze call is live.
type Session struct {
	client Client
	clock  poller.Clock
	cfg    poller.Config

	mu  sync.Mutex
	cur *run
}

type run struct {
	cancel  context.CancelFunc
	poller  *poller.GuidePoller
	stopped bool
}

// New creates a session. A nil clock uses wall-clock time.
func New(client Client, clock poller.Clock, cfg poller.Config) *Session {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = poller.DefaultConfig().MaxAttempts
	}
	return &Session{client: client, clock: clock, cfg: cfg}
}

// Analyze starts a retrieval for productName after cancelling the previous
// one. The name is trimmed once and used for both the analysis request and
// the guide queries. The channel is closed after a terminal state or
// cancellation.
func (s *Session) Analyze(ctx context.Context, productName string) <-chan State {
	s.Cancel()
	productName = strings.TrimSpace(productName)

	ctx, cancel := context.WithCancel(ctx)
	r := &run{cancel: cancel, poller: poller.New(s.client, s.clock, s.cfg)}
	// Submitting, Ready(Polling 0..MaxAttempts-1) and one terminal state.
	out := make(chan State, s.cfg.MaxAttempts+2)

	s.mu.Lock()
	s.cur = r
	s.mu.Unlock()

	go s.run(ctx, r, productName, out)
	return out
}

// Cancel stops the current retrieval and its poller. Once Cancel returns the
// retrieval delivers no further state.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.cur
	if r == nil || r.stopped {
		return
	}
	r.stopped = true
	r.cancel()
	r.poller.Cancel()
}

func (s *Session) run(ctx context.Context, r *run, productName string, out chan<- State) {
	defer close(out)
	defer r.cancel()

	log := logger.WithProduct(productName)
	if !s.emit(r, out, State{Status: Submitting}) {
		return
	}

	result, err := s.client.Submit(ctx, productName)
	if ctx.Err() != nil {
		log.Debug("retrieval superseded before the analysis returned")
		return
	}
	if err != nil {
		metrics.SessionsTotal.WithLabelValues("failed").Inc()
		log.WithError(err).Warn("analysis request failed")
		s.emit(r, out, State{
			Status:  SubmissionFailed,
			Kind:    backend.KindOf(err),
			Message: backend.Message(err),
		})
		return
	}

	if !result.GuideStatus.NeedsPolling() {
		metrics.SessionsTotal.WithLabelValues("ready").Inc()
		log.Info("analysis ready with purchase guide")
		s.emit(r, out, State{
			Status: Ready,
			Result: result,
			Guide:  poller.State{Phase: poller.Completed, Guide: result.PurchaseGuide},
		})
		return
	}

	metrics.SessionsTotal.WithLabelValues("polling").Inc()
	log.Info("analysis ready, waiting for purchase guide")
	if !s.emit(r, out, State{Status: Ready, Result: result, Guide: poller.State{Phase: poller.Polling}}) {
		return
	}

	for st := range r.poller.Start(ctx, productName) {
		if st.Phase == poller.Polling && st.Attempt == 0 {
			continue
		}
		current := result
		if st.Phase == poller.Completed {
			withGuide := *result
			withGuide.PurchaseGuide = st.Guide
			current = &withGuide
		}
		if !s.emit(r, out, State{Status: Ready, Result: current, Guide: st}) {
			return
		}
	}
}

// emit delivers st unless r was cancelled.
func (s *Session) emit(r *run, out chan<- State, st State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.stopped {
		return false
	}
	out <- st
	if st.Terminal() {
		r.stopped = true
	}
	return true
}
