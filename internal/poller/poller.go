package poller

import (
	"context"
	"sync"
	"time"

	"github.com/TobiSchelling/ReviewGuide/internal/backend"
	"github.com/TobiSchelling/ReviewGuide/internal/logger"
	"github.com/TobiSchelling/ReviewGuide/internal/metrics"
	"github.com/TobiSchelling/ReviewGuide/internal/review"
)

const (
	defaultInitialDelay = time.Second
	defaultInterval     = time.Second
	defaultMaxAttempts  = 30

	genericFailure = "An error occurred while generating the purchase guide."
	timeoutMessage = "Purchase guide generation timed out."
)

// Phase is the position of a poll run in its state machine.
type Phase int

const (
	Idle Phase = iota
	Polling
	Completed
	Failed
	TimedOut
)

func (p Phase) String() string {
	switch p {
	case Polling:
		return "polling"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	case TimedOut:
		return "timed_out"
	default:
		return "idle"
	}
}

// State is one emission of a poll run. Attempt is set for Polling, Guide for
// Completed and Reason for Failed.
type State struct {
	Phase   Phase
	Attempt int
	Guide   *review.PurchaseGuide
	Reason  string
}

// Terminal reports whether no transition can follow s.
func (s State) Terminal() bool {
	return s.Phase == Completed || s.Phase == Failed || s.Phase == TimedOut
}

// Kind returns the error kind of a failed or timed out state.
func (s State) Kind() backend.ErrorKind {
	switch s.Phase {
	case Failed:
		return backend.KindBackend
	case TimedOut:
		return backend.KindTimeout
	default:
		return backend.KindNone
	}
}

// Message returns the user-facing text for a failed or timed out state.
func (s State) Message() string {
	switch s.Phase {
	case Failed:
		return s.Reason
	case TimedOut:
		return timeoutMessage
	default:
		return ""
	}
}

// GuideFetcher queries the purchase guide status of a product.
type GuideFetcher interface {
	FetchGuide(ctx context.Context, productName string) (*backend.GuideReply, error)
}

// Clock schedules the next query.
type Clock interface {
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Config bounds a poll run.
type Config struct {
	InitialDelay time.Duration
	Interval     time.Duration
	MaxAttempts  int
}

// DefaultConfig polls once a second for up to 30 attempts.
func DefaultConfig() Config {
	return Config{
		InitialDelay: defaultInitialDelay,
		Interval:     defaultInterval,
		MaxAttempts:  defaultMaxAttempts,
	}
}

// GuidePoller polls the backend until a purchase guide is ready, the backend
// reports an error or MaxAttempts pending replies have been seen.
type GuidePoller struct {
	fetcher GuideFetcher
	clock   Clock
	cfg     Config

	mu  sync.Mutex
	cur *run
}

type run struct {
	cancel  context.CancelFunc
	stopped bool
}

// New creates a poller. A nil clock uses wall-clock time.
func New(fetcher GuideFetcher, clock Clock, cfg Config) *GuidePoller {
	if clock == nil {
		clock = realClock{}
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.InitialDelay < 0 {
		cfg.InitialDelay = 0
	}
	if cfg.Interval < 0 {
		cfg.Interval = 0
	}
	return &GuidePoller{fetcher: fetcher, clock: clock, cfg: cfg}
}

// Start begins polling for productName, cancelling any previous run of p.
// The returned channel receives Polling(0) first and is closed after a
// terminal state or cancellation.
func (p *GuidePoller) Start(ctx context.Context, productName string) <-chan State {
	p.Cancel()

	ctx, cancel := context.WithCancel(ctx)
	r := &run{cancel: cancel}
	// Polling(0..MaxAttempts-1) plus one terminal state: sends never block.
	out := make(chan State, p.cfg.MaxAttempts+1)

	p.mu.Lock()
	p.cur = r
	p.mu.Unlock()

	p.emit(r, out, State{Phase: Polling})
	go p.loop(ctx, r, productName, out)
	return out
}

// Cancel stops the current run. No query is scheduled and no state is
// delivered once Cancel returns. It is a no-op without an active run.
func (p *GuidePoller) Cancel() {
	p.mu.Lock()
	defer p.mu.Unlock()

	r := p.cur
	if r == nil || r.stopped {
		return
	}
	r.stopped = true
	r.cancel()
	metrics.GuideOutcomesTotal.WithLabelValues("cancelled").Inc()
}

func (p *GuidePoller) loop(ctx context.Context, r *run, productName string, out chan<- State) {
	defer close(out)
	defer r.cancel()

	log := logger.WithProduct(productName)
	attempt := 0
	delay := p.cfg.InitialDelay

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.clock.After(delay):
		}
		if !p.live(r) || ctx.Err() != nil {
			return
		}

		metrics.GuidePollsTotal.Inc()
		reply, err := p.fetcher.FetchGuide(ctx, productName)
		if ctx.Err() != nil {
			// Cancelled while the query was in flight: drop the reply.
			return
		}

		switch classify(reply, err) {
		case outcomeCompleted:
			log.Info("purchase guide ready")
			p.finish(r, out, State{Phase: Completed, Guide: reply.Guide})
			return
		case outcomeErrored:
			reason := reply.Error
			if reason == "" {
				reason = genericFailure
			}
			log.WithField("reason", reason).Warn("purchase guide generation failed")
			p.finish(r, out, State{Phase: Failed, Reason: reason})
			return
		}

		if err != nil {
			log.WithError(err).Debug("guide query failed, treating as pending")
		}

		attempt++
		if attempt >= p.cfg.MaxAttempts {
			log.WithField("attempts", attempt).Warn("purchase guide polling timed out")
			p.finish(r, out, State{Phase: TimedOut})
			return
		}

		log.WithField("attempt", attempt).Debug("purchase guide still pending")
		if !p.emit(r, out, State{Phase: Polling, Attempt: attempt}) {
			return
		}
		delay = p.cfg.Interval
	}
}

// live reports whether r may still issue queries.
func (p *GuidePoller) live(r *run) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !r.stopped
}

// emit delivers s unless r was cancelled.
func (p *GuidePoller) emit(r *run, out chan<- State, s State) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if r.stopped {
		return false
	}
	out <- s
	return true
}

// finish delivers a terminal state and closes r to further transitions.
func (p *GuidePoller) finish(r *run, out chan<- State, s State) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if r.stopped {
		return
	}
	out <- s
	r.stopped = true
	metrics.GuideOutcomesTotal.WithLabelValues(s.Phase.String()).Inc()
}

type outcome int

const (
	outcomePending outcome = iota
	outcomeCompleted
	outcomeErrored
)

// classify maps a query result to exactly one outcome. Transport and decode
// failures count as pending.
func classify(reply *backend.GuideReply, err error) outcome {
	if err != nil || reply == nil {
		return outcomePending
	}
	switch reply.Status {
	case backend.GuideCompleted:
		return outcomeCompleted
	case backend.GuideError:
		return outcomeErrored
	default:
		return outcomePending
	}
}
