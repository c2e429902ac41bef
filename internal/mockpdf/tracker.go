package mockpdf

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/WeDesignz/WebApp-sub000/internal/shared/telemetry"
)

const (
	DefaultPollInterval         = 3 * time.Second
	DefaultMaxPollAttempts      = 200
	DefaultMaxConsecutiveErrors = 3
)

// TrackerConfig tunes the Job Status Tracker. Zero values pick the defaults.
type TrackerConfig struct {
	Interval             time.Duration
	MaxAttempts          int
	MaxConsecutiveErrors int
	Invalidator          Invalidator
	OnUpdate             func(Job)
}

// Tracker polls generation jobs until they reach a terminal status.
type Tracker struct {
	source JobSource
	cfg    TrackerConfig
}

// NewTracker returns a Tracker reading job state from source.
func NewTracker(source JobSource, cfg TrackerConfig) *Tracker {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultPollInterval
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxPollAttempts
	}
	if cfg.MaxConsecutiveErrors <= 0 {
		cfg.MaxConsecutiveErrors = DefaultMaxConsecutiveErrors
	}
	return &Tracker{source: source, cfg: cfg}
}

// Subscription is a disposable handle on one polling loop.
type Subscription struct {
	jobID  string
	wanted atomic.Bool
	cancel context.CancelFunc
	done   chan struct{}

	job Job
	err error
}

// JobID returns the tracked job.
func (s *Subscription) JobID() string { return s.jobID }

// Stop asks the loop to end. It is safe to call more than once and after completion.
func (s *Subscription) Stop() {
	s.wanted.Store(false)
	s.cancel()
}

// Done is closed once the loop has exited.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Result returns the last observed job and the reason polling ended. The error is nil for
// a terminal status, ErrTakingLonger when the attempt budget ran out, ErrStopped after Stop,
// or the context or fetch error otherwise. Result blocks until Done is closed.
func (s *Subscription) Result() (Job, error) {
	<-s.done
	return s.job, s.err
}

// Start begins polling jobID in a new goroutine.
func (t *Tracker) Start(ctx context.Context, jobID string) *Subscription {
	loopCtx, cancel := context.WithCancel(ctx)
	s := &Subscription{jobID: jobID, cancel: cancel, done: make(chan struct{})}
	s.wanted.Store(true)
	go t.run(loopCtx, s)
	return s
}

// Wait polls jobID until it ends and returns the result.
func (t *Tracker) Wait(ctx context.Context, jobID string) (Job, error) {
	s := t.Start(ctx, jobID)
	defer s.Stop()
	return s.Result()
}

func (t *Tracker) run(ctx context.Context, s *Subscription) {
	defer close(s.done)
	defer s.cancel()

	var (
		last      Job
		observed  bool
		errStreak int
	)
	stopped := func() bool {
		if !s.wanted.Load() {
			s.job, s.err = last, ErrStopped
			return true
		}
		if err := ctx.Err(); err != nil {
			s.job, s.err = last, err
			return true
		}
		return false
	}

	for attempt := 1; ; attempt++ {
		if stopped() {
			return
		}

		job, err := t.source.JobStatus(ctx, s.jobID)
		switch {
		case err != nil:
			if stopped() {
				return
			}
			errStreak++
			telemetry.Warn("mockpdf.poll_error", map[string]any{"job_id": s.jobID, "attempt": attempt, "error": err.Error()})
			if errStreak > t.cfg.MaxConsecutiveErrors {
				s.job, s.err = last, fmt.Errorf("poll job %s: %w", s.jobID, err)
				return
			}
		case observed && job.Status.rank() < last.Status.rank():
			errStreak = 0
			telemetry.Warn("mockpdf.status_regression_ignored", map[string]any{"job_id": s.jobID, "from": string(last.Status), "to": string(job.Status)})
		default:
			errStreak = 0
			last, observed = job, true
			if t.cfg.OnUpdate != nil {
				t.cfg.OnUpdate(job)
			}
			if job.Status.Terminal() {
				if job.Status == StatusCompleted && t.cfg.Invalidator != nil {
					t.cfg.Invalidator.InvalidateDownloads(ctx)
				}
				s.job, s.err = job, nil
				return
			}
		}

		if attempt >= t.cfg.MaxAttempts {
			s.job, s.err = last, ErrTakingLonger
			return
		}
		if stopped() {
			return
		}

		timer := time.NewTimer(t.cfg.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
		case <-timer.C:
		}
	}
}
