// Package scheduler drives the tick cadence for a single producer. One
// goroutine owns tick timing; two ticks never run concurrently.
package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"streamgen/internal/models"
)

// Scheduler converts a rate-or-interval cadence into ticks with drift
// correction. Deadlines are absolute (start + k*period), so a slow tick does
// not accumulate lag; deadlines that cannot be met are skipped, never queued,
// and counted separately from dropped records.
type Scheduler struct {
	clock  func() time.Time
	period atomic.Int64 // nanoseconds
	skips  atomic.Uint64

	mu     sync.Mutex
	paused bool
	resume chan struct{}

	// OnSkip, when set before Run, is called with the number of deadlines
	// skipped whenever the loop falls behind.
	OnSkip func(n uint64)
}

// New builds a scheduler for the given cadence. Exactly one of rate or
// interval must be set.
func New(cadence models.CadenceConfig, clock func() time.Time) (*Scheduler, error) {
	period, err := cadence.Period()
	if err != nil {
		return nil, err
	}
	if clock == nil {
		clock = time.Now
	}
	s := &Scheduler{clock: clock}
	s.period.Store(int64(period))
	return s, nil
}

// Period returns the tick period currently in effect.
func (s *Scheduler) Period() time.Duration {
	return time.Duration(s.period.Load())
}

// SetPeriod atomically replaces the in-effect period. The change takes effect
// at the next tick boundary; already-elapsed ticks keep their phase.
func (s *Scheduler) SetPeriod(period time.Duration) {
	s.period.Store(int64(period))
}

// SkippedTicks returns the number of deadlines missed so far.
func (s *Scheduler) SkippedTicks() uint64 {
	return s.skips.Load()
}

// Pause stops tick issue until Resume. The pause takes effect before the next
// tick; an in-flight tick is never interrupted.
func (s *Scheduler) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.paused {
		s.paused = true
		s.resume = make(chan struct{})
	}
}

// Resume releases a paused scheduler. Deadlines realign to the resume time;
// the paused window is not caught up.
func (s *Scheduler) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.paused {
		s.paused = false
		close(s.resume)
	}
}

// resumeGate returns the channel to wait on when paused, or nil when running.
func (s *Scheduler) resumeGate() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.paused {
		return nil
	}
	return s.resume
}

// Run drives ticks until the context is cancelled. Each tick invokes fn once;
// fn runs on the scheduler goroutine. Cancellation is cooperative: it is
// observed between ticks, never preempting fn.
func (s *Scheduler) Run(ctx context.Context, fn func(context.Context)) {
	timer := time.NewTimer(time.Hour)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	next := s.clock().Add(s.Period())
	for {
		if gate := s.resumeGate(); gate != nil {
			select {
			case <-ctx.Done():
				return
			case <-gate:
				next = s.clock().Add(s.Period())
			}
			continue
		}

		if wait := next.Sub(s.clock()); wait > 0 {
			timer.Reset(wait)
			select {
			case <-ctx.Done():
				if !timer.Stop() {
					<-timer.C
				}
				return
			case <-timer.C:
			}
		}

		// A pause request that arrived while waiting takes effect before
		// the tick fires.
		if gate := s.resumeGate(); gate != nil {
			continue
		}
		select {
		case <-ctx.Done():
			return
		default:
		}

		fn(ctx)

		period := s.Period()
		next = next.Add(period)
		if now := s.clock(); next.Before(now) {
			missed := now.Sub(next)/period + 1
			s.skips.Add(uint64(missed))
			if s.OnSkip != nil {
				s.OnSkip(uint64(missed))
			}
			next = next.Add(period * missed)
		}
	}
}
