package actor

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// scheduler runs adapted operations off the actor threads, at most max at a
// time. max <= 0 means unlimited.
type scheduler struct {
	ctx      context.Context
	log      *slog.Logger
	sem      chan struct{}
	inflight atomic.Int32
	wg       sync.WaitGroup
}

func newScheduler(ctx context.Context, max int, log *slog.Logger) *scheduler {
	var sem chan struct{}
	if max > 0 {
		sem = make(chan struct{}, max)
	}
	return &scheduler{ctx: ctx, log: log, sem: sem}
}

// Go runs f on its own goroutine once a slot is free. If the scheduler's
// context ends while f waits for a slot, f still runs (without a slot) so it
// can report the cancellation; f must check its own context first.
func (s *scheduler) Go(f func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		if s.sem != nil {
			select {
			case s.sem <- struct{}{}:
				defer func() { <-s.sem }()
			case <-s.ctx.Done():
			}
		}

		s.inflight.Add(1)
		defer s.inflight.Add(-1)
		s.run(f)
	}()
}

func (s *scheduler) run(f func()) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("scheduled task panicked", slog.Any("recovered", r))
		}
	}()
	f()
}

// Inflight returns the number of running tasks.
func (s *scheduler) Inflight() int { return int(s.inflight.Load()) }

// Wait blocks until all tasks finished or ctx is done.
func (s *scheduler) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
