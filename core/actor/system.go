package actor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// System is the actor runtime. It owns the registry and every thread, and
// implements Runtime for the actors it hosts.
//
// A System is usable once at least one pooled thread exists:
//
//	sys := actor.NewSystem(actor.Options{})
//	_ = sys.CreateThread("T1")
//	id, _ := sys.AddActor(myActor)
//	sys.Send(id, myCode, nil, 0)
//	defer sys.Close()
type System struct {
	id      string
	ctx     context.Context
	cancel  context.CancelFunc
	log     *slog.Logger
	sink    Logger
	metrics RuntimeMetrics
	pulse   time.Duration

	env   *threadEnv
	reg   *registry
	sched *scheduler

	shutdownOnce sync.Once
	shutdownErr  error
}

// NewSystem creates a runtime without threads.
func NewSystem(opts Options) *System {
	opts.applyDefaults()
	if opts.ID == "" {
		opts.ID = gonanoid.Must(8)
	}

	s := &System{
		id:      opts.ID,
		log:     opts.Logger.With(slog.String("runtime", opts.ID)),
		metrics: opts.Metrics,
		pulse:   opts.PulseInterval,
	}
	s.ctx, s.cancel = context.WithCancel(opts.Context)
	s.sink = NewLogger(s.log)
	s.reg = newRegistry(s, opts.PlacementSeed, opts.Metrics)
	s.env = &threadEnv{
		rt:      s,
		reg:     s.reg,
		log:     s.log,
		faults:  opts.FaultHandler,
		metrics: opts.Metrics,
	}
	s.sched = newScheduler(s.ctx, opts.MaxConcurrentOps, s.log)
	return s
}

// ID returns the runtime's name used in logs.
func (s *System) ID() string { return s.id }

// Log returns the runtime's log sink.
func (s *System) Log() Logger { return s.sink }

// Stats returns a registry snapshot.
func (s *System) Stats() Stats { return s.reg.stats() }

// threadFactory

func (s *System) newPooled(name string) thread { return newPooledThread(name, s.env) }

func (s *System) newExternal(name string, dispatch Dispatcher) thread {
	return newExternalThread(name, dispatch, s.env)
}

func (s *System) newDedicated(name string, id ID, a Actor) thread {
	return newDedicatedThread(name, id, a, s.pulse, s.env)
}

// === bootstrap ===

// CreateThread creates and starts a pooled worker thread.
func (s *System) CreateThread(name string) error {
	t, err := s.reg.createThread(name, nil)
	if err != nil {
		return err
	}
	t.Start()
	s.log.Debug("thread created", slog.String("thread", name))
	return nil
}

// RegisterExternalThread registers a host-owned loop. dispatch must schedule
// its argument for execution on that loop.
func (s *System) RegisterExternalThread(name string, dispatch Dispatcher) error {
	if dispatch == nil {
		return fmt.Errorf("%w: external thread %s needs a dispatcher", ErrUnsupported, name)
	}
	_, err := s.reg.createThread(name, dispatch)
	return err
}

// === registration ===

// AddActor places a on a randomly chosen pooled thread.
func (s *System) AddActor(a Actor) (ID, error) {
	if a == nil {
		return 0, ErrNilActor
	}
	t, err := s.reg.randomThread()
	if err != nil {
		return 0, err
	}
	return s.place(t, a)
}

// AddActorToThread places a on the named thread.
func (s *System) AddActorToThread(threadName string, a Actor) (ID, error) {
	if a == nil {
		return 0, ErrNilActor
	}
	t, err := s.reg.threadByName(threadName)
	if err != nil {
		return 0, err
	}
	return s.place(t, a)
}

// AddActorWithKey places a on the pooled thread key hashes to. Actors sharing
// a key share a thread while the set of pooled threads stays the same.
func (s *System) AddActorWithKey(key string, a Actor) (ID, error) {
	if a == nil {
		return 0, ErrNilActor
	}
	t, err := s.reg.keyedThread(key)
	if err != nil {
		return 0, err
	}
	return s.place(t, a)
}

// AddDedicatedActor starts a dedicated thread for a. The actor receives
// CodePulse whenever it has no other message.
func (s *System) AddDedicatedActor(a Actor) (ID, error) {
	if a == nil {
		return 0, ErrNilActor
	}
	return s.reg.allocateDedicatedActor(a)
}

func (s *System) place(t thread, a Actor) (ID, error) {
	id, err := s.reg.allocateActor(t)
	if err != nil {
		return 0, err
	}
	if err := t.AddActor(id, a); err != nil {
		s.reg.deallocateActor(id)
		return 0, err
	}
	return id, nil
}

// RemoveActor removes the actor; its Cleanup runs on its own thread after
// the messages already queued for it. Unknown ids are ignored.
func (s *System) RemoveActor(id ID) {
	if t := s.reg.deallocateActor(id); t != nil {
		t.RemoveActor(id)
	}
}

// === messaging ===

// Send posts a fire-and-forget message. Messages to unknown or removed
// actors are dropped.
func (s *System) Send(target ID, code Code, payload any, sender ID) {
	s.sendCore(target, 0, code, payload, sender)
}

func (s *System) sendCore(target ID, call CallID, code Code, payload any, sender ID) {
	mustValidID(target)
	t := s.reg.threadForActor(target)
	if t == nil {
		s.log.Debug("dropping message for unknown actor",
			slog.Int64("target", int64(target)),
			slog.Int("code", int(code)),
			slog.Int64("call", int64(call)),
		)
		return
	}
	t.Post(target, Message{Code: code, CallID: call, Payload: payload, Sender: sender})
}

// === lifecycle ===

// Shutdown stops every thread. Pooled and dedicated threads handle what is
// already queued, run Cleanup for their actors and exit; Shutdown waits for
// them and for running adapted operations until ctx is done. External
// threads get their cleanups dispatched to the host loop.
//
// Shutdown must not be called from an actor handler: the handler's own
// thread could never finish.
func (s *System) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() {
		s.cancel()
		threads := s.reg.clear()
		for _, t := range threads {
			t.Stop()
		}

		var errs []error
		for _, t := range threads {
			select {
			case <-t.Done():
			case <-ctx.Done():
				errs = append(errs, fmt.Errorf("thread %s: %w", t.Name(), ctx.Err()))
			}
		}
		if err := s.sched.Wait(ctx); err != nil {
			errs = append(errs, fmt.Errorf("adapted operations: %w", err))
		}
		s.shutdownErr = errors.Join(errs...)
		s.log.Info("runtime stopped", slog.Int("threads", len(threads)))
	})
	return s.shutdownErr
}

// Close is Shutdown without a deadline.
func (s *System) Close() error { return s.Shutdown(context.Background()) }

var _ Runtime = (*System)(nil)
