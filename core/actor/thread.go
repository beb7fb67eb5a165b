package actor

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
)

type threadKind int

const (
	kindPooled threadKind = iota
	kindDedicated
	kindExternal
)

func (k threadKind) String() string {
	switch k {
	case kindPooled:
		return "pooled"
	case kindDedicated:
		return "dedicated"
	case kindExternal:
		return "external"
	}
	return "unknown"
}

// thread hosts actors and runs their handlers serially.
//
// Lock order: a thread may call into the registry while holding its own
// lock, the registry never calls into a thread while holding its lock.
type thread interface {
	Name() string
	Kind() threadKind
	Start()
	// Stop requests shutdown and returns immediately. Done is closed once the
	// thread has run every cleanup it is responsible for.
	Stop()
	Done() <-chan struct{}
	Post(id ID, msg Message)
	AddActor(id ID, a Actor) error
	RemoveActor(id ID)
}

// Dispatcher hands an action to a host-owned loop which runs it eventually,
// on the loop's own goroutine, in dispatch order.
type Dispatcher func(action func())

// slot is the indirection between an actor id and its current implementation,
// so a fault handler can swap the implementation. Only the owning thread's
// goroutine reads or writes it after registration.
type slot struct {
	actor Actor
	dead  bool

	// removing is set by RemoveActor under the owning thread's lock; the
	// slot stays resident until its kill parcel has run the cleanup.
	removing bool
}

// parcel is a unit of work in a mailbox: a message for one actor or, with
// kill set, the request to clean it up.
type parcel struct {
	id   ID
	slot *slot
	msg  Message
	kill bool
}

// mailbox is an unbounded FIFO of parcels shared by the pooled and dedicated
// threads. It is not synchronized: the owner holds its own lock around push
// and swap.
type mailbox struct {
	items []parcel
	spare []parcel
	wake  chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{wake: make(chan struct{}, 1)}
}

func (m *mailbox) push(p parcel) {
	m.items = append(m.items, p)
	m.notify()
}

func (m *mailbox) notify() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// swap returns everything queued so far and recycles prev, the batch returned
// by the previous swap, as the next queue.
func (m *mailbox) swap(prev []parcel) []parcel {
	clear(prev)
	batch := m.items
	m.items = prev[:0]
	return batch
}

func (m *mailbox) len() int { return len(m.items) }

// threadEnv is what every thread variant needs from the system.
type threadEnv struct {
	rt      Runtime
	reg     *registry
	log     *slog.Logger
	faults  FaultHandler
	metrics RuntimeMetrics
}

// deliver runs one handler invocation with fault containment. It must be
// called on the goroutine owning s.
func (e *threadEnv) deliver(log *slog.Logger, thread string, id ID, s *slot, msg Message) {
	if s.dead {
		return
	}

	tm := e.metrics.MessageDuration(thread)
	err := safeHandle(e.rt, s.actor, id, msg)
	tm.ObserveDuration()
	e.metrics.MessageHandled(thread, err == nil)
	if err == nil {
		return
	}

	e.metrics.ActorFault(thread)
	attrs := []any{
		slog.Int64("actor", int64(id)),
		slog.String("actor_type", fmt.Sprintf("%T", s.actor)),
		slog.String("msg", msg.String()),
		slog.Any("error", err),
	}
	var pe *PanicError
	if errors.As(err, &pe) {
		attrs = append(attrs, slog.String("stack", string(pe.Stack)))
	}
	log.Error("actor handler failed", attrs...)

	replacement := e.onFault(log, id, s.actor, err)
	if replacement != nil {
		log.Info("replacing actor",
			slog.Int64("actor", int64(id)),
			slog.String("actor_type", fmt.Sprintf("%T", replacement)),
		)
		s.actor = replacement
		e.metrics.ActorReplaced(thread)
	}
}

func (e *threadEnv) onFault(log *slog.Logger, id ID, failed Actor, err error) (replacement Actor) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("fault handler panicked", slog.Int64("actor", int64(id)), slog.Any("recovered", r))
			replacement = nil
		}
	}()
	return e.faults.OnFault(e.rt, id, failed, err)
}

// cleanup runs the actor's Cleanup once. Failures are logged and ignored.
func (e *threadEnv) cleanup(log *slog.Logger, id ID, s *slot) {
	if s.dead {
		return
	}
	s.dead = true
	if err := safeCleanup(e.rt, s.actor, id); err != nil {
		log.Error("actor cleanup failed", slog.Int64("actor", int64(id)), slog.Any("error", err))
	}
}

func safeHandle(rt Runtime, a Actor, id ID, msg Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Recovered: r, Stack: debug.Stack()}
		}
	}()
	return a.Handle(rt, id, msg)
}

func safeCleanup(rt Runtime, a Actor, id ID) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Recovered: r, Stack: debug.Stack()}
		}
	}()
	return a.Cleanup(rt, id)
}
