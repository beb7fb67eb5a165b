package actor

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/codewandler/actorrt/internal/ds"
	"github.com/codewandler/actorrt/internal/hrw"
)

// threadFactory builds the thread variants. The registry constructs threads
// but never calls into them while holding its lock.
type threadFactory interface {
	newPooled(name string) thread
	newExternal(name string, dispatch Dispatcher) thread
	newDedicated(name string, id ID, a Actor) thread
}

type timerRecord struct {
	timer *time.Timer
	actor ID
}

// Stats is a point-in-time snapshot of the registry.
type Stats struct {
	Actors           int
	Threads          int
	OutstandingCalls int
	Timers           int
	Ops              int
}

// registry is the single source of truth for placement and correlation.
//
// One mutex guards everything. No method calls into a thread while holding
// it: the only legal lock order is thread lock first, registry lock second.
type registry struct {
	factory threadFactory
	seed    string
	metrics RuntimeMetrics

	mu        sync.Mutex
	closed    bool
	lastActor ID
	lastCall  CallID
	actors    map[ID]thread
	calls     map[ID]*ds.Set[CallID]
	threads   map[string]thread
	timers    map[CallID]*timerRecord
	ops       map[CallID]context.CancelFunc
}

func newRegistry(factory threadFactory, seed string, m RuntimeMetrics) *registry {
	return &registry{
		factory: factory,
		seed:    seed,
		metrics: m,
		actors:  make(map[ID]thread),
		calls:   make(map[ID]*ds.Set[CallID]),
		threads: make(map[string]thread),
		timers:  make(map[CallID]*timerRecord),
		ops:     make(map[CallID]context.CancelFunc),
	}
}

// createThread registers a new, unstarted thread. A nil dispatch creates a
// pooled thread, otherwise an external one.
func (r *registry) createThread(name string, dispatch Dispatcher) (thread, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ErrInvalidThreadName
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrRuntimeClosed
	}
	if _, ok := r.threads[name]; ok {
		return nil, fmt.Errorf("%w: %s", ErrThreadExists, name)
	}

	var t thread
	if dispatch == nil {
		t = r.factory.newPooled(name)
	} else {
		t = r.factory.newExternal(name, dispatch)
	}
	r.threads[name] = t
	return t, nil
}

func (r *registry) allocateActor(t thread) (ID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return 0, ErrRuntimeClosed
	}
	r.lastActor++
	id := r.lastActor
	r.actors[id] = t
	return id, nil
}

// allocateDedicatedActor assigns an id, builds the actor's dedicated thread
// and records it, then starts it once the lock is released.
func (r *registry) allocateDedicatedActor(a Actor) (ID, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return 0, ErrRuntimeClosed
	}
	r.lastActor++
	id := r.lastActor
	name := dedicatedThreadName(id)
	t := r.factory.newDedicated(name, id, a)
	r.actors[id] = t
	r.threads[name] = t
	r.mu.Unlock()

	t.Start()
	return id, nil
}

// deallocateActor forgets the actor, its outstanding calls and its timers.
// It returns the thread the actor lived on, or nil if it was already gone.
func (r *registry) deallocateActor(id ID) thread {
	mustValidID(id)

	r.mu.Lock()
	t, ok := r.actors[id]
	if !ok {
		r.mu.Unlock()
		return nil
	}
	delete(r.actors, id)
	delete(r.calls, id)
	n := r.dropTimersLocked(id)
	r.mu.Unlock()

	if n >= 0 {
		r.metrics.TimersActive(n)
	}
	return t
}

// dropTimersLocked stops the actor's timers. It returns the new timer count,
// or -1 if the actor had none.
func (r *registry) dropTimersLocked(actor ID) int {
	dropped := false
	for call, rec := range r.timers {
		if rec.actor == actor {
			rec.timer.Stop()
			delete(r.timers, call)
			dropped = true
		}
	}
	if !dropped {
		return -1
	}
	return len(r.timers)
}

func (r *registry) registerCall(actor ID) CallID {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastCall++
	call := r.lastCall
	calls, ok := r.calls[actor]
	if !ok {
		calls = ds.NewSet[CallID]()
		r.calls[actor] = calls
	}
	calls.Add(call)
	return call
}

// nextCallID returns a fresh id without registering it.
func (r *registry) nextCallID() CallID {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastCall++
	return r.lastCall
}

// unregisterCall is the test-and-remove every result delivery goes through.
// It returns true only for the one caller that consumed the id. A timer
// recorded under the same id is disposed with it.
func (r *registry) unregisterCall(actor ID, call CallID) bool {
	r.mu.Lock()
	ok, timers := r.unregisterCallLocked(actor, call)
	r.mu.Unlock()
	if timers >= 0 {
		r.metrics.TimersActive(timers)
	}
	return ok
}

// unregisterCallLocked returns the new timer count, or -1 if no timer changed.
func (r *registry) unregisterCallLocked(actor ID, call CallID) (bool, int) {
	calls, ok := r.calls[actor]
	if !ok || !calls.TakeOut(call) {
		return false, -1
	}
	if calls.IsEmpty() {
		delete(r.calls, actor)
	}
	if rec, ok := r.timers[call]; ok && rec.actor == actor {
		rec.timer.Stop()
		delete(r.timers, call)
		return true, len(r.timers)
	}
	return true, -1
}

// addTimer arms fire to run after d. The record exists before the timer can
// possibly fire.
func (r *registry) addTimer(actor ID, call CallID, d time.Duration, fire func(call CallID, actor ID)) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.timers[call] = &timerRecord{
		actor: actor,
		timer: time.AfterFunc(d, func() { fire(call, actor) }),
	}
	n := len(r.timers)
	r.mu.Unlock()
	r.metrics.TimersActive(n)
}

// removeTimer disposes the timer and unregisters its call id in one step.
// Unknown ids are ignored.
func (r *registry) removeTimer(call CallID) {
	r.mu.Lock()
	rec, ok := r.timers[call]
	if !ok {
		r.mu.Unlock()
		return
	}
	rec.timer.Stop()
	delete(r.timers, call)
	if calls, ok := r.calls[rec.actor]; ok {
		calls.TakeOut(call)
		if calls.IsEmpty() {
			delete(r.calls, rec.actor)
		}
	}
	n := len(r.timers)
	r.mu.Unlock()
	r.metrics.TimersActive(n)
}

// trackOp remembers how to cancel an adapted operation.
func (r *registry) trackOp(call CallID, cancel context.CancelFunc) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		cancel()
		return
	}
	r.ops[call] = cancel
	r.mu.Unlock()
}

func (r *registry) untrackOp(call CallID) {
	r.mu.Lock()
	delete(r.ops, call)
	r.mu.Unlock()
}

func (r *registry) cancelOp(call CallID) context.CancelFunc {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ops[call]
}

// randomThread picks uniformly among pooled threads.
func (r *registry) randomThread() (thread, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	pooled := r.pooledLocked()
	if len(pooled) == 0 {
		return nil, ErrNoThreads
	}
	return pooled[rand.IntN(len(pooled))], nil
}

// keyedThread picks the pooled thread with the highest rendezvous score for key.
func (r *registry) keyedThread(key string) (thread, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	pooled := r.pooledLocked()
	names := make([]string, len(pooled))
	for i, t := range pooled {
		names[i] = t.Name()
	}
	best, ok := hrw.Pick(key, names, r.seed)
	if !ok {
		return nil, ErrNoThreads
	}
	return r.threads[best], nil
}

// pooledLocked lists pooled threads. Name and Kind are immutable, so reading
// them does not count as calling into a thread.
func (r *registry) pooledLocked() []thread {
	out := make([]thread, 0, len(r.threads))
	for _, t := range r.threads {
		if t.Kind() == kindPooled {
			out = append(out, t)
		}
	}
	return out
}

// threadForActor returns nil if the actor is gone; callers drop silently.
func (r *registry) threadForActor(id ID) thread {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.actors[id]
}

func (r *registry) threadByName(name string) (thread, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.threads[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownThread, name)
	}
	return t, nil
}

// removeThread erases a stopped thread's record.
func (r *registry) removeThread(name string) {
	r.mu.Lock()
	delete(r.threads, name)
	r.mu.Unlock()
}

// removeDedicated erases a finished dedicated thread and its actor.
func (r *registry) removeDedicated(id ID, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.actors[id]; ok && t.Name() == name {
		delete(r.actors, id)
		delete(r.calls, id)
		r.dropTimersLocked(id)
	}
	delete(r.threads, name)
}

// clear closes the registry and returns every thread for the caller to stop.
// Id counters keep running so ids are never reused.
func (r *registry) clear() []thread {
	r.mu.Lock()
	r.closed = true
	threads := make([]thread, 0, len(r.threads))
	for _, t := range r.threads {
		threads = append(threads, t)
	}
	for _, rec := range r.timers {
		rec.timer.Stop()
	}
	cancels := make([]context.CancelFunc, 0, len(r.ops))
	for _, c := range r.ops {
		cancels = append(cancels, c)
	}
	r.actors = make(map[ID]thread)
	r.calls = make(map[ID]*ds.Set[CallID])
	r.threads = make(map[string]thread)
	r.timers = make(map[CallID]*timerRecord)
	r.ops = make(map[CallID]context.CancelFunc)
	r.mu.Unlock()

	for _, c := range cancels {
		c()
	}
	r.metrics.TimersActive(0)
	return threads
}

func (r *registry) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

func (r *registry) stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := Stats{
		Actors:  len(r.actors),
		Threads: len(r.threads),
		Timers:  len(r.timers),
		Ops:     len(r.ops),
	}
	for _, c := range r.calls {
		s.OutstandingCalls += c.Len()
	}
	return s
}
