package actor

import (
	"fmt"
	"log/slog"
	"sync"
)

// externalThread hosts actors on a loop it does not own, such as a UI event
// loop. It never runs handler code itself: every delivery and cleanup is
// handed to the dispatcher as a closure. Serial execution per actor holds as
// long as the host runs dispatched actions one at a time, in order.
type externalThread struct {
	name     string
	env      *threadEnv
	log      *slog.Logger
	dispatch Dispatcher

	mu        sync.Mutex
	residents map[ID]*slot

	done chan struct{}
	once sync.Once
}

func newExternalThread(name string, dispatch Dispatcher, env *threadEnv) *externalThread {
	return &externalThread{
		name:      name,
		env:       env,
		log:       env.log.With(slog.String("thread", name)),
		dispatch:  dispatch,
		residents: make(map[ID]*slot),
		done:      make(chan struct{}),
	}
}

func (t *externalThread) Name() string          { return t.name }
func (t *externalThread) Kind() threadKind      { return kindExternal }
func (t *externalThread) Done() <-chan struct{} { return t.done }

// Start is a no-op: the host loop's lifecycle is the thread's lifecycle.
func (t *externalThread) Start() {}

// Stop drops the resident map and dispatches a final cleanup for each actor.
// Whether those run is up to the host loop.
func (t *externalThread) Stop() {
	t.mu.Lock()
	residents := t.residents
	t.residents = make(map[ID]*slot)
	t.mu.Unlock()

	for id, s := range residents {
		t.post(func() { t.env.cleanup(t.log, id, s) })
	}
	t.env.metrics.ResidentActors(t.name, 0)
	t.once.Do(func() { close(t.done) })
}

func (t *externalThread) AddActor(id ID, a Actor) error {
	if a == nil {
		return ErrNilActor
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.residents[id]; ok {
		return fmt.Errorf("%w: actor=%d thread=%s", ErrDuplicateActor, id, t.name)
	}
	t.residents[id] = &slot{actor: a}
	t.env.metrics.ResidentActors(t.name, len(t.residents))
	return nil
}

// RemoveActor dispatches the actor's cleanup. Posts after this call are
// dropped; the actor stays resident until the cleanup has run on the host.
func (t *externalThread) RemoveActor(id ID) {
	t.mu.Lock()
	s, ok := t.residents[id]
	if !ok || s.removing {
		t.mu.Unlock()
		return
	}
	s.removing = true
	t.mu.Unlock()

	t.post(func() {
		t.env.cleanup(t.log, id, s)
		t.evict(id, s)
	})
}

func (t *externalThread) evict(id ID, s *slot) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.residents[id] == s {
		delete(t.residents, id)
		t.env.metrics.ResidentActors(t.name, len(t.residents))
	}
}

func (t *externalThread) Post(id ID, msg Message) {
	t.mu.Lock()
	s, ok := t.residents[id]
	removing := ok && s.removing
	t.mu.Unlock()
	if !ok || removing {
		return
	}
	t.post(func() { t.env.deliver(t.log, t.name, id, s, msg) })
}

// post hands action to the host. A panicking dispatcher (host loop gone) is
// logged, the action is lost.
func (t *externalThread) post(action func()) {
	defer func() {
		if r := recover(); r != nil {
			t.log.Error("dispatcher panicked", slog.Any("recovered", r))
		}
	}()
	t.dispatch(action)
}

var _ thread = (*externalThread)(nil)
