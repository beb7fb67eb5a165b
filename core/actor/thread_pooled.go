package actor

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"
)

// pooledThread owns one goroutine and any number of resident actors.
type pooledThread struct {
	name string
	env  *threadEnv
	log  *slog.Logger

	mu        sync.Mutex
	residents map[ID]*slot
	box       *mailbox
	stopping  bool
	started   bool

	done chan struct{}
}

func newPooledThread(name string, env *threadEnv) *pooledThread {
	return &pooledThread{
		name:      name,
		env:       env,
		log:       env.log.With(slog.String("thread", name)),
		residents: make(map[ID]*slot),
		box:       newMailbox(),
		done:      make(chan struct{}),
	}
}

func (t *pooledThread) Name() string          { return t.name }
func (t *pooledThread) Kind() threadKind      { return kindPooled }
func (t *pooledThread) Done() <-chan struct{} { return t.done }

func (t *pooledThread) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started {
		return
	}
	t.started = true
	go t.loop()
}

func (t *pooledThread) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopping {
		return
	}
	t.stopping = true
	t.box.notify()
	if !t.started {
		// never started: nothing will drain, finish right here
		t.started = true
		go t.loop()
	}
}

func (t *pooledThread) AddActor(id ID, a Actor) error {
	if a == nil {
		return ErrNilActor
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopping {
		return fmt.Errorf("%w: %s", ErrThreadStopped, t.name)
	}
	if _, ok := t.residents[id]; ok {
		return fmt.Errorf("%w: actor=%d thread=%s", ErrDuplicateActor, id, t.name)
	}
	t.residents[id] = &slot{actor: a}
	t.env.metrics.ResidentActors(t.name, len(t.residents))
	return nil
}

// RemoveActor queues the actor's cleanup behind everything already posted to
// it. Posts after this call are dropped. The actor stays resident until the
// cleanup has run.
func (t *pooledThread) RemoveActor(id ID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopping {
		// the final cleanup pass covers it
		return
	}
	s, ok := t.residents[id]
	if !ok || s.removing {
		return
	}
	s.removing = true
	t.box.push(parcel{id: id, slot: s, kill: true})
}

func (t *pooledThread) Post(id ID, msg Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopping {
		return
	}
	s, ok := t.residents[id]
	if !ok || s.removing {
		return
	}
	t.box.push(parcel{id: id, slot: s, msg: msg})
}

func (t *pooledThread) loop() {
	defer close(t.done)

	var batch []parcel
	for {
		t.mu.Lock()
		for t.box.len() == 0 && !t.stopping {
			t.mu.Unlock()
			<-t.box.wake
			t.mu.Lock()
		}
		batch = t.box.swap(batch)
		stop := t.stopping
		t.mu.Unlock()

		t.env.metrics.QueueDepth(t.name, len(batch))
		t.process(batch)
		t.env.metrics.QueueDepth(t.name, 0)

		if stop {
			t.finish()
			return
		}
	}
}

func (t *pooledThread) process(batch []parcel) {
	for _, p := range batch {
		if p.kill {
			t.env.cleanup(t.log, p.id, p.slot)
			t.evict(p.id, p.slot)
			continue
		}
		t.env.deliver(t.log, t.name, p.id, p.slot, p.msg)
	}
}

// evict erases a cleaned up actor from the resident map.
func (t *pooledThread) evict(id ID, s *slot) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.residents[id] == s {
		delete(t.residents, id)
		t.env.metrics.ResidentActors(t.name, len(t.residents))
	}
}

// finish cleans up every actor still resident, then erases the thread's
// registry record.
func (t *pooledThread) finish() {
	t.mu.Lock()
	residents := t.residents
	t.residents = make(map[ID]*slot)
	t.mu.Unlock()

	ids := make([]ID, 0, len(residents))
	for id, s := range residents {
		if !s.dead {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	for _, id := range ids {
		t.env.cleanup(t.log, id, residents[id])
	}

	t.env.metrics.ResidentActors(t.name, 0)
	t.env.reg.removeThread(t.name)
	t.log.Debug("thread stopped", slog.Int("cleaned_up", len(ids)))
}

var _ thread = (*pooledThread)(nil)
