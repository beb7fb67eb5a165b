package actor

import (
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"
)

// dedicatedThread runs exactly one actor on its own goroutine and pulses it
// with CodePulse whenever no message is pending, so the actor can make
// progress on long work in small steps.
type dedicatedThread struct {
	name  string
	id    ID
	slot  *slot
	env   *threadEnv
	log   *slog.Logger
	pulse time.Duration

	mu      sync.Mutex
	box     *mailbox
	stopped bool
	started bool

	done chan struct{}
}

func newDedicatedThread(name string, id ID, a Actor, pulse time.Duration, env *threadEnv) *dedicatedThread {
	return &dedicatedThread{
		name:  name,
		id:    id,
		slot:  &slot{actor: a},
		env:   env,
		log:   env.log.With(slog.String("thread", name), slog.Int64("actor", int64(id))),
		pulse: pulse,
		box:   newMailbox(),
		done:  make(chan struct{}),
	}
}

func dedicatedThreadName(id ID) string { return fmt.Sprintf("dedicated-%d", id) }

func (t *dedicatedThread) Name() string          { return t.name }
func (t *dedicatedThread) Kind() threadKind      { return kindDedicated }
func (t *dedicatedThread) Done() <-chan struct{} { return t.done }

func (t *dedicatedThread) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started {
		return
	}
	t.started = true
	go t.loop()
}

// Stop enqueues the poison parcel. Messages posted before it are still handled.
func (t *dedicatedThread) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	t.stopped = true
	t.box.push(parcel{id: t.id, slot: t.slot, kill: true})
	if !t.started {
		t.started = true
		go t.loop()
	}
}

func (t *dedicatedThread) AddActor(ID, Actor) error {
	return fmt.Errorf("%w: %s hosts a single actor", ErrUnsupported, t.name)
}

func (t *dedicatedThread) RemoveActor(id ID) {
	if id == t.id {
		t.Stop()
	}
}

func (t *dedicatedThread) Post(id ID, msg Message) {
	if id != t.id {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	t.box.push(parcel{id: id, slot: t.slot, msg: msg})
}

func (t *dedicatedThread) loop() {
	defer close(t.done)
	t.log.Info("dedicated thread started")

	var (
		batch []parcel
		idle  *time.Timer
		pulse = Message{Code: CodePulse}
	)
	if t.pulse > 0 {
		idle = time.NewTimer(t.pulse)
		defer idle.Stop()
	}

	for {
		t.mu.Lock()
		batch = t.box.swap(batch)
		t.mu.Unlock()

		if len(batch) > 0 {
			t.env.metrics.QueueDepth(t.name, len(batch))
			for _, p := range batch {
				if p.kill {
					t.exit()
					return
				}
				t.env.deliver(t.log, t.name, p.id, p.slot, p.msg)
			}
			continue
		}

		if idle != nil {
			idle.Reset(t.pulse)
			select {
			case <-t.box.wake:
				continue
			case <-idle.C:
			}
		}

		t.env.deliver(t.log, t.name, t.id, t.slot, pulse)

		if idle == nil {
			runtime.Gosched()
		}
	}
}

func (t *dedicatedThread) exit() {
	t.env.cleanup(t.log, t.id, t.slot)
	t.env.reg.removeDedicated(t.id, t.name)
	t.log.Info("dedicated thread finished")
}

var _ thread = (*dedicatedThread)(nil)
