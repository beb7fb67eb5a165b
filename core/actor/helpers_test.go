package actor

import (
	"bytes"
	"errors"
	"runtime"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const (
	waitTimeout = 2 * time.Second
	quietPeriod = 150 * time.Millisecond
)

func newTestSystem(t *testing.T, threads ...string) *System {
	t.Helper()
	return newTestSystemWith(t, Options{}, threads...)
}

func newTestSystemWith(t *testing.T, opts Options, threads ...string) *System {
	t.Helper()
	s := NewSystem(opts)
	for _, name := range threads {
		require.NoError(t, s.CreateThread(name))
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

type event struct {
	kind string // "msg" or "cleanup"
	self ID
	msg  Message
	gid  uint64
}

// recorder reports every call into it on events. onMsg, if set, runs after
// the event was recorded.
type recorder struct {
	events chan event
	onMsg  func(rt Runtime, self ID, msg Message) error
}

func newRecorder() *recorder {
	return &recorder{events: make(chan event, 1024)}
}

func (r *recorder) Handle(rt Runtime, self ID, msg Message) error {
	r.events <- event{kind: "msg", self: self, msg: msg, gid: goid()}
	if r.onMsg != nil {
		return r.onMsg(rt, self, msg)
	}
	return nil
}

func (r *recorder) Cleanup(rt Runtime, self ID) error {
	r.events <- event{kind: "cleanup", self: self, gid: goid()}
	return nil
}

func (r *recorder) next(t *testing.T) event {
	t.Helper()
	select {
	case ev := <-r.events:
		return ev
	case <-time.After(waitTimeout):
		t.Fatal("timeout waiting for actor event")
	}
	return event{}
}

func (r *recorder) nextMsg(t *testing.T) Message {
	t.Helper()
	ev := r.next(t)
	require.Equal(t, "msg", ev.kind)
	return ev.msg
}

func (r *recorder) requireNone(t *testing.T, d time.Duration) {
	t.Helper()
	select {
	case ev := <-r.events:
		t.Fatalf("unexpected event %s %s", ev.kind, ev.msg)
	case <-time.After(d):
	}
}

// goid returns the current goroutine's id. Tests use it to check which
// thread ran a handler.
func goid() uint64 {
	buf := make([]byte, 64)
	buf = buf[:runtime.Stack(buf, false)]
	buf = bytes.TrimPrefix(buf, []byte("goroutine "))
	buf = buf[:bytes.IndexByte(buf, ' ')]
	id, _ := strconv.ParseUint(string(buf), 10, 64)
	return id
}

func requirePanicsWith(t *testing.T, target error, f func()) {
	t.Helper()
	defer func() {
		t.Helper()
		r := recover()
		require.NotNil(t, r, "expected panic")
		err, ok := r.(error)
		require.True(t, ok, "panic value %v is not an error", r)
		require.True(t, errors.Is(err, target), "got %v, want %v", err, target)
	}()
	f()
}

// countingMetrics counts the events tests care about.
type countingMetrics struct {
	nopRuntimeMetrics
	faults   atomic.Int64
	replaced atomic.Int64
	stale    atomic.Int64
	results  atomic.Int64
	handled  atomic.Int64
}

func (m *countingMetrics) ActorFault(string)           { m.faults.Add(1) }
func (m *countingMetrics) ActorReplaced(string)        { m.replaced.Add(1) }
func (m *countingMetrics) StaleResultDropped()         { m.stale.Add(1) }
func (m *countingMetrics) CallResult(Code)             { m.results.Add(1) }
func (m *countingMetrics) MessageHandled(string, bool) { m.handled.Add(1) }
