package actor

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/codewandler/actorrt/internal/hrw"
)

func TestSystem_send(t *testing.T) {
	s := newTestSystem(t, "T1")
	rec := newRecorder()
	id, err := s.AddActorToThread("T1", rec)
	require.NoError(t, err)
	require.Equal(t, "T1", s.reg.threadForActor(id).Name())

	s.Send(id, 20, nil, 4000)

	ev := rec.next(t)
	require.Equal(t, "msg", ev.kind)
	require.Equal(t, id, ev.self)
	require.Equal(t, Code(20), ev.msg.Code)
	require.Equal(t, ID(4000), ev.msg.Sender)
	require.Zero(t, ev.msg.CallID)
	require.Nil(t, ev.msg.Payload)
	rec.requireNone(t, quietPeriod)

	s.RemoveActor(id)
	cleanup := rec.next(t)
	require.Equal(t, "cleanup", cleanup.kind)
	require.Equal(t, ev.gid, cleanup.gid, "cleanup must run on the actor's thread")
}

func TestSystem_resend_keeps_sender(t *testing.T) {
	for _, targetThread := range []string{"T1", "T2"} {
		t.Run("target on "+targetThread, func(t *testing.T) {
			s := newTestSystem(t, "T1", "T2")
			target := newRecorder()
			targetID, err := s.AddActorToThread(targetThread, target)
			require.NoError(t, err)

			resender := HandlerFunc(func(rt Runtime, self ID, msg Message) error {
				rt.Send(targetID, msg.Code, msg.Payload, self)
				return nil
			})
			resenderID, err := s.AddActorToThread("T1", resender)
			require.NoError(t, err)

			s.Send(resenderID, 21, "x", 4000)

			msg := target.nextMsg(t)
			require.Equal(t, Code(21), msg.Code)
			require.Equal(t, "x", msg.Payload)
			require.Equal(t, resenderID, msg.Sender)
		})
	}
}

func TestSystem_shutdown_runs_cleanup_once(t *testing.T) {
	s := NewSystem(Options{})
	require.NoError(t, s.CreateThread("T1"))
	rec := newRecorder()
	id, err := s.AddActor(rec)
	require.NoError(t, err)

	require.NoError(t, s.Shutdown(t.Context()))

	select {
	case ev := <-rec.events:
		require.Equal(t, "cleanup", ev.kind)
		require.Equal(t, id, ev.self)
	default:
		t.Fatal("cleanup did not run before Shutdown returned")
	}
	rec.requireNone(t, quietPeriod)

	// second shutdown is a no-op
	require.NoError(t, s.Close())
	rec.requireNone(t, quietPeriod)
	require.Equal(t, Stats{}, s.Stats())
}

func TestSystem_shutdown_drains_queue(t *testing.T) {
	s := NewSystem(Options{})
	require.NoError(t, s.CreateThread("T1"))
	rec := newRecorder()
	id, err := s.AddActor(rec)
	require.NoError(t, err)

	for i := range 10 {
		s.Send(id, 100, i, 0)
	}
	require.NoError(t, s.Close())

	for i := range 10 {
		require.Equal(t, i, rec.nextMsg(t).Payload)
	}
	require.Equal(t, "cleanup", rec.next(t).kind)
}

func TestSystem_fifo_per_sender(t *testing.T) {
	s := newTestSystem(t, "T1", "T2")
	rec := newRecorder()
	target, err := s.AddActorToThread("T1", rec)
	require.NoError(t, err)

	const n = 500
	sender := HandlerFunc(func(rt Runtime, self ID, msg Message) error {
		for i := range n {
			rt.Send(target, 101, i, self)
		}
		return nil
	})
	senderID, err := s.AddActorToThread("T2", sender)
	require.NoError(t, err)

	s.Send(senderID, CodeStart, nil, 0)
	for i := range n {
		msg := rec.nextMsg(t)
		require.Equal(t, i, msg.Payload)
		require.Equal(t, senderID, msg.Sender)
	}
}

func TestSystem_serial_execution(t *testing.T) {
	s := newTestSystem(t, "T1", "T2", "T3")

	var (
		running int
		maxSeen int
	)
	done := make(chan struct{})
	const n = 300
	count := 0
	target, err := s.AddActor(HandlerFunc(func(rt Runtime, self ID, msg Message) error {
		running++
		if running > maxSeen {
			maxSeen = running
		}
		time.Sleep(10 * time.Microsecond)
		running--
		count++
		if count == n {
			close(done)
		}
		return nil
	}))
	require.NoError(t, err)

	for _, th := range []string{"T1", "T2", "T3"} {
		id, err := s.AddActorToThread(th, HandlerFunc(func(rt Runtime, self ID, msg Message) error {
			for range n / 3 {
				rt.Send(target, 102, nil, self)
			}
			return nil
		}))
		require.NoError(t, err)
		s.Send(id, CodeStart, nil, 0)
	}

	select {
	case <-done:
	case <-time.After(waitTimeout):
		t.Fatal("timeout")
	}
	require.Equal(t, 1, maxSeen)
}

func TestSystem_remove(t *testing.T) {
	s := newTestSystem(t, "T1")
	rec := newRecorder()
	id, err := s.AddActor(rec)
	require.NoError(t, err)

	for i := range 3 {
		s.Send(id, 100, i, 0)
	}
	s.RemoveActor(id)
	s.RemoveActor(id)
	s.Send(id, 100, 3, 0)

	for i := range 3 {
		require.Equal(t, i, rec.nextMsg(t).Payload)
	}
	require.Equal(t, "cleanup", rec.next(t).kind)
	rec.requireNone(t, quietPeriod)

	// unknown ids are ignored
	s.RemoveActor(12345)
	s.Send(12345, 100, nil, 0)
}

// cleanupObserver reports whether it is still resident on its thread
// while its cleanup runs.
type cleanupObserver struct {
	thread   *pooledThread
	resident chan bool
	handled  atomic.Int32
}

func (c *cleanupObserver) Handle(Runtime, ID, Message) error {
	c.handled.Add(1)
	return nil
}
func (c *cleanupObserver) Cleanup(_ Runtime, self ID) error {
	c.thread.mu.Lock()
	_, ok := c.thread.residents[self]
	c.thread.mu.Unlock()
	c.resident <- ok
	return nil
}

func TestPooled_remove_evicts_after_cleanup(t *testing.T) {
	s := newTestSystem(t, "T1")
	th, err := s.reg.threadByName("T1")
	require.NoError(t, err)
	pt := th.(*pooledThread)

	obs := &cleanupObserver{thread: pt, resident: make(chan bool, 1)}
	id, err := s.AddActor(obs)
	require.NoError(t, err)

	pt.RemoveActor(id)
	// posts behind the kill parcel are dropped by the thread itself
	pt.Post(id, Message{Code: 100})

	select {
	case ok := <-obs.resident:
		require.True(t, ok, "actor must stay resident until its cleanup ran")
	case <-time.After(waitTimeout):
		t.Fatal("timeout")
	}
	require.Eventually(t, func() bool {
		pt.mu.Lock()
		defer pt.mu.Unlock()
		_, ok := pt.residents[id]
		return !ok
	}, waitTimeout, 10*time.Millisecond)
	require.Zero(t, obs.handled.Load())
}

func TestSystem_invalid_ids_panic(t *testing.T) {
	s := newTestSystem(t, "T1")
	requirePanicsWith(t, ErrInvalidID, func() { s.Send(0, 100, nil, 0) })
	requirePanicsWith(t, ErrInvalidID, func() { s.RemoveActor(-1) })
	requirePanicsWith(t, ErrInvalidID, func() { s.Call(0, 100, nil, 1, time.Second) })
	requirePanicsWith(t, ErrInvalidID, func() { s.ScheduleTimeout(0, time.Second) })
	requirePanicsWith(t, ErrInvalidResultCode, func() { s.SendResult(1, 1, 99, nil, 0) })
}

func TestSystem_registration_errors(t *testing.T) {
	s := NewSystem(Options{})

	_, err := s.AddActor(newRecorder())
	require.ErrorIs(t, err, ErrNoThreads)
	_, err = s.AddActorWithKey("k", newRecorder())
	require.ErrorIs(t, err, ErrNoThreads)

	require.ErrorIs(t, s.CreateThread(""), ErrInvalidThreadName)
	require.NoError(t, s.CreateThread("T1"))
	require.ErrorIs(t, s.CreateThread("T1"), ErrThreadExists)
	require.ErrorIs(t, s.RegisterExternalThread("T1", func(func()) {}), ErrThreadExists)
	require.ErrorIs(t, s.RegisterExternalThread("ui", nil), ErrUnsupported)

	_, err = s.AddActorToThread("nope", newRecorder())
	require.ErrorIs(t, err, ErrUnknownThread)
	_, err = s.AddActor(nil)
	require.ErrorIs(t, err, ErrNilActor)
	_, err = s.AddDedicatedActor(nil)
	require.ErrorIs(t, err, ErrNilActor)

	require.NoError(t, s.Close())

	require.ErrorIs(t, s.CreateThread("T2"), ErrRuntimeClosed)
	_, err = s.AddDedicatedActor(newRecorder())
	require.ErrorIs(t, err, ErrRuntimeClosed)
	_, err = s.AddActor(newRecorder())
	require.ErrorIs(t, err, ErrNoThreads)
}

func TestSystem_ids_never_reused(t *testing.T) {
	s := newTestSystem(t, "T1")
	seen := map[ID]bool{}
	var last ID
	for range 20 {
		id, err := s.AddActor(newRecorder())
		require.NoError(t, err)
		require.Greater(t, id, last)
		require.False(t, seen[id])
		seen[id] = true
		last = id
		s.RemoveActor(id)
	}
	require.Equal(t, ID(20), last)
}

func TestSystem_keyed_placement(t *testing.T) {
	threads := []string{"T1", "T2", "T3", "T4"}
	s := newTestSystemWith(t, Options{PlacementSeed: "seed"}, threads...)

	for _, key := range []string{"alpha", "beta", "gamma", "delta"} {
		want, ok := hrw.Pick(key, threads, "seed")
		require.True(t, ok)

		a, err := s.AddActorWithKey(key, newRecorder())
		require.NoError(t, err)
		b, err := s.AddActorWithKey(key, newRecorder())
		require.NoError(t, err)

		require.Equal(t, want, s.reg.threadForActor(a).Name(), key)
		require.Equal(t, want, s.reg.threadForActor(b).Name(), key)
	}
}

func TestSystem_random_placement_only_pooled(t *testing.T) {
	s := newTestSystem(t, "T1")
	require.NoError(t, s.RegisterExternalThread("ui", func(f func()) { go f() }))
	_, err := s.AddDedicatedActor(HandlerFunc(func(Runtime, ID, Message) error { return nil }))
	require.NoError(t, err)

	for range 50 {
		id, err := s.AddActor(newRecorder())
		require.NoError(t, err)
		require.Equal(t, "T1", s.reg.threadForActor(id).Name())
	}
}

func TestSystem_stats(t *testing.T) {
	s := newTestSystem(t, "T1", "T2")
	rec := newRecorder()
	id, err := s.AddActor(rec)
	require.NoError(t, err)

	s.Call(id, 100, nil, id, time.Minute)
	s.ScheduleTimeout(id, time.Minute)

	st := s.Stats()
	require.Equal(t, 1, st.Actors)
	require.Equal(t, 2, st.Threads)
	require.Equal(t, 2, st.OutstandingCalls)
	require.Equal(t, 2, st.Timers)
	require.Equal(t, 0, st.Ops)
}

func TestSystem_shutdown_deadline(t *testing.T) {
	s := NewSystem(Options{})
	require.NoError(t, s.CreateThread("T1"))

	release := make(chan struct{})
	started := make(chan struct{})
	id, err := s.AddActor(HandlerFunc(func(Runtime, ID, Message) error {
		close(started)
		<-release
		return nil
	}))
	require.NoError(t, err)
	s.Send(id, 100, nil, 0)
	<-started

	ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
	defer cancel()
	err = s.Shutdown(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	close(release)
}

func TestSystem_log_sink(t *testing.T) {
	s := newTestSystem(t)
	require.NotNil(t, s.Log())
	require.NotEmpty(t, s.ID())
	s.Log().Info("hello", "k", "v")
	s.Log().Error("failed", fmt.Errorf("boom"), "k", "v")
}
