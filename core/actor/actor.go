package actor

import (
	"context"
	"io"
	"log/slog"
	"time"
)

type (
	// Actor is an isolated unit of state addressed by an ID.
	//
	// The runtime calls Handle and Cleanup from the actor's owning thread only,
	// never concurrently, so implementations need no locking. Neither method
	// may block. Unknown codes must be tolerated.
	Actor interface {
		// Handle reacts to one message. A returned error is treated as a fault,
		// exactly like a panic: it is logged and passed to the FaultHandler.
		Handle(rt Runtime, self ID, msg Message) error
		// Cleanup is called once, after the last message, when the actor is
		// removed or the runtime shuts down. Errors are logged and ignored.
		Cleanup(rt Runtime, self ID) error
	}

	// HandlerFunc adapts a function to an Actor with a no-op Cleanup.
	HandlerFunc func(rt Runtime, self ID, msg Message) error

	// Runtime is the surface actors and embedding code use to talk to the system.
	// *System implements it; tests of single actors can fake it.
	Runtime interface {
		Log() Logger

		AddActor(a Actor) (ID, error)
		AddActorToThread(threadName string, a Actor) (ID, error)
		AddActorWithKey(key string, a Actor) (ID, error)
		AddDedicatedActor(a Actor) (ID, error)
		RemoveActor(id ID)

		Send(target ID, code Code, payload any, sender ID)
		Call(target ID, code Code, payload any, caller ID, timeout time.Duration) CallID
		SendResult(caller ID, call CallID, result Code, payload any, sender ID)

		ScheduleTimeout(id ID, d time.Duration) CallID
		CancelTimeout(timer CallID)

		RunAsVoidCall(op VoidOp, caller ID) CallID
		RunAsCall(op Op, caller ID) CallID
		CancelCall(call CallID)

		StartRead(r io.Reader, buf *IOBuffer, id ID) CallID
		StartWrite(w io.Writer, buf *IOBuffer, id ID) CallID
	}

	// VoidOp is an operation whose only outcome is success, failure or cancellation.
	VoidOp func(ctx context.Context) error

	// Op is an operation producing a payload for its Completed result.
	Op func(ctx context.Context) (any, error)

	// Logger is the log sink exposed to actors.
	Logger interface {
		Info(msg string, args ...any)
		Error(msg string, err error, args ...any)
	}

	// FaultHandler decides what happens after an actor's Handle failed.
	// Returning a non-nil Actor replaces the failed one for all future
	// messages to the same id. Returning nil keeps the actor as it is.
	FaultHandler interface {
		OnFault(rt Runtime, id ID, failed Actor, err error) Actor
	}

	// FaultHandlerFunc adapts a function to a FaultHandler.
	FaultHandlerFunc func(rt Runtime, id ID, failed Actor, err error) Actor
)

func (f HandlerFunc) Handle(rt Runtime, self ID, msg Message) error { return f(rt, self, msg) }
func (f HandlerFunc) Cleanup(Runtime, ID) error                     { return nil }

func (f FaultHandlerFunc) OnFault(rt Runtime, id ID, failed Actor, err error) Actor {
	return f(rt, id, failed, err)
}

// KeepOnFault is the default FaultHandler: the fault has already been logged
// and the actor continues with its prior state.
var KeepOnFault FaultHandler = FaultHandlerFunc(func(Runtime, ID, Actor, error) Actor { return nil })

// slogSink implements Logger on top of slog.
type slogSink struct{ log *slog.Logger }

// NewLogger returns a Logger writing to log (slog.Default() if nil).
func NewLogger(log *slog.Logger) Logger {
	if log == nil {
		log = slog.Default()
	}
	return &slogSink{log: log}
}

func (s *slogSink) Info(msg string, args ...any) { s.log.Info(msg, args...) }

func (s *slogSink) Error(msg string, err error, args ...any) {
	if err != nil {
		args = append(args, slog.Any("error", err))
	}
	s.log.Error(msg, args...)
}

var (
	_ Actor        = HandlerFunc(nil)
	_ FaultHandler = FaultHandlerFunc(nil)
	_ Logger       = (*slogSink)(nil)
)
