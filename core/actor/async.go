package actor

import (
	"context"
	"errors"
	"log/slog"
	"runtime/debug"
)

// RunAsVoidCall runs op off the actor threads and reports its outcome to
// caller as a result message: Completed with a nil payload, Error with the
// returned error, or Cancelled.
func (s *System) RunAsVoidCall(op VoidOp, caller ID) CallID {
	return s.runAsCall(callKindOp, caller, func(ctx context.Context) (any, error) {
		return nil, op(ctx)
	})
}

// RunAsCall is RunAsVoidCall for operations producing a payload, which is
// delivered with the Completed result.
func (s *System) RunAsCall(op Op, caller ID) CallID {
	return s.runAsCall(callKindOp, caller, op)
}

// CancelCall cancels the context of a running adapted operation. The caller
// still gets exactly one result, usually Cancelled. Unknown ids and plain
// calls are ignored.
func (s *System) CancelCall(call CallID) {
	if cancel := s.reg.cancelOp(call); cancel != nil {
		cancel()
	}
}

// runAsCall registers a call for caller and schedules op. Exactly one result
// is posted when op returns.
func (s *System) runAsCall(kind string, caller ID, op Op) CallID {
	mustValidID(caller)

	call := s.reg.registerCall(caller)
	s.metrics.CallStarted(kind)

	ctx, cancel := context.WithCancel(s.ctx)
	s.reg.trackOp(call, cancel)

	s.sched.Go(func() {
		defer cancel()
		defer s.reg.untrackOp(call)

		if err := ctx.Err(); err != nil {
			s.complete(caller, call, nil, err)
			return
		}
		payload, err := runOp(ctx, op)
		s.complete(caller, call, payload, err)
	})
	return call
}

func runOp(ctx context.Context, op Op) (payload any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Recovered: r, Stack: debug.Stack()}
		}
	}()
	return op(ctx)
}

// complete maps an operation outcome to its result code.
func (s *System) complete(caller ID, call CallID, payload any, err error) {
	log := s.log.With(slog.Int64("caller", int64(caller)), slog.Int64("call", int64(call)))
	switch {
	case err == nil:
		s.SendResult(caller, call, CodeCompleted, payload, 0)
	case errors.Is(err, context.Canceled):
		log.Info("adapted operation cancelled")
		s.SendResult(caller, call, CodeCancelled, nil, 0)
	default:
		log.Error("adapted operation failed", slog.Any("error", err))
		s.SendResult(caller, call, CodeError, err, 0)
	}
}
