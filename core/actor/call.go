package actor

import (
	"fmt"
	"log/slog"
	"time"
)

// NoTimeout makes Call wait for its reply without arming a timer.
const NoTimeout time.Duration = -1

// Call sends a request tagged with a fresh call id and returns that id. The
// caller later receives exactly one result message carrying it: whatever the
// target passes to SendResult, or CodeTimeout if timeout elapses first.
// A zero timeout times out at once; NoTimeout waits for the reply forever.
func (s *System) Call(target ID, code Code, payload any, caller ID, timeout time.Duration) CallID {
	mustValidID(target)
	mustValidID(caller)

	call := s.reg.registerCall(caller)
	s.metrics.CallStarted(callKindCall)
	if timeout >= 0 {
		s.reg.addTimer(caller, call, timeout, s.onTimer)
	}
	s.sendCore(target, call, code, payload, caller)
	return call
}

// SendResult delivers the result of call to caller, unless the call already
// got its result (or was never issued), in which case it is dropped.
// result must be one of the four result codes.
func (s *System) SendResult(caller ID, call CallID, result Code, payload any, sender ID) {
	if !result.IsResult() {
		panic(fmt.Errorf("%w: %d", ErrInvalidResultCode, result))
	}
	mustValidID(caller)

	if !s.reg.unregisterCall(caller, call) {
		s.metrics.StaleResultDropped()
		s.log.Debug("dropping stale result",
			slog.Int64("caller", int64(caller)),
			slog.Int64("call", int64(call)),
			slog.String("result", result.String()),
		)
		return
	}
	s.metrics.CallResult(result)
	s.sendCore(caller, call, result, payload, sender)
}

// onTimer synthesizes the timeout result; a call that already got its
// result makes this a no-op.
func (s *System) onTimer(call CallID, actor ID) {
	s.SendResult(actor, call, CodeTimeout, nil, 0)
	s.reg.removeTimer(call)
}

// ScheduleTimeout delivers a CodeTimeout message with the returned id to id
// after d, unless cancelled with CancelTimeout first.
func (s *System) ScheduleTimeout(id ID, d time.Duration) CallID {
	mustValidID(id)

	call := s.reg.registerCall(id)
	s.metrics.CallStarted(callKindTimeout)
	s.reg.addTimer(id, call, d, s.onTimer)
	return call
}

// CancelTimeout disposes a timer. Once it returns, the timer's message is
// guaranteed not to be delivered, unless it already was. Unknown ids are
// ignored.
func (s *System) CancelTimeout(timer CallID) {
	s.reg.removeTimer(timer)
}
