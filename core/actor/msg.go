package actor

import "fmt"

type (
	// ID identifies an actor. Ids are positive and never reused within a process.
	ID int64

	// CallID correlates a call, an adapted operation or a timer with its single result.
	CallID int64

	// Code tells the recipient what a message means.
	Code int
)

// Result codes. A call result always carries exactly one of these.
const (
	CodeCompleted Code = 1
	CodeError     Code = 2
	CodeCancelled Code = 3
	CodeTimeout   Code = 4
)

// Generic codes. Start, Shutdown and Cancel are conventions applications may
// reuse; Pulse is sent by dedicated threads.
const (
	CodeInvalid  Code = 0
	CodeStart    Code = 150
	CodeShutdown Code = 200
	CodeCancel   Code = 300
	CodePulse    Code = 1010

	CodeMax Code = 10000
)

// IsResult reports whether c is one of the four call result codes.
func (c Code) IsResult() bool {
	switch c {
	case CodeCompleted, CodeError, CodeCancelled, CodeTimeout:
		return true
	}
	return false
}

func (c Code) String() string {
	switch c {
	case CodeCompleted:
		return "completed"
	case CodeError:
		return "error"
	case CodeCancelled:
		return "cancelled"
	case CodeTimeout:
		return "timeout"
	case CodePulse:
		return "pulse"
	case CodeStart:
		return "start"
	case CodeShutdown:
		return "shutdown"
	case CodeCancel:
		return "cancel"
	}
	return fmt.Sprintf("code(%d)", int(c))
}

// Message is the envelope delivered to Actor.Handle.
//
// CallID is zero for fire-and-forget messages. For a call request it is the
// id the callee passes back to SendResult; for a result it is the id the
// caller got from Call, RunAsCall, ScheduleTimeout and friends.
//
// Payload is shared between sender and recipient and should be treated as
// immutable.
type Message struct {
	Code    Code
	CallID  CallID
	Payload any
	Sender  ID
}

// IsResult reports whether the message carries a call result.
func (m Message) IsResult() bool { return m.CallID != 0 && m.Code.IsResult() }

// Err returns the error carried by an Error result, or nil.
func (m Message) Err() error {
	if m.Code != CodeError {
		return nil
	}
	if err, ok := m.Payload.(error); ok {
		return err
	}
	return nil
}

func (m Message) String() string {
	return fmt.Sprintf("Message Code=%d CallID=%d Payload=%v Sender=%d", m.Code, m.CallID, m.Payload, m.Sender)
}
