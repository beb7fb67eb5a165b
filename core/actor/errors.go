package actor

import (
	"errors"
	"fmt"
)

var (
	// Programming errors. The runtime panics with these.
	ErrInvalidID         = errors.New("invalid actor id")
	ErrInvalidResultCode = errors.New("invalid call result code")

	// Registration errors
	ErrInvalidThreadName = errors.New("invalid thread name")
	ErrThreadExists      = errors.New("thread already exists")
	ErrUnknownThread     = errors.New("thread does not exist")
	ErrNoThreads         = errors.New("no pooled threads exist, call CreateThread first")
	ErrNilActor          = errors.New("actor is nil")
	ErrDuplicateActor    = errors.New("actor already resident on thread")
	ErrThreadStopped     = errors.New("thread stopped")
	ErrUnsupported       = errors.New("operation not supported by thread")
	ErrRuntimeClosed     = errors.New("runtime closed")
)

// PanicError wraps a value recovered from a panicking handler, cleanup or
// adapted operation.
type PanicError struct {
	Recovered any
	Stack     []byte
}

func (e *PanicError) Error() string { return fmt.Sprintf("panic: %v", e.Recovered) }

// Unwrap exposes the recovered value if it was an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Recovered.(error); ok {
		return err
	}
	return nil
}

func mustValidID(id ID) {
	if id < 1 {
		panic(fmt.Errorf("%w: %d", ErrInvalidID, id))
	}
}
