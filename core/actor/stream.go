package actor

import (
	"context"
	"errors"
	"io"
)

// DefaultBufferSize is the capacity NewIOBuffer allocates when given size <= 0.
const DefaultBufferSize = 4096

// IOBuffer is the buffer StartRead fills and StartWrite drains. Count is the
// number of valid bytes in Data.
//
// The buffer belongs to the operation until its result arrives; the actor
// must not touch it in between.
type IOBuffer struct {
	Data  []byte
	Count int
}

func NewIOBuffer(size int) *IOBuffer {
	if size <= 0 {
		size = DefaultBufferSize
	}
	return &IOBuffer{Data: make([]byte, size)}
}

// Bytes returns the valid part of the buffer.
func (b *IOBuffer) Bytes() []byte { return b.Data[:b.Count] }

// StartRead reads once from r into buf.Data. The result is Completed with
// the number of bytes read as an int (0 at end of stream), Error, or
// Cancelled. buf.Count is set before the result is posted.
func (s *System) StartRead(r io.Reader, buf *IOBuffer, id ID) CallID {
	return s.runAsCall(callKindRead, id, func(ctx context.Context) (any, error) {
		n, err := r.Read(buf.Data)
		buf.Count = n
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
		return n, nil
	})
}

// StartWrite writes buf.Data[:buf.Count] to w. The result is Completed with
// the number of bytes written, Error, or Cancelled. A zero-length write
// completes immediately without touching w.
func (s *System) StartWrite(w io.Writer, buf *IOBuffer, id ID) CallID {
	if buf.Count == 0 {
		mustValidID(id)
		call := s.reg.nextCallID()
		s.sendCore(id, call, CodeCompleted, 0, 0)
		return call
	}
	return s.runAsCall(callKindWrite, id, func(ctx context.Context) (any, error) {
		n, err := w.Write(buf.Data[:buf.Count])
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if err != nil {
			return nil, err
		}
		if n != buf.Count {
			return nil, io.ErrShortWrite
		}
		return n, nil
	})
}
