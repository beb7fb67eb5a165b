package actor

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type failingRW struct{ err error }

func (f failingRW) Read([]byte) (int, error)  { return 0, f.err }
func (f failingRW) Write([]byte) (int, error) { return 0, f.err }

type shortWriter struct{}

func (shortWriter) Write(p []byte) (int, error) { return len(p) / 2, nil }

type panickingWriter struct{}

func (panickingWriter) Write([]byte) (int, error) {
	panic("writer must not be touched")
}

func TestIOBuffer(t *testing.T) {
	buf := NewIOBuffer(0)
	require.Len(t, buf.Data, DefaultBufferSize)
	require.Empty(t, buf.Bytes())

	buf = NewIOBuffer(3)
	copy(buf.Data, "abc")
	buf.Count = 2
	require.Equal(t, []byte("ab"), buf.Bytes())
}

func TestStartRead(t *testing.T) {
	s := newTestSystem(t, "T1")
	rec := newRecorder()
	id, err := s.AddActor(rec)
	require.NoError(t, err)

	r := strings.NewReader("hello")
	buf := NewIOBuffer(16)

	call := s.StartRead(r, buf, id)
	msg := rec.nextMsg(t)
	require.Equal(t, CodeCompleted, msg.Code)
	require.Equal(t, call, msg.CallID)
	require.Equal(t, 5, msg.Payload)
	require.Equal(t, "hello", string(buf.Bytes()))

	// end of stream
	s.StartRead(r, buf, id)
	msg = rec.nextMsg(t)
	require.Equal(t, CodeCompleted, msg.Code)
	require.Equal(t, 0, msg.Payload)
	require.Zero(t, buf.Count)
}

func TestStartRead_error(t *testing.T) {
	s := newTestSystem(t, "T1")
	rec := newRecorder()
	id, err := s.AddActor(rec)
	require.NoError(t, err)

	boom := errors.New("disk on fire")
	s.StartRead(failingRW{err: boom}, NewIOBuffer(8), id)

	msg := rec.nextMsg(t)
	require.Equal(t, CodeError, msg.Code)
	require.ErrorIs(t, msg.Err(), boom)
}

func TestStartWrite(t *testing.T) {
	s := newTestSystem(t, "T1")
	rec := newRecorder()
	id, err := s.AddActor(rec)
	require.NoError(t, err)

	var out bytes.Buffer
	buf := NewIOBuffer(8)
	buf.Count = copy(buf.Data, "data")

	call := s.StartWrite(&out, buf, id)
	msg := rec.nextMsg(t)
	require.Equal(t, CodeCompleted, msg.Code)
	require.Equal(t, call, msg.CallID)
	require.Equal(t, 4, msg.Payload)
	require.Equal(t, "data", out.String())
}

func TestStartWrite_zero_length(t *testing.T) {
	s := newTestSystem(t, "T1")
	rec := newRecorder()
	id, err := s.AddActor(rec)
	require.NoError(t, err)

	call := s.StartWrite(panickingWriter{}, NewIOBuffer(8), id)
	require.Positive(t, call)
	require.Zero(t, s.Stats().OutstandingCalls)
	require.Zero(t, s.Stats().Ops)

	msg := rec.nextMsg(t)
	require.Equal(t, CodeCompleted, msg.Code)
	require.Equal(t, call, msg.CallID)
	require.Equal(t, 0, msg.Payload)

	// the short-circuit still draws a fresh id
	next := s.ScheduleTimeout(id, 0)
	require.Greater(t, next, call)
}

func TestStartWrite_errors(t *testing.T) {
	tests := []struct {
		name string
		w    io.Writer
		want error
	}{
		{"short write", shortWriter{}, io.ErrShortWrite},
		{"writer error", failingRW{err: io.ErrClosedPipe}, io.ErrClosedPipe},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestSystem(t, "T1")
			rec := newRecorder()
			id, err := s.AddActor(rec)
			require.NoError(t, err)

			buf := NewIOBuffer(8)
			buf.Count = 8
			s.StartWrite(tt.w, buf, id)

			msg := rec.nextMsg(t)
			require.Equal(t, CodeError, msg.Code)
			require.ErrorIs(t, msg.Err(), tt.want)
		})
	}
}
