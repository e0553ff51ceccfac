package myftp

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net"
	"strings"

	"github.com/bassosimone/netstub"
	"github.com/bassosimone/slogstub"
)

// endOfData is a script step that makes Read return (0, io.EOF) once.
const endOfData = ""

// zeroRead is a script step that makes Read return (0, nil) once, the way
// a transport reports that nothing more is coming.
const zeroRead = "\x00zero-byte read\x00"

// scriptedConn is a control connection whose reads are replayed from a
// script. Each step is returned by exactly one Read (split across calls if
// the caller's buffer is smaller). Writes are recorded.
type scriptedConn struct {
	steps      []string
	pending    []byte
	written    bytes.Buffer
	closeCount int
	readErr    error
}

// newScriptedConn returns a [*netstub.FuncConn] replaying steps, plus the
// script so the test can inspect what was written.
func newScriptedConn(steps ...string) (*netstub.FuncConn, *scriptedConn) {
	sc := &scriptedConn{steps: steps}
	conn := &netstub.FuncConn{
		LocalAddrFunc:  func() net.Addr { return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 54321} },
		RemoteAddrFunc: func() net.Addr { return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 2121} },
		ReadFunc:       sc.read,
		WriteFunc: func(b []byte) (int, error) {
			return sc.written.Write(b)
		},
		CloseFunc: func() error {
			sc.closeCount++
			return nil
		},
	}
	return conn, sc
}

func (sc *scriptedConn) read(b []byte) (int, error) {
	if len(sc.pending) > 0 {
		n := copy(b, sc.pending)
		sc.pending = sc.pending[n:]
		return n, nil
	}
	if len(sc.steps) == 0 {
		if sc.readErr != nil {
			return 0, sc.readErr
		}
		return 0, io.EOF
	}
	step := sc.steps[0]
	sc.steps = sc.steps[1:]
	switch step {
	case endOfData:
		return 0, io.EOF
	case zeroRead:
		return 0, nil
	}
	n := copy(b, step)
	sc.pending = []byte(step[n:])
	return n, nil
}

// commands returns the command lines written so far, without terminators.
func (sc *scriptedConn) commands() []string {
	s := strings.TrimSuffix(sc.written.String(), "\r\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\r\n")
}

// newScriptedClient wraps a scripted connection in a Client.
func newScriptedClient(steps ...string) (*Client, *scriptedConn, *bytes.Buffer) {
	conn, sc := newScriptedConn(steps...)
	echo := &bytes.Buffer{}
	c, err := NewClient(conn, WithEcho(echo))
	if err != nil {
		panic(err)
	}
	return c, sc, echo
}

// newCapturingLogger returns a logger that captures all log records into the
// returned slice.
func newCapturingLogger() (*slog.Logger, *[]slog.Record) {
	var records []slog.Record
	handler := &slogstub.FuncHandler{
		EnabledFunc: func(ctx context.Context, level slog.Level) bool {
			return true
		},
		HandleFunc: func(ctx context.Context, record slog.Record) error {
			records = append(records, record)
			return nil
		},
	}
	return slog.New(handler), &records
}

// recordMessages returns the messages of the captured records.
func recordMessages(records []slog.Record) []string {
	var out []string
	for _, r := range records {
		out = append(out, r.Message)
	}
	return out
}
