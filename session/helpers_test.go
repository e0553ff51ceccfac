package session

import (
	"bytes"
	"io"
	"net"
	"strings"
	"testing"

	"github.com/bassosimone/netstub"
	"github.com/gonzalop/myftp"
	"github.com/stretchr/testify/require"
)

// zeroRead is a script step that makes Read return (0, nil).
const zeroRead = "\x00zero-byte read\x00"

// serverScript replays canned server output, one step per Read, and
// records every command the client writes. An empty step ends a file body.
type serverScript struct {
	steps      []string
	pending    []byte
	written    bytes.Buffer
	closeCount int
}

func (s *serverScript) read(b []byte) (int, error) {
	if len(s.pending) > 0 {
		n := copy(b, s.pending)
		s.pending = s.pending[n:]
		return n, nil
	}
	if len(s.steps) == 0 {
		return 0, io.EOF
	}
	step := s.steps[0]
	s.steps = s.steps[1:]
	switch step {
	case "":
		return 0, io.EOF
	case zeroRead:
		return 0, nil
	}
	n := copy(b, step)
	s.pending = []byte(step[n:])
	return n, nil
}

func (s *serverScript) commands() []string {
	out := strings.TrimSuffix(s.written.String(), "\r\n")
	if out == "" {
		return nil
	}
	return strings.Split(out, "\r\n")
}

// harness wires a Controller to a scripted server and an in-memory
// terminal.
type harness struct {
	ctrl   *Controller
	server *serverScript
	output *bytes.Buffer
}

func newHarness(t *testing.T, input string, cfg Config, steps ...string) *harness {
	t.Helper()
	server := &serverScript{steps: steps}
	conn := &netstub.FuncConn{
		LocalAddrFunc:  func() net.Addr { return &net.TCPAddr{} },
		RemoteAddrFunc: func() net.Addr { return &net.TCPAddr{} },
		ReadFunc:       server.read,
		WriteFunc:      server.written.Write,
		CloseFunc: func() error {
			server.closeCount++
			return nil
		},
	}

	output := &bytes.Buffer{}
	client, err := myftp.NewClient(conn, myftp.WithEcho(output))
	require.NoError(t, err)

	cfg.Input = strings.NewReader(input)
	cfg.Output = output
	if cfg.LocalDir == "" {
		cfg.LocalDir = t.TempDir()
	}

	return &harness{
		ctrl:   New(client, cfg),
		server: server,
		output: output,
	}
}

// login is the server side of a successful login.
var login = []string{"220 Service ready\r\n", "331 Need password\r\n", "230 Logged in\r\n"}

func script(parts ...[]string) []string {
	var out []string
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
