package myftp

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/bassosimone/runtimex"
)

// maxReplyLine bounds a single reply line, terminator included.
const maxReplyLine = 4096

// Reply represents one server reply on the control connection.
type Reply struct {
	// Code is the three-digit reply code (e.g., 220, 550)
	Code int

	// Message is the human-readable text following the code
	Message string

	// Line is the reply line as received, without the terminator
	Line string
}

// Is2xx returns true if the reply code is in the 2xx range (success).
func (r *Reply) Is2xx() bool {
	return r.Code >= 200 && r.Code < 300
}

// Is3xx returns true if the reply code is in the 3xx range (intermediate).
func (r *Reply) Is3xx() bool {
	return r.Code >= 300 && r.Code < 400
}

// Is4xx returns true if the reply code is in the 4xx range (temporary failure).
func (r *Reply) Is4xx() bool {
	return r.Code >= 400 && r.Code < 500
}

// Is5xx returns true if the reply code is in the 5xx range (permanent failure).
func (r *Reply) Is5xx() bool {
	return r.Code >= 500 && r.Code < 600
}

// String returns the reply line.
func (r *Reply) String() string {
	return r.Line
}

// ParseReply parses a single reply line.
//
// The expected format is "<ddd> <text>\r\n". A bare "\n" terminator is
// tolerated. The first digit must be in the range 1-5.
//
// Example:
//
//	reply, err := myftp.ParseReply("220 Service ready\r\n")
//	// reply.Code == 220, reply.Message == "Service ready"
func ParseReply(line string) (*Reply, error) {
	if !strings.HasSuffix(line, "\n") {
		return nil, fmt.Errorf("%w: missing line terminator: %q", ErrMalformedReply, line)
	}
	line = strings.TrimSuffix(line, "\n")
	line = strings.TrimSuffix(line, "\r")

	if len(line) < 4 {
		return nil, fmt.Errorf("%w: %q", ErrMalformedReply, line)
	}

	if line[0] < '1' || line[0] > '5' || !isDigit(line[1]) || !isDigit(line[2]) {
		return nil, fmt.Errorf("%w: invalid reply code: %q", ErrMalformedReply, line[0:3])
	}

	// Multi-line replies ("220-...") are not part of this protocol
	if line[3] != ' ' {
		return nil, fmt.Errorf("%w: invalid reply format: %q", ErrMalformedReply, line)
	}

	code := int(line[0]-'0')*100 + int(line[1]-'0')*10 + int(line[2]-'0')
	return &Reply{
		Code:    code,
		Message: line[4:],
		Line:    line,
	}, nil
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

// readReply reads one terminated line from r and parses it.
//
// Reads may split or coalesce replies; r buffers until a terminator is seen.
// End of stream before a complete line means the peer closed the connection.
func readReply(r *bufio.Reader) (*Reply, error) {
	var sb strings.Builder
	for {
		chunk, err := r.ReadSlice('\n')
		sb.Write(chunk)
		if sb.Len() > maxReplyLine {
			return nil, fmt.Errorf("%w: reply line exceeds %d bytes", ErrMalformedReply, maxReplyLine)
		}
		if err == nil {
			break
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil, ErrPeerClosed
		}
		return nil, err
	}
	return ParseReply(sb.String())
}

// Command is one protocol request: a four-letter operation and an
// optional argument. An empty Arg means the command has no argument.
type Command struct {
	Op  string
	Arg string
}

// Encode returns the command as a single protocol line.
//
// The argument is not escaped: an argument containing CR or LF corrupts the
// control stream.
func (c Command) Encode() string {
	runtimex.Assert(isOperationToken(c.Op))
	if c.Arg != "" {
		return c.Op + " " + c.Arg + "\r\n"
	}
	return c.Op + "\r\n"
}

// String returns the command as it would be logged. The PASS argument is
// redacted.
func (c Command) String() string {
	switch {
	case c.Arg == "":
		return c.Op
	case c.Op == "PASS":
		return "PASS ****"
	default:
		return c.Op + " " + c.Arg
	}
}

func isOperationToken(op string) bool {
	if len(op) != 4 {
		return false
	}
	for i := 0; i < len(op); i++ {
		if (op[i] < 'A' || op[i] > 'Z') && (op[i] < 'a' || op[i] > 'z') {
			return false
		}
	}
	return true
}

// sendCommand writes a command to the control connection and returns the
// reply.
func (c *Client) sendCommand(cmd Command) (*Reply, error) {
	c.logger.Debug("ftp command", slog.String("cmd", cmd.String()))

	if _, err := io.WriteString(c.conn, cmd.Encode()); err != nil {
		c.logger.Info("ftp command failed",
			slog.String("cmd", cmd.Op),
			slog.Any("err", err),
			slog.String("errClass", c.errClassifier(err)),
		)
		return nil, fmt.Errorf("failed to send command: %w", err)
	}

	return c.receiveReply(cmd.Op)
}

// receiveReply reads one reply, echoes it to the operator and logs it.
func (c *Client) receiveReply(op string) (*Reply, error) {
	reply, err := readReply(c.reader)
	if err != nil {
		c.logger.Info("ftp reply failed",
			slog.String("cmd", op),
			slog.Any("err", err),
			slog.String("errClass", c.errClassifier(err)),
		)
		if errors.Is(err, ErrPeerClosed) || errors.Is(err, ErrMalformedReply) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to read reply: %w", err)
	}

	if c.echo != nil {
		fmt.Fprintf(c.echo, "%d %s\n", reply.Code, reply.Message)
	}

	c.logger.Debug("ftp reply", slog.Int("code", reply.Code), slog.String("message", reply.Message))
	return reply, nil
}

// Exchange sends cmd and reads exactly one reply. It reports whether the
// reply code equals expected. On mismatch the actual reply is still returned.
//
// The error is non-nil only when the command could not be written, the peer
// closed the connection (ErrPeerClosed) or the reply was malformed
// (ErrMalformedReply).
func (c *Client) Exchange(cmd Command, expected int) (bool, *Reply, error) {
	reply, err := c.sendCommand(cmd)
	if err != nil {
		return false, nil, err
	}
	return reply.Code == expected, reply, nil
}

// expectCode sends a command and verifies the reply code matches the expected code.
// Returns a *ProtocolError if the code doesn't match.
func (c *Client) expectCode(expected int, cmd Command) (*Reply, error) {
	matched, reply, err := c.Exchange(cmd, expected)
	if err != nil {
		return nil, err
	}

	if !matched {
		return reply, newProtocolError(cmd.Op, reply, expected)
	}

	return reply, nil
}
