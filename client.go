package myftp

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/bassosimone/errclass"
	"github.com/bassosimone/safeconn"
)

// Reply codes the client waits for.
const (
	CodeServiceReady     = 220
	CodeNeedPassword     = 331
	CodeLoggedIn         = 230
	CodeTransferComplete = 226
	CodeClosing          = 221
)

// Client represents one control connection to a server.
//
// A Client is not safe for concurrent use: commands are strictly sequential
// and the client owns the connection until Close or Quit.
type Client struct {
	// conn is the control connection
	conn net.Conn

	// reader buffers the control connection into reply lines
	reader *bufio.Reader

	// timeout bounds each read and write (zero means no deadline)
	timeout time.Duration

	// logger is used for debug logging
	logger *slog.Logger

	// dialer is used to establish the connection
	dialer Dialer

	// echo receives every parsed reply for the operator
	echo io.Writer

	// errClassifier labels errors in log records
	errClassifier func(error) string

	// progress is called with the running byte count of a retrieval
	progress func(int64)

	// maxRate limits retrieval speed in bytes per second (0 is unlimited)
	maxRate int64

	// authenticated is set once PASS is accepted
	authenticated bool

	// laddr and raddr are captured at construction for logging
	laddr string
	raddr string

	closeOnce sync.Once
	closeErr  error
}

func newClient(options []Option) (*Client, error) {
	c := &Client{
		dialer:        &net.Dialer{},
		logger:        slog.New(slog.DiscardHandler),
		errClassifier: errclass.New,
	}

	for _, opt := range options {
		if err := opt(c); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	return c, nil
}

// NewClient wraps an already established control connection.
// The greeting has not been read yet; call Greet before any other command.
func NewClient(conn net.Conn, options ...Option) (*Client, error) {
	c, err := newClient(options)
	if err != nil {
		return nil, err
	}
	c.attach(conn)
	return c, nil
}

// Dial connects to a server at the given address.
// The address should be in the form "host:port".
//
// Dial only opens the connection; the caller reads the greeting with Greet.
//
// Example:
//
//	client, err := myftp.Dial(ctx, "ftp.example.com:21")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	if _, err := client.Greet(); err != nil {
//	    log.Fatal(err)
//	}
func Dial(ctx context.Context, addr string, options ...Option) (*Client, error) {
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return nil, &ConnectError{Addr: addr, Err: fmt.Errorf("invalid address: %w", err)}
	}

	c, err := newClient(options)
	if err != nil {
		return nil, err
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	c.logger.Info("connectStart", slog.String("remoteAddr", addr))
	conn, err := c.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		c.logger.Info("connectDone",
			slog.String("remoteAddr", addr),
			slog.Any("err", err),
			slog.String("errClass", c.errClassifier(err)),
		)
		return nil, &ConnectError{Addr: addr, Err: err}
	}

	c.attach(conn)
	c.logger.Info("connectDone",
		slog.String("localAddr", c.laddr),
		slog.String("protocol", safeconn.Network(conn)),
		slog.String("remoteAddr", c.raddr),
	)
	return c, nil
}

// attach takes ownership of conn.
func (c *Client) attach(conn net.Conn) {
	c.laddr = safeconn.LocalAddr(conn)
	c.raddr = safeconn.RemoteAddr(conn)
	if c.timeout > 0 {
		conn = &deadlineConn{Conn: conn, timeout: c.timeout}
	}
	c.conn = conn
	c.reader = bufio.NewReader(eofReader{r: conn})
}

// Greet reads the server greeting without sending anything.
// Any code other than 220 is returned as a *ProtocolError.
func (c *Client) Greet() (*Reply, error) {
	reply, err := c.receiveReply("CONNECT")
	if err != nil {
		return nil, fmt.Errorf("failed to read greeting: %w", err)
	}

	if reply.Code != CodeServiceReady {
		return reply, newProtocolError("CONNECT", reply, CodeServiceReady)
	}

	return reply, nil
}

// User sends the USER command and requires a 331 (need password) reply.
func (c *Client) User(username string) (*Reply, error) {
	return c.expectCode(CodeNeedPassword, Command{Op: "USER", Arg: username})
}

// Pass sends the PASS command and requires a 230 (logged in) reply.
// On success the client is marked as authenticated.
func (c *Client) Pass(password string) (*Reply, error) {
	reply, err := c.expectCode(CodeLoggedIn, Command{Op: "PASS", Arg: password})
	if err != nil {
		return reply, err
	}
	c.authenticated = true
	return reply, nil
}

// Login authenticates with the server using the provided username and password.
// PASS is only sent after USER was answered with 331.
func (c *Client) Login(username, password string) error {
	if _, err := c.User(username); err != nil {
		return err
	}
	if _, err := c.Pass(password); err != nil {
		return err
	}
	return nil
}

// Authenticated reports whether the last login handshake succeeded.
func (c *Client) Authenticated() bool {
	return c.authenticated
}

// Quit sends the QUIT command, expecting 221, and then closes the
// connection. The connection is closed even if the exchange fails.
//
// Once the server confirmed with 221 the session is over, so a failure to
// close is only logged (see the closeDone record).
func (c *Client) Quit() error {
	_, err := c.expectCode(CodeClosing, Command{Op: "QUIT"})
	_ = c.Close()
	return err
}

// Close closes the control connection. Subsequent calls return the result
// of the first one without touching the connection again.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.conn.Close()
		c.authenticated = false
		c.logger.Info("closeDone",
			slog.String("localAddr", c.laddr),
			slog.String("remoteAddr", c.raddr),
			slog.Any("err", c.closeErr),
			slog.String("errClass", c.errClassifier(c.closeErr)),
		)
	})
	return c.closeErr
}
