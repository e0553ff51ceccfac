package myftp

import (
	"context"
	"io"
	"log/slog"
	"net"
	"time"
)

// Option is a functional option for configuring an FTP client.
type Option func(*Client) error

// Dialer abstracts the [*net.Dialer] behavior so tests and callers can
// supply their own transport.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// WithTimeout bounds every read and write on the control connection.
// The default is zero, which blocks until data arrives or the peer goes away.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) error {
		c.timeout = timeout
		return nil
	}
}

// WithLogger enables debug logging using the provided logger.
// All commands and replies will be logged at debug level.
//
// Example:
//
//	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	}))
//	client, _ := myftp.Dial(ctx, "ftp.example.com:21", myftp.WithLogger(logger))
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) error {
		if logger != nil {
			c.logger = logger
		}
		return nil
	}
}

// WithDialer sets a custom dialer for establishing the control connection.
func WithDialer(dialer Dialer) Option {
	return func(c *Client) error {
		c.dialer = dialer
		return nil
	}
}

// WithEcho writes every parsed reply as "<code> <message>" to w.
// This is how the operator sees the server's side of the conversation.
func WithEcho(w io.Writer) Option {
	return func(c *Client) error {
		c.echo = w
		return nil
	}
}

// WithErrClassifier sets the function used to label errors in log records.
// The default uses errclass.New.
func WithErrClassifier(classify func(error) string) Option {
	return func(c *Client) error {
		if classify != nil {
			c.errClassifier = classify
		}
		return nil
	}
}

// WithRateLimit caps how fast a retrieval is written to its destination,
// in bytes per second. Zero or negative means unlimited.
func WithRateLimit(bytesPerSecond int64) Option {
	return func(c *Client) error {
		c.maxRate = bytesPerSecond
		return nil
	}
}

// WithProgress registers a callback that receives the running byte count
// of each retrieval.
func WithProgress(callback func(bytesTransferred int64)) Option {
	return func(c *Client) error {
		c.progress = callback
		return nil
	}
}
