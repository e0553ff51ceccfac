package myftp

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockDialer is a test implementation of the Dialer interface
type mockDialer struct {
	dialFunc func(ctx context.Context, network, address string) (net.Conn, error)
}

func (m *mockDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	return m.dialFunc(ctx, network, address)
}

func TestNewClient_Defaults(t *testing.T) {
	t.Parallel()
	conn, _ := newScriptedConn()
	c, err := NewClient(conn)
	require.NoError(t, err)

	assert.Zero(t, c.timeout)
	assert.Nil(t, c.echo)
	assert.NotNil(t, c.logger)
	assert.IsType(t, &net.Dialer{}, c.dialer)
	assert.Equal(t, "127.0.0.1:54321", c.laddr)
	assert.Equal(t, "127.0.0.1:2121", c.raddr)
	assert.Same(t, conn, c.conn, "no deadline wrapper without a timeout")
}

func TestOptions(t *testing.T) {
	t.Parallel()
	var echo bytes.Buffer
	logger := slog.New(slog.DiscardHandler)
	dialer := &mockDialer{}

	conn, _ := newScriptedConn()
	c, err := NewClient(conn,
		WithTimeout(3*time.Second),
		WithLogger(logger),
		WithDialer(dialer),
		WithEcho(&echo),
		WithErrClassifier(func(error) string { return "EFOO" }),
		WithProgress(func(int64) {}),
		WithRateLimit(1024),
	)
	require.NoError(t, err)

	assert.Equal(t, 3*time.Second, c.timeout)
	assert.Same(t, logger, c.logger)
	assert.Same(t, dialer, c.dialer)
	assert.Same(t, &echo, c.echo)
	assert.Equal(t, "EFOO", c.errClassifier(errors.New("x")))
	assert.NotNil(t, c.progress)
	assert.Equal(t, int64(1024), c.maxRate)
	assert.IsType(t, &deadlineConn{}, c.conn)
}

func TestOptions_NilValuesKeepDefaults(t *testing.T) {
	t.Parallel()
	conn, _ := newScriptedConn()
	c, err := NewClient(conn, WithLogger(nil), WithErrClassifier(nil))
	require.NoError(t, err)
	assert.NotNil(t, c.logger)
	require.NotNil(t, c.errClassifier)
	assert.Equal(t, "", c.errClassifier(nil))
}

func TestWithDialer_ReceivesContext(t *testing.T) {
	t.Parallel()
	type key struct{}
	ctx := context.WithValue(context.Background(), key{}, "marker")

	var sawMarker, sawDeadline bool
	dialer := &mockDialer{
		dialFunc: func(ctx context.Context, network, address string) (net.Conn, error) {
			sawMarker = ctx.Value(key{}) == "marker"
			_, sawDeadline = ctx.Deadline()
			return nil, errors.New("unreachable")
		},
	}

	_, err := Dial(ctx, "127.0.0.1:21", WithDialer(dialer), WithTimeout(time.Second))
	require.Error(t, err)
	assert.True(t, sawMarker)
	assert.True(t, sawDeadline, "the timeout also bounds the dial")
}
