package session

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/bassosimone/runtimex"
	"github.com/gonzalop/myftp"
	"github.com/google/uuid"
)

// MaxInputLength is the maximum length of an operator input line.
const MaxInputLength = 4096

// ErrNoGreeting is returned by Run when the server did not greet with 220.
var ErrNoGreeting = errors.New("session: did not receive initial message from server")

// Config configures a Controller.
type Config struct {
	// Input is where operator lines are read from (typically os.Stdin).
	Input io.Reader

	// Output receives prompts and diagnostics (typically os.Stdout).
	Output io.Writer

	// ReadSecret reads the password after printing prompt. When nil, the
	// password is read as a normal input line.
	ReadSecret func(prompt string) (string, error)

	// RequireAuthForRetrieval refuses get until the login handshake has
	// succeeded. When false, get is sent regardless of the login outcome.
	RequireAuthForRetrieval bool

	// LocalDir is the directory retrieved files are written to. Empty
	// means the current working directory.
	LocalDir string

	// Logger receives lifecycle events. Nil discards them.
	Logger *slog.Logger
}

// Controller drives one session: greeting, login, then the operator
// command loop until quit.
type Controller struct {
	client    *myftp.Client
	cfg       Config
	input     *bufio.Reader
	logger    *slog.Logger
	sessionID string
	state     State
}

// New creates a controller that owns client. The client must not have
// read the greeting yet.
func New(client *myftp.Client, cfg Config) *Controller {
	runtimex.Assert(client != nil)
	runtimex.Assert(cfg.Input != nil && cfg.Output != nil)

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	sessionID := generateSessionID()

	return &Controller{
		client:    client,
		cfg:       cfg,
		input:     bufio.NewReader(cfg.Input),
		logger:    logger.With(slog.String("sessionID", sessionID)),
		sessionID: sessionID,
		state:     StateConnecting,
	}
}

// generateSessionID returns a UUIDv7 identifying this session in logs.
func generateSessionID() string {
	return runtimex.PanicOnError1(uuid.NewV7()).String()
}

// SessionID returns the identifier attached to every log record.
func (c *Controller) SessionID() string {
	return c.sessionID
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	return c.state
}

// Authenticated reports whether the login handshake succeeded.
func (c *Controller) Authenticated() bool {
	return c.client.Authenticated()
}

func (c *Controller) setState(state State) {
	c.logger.Debug("session_state", slog.String("from", c.state.String()), slog.String("to", state.String()))
	c.state = state
}

// Run executes the whole session. It returns nil after a quit, and an
// error when the session ended because of a startup or connection-level
// failure. The transport is closed when Run returns.
func (c *Controller) Run() error {
	defer c.terminate()

	c.logger.Info("session_started")

	if _, err := c.client.Greet(); err != nil {
		c.println("Did not receive initial message from server.")
		return fmt.Errorf("%w: %w", ErrNoGreeting, err)
	}
	c.setState(StateGreeted)

	if err := c.authenticate(); err != nil {
		return err
	}
	c.setState(StateReady)

	return c.operate()
}

// terminate closes the transport and enters the absorbing state.
func (c *Controller) terminate() {
	if err := c.client.Close(); err != nil {
		c.logger.Debug("session_close", slog.Any("err", err))
	}
	if c.state != StateTerminated {
		c.setState(StateTerminated)
	}
	c.logger.Info("session_ended")
}

// authenticate runs the login handshake once. A rejected login is
// reported and the session continues; only fatal errors are returned.
func (c *Controller) authenticate() error {
	c.setState(StateAuthenticating)

	username, err := c.prompt("username: ")
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	if username == "" && err != nil {
		// Input closed before a name was typed: nothing to log in with
		c.logger.Info("login_skipped")
		return nil
	}

	if _, err := c.client.User(username); err != nil {
		if myftp.IsFatal(err) {
			return err
		}
		c.println("Failed to receive password from server.")
		c.logger.Info("login_failed", slog.String("user", username), slog.Any("err", err))
		return nil
	}

	password, err := c.readSecret("passwd: ")
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}

	if _, err := c.client.Pass(password); err != nil {
		if myftp.IsFatal(err) {
			return err
		}
		c.println("Auth failed. User could not log in.")
		c.logger.Info("login_failed", slog.String("user", username), slog.Any("err", err))
		return nil
	}

	c.logger.Info("login_succeeded", slog.String("user", username))
	return nil
}

// operate is the Ready loop. Each iteration builds its own command value.
func (c *Controller) operate() error {
	for c.state == StateReady {
		line, err := c.prompt("Operation: ")
		eof := errors.Is(err, io.EOF)
		if err != nil && !eof {
			return err
		}

		cmd := parseOperatorCommand(line)
		if cmd.name != "" {
			if err := c.dispatch(cmd); err != nil {
				return err
			}
		}

		// No more operator input: leave the way quit would
		if eof && c.state == StateReady {
			c.logger.Info("operator_input_closed")
			return c.handleQuit("")
		}
	}
	return nil
}

// prompt prints p and reads one operator line without its terminator.
func (c *Controller) prompt(p string) (string, error) {
	fmt.Fprint(c.cfg.Output, p)
	return c.readLine()
}

func (c *Controller) readSecret(p string) (string, error) {
	if c.cfg.ReadSecret != nil {
		return c.cfg.ReadSecret(p)
	}
	return c.prompt(p)
}

func (c *Controller) readLine() (string, error) {
	var line []byte
	for {
		b, err := c.input.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return strings.TrimRight(string(line), "\r"), io.EOF
			}
			return "", fmt.Errorf("failed to read operator input: %w", err)
		}

		if b == '\n' {
			return strings.TrimRight(string(line), "\r"), nil
		}

		if len(line) >= MaxInputLength {
			// Drop the rest of an overlong line
			continue
		}
		line = append(line, b)
	}
}

func (c *Controller) println(msg string) {
	fmt.Fprintln(c.cfg.Output, msg)
}

func (c *Controller) printf(format string, args ...any) {
	fmt.Fprintf(c.cfg.Output, format, args...)
}
