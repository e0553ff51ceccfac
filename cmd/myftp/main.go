// Command myftp is an interactive client for the myftp control protocol.
//
// Run with:
//
//	myftp [flags] <server-address> <server-port>
//
// After the greeting and login prompts, the client accepts:
//
//	get <file>   retrieve <file> into the current directory
//	quit         end the session
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/gonzalop/myftp"
	"github.com/gonzalop/myftp/internal/config"
	"github.com/gonzalop/myftp/internal/logging"
	"github.com/gonzalop/myftp/session"
	"github.com/spf13/pflag"
	"golang.org/x/term"
)

const (
	exitOK      = 0
	exitFailure = 1
)

// UsageError reports a bad command line. It is detected before any
// network activity.
type UsageError struct {
	msg string
}

func (e *UsageError) Error() string {
	return e.msg
}

// options holds the parsed command line.
type options struct {
	configPath   string
	timeout      time.Duration
	requireAuth  bool
	logLevel     string
	logFormat    string
	quietReplies bool
	maxRate      int64

	host string
	port string
}

// env is the process environment the client runs against.
type env struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	dialer myftp.Dialer

	// readSecret reads the password with echo disabled; nil falls back to
	// plain line input.
	readSecret func(prompt string) (string, error)
}

func main() {
	e := &env{
		stdin:      os.Stdin,
		stdout:     os.Stdout,
		stderr:     os.Stderr,
		dialer:     &net.Dialer{},
		readSecret: terminalSecretReader(os.Stdin, os.Stdout),
	}
	os.Exit(run(os.Args[1:], e))
}

func newFlagSet(opts *options, stderr io.Writer) *pflag.FlagSet {
	fs := pflag.NewFlagSet("myftp", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.configPath, "config", "", "path to a TOML, YAML or JSONC config file")
	fs.DurationVar(&opts.timeout, "timeout", 0, "per read/write timeout on the control connection (0 disables)")
	fs.BoolVar(&opts.requireAuth, "require-auth", false, "refuse get until login succeeded")
	fs.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error, off")
	fs.StringVar(&opts.logFormat, "log-format", "", "log format: text or json (default: text on a terminal)")
	fs.BoolVar(&opts.quietReplies, "quiet-replies", false, "do not print server replies")
	fs.Int64Var(&opts.maxRate, "max-rate", 0, "limit download speed in bytes per second (0 is unlimited)")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "usage: myftp [flags] <server-address> <server-port>\n")
		fs.PrintDefaults()
	}
	return fs
}

// parseArgs parses the command line into opts. Exactly two positional
// arguments are accepted.
func parseArgs(args []string, stderr io.Writer) (*options, *pflag.FlagSet, error) {
	opts := &options{}
	fs := newFlagSet(opts, stderr)
	if err := fs.Parse(args); err != nil {
		return nil, fs, err
	}
	if fs.NArg() != 2 {
		return nil, fs, &UsageError{msg: fmt.Sprintf("expected 2 arguments, got %d", fs.NArg())}
	}
	opts.host = fs.Arg(0)
	opts.port = fs.Arg(1)
	return opts, fs, nil
}

// resolveConfig merges file, environment and flags; flags win.
func resolveConfig(opts *options, fs *pflag.FlagSet) (config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if fs.Changed("timeout") {
		cfg.Timeout = opts.timeout
	}
	if fs.Changed("require-auth") {
		cfg.RequireAuthForRetrieval = opts.requireAuth
	}
	if fs.Changed("log-level") {
		cfg.LogLevel = opts.logLevel
	}
	if fs.Changed("log-format") {
		cfg.LogFormat = opts.logFormat
	}
	if fs.Changed("quiet-replies") {
		cfg.EchoReplies = !opts.quietReplies
	}
	if fs.Changed("max-rate") {
		cfg.MaxRate = opts.maxRate
	}
	return cfg, config.Validate(cfg)
}

func run(args []string, e *env) int {
	opts, fs, err := parseArgs(args, e.stderr)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintf(e.stderr, "myftp: %v\n", err)
		fs.Usage()
		return exitFailure
	}

	cfg, err := resolveConfig(opts, fs)
	if err != nil {
		fmt.Fprintf(e.stderr, "myftp: %v\n", err)
		return exitFailure
	}

	logger := logging.New(e.stderr, cfg.LogLevel, cfg.LogFormat)

	clientOpts := []myftp.Option{
		myftp.WithLogger(logger),
		myftp.WithDialer(e.dialer),
		myftp.WithTimeout(cfg.Timeout),
		myftp.WithRateLimit(cfg.MaxRate),
	}
	if cfg.EchoReplies {
		clientOpts = append(clientOpts, myftp.WithEcho(e.stdout))
	}

	addr := net.JoinHostPort(opts.host, opts.port)
	client, err := myftp.Dial(context.Background(), addr, clientOpts...)
	if err != nil {
		fmt.Fprintf(e.stdout, "Connection error: %v\n", err)
		return exitFailure
	}

	ctrl := session.New(client, session.Config{
		Input:                   e.stdin,
		Output:                  e.stdout,
		ReadSecret:              e.readSecret,
		RequireAuthForRetrieval: cfg.RequireAuthForRetrieval,
		Logger:                  logger,
	})

	if err := ctrl.Run(); err != nil {
		logger.Error("session failed", slog.String("sessionID", ctrl.SessionID()), slog.Any("err", err))
		if !errors.Is(err, session.ErrNoGreeting) {
			fmt.Fprintf(e.stdout, "Connection closed: %v\n", err)
		}
		return exitFailure
	}
	return exitOK
}

// terminalSecretReader returns a password reader with echo disabled when
// in is a terminal, and nil otherwise.
func terminalSecretReader(in *os.File, out io.Writer) func(string) (string, error) {
	fd := int(in.Fd())
	if !term.IsTerminal(fd) {
		return nil
	}
	return func(prompt string) (string, error) {
		fmt.Fprint(out, prompt)
		password, err := term.ReadPassword(fd)
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		return string(password), nil
	}
}
