package session

import (
	"errors"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/gonzalop/myftp"
)

// operatorCommand is one parsed operator line. A fresh value is built for
// every prompt.
type operatorCommand struct {
	name string
	arg  string
}

// parseOperatorCommand splits a line into the operation and the rest of
// the line. Operation names are case-insensitive.
func parseOperatorCommand(line string) operatorCommand {
	line = strings.TrimSpace(line)
	name, rest, _ := strings.Cut(line, " ")
	return operatorCommand{
		name: strings.ToLower(name),
		arg:  strings.TrimSpace(rest),
	}
}

// operatorHandlers maps operator commands to their handler functions.
// All handlers have the signature: func(c *Controller, arg string) error
// A handler returns an error only when the session cannot continue.
var operatorHandlers = map[string]func(*Controller, string) error{
	"get":  (*Controller).handleGet,
	"quit": (*Controller).handleQuit,
}

func (c *Controller) dispatch(cmd operatorCommand) error {
	c.logger.Debug("operator_command", slog.String("cmd", cmd.name), slog.String("arg", cmd.arg))

	handler, ok := operatorHandlers[cmd.name]
	if !ok {
		c.printf("%s: not implemented\n", cmd.name)
		return nil
	}
	return handler(c, cmd.arg)
}

// handleGet retrieves one file into the local directory. Every failure
// except a connection-level one leaves the session in Ready.
func (c *Controller) handleGet(arg string) error {
	if arg == "" {
		c.println("usage: get <file>")
		return nil
	}

	if c.cfg.RequireAuthForRetrieval && !c.client.Authenticated() {
		c.println("Not logged in.")
		return nil
	}

	localPath := filepath.Join(c.cfg.LocalDir, arg)
	result, err := c.client.DownloadFile(arg, localPath)
	if err == nil {
		c.logger.Info("transfer_complete",
			slog.String("file", arg),
			slog.String("localPath", localPath),
			slog.Int64("bytes", result.Bytes),
			slog.String("blake3", result.Checksum),
		)
		return nil
	}

	c.logger.Info("transfer_failed", slog.String("file", arg), slog.Any("err", err))

	var pe *myftp.ProtocolError
	switch {
	case errors.Is(err, myftp.ErrFileUnavailable):
		c.println("Couldn't find file or directory.")
	case myftp.IsFatal(err):
		return err
	case errors.As(err, &pe):
		c.println("Transfer did not finish.")
	default:
		c.println(err.Error())
	}
	return nil
}

// handleQuit runs the termination handshake. The session ends whatever
// the server answers.
func (c *Controller) handleQuit(_ string) error {
	err := c.client.Quit()
	c.setState(StateTerminated)
	if err == nil {
		return nil
	}

	if myftp.IsFatal(err) {
		return err
	}
	c.println("Failed to receive information from server.")
	return nil
}
