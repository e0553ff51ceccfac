package myftp

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/gonzalop/myftp/internal/ratelimit"
	"github.com/zeebo/blake3"
)

// TransferResult describes one completed retrieval.
type TransferResult struct {
	// Name is the remote file name that was requested
	Name string

	// Bytes is the number of body bytes written to the sink
	Bytes int64

	// Start is the reply the server sent to RETR (often a size announcement)
	Start *Reply

	// Done is the closing reply (226 when the transfer completed)
	Done *Reply

	// Checksum is the hex BLAKE3-256 digest of the body, set only when
	// the transfer completed
	Checksum string
}

// Retrieve downloads remotePath to w over the control connection.
//
// If the server answers RETR with 550 the returned error matches
// ErrFileUnavailable and nothing is written to w. Otherwise the body is
// streamed until the server signals end of data, and a 226 reply is
// required to confirm the transfer.
//
// Example:
//
//	var buf bytes.Buffer
//	result, err := client.Retrieve("report.txt", &buf)
//	if errors.Is(err, myftp.ErrFileUnavailable) {
//	    fmt.Println("no such file")
//	}
func (c *Client) Retrieve(remotePath string, w io.Writer) (*TransferResult, error) {
	result, _, err := c.retrieve(remotePath, func() (io.WriteCloser, error) {
		return nopWriteCloser{w}, nil
	})
	return result, err
}

// DownloadFile retrieves remotePath into localPath.
//
// The local file is created (or truncated) only after the server accepted
// RETR, so a missing remote file leaves the local filesystem untouched. The
// file is always closed; it is removed only if the body stream broke. A
// connection lost after the whole body arrived keeps the file.
func (c *Client) DownloadFile(remotePath, localPath string) (*TransferResult, error) {
	created := false
	result, bodyFailed, err := c.retrieve(remotePath, func() (io.WriteCloser, error) {
		f, err := os.Create(localPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create local file: %w", err)
		}
		created = true
		return f, nil
	})

	if bodyFailed && created {
		// Clean up the partial file on a broken transfer
		_ = os.Remove(localPath)
	}

	return result, err
}

// retrieve performs the RETR handshake in explicit steps: the 550 gate,
// the body stream, and the 226 confirmation. bodyFailed reports a
// transport error while the body was being received.
func (c *Client) retrieve(remotePath string, open func() (io.WriteCloser, error)) (result *TransferResult, bodyFailed bool, err error) {
	result = &TransferResult{Name: remotePath}

	start, err := c.sendCommand(Command{Op: "RETR", Arg: remotePath})
	if err != nil {
		return result, false, err
	}
	result.Start = start

	if start.Code == CodeFileUnavailable {
		return result, false, newProtocolError("RETR", start, 0)
	}

	// A sink that cannot be opened still has to consume the body, or the
	// body would be read as replies.
	sink, openErr := open()
	if openErr != nil {
		sink = nopWriteCloser{io.Discard}
	}

	digest := blake3.New()
	bytes, bodyErr := c.receiveBody(sink, digest)
	if IsFatal(bodyErr) {
		return result, true, bodyErr
	}
	if openErr == nil {
		result.Bytes = bytes
	}

	done, err := c.receiveReply("RETR")
	if err != nil {
		return result, false, err
	}
	result.Done = done

	if openErr != nil {
		return result, false, &localError{err: openErr}
	}
	if bodyErr != nil {
		return result, false, bodyErr
	}

	if done.Code != CodeTransferComplete {
		return result, false, newProtocolError("RETR", done, CodeTransferComplete)
	}

	result.Checksum = hex.EncodeToString(digest.Sum(nil))
	c.logger.Debug("ftp transfer complete",
		slog.String("file", remotePath),
		slog.Int64("bytes", result.Bytes),
		slog.String("blake3", result.Checksum),
	)
	return result, false, nil
}

// receiveBody copies the transfer body into sink and digest until the
// transport yields no more data, and closes sink on every path. A failing
// sink stops receiving writes but the body is still drained.
func (c *Client) receiveBody(sink io.WriteCloser, digest io.Writer) (n int64, err error) {
	var sinkErr error
	defer func() {
		closeErr := sink.Close()
		if err != nil {
			return
		}
		if sinkErr == nil && closeErr != nil {
			sinkErr = fmt.Errorf("failed to close local file: %w", closeErr)
		}
		if sinkErr != nil {
			err = &localError{err: sinkErr}
		}
	}()

	pw := &ProgressWriter{
		Writer:   io.MultiWriter(ratelimit.NewWriter(sink, ratelimit.New(c.maxRate)), digest),
		Callback: c.progress,
	}
	buf := make([]byte, 32*1024)
	for {
		nr, rerr := c.reader.Read(buf)
		if nr > 0 && sinkErr == nil {
			if _, werr := pw.Write(buf[:nr]); werr != nil {
				sinkErr = fmt.Errorf("failed to write local file: %w", werr)
			}
		}
		if rerr != nil && !errors.Is(rerr, io.EOF) {
			c.logger.Info("ftp transfer failed",
				slog.Any("err", rerr),
				slog.String("errClass", c.errClassifier(rerr)),
			)
			return pw.Total(), fmt.Errorf("download failed: %w", rerr)
		}
		if nr == 0 || rerr != nil {
			return pw.Total(), nil
		}
	}
}

// localError wraps a failure of the local sink. It fails the current
// retrieval only.
type localError struct {
	err error
}

func (e *localError) Error() string {
	return e.err.Error()
}

func (e *localError) Unwrap() error {
	return e.err
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error {
	return nil
}
