// Package transport carries JSON-RPC envelopes between a host and a
// jsonrpc.Server, over stdio lines or loopback HTTP.
package transport

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
)

// Handler turns one request envelope into one response envelope.
// *jsonrpc.Server implements it.
type Handler interface {
	Handle(ctx context.Context, raw []byte) []byte
}

// HandlerFunc adapts a function to a Handler.
type HandlerFunc func(ctx context.Context, raw []byte) []byte

func (f HandlerFunc) Handle(ctx context.Context, raw []byte) []byte {
	return f(ctx, raw)
}

// ServeStdio reads newline-terminated request envelopes from r and writes
// one response line per request to w, strictly in order.
//
// The session ends with a nil error at EOF, when a line holds nothing but
// the line terminator, or when ctx is cancelled between lines. A final line
// without a terminator is still handled. Read and write failures end the
// session with the error.
func ServeStdio(ctx context.Context, r io.Reader, w io.Writer, h Handler, log *slog.Logger) error {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	br := bufio.NewReader(r)
	bw := bufio.NewWriter(w)

	log.Info("stdio transport started")
	defer log.Info("stdio transport stopped")

	for {
		if ctx.Err() != nil {
			return nil
		}

		line, err := br.ReadBytes('\n')
		atEOF := errors.Is(err, io.EOF)
		if err != nil && !atEOF {
			log.Error("stdio read failed", "error", err)
			return fmt.Errorf("transport: stdio read: %w", err)
		}

		if isTerminator(line, atEOF) {
			return nil
		}

		resp := h.Handle(ctx, bytes.TrimRight(line, "\r\n"))
		if err := writeLine(bw, resp); err != nil {
			log.Error("stdio write failed", "error", err)
			return fmt.Errorf("transport: stdio write: %w", err)
		}

		if atEOF {
			return nil
		}
	}
}

// isTerminator reports whether line ends the session: an empty read at EOF,
// or a line consisting of only "\n" or "\r\n".
func isTerminator(line []byte, atEOF bool) bool {
	if len(line) == 0 {
		return atEOF
	}
	return bytes.Equal(line, []byte("\n")) || bytes.Equal(line, []byte("\r\n"))
}

func writeLine(bw *bufio.Writer, b []byte) error {
	if _, err := bw.Write(b); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}
	return bw.Flush()
}
