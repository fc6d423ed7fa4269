// Package plugintest drives a plugin through its real transports from tests.
//
// A Harness speaks JSON-RPC to a plugin served over in-process stdio pipes,
// loopback HTTP, or the stdio of a child process:
//
//	h := plugintest.NewStdio(t, options()...)
//	res := h.Result("kernel_start", map[string]any{"kernel": "echo"})
//
// Every harness is shut down by t.Cleanup.
package plugintest

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/mnehpets/oneplugin/config"
	"github.com/mnehpets/oneplugin/jsonrpc"
	"github.com/mnehpets/oneplugin/plugin"
	"github.com/mnehpets/oneplugin/transport"
)

// DefaultTimeout bounds each exchange with the plugin.
const DefaultTimeout = 5 * time.Second

// Harness sends JSON-RPC requests to one plugin and returns its responses.
type Harness struct {
	// Timeout bounds each Send. It defaults to DefaultTimeout.
	Timeout time.Duration

	t      testing.TB
	send   func(ctx context.Context, raw []byte) ([]byte, error)
	nextID atomic.Int64
}

func newHarness(t testing.TB, send func(ctx context.Context, raw []byte) ([]byte, error)) *Harness {
	return &Harness{Timeout: DefaultTimeout, t: t, send: send}
}

// Send writes one raw request envelope and returns the raw response.
func (h *Harness) Send(raw []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), h.Timeout)
	defer cancel()
	return h.send(ctx, raw)
}

// Call sends method with params, which may be nil, a slice for positional
// params or a map or struct for named params. An error envelope is returned
// as a *jsonrpc.JSONRPCError.
func (h *Harness) Call(method string, params any) (json.RawMessage, error) {
	req := map[string]any{"jsonrpc": jsonrpc.Version, "id": h.nextID.Add(1), "method": method}
	if params != nil {
		req["params"] = params
	}
	raw, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("plugintest: encode request: %w", err)
	}
	out, err := h.Send(raw)
	if err != nil {
		return nil, err
	}

	var env struct {
		Result json.RawMessage       `json:"result"`
		Error  *jsonrpc.JSONRPCError `json:"error"`
	}
	if err := json.Unmarshal(out, &env); err != nil {
		return nil, fmt.Errorf("plugintest: decode response %q: %w", out, err)
	}
	if env.Error != nil {
		return nil, env.Error
	}
	return env.Result, nil
}

// Result calls method and fails the test unless it succeeds.
func (h *Harness) Result(method string, params any) json.RawMessage {
	h.t.Helper()
	res, err := h.Call(method, params)
	require.NoError(h.t, err, "call %s", method)
	return res
}

// Invoke calls method and decodes its result into dst.
func (h *Harness) Invoke(method string, params any, dst any) {
	h.t.Helper()
	require.NoError(h.t, json.Unmarshal(h.Result(method, params), dst), "decode %s result", method)
}

// lines exchanges newline-delimited envelopes over a writer and reader.
type lines struct {
	mu sync.Mutex
	w  io.Writer
	r  *bufio.Reader
}

func (l *lines) send(ctx context.Context, raw []byte) ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	type reply struct {
		line []byte
		err  error
	}
	done := make(chan reply, 1)
	go func() {
		if _, err := l.w.Write(append(bytes.TrimRight(raw, "\r\n"), '\n')); err != nil {
			done <- reply{err: fmt.Errorf("plugintest: write request: %w", err)}
			return
		}
		line, err := l.r.ReadBytes('\n')
		if err != nil {
			done <- reply{err: fmt.Errorf("plugintest: no response from plugin: %w", err)}
			return
		}
		done <- reply{line: bytes.TrimRight(line, "\r\n")}
	}()

	select {
	case rep := <-done:
		return rep.line, rep.err
	case <-ctx.Done():
		return nil, fmt.Errorf("plugintest: waiting for response: %w", ctx.Err())
	}
}

// NewStdio serves a plugin built from opts over in-process stdio pipes.
func NewStdio(t testing.TB, opts ...plugin.Option) *Harness {
	t.Helper()
	reqR, reqW := io.Pipe()
	respR, respW := io.Pipe()

	all := append([]plugin.Option{}, opts...)
	p, err := plugin.New(append(all, plugin.WithStdio(reqR, respW))...)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() {
		err := p.Run(ctx, config.Default())
		respW.Close()
		runErr <- err
	}()

	t.Cleanup(func() {
		// A bare newline ends the stdio session.
		go reqW.Write([]byte("\n"))
		select {
		case err := <-runErr:
			if err != nil {
				t.Errorf("plugintest: stdio plugin: %v", err)
			}
		case <-time.After(DefaultTimeout):
			t.Errorf("plugintest: stdio plugin did not stop")
		}
		cancel()
		reqW.Close()
		respR.Close()
	})
	return newHarness(t, (&lines{w: reqW, r: bufio.NewReader(respR)}).send)
}

// NewHTTP serves a plugin built from opts over loopback HTTP with a random
// bearer token.
func NewHTTP(t testing.TB, opts ...plugin.Option) *Harness {
	t.Helper()
	p, err := plugin.New(opts...)
	require.NoError(t, err)

	token := uuid.NewString()
	srv := transport.NewHTTPServer(p.Server(), transport.HTTPOptions{
		Token:           token,
		MaxBodyBytes:    config.DefaultMaxBodyBytes,
		ShutdownTimeout: config.DefaultShutdownTimeout,
	})
	require.NoError(t, srv.Listen(0))
	url := "http://" + srv.Addr().String() + "/"

	ctx, cancel := context.WithCancel(context.Background())
	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve(ctx) }()

	t.Cleanup(func() {
		cancel()
		if err := errors.Join(<-serveErr, p.Close(context.Background())); err != nil {
			t.Errorf("plugintest: http plugin: %v", err)
		}
	})

	client := &http.Client{}
	return newHarness(t, func(ctx context.Context, raw []byte) ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("plugintest: http request: %w", err)
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("plugintest: read response: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("plugintest: http status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
		}
		return bytes.TrimRight(body, "\n"), nil
	})
}

// NewProcess starts cmd as a plugin child process serving stdio. The
// transport is selected through the environment, on top of cmd.Env (or the
// current environment when cmd.Env is nil). The process is killed at
// cleanup if it does not exit after its stdin is closed.
func NewProcess(t testing.TB, cmd *exec.Cmd) *Harness {
	t.Helper()
	env := cmd.Env
	if env == nil {
		env = os.Environ()
	}
	cmd.Env = append(env, config.EnvTransport+"="+config.TransportStdio)

	stdin, err := cmd.StdinPipe()
	require.NoError(t, err)
	stdout, err := cmd.StdoutPipe()
	require.NoError(t, err)
	var stderr bytes.Buffer
	if cmd.Stderr == nil {
		cmd.Stderr = &stderr
	}
	require.NoError(t, cmd.Start())

	t.Cleanup(func() {
		// Wait closes stdout, so it runs only once no more reads are due.
		stdin.Close()
		waitErr := make(chan error, 1)
		go func() { waitErr <- cmd.Wait() }()
		select {
		case err := <-waitErr:
			if err != nil {
				t.Errorf("plugintest: plugin process: %v\n%s", err, stderr.String())
			}
		case <-time.After(DefaultTimeout):
			cmd.Process.Kill()
			<-waitErr
			t.Errorf("plugintest: plugin process did not exit\n%s", stderr.String())
		}
	})
	return newHarness(t, (&lines{w: stdin, r: bufio.NewReader(stdout)}).send)
}
