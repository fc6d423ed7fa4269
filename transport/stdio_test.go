package transport

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnehpets/oneplugin/jsonrpc"
)

func echoHandler() Handler {
	return HandlerFunc(func(ctx context.Context, raw []byte) []byte {
		return append([]byte("got:"), raw...)
	})
}

func TestServeStdioLines(t *testing.T) {
	var out bytes.Buffer
	in := strings.NewReader("one\ntwo\r\nthree")

	require.NoError(t, ServeStdio(context.Background(), in, &out, echoHandler(), nil))
	assert.Equal(t, "got:one\ngot:two\ngot:three\n", out.String())
}

func TestServeStdioEmptyLineTerminates(t *testing.T) {
	for _, term := range []string{"\n", "\r\n"} {
		var out bytes.Buffer
		in := strings.NewReader("one\n" + term + "never\n")

		require.NoError(t, ServeStdio(context.Background(), in, &out, echoHandler(), nil))
		assert.Equal(t, "got:one\n", out.String())
	}
}

func TestServeStdioEOF(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, ServeStdio(context.Background(), strings.NewReader(""), &out, echoHandler(), nil))
	assert.Empty(t, out.String())
}

func TestServeStdioCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var out bytes.Buffer
	require.NoError(t, ServeStdio(ctx, strings.NewReader("one\n"), &out, echoHandler(), nil))
	assert.Empty(t, out.String())
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("broken pipe") }

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestServeStdioIOErrors(t *testing.T) {
	err := ServeStdio(context.Background(), failingReader{}, io.Discard, echoHandler(), nil)
	assert.ErrorContains(t, err, "broken pipe")

	err = ServeStdio(context.Background(), strings.NewReader("one\n"), failingWriter{}, echoHandler(), nil)
	assert.ErrorContains(t, err, "disk full")
}

func TestServeStdioJSONRPC(t *testing.T) {
	m := jsonrpc.NewMethods()
	m.Register("ping", jsonrpc.Func(func(ctx context.Context, _ struct{}) (string, error) {
		return "pong", nil
	}))
	srv := jsonrpc.NewServer(m)

	in := strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"ping"}` + "\n" + `garbage` + "\n" + `{"jsonrpc":"2.0","id":2,"method":"ping"}` + "\n")
	var out bytes.Buffer
	require.NoError(t, ServeStdio(context.Background(), in, &out, srv, nil))

	lines := strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":1,"result":"pong"}`, lines[0])
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":null,"error":{"code":-32700,"message":"Parse error"}}`, lines[1])
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":2,"result":"pong"}`, lines[2])
}
