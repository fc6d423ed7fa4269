package plugintest

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnehpets/oneplugin/jsonrpc"
	"github.com/mnehpets/oneplugin/kernel"
	"github.com/mnehpets/oneplugin/plugin"
)

type greetParams struct {
	Name string `json:"name"`
}

func testOptions() []plugin.Option {
	return []plugin.Option{
		plugin.WithName("greeter"),
		plugin.WithKernels(kernel.Class("plain", func(base kernel.Base, _ []json.RawMessage) (kernel.Kernel, error) {
			return &base, nil
		})),
		plugin.WithMethod("greet", jsonrpc.Func(func(_ context.Context, p greetParams) (string, error) {
			return "hello " + p.Name, nil
		})),
	}
}

var harnesses = map[string]func(*testing.T) *Harness{
	"stdio": func(t *testing.T) *Harness { return NewStdio(t, testOptions()...) },
	"http":  func(t *testing.T) *Harness { return NewHTTP(t, testOptions()...) },
}

func TestHarnessRoundTrips(t *testing.T) {
	for name, newHarness := range harnesses {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t)

			assert.JSONEq(t, `"hello ada"`, string(h.Result("greet", map[string]any{"name": "ada"})))
			assert.JSONEq(t, `"hello bob"`, string(h.Result("greet", []any{"bob"})))

			var ref struct {
				Instance string `json:"instance"`
			}
			h.Invoke("kernel_start", map[string]any{"kernel": "plain"}, &ref)
			assert.NotEmpty(t, ref.Instance)
			assert.JSONEq(t, `null`, string(h.Result("kernel_stop", []any{ref.Instance})))
		})
	}
}

func TestHarnessErrorEnvelope(t *testing.T) {
	for name, newHarness := range harnesses {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t)
			_, err := h.Call("nope", nil)
			var rpcErr *jsonrpc.JSONRPCError
			require.True(t, errors.As(err, &rpcErr), "got %v", err)
			assert.Equal(t, jsonrpc.CodeMethodNotFound, rpcErr.Code)
			assert.Equal(t, "Method `nope` not found", rpcErr.Message)
		})
	}
}

func TestHarnessSendRaw(t *testing.T) {
	h := NewStdio(t, testOptions()...)
	out, err := h.Send([]byte(`{"jsonrpc":"2.0","id":"a","method":"health"`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":null,"error":{"code":-32700,"message":"Parse error"}}`, string(out))

	// The session survives a bad line.
	out, err = h.Send([]byte(`{"jsonrpc":"2.0","id":"b","method":"greet","params":["eve"]}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":"b","result":"hello eve"}`, string(out))
}
