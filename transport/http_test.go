package transport

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnehpets/oneplugin/jsonrpc"
	"github.com/mnehpets/oneplugin/metrics"
)

const testToken = "test-token"

func testHTTPServer(t *testing.T, opts HTTPOptions) *HTTPServer {
	t.Helper()
	var n atomic.Int64
	m := jsonrpc.NewMethods()
	m.Register("next", jsonrpc.Func(func(ctx context.Context, _ struct{}) (int64, error) {
		return n.Add(1), nil
	}))
	if opts.Token == "" {
		opts.Token = testToken
	}
	return NewHTTPServer(jsonrpc.NewServer(m), opts)
}

func rpcRequest(body string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	r.RemoteAddr = "127.0.0.1:40000"
	r.Header.Set("Content-Type", "application/json")
	r.Header.Set("Authorization", "Bearer "+testToken)
	return r
}

func TestHTTPCall(t *testing.T) {
	s := testHTTPServer(t, HTTPOptions{})
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, rpcRequest(`{"jsonrpc":"2.0","id":1,"method":"next"}`))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":1,"result":1}`, rec.Body.String())
}

func TestHTTPRejectsRemote(t *testing.T) {
	s := testHTTPServer(t, HTTPOptions{})
	r := rpcRequest(`{"jsonrpc":"2.0","id":1,"method":"next"}`)
	r.RemoteAddr = "10.1.2.3:40000"
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, r)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Local access only\n", rec.Body.String())
}

func TestHTTPRejectsToken(t *testing.T) {
	s := testHTTPServer(t, HTTPOptions{})
	for _, auth := range []string{"", "Bearer wrong", testToken} {
		r := rpcRequest(`{"jsonrpc":"2.0","id":1,"method":"next"}`)
		r.Header.Del("Authorization")
		if auth != "" {
			r.Header.Set("Authorization", auth)
		}
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, r)

		assert.Equal(t, http.StatusUnauthorized, rec.Code, auth)
		assert.Equal(t, "Invalid or missing token\n", rec.Body.String(), auth)
	}
}

func TestHTTPMethodNotAllowed(t *testing.T) {
	s := testHTTPServer(t, HTTPOptions{})
	r := rpcRequest("")
	r.Method = http.MethodGet
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, r)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	// Unauthenticated requests learn nothing about routing.
	r.Header.Del("Authorization")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, r)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHTTPBodyLimit(t *testing.T) {
	s := testHTTPServer(t, HTTPOptions{MaxBodyBytes: 16})
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, rpcRequest(`{"jsonrpc":"2.0","id":1,"method":"next"}`))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestHTTPMetrics(t *testing.T) {
	m := metrics.New()
	m.ObserveCall("next", 0, time.Millisecond)
	s := testHTTPServer(t, HTTPOptions{Metrics: m.Handler()})

	r := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	r.RemoteAddr = "[::1]:40000"
	r.Header.Set("Authorization", "Bearer "+testToken)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, r)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "plugin_rpc_requests_total")

	r.Header.Del("Authorization")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, r)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHTTPServeAndShutdown(t *testing.T) {
	s := testHTTPServer(t, HTTPOptions{ShutdownTimeout: time.Second})
	require.NoError(t, s.Listen(0))
	addr := s.Addr().String()
	assert.True(t, strings.HasPrefix(addr, "127.0.0.1:"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx) }()

	const n = 20
	results := make(chan string, n)
	for i := 0; i < n; i++ {
		go func() {
			req, _ := http.NewRequest(http.MethodPost, "http://"+addr+"/", strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"next"}`))
			req.Header.Set("Authorization", "Bearer "+testToken)
			req.Header.Set("Content-Type", "application/json")
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				results <- "error: " + err.Error()
				return
			}
			resp.Body.Close()
			results <- fmt.Sprint(resp.StatusCode)
		}()
	}
	for i := 0; i < n; i++ {
		assert.Equal(t, "200", <-results)
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestHTTPServeRequiresListen(t *testing.T) {
	s := testHTTPServer(t, HTTPOptions{})
	assert.Error(t, s.Serve(context.Background()))
	assert.Nil(t, s.Addr())
}
