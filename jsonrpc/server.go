package jsonrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/mnehpets/oneplugin/codec"
)

// Version is the only supported protocol version.
const Version = "2.0"

// Observer is notified once per request with the resolved method name (empty
// if the request never got that far or names no registered method), the error
// code (0 on success) and the time spent.
type Observer interface {
	ObserveCall(method string, code int, elapsed time.Duration)
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithLogger sets the logger used for per-call diagnostics.
func WithLogger(log *slog.Logger) ServerOption {
	return func(s *Server) {
		s.log = log
	}
}

// WithObserver installs a call observer.
func WithObserver(o Observer) ServerOption {
	return func(s *Server) {
		s.observer = o
	}
}

// Server turns raw request bytes into raw response bytes.
type Server struct {
	methods  *Methods
	log      *slog.Logger
	observer Observer
}

// NewServer creates a server dispatching to methods.
func NewServer(methods *Methods, opts ...ServerOption) *Server {
	s := &Server{
		methods: methods,
		log:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Response is a single response envelope. Exactly one of Result and Error is
// meaningful; a nil Result on success encodes as null.
type Response struct {
	ID     json.RawMessage
	Result json.RawMessage
	Error  *JSONRPCError
}

type successEnvelope struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result"`
}

type errorEnvelope struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Error   *JSONRPCError   `json:"error"`
}

func (r Response) MarshalJSON() ([]byte, error) {
	if r.Error != nil {
		return json.Marshal(errorEnvelope{JSONRPC: Version, ID: r.ID, Error: r.Error})
	}
	return json.Marshal(successEnvelope{JSONRPC: Version, ID: r.ID, Result: r.Result})
}

// Handle processes one request and returns the encoded response envelope,
// without a trailing newline. It never fails: every problem is reported
// inside the envelope.
func (s *Server) Handle(ctx context.Context, raw []byte) []byte {
	resp := s.HandleRequest(ctx, raw)
	out, err := json.Marshal(resp)
	if err != nil {
		// Only reachable if an error's Data cannot be encoded.
		s.log.Error("encode response", "error", err)
		out, _ = json.Marshal(Response{ID: resp.ID, Error: NewError(CodeInternalError, "Internal error: "+err.Error())})
	}
	return out
}

// HandleRequest processes one request and returns the response envelope.
func (s *Server) HandleRequest(ctx context.Context, raw []byte) Response {
	start := time.Now()
	method, resp := s.handle(ctx, raw)

	code := 0
	if resp.Error != nil {
		code = resp.Error.Code
	}
	elapsed := time.Since(start)
	if s.observer != nil {
		observed := method
		if _, ok := s.methods.Lookup(method); !ok {
			observed = ""
		}
		s.observer.ObserveCall(observed, code, elapsed)
	}
	s.log.Debug("rpc call", "method", method, "id", string(resp.ID), "code", code, "elapsed", elapsed)
	return resp
}

func (s *Server) handle(ctx context.Context, raw []byte) (string, Response) {
	if !utf8.Valid(raw) || !json.Valid(raw) {
		return "", errorResponse(nil, CodeParseError, "Parse error")
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return "", errorResponse(nil, CodeInvalidRequest, "Batch requests are not supported")
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return "", errorResponse(nil, CodeInvalidRequest, "Invalid or missing JSON-RPC version")
	}

	var version string
	if err := json.Unmarshal(fields["jsonrpc"], &version); err != nil || version != Version {
		return "", errorResponse(nil, CodeInvalidRequest, "Invalid or missing JSON-RPC version")
	}

	rawMethod, ok := fields["method"]
	if !ok || isNull(rawMethod) {
		return "", errorResponse(nil, CodeMethodNotFound, "No method sent")
	}

	id := fields["id"]
	var method string
	if err := json.Unmarshal(rawMethod, &method); err != nil {
		return "", errorResponse(id, CodeInvalidRequest, "Method is not a string")
	}
	if method == "" {
		return "", errorResponse(nil, CodeMethodNotFound, "No method sent")
	}

	params, ok := parseParams(fields["params"])
	if !ok {
		return method, errorResponse(id, CodeInvalidParams, "Params are not Array or Object")
	}

	h, ok := s.methods.Lookup(method)
	if !ok {
		return method, errorResponse(id, CodeMethodNotFound, fmt.Sprintf("Method `%s` not found", method))
	}

	result, err := s.invoke(ctx, method, h, params)
	if err != nil {
		return method, Response{ID: id, Error: mapError(err)}
	}

	encoded, err := codec.Marshal(result)
	if err != nil {
		return method, errorResponse(id, CodeInternalError, "Cannot convert result to JSON: "+err.Error())
	}
	return method, Response{ID: id, Result: encoded}
}

func (s *Server) invoke(ctx context.Context, method string, h Handler, params Params) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("jsonrpc panic", "method", method, "panic", r)
			err = NewError(CodeInternalError, fmt.Sprintf("Internal error: panic: %v", r))
		}
	}()
	return h(ctx, params)
}

func errorResponse(id json.RawMessage, code int, message string) Response {
	return Response{ID: id, Error: NewError(code, message)}
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
