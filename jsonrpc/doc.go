// Package jsonrpc provides a JSON-RPC 2.0 dispatcher shared by every transport.
//
// This package implements the single-request subset of the JSON-RPC 2.0
// specification (https://www.jsonrpc.org/specification). Batch requests are
// rejected.
//
// # Basic Usage
//
// Build a method table, wrap it in a Server, and feed it raw request bytes:
//
//	m := jsonrpc.NewMethods()
//	m.Register("add", jsonrpc.Func(Add))
//	s := jsonrpc.NewServer(m)
//	resp := s.Handle(ctx, []byte(`{"jsonrpc":"2.0","id":1,"method":"add","params":{"x":1,"y":2}}`))
//
// Handle is a pure bytes-to-bytes function, so the stdio and HTTP transports
// are thin framing layers around it. For HTTP, pass Server.Endpoint to
// endpoint.Handler:
//
//	http.Handle("/", endpoint.Handler(s.Endpoint, processors...))
//
// # Method Signatures
//
// Func adapts a typed function into a Handler:
//
//	type AddParams struct {
//	    X int `json:"x"`
//	    Y int `json:"y"`
//	}
//
//	func Add(ctx context.Context, p AddParams) (map[string]int, error) {
//	    return map[string]int{"sum": p.X + p.Y}, nil
//	}
//
// The params struct uses json tags to define parameter names. Parameters may
// be sent by name (object) or by position (array, in field declaration order).
// Fields tagged `json:",omitempty"` are optional. A trailing slice field tagged
// `jsonrpc:"rest"` collects surplus positional arguments. Fields tagged
// `jsonrpc:"named"` are optional and can only be set by name.
//
// # Error Handling
//
// Return JSONRPCError to choose the error code:
//
//	return nil, jsonrpc.NewError(jsonrpc.CodeNotFound, "no such thing")
//
// Any other error, including a parameter binding failure or a panic, becomes
// CodeInternalError with the error text in the message. Results are converted
// with codec.Encode; a result with no JSON form is also an internal error.
//
// Standard error codes are defined as constants:
//   - CodeParseError (-32700)
//   - CodeInvalidRequest (-32600)
//   - CodeMethodNotFound (-32601)
//   - CodeInvalidParams (-32602)
//   - CodeInternalError (-32603)
//   - CodeNotFound (-32001), for addressed resources that do not exist
package jsonrpc
