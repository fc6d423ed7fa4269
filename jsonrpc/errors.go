package jsonrpc

import "errors"

const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603

	// CodeNotFound is a server-defined code for requests that address a
	// resource (such as an instance id) that does not exist.
	CodeNotFound = -32001
)

type JSONRPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *JSONRPCError) Error() string {
	return e.Message
}

func NewError(code int, message string) *JSONRPCError {
	return &JSONRPCError{Code: code, Message: message}
}

// BindError reports params that do not fit the handler's parameter list.
type BindError struct {
	Message string
}

func (e *BindError) Error() string {
	return e.Message
}

// mapError converts any error to a JSON-RPC error.
// JSONRPCError types preserve their code; other errors become InternalError.
func mapError(err error) *JSONRPCError {
	var rpcErr *JSONRPCError
	if errors.As(err, &rpcErr) {
		return rpcErr
	}
	return &JSONRPCError{
		Code:    CodeInternalError,
		Message: "Internal error: " + err.Error(),
	}
}
