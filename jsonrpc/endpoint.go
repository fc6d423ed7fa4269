package jsonrpc

import (
	"net/http"
	"strings"

	"github.com/mnehpets/oneplugin/endpoint"
)

// rpcParams captures the raw JSON-RPC request body.
// We defer parsing until inside the endpoint handler,
// as json-rpc requires different handling of json parsing
// errors than a plain body decoder.
type rpcParams struct {
	Body []byte `body:""`
}

// Endpoint is the endpoint function that processes JSON-RPC requests.
// Pass to endpoint.Handler() to create an http.Handler.
//
// Every well-formed HTTP request gets status 200; JSON-RPC failures are
// reported inside the response envelope.
func (s *Server) Endpoint(w http.ResponseWriter, r *http.Request, params rpcParams) (endpoint.Renderer, error) {
	if r.Method != http.MethodPost {
		return nil, endpoint.Error(http.StatusMethodNotAllowed, "JSON-RPC requires POST method", nil)
	}

	contentType := r.Header.Get("Content-Type")
	if contentType != "" && !strings.HasPrefix(contentType, "application/json") {
		return nil, endpoint.Error(http.StatusUnsupportedMediaType, "Content-Type must be application/json", nil)
	}

	return &endpoint.JSONRenderer{Raw: s.Handle(r.Context(), params.Body)}, nil
}
