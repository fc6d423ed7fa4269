package middleware

import (
	"net"
	"net/http"

	"github.com/mnehpets/oneplugin/endpoint"
)

// LoopbackOnlyProcessor rejects requests whose peer address is not a
// loopback address with 403.
type LoopbackOnlyProcessor struct{}

// NewLoopbackOnlyProcessor creates a LoopbackOnlyProcessor.
func NewLoopbackOnlyProcessor() *LoopbackOnlyProcessor {
	return &LoopbackOnlyProcessor{}
}

// Process implements endpoint.Processor.
func (p *LoopbackOnlyProcessor) Process(w http.ResponseWriter, r *http.Request, next func(http.ResponseWriter, *http.Request) error) error {
	if !IsLoopback(r.RemoteAddr) {
		return endpoint.Error(http.StatusForbidden, "Local access only", nil)
	}
	return next(w, r)
}

// IsLoopback reports whether addr ("host:port" or a bare host) is a loopback
// IP. Forwarding headers are not consulted.
func IsLoopback(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

var _ endpoint.Processor = (*LoopbackOnlyProcessor)(nil)
