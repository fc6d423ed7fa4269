package middleware

import (
	"net/http"

	"github.com/mnehpets/oneplugin/endpoint"
)

// APIHeadersProcessor sets response headers for the JSON-RPC API.
//
// Defaults from NewAPIHeadersProcessor:
//   - Cache-Control: no-store
//   - X-Content-Type-Options: nosniff
//   - Referrer-Policy: no-referrer
//   - Content-Security-Policy: default-src 'none'; frame-ancestors 'none'
type APIHeadersProcessor struct {
	// CacheControl sets the Cache-Control header.
	// Set to empty string to disable.
	CacheControl string

	// ContentTypeOptions sets X-Content-Type-Options: nosniff.
	ContentTypeOptions bool

	// ReferrerPolicy sets the Referrer-Policy header.
	// Set to empty string to disable.
	ReferrerPolicy string

	// ContentSecurityPolicy sets the Content-Security-Policy header.
	// Set to empty string to disable.
	ContentSecurityPolicy string
}

// APIHeadersOption is a functional option for configuring APIHeadersProcessor.
type APIHeadersOption func(*APIHeadersProcessor)

// NewAPIHeadersProcessor creates an APIHeadersProcessor with defaults for a
// local API.
func NewAPIHeadersProcessor(opts ...APIHeadersOption) *APIHeadersProcessor {
	p := &APIHeadersProcessor{
		CacheControl:          "no-store",
		ContentTypeOptions:    true,
		ReferrerPolicy:        "no-referrer",
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'",
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// WithCacheControl sets the Cache-Control header.
func WithCacheControl(v string) APIHeadersOption {
	return func(p *APIHeadersProcessor) {
		p.CacheControl = v
	}
}

// WithCSP sets the Content-Security-Policy header.
func WithCSP(policy string) APIHeadersOption {
	return func(p *APIHeadersProcessor) {
		p.ContentSecurityPolicy = policy
	}
}

// Process implements endpoint.Processor.
func (p *APIHeadersProcessor) Process(w http.ResponseWriter, r *http.Request, next func(http.ResponseWriter, *http.Request) error) error {
	h := w.Header()
	if p.CacheControl != "" {
		h.Set("Cache-Control", p.CacheControl)
	}
	if p.ContentTypeOptions {
		h.Set("X-Content-Type-Options", "nosniff")
	}
	if p.ReferrerPolicy != "" {
		h.Set("Referrer-Policy", p.ReferrerPolicy)
	}
	if p.ContentSecurityPolicy != "" {
		h.Set("Content-Security-Policy", p.ContentSecurityPolicy)
	}
	return next(w, r)
}

var _ endpoint.Processor = (*APIHeadersProcessor)(nil)
