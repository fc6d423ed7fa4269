package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"golang.org/x/crypto/blake2b"

	"github.com/mnehpets/oneplugin/endpoint"
)

// BearerTokenProcessor requires "Authorization: Bearer <token>" to match the
// configured token, otherwise it rejects the request with 401.
//
// Tokens are compared as fixed-size BLAKE2b digests in constant time, so the
// comparison leaks neither content nor length.
type BearerTokenProcessor struct {
	digest [blake2b.Size256]byte
}

// NewBearerTokenProcessor creates a BearerTokenProcessor for token, which
// must not be empty.
func NewBearerTokenProcessor(token string) *BearerTokenProcessor {
	if token == "" {
		panic("middleware: empty bearer token")
	}
	return &BearerTokenProcessor{digest: blake2b.Sum256([]byte(token))}
}

// Process implements endpoint.Processor.
func (p *BearerTokenProcessor) Process(w http.ResponseWriter, r *http.Request, next func(http.ResponseWriter, *http.Request) error) error {
	token, ok := bearerToken(r.Header.Get("Authorization"))
	if !ok || !p.Matches(token) {
		w.Header().Set("WWW-Authenticate", "Bearer")
		return endpoint.Error(http.StatusUnauthorized, "Invalid or missing token", nil)
	}
	return next(w, r)
}

// Matches reports whether token equals the configured token.
func (p *BearerTokenProcessor) Matches(token string) bool {
	d := blake2b.Sum256([]byte(token))
	return subtle.ConstantTimeCompare(d[:], p.digest[:]) == 1
}

// bearerToken extracts the token from an exact "Bearer <token>" header.
func bearerToken(header string) (string, bool) {
	token, ok := strings.CutPrefix(header, "Bearer ")
	return token, ok && token != ""
}

var _ endpoint.Processor = (*BearerTokenProcessor)(nil)
