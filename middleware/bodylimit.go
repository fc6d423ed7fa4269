package middleware

import (
	"net/http"

	"github.com/mnehpets/oneplugin/endpoint"
)

// BodyLimitProcessor caps the request body at Limit bytes. Reading past the
// limit fails, and endpoint.Unmarshal reports that as 413.
type BodyLimitProcessor struct {
	Limit int64
}

// NewBodyLimitProcessor creates a BodyLimitProcessor. A limit <= 0 disables it.
func NewBodyLimitProcessor(limit int64) *BodyLimitProcessor {
	return &BodyLimitProcessor{Limit: limit}
}

// Process implements endpoint.Processor.
func (p *BodyLimitProcessor) Process(w http.ResponseWriter, r *http.Request, next func(http.ResponseWriter, *http.Request) error) error {
	if p.Limit > 0 && r.Body != nil {
		if r.ContentLength > p.Limit {
			return endpoint.Error(http.StatusRequestEntityTooLarge, "", nil)
		}
		r.Body = http.MaxBytesReader(w, r.Body, p.Limit)
	}
	return next(w, r)
}

var _ endpoint.Processor = (*BodyLimitProcessor)(nil)
