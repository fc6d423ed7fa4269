package endpoint

import (
	"encoding/json"
	"io"
	"net/http"
)

// JSONRenderer writes a JSON response body.
//
// When Raw is set it is written as-is (it must already be valid JSON);
// otherwise Value is encoded. Content-Type is always "application/json".
// Encoded output ends with a newline, as json.Encoder writes it.
type JSONRenderer struct {
	Status int
	Value  interface{}
	Raw    json.RawMessage

	// EncoderFactory optionally customizes encoder creation.
	// When nil, json.NewEncoder is used with HTML escaping disabled.
	EncoderFactory func(w io.Writer) *json.Encoder
}

func (jr *JSONRenderer) Render(w http.ResponseWriter, _ *http.Request) error {
	w.Header().Set("Content-Type", "application/json")

	status := jr.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)

	if jr.Raw != nil {
		if _, err := w.Write(jr.Raw); err != nil {
			return err
		}
		_, err := io.WriteString(w, "\n")
		return err
	}

	enc := (*json.Encoder)(nil)
	if jr.EncoderFactory != nil {
		enc = jr.EncoderFactory(w)
	} else {
		enc = json.NewEncoder(w)
		enc.SetEscapeHTML(false)
	}
	if enc == nil {
		// Treat a nil factory return as a programming error.
		return io.ErrUnexpectedEOF
	}
	return enc.Encode(jr.Value)
}
