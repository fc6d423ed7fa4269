// Package codec converts between Go values and the JSON-compatible value tree
// carried in JSON-RPC params and results.
//
// Scalars (nil, bool, integers, floats, strings) pass through Encode
// unchanged. Anything else is "unstructured": either by its own Unstructure
// method, or through its JSON form, into nested map[string]any and []any whose
// leaves are scalars. Numbers produced by unstructuring are json.Number so
// integers survive exactly.
package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
)

// Unstructurer is implemented by values that know how to convert themselves
// into a JSON-compatible value tree.
type Unstructurer interface {
	Unstructure() (any, error)
}

// SerializationError reports a value with no JSON representation.
type SerializationError struct {
	// Type is the Go type of the offending value.
	Type  string
	Cause error
}

func (e *SerializationError) Error() string {
	if e.Cause == nil {
		return "cannot encode value of type " + e.Type
	}
	return "cannot encode value of type " + e.Type + ": " + e.Cause.Error()
}

func (e *SerializationError) Unwrap() error {
	return e.Cause
}

func newSerializationError(v any, err error) error {
	return &SerializationError{Type: fmt.Sprintf("%T", v), Cause: err}
}

// Encode converts v into a JSON-compatible value. A panic raised while
// unstructuring or marshaling v is reported as a *SerializationError.
func Encode(v any) (out any, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, newSerializationError(v, fmt.Errorf("panic: %v", r))
		}
	}()
	return encode(v)
}

func encode(v any) (any, error) {
	switch x := v.(type) {
	case nil, bool, string, json.Number,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64:
		return v, nil
	case float32:
		if err := checkFloat(float64(x)); err != nil {
			return nil, newSerializationError(v, err)
		}
		return v, nil
	case float64:
		if err := checkFloat(x); err != nil {
			return nil, newSerializationError(v, err)
		}
		return v, nil
	case json.RawMessage:
		return decodeTree(v, x)
	case Unstructurer:
		out, err := x.Unstructure()
		if err != nil {
			return nil, newSerializationError(v, err)
		}
		if u, ok := out.(Unstructurer); ok && sameValue(u, x) {
			return nil, newSerializationError(v, fmt.Errorf("Unstructure returned its receiver"))
		}
		return encode(out)
	}

	b, err := json.Marshal(v)
	if err != nil {
		return nil, newSerializationError(v, err)
	}
	return decodeTree(v, b)
}

// Marshal encodes v and returns its JSON bytes.
func Marshal(v any) (json.RawMessage, error) {
	tree, err := Encode(v)
	if err != nil {
		return nil, err
	}
	b, err := json.Marshal(tree)
	if err != nil {
		return nil, newSerializationError(v, err)
	}
	return b, nil
}

// Structure converts a JSON-compatible value (or any JSON-marshalable value)
// into dst, which must be a non-nil pointer.
func Structure(v any, dst any) error {
	var b []byte
	switch x := v.(type) {
	case json.RawMessage:
		b = x
	case []byte:
		b = x
	default:
		var err error
		b, err = json.Marshal(v)
		if err != nil {
			return fmt.Errorf("codec: structure: %w", err)
		}
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return fmt.Errorf("codec: structure into %T: %w", dst, err)
	}
	return nil
}

func decodeTree(src any, b []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, newSerializationError(src, err)
	}
	return out, nil
}

func checkFloat(f float64) error {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("unsupported float value %v", f)
	}
	return nil
}

// sameValue guards against an Unstructure that returns itself, which would
// otherwise recurse forever. Uncomparable dynamic types are never identical.
func sameValue(a, b any) (same bool) {
	defer func() {
		if recover() != nil {
			same = false
		}
	}()
	return a == b
}
