package kernel

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/fxamacker/cbor/v2"

	"github.com/mnehpets/oneplugin/schema"
)

var variableDecMode = mustDecMode()

func mustDecMode() cbor.DecMode {
	dm, err := cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
		IntDec:         cbor.IntDecConvertSigned,
	}.DecMode()
	if err != nil {
		panic(err)
	}
	return dm
}

type variable struct {
	data       cbor.RawMessage
	nativeType string
	nodeType   string
}

// Variables is an ordered variable table for kernels that keep values in
// process. Values are stored as CBOR snapshots, so later mutation of a value
// passed to Set (or returned by Get) does not change the table.
//
// Variables is not safe for concurrent use; the instance registry already
// serializes calls to a kernel.
type Variables struct {
	language string
	order    []string
	values   map[string]variable
}

// NewVariables creates an empty table whose variables report language as
// their programming language.
func NewVariables(language string) *Variables {
	return &Variables{
		language: language,
		values:   make(map[string]variable),
	}
}

// Set stores a snapshot of value under name, replacing any previous value
// but keeping its position.
func (v *Variables) Set(name string, value any) error {
	value = normalizeNumbers(value)
	data, err := cbor.Marshal(value)
	if err != nil {
		return fmt.Errorf("kernel: set variable %q: %w", name, err)
	}
	if _, exists := v.values[name]; !exists {
		v.order = append(v.order, name)
	}
	v.values[name] = variable{
		data:       data,
		nativeType: fmt.Sprintf("%T", value),
		nodeType:   nodeType(value),
	}
	return nil
}

// Get returns the named variable, or nil if there is none.
func (v *Variables) Get(name string) (*schema.Variable, error) {
	stored, ok := v.values[name]
	if !ok {
		return nil, nil
	}
	out, err := v.decode(name, stored)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Remove deletes the named variable. Unknown names are ignored.
func (v *Variables) Remove(name string) {
	if _, ok := v.values[name]; !ok {
		return
	}
	delete(v.values, name)
	for i, n := range v.order {
		if n == name {
			v.order = append(v.order[:i], v.order[i+1:]...)
			break
		}
	}
}

// List returns all variables in the order they were first set.
func (v *Variables) List() ([]schema.Variable, error) {
	out := make([]schema.Variable, 0, len(v.order))
	for _, name := range v.order {
		decoded, err := v.decode(name, v.values[name])
		if err != nil {
			return nil, err
		}
		out = append(out, decoded)
	}
	return out, nil
}

func (v *Variables) Len() int {
	return len(v.order)
}

func (v *Variables) decode(name string, stored variable) (schema.Variable, error) {
	var value any
	if err := variableDecMode.Unmarshal(stored.data, &value); err != nil {
		return schema.Variable{}, fmt.Errorf("kernel: decode variable %q: %w", name, err)
	}
	return schema.Variable{
		Name:                name,
		ProgrammingLanguage: v.language,
		NativeType:          stored.nativeType,
		NodeType:            stored.nodeType,
		Value:               value,
	}, nil
}

// normalizeNumbers replaces json.Number, which CBOR would store as a string,
// with int64 or float64.
func normalizeNumbers(value any) any {
	switch x := value.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = normalizeNumbers(e)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = normalizeNumbers(e)
		}
		return out
	}
	return value
}

func nodeType(value any) string {
	switch value.(type) {
	case nil:
		return "Null"
	case bool:
		return "Boolean"
	case string:
		return "String"
	case int, int8, int16, int32, int64:
		return "Integer"
	case uint, uint8, uint16, uint32, uint64:
		return "UnsignedInteger"
	case float32, float64:
		return "Number"
	}
	switch reflect.ValueOf(value).Kind() {
	case reflect.Slice, reflect.Array:
		return "Array"
	case reflect.Map, reflect.Struct:
		return "Object"
	}
	return "Unknown"
}
