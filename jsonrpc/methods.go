package jsonrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
)

// Handler is a registered RPC method.
type Handler func(ctx context.Context, params Params) (any, error)

// Methods is the method-name to handler table. Names are resolved per call;
// an unknown name is reported as CodeMethodNotFound, never a panic.
type Methods struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewMethods creates an empty method table.
func NewMethods() *Methods {
	return &Methods{
		handlers: make(map[string]Handler),
	}
}

// Register adds a handler. It panics on an empty name, a nil handler or a
// name collision, all of which are programming errors.
func (m *Methods) Register(name string, h Handler) {
	if name == "" {
		panic("jsonrpc: empty method name")
	}
	if h == nil {
		panic("jsonrpc: nil handler for method " + name)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.handlers[name]; exists {
		panic("jsonrpc: method name collision: " + name)
	}
	m.handlers[name] = h
}

// Lookup returns the handler registered under name.
func (m *Methods) Lookup(name string) (Handler, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.handlers[name]
	return h, ok
}

// Names returns all registered method names, sorted.
func (m *Methods) Names() []string {
	m.mu.RLock()
	names := make([]string, 0, len(m.handlers))
	for name := range m.handlers {
		names = append(names, name)
	}
	m.mu.RUnlock()
	sort.Strings(names)
	return names
}

// Func adapts a typed function into a Handler. Params are bound into P with
// Params.Bind before fn is called.
func Func[P any, R any](fn func(ctx context.Context, params P) (R, error)) Handler {
	return func(ctx context.Context, params Params) (any, error) {
		var p P
		if err := params.Bind(&p); err != nil {
			return nil, err
		}
		return fn(ctx, p)
	}
}

type paramsKind int

const (
	paramsNone paramsKind = iota
	paramsPositional
	paramsNamed
)

// Params holds the raw params member of a request.
type Params struct {
	raw  json.RawMessage
	kind paramsKind
}

// parseParams classifies raw params. ok is false when params are present but
// neither an array nor an object.
func parseParams(raw json.RawMessage) (Params, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return Params{kind: paramsNone}, true
	}
	switch trimmed[0] {
	case '[':
		return Params{raw: trimmed, kind: paramsPositional}, true
	case '{':
		return Params{raw: trimmed, kind: paramsNamed}, true
	}
	return Params{}, false
}

// NamedParams builds Params from a JSON object, for calling handlers directly.
func NamedParams(raw json.RawMessage) Params {
	return Params{raw: raw, kind: paramsNamed}
}

// PositionalParams builds Params from a JSON array, for calling handlers directly.
func PositionalParams(raw json.RawMessage) Params {
	return Params{raw: raw, kind: paramsPositional}
}

// IsPositional reports whether params were sent as an array.
func (p Params) IsPositional() bool { return p.kind == paramsPositional }

// IsNamed reports whether params were sent as an object.
func (p Params) IsNamed() bool { return p.kind == paramsNamed }

// Raw returns the raw JSON, or nil if params were absent.
func (p Params) Raw() json.RawMessage { return p.raw }

// paramField describes one bindable field of a params struct.
type paramField struct {
	index    int
	name     string
	optional bool
	rest     bool
	// named fields are skipped by positional binding.
	named bool
}

var paramFieldCache sync.Map // reflect.Type -> []paramField

func paramFields(t reflect.Type) []paramField {
	if cached, ok := paramFieldCache.Load(t); ok {
		return cached.([]paramField)
	}

	fields := make([]paramField, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		f := paramField{index: i, name: sf.Name}
		if jsonTag, ok := sf.Tag.Lookup("json"); ok {
			parts := strings.Split(jsonTag, ",")
			if parts[0] == "-" {
				continue
			}
			if parts[0] != "" {
				f.name = parts[0]
			}
			for _, opt := range parts[1:] {
				if opt == "omitempty" {
					f.optional = true
				}
			}
		}
		switch sf.Tag.Get("jsonrpc") {
		case "rest":
			if sf.Type.Kind() == reflect.Slice {
				f.rest = true
				f.optional = true
			}
		case "named":
			f.named = true
			f.optional = true
		}
		fields = append(fields, f)
	}

	paramFieldCache.Store(t, fields)
	return fields
}

// Bind decodes params into dst, which must be a pointer to a struct (or a
// *Params, which receives p unchanged).
//
// Positional params bind to fields in declaration order; named params bind by
// json name. Unknown names, surplus positional values and missing required
// fields are reported as *BindError.
func (p Params) Bind(dst any) error {
	if pp, ok := dst.(*Params); ok {
		*pp = p
		return nil
	}

	v := reflect.ValueOf(dst)
	if v.Kind() != reflect.Pointer || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("jsonrpc: bind: dst must be a non-nil pointer to a struct, got %T", dst)
	}
	root := v.Elem()
	fields := paramFields(root.Type())

	switch p.kind {
	case paramsPositional:
		return bindPositional(root, fields, p.raw)
	case paramsNamed:
		return bindNamed(root, fields, p.raw)
	default:
		return bindNamed(root, fields, nil)
	}
}

func bindPositional(root reflect.Value, fields []paramField, raw json.RawMessage) error {
	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err != nil {
		return &BindError{Message: "params are not a valid array: " + err.Error()}
	}

	fixed := make([]paramField, 0, len(fields))
	for _, f := range fields {
		if !f.named {
			fixed = append(fixed, f)
		}
	}
	var rest *paramField
	if n := len(fixed); n > 0 && fixed[n-1].rest {
		rest = &fixed[n-1]
		fixed = fixed[:n-1]
	}

	for i, elem := range list {
		if i < len(fixed) {
			if err := setField(root, fixed[i], elem); err != nil {
				return err
			}
			continue
		}
		if rest == nil {
			return &BindError{Message: fmt.Sprintf("takes %d positional arguments but %d were given", len(fixed), len(list))}
		}
		if err := appendRest(root, *rest, elem); err != nil {
			return err
		}
	}

	for i := len(list); i < len(fixed); i++ {
		if !fixed[i].optional {
			return &BindError{Message: "missing required argument: " + fixed[i].name}
		}
	}
	return nil
}

func bindNamed(root reflect.Value, fields []paramField, raw json.RawMessage) error {
	var named map[string]json.RawMessage
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &named); err != nil {
			return &BindError{Message: "params are not a valid object: " + err.Error()}
		}
	}

	byName := make(map[string]paramField, len(fields))
	for _, f := range fields {
		byName[f.name] = f
	}

	keys := make([]string, 0, len(named))
	for key := range named {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		f, ok := byName[key]
		if !ok {
			return &BindError{Message: "unexpected argument: " + key}
		}
		if err := setField(root, f, named[key]); err != nil {
			return err
		}
	}

	for _, f := range fields {
		if _, ok := named[f.name]; !ok && !f.optional {
			return &BindError{Message: "missing required argument: " + f.name}
		}
	}
	return nil
}

func setField(root reflect.Value, f paramField, raw json.RawMessage) error {
	field := root.Field(f.index)
	if err := json.Unmarshal(raw, field.Addr().Interface()); err != nil {
		return &BindError{Message: fmt.Sprintf("invalid value for argument %s: %v", f.name, err)}
	}
	return nil
}

func appendRest(root reflect.Value, f paramField, raw json.RawMessage) error {
	field := root.Field(f.index)
	elem := reflect.New(field.Type().Elem())
	if err := json.Unmarshal(raw, elem.Interface()); err != nil {
		return &BindError{Message: fmt.Sprintf("invalid value for argument %s: %v", f.name, err)}
	}
	field.Set(reflect.Append(field, elem.Elem()))
	return nil
}
