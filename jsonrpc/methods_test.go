package jsonrpc

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type startParams struct {
	Name string            `json:"name"`
	Args []json.RawMessage `json:"args" jsonrpc:"rest"`
}

type optionalParams struct {
	ID      string `json:"id"`
	Verbose bool   `json:"verbose,omitempty"`
}

func TestBindPositionalRest(t *testing.T) {
	var p startParams
	err := PositionalParams(json.RawMessage(`["echo", 1, "two", {"three":3}]`)).Bind(&p)
	require.NoError(t, err)
	assert.Equal(t, "echo", p.Name)
	require.Len(t, p.Args, 3)
	assert.JSONEq(t, `1`, string(p.Args[0]))
	assert.JSONEq(t, `"two"`, string(p.Args[1]))
	assert.JSONEq(t, `{"three":3}`, string(p.Args[2]))
}

func TestBindNamedRest(t *testing.T) {
	var p startParams
	err := NamedParams(json.RawMessage(`{"name":"echo","args":[1,2]}`)).Bind(&p)
	require.NoError(t, err)
	assert.Equal(t, "echo", p.Name)
	assert.Len(t, p.Args, 2)

	p = startParams{}
	require.NoError(t, NamedParams(json.RawMessage(`{"name":"echo"}`)).Bind(&p))
	assert.Empty(t, p.Args)
}

type aliasParams struct {
	Name  string            `json:"name,omitempty"`
	Alias string            `json:"alias" jsonrpc:"named"`
	Args  []json.RawMessage `json:"args" jsonrpc:"rest"`
}

func TestBindNamedOnly(t *testing.T) {
	var p aliasParams
	require.NoError(t, PositionalParams(json.RawMessage(`["echo", 1, 2]`)).Bind(&p))
	assert.Equal(t, "echo", p.Name)
	assert.Empty(t, p.Alias)
	assert.Len(t, p.Args, 2)

	p = aliasParams{}
	require.NoError(t, NamedParams(json.RawMessage(`{"alias":"echo"}`)).Bind(&p))
	assert.Equal(t, "echo", p.Alias)
	assert.Empty(t, p.Name)

	p = aliasParams{}
	require.NoError(t, PositionalParams(json.RawMessage(`[]`)).Bind(&p))
}

func TestBindOptional(t *testing.T) {
	var p optionalParams
	require.NoError(t, PositionalParams(json.RawMessage(`["k-1"]`)).Bind(&p))
	assert.Equal(t, "k-1", p.ID)
	assert.False(t, p.Verbose)

	p = optionalParams{}
	require.NoError(t, NamedParams(json.RawMessage(`{"id":"k-1","verbose":true}`)).Bind(&p))
	assert.True(t, p.Verbose)
}

func TestBindErrors(t *testing.T) {
	tests := []struct {
		name   string
		params Params
		want   string
	}{
		{"missing positional", PositionalParams(json.RawMessage(`[]`)), "missing required argument: id"},
		{"missing named", NamedParams(json.RawMessage(`{}`)), "missing required argument: id"},
		{"absent params", Params{}, "missing required argument: id"},
		{"surplus positional", PositionalParams(json.RawMessage(`["a",true,3]`)), "takes 2 positional arguments but 3 were given"},
		{"unknown name", NamedParams(json.RawMessage(`{"id":"a","extra":1}`)), "unexpected argument: extra"},
		{"wrong type", NamedParams(json.RawMessage(`{"id":5}`)), "invalid value for argument id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p optionalParams
			err := tt.params.Bind(&p)
			var be *BindError
			require.ErrorAs(t, err, &be)
			assert.Contains(t, be.Message, tt.want)
		})
	}
}

func TestBindRawParams(t *testing.T) {
	in := NamedParams(json.RawMessage(`{"anything":1}`))
	var p Params
	require.NoError(t, in.Bind(&p))
	assert.True(t, p.IsNamed())
	assert.JSONEq(t, `{"anything":1}`, string(p.Raw()))
}

func TestBindRejectsNonStruct(t *testing.T) {
	var n int
	err := NamedParams(json.RawMessage(`{}`)).Bind(&n)
	require.Error(t, err)
	var be *BindError
	assert.False(t, errors.As(err, &be))
}

func TestParseParams(t *testing.T) {
	p, ok := parseParams(nil)
	assert.True(t, ok)
	assert.False(t, p.IsNamed() || p.IsPositional())

	p, ok = parseParams(json.RawMessage(`null`))
	assert.True(t, ok)
	assert.Nil(t, p.Raw())

	p, ok = parseParams(json.RawMessage(` [1]`))
	assert.True(t, ok)
	assert.True(t, p.IsPositional())

	_, ok = parseParams(json.RawMessage(`"x"`))
	assert.False(t, ok)
}

func TestMethodsRegister(t *testing.T) {
	m := NewMethods()
	h := Func(func(ctx context.Context, _ struct{}) (int, error) { return 1, nil })
	m.Register("b", h)
	m.Register("a", h)

	assert.Equal(t, []string{"a", "b"}, m.Names())
	_, ok := m.Lookup("a")
	assert.True(t, ok)
	_, ok = m.Lookup("c")
	assert.False(t, ok)

	assert.Panics(t, func() { m.Register("a", h) })
	assert.Panics(t, func() { m.Register("", h) })
	assert.Panics(t, func() { m.Register("c", nil) })
}
