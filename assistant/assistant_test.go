package assistant

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnehpets/oneplugin/schema"
)

type prompted struct {
	Base
}

func (p *prompted) SystemPrompt(context.Context, schema.GenerateTask, schema.GenerateOptions) (*string, error) {
	s := "You are " + p.Name
	return &s, nil
}

func TestBaseDefaults(t *testing.T) {
	var a Assistant = &Base{Name: "noop"}
	prompt, err := a.SystemPrompt(context.Background(), schema.GenerateTask{}, nil)
	require.NoError(t, err)
	assert.Nil(t, prompt)

	out, err := a.PerformTask(context.Background(), schema.GenerateTask{}, nil)
	require.NoError(t, err)
	assert.Empty(t, out.Nodes)
}

func TestClass(t *testing.T) {
	class := Class("acme/prompted", func(base Base, _ []json.RawMessage) (Assistant, error) {
		return &prompted{Base: base}, nil
	})
	assert.Equal(t, "acme/prompted", class.Name)

	a, err := class.New("acme/prompted-1", nil)
	require.NoError(t, err)
	prompt, err := a.SystemPrompt(context.Background(), schema.GenerateTask{}, nil)
	require.NoError(t, err)
	require.NotNil(t, prompt)
	assert.Equal(t, "You are acme/prompted", *prompt)
}
