// Package assistant defines the capability set of a generative assistant and
// a no-op Base for implementations to embed.
package assistant

import (
	"context"
	"encoding/json"

	"github.com/mnehpets/oneplugin/instance"
	"github.com/mnehpets/oneplugin/schema"
)

// Assistant performs generation tasks on behalf of the host.
type Assistant interface {
	instance.Instance

	// SystemPrompt returns a system prompt template for the task, or nil to
	// let the host use its default.
	SystemPrompt(ctx context.Context, task schema.GenerateTask, options schema.GenerateOptions) (*string, error)
	PerformTask(ctx context.Context, task schema.GenerateTask, options schema.GenerateOptions) (schema.GenerateOutput, error)
}

// Base implements Assistant with no-op defaults.
type Base struct {
	ID   string
	Name string
}

func (b *Base) OnStart(context.Context) error { return nil }

func (b *Base) OnStop(context.Context) error { return nil }

func (b *Base) SystemPrompt(context.Context, schema.GenerateTask, schema.GenerateOptions) (*string, error) {
	return nil, nil
}

func (b *Base) PerformTask(context.Context, schema.GenerateTask, schema.GenerateOptions) (schema.GenerateOutput, error) {
	return schema.GenerateOutput{}, nil
}

// Class registers an assistant type under name, which is also the name the
// host uses to address it.
func Class(name string, fn func(base Base, args []json.RawMessage) (Assistant, error)) instance.Class[Assistant] {
	return instance.Class[Assistant]{
		Name: name,
		New: func(id string, args []json.RawMessage) (Assistant, error) {
			return fn(Base{ID: id, Name: name}, args)
		},
	}
}
