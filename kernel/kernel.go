// Package kernel defines the capability set a code-execution kernel offers to
// the host, and a Base that implements all of it as no-ops.
//
// Concrete kernels embed Base and override only what they support:
//
//	type Echo struct {
//		kernel.Base
//	}
//
//	func (e *Echo) Execute(ctx context.Context, code string) ([]schema.Node, []schema.ExecutionMessage, error) {
//		return []schema.Node{schema.P(code)}, nil, nil
//	}
//
// Kernels are registered with Class and started through the plugin's
// instance registry, which serializes all calls to a single kernel.
package kernel

import (
	"context"
	"encoding/json"

	"github.com/mnehpets/oneplugin/instance"
	"github.com/mnehpets/oneplugin/schema"
)

// Kernel is the full kernel capability set.
type Kernel interface {
	instance.Instance

	Info(ctx context.Context) (schema.SoftwareApplication, error)
	Packages(ctx context.Context) ([]schema.SoftwareSourceCode, error)
	Execute(ctx context.Context, code string) ([]schema.Node, []schema.ExecutionMessage, error)
	Evaluate(ctx context.Context, code string) ([]schema.Node, []schema.ExecutionMessage, error)
	ListVariables(ctx context.Context) ([]schema.Variable, error)
	// GetVariable returns nil for an unknown name.
	GetVariable(ctx context.Context, name string) (*schema.Variable, error)
	SetVariable(ctx context.Context, name string, value any) error
	RemoveVariable(ctx context.Context, name string) error
}

// Base implements Kernel with no-op defaults.
type Base struct {
	// ID is the instance id assigned by the registry.
	ID string
	// Name is the class name the kernel was started as.
	Name string
}

func (b *Base) OnStart(context.Context) error { return nil }

func (b *Base) OnStop(context.Context) error { return nil }

func (b *Base) Info(context.Context) (schema.SoftwareApplication, error) {
	return schema.SoftwareApplication{Name: b.Name}, nil
}

func (b *Base) Packages(context.Context) ([]schema.SoftwareSourceCode, error) {
	return []schema.SoftwareSourceCode{}, nil
}

func (b *Base) Execute(context.Context, string) ([]schema.Node, []schema.ExecutionMessage, error) {
	return []schema.Node{}, []schema.ExecutionMessage{}, nil
}

func (b *Base) Evaluate(context.Context, string) ([]schema.Node, []schema.ExecutionMessage, error) {
	return []schema.Node{}, []schema.ExecutionMessage{}, nil
}

func (b *Base) ListVariables(context.Context) ([]schema.Variable, error) {
	return []schema.Variable{}, nil
}

func (b *Base) GetVariable(context.Context, string) (*schema.Variable, error) {
	return nil, nil
}

func (b *Base) SetVariable(context.Context, string, any) error { return nil }

func (b *Base) RemoveVariable(context.Context, string) error { return nil }

// Class registers a kernel type under name. fn receives a Base already
// populated with the instance id and class name.
func Class(name string, fn func(base Base, args []json.RawMessage) (Kernel, error)) instance.Class[Kernel] {
	return instance.Class[Kernel]{
		Name: name,
		New: func(id string, args []json.RawMessage) (Kernel, error) {
			return fn(Base{ID: id, Name: name}, args)
		},
	}
}
