package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mnehpets/oneplugin/kernel"
	"github.com/mnehpets/oneplugin/schema"
)

// EchoKernel returns the code it is given as a paragraph, and keeps
// variables in memory.
type EchoKernel struct {
	kernel.Base
	vars     *kernel.Variables
	executed int
}

func newEchoKernel(base kernel.Base, _ []json.RawMessage) (kernel.Kernel, error) {
	return &EchoKernel{Base: base, vars: kernel.NewVariables("echo")}, nil
}

func (k *EchoKernel) Info(context.Context) (schema.SoftwareApplication, error) {
	return schema.SoftwareApplication{
		Name:        k.Name,
		Description: "Echoes code back as document content",
		Version:     version,
	}, nil
}

func (k *EchoKernel) Packages(context.Context) ([]schema.SoftwareSourceCode, error) {
	return []schema.SoftwareSourceCode{
		{Name: "package1", ProgrammingLanguage: "noodle"},
		{Name: "package2", ProgrammingLanguage: "noodle"},
	}, nil
}

func (k *EchoKernel) Execute(ctx context.Context, code string) ([]schema.Node, []schema.ExecutionMessage, error) {
	k.executed++
	msgs := []schema.ExecutionMessage{{
		Level:   schema.LevelInfo,
		Message: fmt.Sprintf("execution %d on %s", k.executed, k.ID),
	}}
	return []schema.Node{schema.P(code)}, msgs, nil
}

func (k *EchoKernel) Evaluate(ctx context.Context, code string) ([]schema.Node, []schema.ExecutionMessage, error) {
	return []schema.Node{code}, nil, nil
}

func (k *EchoKernel) ListVariables(context.Context) ([]schema.Variable, error) {
	return k.vars.List()
}

func (k *EchoKernel) GetVariable(_ context.Context, name string) (*schema.Variable, error) {
	return k.vars.Get(name)
}

func (k *EchoKernel) SetVariable(_ context.Context, name string, value any) error {
	return k.vars.Set(name, value)
}

func (k *EchoKernel) RemoveVariable(_ context.Context, name string) error {
	k.vars.Remove(name)
	return nil
}
