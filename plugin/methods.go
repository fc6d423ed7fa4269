package plugin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mnehpets/oneplugin/assistant"
	"github.com/mnehpets/oneplugin/codec"
	"github.com/mnehpets/oneplugin/instance"
	"github.com/mnehpets/oneplugin/jsonrpc"
	"github.com/mnehpets/oneplugin/kernel"
	"github.com/mnehpets/oneplugin/schema"
)

// Health is the result of the health method.
type Health struct {
	Status    string `json:"status"`
	Timestamp int64  `json:"timestamp"`
}

type kernelStartParams struct {
	Kernel string `json:"kernel"`
}

type instanceStartParams struct {
	ClassName *string           `json:"className,omitempty"`
	// Kernel is accepted by name, matching kernel_start.
	Kernel    *string           `json:"kernel" jsonrpc:"named"`
	Args      []json.RawMessage `json:"args" jsonrpc:"rest"`
}

func (p instanceStartParams) class() (string, error) {
	switch {
	case p.ClassName != nil:
		return *p.ClassName, nil
	case p.Kernel != nil:
		return *p.Kernel, nil
	}
	return "", &jsonrpc.BindError{Message: "missing required argument: className"}
}

type instanceParams struct {
	Instance string `json:"instance"`
}

type codeParams struct {
	Code     string `json:"code"`
	Instance string `json:"instance"`
}

type variableParams struct {
	Name     string `json:"name"`
	Instance string `json:"instance"`
}

type setVariableParams struct {
	Name     string          `json:"name"`
	Value    json.RawMessage `json:"value"`
	Instance string          `json:"instance"`
}

type taskParams struct {
	Task      schema.GenerateTask    `json:"task"`
	Options   schema.GenerateOptions `json:"options,omitempty"`
	Assistant string                 `json:"assistant"`
}

func (p *Plugin) registerRootMethods() {
	m := p.methods
	m.Register("health", jsonrpc.Func(p.health))

	m.Register("kernels", jsonrpc.Func(func(context.Context, struct{}) ([]string, error) {
		return p.kernels.Classes().Names(), nil
	}))
	m.Register("assistants", jsonrpc.Func(func(context.Context, struct{}) ([]string, error) {
		return p.assistants.Classes().Names(), nil
	}))

	m.Register("kernel_start", jsonrpc.Func(func(ctx context.Context, params kernelStartParams) (*schema.KernelInstance, error) {
		return p.startKernel(ctx, params.Kernel, nil)
	}))
	m.Register("instance_start", jsonrpc.Func(func(ctx context.Context, params instanceStartParams) (*schema.KernelInstance, error) {
		class, err := params.class()
		if err != nil {
			return nil, err
		}
		return p.startKernel(ctx, class, params.Args)
	}))
	stop := jsonrpc.Func(p.stopKernel)
	m.Register("kernel_stop", stop)
	m.Register("instance_stop", stop)

	m.Register("kernel_info", jsonrpc.Func(func(ctx context.Context, params instanceParams) (info schema.SoftwareApplication, err error) {
		err = p.withKernel(params.Instance, func(k kernel.Kernel) error {
			info, err = k.Info(ctx)
			return err
		})
		return info, err
	}))
	m.Register("kernel_packages", jsonrpc.Func(func(ctx context.Context, params instanceParams) (pkgs []schema.SoftwareSourceCode, err error) {
		err = p.withKernel(params.Instance, func(k kernel.Kernel) error {
			pkgs, err = k.Packages(ctx)
			return err
		})
		return orEmpty(pkgs), err
	}))
	m.Register("kernel_execute", jsonrpc.Func(func(ctx context.Context, params codeParams) ([2]any, error) {
		return p.run(ctx, params, kernel.Kernel.Execute)
	}))
	m.Register("kernel_evaluate", jsonrpc.Func(func(ctx context.Context, params codeParams) ([2]any, error) {
		return p.run(ctx, params, kernel.Kernel.Evaluate)
	}))

	m.Register("kernel_list", jsonrpc.Func(func(ctx context.Context, params instanceParams) (vars []schema.Variable, err error) {
		err = p.withKernel(params.Instance, func(k kernel.Kernel) error {
			vars, err = k.ListVariables(ctx)
			return err
		})
		return orEmpty(vars), err
	}))
	m.Register("kernel_get", jsonrpc.Func(func(ctx context.Context, params variableParams) (v *schema.Variable, err error) {
		err = p.withKernel(params.Instance, func(k kernel.Kernel) error {
			v, err = k.GetVariable(ctx, params.Name)
			return err
		})
		return v, err
	}))
	m.Register("kernel_set", jsonrpc.Func(func(ctx context.Context, params setVariableParams) (any, error) {
		value, err := codec.Encode(params.Value)
		if err != nil {
			return nil, err
		}
		return nil, p.withKernel(params.Instance, func(k kernel.Kernel) error {
			return k.SetVariable(ctx, params.Name, value)
		})
	}))
	m.Register("kernel_remove", jsonrpc.Func(func(ctx context.Context, params variableParams) (any, error) {
		return nil, p.withKernel(params.Instance, func(k kernel.Kernel) error {
			return k.RemoveVariable(ctx, params.Name)
		})
	}))

	m.Register("assistant_system_prompt", jsonrpc.Func(func(ctx context.Context, params taskParams) (prompt *string, err error) {
		err = p.withAssistant(ctx, params.Assistant, func(a assistant.Assistant) error {
			prompt, err = a.SystemPrompt(ctx, params.Task, orOptions(params.Options))
			return err
		})
		return prompt, err
	}))
	m.Register("assistant_perform_task", jsonrpc.Func(func(ctx context.Context, params taskParams) (out schema.GenerateOutput, err error) {
		err = p.withAssistant(ctx, params.Assistant, func(a assistant.Assistant) error {
			out, err = a.PerformTask(ctx, params.Task, orOptions(params.Options))
			return err
		})
		return out, err
	}))
}

func (p *Plugin) health(context.Context, struct{}) (Health, error) {
	return Health{Status: "OK", Timestamp: time.Now().Unix()}, nil
}

// startKernel returns a nil instance, encoded as null, for an unknown class.
func (p *Plugin) startKernel(ctx context.Context, class string, args []json.RawMessage) (*schema.KernelInstance, error) {
	id, err := p.kernels.Start(ctx, class, args)
	if errors.Is(err, instance.ErrClassNotFound) {
		p.log.Debug("unknown kernel class", "class", class)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &schema.KernelInstance{Instance: id}, nil
}

func (p *Plugin) stopKernel(ctx context.Context, params instanceParams) (any, error) {
	return nil, p.kernels.Stop(ctx, params.Instance)
}

// run executes code and shapes the result as [nodes, messages].
func (p *Plugin) run(ctx context.Context, params codeParams, fn func(kernel.Kernel, context.Context, string) ([]schema.Node, []schema.ExecutionMessage, error)) ([2]any, error) {
	var nodes []schema.Node
	var msgs []schema.ExecutionMessage
	err := p.withKernel(params.Instance, func(k kernel.Kernel) (err error) {
		nodes, msgs, err = fn(k, ctx, params.Code)
		return err
	})
	if err != nil {
		return [2]any{}, err
	}
	return [2]any{orEmpty(nodes), orEmpty(msgs)}, nil
}

// withKernel runs fn with exclusive access to the kernel, mapping an
// unknown id to CodeNotFound.
func (p *Plugin) withKernel(id string, fn func(kernel.Kernel) error) error {
	err := p.kernels.Do(id, fn)
	if errors.Is(err, instance.ErrInstanceNotFound) {
		return instanceNotFound(id)
	}
	return err
}

func (p *Plugin) withAssistant(ctx context.Context, name string, fn func(assistant.Assistant) error) error {
	id, err := p.assistantID(ctx, name)
	if err != nil {
		return err
	}
	err = p.assistants.Do(id, fn)
	if errors.Is(err, instance.ErrInstanceNotFound) {
		return assistantNotFound(name)
	}
	return err
}

// assistantID returns the running instance of the named assistant class,
// starting it on first use.
func (p *Plugin) assistantID(ctx context.Context, name string) (string, error) {
	if _, ok := p.assistants.Classes().Lookup(name); !ok {
		return "", assistantNotFound(name)
	}

	p.amu.Lock()
	slot, ok := p.assistantIDs[name]
	if !ok {
		slot = &assistantSlot{}
		p.assistantIDs[name] = slot
	}
	p.amu.Unlock()

	// Only starts of the same class wait on each other.
	slot.mu.Lock()
	defer slot.mu.Unlock()
	if slot.id != "" {
		return slot.id, nil
	}
	id, err := p.assistants.Start(ctx, name, nil)
	if errors.Is(err, instance.ErrClassNotFound) {
		return "", assistantNotFound(name)
	}
	if err != nil {
		return "", err
	}
	slot.id = id
	return id, nil
}

func instanceNotFound(id string) error {
	return jsonrpc.NewError(jsonrpc.CodeNotFound, fmt.Sprintf("Instance `%s` not found", id))
}

func assistantNotFound(name string) error {
	return jsonrpc.NewError(jsonrpc.CodeNotFound, fmt.Sprintf("Assistant `%s` not found", name))
}

func orEmpty[S ~[]E, E any](s S) S {
	if s == nil {
		return S{}
	}
	return s
}

func orOptions(o schema.GenerateOptions) schema.GenerateOptions {
	if o == nil {
		return schema.GenerateOptions{}
	}
	return o
}
