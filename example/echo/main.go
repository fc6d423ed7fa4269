// Command echo is an example plugin with an echo kernel, an echo assistant
// and an add method.
//
//	echo serve                                    # stdio
//	STENCILA_TRANSPORT=http STENCILA_TOKEN=t echo serve -p 8123
package main

import (
	"context"

	"github.com/mnehpets/oneplugin/assistant"
	"github.com/mnehpets/oneplugin/cli"
	"github.com/mnehpets/oneplugin/jsonrpc"
	"github.com/mnehpets/oneplugin/kernel"
	"github.com/mnehpets/oneplugin/plugin"
)

const version = "0.1.0"

type addParams struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type addResult struct {
	Sum float64 `json:"sum"`
}

func add(_ context.Context, p addParams) (addResult, error) {
	return addResult{Sum: p.X + p.Y}, nil
}

func options() []plugin.Option {
	return []plugin.Option{
		plugin.WithName("echo"),
		plugin.WithVersion(version),
		plugin.WithKernels(kernel.Class("echo", newEchoKernel)),
		plugin.WithAssistants(assistant.Class("echo-assistant", newEchoAssistant)),
		plugin.WithMethod("add", jsonrpc.Func(add)),
	}
}

func main() {
	cli.Execute(options()...)
}
