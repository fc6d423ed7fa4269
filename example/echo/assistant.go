package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mnehpets/oneplugin/assistant"
	"github.com/mnehpets/oneplugin/codec"
	"github.com/mnehpets/oneplugin/schema"
)

// EchoAssistant answers a task with a description of the task itself.
type EchoAssistant struct {
	assistant.Base
}

func newEchoAssistant(base assistant.Base, _ []json.RawMessage) (assistant.Assistant, error) {
	return &EchoAssistant{Base: base}, nil
}

func (a *EchoAssistant) SystemPrompt(_ context.Context, task schema.GenerateTask, _ schema.GenerateOptions) (*string, error) {
	prompt := fmt.Sprintf("You are %s. Respond in %s to: %s", a.Name, formatOr(task.Format, "markdown"), task.InstructionText)
	return &prompt, nil
}

type echoOptions struct {
	Heading string `json:"heading"`
}

func (a *EchoAssistant) PerformTask(_ context.Context, task schema.GenerateTask, options schema.GenerateOptions) (schema.GenerateOutput, error) {
	var opts echoOptions
	if err := codec.Structure(options, &opts); err != nil {
		return schema.GenerateOutput{}, err
	}
	taskJSON, err := json.MarshalIndent(task, "", "  ")
	if err != nil {
		return schema.GenerateOutput{}, err
	}
	prompt := ""
	if task.SystemPrompt != nil {
		prompt = *task.SystemPrompt
	}
	return schema.GenerateOutput{
		Kind:   "Text",
		Format: "markdown",
		Nodes: []schema.Node{
			schema.H1(formatOr(opts.Heading, "Task")),
			schema.CB(string(taskJSON), "json"),
			schema.H2("System Prompt"),
			schema.CB(prompt, "text"),
		},
	}, nil
}

func formatOr(format, fallback string) string {
	if format == "" {
		return fallback
	}
	return format
}
