package schema

import "encoding/json"

// GenerateTask is the work item handed to an assistant.
type GenerateTask struct {
	Type             string  `json:"type,omitempty"`
	Instruction      any     `json:"instruction,omitempty"`
	InstructionText  string  `json:"instructionText,omitempty"`
	Format           string  `json:"format,omitempty"`
	ContentFormatted string  `json:"contentFormatted,omitempty"`
	Context          any     `json:"context,omitempty"`
	SystemPrompt     *string `json:"systemPrompt,omitempty"`
}

// GenerateOptions are free-form options forwarded by the host.
type GenerateOptions map[string]any

// GenerateOutput is what an assistant produces for a task.
type GenerateOutput struct {
	Type    string `json:"type"`
	Kind    string `json:"kind,omitempty"`
	Format  string `json:"format,omitempty"`
	Content string `json:"content,omitempty"`
	Nodes   []Node `json:"nodes,omitempty"`
}

func (o GenerateOutput) MarshalJSON() ([]byte, error) {
	type plain GenerateOutput
	if o.Type == "" {
		o.Type = "GenerateOutput"
	}
	return json.Marshal(plain(o))
}
