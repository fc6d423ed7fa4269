// Package schema holds the document and execution value types exchanged with
// the host. The dispatch layer treats them as opaque values; they only need to
// round-trip through JSON.
//
// Every type writes a "type" discriminator. It is filled in on encoding when
// left empty, so callers can construct values without setting it.
package schema

import "encoding/json"

// Node is any document node. Concrete nodes in this package are Paragraph,
// Heading, CodeBlock and Text, but handlers may return any JSON value.
type Node = any

// MessageLevel is the severity of an ExecutionMessage.
type MessageLevel string

const (
	LevelInfo    MessageLevel = "Info"
	LevelWarning MessageLevel = "Warning"
	LevelError   MessageLevel = "Error"
)

// KernelInstance is the result of starting a kernel.
type KernelInstance struct {
	Instance string `json:"instance"`
}

// ExecutionMessage is a diagnostic produced while executing code.
type ExecutionMessage struct {
	Type      string       `json:"type"`
	Level     MessageLevel `json:"level"`
	Message   string       `json:"message"`
	ErrorType string       `json:"errorType,omitempty"`
}

func (m ExecutionMessage) MarshalJSON() ([]byte, error) {
	type plain ExecutionMessage
	if m.Type == "" {
		m.Type = "ExecutionMessage"
	}
	return json.Marshal(plain(m))
}

// SoftwareApplication describes a kernel or assistant.
type SoftwareApplication struct {
	Type            string `json:"type"`
	Name            string `json:"name,omitempty"`
	Description     string `json:"description,omitempty"`
	URL             string `json:"url,omitempty"`
	Version         string `json:"version,omitempty"`
	SoftwareVersion string `json:"softwareVersion,omitempty"`
	OperatingSystem string `json:"operatingSystem,omitempty"`
}

func (a SoftwareApplication) MarshalJSON() ([]byte, error) {
	type plain SoftwareApplication
	if a.Type == "" {
		a.Type = "SoftwareApplication"
	}
	return json.Marshal(plain(a))
}

// SoftwareSourceCode describes a package available inside a kernel.
type SoftwareSourceCode struct {
	Type                string `json:"type"`
	Name                string `json:"name,omitempty"`
	Description         string `json:"description,omitempty"`
	URL                 string `json:"url,omitempty"`
	Version             string `json:"version,omitempty"`
	ProgrammingLanguage string `json:"programmingLanguage"`
	CodeRepository      string `json:"codeRepository,omitempty"`
}

func (s SoftwareSourceCode) MarshalJSON() ([]byte, error) {
	type plain SoftwareSourceCode
	if s.Type == "" {
		s.Type = "SoftwareSourceCode"
	}
	return json.Marshal(plain(s))
}

// Variable is a named value held by a kernel.
type Variable struct {
	Type                string `json:"type"`
	Name                string `json:"name"`
	ProgrammingLanguage string `json:"programmingLanguage,omitempty"`
	NativeType          string `json:"nativeType,omitempty"`
	NodeType            string `json:"nodeType,omitempty"`
	Value               any    `json:"value,omitempty"`
}

func (v Variable) MarshalJSON() ([]byte, error) {
	type plain Variable
	if v.Type == "" {
		v.Type = "Variable"
	}
	return json.Marshal(plain(v))
}
