package schema

import "encoding/json"

// Text is an inline run of plain text.
type Text struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

func (t Text) MarshalJSON() ([]byte, error) {
	type plain Text
	if t.Type == "" {
		t.Type = "Text"
	}
	return json.Marshal(plain(t))
}

// Paragraph is a block of inline content.
type Paragraph struct {
	Type    string `json:"type"`
	Content []Node `json:"content"`
}

func (p Paragraph) MarshalJSON() ([]byte, error) {
	type plain Paragraph
	if p.Type == "" {
		p.Type = "Paragraph"
	}
	if p.Content == nil {
		p.Content = []Node{}
	}
	return json.Marshal(plain(p))
}

// Heading is a titled section marker of the given level (1-6).
type Heading struct {
	Type    string `json:"type"`
	Level   int    `json:"level"`
	Content []Node `json:"content"`
}

func (h Heading) MarshalJSON() ([]byte, error) {
	type plain Heading
	if h.Type == "" {
		h.Type = "Heading"
	}
	if h.Content == nil {
		h.Content = []Node{}
	}
	return json.Marshal(plain(h))
}

// CodeBlock is a block of source code, not executed.
type CodeBlock struct {
	Type                string `json:"type"`
	Code                string `json:"code"`
	ProgrammingLanguage string `json:"programmingLanguage,omitempty"`
}

func (c CodeBlock) MarshalJSON() ([]byte, error) {
	type plain CodeBlock
	if c.Type == "" {
		c.Type = "CodeBlock"
	}
	return json.Marshal(plain(c))
}

// P returns a paragraph holding a single text run.
func P(text string) Paragraph {
	return Paragraph{Content: []Node{Text{Value: text}}}
}

// H1 returns a level 1 heading.
func H1(text string) Heading {
	return Heading{Level: 1, Content: []Node{Text{Value: text}}}
}

// H2 returns a level 2 heading.
func H2(text string) Heading {
	return Heading{Level: 2, Content: []Node{Text{Value: text}}}
}

// CB returns a code block in the given language.
func CB(code, lang string) CodeBlock {
	return CodeBlock{Code: code, ProgrammingLanguage: lang}
}
