package prompt

import (
	"bytes"
	"fmt"
	"text/template"

	"ragbot/internal/domain"
)

// DefaultMaxContextChars bounds the context section when no budget is configured.
const DefaultMaxContextChars = 12000

const systemText = "You are a helpful assistant that answers questions based on the provided context."

const noContextMarker = "No context available."

const userTemplate = `{{if .Blocks -}}
Use only the context below to answer the question. If you cannot answer based on the context, say so.
{{- else -}}
The knowledge base returned no documents for this question. Say that you cannot answer it from the knowledge base.
{{- end}}

Context:
{{if .Blocks}}{{range .Blocks}}{{.}}
---
{{end}}{{else}}{{.NoContext}}
{{end}}
Question: {{.Question}}

Answer:`

// Prompt is an assembled generation request.
type Prompt struct {
	Messages []domain.Message
	// ContextUsed is the number of records whose content made it into the prompt.
	ContextUsed int
}

// Assembler renders questions and retrieved records into chat messages.
// It is deterministic and safe for concurrent use.
type Assembler struct {
	maxContextChars int
	tmpl            *template.Template
}

// NewAssembler creates an assembler. maxContextChars <= 0 disables the budget.
func NewAssembler(maxContextChars int) *Assembler {
	return &Assembler{
		maxContextChars: maxContextChars,
		tmpl:            template.Must(template.New("user").Parse(userTemplate)),
	}
}

// Assemble builds the prompt. Records keep their retrieval order and only
// their content is included.
func (a *Assembler) Assemble(question string, records []domain.ScoredRecord) (Prompt, error) {
	blocks := a.blocks(records)
	var buf bytes.Buffer
	err := a.tmpl.Execute(&buf, struct {
		Blocks    []string
		NoContext string
		Question  string
	}{blocks, noContextMarker, question})
	if err != nil {
		return Prompt{}, fmt.Errorf("render prompt: %w", err)
	}
	return Prompt{
		Messages: []domain.Message{
			{Role: domain.RoleSystem, Content: systemText},
			{Role: domain.RoleUser, Content: buf.String()},
		},
		ContextUsed: len(blocks),
	}, nil
}

func (a *Assembler) blocks(records []domain.ScoredRecord) []string {
	blocks := make([]string, 0, len(records))
	used := 0
	for _, r := range records {
		content := r.Record.Content
		if a.maxContextChars > 0 {
			remaining := a.maxContextChars - used
			if len(content) > remaining {
				if len(blocks) > 0 {
					break
				}
				content = truncate(content, remaining)
			}
		}
		blocks = append(blocks, content)
		used += len(content)
	}
	return blocks
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && n < len(s) && !isRuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }
