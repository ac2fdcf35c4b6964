package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/jcjurado/outreach/internal/llm"
)

const maxSubjectLength = 120

// SubjectWriter synthesizes a subject line for a message body.
type SubjectWriter struct {
	instructions string
	modelID      string
	provider     llm.Provider
}

// NewSubjectWriter creates a subject writer. Empty instructions use the default.
func NewSubjectWriter(instructions, modelID string, provider llm.Provider) *SubjectWriter {
	if strings.TrimSpace(instructions) == "" {
		instructions = DefaultSubjectInstructions
	}
	return &SubjectWriter{instructions: instructions, modelID: modelID, provider: provider}
}

// Write returns a cleaned single-line subject for body.
func (w *SubjectWriter) Write(ctx context.Context, body string) (string, error) {
	resp, err := w.provider.Invoke(ctx, llm.Request{
		Instructions: w.instructions,
		ModelID:      w.modelID,
		Input:        body,
		MaxTokens:    64,
		AgentID:      "subject_writer",
	})
	if err != nil {
		return "", err
	}
	subject := CleanSubject(resp.Text)
	if subject == "" {
		return "", fmt.Errorf("subject writer: %w", llm.ErrEmptyOutput)
	}
	return subject, nil
}

// CleanSubject keeps the first line, drops a "Subject:" label and quotes, and
// truncates by runes.
func CleanSubject(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = s[:idx]
	}
	for _, label := range []string{"Subject:", "subject:", "Asunto:", "asunto:"} {
		s = strings.TrimPrefix(s, label)
	}
	s = strings.TrimSpace(s)
	s = strings.Trim(s, `"'*`)
	s = strings.TrimSpace(s)

	r := []rune(s)
	if len(r) > maxSubjectLength {
		s = string(r[:maxSubjectLength-3]) + "..."
	}
	return s
}

// Formatter converts a plain or lightly marked-up body into HTML.
type Formatter struct {
	instructions string
	modelID      string
	provider     llm.Provider
}

// NewFormatter creates a formatter. Empty instructions use the default.
func NewFormatter(instructions, modelID string, provider llm.Provider) *Formatter {
	if strings.TrimSpace(instructions) == "" {
		instructions = DefaultHTMLInstructions
	}
	return &Formatter{instructions: instructions, modelID: modelID, provider: provider}
}

// ToHTML returns the delivery-ready HTML body.
func (f *Formatter) ToHTML(ctx context.Context, subject, body string) (string, error) {
	resp, err := f.provider.Invoke(ctx, llm.Request{
		Instructions: f.instructions,
		ModelID:      f.modelID,
		Input:        fmt.Sprintf("Subject: %s\n\n%s", subject, body),
		MaxTokens:    4096,
		AgentID:      "html_converter",
	})
	if err != nil {
		return "", err
	}
	html := StripCodeFence(resp.Text)
	if html == "" {
		return "", fmt.Errorf("formatter: %w", llm.ErrEmptyOutput)
	}
	return html, nil
}

// StripCodeFence removes a surrounding ``` or ```html fence.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = s[idx+1:]
	} else {
		s = ""
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
