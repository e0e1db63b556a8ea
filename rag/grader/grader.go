// Package grader labels retrieved documents as relevant or not relevant to a
// question using an LLM.
package grader

import (
	"context"
	"fmt"
	"strings"

	"github.com/smallnest/crag/rag"
	"github.com/tidwall/gjson"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/prompts"
)

// DefaultPrompt asks for a JSON object with a "binary_score" of "yes" or "no".
const DefaultPrompt = `You are a grader assessing relevance of a retrieved document to a user question.
If the document contains keyword(s) or semantic meaning related to the question, grade it as relevant.
Give a binary score 'yes' or 'no' to indicate whether the document is relevant to the question.
Respond with a JSON object of the form {"binary_score": "yes"} or {"binary_score": "no"}.

Retrieved document:

{{.document}}

User question: {{.question}}`

// LLMGrader implements rag.Grader. It is safe for concurrent use as long as
// the underlying model is.
type LLMGrader struct {
	llm      llms.Model
	template prompts.PromptTemplate
	jsonMode bool
}

var _ rag.Grader = (*LLMGrader)(nil)

// Option configures an LLMGrader.
type Option func(*LLMGrader)

// WithPrompt replaces the prompt. The template receives .question and
// .document.
func WithPrompt(tpl string) Option {
	return func(g *LLMGrader) {
		g.template = prompts.NewPromptTemplate(tpl, []string{"question", "document"})
	}
}

// WithJSONMode toggles the provider's JSON response mode. Enabled by default.
func WithJSONMode(enabled bool) Option {
	return func(g *LLMGrader) {
		g.jsonMode = enabled
	}
}

// New creates a grader backed by llm.
func New(llm llms.Model, opts ...Option) *LLMGrader {
	g := &LLMGrader{
		llm:      llm,
		template: prompts.NewPromptTemplate(DefaultPrompt, []string{"question", "document"}),
		jsonMode: true,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Grade asks the model whether document is relevant to question.
func (g *LLMGrader) Grade(ctx context.Context, question, document string) (rag.Grade, error) {
	prompt, err := g.template.Format(map[string]any{
		"question": question,
		"document": document,
	})
	if err != nil {
		return rag.GradeNotRelevant, fmt.Errorf("format grader prompt: %w", err)
	}

	options := []llms.CallOption{llms.WithTemperature(0)}
	if g.jsonMode {
		options = append(options, llms.WithJSONMode())
	}

	resp, err := llms.GenerateFromSinglePrompt(ctx, g.llm, prompt, options...)
	if err != nil {
		return rag.GradeNotRelevant, fmt.Errorf("grade document: %w", err)
	}
	return ParseResponse(resp), nil
}

// ParseResponse extracts the grade from a model reply. JSON replies are read
// from their "binary_score" field; anything else is treated as a bare answer.
func ParseResponse(resp string) rag.Grade {
	resp = stripCodeFence(strings.TrimSpace(resp))
	if gjson.Valid(resp) {
		if score := gjson.Get(resp, "binary_score"); score.Exists() {
			return rag.ParseGrade(score.String())
		}
		return rag.GradeNotRelevant
	}
	return rag.ParseGrade(resp)
}

func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
