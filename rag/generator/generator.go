// Package generator answers a question from a context string using an LLM.
package generator

import (
	"context"
	"fmt"

	"github.com/smallnest/crag/rag"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/prompts"
)

// DefaultPrompt restricts the model to the supplied context.
const DefaultPrompt = `Answer the question based only on the following context:
{{.context}}

Question: {{.question}}
`

// LLMGenerator implements rag.Generator.
type LLMGenerator struct {
	llm         llms.Model
	template    prompts.PromptTemplate
	callOptions []llms.CallOption
}

var _ rag.Generator = (*LLMGenerator)(nil)

// Option configures an LLMGenerator.
type Option func(*LLMGenerator)

// WithPrompt replaces the prompt. The template receives .context and
// .question.
func WithPrompt(tpl string) Option {
	return func(g *LLMGenerator) {
		g.template = prompts.NewPromptTemplate(tpl, []string{"context", "question"})
	}
}

// WithCallOptions passes extra options, such as temperature or max tokens,
// to every model call.
func WithCallOptions(opts ...llms.CallOption) Option {
	return func(g *LLMGenerator) {
		g.callOptions = append(g.callOptions, opts...)
	}
}

// New creates a generator backed by llm.
func New(llm llms.Model, opts ...Option) *LLMGenerator {
	g := &LLMGenerator{
		llm:      llm,
		template: prompts.NewPromptTemplate(DefaultPrompt, []string{"context", "question"}),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate renders the prompt and returns the model's reply verbatim.
func (g *LLMGenerator) Generate(ctx context.Context, question, contextText string) (string, error) {
	prompt, err := g.template.Format(map[string]any{
		"context":  contextText,
		"question": question,
	})
	if err != nil {
		return "", fmt.Errorf("format generation prompt: %w", err)
	}

	answer, err := llms.GenerateFromSinglePrompt(ctx, g.llm, prompt, g.callOptions...)
	if err != nil {
		return "", fmt.Errorf("generate answer: %w", err)
	}
	return answer, nil
}
