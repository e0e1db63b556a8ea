package generator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

type mockLLM struct {
	reply   string
	err     error
	prompt  string
	options llms.CallOptions
}

func (m *mockLLM) GenerateContent(_ context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	for _, opt := range options {
		opt(&m.options)
	}
	for _, part := range messages[0].Parts {
		if text, ok := part.(llms.TextContent); ok {
			m.prompt = text.Text
		}
	}
	if m.err != nil {
		return nil, m.err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: m.reply}}}, nil
}

func (m *mockLLM) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

func TestLLMGenerator_Generate(t *testing.T) {
	llm := &mockLLM{reply: "MCP is the Model Context Protocol."}

	answer, err := New(llm).Generate(context.Background(), "What is MCP?", "doc one\n\ndoc two")
	require.NoError(t, err)
	assert.Equal(t, "MCP is the Model Context Protocol.", answer)
	assert.Equal(t,
		"Answer the question based only on the following context:\ndoc one\n\ndoc two\n\nQuestion: What is MCP?\n",
		llm.prompt)
}

func TestLLMGenerator_EmptyContext(t *testing.T) {
	llm := &mockLLM{reply: "I don't know."}

	answer, err := New(llm).Generate(context.Background(), "What is MCP?", "")
	require.NoError(t, err)
	assert.Equal(t, "I don't know.", answer)
	assert.Equal(t, "Answer the question based only on the following context:\n\n\nQuestion: What is MCP?\n", llm.prompt)
}

func TestLLMGenerator_Options(t *testing.T) {
	llm := &mockLLM{reply: "ok"}
	g := New(llm,
		WithPrompt("{{.question}} | {{.context}}"),
		WithCallOptions(llms.WithTemperature(0.2), llms.WithMaxTokens(128)),
	)

	_, err := g.Generate(context.Background(), "q", "c")
	require.NoError(t, err)
	assert.Equal(t, "q | c", llm.prompt)
	assert.InDelta(t, 0.2, llm.options.Temperature, 1e-9)
	assert.Equal(t, 128, llm.options.MaxTokens)
}

func TestLLMGenerator_Error(t *testing.T) {
	boom := errors.New("model unavailable")
	_, err := New(&mockLLM{err: boom}).Generate(context.Background(), "q", "c")
	assert.ErrorIs(t, err, boom)
}
