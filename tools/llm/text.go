// Package llm exposes text generation as a tool adapter.
package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/mohammad-safakhou/campaigner/provider"
	"github.com/mohammad-safakhou/campaigner/tools"
)

const (
	defaultTemperature = 0.7
	defaultMaxTokens   = 1024
)

// TextTool implements generate_text.
type TextTool struct {
	provider     provider.Provider
	defaultModel string
}

// NewTextTool wraps p; defaultModel is reported when the provider does not
// echo the model it used.
func NewTextTool(p provider.Provider, defaultModel string) *TextTool {
	return &TextTool{provider: p, defaultModel: defaultModel}
}

// Execute reads prompt, model, temperature and max_tokens from input.
func (t *TextTool) Execute(ctx context.Context, input map[string]any) (tools.Result, error) {
	if t.provider == nil {
		return tools.Failure("text provider not configured"), nil
	}
	prompt := tools.String(input, "prompt")
	if strings.TrimSpace(prompt) == "" {
		return tools.Failure("No prompt provided"), nil
	}
	resp, err := t.provider.Generate(ctx, provider.Request{
		Prompt:      prompt,
		Model:       tools.String(input, "model"),
		Temperature: tools.Float(input, "temperature", defaultTemperature),
		MaxTokens:   tools.Int(input, "max_tokens", defaultMaxTokens),
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return tools.Failure(err.Error()), nil
	}
	model := resp.Model
	if model == "" {
		model = t.defaultModel
	}
	return tools.Success(map[string]any{
		"text":  resp.Text,
		"model": model,
		"usage": map[string]any{
			"prompt_tokens":     resp.PromptTokens,
			"completion_tokens": resp.CompletionTokens,
		},
	}), nil
}
