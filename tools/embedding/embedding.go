// Package embedding exposes vector embeddings as a tool adapter.
package embedding

import (
	"context"
	"errors"
	"strings"

	"github.com/mohammad-safakhou/campaigner/provider"
	"github.com/mohammad-safakhou/campaigner/tools"
)

// Embedding implements compute_embedding.
type Embedding struct {
	provider provider.Provider
}

func NewEmbedding(p provider.Provider) *Embedding {
	return &Embedding{provider: p}
}

// EmbedMany returns one vector per text.
func (e *Embedding) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	return e.provider.Embed(ctx, texts)
}

// Execute embeds input.text.
func (e *Embedding) Execute(ctx context.Context, input map[string]any) (tools.Result, error) {
	if e.provider == nil {
		return tools.Failure("embedding provider not configured"), nil
	}
	text := tools.String(input, "text")
	if strings.TrimSpace(text) == "" {
		return tools.Failure("No text provided"), nil
	}
	vecs, err := e.EmbedMany(ctx, []string{text})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return tools.Failure(err.Error()), nil
	}
	if len(vecs) == 0 || len(vecs[0]) == 0 {
		return tools.Failure("no embedding returned"), nil
	}
	vec := make([]any, len(vecs[0]))
	for i, v := range vecs[0] {
		vec[i] = float64(v)
	}
	return tools.Success(map[string]any{"embedding": vec, "dimensions": len(vec)}), nil
}
