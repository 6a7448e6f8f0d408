package embedding

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mohammad-safakhou/campaigner/provider/providertest"
)

func TestEmbeddingExecute(t *testing.T) {
	fake := &providertest.Fake{Vectors: [][]float32{{0.5, 0.25, 1}}}
	res, err := NewEmbedding(fake).Execute(context.Background(), map[string]any{"text": "sneakers"})
	require.NoError(t, err)
	require.True(t, res.OK())
	require.Equal(t, 3, res["dimensions"])
	require.Equal(t, []any{0.5, 0.25, float64(1)}, res["embedding"])
}

func TestEmbeddingFailures(t *testing.T) {
	res, err := NewEmbedding(&providertest.Fake{}).Execute(context.Background(), map[string]any{})
	require.NoError(t, err)
	require.Equal(t, "No text provided", res.ErrorMessage())

	res, err = NewEmbedding(&providertest.Fake{EmbedErr: errors.New("down")}).Execute(context.Background(), map[string]any{"text": "x"})
	require.NoError(t, err)
	require.Equal(t, "down", res.ErrorMessage())

	res, err = NewEmbedding(&providertest.Fake{}).Execute(context.Background(), map[string]any{"text": "x"})
	require.NoError(t, err)
	require.Equal(t, "no embedding returned", res.ErrorMessage())
}
