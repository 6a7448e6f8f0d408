package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mohammad-safakhou/campaigner/provider/providertest"
)

func TestTextToolGenerates(t *testing.T) {
	fake := providertest.New("Step into green.")
	tool := NewTextTool(fake, "default-model")

	res, err := tool.Execute(context.Background(), map[string]any{"prompt": "write a tagline", "temperature": 0.2, "max_tokens": float64(50)})
	require.NoError(t, err)
	require.True(t, res.OK())
	require.Equal(t, "Step into green.", res.String("text"))
	require.Equal(t, "fake-model", res.String("model"))
	require.Contains(t, res, "usage")

	req := fake.Requests[0]
	require.InDelta(t, 0.2, req.Temperature, 1e-9)
	require.Equal(t, 50, req.MaxTokens)
}

func TestTextToolDefaultsAndFailures(t *testing.T) {
	fake := providertest.New().Queue(providertest.Reply{Err: errors.New("quota exceeded")})
	tool := NewTextTool(fake, "m")

	res, err := tool.Execute(context.Background(), map[string]any{})
	require.NoError(t, err)
	require.Equal(t, "No prompt provided", res.ErrorMessage())

	res, err = tool.Execute(context.Background(), map[string]any{"prompt": "x"})
	require.NoError(t, err)
	require.False(t, res.OK())
	require.Equal(t, "quota exceeded", res.ErrorMessage())
	require.InDelta(t, defaultTemperature, fake.Requests[0].Temperature, 1e-9)
	require.Equal(t, defaultMaxTokens, fake.Requests[0].MaxTokens)
}

func TestTextToolRaisesOnCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewTextTool(providertest.New("x"), "m").Execute(ctx, map[string]any{"prompt": "x"})
	require.ErrorIs(t, err, context.Canceled)
}
