package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mohammad-safakhou/campaigner/internal/campaign"
)

func TestResultHelpers(t *testing.T) {
	ok := Success(map[string]any{"text": "hi"})
	require.True(t, ok.OK())
	require.Equal(t, "hi", ok.String("text"))

	bad := Failure("boom")
	require.False(t, bad.OK())
	require.Equal(t, "boom", bad.ErrorMessage())
	require.False(t, Result{}.OK())
}

func TestRegistryLookup(t *testing.T) {
	reg := Registry{
		campaign.ToolLLMText: Func(func(context.Context, map[string]any) (Result, error) {
			return Success(nil), nil
		}),
		campaign.ToolWebSearch: nil,
	}
	_, ok := reg.Lookup(campaign.ToolLLMText)
	require.True(t, ok)
	_, ok = reg.Lookup(campaign.ToolWebSearch)
	require.False(t, ok)
	_, ok = reg.Lookup("teleport")
	require.False(t, ok)
}

func TestInputReaders(t *testing.T) {
	in := map[string]any{"n": float64(5), "f": 0.5, "s": "x", "frac": 2.5, "i": 7}
	require.Equal(t, 5, Int(in, "n", 1))
	require.Equal(t, 1, Int(in, "frac", 1))
	require.Equal(t, 7, Int(in, "i", 1))
	require.Equal(t, 1, Int(in, "missing", 1))
	require.InDelta(t, 0.5, Float(in, "f", 0), 1e-9)
	require.Equal(t, "x", String(in, "s"))
	v, ok := Int64(in, "n")
	require.True(t, ok)
	require.EqualValues(t, 5, v)
	_, ok = Int64(in, "s")
	require.False(t, ok)
}
