package storage

import (
	"context"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mohammad-safakhou/campaigner/internal/blob"
)

func TestStoreAsset(t *testing.T) {
	fs, err := blob.NewFS(t.TempDir(), "/storage/assets")
	require.NoError(t, err)
	tool := New(fs)

	res, err := tool.Execute(context.Background(), map[string]any{"key": "blog_1", "content": "Hello"})
	require.NoError(t, err)
	require.True(t, res.OK())
	require.Equal(t, "/storage/assets/blog_1.txt", res.String("url"))

	res, err = tool.Execute(context.Background(), map[string]any{"key": "hero", "format": "png", "data": base64.StdEncoding.EncodeToString([]byte{1, 2})})
	require.NoError(t, err)
	require.Equal(t, "/storage/assets/hero.png", res.String("url"))
	got, err := fs.Get(context.Background(), res.String("url"))
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2}, got)
}

func TestStoreAssetFailures(t *testing.T) {
	fs, err := blob.NewFS(t.TempDir(), "")
	require.NoError(t, err)
	for name, tc := range map[string]struct {
		input map[string]any
		want  string
	}{
		"no key":     {map[string]any{"content": "x"}, "No key provided"},
		"no content": {map[string]any{"key": "k"}, "No content provided"},
		"bad data":   {map[string]any{"key": "k", "data": "%%%"}, ""},
	} {
		t.Run(name, func(t *testing.T) {
			res, err := New(fs).Execute(context.Background(), tc.input)
			require.NoError(t, err)
			require.False(t, res.OK())
			if tc.want != "" {
				require.Equal(t, tc.want, res.ErrorMessage())
			}
		})
	}
}
