package blob

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFSPutGetWithPublicURL(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFS(dir, "/storage/assets/")
	require.NoError(t, err)

	loc, err := s.Put(context.Background(), "hero_v2.png", []byte("img"))
	require.NoError(t, err)
	require.Equal(t, "/storage/assets/hero_v2.png", loc)
	require.FileExists(t, filepath.Join(dir, "hero_v2.png"))

	data, err := s.Get(context.Background(), loc)
	require.NoError(t, err)
	require.Equal(t, []byte("img"), data)

	name, ok := s.Name(loc)
	require.True(t, ok)
	require.Equal(t, "hero_v2.png", name)
}

func TestFSPathLocators(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFS(dir, "")
	require.NoError(t, err)
	loc, err := s.Put(context.Background(), "a.txt", []byte("x"))
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "a.txt"), loc)

	_, err = s.Get(context.Background(), "https://elsewhere/a.txt")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = s.Get(context.Background(), filepath.Join(dir, "missing.png"))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestFSRejectsTraversal(t *testing.T) {
	s, err := NewFS(t.TempDir(), "/assets")
	require.NoError(t, err)
	_, err = s.Put(context.Background(), "../escape.png", nil)
	require.Error(t, err)
	_, ok := s.Name("/assets/../etc/passwd")
	require.False(t, ok)
}
