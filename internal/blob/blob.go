// Package blob stores generated asset payloads outside the manifest.
package blob

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// ErrNotFound is returned when a locator does not resolve to a stored blob.
var ErrNotFound = errors.New("blob not found")

// Store persists payloads and hands back a locator to reference them.
type Store interface {
	Put(ctx context.Context, name string, data []byte) (string, error)
	Get(ctx context.Context, locator string) ([]byte, error)
	// Name returns the file name a locator points at, if it belongs to this store.
	Name(locator string) (string, bool)
}

// FS writes payloads as files under Dir. Locators are PublicBaseURL/<name>
// when a base URL is set, otherwise the file path.
type FS struct {
	Dir           string
	PublicBaseURL string
}

// NewFS returns a filesystem store, creating dir if needed.
func NewFS(dir, publicBaseURL string) (*FS, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create assets dir: %w", err)
	}
	return &FS{Dir: dir, PublicBaseURL: strings.TrimRight(publicBaseURL, "/")}, nil
}

func validName(name string) bool {
	return name != "" && name == filepath.Base(name) && name != "." && name != ".."
}

func (s *FS) Put(ctx context.Context, name string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !validName(name) {
		return "", fmt.Errorf("invalid blob name %q", name)
	}
	p := filepath.Join(s.Dir, name)
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("write blob: %w", err)
	}
	if err := os.Rename(tmp, p); err != nil {
		return "", fmt.Errorf("commit blob: %w", err)
	}
	if s.PublicBaseURL != "" {
		return s.PublicBaseURL + "/" + name, nil
	}
	return p, nil
}

func (s *FS) Name(locator string) (string, bool) {
	var name string
	switch {
	case s.PublicBaseURL != "" && strings.HasPrefix(locator, s.PublicBaseURL+"/"):
		name = strings.TrimPrefix(locator, s.PublicBaseURL+"/")
	case strings.HasPrefix(filepath.Clean(locator), filepath.Clean(s.Dir)+string(filepath.Separator)):
		name = filepath.Base(locator)
	default:
		return "", false
	}
	name = path.Clean(name)
	return name, validName(name)
}

func (s *FS) Get(ctx context.Context, locator string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name, ok := s.Name(locator)
	if !ok {
		return nil, ErrNotFound
	}
	data, err := os.ReadFile(filepath.Join(s.Dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	return data, err
}
