package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/mohammad-safakhou/campaigner/internal/campaign"
)

// File keeps one <campaign_id>.json per campaign under Dir.
type File struct {
	Dir string
	mu  sync.RWMutex
}

func NewFile(dir string) (*File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &File{Dir: dir}, nil
}

func (f *File) path(id string) (string, error) {
	if id == "" || id != filepath.Base(id) || strings.HasPrefix(id, ".") {
		return "", fmt.Errorf("invalid campaign id %q", id)
	}
	return filepath.Join(f.Dir, id+".json"), nil
}

func (f *File) Save(ctx context.Context, doc *campaign.Document) (err error) {
	defer func() { observe(ctx, "file", "save", err) }()
	raw, err := encode(doc)
	if err != nil {
		return err
	}
	p, err := f.path(doc.Manifest.CampaignID)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("write campaign: %w", err)
	}
	return os.Rename(tmp, p)
}

func (f *File) Load(ctx context.Context, campaignID string) (doc *campaign.Document, err error) {
	defer func() { observe(ctx, "file", "load", err) }()
	p, err := f.path(campaignID)
	if err != nil {
		return nil, ErrNotFound
	}
	f.mu.RLock()
	raw, err := os.ReadFile(p)
	f.mu.RUnlock()
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read campaign %s: %w", campaignID, err)
	}
	return decode(raw)
}

func (f *File) all(ctx context.Context) ([]*campaign.Document, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	entries, err := os.ReadDir(f.Dir)
	if err != nil {
		return nil, fmt.Errorf("read data dir: %w", err)
	}
	var docs []*campaign.Document
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(f.Dir, e.Name()))
		if err != nil {
			return nil, err
		}
		doc, err := decode(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", e.Name(), err)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (f *File) List(ctx context.Context) (out []campaign.Summary, err error) {
	defer func() { observe(ctx, "file", "list", err) }()
	docs, err := f.all(ctx)
	if err != nil {
		return nil, err
	}
	out = make([]campaign.Summary, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.Manifest.Summarize())
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt > out[j].CreatedAt
		}
		return out[i].CampaignID < out[j].CampaignID
	})
	return out, nil
}

func (f *File) FindByAssetID(ctx context.Context, assetID string) (id string, err error) {
	defer func() { observe(ctx, "file", "find_asset", err) }()
	docs, err := f.all(ctx)
	if err != nil {
		return "", err
	}
	// asset ids repeat across campaigns; the newest campaign wins
	sort.SliceStable(docs, func(i, j int) bool {
		return docs[i].Manifest.CreatedAt > docs[j].Manifest.CreatedAt
	})
	for _, d := range docs {
		if _, ok := d.Manifest.Asset(assetID); ok {
			return d.Manifest.CampaignID, nil
		}
	}
	return "", ErrNotFound
}
