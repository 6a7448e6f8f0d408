// Package export packages a campaign and its asset payloads as a ZIP archive.
package export

import (
	"archive/zip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/mohammad-safakhou/campaigner/internal/blob"
	"github.com/mohammad-safakhou/campaigner/internal/campaign"
)

// ManifestEntry is the archive path of the manifest.
const ManifestEntry = "campaign_manifest.json"

// FileName is the download name for a campaign archive.
func FileName(campaignID string) string {
	return fmt.Sprintf("campaign_%s.zip", campaignID)
}

// Write streams the archive for doc to w. Asset urls that do not resolve to a
// blob in blobs are skipped; text content is written as assets/<id>.txt.
func Write(ctx context.Context, w io.Writer, doc *campaign.Document, blobs blob.Store) error {
	if doc == nil || doc.Manifest == nil {
		return fmt.Errorf("export: empty document")
	}
	zw := zip.NewWriter(w)

	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	if err := add(zw, ManifestEntry, raw); err != nil {
		return err
	}

	seen := map[string]bool{ManifestEntry: true}
	for _, a := range doc.Manifest.AssetPlan {
		if err := ctx.Err(); err != nil {
			return err
		}
		if a.URL != "" && blobs != nil {
			if name, ok := blobs.Name(a.URL); ok && !seen["assets/"+name] {
				data, err := blobs.Get(ctx, a.URL)
				switch {
				case errors.Is(err, blob.ErrNotFound):
				case err != nil:
					return fmt.Errorf("read asset %s: %w", a.ID, err)
				default:
					if err := add(zw, "assets/"+name, data); err != nil {
						return err
					}
					seen["assets/"+name] = true
				}
			}
		}
		if a.Content != "" {
			entry := "assets/" + a.ID + ".txt"
			if seen[entry] {
				continue
			}
			if err := add(zw, entry, []byte(a.Content)); err != nil {
				return err
			}
			seen[entry] = true
		}
	}
	return zw.Close()
}

func add(zw *zip.Writer, name string, data []byte) error {
	f, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("zip entry %s: %w", name, err)
	}
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}
