// Package storage exposes blob persistence as the store_asset tool.
package storage

import (
	"context"
	"encoding/base64"
	"strings"

	"github.com/mohammad-safakhou/campaigner/internal/blob"
	"github.com/mohammad-safakhou/campaigner/tools"
)

// Tool writes input.content (text) or input.data (base64) to the blob store
// as <key>.<format>.
type Tool struct {
	blobs blob.Store
}

func New(blobs blob.Store) *Tool {
	return &Tool{blobs: blobs}
}

func (t *Tool) Execute(ctx context.Context, input map[string]any) (tools.Result, error) {
	if t.blobs == nil {
		return tools.Failure("asset storage not configured"), nil
	}
	key := strings.TrimSpace(tools.String(input, "key"))
	if key == "" {
		return tools.Failure("No key provided"), nil
	}
	format := strings.TrimPrefix(tools.String(input, "format"), ".")
	if format == "" {
		format = "txt"
	}

	var data []byte
	switch {
	case tools.String(input, "data") != "":
		raw, err := base64.StdEncoding.DecodeString(tools.String(input, "data"))
		if err != nil {
			return tools.Failure("invalid base64 data: " + err.Error()), nil
		}
		data = raw
	case tools.String(input, "content") != "":
		data = []byte(tools.String(input, "content"))
	default:
		return tools.Failure("No content provided"), nil
	}

	url, err := t.blobs.Put(ctx, key+"."+format, data)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return tools.Failure(err.Error()), nil
	}
	return tools.Success(map[string]any{"url": url, "bytes": len(data)}), nil
}
