package export

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mohammad-safakhou/campaigner/internal/blob"
	"github.com/mohammad-safakhou/campaigner/internal/campaign"
)

func TestWriteArchive(t *testing.T) {
	ctx := context.Background()
	blobs, err := blob.NewFS(t.TempDir(), "/storage/assets")
	require.NoError(t, err)
	url, err := blobs.Put(ctx, "asset_img.png", []byte("png-bytes"))
	require.NoError(t, err)

	doc := &campaign.Document{Manifest: &campaign.Manifest{
		CampaignID: "campaign_1",
		Brief:      "sneakers",
		AssetPlan: []campaign.Asset{
			{ID: "asset_img", Type: campaign.AssetImage, URL: url},
			{ID: "asset_copy", Type: campaign.AssetText, Content: "Walk lighter."},
			{ID: "asset_remote", Type: campaign.AssetImage, URL: "https://cdn.example.com/x.png"},
			{ID: "asset_gone", Type: campaign.AssetImage, URL: "/storage/assets/missing.png"},
		},
	}}

	var buf bytes.Buffer
	require.NoError(t, Write(ctx, &buf, doc, blobs))

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	files := map[string][]byte{}
	var names []string
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		_ = rc.Close()
		files[f.Name] = data
		names = append(names, f.Name)
	}
	sort.Strings(names)
	require.Equal(t, []string{"assets/asset_copy.txt", "assets/asset_img.png", ManifestEntry}, names)
	require.Equal(t, "png-bytes", string(files["assets/asset_img.png"]))
	require.Equal(t, "Walk lighter.", string(files["assets/asset_copy.txt"]))

	var back campaign.Document
	require.NoError(t, json.Unmarshal(files[ManifestEntry], &back))
	require.Equal(t, "campaign_1", back.Manifest.CampaignID)
	require.Equal(t, "campaign_campaign_1.zip", FileName("campaign_1"))
}

func TestWriteRejectsEmptyDocument(t *testing.T) {
	require.Error(t, Write(context.Background(), io.Discard, &campaign.Document{}, nil))
}
