package campaign

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInfluencerKeepsUnknownKeys(t *testing.T) {
	var inf Influencer
	err := json.Unmarshal([]byte(`{"name":"Asha","handle":"@asha","platform":"instagram","followers":250000,"niche":"Fitness"}`), &inf)
	require.NoError(t, err)
	require.Equal(t, "250000", inf.Followers)
	require.Equal(t, "Fitness", inf.Extra["niche"])

	raw, err := json.Marshal(inf)
	require.NoError(t, err)
	var back map[string]any
	require.NoError(t, json.Unmarshal(raw, &back))
	require.Equal(t, "Fitness", back["niche"])
	require.Equal(t, "250000", back["followers"])
	_, hasRate := back["engagement_rate"]
	require.False(t, hasRate)
}

func TestPostingCalendarItemDefaultsToApproval(t *testing.T) {
	var items []PostingCalendarItem
	require.NoError(t, json.Unmarshal([]byte(`[{"date":"2025-01-01","channel":"instagram","asset_ids":[]},{"date":"2025-01-02","channel":"x","asset_ids":[],"requires_approval":false}]`), &items))
	require.True(t, items[0].RequiresApproval)
	require.False(t, items[1].RequiresApproval)
}

func TestManifestAssetLookupAndClone(t *testing.T) {
	doc := &Document{Manifest: &Manifest{
		CampaignID: "c1",
		AssetPlan: []Asset{
			{ID: "a1", Type: AssetText, Version: 1, ToolCalls: []ToolCall{{ID: "t1", Tool: ToolLLMText, Error: &CallError{Code: ErrorCodeExecutionFailed}}}},
			{ID: "a2", Type: AssetImage, Version: 1},
		},
	}}

	a, ok := doc.Manifest.Asset("a2")
	require.True(t, ok)
	a.Version = 4
	require.Equal(t, 4, doc.Manifest.AssetPlan[1].Version)

	_, ok = doc.Manifest.Asset("missing")
	require.False(t, ok)
	require.Equal(t, 1, doc.Manifest.FailedCalls())
	require.Equal(t, []string{"a1", "a2"}, doc.Manifest.AssetIDs())

	cp, err := doc.Clone()
	require.NoError(t, err)
	cp.Manifest.AssetPlan[0].Prompt = "changed"
	require.Empty(t, doc.Manifest.AssetPlan[0].Prompt)
}

func TestErrorMessages(t *testing.T) {
	require.Equal(t, "Asset not found", ErrAssetNotFound.Error())
	ve := &ValidationError{Field: "campaign_manifest.status", Message: "bad"}
	require.Contains(t, ve.Error(), "campaign_manifest.status")

	wrapped := &SchemaError{Reason: "invalid json", Err: errors.New("eof")}
	var se *SchemaError
	require.ErrorAs(t, error(wrapped), &se)
	require.Equal(t, "execution_failed", (&ToolExecutionError{Message: "x"}).CallError().Code)
	require.True(t, StatusReady.Valid())
	require.False(t, Status("done").Valid())
}
