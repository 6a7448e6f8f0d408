package generation

import (
	"context"
	"encoding/base64"
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/mohammad-safakhou/campaigner/internal/blob"
	"github.com/mohammad-safakhou/campaigner/internal/campaign"
	"github.com/mohammad-safakhou/campaigner/internal/executor"
	"github.com/mohammad-safakhou/campaigner/tools"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type harness struct {
	engine *Engine
	blobs  *blob.FS
	calls  map[campaign.ToolKind]int
	inputs map[campaign.ToolKind][]map[string]any
}

func newHarness(t *testing.T, overrides tools.Registry) *harness {
	t.Helper()
	h := &harness{
		calls:  map[campaign.ToolKind]int{},
		inputs: map[campaign.ToolKind][]map[string]any{},
	}
	fs, err := blob.NewFS(t.TempDir(), "/storage/assets")
	require.NoError(t, err)
	h.blobs = fs

	png := base64.StdEncoding.EncodeToString([]byte("\x89PNG fake"))
	base := tools.Registry{
		campaign.ToolLLMText: tools.Func(func(_ context.Context, in map[string]any) (tools.Result, error) {
			return tools.Success(map[string]any{"text": "copy for " + tools.String(in, "prompt"), "model": "fake-llm"}), nil
		}),
		campaign.ToolImageGenerate: tools.Func(func(context.Context, map[string]any) (tools.Result, error) {
			return tools.Success(map[string]any{"image_data": png, "format": "png", "provider": "huggingface", "model": "sdxl"}), nil
		}),
		campaign.ToolModeration: tools.Func(func(context.Context, map[string]any) (tools.Result, error) {
			return tools.Success(map[string]any{"moderation_passed": false, "issues": []any{"too loud"}}), nil
		}),
		campaign.ToolComputeEmbedding: tools.Func(func(context.Context, map[string]any) (tools.Result, error) {
			return tools.Success(map[string]any{"embedding": []any{0.1, 0.2}, "dimensions": 2}), nil
		}),
	}
	for k, v := range overrides {
		base[k] = v
	}
	counting := tools.Registry{}
	for kind, tool := range base {
		kind, tool := kind, tool
		counting[kind] = tools.Func(func(ctx context.Context, in map[string]any) (tools.Result, error) {
			h.calls[kind]++
			h.inputs[kind] = append(h.inputs[kind], in)
			return tool.Execute(ctx, in)
		})
	}
	ex := executor.New(counting, executor.WithSleeper(func(context.Context, time.Duration) error { return nil }))
	h.engine = New(ex, fs, WithRand(rand.New(rand.NewSource(7))))
	return h
}

func toolCall(kind campaign.ToolKind, id string, input map[string]any) campaign.ToolCall {
	if input == nil {
		input = map[string]any{}
	}
	return campaign.ToolCall{Tool: kind, ID: id, Input: input, RetryPolicy: campaign.RetryPolicy{MaxAttempts: 2, Backoff: campaign.BackoffLinear}}
}

func sampleManifest() *campaign.Manifest {
	return &campaign.Manifest{
		CampaignID: "camp_test",
		Status:     campaign.StatusGenerating,
		AssetPlan: []campaign.Asset{
			{
				ID: "asset_1", Type: campaign.AssetCaption, Version: 1, Prompt: "caption prompt",
				Safety: campaign.AssetSafety{ModerationPassed: true, Issues: []string{}},
				ToolCalls: []campaign.ToolCall{
					toolCall(campaign.ToolLLMText, "asset_1_call_1", map[string]any{"prompt": "write a caption"}),
					toolCall(campaign.ToolModeration, "asset_1_call_2", nil),
				},
			},
			{
				ID: "asset_2", Type: campaign.AssetImage, Version: 1, Prompt: "hero shot",
				Safety: campaign.AssetSafety{ModerationPassed: true, Issues: []string{}},
				ToolCalls: []campaign.ToolCall{
					toolCall(campaign.ToolImageGenerate, "asset_2_call_1", map[string]any{"prompt": "sneaker on moss"}),
				},
			},
		},
	}
}

func TestGenerateAppliesResults(t *testing.T) {
	h := newHarness(t, nil)
	m := sampleManifest()

	require.NoError(t, h.engine.Generate(context.Background(), m))
	require.Equal(t, campaign.StatusReady, m.Status)

	caption := m.AssetPlan[0]
	require.Equal(t, "copy for write a caption", caption.Content)
	require.Equal(t, "fake-llm", caption.Model)
	require.False(t, caption.Safety.ModerationPassed)
	require.Equal(t, []string{"too loud"}, caption.Safety.Issues)
	require.Equal(t, "copy for write a caption", h.inputs[campaign.ToolModeration][0]["text"])
	_, stored := caption.ToolCalls[1].Input["text"]
	require.False(t, stored, "bound input must not be persisted on the call")

	img := m.AssetPlan[1]
	require.Equal(t, "/storage/assets/asset_2.png", img.URL)
	require.Equal(t, "huggingface", img.Provider)
	require.Equal(t, "sdxl", img.Model)
	require.NotContains(t, img.ToolCalls[0].Result, "image_data")
	require.Equal(t, img.URL, img.ToolCalls[0].Result["url"])
	data, err := os.ReadFile(filepath.Join(h.blobs.Dir, "asset_2.png"))
	require.NoError(t, err)
	require.Equal(t, []byte("\x89PNG fake"), data)
}

func TestGenerateContainsPartialFailures(t *testing.T) {
	h := newHarness(t, tools.Registry{
		campaign.ToolLLMText: tools.Func(func(context.Context, map[string]any) (tools.Result, error) {
			return tools.Failure("quota exhausted"), nil
		}),
	})
	m := sampleManifest()

	require.NoError(t, h.engine.Generate(context.Background(), m))
	require.Equal(t, campaign.StatusReady, m.Status)

	failed := m.AssetPlan[0].ToolCalls[0]
	require.NotNil(t, failed.Error)
	require.Equal(t, campaign.ErrorCodeExecutionFailed, failed.Error.Code)
	require.Equal(t, executor.ErrMaxRetries, failed.Error.Message)
	require.Empty(t, m.AssetPlan[0].Content)

	// the later call of the same asset and the next asset still ran
	require.Equal(t, 2, h.calls[campaign.ToolLLMText])
	require.Equal(t, 1, h.calls[campaign.ToolModeration])
	require.Equal(t, 1, h.calls[campaign.ToolImageGenerate])
	require.NotEmpty(t, m.AssetPlan[1].URL)
	require.Equal(t, 1, m.FailedCalls())
}

func TestGenerateUnknownToolIsRecorded(t *testing.T) {
	h := newHarness(t, nil)
	m := sampleManifest()
	m.AssetPlan[0].ToolCalls = append(m.AssetPlan[0].ToolCalls, toolCall(campaign.ToolWebSearch, "asset_1_call_3", map[string]any{"q": "eco"}))

	require.NoError(t, h.engine.Generate(context.Background(), m))
	call := m.AssetPlan[0].ToolCalls[2]
	require.NotNil(t, call.Error)
	require.Equal(t, "Unknown tool: web_search", call.Error.Message)
	require.Equal(t, campaign.StatusReady, m.Status)
}

func TestGenerateStopsOnCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h := newHarness(t, tools.Registry{
		campaign.ToolLLMText: tools.Func(func(context.Context, map[string]any) (tools.Result, error) {
			cancel()
			return nil, context.Canceled
		}),
	})
	m := sampleManifest()

	err := h.engine.Generate(ctx, m)
	require.True(t, errors.Is(err, context.Canceled))
	require.Equal(t, campaign.StatusGenerating, m.Status)
	require.Zero(t, h.calls[campaign.ToolImageGenerate])
}

func TestRegenerateVersioningAndSeeds(t *testing.T) {
	h := newHarness(t, nil)
	m := sampleManifest()
	require.NoError(t, h.engine.Generate(context.Background(), m))

	const rounds = 3
	var seeds []int64
	for r := 1; r <= rounds; r++ {
		require.NoError(t, h.engine.Regenerate(context.Background(), m, "asset_2", ""))
		require.NoError(t, h.engine.Regenerate(context.Background(), m, "asset_1", ""))

		img := m.AssetPlan[1]
		require.Equal(t, 1+r, img.Version)
		require.NotNil(t, img.Seed)
		require.GreaterOrEqual(t, *img.Seed, int64(1))
		seeds = append(seeds, *img.Seed)
		require.EqualValues(t, *img.Seed, h.inputs[campaign.ToolImageGenerate][r]["seed"])

		require.Equal(t, 1+r, m.AssetPlan[0].Version)
		require.Nil(t, m.AssetPlan[0].Seed)
	}
	require.NotEqual(t, seeds[0], seeds[1])
	require.Equal(t, "/storage/assets/asset_2_v4.png", m.AssetPlan[1].URL)
	for _, name := range []string{"asset_2.png", "asset_2_v2.png", "asset_2_v3.png", "asset_2_v4.png"} {
		_, err := os.Stat(filepath.Join(h.blobs.Dir, name))
		require.NoError(t, err, name)
	}
}

func TestRegenerateAccumulatesInstructions(t *testing.T) {
	h := newHarness(t, nil)
	m := sampleManifest()

	require.NoError(t, h.engine.Regenerate(context.Background(), m, "asset_1", "make it shorter"))
	require.NoError(t, h.engine.Regenerate(context.Background(), m, "asset_1", "add an emoji"))

	want := "write a caption\n\nModification: make it shorter\n\nModification: add an emoji"
	require.Equal(t, want, m.AssetPlan[0].ToolCalls[0].InputString("prompt"))
	require.Equal(t, "copy for "+want, m.AssetPlan[0].Content)
	_, touched := m.AssetPlan[0].ToolCalls[1].Input["prompt"]
	require.False(t, touched, "moderation prompt must not be modified")
}

func TestRegenerateKeepsAssetPromptWhenCallHasNone(t *testing.T) {
	h := newHarness(t, nil)
	m := sampleManifest()
	m.AssetPlan[0].Prompt = "write a caption about moss sneakers"
	m.AssetPlan[0].ToolCalls[0].Input = map[string]any{}

	require.NoError(t, h.engine.Generate(context.Background(), m))
	require.Equal(t, "write a caption about moss sneakers", h.inputs[campaign.ToolLLMText][0]["prompt"])

	require.NoError(t, h.engine.Regenerate(context.Background(), m, "asset_1", "make it shorter"))
	got := tools.String(h.inputs[campaign.ToolLLMText][1], "prompt")
	require.Equal(t, "write a caption about moss sneakers\n\nModification: make it shorter", got)
	require.Equal(t, "copy for "+got, m.AssetPlan[0].Content)
}

func TestRegenerateLeavesOtherAssetsAndStatus(t *testing.T) {
	h := newHarness(t, nil)
	m := sampleManifest()
	m.Status = campaign.StatusApproved
	before, err := (&campaign.Document{Manifest: m}).Clone()
	require.NoError(t, err)

	require.NoError(t, h.engine.Regenerate(context.Background(), m, "asset_2", "brighter"))
	require.Equal(t, campaign.StatusApproved, m.Status)
	if diff := cmp.Diff(before.Manifest.AssetPlan[0], m.AssetPlan[0]); diff != "" {
		t.Fatalf("other asset changed (-before +after):\n%s", diff)
	}
	require.Zero(t, h.calls[campaign.ToolLLMText])
}

func TestRegenerateUnknownAsset(t *testing.T) {
	h := newHarness(t, nil)
	m := sampleManifest()
	before, err := (&campaign.Document{Manifest: m}).Clone()
	require.NoError(t, err)

	err = h.engine.Regenerate(context.Background(), m, "asset_404", "anything")
	require.ErrorIs(t, err, campaign.ErrAssetNotFound)
	require.Equal(t, "Asset not found", err.Error())
	if diff := cmp.Diff(before.Manifest, m); diff != "" {
		t.Fatalf("manifest modified (-before +after):\n%s", diff)
	}
}

func TestRegenerateFailedImageKeepsStaleURL(t *testing.T) {
	h := newHarness(t, nil)
	m := sampleManifest()
	require.NoError(t, h.engine.Generate(context.Background(), m))
	url := m.AssetPlan[1].URL

	h.engine.runner = executor.New(tools.Registry{
		campaign.ToolImageGenerate: tools.Func(func(context.Context, map[string]any) (tools.Result, error) {
			return tools.Failure("API error: 500 - boom"), nil
		}),
	}, executor.WithSleeper(func(context.Context, time.Duration) error { return nil }))

	require.NoError(t, h.engine.Regenerate(context.Background(), m, "asset_2", ""))
	require.Equal(t, 2, m.AssetPlan[1].Version)
	require.Equal(t, url, m.AssetPlan[1].URL)
	require.NotNil(t, m.AssetPlan[1].ToolCalls[0].Error)
}

func TestBindInputStoreAsset(t *testing.T) {
	a := &campaign.Asset{ID: "asset_9", Content: "hello"}
	call := &campaign.ToolCall{Tool: campaign.ToolStoreAsset, Input: map[string]any{}}
	in := bindInput(a, call, "asset_9_v2")
	require.Equal(t, "asset_9_v2", in["key"])
	require.Equal(t, "hello", in["content"])
	require.Empty(t, call.Input)
}
