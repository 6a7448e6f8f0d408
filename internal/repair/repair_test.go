package repair

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/mohammad-safakhou/campaigner/internal/campaign"
)

var fixedNow = time.Date(2025, 3, 1, 10, 30, 0, 0, time.UTC)

func newTestNormalizer() *Normalizer {
	return New(WithClock(func() time.Time { return fixedNow }), WithIDGenerator(func() string { return "camp_test" }))
}

func inner(t *testing.T, doc map[string]any) map[string]any {
	t.Helper()
	m, ok := doc[WrapperKey].(map[string]any)
	require.True(t, ok)
	return m
}

func TestNormalizeRequiresWrapper(t *testing.T) {
	n := newTestNormalizer()
	for name, raw := range map[string]map[string]any{
		"missing":    {"manifest": map[string]any{}},
		"not object": {WrapperKey: []any{}},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := n.Normalize(raw, "brief")
			var se *campaign.SchemaError
			require.True(t, errors.As(err, &se))
		})
	}
}

func TestNormalizeBackfillsDefaults(t *testing.T) {
	doc, err := newTestNormalizer().Normalize(map[string]any{WrapperKey: map[string]any{}}, "eco sneakers")
	require.NoError(t, err)
	m := inner(t, doc)
	require.Equal(t, "camp_test", m["campaign_id"])
	require.Equal(t, "eco sneakers", m["brief"])
	require.Equal(t, "2025-03-01T10:30:00Z", m["created_at"])
	require.Equal(t, "Asia/Kolkata", m["timezone"])
	require.Equal(t, "draft", m["status"])
	require.Equal(t, []any{}, m["asset_plan"])
	require.Equal(t, []any{}, m["posting_calendar"])
	require.Equal(t, []any{}, m["influencers"])
	require.Equal(t, map[string]any{}, m["metadata"])
}

func TestNormalizeAliasConvergence(t *testing.T) {
	strategy := map[string]any{"core_concept": "c", "tagline": "t", "target_audience": "a", "key_messages": []any{"k"}, "tone": "bold", "channels": []any{"instagram"}}
	calendar := []any{map[string]any{"date": "2025-03-02", "channel": "instagram", "asset_ids": []any{}}}

	cases := []struct {
		name      string
		canonical map[string]any
		alias     map[string]any
	}{
		{
			name:      "strategy",
			canonical: map[string]any{"strategy": strategy},
			alias:     map[string]any{"campaign_strategy": strategy},
		},
		{
			name:      "asset_plan",
			canonical: map[string]any{"asset_plan": []any{map[string]any{"id": "a", "type": "image", "prompt": "p"}}},
			alias:     map[string]any{"assets": []any{map[string]any{"id": "a", "type": "image", "prompt": "p"}}},
		},
		{
			name:      "posting_calendar",
			canonical: map[string]any{"posting_calendar": calendar},
			alias:     map[string]any{"calendar": calendar},
		},
		{
			name:      "type",
			canonical: map[string]any{"asset_plan": []any{map[string]any{"id": "a", "type": "caption", "prompt": "p"}}},
			alias:     map[string]any{"asset_plan": []any{map[string]any{"id": "a", "asset_type": "caption", "prompt": "p"}}},
		},
		{
			name:      "prompt",
			canonical: map[string]any{"asset_plan": []any{map[string]any{"id": "a", "type": "blog", "prompt": "write it"}}},
			alias:     map[string]any{"asset_plan": []any{map[string]any{"id": "a", "type": "blog", "description": "write it"}}},
		},
	}
	n := newTestNormalizer()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			want, err := n.Normalize(map[string]any{WrapperKey: tc.canonical}, "b")
			require.NoError(t, err)
			got, err := n.Normalize(map[string]any{WrapperKey: tc.alias}, "b")
			require.NoError(t, err)
			if diff := cmp.Diff(want, got); diff != "" {
				t.Fatalf("alias form differs (-canonical +alias):\n%s", diff)
			}
		})
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	raw := map[string]any{WrapperKey: map[string]any{
		"campaign_strategy": map[string]any{"core_concept": "c"},
		"assets": []any{
			map[string]any{"asset_type": "image", "tool_calls": []any{map[string]any{"tool": "image_generate", "input": map[string]any{"prompt": "a shoe"}}}},
			map[string]any{"type": "caption", "description": "caption it"},
		},
		"calendar":    map[string]any{"posts": []any{map[string]any{"date": "2025-03-02"}}},
		"influencers": []any{map[string]any{"name": "x", "followers": float64(1200)}},
	}}
	n := newTestNormalizer()
	once, err := n.Normalize(raw, "b")
	require.NoError(t, err)
	twice, err := n.Normalize(once, "b")
	require.NoError(t, err)
	if diff := cmp.Diff(once, twice); diff != "" {
		t.Fatalf("second normalization changed the document:\n%s", diff)
	}
}

func TestNormalizeDoesNotMutateInput(t *testing.T) {
	raw := map[string]any{WrapperKey: map[string]any{"assets": []any{}}}
	_, err := newTestNormalizer().Normalize(raw, "b")
	require.NoError(t, err)
	_, still := raw[WrapperKey].(map[string]any)["assets"]
	require.True(t, still)
}

func TestRepairAssets(t *testing.T) {
	m := map[string]any{"asset_plan": []any{
		map[string]any{"id": "asset_2"},
		map[string]any{"type": "image", "tool_calls": []any{map[string]any{"input": map[string]any{"prompt": "from call"}}}},
		map[string]any{"type": "text", "prompt": "", "description": "from description"},
		"not an asset",
	}}
	repairAssets(m, Env{})

	assets := m["asset_plan"].([]any)
	second := assets[1].(map[string]any)
	third := assets[2].(map[string]any)
	require.Equal(t, "asset_2_2", second["id"])
	require.Equal(t, "from call", second["prompt"])
	require.Equal(t, "asset_3", third["id"])
	require.Equal(t, "from description", third["prompt"])
	require.NotContains(t, third, "description")
	require.Equal(t, map[string]any{"moderation_passed": true, "issues": []any{}}, third["safety"])
	require.Equal(t, float64(1), third["version"])
	require.Equal(t, "not an asset", assets[3])
}

func TestDefaultToolCalls(t *testing.T) {
	m := map[string]any{"asset_plan": []any{map[string]any{"id": "hero", "tool_calls": []any{map[string]any{"tool": "llm_text"}}}}}
	defaultToolCalls(m, Env{})
	call := m["asset_plan"].([]any)[0].(map[string]any)["tool_calls"].([]any)[0].(map[string]any)
	require.Equal(t, "hero_call_1", call["id"])
	require.Equal(t, map[string]any{"max_attempts": float64(3), "backoff": "exponential"}, call["retry_policy"])
	require.Equal(t, map[string]any{}, call["expected_output_schema"])
	require.Equal(t, false, call["requires_approval"])
}

func TestUnwrapCalendar(t *testing.T) {
	cases := map[string]struct {
		in   map[string]any
		want []any
	}{
		"items": {in: map[string]any{"items": []any{"x"}}, want: []any{"x"}},
		"posts": {in: map[string]any{"posts": []any{"y"}}, want: []any{"y"}},
		"other": {in: map[string]any{"week1": []any{"z"}}, want: []any{}},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			m := map[string]any{"posting_calendar": tc.in}
			rule := DefaultRules()[len(DefaultRules())-1]
			require.Equal(t, "unwrap-posting-calendar", rule.Name)
			require.True(t, rule.When(m))
			rule.Apply(m, Env{})
			require.Equal(t, tc.want, m["posting_calendar"])
		})
	}
}

func TestStringifyInfluencers(t *testing.T) {
	m := map[string]any{"influencers": []any{map[string]any{"name": "a", "followers": float64(250000), "engagement_rate": 4.5}}}
	stringifyInfluencers(m, Env{})
	inf := m["influencers"].([]any)[0].(map[string]any)
	require.Equal(t, "250000", inf["followers"])
	require.Equal(t, "4.5", inf["engagement_rate"])
}

func TestRenameKeepsCanonicalWhenBothPresent(t *testing.T) {
	r := renameRule("assets", "asset_plan")
	m := map[string]any{"assets": []any{"alias"}, "asset_plan": []any{"canonical"}}
	require.False(t, r.When(m))
}
