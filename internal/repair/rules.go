package repair

import (
	"fmt"
	"time"

	"github.com/mohammad-safakhou/campaigner/internal/campaign"
)

// DefaultRules returns the manifest repair rules in application order.
func DefaultRules() []Rule {
	return []Rule{
		{Name: "backfill-scalars", Apply: backfillScalars},
		renameRule("campaign_strategy", "strategy"),
		renameRule("assets", "asset_plan"),
		renameRule("calendar", "posting_calendar"),
		{Name: "default-collections", Apply: defaultCollections},
		{Name: "repair-assets", When: hasSequence("asset_plan"), Apply: repairAssets},
		{Name: "default-tool-calls", When: hasSequence("asset_plan"), Apply: defaultToolCalls},
		{Name: "stringify-influencers", When: hasSequence("influencers"), Apply: stringifyInfluencers},
		{Name: "unwrap-posting-calendar", When: isMapping("posting_calendar"), Apply: unwrapCalendar},
	}
}

func missing(m map[string]any, key string) bool {
	v, ok := m[key]
	if !ok || v == nil {
		return true
	}
	s, isStr := v.(string)
	return isStr && s == ""
}

func hasSequence(key string) func(map[string]any) bool {
	return func(m map[string]any) bool {
		_, ok := m[key].([]any)
		return ok
	}
}

func isMapping(key string) func(map[string]any) bool {
	return func(m map[string]any) bool {
		_, ok := m[key].(map[string]any)
		return ok
	}
}

func backfillScalars(m map[string]any, env Env) {
	if missing(m, "campaign_id") {
		m["campaign_id"] = env.NewID()
	}
	if missing(m, "brief") {
		m["brief"] = env.Brief
	}
	if missing(m, "created_at") {
		m["created_at"] = env.Now().Format(time.RFC3339)
	}
	if missing(m, "timezone") {
		m["timezone"] = campaign.DefaultTimezone
	}
	if missing(m, "status") {
		m["status"] = string(campaign.StatusDraft)
	}
}

// renameRule moves alias to canonical when only the alias is present.
func renameRule(alias, canonical string) Rule {
	return Rule{
		Name: "rename-" + alias,
		When: func(m map[string]any) bool {
			_, hasAlias := m[alias]
			_, hasCanonical := m[canonical]
			return hasAlias && !hasCanonical
		},
		Apply: func(m map[string]any, _ Env) {
			m[canonical] = m[alias]
			delete(m, alias)
		},
	}
}

func defaultCollections(m map[string]any, _ Env) {
	for _, key := range []string{"asset_plan", "posting_calendar", "influencers"} {
		if m[key] == nil {
			m[key] = []any{}
		}
	}
	if m["metadata"] == nil {
		m["metadata"] = map[string]any{}
	}
}

func eachAsset(m map[string]any, fn func(i int, asset map[string]any)) {
	assets, _ := m["asset_plan"].([]any)
	for i, v := range assets {
		if asset, ok := v.(map[string]any); ok {
			fn(i, asset)
		}
	}
}

func repairAssets(m map[string]any, _ Env) {
	taken := map[string]bool{}
	eachAsset(m, func(_ int, a map[string]any) {
		if id, ok := a["id"].(string); ok && id != "" {
			taken[id] = true
		}
	})

	eachAsset(m, func(i int, a map[string]any) {
		if _, ok := a["type"]; !ok {
			if t, has := a["asset_type"]; has {
				a["type"] = t
				delete(a, "asset_type")
			}
		}
		if missing(a, "id") {
			a["id"] = uniqueAssetID(i, taken)
		}
		if _, ok := a["prompt"]; !ok || a["prompt"] == nil {
			a["prompt"] = firstToolPrompt(a)
		}
		if p, _ := a["prompt"].(string); p == "" {
			if d, ok := a["description"]; ok {
				a["prompt"] = d
				delete(a, "description")
			}
		}
		if a["safety"] == nil {
			a["safety"] = map[string]any{"moderation_passed": true, "issues": []any{}}
		}
		if a["version"] == nil {
			a["version"] = float64(1)
		}
		if a["tool_calls"] == nil {
			a["tool_calls"] = []any{}
		}
		if a["metadata"] == nil {
			a["metadata"] = map[string]any{}
		}
	})
}

func uniqueAssetID(i int, taken map[string]bool) string {
	base := fmt.Sprintf("asset_%d", i+1)
	id := base
	for n := 2; taken[id]; n++ {
		id = fmt.Sprintf("%s_%d", base, n)
	}
	taken[id] = true
	return id
}

func firstToolPrompt(a map[string]any) string {
	calls, _ := a["tool_calls"].([]any)
	if len(calls) == 0 {
		return ""
	}
	call, _ := calls[0].(map[string]any)
	input, _ := call["input"].(map[string]any)
	p, _ := input["prompt"].(string)
	return p
}

func defaultToolCalls(m map[string]any, _ Env) {
	eachAsset(m, func(_ int, a map[string]any) {
		calls, _ := a["tool_calls"].([]any)
		assetID, _ := a["id"].(string)
		for j, v := range calls {
			call, ok := v.(map[string]any)
			if !ok {
				continue
			}
			if missing(call, "id") {
				call["id"] = fmt.Sprintf("%s_call_%d", assetID, j+1)
			}
			if call["input"] == nil {
				call["input"] = map[string]any{}
			}
			if call["expected_output_schema"] == nil {
				call["expected_output_schema"] = map[string]any{}
			}
			if call["retry_policy"] == nil {
				p := campaign.DefaultRetryPolicy()
				call["retry_policy"] = map[string]any{"max_attempts": float64(p.MaxAttempts), "backoff": string(p.Backoff)}
			}
			if call["safety_checks"] == nil {
				call["safety_checks"] = []any{}
			}
			if call["requires_approval"] == nil {
				call["requires_approval"] = false
			}
		}
	})
}

func stringifyInfluencers(m map[string]any, _ Env) {
	list, _ := m["influencers"].([]any)
	for _, v := range list {
		inf, ok := v.(map[string]any)
		if !ok {
			continue
		}
		for _, key := range []string{"name", "handle", "platform", "followers", "engagement_rate"} {
			if val, has := inf[key]; has && val != nil {
				if _, isStr := val.(string); !isStr {
					inf[key] = campaign.Scalar(val)
				}
			}
		}
	}
}

func unwrapCalendar(m map[string]any, _ Env) {
	cal := m["posting_calendar"].(map[string]any)
	for _, key := range []string{"items", "posts"} {
		if items, ok := cal[key].([]any); ok {
			m["posting_calendar"] = items
			return
		}
	}
	m["posting_calendar"] = []any{}
}
