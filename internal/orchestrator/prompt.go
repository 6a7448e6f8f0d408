package orchestrator

import (
	"encoding/json"
	"fmt"
)

const manifestSystemPrompt = `You plan marketing campaigns. Turn the brief into one JSON object whose only top-level key is "campaign_manifest". Reply with JSON only: no prose, no markdown.

campaign_manifest fields:
- campaign_id: string
- brief: the brief, verbatim
- created_at: ISO-8601 timestamp
- timezone: IANA name, "Asia/Kolkata" unless the brief says otherwise
- strategy: object with core_concept, tagline, target_audience, key_messages (3 to 5 strings), tone, channels (platform names such as "instagram")
- asset_plan: array of assets
- posting_calendar: ARRAY of {date "YYYY-MM-DD", channel, asset_ids, caption (optional), requires_approval: true}
- influencers: array of {name, handle, platform, followers, engagement_rate}
- status: "draft"
- metadata: object

Every asset uses exactly these keys:
- id: unique string
- type: one of "image", "text", "video_script", "caption", "blog", "flyer"
- version: 1
- seed: integer or null
- prompt: the generation prompt
- model, provider, url, content: null
- safety: {"moderation_passed": true, "issues": []}
- tool_calls: array of tool calls, executed in order
- metadata: object

Plan 3 to 5 captions, 2 or 3 images, 1 video_script, 1 blog and 1 flyer.

Every tool call uses exactly these keys:
- tool: one of "llm_text", "image_generate", "web_search", "moderation", "store_asset", "compute_embedding"
- id: unique string
- input: tool inputs; llm_text takes prompt, temperature (0.2 strategic, 0.6 creative), max_tokens; image_generate takes prompt, size "1024x1024", seed; web_search takes q, max_results; moderation takes type ("text" or "image")
- expected_output_schema: object naming the expected output keys
- retry_policy: {"max_attempts": 3, "backoff": "exponential"}
- safety_checks: array such as ["moderation_text"]
- requires_approval: true for anything that would reach the outside world

Each asset runs its generation call first (llm_text or image_generate), then a moderation call, then a compute_embedding call. Keep captions under 140 characters and scripts short. Never plan publish or send actions.`

func manifestPrompt(brief string) string {
	return fmt.Sprintf("Brief: %s\n\nProduce the complete campaign manifest: strategy, asset_plan with tool_calls, posting_calendar and influencers.", brief)
}

func strategyPrompt(brief string) string {
	return fmt.Sprintf(`You are a brand strategist. Build the strategic foundation for this brief.

Brief: %s

Reply with one JSON object with keys core_concept, tagline, target_audience, key_messages (3 to 5 strings), tone and channels (platform names).`, brief)
}

func copywritingPrompt(subject string) string {
	return fmt.Sprintf(`You write social media copy.

Context: %s

Reply with one JSON object with keys captions (3 strings, each under 140 characters), cta (one call to action) and hashtags (one string).`, subject)
}

func visualPrompt(idea string) string {
	return fmt.Sprintf("Professional marketing visual: %s. High quality, modern, clean design, commercial photography style", idea)
}

// withSources renders search hits as a JSON block for a prompt, or nothing
// when the search produced none.
func withSources(label string, results []any) string {
	if len(results) == 0 {
		return ""
	}
	raw, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return ""
	}
	return fmt.Sprintf("\n%s:\n%s\n", label, raw)
}

func researchPrompt(topic string, results []any) string {
	return fmt.Sprintf(`You are a market research analyst. Report on: %s
%s
Reply with one JSON object with keys trends (array of strings), audience_insights (string), competitive_landscape (string) and opportunities (array of strings).`,
		topic, withSources("Search results", results))
}

func influencerPrompt(niche string, results []any) string {
	return fmt.Sprintf(`You plan influencer marketing. Recommend 5 influencers for: %s
%s
For each influencer give name (with @handle), platform, followers, niche, engagement_rate, fit_reason (1 or 2 sentences), content_style and collaboration_potential (High, Medium or Low).
Reply with JSON only, shaped as {"influencers": [...]}.`,
		niche, withSources("Search results", results))
}

func locationPrompt(location string, results []any) string {
	return fmt.Sprintf(`You analyse markets and demographics. Give marketing insights for: %s
%s
Reply with one JSON object with keys:
- demographics: {"population", "median_age", "income_level", "urban_rural"}
- trending_topics: top 5 as [{"name", "volume"}]
- consumer_behavior: short description of local consumer patterns
- opportunities: 3 marketing opportunities`,
		location, withSources("Web search results", results))
}
