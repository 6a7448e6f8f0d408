package orchestrator

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mohammad-safakhou/campaigner/internal/campaign"
	"github.com/mohammad-safakhou/campaigner/internal/llmjson"
	"github.com/mohammad-safakhou/campaigner/internal/mediaplan"
)

const (
	searchResults    = 5
	sourcesKept      = 3
	visualVariations = 3
)

// LocationRequest asks for the marketing picture of a place. SearchContext
// narrows the web search ("marketing trends" when empty).
type LocationRequest struct {
	Location      string         `json:"location"`
	Coordinates   map[string]any `json:"coordinates"`
	SearchContext string         `json:"search_context"`
}

// LocationTrends is the analysis returned for one location.
type LocationTrends struct {
	Location    string         `json:"location"`
	Coordinates map[string]any `json:"coordinates"`
	Trends      map[string]any `json:"trends"`
}

// Visual is one generated image variation.
type Visual struct {
	ID        string `json:"id"`
	URL       string `json:"url"`
	Thumbnail string `json:"thumbnail"`
	Selected  bool   `json:"selected"`
}

func required(field, v string) (string, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return "", &campaign.ValidationError{Field: field, Message: field + " is required"}
	}
	return v, nil
}

// Strategy drafts the strategic foundation for a brief. Output the model
// does not shape as JSON comes back under raw_output.
func (o *Orchestrator) Strategy(ctx context.Context, brief string) (map[string]any, error) {
	brief, err := required("input", brief)
	if err != nil {
		return nil, err
	}
	text, err := o.ask(ctx, strategyPrompt(brief), 0.3, 800)
	if err != nil {
		return nil, err
	}
	if out, ok := decodeObject(text); ok {
		return out, nil
	}
	return map[string]any{"raw_output": text}, nil
}

// Copywriting drafts captions, a call to action and hashtags.
func (o *Orchestrator) Copywriting(ctx context.Context, subject string) (map[string]any, error) {
	subject, err := required("input", subject)
	if err != nil {
		return nil, err
	}
	text, err := o.ask(ctx, copywritingPrompt(subject), 0.7, 500)
	if err != nil {
		return nil, err
	}
	if out, ok := decodeObject(text); ok {
		return out, nil
	}
	return map[string]any{"raw_output": text}, nil
}

// Visuals renders image variations for an idea and stores them as blobs.
// Failed variations are skipped; it fails only when none succeeds.
func (o *Orchestrator) Visuals(ctx context.Context, idea string) (map[string]any, error) {
	idea, err := required("input", idea)
	if err != nil {
		return nil, err
	}
	if o.blobs == nil {
		return nil, errors.New("asset storage not configured")
	}
	t, ok := o.tools.Lookup(campaign.ToolImageGenerate)
	if !ok {
		return nil, errors.New("image_generate tool not configured")
	}

	prompt := visualPrompt(idea)
	images := make([]Visual, 0, visualVariations)
	for i := 0; i < visualVariations; i++ {
		res, err := t.Execute(ctx, map[string]any{"prompt": prompt, "size": "1024x1024"})
		if err != nil {
			return nil, err
		}
		if !res.OK() {
			o.logger.Warn("visual variation failed", zap.Int("variation", i+1), zap.String("error", res.ErrorMessage()))
			continue
		}
		data, err := base64.StdEncoding.DecodeString(res.String("image_data"))
		if err != nil {
			o.logger.Warn("visual variation undecodable", zap.Int("variation", i+1), zap.Error(err))
			continue
		}
		format := strings.TrimPrefix(res.String("format"), ".")
		if format == "" {
			format = "png"
		}
		id := "img_" + uuid.NewString()[:8]
		url, err := o.blobs.Put(ctx, id+"."+format, data)
		if err != nil {
			return nil, fmt.Errorf("store visual: %w", err)
		}
		images = append(images, Visual{ID: id, URL: url, Thumbnail: url, Selected: len(images) == 0})
	}
	if len(images) == 0 {
		return nil, errors.New("failed to generate images")
	}

	style, palette := visualStyle(idea)
	return map[string]any{
		"images":         images,
		"prompt":         prompt,
		"type":           "visual_with_images",
		"style":          style,
		"color_palette":  palette,
		"selected_image": images[0],
	}, nil
}

func visualStyle(idea string) (string, []string) {
	s := strings.ToLower(idea)
	has := func(words ...string) bool {
		for _, w := range words {
			if strings.Contains(s, w) {
				return true
			}
		}
		return false
	}

	style := "Modern, professional"
	switch {
	case has("vintage", "retro"):
		style = "Vintage, retro"
	case has("minimal", "clean"):
		style = "Minimal, clean"
	case has("bold", "vibrant"):
		style = "Bold, vibrant"
	}

	palette := []string{"Primary", "Accent", "Background"}
	switch {
	case has("blue"):
		palette = []string{"Blue", "White", "Gray"}
	case has("red"):
		palette = []string{"Red", "Black", "White"}
	case has("green"):
		palette = []string{"Green", "White", "Earth tones"}
	case has("colorful"):
		palette = []string{"Multi-color", "Vibrant", "Dynamic"}
	}
	return style, palette
}

// Research searches the web for a topic and has the model synthesise the
// hits. Without search results the model answers from its own knowledge.
func (o *Orchestrator) Research(ctx context.Context, topic string) (map[string]any, error) {
	topic, err := required("input", topic)
	if err != nil {
		return nil, err
	}
	hits, searched, err := o.search(ctx, topic)
	if err != nil {
		return nil, err
	}
	text, err := o.ask(ctx, researchPrompt(topic, hits), 0.3, 600)
	if err != nil {
		return nil, err
	}
	out, ok := decodeObject(text)
	if !ok {
		out = map[string]any{"analysis": text, "note": "Research completed without web search data"}
		if searched {
			out["note"] = "Research completed successfully"
		}
	}
	if searched {
		out["sources"] = top(hits, sourcesKept)
	}
	return out, nil
}

// Influencers recommends creators for a niche, grounded on web search
// when it is available. Every influencer gets a profile_url.
func (o *Orchestrator) Influencers(ctx context.Context, niche string) (map[string]any, error) {
	niche, err := required("input", niche)
	if err != nil {
		return nil, err
	}
	hits, _, err := o.search(ctx, fmt.Sprintf("top influencers %s social media collaboration", niche))
	if err != nil {
		return nil, err
	}
	text, err := o.ask(ctx, influencerPrompt(niche, top(hits, sourcesKept)), 0.3, 1500)
	if err != nil {
		return nil, err
	}
	out, _ := decodeObject(text)
	list, _ := out["influencers"].([]any)
	if len(list) == 0 {
		return map[string]any{
			"error":       "Could not parse influencer data",
			"note":        "The model response was incomplete. Try a shorter, more specific query.",
			"raw_preview": preview(text, 300),
		}, nil
	}
	for _, item := range list {
		inf, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if u, _ := inf["profile_url"].(string); u == "" {
			name, _ := inf["name"].(string)
			platform, _ := inf["platform"].(string)
			inf["profile_url"] = profileURL(name, platform)
		}
	}
	out["search_method"] = "AI-powered analysis"
	out["type"] = "influencer_list"
	return out, nil
}

var handlePattern = regexp.MustCompile(`@(\w+)`)

// profileURL guesses a profile link from a "Name @handle" string.
func profileURL(name, platform string) string {
	handle := "unknown"
	if m := handlePattern.FindStringSubmatch(name); m != nil {
		handle = m[1]
	} else if f := strings.Fields(name); len(f) > 0 {
		handle = strings.ToLower(strings.Trim(f[0], "()"))
	}
	p := strings.ToLower(platform)
	switch {
	case strings.Contains(p, "tiktok"):
		return "https://tiktok.com/@" + handle
	case strings.Contains(p, "youtube"):
		return "https://youtube.com/@" + handle
	case strings.Contains(p, "twitter"), p == "x":
		return "https://x.com/" + handle
	default:
		return "https://instagram.com/" + handle
	}
}

// LocationTrends analyses demographics and trends for a location. When the
// model's answer cannot be parsed a generic analysis is returned.
func (o *Orchestrator) LocationTrends(ctx context.Context, req LocationRequest) (*LocationTrends, error) {
	location, err := required("location", req.Location)
	if err != nil {
		return nil, err
	}
	topic := strings.TrimSpace(req.SearchContext)
	if topic == "" {
		topic = "marketing trends"
	}
	hits, _, err := o.search(ctx, fmt.Sprintf("%s %s consumer demographics", location, topic))
	if err != nil {
		return nil, err
	}
	text, err := o.ask(ctx, locationPrompt(location, top(hits, sourcesKept)), 0.3, 1000)
	if err != nil {
		return nil, err
	}
	trends, ok := decodeObject(text)
	if !ok {
		o.logger.Info("location analysis unparsable, using generic trends", zap.String("location", location))
		trends = genericTrends()
	}
	coords := req.Coordinates
	if coords == nil {
		coords = map[string]any{}
	}
	return &LocationTrends{Location: location, Coordinates: coords, Trends: trends}, nil
}

func genericTrends() map[string]any {
	return map[string]any{
		"demographics": map[string]any{
			"population":   "Data unavailable",
			"median_age":   "Data unavailable",
			"income_level": "Data unavailable",
			"urban_rural":  "Mixed",
		},
		"trending_topics": []any{
			map[string]any{"name": "Local events", "volume": "Medium"},
			map[string]any{"name": "Community interests", "volume": "High"},
		},
		"consumer_behavior": "Local consumer patterns vary. Consider targeted research for specific insights.",
		"opportunities": []any{
			"Target local communities with personalized campaigns",
			"Leverage regional cultural events",
			"Partner with local influencers",
		},
	}
}

// PlanBrief builds a media plan for a brief that is not a stored campaign.
// Nothing is persisted.
func (o *Orchestrator) PlanBrief(ctx context.Context, brief string, opts Options) (*mediaplan.Plan, error) {
	brief, err := required("input", brief)
	if err != nil {
		return nil, err
	}
	return o.planner.Generate(ctx, o.planRequest(brief, campaign.Strategy{}, opts))
}

// ask runs one llm_text call and returns its text.
func (o *Orchestrator) ask(ctx context.Context, prompt string, temperature float64, maxTokens int) (string, error) {
	t, ok := o.tools.Lookup(campaign.ToolLLMText)
	if !ok {
		return "", errors.New("llm_text tool not configured")
	}
	res, err := t.Execute(ctx, map[string]any{
		"prompt":      prompt,
		"model":       o.cfg.Model,
		"temperature": temperature,
		"max_tokens":  maxTokens,
	})
	if err != nil {
		return "", err
	}
	if !res.OK() {
		return "", fmt.Errorf("text generation failed: %s", res.ErrorMessage())
	}
	return res.String("text"), nil
}

// search runs web_search. searched is false when no search tool is
// configured or the search failed; only a raised error is returned.
func (o *Orchestrator) search(ctx context.Context, q string) (hits []any, searched bool, err error) {
	t, ok := o.tools.Lookup(campaign.ToolWebSearch)
	if !ok {
		return nil, false, nil
	}
	res, err := t.Execute(ctx, map[string]any{"q": q, "max_results": searchResults})
	if err != nil {
		return nil, false, err
	}
	if !res.OK() {
		o.logger.Info("web search unavailable, answering without it", zap.String("error", res.ErrorMessage()))
		return nil, false, nil
	}
	hits, _ = res["results"].([]any)
	return hits, true, nil
}

func decodeObject(text string) (map[string]any, bool) {
	var out map[string]any
	if err := llmjson.Decode(text, &out); err != nil || out == nil {
		return nil, false
	}
	return out, true
}

func top(hits []any, n int) []any {
	if len(hits) > n {
		return hits[:n]
	}
	return hits
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
