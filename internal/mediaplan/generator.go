// Package mediaplan derives a media plan (platforms, roles, formats,
// schedule, influencers, budget split and KPIs) from a brief and strategy.
package mediaplan

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"
	_ "time/tzdata"

	"go.uber.org/zap"

	"github.com/mohammad-safakhou/campaigner/internal/campaign"
	"github.com/mohammad-safakhou/campaigner/internal/llmjson"
	"github.com/mohammad-safakhou/campaigner/provider"
)

const (
	platformFitTemperature = 0.3
	platformFitMaxTokens   = 2000
	influencerTemperature  = 0.4
	influencerMaxTokens    = 2500
)

// Request is the input of one plan.
type Request struct {
	Brief        string
	Strategy     campaign.Strategy
	DurationDays int
	Budget       string // low, medium, high
	Location     string
}

// Generator builds media plans. Only the platform-fit and influencer stages
// call the model; both fall back to dataset defaults on any failure.
type Generator struct {
	provider provider.Provider
	dataset  *Dataset
	model    string
	loc      *time.Location
	now      func() time.Time
	logger   *zap.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// Option configures the generator.
type Option func(*Generator)

func WithDataset(ds *Dataset) Option {
	return func(g *Generator) { g.dataset = ds }
}

// WithRand sets the source for slot, content type and theme draws.
func WithRand(r *rand.Rand) Option {
	return func(g *Generator) { g.rng = r }
}

func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

// WithLocation sets the timezone schedules and plan ids are computed in.
func WithLocation(loc *time.Location) Option {
	return func(g *Generator) { g.loc = loc }
}

func WithModel(model string) Option {
	return func(g *Generator) { g.model = model }
}

func WithLogger(l *zap.Logger) Option {
	return func(g *Generator) { g.logger = l.Named("mediaplan") }
}

// New returns a generator over the embedded dataset unless WithDataset is given.
func New(p provider.Provider, opts ...Option) (*Generator, error) {
	g := &Generator{
		provider: p,
		now:      time.Now,
		logger:   zap.NewNop(),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.dataset == nil {
		ds, err := DefaultDataset()
		if err != nil {
			return nil, err
		}
		g.dataset = ds
	}
	if g.loc == nil {
		loc, err := time.LoadLocation(campaign.DefaultTimezone)
		if err != nil {
			return nil, fmt.Errorf("load timezone: %w", err)
		}
		g.loc = loc
	}
	return g, nil
}

// Generate runs every stage and compiles the plan. Stage failures degrade to
// static fallbacks; the only error is context cancellation.
func (g *Generator) Generate(ctx context.Context, req Request) (*Plan, error) {
	if req.DurationDays <= 0 {
		req.DurationDays = 14
	}
	if req.Budget == "" {
		req.Budget = "medium"
	}
	if req.Location == "" {
		req.Location = "India"
	}
	audience := req.Strategy.TargetAudience
	if audience == "" {
		audience = "General audience"
	}

	analysis := g.analyzePlatformFit(ctx, req.Brief, audience, req.Location)
	platforms := analysis.RecommendedPlatforms
	schedule := g.Schedule(platforms, req.DurationDays)
	influencers := g.selectInfluencers(ctx, req.Brief, audience, req.Location, platforms)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	budget := g.PaidOrganicMix(platforms, req.Budget)

	now := g.now().In(g.loc)
	plan := &Plan{
		PlanID:                    "mp_" + now.Format("20060102_150405"),
		CreatedAt:                 now.Format(time.RFC3339),
		CampaignBrief:             req.Brief,
		DatasetVersion:            g.dataset.Version,
		DurationDays:              req.DurationDays,
		Location:                  req.Location,
		PlatformAnalysis:          analysis,
		ChannelRoles:              g.channelRoles(platforms),
		ContentMapping:            g.contentMapping(platforms),
		PostingSchedule:           schedule,
		InfluencerRecommendations: influencers,
		BudgetAllocation:          budget,
		KPIs:                      g.kpis(platforms),
	}
	plan.Summary = g.summary(plan)
	g.logger.Info("media plan generated",
		zap.String("plan_id", plan.PlanID),
		zap.Int("platforms", len(platforms)),
		zap.Int("posts", len(schedule)),
		zap.Bool("fallback_platforms", analysis.Fallback),
	)
	return plan, nil
}

const platformFitPrompt = `You are a media planning expert. Decide which digital platforms fit this campaign's audience.

Campaign brief: %s
Target audience: %s
Location: %s

Recommend the top 3-5 platforms, weighing audience demographics and behaviour, the platform's user base in %s, content suitability and engagement potential.

Answer with JSON only, in this form:
{
  "recommended_platforms": [
    {"platform": "instagram", "priority": "high", "audience_match_score": 95, "reasoning": "why it fits", "audience_demographics": "key demographics", "penetration_rate": "share of the audience on the platform"}
  ],
  "platform_ranking": ["instagram", "youtube", "facebook"],
  "audience_insights": {"primary_age_group": "18-34", "gender_distribution": "", "interests": [], "online_behavior": "", "device_preference": ""}
}
Priorities are high, medium or low. Use lowercase platform names.`

func (g *Generator) analyzePlatformFit(ctx context.Context, brief, audience, location string) PlatformAnalysis {
	text, err := g.ask(ctx, fmt.Sprintf(platformFitPrompt, brief, audience, location, location), platformFitTemperature, platformFitMaxTokens)
	if err != nil {
		g.logger.Warn("platform fit analysis failed, using fallback", zap.Error(err))
		return g.fallbackAnalysis()
	}
	var raw map[string]any
	if err := llmjson.Decode(text, &raw); err != nil {
		g.logger.Warn("platform fit answer unparsable, using fallback", zap.Error(err))
		return g.fallbackAnalysis()
	}
	analysis, ok := parseAnalysis(raw, g.dataset.Defaults.Priority)
	if !ok {
		g.logger.Warn("platform fit answer has no platforms, using fallback")
		return g.fallbackAnalysis()
	}
	return analysis
}

func (g *Generator) fallbackAnalysis() PlatformAnalysis {
	fb := g.dataset.Fallback.PlatformAnalysis
	return PlatformAnalysis{
		RecommendedPlatforms: append([]PlatformFit(nil), fb.RecommendedPlatforms...),
		PlatformRanking:      append([]string(nil), fb.PlatformRanking...),
		Fallback:             true,
	}
}

// parseAnalysis reads the loosely typed model answer. Entries without a
// platform name are skipped; names are lowercased.
func parseAnalysis(raw map[string]any, defaultPriority string) (PlatformAnalysis, bool) {
	list, _ := raw["recommended_platforms"].([]any)
	var out PlatformAnalysis
	seen := map[string]bool{}
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		name := strings.ToLower(strings.TrimSpace(campaign.Scalar(m["platform"])))
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		priority := strings.ToLower(campaign.Scalar(m["priority"]))
		if priority == "" {
			priority = defaultPriority
		}
		out.RecommendedPlatforms = append(out.RecommendedPlatforms, PlatformFit{
			Platform:             name,
			Priority:             priority,
			AudienceMatchScore:   number(m["audience_match_score"]),
			Reasoning:            campaign.Scalar(m["reasoning"]),
			AudienceDemographics: campaign.Scalar(m["audience_demographics"]),
			PenetrationRate:      campaign.Scalar(m["penetration_rate"]),
		})
	}
	if len(out.RecommendedPlatforms) == 0 {
		return PlatformAnalysis{}, false
	}
	if ranking, ok := raw["platform_ranking"].([]any); ok {
		for _, r := range ranking {
			if s := strings.ToLower(strings.TrimSpace(campaign.Scalar(r))); s != "" {
				out.PlatformRanking = append(out.PlatformRanking, s)
			}
		}
	}
	if len(out.PlatformRanking) == 0 {
		for _, p := range out.RecommendedPlatforms {
			out.PlatformRanking = append(out.PlatformRanking, p.Platform)
		}
	}
	out.AudienceInsights, _ = raw["audience_insights"].(map[string]any)
	return out, true
}

func number(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case string:
		var f float64
		if _, err := fmt.Sscanf(strings.TrimSuffix(strings.TrimSpace(t), "%"), "%g", &f); err == nil {
			return f
		}
	}
	return 0
}

func (g *Generator) channelRoles(platforms []PlatformFit) ChannelRoles {
	roles := map[string]Role{}
	for _, p := range platforms {
		if data, ok := g.dataset.Platforms[p.Platform]; ok && data.Role != nil {
			roles[p.Platform] = *data.Role
		}
	}
	return ChannelRoles{ChannelRoles: roles, MultiChannelStrategy: g.dataset.MultiChannelStrategy}
}

func (g *Generator) contentMapping(platforms []PlatformFit) ContentMapping {
	mapping := map[string]PlatformContent{}
	for _, p := range platforms {
		data, ok := g.dataset.Platforms[p.Platform]
		if !ok {
			continue
		}
		mapping[p.Platform] = PlatformContent{
			SupportedFormats: data.ContentTypes,
			RecommendedMix:   g.dataset.contentMix(p.Platform),
			ContentExamples:  g.dataset.ContentExamples,
		}
	}
	return ContentMapping{
		PlatformContentMapping: mapping,
		CrossPlatformContent:   CrossPlatformContent{RepurposableContent: g.dataset.RepurposableContent},
	}
}

// Schedule lays out posts for each platform with timing data: walking day by
// day from now, a post lands on each best day with a random best time and
// content type, until duration/2 posts or duration days. The combined list is
// sorted by (date, time) as strings.
func (g *Generator) Schedule(platforms []PlatformFit, durationDays int) []Post {
	start := g.now().In(g.loc)
	maxPosts := durationDays / 2
	schedule := []Post{}

	g.mu.Lock()
	defer g.mu.Unlock()
	for _, p := range platforms {
		data, ok := g.dataset.Platforms[p.Platform]
		if !ok || !data.Schedulable() {
			continue
		}
		priority := p.Priority
		if priority == "" {
			priority = g.dataset.Defaults.Priority
		}
		posted := 0
		for day := 0; day < durationDays && posted < maxPosts; day++ {
			date := start.AddDate(0, 0, day)
			weekday := date.Weekday().String()
			if !contains(data.BestDays, weekday) {
				continue
			}
			schedule = append(schedule, Post{
				Date:             date.Format("2006-01-02"),
				Day:              weekday,
				Time:             data.BestTimes[g.rng.Intn(len(data.BestTimes))],
				Platform:         p.Platform,
				ContentType:      data.ContentTypes[g.rng.Intn(len(data.ContentTypes))],
				Status:           "scheduled",
				RequiresApproval: true,
				Priority:         priority,
				SuggestedTheme:   g.dataset.Themes[g.rng.Intn(len(g.dataset.Themes))],
			})
			posted++
		}
	}
	sort.SliceStable(schedule, func(i, j int) bool {
		if schedule[i].Date != schedule[j].Date {
			return schedule[i].Date < schedule[j].Date
		}
		return schedule[i].Time < schedule[j].Time
	})
	return schedule
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

const influencerPrompt = `You are an influencer marketing expert. Recommend creators or partners for this campaign.

Campaign brief: %s
Target audience: %s
Location: %s
Platforms: %s

Recommend 5-8 influencers. Answer with a JSON array only, one object per influencer:
[
  {"name": "", "handle": "@username", "platform": "instagram", "followers": "250K", "engagement_rate": "4.5%%", "niche": "", "audience_match": "85%%", "estimated_cost": "", "why_recommended": "", "content_style": "", "collaboration_type": "Sponsored Post / Brand Ambassador / Affiliate", "location": "", "previous_brand_collabs": [], "outreach_priority": "high"}
]
Prefer creators based in %s and keep follower counts and rates realistic.`

func (g *Generator) selectInfluencers(ctx context.Context, brief, audience, location string, platforms []PlatformFit) []campaign.Influencer {
	names := make([]string, 0, len(platforms))
	for _, p := range platforms {
		names = append(names, p.Platform)
	}
	prompt := fmt.Sprintf(influencerPrompt, brief, audience, location, strings.Join(names, ", "), location)
	text, err := g.ask(ctx, prompt, influencerTemperature, influencerMaxTokens)
	if err != nil {
		g.logger.Warn("influencer selection failed, using fallback", zap.Error(err))
		return g.fallbackInfluencers()
	}
	var raw []any
	if err := llmjson.Decode(text, &raw); err != nil {
		g.logger.Warn("influencer answer is not a list, using fallback", zap.Error(err))
		return g.fallbackInfluencers()
	}
	out := make([]campaign.Influencer, 0, len(raw))
	for _, item := range raw {
		if m, ok := item.(map[string]any); ok {
			out = append(out, campaign.InfluencerFromMap(m))
		}
	}
	if len(out) == 0 {
		return g.fallbackInfluencers()
	}
	return out
}

func (g *Generator) fallbackInfluencers() []campaign.Influencer {
	out := make([]campaign.Influencer, 0, len(g.dataset.Fallback.Influencers))
	for _, m := range g.dataset.Fallback.Influencers {
		out = append(out, campaign.InfluencerFromMap(m))
	}
	return out
}

// PaidOrganicMix splits each platform's effort between paid and organic.
// The base paid share is scaled by the budget multiplier, or replaced by the
// boosted share at or above the boost threshold; the pair is then
// renormalized to 100 and rounded to one decimal.
func (g *Generator) PaidOrganicMix(platforms []PlatformFit, budget string) BudgetAllocation {
	rules := g.dataset.Budget
	multiplier := g.dataset.multiplier(budget)
	alloc := map[string]Allocation{}
	for _, p := range platforms {
		priority := p.Priority
		if priority == "" {
			priority = g.dataset.Defaults.Priority
		}
		mix, ok := rules.Mix[priority]
		if !ok {
			mix = rules.Mix["low"]
		}
		paid := mix.Paid * multiplier
		if multiplier >= rules.BoostThreshold {
			paid = mix.BoostedPaid
		}
		organic := mix.Organic
		total := paid + organic
		alloc[p.Platform] = Allocation{
			PaidPercentage:       round1(paid / total * 100),
			OrganicPercentage:    round1(organic / total * 100),
			RecommendedAdTypes:   g.dataset.adTypes(p.Platform),
			EstimatedReach:       g.dataset.reach(p.Platform, budget),
			SuggestedDailyBudget: g.dataset.dailyBudget(p.Platform, budget),
		}
	}
	return BudgetAllocation{
		PlatformAllocation: alloc,
		OverallStrategy:    g.dataset.strategy(budget),
		BudgetLevel:        budget,
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func (g *Generator) kpis(platforms []PlatformFit) KPIs {
	specific := map[string]map[string]string{}
	for _, p := range platforms {
		if k := g.dataset.Platforms[p.Platform].KPIs; len(k) > 0 {
			specific[p.Platform] = k
		}
	}
	return KPIs{
		AwarenessMetrics:        g.dataset.KPIs.Awareness,
		EngagementMetrics:       g.dataset.KPIs.Engagement,
		ConversionMetrics:       g.dataset.KPIs.Conversion,
		PlatformSpecificMetrics: specific,
	}
}

func (g *Generator) summary(plan *Plan) Summary {
	primary := plan.PlatformAnalysis.PlatformRanking
	if len(primary) > 3 {
		primary = primary[:3]
	}
	return Summary{
		TotalPlatforms:           len(plan.PlatformAnalysis.RecommendedPlatforms),
		PrimaryPlatforms:         primary,
		TotalScheduledPosts:      len(plan.PostingSchedule),
		PostingFrequency:         fmt.Sprintf("%.1f posts per day", float64(len(plan.PostingSchedule))/float64(plan.DurationDays)),
		InfluencerCollaborations: len(plan.InfluencerRecommendations),
		CampaignReachEstimate:    g.dataset.Summary.CampaignReachEstimate,
		KeyFocusAreas:            g.dataset.Summary.KeyFocusAreas,
		SuccessCriteria:          g.dataset.Summary.SuccessCriteria,
	}
}

func (g *Generator) ask(ctx context.Context, prompt string, temperature float64, maxTokens int) (string, error) {
	if g.provider == nil {
		return "", fmt.Errorf("no text provider configured")
	}
	resp, err := g.provider.Generate(ctx, provider.Request{
		Prompt:      prompt,
		Model:       g.model,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}
