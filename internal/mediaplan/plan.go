package mediaplan

import "github.com/mohammad-safakhou/campaigner/internal/campaign"

// Plan is the compiled output of every planning stage.
type Plan struct {
	PlanID                    string                `json:"plan_id"`
	CreatedAt                 string                `json:"created_at"`
	CampaignBrief             string                `json:"campaign_brief"`
	DatasetVersion            string                `json:"dataset_version"`
	DurationDays              int                   `json:"duration_days"`
	Location                  string                `json:"location"`
	PlatformAnalysis          PlatformAnalysis      `json:"platform_analysis"`
	ChannelRoles              ChannelRoles          `json:"channel_roles"`
	ContentMapping            ContentMapping        `json:"content_mapping"`
	PostingSchedule           []Post                `json:"posting_schedule"`
	InfluencerRecommendations []campaign.Influencer `json:"influencer_recommendations"`
	BudgetAllocation          BudgetAllocation      `json:"budget_allocation"`
	KPIs                      KPIs                  `json:"kpis"`
	Summary                   Summary               `json:"summary"`
}

// PlatformFit is one recommended platform.
type PlatformFit struct {
	Platform             string  `json:"platform" yaml:"platform"`
	Priority             string  `json:"priority" yaml:"priority"`
	AudienceMatchScore   float64 `json:"audience_match_score" yaml:"audience_match_score"`
	Reasoning            string  `json:"reasoning" yaml:"reasoning"`
	AudienceDemographics string  `json:"audience_demographics,omitempty" yaml:"audience_demographics"`
	PenetrationRate      string  `json:"penetration_rate,omitempty" yaml:"penetration_rate"`
}

type PlatformAnalysis struct {
	RecommendedPlatforms []PlatformFit  `json:"recommended_platforms"`
	PlatformRanking      []string       `json:"platform_ranking"`
	AudienceInsights     map[string]any `json:"audience_insights,omitempty"`

	// Fallback is set when the model answer could not be used.
	Fallback bool `json:"fallback,omitempty"`
}

// Role is the strategic role of a channel.
type Role struct {
	PrimaryRole    string `json:"primary_role" yaml:"primary_role"`
	ContentFocus   string `json:"content_focus" yaml:"content_focus"`
	EngagementType string `json:"engagement_type" yaml:"engagement_type"`
	FunnelStage    string `json:"funnel_stage" yaml:"funnel_stage"`
}

type ChannelRoles struct {
	ChannelRoles         map[string]Role `json:"channel_roles"`
	MultiChannelStrategy string          `json:"multi_channel_strategy"`
}

type PlatformContent struct {
	SupportedFormats []string          `json:"supported_formats"`
	RecommendedMix   map[string]string `json:"recommended_mix"`
	ContentExamples  []string          `json:"content_examples"`
}

type CrossPlatformContent struct {
	RepurposableContent []string `json:"repurposable_content"`
}

type ContentMapping struct {
	PlatformContentMapping map[string]PlatformContent `json:"platform_content_mapping"`
	CrossPlatformContent   CrossPlatformContent       `json:"cross_platform_content"`
}

// Post is one scheduled slot.
type Post struct {
	Date             string `json:"date"`
	Day              string `json:"day"`
	Time             string `json:"time"`
	Platform         string `json:"platform"`
	ContentType      string `json:"content_type"`
	Status           string `json:"status"`
	RequiresApproval bool   `json:"requires_approval"`
	Priority         string `json:"priority"`
	SuggestedTheme   string `json:"suggested_theme"`
}

// Allocation is the paid/organic split of one platform.
type Allocation struct {
	PaidPercentage       float64  `json:"paid_percentage"`
	OrganicPercentage    float64  `json:"organic_percentage"`
	RecommendedAdTypes   []string `json:"recommended_ad_types"`
	EstimatedReach       string   `json:"estimated_reach"`
	SuggestedDailyBudget string   `json:"suggested_daily_budget"`
}

type BudgetAllocation struct {
	PlatformAllocation map[string]Allocation `json:"platform_allocation"`
	OverallStrategy    string                `json:"overall_strategy"`
	BudgetLevel        string                `json:"budget_level"`
}

// KPITarget is a target band and the platforms it applies to.
type KPITarget struct {
	Target    string   `json:"target" yaml:"target"`
	Platforms []string `json:"platforms" yaml:"platforms"`
}

type KPIs struct {
	AwarenessMetrics        map[string]KPITarget         `json:"awareness_metrics"`
	EngagementMetrics       map[string]KPITarget         `json:"engagement_metrics"`
	ConversionMetrics       map[string]KPITarget         `json:"conversion_metrics"`
	PlatformSpecificMetrics map[string]map[string]string `json:"platform_specific_metrics"`
}

type Summary struct {
	TotalPlatforms           int      `json:"total_platforms"`
	PrimaryPlatforms         []string `json:"primary_platforms"`
	TotalScheduledPosts      int      `json:"total_scheduled_posts"`
	PostingFrequency         string   `json:"posting_frequency"`
	InfluencerCollaborations int      `json:"influencer_collaborations"`
	CampaignReachEstimate    string   `json:"campaign_reach_estimate"`
	KeyFocusAreas            []string `json:"key_focus_areas"`
	SuccessCriteria          []string `json:"success_criteria"`
}
