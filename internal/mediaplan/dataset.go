package mediaplan

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed dataset.yaml
var embeddedDataset []byte

// Dataset is every static table the generator reads.
type Dataset struct {
	Version              string              `yaml:"version"`
	Platforms            map[string]Platform `yaml:"platforms"`
	Defaults             Defaults            `yaml:"defaults"`
	MultiChannelStrategy string              `yaml:"multi_channel_strategy"`
	ContentExamples      []string            `yaml:"content_examples"`
	RepurposableContent  []string            `yaml:"repurposable_content"`
	Themes               []string            `yaml:"themes"`
	Budget               BudgetRules         `yaml:"budget"`
	KPIs                 KPITables           `yaml:"kpis"`
	Fallback             Fallback            `yaml:"fallback"`
	Summary              SummaryText         `yaml:"summary"`
}

// Platform holds the timing, role, format and budget data of one platform.
type Platform struct {
	BestDays     []string          `yaml:"best_days"`
	BestTimes    []string          `yaml:"best_times"`
	PeakHours    []string          `yaml:"peak_hours"`
	ContentTypes []string          `yaml:"content_types"`
	Role         *Role             `yaml:"role"`
	ContentMix   map[string]string `yaml:"content_mix"`
	AdTypes      []string          `yaml:"ad_types"`
	Reach        map[string]string `yaml:"reach"`
	DailyBudget  map[string]string `yaml:"daily_budget"`
	KPIs         map[string]string `yaml:"kpis"`
}

// Schedulable reports whether the platform has enough timing data to post.
func (p Platform) Schedulable() bool {
	return len(p.BestDays) > 0 && len(p.BestTimes) > 0 && len(p.ContentTypes) > 0
}

type Defaults struct {
	ContentMix  map[string]string `yaml:"content_mix"`
	AdTypes     []string          `yaml:"ad_types"`
	Reach       string            `yaml:"reach"`
	DailyBudget string            `yaml:"daily_budget"`
	Strategy    string            `yaml:"strategy"`
	Priority    string            `yaml:"priority"`
}

// Mix is the base paid/organic split of one priority tier.
type Mix struct {
	Paid        float64 `yaml:"paid"`
	Organic     float64 `yaml:"organic"`
	BoostedPaid float64 `yaml:"boosted_paid"`
}

type BudgetRules struct {
	Multipliers    map[string]float64 `yaml:"multipliers"`
	BoostThreshold float64            `yaml:"boost_threshold"`
	Mix            map[string]Mix     `yaml:"mix"`
	Strategies     map[string]string  `yaml:"strategies"`
}

type KPITables struct {
	Awareness  map[string]KPITarget `yaml:"awareness_metrics"`
	Engagement map[string]KPITarget `yaml:"engagement_metrics"`
	Conversion map[string]KPITarget `yaml:"conversion_metrics"`
}

type Fallback struct {
	PlatformAnalysis struct {
		RecommendedPlatforms []PlatformFit `yaml:"recommended_platforms"`
		PlatformRanking      []string      `yaml:"platform_ranking"`
	} `yaml:"platform_analysis"`
	Influencers []map[string]any `yaml:"influencers"`
}

type SummaryText struct {
	CampaignReachEstimate string   `yaml:"campaign_reach_estimate"`
	KeyFocusAreas         []string `yaml:"key_focus_areas"`
	SuccessCriteria       []string `yaml:"success_criteria"`
}

// DefaultDataset returns the dataset compiled into the binary.
func DefaultDataset() (*Dataset, error) {
	return ParseDataset(embeddedDataset)
}

// LoadDataset reads a dataset file; an empty path yields the embedded one.
func LoadDataset(path string) (*Dataset, error) {
	if path == "" {
		return DefaultDataset()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read media plan dataset: %w", err)
	}
	return ParseDataset(raw)
}

// ParseDataset decodes and checks a YAML dataset.
func ParseDataset(raw []byte) (*Dataset, error) {
	var ds Dataset
	if err := yaml.Unmarshal(raw, &ds); err != nil {
		return nil, fmt.Errorf("decode media plan dataset: %w", err)
	}
	if err := ds.validate(); err != nil {
		return nil, err
	}
	return &ds, nil
}

func (d *Dataset) validate() error {
	if d.Version == "" {
		return fmt.Errorf("media plan dataset: version required")
	}
	if len(d.Themes) == 0 {
		return fmt.Errorf("media plan dataset: themes required")
	}
	if len(d.Fallback.PlatformAnalysis.RecommendedPlatforms) == 0 {
		return fmt.Errorf("media plan dataset: fallback platforms required")
	}
	for _, tier := range []string{"high", "medium", "low"} {
		m, ok := d.Budget.Mix[tier]
		if !ok {
			return fmt.Errorf("media plan dataset: budget mix for %q missing", tier)
		}
		if m.Organic <= 0 {
			return fmt.Errorf("media plan dataset: budget mix for %q needs organic > 0", tier)
		}
	}
	for name, p := range d.Platforms {
		if len(p.BestDays) > 0 && (len(p.BestTimes) == 0 || len(p.ContentTypes) == 0) {
			return fmt.Errorf("media plan dataset: platform %q has best days without times or content types", name)
		}
	}
	return nil
}

func (d *Dataset) reach(platform, budget string) string {
	if v := d.Platforms[platform].Reach[budget]; v != "" {
		return v
	}
	return d.Defaults.Reach
}

func (d *Dataset) dailyBudget(platform, budget string) string {
	if v := d.Platforms[platform].DailyBudget[budget]; v != "" {
		return v
	}
	return d.Defaults.DailyBudget
}

func (d *Dataset) adTypes(platform string) []string {
	if v := d.Platforms[platform].AdTypes; len(v) > 0 {
		return v
	}
	return d.Defaults.AdTypes
}

func (d *Dataset) contentMix(platform string) map[string]string {
	if v := d.Platforms[platform].ContentMix; len(v) > 0 {
		return v
	}
	return d.Defaults.ContentMix
}

func (d *Dataset) strategy(budget string) string {
	if v := d.Budget.Strategies[budget]; v != "" {
		return v
	}
	return d.Defaults.Strategy
}

func (d *Dataset) multiplier(budget string) float64 {
	if v, ok := d.Budget.Multipliers[budget]; ok {
		return v
	}
	return 1.0
}
