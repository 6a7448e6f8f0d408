// Package orchestrator runs the campaign pipeline: brief to manifest,
// asset generation, media planning, persistence, indexing and events.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/mohammad-safakhou/campaigner/internal/blob"
	"github.com/mohammad-safakhou/campaigner/internal/campaign"
	"github.com/mohammad-safakhou/campaigner/internal/export"
	"github.com/mohammad-safakhou/campaigner/internal/llmjson"
	"github.com/mohammad-safakhou/campaigner/internal/lock"
	"github.com/mohammad-safakhou/campaigner/internal/mediaplan"
	"github.com/mohammad-safakhou/campaigner/internal/queue/streams"
	"github.com/mohammad-safakhou/campaigner/internal/repair"
	"github.com/mohammad-safakhou/campaigner/internal/schema"
	"github.com/mohammad-safakhou/campaigner/internal/search"
	"github.com/mohammad-safakhou/campaigner/internal/store"
	"github.com/mohammad-safakhou/campaigner/provider"
	"github.com/mohammad-safakhou/campaigner/tools"
	"github.com/mohammad-safakhou/campaigner/tools/llm"
)

// AssetEngine is satisfied by *generation.Engine.
type AssetEngine interface {
	Generate(ctx context.Context, m *campaign.Manifest) error
	Regenerate(ctx context.Context, m *campaign.Manifest, assetID, instructions string) error
}

// Planner is satisfied by *mediaplan.Generator.
type Planner interface {
	Generate(ctx context.Context, req mediaplan.Request) (*mediaplan.Plan, error)
}

// Config holds the pipeline knobs.
type Config struct {
	Model       string
	Temperature float64
	MaxTokens   int
	MediaPlan   Options
}

// Options are the caller-supplied media plan parameters.
type Options struct {
	DurationDays int    `json:"duration_days"`
	Budget       string `json:"budget"`
	Location     string `json:"location"`
}

// Deps are the collaborators of the orchestrator. Tools, Index, Events,
// Locker, Normalizer and Logger are optional; without an llm_text tool the
// agent operations use a text tool over Provider.
type Deps struct {
	Provider   provider.Provider
	Tools      tools.Registry
	Engine     AssetEngine
	Planner    Planner
	Store      store.CampaignStore
	Blobs      blob.Store
	Locker     lock.Locker
	Index      *search.Index
	Events     streams.Events
	Normalizer *repair.Normalizer
	Logger     *zap.Logger
}

// Orchestrator owns the manifest for the span of each operation: lock,
// load, mutate, save, release.
type Orchestrator struct {
	cfg        Config
	provider   provider.Provider
	tools      tools.Registry
	engine     AssetEngine
	planner    Planner
	store      store.CampaignStore
	blobs      blob.Store
	locker     lock.Locker
	index      *search.Index
	events     streams.Events
	normalizer *repair.Normalizer
	logger     *zap.Logger
	tracer     trace.Tracer
}

func New(cfg Config, d Deps) (*Orchestrator, error) {
	if d.Provider == nil || d.Engine == nil || d.Planner == nil || d.Store == nil {
		return nil, errors.New("orchestrator: provider, engine, planner and store are required")
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.3
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 8192
	}
	o := &Orchestrator{
		cfg:        cfg,
		provider:   d.Provider,
		engine:     d.Engine,
		planner:    d.Planner,
		store:      d.Store,
		blobs:      d.Blobs,
		locker:     d.Locker,
		index:      d.Index,
		events:     d.Events,
		normalizer: d.Normalizer,
		logger:     d.Logger,
		tracer:     otel.Tracer("campaigner/orchestrator"),
	}
	o.tools = tools.Registry{campaign.ToolLLMText: llm.NewTextTool(d.Provider, cfg.Model)}
	for kind, t := range d.Tools {
		o.tools[kind] = t
	}
	if o.locker == nil {
		o.locker = lock.NewLocal()
	}
	if o.events == nil {
		o.events = streams.Nop{}
	}
	if o.normalizer == nil {
		o.normalizer = repair.New()
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	o.logger = o.logger.Named("orchestrator")
	return o, nil
}

// GenerateCampaign turns a brief into a generated, persisted campaign.
func (o *Orchestrator) GenerateCampaign(ctx context.Context, brief string) (*campaign.Document, error) {
	brief = strings.TrimSpace(brief)
	if brief == "" {
		return nil, &campaign.ValidationError{Field: "brief", Message: "brief is required"}
	}
	ctx, span := o.tracer.Start(ctx, "generate_campaign")
	defer span.End()

	doc, err := o.draft(ctx, brief)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	m := doc.Manifest
	if _, err := o.store.Load(ctx, m.CampaignID); err == nil {
		fresh := repair.NewCampaignID()
		o.logger.Info("model reused a stored campaign id", zap.String("campaign_id", m.CampaignID), zap.String("assigned", fresh))
		m.CampaignID = fresh
	}
	span.SetAttributes(attribute.String("campaign_id", m.CampaignID))

	release, err := o.locker.Acquire(ctx, lock.Key(m.CampaignID))
	if err != nil {
		return nil, err
	}
	defer release()

	m.Status = campaign.StatusDraft
	if err := o.store.Save(ctx, doc); err != nil {
		return nil, fmt.Errorf("save draft: %w", err)
	}
	m.Status = campaign.StatusGenerating
	if err := o.store.Save(ctx, doc); err != nil {
		return nil, fmt.Errorf("save generating: %w", err)
	}
	if err := o.engine.Generate(ctx, m); err != nil {
		return nil, err
	}
	if err := o.store.Save(ctx, doc); err != nil {
		return nil, fmt.Errorf("save generated: %w", err)
	}

	plan, err := o.planner.Generate(ctx, o.planRequest(m.Brief, m.Strategy, o.cfg.MediaPlan))
	switch {
	case err != nil && ctx.Err() != nil:
		return nil, ctx.Err()
	case err != nil:
		o.logger.Warn("media plan failed", zap.String("campaign_id", m.CampaignID), zap.Error(err))
	default:
		if err := attachPlan(m, plan); err != nil {
			o.logger.Warn("attach media plan", zap.String("campaign_id", m.CampaignID), zap.Error(err))
		} else if err := o.store.Save(ctx, doc); err != nil {
			return nil, fmt.Errorf("save media plan: %w", err)
		}
	}

	o.indexCampaign(m)
	o.publish("campaign generated", o.events.CampaignGenerated(ctx, streams.CampaignGenerated{
		CampaignID:  m.CampaignID,
		Status:      string(m.Status),
		AssetCount:  len(m.AssetPlan),
		FailedCalls: m.FailedCalls(),
	}))
	o.logger.Info("campaign generated",
		zap.String("campaign_id", m.CampaignID),
		zap.Int("assets", len(m.AssetPlan)),
		zap.Int("failed_calls", m.FailedCalls()),
	)
	return doc, nil
}

// draft asks the model for a manifest and repairs and validates it.
func (o *Orchestrator) draft(ctx context.Context, brief string) (*campaign.Document, error) {
	resp, err := o.provider.Generate(ctx, provider.Request{
		System:      manifestSystemPrompt,
		Prompt:      manifestPrompt(brief),
		Model:       o.cfg.Model,
		Temperature: o.cfg.Temperature,
		MaxTokens:   o.cfg.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("generate manifest: %w", err)
	}
	var tree map[string]any
	if err := json.Unmarshal([]byte(llmjson.StripFences(resp.Text)), &tree); err != nil {
		return nil, &campaign.SchemaError{Reason: "model output is not valid JSON", Err: err}
	}
	if tree == nil {
		return nil, &campaign.SchemaError{Reason: "model output is not a JSON object"}
	}
	normalized, err := o.normalizer.Normalize(tree, brief)
	if err != nil {
		return nil, err
	}
	return schema.Validate(normalized)
}

// RegenerateAsset re-runs one asset of a stored campaign. An empty
// campaignID is resolved through the store's asset index.
func (o *Orchestrator) RegenerateAsset(ctx context.Context, campaignID, assetID, instructions string) (*campaign.Document, error) {
	if strings.TrimSpace(assetID) == "" {
		return nil, &campaign.ValidationError{Field: "asset_id", Message: "asset_id is required"}
	}
	if campaignID == "" {
		id, err := o.store.FindByAssetID(ctx, assetID)
		if errors.Is(err, store.ErrNotFound) {
			return nil, campaign.ErrAssetNotFound
		}
		if err != nil {
			return nil, err
		}
		campaignID = id
	}

	var version int
	doc, err := o.mutate(ctx, campaignID, func(m *campaign.Manifest) error {
		if err := o.engine.Regenerate(ctx, m, assetID, instructions); err != nil {
			return err
		}
		a, _ := m.Asset(assetID)
		version = a.Version
		return nil
	})
	if err != nil {
		return nil, err
	}
	o.publish("asset regenerated", o.events.AssetRegenerated(ctx, streams.AssetRegenerated{
		CampaignID: campaignID,
		AssetID:    assetID,
		Version:    version,
	}))
	return doc, nil
}

// GenerateMediaPlan builds a plan for a stored campaign and attaches it.
func (o *Orchestrator) GenerateMediaPlan(ctx context.Context, campaignID string, opts Options) (*mediaplan.Plan, error) {
	var plan *mediaplan.Plan
	_, err := o.mutate(ctx, campaignID, func(m *campaign.Manifest) error {
		p, err := o.planner.Generate(ctx, o.planRequest(m.Brief, m.Strategy, opts))
		if err != nil {
			return err
		}
		plan = p
		return attachPlan(m, p)
	})
	if err != nil {
		return nil, err
	}
	platforms := make([]string, 0, len(plan.PlatformAnalysis.RecommendedPlatforms))
	for _, p := range plan.PlatformAnalysis.RecommendedPlatforms {
		platforms = append(platforms, p.Platform)
	}
	o.publish("media plan generated", o.events.MediaPlanGenerated(ctx, streams.MediaPlanGenerated{
		CampaignID: campaignID,
		PlanID:     plan.PlanID,
		Platforms:  platforms,
	}))
	return plan, nil
}

// mutate holds the campaign lock across load, fn and save. Nothing is
// saved when fn fails.
func (o *Orchestrator) mutate(ctx context.Context, campaignID string, fn func(m *campaign.Manifest) error) (*campaign.Document, error) {
	release, err := o.locker.Acquire(ctx, lock.Key(campaignID))
	if err != nil {
		return nil, err
	}
	defer release()

	doc, err := o.store.Load(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if err := fn(doc.Manifest); err != nil {
		return nil, err
	}
	if err := o.store.Save(ctx, doc); err != nil {
		return nil, fmt.Errorf("save campaign %s: %w", campaignID, err)
	}
	return doc, nil
}

// Campaign returns a stored campaign.
func (o *Orchestrator) Campaign(ctx context.Context, id string) (*campaign.Document, error) {
	return o.store.Load(ctx, id)
}

// Campaigns lists stored campaigns, newest first. A non-empty query keeps
// only the campaigns the search index matches.
func (o *Orchestrator) Campaigns(ctx context.Context, query string) ([]campaign.Summary, error) {
	list, err := o.store.List(ctx)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(query) == "" || o.index == nil {
		return list, nil
	}
	ids, err := o.index.Search(query, len(list))
	if err != nil {
		return nil, &campaign.ValidationError{Field: "q", Message: err.Error()}
	}
	hit := make(map[string]bool, len(ids))
	for _, id := range ids {
		hit[id] = true
	}
	out := make([]campaign.Summary, 0, len(ids))
	for _, s := range list {
		if hit[s.CampaignID] {
			out = append(out, s)
		}
	}
	return out, nil
}

// Export writes the campaign archive to w.
func (o *Orchestrator) Export(ctx context.Context, id string, w io.Writer) error {
	doc, err := o.store.Load(ctx, id)
	if err != nil {
		return err
	}
	return export.Write(ctx, w, doc, o.blobs)
}

// Reindex loads every stored campaign into the search index.
func (o *Orchestrator) Reindex(ctx context.Context) error {
	if o.index == nil {
		return nil
	}
	list, err := o.store.List(ctx)
	if err != nil {
		return err
	}
	for _, s := range list {
		doc, err := o.store.Load(ctx, s.CampaignID)
		if err != nil {
			o.logger.Warn("reindex load", zap.String("campaign_id", s.CampaignID), zap.Error(err))
			continue
		}
		o.indexCampaign(doc.Manifest)
	}
	o.logger.Info("search index rebuilt", zap.Int("campaigns", len(list)))
	return nil
}

func (o *Orchestrator) indexCampaign(m *campaign.Manifest) {
	if o.index == nil {
		return
	}
	if err := o.index.Put(m); err != nil {
		o.logger.Warn("index campaign", zap.String("campaign_id", m.CampaignID), zap.Error(err))
	}
}

func (o *Orchestrator) publish(what string, err error) {
	if err != nil {
		o.logger.Warn("publish event", zap.String("event", what), zap.Error(err))
	}
}

func (o *Orchestrator) planRequest(brief string, strategy campaign.Strategy, opts Options) mediaplan.Request {
	def := o.cfg.MediaPlan
	if opts.DurationDays <= 0 {
		opts.DurationDays = def.DurationDays
	}
	if opts.Budget == "" {
		opts.Budget = def.Budget
	}
	if opts.Location == "" {
		opts.Location = def.Location
	}
	return mediaplan.Request{
		Brief:        brief,
		Strategy:     strategy,
		DurationDays: opts.DurationDays,
		Budget:       opts.Budget,
		Location:     opts.Location,
	}
}

// attachPlan stores the plan on the manifest, adopts its influencer
// recommendations and derives the posting calendar from its schedule.
func attachPlan(m *campaign.Manifest, plan *mediaplan.Plan) error {
	raw, err := json.Marshal(plan)
	if err != nil {
		return fmt.Errorf("marshal media plan: %w", err)
	}
	m.MediaPlan = raw
	m.Influencers = append([]campaign.Influencer(nil), plan.InfluencerRecommendations...)
	m.PostingCalendar = calendar(plan.PostingSchedule, m.AssetIDs())
	return nil
}

// calendar turns scheduled posts into calendar items, assigning asset ids
// round-robin over the asset plan.
func calendar(posts []mediaplan.Post, assetIDs []string) []campaign.PostingCalendarItem {
	items := make([]campaign.PostingCalendarItem, 0, len(posts))
	for i, p := range posts {
		item := campaign.PostingCalendarItem{
			Date:             p.Date,
			Channel:          p.Platform,
			AssetIDs:         []string{},
			RequiresApproval: true,
		}
		if len(assetIDs) > 0 {
			item.AssetIDs = []string{assetIDs[i%len(assetIDs)]}
		}
		items = append(items, item)
	}
	return items
}
