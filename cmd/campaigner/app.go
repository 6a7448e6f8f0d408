package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/mohammad-safakhou/campaigner/config"
	"github.com/mohammad-safakhou/campaigner/internal/blob"
	"github.com/mohammad-safakhou/campaigner/internal/campaign"
	"github.com/mohammad-safakhou/campaigner/internal/executor"
	"github.com/mohammad-safakhou/campaigner/internal/generation"
	"github.com/mohammad-safakhou/campaigner/internal/lock"
	"github.com/mohammad-safakhou/campaigner/internal/mediaplan"
	"github.com/mohammad-safakhou/campaigner/internal/orchestrator"
	"github.com/mohammad-safakhou/campaigner/internal/queue/streams"
	"github.com/mohammad-safakhou/campaigner/internal/runtime"
	"github.com/mohammad-safakhou/campaigner/internal/search"
	"github.com/mohammad-safakhou/campaigner/internal/store"
	"github.com/mohammad-safakhou/campaigner/provider"
	"github.com/mohammad-safakhou/campaigner/provider/gemini"
	openai_provider "github.com/mohammad-safakhou/campaigner/provider/openai"
	"github.com/mohammad-safakhou/campaigner/tools"
	"github.com/mohammad-safakhou/campaigner/tools/embedding"
	"github.com/mohammad-safakhou/campaigner/tools/image"
	"github.com/mohammad-safakhou/campaigner/tools/llm"
	"github.com/mohammad-safakhou/campaigner/tools/moderation"
	"github.com/mohammad-safakhou/campaigner/tools/storage"
	"github.com/mohammad-safakhou/campaigner/tools/web_search"
)

// app is the wired process: configuration, telemetry and the orchestrator
// with every collaborator it needs.
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	telemetry *runtime.Telemetry
	blobs     *blob.FS
	store     store.CampaignStore
	orch      *orchestrator.Orchestrator
	rdb       *redis.Client
	closers   []func() error
}

// base loads config and builds the logger, telemetry, blob store and
// campaign store. Commands that do not call a model stop here.
func base(ctx context.Context, cfgPath string) (*app, error) {
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		return nil, err
	}
	logger, err := runtime.NewLogger(cfg.General.LogLevel, cfg.General.Development)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger}
	a.closers = append(a.closers, func() error { _ = logger.Sync(); return nil })

	a.telemetry, err = runtime.SetupTelemetry(ctx, cfg.Telemetry, version)
	if err != nil {
		a.close()
		return nil, err
	}
	a.closers = append(a.closers, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return a.telemetry.Shutdown(ctx)
	})

	a.blobs, err = blob.NewFS(cfg.Storage.AssetsDir, cfg.Storage.PublicBaseURL)
	if err != nil {
		a.close()
		return nil, err
	}
	a.store, err = a.openStore(ctx)
	if err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

// newApp wires the full pipeline on top of base.
func newApp(ctx context.Context, cfgPath string) (*app, error) {
	a, err := base(ctx, cfgPath)
	if err != nil {
		return nil, err
	}
	if err := a.wire(ctx); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *app) wire(ctx context.Context) error {
	cfg := a.cfg
	p, err := newProvider(ctx, cfg.LLM)
	if err != nil {
		return err
	}

	metrics, err := runtime.ExecutorMetrics(a.telemetry.Meter())
	if err != nil {
		return fmt.Errorf("executor metrics: %w", err)
	}
	reg := a.registry(p)
	ex := executor.New(reg,
		executor.WithLogger(a.logger),
		executor.WithMetrics(metrics),
		executor.WithBackoff(cfg.Retry.LinearDelay, cfg.Retry.ExponentialUnit),
	)
	engine := generation.New(ex, a.blobs, generation.WithLogger(a.logger))

	planner, err := a.planner(p)
	if err != nil {
		return err
	}

	var (
		locker lock.Locker = lock.NewLocal()
		events streams.Events
	)
	if rdb, err := a.redis(ctx); err != nil {
		return err
	} else if rdb != nil {
		locker = lock.NewRedis(rdb, cfg.Storage.LockTTL)
		if cfg.Events.Enabled {
			registry, err := streams.NewRegistry()
			if err != nil {
				return err
			}
			events = streams.NewPublisher(rdb, registry, cfg.Events.Stream, streams.WithMaxLenApprox(100000))
		}
	}

	index, err := search.New()
	if err != nil {
		return err
	}
	a.closers = append(a.closers, index.Close)

	a.orch, err = orchestrator.New(orchestrator.Config{
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.ManifestTemperature,
		MaxTokens:   cfg.LLM.ManifestMaxTokens,
		MediaPlan: orchestrator.Options{
			DurationDays: cfg.MediaPlan.DurationDays,
			Budget:       cfg.MediaPlan.Budget,
			Location:     cfg.MediaPlan.Location,
		},
	}, orchestrator.Deps{
		Provider: p,
		Tools:    reg,
		Engine:   engine,
		Planner:  planner,
		Store:    a.store,
		Blobs:    a.blobs,
		Locker:   locker,
		Index:    index,
		Events:   events,
		Logger:   a.logger,
	})
	if err != nil {
		return err
	}
	return a.orch.Reindex(ctx)
}

func newProvider(ctx context.Context, cfg config.LLMConfig) (provider.Provider, error) {
	pc := provider.Config{
		APIKey:         cfg.APIKey,
		BaseURL:        cfg.BaseURL,
		Model:          cfg.Model,
		EmbeddingModel: cfg.EmbeddingModel,
		Timeout:        cfg.Timeout,
	}
	switch cfg.Provider {
	case "openai":
		return openai_provider.New(pc), nil
	case "gemini":
		return gemini.New(ctx, pc)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

func (a *app) registry(p provider.Provider) tools.Registry {
	cfg := a.cfg
	searcher, err := web_search.NewWebSearcher(web_search.Config{
		Provider:   web_search.Provider(cfg.Search.Provider),
		APIKey:     cfg.Search.APIKey,
		BaseURL:    cfg.Search.BaseURL,
		MaxResults: cfg.Search.MaxResults,
	})
	if err != nil {
		a.logger.Warn("web search disabled", zap.String("provider", cfg.Search.Provider), zap.Error(err))
	}
	return tools.Registry{
		campaign.ToolLLMText: llm.NewTextTool(p, cfg.LLM.Model),
		campaign.ToolImageGenerate: image.New(image.Config{
			APIToken:       cfg.Image.APIToken,
			Endpoint:       cfg.Image.Endpoint,
			Model:          cfg.Image.Model,
			InferenceSteps: cfg.Image.InferenceSteps,
			LoadingWait:    cfg.Image.LoadingWait,
			Timeout:        cfg.Image.Timeout,
		}, image.WithLogger(a.logger)),
		campaign.ToolWebSearch: web_search.NewTool(searcher, cfg.Search.MaxResults),
		campaign.ToolModeration: moderation.New(p, moderation.Config{
			FailClosed:  cfg.Moderation.FailClosed,
			Temperature: cfg.Moderation.Temperature,
			Model:       cfg.LLM.Model,
		}, a.logger),
		campaign.ToolStoreAsset:       storage.New(a.blobs),
		campaign.ToolComputeEmbedding: embedding.NewEmbedding(p),
	}
}

func (a *app) planner(p provider.Provider) (*mediaplan.Generator, error) {
	cfg := a.cfg.MediaPlan
	opts := []mediaplan.Option{mediaplan.WithModel(a.cfg.LLM.Model), mediaplan.WithLogger(a.logger)}
	if cfg.Timezone != "" {
		loc, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			return nil, fmt.Errorf("media_plan.timezone: %w", err)
		}
		opts = append(opts, mediaplan.WithLocation(loc))
	}
	if cfg.Seed != 0 {
		opts = append(opts, mediaplan.WithRand(rand.New(rand.NewSource(cfg.Seed))))
	}
	if cfg.DatasetPath != "" {
		ds, err := mediaplan.LoadDataset(cfg.DatasetPath)
		if err != nil {
			return nil, err
		}
		opts = append(opts, mediaplan.WithDataset(ds))
	}
	return mediaplan.New(p, opts...)
}

func (a *app) openStore(ctx context.Context) (store.CampaignStore, error) {
	s := a.cfg.Storage
	switch s.Backend {
	case "postgres":
		pg, err := store.NewPostgres(ctx, s.Postgres.DSN())
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		a.closers = append(a.closers, pg.Close)
		return pg, nil
	case "redis":
		rdb, err := a.redis(ctx)
		if err != nil {
			return nil, err
		}
		return store.NewRedis(rdb), nil
	default:
		return store.NewFile(s.DataDir)
	}
}

// redis returns the shared client, or nil when neither the store nor the
// event stream is configured to use Redis.
func (a *app) redis(ctx context.Context) (*redis.Client, error) {
	if a.rdb != nil {
		return a.rdb, nil
	}
	if a.cfg.Storage.Backend != "redis" && !a.cfg.Events.Enabled {
		return nil, nil
	}
	r := a.cfg.Storage.Redis
	client, err := store.Conn(ctx, r.Addr(), r.Password, r.DB, r.Timeout)
	if err != nil {
		return nil, fmt.Errorf("redis %s: %w", r.Addr(), err)
	}
	a.rdb = client
	a.closers = append(a.closers, client.Close)
	return client, nil
}

func (a *app) close() {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil && a.logger != nil {
		a.logger.Warn("shutdown", zap.Error(err))
	}
}
