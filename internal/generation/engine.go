// Package generation walks a manifest's asset plan through the tool-call
// executor and folds the results back into asset state.
package generation

import (
	"context"
	"encoding/base64"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/mohammad-safakhou/campaigner/internal/blob"
	"github.com/mohammad-safakhou/campaigner/internal/campaign"
	"github.com/mohammad-safakhou/campaigner/tools"
)

// Runner executes one tool call with an explicit input and records the
// outcome on the call. *executor.Executor satisfies it.
type Runner interface {
	Run(ctx context.Context, call *campaign.ToolCall, input map[string]any) (tools.Result, error)
}

// Engine drives generation and regeneration. It holds no manifest between
// calls; the caller owns the manifest for the duration of a call.
type Engine struct {
	runner Runner
	blobs  blob.Store
	logger *zap.Logger
	tracer trace.Tracer

	mu  sync.Mutex
	rng *rand.Rand
}

// Option configures the engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l.Named("generation") }
}

// WithRand sets the source used to draw image seeds.
func WithRand(r *rand.Rand) Option {
	return func(e *Engine) { e.rng = r }
}

func New(runner Runner, blobs blob.Store, opts ...Option) *Engine {
	e := &Engine{
		runner: runner,
		blobs:  blobs,
		logger: zap.NewNop(),
		tracer: otel.Tracer("campaigner/generation"),
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Generate executes every tool call of every asset in plan order and sets
// the manifest status to ready. Failed calls are recorded on the call and
// the walk continues; only context cancellation stops it.
func (e *Engine) Generate(ctx context.Context, m *campaign.Manifest) error {
	ctx, span := e.tracer.Start(ctx, "generate_assets", trace.WithAttributes(
		attribute.String("campaign_id", m.CampaignID),
		attribute.Int("assets", len(m.AssetPlan)),
	))
	defer span.End()

	for i := range m.AssetPlan {
		a := &m.AssetPlan[i]
		if err := e.runAsset(ctx, a, a.ID); err != nil {
			return err
		}
	}
	m.Status = campaign.StatusReady
	e.logger.Info("asset generation finished",
		zap.String("campaign_id", m.CampaignID),
		zap.Int("assets", len(m.AssetPlan)),
		zap.Int("failed_calls", m.FailedCalls()),
	)
	return nil
}

// Regenerate re-runs one asset: it bumps the version, draws a new seed for
// images, appends instructions to text and image prompts and re-executes
// the asset's calls. Other assets and the manifest status are untouched.
// An unknown id returns campaign.ErrAssetNotFound with m unmodified.
func (e *Engine) Regenerate(ctx context.Context, m *campaign.Manifest, assetID, instructions string) error {
	a, ok := m.Asset(assetID)
	if !ok {
		return campaign.ErrAssetNotFound
	}
	ctx, span := e.tracer.Start(ctx, "regenerate_asset", trace.WithAttributes(
		attribute.String("campaign_id", m.CampaignID),
		attribute.String("asset_id", assetID),
	))
	defer span.End()

	a.Version++
	if a.Type == campaign.AssetImage {
		seed := e.drawSeed()
		a.Seed = &seed
	}
	instructions = strings.TrimSpace(instructions)
	for j := range a.ToolCalls {
		call := &a.ToolCalls[j]
		if call.Tool != campaign.ToolLLMText && call.Tool != campaign.ToolImageGenerate {
			continue
		}
		if call.Input == nil {
			call.Input = map[string]any{}
		}
		if instructions != "" {
			base := call.InputString("prompt")
			if strings.TrimSpace(base) == "" {
				base = a.Prompt
			}
			call.Input["prompt"] = base + "\n\nModification: " + instructions
		}
		if call.Tool == campaign.ToolImageGenerate && a.Seed != nil {
			call.Input["seed"] = *a.Seed
		}
	}

	if err := e.runAsset(ctx, a, fmt.Sprintf("%s_v%d", a.ID, a.Version)); err != nil {
		return err
	}
	e.logger.Info("asset regenerated",
		zap.String("campaign_id", m.CampaignID),
		zap.String("asset_id", a.ID),
		zap.Int("version", a.Version),
	)
	return nil
}

// drawSeed returns a uniform seed in [1, MaxInt32].
func (e *Engine) drawSeed() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rng.Int63n(math.MaxInt32) + 1
}

// runAsset executes a's calls in order. key names the blobs written for
// this pass.
func (e *Engine) runAsset(ctx context.Context, a *campaign.Asset, key string) error {
	for j := range a.ToolCalls {
		call := &a.ToolCalls[j]
		res, err := e.runner.Run(ctx, call, bindInput(a, call, key))
		if err != nil {
			return err
		}
		if !res.OK() {
			e.logger.Warn("tool call failed",
				zap.String("asset_id", a.ID),
				zap.String("call_id", call.ID),
				zap.String("tool", string(call.Tool)),
				zap.String("error", res.ErrorMessage()),
			)
			continue
		}
		if err := e.apply(ctx, a, call, res, key); err != nil {
			return err
		}
	}
	return nil
}

// bindInput fills parameters a call can take from the asset itself. The
// stored call input is not changed.
func bindInput(a *campaign.Asset, call *campaign.ToolCall, key string) map[string]any {
	in := make(map[string]any, len(call.Input)+2)
	for k, v := range call.Input {
		in[k] = v
	}
	missing := func(k string) bool {
		s, _ := in[k].(string)
		return strings.TrimSpace(s) == ""
	}
	switch call.Tool {
	case campaign.ToolLLMText, campaign.ToolImageGenerate:
		if missing("prompt") && a.Prompt != "" {
			in["prompt"] = a.Prompt
		}
		if call.Tool == campaign.ToolImageGenerate && a.Seed != nil {
			if _, ok := in["seed"]; !ok || in["seed"] == nil {
				in["seed"] = *a.Seed
			}
		}
	case campaign.ToolModeration:
		if a.Type == campaign.AssetImage && missing("type") {
			in["type"] = "image"
			in["url"] = a.URL
		}
		if missing("text") && missing("content") && a.Content != "" {
			in["text"] = a.Content
		}
	case campaign.ToolComputeEmbedding:
		if missing("text") {
			in["text"] = a.Content
		}
	case campaign.ToolStoreAsset:
		if missing("key") {
			in["key"] = key
		}
		if missing("content") && missing("data") {
			in["content"] = a.Content
		}
	}
	return in
}

// apply folds a successful result into the asset.
func (e *Engine) apply(ctx context.Context, a *campaign.Asset, call *campaign.ToolCall, res tools.Result, key string) error {
	switch call.Tool {
	case campaign.ToolLLMText:
		a.Content = res.String("text")
		a.Model = res.String("model")
	case campaign.ToolImageGenerate:
		encoded := res.String("image_data")
		if encoded == "" {
			return nil
		}
		url, err := e.storeImage(ctx, key, res)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			te := &campaign.ToolExecutionError{Tool: call.Tool, CallID: call.ID, Message: err.Error()}
			call.Result = map[string]any(tools.Failure(err.Error()))
			call.Error = te.CallError()
			e.logger.Warn("persist image", zap.String("asset_id", a.ID), zap.Error(err))
			return nil
		}
		// the payload lives in the blob store; the call keeps the locator
		delete(call.Result, "image_data")
		call.Result["url"] = url
		a.URL = url
		a.Provider = res.String("provider")
		a.Model = res.String("model")
	case campaign.ToolModeration:
		passed, ok := res["moderation_passed"].(bool)
		if !ok {
			passed = true
		}
		a.Safety.ModerationPassed = passed
		a.Safety.Issues = stringSlice(res["issues"])
	}
	return nil
}

func (e *Engine) storeImage(ctx context.Context, key string, res tools.Result) (string, error) {
	if e.blobs == nil {
		return "", fmt.Errorf("asset storage not configured")
	}
	data, err := base64.StdEncoding.DecodeString(res.String("image_data"))
	if err != nil {
		return "", fmt.Errorf("decode image: %w", err)
	}
	format := strings.TrimPrefix(res.String("format"), ".")
	if format == "" {
		format = "png"
	}
	return e.blobs.Put(ctx, key+"."+format, data)
}

func stringSlice(v any) []string {
	out := []string{}
	switch t := v.(type) {
	case []string:
		out = append(out, t...)
	case []any:
		for _, item := range t {
			out = append(out, campaign.Scalar(item))
		}
	}
	return out
}
