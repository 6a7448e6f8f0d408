package streams

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Events is what the orchestrator needs from an event sink.
type Events interface {
	CampaignGenerated(ctx context.Context, e CampaignGenerated) error
	AssetRegenerated(ctx context.Context, e AssetRegenerated) error
	MediaPlanGenerated(ctx context.Context, e MediaPlanGenerated) error
}

// CampaignGenerated is the v1 payload of campaign.generated.
type CampaignGenerated struct {
	CampaignID  string `json:"campaign_id"`
	Status      string `json:"status"`
	AssetCount  int    `json:"asset_count"`
	FailedCalls int    `json:"failed_calls"`
}

// AssetRegenerated is the v1 payload of asset.regenerated.
type AssetRegenerated struct {
	CampaignID string `json:"campaign_id"`
	AssetID    string `json:"asset_id"`
	Version    int    `json:"version"`
}

// MediaPlanGenerated is the v1 payload of media_plan.generated.
type MediaPlanGenerated struct {
	CampaignID string   `json:"campaign_id"`
	PlanID     string   `json:"plan_id"`
	Platforms  []string `json:"platforms"`
}

// Nop discards every event. Used when events are disabled.
type Nop struct{}

func (Nop) CampaignGenerated(context.Context, CampaignGenerated) error { return nil }
func (Nop) AssetRegenerated(context.Context, AssetRegenerated) error { return nil }
func (Nop) MediaPlanGenerated(context.Context, MediaPlanGenerated) error { return nil }

// Publisher wraps Redis Stream publishing with schema validation.
type Publisher struct {
	client   redis.UniversalClient
	registry *SchemaRegistry
	stream   string
	opts     []PublishOption

	published metric.Int64Counter
}

// PublishOption allows configuring Redis XADD behaviour.
type PublishOption func(*redis.XAddArgs)

// WithMaxLenApprox sets an approximate max length for the stream.
func WithMaxLenApprox(maxLen int64) PublishOption {
	return func(args *redis.XAddArgs) {
		if maxLen > 0 {
			args.MaxLen = maxLen
			args.Approx = true
		}
	}
}

// NewPublisher creates a Publisher writing to stream. A nil registry skips payload validation.
func NewPublisher(client redis.UniversalClient, registry *SchemaRegistry, stream string, opts ...PublishOption) *Publisher {
	counter, _ := otel.Meter("campaigner/events").Int64Counter(
		"campaign_events_published_total",
		metric.WithDescription("Campaign lifecycle events appended to the stream"),
	)
	return &Publisher{client: client, registry: registry, stream: stream, opts: opts, published: counter}
}

// Publish validates the envelope and appends it to the configured stream.
func (p *Publisher) Publish(ctx context.Context, envelope Envelope) (string, error) {
	if p.stream == "" {
		return "", fmt.Errorf("stream name is required")
	}
	if envelope.EventID == "" {
		envelope.EventID = uuid.NewString()
	}
	if envelope.OccurredAt.IsZero() {
		envelope.OccurredAt = time.Now().UTC()
	}
	if err := envelope.ValidateBasic(); err != nil {
		return "", err
	}
	if p.registry != nil {
		if err := p.registry.Validate(envelope.EventType, envelope.Version, envelope.Payload); err != nil {
			p.record(ctx, envelope.EventType, "invalid")
			return "", err
		}
	}

	raw, err := envelope.Marshal()
	if err != nil {
		return "", err
	}
	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{
			"event_type": envelope.EventType,
			"envelope":   raw,
		},
	}
	for _, opt := range p.opts {
		opt(args)
	}

	id, err := p.client.XAdd(ctx, args).Result()
	if err != nil {
		p.record(ctx, envelope.EventType, "error")
		return "", fmt.Errorf("xadd: %w", err)
	}
	p.record(ctx, envelope.EventType, "ok")
	return id, nil
}

// PublishRaw wraps an arbitrary payload in an envelope before publishing.
func (p *Publisher) PublishRaw(ctx context.Context, eventType, version string, payload interface{}) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	return p.Publish(ctx, Envelope{EventType: eventType, Version: version, Payload: data})
}

func (p *Publisher) CampaignGenerated(ctx context.Context, e CampaignGenerated) error {
	_, err := p.PublishRaw(ctx, EventCampaignGenerated, "v1", e)
	return err
}

func (p *Publisher) AssetRegenerated(ctx context.Context, e AssetRegenerated) error {
	_, err := p.PublishRaw(ctx, EventAssetRegenerated, "v1", e)
	return err
}

func (p *Publisher) MediaPlanGenerated(ctx context.Context, e MediaPlanGenerated) error {
	if e.Platforms == nil {
		e.Platforms = []string{}
	}
	_, err := p.PublishRaw(ctx, EventMediaPlanGenerated, "v1", e)
	return err
}

func (p *Publisher) record(ctx context.Context, eventType, outcome string) {
	if p.published == nil {
		return
	}
	p.published.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event_type", eventType),
		attribute.String("outcome", outcome),
	))
}
