// Package store persists campaign manifests keyed by campaign id.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"

	"github.com/mohammad-safakhou/campaigner/internal/campaign"
)

// ErrNotFound is returned when no campaign (or asset owner) matches.
var ErrNotFound = errors.New("campaign not found")

// CampaignStore is implemented by every backend.
type CampaignStore interface {
	// Save writes the whole document, replacing any previous version.
	Save(ctx context.Context, doc *campaign.Document) error
	Load(ctx context.Context, campaignID string) (*campaign.Document, error)
	// List returns summaries, newest first.
	List(ctx context.Context) ([]campaign.Summary, error)
	// FindByAssetID returns the id of the campaign whose plan holds assetID.
	FindByAssetID(ctx context.Context, assetID string) (string, error)
}

var (
	metricsOnce sync.Once
	opsCounter  otelmetric.Int64Counter
)

func initStoreMetrics() {
	meter := otel.Meter("store")
	c, err := meter.Int64Counter("campaign_store_operations_total")
	if err == nil {
		opsCounter = c
	}
}

func observe(ctx context.Context, backend, op string, err error) {
	metricsOnce.Do(initStoreMetrics)
	if opsCounter == nil {
		return
	}
	opsCounter.Add(ctx, 1, otelmetric.WithAttributes(
		attribute.String("backend", backend),
		attribute.String("op", op),
		attribute.Bool("error", err != nil && !errors.Is(err, ErrNotFound)),
	))
}

func encode(doc *campaign.Document) ([]byte, error) {
	if doc == nil || doc.Manifest == nil {
		return nil, fmt.Errorf("campaign document is empty")
	}
	if doc.Manifest.CampaignID == "" {
		return nil, fmt.Errorf("campaign_id required")
	}
	return json.Marshal(doc)
}

func decode(raw []byte) (*campaign.Document, error) {
	var doc campaign.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode campaign: %w", err)
	}
	if doc.Manifest == nil {
		return nil, fmt.Errorf("decode campaign: missing campaign_manifest")
	}
	return &doc, nil
}
