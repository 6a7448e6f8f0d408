package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/mohammad-safakhou/campaigner/internal/campaign"
)

// Postgres keeps one row per campaign with the document in a JSONB column
// and the plan's asset ids in a text array for owner lookups.
type Postgres struct {
	DB *sql.DB
}

// NewPostgres opens and pings the database. The campaigns table comes from
// the migrations directory.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Postgres{DB: db}, nil
}

func (p *Postgres) Close() error { return p.DB.Close() }

func (p *Postgres) Save(ctx context.Context, doc *campaign.Document) (err error) {
	defer func() { observe(ctx, "postgres", "save", err) }()
	raw, err := encode(doc)
	if err != nil {
		return err
	}
	m := doc.Manifest
	_, err = p.DB.ExecContext(ctx, `INSERT INTO campaigns (campaign_id, brief, status, created_at, asset_ids, manifest, updated_at) VALUES ($1,$2,$3,$4,$5,$6,NOW()) ON CONFLICT (campaign_id) DO UPDATE SET brief=EXCLUDED.brief, status=EXCLUDED.status, asset_ids=EXCLUDED.asset_ids, manifest=EXCLUDED.manifest, updated_at=NOW()`,
		m.CampaignID, m.Brief, string(m.Status), m.CreatedAt, pq.Array(m.AssetIDs()), raw)
	if err != nil {
		return fmt.Errorf("save campaign %s: %w", m.CampaignID, err)
	}
	return nil
}

func (p *Postgres) Load(ctx context.Context, campaignID string) (doc *campaign.Document, err error) {
	defer func() { observe(ctx, "postgres", "load", err) }()
	var raw []byte
	err = p.DB.QueryRowContext(ctx, `SELECT manifest FROM campaigns WHERE campaign_id=$1`, campaignID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load campaign %s: %w", campaignID, err)
	}
	return decode(raw)
}

func (p *Postgres) List(ctx context.Context) (out []campaign.Summary, err error) {
	defer func() { observe(ctx, "postgres", "list", err) }()
	rows, err := p.DB.QueryContext(ctx, `SELECT campaign_id, brief, created_at, status FROM campaigns ORDER BY created_at DESC, campaign_id`)
	if err != nil {
		return nil, fmt.Errorf("list campaigns: %w", err)
	}
	defer rows.Close()
	out = []campaign.Summary{}
	for rows.Next() {
		var s campaign.Summary
		var status string
		if err := rows.Scan(&s.CampaignID, &s.Brief, &s.CreatedAt, &status); err != nil {
			return nil, err
		}
		s.Status = campaign.Status(status)
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *Postgres) FindByAssetID(ctx context.Context, assetID string) (id string, err error) {
	defer func() { observe(ctx, "postgres", "find_asset", err) }()
	err = p.DB.QueryRowContext(ctx, `SELECT campaign_id FROM campaigns WHERE $1 = ANY(asset_ids) ORDER BY created_at DESC, campaign_id DESC LIMIT 1`, assetID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("find asset %s: %w", assetID, err)
	}
	return id, nil
}
