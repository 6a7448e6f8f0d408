package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mohammad-safakhou/campaigner/internal/campaign"
)

const (
	campaignKeyPrefix = "campaign:"
	campaignIndexKey  = "campaigns"
	assetOwnerPrefix  = "asset_owners:"
)

// Redis stores each document under campaign:<id>, a sorted set ordered by
// creation time for listing, and per asset id a sorted set of owning
// campaigns scored by creation time.
type Redis struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

// Conn dials and pings a Redis server.
func Conn(ctx context.Context, addr, pass string, db int, timeout time.Duration) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: timeout,
		Password:    pass,
		DB:          db,
	})
	pong, err := client.Ping(ctx).Result()
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	if pong != "PONG" {
		_ = client.Close()
		return nil, fmt.Errorf("expected PONG, got %s", pong)
	}
	return client, nil
}

func createdScore(m *campaign.Manifest) float64 {
	if t, err := time.Parse(time.RFC3339, m.CreatedAt); err == nil {
		return float64(t.UnixNano()) / 1e9
	}
	return float64(time.Now().UnixNano()) / 1e9
}

func (r *Redis) Save(ctx context.Context, doc *campaign.Document) (err error) {
	defer func() { observe(ctx, "redis", "save", err) }()
	raw, err := encode(doc)
	if err != nil {
		return err
	}
	m := doc.Manifest
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, campaignKeyPrefix+m.CampaignID, raw, 0)
		score := createdScore(m)
		pipe.ZAddNX(ctx, campaignIndexKey, redis.Z{Score: score, Member: m.CampaignID})
		for _, id := range m.AssetIDs() {
			// NX keeps the first score so re-saves never reorder owners
			pipe.ZAddNX(ctx, assetOwnerPrefix+id, redis.Z{Score: score, Member: m.CampaignID})
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save campaign %s: %w", m.CampaignID, err)
	}
	return nil
}

func (r *Redis) Load(ctx context.Context, campaignID string) (doc *campaign.Document, err error) {
	defer func() { observe(ctx, "redis", "load", err) }()
	raw, err := r.client.Get(ctx, campaignKeyPrefix+campaignID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load campaign %s: %w", campaignID, err)
	}
	return decode(raw)
}

func (r *Redis) List(ctx context.Context) (out []campaign.Summary, err error) {
	defer func() { observe(ctx, "redis", "list", err) }()
	ids, err := r.client.ZRevRange(ctx, campaignIndexKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list campaigns: %w", err)
	}
	out = []campaign.Summary{}
	if len(ids) == 0 {
		return out, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = campaignKeyPrefix + id
	}
	vals, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("list campaigns: %w", err)
	}
	for _, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		doc, err := decode([]byte(s))
		if err != nil {
			return nil, err
		}
		out = append(out, doc.Manifest.Summarize())
	}
	return out, nil
}

func (r *Redis) FindByAssetID(ctx context.Context, assetID string) (id string, err error) {
	defer func() { observe(ctx, "redis", "find_asset", err) }()
	// asset ids repeat across campaigns; the newest campaign wins
	ids, err := r.client.ZRevRange(ctx, assetOwnerPrefix+assetID, 0, 0).Result()
	if err != nil {
		return "", fmt.Errorf("find asset %s: %w", assetID, err)
	}
	if len(ids) == 0 {
		return "", ErrNotFound
	}
	return ids[0], nil
}
