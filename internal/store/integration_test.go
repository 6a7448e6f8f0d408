package store_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcRedis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/mohammad-safakhou/campaigner/internal/campaign"
	"github.com/mohammad-safakhou/campaigner/internal/store"
)

func exercise(t *testing.T, st store.CampaignStore) {
	t.Helper()
	ctx := context.Background()

	first := &campaign.Document{Manifest: &campaign.Manifest{
		CampaignID: "camp_a", Brief: "first", CreatedAt: "2025-10-01T00:00:00Z", Status: campaign.StatusDraft,
		AssetPlan: []campaign.Asset{{ID: "asset_shared", Type: campaign.AssetText, Version: 1}},
	}}
	second := &campaign.Document{Manifest: &campaign.Manifest{
		CampaignID: "camp_b", Brief: "second", CreatedAt: "2025-10-02T00:00:00Z", Status: campaign.StatusReady,
		AssetPlan: []campaign.Asset{{ID: "asset_shared", Type: campaign.AssetText, Version: 1}, {ID: "asset_only_b", Type: campaign.AssetImage, Version: 1}},
	}}
	if err := st.Save(ctx, first); err != nil {
		t.Fatalf("save first: %v", err)
	}
	if err := st.Save(ctx, second); err != nil {
		t.Fatalf("save second: %v", err)
	}

	first.Manifest.Status = campaign.StatusReady
	if err := st.Save(ctx, first); err != nil {
		t.Fatalf("resave first: %v", err)
	}
	got, err := st.Load(ctx, "camp_a")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Manifest.Status != campaign.StatusReady {
		t.Fatalf("expected overwritten status, got %s", got.Manifest.Status)
	}

	list, err := st.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].CampaignID != "camp_b" {
		t.Fatalf("unexpected list: %+v", list)
	}

	owner, err := st.FindByAssetID(ctx, "asset_only_b")
	if err != nil || owner != "camp_b" {
		t.Fatalf("owner = %q, %v", owner, err)
	}
	// camp_a was saved last but camp_b is newer
	owner, err = st.FindByAssetID(ctx, "asset_shared")
	if err != nil || owner != "camp_b" {
		t.Fatalf("shared owner = %q, %v", owner, err)
	}
	if _, err := st.Load(ctx, "camp_missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := st.FindByAssetID(ctx, "asset_missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFileStoreContract(t *testing.T) {
	st, err := store.NewFile(t.TempDir())
	if err != nil {
		t.Fatalf("store init: %v", err)
	}
	exercise(t, st)
}

func TestPostgresStoreIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()

	pgC, err := tcPostgres.RunContainer(ctx,
		tcPostgres.WithDatabase("campaigner"),
		tcPostgres.WithUsername("campaigner"),
		tcPostgres.WithPassword("campaigner"),
		testcontainers.WithWaitStrategy(wait.ForListeningPort("5432/tcp")),
	)
	if err != nil {
		t.Fatalf("postgres container: %v", err)
	}
	defer func() { _ = pgC.Terminate(ctx) }()

	host, err := pgC.Host(ctx)
	if err != nil {
		t.Fatalf("postgres host: %v", err)
	}
	port, err := pgC.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("postgres port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://campaigner:campaigner@%s:%s/campaigner?sslmode=disable", host, port.Port())

	m, err := migrate.New("file://../../migrations", dsn)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := m.Up(); err != nil {
		t.Fatalf("migrate up: %v", err)
	}

	st, err := store.NewPostgres(ctx, dsn)
	if err != nil {
		t.Fatalf("store init: %v", err)
	}
	defer st.Close()
	exercise(t, st)
}

func TestRedisStoreIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()

	redisC, err := tcRedis.RunContainer(ctx, testcontainers.WithWaitStrategy(wait.ForListeningPort("6379/tcp")))
	if err != nil {
		t.Fatalf("redis container: %v", err)
	}
	defer func() { _ = redisC.Terminate(ctx) }()

	host, err := redisC.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := redisC.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: fmt.Sprintf("%s:%s", host, port.Port())})
	defer func() { _ = client.Close() }()

	exercise(t, store.NewRedis(client))
}
