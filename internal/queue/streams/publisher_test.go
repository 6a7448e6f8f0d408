package streams_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	tcRedis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/mohammad-safakhou/campaigner/internal/queue/streams"
)

var _ streams.Events = streams.Nop{}
var _ streams.Events = (*streams.Publisher)(nil)

func TestPublisherRejectsInvalidPayloadWithoutRedis(t *testing.T) {
	registry, err := streams.NewRegistry()
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	// Unreachable address: validation must fail before any network call.
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
	defer func() { _ = client.Close() }()

	pub := streams.NewPublisher(client, registry, "campaign.events")
	err = pub.AssetRegenerated(context.Background(), streams.AssetRegenerated{CampaignID: "c", AssetID: "", Version: 1})
	if err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestPublisherIntegration(t *testing.T) {
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

	registry, err := streams.NewRegistry()
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	pub := streams.NewPublisher(client, registry, "campaign.events", streams.WithMaxLenApprox(1000))
	consumer := streams.NewConsumer(client, registry, "campaign.events", "tests", "worker-1")
	if err := consumer.EnsureGroup(ctx); err != nil {
		t.Fatalf("ensure group: %v", err)
	}

	if err := pub.CampaignGenerated(ctx, streams.CampaignGenerated{CampaignID: "campaign_1", Status: "ready", AssetCount: 2, FailedCalls: 1}); err != nil {
		t.Fatalf("publish campaign: %v", err)
	}
	if err := pub.MediaPlanGenerated(ctx, streams.MediaPlanGenerated{CampaignID: "campaign_1", PlanID: "mp_20251001_120000"}); err != nil {
		t.Fatalf("publish plan: %v", err)
	}

	msgs, err := consumer.Read(ctx, 10, time.Second)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Envelope.EventType != streams.EventCampaignGenerated || msgs[1].Envelope.EventType != streams.EventMediaPlanGenerated {
		t.Fatalf("unexpected order: %s, %s", msgs[0].Envelope.EventType, msgs[1].Envelope.EventType)
	}
	var payload streams.CampaignGenerated
	if err := json.Unmarshal(msgs[0].Envelope.Payload, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.FailedCalls != 1 || payload.AssetCount != 2 {
		t.Fatalf("unexpected payload: %+v", payload)
	}
	if err := consumer.Ack(ctx, msgs[0].ID, msgs[1].ID); err != nil {
		t.Fatalf("ack: %v", err)
	}
}
