package streams

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Consumer reads campaign envelopes from a stream through a consumer group.
type Consumer struct {
	client   redis.UniversalClient
	registry *SchemaRegistry
	stream   string
	group    string
	name     string
}

// Message is a decoded stream entry.
type Message struct {
	ID       string
	Envelope Envelope
}

// NewConsumer builds a consumer for stream within group.
func NewConsumer(client redis.UniversalClient, registry *SchemaRegistry, stream, group, name string) *Consumer {
	return &Consumer{client: client, registry: registry, stream: stream, group: group, name: name}
}

// EnsureGroup creates the consumer group, reading from the start of the stream, if it does not exist.
func (c *Consumer) EnsureGroup(ctx context.Context) error {
	if c.stream == "" || c.group == "" {
		return fmt.Errorf("stream and group must be provided")
	}
	if err := c.client.XGroupCreateMkStream(ctx, c.stream, c.group, "0").Err(); err != nil {
		if strings.Contains(err.Error(), "BUSYGROUP") {
			return nil
		}
		return fmt.Errorf("xgroup create: %w", err)
	}
	return nil
}

// Read returns up to count new messages, blocking at most block. Malformed entries are acked and skipped.
func (c *Consumer) Read(ctx context.Context, count int64, block time.Duration) ([]Message, error) {
	if c.name == "" {
		return nil, fmt.Errorf("consumer name must be configured")
	}
	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.group,
		Consumer: c.name,
		Streams:  []string{c.stream, ">"},
		Count:    count,
		Block:    block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("xreadgroup: %w", err)
	}

	var out []Message
	for _, st := range streams {
		for _, msg := range st.Messages {
			env, err := c.decode(msg)
			if err != nil {
				_ = c.client.XAck(ctx, c.stream, c.group, msg.ID).Err()
				continue
			}
			out = append(out, Message{ID: msg.ID, Envelope: env})
		}
	}
	return out, nil
}

// Ack acknowledges processing of the provided message IDs.
func (c *Consumer) Ack(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := c.client.XAck(ctx, c.stream, c.group, ids...).Err(); err != nil {
		return fmt.Errorf("xack: %w", err)
	}
	return nil
}

func (c *Consumer) decode(msg redis.XMessage) (Envelope, error) {
	var raw []byte
	switch v := msg.Values["envelope"].(type) {
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return Envelope{}, fmt.Errorf("entry %s has no envelope", msg.ID)
	}
	env, err := UnmarshalEnvelope(raw)
	if err != nil {
		return Envelope{}, err
	}
	if c.registry != nil {
		if err := c.registry.Validate(env.EventType, env.Version, env.Payload); err != nil {
			return Envelope{}, err
		}
	}
	return env, nil
}
