package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mohammad-safakhou/campaigner/internal/queue/streams"
)

func eventsCMD(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Inspect the campaign lifecycle event stream",
	}
	cmd.AddCommand(eventsTailCMD(cfgPath))
	return cmd
}

func eventsTailCMD(cfgPath *string) *cobra.Command {
	var (
		group, name string
		count       int64
		block       time.Duration
		follow      bool
	)
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Print lifecycle events as JSON lines, acking each through a consumer group",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := base(ctx, *cfgPath)
			if err != nil {
				return err
			}
			defer a.close()
			if !a.cfg.Events.Enabled {
				return errors.New("events are disabled in config")
			}
			rdb, err := a.redis(ctx)
			if err != nil {
				return err
			}
			registry, err := streams.NewRegistry()
			if err != nil {
				return err
			}
			if name == "" {
				host, _ := os.Hostname()
				name = host + "-" + time.Now().UTC().Format("150405")
			}
			consumer := streams.NewConsumer(rdb, registry, a.cfg.Events.Stream, group, name)
			if err := consumer.EnsureGroup(ctx); err != nil {
				return err
			}
			a.logger.Info("tailing events",
				zap.String("stream", a.cfg.Events.Stream),
				zap.String("group", group),
				zap.String("consumer", name),
			)
			return tail(ctx, consumer, cmd.OutOrStdout(), count, block, follow)
		},
	}
	cmd.Flags().StringVar(&group, "group", "campaigner-tail", "consumer group")
	cmd.Flags().StringVar(&name, "name", "", "consumer name (host and time when empty)")
	cmd.Flags().Int64Var(&count, "count", 10, "entries per read")
	cmd.Flags().DurationVar(&block, "block", 5*time.Second, "how long one read waits for new entries")
	cmd.Flags().BoolVarP(&follow, "follow", "f", true, "keep waiting for new entries")
	return cmd
}

// eventSource is satisfied by *streams.Consumer.
type eventSource interface {
	Read(ctx context.Context, count int64, block time.Duration) ([]streams.Message, error)
	Ack(ctx context.Context, ids ...string) error
}

type eventLine struct {
	StreamID string `json:"stream_id"`
	streams.Envelope
}

// tail writes one JSON line per message and acks it after writing. Without
// follow it returns after the first read that yields nothing. Cancellation
// ends it without error.
func tail(ctx context.Context, src eventSource, w io.Writer, count int64, block time.Duration, follow bool) error {
	enc := json.NewEncoder(w)
	for ctx.Err() == nil {
		msgs, err := src.Read(ctx, count, block)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if len(msgs) == 0 && !follow {
			return nil
		}
		for _, m := range msgs {
			if err := enc.Encode(eventLine{StreamID: m.ID, Envelope: m.Envelope}); err != nil {
				return err
			}
			if err := src.Ack(ctx, m.ID); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
		}
	}
	return nil
}
