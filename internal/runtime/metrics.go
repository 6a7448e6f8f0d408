package runtime

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"

	"github.com/mohammad-safakhou/campaigner/internal/campaign"
	"github.com/mohammad-safakhou/campaigner/internal/executor"
)

// ExecutorMetrics records tool call retries and durations on meter.
func ExecutorMetrics(meter otelmetric.Meter) (executor.Metrics, error) {
	retries, err := meter.Int64Counter("campaign_tool_call_retries_total",
		otelmetric.WithDescription("Tool call attempts after the first"))
	if err != nil {
		return executor.Metrics{}, err
	}
	duration, err := meter.Float64Histogram("campaign_tool_call_duration_seconds",
		otelmetric.WithDescription("Tool call duration across all attempts"),
		otelmetric.WithUnit("s"))
	if err != nil {
		return executor.Metrics{}, err
	}
	return executor.Metrics{
		RetryCounter: func(ctx context.Context, call *campaign.ToolCall, attempt int) {
			retries.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("tool", string(call.Tool))))
		},
		Duration: func(ctx context.Context, call *campaign.ToolCall, success bool, d time.Duration) {
			duration.Record(ctx, d.Seconds(), otelmetric.WithAttributes(
				attribute.String("tool", string(call.Tool)),
				attribute.Bool("success", success),
			))
		},
	}, nil
}
