package executor

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/mohammad-safakhou/campaigner/internal/campaign"
	"github.com/mohammad-safakhou/campaigner/tools"
)

// ErrMaxRetries is the failure message once every attempt has failed.
const ErrMaxRetries = "Max retries exceeded"

// Executor runs single tool calls against the registered adapters with the
// call's retry policy. It keeps no state between calls.
type Executor struct {
	tools       tools.Registry
	metrics     Metrics
	logger      *zap.Logger
	tracer      trace.Tracer
	sleep       func(ctx context.Context, d time.Duration) error
	linearDelay time.Duration
	unit        time.Duration
}

// Metrics aggregates optional telemetry callbacks.
type Metrics struct {
	RetryCounter func(ctx context.Context, call *campaign.ToolCall, attempt int)
	Duration     func(ctx context.Context, call *campaign.ToolCall, success bool, d time.Duration)
}

// Option configures executor behaviour.
type Option func(*Executor)

// WithMetrics sets executor metrics callbacks.
func WithMetrics(m Metrics) Option {
	return func(ex *Executor) {
		ex.metrics = m
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(ex *Executor) {
		ex.logger = l.Named("executor")
	}
}

// WithSleeper replaces the backoff wait.
func WithSleeper(f func(ctx context.Context, d time.Duration) error) Option {
	return func(ex *Executor) {
		ex.sleep = f
	}
}

// WithBackoff sets the fixed wait for linear backoff and the unit that
// exponential backoff multiplies (unit * 2^attempt).
func WithBackoff(linear, unit time.Duration) Option {
	return func(ex *Executor) {
		ex.linearDelay = linear
		ex.unit = unit
	}
}

// New creates a new Executor instance.
func New(registry tools.Registry, opts ...Option) *Executor {
	ex := &Executor{
		tools:       registry,
		logger:      zap.NewNop(),
		tracer:      otel.Tracer("campaigner/executor"),
		sleep:       sleepCtx,
		linearDelay: 2 * time.Second,
		unit:        time.Second,
	}
	for _, opt := range opts {
		opt(ex)
	}
	return ex
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Backoff returns the wait after the attempt with the given zero-based index.
func (e *Executor) Backoff(policy campaign.RetryPolicy, attempt int) time.Duration {
	if policy.Backoff == campaign.BackoffExponential {
		return e.unit * time.Duration(int64(1)<<uint(attempt))
	}
	return e.linearDelay
}

// Execute runs call with its own input. See Run.
func (e *Executor) Execute(ctx context.Context, call *campaign.ToolCall) (tools.Result, error) {
	return e.Run(ctx, call, call.Input)
}

// Run executes call using input and records the outcome on the call: the
// raw result always, and an execution_failed error when every attempt
// failed. The only error returned is context cancellation.
func (e *Executor) Run(ctx context.Context, call *campaign.ToolCall, input map[string]any) (tools.Result, error) {
	ctx, span := e.tracer.Start(ctx, "tool_call", trace.WithAttributes(
		attribute.String("tool", string(call.Tool)),
		attribute.String("call_id", call.ID),
	))
	defer span.End()

	tool, ok := e.tools.Lookup(call.Tool)
	if !ok {
		res := tools.Failure(fmt.Sprintf("Unknown tool: %s", call.Tool))
		e.record(call, res)
		span.SetStatus(codes.Error, res.ErrorMessage())
		return res, nil
	}

	maxAttempts := call.RetryPolicy.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	start := time.Now()
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := tool.Execute(ctx, input)
		if err == nil && res.OK() {
			e.record(call, res)
			e.observe(ctx, call, true, start)
			return res, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
		msg := res.ErrorMessage()
		if err != nil {
			msg = err.Error()
		}
		e.logger.Warn("tool call attempt failed",
			zap.String("tool", string(call.Tool)),
			zap.String("call_id", call.ID),
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", maxAttempts),
			zap.String("error", msg),
		)
		if e.metrics.RetryCounter != nil {
			e.metrics.RetryCounter(ctx, call, attempt+1)
		}
		if attempt < maxAttempts-1 {
			if err := e.sleep(ctx, e.Backoff(call.RetryPolicy, attempt)); err != nil {
				return nil, err
			}
		}
	}

	res := tools.Failure(ErrMaxRetries)
	if lastErr != nil {
		res = tools.Failure(lastErr.Error())
	}
	e.record(call, res)
	e.observe(ctx, call, false, start)
	span.SetStatus(codes.Error, res.ErrorMessage())
	return res, nil
}

func (e *Executor) record(call *campaign.ToolCall, res tools.Result) {
	call.Result = map[string]any(res)
	if res.OK() {
		call.Error = nil
		return
	}
	te := &campaign.ToolExecutionError{Tool: call.Tool, CallID: call.ID, Message: res.ErrorMessage()}
	call.Error = te.CallError()
}

func (e *Executor) observe(ctx context.Context, call *campaign.ToolCall, success bool, start time.Time) {
	if e.metrics.Duration != nil {
		e.metrics.Duration(ctx, call, success, time.Since(start))
	}
}
