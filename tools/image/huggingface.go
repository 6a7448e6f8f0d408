// Package image exposes text-to-image generation as a tool adapter backed
// by the Hugging Face Inference API.
package image

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mohammad-safakhou/campaigner/tools"
)

// Config configures the inference endpoint.
type Config struct {
	APIToken       string
	Endpoint       string
	Model          string
	InferenceSteps int
	// LoadingWait is how long to wait before the single retry when the
	// model is still loading (HTTP 503).
	LoadingWait time.Duration
	Timeout     time.Duration
}

// HuggingFace implements generate_image.
type HuggingFace struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// Option customises the adapter.
type Option func(*HuggingFace)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(h *HuggingFace) { h.client = c }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(h *HuggingFace) { h.logger = l.Named("image") }
}

// WithSleeper overrides the wait used while the model loads.
func WithSleeper(f func(ctx context.Context, d time.Duration) error) Option {
	return func(h *HuggingFace) { h.sleep = f }
}

func New(cfg Config, opts ...Option) *HuggingFace {
	if cfg.InferenceSteps <= 0 {
		cfg.InferenceSteps = 30
	}
	if cfg.Model == "" {
		cfg.Model = "stable-diffusion-xl-base-1.0"
	}
	h := &HuggingFace{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: zap.NewNop(),
		sleep:  sleepCtx,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type inferenceRequest struct {
	Inputs     string              `json:"inputs"`
	Parameters inferenceParameters `json:"parameters"`
}

type inferenceParameters struct {
	NumInferenceSteps int    `json:"num_inference_steps"`
	Seed              *int64 `json:"seed,omitempty"`
}

// Execute reads prompt and an optional seed. size and n are accepted but the
// endpoint always renders one image at the model's native size.
func (h *HuggingFace) Execute(ctx context.Context, input map[string]any) (tools.Result, error) {
	if h.cfg.APIToken == "" || h.cfg.Endpoint == "" {
		return tools.Failure("image client not configured"), nil
	}
	prompt := tools.String(input, "prompt")
	if strings.TrimSpace(prompt) == "" {
		return tools.Failure("No prompt provided"), nil
	}
	body := inferenceRequest{Inputs: prompt, Parameters: inferenceParameters{NumInferenceSteps: h.cfg.InferenceSteps}}
	if seed, ok := tools.Int64(input, "seed"); ok {
		body.Parameters.Seed = &seed
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal inference request: %w", err)
	}

	status, data, err := h.post(ctx, payload)
	if err == nil && status == http.StatusServiceUnavailable {
		h.logger.Info("model loading, retrying once", zap.Duration("wait", h.cfg.LoadingWait))
		if err := h.sleep(ctx, h.cfg.LoadingWait); err != nil {
			return nil, err
		}
		status, data, err = h.post(ctx, payload)
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return tools.Failure(err.Error()), nil
	}
	if status != http.StatusOK {
		return tools.Failure(fmt.Sprintf("API error: %d - %s", status, truncate(string(data), 200))), nil
	}
	return tools.Success(map[string]any{
		"image_data": base64.StdEncoding.EncodeToString(data),
		"format":     "png",
		"provider":   "huggingface",
		"model":      h.cfg.Model,
	}), nil
}

func (h *HuggingFace) post(ctx context.Context, payload []byte) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.cfg.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+h.cfg.APIToken)
	req.Header.Set("Content-Type", "application/json")
	resp, err := h.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, data, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
