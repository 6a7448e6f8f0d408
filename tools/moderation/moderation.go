// Package moderation exposes content safety checks as a tool adapter.
package moderation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mohammad-safakhou/campaigner/internal/llmjson"
	"github.com/mohammad-safakhou/campaigner/provider"
	"github.com/mohammad-safakhou/campaigner/tools"
)

// Config controls moderation behaviour.
type Config struct {
	// FailClosed turns provider errors into failed moderation. The default
	// (false) reports them as passed with the error attached.
	FailClosed  bool
	Temperature float64
	Model       string
}

// Tool implements the moderation tool kind, dispatching on input.type.
type Tool struct {
	provider provider.Provider
	cfg      Config
	logger   *zap.Logger
}

func New(p provider.Provider, cfg Config, logger *zap.Logger) *Tool {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tool{provider: p, cfg: cfg, logger: logger.Named("moderation")}
}

// Execute routes image inputs to ModerateImage and everything else to
// ModerateText.
func (t *Tool) Execute(ctx context.Context, input map[string]any) (tools.Result, error) {
	if tools.String(input, "type") == "image" {
		return t.ModerateImage(ctx, input)
	}
	return t.ModerateText(ctx, input)
}

// ModerateImage performs no analysis; every image passes.
func (t *Tool) ModerateImage(context.Context, map[string]any) (tools.Result, error) {
	return tools.Success(map[string]any{"moderation_passed": true, "issues": []any{}}), nil
}

const promptTemplate = `Review the following marketing content for safety problems: hate or harassment, sexual content, violence, self-harm, dangerous or illegal activity, misleading health or financial claims.

Answer with JSON only, in this exact form:
{"safe": true, "issues": ["short description of each problem"]}

Content:
%s`

type verdict struct {
	Safe   *bool    `json:"safe"`
	Issues []string `json:"issues"`
}

// ModerateText asks the model for a verdict on input.text (or
// input.content). It never reports success:false.
func (t *Tool) ModerateText(ctx context.Context, input map[string]any) (tools.Result, error) {
	text := tools.String(input, "text")
	if text == "" {
		text = tools.String(input, "content")
	}
	if strings.TrimSpace(text) == "" {
		return passed(nil), nil
	}
	if t.provider == nil {
		return t.unavailable(errors.New("moderation provider not configured")), nil
	}

	resp, err := t.provider.Generate(ctx, provider.Request{
		Prompt:      fmt.Sprintf(promptTemplate, text),
		Model:       t.cfg.Model,
		Temperature: t.cfg.Temperature,
		MaxTokens:   512,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return t.unavailable(err), nil
	}

	var v verdict
	if err := llmjson.Decode(resp.Text, &v); err != nil || v.Safe == nil {
		t.logger.Debug("unparsable moderation verdict, treating as passed", zap.String("answer", resp.Text))
		return passed(nil), nil
	}
	issues := make([]any, 0, len(v.Issues))
	for _, is := range v.Issues {
		issues = append(issues, is)
	}
	return tools.Success(map[string]any{"moderation_passed": *v.Safe, "issues": issues}), nil
}

func passed(issues []any) tools.Result {
	if issues == nil {
		issues = []any{}
	}
	return tools.Success(map[string]any{"moderation_passed": true, "issues": issues})
}

func (t *Tool) unavailable(err error) tools.Result {
	t.logger.Warn("moderation unavailable", zap.Error(err), zap.Bool("fail_closed", t.cfg.FailClosed))
	if t.cfg.FailClosed {
		return tools.Success(map[string]any{
			"moderation_passed": false,
			"issues":            []any{"moderation unavailable: " + err.Error()},
			"error":             err.Error(),
		})
	}
	r := passed(nil)
	r["error"] = err.Error()
	return r
}
