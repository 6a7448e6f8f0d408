// Package tools defines the uniform adapter contract every external
// capability (text, image, search, moderation, embedding, storage) exposes.
package tools

import (
	"context"
	"math"

	"github.com/mohammad-safakhou/campaigner/internal/campaign"
)

// Result is the free-form payload an adapter returns. It always carries a
// boolean "success" key; failures carry an "error" message.
type Result map[string]any

// Success builds a successful result from fields.
func Success(fields map[string]any) Result {
	r := make(Result, len(fields)+1)
	for k, v := range fields {
		r[k] = v
	}
	r["success"] = true
	return r
}

// Failure builds a failed result.
func Failure(msg string) Result {
	return Result{"success": false, "error": msg}
}

// OK reports whether the result is a success.
func (r Result) OK() bool {
	ok, _ := r["success"].(bool)
	return ok
}

// ErrorMessage returns the failure message, if any.
func (r Result) ErrorMessage() string {
	s, _ := r["error"].(string)
	return s
}

// String returns a string field.
func (r Result) String(key string) string {
	s, _ := r[key].(string)
	return s
}

// Tool is one adapter. A returned error means the adapter raised; ordinary
// provider failures are reported as Failure results instead.
type Tool interface {
	Execute(ctx context.Context, input map[string]any) (Result, error)
}

// Func adapts a function to Tool.
type Func func(ctx context.Context, input map[string]any) (Result, error)

func (f Func) Execute(ctx context.Context, input map[string]any) (Result, error) {
	return f(ctx, input)
}

// Registry maps tool kinds to adapters.
type Registry map[campaign.ToolKind]Tool

// Lookup returns the adapter for kind.
func (r Registry) Lookup(kind campaign.ToolKind) (Tool, bool) {
	t, ok := r[kind]
	return t, ok && t != nil
}

// String reads a string parameter.
func String(input map[string]any, key string) string {
	s, _ := input[key].(string)
	return s
}

// Int reads an integral parameter, accepting JSON numbers.
func Int(input map[string]any, key string, def int) int {
	switch v := input[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		if v == math.Trunc(v) {
			return int(v)
		}
	}
	return def
}

// Int64 reads an optional integral parameter.
func Int64(input map[string]any, key string) (int64, bool) {
	switch v := input[key].(type) {
	case int:
		return int64(v), true
	case int64:
		return v, true
	case float64:
		if v == math.Trunc(v) {
			return int64(v), true
		}
	}
	return 0, false
}

// Float reads a numeric parameter.
func Float(input map[string]any, key string, def float64) float64 {
	switch v := input[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return def
}
