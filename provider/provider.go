package provider

import (
	"context"
	"errors"
	"time"
)

// Client represents different LLM providers
type Client string

const (
	OpenAI Client = "openai"
	Gemini Client = "gemini"
)

// ErrEmptyPrompt is returned when a generation request carries no prompt.
var ErrEmptyPrompt = errors.New("prompt is empty")

// Request is a single-turn text generation request.
type Request struct {
	System      string
	Prompt      string
	Model       string // empty selects the provider default
	Temperature float64
	MaxTokens   int
}

// Response is the text and accounting of a generation.
type Response struct {
	Text             string
	Model            string
	PromptTokens     int64
	CompletionTokens int64
}

// Provider is the interface that all LLM implementations must satisfy
type Provider interface {
	Generate(ctx context.Context, req Request) (Response, error)
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Config is what every provider constructor accepts.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	EmbeddingModel string
	Timeout        time.Duration
}
