// Package gemini implements provider.Provider on the Google Gen AI SDK.
package gemini

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/mohammad-safakhou/campaigner/provider"
)

// Client generates text and embeddings with Gemini models.
type Client struct {
	client         *genai.Client
	model          string
	embeddingModel string
}

// New creates a Gemini client from explicit configuration.
func New(ctx context.Context, cfg provider.Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	cc := &genai.ClientConfig{APIKey: cfg.APIKey, Backend: genai.BackendGeminiAPI}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	model := cfg.Model
	if model == "" {
		model = "gemini-2.0-flash-exp"
	}
	embedding := cfg.EmbeddingModel
	if embedding == "" {
		embedding = "text-embedding-004"
	}
	return &Client{client: client, model: model, embeddingModel: embedding}, nil
}

// Generate runs a single-turn generation.
func (c *Client) Generate(ctx context.Context, req provider.Request) (provider.Response, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return provider.Response{}, provider.ErrEmptyPrompt
	}
	model := req.Model
	if model == "" {
		model = c.model
	}
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(req.Temperature)),
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}

	resp, err := c.client.Models.GenerateContent(ctx, model, genai.Text(req.Prompt), cfg)
	if err != nil {
		return provider.Response{}, fmt.Errorf("gemini generate: %w", err)
	}
	out := provider.Response{Text: resp.Text(), Model: model}
	if resp.ModelVersion != "" {
		out.Model = resp.ModelVersion
	}
	if u := resp.UsageMetadata; u != nil {
		out.PromptTokens = int64(u.PromptTokenCount)
		out.CompletionTokens = int64(u.CandidatesTokenCount)
	}
	return out, nil
}

// Embed returns one vector per input text.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}
	result, err := c.client.Models.EmbedContent(ctx, c.embeddingModel, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("gemini embed: %w", err)
	}
	vecs := make([][]float32, len(result.Embeddings))
	for i, emb := range result.Embeddings {
		vecs[i] = emb.Values
	}
	return vecs, nil
}
