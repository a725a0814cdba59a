package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/terra-clan/puzzle-engine/internal/config"
)

const defaultGeminiModel = "gemini-2.0-flash"

// GenAI is a Backend and Embedder on the Gemini API
type GenAI struct {
	client         *genai.Client
	model          string
	embeddingModel string
	embeddingDims  int32
	temperature    float32
	maxTokens      int32
}

// NewGenAI creates a Gemini client from cfg
func NewGenAI(ctx context.Context, cfg config.LLMConfig) (*GenAI, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	model := cfg.Model
	if model == "" || cfg.Provider != "gemini" {
		model = defaultGeminiModel
	}
	embeddingModel := cfg.EmbeddingModel
	if embeddingModel == "" {
		embeddingModel = "gemini-embedding-001"
	}

	return &GenAI{
		client:         client,
		model:          model,
		embeddingModel: embeddingModel,
		embeddingDims:  cfg.EmbeddingDims,
		temperature:    float32(cfg.Temperature),
		maxTokens:      int32(cfg.MaxTokens),
	}, nil
}

func (g *GenAI) Name() string { return "gemini:" + g.model }

// Complete sends prompt with the system instruction and returns the text
func (g *GenAI) Complete(ctx context.Context, system, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		Temperature:       genai.Ptr(g.temperature),
		MaxOutputTokens:   g.maxTokens,
		ResponseMIMEType:  "application/json",
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// Embed returns the query embedding of text
func (g *GenAI) Embed(ctx context.Context, text string) ([]float32, error) {
	return g.embed(ctx, text, "RETRIEVAL_QUERY")
}

// DocumentEmbedder returns an Embedder for knowledge-base documents
func (g *GenAI) DocumentEmbedder() Embedder {
	return documentEmbedder{g}
}

type documentEmbedder struct{ g *GenAI }

func (d documentEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return d.g.embed(ctx, text, "RETRIEVAL_DOCUMENT")
}

func (g *GenAI) embed(ctx context.Context, text, task string) ([]float32, error) {
	cfg := &genai.EmbedContentConfig{TaskType: task}
	if g.embeddingDims > 0 {
		cfg.OutputDimensionality = genai.Ptr(g.embeddingDims)
	}

	result, err := g.client.Models.EmbedContent(ctx, g.embeddingModel,
		[]*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to embed content: %w", err)
	}
	if len(result.Embeddings) == 0 || len(result.Embeddings[0].Values) == 0 {
		return nil, ErrEmptyResponse
	}
	return result.Embeddings[0].Values, nil
}
