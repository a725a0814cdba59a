// Package llm talks to the hosted text generation and embedding backends.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/terra-clan/puzzle-engine/internal/config"
)

var (
	ErrEmptyResponse = errors.New("empty response from backend")
	ErrNoJSON        = errors.New("no JSON object found in response")
	ErrNoEmbedder    = errors.New("provider does not support embeddings")
)

// Backend produces free-form text for a system instruction and a prompt
type Backend interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
	Name() string
}

// Embedder turns text into an embedding vector
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ExtractJSON returns the substring from the first "{" to the last "}",
// which strips markdown fences and chatter around the object.
func ExtractJSON(s string) (string, error) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || end <= start {
		return "", ErrNoJSON
	}
	return s[start : end+1], nil
}

// New creates the backend named by cfg.Provider. The embedder is always
// Gemini-based and is nil when no Gemini key is configured.
func New(ctx context.Context, cfg config.LLMConfig) (Backend, Embedder, error) {
	var embedder Embedder
	if cfg.GeminiAPIKey != "" {
		g, err := NewGenAI(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		embedder = g
	}

	switch strings.ToLower(cfg.Provider) {
	case "gemini":
		g, ok := embedder.(*GenAI)
		if !ok {
			return nil, nil, fmt.Errorf("gemini provider requires GEMINI_API_KEY")
		}
		return g, embedder, nil
	case "anthropic":
		a, err := NewAnthropic(cfg)
		if err != nil {
			return nil, nil, err
		}
		return a, embedder, nil
	}
	return nil, nil, fmt.Errorf("unknown llm provider: %q", cfg.Provider)
}
