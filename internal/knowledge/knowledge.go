// Package knowledge retrieves context snippets for prompts and seeds the
// knowledge base from crawled pages.
package knowledge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/terra-clan/puzzle-engine/internal/crawler"
	"github.com/terra-clan/puzzle-engine/internal/llm"
	"github.com/terra-clan/puzzle-engine/internal/models"
)

const (
	DefaultMinSimilarity = 0.7
	DefaultLimit         = 3
	DefaultChunkSize     = 1000
)

var ErrNoEmbedder = errors.New("no embedder configured")

// Searcher finds stored chunks similar to an embedding
type Searcher interface {
	SearchSimilar(ctx context.Context, embedding []float32, minSimilarity float64, limit int) ([]models.Source, error)
}

// Writer stores resources and their embedded chunks
type Writer interface {
	InsertResource(ctx context.Context, content string, metadata map[string]any, chunks []models.Chunk) (int64, error)
}

// Retriever embeds a topic and looks up the closest snippets
type Retriever struct {
	embedder      llm.Embedder
	store         Searcher
	minSimilarity float64
	limit         int
}

// NewRetriever creates a Retriever. Non-positive thresholds use the defaults.
func NewRetriever(embedder llm.Embedder, store Searcher, minSimilarity float64, limit int) *Retriever {
	if minSimilarity <= 0 {
		minSimilarity = DefaultMinSimilarity
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Retriever{embedder: embedder, store: store, minSimilarity: minSimilarity, limit: limit}
}

// Retrieve returns up to limit snippets whose similarity to topic exceeds
// the threshold
func (r *Retriever) Retrieve(ctx context.Context, topic string) ([]models.Source, error) {
	if r.embedder == nil {
		return nil, ErrNoEmbedder
	}

	embedding, err := r.embedder.Embed(ctx, topic)
	if err != nil {
		return nil, fmt.Errorf("failed to embed topic: %w", err)
	}

	sources, err := r.store.SearchSimilar(ctx, embedding, r.minSimilarity, r.limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search knowledge base: %w", err)
	}

	slog.Debug("retrieved context", "topic", topic, "snippets", len(sources))
	return sources, nil
}

// Crawler fetches pages starting from a URL
type Crawler interface {
	Crawl(ctx context.Context, startURL string) ([]crawler.Page, error)
}

// SeedStats summarizes a seeding run
type SeedStats struct {
	Pages  int
	Chunks int
}

// Seeder crawls sources and stores their embedded chunks
type Seeder struct {
	crawler     Crawler
	embedder    llm.Embedder
	store       Writer
	chunkSize   int
	concurrency int
}

// NewSeeder creates a Seeder
func NewSeeder(c Crawler, embedder llm.Embedder, store Writer, chunkSize, concurrency int) *Seeder {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Seeder{crawler: c, embedder: embedder, store: store, chunkSize: chunkSize, concurrency: concurrency}
}

// Seed crawls every URL and stores each page as a resource with embedded
// chunks. A failing URL is logged and skipped; embedding or storage
// failures abort the run.
func (s *Seeder) Seed(ctx context.Context, urls []string) (SeedStats, error) {
	var stats SeedStats
	if s.embedder == nil {
		return stats, ErrNoEmbedder
	}

	for _, u := range urls {
		pages, err := s.crawler.Crawl(ctx, u)
		if err != nil {
			if ctx.Err() != nil {
				return stats, ctx.Err()
			}
			slog.Warn("failed to crawl seed url", "url", u, "error", err)
			continue
		}

		for _, page := range pages {
			n, err := s.seedPage(ctx, page)
			if err != nil {
				return stats, fmt.Errorf("failed to seed %s: %w", page.URL, err)
			}
			if n > 0 {
				stats.Pages++
				stats.Chunks += n
			}
		}
	}

	slog.Info("knowledge base seeded", "pages", stats.Pages, "chunks", stats.Chunks)
	return stats, nil
}

func (s *Seeder) seedPage(ctx context.Context, page crawler.Page) (int, error) {
	texts := Chunk(page.Content, s.chunkSize)
	if len(texts) == 0 {
		return 0, nil
	}

	chunks := make([]models.Chunk, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, text := range texts {
		g.Go(func() error {
			embedding, err := s.embedder.Embed(gctx, text)
			if err != nil {
				return fmt.Errorf("failed to embed chunk %d: %w", i, err)
			}
			chunks[i] = models.Chunk{Content: text, Embedding: embedding}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	metadata := map[string]any{"url": page.URL}
	if page.Title != "" {
		metadata["title"] = page.Title
	}
	if _, err := s.store.InsertResource(ctx, page.Content, metadata, chunks); err != nil {
		return 0, err
	}
	return len(chunks), nil
}

// Chunk splits text into sentence-aligned pieces of at most size bytes.
// A single sentence longer than size becomes its own chunk.
func Chunk(text string, size int) []string {
	var (
		chunks  []string
		current strings.Builder
	)
	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			chunks = append(chunks, s)
		}
		current.Reset()
	}

	for _, sentence := range splitSentences(text) {
		if current.Len() > 0 && current.Len()+1+len(sentence) > size {
			flush()
		}
		if current.Len() > 0 {
			current.WriteByte(' ')
		}
		current.WriteString(sentence)
	}
	flush()
	return chunks
}

func splitSentences(text string) []string {
	var out []string
	start := 0
	for i := 0; i < len(text); i++ {
		c := text[i]
		end := c == '\n' || ((c == '.' || c == '!' || c == '?') && (i+1 == len(text) || text[i+1] == ' ' || text[i+1] == '\n'))
		if !end {
			continue
		}
		if s := strings.TrimSpace(text[start : i+1]); s != "" && s != "." {
			out = append(out, s)
		}
		start = i + 1
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		out = append(out, s)
	}
	return out
}
