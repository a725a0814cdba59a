// Package generator asks the generation backend for puzzle content, validates
// the response for the requested puzzle type and retries on failure.
package generator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/terra-clan/puzzle-engine/internal/grid"
	"github.com/terra-clan/puzzle-engine/internal/llm"
	"github.com/terra-clan/puzzle-engine/internal/models"
	"github.com/terra-clan/puzzle-engine/internal/prompt"
	"github.com/terra-clan/puzzle-engine/internal/wordbank"
)

var (
	ErrUnsupportedType = errors.New("unsupported puzzle type")
	ErrNoWords         = errors.New("word bank returned no words")
	ErrInvalidPayload  = errors.New("invalid puzzle payload")
)

// GenerationError is returned once every attempt failed
type GenerationError struct {
	Attempts int
	Err      error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// WordPicker selects domain terms not used recently
type WordPicker interface {
	PickWords(ctx context.Context, count int) ([]models.Term, error)
}

// Retriever finds knowledge-base snippets relevant to a topic
type Retriever interface {
	Retrieve(ctx context.Context, topic string) ([]models.Source, error)
}

// Config tunes generation
type Config struct {
	Attempts            int
	Backoff             time.Duration
	GridSize            int
	WordsPerPuzzle      int
	AnagramCandidates   int
	QuizDuplicateBudget int
	RecentQuestions     int
}

// DefaultConfig returns the production defaults
func DefaultConfig() Config {
	return Config{
		Attempts:            3,
		Backoff:             time.Second,
		GridSize:            grid.DefaultSize,
		WordsPerPuzzle:      wordbank.WordsPerPuzzle,
		AnagramCandidates:   5,
		QuizDuplicateBudget: 3,
		RecentQuestions:     50,
	}
}

// Request identifies the puzzle to generate
type Request struct {
	Type       models.PuzzleType
	Topic      string
	Difficulty models.Difficulty
}

// Payload is validated puzzle content ready to be persisted
type Payload struct {
	Title     string
	Content   string
	Solution  string
	Hints     []string
	Points    int
	TimeLimit int
	Details   models.Details
	Sources   []models.Source
}

// Puzzle converts the payload into an unsaved puzzle
func (p *Payload) Puzzle(gameID int64, req Request) *models.Puzzle {
	timeLimit := p.TimeLimit
	return &models.Puzzle{
		GameID:     gameID,
		Type:       req.Type,
		Title:      p.Title,
		Content:    p.Content,
		Solution:   p.Solution,
		Difficulty: req.Difficulty,
		Hints:      p.Hints,
		TimeLimit:  &timeLimit,
		Points:     p.Points,
		Topic:      req.Topic,
		Details:    p.Details,
		Sources:    p.Sources,
		IsActive:   true,
	}
}

// Generator produces validated puzzle payloads
type Generator struct {
	backend   llm.Backend
	words     WordPicker
	retriever Retriever
	cfg       Config

	rngMu sync.Mutex
	rng   *rand.Rand

	// questions holds normalized recent quiz questions
	questions *wordbank.LocalRecency
}

// Option configures a Generator
type Option func(*Generator)

// WithRetriever enables context retrieval before prompting
func WithRetriever(r Retriever) Option {
	return func(g *Generator) {
		g.retriever = r
	}
}

// WithRand sets the random source used for grids
func WithRand(rng *rand.Rand) Option {
	return func(g *Generator) {
		g.rng = rng
	}
}

// New creates a Generator
func New(backend llm.Backend, words WordPicker, cfg Config, opts ...Option) *Generator {
	def := DefaultConfig()
	if cfg.Attempts <= 0 {
		cfg.Attempts = def.Attempts
	}
	if cfg.GridSize <= 0 {
		cfg.GridSize = def.GridSize
	}
	if cfg.WordsPerPuzzle <= 0 {
		cfg.WordsPerPuzzle = def.WordsPerPuzzle
	}
	if cfg.AnagramCandidates <= 0 {
		cfg.AnagramCandidates = def.AnagramCandidates
	}
	if cfg.QuizDuplicateBudget <= 0 {
		cfg.QuizDuplicateBudget = def.QuizDuplicateBudget
	}
	if cfg.RecentQuestions <= 0 {
		cfg.RecentQuestions = def.RecentQuestions
	}

	g := &Generator{
		backend:   backend,
		words:     words,
		cfg:       cfg,
		rng:       rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), rand.Uint64())),
		questions: wordbank.NewLocalRecency(cfg.RecentQuestions),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate produces a validated payload for req. After the attempt budget is
// exhausted it returns a *GenerationError wrapping the last failure.
func (g *Generator) Generate(ctx context.Context, req Request) (*Payload, error) {
	if !req.Type.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, req.Type)
	}

	sources := g.retrieve(ctx, req.Topic)

	var (
		payload *Payload
		err     error
	)
	switch req.Type {
	case models.TypeWordSearch:
		payload, err = g.wordSearch(ctx, req, sources)
	case models.TypeAnagram:
		payload, err = g.anagram(ctx, req, sources)
	case models.TypeQuiz:
		payload, err = g.quiz(ctx, req, sources)
	}
	if err != nil {
		return nil, err
	}

	payload.Sources = sources
	if payload.Points <= 0 {
		payload.Points = req.Difficulty.DefaultPoints()
	}
	if payload.TimeLimit <= 0 {
		payload.TimeLimit = req.Type.DefaultTimeLimit()
	}
	return payload, nil
}

func (g *Generator) retrieve(ctx context.Context, topic string) []models.Source {
	if g.retriever == nil {
		return nil
	}
	sources, err := g.retriever.Retrieve(ctx, topic)
	if err != nil {
		slog.Warn("context retrieval failed, generating without context", "topic", topic, "error", err)
		return nil
	}
	return sources
}

// attempt runs call until it succeeds or the attempt budget runs out,
// sleeping the configured backoff between attempts
func (g *Generator) attempt(ctx context.Context, req Request, call func(ctx context.Context) (*Payload, error)) (*Payload, error) {
	var (
		lastErr error
		n       int
	)
	for n = 1; n <= g.cfg.Attempts; n++ {
		payload, err := call(ctx)
		if err == nil {
			return payload, nil
		}
		lastErr = err

		slog.Warn("generation attempt failed",
			"type", req.Type,
			"attempt", n,
			"max_attempts", g.cfg.Attempts,
			"error", err,
		)

		if n == g.cfg.Attempts {
			break
		}
		if err := sleep(ctx, g.cfg.Backoff); err != nil {
			lastErr = err
			break
		}
	}
	return nil, &GenerationError{Attempts: n, Err: lastErr}
}

// complete calls the backend and decodes the JSON object in its response
func (g *Generator) complete(ctx context.Context, req prompt.Request, out any) error {
	_, text := prompt.Build(req)

	raw, err := g.backend.Complete(ctx, prompt.SystemInstruction(req.Type), text)
	if err != nil {
		return err
	}

	body, err := llm.ExtractJSON(raw)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(body), out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}

func (g *Generator) buildGrid(words []string) grid.Result {
	g.rngMu.Lock()
	defer g.rngMu.Unlock()
	return grid.Build(words, g.cfg.GridSize, g.rng)
}

func sleep(ctx context.Context, d time.Duration) error {
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

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidPayload, fmt.Sprintf(format, args...))
}
