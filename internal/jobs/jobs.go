// Package jobs tracks asynchronous puzzle generations by opaque id and holds
// the per-type queue of pre-generated puzzles.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/terra-clan/puzzle-engine/internal/models"
)

var (
	ErrJobExists   = errors.New("job already exists")
	ErrJobNotFound = errors.New("job not found")
	ErrJobTerminal = errors.New("job already finished")
)

// DefaultTTL is how long job records are kept
const DefaultTTL = time.Hour

// Store persists job status. Each job gets exactly one pending write and at
// most one terminal write.
type Store interface {
	Create(ctx context.Context, id string) error
	Complete(ctx context.Context, id string, puzzle *models.Puzzle) error
	Fail(ctx context.Context, id string, msg string) error
	Get(ctx context.Context, id string) (*models.Job, error)
}

// Cache is a FIFO of ready puzzles per type
type Cache interface {
	TryPop(ctx context.Context, t models.PuzzleType) (*models.Puzzle, error)
	Push(ctx context.Context, p *models.Puzzle) error
	Size(ctx context.Context, t models.PuzzleType) (int, error)
}

// StoreCache is implemented by both backends
type StoreCache interface {
	Store
	Cache
}

func jobKey(id string) string {
	return fmt.Sprintf("puzzle:%s", id)
}

func cacheKey(t models.PuzzleType) string {
	return fmt.Sprintf("puzzle_cache:%s", t)
}
