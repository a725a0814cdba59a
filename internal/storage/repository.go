package storage

import (
	"context"
	"errors"

	"github.com/terra-clan/puzzle-engine/internal/models"
)

var (
	// ErrNotFound is returned when a row does not exist or was soft-deleted
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a write violates a unique constraint
	ErrDuplicate = errors.New("duplicate row")
	// ErrInvalidReference is returned when a write points at a missing row
	ErrInvalidReference = errors.New("referenced row does not exist")
)

// Repository defines the interface for puzzle, reward and knowledge persistence
type Repository interface {
	// Puzzles
	SavePuzzle(ctx context.Context, p *models.Puzzle) error
	GetPuzzle(ctx context.Context, id int64) (*models.Puzzle, error)
	ListPuzzles(ctx context.Context, filter models.PuzzleFilter) ([]*models.Puzzle, error)
	SetPuzzleActive(ctx context.Context, id int64, active bool) error
	SoftDeletePuzzle(ctx context.Context, id int64) error

	// Rewards
	CreateReward(ctx context.Context, r *models.Reward) error
	UserPoints(ctx context.Context, userID string) (int64, error)
	ListRewards(ctx context.Context, userID string, limit int) ([]*models.Reward, error)

	// Knowledge base
	InsertResource(ctx context.Context, content string, metadata map[string]any, chunks []models.Chunk) (int64, error)
	SearchSimilar(ctx context.Context, embedding []float32, minSimilarity float64, limit int) ([]models.Source, error)

	// Health
	Ping(ctx context.Context) error
	Close() error
}
