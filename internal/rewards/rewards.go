// Package rewards records points in an append-only ledger. Negative points
// rows act as resets so the running sum can return to zero.
package rewards

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/terra-clan/puzzle-engine/internal/models"
	"github.com/terra-clan/puzzle-engine/internal/storage"
)

var (
	ErrInvalidReward   = errors.New("invalid reward")
	ErrAlreadyCredited = errors.New("puzzle already credited to user")
)

// Ledger is the reward storage
type Ledger interface {
	CreateReward(ctx context.Context, r *models.Reward) error
	UserPoints(ctx context.Context, userID string) (int64, error)
	ListRewards(ctx context.Context, userID string, limit int) ([]*models.Reward, error)
}

// Service applies ledger rules on top of storage
type Service struct {
	ledger Ledger
}

// NewService creates a rewards service
func NewService(ledger Ledger) *Service {
	return &Service{ledger: ledger}
}

// Award appends a ledger row. Token type defaults to points. Negative
// amounts are accepted for points only, where they act as resets.
func (s *Service) Award(ctx context.Context, req models.CreateRewardRequest) (*models.Reward, error) {
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return nil, fmt.Errorf("%w: userId is required", ErrInvalidReward)
	}

	tokenType := req.TokenType
	if tokenType == "" {
		tokenType = models.TokenTypePoints
	}

	switch {
	case req.TokenAmount == 0:
		return nil, fmt.Errorf("%w: tokenAmount must not be zero", ErrInvalidReward)
	case req.TokenAmount < 0 && tokenType != models.TokenTypePoints:
		return nil, fmt.Errorf("%w: negative amounts are only allowed for %s", ErrInvalidReward, models.TokenTypePoints)
	}

	reward := &models.Reward{
		UserID:      userID,
		PuzzleID:    req.PuzzleID,
		TokenType:   tokenType,
		TokenAmount: req.TokenAmount,
		Reason:      req.Reason,
	}
	if err := s.create(ctx, reward); err != nil {
		return nil, err
	}

	slog.Info("reward recorded",
		"user_id", userID,
		"token_type", tokenType,
		"amount", req.TokenAmount,
	)
	return reward, nil
}

// AwardSolve credits points for solving a puzzle, at most once per user and
// puzzle. A repeat returns ErrAlreadyCredited.
func (s *Service) AwardSolve(ctx context.Context, userID string, puzzleID, points int64) (*models.Reward, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: userId is required", ErrInvalidReward)
	}
	if points <= 0 {
		return nil, fmt.Errorf("%w: puzzle carries no points", ErrInvalidReward)
	}

	reward := &models.Reward{
		UserID:      userID,
		PuzzleID:    &puzzleID,
		TokenType:   models.TokenTypePoints,
		TokenAmount: points,
		Reason:      models.ReasonPuzzleSolved,
	}
	if err := s.create(ctx, reward); err != nil {
		return nil, err
	}

	slog.Info("puzzle solve credited", "user_id", userID, "puzzle_id", puzzleID, "amount", points)
	return reward, nil
}

func (s *Service) create(ctx context.Context, reward *models.Reward) error {
	err := s.ledger.CreateReward(ctx, reward)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrDuplicate):
		return fmt.Errorf("%w: puzzle %d", ErrAlreadyCredited, derefID(reward.PuzzleID))
	case errors.Is(err, storage.ErrInvalidReference):
		return fmt.Errorf("%w: puzzle %d does not exist", ErrInvalidReward, derefID(reward.PuzzleID))
	}
	return err
}

func derefID(id *int64) int64 {
	if id == nil {
		return 0
	}
	return *id
}

// Points returns the user's balance and its SOL conversion
func (s *Service) Points(ctx context.Context, userID string) (models.PointsSummary, error) {
	total, err := s.ledger.UserPoints(ctx, userID)
	if err != nil {
		return models.PointsSummary{}, err
	}
	return models.NewPointsSummary(userID, total), nil
}

// History lists the user's ledger rows
func (s *Service) History(ctx context.Context, userID string, limit int) ([]*models.Reward, error) {
	return s.ledger.ListRewards(ctx, userID, limit)
}

// Reset appends a row negating the current balance. A zero balance appends
// nothing.
func (s *Service) Reset(ctx context.Context, userID string) (models.PointsSummary, error) {
	total, err := s.ledger.UserPoints(ctx, userID)
	if err != nil {
		return models.PointsSummary{}, err
	}
	if total == 0 {
		return models.NewPointsSummary(userID, 0), nil
	}

	reset := &models.Reward{
		UserID:      userID,
		TokenType:   models.TokenTypePoints,
		TokenAmount: -total,
		Reason:      "points reset",
	}
	if err := s.ledger.CreateReward(ctx, reset); err != nil {
		return models.PointsSummary{}, err
	}

	slog.Info("points reset", "user_id", userID, "previous", total)
	return models.NewPointsSummary(userID, 0), nil
}
