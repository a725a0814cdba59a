package rewards

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terra-clan/puzzle-engine/internal/models"
	"github.com/terra-clan/puzzle-engine/internal/storage"
)

// memLedger mirrors the database constraints on the rewards table
type memLedger struct {
	rows []*models.Reward
	// puzzles, when set, lists the puzzle ids that exist
	puzzles map[int64]bool
}

func (l *memLedger) CreateReward(_ context.Context, r *models.Reward) error {
	if r.PuzzleID != nil && l.puzzles != nil && !l.puzzles[*r.PuzzleID] {
		return fmt.Errorf("failed to create reward: %w", storage.ErrInvalidReference)
	}
	if r.PuzzleID != nil && r.Reason == models.ReasonPuzzleSolved {
		for _, row := range l.rows {
			if row.UserID == r.UserID && row.PuzzleID != nil && *row.PuzzleID == *r.PuzzleID && row.Reason == models.ReasonPuzzleSolved {
				return fmt.Errorf("failed to create reward: %w", storage.ErrDuplicate)
			}
		}
	}
	r.ID = int64(len(l.rows) + 1)
	l.rows = append(l.rows, r)
	return nil
}

func (l *memLedger) UserPoints(_ context.Context, userID string) (int64, error) {
	var total int64
	for _, r := range l.rows {
		if r.UserID == userID && r.TokenType == models.TokenTypePoints {
			total += r.TokenAmount
		}
	}
	return total, nil
}

func (l *memLedger) ListRewards(_ context.Context, userID string, _ int) ([]*models.Reward, error) {
	var out []*models.Reward
	for _, r := range l.rows {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func TestAwardThenResetReturnsToZero(t *testing.T) {
	ledger := &memLedger{}
	s := NewService(ledger)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := s.Award(ctx, models.CreateRewardRequest{UserID: "alice", TokenAmount: 100, Reason: "solved"})
		require.NoError(t, err)
	}

	summary, err := s.Points(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(500), summary.Points)
	assert.False(t, summary.SOLEligible)

	summary, err = s.Reset(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(0), summary.Points)

	summary, err = s.Points(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(0), summary.Points)

	rows, err := s.History(ctx, "alice", 0)
	require.NoError(t, err)
	require.Len(t, rows, 6)
	assert.Equal(t, int64(-500), rows[5].TokenAmount)
}

func TestResetWithZeroBalanceAppendsNothing(t *testing.T) {
	ledger := &memLedger{}
	s := NewService(ledger)

	_, err := s.Reset(context.Background(), "bob")
	require.NoError(t, err)
	assert.Empty(t, ledger.rows)
}

func TestAwardValidation(t *testing.T) {
	s := NewService(&memLedger{})
	ctx := context.Background()

	_, err := s.Award(ctx, models.CreateRewardRequest{TokenAmount: 10})
	assert.ErrorIs(t, err, ErrInvalidReward)

	_, err = s.Award(ctx, models.CreateRewardRequest{UserID: "alice"})
	assert.ErrorIs(t, err, ErrInvalidReward)

	_, err = s.Award(ctx, models.CreateRewardRequest{UserID: "alice", TokenType: "sol", TokenAmount: -10})
	assert.ErrorIs(t, err, ErrInvalidReward)

	r, err := s.Award(ctx, models.CreateRewardRequest{UserID: "alice", TokenAmount: 10})
	require.NoError(t, err)
	assert.Equal(t, models.TokenTypePoints, r.TokenType)
}

func TestNegativePostingResetsBalance(t *testing.T) {
	s := NewService(&memLedger{})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := s.Award(ctx, models.CreateRewardRequest{UserID: "carol", TokenType: models.TokenTypePoints, TokenAmount: 100})
		require.NoError(t, err)
	}
	summary, err := s.Points(ctx, "carol")
	require.NoError(t, err)
	require.Equal(t, int64(500), summary.Points)

	_, err = s.Award(ctx, models.CreateRewardRequest{UserID: "carol", TokenType: models.TokenTypePoints, TokenAmount: -500, Reason: "reset"})
	require.NoError(t, err)

	summary, err = s.Points(ctx, "carol")
	require.NoError(t, err)
	assert.Zero(t, summary.Points)
}

func TestAwardSolveCreditsOnce(t *testing.T) {
	ledger := &memLedger{}
	s := NewService(ledger)
	ctx := context.Background()

	r, err := s.AwardSolve(ctx, "dave", 9, 75)
	require.NoError(t, err)
	assert.Equal(t, models.ReasonPuzzleSolved, r.Reason)
	require.NotNil(t, r.PuzzleID)
	assert.Equal(t, int64(9), *r.PuzzleID)

	_, err = s.AwardSolve(ctx, "dave", 9, 75)
	assert.ErrorIs(t, err, ErrAlreadyCredited)

	// another puzzle and another user are credited independently
	_, err = s.AwardSolve(ctx, "dave", 10, 75)
	require.NoError(t, err)
	_, err = s.AwardSolve(ctx, "erin", 9, 75)
	require.NoError(t, err)

	summary, err := s.Points(ctx, "dave")
	require.NoError(t, err)
	assert.Equal(t, int64(150), summary.Points)
	assert.Len(t, ledger.rows, 3)
}

func TestAwardUnknownPuzzle(t *testing.T) {
	s := NewService(&memLedger{puzzles: map[int64]bool{1: true}})
	missing := int64(404)

	_, err := s.Award(context.Background(), models.CreateRewardRequest{UserID: "frank", PuzzleID: &missing, TokenAmount: 10})
	assert.ErrorIs(t, err, ErrInvalidReward)
	assert.Contains(t, err.Error(), "puzzle 404 does not exist")
}

func TestPointsSOLConversion(t *testing.T) {
	ledger := &memLedger{}
	s := NewService(ledger)
	ctx := context.Background()

	_, err := s.Award(ctx, models.CreateRewardRequest{UserID: "carol", TokenAmount: 5400})
	require.NoError(t, err)

	summary, err := s.Points(ctx, "carol")
	require.NoError(t, err)
	assert.True(t, summary.SOLEligible)
	assert.InDelta(t, 0.05, summary.SOLAmount, 1e-9)
}
