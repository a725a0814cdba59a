package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/terra-clan/puzzle-engine/internal/models"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// CreateReward appends a ledger row. Rows are never updated. A second
// puzzle-solved credit for the same user and puzzle returns ErrDuplicate; an
// unknown puzzle id returns ErrInvalidReference.
func (r *PostgresRepository) CreateReward(ctx context.Context, reward *models.Reward) error {
	metadata := reward.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal reward metadata: %w", err)
	}

	query := `
		INSERT INTO rewards (user_id, puzzle_id, token_type, token_amount, reason, metadata, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`

	err = r.db.QueryRow(ctx, query,
		reward.UserID,
		reward.PuzzleID,
		reward.TokenType,
		reward.TokenAmount,
		reward.Reason,
		metadataJSON,
		reward.ExpiresAt,
	).Scan(&reward.ID, &reward.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case pgUniqueViolation:
				return fmt.Errorf("failed to create reward: %w", ErrDuplicate)
			case pgForeignKeyViolation:
				return fmt.Errorf("failed to create reward: %w", ErrInvalidReference)
			}
		}
		return fmt.Errorf("failed to create reward: %w", err)
	}

	return nil
}

// UserPoints sums every points row for the user, resets included
func (r *PostgresRepository) UserPoints(ctx context.Context, userID string) (int64, error) {
	query := `
		SELECT COALESCE(SUM(token_amount), 0)::bigint
		FROM rewards
		WHERE user_id = $1 AND token_type = $2
	`

	var total int64
	if err := r.db.QueryRow(ctx, query, userID, models.TokenTypePoints).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to sum points: %w", err)
	}
	return total, nil
}

// ListRewards returns a user's ledger rows, newest first
func (r *PostgresRepository) ListRewards(ctx context.Context, userID string, limit int) ([]*models.Reward, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	query, args, err := psql.Select(
		"id", "user_id", "puzzle_id", "token_type", "token_amount",
		"reason", "metadata", "expires_at", "claimed_at", "created_at",
	).
		From("rewards").
		Where(sq.Eq{"user_id": userID}).
		OrderBy("created_at DESC", "id DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	var rewards []*models.Reward
	if err := pgxscan.Select(ctx, r.db, &rewards, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list rewards: %w", err)
	}
	return rewards, nil
}
