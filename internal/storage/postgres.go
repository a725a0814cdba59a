package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/terra-clan/puzzle-engine/internal/models"
)

const (
	defaultListLimit = 50
	maxListLimit     = 100
)

// DB is the part of pgxpool.Pool the repository uses
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// PostgresRepository implements Repository using PostgreSQL
type PostgresRepository struct {
	db DB
}

// PostgresConfig holds PostgreSQL connection configuration
type PostgresConfig struct {
	DSN         string
	MaxConns    int32
	MinConns    int32
	MaxLifetime time.Duration
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(ctx context.Context, cfg PostgresConfig) (*PostgresRepository, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DSN: %w", err)
	}

	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	} else {
		poolConfig.MaxConns = 25
	}

	if cfg.MinConns > 0 {
		poolConfig.MinConns = cfg.MinConns
	} else {
		poolConfig.MinConns = 5
	}

	if cfg.MaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxLifetime
	} else {
		poolConfig.MaxConnLifetime = 30 * time.Minute
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresRepository{db: pool}, nil
}

// NewWithDB wraps an existing pool or mock
func NewWithDB(db DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Ping checks database connectivity
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

// Close closes the database connection pool
func (r *PostgresRepository) Close() error {
	r.db.Close()
	return nil
}

var puzzleColumns = []string{
	"id", "uuid::text", "game_id", "type", "title", "content", "solution", "difficulty",
	"hints", "time_limit", "points", "metadata", "is_active", "deleted_at", "created_at", "updated_at",
}

// SavePuzzle inserts a puzzle and fills in its generated id, uuid and timestamps
func (r *PostgresRepository) SavePuzzle(ctx context.Context, p *models.Puzzle) error {
	metadataJSON, err := models.EncodeMetadata(p)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}

	hints := p.Hints
	if hints == nil {
		hints = []string{}
	}
	hintsJSON, err := json.Marshal(hints)
	if err != nil {
		return fmt.Errorf("failed to marshal hints: %w", err)
	}

	query := `
		INSERT INTO puzzles (game_id, type, title, content, solution, difficulty, hints, time_limit, points, metadata, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, uuid::text, created_at, updated_at
	`

	err = r.db.QueryRow(ctx, query,
		p.GameID,
		string(p.Type),
		p.Title,
		p.Content,
		p.Solution,
		string(p.Difficulty),
		hintsJSON,
		p.TimeLimit,
		p.Points,
		metadataJSON,
		p.IsActive,
	).Scan(&p.ID, &p.UUID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save puzzle: %w", err)
	}

	return nil
}

// GetPuzzle retrieves a puzzle by ID, ignoring soft-deleted rows
func (r *PostgresRepository) GetPuzzle(ctx context.Context, id int64) (*models.Puzzle, error) {
	query, args, err := psql.Select(puzzleColumns...).
		From("puzzles").
		Where(sq.Eq{"id": id}).
		Where("deleted_at IS NULL").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	p, err := scanPuzzle(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get puzzle: %w", err)
	}
	return p, nil
}

// ListPuzzles returns puzzles matching filter, newest first
func (r *PostgresRepository) ListPuzzles(ctx context.Context, filter models.PuzzleFilter) ([]*models.Puzzle, error) {
	q := psql.Select(puzzleColumns...).
		From("puzzles").
		Where("deleted_at IS NULL")

	if filter.Type != "" {
		q = q.Where(sq.Eq{"type": string(filter.Type)})
	}
	if filter.Difficulty != "" {
		q = q.Where(sq.Eq{"difficulty": string(filter.Difficulty)})
	}
	if filter.GameID > 0 {
		q = q.Where(sq.Eq{"game_id": filter.GameID})
	}
	if filter.ActiveOnly {
		q = q.Where(sq.Eq{"is_active": true})
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	q = q.OrderBy("created_at DESC", "id DESC").Limit(uint64(limit))
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list puzzles: %w", err)
	}
	defer rows.Close()

	var puzzles []*models.Puzzle
	for rows.Next() {
		p, err := scanPuzzle(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan puzzle: %w", err)
		}
		puzzles = append(puzzles, p)
	}

	return puzzles, rows.Err()
}

// SetPuzzleActive toggles whether a puzzle is offered to players
func (r *PostgresRepository) SetPuzzleActive(ctx context.Context, id int64, active bool) error {
	query := `UPDATE puzzles SET is_active = $2, updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`

	tag, err := r.db.Exec(ctx, query, id, active)
	if err != nil {
		return fmt.Errorf("failed to update puzzle: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SoftDeletePuzzle marks a puzzle deleted; it disappears from reads
func (r *PostgresRepository) SoftDeletePuzzle(ctx context.Context, id int64) error {
	query := `UPDATE puzzles SET deleted_at = NOW(), updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`

	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete puzzle: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanPuzzle(row pgx.Row) (*models.Puzzle, error) {
	var (
		p                       models.Puzzle
		puzzleType, difficulty  string
		hintsJSON, metadataJSON []byte
	)

	err := row.Scan(
		&p.ID,
		&p.UUID,
		&p.GameID,
		&puzzleType,
		&p.Title,
		&p.Content,
		&p.Solution,
		&difficulty,
		&hintsJSON,
		&p.TimeLimit,
		&p.Points,
		&metadataJSON,
		&p.IsActive,
		&p.DeletedAt,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.Type = models.PuzzleType(puzzleType)
	p.Difficulty = models.Difficulty(difficulty)

	if len(hintsJSON) > 0 {
		if err := json.Unmarshal(hintsJSON, &p.Hints); err != nil {
			return nil, fmt.Errorf("failed to unmarshal hints: %w", err)
		}
	}

	p.Details, p.Sources, p.Topic, err = models.DecodeMetadata(p.Type, metadataJSON)
	if err != nil {
		return nil, err
	}

	return &p, nil
}
