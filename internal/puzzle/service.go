// Package puzzle coordinates puzzle requests: cache hits, asynchronous
// generation jobs, persistence and pre-generation top-up.
package puzzle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/terra-clan/puzzle-engine/internal/generator"
	"github.com/terra-clan/puzzle-engine/internal/jobs"
	"github.com/terra-clan/puzzle-engine/internal/models"
	"github.com/terra-clan/puzzle-engine/internal/storage"
)

const maxTopicLength = 200

// Generator produces validated puzzle payloads
type Generator interface {
	Generate(ctx context.Context, req generator.Request) (*generator.Payload, error)
}

// Repository is the persistence the service needs
type Repository interface {
	SavePuzzle(ctx context.Context, p *models.Puzzle) error
	GetPuzzle(ctx context.Context, id int64) (*models.Puzzle, error)
	ListPuzzles(ctx context.Context, filter models.PuzzleFilter) ([]*models.Puzzle, error)
	SetPuzzleActive(ctx context.Context, id int64, active bool) error
	SoftDeletePuzzle(ctx context.Context, id int64) error
}

// Manager defines the puzzle operations exposed over the API
type Manager interface {
	Request(ctx context.Context, req models.CreatePuzzleRequest) (*RequestResult, error)
	Status(ctx context.Context, jobID string) (*models.Job, error)
	Get(ctx context.Context, id int64) (*models.Puzzle, error)
	List(ctx context.Context, filter models.PuzzleFilter) ([]*models.Puzzle, error)
	Check(ctx context.Context, id int64, answer string) (*CheckResult, error)
	SetActive(ctx context.Context, id int64, active bool) error
	Delete(ctx context.Context, id int64) error
}

// RequestResult holds either a ready puzzle or the id of a pending job
type RequestResult struct {
	Puzzle *models.Puzzle
	JobID  string
}

// CheckResult is the outcome of an answer submission
type CheckResult struct {
	Correct bool `json:"correct"`
	Points  int  `json:"points"`
}

// Config tunes the service
type Config struct {
	// CacheFloor is the number of ready puzzles kept per cached type
	CacheFloor      int
	CacheTopic      string
	CacheDifficulty models.Difficulty
	CacheGameID     int64
	CacheTypes      []models.PuzzleType
	// Spacing is the minimum gap between background generations
	Spacing      time.Duration
	SaveAttempts int
	SaveBackoff  time.Duration
}

// DefaultConfig returns the production defaults
func DefaultConfig() Config {
	return Config{
		CacheFloor:      3,
		CacheTopic:      "Solana blockchain",
		CacheDifficulty: models.DifficultyMedium,
		CacheGameID:     1,
		CacheTypes:      []models.PuzzleType{models.TypeWordSearch, models.TypeAnagram, models.TypeQuiz},
		Spacing:         time.Second,
		SaveAttempts:    3,
		SaveBackoff:     500 * time.Millisecond,
	}
}

// Service implements Manager
type Service struct {
	gen   Generator
	repo  Repository
	jobs  jobs.StoreCache
	cfg   Config
	newID func() string

	limiter *rate.Limiter
	group   singleflight.Group

	mu       sync.Mutex
	inflight map[models.PuzzleType]int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewService creates a Service. Background work runs until Close.
func NewService(gen Generator, repo Repository, store jobs.StoreCache, cfg Config) *Service {
	def := DefaultConfig()
	if cfg.CacheTopic == "" {
		cfg.CacheTopic = def.CacheTopic
	}
	if !cfg.CacheDifficulty.Valid() {
		cfg.CacheDifficulty = def.CacheDifficulty
	}
	if cfg.SaveAttempts <= 0 {
		cfg.SaveAttempts = def.SaveAttempts
	}

	limit := rate.Inf
	if cfg.Spacing > 0 {
		limit = rate.Every(cfg.Spacing)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		gen:      gen,
		repo:     repo,
		jobs:     store,
		cfg:      cfg,
		newID:    uuid.NewString,
		limiter:  rate.NewLimiter(limit, 1),
		inflight: make(map[models.PuzzleType]int),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Close stops scheduling and waits for background generations to finish
func (s *Service) Close() error {
	s.cancel()
	s.wg.Wait()
	return nil
}

func (s *Service) spawn(fn func(ctx context.Context)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn(s.ctx)
	}()
}

// Validate checks a creation request
func Validate(req models.CreatePuzzleRequest) error {
	topic := strings.TrimSpace(req.Topic)
	switch {
	case topic == "":
		return &ValidationError{Field: "topic", Message: "must not be empty"}
	case len(topic) > maxTopicLength:
		return &ValidationError{Field: "topic", Message: fmt.Sprintf("must be at most %d characters", maxTopicLength)}
	case !req.Difficulty.Valid():
		return &ValidationError{Field: "difficulty", Message: fmt.Sprintf("unknown difficulty %q", req.Difficulty)}
	case !req.Type.Valid():
		return &ValidationError{Field: "type", Message: fmt.Sprintf("unknown puzzle type %q", req.Type)}
	case req.GameID < 0:
		return &ValidationError{Field: "gameId", Message: "must not be negative"}
	}
	return nil
}

// Request serves a pre-generated puzzle when one is cached, otherwise starts
// an asynchronous generation job and returns its id
func (s *Service) Request(ctx context.Context, req models.CreatePuzzleRequest) (*RequestResult, error) {
	if err := Validate(req); err != nil {
		return nil, err
	}
	if s.ctx.Err() != nil {
		return nil, ErrClosed
	}
	req.Topic = strings.TrimSpace(req.Topic)

	cached, err := s.jobs.TryPop(ctx, req.Type)
	if err != nil {
		slog.Warn("failed to read puzzle cache", "type", req.Type, "error", err)
	}
	if cached != nil {
		slog.Info("serving cached puzzle", "puzzle_id", cached.ID, "type", cached.Type)
		t := req.Type
		s.spawn(func(ctx context.Context) {
			if _, err := s.MaintainCache(ctx, t); err != nil {
				slog.Error("cache maintenance failed", "type", t, "error", err)
			}
		})
		return &RequestResult{Puzzle: cached}, nil
	}

	id := s.newID()
	if err := s.jobs.Create(ctx, id); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	slog.Info("puzzle job created",
		"job_id", id,
		"type", req.Type,
		"difficulty", req.Difficulty,
		"topic", req.Topic,
	)

	genReq := generator.Request{Type: req.Type, Topic: req.Topic, Difficulty: req.Difficulty}
	gameID := req.GameID
	s.spawn(func(ctx context.Context) {
		s.runJob(ctx, id, gameID, genReq)
	})

	return &RequestResult{JobID: id}, nil
}

// runJob generates, saves and records exactly one terminal state for id
func (s *Service) runJob(ctx context.Context, id string, gameID int64, req generator.Request) {
	p, err := s.produce(ctx, gameID, req)
	if err != nil {
		slog.Error("puzzle job failed", "job_id", id, "error", err)
		if err := s.jobs.Fail(context.WithoutCancel(ctx), id, err.Error()); err != nil {
			slog.Error("failed to record job failure", "job_id", id, "error", err)
		}
		return
	}

	if err := s.jobs.Complete(context.WithoutCancel(ctx), id, p); err != nil {
		slog.Error("failed to record job completion", "job_id", id, "puzzle_id", p.ID, "error", err)
		return
	}
	slog.Info("puzzle job completed", "job_id", id, "puzzle_id", p.ID)
}

// produce generates a puzzle and saves it, retrying the save with the
// generated payload kept in memory
func (s *Service) produce(ctx context.Context, gameID int64, req generator.Request) (*models.Puzzle, error) {
	payload, err := s.gen.Generate(ctx, req)
	if err != nil {
		return nil, err
	}

	p := payload.Puzzle(gameID, req)
	var saveErr error
	for attempt := 1; attempt <= s.cfg.SaveAttempts; attempt++ {
		if saveErr = s.repo.SavePuzzle(ctx, p); saveErr == nil {
			return p, nil
		}
		slog.Warn("failed to save puzzle",
			"attempt", attempt,
			"max_attempts", s.cfg.SaveAttempts,
			"error", saveErr,
		)
		if attempt == s.cfg.SaveAttempts {
			break
		}
		if err := wait(ctx, s.cfg.SaveBackoff*time.Duration(attempt)); err != nil {
			break
		}
	}
	return nil, fmt.Errorf("%w: %v", ErrPersistence, saveErr)
}

// MaintainCache schedules enough background generations to bring the cache
// for t back to the floor. Concurrent calls for the same type are collapsed.
// It returns the number of generations started.
func (s *Service) MaintainCache(ctx context.Context, t models.PuzzleType) (int, error) {
	v, err, _ := s.group.Do(string(t), func() (any, error) {
		return s.topUp(ctx, t)
	})
	if err != nil {
		return 0, err
	}
	return v.(int), nil
}

func (s *Service) topUp(ctx context.Context, t models.PuzzleType) (int, error) {
	size, err := s.jobs.Size(ctx, t)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	deficit := s.cfg.CacheFloor - size - s.inflight[t]
	if deficit > 0 {
		s.inflight[t] += deficit
	}
	s.mu.Unlock()

	if deficit <= 0 {
		return 0, nil
	}

	slog.Info("topping up puzzle cache", "type", t, "size", size, "scheduling", deficit)

	req := generator.Request{Type: t, Topic: s.cfg.CacheTopic, Difficulty: s.cfg.CacheDifficulty}
	started := 0
	for ; started < deficit; started++ {
		if err := s.limiter.Wait(ctx); err != nil {
			s.release(t, deficit-started)
			return started, err
		}
		s.spawn(func(ctx context.Context) {
			defer s.release(t, 1)
			s.fillCache(ctx, req)
		})
	}
	return started, nil
}

func (s *Service) release(t models.PuzzleType, n int) {
	s.mu.Lock()
	s.inflight[t] -= n
	s.mu.Unlock()
}

func (s *Service) fillCache(ctx context.Context, req generator.Request) {
	p, err := s.produce(ctx, s.cfg.CacheGameID, req)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			slog.Error("background generation failed", "type", req.Type, "error", err)
		}
		return
	}
	if err := s.jobs.Push(context.WithoutCancel(ctx), p); err != nil {
		slog.Error("failed to cache puzzle", "puzzle_id", p.ID, "error", err)
		return
	}
	slog.Info("puzzle cached", "puzzle_id", p.ID, "type", p.Type)
}

// MaintainAll tops up every configured cache type
func (s *Service) MaintainAll(ctx context.Context) {
	for _, t := range s.cfg.CacheTypes {
		if _, err := s.MaintainCache(ctx, t); err != nil {
			slog.Error("cache maintenance failed", "type", t, "error", err)
		}
	}
}

// Status returns the job record for jobID
func (s *Service) Status(ctx context.Context, jobID string) (*models.Job, error) {
	return s.jobs.Get(ctx, jobID)
}

// Get returns a stored puzzle
func (s *Service) Get(ctx context.Context, id int64) (*models.Puzzle, error) {
	p, err := s.repo.GetPuzzle(ctx, id)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return p, nil
}

// List returns stored puzzles matching filter
func (s *Service) List(ctx context.Context, filter models.PuzzleFilter) ([]*models.Puzzle, error) {
	return s.repo.ListPuzzles(ctx, filter)
}

// Check compares answer against the stored solution
func (s *Service) Check(ctx context.Context, id int64, answer string) (*CheckResult, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.CheckAnswer(answer) {
		return &CheckResult{}, nil
	}
	return &CheckResult{Correct: true, Points: p.Points}, nil
}

func (s *Service) SetActive(ctx context.Context, id int64, active bool) error {
	return mapNotFound(s.repo.SetPuzzleActive(ctx, id, active))
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	return mapNotFound(s.repo.SoftDeletePuzzle(ctx, id))
}

func mapNotFound(err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

func wait(ctx context.Context, d time.Duration) error {
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
