package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/terra-clan/puzzle-engine/internal/models"
)

// finishScript performs the single terminal transition of a job. It returns
// 0 when the key is missing, -1 when the job is already terminal and 1 on
// success. The remaining TTL is preserved.
var finishScript = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if not cur then
	return 0
end
local job = cjson.decode(cur)
if job.status ~= 'pending' then
	return -1
end
redis.call('SET', KEYS[1], ARGV[1], 'KEEPTTL')
return 1
`)

// RedisStore keeps jobs and the pregen cache in Redis so that every replica
// sees the same state
type RedisStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisStore creates a Redis-backed store. A non-positive ttl uses DefaultTTL.
func NewRedisStore(client redis.UniversalClient, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Create(ctx context.Context, id string) error {
	now := time.Now().UTC()
	data, err := json.Marshal(models.Job{
		ID:        id,
		Status:    models.JobPending,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	ok, err := s.client.SetNX(ctx, jobKey(id), data, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobExists, id)
	}
	return nil
}

func (s *RedisStore) Complete(ctx context.Context, id string, puzzle *models.Puzzle) error {
	return s.finish(ctx, id, func(j *models.Job) {
		j.Status = models.JobCompleted
		j.Puzzle = puzzle
	})
}

func (s *RedisStore) Fail(ctx context.Context, id string, msg string) error {
	return s.finish(ctx, id, func(j *models.Job) {
		j.Status = models.JobError
		j.Error = msg
	})
}

func (s *RedisStore) finish(ctx context.Context, id string, apply func(*models.Job)) error {
	job, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if job.Status.IsTerminal() {
		return fmt.Errorf("%w: %s", ErrJobTerminal, id)
	}

	apply(job)
	job.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	res, err := finishScript.Run(ctx, s.client, []string{jobKey(id)}, data).Int()
	if err != nil {
		return fmt.Errorf("failed to finish job: %w", err)
	}
	switch res {
	case 0:
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	case -1:
		return fmt.Errorf("%w: %s", ErrJobTerminal, id)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*models.Job, error) {
	data, err := s.client.Get(ctx, jobKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	var job models.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	return &job, nil
}

func (s *RedisStore) TryPop(ctx context.Context, t models.PuzzleType) (*models.Puzzle, error) {
	data, err := s.client.LPop(ctx, cacheKey(t)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to pop cached puzzle: %w", err)
	}

	var p models.Puzzle
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached puzzle: %w", err)
	}
	return &p, nil
}

func (s *RedisStore) Push(ctx context.Context, p *models.Puzzle) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal puzzle: %w", err)
	}
	if err := s.client.RPush(ctx, cacheKey(p.Type), data).Err(); err != nil {
		return fmt.Errorf("failed to cache puzzle: %w", err)
	}
	return nil
}

func (s *RedisStore) Size(ctx context.Context, t models.PuzzleType) (int, error) {
	n, err := s.client.LLen(ctx, cacheKey(t)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read cache size: %w", err)
	}
	return int(n), nil
}
