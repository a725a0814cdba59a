package health_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terra-clan/puzzle-engine/internal/health"
	"github.com/terra-clan/puzzle-engine/internal/testhelper"
)

func TestRegistry(t *testing.T) {
	r := health.NewRegistry()
	ok := health.NewFuncProvider("postgres", func(context.Context) error { return nil })
	r.Register("postgres", ok)
	r.Register("llm", health.NewFuncProvider("llm", func(context.Context) error { return nil }))

	assert.Equal(t, []string{"llm", "postgres"}, r.List())
	assert.Same(t, ok, r.Get("postgres"))
	assert.Equal(t, "postgres", r.Get("postgres").Type())

	assert.Nil(t, r.Get("redis"))

	// registering a name again replaces the provider
	replacement := health.NewFuncProvider("postgres", func(context.Context) error { return nil })
	r.Register("postgres", replacement)
	assert.Same(t, replacement, r.Get("postgres"))
	assert.Equal(t, []string{"llm", "postgres"}, r.List())
}

func TestHealthCheckAll(t *testing.T) {
	down := errors.New("connection refused")

	r := health.NewRegistry()
	r.Register("postgres", health.NewFuncProvider("postgres", func(context.Context) error { return nil }))
	r.Register("redis", health.NewFuncProvider("redis", func(context.Context) error { return down }))

	results := r.HealthCheckAll(context.Background())
	require.Len(t, results, 2)
	assert.NoError(t, results["postgres"])
	assert.ErrorIs(t, results["redis"], down)
	assert.False(t, health.Healthy(results))

	r.Register("redis", health.NewFuncProvider("redis", func(context.Context) error { return nil }))
	assert.True(t, health.Healthy(r.HealthCheckAll(context.Background())))
}

func TestHealthCheckAllBoundsEachCheck(t *testing.T) {
	r := health.NewRegistry()
	r.Register("slow", health.NewFuncProvider("slow", func(ctx context.Context) error {
		_, ok := ctx.Deadline()
		assert.True(t, ok, "check must run with a deadline")
		return nil
	}))

	results := r.HealthCheckAll(context.Background())
	assert.NoError(t, results["slow"])
}

func TestPostgresProvider(t *testing.T) {
	p := health.NewPostgresProvider(pingFunc(func(context.Context) error { return errors.New("down") }))
	assert.Equal(t, "postgres", p.Type())
	assert.Error(t, p.HealthCheck(context.Background()))
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestRedisProvider(t *testing.T) {
	client := testhelper.SetupRedis(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	p, err := health.NewRedisProvider(ctx, client.Options().Addr, "", 0)
	require.NoError(t, err)
	defer p.Close()

	assert.Equal(t, "redis", p.Type())
	assert.NoError(t, p.HealthCheck(ctx))
	assert.NoError(t, p.Client().Set(ctx, "health:probe", "1", time.Minute).Err())
}

func TestRedisProviderUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := health.NewRedisProvider(ctx, "127.0.0.1:1", "", 0)
	assert.Error(t, err)
}
