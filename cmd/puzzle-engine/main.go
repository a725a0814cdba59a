package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/terra-clan/puzzle-engine/internal/api"
	"github.com/terra-clan/puzzle-engine/internal/cache"
	"github.com/terra-clan/puzzle-engine/internal/config"
	"github.com/terra-clan/puzzle-engine/internal/generator"
	"github.com/terra-clan/puzzle-engine/internal/health"
	"github.com/terra-clan/puzzle-engine/internal/jobs"
	"github.com/terra-clan/puzzle-engine/internal/knowledge"
	"github.com/terra-clan/puzzle-engine/internal/llm"
	"github.com/terra-clan/puzzle-engine/internal/logging"
	"github.com/terra-clan/puzzle-engine/internal/models"
	"github.com/terra-clan/puzzle-engine/internal/puzzle"
	"github.com/terra-clan/puzzle-engine/internal/rewards"
	"github.com/terra-clan/puzzle-engine/internal/storage"
	"github.com/terra-clan/puzzle-engine/internal/wordbank"
)

const recencyKey = "wordbank:recent"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logging.New(cfg.Log)

	slog.Info("starting puzzle-engine",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"llm_provider", cfg.LLM.Provider,
	)

	initCtx, initCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer initCancel()

	// Run database migrations
	slog.Info("running database migrations")
	if err := storage.Migrate(initCtx, cfg.Database.DSN); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	repo, err := storage.NewPostgresRepository(initCtx, storage.PostgresConfig{
		DSN:         cfg.Database.DSN,
		MaxConns:    cfg.Database.MaxConns,
		MinConns:    cfg.Database.MinConns,
		MaxLifetime: cfg.Database.MaxConnLifetime,
	})
	if err != nil {
		slog.Error("failed to create database repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("database connected successfully")

	registry := health.NewRegistry()
	registry.Register("postgres", health.NewPostgresProvider(repo))

	// Jobs, the pregen cache and the recency set live in Redis when it is
	// configured and in process memory otherwise
	var (
		store   jobs.StoreCache
		recency wordbank.Recency
	)
	if cfg.Redis.Address != "" {
		redisProvider, err := health.NewRedisProvider(initCtx, cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			slog.Error("failed to create redis provider", "error", err)
			os.Exit(1)
		}
		defer redisProvider.Close()
		registry.Register("redis", redisProvider)

		store = jobs.NewRedisStore(redisProvider.Client(), cfg.Cache.JobTTL)
		recency = wordbank.NewRedisRecency(redisProvider.Client(), recencyKey, cfg.Generation.RecencyCapacity())
	} else {
		slog.Warn("redis not configured, keeping jobs and cache in memory")
		store = jobs.NewMemoryStore(cfg.Cache.JobTTL)
		recency = wordbank.NewLocalRecency(cfg.Generation.RecencyCapacity())
	}

	bank := wordbank.New(recency)
	if cfg.WordBank.Dir != "" {
		if err := bank.LoadFromDir(cfg.WordBank.Dir); err != nil {
			slog.Warn("failed to load terms from dir", "dir", cfg.WordBank.Dir, "error", err)
		}
	}
	slog.Info("word bank ready", "terms", bank.Len())

	backend, embedder, err := llm.New(initCtx, cfg.LLM)
	if err != nil {
		slog.Error("failed to create llm backend", "error", err)
		os.Exit(1)
	}
	registry.Register("llm", health.NewFuncProvider("llm", func(context.Context) error {
		if backend == nil {
			return errors.New("llm backend not configured")
		}
		return nil
	}))
	slog.Info("health checks registered", "dependencies", registry.List())

	var genOpts []generator.Option
	if embedder != nil {
		genOpts = append(genOpts, generator.WithRetriever(
			knowledge.NewRetriever(embedder, repo, cfg.Knowledge.MinSimilarity, cfg.Knowledge.Limit),
		))
	} else {
		slog.Warn("no embedder configured, generating without knowledge context")
	}

	gen := generator.New(backend, bank, generator.Config{
		Attempts:            cfg.Generation.Attempts,
		Backoff:             cfg.Generation.Backoff,
		GridSize:            cfg.Generation.GridSize,
		WordsPerPuzzle:      cfg.Generation.WordsPerPuzzle,
		QuizDuplicateBudget: cfg.Generation.QuizDuplicateBudget,
	}, genOpts...)

	puzzles := puzzle.NewService(gen, repo, store, puzzle.Config{
		CacheFloor:      cfg.Cache.Floor,
		CacheTopic:      cfg.Cache.Topic,
		CacheDifficulty: models.Difficulty(cfg.Cache.Difficulty),
		CacheGameID:     cfg.Cache.GameID,
		CacheTypes:      cfg.Cache.CacheTypes(),
		Spacing:         cfg.Cache.Spacing,
		SaveAttempts:    cfg.Generation.SaveAttempts,
		SaveBackoff:     cfg.Generation.SaveBackoff,
	})

	ledger := rewards.NewService(repo)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Keep the pregen cache at its floor
	maintainer := cache.NewMaintainer(puzzles, cfg.Cache.Interval)
	maintainer.Start(ctx)

	server := api.NewServer(cfg.CORS, puzzles, ledger, registry)
	httpServer := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      server.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		slog.Info("HTTP server starting", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down gracefully...")

	// Stop the maintainer before the service it drives
	cancel()
	maintainer.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	// Cancels in-flight generations; their jobs are marked failed
	if err := puzzles.Close(); err != nil {
		slog.Error("puzzle service close error", "error", err)
	}

	slog.Info("puzzle-engine stopped")
}
