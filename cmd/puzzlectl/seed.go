package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/terra-clan/puzzle-engine/internal/config"
	"github.com/terra-clan/puzzle-engine/internal/crawler"
	"github.com/terra-clan/puzzle-engine/internal/knowledge"
	"github.com/terra-clan/puzzle-engine/internal/llm"
	"github.com/terra-clan/puzzle-engine/internal/logging"
	"github.com/terra-clan/puzzle-engine/internal/storage"
)

func newSeedCmd() *cobra.Command {
	var (
		maxDepth int
		maxPages int
	)

	cmd := &cobra.Command{
		Use:   "seed [url...]",
		Short: "Crawl pages and store their embedded chunks",
		Long: `Crawls each URL breadth-first, splits the page text into chunks, embeds
them with Gemini and stores them for retrieval. Without arguments the
KNOWLEDGE_SEED_URLS setting is used.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logging.New(cfg.Log)

			urls := args
			if len(urls) == 0 {
				urls = cfg.Knowledge.SeedURLs
			}
			if len(urls) == 0 {
				return fmt.Errorf("no seed URLs given")
			}
			if cmd.Flags().Changed("max-depth") {
				cfg.Knowledge.MaxDepth = maxDepth
			}
			if cmd.Flags().Changed("max-pages") {
				cfg.Knowledge.MaxPages = maxPages
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return runSeed(ctx, cmd, cfg, urls)
		},
	}

	cmd.Flags().IntVar(&maxDepth, "max-depth", 0, "link depth to follow (default from config)")
	cmd.Flags().IntVar(&maxPages, "max-pages", 0, "pages to fetch per URL (default from config)")
	return cmd
}

func runSeed(ctx context.Context, cmd *cobra.Command, cfg *config.Config, urls []string) error {
	if err := storage.Migrate(ctx, cfg.Database.DSN); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	repo, err := storage.NewPostgresRepository(ctx, storage.PostgresConfig{
		DSN:         cfg.Database.DSN,
		MaxConns:    cfg.Database.MaxConns,
		MinConns:    cfg.Database.MinConns,
		MaxLifetime: cfg.Database.MaxConnLifetime,
	})
	if err != nil {
		return err
	}
	defer repo.Close()

	gemini, err := llm.NewGenAI(ctx, cfg.LLM)
	if err != nil {
		return fmt.Errorf("seeding needs a Gemini embedder: %w", err)
	}

	seeder := knowledge.NewSeeder(
		crawler.New(cfg.Knowledge.MaxDepth, cfg.Knowledge.MaxPages),
		gemini.DocumentEmbedder(),
		repo,
		cfg.Knowledge.ChunkSize,
		cfg.Knowledge.Concurrency,
	)

	slog.Info("seeding knowledge base", "urls", len(urls))
	stats, err := seeder.Seed(ctx, urls)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "seeded %d pages, %d chunks\n", stats.Pages, stats.Chunks)
	return nil
}
