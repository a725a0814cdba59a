package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terra-clan/puzzle-engine/internal/models"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "gemini", cfg.LLM.Provider)
	assert.Equal(t, 3, cfg.Generation.Attempts)
	assert.Equal(t, time.Second, cfg.Generation.Backoff)
	assert.Equal(t, 10, cfg.Generation.GridSize)
	assert.Equal(t, 18, cfg.Generation.RecencyCapacity())
	assert.Equal(t, 3, cfg.Cache.Floor)
	assert.Equal(t, time.Hour, cfg.Cache.JobTTL)
	assert.Equal(t, "Solana blockchain", cfg.Cache.Topic)
	assert.Equal(t, []models.PuzzleType{models.TypeWordSearch, models.TypeAnagram, models.TypeQuiz}, cfg.Cache.CacheTypes())
	assert.InDelta(t, 0.7, cfg.Knowledge.MinSimilarity, 1e-9)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr())
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("SERVER_PORT", "9191")
	t.Setenv("LLM_PROVIDER", "anthropic")
	t.Setenv("CACHE_TYPES", "quiz")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9191, cfg.Server.Port)
	assert.Equal(t, "anthropic", cfg.LLM.Provider)
	assert.Equal(t, []string{"quiz"}, cfg.Cache.Types)
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: 7070
generation:
  attempts: 5
  grid_size: 12
cache:
  floor: 1
  difficulty: hard
  types: [anagram]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	t.Setenv("CONFIG_PATH", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, 5, cfg.Generation.Attempts)
	assert.Equal(t, 12, cfg.Generation.GridSize)
	assert.Equal(t, "hard", cfg.Cache.Difficulty)
	assert.Equal(t, []string{"anagram"}, cfg.Cache.Types)
	// untouched sections keep their defaults
	assert.Equal(t, 3, cfg.Generation.SaveAttempts)
}

func TestLoadMissingFile(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server:     ServerConfig{Port: 8080},
			Database:   DatabaseConfig{DSN: "postgres://x"},
			LLM:        LLMConfig{Provider: "gemini"},
			Generation: GenerationConfig{Attempts: 3, GridSize: 10, WordsPerPuzzle: 6, SaveAttempts: 3},
			Cache:      CacheConfig{Floor: 3, Difficulty: "medium", Types: []string{"quiz"}},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"empty dsn", func(c *Config) { c.Database.DSN = "" }},
		{"unknown provider", func(c *Config) { c.LLM.Provider = "openai" }},
		{"zero attempts", func(c *Config) { c.Generation.Attempts = 0 }},
		{"tiny grid", func(c *Config) { c.Generation.GridSize = 3 }},
		{"negative floor", func(c *Config) { c.Cache.Floor = -1 }},
		{"bad difficulty", func(c *Config) { c.Cache.Difficulty = "extreme" }},
		{"bad type", func(c *Config) { c.Cache.Types = []string{"crossword"} }},
	}

	require.NoError(t, valid().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
