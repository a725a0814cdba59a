package wordbank

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/terra-clan/puzzle-engine/internal/models"
)

// termsFile represents the YAML structure of a term file
type termsFile struct {
	Terms []models.Term `yaml:"terms"`
}

var validCategories = map[string]bool{
	"Core": true, "Technical": true, "Tool": true, "Network": true, "DeFi": true,
}

var validDifficulties = map[string]bool{
	"beginner": true, "intermediate": true, "advanced": true,
}

// LoadFromDir loads all YAML term files from a directory
func (b *Bank) LoadFromDir(dir string) error {
	slog.Info("loading term files from directory", "dir", dir)

	var files []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			continue
		}
		files = append(files, matches...)
	}

	loaded := 0
	for _, file := range files {
		if err := b.LoadFromFile(file); err != nil {
			slog.Warn("failed to load term file", "file", file, "error", err)
			continue
		}
		loaded++
	}

	slog.Info("term files loaded", "count", loaded, "total_files", len(files), "terms", b.Len())
	return nil
}

// LoadFromFile loads terms from a single YAML file
func (b *Bank) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	terms, err := parseTerms(data)
	if err != nil {
		return err
	}

	b.Add(terms...)
	slog.Debug("term file loaded", "file", path, "terms", len(terms))
	return nil
}

func parseTerms(data []byte) ([]models.Term, error) {
	var f termsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	terms := make([]models.Term, 0, len(f.Terms))
	for i, t := range f.Terms {
		t.Word = strings.ToUpper(strings.TrimSpace(t.Word))
		if t.Word == "" {
			return nil, fmt.Errorf("term %d: term is required", i)
		}
		if t.Description == "" {
			return nil, fmt.Errorf("term %s: description is required", t.Word)
		}
		if t.Category != "" && !validCategories[t.Category] {
			return nil, fmt.Errorf("term %s: unknown category %q", t.Word, t.Category)
		}
		if t.Difficulty == "" {
			t.Difficulty = "intermediate"
		} else if !validDifficulties[t.Difficulty] {
			return nil, fmt.Errorf("term %s: unknown difficulty %q", t.Word, t.Difficulty)
		}
		terms = append(terms, t)
	}
	return terms, nil
}
