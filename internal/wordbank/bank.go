// Package wordbank holds the catalog of domain terms and picks words for
// puzzles while avoiding recent repeats.
package wordbank

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/terra-clan/puzzle-engine/internal/models"
)

const (
	// WordsPerPuzzle is the number of terms hidden in one word search
	WordsPerPuzzle = 6
	// RetainedPuzzles is how many puzzles' worth of words stay excluded
	RetainedPuzzles = 3
	// DefaultCapacity is the default size of the recency set
	DefaultCapacity = WordsPerPuzzle * RetainedPuzzles
)

//go:embed default_terms.yaml
var defaultTerms []byte

// Bank manages the term catalog and its recency-exclusion set
type Bank struct {
	mu    sync.RWMutex
	terms []models.Term
	index map[string]int

	// pickMu serializes PickWords so the recency set has a single writer
	pickMu  sync.Mutex
	rng     *rand.Rand
	recency Recency
}

// Option configures a Bank
type Option func(*Bank)

// WithRand sets the random source used for selection
func WithRand(rng *rand.Rand) Option {
	return func(b *Bank) {
		b.rng = rng
	}
}

// WithoutDefaults starts the bank empty instead of loading the built-in terms
func WithoutDefaults() Option {
	return func(b *Bank) {
		b.terms = nil
		b.index = make(map[string]int)
	}
}

// New creates a bank preloaded with the built-in terms
func New(recency Recency, opts ...Option) *Bank {
	if recency == nil {
		recency = NewLocalRecency(DefaultCapacity)
	}

	b := &Bank{
		index:   make(map[string]int),
		recency: recency,
		rng:     rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), rand.Uint64())),
	}

	terms, err := parseTerms(defaultTerms)
	if err != nil {
		panic(fmt.Sprintf("wordbank: invalid built-in terms: %v", err))
	}
	b.Add(terms...)

	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Add inserts terms, replacing any existing term with the same word
func (b *Bank) Add(terms ...models.Term) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, t := range terms {
		if i, ok := b.index[t.Word]; ok {
			b.terms[i] = t
			continue
		}
		b.index[t.Word] = len(b.terms)
		b.terms = append(b.terms, t)
	}
}

// Terms returns a copy of every term in the bank
func (b *Bank) Terms() []models.Term {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]models.Term, len(b.terms))
	copy(out, b.terms)
	return out
}

// Len returns the number of terms
func (b *Bank) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.terms)
}

// Lookup returns the term for word
func (b *Bank) Lookup(word string) (models.Term, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	i, ok := b.index[word]
	if !ok {
		return models.Term{}, false
	}
	return b.terms[i], true
}

// PickWords returns up to count random terms that were not used recently.
// When fewer than count terms are available the oldest half of the recency
// set is evicted first. The chosen terms are recorded as recent.
func (b *Bank) PickWords(ctx context.Context, count int) ([]models.Term, error) {
	if count <= 0 {
		return nil, nil
	}

	b.pickMu.Lock()
	defer b.pickMu.Unlock()

	recent, err := b.recency.Recent(ctx)
	if err != nil {
		return nil, err
	}

	available := b.available(recent)
	if len(available) < count && len(recent) > 0 {
		slog.Debug("word bank running low, evicting recent words",
			"available", len(available),
			"requested", count,
			"recent", len(recent),
		)
		if err := b.recency.EvictOldestHalf(ctx); err != nil {
			return nil, err
		}
		if recent, err = b.recency.Recent(ctx); err != nil {
			return nil, err
		}
		available = b.available(recent)
	}

	b.rng.Shuffle(len(available), func(i, j int) {
		available[i], available[j] = available[j], available[i]
	})
	if len(available) > count {
		available = available[:count]
	}

	words := make([]string, len(available))
	for i, t := range available {
		words[i] = t.Word
	}
	if err := b.recency.Add(ctx, words...); err != nil {
		return nil, err
	}

	return available, nil
}

func (b *Bank) available(recent []string) []models.Term {
	excluded := make(map[string]struct{}, len(recent))
	for _, w := range recent {
		excluded[w] = struct{}{}
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]models.Term, 0, len(b.terms))
	for _, t := range b.terms {
		if _, ok := excluded[t.Word]; !ok {
			out = append(out, t)
		}
	}
	return out
}
