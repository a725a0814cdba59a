package wordbank

import (
	"context"
	"sync"
)

// Recency is a bounded, insertion-ordered set of recently used words.
// Adding beyond capacity evicts the oldest entries first.
type Recency interface {
	// Recent returns the words oldest first
	Recent(ctx context.Context) ([]string, error)
	// Add appends words, evicting the oldest ones beyond capacity
	Add(ctx context.Context, words ...string) error
	// EvictOldestHalf drops the oldest half of the set
	EvictOldestHalf(ctx context.Context) error
	Capacity() int
}

// LocalRecency keeps the recency set in process memory
type LocalRecency struct {
	mu       sync.Mutex
	capacity int
	order    []string
	index    map[string]struct{}
}

// NewLocalRecency creates an in-memory recency set
func NewLocalRecency(capacity int) *LocalRecency {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &LocalRecency{
		capacity: capacity,
		index:    make(map[string]struct{}),
	}
}

func (r *LocalRecency) Capacity() int { return r.capacity }

// Contains reports whether word is in the set
func (r *LocalRecency) Contains(word string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.index[word]
	return ok
}

// Len returns the number of words held
func (r *LocalRecency) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.order)
}

func (r *LocalRecency) Recent(_ context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out, nil
}

func (r *LocalRecency) Add(_ context.Context, words ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, w := range words {
		if _, ok := r.index[w]; ok {
			r.remove(w)
		}
		r.order = append(r.order, w)
		r.index[w] = struct{}{}
	}

	if over := len(r.order) - r.capacity; over > 0 {
		for _, w := range r.order[:over] {
			delete(r.index, w)
		}
		r.order = append([]string(nil), r.order[over:]...)
	}
	return nil
}

func (r *LocalRecency) EvictOldestHalf(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	half := len(r.order) / 2
	for _, w := range r.order[:half] {
		delete(r.index, w)
	}
	r.order = append([]string(nil), r.order[half:]...)
	return nil
}

func (r *LocalRecency) remove(word string) {
	for i, w := range r.order {
		if w == word {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	delete(r.index, word)
}
