package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Filler refills the pre-generation cache
type Filler interface {
	MaintainAll(ctx context.Context)
}

// Maintainer periodically tops up the puzzle cache
type Maintainer struct {
	target   Filler
	interval time.Duration
	wg       sync.WaitGroup
}

// NewMaintainer creates a new cache maintenance worker
func NewMaintainer(target Filler, interval time.Duration) *Maintainer {
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	return &Maintainer{
		target:   target,
		interval: interval,
	}
}

// Start begins the maintenance worker in a goroutine
func (m *Maintainer) Start(ctx context.Context) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.run(ctx)
	}()
}

// Wait blocks until the worker has stopped
func (m *Maintainer) Wait() {
	m.wg.Wait()
}

func (m *Maintainer) run(ctx context.Context) {
	slog.Info("cache maintainer started", "interval", m.interval)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	// Fill the cache immediately on start
	m.target.MaintainAll(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("cache maintainer stopped")
			return
		case <-ticker.C:
			slog.Debug("running cache maintenance cycle")
			m.target.MaintainAll(ctx)
		}
	}
}
