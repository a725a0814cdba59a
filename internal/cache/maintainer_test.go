package cache

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type countingTarget struct {
	calls atomic.Int32
}

func (c *countingTarget) MaintainAll(context.Context) {
	c.calls.Add(1)
}

func TestMaintainerRunsImmediatelyAndOnTick(t *testing.T) {
	defer goleak.VerifyNone(t)

	target := &countingTarget{}
	m := NewMaintainer(target, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	m.Start(ctx)

	require.Eventually(t, func() bool {
		return target.calls.Load() >= 3
	}, time.Second, 5*time.Millisecond)

	cancel()
	m.Wait()
}

func TestNewMaintainerDefaultInterval(t *testing.T) {
	m := NewMaintainer(&countingTarget{}, 0)
	assert.Equal(t, 5*time.Minute, m.interval)
}
