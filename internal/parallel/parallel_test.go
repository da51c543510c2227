package parallel

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cover(t *testing.T, n int, cfg Config) (calls int) {
	t.Helper()
	seen := make([]int, n)
	var mu sync.Mutex
	For(n, func(lo, hi int) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		for i := lo; i < hi; i++ {
			seen[i]++
		}
	}, cfg)
	for i, c := range seen {
		require.Equal(t, 1, c, "index %d", i)
	}
	return calls
}

func TestForCoversRange(t *testing.T) {
	cfg := Config{Enabled: true, NumWorkers: 4, MinChunkSize: 8}
	calls := cover(t, 1000, cfg)
	assert.Equal(t, 4, calls)
}

func TestForSequential(t *testing.T) {
	assert.Equal(t, 1, cover(t, 1000, Sequential()))
	assert.Equal(t, 1, cover(t, 1000, Config{Enabled: false, NumWorkers: 8}))
}

func TestForSmallRangeInline(t *testing.T) {
	cfg := Config{Enabled: true, NumWorkers: 8, MinChunkSize: 64}
	assert.Equal(t, 1, cover(t, 100, cfg))
}

func TestForChunkFloor(t *testing.T) {
	cfg := Config{Enabled: true, NumWorkers: 16, MinChunkSize: 50}
	// 16 workers would give chunks of 13; the floor raises them to 50.
	assert.Equal(t, 4, cover(t, 200, cfg))
}

func TestForEmpty(t *testing.T) {
	called := false
	For(0, func(_, _ int) { called = true }, DefaultConfig())
	assert.False(t, called)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Positive(t, cfg.NumWorkers)
	assert.Equal(t, 64, cfg.MinChunkSize)
}
