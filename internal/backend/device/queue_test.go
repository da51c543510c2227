package device

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueRunsInOrder(t *testing.T) {
	q := NewQueue()
	defer q.Close()

	var got []int
	for i := 0; i < 100; i++ {
		require.NoError(t, q.Enqueue(nil, "step", func() error {
			got = append(got, i)
			return nil
		}))
	}
	require.NoError(t, q.Finish())

	require.Len(t, got, 100)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestQueueEnqueueDoesNotWait(t *testing.T) {
	q := NewQueue()
	defer q.Close()

	release := make(chan struct{})
	var mu sync.Mutex
	ran := false
	require.NoError(t, q.Enqueue(nil, "blocked", func() error {
		<-release
		return nil
	}))
	require.NoError(t, q.Enqueue(nil, "after", func() error {
		mu.Lock()
		ran = true
		mu.Unlock()
		return nil
	}))

	mu.Lock()
	assert.False(t, ran)
	mu.Unlock()

	close(release)
	require.NoError(t, q.Finish())
	assert.True(t, ran)
}

func TestQueuePoisoning(t *testing.T) {
	q := NewQueue()
	defer q.Close()

	p := NewProgram()
	k := p.Kernel("broken")
	boom := errors.New("boom")
	skipped := true

	require.NoError(t, q.Enqueue(k, "broken", func() error { return boom }))
	require.NoError(t, q.Enqueue(nil, "later", func() error {
		skipped = false
		return nil
	}))

	err := q.Finish()
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "kernel broken")
	assert.True(t, skipped, "commands after a failure must not run")

	// The failure is sticky.
	require.ErrorIs(t, q.Err(), boom)
	require.ErrorIs(t, q.Enqueue(nil, "again", func() error { return nil }), boom)
	require.ErrorIs(t, q.Finish(), boom)
}

func TestQueueTransferErrorUsesLabel(t *testing.T) {
	q := NewQueue()
	defer q.Close()

	require.NoError(t, q.Enqueue(nil, "read", func() error { return errors.New("lost") }))
	err := q.Finish()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read: lost")
}

func TestQueueClose(t *testing.T) {
	q := NewQueue()

	ran := 0
	for i := 0; i < 10; i++ {
		require.NoError(t, q.Enqueue(nil, "step", func() error {
			ran++
			return nil
		}))
	}
	require.NoError(t, q.Close())
	assert.Equal(t, 10, ran, "close drains pending work")

	require.ErrorIs(t, q.Enqueue(nil, "late", func() error { return nil }), ErrQueueClosed)
	require.NoError(t, q.Finish())
	require.NoError(t, q.Close())
}
