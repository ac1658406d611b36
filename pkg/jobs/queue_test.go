package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueProcessesAndDrainsOnStop(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []int
	)
	q := New("test", func(_ context.Context, n int) error {
		mu.Lock()
		seen = append(seen, n)
		mu.Unlock()
		return nil
	}, Config{Workers: 1, BufferSize: 16})

	require.ErrorIs(t, q.TrySubmit(1), ErrNotRunning)

	q.Start(context.Background())
	for i := 0; i < 10; i++ {
		require.NoError(t, q.TrySubmit(i))
	}
	require.NoError(t, q.Stop(context.Background()))

	assert.Len(t, seen, 10)
	assert.False(t, q.Running())
	assert.ErrorIs(t, q.TrySubmit(11), ErrNotRunning)
}

func TestQueueRetriesFailedJobs(t *testing.T) {
	var calls int32
	q := New("retry", func(context.Context, string) error {
		if atomic.AddInt32(&calls, 1) < 3 {
			return errors.New("transient")
		}
		return nil
	}, Config{MaxRetries: 5, RetryMin: time.Millisecond, RetryMax: 2 * time.Millisecond})

	q.Start(context.Background())
	require.NoError(t, q.TrySubmit("job"))
	require.NoError(t, q.Stop(context.Background()))

	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestQueueGivesUpAfterMaxRetries(t *testing.T) {
	var calls int32
	q := New("fail", func(context.Context, string) error {
		atomic.AddInt32(&calls, 1)
		return errors.New("permanent")
	}, Config{MaxRetries: 2, RetryMin: time.Millisecond, RetryMax: time.Millisecond})

	q.Start(context.Background())
	require.NoError(t, q.TrySubmit("job"))
	require.NoError(t, q.Stop(context.Background()))

	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestQueueTrySubmitReportsFullBuffer(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	q := New("full", func(context.Context, int) error {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
		return nil
	}, Config{Workers: 1, BufferSize: 1})

	q.Start(context.Background())
	require.NoError(t, q.TrySubmit(1))
	<-started
	require.NoError(t, q.TrySubmit(2))
	assert.ErrorIs(t, q.TrySubmit(3), ErrQueueFull)

	close(release)
	require.NoError(t, q.Stop(context.Background()))
}
