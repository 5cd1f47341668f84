package taskqueue

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Pawan459/url-shortener/pkg/logx"
)

func TestOrderPreserved(t *testing.T) {
	q := New(logx.Nop())
	defer q.Close()

	var mu sync.Mutex
	var got []int
	for i := 0; i < 100; i++ {
		i := i
		require.NoError(t, q.Enqueue(func() error {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
			return nil
		}))
	}
	q.Drain()

	require.Len(t, got, 100)
	for i, v := range got {
		require.Equal(t, i, v)
	}
}

func TestFailureDoesNotHaltQueue(t *testing.T) {
	q := New(logx.Nop())
	defer q.Close()

	ran := false
	require.NoError(t, q.Enqueue(func() error { return errors.New("boom") }))
	require.NoError(t, q.Enqueue(func() error { panic("worse") }))
	require.NoError(t, q.Enqueue(func() error { ran = true; return nil }))
	q.Drain()

	require.True(t, ran, "task after failures should still run")
}

func TestReentrantEnqueue(t *testing.T) {
	q := New(logx.Nop())
	defer q.Close()

	var order []string
	require.NoError(t, q.Enqueue(func() error {
		order = append(order, "outer")
		return q.Enqueue(func() error {
			order = append(order, "inner")
			return nil
		})
	}))
	require.NoError(t, q.Enqueue(func() error {
		order = append(order, "second")
		return nil
	}))
	q.Drain()

	require.Equal(t, []string{"outer", "second", "inner"}, order)
}

func TestCloseDrainsQueuedTasks(t *testing.T) {
	q := New(logx.Nop())

	var mu sync.Mutex
	n := 0
	for i := 0; i < 50; i++ {
		require.NoError(t, q.Enqueue(func() error {
			mu.Lock()
			n++
			mu.Unlock()
			return nil
		}))
	}
	q.Close()

	require.Equal(t, 50, n)
	require.ErrorIs(t, q.Enqueue(func() error { return nil }), ErrClosed)
}

func TestConcurrentEnqueue(t *testing.T) {
	q := New(logx.Nop())
	defer q.Close()

	var mu sync.Mutex
	seen := map[int]bool{}
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				v := i*20 + j
				_ = q.Enqueue(func() error {
					mu.Lock()
					seen[v] = true
					mu.Unlock()
					return nil
				})
			}
		}(i)
	}
	wg.Wait()
	q.Drain()

	require.Len(t, seen, 400)
}
