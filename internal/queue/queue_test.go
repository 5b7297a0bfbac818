package queue_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lux-mev/searcher/internal/errs"
	"github.com/lux-mev/searcher/internal/queue"
)

func TestQueue_PopsHighestPriorityFirst(t *testing.T) {
	q := queue.New(0)
	require.NoError(t, q.Push("low", 1))
	require.NoError(t, q.Push("high", 10))
	require.NoError(t, q.Push("mid", 5))

	v, p, ok := q.Pop()
	require.True(t, ok)
	require.Equal(t, "high", v)
	require.EqualValues(t, 10, p)

	v, _, ok = q.Pop()
	require.True(t, ok)
	require.Equal(t, "mid", v)

	v, _, ok = q.Pop()
	require.True(t, ok)
	require.Equal(t, "low", v)

	_, _, ok = q.Pop()
	require.False(t, ok)
}

func TestQueue_EvictsLowestOnOverflow(t *testing.T) {
	q := queue.New(2)
	require.NoError(t, q.Push("a", 1))
	require.NoError(t, q.Push("b", 2))

	// Pushing a higher priority item should evict "a" (priority 1).
	require.NoError(t, q.Push("c", 3))
	require.Equal(t, 2, q.Len())

	v, _, _ := q.Pop()
	require.Equal(t, "c", v)
	v, _, _ = q.Pop()
	require.Equal(t, "b", v)
}

func TestQueue_RejectsNewLowestOnFullQueue(t *testing.T) {
	q := queue.New(2)
	require.NoError(t, q.Push("a", 5))
	require.NoError(t, q.Push("b", 6))

	err := q.Push("low", 1)
	require.Error(t, err)
	require.True(t, errs.Is(err, errs.QueueOverflow))
	require.Equal(t, 2, q.Len())
}

func TestQueue_UnboundedWithZeroCapacity(t *testing.T) {
	q := queue.New(0)
	for i := 0; i < 1000; i++ {
		require.NoError(t, q.Push(i, queue.Priority(i)))
	}
	require.Equal(t, 1000, q.Len())
}
