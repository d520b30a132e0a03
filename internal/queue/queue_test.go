package queue

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestQueue(t *testing.T, prefix string) (*Queue, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	q := New(Options{Addr: mr.Addr(), Prefix: prefix})
	t.Cleanup(func() { _ = q.Close() })
	return q, mr
}

func TestQueue_Keys(t *testing.T) {
	q := NewWithClient(nil, "counter")
	assert.Equal(t, []string{"counter:todo", "counter:doing", "counter:failed"}, q.Keys())
}

func TestQueue_EmptyListsAreZero(t *testing.T) {
	q, _ := newTestQueue(t, "counter")

	counts, err := q.Counts(context.Background())
	require.NoError(t, err)
	assert.Zero(t, counts.Todo)
	assert.Zero(t, counts.Doing)
	assert.Zero(t, counts.Failed)
}

func TestQueue_Counts(t *testing.T) {
	q, mr := newTestQueue(t, "counter")
	ctx := context.Background()

	_, err := mr.Push("counter:todo", "a", "b", "c")
	require.NoError(t, err)
	_, err = mr.Push("counter:doing", "d")
	require.NoError(t, err)
	// a list under another prefix must not be counted
	_, err = mr.Push("other:failed", "x", "y")
	require.NoError(t, err)

	todo, err := q.TodoCount(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, todo)

	doing, err := q.DoingCount(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, doing)

	failed, err := q.FailedCount(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 0, failed)

	counts, err := q.Counts(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, counts.Todo)
	assert.EqualValues(t, 1, counts.Doing)
	assert.EqualValues(t, 0, counts.Failed)
}

func TestQueue_ReadsDoNotMutate(t *testing.T) {
	q, mr := newTestQueue(t, "jobs")
	_, err := mr.Push("jobs:failed", "1", "2")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		n, err := q.FailedCount(context.Background())
		require.NoError(t, err)
		assert.EqualValues(t, 2, n)
	}
	list, err := mr.List("jobs:failed")
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, list)
}

func TestQueue_StoreUnavailable(t *testing.T) {
	q, mr := newTestQueue(t, "counter")
	mr.Close()

	_, err := q.Counts(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStoreUnavailable))

	var storeErr *StoreUnavailableError
	require.True(t, errors.As(err, &storeErr))
	assert.Equal(t, "counter:todo", storeErr.Key)
}

func TestQueue_WrongTypeIsNotStoreUnavailable(t *testing.T) {
	q, mr := newTestQueue(t, "counter")
	require.NoError(t, mr.Set("counter:doing", "not a list"))

	todo, err := q.TodoCount(context.Background())
	require.NoError(t, err)
	assert.Zero(t, todo)

	_, err = q.DoingCount(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotAList))
	assert.False(t, errors.Is(err, ErrStoreUnavailable))

	var typeErr *KeyTypeError
	require.True(t, errors.As(err, &typeErr))
	assert.Equal(t, "counter:doing", typeErr.Key)
	assert.Contains(t, err.Error(), "WRONGTYPE")
}
