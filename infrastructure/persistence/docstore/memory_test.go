package docstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "knowde-backend/pkg/errors"
)

type testDoc struct {
	Name string `json:"name"`
}

func TestMemoryStore_ReadAfterWrite(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	path := PlanPath("user123", "plan123")

	require.NoError(t, store.Set(ctx, path, testDoc{Name: "Linear Algebra"}))

	var out testDoc
	require.NoError(t, store.Get(ctx, path, &out))
	assert.Equal(t, "Linear Algebra", out.Name)
}

func TestMemoryStore_GetMissingIsNotFound(t *testing.T) {
	store := NewMemoryStore()

	var out testDoc
	err := store.Get(context.Background(), PlanPath("user123", "missing"), &out)

	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestMemoryStore_SetOverwrites(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	path := PlanPath("user123", "plan123")

	require.NoError(t, store.Set(ctx, path, testDoc{Name: "first"}))
	require.NoError(t, store.Set(ctx, path, testDoc{Name: "second"}))

	var out testDoc
	require.NoError(t, store.Get(ctx, path, &out))
	assert.Equal(t, "second", out.Name)
	assert.Equal(t, 1, store.Len())
}

func TestMemoryStore_StreamReturnsDirectChildrenOnly(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, PlanPath("user123", "plan1"), testDoc{Name: "plan1"}))
	require.NoError(t, store.Set(ctx, PlanPath("user123", "plan2"), testDoc{Name: "plan2"}))
	// Nested lesson documents must not show up under the plans collection
	require.NoError(t, store.Set(ctx, LessonPath("user123", "plan1", "l1"), testDoc{Name: "l1"}))
	// Another user's plans must not show up either
	require.NoError(t, store.Set(ctx, PlanPath("other", "plan3"), testDoc{Name: "plan3"}))

	docs, err := store.Stream(ctx, UserPath("user123")+"/lessonPlans")

	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, PlanPath("user123", "plan1"), docs[0].Path)
	assert.Equal(t, PlanPath("user123", "plan2"), docs[1].Path)
}

func TestMemoryStore_StreamEmptyPrefix(t *testing.T) {
	store := NewMemoryStore()

	docs, err := store.Stream(context.Background(), NodesPrefix("user123"))

	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestMemoryStore_Delete(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	path := NodePath("user123", "c1")

	require.NoError(t, store.Set(ctx, path, testDoc{Name: "Vectors"}))
	require.NoError(t, store.Delete(ctx, path))
	require.NoError(t, store.Delete(ctx, path))

	var out testDoc
	assert.True(t, pkgerrors.IsNotFound(store.Get(ctx, path, &out)))
}

func TestLocalRunLocker_SerializesSameKey(t *testing.T) {
	locker := NewLocalRunLocker()
	ctx := context.Background()

	lock, err := locker.Acquire(ctx, "users/carl", "run1", time.Minute)
	require.NoError(t, err)

	// A second acquire on the same key blocks until the first releases
	blockedCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, err = locker.Acquire(blockedCtx, "users/carl", "run2", time.Minute)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, lock.Release(ctx))

	next, err := locker.Acquire(ctx, "users/carl", "run3", time.Minute)
	require.NoError(t, err)
	require.NoError(t, next.Release(ctx))
}

func TestLocalRunLocker_IndependentKeys(t *testing.T) {
	locker := NewLocalRunLocker()
	ctx := context.Background()

	first, err := locker.Acquire(ctx, "users/carl", "run1", time.Minute)
	require.NoError(t, err)
	second, err := locker.Acquire(ctx, "users/dana", "run2", time.Minute)
	require.NoError(t, err)

	require.NoError(t, first.Release(ctx))
	require.NoError(t, second.Release(ctx))
}

func TestLocalRunLock_ReleaseIsIdempotent(t *testing.T) {
	locker := NewLocalRunLocker()
	ctx := context.Background()

	lock, err := locker.Acquire(ctx, "users/carl", "run1", time.Minute)
	require.NoError(t, err)

	require.NoError(t, lock.Release(ctx))
	require.NoError(t, lock.Release(ctx))
}
