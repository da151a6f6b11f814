package task

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskboard/internal/model"
)

func TestMemoryRepo_CRUD(t *testing.T) {
	r := NewMemoryRepo()

	ts, err := r.List()
	require.NoError(t, err)
	assert.Empty(t, ts)

	all, err := r.Create(model.TaskInput{Title: "Alpha task"})
	require.NoError(t, err)
	require.Len(t, all, 1)
	id := all[0].ID

	got, err := r.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "Alpha task", got.Title)

	updated, err := r.Update(id, Patch{Description: strp("more detail")})
	require.NoError(t, err)
	assert.Equal(t, "more detail", updated.Description)
	assert.Equal(t, "Alpha task", updated.Title)

	require.NoError(t, r.Delete(id))
	assert.ErrorIs(t, r.Delete(id), ErrNotFound)
	_, err = r.Get(id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryRepo_Seed(t *testing.T) {
	r := NewMemoryRepo()
	require.NoError(t, r.Seed([]byte(`{"tasks": [
  {"id": "t1", "title": "First", "priority": "high", "createdAt": "2026-01-01T10:00:00Z"},
  {"id": "t2", "title": "Second", "status": "completed", "createdAt": "2026-01-01T10:00:00Z", "owner": "ops"}
]}`)))

	ts, err := r.List()
	require.NoError(t, err)
	require.Len(t, ts, 2)
	assert.Equal(t, model.TaskID("t1"), ts[0].ID)
	assert.Equal(t, []string{}, ts[0].Tags)
	assert.True(t, time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC).Equal(ts[1].CreatedAt))
	assert.Contains(t, string(ts[1].Raw()), `"owner":"ops"`)

	require.NoError(t, r.Delete("t1"))
	ts, err = r.List()
	require.NoError(t, err)
	require.Len(t, ts, 1)
	assert.Equal(t, "Second", ts[0].Title)
}

func TestMemoryRepo_SeedRejectsMalformedTemplate(t *testing.T) {
	r := NewMemoryRepo()
	assert.Error(t, r.Seed([]byte(`{"tasks": [`)))

	ts, err := r.List()
	require.NoError(t, err)
	assert.Empty(t, ts)
}

func TestMemoryRepo_ConcurrentCreates(t *testing.T) {
	r := NewMemoryRepo()

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Create(model.TaskInput{Title: "parallel"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	ts, err := r.List()
	require.NoError(t, err)
	assert.Len(t, ts, 20)
}
