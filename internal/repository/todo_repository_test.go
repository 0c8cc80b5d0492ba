package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Tomlord1122/concierge-backend/internal/domain"
	"github.com/Tomlord1122/concierge-backend/internal/storage"
)

func TestLoadMissingKeyIsEmpty(t *testing.T) {
	repo := NewTodoRepository(storage.NewMemoryStore(), zap.NewNop())
	todos, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, todos)
	assert.Empty(t, todos)
}

func TestSaveUsesBrowserFieldNames(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	repo := NewTodoRepository(store, zap.NewNop())

	created := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Save(ctx, []domain.Todo{{
		ID: 1735722000000, Text: "Buy milk", Category: domain.CategoryErrands,
		Priority: domain.PriorityHigh, DueDate: "2025-01-02", CreatedAt: created,
	}}))

	raw, err := store.Get(ctx, TodosKey)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":1735722000000,"text":"Buy milk","category":"errands","priority":"high",
		"dueDate":"2025-01-02","completed":false,"createdAt":"2025-01-01T09:00:00Z"}]`, string(raw))

	todos, err := repo.Load(ctx)
	require.NoError(t, err)
	require.Len(t, todos, 1)
	assert.Equal(t, "Buy milk", todos[0].Text)
	assert.True(t, created.Equal(todos[0].CreatedAt))
}

func TestLoadCorruptValueFallsBackToEmpty(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	require.NoError(t, store.Set(ctx, TodosKey, []byte(`{not json`)))

	todos, err := NewTodoRepository(store, zap.NewNop()).Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, todos)
}

func TestWatchSeesWritesFromOtherRepository(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	watcher := NewTodoRepository(store, zap.NewNop())
	writer := NewTodoRepository(store, zap.NewNop())

	updates, cancel := watcher.Watch()
	defer cancel()

	require.NoError(t, writer.Save(ctx, []domain.Todo{{ID: 7, Text: "Call tailor"}}))

	select {
	case todos := <-updates:
		require.Len(t, todos, 1)
		assert.Equal(t, int64(7), todos[0].ID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for watch update")
	}
}

func TestLoadKeepsFractionalIDsAndSkipsBadEntries(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	require.NoError(t, store.Set(ctx, TodosKey, []byte(`[
		{"id":1700000000000,"text":"Confirm spa booking","category":"personal","priority":"high","dueDate":"","completed":false,"createdAt":"2025-01-01T09:00:00Z"},
		{"id":1700000000001.42,"text":"Imported from CSV","category":"other","priority":"medium","dueDate":"","completed":true,"createdAt":"2025-01-01T09:00:00Z"},
		{"id":"not-a-number","text":"Broken"},
		{"id":1700000000002,"text":"Arrange airport pickup","category":"travel","priority":"urgent","dueDate":"2025-01-03","completed":false,"createdAt":"2025-01-01T09:00:00Z"}
	]`)))

	repo := NewTodoRepository(store, zap.NewNop())
	todos, err := repo.Load(ctx)
	require.NoError(t, err)
	require.Len(t, todos, 3)
	assert.Equal(t, int64(1700000000000), todos[0].ID)
	assert.Equal(t, int64(1700000000001), todos[1].ID)
	assert.Equal(t, "Imported from CSV", todos[1].Text)
	assert.True(t, todos[1].Completed)
	assert.Equal(t, domain.PriorityUrgent, todos[2].Priority)

	require.NoError(t, repo.Save(ctx, todos))
	again, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, todos, again)
}
