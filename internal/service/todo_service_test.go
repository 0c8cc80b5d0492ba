package service

import (
	"bytes"
	"context"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Tomlord1122/concierge-backend/internal/domain"
	"github.com/Tomlord1122/concierge-backend/internal/repository"
	"github.com/Tomlord1122/concierge-backend/internal/storage"
)

var fixedNow = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (TodoService, repository.TodoRepository) {
	t.Helper()
	repo := repository.NewTodoRepository(storage.NewMemoryStore(), zap.NewNop())
	return NewTodoService(repo, zap.NewNop(), WithClock(func() time.Time { return fixedNow })), repo
}

func TestTodoLifecycle(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	created, err := svc.CreateTodo(ctx, CreateTodoRequest{
		Text: "  Buy milk ", Category: "errands", Priority: "high", DueDate: "2025-01-01",
	})
	require.NoError(t, err)
	assert.Equal(t, "Buy milk", created.Text)
	assert.False(t, created.Completed)
	assert.Equal(t, fixedNow.UnixMilli(), created.ID)

	list, err := svc.ListTodos(ctx, ListTodosRequest{})
	require.NoError(t, err)
	require.Len(t, list, 1)

	toggled, err := svc.ToggleTodo(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, toggled.Completed)

	require.NoError(t, svc.DeleteTodo(ctx, created.ID))
	list, err = svc.ListTodos(ctx, ListTodosRequest{})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestCreateTodoDefaultsAndValidation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	created, err := svc.CreateTodo(ctx, CreateTodoRequest{Text: "Plan gala"})
	require.NoError(t, err)
	assert.Equal(t, "other", created.Category)
	assert.Equal(t, "medium", created.Priority)

	for name, req := range map[string]CreateTodoRequest{
		"blank text":   {Text: "   "},
		"bad priority": {Text: "x", Priority: "critical"},
		"bad category": {Text: "x", Category: "misc"},
		"bad due date": {Text: "x", DueDate: "01/02/2025"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.CreateTodo(ctx, req)
			assert.ErrorIs(t, err, ErrInvalidTodo)
		})
	}
}

func TestCreateTodoIDsAreUniqueWithinAMillisecond(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.CreateTodo(ctx, CreateTodoRequest{Text: "rapid"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	list, err := svc.ListTodos(ctx, ListTodosRequest{})
	require.NoError(t, err)
	require.Len(t, list, 20)
	seen := map[int64]bool{}
	for _, todo := range list {
		assert.False(t, seen[todo.ID], "duplicate id %d", todo.ID)
		seen[todo.ID] = true
	}
}

func TestListTodosFilterAndSort(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	for _, p := range []string{"low", "urgent", "medium", "high"} {
		_, err := svc.CreateTodo(ctx, CreateTodoRequest{Text: p, Priority: p})
		require.NoError(t, err)
	}
	list, err := svc.ListTodos(ctx, ListTodosRequest{Sort: "priority"})
	require.NoError(t, err)
	var got []string
	for _, todo := range list {
		got = append(got, todo.Priority)
	}
	assert.Equal(t, []string{"urgent", "high", "medium", "low"}, got)

	_, err = svc.ToggleTodo(ctx, list[0].ID)
	require.NoError(t, err)

	completed, err := svc.ListTodos(ctx, ListTodosRequest{Filter: "completed"})
	require.NoError(t, err)
	require.Len(t, completed, 1)
	assert.Equal(t, "urgent", completed[0].Priority)

	active, err := svc.ListTodos(ctx, ListTodosRequest{Filter: "active"})
	require.NoError(t, err)
	assert.Len(t, active, 3)

	_, err = svc.ListTodos(ctx, ListTodosRequest{Filter: "archived"})
	assert.ErrorIs(t, err, ErrInvalidQuery)
}

func TestNotFoundErrors(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	_, err := svc.GetTodoByID(ctx, 1)
	assert.ErrorIs(t, err, ErrTodoNotFound)
	_, err = svc.ToggleTodo(ctx, 1)
	assert.ErrorIs(t, err, ErrTodoNotFound)
	assert.ErrorIs(t, svc.DeleteTodo(ctx, 1), ErrTodoNotFound)
}

func TestClearCompletedAndStats(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	a, err := svc.CreateTodo(ctx, CreateTodoRequest{Text: "a"})
	require.NoError(t, err)
	_, err = svc.CreateTodo(ctx, CreateTodoRequest{Text: "b"})
	require.NoError(t, err)
	_, err = svc.ToggleTodo(ctx, a.ID)
	require.NoError(t, err)

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1 active, 1 completed", stats.Label)

	removed, err := svc.ClearCompleted(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	stats, err = svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.Stats{Total: 1, Active: 1, Label: "1 active, 0 completed"}, stats)
}

func TestCSVExportImportRoundTripsCommasAndQuotes(t *testing.T) {
	ctx := context.Background()
	src, _ := newTestService(t)

	_, err := src.CreateTodo(ctx, CreateTodoRequest{Text: `Book table for 4, "window" seat`, Category: "events", Priority: "urgent", DueDate: "2025-02-14"})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, src.ExportTodos(ctx, FormatCSV, &buf))
	assert.True(t, strings.HasPrefix(buf.String(), "ID,Text,Category,Priority,Due Date,Completed,Created At\n"))

	dst, _ := newTestService(t)
	n, err := dst.ImportTodos(ctx, FormatCSV, &buf)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	list, err := dst.ListTodos(ctx, ListTodosRequest{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, `Book table for 4, "window" seat`, list[0].Text)
	assert.Equal(t, "events", list[0].Category)
	assert.Equal(t, "urgent", list[0].Priority)
	assert.Equal(t, "2025-02-14", list[0].DueDate)
}

func TestImportBrowserCSV(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	in := "ID,Text,Category,Priority,Due Date,Completed,Created At\n" +
		`1735689600000,"Collect dry cleaning",errands,low,,true,2025-01-01T00:00:00.000Z` + "\n" +
		"\n" +
		`1735689600001,"Walk dog",unknown,whenever,,false,` + "\n"

	n, err := svc.ImportTodos(ctx, FormatCSV, strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	todo, err := svc.GetTodoByID(ctx, 1735689600001)
	require.NoError(t, err)
	assert.Equal(t, "other", todo.Category)
	assert.Equal(t, "medium", todo.Priority)

	todo, err = svc.GetTodoByID(ctx, 1735689600000)
	require.NoError(t, err)
	assert.True(t, todo.Completed)
}

func TestImportJSONAppendsAndReassignsDuplicateIDs(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTestService(t)

	existing, err := svc.CreateTodo(ctx, CreateTodoRequest{Text: "existing"})
	require.NoError(t, err)

	in := `[
		{"id": ` + strconv.FormatInt(existing.ID, 10) + `, "text": "clash", "category": "travel", "priority": "high"},
		{"id": 1735689600000.42, "text": "fractional", "category": "business", "priority": "low", "completed": true},
		{"id": 0, "text": "   "}
	]`
	n, err := svc.ImportTodos(ctx, FormatJSON, strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	todos, err := repo.Load(ctx)
	require.NoError(t, err)
	require.Len(t, todos, 3)
	assert.Equal(t, "existing", todos[0].Text, "imports are appended")
	assert.NotEqual(t, existing.ID, todos[1].ID)
	assert.Equal(t, int64(1735689600000), todos[2].ID)
	assert.True(t, fixedNow.Equal(todos[1].CreatedAt))
}

func TestImportSkipsOversizedText(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTestService(t)

	long := strings.Repeat("é", MaxTodoTextLength+1)
	limit := strings.Repeat("a", MaxTodoTextLength)
	in := "ID,Text,Category,Priority,Due Date,Completed,Created At\n" +
		"1735689600000," + long + ",personal,low,,false,\n" +
		"1735689600001," + limit + ",personal,low,,false,\n"

	n, err := svc.ImportTodos(ctx, FormatCSV, strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	todos, err := repo.Load(ctx)
	require.NoError(t, err)
	require.Len(t, todos, 1)
	assert.Equal(t, limit, todos[0].Text)

	_, err = svc.CreateTodo(ctx, CreateTodoRequest{Text: long})
	assert.ErrorIs(t, err, ErrInvalidTodo)
}

func TestImportRejectsMalformedAndUnsupported(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	_, err := svc.ImportTodos(ctx, FormatJSON, strings.NewReader(`{"id":1}`))
	assert.ErrorIs(t, err, ErrMalformedImport)

	_, err = svc.ImportTodos(ctx, FormatCSV, strings.NewReader(""))
	assert.ErrorIs(t, err, ErrMalformedImport)

	_, err = svc.ImportTodos(ctx, Format("xml"), strings.NewReader(""))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	assert.ErrorIs(t, svc.ExportTodos(ctx, Format("xml"), &bytes.Buffer{}), ErrUnsupportedFormat)
}

func TestJSONExportIsStoredOrder(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	_, err := svc.CreateTodo(ctx, CreateTodoRequest{Text: "first", Priority: "low"})
	require.NoError(t, err)
	_, err = svc.CreateTodo(ctx, CreateTodoRequest{Text: "second", Priority: "urgent"})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, svc.ExportTodos(ctx, FormatJSON, &buf))
	out := buf.String()
	assert.Less(t, strings.Index(out, "second"), strings.Index(out, "first"))
	assert.Contains(t, out, `"dueDate"`)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("CSV")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)
	assert.Equal(t, "text/csv", f.ContentType())
	assert.Equal(t, "concierge-todos.csv", f.Filename())

	f, err = FormatFromFilename("backup.json")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)

	_, err = FormatFromFilename("notes.txt")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}
