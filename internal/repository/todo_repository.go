package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Tomlord1122/concierge-backend/internal/domain"
	"github.com/Tomlord1122/concierge-backend/internal/storage"
)

// TodosKey is the storage key holding the todo list as a JSON array.
const TodosKey = "conciergeTodos"

// TodoRepository defines the interface for todo data operations.
// The whole list is read and written at once, in stored order.
type TodoRepository interface {
	Load(ctx context.Context) ([]domain.Todo, error)
	Save(ctx context.Context, todos []domain.Todo) error
	// Watch reports every saved list, including writes by other repositories
	// sharing the same store.
	Watch() (<-chan []domain.Todo, func())
}

// kvTodoRepository implements TodoRepository on a key-value store
type kvTodoRepository struct {
	store  storage.KeyValueStore
	key    string
	logger *zap.Logger
}

// NewTodoRepository creates a repository keeping todos under TodosKey.
func NewTodoRepository(store storage.KeyValueStore, logger *zap.Logger) TodoRepository {
	return &kvTodoRepository{store: store, key: TodosKey, logger: logger}
}

// Load returns the stored list. A missing key is an empty list. Entries that
// no longer parse are logged and skipped.
func (r *kvTodoRepository) Load(ctx context.Context) ([]domain.Todo, error) {
	raw, err := r.store.Get(ctx, r.key)
	if errors.Is(err, storage.ErrNotFound) {
		return []domain.Todo{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load todos: %w", err)
	}
	return r.decode(raw), nil
}

// Save replaces the stored list with todos.
func (r *kvTodoRepository) Save(ctx context.Context, todos []domain.Todo) error {
	if todos == nil {
		todos = []domain.Todo{}
	}
	raw, err := json.Marshal(todos)
	if err != nil {
		return fmt.Errorf("encode todos: %w", err)
	}
	if err := r.store.Set(ctx, r.key, raw); err != nil {
		return fmt.Errorf("save todos: %w", err)
	}
	return nil
}

// Watch streams the list each time the key changes, from this or any other
// repository on the same store.
func (r *kvTodoRepository) Watch() (<-chan []domain.Todo, func()) {
	raw, cancel := r.store.Subscribe(r.key)
	out := make(chan []domain.Todo, 1)
	go func() {
		defer close(out)
		for value := range raw {
			todos := r.decode(value)
			select {
			case out <- todos:
			default:
				select {
				case <-out:
				default:
				}
				out <- todos
			}
		}
	}()
	return out, cancel
}

// decode reads the stored array element by element so that one unreadable
// entry costs only that entry.
func (r *kvTodoRepository) decode(raw []byte) []domain.Todo {
	todos := []domain.Todo{}
	if len(raw) == 0 {
		return todos
	}
	var records []json.RawMessage
	if err := json.Unmarshal(raw, &records); err != nil {
		r.logger.Warn("discarding unreadable todo list", zap.String("key", r.key), zap.Error(err))
		return todos
	}
	for i, rec := range records {
		var todo domain.Todo
		if err := json.Unmarshal(rec, &todo); err != nil {
			r.logger.Warn("skipping unreadable todo", zap.String("key", r.key), zap.Int("index", i), zap.Error(err))
			continue
		}
		todos = append(todos, todo)
	}
	return todos
}
