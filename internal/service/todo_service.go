package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/Tomlord1122/concierge-backend/internal/domain"
	"github.com/Tomlord1122/concierge-backend/internal/repository"
)

var (
	// ErrTodoNotFound is returned when no todo has the requested id.
	ErrTodoNotFound = errors.New("todo not found")

	// ErrInvalidTodo wraps request validation failures.
	ErrInvalidTodo = errors.New("invalid todo")

	// ErrInvalidQuery is returned for an unknown filter or sort key.
	ErrInvalidQuery = errors.New("invalid query")
)

// MaxTodoTextLength is the longest todo text, in runes, that is accepted.
const MaxTodoTextLength = 500

// CreateTodoRequest holds the data needed to create a new todo
type CreateTodoRequest struct {
	Text     string `json:"text" validate:"required,max=500"`
	Category string `json:"category" validate:"omitempty,oneof=personal business travel errands events other"`
	Priority string `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	DueDate  string `json:"dueDate" validate:"omitempty,datetime=2006-01-02"`
}

// ListTodosRequest selects the view of the list. Empty fields mean "all" and
// "dueDate".
type ListTodosRequest struct {
	Filter string
	Sort   string
}

// TodoResponse is the standard representation of a Todo returned by the service.
type TodoResponse struct {
	ID        int64  `json:"id"`
	Text      string `json:"text"`
	Category  string `json:"category"`
	Priority  string `json:"priority"`
	DueDate   string `json:"dueDate,omitempty"`
	Completed bool   `json:"completed"`
	CreatedAt string `json:"createdAt"`
}

// TodoService defines the operations for managing todos.
// The stored order is newest first; filtering and sorting only shape the
// returned view.
type TodoService interface {
	CreateTodo(ctx context.Context, req CreateTodoRequest) (*TodoResponse, error)
	GetTodoByID(ctx context.Context, id int64) (*TodoResponse, error)
	ListTodos(ctx context.Context, req ListTodosRequest) ([]TodoResponse, error)
	ToggleTodo(ctx context.Context, id int64) (*TodoResponse, error)
	DeleteTodo(ctx context.Context, id int64) error
	ClearCompleted(ctx context.Context) (int, error)
	Stats(ctx context.Context) (domain.Stats, error)

	// ExportTodos writes the stored list to w.
	ExportTodos(ctx context.Context, format Format, w io.Writer) error

	// ImportTodos appends the todos read from r and returns how many were added.
	ImportTodos(ctx context.Context, format Format, r io.Reader) (int, error)
}

// Option configures a todo service.
type Option func(*todoService)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *todoService) {
		s.now = now
		s.ids.now = now
	}
}

// todoService implements the TodoService interface.
type todoService struct {
	repo     repository.TodoRepository
	logger   *zap.Logger
	validate *validator.Validate
	now      func() time.Time
	ids      *idGenerator

	// mu serialises load-modify-save cycles so concurrent requests do not
	// overwrite each other's changes.
	mu sync.Mutex
}

// NewTodoService creates a new instance of todoService.
func NewTodoService(repo repository.TodoRepository, logger *zap.Logger, opts ...Option) TodoService {
	s := &todoService{
		repo:     repo,
		logger:   logger,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		now:      time.Now,
		ids:      &idGenerator{now: time.Now},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *todoService) CreateTodo(ctx context.Context, req CreateTodoRequest) (*TodoResponse, error) {
	req.Text = strings.TrimSpace(req.Text)
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidTodo, describeValidation(err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	todos, err := s.repo.Load(ctx)
	if err != nil {
		s.logger.Error("load todos for create", zap.Error(err))
		return nil, err
	}
	for _, t := range todos {
		s.ids.reserve(t.ID)
	}

	category := domain.Category(req.Category)
	if category == "" {
		category = domain.CategoryOther
	}
	priority := domain.Priority(req.Priority)
	if priority == "" {
		priority = domain.PriorityMedium
	}

	newTodo := domain.Todo{
		ID:        s.ids.Next(),
		Text:      req.Text,
		Category:  category,
		Priority:  priority,
		DueDate:   req.DueDate,
		CreatedAt: s.now().UTC(),
	}

	if err := s.repo.Save(ctx, domain.AddTodo(todos, newTodo)); err != nil {
		s.logger.Error("save created todo", zap.Int64("id", newTodo.ID), zap.Error(err))
		return nil, err
	}

	s.logger.Info("todo created", zap.Int64("id", newTodo.ID), zap.String("priority", string(priority)))
	return toResponse(newTodo), nil
}

func (s *todoService) GetTodoByID(ctx context.Context, id int64) (*TodoResponse, error) {
	todos, err := s.repo.Load(ctx)
	if err != nil {
		return nil, err
	}
	todo, ok := domain.FindTodo(todos, id)
	if !ok {
		return nil, fmt.Errorf("%w: id %d", ErrTodoNotFound, id)
	}
	return toResponse(todo), nil
}

func (s *todoService) ListTodos(ctx context.Context, req ListTodosRequest) ([]TodoResponse, error) {
	filter, err := domain.ParseFilter(req.Filter)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}
	sortKey, err := domain.ParseSortKey(req.Sort)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}

	todos, err := s.repo.Load(ctx)
	if err != nil {
		s.logger.Error("load todos for list", zap.Error(err))
		return nil, err
	}

	view := domain.SortTodos(domain.FilterTodos(todos, filter), sortKey)
	responses := make([]TodoResponse, 0, len(view))
	for _, todo := range view {
		responses = append(responses, *toResponse(todo))
	}
	return responses, nil
}

func (s *todoService) ToggleTodo(ctx context.Context, id int64) (*TodoResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	todos, err := s.repo.Load(ctx)
	if err != nil {
		return nil, err
	}
	updated, found := domain.ToggleTodo(todos, id)
	if !found {
		return nil, fmt.Errorf("%w: id %d", ErrTodoNotFound, id)
	}
	if err := s.repo.Save(ctx, updated); err != nil {
		s.logger.Error("save toggled todo", zap.Int64("id", id), zap.Error(err))
		return nil, err
	}
	todo, _ := domain.FindTodo(updated, id)
	return toResponse(todo), nil
}

func (s *todoService) DeleteTodo(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	todos, err := s.repo.Load(ctx)
	if err != nil {
		return err
	}
	remaining, found := domain.DeleteTodo(todos, id)
	if !found {
		return fmt.Errorf("%w: id %d", ErrTodoNotFound, id)
	}
	if err := s.repo.Save(ctx, remaining); err != nil {
		s.logger.Error("save after delete", zap.Int64("id", id), zap.Error(err))
		return err
	}
	return nil
}

func (s *todoService) ClearCompleted(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	todos, err := s.repo.Load(ctx)
	if err != nil {
		return 0, err
	}
	remaining, removed := domain.ClearCompleted(todos)
	if removed == 0 {
		return 0, nil
	}
	if err := s.repo.Save(ctx, remaining); err != nil {
		s.logger.Error("save after clearing completed", zap.Error(err))
		return 0, err
	}
	return removed, nil
}

func (s *todoService) Stats(ctx context.Context) (domain.Stats, error) {
	todos, err := s.repo.Load(ctx)
	if err != nil {
		return domain.Stats{}, err
	}
	return domain.ComputeStats(todos), nil
}

func toResponse(todo domain.Todo) *TodoResponse {
	return &TodoResponse{
		ID:        todo.ID,
		Text:      todo.Text,
		Category:  string(todo.Category),
		Priority:  string(todo.Priority),
		DueDate:   todo.DueDate,
		Completed: todo.Completed,
		CreatedAt: todo.CreatedAt.Format(time.RFC3339),
	}
}

func describeValidation(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, field+" cannot be empty")
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of [%s]", field, fe.Param()))
		case "datetime":
			msgs = append(msgs, fmt.Sprintf("%s must be a date like %s", field, fe.Param()))
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s exceeds %s characters", field, fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s", field, fe.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}

// idGenerator hands out millisecond timestamps, bumping past the last id so
// two todos created in the same millisecond never share one.
type idGenerator struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

func (g *idGenerator) Next() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := g.now().UnixMilli()
	if id <= g.last {
		id = g.last + 1
	}
	g.last = id
	return id
}

// reserve makes sure later ids are above id.
func (g *idGenerator) reserve(id int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if id > g.last {
		g.last = id
	}
}
