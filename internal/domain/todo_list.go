package domain

import (
	"fmt"
	"slices"
	"strings"
)

// Filter selects which todos are displayed.
type Filter string

const (
	FilterAll       Filter = "all"
	FilterActive    Filter = "active"
	FilterCompleted Filter = "completed"
)

// ParseFilter maps an empty string to FilterAll and rejects unknown filters.
func ParseFilter(s string) (Filter, error) {
	switch f := Filter(strings.ToLower(s)); f {
	case "":
		return FilterAll, nil
	case FilterAll, FilterActive, FilterCompleted:
		return f, nil
	default:
		return "", fmt.Errorf("unknown filter %q", s)
	}
}

// SortKey selects the display order of todos.
type SortKey string

const (
	SortByPriority SortKey = "priority"
	SortByCategory SortKey = "category"
	SortByDueDate  SortKey = "dueDate"
)

// ParseSortKey maps an empty string to SortByDueDate, the board's default order.
func ParseSortKey(s string) (SortKey, error) {
	switch s {
	case "", string(SortByDueDate), "due_date":
		return SortByDueDate, nil
	case string(SortByPriority), string(SortByCategory):
		return SortKey(s), nil
	default:
		return "", fmt.Errorf("unknown sort key %q", s)
	}
}

// AddTodo returns a new list with todo at the front. The input list is not modified.
func AddTodo(todos []Todo, todo Todo) []Todo {
	todo.Completed = false
	out := make([]Todo, 0, len(todos)+1)
	out = append(out, todo)
	return append(out, todos...)
}

// ToggleTodo flips the completed flag of the todo with the given id.
// found is false, and the list is returned unchanged, if no todo has that id.
func ToggleTodo(todos []Todo, id int64) (out []Todo, found bool) {
	out = slices.Clone(todos)
	for i := range out {
		if out[i].ID == id {
			out[i].Completed = !out[i].Completed
			return out, true
		}
	}
	return todos, false
}

// DeleteTodo removes the todo with the given id.
func DeleteTodo(todos []Todo, id int64) (out []Todo, found bool) {
	out = slices.DeleteFunc(slices.Clone(todos), func(t Todo) bool { return t.ID == id })
	if len(out) == len(todos) {
		return todos, false
	}
	return out, true
}

// ClearCompleted drops every completed todo and reports how many were removed.
func ClearCompleted(todos []Todo) ([]Todo, int) {
	out := slices.DeleteFunc(slices.Clone(todos), func(t Todo) bool { return t.Completed })
	return out, len(todos) - len(out)
}

// FindTodo returns the todo with the given id.
func FindTodo(todos []Todo, id int64) (Todo, bool) {
	i := slices.IndexFunc(todos, func(t Todo) bool { return t.ID == id })
	if i < 0 {
		return Todo{}, false
	}
	return todos[i], true
}

// FilterTodos returns the todos matching filter. The input is not modified.
func FilterTodos(todos []Todo, filter Filter) []Todo {
	out := make([]Todo, 0, len(todos))
	for _, t := range todos {
		switch filter {
		case FilterActive:
			if t.Completed {
				continue
			}
		case FilterCompleted:
			if !t.Completed {
				continue
			}
		}
		out = append(out, t)
	}
	return out
}

// SortTodos returns a sorted copy of todos. The sort is stable so equal
// elements keep their stored order.
func SortTodos(todos []Todo, key SortKey) []Todo {
	out := slices.Clone(todos)
	switch key {
	case SortByPriority:
		slices.SortStableFunc(out, func(a, b Todo) int {
			return b.Priority.Rank() - a.Priority.Rank()
		})
	case SortByCategory:
		slices.SortStableFunc(out, func(a, b Todo) int {
			return strings.Compare(string(a.Category), string(b.Category))
		})
	case SortByDueDate:
		slices.SortStableFunc(out, func(a, b Todo) int {
			ad, aok := a.Due()
			bd, bok := b.Due()
			switch {
			case !aok && !bok:
				return 0
			case !aok:
				return 1
			case !bok:
				return -1
			}
			return ad.Compare(bd)
		})
	}
	return out
}

// Stats summarises the list for the board footer.
type Stats struct {
	Total     int    `json:"total"`
	Active    int    `json:"active"`
	Completed int    `json:"completed"`
	Label     string `json:"label"`
}

// ComputeStats counts active and completed todos.
func ComputeStats(todos []Todo) Stats {
	s := Stats{Total: len(todos)}
	for _, t := range todos {
		if t.Completed {
			s.Completed++
		}
	}
	s.Active = s.Total - s.Completed
	s.Label = fmt.Sprintf("%d active, %d completed", s.Active, s.Completed)
	return s
}
