package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

// Priority is the urgency level of a todo.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Rank orders priorities for display: urgent ranks highest. Unknown values rank 0.
func (p Priority) Rank() int {
	switch p {
	case PriorityUrgent:
		return 4
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}

// IsValid reports whether p is a known priority.
func (p Priority) IsValid() bool {
	return p.Rank() > 0
}

// Category groups todos on the concierge board.
type Category string

const (
	CategoryPersonal Category = "personal"
	CategoryBusiness Category = "business"
	CategoryTravel   Category = "travel"
	CategoryErrands  Category = "errands"
	CategoryEvents   Category = "events"
	CategoryOther    Category = "other"
)

// Categories lists every known category.
func Categories() []Category {
	return []Category{CategoryPersonal, CategoryBusiness, CategoryTravel, CategoryErrands, CategoryEvents, CategoryOther}
}

// IsValid reports whether c is a known category.
func (c Category) IsValid() bool {
	for _, known := range Categories() {
		if c == known {
			return true
		}
	}
	return false
}

// DueDateLayout is the calendar date format used for DueDate.
const DueDateLayout = "2006-01-02"

// Todo is one entry of the concierge todo list. The JSON field names match
// the array kept under the "conciergeTodos" key by the browser client.
type Todo struct {
	ID        int64     `json:"id"`
	Text      string    `json:"text"`
	Category  Category  `json:"category"`
	Priority  Priority  `json:"priority"`
	DueDate   string    `json:"dueDate"`
	Completed bool      `json:"completed"`
	CreatedAt time.Time `json:"createdAt"`
}

// Due parses DueDate. ok is false when the todo has no usable due date.
func (t Todo) Due() (due time.Time, ok bool) {
	if t.DueDate == "" {
		return time.Time{}, false
	}
	due, err := time.Parse(DueDateLayout, t.DueDate)
	if err != nil {
		return time.Time{}, false
	}
	return due, true
}

// UnmarshalJSON accepts fractional ids, which the browser writes for imported
// rows (Date.now() + Math.random()). The fraction is dropped.
func (t *Todo) UnmarshalJSON(data []byte) error {
	type plain Todo
	aux := struct {
		ID json.Number `json:"id"`
		*plain
	}{plain: (*plain)(t)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	id, err := ParseID(aux.ID.String())
	if err != nil {
		return err
	}
	t.ID = id
	return nil
}

// ParseID reads an integer or fractional id. An empty string is id 0.
func ParseID(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	if id, err := strconv.ParseInt(s, 10, 64); err == nil {
		return id, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, fmt.Errorf("invalid todo id %q", s)
	}
	return int64(f), nil
}
