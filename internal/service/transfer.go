package service

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/Tomlord1122/concierge-backend/internal/domain"
)

// Format is an export/import file format.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

var (
	// ErrUnsupportedFormat is returned for formats other than json and csv.
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrMalformedImport is returned when an import file cannot be parsed.
	ErrMalformedImport = errors.New("malformed import file")
)

var csvHeader = []string{"ID", "Text", "Category", "Priority", "Due Date", "Completed", "Created At"}

// ParseFormat accepts "json" or "csv" in any case.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatCSV:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
}

// FormatFromFilename picks the format from a .json or .csv extension.
func FormatFromFilename(name string) (Format, error) {
	return ParseFormat(strings.TrimPrefix(filepath.Ext(name), "."))
}

// ContentType returns the MIME type for f.
func (f Format) ContentType() string {
	if f == FormatCSV {
		return "text/csv"
	}
	return "application/json"
}

// Filename is the download name used by the board.
func (f Format) Filename() string {
	return "concierge-todos." + string(f)
}

func (s *todoService) ExportTodos(ctx context.Context, format Format, w io.Writer) error {
	todos, err := s.repo.Load(ctx)
	if err != nil {
		return err
	}

	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(todos)
	case FormatCSV:
		cw := csv.NewWriter(w)
		if err := cw.Write(csvHeader); err != nil {
			return err
		}
		for _, t := range todos {
			row := []string{
				strconv.FormatInt(t.ID, 10),
				t.Text,
				string(t.Category),
				string(t.Priority),
				t.DueDate,
				strconv.FormatBool(t.Completed),
				t.CreatedAt.Format(time.RFC3339Nano),
			}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

func (s *todoService) ImportTodos(ctx context.Context, format Format, r io.Reader) (int, error) {
	var (
		imported []domain.Todo
		err      error
	)
	switch format {
	case FormatJSON:
		imported, err = decodeJSONTodos(r)
	case FormatCSV:
		imported, err = decodeCSVTodos(r)
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	todos, err := s.repo.Load(ctx)
	if err != nil {
		return 0, err
	}

	seen := make(map[int64]bool, len(todos)+len(imported))
	for _, t := range todos {
		seen[t.ID] = true
		s.ids.reserve(t.ID)
	}
	for _, t := range imported {
		if t.ID > 0 {
			s.ids.reserve(t.ID)
		}
	}

	added := 0
	for _, t := range imported {
		t.Text = strings.TrimSpace(t.Text)
		if t.Text == "" {
			continue
		}
		if utf8.RuneCountInString(t.Text) > MaxTodoTextLength {
			s.logger.Warn("skipping imported todo with oversized text", zap.Int64("id", t.ID), zap.Int("length", utf8.RuneCountInString(t.Text)))
			continue
		}
		if t.ID <= 0 || seen[t.ID] {
			t.ID = s.ids.Next()
		}
		seen[t.ID] = true
		if !t.Category.IsValid() {
			t.Category = domain.CategoryOther
		}
		if !t.Priority.IsValid() {
			t.Priority = domain.PriorityMedium
		}
		if _, ok := t.Due(); !ok {
			t.DueDate = ""
		}
		if t.CreatedAt.IsZero() {
			t.CreatedAt = s.now().UTC()
		}
		todos = append(todos, t)
		added++
	}

	if added == 0 {
		return 0, nil
	}
	if err := s.repo.Save(ctx, todos); err != nil {
		s.logger.Error("save imported todos", zap.Int("count", added), zap.Error(err))
		return 0, err
	}
	s.logger.Info("todos imported", zap.String("format", string(format)), zap.Int("count", added))
	return added, nil
}

// importedTodo accepts the browser's export, whose ids may be fractional.
type importedTodo struct {
	ID        json.Number     `json:"id"`
	Text      string          `json:"text"`
	Category  domain.Category `json:"category"`
	Priority  domain.Priority `json:"priority"`
	DueDate   string          `json:"dueDate"`
	Completed bool            `json:"completed"`
	CreatedAt string          `json:"createdAt"`
}

func decodeJSONTodos(r io.Reader) ([]domain.Todo, error) {
	var records []importedTodo
	dec := json.NewDecoder(r)
	dec.UseNumber()
	if err := dec.Decode(&records); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedImport, err)
	}
	todos := make([]domain.Todo, 0, len(records))
	for _, rec := range records {
		todos = append(todos, domain.Todo{
			ID:        parseID(rec.ID.String()),
			Text:      rec.Text,
			Category:  rec.Category,
			Priority:  rec.Priority,
			DueDate:   rec.DueDate,
			Completed: rec.Completed,
			CreatedAt: parseCreatedAt(rec.CreatedAt),
		})
	}
	return todos, nil
}

func decodeCSVTodos(r io.Reader) ([]domain.Todo, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedImport, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: missing header row", ErrMalformedImport)
	}

	field := func(row []string, i int) string {
		if i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}

	todos := make([]domain.Todo, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if len(row) < 2 {
			continue
		}
		todos = append(todos, domain.Todo{
			ID:        parseID(field(row, 0)),
			Text:      strings.Trim(field(row, 1), `"`),
			Category:  domain.Category(field(row, 2)),
			Priority:  domain.Priority(field(row, 3)),
			DueDate:   field(row, 4),
			Completed: field(row, 5) == "true",
			CreatedAt: parseCreatedAt(field(row, 6)),
		})
	}
	return todos, nil
}

func parseID(s string) int64 {
	id, err := domain.ParseID(s)
	if err != nil || id < 1 {
		return 0
	}
	return id
}

func parseCreatedAt(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}
