package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/Tomlord1122/concierge-backend/internal/controller"
	"github.com/Tomlord1122/concierge-backend/internal/domain"
	"github.com/Tomlord1122/concierge-backend/internal/form"
	"github.com/Tomlord1122/concierge-backend/internal/service"
)

const maxImportBytes = 5 << 20

// RegisterRoutes builds the router for the REST API and the /ws session
// endpoint.
func (s *Server) RegisterRoutes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/", s.indexHandler)
	r.Get("/health", s.healthHandler)
	r.Get("/ws", s.sessionHandler)

	r.Route("/todos", func(r chi.Router) {
		r.Post("/", s.createTodoHandler)
		r.Get("/", s.listTodosHandler)
		r.Get("/stats", s.todoStatsHandler)
		r.Get("/export", s.exportTodosHandler)
		r.Post("/import", s.importTodosHandler)
		r.Delete("/completed", s.clearCompletedHandler)
		r.Get("/{id}", s.getTodoByIDHandler)
		r.Patch("/{id}/toggle", s.toggleTodoHandler)
		r.Delete("/{id}", s.deleteTodoHandler)
	})

	r.Route("/notifications", func(r chi.Router) {
		r.Get("/", s.listNotificationsHandler)
		r.Post("/", s.showNotificationHandler)
		r.Delete("/{id}", s.dismissNotificationHandler)
	})

	r.Post("/bookings", s.submitBookingHandler)
	r.Post("/actions/{action}", s.actionHandler)

	return r
}

func (s *Server) indexHandler(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Veridian Private Concierge"})
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	healthStats := s.db.Health()
	if status, ok := healthStats["status"]; ok && status == "down" {
		respondWithJSON(w, http.StatusServiceUnavailable, healthStats)
		return
	}
	respondWithJSON(w, http.StatusOK, healthStats)
}

func (s *Server) createTodoHandler(w http.ResponseWriter, r *http.Request) {
	var req service.CreateTodoRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	todoResp, err := s.todoService.CreateTodo(r.Context(), req)
	if err != nil {
		s.respondWithServiceError(w, err, "Failed to create todo")
		return
	}

	respondWithJSON(w, http.StatusCreated, todoResp)
}

func (s *Server) listTodosHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	todos, err := s.todoService.ListTodos(r.Context(), service.ListTodosRequest{
		Filter: q.Get("filter"),
		Sort:   q.Get("sort"),
	})
	if err != nil {
		s.respondWithServiceError(w, err, "Failed to retrieve todos")
		return
	}

	respondWithJSON(w, http.StatusOK, todos)
}

func (s *Server) todoStatsHandler(w http.ResponseWriter, r *http.Request) {
	stats, err := s.todoService.Stats(r.Context())
	if err != nil {
		s.respondWithServiceError(w, err, "Failed to compute todo stats")
		return
	}
	respondWithJSON(w, http.StatusOK, stats)
}

func (s *Server) getTodoByIDHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := todoID(w, r)
	if !ok {
		return
	}

	todo, err := s.todoService.GetTodoByID(r.Context(), id)
	if err != nil {
		s.respondWithServiceError(w, err, "Failed to retrieve todo")
		return
	}

	respondWithJSON(w, http.StatusOK, todo)
}

func (s *Server) toggleTodoHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := todoID(w, r)
	if !ok {
		return
	}

	todo, err := s.todoService.ToggleTodo(r.Context(), id)
	if err != nil {
		s.respondWithServiceError(w, err, "Failed to toggle todo")
		return
	}

	respondWithJSON(w, http.StatusOK, todo)
}

func (s *Server) deleteTodoHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := todoID(w, r)
	if !ok {
		return
	}

	if err := s.todoService.DeleteTodo(r.Context(), id); err != nil {
		s.respondWithServiceError(w, err, "Failed to delete todo")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) clearCompletedHandler(w http.ResponseWriter, r *http.Request) {
	removed, err := s.todoService.ClearCompleted(r.Context())
	if err != nil {
		s.respondWithServiceError(w, err, "Failed to clear completed todos")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

func (s *Server) exportTodosHandler(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("format")
	if name == "" {
		name = string(service.FormatJSON)
	}
	format, err := service.ParseFormat(name)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", format.Filename()))
	if err := s.todoService.ExportTodos(r.Context(), format, w); err != nil {
		// Headers are already out; the truncated body is all we can do.
		s.logger.Error("export todos", zap.String("format", string(format)), zap.Error(err))
	}
}

func (s *Server) importTodosHandler(w http.ResponseWriter, r *http.Request) {
	format, err := importFormat(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctrl := s.newController(viewSet{})
	n, err := ctrl.ImportTodos(r.Context(), format, http.MaxBytesReader(w, r.Body, maxImportBytes))
	if err != nil {
		s.respondWithServiceError(w, err, "Failed to import todos")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]int{"imported": n})
}

// importFormat takes ?format= first and falls back to the request's content type.
func importFormat(r *http.Request) (service.Format, error) {
	if name := r.URL.Query().Get("format"); name != "" {
		return service.ParseFormat(name)
	}
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return "", fmt.Errorf("%w: missing format", service.ErrUnsupportedFormat)
	}
	switch mediaType {
	case "text/csv":
		return service.FormatCSV, nil
	case "application/json":
		return service.FormatJSON, nil
	}
	return "", fmt.Errorf("%w: %q", service.ErrUnsupportedFormat, mediaType)
}

func (s *Server) listNotificationsHandler(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, s.notifications.Active())
}

// ShowNotificationRequest asks for a toast to be shown.
type ShowNotificationRequest struct {
	Message    string `json:"message"`
	Kind       string `json:"kind"`
	DurationMS int64  `json:"duration_ms"`
}

func (s *Server) showNotificationHandler(w http.ResponseWriter, r *http.Request) {
	var req ShowNotificationRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		respondWithError(w, http.StatusBadRequest, "message cannot be empty")
		return
	}

	n := s.notifications.Show(req.Message, domain.NotificationKind(req.Kind), time.Duration(req.DurationMS)*time.Millisecond)
	respondWithJSON(w, http.StatusCreated, n)
}

func (s *Server) dismissNotificationHandler(w http.ResponseWriter, r *http.Request) {
	if !s.notifications.Dismiss(chi.URLParam(r, "id")) {
		respondWithError(w, http.StatusNotFound, "notification not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SubmitBookingRequest carries the booking form's fields.
type SubmitBookingRequest struct {
	Fields []form.Field `json:"fields"`
}

func (s *Server) submitBookingHandler(w http.ResponseWriter, r *http.Request) {
	var req SubmitBookingRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	ctrl := s.newController(viewSet{})
	out, err := ctrl.SubmitBooking(r.Context(), req.Fields)
	switch {
	case errors.Is(err, controller.ErrInvalidBooking):
		respondWithJSON(w, http.StatusUnprocessableEntity, out)
	case err != nil:
		respondWithJSON(w, http.StatusBadGateway, out)
	default:
		respondWithJSON(w, http.StatusAccepted, out)
	}
}

func (s *Server) actionHandler(w http.ResponseWriter, r *http.Request) {
	params := map[string]string{}
	if r.ContentLength != 0 {
		if !s.decodeJSON(w, r, &params) {
			return
		}
	}

	ctrl := s.newController(viewSet{})
	n, err := ctrl.Action(chi.URLParam(r, "action"), params)
	switch {
	case errors.Is(err, controller.ErrUnknownAction):
		respondWithError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, controller.ErrInvalidAction):
		respondWithError(w, http.StatusBadRequest, err.Error())
	case err != nil:
		s.logger.Error("run action", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to run action")
	default:
		respondWithJSON(w, http.StatusOK, n)
	}
}

func todoID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		respondWithError(w, http.StatusBadRequest, "Invalid todo ID provided")
		return 0, false
	}
	return id, true
}

// decodeJSON decodes the request body into dst, answering 400 on failure.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	err := decoder.Decode(dst)
	if err == nil {
		return true
	}

	var syntaxError *json.SyntaxError
	var unmarshalTypeError *json.UnmarshalTypeError
	switch {
	case errors.As(err, &syntaxError):
		msg := fmt.Sprintf("Request body contains badly-formed JSON (at position %d)", syntaxError.Offset)
		respondWithError(w, http.StatusBadRequest, msg)
	case errors.Is(err, io.ErrUnexpectedEOF):
		respondWithError(w, http.StatusBadRequest, "Request body contains badly-formed JSON")
	case errors.As(err, &unmarshalTypeError):
		msg := fmt.Sprintf("Request body contains an invalid value for the %q field (at position %d)", unmarshalTypeError.Field, unmarshalTypeError.Offset)
		respondWithError(w, http.StatusBadRequest, msg)
	case strings.HasPrefix(err.Error(), "json: unknown field "):
		fieldName := strings.TrimPrefix(err.Error(), "json: unknown field ")
		respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Request body contains unknown field %s", fieldName))
	case errors.Is(err, io.EOF):
		respondWithError(w, http.StatusBadRequest, "Request body must not be empty")
	default:
		s.logger.Error("decode request body", zap.String("path", r.URL.Path), zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Error processing request")
	}
	return false
}

// respondWithServiceError maps service errors to status codes.
func (s *Server) respondWithServiceError(w http.ResponseWriter, err error, fallback string) {
	var maxBytesErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytesErr):
		respondWithError(w, http.StatusRequestEntityTooLarge, "Import file is too large")
	case errors.Is(err, service.ErrTodoNotFound):
		respondWithError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrInvalidTodo),
		errors.Is(err, service.ErrInvalidQuery),
		errors.Is(err, service.ErrMalformedImport),
		errors.Is(err, service.ErrUnsupportedFormat):
		respondWithError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error(fallback, zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, fallback)
	}
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"Internal server error preparing response"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_, _ = w.Write(response)
}
