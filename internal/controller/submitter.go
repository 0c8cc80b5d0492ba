package controller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Tomlord1122/concierge-backend/internal/storage"
)

// BookingsKey is the storage key holding submitted booking requests.
const BookingsKey = "bookingRequests"

// BookingRequest is a validated booking form.
type BookingRequest struct {
	Fields      map[string]string `json:"fields"`
	SubmittedAt time.Time         `json:"submitted_at"`
}

// Submitter delivers a booking request. It replaces the page's simulated
// network delay with a real, cancellable call.
type Submitter interface {
	Submit(ctx context.Context, req BookingRequest) error
}

// SubmitterFunc adapts a function to Submitter.
type SubmitterFunc func(ctx context.Context, req BookingRequest) error

// Submit calls f(ctx, req).
func (f SubmitterFunc) Submit(ctx context.Context, req BookingRequest) error {
	return f(ctx, req)
}

// StoreSubmitter appends booking requests to a JSON array in the store.
type StoreSubmitter struct {
	store  storage.KeyValueStore
	logger *zap.Logger
	mu     sync.Mutex
}

// NewStoreSubmitter returns a Submitter persisting to store under BookingsKey.
func NewStoreSubmitter(store storage.KeyValueStore, logger *zap.Logger) *StoreSubmitter {
	return &StoreSubmitter{store: store, logger: logger}
}

// Submit appends req to the stored booking list. Concurrent calls are
// serialized so no request is lost.
func (s *StoreSubmitter) Submit(ctx context.Context, req BookingRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	bookings, err := s.Bookings(ctx)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(append(bookings, req))
	if err != nil {
		return fmt.Errorf("encode bookings: %w", err)
	}
	if err := s.store.Set(ctx, BookingsKey, raw); err != nil {
		return fmt.Errorf("save booking: %w", err)
	}
	s.logger.Info("booking request stored", zap.String("service", req.Fields["service"]), zap.Int("total", len(bookings)+1))
	return nil
}

// Bookings returns every stored booking request, oldest first.
func (s *StoreSubmitter) Bookings(ctx context.Context) ([]BookingRequest, error) {
	raw, err := s.store.Get(ctx, BookingsKey)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load bookings: %w", err)
	}
	var bookings []BookingRequest
	if err := json.Unmarshal(raw, &bookings); err != nil {
		s.logger.Warn("discarding unreadable booking list", zap.Error(err))
		return nil, nil
	}
	return bookings, nil
}
