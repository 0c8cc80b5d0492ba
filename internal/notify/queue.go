// Package notify implements the toast notification queue: transient
// messages that dismiss themselves after a fixed duration.
package notify

import (
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Tomlord1122/concierge-backend/internal/domain"
)

// DefaultDuration is how long a notification stays up when no duration is given.
const DefaultDuration = 5 * time.Second

const subscriberBuffer = 16

// EventType says what happened to a notification.
type EventType string

const (
	EventShown     EventType = "shown"
	EventDismissed EventType = "dismissed"
	EventExpired   EventType = "expired"
)

// Event is delivered to subscribers.
type Event struct {
	Type         EventType           `json:"type"`
	Notification domain.Notification `json:"notification"`
}

type entry struct {
	seq          uint64
	notification domain.Notification
	timer        Timer
}

// Queue holds the live notifications. Notifications stack independently and
// are not de-duplicated.
type Queue struct {
	clock  Clock
	logger *zap.Logger

	mu      sync.Mutex
	seq     uint64
	entries map[string]*entry
	subs    map[int]chan Event
	nextSub int
	closed  bool
}

// Option configures a Queue.
type Option func(*Queue)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(q *Queue) { q.clock = c }
}

// New returns an empty queue.
func New(logger *zap.Logger, opts ...Option) *Queue {
	q := &Queue{
		clock:   realClock{},
		logger:  logger,
		entries: make(map[string]*entry),
		subs:    make(map[int]chan Event),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Show displays message for duration (DefaultDuration if duration <= 0).
// Unknown kinds are shown as info.
func (q *Queue) Show(message string, kind domain.NotificationKind, duration time.Duration) domain.Notification {
	if !kind.IsValid() {
		kind = domain.KindInfo
	}
	if duration <= 0 {
		duration = DefaultDuration
	}

	now := q.clock.Now()
	n := domain.Notification{
		ID:        uuid.NewString(),
		Message:   strings.TrimSpace(message),
		Kind:      kind,
		CreatedAt: now,
		ExpiresAt: now.Add(duration),
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return n
	}

	q.seq++
	e := &entry{seq: q.seq, notification: n}
	q.entries[n.ID] = e
	e.timer = q.clock.AfterFunc(duration, func() { q.expire(n.ID) })

	q.logger.Debug("notification shown", zap.String("id", n.ID), zap.String("kind", string(kind)))
	q.publish(Event{Type: EventShown, Notification: n})
	return n
}

// Dismiss closes a notification before its timer fires. It reports whether
// the notification was still showing.
func (q *Queue) Dismiss(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, ok := q.entries[id]
	if !ok {
		return false
	}
	e.timer.Stop()
	delete(q.entries, id)
	q.publish(Event{Type: EventDismissed, Notification: e.notification})
	return true
}

func (q *Queue) expire(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, ok := q.entries[id]
	if !ok {
		return
	}
	delete(q.entries, id)
	q.publish(Event{Type: EventExpired, Notification: e.notification})
}

// Active returns the notifications currently showing, oldest first.
func (q *Queue) Active() []domain.Notification {
	q.mu.Lock()
	entries := make([]*entry, 0, len(q.entries))
	for _, e := range q.entries {
		entries = append(entries, e)
	}
	q.mu.Unlock()

	slices.SortFunc(entries, func(a, b *entry) int {
		switch {
		case a.seq < b.seq:
			return -1
		case a.seq > b.seq:
			return 1
		}
		return 0
	})
	out := make([]domain.Notification, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.notification)
	}
	return out
}

// Subscribe streams queue events until cancel is called or the queue is
// closed. Events are dropped for subscribers that fall behind.
func (q *Queue) Subscribe() (<-chan Event, func()) {
	q.mu.Lock()
	defer q.mu.Unlock()

	ch := make(chan Event, subscriberBuffer)
	if q.closed {
		close(ch)
		return ch, func() {}
	}
	id := q.nextSub
	q.nextSub++
	q.subs[id] = ch

	return ch, func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		if sub, ok := q.subs[id]; ok {
			delete(q.subs, id)
			close(sub)
		}
	}
}

// publish must be called with q.mu held.
func (q *Queue) publish(ev Event) {
	for id, ch := range q.subs {
		select {
		case ch <- ev:
		default:
			q.logger.Debug("dropping notification event for slow subscriber", zap.Int("subscriber", id))
		}
	}
}

// Close stops every pending timer and ends all subscriptions. Later calls to
// Show return the notification without displaying it.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	for id, e := range q.entries {
		e.timer.Stop()
		delete(q.entries, id)
	}
	for id, ch := range q.subs {
		close(ch)
		delete(q.subs, id)
	}
}
