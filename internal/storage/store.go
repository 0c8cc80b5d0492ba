// Package storage provides the key-value store that backs the concierge
// board. A value is an opaque byte slice; writers overwrite (last write wins)
// and in-process subscribers are told about every write to their key.
package storage

import (
	"context"
	"errors"
	"sync"
)

// ErrNotFound is returned by Get when the key has never been set or was deleted.
var ErrNotFound = errors.New("key not found")

// KeyValueStore is the persistence seam for browser-style "local storage" data.
type KeyValueStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	// Subscribe delivers the latest value written to key. Intermediate values
	// may be skipped for slow readers. A deleted key is delivered as nil.
	Subscribe(key string) (<-chan []byte, func())
	Close() error
}

// broadcaster fans writes out to subscribers. It is embedded by every backend.
type broadcaster struct {
	mu     sync.Mutex
	nextID int
	subs   map[string]map[int]chan []byte
}

func (b *broadcaster) Subscribe(key string) (<-chan []byte, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subs == nil {
		b.subs = make(map[string]map[int]chan []byte)
	}
	if b.subs[key] == nil {
		b.subs[key] = make(map[int]chan []byte)
	}
	id := b.nextID
	b.nextID++
	ch := make(chan []byte, 1)
	b.subs[key][id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		sub, ok := b.subs[key][id]
		if !ok {
			return
		}
		delete(b.subs[key], id)
		if len(b.subs[key]) == 0 {
			delete(b.subs, key)
		}
		close(sub)
	}
	return ch, cancel
}

func (b *broadcaster) publish(key string, value []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subs[key] {
		var v []byte
		if value != nil {
			v = append([]byte(nil), value...)
		}
		select {
		case ch <- v:
		default:
			// Replace the unread value so the reader sees the latest write.
			select {
			case <-ch:
			default:
			}
			ch <- v
		}
	}
}

func (b *broadcaster) closeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for key, subs := range b.subs {
		for id, ch := range subs {
			close(ch)
			delete(subs, id)
		}
		delete(b.subs, key)
	}
}
