// Package memory provides the in-memory storage engine, used as the
// automatic fallback when SQLite cannot be opened and throughout tests.
package memory

import (
	"context"
	"sync"
)

// =============================================================================
// MEMORY ENGINE - map-backed implementation of store.Engine
// =============================================================================

type Engine struct {
	mu          sync.RWMutex
	collections map[string]map[string][]byte
}

func New() *Engine {
	return &Engine{collections: make(map[string]map[string][]byte)}
}

func (e *Engine) Close() error { return nil }

// Get returns a copy of the record body, or (nil, nil) when absent.
func (e *Engine) Get(_ context.Context, collection, id string) ([]byte, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	body, ok := e.collections[collection][id]
	if !ok {
		return nil, nil
	}
	out := make([]byte, len(body))
	copy(out, body)
	return out, nil
}

func (e *Engine) Put(_ context.Context, collection, id string, body []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	col := e.collections[collection]
	if col == nil {
		col = make(map[string][]byte)
		e.collections[collection] = col
	}
	stored := make([]byte, len(body))
	copy(stored, body)
	col[id] = stored
	return nil
}

func (e *Engine) Remove(_ context.Context, collection, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	delete(e.collections[collection], id)
	return nil
}

// Iterate delivers records in map order, which is deliberately unordered.
func (e *Engine) Iterate(_ context.Context, collection string, fn func(id string, body []byte) error) error {
	e.mu.RLock()
	snapshot := make(map[string][]byte, len(e.collections[collection]))
	for id, body := range e.collections[collection] {
		snapshot[id] = body
	}
	e.mu.RUnlock()

	for id, body := range snapshot {
		if err := fn(id, body); err != nil {
			return err
		}
	}
	return nil
}
