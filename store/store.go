/*
store.go - Persistence contract for the record store

PURPOSE:
  Defines the interface between the domain services and the storage engine.
  Every collection (members, payments, activities, offline queue) is an
  independent key->record namespace inside a single Engine.

KEY INTERFACES:
  Engine:        Raw byte-level key-value persistence per collection
  Collection[T]: Typed JSON wrapper over one collection

FAILURE CONTRACT:
  Put and Get fail with ErrStorageFailure when the underlying engine is
  unavailable or when write verification fails (a read-back immediately
  after a successful write returns nothing). There are NO implicit retries
  inside the store - recovery belongs to the caller (domain service or
  offline queue).

CACHE INVALIDATION:
  A successful Put/Remove on a Collection is the sole trigger for cache
  invalidation. Services register their cache's Invalidate via OnWrite.

IMPLEMENTATIONS:
  - store/sqlite: production engine (WAL mode)
  - store/memory: in-memory fallback, also used in tests

SEE ALSO:
  - open.go: engine selection with automatic fallback
  - cache/cache.go: the snapshot cache invalidated on write
*/
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Collection names. Each is an independent key->record namespace.
const (
	CollectionMembers    = "members"
	CollectionPayments   = "payments"
	CollectionActivities = "activities"
	CollectionQueue      = "offline_queue"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrStorageFailure is returned when the engine is unavailable or a
	// write could not be verified by read-back.
	ErrStorageFailure = errors.New("storage engine failure")
)

// VerificationError reports a write whose read-back returned nothing.
type VerificationError struct {
	Collection string
	ID         string
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("write verification failed: %s/%s not readable after put", e.Collection, e.ID)
}

func (e *VerificationError) Unwrap() error { return ErrStorageFailure }

// =============================================================================
// ENGINE - Raw key-value persistence
// =============================================================================

// Engine persists raw record bytes keyed by (collection, id).
//
// Get returns (nil, nil) when the id is absent - absence is not an error.
// Iterate delivers records in whatever order the engine produces them.
// Each Put/Remove is individually atomic at the key level.
type Engine interface {
	Get(ctx context.Context, collection, id string) ([]byte, error)
	Put(ctx context.Context, collection, id string, body []byte) error
	Remove(ctx context.Context, collection, id string) error
	Iterate(ctx context.Context, collection string, fn func(id string, body []byte) error) error
	Close() error
}

// =============================================================================
// COLLECTION - Typed wrapper over one engine collection
// =============================================================================

// Record is anything addressable by its own id string.
type Record interface {
	RecordID() string
}

// Collection marshals records to JSON and verifies every write by read-back.
type Collection[T Record] struct {
	engine  Engine
	name    string
	onWrite []func()
}

func NewCollection[T Record](engine Engine, name string) *Collection[T] {
	return &Collection[T]{engine: engine, name: name}
}

// OnWrite registers a hook fired after every successful Put/Remove.
// Used to invalidate the collection's snapshot cache.
func (c *Collection[T]) OnWrite(fn func()) {
	c.onWrite = append(c.onWrite, fn)
}

func (c *Collection[T]) Name() string { return c.name }

// Get returns the record, or nil when the id is absent.
func (c *Collection[T]) Get(ctx context.Context, id string) (*T, error) {
	body, err := c.engine.Get(ctx, c.name, id)
	if err != nil {
		return nil, err
	}
	if body == nil {
		return nil, nil
	}
	var rec T
	if err := json.Unmarshal(body, &rec); err != nil {
		return nil, fmt.Errorf("decode %s/%s: %w", c.name, id, err)
	}
	return &rec, nil
}

// Put overwrites the record and verifies it by read-back.
func (c *Collection[T]) Put(ctx context.Context, rec T) error {
	id := rec.RecordID()
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", c.name, id, err)
	}
	if err := c.engine.Put(ctx, c.name, id, body); err != nil {
		return err
	}
	// Read-back verification. A missing record after a successful write
	// means the engine silently dropped it.
	back, err := c.engine.Get(ctx, c.name, id)
	if err != nil {
		return err
	}
	if back == nil {
		return &VerificationError{Collection: c.name, ID: id}
	}
	c.fireWrite()
	return nil
}

// Remove deletes the record. Removing an absent id is not an error.
func (c *Collection[T]) Remove(ctx context.Context, id string) error {
	if err := c.engine.Remove(ctx, c.name, id); err != nil {
		return err
	}
	c.fireWrite()
	return nil
}

// All scans the full collection. Records that fail to decode are skipped -
// a single corrupt record must not make the whole collection unreadable.
func (c *Collection[T]) All(ctx context.Context) ([]T, error) {
	var out []T
	err := c.engine.Iterate(ctx, c.name, func(id string, body []byte) error {
		var rec T
		if err := json.Unmarshal(body, &rec); err != nil {
			return nil
		}
		if rec.RecordID() == "" {
			return nil
		}
		out = append(out, rec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Collection[T]) fireWrite() {
	for _, fn := range c.onWrite {
		fn()
	}
}
