/*
Package cache provides the time-bounded snapshot cache in front of full
collection scans.

PURPOSE:
  A full store scan on every list query is wasteful for read-heavy
  collections. Snapshot keeps the last materialized read set in memory and
  serves it until either the TTL expires or a write invalidates it.

CONTRACT:
  Read:       valid snapshot -> returned without invoking the loader;
              otherwise the loader runs and its result is stored with the
              current timestamp.
  Invalidate: unconditional and idempotent. Every logical write to the
              owning collection must invalidate at least once, so a read
              that begins after the write observes fresh data. A loader
              that was already in flight when the invalidation landed
              returns its (possibly pre-write) result to its own caller
              but is NOT stored: each invalidation bumps a generation
              counter, and a load result is cached only when the
              generation is unchanged since the load began.

LIFECYCLE:
  One Snapshot per collection, owned by the service that reads it,
  constructed at service initialization and torn down with the service.
  No module-level state - that way tests cannot contaminate each other.
*/
package cache

import (
	"context"
	"sync"
	"time"
)

// Counter is the minimal metrics hook, satisfied by prometheus.Counter.
type Counter interface {
	Inc()
}

// Snapshot holds a read-only, time-limited copy of a collection's full
// read set. The snapshot is never patched in place - a write always
// invalidates, and the next read re-runs the loader.
type Snapshot[T any] struct {
	mu         sync.Mutex
	items      []T
	capturedAt time.Time
	valid      bool
	gen        uint64

	ttl  time.Duration
	now  func() time.Time
	hit  Counter
	miss Counter
}

type Option[T any] func(*Snapshot[T])

// WithClock injects a clock, used by tests to step across the TTL
// boundary without sleeping.
func WithClock[T any](now func() time.Time) Option[T] {
	return func(s *Snapshot[T]) { s.now = now }
}

// WithCounters wires hit/miss counters.
func WithCounters[T any](hit, miss Counter) Option[T] {
	return func(s *Snapshot[T]) {
		s.hit = hit
		s.miss = miss
	}
}

func New[T any](ttl time.Duration, opts ...Option[T]) *Snapshot[T] {
	s := &Snapshot[T]{ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Read returns the cached snapshot when it is still valid, otherwise runs
// loader (a full store scan), stores the result, and returns it. A result
// whose load was overlapped by an Invalidate is returned but not stored,
// so a read that begins after a write never sees data older than it.
func (s *Snapshot[T]) Read(ctx context.Context, loader func(ctx context.Context) ([]T, error)) ([]T, error) {
	s.mu.Lock()
	if s.valid && s.now().Sub(s.capturedAt) < s.ttl {
		items := s.items
		s.mu.Unlock()
		if s.hit != nil {
			s.hit.Inc()
		}
		return items, nil
	}
	gen := s.gen
	s.mu.Unlock()

	if s.miss != nil {
		s.miss.Inc()
	}

	items, err := loader(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.gen == gen {
		s.items = items
		s.capturedAt = s.now()
		s.valid = true
	}
	s.mu.Unlock()

	return items, nil
}

// Invalidate clears the snapshot unconditionally. Idempotent. Bumping the
// generation also discards any load still in flight, so its result cannot
// be stored over this invalidation.
func (s *Snapshot[T]) Invalidate() {
	s.mu.Lock()
	s.items = nil
	s.valid = false
	s.gen++
	s.mu.Unlock()
}
