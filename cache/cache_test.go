package cache_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlasgym/gym-engine/cache"
)

// =============================================================================
// TEST SETUP
// =============================================================================

// fakeClock steps time manually so tests cross the TTL boundary without
// sleeping.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

type countingLoader struct {
	calls int
	items []string
	err   error
}

func (l *countingLoader) load(context.Context) ([]string, error) {
	l.calls++
	return l.items, l.err
}

type testCounter struct{ n int }

func (c *testCounter) Inc() { c.n++ }

// =============================================================================
// SNAPSHOT TESTS
// =============================================================================

func TestSnapshot_SecondReadWithinTTL_SkipsLoader(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	snap := cache.New(30*time.Second, cache.WithClock[string](clock.now))
	loader := &countingLoader{items: []string{"a", "b"}}
	ctx := context.Background()

	first, err := snap.Read(ctx, loader.load)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, first)
	assert.Equal(t, 1, loader.calls)

	clock.advance(29 * time.Second)
	second, err := snap.Read(ctx, loader.load)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, loader.calls, "read inside TTL must not hit the store")
}

func TestSnapshot_TTLExpiry_RerunsLoader(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	snap := cache.New(30*time.Second, cache.WithClock[string](clock.now))
	loader := &countingLoader{items: []string{"a"}}
	ctx := context.Background()

	_, err := snap.Read(ctx, loader.load)
	require.NoError(t, err)

	clock.advance(30 * time.Second)
	_, err = snap.Read(ctx, loader.load)
	require.NoError(t, err)
	assert.Equal(t, 2, loader.calls, "read at/after TTL must reload")
}

func TestSnapshot_Invalidate_ForcesReload(t *testing.T) {
	snap := cache.New[string](time.Hour)
	loader := &countingLoader{items: []string{"a"}}
	ctx := context.Background()

	_, err := snap.Read(ctx, loader.load)
	require.NoError(t, err)

	snap.Invalidate()
	snap.Invalidate() // idempotent

	_, err = snap.Read(ctx, loader.load)
	require.NoError(t, err)
	assert.Equal(t, 2, loader.calls)
}

func TestSnapshot_LoaderError_NotCached(t *testing.T) {
	snap := cache.New[string](time.Hour)
	loader := &countingLoader{err: errors.New("store down")}
	ctx := context.Background()

	_, err := snap.Read(ctx, loader.load)
	assert.Error(t, err)

	// The failure must not poison the snapshot: a later successful load
	// is stored normally.
	loader.err = nil
	loader.items = []string{"a"}
	items, err := snap.Read(ctx, loader.load)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, items)
	assert.Equal(t, 2, loader.calls)
}

func TestSnapshot_InvalidateDuringLoad_ResultNotStored(t *testing.T) {
	// GIVEN: A load (full scan) in flight when a write invalidates
	// WHEN: The load completes with its pre-write result
	// THEN: That result is returned to its own caller but never cached,
	//       so a read beginning after the write sees post-write data

	snap := cache.New[string](time.Hour)
	ctx := context.Background()

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan []string, 1)

	go func() {
		items, _ := snap.Read(ctx, func(context.Context) ([]string, error) {
			close(started)
			<-release
			return []string{"old"}, nil
		})
		done <- items
	}()

	<-started
	snap.Invalidate() // the write lands while the scan is in flight
	close(release)

	assert.Equal(t, []string{"old"}, <-done, "the overlapped reader keeps the snapshot it captured")

	after, err := snap.Read(ctx, func(context.Context) ([]string, error) {
		return []string{"new"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"new"}, after, "a read after the write must not observe pre-write data")
}

func TestSnapshot_Counters(t *testing.T) {
	hit, miss := &testCounter{}, &testCounter{}
	snap := cache.New(time.Hour, cache.WithCounters[string](hit, miss))
	loader := &countingLoader{items: []string{"a"}}
	ctx := context.Background()

	_, _ = snap.Read(ctx, loader.load)
	_, _ = snap.Read(ctx, loader.load)
	_, _ = snap.Read(ctx, loader.load)

	assert.Equal(t, 2, hit.n)
	assert.Equal(t, 1, miss.n)
}
