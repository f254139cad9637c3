package sqlite_test

import (
	"context"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlasgym/gym-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestEngine(t *testing.T) *sqlite.Engine {
	t.Helper()
	engine, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { engine.Close() })
	return engine
}

// =============================================================================
// ENGINE TESTS
// =============================================================================

func TestEngine_PutGet_RoundTrip(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, engine.Put(ctx, "members", "m-1", []byte(`{"id":"m-1"}`)))

	body, err := engine.Get(ctx, "members", "m-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"m-1"}`, string(body))
}

func TestEngine_Get_AbsentReturnsNilNil(t *testing.T) {
	engine := newTestEngine(t)

	body, err := engine.Get(context.Background(), "members", "missing")
	assert.NoError(t, err)
	assert.Nil(t, body)
}

func TestEngine_Put_OverwritesExisting(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, engine.Put(ctx, "members", "m-1", []byte(`{"v":1}`)))
	require.NoError(t, engine.Put(ctx, "members", "m-1", []byte(`{"v":2}`)))

	body, err := engine.Get(ctx, "members", "m-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":2}`, string(body))
}

func TestEngine_Remove(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, engine.Put(ctx, "members", "m-1", []byte(`{}`)))
	require.NoError(t, engine.Remove(ctx, "members", "m-1"))

	body, err := engine.Get(ctx, "members", "m-1")
	require.NoError(t, err)
	assert.Nil(t, body)

	// Removing again is a no-op.
	assert.NoError(t, engine.Remove(ctx, "members", "m-1"))
}

func TestEngine_Iterate_ScansOneCollectionOnly(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, engine.Put(ctx, "members", "m-1", []byte(`{}`)))
	require.NoError(t, engine.Put(ctx, "members", "m-2", []byte(`{}`)))
	require.NoError(t, engine.Put(ctx, "payments", "p-1", []byte(`{}`)))

	var ids []string
	err := engine.Iterate(ctx, "members", func(id string, _ []byte) error {
		ids = append(ids, id)
		return nil
	})
	require.NoError(t, err)

	sort.Strings(ids)
	assert.Equal(t, []string{"m-1", "m-2"}, ids)
}

func TestEngine_Reopen_DataSurvives(t *testing.T) {
	// GIVEN: A record written to a file-backed database
	// WHEN: The engine is closed and reopened on the same file
	// THEN: The record is still there

	path := filepath.Join(t.TempDir(), "gym.db")
	ctx := context.Background()

	engine, err := sqlite.Open(path)
	require.NoError(t, err)
	require.NoError(t, engine.Put(ctx, "members", "m-1", []byte(`{"id":"m-1"}`)))
	require.NoError(t, engine.Close())

	reopened, err := sqlite.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { reopened.Close() })

	body, err := reopened.Get(ctx, "members", "m-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"m-1"}`, string(body))
}
