package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlasgym/gym-engine/ledger"
	"github.com/atlasgym/gym-engine/store/memory"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestLedger(t *testing.T) (*ledger.Ledger, *memory.Engine) {
	t.Helper()
	engine := memory.New()
	return ledger.New(engine, 15*time.Second), engine
}

// steppingClock returns a strictly increasing time on every call, so
// clock-derived ids and timestamps never collide.
func steppingClock(start time.Time) func() time.Time {
	t := start
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

// =============================================================================
// APPEND TESTS
// =============================================================================

func TestLedger_Append_AssignsIDAndTimestamp(t *testing.T) {
	lgr, _ := newTestLedger(t)
	lgr.WithClock(steppingClock(time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)))

	a, err := lgr.Append(context.Background(), ledger.Activity{
		MemberID:     "m-1",
		ActivityType: ledger.ActivityCheckIn,
		Details:      "checked in",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, a.ID)
	assert.NotEmpty(t, a.Timestamp)
	assert.Equal(t, ledger.ActivityCheckIn, a.ActivityType)
}

func TestLedger_Append_CoercesUnknownType(t *testing.T) {
	lgr, _ := newTestLedger(t)

	a, err := lgr.Append(context.Background(), ledger.Activity{
		MemberID:     "m-1",
		ActivityType: "teleportation",
	})
	require.NoError(t, err)
	assert.Equal(t, ledger.ActivityOther, a.ActivityType)
}

func TestLedger_Append_KeepsSuppliedIDAndTimestamp(t *testing.T) {
	// Import replays historical activities with their original identity.
	lgr, _ := newTestLedger(t)

	a, err := lgr.Append(context.Background(), ledger.Activity{
		ID:           "act-1",
		ActivityType: ledger.ActivityPayment,
		Timestamp:    "2025-01-01T00:00:00Z",
	})
	require.NoError(t, err)
	assert.Equal(t, "act-1", a.ID)
	assert.Equal(t, "2025-01-01T00:00:00Z", a.Timestamp)
}

// =============================================================================
// RECENT TESTS
// =============================================================================

func TestLedger_Recent_NewestFirstWithLimit(t *testing.T) {
	lgr, _ := newTestLedger(t)
	lgr.WithClock(steppingClock(time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)))
	ctx := context.Background()

	for _, details := range []string{"first", "second", "third"} {
		_, err := lgr.Append(ctx, ledger.Activity{
			MemberID:     "m-1",
			ActivityType: ledger.ActivityCheckIn,
			Details:      details,
		})
		require.NoError(t, err)
	}

	recent, err := lgr.Recent(ctx, 2, false)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "third", recent[0].Details)
	assert.Equal(t, "second", recent[1].Details)
}

func TestLedger_Recent_AppendInvalidatesCache(t *testing.T) {
	// A cached Recent must still observe an append that happened after the
	// snapshot was taken: the collection write hook invalidates it.
	lgr, _ := newTestLedger(t)
	lgr.WithClock(steppingClock(time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)))
	ctx := context.Background()

	_, err := lgr.Append(ctx, ledger.Activity{ActivityType: ledger.ActivityCheckIn, Details: "a"})
	require.NoError(t, err)

	first, err := lgr.Recent(ctx, 10, false)
	require.NoError(t, err)
	require.Len(t, first, 1)

	_, err = lgr.Append(ctx, ledger.Activity{ActivityType: ledger.ActivityCheckIn, Details: "b"})
	require.NoError(t, err)

	second, err := lgr.Recent(ctx, 10, false)
	require.NoError(t, err)
	assert.Len(t, second, 2)
}

func TestLedger_Recent_ForceRefreshBypassesCache(t *testing.T) {
	// GIVEN: An activity written directly to the engine, bypassing the
	//        collection (so no invalidation hook fires)
	// WHEN: Reading with and without forceRefresh
	// THEN: Only the forced read observes it

	lgr, engine := newTestLedger(t)
	ctx := context.Background()

	_, err := lgr.Append(ctx, ledger.Activity{ID: "act-1", ActivityType: ledger.ActivityCheckIn, Timestamp: "2026-01-01T00:00:00Z"})
	require.NoError(t, err)

	warm, err := lgr.Recent(ctx, 10, false)
	require.NoError(t, err)
	require.Len(t, warm, 1)

	require.NoError(t, engine.Put(ctx, "activities", "act-2",
		[]byte(`{"id":"act-2","activityType":"check-in","timestamp":"2026-01-02T00:00:00Z"}`)))

	stale, err := lgr.Recent(ctx, 10, false)
	require.NoError(t, err)
	assert.Len(t, stale, 1, "cached read should not observe the out-of-band write")

	fresh, err := lgr.Recent(ctx, 10, true)
	require.NoError(t, err)
	assert.Len(t, fresh, 2, "forceRefresh must re-scan the store")
	assert.Equal(t, "act-2", fresh[0].ID)
}
