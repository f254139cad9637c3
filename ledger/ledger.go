/*
Package ledger provides the append-only activity trail.

PURPOSE:
  Every domain-significant event (check-in, renewal, payment, ...) is
  recorded as an Activity. The ledger is the audit history of the gym:
  you can always explain how a member got to their current state.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: No Update, No Delete. EVER.
  2. IMMUTABLE: Once written, activities are never modified.

CORRECTIONS:
  A misrecorded activity is never edited. Append a corrective entry
  instead - both remain in the history.

CACHING:
  Recent reads are cache-backed with a short TTL because activities are
  write-heavy (one per check-in) and read in small windows (history
  dialogs). forceRefresh bypasses the cache for operations that must
  observe the latest state, such as right after a bulk import.
*/
package ledger

import (
	"context"
	"sort"
	"strconv"
	"time"

	"github.com/atlasgym/gym-engine/cache"
	"github.com/atlasgym/gym-engine/store"
)

// ActivityType classifies a ledger entry.
type ActivityType string

const (
	ActivityCheckIn  ActivityType = "check-in"
	ActivityRenewal  ActivityType = "membership-renewal"
	ActivityPayment  ActivityType = "payment"
	ActivityRegister ActivityType = "registration"
	ActivityExpiry   ActivityType = "membership-expiry"
	ActivityOther    ActivityType = "other"
)

// CoerceActivityType maps unknown values to ActivityOther. Import data is
// duck-typed, so an invalid type must not reject the whole record.
func CoerceActivityType(v string) ActivityType {
	switch ActivityType(v) {
	case ActivityCheckIn, ActivityRenewal, ActivityPayment, ActivityRegister, ActivityExpiry, ActivityOther:
		return ActivityType(v)
	default:
		return ActivityOther
	}
}

// Activity is one immutable ledger entry.
type Activity struct {
	ID           string       `json:"id"`
	MemberID     string       `json:"memberId"`
	MemberName   string       `json:"memberName,omitempty"`
	ActivityType ActivityType `json:"activityType"`
	Timestamp    string       `json:"timestamp"`
	Details      string       `json:"details"`
}

func (a Activity) RecordID() string { return a.ID }

// =============================================================================
// LEDGER
// =============================================================================

type Ledger struct {
	activities *store.Collection[Activity]
	snapshot   *cache.Snapshot[Activity]
	now        func() time.Time
}

// New builds the ledger over its own store collection with a snapshot
// cache of the given TTL.
func New(engine store.Engine, ttl time.Duration, cacheOpts ...cache.Option[Activity]) *Ledger {
	l := &Ledger{
		activities: store.NewCollection[Activity](engine, store.CollectionActivities),
		snapshot:   cache.New[Activity](ttl, cacheOpts...),
		now:        time.Now,
	}
	l.activities.OnWrite(l.snapshot.Invalidate)
	return l
}

// WithClock injects a clock for tests.
func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	l.now = now
	return l
}

// Append records an activity. The id is assigned when absent, the
// timestamp defaulted, and the type coerced to a safe value. Append is
// expected to succeed for a well-formed activity; a failure here is a
// storage failure, never silently swallowed.
func (l *Ledger) Append(ctx context.Context, a Activity) (Activity, error) {
	if a.ID == "" {
		a.ID = strconv.FormatInt(l.now().UnixNano(), 10)
	}
	if a.Timestamp == "" {
		a.Timestamp = l.now().UTC().Format(time.RFC3339)
	}
	a.ActivityType = CoerceActivityType(string(a.ActivityType))

	if err := l.activities.Put(ctx, a); err != nil {
		return Activity{}, err
	}
	return a, nil
}

// Recent returns up to limit activities ordered newest-first. The read is
// cache-backed; forceRefresh bypasses the cache.
func (l *Ledger) Recent(ctx context.Context, limit int, forceRefresh bool) ([]Activity, error) {
	if forceRefresh {
		l.snapshot.Invalidate()
	}

	all, err := l.snapshot.Read(ctx, func(ctx context.Context) ([]Activity, error) {
		items, err := l.activities.All(ctx)
		if err != nil {
			return nil, err
		}
		sort.Slice(items, func(i, j int) bool {
			return items[i].Timestamp > items[j].Timestamp
		})
		return items, nil
	})
	if err != nil {
		return nil, err
	}

	if limit > 0 && limit < len(all) {
		return all[:limit], nil
	}
	return all, nil
}

// All returns every activity, bypassing the cache. Used by export.
func (l *Ledger) All(ctx context.Context) ([]Activity, error) {
	return l.activities.All(ctx)
}
