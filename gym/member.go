/*
member.go - Member service: validated CRUD + attendance + renewals

PURPOSE:
  Composes the record store, snapshot cache, offline queue, and activity
  ledger into the member-facing operations. Every write path invalidates
  the members cache (via the collection write hook) and, while offline,
  mirrors the mutation into the replay queue. Writes go through to the
  store immediately either way, so the UI reflects state instantly.

ATTENDANCE INVARIANT:
  MarkAttendance is the single place session counts change, which is what
  guarantees SessionsRemaining can never go negative:
  - absent member            -> NotFoundError
  - already attended today   -> AlreadyMarkedTodayError
  - zero sessions remaining  -> NoSessionsRemainingError
  - otherwise decrement by exactly 1, stamp today, persist, append a
    check-in activity embedding the remaining count

IMPORT PATH:
  AddOrUpdateWithID accepts externally supplied ids so re-import is
  idempotent by id. Numeric fields are clamped, invalid enums defaulted,
  and the write is verified by read-back - a verification failure is
  fatal for that single record only.

SEE ALSO:
  - gym/errors.go: error taxonomy
  - gym/port.go: bulk import/export using AddOrUpdateWithID
*/
package gym

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/atlasgym/gym-engine/cache"
	"github.com/atlasgym/gym-engine/ledger"
	"github.com/atlasgym/gym-engine/offline"
	"github.com/atlasgym/gym-engine/store"
)

// MembersCacheTTL is the default snapshot TTL for the members collection.
// Members are read far more often than written, so a longer window pays.
const MembersCacheTTL = 30 * time.Second

// MemberService owns the members collection and its cache.
type MemberService struct {
	members  *store.Collection[Member]
	snapshot *cache.Snapshot[Member]
	ledger   *ledger.Ledger
	queue    *offline.Queue
	sessions SessionTable
	log      *zap.Logger
	now      func() time.Time
}

type MemberOption func(*MemberService)

// WithMemberClock injects a clock for tests.
func WithMemberClock(now func() time.Time) MemberOption {
	return func(s *MemberService) { s.now = now }
}

// WithMembersCache replaces the default snapshot cache, used to wire
// metrics counters or a custom TTL.
func WithMembersCache(c *cache.Snapshot[Member]) MemberOption {
	return func(s *MemberService) { s.snapshot = c }
}

// NewMemberService wires the member domain. queue may be nil when offline
// mirroring is not wanted (tests, one-shot tools).
func NewMemberService(engine store.Engine, l *ledger.Ledger, queue *offline.Queue, log *zap.Logger, opts ...MemberOption) *MemberService {
	s := &MemberService{
		members:  store.NewCollection[Member](engine, store.CollectionMembers),
		snapshot: cache.New[Member](MembersCacheTTL),
		ledger:   l,
		queue:    queue,
		sessions: DefaultSessions(),
		log:      log,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	// A successful put/remove is the sole trigger for invalidation.
	s.members.OnWrite(s.snapshot.Invalidate)
	return s
}

// =============================================================================
// READS
// =============================================================================

// Get returns the member, or NotFoundError.
func (s *MemberService) Get(ctx context.Context, id string) (*Member, error) {
	m, err := s.members.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, &NotFoundError{Kind: "member", ID: id}
	}
	return m, nil
}

// All returns every member sorted by name. Cache-backed: two reads inside
// the TTL window with no intervening write return the same snapshot.
func (s *MemberService) All(ctx context.Context) ([]Member, error) {
	return s.snapshot.Read(ctx, func(ctx context.Context) ([]Member, error) {
		members, err := s.members.All(ctx)
		if err != nil {
			return nil, err
		}
		sort.Slice(members, func(i, j int) bool {
			return members[i].Name < members[j].Name
		})
		return members, nil
	})
}

// Search returns members whose name contains the query, case-insensitive.
func (s *MemberService) Search(ctx context.Context, query string) ([]Member, error) {
	return s.SearchAndFilter(ctx, query, "")
}

// FilterByStatus returns members with the given membership status; an
// empty status means all members.
func (s *MemberService) FilterByStatus(ctx context.Context, status MembershipStatus) ([]Member, error) {
	return s.SearchAndFilter(ctx, "", status)
}

// SearchAndFilter combines name search and status filtering over the
// cached read set.
func (s *MemberService) SearchAndFilter(ctx context.Context, query string, status MembershipStatus) ([]Member, error) {
	all, err := s.All(ctx)
	if err != nil {
		return nil, err
	}

	q := strings.ToLower(strings.TrimSpace(query))
	var out []Member
	for _, m := range all {
		if q != "" && !strings.Contains(strings.ToLower(m.Name), q) {
			continue
		}
		if status != "" && m.MembershipStatus != status {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

// =============================================================================
// WRITES
// =============================================================================

// Add creates a member. The id is clock-derived; name is required.
func (s *MemberService) Add(ctx context.Context, m Member) (Member, error) {
	m.Name = sanitizeName(m.Name)
	if m.Name == "" {
		return Member{}, &ValidationError{Field: "name", Reason: "must not be empty"}
	}

	m.ID = NewID(s.now())
	if m.MembershipStatus == "" {
		m.MembershipStatus = StatusActive
	}
	if m.PaymentStatus == "" {
		m.PaymentStatus = PaymentUnpaid
	}
	m.PartialPaymentAmount = clampDecimal(m.PartialPaymentAmount)

	if err := s.mirrorOffline(ctx, offline.OpMemberAdd, m); err != nil {
		return Member{}, err
	}
	if err := s.members.Put(ctx, m); err != nil {
		return Member{}, err
	}

	if _, err := s.ledger.Append(ctx, ledger.Activity{
		MemberID:     m.ID,
		MemberName:   m.Name,
		ActivityType: ledger.ActivityRegister,
		Details:      "member registered",
	}); err != nil {
		return Member{}, err
	}
	return m, nil
}

// Update overwrites an existing member. Both id and name are required.
func (s *MemberService) Update(ctx context.Context, m Member) (Member, error) {
	if m.ID == "" {
		return Member{}, &ValidationError{Field: "id", Reason: "must not be empty"}
	}
	m.Name = sanitizeName(m.Name)
	if m.Name == "" {
		return Member{}, &ValidationError{Field: "name", Reason: "must not be empty"}
	}

	existing, err := s.members.Get(ctx, m.ID)
	if err != nil {
		return Member{}, err
	}
	if existing == nil {
		return Member{}, &NotFoundError{Kind: "member", ID: m.ID}
	}

	m.PartialPaymentAmount = clampDecimal(m.PartialPaymentAmount)

	if err := s.mirrorOffline(ctx, offline.OpMemberUpdate, m); err != nil {
		return Member{}, err
	}
	if err := s.members.Put(ctx, m); err != nil {
		return Member{}, err
	}
	return m, nil
}

// Delete removes a member. Deleting an absent id is a no-op.
func (s *MemberService) Delete(ctx context.Context, id string) error {
	return s.members.Remove(ctx, id)
}

// =============================================================================
// ATTENDANCE
// =============================================================================

// MarkAttendance records today's visit for the member.
func (s *MemberService) MarkAttendance(ctx context.Context, id string) (Member, error) {
	m, err := s.Get(ctx, id)
	if err != nil {
		return Member{}, err
	}

	today := DayOf(s.now())
	if m.LastAttendance == today {
		return Member{}, &AlreadyMarkedTodayError{MemberID: id, Date: today}
	}

	details := "checked in"
	if m.SubscriptionType != "" {
		// Members imported before session tracking may have no count yet;
		// resolve it from the table before the first decrement.
		if m.SessionsRemaining == nil {
			n := s.sessions.SessionsFor(m.SubscriptionType)
			m.SessionsRemaining = &n
		}
		if *m.SessionsRemaining <= 0 {
			return Member{}, &NoSessionsRemainingError{MemberID: id}
		}
		*m.SessionsRemaining--
		details = fmt.Sprintf("checked in - %d sessions remaining", *m.SessionsRemaining)
	}

	m.LastAttendance = today

	if err := s.mirrorOffline(ctx, offline.OpAttendanceMark, map[string]string{"memberId": id}); err != nil {
		return Member{}, err
	}
	if err := s.members.Put(ctx, *m); err != nil {
		return Member{}, err
	}

	if _, err := s.ledger.Append(ctx, ledger.Activity{
		MemberID:     m.ID,
		MemberName:   m.Name,
		ActivityType: ledger.ActivityCheckIn,
		Details:      details,
	}); err != nil {
		return Member{}, err
	}
	return *m, nil
}

// ResetSessions reassigns the prepaid session count from the session
// table and marks the membership paid and active. Used after a
// subscription renewal payment.
func (s *MemberService) ResetSessions(ctx context.Context, id string) (Member, error) {
	m, err := s.Get(ctx, id)
	if err != nil {
		return Member{}, err
	}

	n := s.sessions.SessionsFor(m.SubscriptionType)
	m.SessionsRemaining = &n
	m.PaymentStatus = PaymentPaid
	m.MembershipStatus = StatusActive

	if err := s.members.Put(ctx, *m); err != nil {
		return Member{}, err
	}

	if _, err := s.ledger.Append(ctx, ledger.Activity{
		MemberID:     m.ID,
		MemberName:   m.Name,
		ActivityType: ledger.ActivityRenewal,
		Details:      fmt.Sprintf("sessions reset - %d/%d sessions", n, n),
	}); err != nil {
		return Member{}, err
	}
	return *m, nil
}

// =============================================================================
// IMPORT PATH
// =============================================================================

// AddOrUpdateWithID upserts a member under an externally supplied id so
// that re-importing the same backup is idempotent. Numeric fields are
// clamped, invalid enums coerced, and the write verified by read-back.
func (s *MemberService) AddOrUpdateWithID(ctx context.Context, m Member) (Member, error) {
	if m.ID == "" {
		return Member{}, &ValidationError{Field: "id", Reason: "must not be empty"}
	}
	m.Name = sanitizeName(m.Name)
	if m.Name == "" {
		return Member{}, &ValidationError{Field: "name", Reason: "must not be empty"}
	}

	m.MembershipStatus = CoerceMembershipStatus(string(m.MembershipStatus))
	m.PaymentStatus = CoercePaymentStatus(string(m.PaymentStatus))
	if m.LastAttendance == "" {
		m.LastAttendance = DayOf(s.now())
	}
	if m.SessionsRemaining != nil {
		n := clampInt(*m.SessionsRemaining)
		m.SessionsRemaining = &n
	}
	m.PartialPaymentAmount = clampDecimal(m.PartialPaymentAmount)

	// Put verifies by read-back; a second read confirms the stored copy
	// decodes. Either failure is fatal for this record only.
	if err := s.members.Put(ctx, m); err != nil {
		return Member{}, err
	}
	back, err := s.members.Get(ctx, m.ID)
	if err != nil {
		return Member{}, err
	}
	if back == nil {
		return Member{}, &store.VerificationError{Collection: store.CollectionMembers, ID: m.ID}
	}
	return *back, nil
}

// =============================================================================
// OFFLINE MIRRORING
// =============================================================================

// mirrorOffline enqueues the mutation for replay when connectivity is
// down. The write-through to the store still happens immediately.
func (s *MemberService) mirrorOffline(ctx context.Context, typ offline.OpType, payload any) error {
	if s.queue == nil || s.queue.IsOnline() {
		return nil
	}
	if err := s.queue.Enqueue(ctx, typ, payload); err != nil {
		return fmt.Errorf("enqueue offline %s: %w", typ, err)
	}
	s.log.Debug("mutation queued for replay", zap.String("type", string(typ)))
	return nil
}
