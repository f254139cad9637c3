package gym_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/atlasgym/gym-engine/gym"
	"github.com/atlasgym/gym-engine/ledger"
	"github.com/atlasgym/gym-engine/offline"
	"github.com/atlasgym/gym-engine/store/memory"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type memberFixture struct {
	engine  *memory.Engine
	ledger  *ledger.Ledger
	members *gym.MemberService
	clock   *stepClock
}

// stepClock advances by one second per call so clock-derived ids are
// unique, while the calendar day stays fixed.
type stepClock struct {
	t time.Time
}

func (c *stepClock) now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func newMemberFixture(t *testing.T) *memberFixture {
	t.Helper()
	engine := memory.New()
	clock := &stepClock{t: time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC)}
	lgr := ledger.New(engine, 15*time.Second).WithClock(clock.now)
	members := gym.NewMemberService(engine, lgr, nil, zaptest.NewLogger(t),
		gym.WithMemberClock(clock.now))
	return &memberFixture{engine: engine, ledger: lgr, members: members, clock: clock}
}

func intPtr(n int) *int { return &n }

// =============================================================================
// CRUD TESTS
// =============================================================================

func TestMemberService_Add_DefaultsAndActivity(t *testing.T) {
	f := newMemberFixture(t)
	ctx := context.Background()

	m, err := f.members.Add(ctx, gym.Member{Name: "  Nadia Benali  "})
	require.NoError(t, err)

	assert.NotEmpty(t, m.ID)
	assert.Equal(t, "Nadia Benali", m.Name)
	assert.Equal(t, gym.StatusActive, m.MembershipStatus)
	assert.Equal(t, gym.PaymentUnpaid, m.PaymentStatus)

	activities, err := f.ledger.Recent(ctx, 10, true)
	require.NoError(t, err)
	require.Len(t, activities, 1)
	assert.Equal(t, ledger.ActivityRegister, activities[0].ActivityType)
	assert.Equal(t, m.ID, activities[0].MemberID)
}

func TestMemberService_Add_EmptyNameRejected(t *testing.T) {
	f := newMemberFixture(t)

	_, err := f.members.Add(context.Background(), gym.Member{Name: "   "})
	require.Error(t, err)
	assert.ErrorIs(t, err, gym.ErrValidation)

	var verr *gym.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "name", verr.Field)
}

func TestMemberService_Get_Missing(t *testing.T) {
	f := newMemberFixture(t)

	_, err := f.members.Get(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, gym.IsNotFound(err))
}

func TestMemberService_Update_MissingMember(t *testing.T) {
	f := newMemberFixture(t)

	_, err := f.members.Update(context.Background(), gym.Member{ID: "ghost", Name: "Ghost"})
	assert.True(t, gym.IsNotFound(err))
}

func TestMemberService_All_SortedAndCacheInvalidatedByWrite(t *testing.T) {
	f := newMemberFixture(t)
	ctx := context.Background()

	_, err := f.members.Add(ctx, gym.Member{Name: "Zineb"})
	require.NoError(t, err)

	first, err := f.members.All(ctx)
	require.NoError(t, err)
	require.Len(t, first, 1)

	// The add below must invalidate the snapshot taken above.
	_, err = f.members.Add(ctx, gym.Member{Name: "Amine"})
	require.NoError(t, err)

	all, err := f.members.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Amine", all[0].Name, "members must be sorted by name")
	assert.Equal(t, "Zineb", all[1].Name)
}

func TestMemberService_SearchAndFilter(t *testing.T) {
	f := newMemberFixture(t)
	ctx := context.Background()

	_, err := f.members.Add(ctx, gym.Member{Name: "Sara Alaoui", MembershipStatus: gym.StatusActive})
	require.NoError(t, err)
	_, err = f.members.Add(ctx, gym.Member{Name: "Sami Idrissi", MembershipStatus: gym.StatusExpired})
	require.NoError(t, err)
	_, err = f.members.Add(ctx, gym.Member{Name: "Omar Tazi", MembershipStatus: gym.StatusActive})
	require.NoError(t, err)

	bySub, err := f.members.Search(ctx, "sa")
	require.NoError(t, err)
	assert.Len(t, bySub, 2, "search is a case-insensitive substring match")

	active, err := f.members.FilterByStatus(ctx, gym.StatusActive)
	require.NoError(t, err)
	assert.Len(t, active, 2)

	both, err := f.members.SearchAndFilter(ctx, "sa", gym.StatusActive)
	require.NoError(t, err)
	require.Len(t, both, 1)
	assert.Equal(t, "Sara Alaoui", both[0].Name)
}

// =============================================================================
// ATTENDANCE TESTS
// =============================================================================

func TestMemberService_MarkAttendance_DecrementsByExactlyOne(t *testing.T) {
	f := newMemberFixture(t)
	ctx := context.Background()

	m, err := f.members.Add(ctx, gym.Member{
		Name:              "Hind",
		SubscriptionType:  gym.Sub13,
		SessionsRemaining: intPtr(5),
	})
	require.NoError(t, err)

	marked, err := f.members.MarkAttendance(ctx, m.ID)
	require.NoError(t, err)
	require.NotNil(t, marked.SessionsRemaining)
	assert.Equal(t, 4, *marked.SessionsRemaining)
	assert.Equal(t, "2026-08-29", marked.LastAttendance)

	activities, err := f.ledger.Recent(ctx, 1, true)
	require.NoError(t, err)
	require.Len(t, activities, 1)
	assert.Equal(t, ledger.ActivityCheckIn, activities[0].ActivityType)
	assert.Contains(t, activities[0].Details, "4 sessions remaining")
}

func TestMemberService_MarkAttendance_SecondVisitSameDayRejected(t *testing.T) {
	f := newMemberFixture(t)
	ctx := context.Background()

	m, err := f.members.Add(ctx, gym.Member{Name: "Hind", SubscriptionType: gym.Sub13, SessionsRemaining: intPtr(5)})
	require.NoError(t, err)

	_, err = f.members.MarkAttendance(ctx, m.ID)
	require.NoError(t, err)

	_, err = f.members.MarkAttendance(ctx, m.ID)
	require.Error(t, err)
	assert.True(t, gym.IsDomainRule(err))

	var dupErr *gym.AlreadyMarkedTodayError
	require.ErrorAs(t, err, &dupErr)
	assert.Equal(t, m.ID, dupErr.MemberID)

	// The rejected visit must not consume a session.
	got, err := f.members.Get(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, *got.SessionsRemaining)
}

func TestMemberService_MarkAttendance_ZeroSessionsRejected(t *testing.T) {
	f := newMemberFixture(t)
	ctx := context.Background()

	m, err := f.members.Add(ctx, gym.Member{Name: "Hind", SubscriptionType: gym.Sub13, SessionsRemaining: intPtr(0)})
	require.NoError(t, err)

	_, err = f.members.MarkAttendance(ctx, m.ID)
	require.Error(t, err)
	assert.True(t, gym.IsDomainRule(err))

	var noErr *gym.NoSessionsRemainingError
	assert.ErrorAs(t, err, &noErr)
}

func TestMemberService_MarkAttendance_InitializesUndefinedCount(t *testing.T) {
	// Members imported before session tracking have a subscription but no
	// count; the first visit resolves it from the session table.
	f := newMemberFixture(t)
	ctx := context.Background()

	m, err := f.members.Add(ctx, gym.Member{Name: "Hind", SubscriptionType: gym.Sub15})
	require.NoError(t, err)
	require.Nil(t, m.SessionsRemaining)

	marked, err := f.members.MarkAttendance(ctx, m.ID)
	require.NoError(t, err)
	require.NotNil(t, marked.SessionsRemaining)
	assert.Equal(t, 14, *marked.SessionsRemaining)
}

func TestMemberService_MarkAttendance_NoSubscriptionTracksNothing(t *testing.T) {
	f := newMemberFixture(t)
	ctx := context.Background()

	m, err := f.members.Add(ctx, gym.Member{Name: "Walk-in"})
	require.NoError(t, err)

	marked, err := f.members.MarkAttendance(ctx, m.ID)
	require.NoError(t, err)
	assert.Nil(t, marked.SessionsRemaining)
	assert.Equal(t, "2026-08-29", marked.LastAttendance)
}

func TestMemberService_MarkAttendance_MissingMember(t *testing.T) {
	f := newMemberFixture(t)

	_, err := f.members.MarkAttendance(context.Background(), "ghost")
	assert.True(t, gym.IsNotFound(err))
}

// =============================================================================
// RENEWAL TESTS
// =============================================================================

func TestMemberService_ResetSessions(t *testing.T) {
	f := newMemberFixture(t)
	ctx := context.Background()

	m, err := f.members.Add(ctx, gym.Member{
		Name:              "Hind",
		SubscriptionType:  gym.Sub30,
		SessionsRemaining: intPtr(1),
		MembershipStatus:  gym.StatusExpired,
	})
	require.NoError(t, err)

	renewed, err := f.members.ResetSessions(ctx, m.ID)
	require.NoError(t, err)
	require.NotNil(t, renewed.SessionsRemaining)
	assert.Equal(t, 30, *renewed.SessionsRemaining)
	assert.Equal(t, gym.PaymentPaid, renewed.PaymentStatus)
	assert.Equal(t, gym.StatusActive, renewed.MembershipStatus)

	activities, err := f.ledger.Recent(ctx, 1, true)
	require.NoError(t, err)
	require.Len(t, activities, 1)
	assert.Equal(t, ledger.ActivityRenewal, activities[0].ActivityType)
	assert.Contains(t, activities[0].Details, "30/30 sessions")
}

// =============================================================================
// IMPORT PATH TESTS
// =============================================================================

func TestMemberService_AddOrUpdateWithID_CoercesAndClamps(t *testing.T) {
	f := newMemberFixture(t)
	ctx := context.Background()

	m, err := f.members.AddOrUpdateWithID(ctx, gym.Member{
		ID:                   "imported-1",
		Name:                 "Karim",
		MembershipStatus:     "foo",
		PaymentStatus:        "bar",
		SessionsRemaining:    intPtr(-3),
		PartialPaymentAmount: decimal.NewFromInt(-50),
	})
	require.NoError(t, err)

	assert.Equal(t, "imported-1", m.ID)
	assert.Equal(t, gym.StatusPending, m.MembershipStatus, "invalid status coerces to pending")
	assert.Equal(t, gym.PaymentUnpaid, m.PaymentStatus, "invalid payment status coerces to unpaid")
	assert.Equal(t, 0, *m.SessionsRemaining, "negative counts clamp to zero")
	assert.True(t, m.PartialPaymentAmount.IsZero(), "negative amounts clamp to zero")
	assert.NotEmpty(t, m.LastAttendance)
}

func TestMemberService_AddOrUpdateWithID_IdempotentBySameID(t *testing.T) {
	f := newMemberFixture(t)
	ctx := context.Background()

	_, err := f.members.AddOrUpdateWithID(ctx, gym.Member{ID: "imp-1", Name: "Karim"})
	require.NoError(t, err)
	_, err = f.members.AddOrUpdateWithID(ctx, gym.Member{ID: "imp-1", Name: "Karim B."})
	require.NoError(t, err)

	all, err := f.members.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "Karim B.", all[0].Name)
}

// =============================================================================
// OFFLINE MIRRORING TESTS
// =============================================================================

func TestMemberService_WritesQueuedWhileOffline(t *testing.T) {
	// GIVEN: An offline connectivity state
	// WHEN: Adding a member and marking attendance
	// THEN: The writes hit the store immediately AND are mirrored into the
	//       replay queue in order

	engine := memory.New()
	conn := offline.NewSwitch(false)
	clock := &stepClock{t: time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC)}
	lgr := ledger.New(engine, 15*time.Second).WithClock(clock.now)
	ctx := context.Background()

	queue, err := offline.NewQueue(ctx, engine, conn,
		func(context.Context, offline.QueuedOperation) error { return nil },
		zaptest.NewLogger(t))
	require.NoError(t, err)

	members := gym.NewMemberService(engine, lgr, queue, zaptest.NewLogger(t),
		gym.WithMemberClock(clock.now))

	m, err := members.Add(ctx, gym.Member{Name: "Hind"})
	require.NoError(t, err)
	_, err = members.MarkAttendance(ctx, m.ID)
	require.NoError(t, err)

	// Write-through happened despite being offline.
	got, err := members.Get(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, "2026-08-29", got.LastAttendance)

	pending, err := queue.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, offline.OpMemberAdd, pending[0].Type)
	assert.Equal(t, offline.OpAttendanceMark, pending[1].Type)
}

func TestMemberService_NoQueueingWhileOnline(t *testing.T) {
	engine := memory.New()
	conn := offline.NewSwitch(true)
	lgr := ledger.New(engine, 15*time.Second)
	ctx := context.Background()

	queue, err := offline.NewQueue(ctx, engine, conn,
		func(context.Context, offline.QueuedOperation) error { return nil },
		zaptest.NewLogger(t))
	require.NoError(t, err)

	members := gym.NewMemberService(engine, lgr, queue, zaptest.NewLogger(t))

	_, err = members.Add(ctx, gym.Member{Name: "Hind"})
	require.NoError(t, err)

	pending, err := queue.Pending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}
