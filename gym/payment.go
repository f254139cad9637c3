/*
payment.go - Payment service: validated CRUD + statistics + pending rows

PURPOSE:
  Records payments, resolves prices from the configured price list, and
  derives two read models: revenue statistics and the pending-payments
  list. Payments are not snapshot-cached: the collection is small and
  read mostly in admin views, a full scan is cheap relative to members.

PENDING PAYMENTS:
  The pending list is synthesized from Member payment state (unpaid or
  partial), not from payment records. Member.PartialPaymentAmount and the
  synthetic rows are two independently consistent read models fed by the
  same Member state - there is deliberately no reconciliation invariant
  between them.
*/
package gym

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/atlasgym/gym-engine/ledger"
	"github.com/atlasgym/gym-engine/offline"
	"github.com/atlasgym/gym-engine/store"
)

// PaymentService owns the payments collection.
type PaymentService struct {
	payments *store.Collection[Payment]
	members  *MemberService
	ledger   *ledger.Ledger
	queue    *offline.Queue
	priceFor PriceResolver
	log      *zap.Logger
	now      func() time.Time
}

type PaymentOption func(*PaymentService)

// WithPaymentClock injects a clock for tests.
func WithPaymentClock(now func() time.Time) PaymentOption {
	return func(s *PaymentService) { s.now = now }
}

// NewPaymentService wires the payment domain. priceFor is treated as a
// black box (configuration-driven lookup).
func NewPaymentService(engine store.Engine, members *MemberService, l *ledger.Ledger, queue *offline.Queue, priceFor PriceResolver, log *zap.Logger, opts ...PaymentOption) *PaymentService {
	s := &PaymentService{
		payments: store.NewCollection[Payment](engine, store.CollectionPayments),
		members:  members,
		ledger:   l,
		queue:    queue,
		priceFor: priceFor,
		log:      log,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// =============================================================================
// READS
// =============================================================================

// Get returns the payment, or NotFoundError.
func (s *PaymentService) Get(ctx context.Context, id string) (*Payment, error) {
	p, err := s.payments.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, &NotFoundError{Kind: "payment", ID: id}
	}
	return p, nil
}

// All returns every payment ordered newest-first by date.
func (s *PaymentService) All(ctx context.Context) ([]Payment, error) {
	payments, err := s.payments.All(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(payments, func(i, j int) bool {
		return payments[i].Date > payments[j].Date
	})
	return payments, nil
}

// ForMember returns the payments referencing one member.
func (s *PaymentService) ForMember(ctx context.Context, memberID string) ([]Payment, error) {
	all, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	var out []Payment
	for _, p := range all {
		if p.MemberID == memberID {
			out = append(out, p)
		}
	}
	return out, nil
}

// MemberName resolves a payment's member for display. A dangling
// reference is tolerated and resolves to UnknownMemberName.
func (s *PaymentService) MemberName(ctx context.Context, memberID string) string {
	m, err := s.members.Get(ctx, memberID)
	if err != nil || m == nil {
		return UnknownMemberName
	}
	return m.Name
}

// =============================================================================
// WRITES
// =============================================================================

// Add records a payment. Amount must be non-negative; enums are coerced.
func (s *PaymentService) Add(ctx context.Context, p Payment) (Payment, error) {
	if p.Amount.IsNegative() {
		return Payment{}, &ValidationError{Field: "amount", Reason: "must not be negative"}
	}

	now := s.now()
	p.ID = NewID(now)
	if p.Date == "" {
		p.Date = now.UTC().Format(time.RFC3339)
	}
	p.PaymentMethod = CoercePaymentMethod(string(p.PaymentMethod))
	p.Status = CoercePaymentState(string(p.Status))
	if p.InvoiceNumber == "" {
		p.InvoiceNumber = "INV-" + p.ID
	}

	if err := s.mirrorOffline(ctx, offline.OpPaymentAdd, p); err != nil {
		return Payment{}, err
	}
	if err := s.payments.Put(ctx, p); err != nil {
		return Payment{}, err
	}

	if _, err := s.ledger.Append(ctx, ledger.Activity{
		MemberID:     p.MemberID,
		MemberName:   s.MemberName(ctx, p.MemberID),
		ActivityType: ledger.ActivityPayment,
		Details:      fmt.Sprintf("payment of %s (%s)", p.Amount.String(), p.SubscriptionType),
	}); err != nil {
		return Payment{}, err
	}
	return p, nil
}

// Update overwrites an existing payment.
func (s *PaymentService) Update(ctx context.Context, p Payment) (Payment, error) {
	if p.ID == "" {
		return Payment{}, &ValidationError{Field: "id", Reason: "must not be empty"}
	}
	if p.Amount.IsNegative() {
		return Payment{}, &ValidationError{Field: "amount", Reason: "must not be negative"}
	}

	existing, err := s.payments.Get(ctx, p.ID)
	if err != nil {
		return Payment{}, err
	}
	if existing == nil {
		return Payment{}, &NotFoundError{Kind: "payment", ID: p.ID}
	}

	p.PaymentMethod = CoercePaymentMethod(string(p.PaymentMethod))
	p.Status = CoercePaymentState(string(p.Status))

	if err := s.mirrorOffline(ctx, offline.OpPaymentUpdate, p); err != nil {
		return Payment{}, err
	}
	if err := s.payments.Put(ctx, p); err != nil {
		return Payment{}, err
	}
	return p, nil
}

// Delete removes a payment. Deleting an absent id is a no-op.
func (s *PaymentService) Delete(ctx context.Context, id string) error {
	return s.payments.Remove(ctx, id)
}

// Price resolves the configured price for a subscription label.
func (s *PaymentService) Price(subscriptionType string) decimal.Decimal {
	return s.priceFor(subscriptionType)
}

// AddOrUpdateWithID upserts a payment under an externally supplied id
// (import path), clamping the amount and coercing enums, with read-back
// verification.
func (s *PaymentService) AddOrUpdateWithID(ctx context.Context, p Payment) (Payment, error) {
	if p.ID == "" {
		return Payment{}, &ValidationError{Field: "id", Reason: "must not be empty"}
	}

	p.Amount = clampDecimal(p.Amount)
	if p.MemberID == "" {
		p.MemberID = "unknown"
	}
	if p.Date == "" {
		p.Date = s.now().UTC().Format(time.RFC3339)
	}
	p.PaymentMethod = CoercePaymentMethod(string(p.PaymentMethod))
	p.Status = CoercePaymentState(string(p.Status))
	if p.InvoiceNumber == "" {
		p.InvoiceNumber = "INV-" + p.ID
	}

	if err := s.payments.Put(ctx, p); err != nil {
		return Payment{}, err
	}
	back, err := s.payments.Get(ctx, p.ID)
	if err != nil {
		return Payment{}, err
	}
	if back == nil {
		return Payment{}, &store.VerificationError{Collection: store.CollectionPayments, ID: p.ID}
	}
	return *back, nil
}

// =============================================================================
// READ MODELS
// =============================================================================

// Statistics aggregates revenue over completed payments.
type Statistics struct {
	TotalRevenue decimal.Decimal `json:"totalRevenue"`
	MonthRevenue decimal.Decimal `json:"monthRevenue"`
	WeekRevenue  decimal.Decimal `json:"weekRevenue"`
	TodayRevenue decimal.Decimal `json:"todayRevenue"`
}

// Statistics computes revenue buckets. Payments with unparseable dates
// count toward the total only.
func (s *PaymentService) Statistics(ctx context.Context) (Statistics, error) {
	payments, err := s.payments.All(ctx)
	if err != nil {
		return Statistics{}, err
	}

	now := s.now()
	today := DayOf(now)
	weekAgo := now.AddDate(0, 0, -7)

	stats := Statistics{
		TotalRevenue: decimal.Zero,
		MonthRevenue: decimal.Zero,
		WeekRevenue:  decimal.Zero,
		TodayRevenue: decimal.Zero,
	}
	for _, p := range payments {
		if p.Status != PaymentCompleted {
			continue
		}
		stats.TotalRevenue = stats.TotalRevenue.Add(p.Amount)

		t, err := time.Parse(time.RFC3339, p.Date)
		if err != nil {
			continue
		}
		if t.Year() == now.Year() && t.Month() == now.Month() {
			stats.MonthRevenue = stats.MonthRevenue.Add(p.Amount)
		}
		if t.After(weekAgo) {
			stats.WeekRevenue = stats.WeekRevenue.Add(p.Amount)
		}
		if DayOf(t) == today {
			stats.TodayRevenue = stats.TodayRevenue.Add(p.Amount)
		}
	}
	return stats, nil
}

// PendingPayment is a synthetic row for a member who still owes money.
type PendingPayment struct {
	MemberID         string          `json:"memberId"`
	MemberName       string          `json:"memberName"`
	SubscriptionType string          `json:"subscriptionType"`
	Due              decimal.Decimal `json:"due"`
	AlreadyPaid      decimal.Decimal `json:"alreadyPaid"`
	PaymentStatus    PaymentStatus   `json:"paymentStatus"`
}

// Pending derives the pending-payments list from member payment state.
func (s *PaymentService) Pending(ctx context.Context) ([]PendingPayment, error) {
	members, err := s.members.All(ctx)
	if err != nil {
		return nil, err
	}

	var out []PendingPayment
	for _, m := range members {
		if m.PaymentStatus == PaymentPaid {
			continue
		}
		price := s.priceFor(string(m.SubscriptionType))
		due := price.Sub(m.PartialPaymentAmount)
		if due.IsNegative() {
			due = decimal.Zero
		}
		out = append(out, PendingPayment{
			MemberID:         m.ID,
			MemberName:       m.Name,
			SubscriptionType: string(m.SubscriptionType),
			Due:              due,
			AlreadyPaid:      m.PartialPaymentAmount,
			PaymentStatus:    m.PaymentStatus,
		})
	}
	return out, nil
}

func (s *PaymentService) mirrorOffline(ctx context.Context, typ offline.OpType, payload any) error {
	if s.queue == nil || s.queue.IsOnline() {
		return nil
	}
	if err := s.queue.Enqueue(ctx, typ, payload); err != nil {
		return fmt.Errorf("enqueue offline %s: %w", typ, err)
	}
	s.log.Debug("mutation queued for replay", zap.String("type", string(typ)))
	return nil
}
