/*
Package gym contains the domain layer: member and payment entities,
their validated services, pricing, and bulk import/export.

PURPOSE:
  The services compose the record store, snapshot caches, offline queue,
  and activity ledger into validated CRUD and domain operations. All
  entity invariants are enforced here, before anything reaches storage.

KEY CONCEPTS IN THIS FILE (types.go):
  - Member:  gym member with optional session-based subscription
  - Payment: a recorded payment, possibly referencing a missing member
  - Enum coercion: import data is duck-typed, invalid enum values are
    defaulted to a safe member of the enum rather than rejected

DESIGN PRINCIPLES:
  1. Precision: decimal.Decimal for money, never float
  2. Optionality: SessionsRemaining is a pointer - "undefined" is a real
     state that MarkAttendance resolves from the session table
  3. Tolerance: a dangling Payment.MemberID resolves to "unknown member"
     at read time, it is never a referential integrity error
*/
package gym

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ENUMS + COERCION
// =============================================================================

type MembershipStatus string

const (
	StatusActive  MembershipStatus = "active"
	StatusExpired MembershipStatus = "expired"
	StatusPending MembershipStatus = "pending"
)

// CoerceMembershipStatus defaults invalid values to pending.
func CoerceMembershipStatus(v string) MembershipStatus {
	switch MembershipStatus(v) {
	case StatusActive, StatusExpired, StatusPending:
		return MembershipStatus(v)
	default:
		return StatusPending
	}
}

type PaymentStatus string

const (
	PaymentPaid    PaymentStatus = "paid"
	PaymentUnpaid  PaymentStatus = "unpaid"
	PaymentPartial PaymentStatus = "partial"
)

// CoercePaymentStatus defaults invalid values to unpaid.
func CoercePaymentStatus(v string) PaymentStatus {
	switch PaymentStatus(v) {
	case PaymentPaid, PaymentUnpaid, PaymentPartial:
		return PaymentStatus(v)
	default:
		return PaymentUnpaid
	}
}

type SubscriptionType string

const (
	Sub13 SubscriptionType = "13-session"
	Sub15 SubscriptionType = "15-session"
	Sub30 SubscriptionType = "30-session"
)

type PaymentMethod string

const (
	MethodCash     PaymentMethod = "cash"
	MethodCard     PaymentMethod = "card"
	MethodTransfer PaymentMethod = "transfer"
)

func CoercePaymentMethod(v string) PaymentMethod {
	switch PaymentMethod(v) {
	case MethodCash, MethodCard, MethodTransfer:
		return PaymentMethod(v)
	default:
		return MethodCash
	}
}

type PaymentState string

const (
	PaymentCompleted PaymentState = "completed"
	PaymentPendingSt PaymentState = "pending"
	PaymentCancelled PaymentState = "cancelled"
)

func CoercePaymentState(v string) PaymentState {
	switch PaymentState(v) {
	case PaymentCompleted, PaymentPendingSt, PaymentCancelled:
		return PaymentState(v)
	default:
		return PaymentCompleted
	}
}

// =============================================================================
// SESSION TABLE
// =============================================================================

// SessionTable maps a subscription type to its prepaid visit count.
type SessionTable map[SubscriptionType]int

// DefaultSessions is the fixed session table used by renewals and by
// attendance initialization.
func DefaultSessions() SessionTable {
	return SessionTable{Sub13: 13, Sub15: 15, Sub30: 30}
}

// SessionsFor returns the visit count for a subscription type, 0 when the
// type is unknown.
func (t SessionTable) SessionsFor(sub SubscriptionType) int {
	return t[sub]
}

// =============================================================================
// ENTITIES
// =============================================================================

// Member is a gym member record.
//
// INVARIANT: when SubscriptionType is set, SessionsRemaining must be
// defined and non-negative. MarkAttendance is the single place the count
// changes, so it can never go negative.
type Member struct {
	ID               string           `json:"id"`
	Name             string           `json:"name"`
	MembershipStatus MembershipStatus `json:"membershipStatus"`

	// LastAttendance is an ISO calendar day (2006-01-02), empty when the
	// member has never attended.
	LastAttendance string `json:"lastAttendance"`

	SubscriptionType  SubscriptionType `json:"subscriptionType,omitempty"`
	SessionsRemaining *int             `json:"sessionsRemaining,omitempty"`

	PaymentStatus        PaymentStatus   `json:"paymentStatus"`
	PartialPaymentAmount decimal.Decimal `json:"partialPaymentAmount"`

	Note string `json:"note,omitempty"`
}

func (m Member) RecordID() string { return m.ID }

// Payment is one recorded payment. MemberID is not enforced by a foreign
// key - a dangling reference resolves to "unknown member" at read time.
type Payment struct {
	ID       string          `json:"id"`
	MemberID string          `json:"memberId"`
	Amount   decimal.Decimal `json:"amount"`
	Date     string          `json:"date"`

	// SubscriptionType is a free-form label driving price lookup.
	SubscriptionType string `json:"subscriptionType"`

	PaymentMethod PaymentMethod `json:"paymentMethod"`
	Status        PaymentState  `json:"status"`
	InvoiceNumber string        `json:"invoiceNumber,omitempty"`
	Notes         string        `json:"notes,omitempty"`
}

func (p Payment) RecordID() string { return p.ID }

// UnknownMemberName is the display name for a dangling MemberID.
const UnknownMemberName = "unknown member"

// =============================================================================
// ID + TIME HELPERS
// =============================================================================

// NewID returns a clock-derived record id.
func NewID(now time.Time) string {
	return strconv.FormatInt(now.UnixNano(), 10)
}

// DayOf truncates an instant to its ISO calendar day.
func DayOf(t time.Time) string {
	return t.Format("2006-01-02")
}

// sanitizeName trims whitespace; the empty result means invalid.
func sanitizeName(name string) string {
	return strings.TrimSpace(name)
}

// clampInt floors negative values at zero.
func clampInt(v int) int {
	if v < 0 {
		return 0
	}
	return v
}

// clampDecimal floors negative amounts at zero.
func clampDecimal(v decimal.Decimal) decimal.Decimal {
	if v.IsNegative() {
		return decimal.Zero
	}
	return v
}
