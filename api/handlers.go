/*
handlers.go - HTTP API handlers for the gym data layer

PURPOSE:
  Exposes the gym data layer via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Members:
    GET    /api/members                 List (optional ?q= and ?status=)
    POST   /api/members                 Create member
    GET    /api/members/{id}            Get member
    PUT    /api/members/{id}            Update member
    DELETE /api/members/{id}            Delete member
    POST   /api/members/{id}/attendance      Mark a visit
    POST   /api/members/{id}/reset-sessions  Renew the session allotment
    GET    /api/members/{id}/payments   Payment history for a member

  Payments:
    GET    /api/payments                List all payments (newest first)
    POST   /api/payments                Record payment
    GET    /api/payments/statistics     Revenue buckets
    GET    /api/payments/pending        Members with outstanding dues

  Activities:
    GET    /api/activities              Recent feed (?limit=, ?refresh=true)

  Backup:
    GET    /api/backup/export           Full backup document
    POST   /api/backup/import           Import a backup (3 shapes accepted)

  Offline:
    GET    /api/queue                   Pending queued operations
    GET    /api/connectivity            Current online state
    PUT    /api/connectivity            Flip online state (drains on true)

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input, unusable import documents
  - 404: Record not found
  - 409: Domain rule violation (no sessions left, duplicate check-in)
  - 500: Storage failures

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/atlasgym/gym-engine/gym"
	"github.com/atlasgym/gym-engine/ledger"
	"github.com/atlasgym/gym-engine/offline"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Members  *gym.MemberService
	Payments *gym.PaymentService
	Porter   *gym.Porter
	Ledger   *ledger.Ledger
	Queue    *offline.Queue
	Conn     *offline.Switch
	Log      *zap.Logger
}

// =============================================================================
// MEMBER HANDLERS
// =============================================================================

// ListMembers returns all members, optionally filtered by ?q= (name
// substring) and ?status= (membership status).
func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	status := r.URL.Query().Get("status")

	var (
		members []gym.Member
		err     error
	)
	switch {
	case q != "" && status != "":
		members, err = h.Members.SearchAndFilter(r.Context(), q, gym.MembershipStatus(status))
	case q != "":
		members, err = h.Members.Search(r.Context(), q)
	case status != "":
		members, err = h.Members.FilterByStatus(r.Context(), gym.MembershipStatus(status))
	default:
		members, err = h.Members.All(r.Context())
	}
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if members == nil {
		members = []gym.Member{}
	}
	writeJSON(w, http.StatusOK, members)
}

// GetMember returns a single member.
func (h *Handler) GetMember(w http.ResponseWriter, r *http.Request) {
	m, err := h.Members.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// CreateMember creates a new member.
func (h *Handler) CreateMember(w http.ResponseWriter, r *http.Request) {
	var m gym.Member
	if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body", err)
		return
	}

	created, err := h.Members.Add(r.Context(), m)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// UpdateMember updates an existing member. The path id wins over any id
// in the body.
func (h *Handler) UpdateMember(w http.ResponseWriter, r *http.Request) {
	var m gym.Member
	if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body", err)
		return
	}
	m.ID = chi.URLParam(r, "id")

	updated, err := h.Members.Update(r.Context(), m)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// DeleteMember removes a member.
func (h *Handler) DeleteMember(w http.ResponseWriter, r *http.Request) {
	if err := h.Members.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MarkAttendance records a visit for today.
func (h *Handler) MarkAttendance(w http.ResponseWriter, r *http.Request) {
	m, err := h.Members.MarkAttendance(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// ResetSessions renews a member's session allotment from their
// subscription type.
func (h *Handler) ResetSessions(w http.ResponseWriter, r *http.Request) {
	m, err := h.Members.ResetSessions(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// ListMemberPayments returns the payment history for one member, newest
// first.
func (h *Handler) ListMemberPayments(w http.ResponseWriter, r *http.Request) {
	payments, err := h.Payments.ForMember(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if payments == nil {
		payments = []gym.Payment{}
	}
	writeJSON(w, http.StatusOK, payments)
}

// =============================================================================
// PAYMENT HANDLERS
// =============================================================================

// ListPayments returns all payments, newest first.
func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	payments, err := h.Payments.All(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if payments == nil {
		payments = []gym.Payment{}
	}
	writeJSON(w, http.StatusOK, payments)
}

// GetPayment returns a single payment.
func (h *Handler) GetPayment(w http.ResponseWriter, r *http.Request) {
	p, err := h.Payments.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// CreatePayment records a new payment.
func (h *Handler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	var p gym.Payment
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body", err)
		return
	}

	created, err := h.Payments.Add(r.Context(), p)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// UpdatePayment updates an existing payment.
func (h *Handler) UpdatePayment(w http.ResponseWriter, r *http.Request) {
	var p gym.Payment
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body", err)
		return
	}
	p.ID = chi.URLParam(r, "id")

	updated, err := h.Payments.Update(r.Context(), p)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// DeletePayment removes a payment record.
func (h *Handler) DeletePayment(w http.ResponseWriter, r *http.Request) {
	if err := h.Payments.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PaymentStatistics returns revenue aggregates over completed payments.
func (h *Handler) PaymentStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Payments.Statistics(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// PendingPayments returns the derived list of members with outstanding
// dues.
func (h *Handler) PendingPayments(w http.ResponseWriter, r *http.Request) {
	pending, err := h.Payments.Pending(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if pending == nil {
		pending = []gym.PendingPayment{}
	}
	writeJSON(w, http.StatusOK, pending)
}

// =============================================================================
// ACTIVITY HANDLERS
// =============================================================================

// ListActivities returns the recent activity feed, newest first.
// ?limit= caps the result (default 50), ?refresh=true bypasses the
// snapshot cache.
func (h *Handler) ListActivities(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer", err)
			return
		}
		limit = n
	}
	refresh := r.URL.Query().Get("refresh") == "true"

	activities, err := h.Ledger.Recent(r.Context(), limit, refresh)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if activities == nil {
		activities = []ledger.Activity{}
	}
	writeJSON(w, http.StatusOK, activities)
}

// =============================================================================
// BACKUP HANDLERS
// =============================================================================

// ExportBackup streams a full backup document.
func (h *Handler) ExportBackup(w http.ResponseWriter, r *http.Request) {
	backup, err := h.Porter.Export(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="gym-backup.json"`)
	writeJSON(w, http.StatusOK, backup)
}

// ImportBackup ingests a backup document and returns the per-record
// report. Partial success is a 200: the report carries the failures.
func (h *Handler) ImportBackup(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 64<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read request body", err)
		return
	}

	report, err := h.Porter.Import(r.Context(), raw)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// =============================================================================
// OFFLINE QUEUE HANDLERS
// =============================================================================

// ListQueue returns the pending offline operations in replay order.
func (h *Handler) ListQueue(w http.ResponseWriter, r *http.Request) {
	ops, err := h.Queue.Pending(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if ops == nil {
		ops = []offline.QueuedOperation{}
	}
	writeJSON(w, http.StatusOK, QueueDTO{Depth: len(ops), Operations: ops})
}

// GetConnectivity reports the current online state.
func (h *Handler) GetConnectivity(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ConnectivityDTO{Online: h.Conn.IsOnline()})
}

// SetConnectivity flips the online state. Transitioning to online kicks
// off a queue drain.
func (h *Handler) SetConnectivity(w http.ResponseWriter, r *http.Request) {
	var req ConnectivityDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body", err)
		return
	}
	h.Conn.Set(req.Online)
	writeJSON(w, http.StatusOK, ConnectivityDTO{Online: h.Conn.IsOnline()})
}

// Health is a liveness probe.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

// writeDomainError maps domain errors onto HTTP statuses.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case gym.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Not found", err)
	case errors.Is(err, gym.ErrValidation):
		writeError(w, http.StatusBadRequest, "Validation failed", err)
	case gym.IsDomainRule(err):
		writeError(w, http.StatusConflict, "Domain rule violation", err)
	case errors.Is(err, gym.ErrImportRecord):
		writeError(w, http.StatusBadRequest, "Import document unusable", err)
	default:
		if h.Log != nil {
			h.Log.Error("request failed", zap.Error(err))
		}
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	body := ErrorDTO{Error: message}
	if err != nil {
		body.Detail = err.Error()
	}
	writeJSON(w, status, body)
}
