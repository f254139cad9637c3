/*
port.go - Bulk export/import of the full data set

PURPOSE:
  Export bundles members, payments, and activities into one JSON document
  with a metadata envelope. Import accepts three historical shapes of
  that document and upserts records by id with per-record isolation: one
  bad record never aborts the batch.

ACCEPTED IMPORT SHAPES:
  1. Current:  {metadata, data:{payments, members, activities}}
  2. Legacy:   {payments, members, activities}
  3. Flat heterogeneous array, disambiguated by field sniffing:
     amount => payment, name => member, activityType => activity

BATCHING:
  Records are processed in fixed-size batches (default 10). Items within
  a batch run concurrently; the batch is awaited to completion before the
  next one starts, with a small pause in between. This bounds peak
  concurrent storage operations and gives the engine breathing room,
  trading throughput for stability. Completed batches stay committed -
  there is no rollback.

ERROR POLICY:
  Per-record failures (validation, verification, storage) are collected
  into the report. Only the zero-importable-records case is a fatal
  top-level error. Activity appends are best-effort: a lost audit entry
  must not block a large import.
*/
package gym

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/atlasgym/gym-engine/ledger"
)

// ExportVersion identifies the current backup document shape.
const ExportVersion = "4.0"

// =============================================================================
// DOCUMENT SHAPES
// =============================================================================

type DataIntegrity struct {
	PaymentsChecksum   int  `json:"paymentsChecksum"`
	MembersChecksum    int  `json:"membersChecksum"`
	ActivitiesChecksum int  `json:"activitiesChecksum"`
	ExportComplete     bool `json:"exportComplete"`
}

type Metadata struct {
	ExportDate      string          `json:"exportDate"`
	Version         string          `json:"version"`
	ExportID        string          `json:"exportId"`
	TotalPayments   int             `json:"totalPayments"`
	TotalMembers    int             `json:"totalMembers"`
	TotalActivities int             `json:"totalActivities"`
	TotalRevenue    decimal.Decimal `json:"totalRevenue"`
	DataIntegrity   DataIntegrity   `json:"dataIntegrity"`
}

type BackupData struct {
	Payments   []Payment         `json:"payments"`
	Members    []Member          `json:"members"`
	Activities []ledger.Activity `json:"activities"`
}

type Backup struct {
	Metadata Metadata   `json:"metadata"`
	Data     BackupData `json:"data"`
}

// ImportReport summarizes an import run.
type ImportReport struct {
	Members    int      `json:"members"`
	Payments   int      `json:"payments"`
	Activities int      `json:"activities"`
	Errors     []string `json:"errors,omitempty"`
}

// =============================================================================
// PORTER
// =============================================================================

// Porter performs bulk export and import over the domain services.
type Porter struct {
	members  *MemberService
	payments *PaymentService
	ledger   *ledger.Ledger
	log      *zap.Logger

	batchSize  int
	batchPause time.Duration
}

type PorterOption func(*Porter)

// WithBatching overrides batch size and inter-batch pause. Tests use a
// zero pause.
func WithBatching(size int, pause time.Duration) PorterOption {
	return func(p *Porter) {
		if size > 0 {
			p.batchSize = size
		}
		p.batchPause = pause
	}
}

func NewPorter(members *MemberService, payments *PaymentService, l *ledger.Ledger, log *zap.Logger, opts ...PorterOption) *Porter {
	p := &Porter{
		members:    members,
		payments:   payments,
		ledger:     l,
		log:        log,
		batchSize:  10,
		batchPause: 100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// =============================================================================
// EXPORT
// =============================================================================

// Export bundles the full data set. Reads bypass the snapshot caches so
// the document reflects the store, not a cached view.
func (p *Porter) Export(ctx context.Context) (*Backup, error) {
	members, err := p.members.members.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("export members: %w", err)
	}
	payments, err := p.payments.payments.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("export payments: %w", err)
	}
	activities, err := p.ledger.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("export activities: %w", err)
	}

	revenue := decimal.Zero
	for _, pay := range payments {
		revenue = revenue.Add(pay.Amount)
	}

	return &Backup{
		Metadata: Metadata{
			ExportDate:      time.Now().UTC().Format(time.RFC3339),
			Version:         ExportVersion,
			ExportID:        "export-" + uuid.NewString(),
			TotalPayments:   len(payments),
			TotalMembers:    len(members),
			TotalActivities: len(activities),
			TotalRevenue:    revenue,
			DataIntegrity: DataIntegrity{
				PaymentsChecksum:   len(payments),
				MembersChecksum:    len(members),
				ActivitiesChecksum: len(activities),
				ExportComplete:     true,
			},
		},
		Data: BackupData{
			Payments:   payments,
			Members:    members,
			Activities: activities,
		},
	}, nil
}

// =============================================================================
// IMPORT
// =============================================================================

// Import parses any accepted document shape and upserts its records.
func (p *Porter) Import(ctx context.Context, raw []byte) (*ImportReport, error) {
	members, payments, activities, err := parseBackup(raw)
	if err != nil {
		return nil, err
	}
	if len(members) == 0 && len(payments) == 0 && len(activities) == 0 {
		return nil, &ImportRecordError{Kind: "import", Reason: "no importable records in document"}
	}

	report := &ImportReport{}
	var mu sync.Mutex

	recordErr := func(err error) {
		mu.Lock()
		report.Errors = append(report.Errors, err.Error())
		mu.Unlock()
	}

	// Members first so payment/activity references resolve where possible.
	p.inBatches(ctx, len(members), func(g *errgroup.Group, i int) {
		g.Go(func() error {
			raw := members[i]
			var m Member
			if err := json.Unmarshal(raw, &m); err != nil {
				recordErr(&ImportRecordError{Kind: "member", Index: i, Reason: err.Error()})
				return nil
			}
			if m.ID == "" {
				m.ID = "imported-member-" + uuid.NewString()
			}
			if _, err := p.members.AddOrUpdateWithID(ctx, m); err != nil {
				recordErr(&ImportRecordError{Kind: "member", Index: i, Reason: err.Error()})
				return nil
			}
			mu.Lock()
			report.Members++
			mu.Unlock()
			return nil
		})
	})

	p.inBatches(ctx, len(payments), func(g *errgroup.Group, i int) {
		g.Go(func() error {
			raw := payments[i]
			var pay Payment
			if err := json.Unmarshal(raw, &pay); err != nil {
				recordErr(&ImportRecordError{Kind: "payment", Index: i, Reason: err.Error()})
				return nil
			}
			if pay.ID == "" {
				pay.ID = "imported-payment-" + uuid.NewString()
			}
			if _, err := p.payments.AddOrUpdateWithID(ctx, pay); err != nil {
				recordErr(&ImportRecordError{Kind: "payment", Index: i, Reason: err.Error()})
				return nil
			}
			mu.Lock()
			report.Payments++
			mu.Unlock()
			return nil
		})
	})

	// Activities are best-effort audit history.
	p.inBatches(ctx, len(activities), func(g *errgroup.Group, i int) {
		g.Go(func() error {
			raw := activities[i]
			var a ledger.Activity
			if err := json.Unmarshal(raw, &a); err != nil {
				recordErr(&ImportRecordError{Kind: "activity", Index: i, Reason: err.Error()})
				return nil
			}
			if _, err := p.ledger.Append(ctx, a); err != nil {
				recordErr(&ImportRecordError{Kind: "activity", Index: i, Reason: err.Error()})
				return nil
			}
			mu.Lock()
			report.Activities++
			mu.Unlock()
			return nil
		})
	})

	p.log.Info("import finished",
		zap.Int("members", report.Members),
		zap.Int("payments", report.Payments),
		zap.Int("activities", report.Activities),
		zap.Int("errors", len(report.Errors)))
	return report, nil
}

// inBatches runs enqueue for indices [0, n) in fixed-size batches,
// awaiting each batch before the next and pausing briefly in between.
// Item errors are collected by the callbacks, never returned, so the
// group wait cannot fail.
func (p *Porter) inBatches(ctx context.Context, n int, enqueue func(g *errgroup.Group, i int)) {
	for start := 0; start < n; start += p.batchSize {
		end := start + p.batchSize
		if end > n {
			end = n
		}
		g, _ := errgroup.WithContext(ctx)
		for i := start; i < end; i++ {
			enqueue(g, i)
		}
		_ = g.Wait()

		if end < n && p.batchPause > 0 {
			select {
			case <-time.After(p.batchPause):
			case <-ctx.Done():
				// Abandoning between batches commits completed batches.
				return
			}
		}
	}
}

// =============================================================================
// DOCUMENT PARSING
// =============================================================================

// parseBackup extracts raw record lists from any accepted shape.
func parseBackup(raw []byte) (members, payments, activities []json.RawMessage, err error) {
	// Current shape: {metadata, data:{...}}
	var current struct {
		Data *struct {
			Payments   []json.RawMessage `json:"payments"`
			Members    []json.RawMessage `json:"members"`
			Activities []json.RawMessage `json:"activities"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &current); err == nil && current.Data != nil {
		return current.Data.Members, current.Data.Payments, current.Data.Activities, nil
	}

	// Legacy shape: flat {payments, members, activities}
	var legacy struct {
		Payments   []json.RawMessage `json:"payments"`
		Members    []json.RawMessage `json:"members"`
		Activities []json.RawMessage `json:"activities"`
	}
	if err := json.Unmarshal(raw, &legacy); err == nil &&
		(legacy.Payments != nil || legacy.Members != nil || legacy.Activities != nil) {
		return legacy.Members, legacy.Payments, legacy.Activities, nil
	}

	// Mixed array, sniffed by field.
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err == nil {
		for _, item := range items {
			var probe map[string]json.RawMessage
			if json.Unmarshal(item, &probe) != nil {
				continue
			}
			switch {
			case probe["amount"] != nil:
				payments = append(payments, item)
			case probe["name"] != nil:
				members = append(members, item)
			case probe["activityType"] != nil:
				activities = append(activities, item)
			}
		}
		return members, payments, activities, nil
	}

	return nil, nil, nil, &ImportRecordError{Kind: "import", Reason: "unrecognized document shape"}
}
