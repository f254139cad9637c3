package offline

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/atlasgym/gym-engine/store"
)

// OpType tags a queued operation by domain action.
type OpType string

const (
	OpMemberAdd      OpType = "member_add"
	OpMemberUpdate   OpType = "member_update"
	OpAttendanceMark OpType = "attendance_mark"
	OpPaymentAdd     OpType = "payment_add"
	OpPaymentUpdate  OpType = "payment_update"
)

// QueuedOperation is one pending mutation. Seq preserves enqueue order.
type QueuedOperation struct {
	Seq        int64           `json:"seq"`
	Type       OpType          `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	EnqueuedAt string          `json:"enqueuedAt"`
}

// RecordID is zero-padded so lexicographic id order matches enqueue order
// regardless of how the engine iterates.
func (op QueuedOperation) RecordID() string {
	return fmt.Sprintf("%020d", op.Seq)
}

// Gauge is the minimal metrics hook, satisfied by prometheus.Gauge.
type Gauge interface {
	Set(float64)
}

// Applier replays one queued operation. Replay of one item is atomic with
// respect to the queue: the item is removed only after Apply succeeds.
type Applier func(ctx context.Context, op QueuedOperation) error

// =============================================================================
// QUEUE - Durable FIFO replay log
// =============================================================================

type Queue struct {
	ops   *store.Collection[QueuedOperation]
	conn  Connectivity
	apply Applier
	log   *zap.Logger

	mu      sync.Mutex
	nextSeq int64
	depth   Gauge
}

// NewQueue builds the queue on top of its own store collection. Pending
// operations from a previous session survive a restart; the next sequence
// number continues after the highest one found.
func NewQueue(ctx context.Context, engine store.Engine, conn Connectivity, apply Applier, log *zap.Logger) (*Queue, error) {
	q := &Queue{
		ops:   store.NewCollection[QueuedOperation](engine, store.CollectionQueue),
		conn:  conn,
		apply: apply,
		log:   log,
	}

	pending, err := q.ops.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("load offline queue: %w", err)
	}
	for _, op := range pending {
		if op.Seq >= q.nextSeq {
			q.nextSeq = op.Seq + 1
		}
	}
	q.updateDepth(len(pending))
	return q, nil
}

// WithDepthGauge wires a queue-depth gauge.
func (q *Queue) WithDepthGauge(g Gauge) *Queue {
	q.depth = g
	return q
}

// IsOnline reports the injected connectivity state.
func (q *Queue) IsOnline() bool { return q.conn.IsOnline() }

// Start subscribes to connectivity transitions: every offline->online
// transition triggers a drain. Returns the unsubscribe func.
func (q *Queue) Start(ctx context.Context) (cancel func()) {
	return q.conn.Subscribe(func(online bool) {
		if !online {
			return
		}
		if err := q.Drain(ctx); err != nil {
			q.log.Warn("offline queue drain halted", zap.Error(err))
		}
	})
}

// Enqueue durably appends a pending mutation.
func (q *Queue) Enqueue(ctx context.Context, typ OpType, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode queued operation: %w", err)
	}

	q.mu.Lock()
	op := QueuedOperation{
		Seq:        q.nextSeq,
		Type:       typ,
		Payload:    body,
		EnqueuedAt: time.Now().UTC().Format(time.RFC3339),
	}
	q.nextSeq++
	q.mu.Unlock()

	if err := q.ops.Put(ctx, op); err != nil {
		return err
	}
	q.refreshDepth(ctx)
	return nil
}

// Pending returns the queued operations in enqueue order.
func (q *Queue) Pending(ctx context.Context) ([]QueuedOperation, error) {
	ops, err := q.ops.All(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(ops, func(i, j int) bool { return ops[i].Seq < ops[j].Seq })
	return ops, nil
}

// Drain replays pending operations strictly in FIFO order, one at a time.
// An item that fails to apply halts the cycle; it stays queued and is
// retried on the next connectivity event.
func (q *Queue) Drain(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	ops, err := q.Pending(ctx)
	if err != nil {
		return err
	}

	for _, op := range ops {
		if err := q.apply(ctx, op); err != nil {
			q.updateDepth(q.countLocked(ctx))
			return fmt.Errorf("replay op %d (%s): %w", op.Seq, op.Type, err)
		}
		if err := q.ops.Remove(ctx, op.RecordID()); err != nil {
			q.updateDepth(q.countLocked(ctx))
			return fmt.Errorf("dequeue op %d: %w", op.Seq, err)
		}
		q.log.Debug("replayed offline operation",
			zap.Int64("seq", op.Seq),
			zap.String("type", string(op.Type)))
	}
	q.updateDepth(0)
	return nil
}

func (q *Queue) countLocked(ctx context.Context) int {
	ops, err := q.ops.All(ctx)
	if err != nil {
		return 0
	}
	return len(ops)
}

func (q *Queue) refreshDepth(ctx context.Context) {
	if q.depth == nil {
		return
	}
	ops, err := q.ops.All(ctx)
	if err != nil {
		return
	}
	q.updateDepth(len(ops))
}

func (q *Queue) updateDepth(n int) {
	if q.depth != nil {
		q.depth.Set(float64(n))
	}
}
