/*
Package offline tracks mutations made without connectivity and replays
them, in order, once connectivity returns.

PURPOSE:
  Writes are applied to the local store immediately even while offline,
  so the UI reflects state instantly. The queue is a replay log for the
  operations that still need to be reconciled once back online (for
  example pushed to a future remote backend) - it is NOT the system of
  record.

CONNECTIVITY:
  The platform's online/offline signal is modeled as an injected
  Connectivity provider, so tests substitute a deterministic Switch
  instead of listening to ambient events.

ORDERING:
  Replay is strictly FIFO. A failed item halts the drain cycle and is
  retried on the next connectivity event - the queue is never reordered
  and never dropped silently.
*/
package offline

import "sync"

// Connectivity exposes the host platform's online/offline signal.
type Connectivity interface {
	// IsOnline reports the current connectivity state.
	IsOnline() bool

	// Subscribe registers fn for state transitions. The returned cancel
	// removes the subscription.
	Subscribe(fn func(online bool)) (cancel func())
}

// =============================================================================
// SWITCH - Deterministic Connectivity implementation
// =============================================================================

// Switch is a Connectivity implementation driven by explicit Set calls.
// Production wires it to the host's connectivity signal; tests flip it
// directly.
type Switch struct {
	mu     sync.Mutex
	online bool
	nextID int
	subs   map[int]func(online bool)
}

func NewSwitch(online bool) *Switch {
	return &Switch{online: online, subs: make(map[int]func(bool))}
}

func (s *Switch) IsOnline() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.online
}

// Set changes the state and notifies subscribers on transitions.
// Setting the current state again is a no-op.
func (s *Switch) Set(online bool) {
	s.mu.Lock()
	if s.online == online {
		s.mu.Unlock()
		return
	}
	s.online = online
	fns := make([]func(bool), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(online)
	}
}

func (s *Switch) Subscribe(fn func(online bool)) (cancel func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}
