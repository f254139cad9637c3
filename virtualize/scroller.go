package virtualize

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultScrollInterval bounds recomputation to roughly 60 updates per
// second (one per ~16ms).
const DefaultScrollInterval = 16 * time.Millisecond

// =============================================================================
// SCROLLER - Rate-limited scroll position updates
// =============================================================================

// Scroller coalesces scroll-position updates: an update inside the rate
// window is not dropped but deferred, and updates arriving faster than
// the window are collapsed to the latest value. This bounds window
// recomputation under fast scrolling.
type Scroller struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	apply   func(scrollTop int)

	interval   time.Duration
	last       time.Time
	timer      *time.Timer
	pending    int
	hasPending bool
}

// NewScroller builds a scroller invoking apply with the effective scroll
// position at most once per interval. A zero interval means the default
// ~60/s.
func NewScroller(apply func(scrollTop int), interval time.Duration) *Scroller {
	if interval <= 0 {
		interval = DefaultScrollInterval
	}
	return &Scroller{
		limiter:  rate.NewLimiter(rate.Every(interval), 1),
		apply:    apply,
		interval: interval,
	}
}

// SetScrollTop records a new scroll position. Inside the rate window the
// value is coalesced and applied when the window reopens.
func (s *Scroller) SetScrollTop(v int) {
	s.mu.Lock()

	if s.limiter.Allow() {
		s.last = time.Now()
		s.hasPending = false
		if s.timer != nil {
			s.timer.Stop()
			s.timer = nil
		}
		s.mu.Unlock()
		s.apply(v)
		return
	}

	// Throttled: keep only the latest value and arm the trailing timer
	// for the remainder of the window.
	s.pending = v
	if !s.hasPending {
		s.hasPending = true
		delay := s.interval - time.Since(s.last)
		if delay < 0 {
			delay = 0
		}
		s.timer = time.AfterFunc(delay, s.flush)
	}
	s.mu.Unlock()
}

func (s *Scroller) flush() {
	s.mu.Lock()
	if !s.hasPending {
		s.mu.Unlock()
		return
	}
	v := s.pending
	s.hasPending = false
	s.timer = nil
	s.last = time.Now()
	s.mu.Unlock()

	s.apply(v)
}

// Stop cancels any pending trailing update.
func (s *Scroller) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hasPending = false
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
