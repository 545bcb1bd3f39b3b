package relay

import (
	"log/slog"
	"sync"
	"time"

	"github.com/carelane/carelane/internal/metrics"
)

// Resolution is the single value delivered for an opened pending request.
type Resolution struct {
	// Value is the patient's answer, or the fallback.
	Value string
	// ByTimeout is true when the timer fired before an explicit answer.
	ByTimeout bool
}

// Pending is the one-at-a-time rendezvous point connecting a blocked provider
// webhook to the eventual patient answer. At most one request is outstanding
// process-wide; opening a second one supersedes the first by resolving it
// with its fallback value. Each opened request resolves exactly once, whether
// by explicit answer, by timeout, or by supersede.
type Pending struct {
	mu       sync.Mutex
	clock    Clock
	ch       chan Resolution
	timer    Timer
	fallback string
	openedAt time.Time
}

// NewPending creates an empty rendezvous.
func NewPending(clock Clock) *Pending {
	if clock == nil {
		clock = RealClock{}
	}
	return &Pending{clock: clock}
}

// Open creates a new pending request and returns a channel that receives its
// resolution exactly once: the patient's value, or fallback once timeout
// elapses. An already-open request is resolved with its own fallback first.
func (p *Pending) Open(timeout time.Duration, fallback string) <-chan Resolution {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch != nil {
		slog.Warn("Superseding open pending request", "opened_at", p.openedAt)
		p.resolveLocked(Resolution{Value: p.fallback, ByTimeout: true})
	}

	ch := make(chan Resolution, 1)
	p.ch = ch
	p.fallback = fallback
	p.openedAt = p.clock.Now()
	p.timer = p.clock.AfterFunc(timeout, func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		// Only fire for the request this timer belongs to.
		if p.ch == ch {
			slog.Info("Pending request timed out, using default answer", "default", fallback)
			metrics.PendingTimeouts.Inc()
			p.resolveLocked(Resolution{Value: fallback, ByTimeout: true})
		}
	})
	return ch
}

// Resolve fulfills the open request with value. Returns false if no request
// is open (including one already resolved by timeout).
func (p *Pending) Resolve(value string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch == nil {
		return false
	}
	p.resolveLocked(Resolution{Value: value})
	return true
}

// Cancel resolves the open request with its fallback value, unblocking the
// waiting webhook. Returns false if no request is open.
func (p *Pending) Cancel() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch == nil {
		return false
	}
	p.resolveLocked(Resolution{Value: p.fallback, ByTimeout: true})
	return true
}

// IsOpen reports whether a request is currently outstanding.
func (p *Pending) IsOpen() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ch != nil
}

// resolveLocked delivers the resolution and clears the slot. Callers hold p.mu.
func (p *Pending) resolveLocked(res Resolution) {
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	p.ch <- res
	p.ch = nil
}
