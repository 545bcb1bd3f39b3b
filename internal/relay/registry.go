package relay

import (
	"log/slog"
	"sync"

	"github.com/carelane/carelane/internal/domain"
)

// Registry holds the single call session currently in flight. The orchestrator
// is the only writer; readers get deep snapshots. Only one session may exist
// at a time, and replacing a live one is logged loudly rather than merged.
type Registry struct {
	mu      sync.Mutex
	session *domain.CallSession
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Set installs a new session. If a non-ended session is already present it is
// overwritten, not merged; the replacement is logged as a warning.
func (r *Registry) Set(session *domain.CallSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.session != nil && !r.session.Ended() {
		slog.Warn("Replacing live call session",
			"old_call_id", r.session.ID,
			"old_state", r.session.State,
			"new_call_id", session.ID,
		)
	}
	r.session = session
}

// Get returns a snapshot of the current session, or nil if none exists.
func (r *Registry) Get() *domain.CallSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session.Clone()
}

// Update applies fn to the current session under the lock. Returns false if
// no session exists.
func (r *Registry) Update(fn func(*domain.CallSession)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.session == nil {
		return false
	}
	fn(r.session)
	return true
}

// Clear removes the session.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.session = nil
}
