package relay

import (
	"context"
	"sync"
	"time"

	"github.com/carelane/carelane/internal/domain"
	"github.com/carelane/carelane/internal/provider"
)

// fakeClock drives timers by hand so timeout paths are deterministic.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

// fakeTimer fields are guarded by the owning clock's mutex: Stop can race
// with advance on another goroutine.
type fakeTimer struct {
	clock    *fakeClock
	deadline time.Time
	fn       func()
	stopped  bool
	fired    bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, deadline: c.now.Add(d), fn: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	stopped := !t.fired && !t.stopped
	t.stopped = true
	return stopped
}

// advance moves the clock forward and runs every timer now due.
func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && !t.deadline.After(c.now) {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()
	for _, t := range due {
		t.fn()
	}
}

// recordingSink captures published events in order.
type recordingSink struct {
	mu     sync.Mutex
	events []recordedEvent
}

type recordedEvent struct {
	kind    string
	payload any
}

func (s *recordingSink) Publish(kind string, payload any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, recordedEvent{kind: kind, payload: payload})
}

func (s *recordingSink) kinds() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.events))
	for i, e := range s.events {
		out[i] = e.kind
	}
	return out
}

func (s *recordingSink) last(kind string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.events) - 1; i >= 0; i-- {
		if s.events[i].kind == kind {
			return s.events[i].payload, true
		}
	}
	return nil, false
}

// fakeCaller stands in for the outbound call provider.
type fakeCaller struct {
	mu       sync.Mutex
	startErr error
	started  []provider.StartCallRequest
	sent     []string
	sendErr  error
}

func (f *fakeCaller) Name() string { return "fake" }

func (f *fakeCaller) StartCall(_ context.Context, req provider.StartCallRequest) (provider.StartCallResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return provider.StartCallResult{}, f.startErr
	}
	f.started = append(f.started, req)
	return provider.StartCallResult{ConversationID: "conv-1"}, nil
}

func (f *fakeCaller) SendMessage(_ context.Context, conversationID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, conversationID+": "+text)
	return nil
}

// fakeRecorder captures persisted call records.
type fakeRecorder struct {
	mu      sync.Mutex
	records []*domain.CallRecord
}

func (f *fakeRecorder) SaveCallRecord(_ context.Context, record *domain.CallRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, record)
	return nil
}

func (f *fakeRecorder) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}
