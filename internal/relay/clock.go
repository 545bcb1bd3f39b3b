// Package relay implements the call-relay orchestrator: the active call
// registry, the pending patient-response rendezvous, and the state machine
// that bridges the call provider, the chat service, and the browser UI.
package relay

import (
	"time"
)

// Clock provides time operations so timeout behavior is deterministic in tests.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a cancellable timer.
type Timer interface {
	Stop() bool
}

// RealClock uses real time.
type RealClock struct{}

func (RealClock) Now() time.Time {
	return time.Now()
}

func (RealClock) AfterFunc(d time.Duration, f func()) Timer {
	return realTimer{timer: time.AfterFunc(d, f)}
}

type realTimer struct {
	timer *time.Timer
}

func (t realTimer) Stop() bool {
	return t.timer.Stop()
}
