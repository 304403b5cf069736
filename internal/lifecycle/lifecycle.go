// Package lifecycle holds the process phase read by /health.
package lifecycle

import "sync/atomic"

// Phase is the serving phase of the process.
type Phase int32

const (
	PhaseStarting Phase = iota
	PhaseServing
	PhaseDraining
)

func (p Phase) String() string {
	switch p {
	case PhaseStarting:
		return "starting"
	case PhaseServing:
		return "serving"
	case PhaseDraining:
		return "draining"
	default:
		return "unknown"
	}
}

var phase atomic.Int32

// MarkServing is called once the listener is up and the store reachable.
// It never moves the process out of draining.
func MarkServing() {
	phase.CompareAndSwap(int32(PhaseStarting), int32(PhaseServing))
}

// SetShuttingDown moves the process to draining on SIGTERM/SIGINT. Passing
// false returns it to serving; tests use this to reset state.
func SetShuttingDown(v bool) {
	if v {
		phase.Store(int32(PhaseDraining))
		return
	}
	phase.Store(int32(PhaseServing))
}

// Current returns the current phase. /health reports starting and draining
// as 503 so no traffic is routed before MarkServing or after SIGTERM.
func Current() Phase {
	return Phase(phase.Load())
}
