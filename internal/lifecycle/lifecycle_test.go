package lifecycle

import "testing"

func reset() {
	phase.Store(int32(PhaseStarting))
}

func TestCurrent_DefaultStarting(t *testing.T) {
	reset()
	if Current() != PhaseStarting {
		t.Errorf("Current() = %v, want starting", Current())
	}
	if Current().String() != "starting" {
		t.Errorf("Current().String() = %q, want starting", Current().String())
	}
}

func TestMarkServing(t *testing.T) {
	reset()
	MarkServing()
	if Current() != PhaseServing {
		t.Errorf("Current() = %v, want serving", Current())
	}
}

func TestMarkServing_DoesNotLeaveDraining(t *testing.T) {
	reset()
	SetShuttingDown(true)
	defer reset()
	MarkServing()
	if Current() != PhaseDraining {
		t.Errorf("Current() = %v, want draining", Current())
	}
}

func TestSetShuttingDown_False(t *testing.T) {
	reset()
	SetShuttingDown(true)
	SetShuttingDown(false)
	if Current() == PhaseDraining {
		t.Error("Current() = draining after SetShuttingDown(false)")
	}
	if Current().String() != "serving" {
		t.Errorf("Current() = %q, want serving", Current().String())
	}
}
