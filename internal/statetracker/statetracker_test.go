package statetracker_test

import (
	"testing"

	"github.com/ledgerline/btcore/internal/gates"
	"github.com/ledgerline/btcore/internal/statetracker"
)

func TestRecordGateBlockedStaysIdle(t *testing.T) {
	tr := statetracker.New()
	tr.RecordGateBlocked(1000, gates.CodeWarmupRemaining)
	states := tr.States()
	if len(states) != 1 {
		t.Fatalf("len(states) = %d, want 1", len(states))
	}
	if states[0].Signal != statetracker.SignalNone || states[0].Action != statetracker.ActionIdle {
		t.Errorf("got %+v, want NONE/IDLE", states[0])
	}
}

func TestRecordSignalFilledMarksConsumed(t *testing.T) {
	tr := statetracker.New()
	tr.RecordSignal(2000, gates.CodePass, statetracker.ActionFilled)
	states := tr.States()
	if states[0].Signal != statetracker.SignalConsumed {
		t.Errorf("Signal = %v, want CONSUMED when the action filled", states[0].Signal)
	}
}

func TestRecordSignalRejectedStaysConfirmed(t *testing.T) {
	tr := statetracker.New()
	tr.RecordSignal(3000, gates.CodePass, statetracker.ActionRejected)
	states := tr.States()
	if states[0].Signal != statetracker.SignalConfirmed {
		t.Errorf("Signal = %v, want CONFIRMED when the order was rejected", states[0].Signal)
	}
}

func TestStatesPreservesBarOrder(t *testing.T) {
	tr := statetracker.New()
	tr.RecordGateBlocked(1000, gates.CodeWarmupRemaining)
	tr.RecordNoSignal(2000, gates.CodePass)
	tr.RecordSignal(3000, gates.CodePass, statetracker.ActionSubmitted)
	states := tr.States()
	if len(states) != 3 {
		t.Fatalf("len(states) = %d, want 3", len(states))
	}
	for i, ts := range []int64{1000, 2000, 3000} {
		if states[i].TsCloseMs != ts {
			t.Errorf("states[%d].TsCloseMs = %d, want %d", i, states[i].TsCloseMs, ts)
		}
	}
}
