// Package statetracker observes, but never influences, the engine's
// per-bar trading decisions. It records a closed set of named states for
// the signal and action lifecycle so a run's artifacts can explain *why*
// a bar did or didn't trade — removing it must not change any trade,
// fill, or equity point the engine produces.
package statetracker

import "github.com/ledgerline/btcore/internal/gates"

// SignalState is the signal lifecycle: a condition becoming true is never
// instantaneously actionable, it first has to be observed.
type SignalState string

const (
	SignalNone       SignalState = "NONE"
	SignalCandidate  SignalState = "CANDIDATE"
	SignalConfirming SignalState = "CONFIRMING"
	SignalConfirmed  SignalState = "CONFIRMED"
	SignalConsumed   SignalState = "CONSUMED"
	SignalExpired    SignalState = "EXPIRED"
)

// ActionState is the order lifecycle a confirmed signal drives through.
type ActionState string

const (
	ActionIdle       ActionState = "IDLE"
	ActionActionable ActionState = "ACTIONABLE"
	ActionSizing     ActionState = "SIZING"
	ActionSubmitted  ActionState = "SUBMITTED"
	ActionFilled     ActionState = "FILLED"
	ActionRejected   ActionState = "REJECTED"
	ActionCanceled   ActionState = "CANCELED"
)

// BlockState is the per-bar record: the gate result that ran, and where
// the signal/action machines landed given that gate result.
type BlockState struct {
	TsCloseMs int64
	Gate      gates.Code
	Signal    SignalState
	Action    ActionState
}

// Tracker accumulates one BlockState per exec bar once evaluation begins
// (bars before sim_start_idx are not recorded; there is no signal
// machinery to observe during warmup).
type Tracker struct {
	states []BlockState
}

// New returns an empty Tracker.
func New() *Tracker {
	return &Tracker{}
}

// RecordGateBlocked records a bar whose pre-trade gate did not pass: no
// signal was evaluated, so both machines stay at their rest state.
func (t *Tracker) RecordGateBlocked(tsCloseMs int64, code gates.Code) {
	t.states = append(t.states, BlockState{
		TsCloseMs: tsCloseMs,
		Gate:      code,
		Signal:    SignalNone,
		Action:    ActionIdle,
	})
}

// RecordNoSignal records a bar whose gate passed but whose rule tree did
// not fire.
func (t *Tracker) RecordNoSignal(tsCloseMs int64, code gates.Code) {
	t.states = append(t.states, BlockState{
		TsCloseMs: tsCloseMs,
		Gate:      code,
		Signal:    SignalNone,
		Action:    ActionIdle,
	})
}

// RecordSignal records a bar whose rule tree fired and advances the
// signal machine straight to CONFIRMED: the engine's rule evaluation is
// already a closed-candle, single-bar decision, so there is no separate
// multi-bar confirmation window to observe here — see the grounding
// ledger for why CANDIDATE/CONFIRMING are present in the enum but never
// reached by this engine's evaluation model.
func (t *Tracker) RecordSignal(tsCloseMs int64, code gates.Code, action ActionState) {
	signal := SignalConfirmed
	if action == ActionSubmitted || action == ActionFilled {
		signal = SignalConsumed
	}
	t.states = append(t.states, BlockState{
		TsCloseMs: tsCloseMs,
		Gate:      code,
		Signal:    signal,
		Action:    action,
	})
}

// States returns the recorded BlockState rows in bar order.
func (t *Tracker) States() []BlockState {
	return t.states
}
