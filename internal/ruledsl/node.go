// Package ruledsl implements the rule tree: a tagged variant of node kinds
// compiled from a Play's shorthand rule lists, evaluated against a
// snapshot.Snapshot. Dynamic dispatch on a string operator tag is traded
// for one Go struct per node kind behind a single recursive Eval method.
package ruledsl

import (
	"fmt"

	"github.com/ledgerline/btcore/internal/bterrors"
	"github.com/ledgerline/btcore/internal/snapshot"
)

// Node is one element of the compiled rule tree. baseOffset lets window
// operators re-evaluate a subtree as if it were being evaluated baseOffset
// bars in the past, without mutating the snapshot itself.
type Node interface {
	Eval(snap *snapshot.Snapshot, baseOffset int) (Value, error)
}

// Literal is a constant operand: a number, bool, or string.
type Literal struct {
	Value Value
}

func (l Literal) Eval(_ *snapshot.Snapshot, _ int) (Value, error) {
	return l.Value, nil
}

// Operand resolves a canonical snapshot path at a fixed offset, added to
// whatever baseOffset the enclosing window operator supplies.
type Operand struct {
	Path   string
	Offset int
}

func (o Operand) Eval(snap *snapshot.Snapshot, baseOffset int) (Value, error) {
	f, err := snap.Get(o.Path, o.Offset+baseOffset)
	if err != nil {
		// Missing inputs evaluate the enclosing condition to false per
		// spec, never abort the whole tree — the error is returned as is
		// and the enclosing node maps it to false via evalOrFalse.
		return Value{}, err
	}
	return NumValue(f), nil
}

// CmpOp enumerates the comparison operators.
type CmpOp string

const (
	CmpGT  CmpOp = "gt"
	CmpLT  CmpOp = "lt"
	CmpGTE CmpOp = "gte"
	CmpLTE CmpOp = "lte"
	CmpEQ  CmpOp = "eq"
)

// Cmp compares two operands.
type Cmp struct {
	Op       CmpOp
	LHS, RHS Node
}

func (c Cmp) Eval(snap *snapshot.Snapshot, baseOffset int) (Value, error) {
	lv, ok := evalOrFalse(snap, c.LHS, baseOffset)
	if !ok {
		return BoolValue(false), nil
	}
	rv, ok := evalOrFalse(snap, c.RHS, baseOffset)
	if !ok {
		return BoolValue(false), nil
	}
	return BoolValue(compare(c.Op, lv, rv)), nil
}

func compare(op CmpOp, lv, rv Value) bool {
	if op == CmpEQ {
		if lv.Kind == KindStr || rv.Kind == KindStr {
			return lv.String() == rv.String()
		}
	}
	lf, lok := lv.AsFloat()
	rf, rok := rv.AsFloat()
	if !lok || !rok {
		return false
	}
	switch op {
	case CmpGT:
		return lf > rf
	case CmpLT:
		return lf < rf
	case CmpGTE:
		return lf >= rf
	case CmpLTE:
		return lf <= rf
	case CmpEQ:
		return lf == rf
	default:
		return false
	}
}

// evalOrFalse evaluates n and reports ok=false if it failed with a
// feature-missing-style error, implementing "missing inputs cause the
// enclosing condition to evaluate to false silently".
func evalOrFalse(snap *snapshot.Snapshot, n Node, baseOffset int) (Value, bool) {
	v, err := n.Eval(snap, baseOffset)
	if err != nil {
		return Value{}, false
	}
	return v, true
}

// CrossKind selects a crossover direction.
type CrossKind string

const (
	CrossAbove CrossKind = "cross_above"
	CrossBelow CrossKind = "cross_below"
)

// Cross implements cross_above/cross_below: prev(lhs) <rel> prev(rhs) AND
// curr(lhs) <rel> curr(rhs), using strict inequality in both legs.
type Cross struct {
	Kind     CrossKind
	LHS, RHS Node
}

func (c Cross) Eval(snap *snapshot.Snapshot, baseOffset int) (Value, error) {
	prevRel, currRel := CmpLT, CmpGT
	if c.Kind == CrossBelow {
		prevRel, currRel = CmpGT, CmpLT
	}
	prevLHS, ok := evalOrFalse(snap, c.LHS, baseOffset+1)
	if !ok {
		return BoolValue(false), nil
	}
	prevRHS, ok := evalOrFalse(snap, c.RHS, baseOffset+1)
	if !ok {
		return BoolValue(false), nil
	}
	currLHS, ok := evalOrFalse(snap, c.LHS, baseOffset)
	if !ok {
		return BoolValue(false), nil
	}
	currRHS, ok := evalOrFalse(snap, c.RHS, baseOffset)
	if !ok {
		return BoolValue(false), nil
	}
	return BoolValue(compare(prevRel, prevLHS, prevRHS) && compare(currRel, currLHS, currRHS)), nil
}

// Between is an inclusive range check.
type Between struct {
	Value, Low, High Node
}

func (b Between) Eval(snap *snapshot.Snapshot, baseOffset int) (Value, error) {
	v, ok := evalOrFalse(snap, b.Value, baseOffset)
	if !ok {
		return BoolValue(false), nil
	}
	lo, ok := evalOrFalse(snap, b.Low, baseOffset)
	if !ok {
		return BoolValue(false), nil
	}
	hi, ok := evalOrFalse(snap, b.High, baseOffset)
	if !ok {
		return BoolValue(false), nil
	}
	vf, _ := v.AsFloat()
	lof, _ := lo.AsFloat()
	hif, _ := hi.AsFloat()
	return BoolValue(vf >= lof && vf <= hif), nil
}

// NearMode selects absolute or percent proximity.
type NearMode string

const (
	NearAbs NearMode = "near_abs"
	NearPct NearMode = "near_pct"
)

// Near checks |value - target| against a tolerance. For NearPct, Tol is
// the already-normalized fraction (the validator divides the percent
// literal by 100 exactly once at compile time — never here).
type Near struct {
	Mode          NearMode
	Value, Target Node
	Tol           float64
}

func (n Near) Eval(snap *snapshot.Snapshot, baseOffset int) (Value, error) {
	v, ok := evalOrFalse(snap, n.Value, baseOffset)
	if !ok {
		return BoolValue(false), nil
	}
	t, ok := evalOrFalse(snap, n.Target, baseOffset)
	if !ok {
		return BoolValue(false), nil
	}
	vf, _ := v.AsFloat()
	tf, _ := t.AsFloat()
	diff := vf - tf
	if diff < 0 {
		diff = -diff
	}
	if n.Mode == NearPct {
		if tf == 0 {
			return BoolValue(false), nil
		}
		return BoolValue(diff/absf(tf) <= n.Tol), nil
	}
	return BoolValue(diff <= n.Tol), nil
}

func absf(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

// In checks set membership.
type In struct {
	Value Node
	Set   []Node
}

func (in In) Eval(snap *snapshot.Snapshot, baseOffset int) (Value, error) {
	v, ok := evalOrFalse(snap, in.Value, baseOffset)
	if !ok {
		return BoolValue(false), nil
	}
	for _, member := range in.Set {
		mv, ok := evalOrFalse(snap, member, baseOffset)
		if !ok {
			continue
		}
		if mv.Kind == KindStr || v.Kind == KindStr {
			if mv.String() == v.String() {
				return BoolValue(true), nil
			}
			continue
		}
		mf, _ := mv.AsFloat()
		vf, _ := v.AsFloat()
		if mf == vf {
			return BoolValue(true), nil
		}
	}
	return BoolValue(false), nil
}

// All is boolean AND over its children.
type All struct{ Children []Node }

func (a All) Eval(snap *snapshot.Snapshot, baseOffset int) (Value, error) {
	for _, c := range a.Children {
		v, err := c.Eval(snap, baseOffset)
		if err != nil {
			return BoolValue(false), nil
		}
		if !v.AsBool() {
			return BoolValue(false), nil
		}
	}
	return BoolValue(true), nil
}

// Any is boolean OR over its children.
type Any struct{ Children []Node }

func (a Any) Eval(snap *snapshot.Snapshot, baseOffset int) (Value, error) {
	for _, c := range a.Children {
		v, err := c.Eval(snap, baseOffset)
		if err != nil {
			continue
		}
		if v.AsBool() {
			return BoolValue(true), nil
		}
	}
	return BoolValue(false), nil
}

// Not is boolean negation.
type Not struct{ Child Node }

func (n Not) Eval(snap *snapshot.Snapshot, baseOffset int) (Value, error) {
	v, err := n.Child.Eval(snap, baseOffset)
	if err != nil {
		return BoolValue(true), nil
	}
	return BoolValue(!v.AsBool()), nil
}

// WindowMode selects a bar-window operator's aggregation.
type WindowMode string

const (
	WindowHoldsFor        WindowMode = "holds_for"
	WindowOccurredWithin  WindowMode = "occurred_within"
	WindowCountTrue       WindowMode = "count_true"
)

// WindowBars evaluates Expr over the trailing Bars bars of the exec
// timeframe (anchor_tf support beyond exec is a documented simplification,
// see the grounding ledger), aggregating per Mode.
type WindowBars struct {
	Bars    int
	Mode    WindowMode
	MinTrue int
	Expr    Node
}

const maxWindowBars = 5000

func (w WindowBars) Eval(snap *snapshot.Snapshot, baseOffset int) (Value, error) {
	if w.Bars > maxWindowBars {
		return Value{}, bterrors.New(bterrors.KindSchema, "ruledsl", fmt.Sprintf("window bars %d exceeds cap %d", w.Bars, maxWindowBars))
	}
	trueCount := 0
	for k := 0; k < w.Bars; k++ {
		v, err := w.Expr.Eval(snap, baseOffset+k)
		if err != nil {
			continue
		}
		if v.AsBool() {
			trueCount++
			if w.Mode == WindowOccurredWithin {
				return BoolValue(true), nil
			}
		} else if w.Mode == WindowHoldsFor {
			return BoolValue(false), nil
		}
	}
	switch w.Mode {
	case WindowHoldsFor:
		return BoolValue(true), nil
	case WindowOccurredWithin:
		return BoolValue(false), nil
	case WindowCountTrue:
		return BoolValue(trueCount >= w.MinTrue), nil
	default:
		return Value{}, bterrors.New(bterrors.KindSchema, "ruledsl", fmt.Sprintf("unknown window mode %q", w.Mode))
	}
}

// WindowDuration is the duration-bounded counterpart of WindowBars. It
// always converts the duration into a bar count at the exec timeframe's
// own bar duration (at least one bar) and evaluates over exec bars; no
// 1-minute feed is consulted, so durations are not resolved at 1-minute
// granularity unless the exec timeframe is 1m.
type WindowDuration struct {
	DurationMs int64
	ExecTFMs   int64
	Mode       WindowMode
	MinTrue    int
	Expr       Node
}

func (w WindowDuration) Eval(snap *snapshot.Snapshot, baseOffset int) (Value, error) {
	if w.ExecTFMs <= 0 {
		return Value{}, bterrors.New(bterrors.KindSchema, "ruledsl", "window duration: exec timeframe duration unknown")
	}
	bars := int(w.DurationMs / w.ExecTFMs)
	if bars < 1 {
		bars = 1
	}
	wb := WindowBars{Bars: bars, Mode: w.Mode, MinTrue: w.MinTrue, Expr: w.Expr}
	return wb.Eval(snap, baseOffset)
}
