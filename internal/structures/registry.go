// Package structures implements the structure detectors: Swing, Trend,
// Zone, Fibonacci, RollingWindow, and DerivedZone. Unlike
// internal/indicators these have no vectorized counterpart — the spec does
// not ask for one — so each walks the full bar series once to produce its
// field arrays, rescanning its window at every bar (O(window) work per
// bar, not O(1)).
package structures

import (
	"fmt"

	"github.com/ledgerline/btcore/internal/bterrors"
)

// Bars bundles the OHLC series a structure detector walks.
type Bars struct {
	High  []float64
	Low   []float64
	Close []float64
}

// Detector is one configured structure instance.
type Detector interface {
	Type() string
	Fields() []string
	Compute(bars Bars) (map[string][]float64, error)
}

// Factory constructs a configured Detector from a feature's parameter map.
type Factory func(params map[string]any) (Detector, error)

// Registry is the closed, string-keyed dispatch table of structure
// factories, mirroring internal/indicators.Registry's shape.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry returns a Registry pre-populated with the built-in catalog.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	r.RegisterFactory("swing", newSwing)
	r.RegisterFactory("trend", newTrend)
	r.RegisterFactory("rolling_window", newRollingWindow)
	r.RegisterFactory("zone", newZone)
	r.RegisterFactory("fibonacci", newFibonacci)
	r.RegisterFactory("derived_zone", newDerivedZone)
	return r
}

// RegisterFactory adds or replaces the factory for name.
func (r *Registry) RegisterFactory(name string, f Factory) {
	r.factories[name] = f
}

// Create builds a configured Detector for name.
func (r *Registry) Create(name string, params map[string]any) (Detector, error) {
	f, ok := r.factories[name]
	if !ok {
		return nil, bterrors.New(bterrors.KindSchema, "structures", fmt.Sprintf("unknown structure %q", name))
	}
	det, err := f(params)
	if err != nil {
		return nil, bterrors.Wrap(bterrors.KindSchema, "structures", fmt.Sprintf("invalid params for %q", name), err)
	}
	return det, nil
}

// Known reports whether name is a registered structure type.
func (r *Registry) Known(name string) bool {
	_, ok := r.factories[name]
	return ok
}

func intParam(params map[string]any, key string, def int) (int, error) {
	v, ok := params[key]
	if !ok {
		return def, nil
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case float64:
		return int(n), nil
	default:
		return 0, fmt.Errorf("param %q must be a number, got %T", key, v)
	}
}
