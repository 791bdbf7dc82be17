// Package indicators implements the indicator registry and vendor: a
// declarative catalog of indicator factories, each producing both a
// vectorized (batch) and an incremental (streaming) implementation that
// must agree within a tight tolerance.
package indicators

import (
	"fmt"
	"math"

	"github.com/ledgerline/btcore/internal/bterrors"
)

// Output maps an indicator's declared output suffix ("" for single-output,
// "macd"/"signal"/"histogram" for MACD, etc.) to its full-length float64
// array, one value per input bar.
type Output map[string][]float64

// Inputs bundles every OHLCV series an indicator might need. Flexible-input
// indicators read Primary, which the vendor sets according to the
// feature's declared input_source.
type Inputs struct {
	Open    []float64
	High    []float64
	Low     []float64
	Close   []float64
	Volume  []float64
	Primary []float64
}

// Indicator is one configured instance of a catalog entry, bound to its
// parameters.
type Indicator interface {
	// Name is the canonical catalog name, e.g. "ema".
	Name() string
	// Warmup returns the number of leading bars whose output is NaN.
	Warmup() int
	// Suffixes lists the output keys this indicator produces.
	Suffixes() []string
	// BatchCompute computes the full output arrays using the vectorized
	// implementation.
	BatchCompute(in Inputs) (Output, error)
	// IncrementalCompute computes the same full output arrays using the
	// O(1)-per-bar streaming implementation. Both arms must agree within
	// 1e-8 absolute on every non-NaN position.
	IncrementalCompute(in Inputs) (Output, error)
}

// Factory constructs a configured Indicator from a feature's parameter map.
type Factory func(params map[string]any) (Indicator, error)

// Registry is the closed, string-keyed dispatch table of indicator
// factories.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry returns a Registry pre-populated with the built-in catalog.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	r.RegisterFactory("ema", newEMA)
	r.RegisterFactory("sma", newSMA)
	r.RegisterFactory("wma", newWMA)
	r.RegisterFactory("rsi", newRSI)
	r.RegisterFactory("macd", newMACD)
	r.RegisterFactory("bbands", newBBands)
	r.RegisterFactory("atr", newATR)
	r.RegisterFactory("cci", newCCI)
	r.RegisterFactory("willr", newWillR)
	r.RegisterFactory("obv", newOBV)
	r.RegisterFactory("mfi", newMFI)
	r.RegisterFactory("cmo", newCMO)
	r.RegisterFactory("dema", newDEMA)
	r.RegisterFactory("tema", newTEMA)
	r.RegisterFactory("trima", newTRIMA)
	r.RegisterFactory("roc", newROC)
	r.RegisterFactory("mom", newMOM)
	r.RegisterFactory("ppo", newPPO)
	r.RegisterFactory("apo", newAPO)
	r.RegisterFactory("trix", newTRIX)
	r.RegisterFactory("bop", newBOP)
	r.RegisterFactory("plus_di", newPlusDI)
	r.RegisterFactory("minus_di", newMinusDI)
	r.RegisterFactory("dx", newDX)
	r.RegisterFactory("adx", newADX)
	r.RegisterFactory("aroon", newAroon)
	r.RegisterFactory("aroonosc", newAroonOsc)
	r.RegisterFactory("sar", newSAR)
	r.RegisterFactory("supertrend", newSuperTrend)
	r.RegisterFactory("stddev", newSTDDEV)
	r.RegisterFactory("var", newVAR)
	r.RegisterFactory("midpoint", newMidPoint)
	r.RegisterFactory("linreg", newLinReg)
	r.RegisterFactory("linregslope", newLinRegSlope)
	r.RegisterFactory("tsf", newTSF)
	r.RegisterFactory("avgprice", newAvgPrice)
	r.RegisterFactory("medprice", newMedPrice)
	r.RegisterFactory("typprice", newTypPrice)
	r.RegisterFactory("wclprice", newWclPrice)
	r.RegisterFactory("ad", newAD)
	r.RegisterFactory("adosc", newADOsc)
	r.RegisterFactory("stoch", newStoch)
	r.RegisterFactory("stochf", newStochF)
	r.RegisterFactory("stochrsi", newStochRSI)
	r.RegisterFactory("ultosc", newUltOsc)
	return r
}

// RegisterFactory adds or replaces the factory for name.
func (r *Registry) RegisterFactory(name string, f Factory) {
	r.factories[name] = f
}

// Create builds a configured Indicator for name, failing with
// UnknownIndicator if name is not in the catalog.
func (r *Registry) Create(name string, params map[string]any) (Indicator, error) {
	f, ok := r.factories[name]
	if !ok {
		return nil, bterrors.New(bterrors.KindSchema, "indicators", fmt.Sprintf("unknown indicator %q", name))
	}
	ind, err := f(params)
	if err != nil {
		return nil, bterrors.Wrap(bterrors.KindSchema, "indicators", fmt.Sprintf("invalid params for %q", name), err)
	}
	return ind, nil
}

// Known reports whether name is a registered indicator type.
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

func floatParam(params map[string]any, key string, def float64) (float64, error) {
	v, ok := params[key]
	if !ok {
		return def, nil
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("param %q must be a number, got %T", key, v)
	}
}

func nanFill(n int, count int) []float64 {
	out := make([]float64, n)
	lim := count
	if lim > n {
		lim = n
	}
	for i := 0; i < lim; i++ {
		out[i] = math.NaN()
	}
	return out
}
