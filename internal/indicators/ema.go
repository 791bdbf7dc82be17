package indicators

import (
	"fmt"
	"math"

	talib "github.com/markcheno/go-talib"
)

// emaIndicator is the exponential moving average. Its vectorized arm
// delegates to go-talib the way aristath-sentinel's formulas package does;
// its incremental arm hand-rolls the standard EMA recurrence.
type emaIndicator struct {
	length int
}

func newEMA(params map[string]any) (Indicator, error) {
	length, err := intParam(params, "length", 20)
	if err != nil {
		return nil, err
	}
	if length < 1 {
		return nil, fmt.Errorf("length must be >= 1, got %d", length)
	}
	return &emaIndicator{length: length}, nil
}

func (e *emaIndicator) Name() string       { return "ema" }
func (e *emaIndicator) Warmup() int        { return e.length - 1 }
func (e *emaIndicator) Suffixes() []string { return []string{""} }

func (e *emaIndicator) BatchCompute(in Inputs) (Output, error) {
	src := primaryOrClose(in)
	out := talib.Ema(src, e.length)
	blankWarmup(out, e.length-1)
	return Output{"": out}, nil
}

func (e *emaIndicator) IncrementalCompute(in Inputs) (Output, error) {
	src := primaryOrClose(in)
	n := len(src)
	out := nanFill(n, e.length-1)
	if n < e.length {
		return Output{"": out}, nil
	}
	alpha := 2.0 / float64(e.length+1)
	sum := 0.0
	for i := 0; i < e.length; i++ {
		sum += src[i]
	}
	prev := sum / float64(e.length)
	out[e.length-1] = prev
	for i := e.length; i < n; i++ {
		prev = alpha*src[i] + (1-alpha)*prev
		out[i] = prev
	}
	return Output{"": out}, nil
}

// primaryOrClose returns the flexible input series if the vendor supplied
// one, else falls back to close.
func primaryOrClose(in Inputs) []float64 {
	if in.Primary != nil {
		return in.Primary
	}
	return in.Close
}

// blankWarmup overwrites the leading count entries of out with NaN, used
// to align go-talib's own warmup convention with the registry's.
func blankWarmup(out []float64, count int) {
	lim := count
	if lim > len(out) {
		lim = len(out)
	}
	for i := 0; i < lim; i++ {
		out[i] = math.NaN()
	}
}
