package indicators

import (
	"fmt"

	talib "github.com/markcheno/go-talib"
)

// demaIndicator is the double exponential moving average: 2*EMA - EMA(EMA).
type demaIndicator struct {
	length int
}

func newDEMA(params map[string]any) (Indicator, error) {
	length, err := intParam(params, "length", 20)
	if err != nil {
		return nil, err
	}
	if length < 1 {
		return nil, fmt.Errorf("length must be >= 1, got %d", length)
	}
	return &demaIndicator{length: length}, nil
}

func (d *demaIndicator) Name() string       { return "dema" }
func (d *demaIndicator) Warmup() int        { return 2 * (d.length - 1) }
func (d *demaIndicator) Suffixes() []string { return []string{""} }

func (d *demaIndicator) BatchCompute(in Inputs) (Output, error) {
	src := primaryOrClose(in)
	out := talib.Dema(src, d.length)
	blankWarmup(out, d.Warmup())
	return Output{"": out}, nil
}

func (d *demaIndicator) IncrementalCompute(in Inputs) (Output, error) {
	src := primaryOrClose(in)
	n := len(src)
	ema1 := emaSeries(src, d.length)
	ema2 := emaSeries(ema1, d.length)
	out := make([]float64, n)
	for i := range out {
		out[i] = 2*ema1[i] - ema2[i]
	}
	blankWarmup(out, d.Warmup())
	return Output{"": out}, nil
}

// temaIndicator is the triple exponential moving average: 3*ema1 - 3*ema2 + ema3.
type temaIndicator struct {
	length int
}

func newTEMA(params map[string]any) (Indicator, error) {
	length, err := intParam(params, "length", 20)
	if err != nil {
		return nil, err
	}
	if length < 1 {
		return nil, fmt.Errorf("length must be >= 1, got %d", length)
	}
	return &temaIndicator{length: length}, nil
}

func (t *temaIndicator) Name() string       { return "tema" }
func (t *temaIndicator) Warmup() int        { return 3 * (t.length - 1) }
func (t *temaIndicator) Suffixes() []string { return []string{""} }

func (t *temaIndicator) BatchCompute(in Inputs) (Output, error) {
	src := primaryOrClose(in)
	out := talib.Tema(src, t.length)
	blankWarmup(out, t.Warmup())
	return Output{"": out}, nil
}

func (t *temaIndicator) IncrementalCompute(in Inputs) (Output, error) {
	src := primaryOrClose(in)
	n := len(src)
	ema1 := emaSeries(src, t.length)
	ema2 := emaSeries(ema1, t.length)
	ema3 := emaSeries(ema2, t.length)
	out := make([]float64, n)
	for i := range out {
		out[i] = 3*ema1[i] - 3*ema2[i] + ema3[i]
	}
	blankWarmup(out, t.Warmup())
	return Output{"": out}, nil
}

// trimaIndicator is the triangular moving average: an SMA of an SMA, with
// the two window halves chosen per the classic TRIMA split.
type trimaIndicator struct {
	length int
}

func newTRIMA(params map[string]any) (Indicator, error) {
	length, err := intParam(params, "length", 20)
	if err != nil {
		return nil, err
	}
	if length < 1 {
		return nil, fmt.Errorf("length must be >= 1, got %d", length)
	}
	return &trimaIndicator{length: length}, nil
}

func (t *trimaIndicator) Name() string       { return "trima" }
func (t *trimaIndicator) Warmup() int        { return t.length - 1 }
func (t *trimaIndicator) Suffixes() []string { return []string{""} }

func (t *trimaIndicator) BatchCompute(in Inputs) (Output, error) {
	src := primaryOrClose(in)
	out := talib.Trima(src, t.length)
	blankWarmup(out, t.Warmup())
	return Output{"": out}, nil
}

func (t *trimaIndicator) IncrementalCompute(in Inputs) (Output, error) {
	src := primaryOrClose(in)
	n := len(src)
	out := nanFill(n, t.Warmup())
	weights := trimaWeights(t.length)
	for i := t.length - 1; i < n; i++ {
		sum := 0.0
		for j := 0; j < t.length; j++ {
			sum += weights[j] * src[i-t.length+1+j]
		}
		out[i] = sum
	}
	return Output{"": out}, nil
}

// trimaWeights returns the normalized triangular weight kernel the
// incremental arm applies; it is the same kernel TA-Lib's TRIMA (the
// batch arm) uses, with the peak weight repeated for even lengths.
func trimaWeights(length int) []float64 {
	half := length / 2
	w := make([]float64, length)
	total := 0.0
	for i := 0; i < length; i++ {
		dist := i
		if i >= half {
			dist = length - 1 - i
		}
		weight := float64(dist + 1)
		w[i] = weight
		total += weight
	}
	for i := range w {
		w[i] /= total
	}
	return w
}
