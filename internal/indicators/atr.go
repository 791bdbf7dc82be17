package indicators

import (
	"fmt"

	talib "github.com/markcheno/go-talib"
)

// atrIndicator is the average true range. It always reads high/low/close
// directly rather than the flexible Primary input since true range is
// defined over the full bar range.
type atrIndicator struct {
	length int
}

func newATR(params map[string]any) (Indicator, error) {
	length, err := intParam(params, "length", 14)
	if err != nil {
		return nil, err
	}
	if length < 1 {
		return nil, fmt.Errorf("length must be >= 1, got %d", length)
	}
	return &atrIndicator{length: length}, nil
}

func (a *atrIndicator) Name() string       { return "atr" }
func (a *atrIndicator) Warmup() int        { return a.length }
func (a *atrIndicator) Suffixes() []string { return []string{""} }

func (a *atrIndicator) BatchCompute(in Inputs) (Output, error) {
	out := talib.Atr(in.High, in.Low, in.Close, a.length)
	blankWarmup(out, a.length)
	return Output{"": out}, nil
}

// IncrementalCompute uses Wilder's smoothing of the true range series,
// the streaming form ATR was originally defined with.
func (a *atrIndicator) IncrementalCompute(in Inputs) (Output, error) {
	n := len(in.Close)
	out := nanFill(n, a.length)
	if n <= a.length {
		return Output{"": out}, nil
	}
	tr := make([]float64, n)
	tr[0] = in.High[0] - in.Low[0]
	for i := 1; i < n; i++ {
		hl := in.High[i] - in.Low[i]
		hc := abs(in.High[i] - in.Close[i-1])
		lc := abs(in.Low[i] - in.Close[i-1])
		tr[i] = max3(hl, hc, lc)
	}
	sum := 0.0
	for i := 1; i <= a.length; i++ {
		sum += tr[i]
	}
	prev := sum / float64(a.length)
	out[a.length] = prev
	for i := a.length + 1; i < n; i++ {
		prev = (prev*float64(a.length-1) + tr[i]) / float64(a.length)
		out[i] = prev
	}
	return Output{"": out}, nil
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

func max3(a, b, c float64) float64 {
	m := a
	if b > m {
		m = b
	}
	if c > m {
		m = c
	}
	return m
}
