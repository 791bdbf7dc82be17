package indicators

import (
	"fmt"

	talib "github.com/markcheno/go-talib"
)

type wmaIndicator struct {
	length int
}

func newWMA(params map[string]any) (Indicator, error) {
	length, err := intParam(params, "length", 20)
	if err != nil {
		return nil, err
	}
	if length < 1 {
		return nil, fmt.Errorf("length must be >= 1, got %d", length)
	}
	return &wmaIndicator{length: length}, nil
}

func (w *wmaIndicator) Name() string       { return "wma" }
func (w *wmaIndicator) Warmup() int        { return w.length - 1 }
func (w *wmaIndicator) Suffixes() []string { return []string{""} }

func (w *wmaIndicator) BatchCompute(in Inputs) (Output, error) {
	src := primaryOrClose(in)
	out := talib.Wma(src, w.length)
	blankWarmup(out, w.length-1)
	return Output{"": out}, nil
}

func (w *wmaIndicator) IncrementalCompute(in Inputs) (Output, error) {
	src := primaryOrClose(in)
	n := len(src)
	out := nanFill(n, w.length-1)
	if n < w.length {
		return Output{"": out}, nil
	}
	denom := float64(w.length*(w.length+1)) / 2
	for i := w.length - 1; i < n; i++ {
		sum := 0.0
		for j := 0; j < w.length; j++ {
			weight := float64(w.length - j)
			sum += weight * src[i-j]
		}
		out[i] = sum / denom
	}
	return Output{"": out}, nil
}
