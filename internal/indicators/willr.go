package indicators

import (
	"fmt"

	talib "github.com/markcheno/go-talib"
)

type willRIndicator struct {
	length int
}

func newWillR(params map[string]any) (Indicator, error) {
	length, err := intParam(params, "length", 14)
	if err != nil {
		return nil, err
	}
	if length < 1 {
		return nil, fmt.Errorf("length must be >= 1, got %d", length)
	}
	return &willRIndicator{length: length}, nil
}

func (w *willRIndicator) Name() string       { return "willr" }
func (w *willRIndicator) Warmup() int        { return w.length - 1 }
func (w *willRIndicator) Suffixes() []string { return []string{""} }

func (w *willRIndicator) BatchCompute(in Inputs) (Output, error) {
	out := talib.WillR(in.High, in.Low, in.Close, w.length)
	blankWarmup(out, w.length-1)
	return Output{"": out}, nil
}

func (w *willRIndicator) IncrementalCompute(in Inputs) (Output, error) {
	n := len(in.Close)
	out := nanFill(n, w.length-1)
	for i := w.length - 1; i < n; i++ {
		hh, ll := in.High[i], in.Low[i]
		for j := i - w.length + 1; j <= i; j++ {
			if in.High[j] > hh {
				hh = in.High[j]
			}
			if in.Low[j] < ll {
				ll = in.Low[j]
			}
		}
		if hh == ll {
			out[i] = -50
			continue
		}
		out[i] = (hh - in.Close[i]) / (hh - ll) * -100
	}
	return Output{"": out}, nil
}
