package indicators

import (
	talib "github.com/markcheno/go-talib"
)

// obvIndicator is on-balance volume, a volume-input indicator with no
// warmup and no configurable parameters.
type obvIndicator struct{}

func newOBV(params map[string]any) (Indicator, error) {
	return &obvIndicator{}, nil
}

func (o *obvIndicator) Name() string       { return "obv" }
func (o *obvIndicator) Warmup() int        { return 0 }
func (o *obvIndicator) Suffixes() []string { return []string{""} }

func (o *obvIndicator) BatchCompute(in Inputs) (Output, error) {
	out := talib.Obv(in.Close, in.Volume)
	return Output{"": out}, nil
}

func (o *obvIndicator) IncrementalCompute(in Inputs) (Output, error) {
	n := len(in.Close)
	out := make([]float64, n)
	if n == 0 {
		return Output{"": out}, nil
	}
	out[0] = in.Volume[0]
	for i := 1; i < n; i++ {
		switch {
		case in.Close[i] > in.Close[i-1]:
			out[i] = out[i-1] + in.Volume[i]
		case in.Close[i] < in.Close[i-1]:
			out[i] = out[i-1] - in.Volume[i]
		default:
			out[i] = out[i-1]
		}
	}
	return Output{"": out}, nil
}
