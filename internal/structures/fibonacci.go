package structures

import (
	"fmt"
	"math"
)

// fibonacciDetector computes retracement levels between the rolling
// high and low of the trailing window, at the standard ratios. Fields are
// named level_<ratio in permille> to keep them valid feature keys (no
// decimal points).
type fibonacciDetector struct {
	length int
	ratios []float64
}

func newFibonacci(params map[string]any) (Detector, error) {
	length, err := intParam(params, "length", 50)
	if err != nil {
		return nil, err
	}
	if length < 2 {
		return nil, fmt.Errorf("length must be >= 2, got %d", length)
	}
	return &fibonacciDetector{
		length: length,
		ratios: []float64{0.236, 0.382, 0.5, 0.618, 0.786},
	}, nil
}

func (f *fibonacciDetector) Type() string { return "fibonacci" }

func (f *fibonacciDetector) Fields() []string {
	fields := make([]string, len(f.ratios))
	for i, r := range f.ratios {
		fields[i] = fieldName(r)
	}
	return fields
}

func fieldName(ratio float64) string {
	return fmt.Sprintf("level_%d", int(math.Round(ratio*1000)))
}

func (f *fibonacciDetector) Compute(bars Bars) (map[string][]float64, error) {
	n := len(bars.High)
	out := make(map[string][]float64, len(f.ratios))
	for _, r := range f.ratios {
		col := make([]float64, n)
		for i := range col {
			col[i] = math.NaN()
		}
		out[fieldName(r)] = col
	}
	for i := f.length - 1; i < n; i++ {
		hh, ll := bars.High[i], bars.Low[i]
		for j := i - f.length + 1; j <= i; j++ {
			if bars.High[j] > hh {
				hh = bars.High[j]
			}
			if bars.Low[j] < ll {
				ll = bars.Low[j]
			}
		}
		rng := hh - ll
		for _, r := range f.ratios {
			out[fieldName(r)][i] = hh - rng*r
		}
	}
	return out, nil
}
