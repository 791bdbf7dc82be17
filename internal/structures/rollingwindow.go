package structures

import (
	"fmt"
	"math"
)

// rollingWindowDetector is a plain rolling min/max/mean over `close`,
// the simplest structure. Zone and Fibonacci do not use it; they compute
// their own high/low ranges.
type rollingWindowDetector struct {
	length int
}

func newRollingWindow(params map[string]any) (Detector, error) {
	length, err := intParam(params, "length", 20)
	if err != nil {
		return nil, err
	}
	if length < 1 {
		return nil, fmt.Errorf("length must be >= 1, got %d", length)
	}
	return &rollingWindowDetector{length: length}, nil
}

func (rw *rollingWindowDetector) Type() string      { return "rolling_window" }
func (rw *rollingWindowDetector) Fields() []string { return []string{"min", "max", "mean"} }

func (rw *rollingWindowDetector) Compute(bars Bars) (map[string][]float64, error) {
	n := len(bars.Close)
	min := make([]float64, n)
	max := make([]float64, n)
	mean := make([]float64, n)
	for i := range min {
		min[i] = math.NaN()
		max[i] = math.NaN()
		mean[i] = math.NaN()
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += bars.Close[i]
		if i >= rw.length {
			sum -= bars.Close[i-rw.length]
		}
		if i < rw.length-1 {
			continue
		}
		lo, hi := bars.Close[i], bars.Close[i]
		for j := i - rw.length + 1; j <= i; j++ {
			if bars.Close[j] < lo {
				lo = bars.Close[j]
			}
			if bars.Close[j] > hi {
				hi = bars.Close[j]
			}
		}
		min[i] = lo
		max[i] = hi
		mean[i] = sum / float64(rw.length)
	}
	return map[string][]float64{"min": min, "max": max, "mean": mean}, nil
}
