package structures

import (
	"fmt"
	"math"
)

// swingDetector finds swing highs/lows: a bar whose high (low) exceeds
// (is below) the high (low) of lookback bars on both sides. Fields are
// NaN everywhere except at the bar that confirms a swing (lookback bars
// after the swing bar), where they carry the swing price, so no value
// depends on bars after the one it is stored at.
type swingDetector struct {
	lookback int
}

func newSwing(params map[string]any) (Detector, error) {
	lookback, err := intParam(params, "lookback", 3)
	if err != nil {
		return nil, err
	}
	if lookback < 1 {
		return nil, fmt.Errorf("lookback must be >= 1, got %d", lookback)
	}
	return &swingDetector{lookback: lookback}, nil
}

func (s *swingDetector) Type() string { return "swing" }
func (s *swingDetector) Fields() []string {
	return []string{"swing_high", "swing_low"}
}

func (s *swingDetector) Compute(bars Bars) (map[string][]float64, error) {
	n := len(bars.High)
	swingHigh := make([]float64, n)
	swingLow := make([]float64, n)
	for i := range swingHigh {
		swingHigh[i] = math.NaN()
		swingLow[i] = math.NaN()
	}
	for i := s.lookback; i < n-s.lookback; i++ {
		isHigh, isLow := true, true
		for j := i - s.lookback; j <= i+s.lookback; j++ {
			if j == i {
				continue
			}
			if bars.High[j] >= bars.High[i] {
				isHigh = false
			}
			if bars.Low[j] <= bars.Low[i] {
				isLow = false
			}
		}
		if isHigh {
			swingHigh[i+s.lookback] = bars.High[i]
		}
		if isLow {
			swingLow[i+s.lookback] = bars.Low[i]
		}
	}
	return map[string][]float64{"swing_high": swingHigh, "swing_low": swingLow}, nil
}
