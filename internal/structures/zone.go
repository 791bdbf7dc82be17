package structures

import (
	"fmt"
	"math"
)

// zoneDetector marks support/resistance zones from a rolling high/low
// channel: upper/lower bound the channel, mid is its midpoint. Unlike rollingWindowDetector this operates on high/low rather
// than close, matching how price zones are conventionally drawn.
type zoneDetector struct {
	length int
}

func newZone(params map[string]any) (Detector, error) {
	length, err := intParam(params, "length", 50)
	if err != nil {
		return nil, err
	}
	if length < 1 {
		return nil, fmt.Errorf("length must be >= 1, got %d", length)
	}
	return &zoneDetector{length: length}, nil
}

func (z *zoneDetector) Type() string      { return "zone" }
func (z *zoneDetector) Fields() []string { return []string{"upper", "lower", "mid"} }

func (z *zoneDetector) Compute(bars Bars) (map[string][]float64, error) {
	n := len(bars.High)
	upper := make([]float64, n)
	lower := make([]float64, n)
	mid := make([]float64, n)
	for i := range upper {
		upper[i] = math.NaN()
		lower[i] = math.NaN()
		mid[i] = math.NaN()
	}
	for i := z.length - 1; i < n; i++ {
		hh, ll := bars.High[i], bars.Low[i]
		for j := i - z.length + 1; j <= i; j++ {
			if bars.High[j] > hh {
				hh = bars.High[j]
			}
			if bars.Low[j] < ll {
				ll = bars.Low[j]
			}
		}
		upper[i] = hh
		lower[i] = ll
		mid[i] = (hh + ll) / 2
	}
	return map[string][]float64{"upper": upper, "lower": lower, "mid": mid}, nil
}
