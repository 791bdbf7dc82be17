package structures

import (
	"fmt"
	"math"
)

// derivedZoneDetector widens a rolling high/low channel by a configured
// ATR-like buffer expressed as a fraction of the channel's own range,
// producing a zone that tolerates noise around the raw swing extremes.
// It is "derived" in the sense that it is built from the same rolling
// high/low channel zoneDetector computes, but adds the buffer step
// zoneDetector does not perform.
type derivedZoneDetector struct {
	length       int
	bufferFactor float64
}

func newDerivedZone(params map[string]any) (Detector, error) {
	length, err := intParam(params, "length", 50)
	if err != nil {
		return nil, err
	}
	bufferFactor, err := floatParamStruct(params, "buffer_factor", 0.1)
	if err != nil {
		return nil, err
	}
	if length < 1 {
		return nil, fmt.Errorf("length must be >= 1, got %d", length)
	}
	return &derivedZoneDetector{length: length, bufferFactor: bufferFactor}, nil
}

func floatParamStruct(params map[string]any, key string, def float64) (float64, error) {
	v, ok := params[key]
	if !ok {
		return def, nil
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("param %q must be a number, got %T", key, v)
	}
}

func (dz *derivedZoneDetector) Type() string      { return "derived_zone" }
func (dz *derivedZoneDetector) Fields() []string { return []string{"upper", "lower"} }

func (dz *derivedZoneDetector) Compute(bars Bars) (map[string][]float64, error) {
	n := len(bars.High)
	upper := make([]float64, n)
	lower := make([]float64, n)
	for i := range upper {
		upper[i] = math.NaN()
		lower[i] = math.NaN()
	}
	for i := dz.length - 1; i < n; i++ {
		hh, ll := bars.High[i], bars.Low[i]
		for j := i - dz.length + 1; j <= i; j++ {
			if bars.High[j] > hh {
				hh = bars.High[j]
			}
			if bars.Low[j] < ll {
				ll = bars.Low[j]
			}
		}
		buffer := (hh - ll) * dz.bufferFactor
		upper[i] = hh + buffer
		lower[i] = ll - buffer
	}
	return map[string][]float64{"upper": upper, "lower": lower}, nil
}
