package structures

import (
	"fmt"
	"math"
)

// trendDetector classifies the market as an uptrend (1), downtrend (-1),
// or range (0) by comparing the current close against a rolling high/low
// channel of the given lookback.
type trendDetector struct {
	lookback int
}

func newTrend(params map[string]any) (Detector, error) {
	lookback, err := intParam(params, "lookback", 20)
	if err != nil {
		return nil, err
	}
	if lookback < 2 {
		return nil, fmt.Errorf("lookback must be >= 2, got %d", lookback)
	}
	return &trendDetector{lookback: lookback}, nil
}

func (td *trendDetector) Type() string      { return "trend" }
func (td *trendDetector) Fields() []string { return []string{"direction", "strength"} }

func (td *trendDetector) Compute(bars Bars) (map[string][]float64, error) {
	n := len(bars.Close)
	direction := make([]float64, n)
	strength := make([]float64, n)
	for i := range direction {
		direction[i] = math.NaN()
		strength[i] = math.NaN()
	}
	for i := td.lookback; i < n; i++ {
		hh, ll := bars.High[i], bars.Low[i]
		for j := i - td.lookback; j < i; j++ {
			if bars.High[j] > hh {
				hh = bars.High[j]
			}
			if bars.Low[j] < ll {
				ll = bars.Low[j]
			}
		}
		rng := hh - ll
		if rng == 0 {
			direction[i] = 0
			strength[i] = 0
			continue
		}
		pos := (bars.Close[i] - ll) / rng // 0..1 position in the channel
		switch {
		case pos > 0.7:
			direction[i] = 1
		case pos < 0.3:
			direction[i] = -1
		default:
			direction[i] = 0
		}
		strength[i] = math.Abs(pos-0.5) * 2
	}
	return map[string][]float64{"direction": direction, "strength": strength}, nil
}
