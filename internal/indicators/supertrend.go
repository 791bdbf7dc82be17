package indicators

import "fmt"

// superTrendIndicator is the ATR-banded trend-following overlay popular in
// crypto strategies, absent from the stock TA-Lib catalog so both arms
// hand-roll the same sequential recurrence over a Wilder-smoothed ATR.
type superTrendIndicator struct {
	length     int
	multiplier float64
}

func newSuperTrend(params map[string]any) (Indicator, error) {
	length, err := intParam(params, "length", 10)
	if err != nil {
		return nil, err
	}
	mult, err := floatParam(params, "multiplier", 3)
	if err != nil {
		return nil, err
	}
	if length < 1 {
		return nil, fmt.Errorf("length must be >= 1, got %d", length)
	}
	if mult <= 0 {
		return nil, fmt.Errorf("multiplier must be > 0, got %v", mult)
	}
	return &superTrendIndicator{length: length, multiplier: mult}, nil
}

func (s *superTrendIndicator) Name() string { return "supertrend" }
func (s *superTrendIndicator) Warmup() int  { return s.length }
func (s *superTrendIndicator) Suffixes() []string {
	return []string{"value", "direction"}
}

func (s *superTrendIndicator) BatchCompute(in Inputs) (Output, error) {
	return s.compute(in), nil
}

func (s *superTrendIndicator) IncrementalCompute(in Inputs) (Output, error) {
	return s.compute(in), nil
}

func (s *superTrendIndicator) compute(in Inputs) Output {
	n := len(in.Close)
	value := nanFill(n, s.Warmup())
	direction := nanFill(n, s.Warmup())
	atr := (&atrIndicator{length: s.length}).IncrementalCompute
	atrOut, err := atr(in)
	if err != nil {
		return Output{"value": value, "direction": direction}
	}
	atrSeries := atrOut[""]

	dirLong := true
	var upperBand, lowerBand, st float64
	for i := s.Warmup(); i < n; i++ {
		mid := (in.High[i] + in.Low[i]) / 2
		basicUpper := mid + s.multiplier*atrSeries[i]
		basicLower := mid - s.multiplier*atrSeries[i]
		if i == s.Warmup() {
			upperBand, lowerBand = basicUpper, basicLower
			if in.Close[i] <= upperBand {
				dirLong = true
				st = lowerBand
			} else {
				dirLong = false
				st = upperBand
			}
		} else {
			if basicUpper < upperBand || in.Close[i-1] > upperBand {
				upperBand = basicUpper
			}
			if basicLower > lowerBand || in.Close[i-1] < lowerBand {
				lowerBand = basicLower
			}
			switch {
			case dirLong && in.Close[i] < lowerBand:
				dirLong = false
			case !dirLong && in.Close[i] > upperBand:
				dirLong = true
			}
			if dirLong {
				st = lowerBand
			} else {
				st = upperBand
			}
		}
		value[i] = st
		if dirLong {
			direction[i] = 1
		} else {
			direction[i] = -1
		}
	}
	return Output{"value": value, "direction": direction}
}
