package indicators

import (
	"fmt"
	"math"

	talib "github.com/markcheno/go-talib"
)

// rawStochK computes the raw %K (before any smoothing): the close's
// position within the trailing high/low range, scaled 0-100.
func rawStochK(high, low, close []float64, length int) []float64 {
	n := len(close)
	out := nanFill(n, length-1)
	for i := length - 1; i < n; i++ {
		hi, lo := high[i-length+1], low[i-length+1]
		for j := i - length + 1; j <= i; j++ {
			if high[j] > hi {
				hi = high[j]
			}
			if low[j] < lo {
				lo = low[j]
			}
		}
		rng := hi - lo
		if rng == 0 {
			out[i] = 0
			continue
		}
		out[i] = (close[i] - lo) / rng * 100
	}
	return out
}

// stochIndicator is the slow stochastic oscillator: %K smoothed by
// slowKPeriod, %D a further SMA of %K.
type stochIndicator struct {
	kLength, kSmooth, dSmooth int
}

func newStoch(params map[string]any) (Indicator, error) {
	k, err := intParam(params, "k_length", 14)
	if err != nil {
		return nil, err
	}
	ks, err := intParam(params, "k_smooth", 3)
	if err != nil {
		return nil, err
	}
	ds, err := intParam(params, "d_smooth", 3)
	if err != nil {
		return nil, err
	}
	if k < 1 || ks < 1 || ds < 1 {
		return nil, fmt.Errorf("stoch: all periods must be >= 1")
	}
	return &stochIndicator{kLength: k, kSmooth: ks, dSmooth: ds}, nil
}

func (s *stochIndicator) Name() string { return "stoch" }
func (s *stochIndicator) Warmup() int  { return s.kLength - 1 + s.kSmooth - 1 + s.dSmooth - 1 }
func (s *stochIndicator) Suffixes() []string {
	return []string{"k", "d"}
}

func (s *stochIndicator) BatchCompute(in Inputs) (Output, error) {
	slowK, slowD := talib.Stoch(in.High, in.Low, in.Close, s.kLength, s.kSmooth, 0, s.dSmooth, 0)
	blankWarmup(slowK, s.Warmup())
	blankWarmup(slowD, s.Warmup())
	return Output{"k": slowK, "d": slowD}, nil
}

func (s *stochIndicator) IncrementalCompute(in Inputs) (Output, error) {
	rawK := rawStochK(in.High, in.Low, in.Close, s.kLength)
	slowK := smaOverNaN(rawK, s.kSmooth)
	slowD := smaOverNaN(slowK, s.dSmooth)
	blankWarmup(slowK, s.Warmup())
	blankWarmup(slowD, s.Warmup())
	return Output{"k": slowK, "d": slowD}, nil
}

// smaOverNaN is a trailing-window SMA where any NaN in the window
// propagates NaN for that position, used to chain stochastic smoothing
// stages without hand-tracking each warmup boundary.
func smaOverNaN(src []float64, period int) []float64 {
	n := len(src)
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		if i+1 < period {
			out[i] = math.NaN()
			continue
		}
		sum := 0.0
		ok := true
		for j := i - period + 1; j <= i; j++ {
			if math.IsNaN(src[j]) {
				ok = false
				break
			}
			sum += src[j]
		}
		if !ok {
			out[i] = math.NaN()
			continue
		}
		out[i] = sum / float64(period)
	}
	return out
}

// stochFIndicator is the fast stochastic oscillator: unsmoothed %K with a
// single SMA for %D.
type stochFIndicator struct {
	kLength, dSmooth int
}

func newStochF(params map[string]any) (Indicator, error) {
	k, err := intParam(params, "k_length", 14)
	if err != nil {
		return nil, err
	}
	ds, err := intParam(params, "d_smooth", 3)
	if err != nil {
		return nil, err
	}
	if k < 1 || ds < 1 {
		return nil, fmt.Errorf("stochf: all periods must be >= 1")
	}
	return &stochFIndicator{kLength: k, dSmooth: ds}, nil
}

func (s *stochFIndicator) Name() string       { return "stochf" }
func (s *stochFIndicator) Warmup() int        { return s.kLength - 1 + s.dSmooth - 1 }
func (s *stochFIndicator) Suffixes() []string { return []string{"k", "d"} }

func (s *stochFIndicator) BatchCompute(in Inputs) (Output, error) {
	fastK, fastD := talib.StochF(in.High, in.Low, in.Close, s.kLength, s.dSmooth, 0)
	blankWarmup(fastK, s.Warmup())
	blankWarmup(fastD, s.Warmup())
	return Output{"k": fastK, "d": fastD}, nil
}

func (s *stochFIndicator) IncrementalCompute(in Inputs) (Output, error) {
	rawK := rawStochK(in.High, in.Low, in.Close, s.kLength)
	fastD := smaOverNaN(rawK, s.dSmooth)
	blankWarmup(rawK, s.Warmup())
	blankWarmup(fastD, s.Warmup())
	return Output{"k": rawK, "d": fastD}, nil
}

// ultOscIndicator is the Ultimate Oscillator: a weighted blend of buying
// pressure over three trailing periods.
type ultOscIndicator struct {
	p1, p2, p3 int
}

func newUltOsc(params map[string]any) (Indicator, error) {
	p1, err := intParam(params, "period1", 7)
	if err != nil {
		return nil, err
	}
	p2, err := intParam(params, "period2", 14)
	if err != nil {
		return nil, err
	}
	p3, err := intParam(params, "period3", 28)
	if err != nil {
		return nil, err
	}
	if p1 < 1 || p2 < 1 || p3 < 1 {
		return nil, fmt.Errorf("ultosc: all periods must be >= 1")
	}
	return &ultOscIndicator{p1: p1, p2: p2, p3: p3}, nil
}

func (u *ultOscIndicator) Name() string { return "ultosc" }
func (u *ultOscIndicator) Warmup() int {
	return max3Int(u.p1, u.p2, u.p3)
}
func (u *ultOscIndicator) Suffixes() []string { return []string{""} }

func (u *ultOscIndicator) BatchCompute(in Inputs) (Output, error) {
	out := talib.UltOsc(in.High, in.Low, in.Close, u.p1, u.p2, u.p3)
	blankWarmup(out, u.Warmup())
	return Output{"": out}, nil
}

func (u *ultOscIndicator) IncrementalCompute(in Inputs) (Output, error) {
	n := len(in.Close)
	bp := make([]float64, n)
	tr := make([]float64, n)
	for i := 1; i < n; i++ {
		trueLow := in.Low[i]
		if in.Close[i-1] < trueLow {
			trueLow = in.Close[i-1]
		}
		trueHigh := in.High[i]
		if in.Close[i-1] > trueHigh {
			trueHigh = in.Close[i-1]
		}
		bp[i] = in.Close[i] - trueLow
		tr[i] = trueHigh - trueLow
	}
	out := nanFill(n, u.Warmup())
	avg := func(period, i int) (float64, float64) {
		var sBP, sTR float64
		for j := i - period + 1; j <= i; j++ {
			sBP += bp[j]
			sTR += tr[j]
		}
		return sBP, sTR
	}
	for i := u.Warmup(); i < n; i++ {
		bp1, tr1 := avg(u.p1, i)
		bp2, tr2 := avg(u.p2, i)
		bp3, tr3 := avg(u.p3, i)
		if tr1 == 0 || tr2 == 0 || tr3 == 0 {
			continue
		}
		out[i] = 100 * (4*(bp1/tr1) + 2*(bp2/tr2) + (bp3/tr3)) / 7
	}
	return Output{"": out}, nil
}

func max3Int(a, b, c int) int {
	m := a
	if b > m {
		m = b
	}
	if c > m {
		m = c
	}
	return m
}
