package indicators

import (
	"fmt"

	talib "github.com/markcheno/go-talib"
)

// stochRSIIndicator applies the stochastic %K/%D formula to an RSI series
// rather than to price, combining both oscillators' warmups.
type stochRSIIndicator struct {
	rsiLength, stochLength, kSmooth, dSmooth int
}

func newStochRSI(params map[string]any) (Indicator, error) {
	rsiLen, err := intParam(params, "rsi_length", 14)
	if err != nil {
		return nil, err
	}
	stochLen, err := intParam(params, "stoch_length", 14)
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
	if rsiLen < 1 || stochLen < 1 || ks < 1 || ds < 1 {
		return nil, fmt.Errorf("stochrsi: all periods must be >= 1")
	}
	return &stochRSIIndicator{rsiLength: rsiLen, stochLength: stochLen, kSmooth: ks, dSmooth: ds}, nil
}

func (s *stochRSIIndicator) Name() string { return "stochrsi" }
func (s *stochRSIIndicator) Warmup() int {
	return s.rsiLength + s.stochLength - 1 + s.kSmooth - 1 + s.dSmooth - 1
}
func (s *stochRSIIndicator) Suffixes() []string { return []string{"k", "d"} }

func (s *stochRSIIndicator) BatchCompute(in Inputs) (Output, error) {
	src := primaryOrClose(in)
	fastK, fastD := talib.StochRsi(src, s.rsiLength, s.stochLength, s.dSmooth, 0)
	blankWarmup(fastK, s.Warmup())
	blankWarmup(fastD, s.Warmup())
	return Output{"k": fastK, "d": fastD}, nil
}

func (s *stochRSIIndicator) IncrementalCompute(in Inputs) (Output, error) {
	src := primaryOrClose(in)
	rsi, err := (&rsiIndicator{length: s.rsiLength}).IncrementalCompute(Inputs{Primary: src})
	if err != nil {
		return nil, err
	}
	rsiSeries := rsi[""]
	rawK := rawStochK(rsiSeries, rsiSeries, rsiSeries, s.stochLength)
	slowK := smaOverNaN(rawK, s.kSmooth)
	slowD := smaOverNaN(slowK, s.dSmooth)
	blankWarmup(slowK, s.Warmup())
	blankWarmup(slowD, s.Warmup())
	return Output{"k": slowK, "d": slowD}, nil
}
