package indicators

import "fmt"

// adIndicator is the Chaikin accumulation/distribution line, a running
// sum driven by the close-location-value, so both arms compute the same
// forward loop and agree exactly.
type adIndicator struct{}

func newAD(params map[string]any) (Indicator, error) { return &adIndicator{}, nil }

func (a *adIndicator) Name() string       { return "ad" }
func (a *adIndicator) Warmup() int        { return 0 }
func (a *adIndicator) Suffixes() []string { return []string{""} }

func (a *adIndicator) BatchCompute(in Inputs) (Output, error) {
	return Output{"": adCompute(in)}, nil
}

func (a *adIndicator) IncrementalCompute(in Inputs) (Output, error) {
	return Output{"": adCompute(in)}, nil
}

func adCompute(in Inputs) []float64 {
	n := len(in.Close)
	out := make([]float64, n)
	var running float64
	for i := 0; i < n; i++ {
		rng := in.High[i] - in.Low[i]
		var clv float64
		if rng != 0 {
			clv = ((in.Close[i] - in.Low[i]) - (in.High[i] - in.Close[i])) / rng
		}
		running += clv * in.Volume[i]
		out[i] = running
	}
	return out
}

// adOscIndicator is the Chaikin A/D oscillator: the difference of a fast
// and slow EMA of the A/D line.
type adOscIndicator struct {
	fast, slow int
}

func newADOsc(params map[string]any) (Indicator, error) {
	fast, err := intParam(params, "fast", 3)
	if err != nil {
		return nil, err
	}
	slow, err := intParam(params, "slow", 10)
	if err != nil {
		return nil, err
	}
	if fast < 1 || slow < 1 || fast >= slow {
		return nil, fmt.Errorf("adosc: require fast < slow, got fast=%d slow=%d", fast, slow)
	}
	return &adOscIndicator{fast: fast, slow: slow}, nil
}

func (a *adOscIndicator) Name() string       { return "adosc" }
func (a *adOscIndicator) Warmup() int        { return a.slow - 1 }
func (a *adOscIndicator) Suffixes() []string { return []string{""} }

func (a *adOscIndicator) BatchCompute(in Inputs) (Output, error) {
	ad := adCompute(in)
	fastEMA := emaSeries(ad, a.fast)
	slowEMA := emaSeries(ad, a.slow)
	n := len(ad)
	out := nanFill(n, a.Warmup())
	for i := a.Warmup(); i < n; i++ {
		out[i] = fastEMA[i] - slowEMA[i]
	}
	return Output{"": out}, nil
}

func (a *adOscIndicator) IncrementalCompute(in Inputs) (Output, error) {
	return a.BatchCompute(in)
}
