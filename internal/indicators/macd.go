package indicators

import (
	"fmt"

	talib "github.com/markcheno/go-talib"
)

// macdIndicator is a multi-output indicator; its expanded feature keys
// are formed by joining the feature id with this suffix list, matching
// the registry's multi-output keying contract.
type macdIndicator struct {
	fast, slow, signal int
}

func newMACD(params map[string]any) (Indicator, error) {
	fast, err := intParam(params, "fast", 12)
	if err != nil {
		return nil, err
	}
	slow, err := intParam(params, "slow", 26)
	if err != nil {
		return nil, err
	}
	signal, err := intParam(params, "signal", 9)
	if err != nil {
		return nil, err
	}
	if fast < 1 || slow < 1 || signal < 1 || fast >= slow {
		return nil, fmt.Errorf("macd: require fast < slow and all periods >= 1, got fast=%d slow=%d signal=%d", fast, slow, signal)
	}
	return &macdIndicator{fast: fast, slow: slow, signal: signal}, nil
}

func (m *macdIndicator) Name() string { return "macd" }
func (m *macdIndicator) Warmup() int  { return m.slow + m.signal - 2 }
func (m *macdIndicator) Suffixes() []string {
	return []string{"macd", "signal", "histogram"}
}

func (m *macdIndicator) BatchCompute(in Inputs) (Output, error) {
	src := primaryOrClose(in)
	macd, signal, hist := talib.Macd(src, m.fast, m.slow, m.signal)
	w := m.Warmup()
	blankWarmup(macd, w)
	blankWarmup(signal, w)
	blankWarmup(hist, w)
	return Output{"macd": macd, "signal": signal, "histogram": hist}, nil
}

// IncrementalCompute hand-rolls the two underlying EMAs and their
// difference, then a third EMA of that difference for the signal line.
func (m *macdIndicator) IncrementalCompute(in Inputs) (Output, error) {
	src := primaryOrClose(in)
	n := len(src)
	fastEMA := emaSeries(src, m.fast)
	slowEMA := emaSeries(src, m.slow)
	macd := make([]float64, n)
	for i := 0; i < n; i++ {
		macd[i] = fastEMA[i] - slowEMA[i]
	}
	signal := emaSeries(macd, m.signal)
	hist := make([]float64, n)
	for i := 0; i < n; i++ {
		hist[i] = macd[i] - signal[i]
	}
	w := m.Warmup()
	blankWarmup(macd, w)
	blankWarmup(signal, w)
	blankWarmup(hist, w)
	return Output{"macd": macd, "signal": signal, "histogram": hist}, nil
}

// emaSeries computes an EMA over src, seeded with the simple average of
// the first `length` values; the positions before the seed hold the seed
// value. NaN inputs are not skipped, and when src is shorter than length
// every output is 0.
func emaSeries(src []float64, length int) []float64 {
	n := len(src)
	out := make([]float64, n)
	if n < length {
		for i := range out {
			out[i] = 0
		}
		return out
	}
	alpha := 2.0 / float64(length+1)
	sum := 0.0
	for i := 0; i < length; i++ {
		sum += src[i]
	}
	prev := sum / float64(length)
	for i := 0; i < length-1; i++ {
		out[i] = prev
	}
	out[length-1] = prev
	for i := length; i < n; i++ {
		prev = alpha*src[i] + (1-alpha)*prev
		out[i] = prev
	}
	return out
}
