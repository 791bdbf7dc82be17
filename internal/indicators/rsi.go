package indicators

import (
	"fmt"

	talib "github.com/markcheno/go-talib"
)

type rsiIndicator struct {
	length int
}

func newRSI(params map[string]any) (Indicator, error) {
	length, err := intParam(params, "length", 14)
	if err != nil {
		return nil, err
	}
	if length < 1 {
		return nil, fmt.Errorf("length must be >= 1, got %d", length)
	}
	return &rsiIndicator{length: length}, nil
}

func (r *rsiIndicator) Name() string       { return "rsi" }
func (r *rsiIndicator) Warmup() int        { return r.length }
func (r *rsiIndicator) Suffixes() []string { return []string{""} }

func (r *rsiIndicator) BatchCompute(in Inputs) (Output, error) {
	src := primaryOrClose(in)
	out := talib.Rsi(src, r.length)
	blankWarmup(out, r.length)
	return Output{"": out}, nil
}

// IncrementalCompute uses Wilder's smoothing recurrence for average
// gain/loss, the classic streaming form of RSI.
func (r *rsiIndicator) IncrementalCompute(in Inputs) (Output, error) {
	src := primaryOrClose(in)
	n := len(src)
	out := nanFill(n, r.length)
	if n <= r.length {
		return Output{"": out}, nil
	}
	var gainSum, lossSum float64
	for i := 1; i <= r.length; i++ {
		delta := src[i] - src[i-1]
		if delta > 0 {
			gainSum += delta
		} else {
			lossSum -= delta
		}
	}
	avgGain := gainSum / float64(r.length)
	avgLoss := lossSum / float64(r.length)
	out[r.length] = rsiFromAverages(avgGain, avgLoss)
	for i := r.length + 1; i < n; i++ {
		delta := src[i] - src[i-1]
		gain, loss := 0.0, 0.0
		if delta > 0 {
			gain = delta
		} else {
			loss = -delta
		}
		avgGain = (avgGain*float64(r.length-1) + gain) / float64(r.length)
		avgLoss = (avgLoss*float64(r.length-1) + loss) / float64(r.length)
		out[i] = rsiFromAverages(avgGain, avgLoss)
	}
	return Output{"": out}, nil
}

func rsiFromAverages(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50
		}
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}
