package indicators

import (
	"fmt"

	talib "github.com/markcheno/go-talib"
)

// mfiIndicator is the money flow index, a volume-weighted RSI analogue
// that reads high/low/close/volume directly.
type mfiIndicator struct {
	length int
}

func newMFI(params map[string]any) (Indicator, error) {
	length, err := intParam(params, "length", 14)
	if err != nil {
		return nil, err
	}
	if length < 1 {
		return nil, fmt.Errorf("length must be >= 1, got %d", length)
	}
	return &mfiIndicator{length: length}, nil
}

func (m *mfiIndicator) Name() string       { return "mfi" }
func (m *mfiIndicator) Warmup() int        { return m.length }
func (m *mfiIndicator) Suffixes() []string { return []string{""} }

func (m *mfiIndicator) BatchCompute(in Inputs) (Output, error) {
	out := talib.Mfi(in.High, in.Low, in.Close, in.Volume, m.length)
	blankWarmup(out, m.length)
	return Output{"": out}, nil
}

func (m *mfiIndicator) IncrementalCompute(in Inputs) (Output, error) {
	n := len(in.Close)
	out := nanFill(n, m.length)
	typical := make([]float64, n)
	moneyFlow := make([]float64, n)
	for i := 0; i < n; i++ {
		typical[i] = (in.High[i] + in.Low[i] + in.Close[i]) / 3
		moneyFlow[i] = typical[i] * in.Volume[i]
	}
	for i := m.length; i < n; i++ {
		posFlow, negFlow := 0.0, 0.0
		for j := i - m.length + 1; j <= i; j++ {
			if j == 0 {
				continue
			}
			if typical[j] > typical[j-1] {
				posFlow += moneyFlow[j]
			} else if typical[j] < typical[j-1] {
				negFlow += moneyFlow[j]
			}
		}
		if negFlow == 0 {
			out[i] = 100
			continue
		}
		ratio := posFlow / negFlow
		out[i] = 100 - 100/(1+ratio)
	}
	return Output{"": out}, nil
}
