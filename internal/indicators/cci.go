package indicators

import (
	"fmt"

	talib "github.com/markcheno/go-talib"
)

type cciIndicator struct {
	length int
}

func newCCI(params map[string]any) (Indicator, error) {
	length, err := intParam(params, "length", 20)
	if err != nil {
		return nil, err
	}
	if length < 1 {
		return nil, fmt.Errorf("length must be >= 1, got %d", length)
	}
	return &cciIndicator{length: length}, nil
}

func (c *cciIndicator) Name() string       { return "cci" }
func (c *cciIndicator) Warmup() int        { return c.length - 1 }
func (c *cciIndicator) Suffixes() []string { return []string{""} }

func (c *cciIndicator) BatchCompute(in Inputs) (Output, error) {
	out := talib.Cci(in.High, in.Low, in.Close, c.length)
	blankWarmup(out, c.length-1)
	return Output{"": out}, nil
}

func (c *cciIndicator) IncrementalCompute(in Inputs) (Output, error) {
	n := len(in.Close)
	out := nanFill(n, c.length-1)
	typical := make([]float64, n)
	for i := 0; i < n; i++ {
		typical[i] = (in.High[i] + in.Low[i] + in.Close[i]) / 3
	}
	const constant = 0.015
	for i := c.length - 1; i < n; i++ {
		sum := 0.0
		for j := i - c.length + 1; j <= i; j++ {
			sum += typical[j]
		}
		mean := sum / float64(c.length)
		meanDev := 0.0
		for j := i - c.length + 1; j <= i; j++ {
			meanDev += abs(typical[j] - mean)
		}
		meanDev /= float64(c.length)
		if meanDev == 0 {
			out[i] = 0
			continue
		}
		out[i] = (typical[i] - mean) / (constant * meanDev)
	}
	return Output{"": out}, nil
}
