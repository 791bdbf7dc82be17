package indicators

import (
	"fmt"

	talib "github.com/markcheno/go-talib"
)

type cmoIndicator struct {
	length int
}

func newCMO(params map[string]any) (Indicator, error) {
	length, err := intParam(params, "length", 14)
	if err != nil {
		return nil, err
	}
	if length < 1 {
		return nil, fmt.Errorf("length must be >= 1, got %d", length)
	}
	return &cmoIndicator{length: length}, nil
}

func (c *cmoIndicator) Name() string       { return "cmo" }
func (c *cmoIndicator) Warmup() int        { return c.length }
func (c *cmoIndicator) Suffixes() []string { return []string{""} }

func (c *cmoIndicator) BatchCompute(in Inputs) (Output, error) {
	src := primaryOrClose(in)
	out := talib.Cmo(src, c.length)
	blankWarmup(out, c.length)
	return Output{"": out}, nil
}

func (c *cmoIndicator) IncrementalCompute(in Inputs) (Output, error) {
	src := primaryOrClose(in)
	n := len(src)
	out := nanFill(n, c.length)
	if n <= c.length {
		return Output{"": out}, nil
	}
	for i := c.length; i < n; i++ {
		gainSum, lossSum := 0.0, 0.0
		for j := i - c.length + 1; j <= i; j++ {
			delta := src[j] - src[j-1]
			if delta > 0 {
				gainSum += delta
			} else {
				lossSum -= delta
			}
		}
		if gainSum+lossSum == 0 {
			out[i] = 0
			continue
		}
		out[i] = 100 * (gainSum - lossSum) / (gainSum + lossSum)
	}
	return Output{"": out}, nil
}
