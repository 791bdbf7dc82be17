package indicators

import (
	"fmt"

	talib "github.com/markcheno/go-talib"
)

type smaIndicator struct {
	length int
}

func newSMA(params map[string]any) (Indicator, error) {
	length, err := intParam(params, "length", 20)
	if err != nil {
		return nil, err
	}
	if length < 1 {
		return nil, fmt.Errorf("length must be >= 1, got %d", length)
	}
	return &smaIndicator{length: length}, nil
}

func (s *smaIndicator) Name() string       { return "sma" }
func (s *smaIndicator) Warmup() int        { return s.length - 1 }
func (s *smaIndicator) Suffixes() []string { return []string{""} }

func (s *smaIndicator) BatchCompute(in Inputs) (Output, error) {
	src := primaryOrClose(in)
	out := talib.Sma(src, s.length)
	blankWarmup(out, s.length-1)
	return Output{"": out}, nil
}

func (s *smaIndicator) IncrementalCompute(in Inputs) (Output, error) {
	src := primaryOrClose(in)
	n := len(src)
	out := nanFill(n, s.length-1)
	if n < s.length {
		return Output{"": out}, nil
	}
	sum := 0.0
	for i := 0; i < s.length; i++ {
		sum += src[i]
	}
	out[s.length-1] = sum / float64(s.length)
	for i := s.length; i < n; i++ {
		sum += src[i] - src[i-s.length]
		out[i] = sum / float64(s.length)
	}
	return Output{"": out}, nil
}
