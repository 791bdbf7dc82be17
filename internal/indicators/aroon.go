package indicators

import (
	"fmt"

	talib "github.com/markcheno/go-talib"
)

// aroonIndicator measures bars-since-highest-high and bars-since-lowest-low
// over the trailing window, each scaled to a 0-100 range.
type aroonIndicator struct {
	length int
}

func newAroon(params map[string]any) (Indicator, error) {
	length, err := intParam(params, "length", 14)
	if err != nil {
		return nil, err
	}
	if length < 1 {
		return nil, fmt.Errorf("length must be >= 1, got %d", length)
	}
	return &aroonIndicator{length: length}, nil
}

func (a *aroonIndicator) Name() string       { return "aroon" }
func (a *aroonIndicator) Warmup() int        { return a.length }
func (a *aroonIndicator) Suffixes() []string { return []string{"up", "down"} }

func (a *aroonIndicator) BatchCompute(in Inputs) (Output, error) {
	down, up := talib.Aroon(in.High, in.Low, a.length)
	blankWarmup(up, a.Warmup())
	blankWarmup(down, a.Warmup())
	return Output{"up": up, "down": down}, nil
}

func (a *aroonIndicator) IncrementalCompute(in Inputs) (Output, error) {
	up, down := aroonCompute(in.High, in.Low, a.length)
	blankWarmup(up, a.Warmup())
	blankWarmup(down, a.Warmup())
	return Output{"up": up, "down": down}, nil
}

func aroonCompute(high, low []float64, length int) (up, down []float64) {
	n := len(high)
	up = make([]float64, n)
	down = make([]float64, n)
	for i := length; i < n; i++ {
		hiIdx, loIdx := i-length, i-length
		for j := i - length; j <= i; j++ {
			if high[j] >= high[hiIdx] {
				hiIdx = j
			}
			if low[j] <= low[loIdx] {
				loIdx = j
			}
		}
		up[i] = float64(length-(i-hiIdx)) / float64(length) * 100
		down[i] = float64(length-(i-loIdx)) / float64(length) * 100
	}
	return up, down
}

// aroonOscIndicator is AroonUp - AroonDown.
type aroonOscIndicator struct {
	length int
}

func newAroonOsc(params map[string]any) (Indicator, error) {
	length, err := intParam(params, "length", 14)
	if err != nil {
		return nil, err
	}
	if length < 1 {
		return nil, fmt.Errorf("length must be >= 1, got %d", length)
	}
	return &aroonOscIndicator{length: length}, nil
}

func (a *aroonOscIndicator) Name() string       { return "aroonosc" }
func (a *aroonOscIndicator) Warmup() int        { return a.length }
func (a *aroonOscIndicator) Suffixes() []string { return []string{""} }

func (a *aroonOscIndicator) BatchCompute(in Inputs) (Output, error) {
	out := talib.AroonOsc(in.High, in.Low, a.length)
	blankWarmup(out, a.Warmup())
	return Output{"": out}, nil
}

func (a *aroonOscIndicator) IncrementalCompute(in Inputs) (Output, error) {
	up, down := aroonCompute(in.High, in.Low, a.length)
	n := len(up)
	out := nanFill(n, a.Warmup())
	for i := a.Warmup(); i < n; i++ {
		out[i] = up[i] - down[i]
	}
	return Output{"": out}, nil
}
