package indicators

import (
	"fmt"
	"math"

	talib "github.com/markcheno/go-talib"
)

// bbandsIndicator is Bollinger Bands, grounded on
// aristath-sentinel's BollingerBands formula which calls talib.BBands with
// maType=0 (SMA-based bands).
type bbandsIndicator struct {
	length int
	numStdDev float64
}

func newBBands(params map[string]any) (Indicator, error) {
	length, err := intParam(params, "length", 20)
	if err != nil {
		return nil, err
	}
	numStdDev, err := floatParam(params, "num_std_dev", 2)
	if err != nil {
		return nil, err
	}
	if length < 1 {
		return nil, fmt.Errorf("length must be >= 1, got %d", length)
	}
	return &bbandsIndicator{length: length, numStdDev: numStdDev}, nil
}

func (b *bbandsIndicator) Name() string       { return "bbands" }
func (b *bbandsIndicator) Warmup() int        { return b.length - 1 }
func (b *bbandsIndicator) Suffixes() []string { return []string{"upper", "middle", "lower", "bandwidth", "percent_b"} }

func (b *bbandsIndicator) BatchCompute(in Inputs) (Output, error) {
	src := primaryOrClose(in)
	upper, middle, lower := talib.BBands(src, b.length, b.numStdDev, b.numStdDev, 0)
	return b.assemble(src, upper, middle, lower), nil
}

func (b *bbandsIndicator) IncrementalCompute(in Inputs) (Output, error) {
	src := primaryOrClose(in)
	n := len(src)
	upper := nanFill(n, b.length-1)
	middle := nanFill(n, b.length-1)
	lower := nanFill(n, b.length-1)
	for i := b.length - 1; i < n; i++ {
		sum, sumSq := 0.0, 0.0
		for j := i - b.length + 1; j <= i; j++ {
			sum += src[j]
			sumSq += src[j] * src[j]
		}
		mean := sum / float64(b.length)
		variance := sumSq/float64(b.length) - mean*mean
		if variance < 0 {
			variance = 0
		}
		stdDev := math.Sqrt(variance)
		middle[i] = mean
		upper[i] = mean + b.numStdDev*stdDev
		lower[i] = mean - b.numStdDev*stdDev
	}
	return b.assemble(src, upper, middle, lower), nil
}

func (b *bbandsIndicator) assemble(src, upper, middle, lower []float64) Output {
	n := len(src)
	w := b.length - 1
	blankWarmup(upper, w)
	blankWarmup(middle, w)
	blankWarmup(lower, w)
	bandwidth := nanFill(n, w)
	percentB := nanFill(n, w)
	for i := w; i < n; i++ {
		width := upper[i] - lower[i]
		if middle[i] != 0 {
			bandwidth[i] = width / middle[i]
		}
		if width != 0 {
			percentB[i] = (src[i] - lower[i]) / width
		}
	}
	return Output{
		"upper":     upper,
		"middle":    middle,
		"lower":     lower,
		"bandwidth": bandwidth,
		"percent_b": percentB,
	}
}
