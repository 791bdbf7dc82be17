package indicators

import (
	"fmt"
	"math"

	talib "github.com/markcheno/go-talib"
)

// windowMeanVariance returns the population mean and variance of
// src[i-length+1:i+1] for every i >= length-1.
func windowMeanVariance(src []float64, length int) (mean, variance []float64) {
	n := len(src)
	mean = nanFill(n, length-1)
	variance = nanFill(n, length-1)
	for i := length - 1; i < n; i++ {
		sum, sumSq := 0.0, 0.0
		for j := i - length + 1; j <= i; j++ {
			sum += src[j]
			sumSq += src[j] * src[j]
		}
		m := sum / float64(length)
		v := sumSq/float64(length) - m*m
		if v < 0 {
			v = 0
		}
		mean[i] = m
		variance[i] = v
	}
	return mean, variance
}

// stdDevIndicator is the standard deviation of the source series over the
// trailing window, optionally scaled by a deviation multiplier.
type stdDevIndicator struct {
	length int
	nbDev  float64
}

func newSTDDEV(params map[string]any) (Indicator, error) {
	length, err := intParam(params, "length", 20)
	if err != nil {
		return nil, err
	}
	nbDev, err := floatParam(params, "nb_dev", 1)
	if err != nil {
		return nil, err
	}
	if length < 1 {
		return nil, fmt.Errorf("length must be >= 1, got %d", length)
	}
	return &stdDevIndicator{length: length, nbDev: nbDev}, nil
}

func (s *stdDevIndicator) Name() string       { return "stddev" }
func (s *stdDevIndicator) Warmup() int        { return s.length - 1 }
func (s *stdDevIndicator) Suffixes() []string { return []string{""} }

func (s *stdDevIndicator) BatchCompute(in Inputs) (Output, error) {
	src := primaryOrClose(in)
	out := talib.StdDev(src, s.length, s.nbDev)
	blankWarmup(out, s.Warmup())
	return Output{"": out}, nil
}

func (s *stdDevIndicator) IncrementalCompute(in Inputs) (Output, error) {
	src := primaryOrClose(in)
	_, variance := windowMeanVariance(src, s.length)
	out := make([]float64, len(variance))
	for i, v := range variance {
		if math.IsNaN(v) {
			out[i] = math.NaN()
			continue
		}
		out[i] = math.Sqrt(v) * s.nbDev
	}
	return Output{"": out}, nil
}

// varIndicator is the population variance over the trailing window.
type varIndicator struct {
	length int
}

func newVAR(params map[string]any) (Indicator, error) {
	length, err := intParam(params, "length", 20)
	if err != nil {
		return nil, err
	}
	if length < 1 {
		return nil, fmt.Errorf("length must be >= 1, got %d", length)
	}
	return &varIndicator{length: length}, nil
}

func (v *varIndicator) Name() string       { return "var" }
func (v *varIndicator) Warmup() int        { return v.length - 1 }
func (v *varIndicator) Suffixes() []string { return []string{""} }

func (v *varIndicator) BatchCompute(in Inputs) (Output, error) {
	src := primaryOrClose(in)
	out := talib.Var(src, v.length, 1)
	blankWarmup(out, v.Warmup())
	return Output{"": out}, nil
}

func (v *varIndicator) IncrementalCompute(in Inputs) (Output, error) {
	src := primaryOrClose(in)
	_, variance := windowMeanVariance(src, v.length)
	return Output{"": variance}, nil
}

// midPointIndicator is the midpoint of the highest and lowest source value
// over the trailing window.
type midPointIndicator struct {
	length int
}

func newMidPoint(params map[string]any) (Indicator, error) {
	length, err := intParam(params, "length", 14)
	if err != nil {
		return nil, err
	}
	if length < 1 {
		return nil, fmt.Errorf("length must be >= 1, got %d", length)
	}
	return &midPointIndicator{length: length}, nil
}

func (m *midPointIndicator) Name() string       { return "midpoint" }
func (m *midPointIndicator) Warmup() int        { return m.length - 1 }
func (m *midPointIndicator) Suffixes() []string { return []string{""} }

func (m *midPointIndicator) BatchCompute(in Inputs) (Output, error) {
	src := primaryOrClose(in)
	out := talib.MidPoint(src, m.length)
	blankWarmup(out, m.Warmup())
	return Output{"": out}, nil
}

func (m *midPointIndicator) IncrementalCompute(in Inputs) (Output, error) {
	src := primaryOrClose(in)
	n := len(src)
	out := nanFill(n, m.Warmup())
	for i := m.length - 1; i < n; i++ {
		hi, lo := src[i-m.length+1], src[i-m.length+1]
		for j := i - m.length + 1; j <= i; j++ {
			if src[j] > hi {
				hi = src[j]
			}
			if src[j] < lo {
				lo = src[j]
			}
		}
		out[i] = (hi + lo) / 2
	}
	return Output{"": out}, nil
}

// linearRegWindow returns the closed-form least-squares fit (slope,
// intercept) of src over each trailing window of `length` bars, x = 0..length-1.
func linearRegWindow(src []float64, length int) (slope, intercept []float64) {
	n := len(src)
	slope = nanFill(n, length-1)
	intercept = nanFill(n, length-1)
	sumX, sumXX := 0.0, 0.0
	for x := 0; x < length; x++ {
		sumX += float64(x)
		sumXX += float64(x) * float64(x)
	}
	denom := float64(length)*sumXX - sumX*sumX
	for i := length - 1; i < n; i++ {
		sumY, sumXY := 0.0, 0.0
		for x := 0; x < length; x++ {
			y := src[i-length+1+x]
			sumY += y
			sumXY += float64(x) * y
		}
		if denom == 0 {
			continue
		}
		m := (float64(length)*sumXY - sumX*sumY) / denom
		b := (sumY - m*sumX) / float64(length)
		slope[i] = m
		intercept[i] = b
	}
	return slope, intercept
}

// linRegIndicator is the linear-regression value (the fitted line's
// endpoint) over the trailing window.
type linRegIndicator struct {
	length int
}

func newLinReg(params map[string]any) (Indicator, error) {
	length, err := intParam(params, "length", 14)
	if err != nil {
		return nil, err
	}
	if length < 1 {
		return nil, fmt.Errorf("length must be >= 1, got %d", length)
	}
	return &linRegIndicator{length: length}, nil
}

func (l *linRegIndicator) Name() string       { return "linreg" }
func (l *linRegIndicator) Warmup() int        { return l.length - 1 }
func (l *linRegIndicator) Suffixes() []string { return []string{""} }

func (l *linRegIndicator) BatchCompute(in Inputs) (Output, error) {
	src := primaryOrClose(in)
	out := talib.LinearReg(src, l.length)
	blankWarmup(out, l.Warmup())
	return Output{"": out}, nil
}

func (l *linRegIndicator) IncrementalCompute(in Inputs) (Output, error) {
	src := primaryOrClose(in)
	slope, intercept := linearRegWindow(src, l.length)
	n := len(src)
	out := nanFill(n, l.Warmup())
	for i := l.Warmup(); i < n; i++ {
		out[i] = slope[i]*float64(l.length-1) + intercept[i]
	}
	return Output{"": out}, nil
}

// linRegSlopeIndicator is the slope of the trailing-window linear fit.
type linRegSlopeIndicator struct {
	length int
}

func newLinRegSlope(params map[string]any) (Indicator, error) {
	length, err := intParam(params, "length", 14)
	if err != nil {
		return nil, err
	}
	if length < 1 {
		return nil, fmt.Errorf("length must be >= 1, got %d", length)
	}
	return &linRegSlopeIndicator{length: length}, nil
}

func (l *linRegSlopeIndicator) Name() string       { return "linregslope" }
func (l *linRegSlopeIndicator) Warmup() int        { return l.length - 1 }
func (l *linRegSlopeIndicator) Suffixes() []string { return []string{""} }

func (l *linRegSlopeIndicator) BatchCompute(in Inputs) (Output, error) {
	src := primaryOrClose(in)
	out := talib.LinearRegSlope(src, l.length)
	blankWarmup(out, l.Warmup())
	return Output{"": out}, nil
}

func (l *linRegSlopeIndicator) IncrementalCompute(in Inputs) (Output, error) {
	src := primaryOrClose(in)
	slope, _ := linearRegWindow(src, l.length)
	return Output{"": slope}, nil
}

// tsfIndicator is the time-series forecast: the linear-regression fit
// extrapolated one bar past the window's end.
type tsfIndicator struct {
	length int
}

func newTSF(params map[string]any) (Indicator, error) {
	length, err := intParam(params, "length", 14)
	if err != nil {
		return nil, err
	}
	if length < 1 {
		return nil, fmt.Errorf("length must be >= 1, got %d", length)
	}
	return &tsfIndicator{length: length}, nil
}

func (t *tsfIndicator) Name() string       { return "tsf" }
func (t *tsfIndicator) Warmup() int        { return t.length - 1 }
func (t *tsfIndicator) Suffixes() []string { return []string{""} }

func (t *tsfIndicator) BatchCompute(in Inputs) (Output, error) {
	src := primaryOrClose(in)
	out := talib.Tsf(src, t.length)
	blankWarmup(out, t.Warmup())
	return Output{"": out}, nil
}

func (t *tsfIndicator) IncrementalCompute(in Inputs) (Output, error) {
	src := primaryOrClose(in)
	slope, intercept := linearRegWindow(src, t.length)
	n := len(src)
	out := nanFill(n, t.Warmup())
	for i := t.Warmup(); i < n; i++ {
		out[i] = slope[i]*float64(t.length) + intercept[i]
	}
	return Output{"": out}, nil
}
