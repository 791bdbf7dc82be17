package indicators

import (
	"fmt"
	"math"

	talib "github.com/markcheno/go-talib"
)

// wilderSmoothedDM computes Wilder-smoothed +DM, -DM and TR series shared
// by the whole directional-movement family (DX, ADX, ADXR, +DI, -DI), so
// each indicator's incremental arm agrees with the others by construction.
func wilderSmoothedDM(in Inputs, length int) (plusDM, minusDM, tr []float64) {
	n := len(in.Close)
	rawPlus := make([]float64, n)
	rawMinus := make([]float64, n)
	rawTR := make([]float64, n)
	for i := 1; i < n; i++ {
		upMove := in.High[i] - in.High[i-1]
		downMove := in.Low[i-1] - in.Low[i]
		if upMove > downMove && upMove > 0 {
			rawPlus[i] = upMove
		}
		if downMove > upMove && downMove > 0 {
			rawMinus[i] = downMove
		}
		hl := in.High[i] - in.Low[i]
		hc := abs(in.High[i] - in.Close[i-1])
		lc := abs(in.Low[i] - in.Close[i-1])
		rawTR[i] = max3(hl, hc, lc)
	}
	plusDM = make([]float64, n)
	minusDM = make([]float64, n)
	tr = make([]float64, n)
	if n <= length {
		return plusDM, minusDM, tr
	}
	var sumPlus, sumMinus, sumTR float64
	for i := 1; i <= length; i++ {
		sumPlus += rawPlus[i]
		sumMinus += rawMinus[i]
		sumTR += rawTR[i]
	}
	plusDM[length] = sumPlus
	minusDM[length] = sumMinus
	tr[length] = sumTR
	for i := length + 1; i < n; i++ {
		sumPlus = sumPlus - sumPlus/float64(length) + rawPlus[i]
		sumMinus = sumMinus - sumMinus/float64(length) + rawMinus[i]
		sumTR = sumTR - sumTR/float64(length) + rawTR[i]
		plusDM[i] = sumPlus
		minusDM[i] = sumMinus
		tr[i] = sumTR
	}
	return plusDM, minusDM, tr
}

func diSeries(dm, tr []float64) []float64 {
	out := make([]float64, len(dm))
	for i := range out {
		if tr[i] == 0 {
			continue
		}
		out[i] = 100 * dm[i] / tr[i]
	}
	return out
}

// plusDIIndicator is the positive directional indicator.
type plusDIIndicator struct{ length int }

func newPlusDI(params map[string]any) (Indicator, error) {
	length, err := intParam(params, "length", 14)
	if err != nil {
		return nil, err
	}
	if length < 1 {
		return nil, fmt.Errorf("length must be >= 1, got %d", length)
	}
	return &plusDIIndicator{length: length}, nil
}

func (p *plusDIIndicator) Name() string       { return "plus_di" }
func (p *plusDIIndicator) Warmup() int        { return p.length }
func (p *plusDIIndicator) Suffixes() []string { return []string{""} }

func (p *plusDIIndicator) BatchCompute(in Inputs) (Output, error) {
	out := talib.PlusDI(in.High, in.Low, in.Close, p.length)
	blankWarmup(out, p.Warmup())
	return Output{"": out}, nil
}

func (p *plusDIIndicator) IncrementalCompute(in Inputs) (Output, error) {
	plusDM, _, tr := wilderSmoothedDM(in, p.length)
	out := diSeries(plusDM, tr)
	blankWarmup(out, p.Warmup())
	return Output{"": out}, nil
}

// minusDIIndicator is the negative directional indicator.
type minusDIIndicator struct{ length int }

func newMinusDI(params map[string]any) (Indicator, error) {
	length, err := intParam(params, "length", 14)
	if err != nil {
		return nil, err
	}
	if length < 1 {
		return nil, fmt.Errorf("length must be >= 1, got %d", length)
	}
	return &minusDIIndicator{length: length}, nil
}

func (m *minusDIIndicator) Name() string       { return "minus_di" }
func (m *minusDIIndicator) Warmup() int        { return m.length }
func (m *minusDIIndicator) Suffixes() []string { return []string{""} }

func (m *minusDIIndicator) BatchCompute(in Inputs) (Output, error) {
	out := talib.MinusDI(in.High, in.Low, in.Close, m.length)
	blankWarmup(out, m.Warmup())
	return Output{"": out}, nil
}

func (m *minusDIIndicator) IncrementalCompute(in Inputs) (Output, error) {
	_, minusDM, tr := wilderSmoothedDM(in, m.length)
	out := diSeries(minusDM, tr)
	blankWarmup(out, m.Warmup())
	return Output{"": out}, nil
}

// dxIndicator is the directional movement index: 100*|+DI-DI|/(+DI+-DI).
type dxIndicator struct{ length int }

func newDX(params map[string]any) (Indicator, error) {
	length, err := intParam(params, "length", 14)
	if err != nil {
		return nil, err
	}
	if length < 1 {
		return nil, fmt.Errorf("length must be >= 1, got %d", length)
	}
	return &dxIndicator{length: length}, nil
}

func (d *dxIndicator) Name() string       { return "dx" }
func (d *dxIndicator) Warmup() int        { return d.length }
func (d *dxIndicator) Suffixes() []string { return []string{""} }

func (d *dxIndicator) BatchCompute(in Inputs) (Output, error) {
	out := talib.Dx(in.High, in.Low, in.Close, d.length)
	blankWarmup(out, d.Warmup())
	return Output{"": out}, nil
}

func (d *dxIndicator) IncrementalCompute(in Inputs) (Output, error) {
	plusDM, minusDM, tr := wilderSmoothedDM(in, d.length)
	plusDI := diSeries(plusDM, tr)
	minusDI := diSeries(minusDM, tr)
	n := len(in.Close)
	out := nanFill(n, d.Warmup())
	for i := d.Warmup(); i < n; i++ {
		sum := plusDI[i] + minusDI[i]
		if sum == 0 {
			continue
		}
		out[i] = 100 * math.Abs(plusDI[i]-minusDI[i]) / sum
	}
	return Output{"": out}, nil
}

// adxIndicator is Wilder's average directional index: a Wilder-smoothed
// average of DX.
type adxIndicator struct{ length int }

func newADX(params map[string]any) (Indicator, error) {
	length, err := intParam(params, "length", 14)
	if err != nil {
		return nil, err
	}
	if length < 1 {
		return nil, fmt.Errorf("length must be >= 1, got %d", length)
	}
	return &adxIndicator{length: length}, nil
}

func (a *adxIndicator) Name() string       { return "adx" }
func (a *adxIndicator) Warmup() int        { return 2*a.length - 1 }
func (a *adxIndicator) Suffixes() []string { return []string{""} }

func (a *adxIndicator) BatchCompute(in Inputs) (Output, error) {
	out := talib.Adx(in.High, in.Low, in.Close, a.length)
	blankWarmup(out, a.Warmup())
	return Output{"": out}, nil
}

func (a *adxIndicator) IncrementalCompute(in Inputs) (Output, error) {
	dx, err := (&dxIndicator{length: a.length}).IncrementalCompute(in)
	if err != nil {
		return nil, err
	}
	dxSeries := dx[""]
	n := len(dxSeries)
	out := nanFill(n, a.Warmup())
	start := a.length
	limit := start + a.length
	if limit > n {
		return Output{"": out}, nil
	}
	sum := 0.0
	for i := start; i < limit; i++ {
		sum += dxSeries[i]
	}
	adx := sum / float64(a.length)
	out[limit-1] = adx
	for i := limit; i < n; i++ {
		adx = (adx*float64(a.length-1) + dxSeries[i]) / float64(a.length)
		out[i] = adx
	}
	return Output{"": out}, nil
}
