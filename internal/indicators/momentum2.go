package indicators

import (
	"fmt"

	talib "github.com/markcheno/go-talib"
)

// rocIndicator is the rate of change, as a percentage versus the value
// `length` bars ago.
type rocIndicator struct {
	length int
}

func newROC(params map[string]any) (Indicator, error) {
	length, err := intParam(params, "length", 10)
	if err != nil {
		return nil, err
	}
	if length < 1 {
		return nil, fmt.Errorf("length must be >= 1, got %d", length)
	}
	return &rocIndicator{length: length}, nil
}

func (r *rocIndicator) Name() string       { return "roc" }
func (r *rocIndicator) Warmup() int        { return r.length }
func (r *rocIndicator) Suffixes() []string { return []string{""} }

func (r *rocIndicator) BatchCompute(in Inputs) (Output, error) {
	src := primaryOrClose(in)
	out := talib.Roc(src, r.length)
	blankWarmup(out, r.Warmup())
	return Output{"": out}, nil
}

func (r *rocIndicator) IncrementalCompute(in Inputs) (Output, error) {
	src := primaryOrClose(in)
	n := len(src)
	out := nanFill(n, r.Warmup())
	for i := r.length; i < n; i++ {
		prev := src[i-r.length]
		if prev == 0 {
			continue
		}
		out[i] = (src[i] - prev) / prev * 100
	}
	return Output{"": out}, nil
}

// momIndicator is plain momentum: the absolute difference versus `length`
// bars ago.
type momIndicator struct {
	length int
}

func newMOM(params map[string]any) (Indicator, error) {
	length, err := intParam(params, "length", 10)
	if err != nil {
		return nil, err
	}
	if length < 1 {
		return nil, fmt.Errorf("length must be >= 1, got %d", length)
	}
	return &momIndicator{length: length}, nil
}

func (m *momIndicator) Name() string       { return "mom" }
func (m *momIndicator) Warmup() int        { return m.length }
func (m *momIndicator) Suffixes() []string { return []string{""} }

func (m *momIndicator) BatchCompute(in Inputs) (Output, error) {
	src := primaryOrClose(in)
	out := talib.Mom(src, m.length)
	blankWarmup(out, m.Warmup())
	return Output{"": out}, nil
}

func (m *momIndicator) IncrementalCompute(in Inputs) (Output, error) {
	src := primaryOrClose(in)
	n := len(src)
	out := nanFill(n, m.Warmup())
	for i := m.length; i < n; i++ {
		out[i] = src[i] - src[i-m.length]
	}
	return Output{"": out}, nil
}

// ppoIndicator is the percentage price oscillator: (fastEMA-slowEMA)/slowEMA*100.
type ppoIndicator struct {
	fast, slow int
}

func newPPO(params map[string]any) (Indicator, error) {
	fast, err := intParam(params, "fast", 12)
	if err != nil {
		return nil, err
	}
	slow, err := intParam(params, "slow", 26)
	if err != nil {
		return nil, err
	}
	if fast < 1 || slow < 1 || fast >= slow {
		return nil, fmt.Errorf("ppo: require fast < slow, got fast=%d slow=%d", fast, slow)
	}
	return &ppoIndicator{fast: fast, slow: slow}, nil
}

func (p *ppoIndicator) Name() string       { return "ppo" }
func (p *ppoIndicator) Warmup() int        { return p.slow - 1 }
func (p *ppoIndicator) Suffixes() []string { return []string{""} }

func (p *ppoIndicator) BatchCompute(in Inputs) (Output, error) {
	src := primaryOrClose(in)
	out := talib.Ppo(src, p.fast, p.slow, 0)
	blankWarmup(out, p.Warmup())
	return Output{"": out}, nil
}

func (p *ppoIndicator) IncrementalCompute(in Inputs) (Output, error) {
	src := primaryOrClose(in)
	n := len(src)
	fastEMA := emaSeries(src, p.fast)
	slowEMA := emaSeries(src, p.slow)
	out := nanFill(n, p.Warmup())
	for i := p.Warmup(); i < n; i++ {
		if slowEMA[i] == 0 {
			continue
		}
		out[i] = (fastEMA[i] - slowEMA[i]) / slowEMA[i] * 100
	}
	return Output{"": out}, nil
}

// apoIndicator is the absolute price oscillator: fastEMA - slowEMA.
type apoIndicator struct {
	fast, slow int
}

func newAPO(params map[string]any) (Indicator, error) {
	fast, err := intParam(params, "fast", 12)
	if err != nil {
		return nil, err
	}
	slow, err := intParam(params, "slow", 26)
	if err != nil {
		return nil, err
	}
	if fast < 1 || slow < 1 || fast >= slow {
		return nil, fmt.Errorf("apo: require fast < slow, got fast=%d slow=%d", fast, slow)
	}
	return &apoIndicator{fast: fast, slow: slow}, nil
}

func (a *apoIndicator) Name() string       { return "apo" }
func (a *apoIndicator) Warmup() int        { return a.slow - 1 }
func (a *apoIndicator) Suffixes() []string { return []string{""} }

func (a *apoIndicator) BatchCompute(in Inputs) (Output, error) {
	src := primaryOrClose(in)
	out := talib.Apo(src, a.fast, a.slow, 0)
	blankWarmup(out, a.Warmup())
	return Output{"": out}, nil
}

func (a *apoIndicator) IncrementalCompute(in Inputs) (Output, error) {
	src := primaryOrClose(in)
	n := len(src)
	fastEMA := emaSeries(src, a.fast)
	slowEMA := emaSeries(src, a.slow)
	out := nanFill(n, a.Warmup())
	for i := a.Warmup(); i < n; i++ {
		out[i] = fastEMA[i] - slowEMA[i]
	}
	return Output{"": out}, nil
}

// trixIndicator is the rate of change of a triple-smoothed EMA.
type trixIndicator struct {
	length int
}

func newTRIX(params map[string]any) (Indicator, error) {
	length, err := intParam(params, "length", 15)
	if err != nil {
		return nil, err
	}
	if length < 1 {
		return nil, fmt.Errorf("length must be >= 1, got %d", length)
	}
	return &trixIndicator{length: length}, nil
}

func (t *trixIndicator) Name() string       { return "trix" }
func (t *trixIndicator) Warmup() int        { return 3*(t.length-1) + 1 }
func (t *trixIndicator) Suffixes() []string { return []string{""} }

func (t *trixIndicator) BatchCompute(in Inputs) (Output, error) {
	src := primaryOrClose(in)
	out := talib.Trix(src, t.length)
	blankWarmup(out, t.Warmup())
	return Output{"": out}, nil
}

func (t *trixIndicator) IncrementalCompute(in Inputs) (Output, error) {
	src := primaryOrClose(in)
	n := len(src)
	tripleEMA := emaSeries(emaSeries(emaSeries(src, t.length), t.length), t.length)
	out := nanFill(n, t.Warmup())
	for i := t.Warmup(); i < n; i++ {
		prev := tripleEMA[i-1]
		if prev == 0 {
			continue
		}
		out[i] = (tripleEMA[i] - prev) / prev * 100
	}
	return Output{"": out}, nil
}

// bopIndicator is the balance of power: (close-open)/(high-low). It has no
// warmup since every bar is self-contained.
type bopIndicator struct{}

func newBOP(params map[string]any) (Indicator, error) {
	return &bopIndicator{}, nil
}

func (b *bopIndicator) Name() string       { return "bop" }
func (b *bopIndicator) Warmup() int        { return 0 }
func (b *bopIndicator) Suffixes() []string { return []string{""} }

func (b *bopIndicator) BatchCompute(in Inputs) (Output, error) {
	return Output{"": bopCompute(in)}, nil
}

func (b *bopIndicator) IncrementalCompute(in Inputs) (Output, error) {
	return Output{"": bopCompute(in)}, nil
}

func bopCompute(in Inputs) []float64 {
	n := len(in.Close)
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		rng := in.High[i] - in.Low[i]
		if rng == 0 {
			out[i] = 0
			continue
		}
		out[i] = (in.Close[i] - in.Open[i]) / rng
	}
	return out
}
