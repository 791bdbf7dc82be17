package indicators

// avgPriceIndicator, medPriceIndicator, typPriceIndicator and
// wclPriceIndicator are the four zero-warmup OHLC composite prices. Each
// bar is self-contained, so batch and incremental compute the identical
// per-bar arithmetic.

type avgPriceIndicator struct{}

func newAvgPrice(params map[string]any) (Indicator, error) { return &avgPriceIndicator{}, nil }

func (a *avgPriceIndicator) Name() string       { return "avgprice" }
func (a *avgPriceIndicator) Warmup() int        { return 0 }
func (a *avgPriceIndicator) Suffixes() []string { return []string{""} }

func (a *avgPriceIndicator) BatchCompute(in Inputs) (Output, error) {
	return Output{"": avgPriceCompute(in)}, nil
}

func (a *avgPriceIndicator) IncrementalCompute(in Inputs) (Output, error) {
	return Output{"": avgPriceCompute(in)}, nil
}

func avgPriceCompute(in Inputs) []float64 {
	n := len(in.Close)
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = (in.Open[i] + in.High[i] + in.Low[i] + in.Close[i]) / 4
	}
	return out
}

type medPriceIndicator struct{}

func newMedPrice(params map[string]any) (Indicator, error) { return &medPriceIndicator{}, nil }

func (m *medPriceIndicator) Name() string       { return "medprice" }
func (m *medPriceIndicator) Warmup() int        { return 0 }
func (m *medPriceIndicator) Suffixes() []string { return []string{""} }

func (m *medPriceIndicator) BatchCompute(in Inputs) (Output, error) {
	return Output{"": medPriceCompute(in)}, nil
}

func (m *medPriceIndicator) IncrementalCompute(in Inputs) (Output, error) {
	return Output{"": medPriceCompute(in)}, nil
}

func medPriceCompute(in Inputs) []float64 {
	n := len(in.Close)
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = (in.High[i] + in.Low[i]) / 2
	}
	return out
}

type typPriceIndicator struct{}

func newTypPrice(params map[string]any) (Indicator, error) { return &typPriceIndicator{}, nil }

func (t *typPriceIndicator) Name() string       { return "typprice" }
func (t *typPriceIndicator) Warmup() int        { return 0 }
func (t *typPriceIndicator) Suffixes() []string { return []string{""} }

func (t *typPriceIndicator) BatchCompute(in Inputs) (Output, error) {
	return Output{"": typPriceCompute(in)}, nil
}

func (t *typPriceIndicator) IncrementalCompute(in Inputs) (Output, error) {
	return Output{"": typPriceCompute(in)}, nil
}

func typPriceCompute(in Inputs) []float64 {
	n := len(in.Close)
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = (in.High[i] + in.Low[i] + in.Close[i]) / 3
	}
	return out
}

type wclPriceIndicator struct{}

func newWclPrice(params map[string]any) (Indicator, error) { return &wclPriceIndicator{}, nil }

func (w *wclPriceIndicator) Name() string       { return "wclprice" }
func (w *wclPriceIndicator) Warmup() int        { return 0 }
func (w *wclPriceIndicator) Suffixes() []string { return []string{""} }

func (w *wclPriceIndicator) BatchCompute(in Inputs) (Output, error) {
	return Output{"": wclPriceCompute(in)}, nil
}

func (w *wclPriceIndicator) IncrementalCompute(in Inputs) (Output, error) {
	return Output{"": wclPriceCompute(in)}, nil
}

func wclPriceCompute(in Inputs) []float64 {
	n := len(in.Close)
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = (in.High[i] + in.Low[i] + 2*in.Close[i]) / 4
	}
	return out
}
