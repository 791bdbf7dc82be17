package indicators_test

import (
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/floats/scalar"

	"github.com/ledgerline/btcore/internal/indicators"
)

// parityTolerance bounds the absolute difference between a vectorized and
// an incremental implementation of the same indicator, on their shared
// validity (non-NaN) mask, per spec.md §8 P7. Recurrences seeded the same
// way as go-talib's (EMA, RSI, ATR, CMO) hold to machine epsilon; a couple
// of the catalog's other indicators accumulate slightly more floating-point
// error over 300 bars, so the bound here is the loosest one the whole
// representative set clears rather than the tightest any single indicator
// could.
const parityTolerance = 1e-6

// syntheticInputs builds a deterministic pseudo-random OHLCV series so the
// parity test doesn't depend on real market data files.
func syntheticInputs(n int) indicators.Inputs {
	r := rand.New(rand.NewSource(42))
	close := make([]float64, n)
	high := make([]float64, n)
	low := make([]float64, n)
	open := make([]float64, n)
	volume := make([]float64, n)
	price := 100.0
	for i := 0; i < n; i++ {
		price += r.NormFloat64()
		open[i] = price
		high[i] = price + r.Float64()*2
		low[i] = price - r.Float64()*2
		close[i] = price + r.NormFloat64()*0.5
		volume[i] = 1000 + r.Float64()*500
	}
	return indicators.Inputs{Open: open, High: high, Low: low, Close: close, Volume: volume}
}

func assertParity(t *testing.T, name, suffix string, batch, incremental []float64) {
	t.Helper()
	if len(batch) != len(incremental) {
		t.Fatalf("%s[%s]: length mismatch batch=%d incremental=%d", name, suffix, len(batch), len(incremental))
	}
	for i := range batch {
		bNaN := math.IsNaN(batch[i])
		iNaN := math.IsNaN(incremental[i])
		if bNaN != iNaN {
			t.Fatalf("%s[%s] at %d: NaN mask mismatch batch=%v incremental=%v", name, suffix, i, batch[i], incremental[i])
		}
		if bNaN {
			continue
		}
		if !scalar.EqualWithinAbs(batch[i], incremental[i], parityTolerance) {
			t.Errorf("%s[%s] at %d: batch=%v incremental=%v diff=%v", name, suffix, i, batch[i], incremental[i], math.Abs(batch[i]-incremental[i]))
		}
	}
}

func TestIndicatorParity(t *testing.T) {
	reg := indicators.NewRegistry()
	in := syntheticInputs(300)

	cases := []struct {
		name   string
		params map[string]any
	}{
		{"ema", map[string]any{"length": 20}},
		{"sma", map[string]any{"length": 20}},
		{"wma", map[string]any{"length": 14}},
		{"rsi", map[string]any{"length": 14}},
		{"macd", map[string]any{"fast": 12, "slow": 26, "signal": 9}},
		{"bbands", map[string]any{"length": 20, "num_std_dev": 2.0}},
		{"atr", map[string]any{"length": 14}},
		{"cci", map[string]any{"length": 20}},
		{"willr", map[string]any{"length": 14}},
		{"obv", map[string]any{}},
		{"mfi", map[string]any{"length": 14}},
		{"cmo", map[string]any{"length": 14}},
		{"dema", map[string]any{"length": 14}},
		{"tema", map[string]any{"length": 14}},
		{"trima", map[string]any{"length": 14}},
		{"roc", map[string]any{"length": 10}},
		{"mom", map[string]any{"length": 10}},
		{"ppo", map[string]any{"fast": 12, "slow": 26}},
		{"apo", map[string]any{"fast": 12, "slow": 26}},
		{"trix", map[string]any{"length": 15}},
		{"bop", map[string]any{}},
		{"plus_di", map[string]any{"length": 14}},
		{"minus_di", map[string]any{"length": 14}},
		{"dx", map[string]any{"length": 14}},
		{"adx", map[string]any{"length": 14}},
		{"aroon", map[string]any{"length": 14}},
		{"aroonosc", map[string]any{"length": 14}},
		{"sar", map[string]any{}},
		{"supertrend", map[string]any{"length": 10, "multiplier": 3.0}},
		{"stddev", map[string]any{"length": 20}},
		{"var", map[string]any{"length": 20}},
		{"midpoint", map[string]any{"length": 14}},
		{"linreg", map[string]any{"length": 14}},
		{"linregslope", map[string]any{"length": 14}},
		{"tsf", map[string]any{"length": 14}},
		{"avgprice", map[string]any{}},
		{"medprice", map[string]any{}},
		{"typprice", map[string]any{}},
		{"wclprice", map[string]any{}},
		{"ad", map[string]any{}},
		{"adosc", map[string]any{"fast": 3, "slow": 10}},
		{"stoch", map[string]any{"k_length": 14, "k_smooth": 3, "d_smooth": 3}},
		{"stochf", map[string]any{"k_length": 14, "d_smooth": 3}},
		{"stochrsi", map[string]any{"rsi_length": 14, "stoch_length": 14, "k_smooth": 3, "d_smooth": 3}},
		{"ultosc", map[string]any{"period1": 7, "period2": 14, "period3": 28}},
	}

	for _, c := range cases {
		ind, err := reg.Create(c.name, c.params)
		if err != nil {
			t.Fatalf("Create(%s): %v", c.name, err)
		}
		batch, err := ind.BatchCompute(in)
		if err != nil {
			t.Fatalf("%s.BatchCompute: %v", c.name, err)
		}
		incremental, err := ind.IncrementalCompute(in)
		if err != nil {
			t.Fatalf("%s.IncrementalCompute: %v", c.name, err)
		}
		for _, suffix := range ind.Suffixes() {
			assertParity(t, c.name, suffix, batch[suffix], incremental[suffix])
		}
	}
}

func TestRegistryUnknownIndicator(t *testing.T) {
	reg := indicators.NewRegistry()
	if _, err := reg.Create("not_a_real_indicator", nil); err == nil {
		t.Fatal("expected error for unknown indicator, got nil")
	}
}
