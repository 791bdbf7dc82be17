package artifact

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat"

	"github.com/ledgerline/btcore/internal/bterrors"
	"github.com/ledgerline/btcore/pkg/types"
)

const millisPerYear = 365.25 * 24 * 60 * 60 * 1000

// barsPerYear derives a TF-strict annualization factor: an unrecognized
// timeframe is a hard error rather than a silent fallback to e.g. daily
// bars, per spec.md §4.11's "unknown TF is an error".
func barsPerYear(tf types.Timeframe) (float64, error) {
	ms := tf.Millis()
	if ms <= 0 {
		return 0, bterrors.New(bterrors.KindSchema, "artifact", "cannot annualize: unknown exec timeframe")
	}
	return millisPerYear / float64(ms), nil
}

// ComputeMetrics derives PerformanceMetrics and RiskMetrics from a run's
// trade log and equity curve. The Sharpe/Sortino/annualization pieces are
// grounded on the teacher's internal/backtester/metrics.go; the max
// drawdown's independent absolute-vs-percent peak/trough tracking and the
// TF-strict annualization factor are this package's own spec.md §4.11
// extensions the teacher's single-pass version did not implement.
func ComputeMetrics(trades []types.Trade, equity []types.EquityPoint, initialCash decimal.Decimal, execTF types.Timeframe) (*types.PerformanceMetrics, *types.RiskMetrics, error) {
	perYear, err := barsPerYear(execTF)
	if err != nil {
		return nil, nil, err
	}

	m := &types.PerformanceMetrics{}
	tradeStats(m, trades)

	if len(equity) > 0 && initialCash.IsPositive() {
		final := equity[len(equity)-1].Equity
		m.TotalReturn = final.Sub(initialCash).Div(initialCash)
		if n := len(equity); n > 1 && !initialCash.IsNegative() {
			ratio, _ := final.Div(initialCash).Float64()
			if ratio > 0 {
				m.AnnualizedReturn = decimal.NewFromFloat(math.Pow(ratio, perYear/float64(n)) - 1)
			}
		}
	}

	returns := periodReturns(equity)
	if len(returns) > 1 {
		mean, sd := stat.MeanStdDev(returns, nil)
		if sd > 0 {
			m.SharpeRatio = decimal.NewFromFloat(mean / sd * math.Sqrt(perYear))
		}
		if down := downsideDeviation(returns, mean); down > 0 {
			m.SortinoRatio = decimal.NewFromFloat(mean / down * math.Sqrt(perYear))
		}
	}

	maxDDAbs, maxDDPct, ddAbsPeakTs, ddAbsTroughTs, ddPctPeakTs, ddPctTroughTs := maxDrawdowns(equity)
	m.MaxDrawdownAbs = maxDDAbs
	m.MaxDrawdownPct = maxDDPct
	m.MaxDDAbsPeakTs = ddAbsPeakTs
	m.MaxDDAbsTroughTs = ddAbsTroughTs
	m.MaxDDPctPeakTs = ddPctPeakTs
	m.MaxDDPctTroughTs = ddPctTroughTs
	if m.MaxDrawdownPct.IsPositive() {
		m.CalmarRatio = m.AnnualizedReturn.Div(m.MaxDrawdownPct)
	}

	risk := computeRiskMetrics(returns, perYear)
	return m, risk, nil
}

func tradeStats(m *types.PerformanceMetrics, trades []types.Trade) {
	var totalWins, totalLosses decimal.Decimal
	for _, t := range trades {
		switch {
		case t.PnL.IsPositive():
			m.WinningTrades++
			totalWins = totalWins.Add(t.PnL)
			if t.PnL.GreaterThan(m.LargestWin) {
				m.LargestWin = t.PnL
			}
		case t.PnL.IsNegative():
			m.LosingTrades++
			totalLosses = totalLosses.Add(t.PnL.Abs())
			if t.PnL.Abs().GreaterThan(m.LargestLoss) {
				m.LargestLoss = t.PnL.Abs()
			}
		}
	}
	m.TotalTrades = len(trades)
	if m.TotalTrades > 0 {
		m.WinRate = decimal.NewFromInt(int64(m.WinningTrades)).Div(decimal.NewFromInt(int64(m.TotalTrades)))
	}
	if m.WinningTrades > 0 {
		m.AvgWin = totalWins.Div(decimal.NewFromInt(int64(m.WinningTrades)))
	}
	if m.LosingTrades > 0 {
		m.AvgLoss = totalLosses.Div(decimal.NewFromInt(int64(m.LosingTrades)))
	}
	if totalLosses.IsPositive() {
		m.ProfitFactor = totalWins.Div(totalLosses)
	}
	if m.TotalTrades > 0 {
		lossRate := decimal.NewFromInt(1).Sub(m.WinRate)
		m.Expectancy = m.WinRate.Mul(m.AvgWin).Sub(lossRate.Mul(m.AvgLoss))
	}
}

// periodReturns computes one float64 simple return per consecutive
// equity-curve pair, skipping pairs whose starting equity is zero.
func periodReturns(equity []types.EquityPoint) []float64 {
	if len(equity) < 2 {
		return nil
	}
	out := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		prev := equity[i-1].Equity
		if prev.IsZero() {
			continue
		}
		ret, _ := equity[i].Equity.Sub(prev).Div(prev).Float64()
		out = append(out, ret)
	}
	return out
}

func downsideDeviation(returns []float64, mean float64) float64 {
	var sumSq float64
	var n int
	for _, r := range returns {
		if r < 0 {
			sumSq += r * r
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return math.Sqrt(sumSq / float64(n))
}

// maxDrawdowns tracks the running equity peak once and, from it,
// independently maximizes absolute and percent drawdown: the bar at
// which each maximum occurs can differ even though both read the same
// peak sequence, per spec.md §8's P-clause on max drawdown.
func maxDrawdowns(equity []types.EquityPoint) (maxAbs, maxPct decimal.Decimal, absPeakTs, absTroughTs, pctPeakTs, pctTroughTs int64) {
	if len(equity) == 0 {
		return
	}
	peak := equity[0].Equity
	peakTs := equity[0].TsCloseMs
	for _, pt := range equity {
		if pt.Equity.GreaterThan(peak) {
			peak = pt.Equity
			peakTs = pt.TsCloseMs
		}
		ddAbs := peak.Sub(pt.Equity)
		if ddAbs.GreaterThan(maxAbs) {
			maxAbs = ddAbs
			absPeakTs = peakTs
			absTroughTs = pt.TsCloseMs
		}
		if peak.IsPositive() {
			ddPct := ddAbs.Div(peak)
			if ddPct.GreaterThan(maxPct) {
				maxPct = ddPct
				pctPeakTs = peakTs
				pctTroughTs = pt.TsCloseMs
			}
		}
	}
	return
}

func computeRiskMetrics(returns []float64, perYear float64) *types.RiskMetrics {
	r := &types.RiskMetrics{}
	if len(returns) == 0 {
		return r
	}
	_, sd := stat.MeanStdDev(returns, nil)
	r.DailyVolatility = decimal.NewFromFloat(sd)
	r.AnnualVolatility = decimal.NewFromFloat(sd * math.Sqrt(perYear))

	sorted := append([]float64(nil), returns...)
	sort.Float64s(sorted)

	var q95, q99 float64
	if len(sorted) > 0 {
		q95 = stat.Quantile(0.05, stat.Empirical, sorted, nil)
		q99 = stat.Quantile(0.01, stat.Empirical, sorted, nil)
	}
	r.VaR95 = decimal.NewFromFloat(-q95)
	r.VaR99 = decimal.NewFromFloat(-q99)

	var sum float64
	var n int
	for _, v := range sorted {
		if v <= q95 {
			sum += v
			n++
		}
	}
	if n > 0 {
		r.CVaR95 = decimal.NewFromFloat(-sum / float64(n))
	}
	return r
}
