package gates_test

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/ledgerline/btcore/internal/gates"
)

func baseCtx() gates.Context {
	return gates.Context{
		WarmupSatisfied:        true,
		HistoryBars:            5,
		FreeMarginUSDT:         decimal.NewFromInt(1000),
		MinFreeMarginUSDT:      decimal.NewFromInt(100),
		OpenPositionsForSymbol: 0,
		MaxPositionsPerSymbol:  3,
		TotalExposureUSDT:      decimal.NewFromInt(500),
		MaxExposureUSDT:        decimal.NewFromInt(5000),
		BarsSinceLastClose:     10,
		CooldownBars:           2,
	}
}

func TestEvaluatePassesCleanContext(t *testing.T) {
	if got := gates.Evaluate(baseCtx()); got != gates.CodePass {
		t.Errorf("Evaluate = %v, want CodePass", got)
	}
}

func TestEvaluateOrderingFirstFailureWins(t *testing.T) {
	ctx := baseCtx()
	ctx.WarmupSatisfied = false
	ctx.HistoryBars = 0 // would also fail, but warmup must win
	if got := gates.Evaluate(ctx); got != gates.CodeWarmupRemaining {
		t.Errorf("Evaluate = %v, want CodeWarmupRemaining first", got)
	}
}

func TestEvaluateEachGate(t *testing.T) {
	cases := []struct {
		name string
		mod  func(*gates.Context)
		want gates.Code
	}{
		{"history", func(c *gates.Context) { c.HistoryBars = 0 }, gates.CodeHistoryNotReady},
		{"margin", func(c *gates.Context) { c.FreeMarginUSDT = decimal.NewFromInt(10) }, gates.CodeInsufficientMargin},
		{"position_limit", func(c *gates.Context) { c.OpenPositionsForSymbol = 3 }, gates.CodePositionLimit},
		{"exposure", func(c *gates.Context) { c.TotalExposureUSDT = decimal.NewFromInt(5000) }, gates.CodeExposureLimit},
		{"cooldown", func(c *gates.Context) { c.BarsSinceLastClose = 1 }, gates.CodeCooldownActive},
		{"risk_block", func(c *gates.Context) { c.RiskBlocked = true }, gates.CodeRiskBlock},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			ctx := baseCtx()
			c.mod(&ctx)
			if got := gates.Evaluate(ctx); got != c.want {
				t.Errorf("Evaluate = %v, want %v", got, c.want)
			}
		})
	}
}
