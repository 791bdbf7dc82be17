// Package gates implements the ordered pre-trade gate evaluator: the set
// of checks run before strategy evaluation on every bar past warmup,
// returning the first failing code or G_PASS.
package gates

import "github.com/shopspring/decimal"

// Code identifies a gate result.
type Code string

const (
	CodeWarmupRemaining   Code = "G_WARMUP_REMAINING"
	CodeHistoryNotReady   Code = "G_HISTORY_NOT_READY"
	CodeInsufficientMargin Code = "G_INSUFFICIENT_MARGIN"
	CodePositionLimit     Code = "G_POSITION_LIMIT"
	CodeExposureLimit     Code = "G_EXPOSURE_LIMIT"
	CodeCooldownActive    Code = "G_COOLDOWN_ACTIVE"
	CodeRiskBlock         Code = "G_RISK_BLOCK"
	CodePass              Code = "G_PASS"
)

// Context bundles every fact a gate check needs. The engine fills it in
// fresh for every bar; nothing here is retained across bars by the gate
// evaluator itself.
type Context struct {
	// WarmupSatisfied is false only for bars the engine still considers
	// inside warmup+delay; by construction the hot loop never calls
	// Evaluate for such bars, but the gate is kept as a defensive check.
	WarmupSatisfied bool
	// HistoryBars is the number of closed bars available before the
	// current one (for crossover prev/curr semantics).
	HistoryBars int

	FreeMarginUSDT    decimal.Decimal
	MinFreeMarginUSDT decimal.Decimal

	OpenPositionsForSymbol int
	MaxPositionsPerSymbol  int

	TotalExposureUSDT decimal.Decimal
	MaxExposureUSDT   decimal.Decimal

	BarsSinceLastClose int
	CooldownBars       int

	// RiskBlocked is set by the risk model (e.g. a drawdown or daily-loss
	// breach) independent of any single bar's market data.
	RiskBlocked bool
}

// Evaluate runs the ordered gate checks and returns the first failure, or
// CodePass if every check clears.
func Evaluate(ctx Context) Code {
	if !ctx.WarmupSatisfied {
		return CodeWarmupRemaining
	}
	if ctx.HistoryBars < 1 {
		return CodeHistoryNotReady
	}
	if !ctx.MinFreeMarginUSDT.IsZero() && ctx.FreeMarginUSDT.LessThan(ctx.MinFreeMarginUSDT) {
		return CodeInsufficientMargin
	}
	if ctx.MaxPositionsPerSymbol > 0 && ctx.OpenPositionsForSymbol >= ctx.MaxPositionsPerSymbol {
		return CodePositionLimit
	}
	if !ctx.MaxExposureUSDT.IsZero() && ctx.TotalExposureUSDT.GreaterThanOrEqual(ctx.MaxExposureUSDT) {
		return CodeExposureLimit
	}
	if ctx.CooldownBars > 0 && ctx.BarsSinceLastClose < ctx.CooldownBars {
		return CodeCooldownActive
	}
	if ctx.RiskBlocked {
		return CodeRiskBlock
	}
	return CodePass
}

// Pass reports whether code permits order submission.
func Pass(code Code) bool { return code == CodePass }
