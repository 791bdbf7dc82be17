package engine

import (
	"github.com/shopspring/decimal"

	"github.com/ledgerline/btcore/internal/bterrors"
	"github.com/ledgerline/btcore/pkg/types"
)

// sizeOrder converts a Signal into a market Order per the Play's
// PositionPolicy, per spec.md §4.7's three sizing modes: percent_equity
// (use a fraction of equity as margin, at account leverage), fixed_usdt
// (a constant notional), and risk_per_trade_pct (size so a stop-loss hit
// loses exactly Value fraction of equity). A nonzero SizeOverride,
// StopLoss, or TakeProfit on the Signal wins over the policy default —
// the signal is the one place per-bar context (e.g. a fib-level stop)
// can reach the order.
func (e *Engine) sizeOrder(signal types.Signal, closePrice float64) (*types.Order, error) {
	pp := e.cfg.Normalized.Play.PositionPolicy
	account := e.cfg.Normalized.Play.Account
	side := signal.Side
	price := decimal.NewFromFloat(closePrice)
	if price.IsZero() {
		return nil, bterrors.New(bterrors.KindExchange, "engine", "sizing: close price is zero")
	}

	stopLoss := signal.StopLoss
	if stopLoss.IsZero() {
		stopLoss = stopPriceFor(side, price, pp.DefaultStopLossPct)
	}
	takeProfit := signal.TakeProfit
	if takeProfit.IsZero() {
		takeProfit = takeProfitFor(side, price, pp.DefaultTakeProfitPct)
	}

	equity := e.exchange.Equity()
	var quantity decimal.Decimal
	switch {
	case !signal.SizeOverride.IsZero():
		quantity = signal.SizeOverride.Mul(account.Leverage).Div(price)
	case pp.Mode == types.SizingFixedUSDT:
		quantity = pp.Value.Div(price)
	case pp.Mode == types.SizingRiskPerTrade:
		if stopLoss.IsZero() {
			quantity = equity.Mul(pp.Value).Mul(account.Leverage).Div(price)
		} else {
			stopDistance := price.Sub(stopLoss).Abs()
			quantity = equity.Mul(pp.Value).Div(stopDistance)
		}
	default: // percent_equity
		margin := equity.Mul(pp.Value)
		quantity = margin.Mul(account.Leverage).Div(price)
	}

	if quantity.IsZero() || quantity.IsNegative() {
		return nil, bterrors.New(bterrors.KindExchange, "engine", "sizing: computed a non-positive quantity")
	}

	return &types.Order{
		Symbol:     e.cfg.Symbol,
		Side:       side,
		Type:       types.OrderTypeMarket,
		Quantity:   quantity,
		StopLoss:   stopLoss,
		TakeProfit: takeProfit,
	}, nil
}

func stopPriceFor(side types.Side, price, pct decimal.Decimal) decimal.Decimal {
	if pct.IsZero() {
		return decimal.Zero
	}
	if side == types.SideLong {
		return price.Mul(decimal.NewFromInt(1).Sub(pct))
	}
	return price.Mul(decimal.NewFromInt(1).Add(pct))
}

func takeProfitFor(side types.Side, price, pct decimal.Decimal) decimal.Decimal {
	if pct.IsZero() {
		return decimal.Zero
	}
	if side == types.SideLong {
		return price.Mul(decimal.NewFromInt(1).Add(pct))
	}
	return price.Mul(decimal.NewFromInt(1).Sub(pct))
}
