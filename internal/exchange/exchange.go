// Package exchange implements the simulated isolated-margin, USDT-linear
// perpetual futures exchange: account state, order lifecycle, intrabar
// TP/SL and liquidation resolution, and the fixed per-bar step ordering
// spec.md §4.7 requires.
package exchange

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ledgerline/btcore/pkg/types"
)

// maintenanceMarginRate is the fraction of notional held back as
// maintenance margin for liquidation purposes; a single flat rate keeps
// the liquidation check deterministic across symbols.
const maintenanceMarginRate = 0.005

// Exchange is the full simulated-account state machine for one backtest
// run. It is never shared across goroutines; the engine drives it
// single-threaded, one bar at a time.
type Exchange struct {
	logger *zap.Logger

	account  types.AccountConfig
	risk     types.RiskModel
	policy   types.PositionPolicy
	slippage SlippageModel

	cash      decimal.Decimal
	positions map[string]*types.Position
	resting   map[string][]*types.Order

	trades      []types.Trade
	equityCurve []types.EquityPoint

	barsSinceClose        map[string]int
	consecutiveLowMargin  int
	maxConsecutiveLowMargin int
	blown                 bool
}

// New constructs an Exchange seeded with the Play's account configuration.
func New(logger *zap.Logger, account types.AccountConfig, risk types.RiskModel, policy types.PositionPolicy) *Exchange {
	return &Exchange{
		logger:                  logger,
		account:                 account,
		risk:                    risk,
		policy:                  policy,
		slippage:                NewSlippageModel(account.Slippage),
		cash:                    account.InitialCashUSDT,
		positions:               make(map[string]*types.Position),
		resting:                 make(map[string][]*types.Order),
		barsSinceClose:          make(map[string]int),
		maxConsecutiveLowMargin: 10,
	}
}

// Equity returns cash plus the sum of unrealized PnL across open
// positions — the single derived quantity spec.md §4.7 defines equity as.
func (e *Exchange) Equity() decimal.Decimal {
	eq := e.cash
	for _, p := range e.positions {
		eq = eq.Add(p.UnrealizedPnL)
	}
	return eq
}

// UsedMargin sums the margin held against every open position.
func (e *Exchange) UsedMargin() decimal.Decimal {
	used := decimal.Zero
	for _, p := range e.positions {
		used = used.Add(p.UsedMargin)
	}
	return used
}

// FreeMargin is equity minus used margin.
func (e *Exchange) FreeMargin() decimal.Decimal {
	return e.Equity().Sub(e.UsedMargin())
}

// Position returns the open position for symbol, or nil if flat.
func (e *Exchange) Position(symbol string) *types.Position {
	return e.positions[symbol]
}

// Trades returns the realized trade log accumulated so far.
func (e *Exchange) Trades() []types.Trade { return e.trades }

// EquityCurve returns the equity point log accumulated so far.
func (e *Exchange) EquityCurve() []types.EquityPoint { return e.equityCurve }

// Blown reports whether the account-blown run-stop condition has fired.
func (e *Exchange) Blown() bool { return e.blown }

// BarsSinceClose reports how many bars have elapsed since symbol's last
// position close, used by the cooldown gate. A symbol with no recorded
// close returns a large sentinel so cooldown never blocks a first trade.
func (e *Exchange) BarsSinceClose(symbol string) int {
	if n, ok := e.barsSinceClose[symbol]; ok {
		return n
	}
	return 1 << 30
}

// Step runs the per-bar update ordering for one symbol: mark-to-market,
// intrabar TP/SL, liquidation, resting orders, then equity recompute.
// With no open position only the resting orders and the equity recompute
// run. No funding is applied: Step takes no funding input and never
// charges or credits a funding payment.
func (e *Exchange) Step(symbol string, bar types.Bar) {
	for s := range e.barsSinceClose {
		e.barsSinceClose[s]++
	}
	pos := e.positions[symbol]
	if pos == nil || !pos.IsOpen() {
		e.fillRestingOrders(symbol, bar)
		e.markEquity(bar.TsClose)
		return
	}

	pos.MarkPrice = bar.Close
	e.recomputeUnrealized(pos)

	if closed := e.resolveIntrabarExits(pos, bar); closed {
		e.markEquity(bar.TsClose)
		return
	}

	if e.checkLiquidation(pos, bar) {
		e.markEquity(bar.TsClose)
		return
	}

	e.fillRestingOrders(symbol, bar)
	e.markEquity(bar.TsClose)
}

func (e *Exchange) recomputeUnrealized(pos *types.Position) {
	diff := pos.MarkPrice.Sub(pos.EntryPrice)
	if pos.Side == types.SideShort {
		diff = diff.Neg()
	}
	pos.UnrealizedPnL = diff.Mul(pos.Quantity)
}

// resolveIntrabarExits checks the bar's [low, high] range against the
// position's stop loss and take profit. If both would be hit on the same
// bar, the adverse exit wins: the stop-loss resolves first for longs and
// shorts alike (a decision recorded in DESIGN.md).
func (e *Exchange) resolveIntrabarExits(pos *types.Position, bar types.Bar) bool {
	slHit := hitsStop(pos, bar)
	tpHit := hitsTarget(pos, bar)
	if !slHit && !tpHit {
		return false
	}
	if slHit && tpHit {
		e.closePosition(pos, pos.StopLoss, bar.TsClose, "stop_loss", true)
		return true
	}
	if slHit {
		e.closePosition(pos, pos.StopLoss, bar.TsClose, "stop_loss", true)
		return true
	}
	e.closePosition(pos, pos.TakeProfit, bar.TsClose, "take_profit", false)
	return true
}

func hitsStop(pos *types.Position, bar types.Bar) bool {
	if pos.StopLoss.IsZero() {
		return false
	}
	if pos.Side == types.SideLong {
		return bar.Low <= toFloat(pos.StopLoss)
	}
	return bar.High >= toFloat(pos.StopLoss)
}

func hitsTarget(pos *types.Position, bar types.Bar) bool {
	if pos.TakeProfit.IsZero() {
		return false
	}
	if pos.Side == types.SideLong {
		return bar.High >= toFloat(pos.TakeProfit)
	}
	return bar.Low <= toFloat(pos.TakeProfit)
}

func toFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

// closePosition realizes the position's PnL and fees, applying slippage
// in the adverse direction for the triggered exit.
func (e *Exchange) closePosition(pos *types.Position, triggerPrice decimal.Decimal, tsMs int64, reason string, adverse bool) {
	exitPrice := triggerPrice
	if adverse {
		slip := e.slippage.Calculate(pos.Quantity, decimal.Zero)
		if pos.Side == types.SideLong {
			exitPrice = exitPrice.Mul(decimal.NewFromInt(1).Sub(slip))
		} else {
			exitPrice = exitPrice.Mul(decimal.NewFromInt(1).Add(slip))
		}
	}
	diff := exitPrice.Sub(pos.EntryPrice)
	if pos.Side == types.SideShort {
		diff = diff.Neg()
	}
	pnl := diff.Mul(pos.Quantity)
	fee := exitPrice.Mul(pos.Quantity).Mul(e.policy.TakerFeeBps).Div(decimal.NewFromInt(10000))

	e.cash = e.cash.Add(pnl).Sub(fee)
	e.trades = append(e.trades, types.Trade{
		Symbol:     pos.Symbol,
		Side:       pos.Side,
		EntryPrice: pos.EntryPrice,
		ExitPrice:  exitPrice,
		Quantity:   pos.Quantity,
		EntryTsMs:  pos.OpenedAt,
		ExitTsMs:   tsMs,
		PnL:        pnl,
		Fees:       fee,
		ExitReason: reason,
	})
	e.barsSinceClose[pos.Symbol] = 0
	delete(e.positions, pos.Symbol)
}

// checkLiquidation force-closes a position if equity drops below its
// maintenance margin requirement, using the position's own notional for
// the requirement (isolated margin — other positions don't contribute).
func (e *Exchange) checkLiquidation(pos *types.Position, bar types.Bar) bool {
	notional := pos.MarkPrice.Mul(pos.Quantity)
	maintenance := notional.Mul(decimal.NewFromFloat(maintenanceMarginRate))
	if e.Equity().Sub(maintenance).IsNegative() {
		e.logger.Warn("position liquidated", zap.String("symbol", pos.Symbol), zap.Int64("ts_close_ms", bar.TsClose))
		e.closePosition(pos, pos.MarkPrice, bar.TsClose, "liquidation", true)
		return true
	}
	return false
}

func (e *Exchange) fillRestingOrders(symbol string, bar types.Bar) {
	orders := e.resting[symbol]
	if len(orders) == 0 {
		return
	}
	remaining := orders[:0]
	for _, o := range orders {
		if e.tryFillResting(o, bar) {
			continue
		}
		remaining = append(remaining, o)
	}
	e.resting[symbol] = remaining
}

func (e *Exchange) tryFillResting(o *types.Order, bar types.Bar) bool {
	switch o.Type {
	case types.OrderTypeLimit:
		if !limitCrosses(o, bar) {
			return false
		}
		e.executeFill(o, o.LimitPrice, bar.TsClose, true)
		return true
	case types.OrderTypeStopMarket, types.OrderTypeStopLimit:
		if !stopTriggers(o, bar) {
			return false
		}
		price := bar.Close
		if o.Type == types.OrderTypeStopLimit {
			price = toFloat(o.LimitPrice)
		}
		e.executeFill(o, decimal.NewFromFloat(price), bar.TsClose, o.Type == types.OrderTypeStopLimit)
		return true
	default:
		return false
	}
}

func limitCrosses(o *types.Order, bar types.Bar) bool {
	lp := toFloat(o.LimitPrice)
	if o.Side == types.SideLong {
		return bar.Low <= lp
	}
	return bar.High >= lp
}

func stopTriggers(o *types.Order, bar types.Bar) bool {
	sp := toFloat(o.StopPrice)
	if o.Side == types.SideLong {
		return bar.High >= sp
	}
	return bar.Low <= sp
}

func (e *Exchange) markEquity(tsMs int64) {
	equity := e.Equity()
	e.equityCurve = append(e.equityCurve, types.EquityPoint{
		TsCloseMs:     tsMs,
		Equity:        equity,
		Cash:          e.cash,
		UsedMargin:    e.UsedMargin(),
		FreeMargin:    e.FreeMargin(),
		UnrealizedPnL: equity.Sub(e.cash),
	})
	e.checkRunStopConditions()
}

// checkRunStopConditions implements spec.md §4.7's two declarative run-
// stop conditions: account_blown (equity <= 0) and insufficient_free_margin
// held for N consecutive bars.
func (e *Exchange) checkRunStopConditions() {
	if !e.Equity().IsPositive() {
		e.blown = true
		return
	}
	if e.FreeMargin().IsNegative() {
		e.consecutiveLowMargin++
		if e.consecutiveLowMargin >= e.maxConsecutiveLowMargin {
			e.blown = true
		}
	} else {
		e.consecutiveLowMargin = 0
	}
}

// SubmitOrder validates and, for market orders, immediately fills an
// order produced by the strategy's sizing layer. Limit/stop orders are
// queued as resting orders for future bars' Step to resolve.
func (e *Exchange) SubmitOrder(o *types.Order, bar types.Bar) (*types.Fill, error) {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if reason := e.validate(o); reason != types.RejectNone {
		return &types.Fill{OrderID: o.ID, Symbol: o.Symbol, Status: types.OrderStatusRejected, RejectWhy: reason}, nil
	}
	if o.Type == types.OrderTypeMarket {
		return e.executeFill(o, decimal.NewFromFloat(bar.Close), bar.TsClose, false), nil
	}
	e.resting[o.Symbol] = append(e.resting[o.Symbol], o)
	return &types.Fill{OrderID: o.ID, Symbol: o.Symbol, Status: types.OrderStatusPending}, nil
}

func (e *Exchange) validate(o *types.Order) types.RejectReason {
	pos := e.positions[o.Symbol]
	if o.ReduceOnly && (pos == nil || !pos.IsOpen()) {
		return types.RejectNoOppositePositionClose
	}
	if e.risk.MaxLeverage.LessThan(e.account.Leverage) {
		return types.RejectLeverageExceeded
	}
	return types.RejectNone
}

// executeFill opens, extends, or closes a position against a market/limit/
// stop fill at price, applying adverse slippage for non-limit (market and
// stop-market) fills per spec.md §4.7.
func (e *Exchange) executeFill(o *types.Order, price decimal.Decimal, tsMs int64, isMaker bool) *types.Fill {
	fillPrice := price
	if !isMaker {
		slip := e.slippage.Calculate(o.Quantity, decimal.Zero)
		if o.Side == types.SideLong {
			fillPrice = fillPrice.Mul(decimal.NewFromInt(1).Add(slip))
		} else {
			fillPrice = fillPrice.Mul(decimal.NewFromInt(1).Sub(slip))
		}
	}

	feeBps := e.policy.TakerFeeBps
	if isMaker {
		feeBps = e.policy.MakerFeeBps
	}
	fee := fillPrice.Mul(o.Quantity).Mul(feeBps).Div(decimal.NewFromInt(10000))
	e.cash = e.cash.Sub(fee)

	existing := e.positions[o.Symbol]
	if existing == nil || !existing.IsOpen() {
		margin := fillPrice.Mul(o.Quantity).Div(e.account.Leverage)
		e.positions[o.Symbol] = &types.Position{
			Symbol:     o.Symbol,
			Side:       o.Side,
			Quantity:   o.Quantity,
			EntryPrice: fillPrice,
			MarkPrice:  fillPrice,
			Leverage:   e.account.Leverage,
			UsedMargin: margin,
			StopLoss:   o.StopLoss,
			TakeProfit: o.TakeProfit,
			OpenedAt:   tsMs,
		}
	} else if existing.Side == o.Side {
		totalQty := existing.Quantity.Add(o.Quantity)
		existing.EntryPrice = existing.EntryPrice.Mul(existing.Quantity).Add(fillPrice.Mul(o.Quantity)).Div(totalQty)
		existing.Quantity = totalQty
		existing.UsedMargin = existing.EntryPrice.Mul(totalQty).Div(e.account.Leverage)
	} else {
		e.closePosition(existing, fillPrice, tsMs, "signal_flip", false)
		if o.Quantity.GreaterThan(decimal.Zero) && !o.ReduceOnly {
			return e.executeFill(&types.Order{
				ID: o.ID, Symbol: o.Symbol, Side: o.Side, Type: o.Type,
				Quantity: o.Quantity, StopLoss: o.StopLoss, TakeProfit: o.TakeProfit,
			}, price, tsMs, isMaker)
		}
	}

	return &types.Fill{
		OrderID: o.ID, Symbol: o.Symbol, Side: o.Side, Quantity: o.Quantity,
		Price: fillPrice, Fee: fee, IsMaker: isMaker, FilledAt: tsMs, Status: types.OrderStatusFilled,
	}
}

// CloseAll force-closes every open position at the last mark, used when a
// run-stop condition fires so the run still emits complete artifacts. It
// does not itself append an equity point; callers record one via
// RecordEquity once all positions are settled.
func (e *Exchange) CloseAll(tsMs int64) {
	for _, pos := range e.positions {
		e.closePosition(pos, pos.MarkPrice, tsMs, "run_stop", false)
	}
}

// RecordEquity appends one equity-curve row for tsMs without advancing any
// position. The engine calls this once after CloseAll so the curve's final
// row reflects the run-stop liquidation, not the bar before it.
func (e *Exchange) RecordEquity(tsMs int64) {
	e.markEquity(tsMs)
}
