// Package engine runs the deterministic per-exec-bar hot loop: step the
// exchange, advance the multi-timeframe view, build a lookahead-checked
// snapshot, evaluate the pre-trade gates and the Play's compiled rule
// trees, size and submit any resulting order, then record the bar's
// outcome. The loop order here is fixed and never event-driven — there is
// exactly one goroutine per run (see internal/exchange and
// internal/statetracker for the pieces it wires together).
package engine

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ledgerline/btcore/internal/bterrors"
	"github.com/ledgerline/btcore/internal/exchange"
	"github.com/ledgerline/btcore/internal/feed"
	"github.com/ledgerline/btcore/internal/gates"
	"github.com/ledgerline/btcore/internal/play"
	"github.com/ledgerline/btcore/internal/snapshot"
	"github.com/ledgerline/btcore/internal/statetracker"
	"github.com/ledgerline/btcore/internal/warmup"
	"github.com/ledgerline/btcore/pkg/types"
)

// Config wires a validated, normalized Play to the concrete feed stores
// and warmup plan a single run executes it against.
type Config struct {
	Symbol     string
	Normalized *play.Normalized
	Plan       *warmup.Plan
	ExecFeed   *feed.Store
	MidFeed    *feed.Store // nil iff Normalized.Play.Timeframes.Mid == ""
	HighFeed   *feed.Store // nil iff Normalized.Play.Timeframes.High == ""
	Logger     *zap.Logger
}

// Result is everything a run produces for the artifact layer to hash and
// persist.
type Result struct {
	Trades        []types.Trade
	EquityCurve   []types.EquityPoint
	BlockStates   []statetracker.BlockState
	BarsProcessed int
	SimStartIndex int
	Blown         bool
}

// Engine executes one Config's Play over its feeds exactly once; it holds
// no state reusable across runs.
type Engine struct {
	cfg      Config
	exchange *exchange.Exchange
	tracker  *statetracker.Tracker
	logger   *zap.Logger

	peakEquity decimal.Decimal
}

// New validates cfg's shape against its Play's declared timeframe roles
// and returns a ready-to-run Engine.
func New(cfg Config) (*Engine, error) {
	if cfg.ExecFeed == nil {
		return nil, bterrors.New(bterrors.KindSchema, "engine", "exec feed is required")
	}
	tf := cfg.Normalized.Play.Timeframes
	if tf.Mid != "" && cfg.MidFeed == nil {
		return nil, bterrors.New(bterrors.KindSchema, "engine", "play declares a mid timeframe but no mid feed was supplied")
	}
	if tf.High != "" && cfg.HighFeed == nil {
		return nil, bterrors.New(bterrors.KindSchema, "engine", "play declares a high timeframe but no high feed was supplied")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ex := exchange.New(logger, cfg.Normalized.Play.Account, cfg.Normalized.Play.RiskModel, cfg.Normalized.Play.PositionPolicy)
	return &Engine{
		cfg:        cfg,
		exchange:   ex,
		tracker:    statetracker.New(),
		logger:     logger,
		peakEquity: cfg.Normalized.Play.Account.InitialCashUSDT,
	}, nil
}

// Run executes the hot loop to completion, to ctx cancellation, or to a
// run-stop condition tripping, whichever comes first.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	plan := e.cfg.Plan
	if err := e.verifyCoverage(plan); err != nil {
		return nil, err
	}
	simStart := warmup.SimStartIndex(plan)

	execCtx := snapshot.TFContext{Feed: e.cfg.ExecFeed, CurrentIdx: 0}
	var midCtx, highCtx *snapshot.TFContext
	if e.cfg.MidFeed != nil {
		midCtx = &snapshot.TFContext{Feed: e.cfg.MidFeed, CurrentIdx: 0}
	}
	if e.cfg.HighFeed != nil {
		highCtx = &snapshot.TFContext{Feed: e.cfg.HighFeed, CurrentIdx: 0}
	}

	n := e.cfg.ExecFeed.Len()
	barsProcessed := 0
	tradesBefore := 0
	for i := 0; i < n; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		blown, stepErr := func() (bool, error) {
			barStart := time.Now()
			defer func() { observeBar(time.Since(barStart)) }()

			bar := e.cfg.ExecFeed.BarAt(i)
			e.exchange.Step(e.cfg.Symbol, bar)
			barsProcessed++
			execCtx.CurrentIdx = i

			if e.exchange.Blown() {
				e.exchange.CloseAll(bar.TsClose)
				e.exchange.RecordEquity(bar.TsClose)
				return true, nil
			}

			if i < simStart {
				e.forwardFill(midCtx, highCtx, bar.TsClose)
				return false, nil
			}
			e.forwardFill(midCtx, highCtx, bar.TsClose)

			snap, err := snapshot.NewFromExec(execCtx, midCtx, highCtx)
			if err != nil {
				return false, bterrors.Wrap(bterrors.KindInvariant, "engine", "lookahead guard tripped", err)
			}

			gctx := e.buildGateContext(i, bar)
			code := gates.Evaluate(gctx)
			if !gates.Pass(code) {
				e.tracker.RecordGateBlocked(bar.TsClose, code)
				return false, nil
			}

			action, fired := e.evaluateAndAct(snap, bar)
			if fired {
				e.tracker.RecordSignal(bar.TsClose, code, action)
			} else {
				e.tracker.RecordNoSignal(bar.TsClose, code)
			}
			return false, nil
		}()
		if stepErr != nil {
			return nil, stepErr
		}
		if trades := len(e.exchange.Trades()); trades > tradesBefore {
			tradesExecutedTotal.Add(float64(trades - tradesBefore))
			tradesBefore = trades
		}
		if blown {
			break
		}
	}

	return &Result{
		Trades:        e.exchange.Trades(),
		EquityCurve:   e.exchange.EquityCurve(),
		BlockStates:   e.tracker.States(),
		BarsProcessed: barsProcessed,
		SimStartIndex: simStart,
		Blown:         e.exchange.Blown(),
	}, nil
}

func (e *Engine) forwardFill(midCtx, highCtx *snapshot.TFContext, execTsClose int64) {
	if midCtx != nil {
		midCtx.CurrentIdx = midCtx.Feed.IndexAtOrBefore(execTsClose)
	}
	if highCtx != nil {
		highCtx.CurrentIdx = highCtx.Feed.IndexAtOrBefore(execTsClose)
	}
}

func (e *Engine) verifyCoverage(plan *warmup.Plan) error {
	if err := warmup.VerifyCoverage(e.cfg.ExecFeed.Len(), plan.LookbackBarsByRole[types.RoleExec], plan.DelayBarsByRole[types.RoleExec]); err != nil {
		return err
	}
	if e.cfg.MidFeed != nil {
		if err := warmup.VerifyCoverage(e.cfg.MidFeed.Len(), plan.LookbackBarsByRole[types.RoleMid], plan.DelayBarsByRole[types.RoleMid]); err != nil {
			return err
		}
	}
	if e.cfg.HighFeed != nil {
		if err := warmup.VerifyCoverage(e.cfg.HighFeed.Len(), plan.LookbackBarsByRole[types.RoleHigh], plan.DelayBarsByRole[types.RoleHigh]); err != nil {
			return err
		}
	}
	return nil
}

// buildGateContext assembles the pre-trade gate inputs for bar i from
// live exchange and risk-model state. WarmupSatisfied is trivially true
// here since the engine only calls this once i >= sim_start_idx;
// HistoryBars is i, the number of exec bars before the current one.
func (e *Engine) buildGateContext(i int, bar types.Bar) gates.Context {
	risk := e.cfg.Normalized.Play.RiskModel
	pos := e.exchange.Position(e.cfg.Symbol)
	openForSymbol := 0
	exposure := decimal.Zero
	if pos.IsOpen() {
		openForSymbol = 1
		exposure = pos.MarkPrice.Mul(pos.Quantity)
	}
	equity := e.exchange.Equity()
	if equity.GreaterThan(e.peakEquity) {
		e.peakEquity = equity
	}
	return gates.Context{
		WarmupSatisfied:        true,
		HistoryBars:            i,
		FreeMarginUSDT:         e.exchange.FreeMargin(),
		MinFreeMarginUSDT:      decimal.Zero,
		OpenPositionsForSymbol: openForSymbol,
		MaxPositionsPerSymbol:  risk.MaxOpenPositions,
		TotalExposureUSDT:      exposure,
		MaxExposureUSDT:        risk.MaxPositionNotional,
		BarsSinceLastClose:     e.exchange.BarsSinceClose(e.cfg.Symbol),
		CooldownBars:           risk.CooldownBars,
		RiskBlocked:            e.drawdownBlocked(equity, risk),
	}
}

func (e *Engine) drawdownBlocked(equity decimal.Decimal, risk types.RiskModel) bool {
	if risk.MaxDrawdownPct.IsZero() || e.peakEquity.IsZero() {
		return false
	}
	drawdown := e.peakEquity.Sub(equity).Div(e.peakEquity)
	return drawdown.GreaterThanOrEqual(risk.MaxDrawdownPct)
}

// evaluateAndAct evaluates the Play's action blocks against snap and
// drains whatever actions the matched cases emitted, in emission order,
// against the live position — a dynamic per-bar Signal drives every
// order, never a static policy default. It reports the last action's
// outcome and whether anything fired this bar.
func (e *Engine) evaluateAndAct(snap *snapshot.Snapshot, bar types.Bar) (statetracker.ActionState, bool) {
	emitted := e.cfg.Normalized.Evaluate(snap)
	if len(emitted) == 0 {
		return statetracker.ActionIdle, false
	}

	fired := false
	last := statetracker.ActionIdle
	for _, act := range emitted {
		state, ok := e.applyAction(act, bar)
		if ok {
			fired = true
			last = state
		}
	}
	if !fired {
		return statetracker.ActionIdle, false
	}
	return last, true
}

// applyAction converts one emitted ActionSpec into at most one exchange
// order against the position open at the moment it runs, reporting
// whether an order was actually submitted.
func (e *Engine) applyAction(act types.ActionSpec, bar types.Bar) (statetracker.ActionState, bool) {
	pos := e.exchange.Position(e.cfg.Symbol)
	switch act.Type {
	case types.ActionExit, types.ActionClose:
		if !pos.IsOpen() {
			return statetracker.ActionIdle, false
		}
		return e.submitClose(pos, bar), true
	case types.ActionFlip:
		if pos.IsOpen() {
			e.submitClose(pos, bar)
		}
		side := pos.Side.Opposite()
		if side == types.SideFlat {
			side = types.SideLong
		}
		return e.submitEntry(side, act, bar), true
	case types.ActionEnterLong:
		if pos.IsOpen() {
			return statetracker.ActionIdle, false
		}
		return e.submitEntry(types.SideLong, act, bar), true
	case types.ActionEnterShort:
		if pos.IsOpen() {
			return statetracker.ActionIdle, false
		}
		return e.submitEntry(types.SideShort, act, bar), true
	default:
		return statetracker.ActionIdle, false
	}
}

func (e *Engine) submitClose(pos *types.Position, bar types.Bar) statetracker.ActionState {
	order := &types.Order{
		Symbol:     e.cfg.Symbol,
		Side:       pos.Side.Opposite(),
		Type:       types.OrderTypeMarket,
		Quantity:   pos.Quantity,
		ReduceOnly: true,
	}
	fill, err := e.exchange.SubmitOrder(order, bar)
	return actionFromFill(fill, err)
}

func (e *Engine) submitEntry(side types.Side, act types.ActionSpec, bar types.Bar) statetracker.ActionState {
	signal := types.Signal{
		Symbol:       e.cfg.Symbol,
		Side:         side,
		TsCloseMs:    bar.TsClose,
		SizeOverride: act.SizeOverride,
		StopLoss:     act.StopLoss,
		TakeProfit:   act.TakeProfit,
		Reason:       act.Reason,
	}
	order, err := e.sizeOrder(signal, bar.Close)
	if err != nil {
		e.logger.Debug("signal fired but sizing failed", zap.Error(err))
		return statetracker.ActionRejected
	}
	fill, err := e.exchange.SubmitOrder(order, bar)
	return actionFromFill(fill, err)
}

func actionFromFill(fill *types.Fill, err error) statetracker.ActionState {
	if err != nil || fill == nil {
		return statetracker.ActionRejected
	}
	switch fill.Status {
	case types.OrderStatusFilled:
		return statetracker.ActionFilled
	case types.OrderStatusPending:
		return statetracker.ActionSubmitted
	case types.OrderStatusRejected:
		return statetracker.ActionRejected
	default:
		return statetracker.ActionCanceled
	}
}
