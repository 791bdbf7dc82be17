// Package artifact builds the end-of-run deliverables spec.md §4.11
// describes: the trades and equity tables, the metrics object, the run
// manifest, and the canonical play/input/trades/equity/run hashes. It is
// the only package allowed to turn an internal/engine.Result into the
// on-disk artifact shapes; nothing upstream of it knows about hashing.
package artifact

import (
	"github.com/shopspring/decimal"

	"github.com/ledgerline/btcore/internal/bterrors"
	"github.com/ledgerline/btcore/internal/engine"
	"github.com/ledgerline/btcore/internal/feed"
	"github.com/ledgerline/btcore/internal/play"
	"github.com/ledgerline/btcore/internal/warmup"
	"github.com/ledgerline/btcore/pkg/types"
)

// RunInput names the provenance of the bar data a run was executed
// against, the raw material of input_hash.
type RunInput struct {
	Symbols    []string
	Timeframes []types.Timeframe
	StartTsMs  int64
	EndTsMs    int64
	Provenance string // e.g. the columnar store's dataset identifier/version
}

// Artifacts is everything a run produces for a caller to persist.
type Artifacts struct {
	Trades  []TradeRow
	Equity  []EquityRow
	Metrics *types.PerformanceMetrics
	Risk    *types.RiskMetrics

	Manifest Manifest

	PlayHash   string
	InputHash  string
	TradesHash string
	EquityHash string
	RunHash    string

	OverallStatus string // "ok" or "failed"
	StopReason    string // "" unless a run-stop condition fired
}

// Build assembles a complete Artifacts value from one engine run. symbol
// is the single symbol the run traded (spec.md's Play may declare a
// universe, but one Engine run is always over one symbol); execFeed is
// that run's exec-timeframe FeedStore, used only for its bar-count range,
// never for any indicator data.
func Build(norm *play.Normalized, symbol string, execFeed *feed.Store, plan *warmup.Plan, result *engine.Result, input RunInput) (*Artifacts, error) {
	if result == nil {
		return nil, bterrors.New(bterrors.KindInvariant, "artifact", "build: nil engine result")
	}

	playHash, err := PlayHash(norm.Play)
	if err != nil {
		return nil, bterrors.Wrap(bterrors.KindInvariant, "artifact", "hashing play", err)
	}
	inputHash, err := InputHash(input)
	if err != nil {
		return nil, bterrors.Wrap(bterrors.KindInvariant, "artifact", "hashing input", err)
	}

	tradeRows := buildTradeRows(result.Trades)
	equityRows := buildEquityRows(result.EquityCurve)

	tradesHash, err := TradesHash(tradeRows)
	if err != nil {
		return nil, bterrors.Wrap(bterrors.KindInvariant, "artifact", "hashing trades", err)
	}
	equityHash, err := EquityHash(equityRows)
	if err != nil {
		return nil, bterrors.Wrap(bterrors.KindInvariant, "artifact", "hashing equity", err)
	}
	runHash, err := RunHash(playHash, inputHash, tradesHash, equityHash)
	if err != nil {
		return nil, bterrors.Wrap(bterrors.KindInvariant, "artifact", "hashing run", err)
	}

	metrics, risk, err := ComputeMetrics(result.Trades, result.EquityCurve, norm.Play.Account.InitialCashUSDT, norm.Play.Timeframes.Exec)
	if err != nil {
		return nil, err
	}

	stopReason := ""
	if result.Blown {
		stopReason = "account_blown"
	}

	evalStartTsMs := int64(0)
	if result.SimStartIndex < execFeed.Len() {
		evalStartTsMs = execFeed.BarAt(result.SimStartIndex).TsClose
	} else if execFeed.Len() > 0 {
		evalStartTsMs = execFeed.BarAt(execFeed.Len() - 1).TsClose
	}

	manifest := Manifest{
		EvalStartTsMs:         evalStartTsMs,
		Timeframes:            norm.Play.Timeframes,
		LookbackBarsByRole:    plan.LookbackBarsByRole,
		DelayBarsByRole:       plan.DelayBarsByRole,
		PlayHash:              playHash,
		InputHash:             inputHash,
		EquityTimestampColumn: "ts_ms",
		StopReason:            stopReason,
	}

	return &Artifacts{
		Trades:        tradeRows,
		Equity:        equityRows,
		Metrics:       metrics,
		Risk:          risk,
		Manifest:      manifest,
		PlayHash:      playHash,
		InputHash:     inputHash,
		TradesHash:    tradesHash,
		EquityHash:    equityHash,
		RunHash:       runHash,
		OverallStatus: "ok",
		StopReason:    stopReason,
	}, nil
}

// Manifest is the run_manifest.json artifact.
type Manifest struct {
	EvalStartTsMs         int64
	Timeframes            types.TimeframeBinding
	LookbackBarsByRole    map[types.TimeframeRole]int
	DelayBarsByRole       map[types.TimeframeRole]int
	PlayHash              string
	InputHash             string
	EquityTimestampColumn string
	StopReason            string
}

// TradeRow is one row of the trades artifact table.
type TradeRow struct {
	Symbol        string
	Side          types.Side
	EntryPrice    decimal.Decimal
	ExitPrice     decimal.Decimal
	Quantity      decimal.Decimal
	EntryTsMs     int64
	ExitTsMs      int64
	HoldingMs     int64
	PnL           decimal.Decimal
	Fees          decimal.Decimal
	ExitReason    string
	HitStopLoss   bool
	HitTakeProfit bool
}

func buildTradeRows(trades []types.Trade) []TradeRow {
	rows := make([]TradeRow, len(trades))
	for i, t := range trades {
		rows[i] = TradeRow{
			Symbol:        t.Symbol,
			Side:          t.Side,
			EntryPrice:    t.EntryPrice,
			ExitPrice:     t.ExitPrice,
			Quantity:      t.Quantity,
			EntryTsMs:     t.EntryTsMs,
			ExitTsMs:      t.ExitTsMs,
			HoldingMs:     t.ExitTsMs - t.EntryTsMs,
			PnL:           t.PnL,
			Fees:          t.Fees,
			ExitReason:    t.ExitReason,
			HitStopLoss:   t.ExitReason == "stop_loss",
			HitTakeProfit: t.ExitReason == "take_profit",
		}
	}
	return rows
}

// EquityRow is one row of the equity artifact table: spec.md §6 requires
// a `ts_ms` epoch-ms column plus the isolated-margin balance fields and a
// running drawdown_pct, computed here (not carried on the engine's
// per-bar EquityPoint, which has no use for it mid-run).
type EquityRow struct {
	TsMs          int64
	Equity        decimal.Decimal
	Cash          decimal.Decimal
	UnrealizedPnL decimal.Decimal
	DrawdownPct   decimal.Decimal
}

func buildEquityRows(points []types.EquityPoint) []EquityRow {
	rows := make([]EquityRow, len(points))
	peak := decimal.Zero
	for i, p := range points {
		if i == 0 || p.Equity.GreaterThan(peak) {
			peak = p.Equity
		}
		dd := decimal.Zero
		if peak.IsPositive() {
			dd = peak.Sub(p.Equity).Div(peak)
		}
		rows[i] = EquityRow{
			TsMs:          p.TsCloseMs,
			Equity:        p.Equity,
			Cash:          p.Cash,
			UnrealizedPnL: p.UnrealizedPnL,
			DrawdownPct:   dd,
		}
	}
	return rows
}
