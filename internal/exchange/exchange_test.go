package exchange_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ledgerline/btcore/internal/exchange"
	"github.com/ledgerline/btcore/pkg/types"
)

func newTestExchange(t *testing.T) *exchange.Exchange {
	t.Helper()
	account := types.AccountConfig{
		InitialCashUSDT: decimal.NewFromInt(10000),
		Leverage:        decimal.NewFromInt(10),
		Slippage:        types.SlippageConfig{Model: "fixed", FixedBps: decimal.NewFromInt(5)},
	}
	risk := types.RiskModel{MaxLeverage: decimal.NewFromInt(20), MaxOpenPositions: 3}
	policy := types.PositionPolicy{
		Mode: types.SizingPercentEquity, Value: decimal.NewFromFloat(0.1),
		MakerFeeBps: decimal.NewFromInt(2), TakerFeeBps: decimal.NewFromInt(4),
	}
	return exchange.New(zap.NewNop(), account, risk, policy)
}

func bar(ts int64, o, h, l, c float64) types.Bar {
	return types.Bar{Symbol: "BTCUSDT", TF: types.Timeframe1m, TsOpen: ts - 60_000, TsClose: ts, Open: o, High: h, Low: l, Close: c, Volume: 100}
}

func TestMarketOrderOpensPosition(t *testing.T) {
	ex := newTestExchange(t)
	b := bar(60_000, 100, 101, 99, 100)
	ex.Step("BTCUSDT", b)
	fill, err := ex.SubmitOrder(&types.Order{Symbol: "BTCUSDT", Side: types.SideLong, Type: types.OrderTypeMarket, Quantity: decimal.NewFromInt(1)}, b)
	if err != nil {
		t.Fatalf("SubmitOrder: %v", err)
	}
	if fill.Status != types.OrderStatusFilled {
		t.Fatalf("expected fill, got status %v reject %v", fill.Status, fill.RejectWhy)
	}
	pos := ex.Position("BTCUSDT")
	if pos == nil || !pos.IsOpen() {
		t.Fatal("expected an open position after a market buy")
	}
	if pos.Side != types.SideLong {
		t.Errorf("position side = %v, want long", pos.Side)
	}
}

func TestStopLossHitClosesPosition(t *testing.T) {
	ex := newTestExchange(t)
	b1 := bar(60_000, 100, 101, 99, 100)
	ex.Step("BTCUSDT", b1)
	_, err := ex.SubmitOrder(&types.Order{
		Symbol: "BTCUSDT", Side: types.SideLong, Type: types.OrderTypeMarket,
		Quantity: decimal.NewFromInt(1), StopLoss: decimal.NewFromInt(95),
	}, b1)
	if err != nil {
		t.Fatalf("SubmitOrder: %v", err)
	}
	b2 := bar(120_000, 100, 100, 90, 94)
	ex.Step("BTCUSDT", b2)
	if ex.Position("BTCUSDT").IsOpen() {
		t.Fatal("expected position closed by stop loss")
	}
	trades := ex.Trades()
	if len(trades) != 1 || trades[0].ExitReason != "stop_loss" {
		t.Fatalf("expected one stop_loss trade, got %+v", trades)
	}
}

func TestAdverseTieBreakFavorsStopLossForLong(t *testing.T) {
	ex := newTestExchange(t)
	b1 := bar(60_000, 100, 101, 99, 100)
	ex.Step("BTCUSDT", b1)
	_, err := ex.SubmitOrder(&types.Order{
		Symbol: "BTCUSDT", Side: types.SideLong, Type: types.OrderTypeMarket,
		Quantity: decimal.NewFromInt(1), StopLoss: decimal.NewFromInt(95), TakeProfit: decimal.NewFromInt(110),
	}, b1)
	if err != nil {
		t.Fatalf("SubmitOrder: %v", err)
	}
	// A bar whose range covers both the stop and the target on the same bar.
	b2 := bar(120_000, 100, 112, 90, 105)
	ex.Step("BTCUSDT", b2)
	trades := ex.Trades()
	if len(trades) != 1 || trades[0].ExitReason != "stop_loss" {
		t.Fatalf("expected the adverse stop_loss exit to win the tie, got %+v", trades)
	}
}

func TestReduceOnlyRejectedWithoutPosition(t *testing.T) {
	ex := newTestExchange(t)
	b := bar(60_000, 100, 101, 99, 100)
	ex.Step("BTCUSDT", b)
	fill, err := ex.SubmitOrder(&types.Order{
		Symbol: "BTCUSDT", Side: types.SideShort, Type: types.OrderTypeMarket,
		Quantity: decimal.NewFromInt(1), ReduceOnly: true,
	}, b)
	if err != nil {
		t.Fatalf("SubmitOrder: %v", err)
	}
	if fill.Status != types.OrderStatusRejected || fill.RejectWhy != types.RejectNoOppositePositionClose {
		t.Fatalf("expected reduce-only rejection, got %+v", fill)
	}
}

func TestEquityCurveRecordsEveryStep(t *testing.T) {
	ex := newTestExchange(t)
	for i := int64(1); i <= 3; i++ {
		ex.Step("BTCUSDT", bar(i*60_000, 100, 101, 99, 100))
	}
	if len(ex.EquityCurve()) != 3 {
		t.Errorf("EquityCurve length = %d, want 3", len(ex.EquityCurve()))
	}
}
