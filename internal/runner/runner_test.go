package runner_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/ledgerline/btcore/internal/runner"
	"github.com/ledgerline/btcore/pkg/types"
)

type fakeBarSource struct {
	bars map[string][]types.Bar
}

func (f *fakeBarSource) LoadBars(symbol string, tf types.Timeframe) ([]types.Bar, error) {
	return f.bars[symbol+"_"+string(tf)], nil
}

func rampBars(n int) []types.Bar {
	bars := make([]types.Bar, n)
	price := 100.0
	for i := 0; i < n; i++ {
		if i > n/2 {
			price += 1.0
		} else {
			price += 0.01
		}
		ts := int64(i+1) * 60_000
		bars[i] = types.Bar{
			Symbol: "BTCUSDT", TF: types.Timeframe1m,
			TsOpen: ts - 60_000, TsClose: ts,
			Open: price, High: price + 0.5, Low: price - 0.5, Close: price,
			Volume: 100,
		}
	}
	return bars
}

func buildTestPlay() *types.Play {
	return &types.Play{
		ID: "ema-cross", Version: "1",
		SymbolUniverse: []string{"BTCUSDT"},
		Timeframes:     types.TimeframeBinding{Exec: types.Timeframe1m},
		Account: types.AccountConfig{
			InitialCashUSDT: decimal.NewFromInt(10000),
			Leverage:        decimal.NewFromInt(5),
			Slippage:        types.SlippageConfig{Model: "fixed", FixedBps: decimal.NewFromInt(2)},
		},
		Features: []types.FeatureSpec{
			{Key: "ema_fast", Kind: "indicator", Type: "ema", Params: map[string]any{"length": 3}, Role: types.RoleExec},
			{Key: "ema_slow", Kind: "indicator", Type: "ema", Params: map[string]any{"length": 8}, Role: types.RoleExec},
		},
		Actions: []types.ActionBlock{
			{
				ID: "cross",
				Cases: []types.Case{
					{
						When: map[string]interface{}{"cross_above": []interface{}{"ema_fast", "ema_slow"}},
						Emit: []types.ActionSpec{{Type: types.ActionEnterLong}},
					},
					{
						When: map[string]interface{}{"cross_below": []interface{}{"ema_fast", "ema_slow"}},
						Emit: []types.ActionSpec{{Type: types.ActionExit}},
					},
				},
			},
		},
		RiskModel: types.RiskModel{MaxLeverage: decimal.NewFromInt(10), MaxOpenPositions: 1},
		PositionPolicy: types.PositionPolicy{
			Mode: types.SizingPercentEquity, Value: decimal.NewFromFloat(0.1),
			MakerFeeBps: decimal.NewFromInt(2), TakerFeeBps: decimal.NewFromInt(4),
		},
	}
}

func TestRunProducesArtifactsFromABarSource(t *testing.T) {
	src := &fakeBarSource{bars: map[string][]types.Bar{
		"BTCUSDT_1m": rampBars(200),
	}}
	arts, err := runner.Run(context.Background(), nil, src, runner.Request{
		Symbol:     "BTCUSDT",
		Play:       buildTestPlay(),
		Provenance: "runner-test",
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if arts.RunHash == "" {
		t.Fatal("expected a populated run hash")
	}
	if arts.Manifest.PlayHash == "" {
		t.Fatal("expected a populated manifest play hash")
	}
}

func TestRunErrorsWhenExecBarsMissing(t *testing.T) {
	src := &fakeBarSource{bars: map[string][]types.Bar{}}
	_, err := runner.Run(context.Background(), nil, src, runner.Request{
		Symbol: "BTCUSDT",
		Play:   buildTestPlay(),
	})
	if err == nil {
		t.Fatal("expected an error when no bars are available for the exec timeframe")
	}
}
