package play_test

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/ledgerline/btcore/internal/play"
	"github.com/ledgerline/btcore/pkg/types"
)

func gtZero(feature string) map[string]interface{} {
	return map[string]interface{}{"gt": []interface{}{feature, 0.0}}
}

func validPlay() *types.Play {
	return &types.Play{
		ID:             "p1",
		Version:        "1",
		SymbolUniverse: []string{"BTCUSDT"},
		Timeframes:     types.TimeframeBinding{Exec: types.Timeframe1m, Mid: types.Timeframe5m, High: types.Timeframe1h},
		Account: types.AccountConfig{
			InitialCashUSDT: decimal.NewFromInt(10000),
			Leverage:        decimal.NewFromInt(5),
		},
		Features: []types.FeatureSpec{
			{Key: "ema_50", Kind: "indicator", Type: "ema", Params: map[string]any{"length": 50}, Role: types.RoleExec},
		},
		Actions: []types.ActionBlock{
			{
				ID: "entry",
				Cases: []types.Case{
					{When: gtZero("price.close"), Emit: []types.ActionSpec{{Type: types.ActionEnterLong}}},
				},
			},
			{
				ID: "exit",
				Cases: []types.Case{
					{When: map[string]interface{}{"lt": []interface{}{"price.close", 0.0}}, Emit: []types.ActionSpec{{Type: types.ActionExit}}},
				},
			},
		},
		RiskModel: types.RiskModel{
			MaxLeverage:      decimal.NewFromInt(10),
			MaxOpenPositions: 3,
		},
		PositionPolicy: types.PositionPolicy{
			Mode:  types.SizingPercentEquity,
			Value: decimal.NewFromFloat(0.1),
		},
	}
}

func TestValidatePlayAccepted(t *testing.T) {
	p := validPlay()
	norm, err := play.Validate(p)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if len(norm.Actions) != 2 {
		t.Fatalf("expected 2 compiled action blocks, got %d", len(norm.Actions))
	}
	if !norm.KnownFeatures["ema_50"] {
		t.Fatal("expected ema_50 to be a known feature")
	}
}

func TestValidateRejectsNonUSDTUniverse(t *testing.T) {
	p := validPlay()
	p.SymbolUniverse = []string{"BTCUSD"}
	if _, err := play.Validate(p); err == nil {
		t.Fatal("expected rejection of a non-USDT symbol universe")
	}
}

func TestValidateRejectsBadTimeframeHierarchy(t *testing.T) {
	p := validPlay()
	p.Timeframes = types.TimeframeBinding{Exec: types.Timeframe1h, Mid: types.Timeframe1m}
	if _, err := play.Validate(p); err == nil {
		t.Fatal("expected rejection when duration(mid) < duration(exec)")
	}
}

func TestValidateRejectsUndeclaredFeatureInRule(t *testing.T) {
	p := validPlay()
	p.Actions[0].Cases = append(p.Actions[0].Cases, types.Case{
		When: gtZero("rsi_14"),
		Emit: []types.ActionSpec{{Type: types.ActionEnterLong}},
	})
	if _, err := play.Validate(p); err == nil {
		t.Fatal("expected rejection of a condition referencing an undeclared feature")
	}
}

func TestValidateRejectsDuplicateFeatureKey(t *testing.T) {
	p := validPlay()
	p.Features = append(p.Features, types.FeatureSpec{Key: "ema_50", Kind: "indicator", Type: "ema"})
	if _, err := play.Validate(p); err == nil {
		t.Fatal("expected rejection of a duplicate feature key")
	}
}

func TestValidateRejectsDanglingInputSource(t *testing.T) {
	p := validPlay()
	p.Features = append(p.Features, types.FeatureSpec{
		Key: "rsi_on_ema", Kind: "indicator", Type: "rsi", InputSource: "nonexistent",
	})
	if _, err := play.Validate(p); err == nil {
		t.Fatal("expected rejection of a dangling input_source reference")
	}
}

func TestValidateRequiresAtLeastOneActionBlock(t *testing.T) {
	p := validPlay()
	p.Actions = nil
	if _, err := play.Validate(p); err == nil {
		t.Fatal("expected rejection of an empty actions list")
	}
}

func TestValidateRejectsEmptyCaseEmit(t *testing.T) {
	p := validPlay()
	p.Actions[0].Cases[0].Emit = nil
	if _, err := play.Validate(p); err == nil {
		t.Fatal("expected rejection of a case that emits nothing")
	}
}

func TestValidateResolvesVariableReferences(t *testing.T) {
	p := validPlay()
	p.Variables = map[string]interface{}{
		"trend_up": gtZero("ema_50"),
	}
	p.Actions[0].Cases[0].When = map[string]interface{}{"var": "trend_up"}
	if _, err := play.Validate(p); err != nil {
		t.Fatalf("Validate with a variable reference: %v", err)
	}
}

func TestValidateRejectsUndeclaredVariable(t *testing.T) {
	p := validPlay()
	p.Actions[0].Cases[0].When = map[string]interface{}{"var": "not_declared"}
	if _, err := play.Validate(p); err == nil {
		t.Fatal("expected rejection of a reference to an undeclared variable")
	}
}
