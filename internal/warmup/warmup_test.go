package warmup_test

import (
	"testing"

	"github.com/ledgerline/btcore/internal/indicators"
	"github.com/ledgerline/btcore/internal/structures"
	"github.com/ledgerline/btcore/internal/warmup"
	"github.com/ledgerline/btcore/pkg/types"
)

func basePlay() *types.Play {
	return &types.Play{
		Timeframes: types.TimeframeBinding{Exec: types.Timeframe1m, Mid: types.Timeframe5m},
		Features: []types.FeatureSpec{
			{Key: "ema_50", Kind: "indicator", Type: "ema", Params: map[string]any{"length": 50}, Role: types.RoleExec},
			{Key: "rsi_14_mid", Kind: "indicator", Type: "rsi", Params: map[string]any{"length": 14}, Role: types.RoleMid},
			{Key: "swing_5", Kind: "structure", Type: "swing", Params: map[string]any{"lookback_bars": 20}, Role: types.RoleExec},
		},
	}
}

func TestComputeLookbackByRole(t *testing.T) {
	p := basePlay()
	plan, err := warmup.Compute(p, map[types.TimeframeRole]int{types.RoleExec: 2, types.RoleMid: 1}, indicators.NewRegistry(), structures.NewRegistry())
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if plan.LookbackBarsByRole[types.RoleExec] != 49 {
		t.Errorf("exec lookback = %d, want max(ema warmup=49, swing lookback=20)=49", plan.LookbackBarsByRole[types.RoleExec])
	}
	if plan.LookbackBarsByRole[types.RoleMid] != 14 {
		t.Errorf("mid lookback = %d, want rsi warmup=14", plan.LookbackBarsByRole[types.RoleMid])
	}
}

func TestComputeRejectsDelayAboveCap(t *testing.T) {
	p := basePlay()
	_, err := warmup.Compute(p, map[types.TimeframeRole]int{types.RoleExec: warmup.DefaultDelayCapBars + 1}, indicators.NewRegistry(), structures.NewRegistry())
	if err == nil {
		t.Fatal("expected rejection of a delay exceeding the cap")
	}
}

func TestVerifyCoverageRejectsShortFeed(t *testing.T) {
	if err := warmup.VerifyCoverage(10, 20, 0); err == nil {
		t.Fatal("expected insufficient coverage error")
	}
	if err := warmup.VerifyCoverage(25, 20, 0); err != nil {
		t.Fatalf("expected sufficient coverage to pass, got %v", err)
	}
}

func TestSimStartIndexConvertsMidDelayToExecBars(t *testing.T) {
	plan := &warmup.Plan{
		Timeframes:         types.TimeframeBinding{Exec: types.Timeframe1m, Mid: types.Timeframe5m},
		LookbackBarsByRole: map[types.TimeframeRole]int{types.RoleExec: 10, types.RoleMid: 2},
		DelayBarsByRole:    map[types.TimeframeRole]int{types.RoleExec: 0, types.RoleMid: 0},
	}
	// mid lookback of 2 bars at 5m = 10 exec (1m) bars, tying exec's own 10.
	if got := warmup.SimStartIndex(plan); got != 10 {
		t.Errorf("SimStartIndex = %d, want 10", got)
	}
}
