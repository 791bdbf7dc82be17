// Package runner wires a validated Play and a bar source through feed
// construction, feature building, warmup preflight, the engine hot loop,
// and artifact assembly — the single orchestration path both cmd/backtest
// and internal/api drive, grounded on the teacher's
// internal/backtester.Engine.Run's top-to-bottom wiring.
package runner

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ledgerline/btcore/internal/artifact"
	"github.com/ledgerline/btcore/internal/bterrors"
	"github.com/ledgerline/btcore/internal/engine"
	"github.com/ledgerline/btcore/internal/featureframe"
	"github.com/ledgerline/btcore/internal/indicators"
	"github.com/ledgerline/btcore/internal/play"
	"github.com/ledgerline/btcore/internal/structures"
	"github.com/ledgerline/btcore/internal/warmup"
	"github.com/ledgerline/btcore/pkg/types"
)

// BarSource is the minimal read surface runner needs from a bar store; it
// is satisfied by internal/data.Store, and lets tests supply an in-memory
// fake without an on-disk dataset.
type BarSource interface {
	LoadBars(symbol string, tf types.Timeframe) ([]types.Bar, error)
}

// Request describes one backtest invocation: a Play to run over one
// symbol, with an optional [StartTsMs, EndTsMs] window (both bounds
// inclusive, compared against each bar's TsClose) trimming the loaded
// exec-timeframe bars before the engine sees them. Zero bounds mean
// "no trim".
type Request struct {
	Symbol             string
	Play               *types.Play
	StartTsMs, EndTsMs int64
	DelayBarsByRole    map[types.TimeframeRole]int
	Provenance         string
}

// Run executes a full backtest: Play validation, per-role feed and
// feature construction, warmup preflight, the engine hot loop, and
// artifact/hash assembly.
func Run(ctx context.Context, logger *zap.Logger, bars BarSource, req Request) (*artifact.Artifacts, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	normalized, err := play.Validate(req.Play)
	if err != nil {
		return nil, fmt.Errorf("validate play: %w", err)
	}

	indicatorReg := indicators.NewRegistry()
	structureReg := structures.NewRegistry()
	builder := featureframe.NewBuilder()

	roles := []types.TimeframeRole{types.RoleExec, types.RoleMid, types.RoleHigh}
	stores := make(map[types.TimeframeRole]*storeHandle)
	for _, role := range roles {
		tf := tfForRole(req.Play.Timeframes, role)
		if tf == "" {
			continue
		}
		raw, err := bars.LoadBars(req.Symbol, tf)
		if err != nil {
			return nil, fmt.Errorf("load bars for role %s: %w", role, err)
		}
		raw = trimWindow(raw, req.StartTsMs, req.EndTsMs)
		st, err := newStoreHandle(raw, tf)
		if err != nil {
			return nil, fmt.Errorf("build feed for role %s: %w", role, err)
		}
		specs := specsForRole(req.Play.Features, role)
		if err := builder.Build(st.store, specs); err != nil {
			return nil, fmt.Errorf("build features for role %s: %w", role, err)
		}
		stores[role] = st
	}

	execStore, ok := stores[types.RoleExec]
	if !ok {
		return nil, bterrors.New(bterrors.KindSchema, "runner", "play declares no exec timeframe")
	}

	plan, err := warmup.Compute(req.Play, req.DelayBarsByRole, indicatorReg, structureReg)
	if err != nil {
		return nil, fmt.Errorf("compute warmup plan: %w", err)
	}

	cfg := engine.Config{
		Symbol:     req.Symbol,
		Normalized: normalized,
		Plan:       plan,
		ExecFeed:   execStore.store,
		Logger:     logger,
	}
	if mid, ok := stores[types.RoleMid]; ok {
		cfg.MidFeed = mid.store
	}
	if high, ok := stores[types.RoleHigh]; ok {
		cfg.HighFeed = high.store
	}

	eng, err := engine.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("construct engine: %w", err)
	}
	result, err := eng.Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("run engine: %w", err)
	}

	in := artifact.RunInput{
		Symbols:    []string{req.Symbol},
		Timeframes: declaredTimeframes(req.Play.Timeframes),
		StartTsMs:  execStore.store.BarAt(0).TsClose,
		EndTsMs:    execStore.store.BarAt(execStore.store.Len() - 1).TsClose,
		Provenance: req.Provenance,
	}
	arts, err := artifact.Build(normalized, req.Symbol, execStore.store, plan, result, in)
	if err != nil {
		return nil, fmt.Errorf("build artifacts: %w", err)
	}
	return arts, nil
}

func tfForRole(b types.TimeframeBinding, role types.TimeframeRole) types.Timeframe {
	switch role {
	case types.RoleExec:
		return b.Exec
	case types.RoleMid:
		return b.Mid
	case types.RoleHigh:
		return b.High
	default:
		return ""
	}
}

func declaredTimeframes(b types.TimeframeBinding) []types.Timeframe {
	out := []types.Timeframe{b.Exec}
	if b.Mid != "" {
		out = append(out, b.Mid)
	}
	if b.High != "" {
		out = append(out, b.High)
	}
	return out
}

func specsForRole(specs []types.FeatureSpec, role types.TimeframeRole) []types.FeatureSpec {
	out := make([]types.FeatureSpec, 0, len(specs))
	for _, s := range specs {
		if s.Role == role {
			out = append(out, s)
		}
	}
	return out
}

func trimWindow(bars []types.Bar, startTsMs, endTsMs int64) []types.Bar {
	if startTsMs == 0 && endTsMs == 0 {
		return bars
	}
	out := bars[:0:0]
	for _, b := range bars {
		if startTsMs != 0 && b.TsClose < startTsMs {
			continue
		}
		if endTsMs != 0 && b.TsClose > endTsMs {
			continue
		}
		out = append(out, b)
	}
	return out
}
