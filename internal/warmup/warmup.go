// Package warmup computes the per-timeframe-role lookback and evaluation
// delay a Play requires before the engine may begin evaluating strategy
// rules, and verifies a FeedStore covers that lookback.
package warmup

import (
	"fmt"

	"github.com/ledgerline/btcore/internal/bterrors"
	"github.com/ledgerline/btcore/internal/indicators"
	"github.com/ledgerline/btcore/internal/structures"
	"github.com/ledgerline/btcore/pkg/types"
)

// DefaultDelayCapBars is the ceiling spec.md §4.6 describes as "e.g. 1000
// bars"; a Play whose declared delay exceeds this is rejected at preflight.
const DefaultDelayCapBars = 1000

// Plan is the authoritative warmup/delay numbers for one Play, computed
// once at preflight and consumed unchanged by the engine. Lookback and
// delay are both counted in the role's own timeframe bars.
type Plan struct {
	Timeframes         types.TimeframeBinding
	LookbackBarsByRole map[types.TimeframeRole]int
	DelayBarsByRole    map[types.TimeframeRole]int
}

func (p *Plan) tfFor(role types.TimeframeRole) types.Timeframe {
	switch role {
	case types.RoleExec:
		return p.Timeframes.Exec
	case types.RoleMid:
		return p.Timeframes.Mid
	case types.RoleHigh:
		return p.Timeframes.High
	default:
		return ""
	}
}

// MaxLookback returns the largest lookback across all bound roles, used
// for data-fetching range calculations.
func (p *Plan) MaxLookback() int {
	max := 0
	for _, v := range p.LookbackBarsByRole {
		if v > max {
			max = v
		}
	}
	return max
}

// Compute derives a Plan from a Play's features and declared delay,
// validating the delay cap.
func Compute(p *types.Play, delayBarsByRole map[types.TimeframeRole]int, indicatorReg *indicators.Registry, structureReg *structures.Registry) (*Plan, error) {
	lookback := map[types.TimeframeRole]int{types.RoleExec: 0}
	if p.Timeframes.Mid != "" {
		lookback[types.RoleMid] = 0
	}
	if p.Timeframes.High != "" {
		lookback[types.RoleHigh] = 0
	}

	for _, f := range p.Features {
		role := f.Role
		if role == "" {
			role = types.RoleExec
		}
		w, err := featureWarmup(f, indicatorReg, structureReg)
		if err != nil {
			return nil, err
		}
		if w > lookback[role] {
			lookback[role] = w
		}
	}

	delay := make(map[types.TimeframeRole]int, len(lookback))
	for role := range lookback {
		d := delayBarsByRole[role]
		if d > DefaultDelayCapBars {
			return nil, bterrors.New(bterrors.KindSchema, "warmup",
				fmt.Sprintf("delay_bars_by_role[%s]=%d exceeds cap %d", role, d, DefaultDelayCapBars))
		}
		delay[role] = d
	}

	return &Plan{Timeframes: p.Timeframes, LookbackBarsByRole: lookback, DelayBarsByRole: delay}, nil
}

func featureWarmup(f types.FeatureSpec, indicatorReg *indicators.Registry, structureReg *structures.Registry) (int, error) {
	switch f.Kind {
	case "indicator":
		ind, err := indicatorReg.Create(f.Type, f.Params)
		if err != nil {
			return 0, err
		}
		return ind.Warmup(), nil
	case "structure":
		if !structureReg.Known(f.Type) {
			return 0, bterrors.New(bterrors.KindSchema, "warmup", fmt.Sprintf("unknown structure type %q for feature %q", f.Type, f.Key))
		}
		return structureLookback(f.Params), nil
	default:
		return 0, bterrors.New(bterrors.KindSchema, "warmup", fmt.Sprintf("feature %q has unknown kind %q", f.Key, f.Kind))
	}
}

// structureLookback reads the declared lookback_bars parameter a
// structure detector needs (spec.md §4.6's "declared lookback_bars for
// structures that need a look-back window"); structures that need none
// simply omit the parameter and warm up over zero bars.
func structureLookback(params map[string]any) int {
	v, ok := params["lookback_bars"]
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	default:
		return 0
	}
}

// VerifyCoverage checks that a feed's bar count is at least lookback+delay
// bars before the requested simulation start, per spec.md §4.6's
// authoritative coverage gate.
func VerifyCoverage(feedLen int, lookback, delay int) error {
	required := lookback + delay + 1
	if feedLen < required {
		return bterrors.New(bterrors.KindDataCoverage, "warmup",
			fmt.Sprintf("insufficient coverage: have %d bars, need %d (lookback=%d delay=%d)", feedLen, required, lookback, delay))
	}
	return nil
}

// SimStartIndex computes the first exec-bar index eligible for strategy
// evaluation. Each role's (lookback+delay) bar count is first converted
// to exec-bar-equivalent duration, then the max is taken across roles,
// per spec.md §4.8's "multi-TF mode uses max(delay * duration) across
// roles to ensure all roles are ready".
func SimStartIndex(plan *Plan) int {
	execMs := plan.Timeframes.Exec.Millis()
	if execMs <= 0 {
		return 0
	}
	start := 0
	for role, lb := range plan.LookbackBarsByRole {
		tf := plan.tfFor(role)
		if tf == "" {
			continue
		}
		roleMs := tf.Millis()
		totalBars := lb + plan.DelayBarsByRole[role]
		execEquivalent := totalBars
		if roleMs > execMs {
			execEquivalent = totalBars * int(roleMs/execMs)
		}
		if execEquivalent > start {
			start = execEquivalent
		}
	}
	return start
}
