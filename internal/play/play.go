// Package play parses, normalizes, and validates the declarative Play
// document: the strategy specification the engine executes. Validation
// happens once, before warmup preflight, so a bad Play never reaches the
// hot loop.
package play

import (
	"fmt"
	"strings"

	"github.com/ledgerline/btcore/internal/bterrors"
	"github.com/ledgerline/btcore/internal/ruledsl"
	"github.com/ledgerline/btcore/internal/snapshot"
	"github.com/ledgerline/btcore/pkg/types"
)

// CompiledCase pairs one case's compiled When condition with the actions
// it emits on the first match within its block.
type CompiledCase struct {
	When ruledsl.Node
	Emit []types.ActionSpec
}

// CompiledActionBlock is one Play action block with its cases' When
// conditions compiled to rule trees, in the block's declared order.
type CompiledActionBlock struct {
	ID    string
	Cases []CompiledCase
}

// Normalized wraps a validated Play together with its compiled action
// blocks and the identifier set available to downstream stages (warmup,
// gates, engine), so nothing past this package re-derives them from the
// raw document.
type Normalized struct {
	Play          *types.Play
	Actions       []CompiledActionBlock
	KnownFeatures map[string]bool
}

// Evaluate walks the compiled action blocks in order for one bar's
// snapshot. Within a block, cases are tried in order and only the first
// whose When is true contributes its Emit list — per spec.md §4.5, that
// stops further cases in that block but not further blocks. A When that
// fails to evaluate (a missing feature during warmup, say) is treated as
// false, never as an error that aborts the bar.
func (n *Normalized) Evaluate(snap *snapshot.Snapshot) []types.ActionSpec {
	var out []types.ActionSpec
	for _, block := range n.Actions {
		for _, c := range block.Cases {
			val, err := c.When.Eval(snap, 0)
			if err != nil {
				continue
			}
			if val.AsBool() {
				out = append(out, c.Emit...)
				break
			}
		}
	}
	return out
}

// Validate parses the identifier and timeframe-role invariants of a Play,
// compiles its action blocks, and returns the normalized result. It never
// mutates the input Play.
func Validate(p *types.Play) (*Normalized, error) {
	if err := checkIdentifiers(p); err != nil {
		return nil, err
	}
	if err := checkSymbolUniverse(p); err != nil {
		return nil, err
	}
	if err := checkTimeframeHierarchy(p.Timeframes); err != nil {
		return nil, err
	}
	known, err := checkFeatures(p.Features)
	if err != nil {
		return nil, err
	}
	if err := checkAccount(p.Account); err != nil {
		return nil, err
	}
	if err := checkRiskModel(p.RiskModel); err != nil {
		return nil, err
	}
	if err := checkPositionPolicy(p.PositionPolicy); err != nil {
		return nil, err
	}

	actions, err := compileActions(p, known)
	if err != nil {
		return nil, err
	}

	return &Normalized{
		Play:          p,
		Actions:       actions,
		KnownFeatures: known,
	}, nil
}

func compileActions(p *types.Play, known map[string]bool) ([]CompiledActionBlock, error) {
	blocks := make([]CompiledActionBlock, 0, len(p.Actions))
	for _, block := range p.Actions {
		if len(block.Cases) == 0 {
			return nil, bterrors.New(bterrors.KindSchema, "play", fmt.Sprintf("action block %q has no cases", block.ID))
		}
		cases := make([]CompiledCase, 0, len(block.Cases))
		for i, c := range block.Cases {
			if c.When == nil {
				return nil, bterrors.New(bterrors.KindSchema, "play", fmt.Sprintf("action block %q case %d has no when condition", block.ID, i))
			}
			if len(c.Emit) == 0 {
				return nil, bterrors.New(bterrors.KindSchema, "play", fmt.Sprintf("action block %q case %d emits nothing", block.ID, i))
			}
			node, err := ruledsl.CompileCondition(c.When, known, p.Variables, p.Timeframes)
			if err != nil {
				return nil, bterrors.Wrap(bterrors.KindSchema, "play", fmt.Sprintf("compiling action block %q case %d", block.ID, i), err)
			}
			for _, act := range c.Emit {
				switch act.Type {
				case types.ActionEnterLong, types.ActionEnterShort, types.ActionExit, types.ActionClose, types.ActionFlip:
				default:
					return nil, bterrors.New(bterrors.KindSchema, "play", fmt.Sprintf("action block %q case %d emits unknown action type %q", block.ID, i, act.Type))
				}
			}
			cases = append(cases, CompiledCase{When: node, Emit: c.Emit})
		}
		blocks = append(blocks, CompiledActionBlock{ID: block.ID, Cases: cases})
	}
	return blocks, nil
}

func checkIdentifiers(p *types.Play) error {
	if p.ID == "" {
		return bterrors.New(bterrors.KindSchema, "play", "id is required")
	}
	if p.Version == "" {
		return bterrors.New(bterrors.KindSchema, "play", "version is required")
	}
	if p.Timeframes.Exec == "" {
		return bterrors.New(bterrors.KindSchema, "play", "timeframes.exec is required")
	}
	if !p.Timeframes.Exec.Valid() {
		return bterrors.New(bterrors.KindSchema, "play", fmt.Sprintf("timeframes.exec %q is not a canonical timeframe", p.Timeframes.Exec))
	}
	if len(p.Actions) == 0 {
		return bterrors.New(bterrors.KindSchema, "play", "actions must contain at least one action block")
	}
	return nil
}

// checkSymbolUniverse requires at least one USDT-quoted symbol, since the
// exchange and account model are USDT-linear perpetual only.
func checkSymbolUniverse(p *types.Play) error {
	if len(p.SymbolUniverse) == 0 {
		return bterrors.New(bterrors.KindSchema, "play", "symbolUniverse must contain at least one symbol")
	}
	for _, sym := range p.SymbolUniverse {
		if strings.HasSuffix(sym, "USDT") {
			return nil
		}
	}
	return bterrors.New(bterrors.KindSchema, "play", "symbolUniverse must contain at least one USDT-quoted symbol")
}

// checkTimeframeHierarchy enforces duration(exec) <= duration(mid) <=
// duration(high) for whichever roles are bound.
func checkTimeframeHierarchy(b types.TimeframeBinding) error {
	if !b.Exec.Valid() {
		return bterrors.New(bterrors.KindSchema, "play", fmt.Sprintf("exec timeframe %q is not canonical", b.Exec))
	}
	execMs := b.Exec.Millis()
	lastMs := execMs
	if b.Mid != "" {
		if !b.Mid.Valid() {
			return bterrors.New(bterrors.KindSchema, "play", fmt.Sprintf("mid timeframe %q is not canonical", b.Mid))
		}
		midMs := b.Mid.Millis()
		if midMs < lastMs {
			return bterrors.New(bterrors.KindSchema, "play", "timeframe hierarchy violated: duration(mid) < duration(exec)")
		}
		lastMs = midMs
	}
	if b.High != "" {
		if !b.High.Valid() {
			return bterrors.New(bterrors.KindSchema, "play", fmt.Sprintf("high timeframe %q is not canonical", b.High))
		}
		highMs := b.High.Millis()
		if highMs < lastMs {
			return bterrors.New(bterrors.KindSchema, "play", "timeframe hierarchy violated: duration(high) < duration(mid or exec)")
		}
	}
	return nil
}

// checkFeatures rejects duplicate feature keys, unknown kinds, and
// dangling input_source references, and returns the set of declared keys
// for the rule compiler's undeclared-feature check.
func checkFeatures(specs []types.FeatureSpec) (map[string]bool, error) {
	known := make(map[string]bool, len(specs))
	for _, f := range specs {
		if f.Key == "" {
			return nil, bterrors.New(bterrors.KindSchema, "play", "feature key must not be empty")
		}
		if known[f.Key] {
			return nil, bterrors.New(bterrors.KindSchema, "play", fmt.Sprintf("duplicate feature key %q", f.Key))
		}
		switch f.Kind {
		case "indicator", "structure":
		default:
			return nil, bterrors.New(bterrors.KindSchema, "play", fmt.Sprintf("feature %q has unknown kind %q", f.Key, f.Kind))
		}
		if f.Type == "" {
			return nil, bterrors.New(bterrors.KindSchema, "play", fmt.Sprintf("feature %q is missing a type", f.Key))
		}
		known[f.Key] = true
	}
	for _, f := range specs {
		if f.InputSource == "" || f.InputSource == "price" || f.InputSource == "volume" {
			continue
		}
		if !known[f.InputSource] {
			return nil, bterrors.New(bterrors.KindSchema, "play", fmt.Sprintf("feature %q references unknown input_source %q", f.Key, f.InputSource))
		}
	}
	return known, nil
}

func checkAccount(a types.AccountConfig) error {
	if a.InitialCashUSDT.IsZero() || a.InitialCashUSDT.IsNegative() {
		return bterrors.New(bterrors.KindSchema, "play", "account.initialCashUsdt must be > 0")
	}
	if a.Leverage.IsZero() || a.Leverage.IsNegative() {
		return bterrors.New(bterrors.KindSchema, "play", "account.leverage must be > 0")
	}
	return nil
}

func checkRiskModel(r types.RiskModel) error {
	if r.MaxLeverage.IsZero() || r.MaxLeverage.IsNegative() {
		return bterrors.New(bterrors.KindSchema, "play", "riskModel.maxLeverage must be > 0")
	}
	if r.MaxOpenPositions <= 0 {
		return bterrors.New(bterrors.KindSchema, "play", "riskModel.maxOpenPositions must be > 0")
	}
	if r.CooldownBars < 0 {
		return bterrors.New(bterrors.KindSchema, "play", "riskModel.cooldownBars must be >= 0")
	}
	return nil
}

func checkPositionPolicy(pp types.PositionPolicy) error {
	switch pp.Mode {
	case types.SizingPercentEquity, types.SizingFixedUSDT, types.SizingRiskPerTrade:
	default:
		return bterrors.New(bterrors.KindSchema, "play", fmt.Sprintf("positionPolicy.mode %q is unknown", pp.Mode))
	}
	if pp.Value.IsZero() || pp.Value.IsNegative() {
		return bterrors.New(bterrors.KindSchema, "play", "positionPolicy.value must be > 0")
	}
	if pp.MakerFeeBps.IsNegative() || pp.TakerFeeBps.IsNegative() {
		return bterrors.New(bterrors.KindSchema, "play", "positionPolicy fee bps must be >= 0")
	}
	return nil
}
