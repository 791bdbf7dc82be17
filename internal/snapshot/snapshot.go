// Package snapshot provides the zero-allocation read-only view the rule
// DSL evaluates against: a set of per-timeframe-role contexts pointing
// into feed stores, reconstructed once per exec bar and never escaping it.
package snapshot

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ledgerline/btcore/internal/bterrors"
	"github.com/ledgerline/btcore/pkg/types"
)

// FeedView is the read surface a TFContext needs from a feed.Store.
type FeedView interface {
	Len() int
	TsClose() []int64
	Open() []float64
	High() []float64
	Low() []float64
	Close() []float64
	Volume() []float64
	Column(featureID string) ([]float64, error)
	StructureField(featureID, field string) ([]float64, error)
	IndexAtOrBefore(ts int64) int
}

// TFContext is a (feed, current_idx) pair: one timeframe role's position
// within its own feed store at the moment a Snapshot is built.
type TFContext struct {
	Feed       FeedView
	CurrentIdx int
}

// IsStale reports whether this context's last closed bar is strictly
// older than execTsCloseMs.
func (c TFContext) IsStale(execTsCloseMs int64) bool {
	if c.Feed == nil || c.CurrentIdx < 0 {
		return true
	}
	return c.Feed.TsClose()[c.CurrentIdx] < execTsCloseMs
}

// Snapshot is the view a rule tree evaluates against for one exec bar.
type Snapshot struct {
	Exec      TFContext
	Mid       *TFContext
	High      *TFContext
	TsCloseMs int64
}

// NewFromExec advances mid/high by forward-fill to the last index at or
// before the exec bar's ts_close, then returns the assembled Snapshot. It
// also performs the lookahead assertion before returning.
func NewFromExec(exec TFContext, mid, high *TFContext) (*Snapshot, error) {
	execTs := exec.Feed.TsClose()[exec.CurrentIdx]
	if mid != nil {
		mid.CurrentIdx = mid.Feed.IndexAtOrBefore(execTs)
	}
	if high != nil {
		high.CurrentIdx = high.Feed.IndexAtOrBefore(execTs)
	}
	snap := &Snapshot{Exec: exec, Mid: mid, High: high, TsCloseMs: execTs}
	if err := snap.assertNoLookahead(); err != nil {
		return nil, err
	}
	return snap, nil
}

func (s *Snapshot) assertNoLookahead() error {
	if s.Exec.Feed.TsClose()[s.Exec.CurrentIdx] != s.TsCloseMs {
		return bterrors.New(bterrors.KindInvariant, "snapshot", "exec ts_close_ms mismatch")
	}
	for role, ctx := range map[string]*TFContext{"mid": s.Mid, "high": s.High} {
		if ctx == nil || ctx.CurrentIdx < 0 {
			continue
		}
		if ctx.Feed.TsClose()[ctx.CurrentIdx] > s.TsCloseMs {
			return bterrors.New(bterrors.KindInvariant, "snapshot", fmt.Sprintf("%s context is ahead of exec bar", role))
		}
	}
	return nil
}

// Staleness reports whether the named role's last-closed bar is older
// than the exec bar. exec is never stale by construction.
func (s *Snapshot) Staleness(role types.TimeframeRole) bool {
	switch role {
	case types.RoleExec:
		return false
	case types.RoleMid:
		return s.Mid == nil || s.Mid.IsStale(s.TsCloseMs)
	case types.RoleHigh:
		return s.High == nil || s.High.IsStale(s.TsCloseMs)
	default:
		return true
	}
}

func (s *Snapshot) contextFor(role types.TimeframeRole) (*TFContext, error) {
	switch role {
	case types.RoleExec:
		return &s.Exec, nil
	case types.RoleMid:
		if s.Mid == nil {
			return nil, bterrors.New(bterrors.KindSchema, "snapshot", "no mid timeframe context bound")
		}
		return s.Mid, nil
	case types.RoleHigh:
		if s.High == nil {
			return nil, bterrors.New(bterrors.KindSchema, "snapshot", "no high timeframe context bound")
		}
		return s.High, nil
	default:
		return nil, bterrors.New(bterrors.KindSchema, "snapshot", fmt.Sprintf("unknown tf_role %q", role))
	}
}

// Get resolves a canonical path at the given offset (k bars before that
// TF context's current_idx, measured in that TF's own bars).
func (s *Snapshot) Get(path string, offset int) (float64, error) {
	if path == "builtin.close" {
		return s.Get("price.exec.close", offset)
	}
	if path == "builtin.last_price" {
		return s.Get("price.exec.close", 0)
	}
	if path == "builtin.ts_close_ms" {
		return float64(s.TsCloseMs), nil
	}
	parts := strings.Split(path, ".")
	if len(parts) < 2 {
		return 0, bterrors.New(bterrors.KindSchema, "snapshot", fmt.Sprintf("malformed path %q", path))
	}
	switch parts[0] {
	case "price":
		if len(parts) != 3 {
			return 0, bterrors.New(bterrors.KindSchema, "snapshot", fmt.Sprintf("malformed price path %q", path))
		}
		return s.getPrice(types.TimeframeRole(parts[1]), parts[2], offset)
	case "indicator":
		if len(parts) != 3 {
			return 0, bterrors.New(bterrors.KindSchema, "snapshot", fmt.Sprintf("malformed indicator path %q", path))
		}
		return s.getIndicator(types.TimeframeRole(parts[1]), parts[2], offset)
	case "structure":
		if len(parts) != 4 {
			return 0, bterrors.New(bterrors.KindSchema, "snapshot", fmt.Sprintf("malformed structure path %q", path))
		}
		return s.getStructure(types.TimeframeRole(parts[1]), parts[2], parts[3], offset)
	default:
		return 0, bterrors.New(bterrors.KindSchema, "snapshot", fmt.Sprintf("unknown path namespace %q", parts[0]))
	}
}

func (s *Snapshot) resolveIndex(role types.TimeframeRole, offset int) (*TFContext, int, error) {
	ctx, err := s.contextFor(role)
	if err != nil {
		return nil, 0, err
	}
	idx := ctx.CurrentIdx - offset
	if idx < 0 || idx >= ctx.Feed.Len() {
		return nil, 0, bterrors.New(bterrors.KindInvariant, "snapshot", fmt.Sprintf("index out of range for role %q offset %d", role, offset))
	}
	return ctx, idx, nil
}

func (s *Snapshot) getPrice(role types.TimeframeRole, field string, offset int) (float64, error) {
	ctx, idx, err := s.resolveIndex(role, offset)
	if err != nil {
		return 0, err
	}
	switch field {
	case "open":
		return ctx.Feed.Open()[idx], nil
	case "high":
		return ctx.Feed.High()[idx], nil
	case "low":
		return ctx.Feed.Low()[idx], nil
	case "close":
		return ctx.Feed.Close()[idx], nil
	case "volume":
		return ctx.Feed.Volume()[idx], nil
	default:
		return 0, bterrors.New(bterrors.KindSchema, "snapshot", fmt.Sprintf("unknown price field %q", field))
	}
}

func (s *Snapshot) getIndicator(role types.TimeframeRole, featureKey string, offset int) (float64, error) {
	ctx, idx, err := s.resolveIndex(role, offset)
	if err != nil {
		return 0, err
	}
	col, err := ctx.Feed.Column(featureKey)
	if err != nil {
		return 0, bterrors.Wrap(bterrors.KindSchema, "snapshot", fmt.Sprintf("indicator feature %q missing", featureKey), err)
	}
	return col[idx], nil
}

func (s *Snapshot) getStructure(role types.TimeframeRole, featureID, field string, offset int) (float64, error) {
	ctx, idx, err := s.resolveIndex(role, offset)
	if err != nil {
		return 0, err
	}
	col, err := ctx.Feed.StructureField(featureID, field)
	if err != nil {
		return 0, bterrors.Wrap(bterrors.KindSchema, "snapshot", fmt.Sprintf("structure field %s.%s missing", featureID, field), err)
	}
	return col[idx], nil
}

// ParseOffset parses a string offset suffix used by some DSL operand
// forms (e.g. "ema_20[1]"), returning 0 if s has no bracket suffix.
func ParseOffset(s string) (string, int, error) {
	i := strings.IndexByte(s, '[')
	if i < 0 {
		return s, 0, nil
	}
	if !strings.HasSuffix(s, "]") {
		return "", 0, fmt.Errorf("malformed offset suffix in %q", s)
	}
	n, err := strconv.Atoi(s[i+1 : len(s)-1])
	if err != nil {
		return "", 0, fmt.Errorf("malformed offset suffix in %q: %w", s, err)
	}
	return s[:i], n, nil
}
