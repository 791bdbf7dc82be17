package exchange

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/ledgerline/btcore/pkg/types"
)

// SlippageModel returns the adverse-direction slippage fraction applied to
// a fill's trigger price. Limit orders never consult this: they only fill
// when the bar's range crosses the limit price, which is itself the fill
// price.
type SlippageModel interface {
	Calculate(quantity, barVolume decimal.Decimal) decimal.Decimal
}

// FixedSlippage applies a constant basis-point fraction regardless of
// order size, the simplest of spec.md §4.7's slippage models.
type FixedSlippage struct {
	BasisPoints decimal.Decimal
}

func (f FixedSlippage) Calculate(_, _ decimal.Decimal) decimal.Decimal {
	return f.BasisPoints.Div(decimal.NewFromInt(10000))
}

// VolumeWeightedSlippage adds a square-root market-impact term on top of a
// base fixed slippage, scaled by the order's participation in the bar's
// volume.
type VolumeWeightedSlippage struct {
	BaseBps      decimal.Decimal
	ImpactFactor decimal.Decimal
}

func (v VolumeWeightedSlippage) Calculate(quantity, barVolume decimal.Decimal) decimal.Decimal {
	base := v.BaseBps.Div(decimal.NewFromInt(10000))
	if barVolume.IsZero() {
		return base
	}
	participation, _ := quantity.Div(barVolume).Float64()
	impact := v.ImpactFactor.Mul(decimal.NewFromFloat(math.Sqrt(math.Abs(participation))))
	return base.Add(impact)
}

// NewSlippageModel builds a SlippageModel from a Play's account-level
// slippage configuration.
func NewSlippageModel(cfg types.SlippageConfig) SlippageModel {
	switch cfg.Model {
	case "volume_weighted":
		return VolumeWeightedSlippage{BaseBps: cfg.FixedBps, ImpactFactor: cfg.ImpactFactor}
	default:
		return FixedSlippage{BasisPoints: cfg.FixedBps}
	}
}
