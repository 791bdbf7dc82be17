// Package featureframe builds, per timeframe, the feature_key → float64
// array map the engine and rule DSL read from, given a feed store's OHLCV
// arrays and a Play's ordered feature spec list.
package featureframe

import (
	"fmt"

	"github.com/ledgerline/btcore/internal/bterrors"
	"github.com/ledgerline/btcore/internal/indicators"
	"github.com/ledgerline/btcore/internal/structures"
	"github.com/ledgerline/btcore/pkg/types"
)

// Builder wires the indicator and structure registries together to fill a
// feed.Store's feature columns.
type Builder struct {
	indicators *indicators.Registry
	structures *structures.Registry
}

// NewBuilder returns a Builder over the default indicator and structure
// catalogs.
func NewBuilder() *Builder {
	return &Builder{
		indicators: indicators.NewRegistry(),
		structures: structures.NewRegistry(),
	}
}

// feedArrays is the minimal read surface a Builder needs from a
// feed.Store, kept as an interface so tests can supply a stub.
type feedArrays interface {
	Open() []float64
	High() []float64
	Low() []float64
	Close() []float64
	Volume() []float64
	SetColumn(featureID string, values []float64)
	SetStructureField(featureID, field string, values []float64)
}

// Build fills store's feature columns from specs, processing entries in
// dependency order: a feature whose InputSource names another feature's
// key must wait for that feature to be built first.
func (b *Builder) Build(store feedArrays, specs []types.FeatureSpec) error {
	byKey := make(map[string]types.FeatureSpec, len(specs))
	for _, s := range specs {
		byKey[s.Key] = s
	}
	built := make(map[string]bool, len(specs))
	built[""] = true // sentinel: "no dependency"

	remaining := append([]types.FeatureSpec(nil), specs...)
	for len(remaining) > 0 {
		progressed := false
		next := remaining[:0]
		for _, spec := range remaining {
			dep := dependencyKey(spec, byKey)
			if dep != "" && !built[dep] {
				next = append(next, spec)
				continue
			}
			if err := b.buildOne(store, spec); err != nil {
				return err
			}
			built[spec.Key] = true
			progressed = true
		}
		remaining = next
		if !progressed && len(remaining) > 0 {
			return bterrors.New(bterrors.KindSchema, "featureframe",
				fmt.Sprintf("unresolved feature dependency cycle among: %v", featureKeys(remaining)))
		}
	}
	return nil
}

func featureKeys(specs []types.FeatureSpec) []string {
	keys := make([]string, len(specs))
	for i, s := range specs {
		keys[i] = s.Key
	}
	return keys
}

// dependencyKey returns the feature key spec depends on, or "" if its
// input_source is a builtin price/volume series rather than another
// feature.
func dependencyKey(spec types.FeatureSpec, byKey map[string]types.FeatureSpec) string {
	if spec.InputSource == "" || spec.InputSource == "price" || spec.InputSource == "volume" {
		return ""
	}
	if _, ok := byKey[spec.InputSource]; ok {
		return spec.InputSource
	}
	return ""
}

func (b *Builder) buildOne(store feedArrays, spec types.FeatureSpec) error {
	switch spec.Kind {
	case "indicator":
		return b.buildIndicator(store, spec)
	case "structure":
		return b.buildStructure(store, spec)
	default:
		return bterrors.New(bterrors.KindSchema, "featureframe",
			fmt.Sprintf("feature %q: unknown kind %q", spec.Key, spec.Kind))
	}
}

func (b *Builder) buildIndicator(store feedArrays, spec types.FeatureSpec) error {
	ind, err := b.indicators.Create(spec.Type, spec.Params)
	if err != nil {
		return bterrors.Wrap(bterrors.KindSchema, "featureframe", fmt.Sprintf("feature %q", spec.Key), err)
	}
	in := indicators.Inputs{
		Open:   store.Open(),
		High:   store.High(),
		Low:    store.Low(),
		Close:  store.Close(),
		Volume: store.Volume(),
	}
	switch spec.InputSource {
	case "volume":
		in.Primary = store.Volume()
	case "", "price":
		in.Primary = store.Close()
	default:
		col, err := storeColumn(store, spec.InputSource)
		if err != nil {
			return bterrors.Wrap(bterrors.KindSchema, "featureframe",
				fmt.Sprintf("feature %q: input_source %q", spec.Key, spec.InputSource), err)
		}
		in.Primary = col
	}
	out, err := ind.BatchCompute(in)
	if err != nil {
		return bterrors.Wrap(bterrors.KindNumeric, "featureframe", fmt.Sprintf("feature %q", spec.Key), err)
	}
	for _, suffix := range ind.Suffixes() {
		key := spec.Key
		if suffix != "" {
			key = spec.Key + "_" + suffix
		}
		store.SetColumn(key, out[suffix])
	}
	return nil
}

func (b *Builder) buildStructure(store feedArrays, spec types.FeatureSpec) error {
	det, err := b.structures.Create(spec.Type, spec.Params)
	if err != nil {
		return bterrors.Wrap(bterrors.KindSchema, "featureframe", fmt.Sprintf("feature %q", spec.Key), err)
	}
	out, err := det.Compute(structures.Bars{High: store.High(), Low: store.Low(), Close: store.Close()})
	if err != nil {
		return bterrors.Wrap(bterrors.KindNumeric, "featureframe", fmt.Sprintf("feature %q", spec.Key), err)
	}
	for field, values := range out {
		store.SetStructureField(spec.Key, field, values)
		store.SetColumn(spec.Key+"_"+field, values)
	}
	return nil
}

// storeColumn reads back a column that a prior buildOne call already
// attached, used when a feature's input_source names another feature.
func storeColumn(store feedArrays, featureKey string) ([]float64, error) {
	type columnReader interface {
		Column(string) ([]float64, error)
	}
	cr, ok := store.(columnReader)
	if !ok {
		return nil, fmt.Errorf("store does not support reading back columns")
	}
	return cr.Column(featureKey)
}
