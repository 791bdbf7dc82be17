// Package feed holds the per-timeframe FeedStore: an arena of OHLCV and
// feature columns indexed by bar position.
package feed

import (
	"fmt"
	"sort"

	"github.com/ledgerline/btcore/internal/bterrors"
	"github.com/ledgerline/btcore/pkg/types"
)

// Store is an append-never arena of bar columns for one symbol and
// timeframe. FromBars fixes the bar columns; SetColumn and
// SetStructureField attach feature and structure columns afterwards, and
// nothing else mutates a Store.
type Store struct {
	Symbol string
	TF     types.Timeframe

	tsClose []int64
	open    []float64
	high    []float64
	low     []float64
	close   []float64
	volume  []float64

	tsCloseToIdx map[int64]int

	columns         map[string][]float64
	structureFields map[string]map[string][]float64
}

// FromBars builds a Store from an ordered, deduplicated, strictly
// increasing (by ts_open) slice of bars already aligned to tf's boundary.
func FromBars(bars []types.Bar, tf types.Timeframe) (*Store, error) {
	if len(bars) == 0 {
		return nil, bterrors.New(bterrors.KindDataCoverage, "feed", "from_bars: empty bar slice")
	}
	s := &Store{
		Symbol:          bars[0].Symbol,
		TF:              tf,
		tsClose:         make([]int64, len(bars)),
		open:            make([]float64, len(bars)),
		high:            make([]float64, len(bars)),
		low:             make([]float64, len(bars)),
		close:           make([]float64, len(bars)),
		volume:          make([]float64, len(bars)),
		tsCloseToIdx:    make(map[int64]int, len(bars)),
		columns:         make(map[string][]float64),
		structureFields: make(map[string]map[string][]float64),
	}
	prevTsOpen := int64(-1)
	durMs := tf.Millis()
	for i, b := range bars {
		if b.TsOpen <= prevTsOpen {
			return nil, bterrors.New(bterrors.KindSchema, "feed",
				fmt.Sprintf("from_bars: ts_open not strictly increasing at index %d", i))
		}
		prevTsOpen = b.TsOpen
		tsClose := b.TsClose
		if tsClose == 0 && durMs > 0 {
			tsClose = b.TsOpen + durMs
		}
		s.tsClose[i] = tsClose
		s.open[i] = b.Open
		s.high[i] = b.High
		s.low[i] = b.Low
		s.close[i] = b.Close
		s.volume[i] = b.Volume
		if _, dup := s.tsCloseToIdx[tsClose]; dup {
			return nil, bterrors.New(bterrors.KindSchema, "feed",
				fmt.Sprintf("from_bars: duplicate ts_close_ms %d at index %d", tsClose, i))
		}
		s.tsCloseToIdx[tsClose] = i
	}
	return s, nil
}

// Len returns the number of bars held.
func (s *Store) Len() int { return len(s.tsClose) }

// TsClose returns the full ts_close_ms array (read-only; callers must not
// mutate it).
func (s *Store) TsClose() []int64 { return s.tsClose }

// Open, High, Low, Close, Volume return the read-only OHLCV arrays.
func (s *Store) Open() []float64   { return s.open }
func (s *Store) High() []float64   { return s.high }
func (s *Store) Low() []float64    { return s.low }
func (s *Store) Close() []float64  { return s.close }
func (s *Store) Volume() []float64 { return s.volume }

// BarAt returns the bar at index i as a types.Bar value.
func (s *Store) BarAt(i int) types.Bar {
	tsOpen := s.tsClose[i] - s.TF.Millis()
	return types.Bar{
		Symbol:  s.Symbol,
		TF:      s.TF,
		TsOpen:  tsOpen,
		TsClose: s.tsClose[i],
		Open:    s.open[i],
		High:    s.high[i],
		Low:     s.low[i],
		Close:   s.close[i],
		Volume:  s.volume[i],
	}
}

// IndexAtTsClose returns the exact index whose ts_close equals ts, or an
// error if no such bar exists.
func (s *Store) IndexAtTsClose(ts int64) (int, error) {
	idx, ok := s.tsCloseToIdx[ts]
	if !ok {
		return 0, bterrors.New(bterrors.KindDataCoverage, "feed",
			fmt.Sprintf("index_at_ts_close: no bar with ts_close_ms=%d", ts))
	}
	return idx, nil
}

// IndexAtOrBefore returns the index of the last bar whose ts_close is ≤
// ts, via binary search, or -1 if every bar is after ts.
func (s *Store) IndexAtOrBefore(ts int64) int {
	n := len(s.tsClose)
	i := sort.Search(n, func(i int) bool { return s.tsClose[i] > ts })
	return i - 1
}

// SetColumn attaches a fully-built feature column. Called once per feature
// by the feature frame builder; panics on length mismatch since that is an
// internal wiring bug, not a runtime condition.
func (s *Store) SetColumn(featureID string, values []float64) {
	if len(values) != len(s.tsClose) {
		panic(fmt.Sprintf("feed: column %q length %d does not match store length %d", featureID, len(values), len(s.tsClose)))
	}
	s.columns[featureID] = values
}

// Column returns the read-only indicator array for featureID.
func (s *Store) Column(featureID string) ([]float64, error) {
	col, ok := s.columns[featureID]
	if !ok {
		return nil, bterrors.New(bterrors.KindSchema, "feed",
			fmt.Sprintf("column: unknown feature_id %q", featureID))
	}
	return col, nil
}

// SetStructureField attaches one field array of a structure detector's
// output.
func (s *Store) SetStructureField(featureID, field string, values []float64) {
	if len(values) != len(s.tsClose) {
		panic(fmt.Sprintf("feed: structure field %s.%s length %d does not match store length %d", featureID, field, len(values), len(s.tsClose)))
	}
	if s.structureFields[featureID] == nil {
		s.structureFields[featureID] = make(map[string][]float64)
	}
	s.structureFields[featureID][field] = values
}

// StructureField returns the read-only array for that structure field.
func (s *Store) StructureField(featureID, field string) ([]float64, error) {
	fields, ok := s.structureFields[featureID]
	if !ok {
		return nil, bterrors.New(bterrors.KindSchema, "feed",
			fmt.Sprintf("structure_field: unknown feature_id %q", featureID))
	}
	col, ok := fields[field]
	if !ok {
		return nil, bterrors.New(bterrors.KindSchema, "feed",
			fmt.Sprintf("structure_field: unknown field %q on %q", field, featureID))
	}
	return col, nil
}
