// Package data is the boundary collaborator spec.md §1 assumes exists: a
// columnar bar store the core reads already-collected OHLCV bars from.
// It is deliberately thin — a cache keyed by (symbol, timeframe) over
// JSON bar files on disk — since persistent market-data storage, sync,
// and gap healing are explicitly out of spec.md's scope; this package
// only has to hand the core a deduplicated, ordered []types.Bar.
package data

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/ledgerline/btcore/internal/bterrors"
	"github.com/ledgerline/btcore/pkg/types"
)

// barFile is the on-disk JSON shape for one (symbol, timeframe) dataset —
// plain fields so a dataset can be produced by any upstream job without
// depending on this package's internal types.
type barFile struct {
	TsOpen  int64   `json:"tsOpen"`
	TsClose int64   `json:"tsClose,omitempty"`
	Open    float64 `json:"open"`
	High    float64 `json:"high"`
	Low     float64 `json:"low"`
	Close   float64 `json:"close"`
	Volume  float64 `json:"volume"`
}

// Metadata describes one cached (symbol, timeframe) dataset, persisted
// alongside the bar files so a caller can discover coverage without
// reloading every file.
type Metadata struct {
	Symbol    string          `json:"symbol"`
	TF        types.Timeframe `json:"timeframe"`
	StartTsMs int64           `json:"startTsMs"`
	EndTsMs   int64           `json:"endTsMs"`
	BarCount  int             `json:"barCount"`
}

// Store caches bar arrays loaded from dataDir, one JSON file per
// (symbol, timeframe) named "<symbol>_<tf>.json".
type Store struct {
	mu       sync.RWMutex
	logger   *zap.Logger
	dataDir  string
	cache    map[string][]types.Bar
	metadata map[string]Metadata
}

// NewStore opens (creating if absent) a bar store rooted at dataDir.
func NewStore(logger *zap.Logger, dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, bterrors.Wrap(bterrors.KindDataCoverage, "data", "create data directory", err)
	}
	s := &Store{
		logger:   logger,
		dataDir:  dataDir,
		cache:    make(map[string][]types.Bar),
		metadata: make(map[string]Metadata),
	}
	if err := s.loadMetadata(); err != nil {
		logger.Warn("failed to load bar store metadata", zap.Error(err))
	}
	return s, nil
}

func cacheKey(symbol string, tf types.Timeframe) string {
	return symbol + "_" + string(tf)
}

// LoadBars returns the ordered, deduplicated bar slice for (symbol, tf),
// reading from disk on first access and caching thereafter. It never
// fabricates data: a missing file is a DataCoverage error, per spec.md
// §4.6's "the engine refuses to run without [coverage]" rule — there is
// no wall-clock-seeded sample-data fallback here, since that would
// silently violate run determinism.
func (s *Store) LoadBars(symbol string, tf types.Timeframe) ([]types.Bar, error) {
	key := cacheKey(symbol, tf)

	s.mu.RLock()
	if cached, ok := s.cache[key]; ok {
		s.mu.RUnlock()
		return cached, nil
	}
	s.mu.RUnlock()

	path := filepath.Join(s.dataDir, key+".json")
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, bterrors.New(bterrors.KindDataCoverage, "data", fmt.Sprintf("no bar file for %s %s at %s", symbol, tf, path))
		}
		return nil, bterrors.Wrap(bterrors.KindDataCoverage, "data", "read bar file", err)
	}
	var files []barFile
	if err := json.Unmarshal(raw, &files); err != nil {
		return nil, bterrors.Wrap(bterrors.KindSchema, "data", "parse bar file", err)
	}

	bars := make([]types.Bar, len(files))
	for i, b := range files {
		bars[i] = types.Bar{
			Symbol: symbol, TF: tf,
			TsOpen: b.TsOpen, TsClose: b.TsClose,
			Open: b.Open, High: b.High, Low: b.Low, Close: b.Close, Volume: b.Volume,
		}
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].TsOpen < bars[j].TsOpen })
	bars = dedupeByTsOpen(bars)

	s.mu.Lock()
	s.cache[key] = bars
	if len(bars) > 0 {
		s.metadata[key] = Metadata{
			Symbol: symbol, TF: tf,
			StartTsMs: bars[0].TsOpen, EndTsMs: bars[len(bars)-1].TsClose,
			BarCount: len(bars),
		}
	}
	s.mu.Unlock()
	return bars, nil
}

// dedupeByTsOpen drops any bar whose ts_open repeats the previous bar's,
// keeping the first occurrence — the bar ingest contract (spec.md §6)
// requires strictly increasing ts_open before a FeedStore is built.
func dedupeByTsOpen(bars []types.Bar) []types.Bar {
	if len(bars) == 0 {
		return bars
	}
	out := bars[:1]
	for _, b := range bars[1:] {
		if b.TsOpen == out[len(out)-1].TsOpen {
			continue
		}
		out = append(out, b)
	}
	return out
}

// SaveBars writes bars to disk as the dataset for (symbol, tf) and
// updates the cache and metadata index, used by offline data-prep jobs
// ahead of a run (not by the hot loop itself).
func (s *Store) SaveBars(symbol string, tf types.Timeframe, bars []types.Bar) error {
	out := make([]barFile, len(bars))
	for i, b := range bars {
		out[i] = barFile{TsOpen: b.TsOpen, TsClose: b.TsClose, Open: b.Open, High: b.High, Low: b.Low, Close: b.Close, Volume: b.Volume}
	}
	raw, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return bterrors.Wrap(bterrors.KindSchema, "data", "marshal bar file", err)
	}
	path := filepath.Join(s.dataDir, cacheKey(symbol, tf)+".json")
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return bterrors.Wrap(bterrors.KindDataCoverage, "data", "write bar file", err)
	}

	s.mu.Lock()
	key := cacheKey(symbol, tf)
	s.cache[key] = bars
	if len(bars) > 0 {
		s.metadata[key] = Metadata{Symbol: symbol, TF: tf, StartTsMs: bars[0].TsOpen, EndTsMs: bars[len(bars)-1].TsClose, BarCount: len(bars)}
	}
	s.mu.Unlock()
	return s.saveMetadata()
}

// Coverage returns the cached Metadata for (symbol, tf), including entries
// read from the persisted metadata file when the Store was created, or
// ok=false if there is none.
func (s *Store) Coverage(symbol string, tf types.Timeframe) (Metadata, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.metadata[cacheKey(symbol, tf)]
	return m, ok
}

// Symbols returns the distinct symbols with at least one known dataset,
// sorted for deterministic listing order.
func (s *Store) Symbols() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]bool, len(s.metadata))
	for _, m := range s.metadata {
		seen[m.Symbol] = true
	}
	out := make([]string, 0, len(seen))
	for sym := range seen {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

func (s *Store) metadataPath() string { return filepath.Join(s.dataDir, "metadata.json") }

func (s *Store) loadMetadata() error {
	raw, err := os.ReadFile(s.metadataPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	var m map[string]Metadata
	if err := json.Unmarshal(raw, &m); err != nil {
		return err
	}
	s.metadata = m
	return nil
}

func (s *Store) saveMetadata() error {
	raw, err := json.MarshalIndent(s.metadata, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.metadataPath(), raw, 0o644)
}

// ClearCache drops every in-memory cached dataset; the next LoadBars call
// re-reads from disk.
func (s *Store) ClearCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = make(map[string][]types.Bar)
}
