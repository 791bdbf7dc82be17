package data_test

import (
	"testing"

	"go.uber.org/zap"

	"github.com/ledgerline/btcore/internal/data"
	"github.com/ledgerline/btcore/pkg/types"
)

func sampleBars(n int) []types.Bar {
	bars := make([]types.Bar, n)
	price := 100.0
	for i := 0; i < n; i++ {
		ts := int64(i+1) * 60_000
		price += 0.1
		bars[i] = types.Bar{
			Symbol: "BTCUSDT", TF: types.Timeframe1m,
			TsOpen: ts - 60_000, TsClose: ts,
			Open: price, High: price + 1, Low: price - 1, Close: price, Volume: 10,
		}
	}
	return bars
}

func TestSaveAndLoadBarsRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := data.NewStore(zap.NewNop(), dir)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	want := sampleBars(50)
	if err := store.SaveBars("BTCUSDT", types.Timeframe1m, want); err != nil {
		t.Fatalf("SaveBars: %v", err)
	}

	store.ClearCache()
	got, err := store.LoadBars("BTCUSDT", types.Timeframe1m)
	if err != nil {
		t.Fatalf("LoadBars: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("LoadBars returned %d bars, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].TsOpen != want[i].TsOpen || got[i].Close != want[i].Close {
			t.Fatalf("bar %d mismatch: got %+v, want %+v", i, got[i], want[i])
		}
	}

	meta, ok := store.Coverage("BTCUSDT", types.Timeframe1m)
	if !ok {
		t.Fatal("expected coverage metadata after SaveBars")
	}
	if meta.BarCount != len(want) {
		t.Errorf("metadata BarCount = %d, want %d", meta.BarCount, len(want))
	}
}

func TestLoadBarsMissingFileIsDataCoverageError(t *testing.T) {
	store, err := data.NewStore(zap.NewNop(), t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if _, err := store.LoadBars("NOPE", types.Timeframe1h); err == nil {
		t.Fatal("expected an error loading bars for a symbol with no saved dataset")
	}
}

func TestLoadBarsDedupesRepeatedTsOpen(t *testing.T) {
	dir := t.TempDir()
	store, err := data.NewStore(zap.NewNop(), dir)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	bars := sampleBars(5)
	dup := append(append([]types.Bar{}, bars...), bars[2])
	if err := store.SaveBars("BTCUSDT", types.Timeframe1m, dup); err != nil {
		t.Fatalf("SaveBars: %v", err)
	}
	store.ClearCache()
	got, err := store.LoadBars("BTCUSDT", types.Timeframe1m)
	if err != nil {
		t.Fatalf("LoadBars: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("LoadBars returned %d bars, want 5 after dedupe", len(got))
	}
}
