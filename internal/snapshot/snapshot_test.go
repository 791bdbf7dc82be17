package snapshot_test

import (
	"testing"

	"github.com/ledgerline/btcore/internal/feed"
	"github.com/ledgerline/btcore/internal/snapshot"
	"github.com/ledgerline/btcore/pkg/types"
)

func buildStore(t *testing.T, tf types.Timeframe, n int) *feed.Store {
	t.Helper()
	durMs := tf.Millis()
	bars := make([]types.Bar, n)
	for i := 0; i < n; i++ {
		tsOpen := int64(i) * durMs
		bars[i] = types.Bar{
			Symbol: "BTCUSDT", TF: tf,
			TsOpen: tsOpen, TsClose: tsOpen + durMs,
			Open: 100 + float64(i), High: 101 + float64(i), Low: 99 + float64(i),
			Close: 100 + float64(i), Volume: 10,
		}
	}
	s, err := feed.FromBars(bars, tf)
	if err != nil {
		t.Fatalf("FromBars: %v", err)
	}
	return s
}

func TestSnapshotGetPriceAndOffset(t *testing.T) {
	store := buildStore(t, types.Timeframe1m, 10)
	exec := snapshot.TFContext{Feed: store, CurrentIdx: 5}
	snap, err := snapshot.NewFromExec(exec, nil, nil)
	if err != nil {
		t.Fatalf("NewFromExec: %v", err)
	}
	got, err := snap.Get("price.exec.close", 0)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != 105 {
		t.Errorf("Get(close, 0) = %v, want 105", got)
	}
	got, err = snap.Get("price.exec.close", 1)
	if err != nil {
		t.Fatalf("Get offset: %v", err)
	}
	if got != 104 {
		t.Errorf("Get(close, 1) = %v, want 104", got)
	}
}

func TestSnapshotIndexOutOfRange(t *testing.T) {
	store := buildStore(t, types.Timeframe1m, 10)
	exec := snapshot.TFContext{Feed: store, CurrentIdx: 1}
	snap, err := snapshot.NewFromExec(exec, nil, nil)
	if err != nil {
		t.Fatalf("NewFromExec: %v", err)
	}
	if _, err := snap.Get("price.exec.close", 5); err == nil {
		t.Fatal("expected out-of-range error, got nil")
	}
}

func TestSnapshotMidStaleness(t *testing.T) {
	execStore := buildStore(t, types.Timeframe1m, 20)
	midStore := buildStore(t, types.Timeframe5m, 3)
	exec := snapshot.TFContext{Feed: execStore, CurrentIdx: 19}
	mid := &snapshot.TFContext{Feed: midStore, CurrentIdx: 0}
	snap, err := snapshot.NewFromExec(exec, mid, nil)
	if err != nil {
		t.Fatalf("NewFromExec: %v", err)
	}
	if !snap.Staleness(types.RoleMid) {
		t.Error("expected mid to be stale when its last bar trails the exec bar")
	}
	if snap.Staleness(types.RoleExec) {
		t.Error("exec must never be stale")
	}
}

func TestSnapshotMissingFeature(t *testing.T) {
	store := buildStore(t, types.Timeframe1m, 5)
	exec := snapshot.TFContext{Feed: store, CurrentIdx: 3}
	snap, err := snapshot.NewFromExec(exec, nil, nil)
	if err != nil {
		t.Fatalf("NewFromExec: %v", err)
	}
	if _, err := snap.Get("indicator.exec.ema_20", 0); err == nil {
		t.Fatal("expected FeatureMissing-style error, got nil")
	}
}
