package runner

import (
	"github.com/ledgerline/btcore/internal/feed"
	"github.com/ledgerline/btcore/pkg/types"
)

// storeHandle wraps a feed.Store so newStoreHandle's error path stays a
// single call site across the role loop in Run.
type storeHandle struct {
	store *feed.Store
}

func newStoreHandle(bars []types.Bar, tf types.Timeframe) (*storeHandle, error) {
	store, err := feed.FromBars(bars, tf)
	if err != nil {
		return nil, err
	}
	return &storeHandle{store: store}, nil
}
