package artifact

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"

	"github.com/ledgerline/btcore/pkg/types"
)

// canonicalJSON marshals v, then round-trips it through an untyped
// interface{} and marshals again. encoding/json sorts map[string]any keys
// alphabetically on Marshal, so the second pass turns every nested struct
// (now a map) into its key-sorted form — the canonicalization spec.md §6
// requires for every hash input. This is the single place that rule is
// applied; every hash function below goes through it.
func canonicalJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	return json.Marshal(generic)
}

func hashHex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// ShortHash returns the first 12 hex characters of a full SHA-256 hex
// digest, the short form spec.md §6 defines for play_hash display.
func ShortHash(full string) string {
	if len(full) <= 12 {
		return full
	}
	return full[:12]
}

// PlayHash is the SHA-256 of the key-sorted JSON normalization of the
// Play document.
func PlayHash(p *types.Play) (string, error) {
	b, err := canonicalJSON(p)
	if err != nil {
		return "", err
	}
	return hashHex(b), nil
}

// InputHash is the SHA-256 of (symbol set, TF set, start, end, data
// provenance) — the data identity a run was executed against.
func InputHash(in RunInput) (string, error) {
	symbols := append([]string(nil), in.Symbols...)
	sort.Strings(symbols)
	tfs := make([]string, len(in.Timeframes))
	for i, tf := range in.Timeframes {
		tfs[i] = string(tf)
	}
	sort.Strings(tfs)

	payload := map[string]any{
		"symbols":     symbols,
		"timeframes":  tfs,
		"start_ts_ms": in.StartTsMs,
		"end_ts_ms":   in.EndTsMs,
		"provenance":  in.Provenance,
	}
	b, err := canonicalJSON(payload)
	if err != nil {
		return "", err
	}
	return hashHex(b), nil
}

// TradesHash is the SHA-256 of the trades table, sorted by entry
// timestamp then side, with key-sorted JSON rows.
func TradesHash(rows []TradeRow) (string, error) {
	sorted := append([]TradeRow(nil), rows...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].EntryTsMs != sorted[j].EntryTsMs {
			return sorted[i].EntryTsMs < sorted[j].EntryTsMs
		}
		return sorted[i].Side < sorted[j].Side
	})
	b, err := canonicalJSON(sorted)
	if err != nil {
		return "", err
	}
	return hashHex(b), nil
}

// EquityHash is the SHA-256 of the equity table, sorted by ts_ms, with
// key-sorted JSON rows.
func EquityHash(rows []EquityRow) (string, error) {
	sorted := append([]EquityRow(nil), rows...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].TsMs < sorted[j].TsMs })
	b, err := canonicalJSON(sorted)
	if err != nil {
		return "", err
	}
	return hashHex(b), nil
}

// RunHash is the SHA-256 over the 4-tuple (play_hash, input_hash,
// trades_hash, equity_hash), in that declared order.
func RunHash(playHash, inputHash, tradesHash, equityHash string) (string, error) {
	payload := [4]string{playHash, inputHash, tradesHash, equityHash}
	b, err := canonicalJSON(payload)
	if err != nil {
		return "", err
	}
	return hashHex(b), nil
}
