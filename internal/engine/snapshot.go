package engine

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

// Snapshot is the interchange format between deployment forms: a flat
// mapping of dotted keys to primitive values only. Missing keys are
// defaulted on import and unknown keys ignored, so either form can read a
// snapshot written by the other, before or after a schema change.
type Snapshot map[string]any

// ExportAccount flattens an account into primitives. Transactions are
// encoded one per key ("tx.N" = "day|cents|description"); anything that
// cannot be represented is dropped with a warning, never an error.
func ExportAccount(a *Account, log *slog.Logger) Snapshot {
	if log == nil {
		log = slog.Default()
	}
	s := Snapshot{
		"id":              a.ID,
		"day":             int64(a.Day),
		"cash":            a.CashCents,
		"savings":         a.SavingsCents,
		"loan":            a.LoanCents,
		"loan_limit":      a.LoanLimitCents,
		"loan_rate":       a.LoanRate,
		"deposit_rate":    a.DepositRate,
		"mined_units":     a.MinedUnits,
		"hashrate_kh":     a.HashrateKH,
		"miner_count":     a.MinerCount,
		"total_trades":    a.TotalTrades,
		"total_dividends": a.TotalDividendCents,
		"total_drip":      a.TotalDripShares,
		"total_borrowed":  a.TotalBorrowedCents,
		"largest_trade":   a.LargestTradeCents,
	}
	for sym, pos := range a.Positions {
		if pos.Quantity <= 0 {
			log.Warn("empty position dropped from snapshot", "symbol", sym)
			continue
		}
		s["pos."+sym+".qty"] = pos.Quantity
		s["pos."+sym+".avg_cost"] = pos.AvgCostCents
	}
	for key, ts := range a.Unlocked {
		s["ach."+key] = ts
	}
	for i, tx := range a.TxLog {
		if strings.Contains(tx.Description, "|") {
			log.Warn("transaction description not representable, dropped", "day", tx.Day)
			continue
		}
		s[fmt.Sprintf("tx.%d", i)] = fmt.Sprintf("%d|%d|%s", tx.Day, tx.AmountCents, tx.Description)
	}
	return s
}

// ExportUniverse flattens the mutable asset state: prices, schedules and
// history. Asset definitions (volatility, weights) are process-start
// configuration and never travel in snapshots.
func ExportUniverse(u *Universe, log *slog.Logger) Snapshot {
	s := Snapshot{"universe.day": int64(u.Day)}
	for _, sym := range u.Symbols() {
		a := u.Assets[sym]
		s["asset."+sym+".price"] = a.PriceCents
		s["asset."+sym+".next_dividend_day"] = int64(a.NextDividendDay)
		s["asset."+sym+".history"] = encodeHistory(a.History)
	}
	return s
}

// Export merges account and universe state into one snapshot, the unit of
// persistence for the embedded form and of migration between forms.
func Export(a *Account, u *Universe, log *slog.Logger) Snapshot {
	s := ExportAccount(a, log)
	for k, v := range ExportUniverse(u, log) {
		s[k] = v
	}
	return s
}

// ImportAccount rehydrates an account. Missing keys keep their defaults and
// keys this build does not recognize are ignored.
func ImportAccount(s Snapshot) *Account {
	a := NewAccount(asString(s["id"], ""))
	a.Day = int(asInt64(s["day"], 0))
	a.CashCents = asInt64(s["cash"], a.CashCents)
	a.SavingsCents = asInt64(s["savings"], 0)
	a.LoanCents = asInt64(s["loan"], 0)
	a.LoanLimitCents = asInt64(s["loan_limit"], a.LoanLimitCents)
	a.LoanRate = asFloat(s["loan_rate"], a.LoanRate)
	a.DepositRate = asFloat(s["deposit_rate"], a.DepositRate)
	a.MinedUnits = asFloat(s["mined_units"], 0)
	a.HashrateKH = asFloat(s["hashrate_kh"], 0)
	a.MinerCount = asInt64(s["miner_count"], 0)
	a.TotalTrades = asInt64(s["total_trades"], 0)
	a.TotalDividendCents = asInt64(s["total_dividends"], 0)
	a.TotalDripShares = asInt64(s["total_drip"], 0)
	a.TotalBorrowedCents = asInt64(s["total_borrowed"], 0)
	a.LargestTradeCents = asInt64(s["largest_trade"], 0)

	txs := make(map[int]Transaction)
	for key, val := range s {
		switch {
		case strings.HasPrefix(key, "pos.") && strings.HasSuffix(key, ".qty"):
			sym := strings.TrimSuffix(strings.TrimPrefix(key, "pos."), ".qty")
			qty := asInt64(val, 0)
			if qty <= 0 {
				continue
			}
			a.Positions[sym] = &Position{
				Quantity:     qty,
				AvgCostCents: asInt64(s["pos."+sym+".avg_cost"], 0),
			}
		case strings.HasPrefix(key, "ach."):
			a.Unlocked[strings.TrimPrefix(key, "ach.")] = asInt64(val, 0)
		case strings.HasPrefix(key, "tx."):
			idx, err := strconv.Atoi(strings.TrimPrefix(key, "tx."))
			if err != nil {
				continue
			}
			if tx, ok := decodeTx(asString(val, "")); ok {
				txs[idx] = tx
			}
		}
	}
	for i := 0; i < len(s); i++ {
		if tx, ok := txs[i]; ok {
			a.TxLog = append(a.TxLog, tx)
		}
	}
	return a
}

// ImportUniverse overlays snapshot state onto a clone of the configured
// defaults, so assets the snapshot does not mention keep their defaults and
// snapshot assets this build no longer defines are ignored.
func ImportUniverse(s Snapshot, defs *Universe) *Universe {
	u := defs.Clone()
	u.Day = int(asInt64(s["universe.day"], int64(u.Day)))
	for _, sym := range u.Symbols() {
		a := u.Assets[sym]
		if v, ok := s["asset."+sym+".price"]; ok {
			if p := asInt64(v, a.PriceCents); p > 0 {
				a.PriceCents = p
			}
		}
		if v, ok := s["asset."+sym+".next_dividend_day"]; ok {
			a.NextDividendDay = int(asInt64(v, int64(a.NextDividendDay)))
		}
		if v, ok := s["asset."+sym+".history"]; ok {
			if h := decodeHistory(asString(v, "")); len(h) > 0 {
				a.History = h
			}
		}
	}
	return u
}

// Import splits a merged snapshot back into account and universe state.
func Import(s Snapshot, defs *Universe) (*Account, *Universe) {
	return ImportAccount(s), ImportUniverse(s, defs)
}

// MarshalSnapshot and UnmarshalSnapshot are the canonical wire encoding.
func MarshalSnapshot(s Snapshot) ([]byte, error) {
	return json.Marshal(s)
}

func UnmarshalSnapshot(raw []byte) (Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return s, nil
}

func encodeHistory(history []int64) string {
	parts := make([]string, len(history))
	for i, v := range history {
		parts[i] = strconv.FormatInt(v, 10)
	}
	return strings.Join(parts, ",")
}

func decodeHistory(raw string) []int64 {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return nil
		}
		out = append(out, v)
	}
	return out
}

func decodeTx(raw string) (Transaction, bool) {
	parts := strings.SplitN(raw, "|", 3)
	if len(parts) != 3 {
		return Transaction{}, false
	}
	day, err1 := strconv.Atoi(parts[0])
	amount, err2 := strconv.ParseInt(parts[1], 10, 64)
	if err1 != nil || err2 != nil {
		return Transaction{}, false
	}
	return Transaction{Day: day, AmountCents: amount, Description: parts[2]}, true
}

// Snapshot values arrive as int64/float64/string in memory but as float64 or
// json.Number after a JSON round trip; the coercers accept all of them.
func asInt64(v any, fallback int64) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case float64:
		return int64(t)
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n
		}
	case string:
		if n, err := strconv.ParseInt(t, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func asFloat(v any, fallback float64) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case int64:
		return float64(t)
	case int:
		return float64(t)
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return f
		}
	case string:
		if f, err := strconv.ParseFloat(t, 64); err == nil {
			return f
		}
	}
	return fallback
}

func asString(v any, fallback string) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fallback
}
