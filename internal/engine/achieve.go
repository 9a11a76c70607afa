package engine

import (
	"log/slog"
	"time"
)

// View is the read-only state an achievement predicate evaluates against.
// Predicates must be pure functions of a View; they never mutate and never
// capture outer state.
type View struct {
	Account  *Account
	Universe *Universe
}

func (v View) NetWorthCents() int64 {
	return NetWorthCents(v.Universe, v.Account)
}

// CategoriesHeld counts distinct asset categories with a non-empty position.
func (v View) CategoriesHeld() int {
	seen := make(map[string]bool)
	for _, sym := range v.Account.HeldSymbols() {
		if a, ok := v.Universe.Asset(sym); ok {
			seen[a.Category] = true
		}
	}
	return len(seen)
}

// Achievement is one registry entry. Requires lists prerequisite keys; they
// are declared metadata only and are not checked during evaluation.
type Achievement struct {
	Key         string   `json:"key"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Points      int      `json:"points"`
	Rarity      string   `json:"rarity"`
	Requires    []string `json:"requires,omitempty"`

	Predicate func(View) bool `json:"-"`
}

// Registry is the fixed achievement table, evaluated through one uniform
// interface. Entries keep their declaration order.
type Registry struct {
	entries []Achievement
	byKey   map[string]int
}

func NewRegistry(entries ...Achievement) *Registry {
	r := &Registry{entries: entries, byKey: make(map[string]int, len(entries))}
	for i, e := range entries {
		r.byKey[e.Key] = i
	}
	return r
}

func (r *Registry) All() []Achievement {
	return r.entries
}

func (r *Registry) Get(key string) (Achievement, bool) {
	i, ok := r.byKey[key]
	if !ok {
		return Achievement{}, false
	}
	return r.entries[i], true
}

// Evaluate scans every not-yet-unlocked entry against the current state.
// A true predicate flips the account's unlocked flag (one-way, set-once
// timestamp) and the entry is included in the returned list. A predicate
// that panics is logged and treated as not yet satisfied for this pass.
func Evaluate(r *Registry, u *Universe, a *Account, now time.Time, log *slog.Logger) []Achievement {
	if log == nil {
		log = slog.Default()
	}
	if a.Unlocked == nil {
		a.Unlocked = make(map[string]int64)
	}
	view := View{Account: a, Universe: u}
	var unlocked []Achievement
	for _, entry := range r.entries {
		if _, done := a.Unlocked[entry.Key]; done {
			continue
		}
		if !safePredicate(entry, view, log) {
			continue
		}
		a.Unlocked[entry.Key] = now.Unix()
		unlocked = append(unlocked, entry)
	}
	return unlocked
}

func safePredicate(entry Achievement, view View, log *slog.Logger) (ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Warn("achievement predicate failed", "key", entry.Key, "panic", rec)
			ok = false
		}
	}()
	if entry.Predicate == nil {
		return false
	}
	return entry.Predicate(view)
}

// DefaultRegistry is the stock achievement catalog.
func DefaultRegistry() *Registry {
	return NewRegistry(
		Achievement{
			Key: "first_trade", Name: "Opening Bell", Category: "trading",
			Description: "Execute your first trade", Points: 5, Rarity: "common",
			Predicate: func(v View) bool { return v.Account.TotalTrades >= 1 },
		},
		Achievement{
			Key: "ten_grand", Name: "Five Figures", Category: "wealth",
			Description: "Reach a net worth of $10,000", Points: 10, Rarity: "common",
			Predicate: func(v View) bool { return v.NetWorthCents() >= 10_000*CentsPerDollar },
		},
		Achievement{
			Key: "six_figures", Name: "Six Figures", Category: "wealth",
			Description: "Reach a net worth of $100,000", Points: 25, Rarity: "rare",
			Requires:  []string{"ten_grand"},
			Predicate: func(v View) bool { return v.NetWorthCents() >= 100_000*CentsPerDollar },
		},
		Achievement{
			Key: "millionaire", Name: "Millionaire", Category: "wealth",
			Description: "Reach a net worth of $1,000,000", Points: 100, Rarity: "epic",
			Requires:  []string{"six_figures"},
			Predicate: func(v View) bool { return v.NetWorthCents() >= 1_000_000*CentsPerDollar },
		},
		Achievement{
			Key: "leveraged", Name: "Other People's Money", Category: "bank",
			Description: "Borrow $5,000 in total", Points: 5, Rarity: "common",
			Predicate: func(v View) bool { return v.Account.TotalBorrowedCents >= 5_000*CentsPerDollar },
		},
		Achievement{
			Key: "debt_free", Name: "Debt Free", Category: "bank",
			Description: "Pay a loan back down to zero", Points: 10, Rarity: "common",
			Predicate: func(v View) bool {
				return v.Account.TotalBorrowedCents > 0 && v.Account.LoanCents == 0
			},
		},
		Achievement{
			Key: "diversified", Name: "Diversified", Category: "trading",
			Description: "Hold assets in three different categories at once", Points: 15, Rarity: "rare",
			Requires:  []string{"first_trade"},
			Predicate: func(v View) bool { return v.CategoriesHeld() >= 3 },
		},
		Achievement{
			Key: "dividend_income", Name: "Passive Income", Category: "dividends",
			Description: "Collect $500 in dividends", Points: 15, Rarity: "rare",
			Predicate: func(v View) bool { return v.Account.TotalDividendCents >= 500*CentsPerDollar },
		},
		Achievement{
			Key: "drip_compounder", Name: "Compounder", Category: "dividends",
			Description: "Reinvest 10 shares through DRIP", Points: 20, Rarity: "rare",
			Predicate: func(v View) bool { return v.Account.TotalDripShares >= 10 },
		},
		Achievement{
			Key: "rig_operator", Name: "Rig Operator", Category: "mining",
			Description: "Own mining hashrate", Points: 5, Rarity: "common",
			Predicate: func(v View) bool { return v.Account.HashrateKH > 0 },
		},
		Achievement{
			Key: "mined_coin", Name: "Fresh Coin", Category: "mining",
			Description: "Mine a whole crypto unit", Points: 20, Rarity: "rare",
			Requires:  []string{"rig_operator"},
			Predicate: func(v View) bool { return v.Account.MinedUnits >= 1 },
		},
		Achievement{
			Key: "big_spender", Name: "Big Spender", Category: "trading",
			Description: "Execute a single trade worth $10,000", Points: 15, Rarity: "rare",
			Predicate: func(v View) bool { return v.Account.LargestTradeCents >= 10_000*CentsPerDollar },
		},
		Achievement{
			Key: "thirty_days", Name: "One Month In", Category: "time",
			Description: "Play for 30 in-game days", Points: 10, Rarity: "common",
			Predicate: func(v View) bool { return v.Account.Day >= 30 },
		},
		Achievement{
			Key: "one_year", Name: "Annual Report", Category: "time",
			Description: "Play for 365 in-game days", Points: 50, Rarity: "epic",
			Requires:  []string{"thirty_days"},
			Predicate: func(v View) bool { return v.Account.Day >= 365 },
		},
	)
}
