package engine

import "sort"

// DistKind selects the distribution a perturbation is drawn from.
type DistKind string

const (
	DistUniform  DistKind = "uniform"  // symmetric band: uniform in [-Param, +Param]
	DistGaussian DistKind = "gaussian" // Gaussian with sigma = Param
)

// Volatility is an asset's per-tick perturbation profile.
type Volatility struct {
	Kind  DistKind
	Param float64
}

// Asset is one tradable instrument. Symbol, Name, Category, Volatility and
// the fund composition are fixed at startup; price, history and the dividend
// schedule mutate as days advance.
type Asset struct {
	Symbol   string
	Name     string
	Category string

	PriceCents int64
	FloorCents int64 // 0 means no configured floor; the model still clamps at 1 cent
	Volatility Volatility
	History    []int64

	DividendPerShareCents int64
	DividendIntervalDays  int
	NextDividendDay       int
	DRIP                  bool

	// Fund composition: component symbol -> weight. BaseCents holds the
	// component prices captured when the universe was built; fund price is
	// the base NAV scaled by the weighted price ratio.
	Weights   map[string]float64
	BaseCents map[string]int64
}

func (a *Asset) IsFund() bool {
	return len(a.Weights) > 0
}

func (a *Asset) appendHistory(priceCents int64) {
	a.History = append(a.History, priceCents)
	if len(a.History) > MaxHistoryRetained {
		a.History = a.History[len(a.History)-MaxHistoryRetained:]
	}
}

// Universe is the full asset table plus the market day counter. In the
// embedded deployment it is part of the single save; in the networked
// deployment it is shared store state advanced only by the worker.
type Universe struct {
	Day    int
	Assets map[string]*Asset
}

func NewUniverse(assets ...*Asset) *Universe {
	u := &Universe{Assets: make(map[string]*Asset, len(assets))}
	for _, a := range assets {
		u.Assets[a.Symbol] = a
		if len(a.History) == 0 {
			a.History = []int64{a.PriceCents}
		}
	}
	for _, a := range u.Assets {
		if a.IsFund() && len(a.BaseCents) == 0 {
			a.BaseCents = make(map[string]int64, len(a.Weights))
			for sym := range a.Weights {
				if comp, ok := u.Assets[sym]; ok {
					a.BaseCents[sym] = comp.PriceCents
				}
			}
		}
	}
	return u
}

func (u *Universe) Asset(symbol string) (*Asset, bool) {
	a, ok := u.Assets[symbol]
	return a, ok
}

func (u *Universe) PriceCents(symbol string) int64 {
	if a, ok := u.Assets[symbol]; ok {
		return a.PriceCents
	}
	return 0
}

// Symbols returns all symbols in stable sorted order so that iteration order
// never depends on map layout.
func (u *Universe) Symbols() []string {
	out := make([]string, 0, len(u.Assets))
	for sym := range u.Assets {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// Clone deep-copies the universe. Import overlays snapshots onto a clone of
// the configured defaults so asset definitions stay immutable.
func (u *Universe) Clone() *Universe {
	out := &Universe{Day: u.Day, Assets: make(map[string]*Asset, len(u.Assets))}
	for sym, a := range u.Assets {
		cp := *a
		cp.History = append([]int64(nil), a.History...)
		if a.Weights != nil {
			cp.Weights = make(map[string]float64, len(a.Weights))
			for k, v := range a.Weights {
				cp.Weights[k] = v
			}
		}
		if a.BaseCents != nil {
			cp.BaseCents = make(map[string]int64, len(a.BaseCents))
			for k, v := range a.BaseCents {
				cp.BaseCents[k] = v
			}
		}
		out.Assets[sym] = &cp
	}
	return out
}
