package engine

import (
	mathrand "math/rand"
	"sync"
	"time"
)

// Market draws price perturbations. It is the only source of randomness in
// the engine; sharing one instance between goroutines is safe.
type Market struct {
	mu   sync.Mutex
	rand *mathrand.Rand
}

func NewMarket() *Market {
	return NewMarketWithSeed(time.Now().UnixNano())
}

func NewMarketWithSeed(seed int64) *Market {
	return &Market{rand: mathrand.New(mathrand.NewSource(seed))}
}

func (m *Market) draw(v Volatility) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch v.Kind {
	case DistGaussian:
		return m.rand.NormFloat64() * v.Param
	default:
		return (2*m.rand.Float64() - 1) * v.Param
	}
}

// Advance computes the asset's next price: draw a perturbation, scale the
// current price, round to cents and clamp at the configured floor (1 cent
// when none is configured, so an asset can never decay out of play).
// The new price is appended to the asset's history.
func (m *Market) Advance(a *Asset) int64 {
	eps := m.draw(a.Volatility)
	candidate := roundCents(float64(a.PriceCents) * (1 + eps))
	floor := a.FloorCents
	if floor <= 0 {
		floor = 1
	}
	if candidate < floor {
		candidate = floor
	}
	a.PriceCents = candidate
	a.appendHistory(candidate)
	return candidate
}

// AdvanceAll ticks every non-fund asset, then reprices funds from the new
// component prices. Iteration is in sorted symbol order so a seeded market
// produces the same path on every run.
func (m *Market) AdvanceAll(u *Universe) {
	for _, sym := range u.Symbols() {
		if a := u.Assets[sym]; !a.IsFund() {
			m.Advance(a)
		}
	}
	for _, sym := range u.Symbols() {
		if a := u.Assets[sym]; a.IsFund() {
			RepriceFund(u, a)
		}
	}
}

// RepriceFund sets a fund's price to the base NAV scaled by the weighted
// ratio of component prices to their captured base prices.
func RepriceFund(u *Universe, f *Asset) int64 {
	ratio := 0.0
	for sym, w := range f.Weights {
		base := f.BaseCents[sym]
		if base <= 0 {
			continue
		}
		ratio += w * float64(u.PriceCents(sym)) / float64(base)
	}
	if ratio <= 0 {
		return f.PriceCents
	}
	next := roundCents(float64(FundBaseNAVCents) * ratio)
	if next < 1 {
		next = 1
	}
	f.PriceCents = next
	f.appendHistory(next)
	return next
}
