package engine

import "testing"

func volatileAsset(symbol string, priceCents, floorCents int64) *Asset {
	return &Asset{
		Symbol:     symbol,
		Category:   "stock",
		PriceCents: priceCents,
		FloorCents: floorCents,
		Volatility: Volatility{Kind: DistUniform, Param: 0.9},
	}
}

func TestAdvanceRespectsFloor(t *testing.T) {
	m := NewMarketWithSeed(42)
	a := volatileAsset("NIMBUS", 50*CentsPerDollar, 40*CentsPerDollar)
	for i := 0; i < 500; i++ {
		got := m.Advance(a)
		if got < a.FloorCents {
			t.Fatalf("tick %d: price %d below floor %d", i, got, a.FloorCents)
		}
	}
}

func TestAdvanceClampsAtOneCent(t *testing.T) {
	m := NewMarketWithSeed(7)
	a := volatileAsset("DUST", 3, 0)
	for i := 0; i < 500; i++ {
		if got := m.Advance(a); got < 1 {
			t.Fatalf("tick %d: price decayed out of play: %d", i, got)
		}
	}
}

func TestSeededMarketIsDeterministic(t *testing.T) {
	run := func() []int64 {
		m := NewMarketWithSeed(1234)
		u := NewUniverse(
			volatileAsset("NIMBUS", 100*CentsPerDollar, 0),
			volatileAsset("COBOLT", 40*CentsPerDollar, 0),
		)
		for i := 0; i < 100; i++ {
			m.AdvanceAll(u)
		}
		out := make([]int64, 0, len(u.Assets))
		for _, sym := range u.Symbols() {
			out = append(out, u.Assets[sym].PriceCents)
		}
		return out
	}
	first, second := run(), run()
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("price path diverged at %d: %d vs %d", i, first[i], second[i])
		}
	}
}

func TestHistoryIsCapped(t *testing.T) {
	m := NewMarketWithSeed(9)
	a := volatileAsset("NIMBUS", 100*CentsPerDollar, 0)
	for i := 0; i < MaxHistoryRetained+50; i++ {
		m.Advance(a)
	}
	if len(a.History) != MaxHistoryRetained {
		t.Fatalf("history length got %d want %d", len(a.History), MaxHistoryRetained)
	}
}

func TestRepriceFundTracksComponents(t *testing.T) {
	comp := volatileAsset("NIMBUS", 100*CentsPerDollar, 0)
	fund := &Asset{
		Symbol:     "INDEX",
		Category:   "fund",
		PriceCents: FundBaseNAVCents,
		Weights:    map[string]float64{"NIMBUS": 1.0},
	}
	u := NewUniverse(comp, fund)

	comp.PriceCents = 200 * CentsPerDollar
	got := RepriceFund(u, fund)
	if want := 2 * FundBaseNAVCents; got != want {
		t.Fatalf("fund price got %d want %d", got, want)
	}

	comp.PriceCents = 50 * CentsPerDollar
	got = RepriceFund(u, fund)
	if want := FundBaseNAVCents / 2; got != want {
		t.Fatalf("fund price got %d want %d", got, want)
	}
}
