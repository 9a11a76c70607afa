package engine

import (
	"testing"
	"time"
)

func TestNetWorthBoundary(t *testing.T) {
	u := NewUniverse()
	r := DefaultRegistry()
	now := time.Now()

	a := NewAccount("t")
	a.CashCents = 10_000*CentsPerDollar - 1 // $9,999.99
	Evaluate(r, u, a, now, nil)
	if _, ok := a.Unlocked["ten_grand"]; ok {
		t.Fatalf("unlocked one cent early")
	}

	a.CashCents = 10_000 * CentsPerDollar
	unlocked := Evaluate(r, u, a, now, nil)
	if _, ok := a.Unlocked["ten_grand"]; !ok {
		t.Fatalf("expected ten_grand at exactly $10,000")
	}
	found := false
	for _, ach := range unlocked {
		if ach.Key == "ten_grand" {
			found = true
		}
	}
	if !found {
		t.Fatalf("ten_grand missing from returned unlocks")
	}
}

func TestUnlockIsMonotonic(t *testing.T) {
	u := NewUniverse()
	r := DefaultRegistry()

	a := NewAccount("t")
	a.CashCents = 10_000 * CentsPerDollar
	first := time.Unix(1_700_000_000, 0)
	Evaluate(r, u, a, first, nil)
	ts := a.Unlocked["ten_grand"]
	if ts != first.Unix() {
		t.Fatalf("unlock timestamp got %d want %d", ts, first.Unix())
	}

	// Net worth falls back below the threshold: the unlock stays, the
	// timestamp never moves, and it is not reported again.
	a.CashCents = 5 * CentsPerDollar
	again := Evaluate(r, u, a, first.Add(time.Hour), nil)
	for _, ach := range again {
		if ach.Key == "ten_grand" {
			t.Fatalf("ten_grand reported twice")
		}
	}
	if a.Unlocked["ten_grand"] != ts {
		t.Fatalf("unlock timestamp changed on re-evaluation")
	}
}

func TestPanickingPredicateIsSkipped(t *testing.T) {
	r := NewRegistry(
		Achievement{
			Key: "broken", Name: "Broken",
			Predicate: func(View) bool { panic("boom") },
		},
		Achievement{
			Key: "fine", Name: "Fine",
			Predicate: func(v View) bool { return v.Account.TotalTrades >= 1 },
		},
	)
	u := NewUniverse()
	a := NewAccount("t")
	a.TotalTrades = 1

	unlocked := Evaluate(r, u, a, time.Now(), nil)
	if len(unlocked) != 1 || unlocked[0].Key != "fine" {
		t.Fatalf("expected only the healthy entry to unlock, got %v", unlocked)
	}
	if _, ok := a.Unlocked["broken"]; ok {
		t.Fatalf("panicking predicate must count as not satisfied")
	}
}

func TestNilPredicateNeverUnlocks(t *testing.T) {
	r := NewRegistry(Achievement{Key: "ghost", Name: "Ghost"})
	a := NewAccount("t")
	if unlocked := Evaluate(r, NewUniverse(), a, time.Now(), nil); len(unlocked) != 0 {
		t.Fatalf("nil predicate unlocked: %v", unlocked)
	}
}

func TestDebtFreeRequiresHavingBorrowed(t *testing.T) {
	u := NewUniverse()
	r := DefaultRegistry()

	fresh := NewAccount("fresh")
	Evaluate(r, u, fresh, time.Now(), nil)
	if _, ok := fresh.Unlocked["debt_free"]; ok {
		t.Fatalf("account that never borrowed must not be debt_free")
	}

	repaid := NewAccount("repaid")
	if err := TakeLoan(repaid, 100*CentsPerDollar); err != nil {
		t.Fatalf("loan: %v", err)
	}
	if _, err := RepayLoan(repaid, 100*CentsPerDollar); err != nil {
		t.Fatalf("repay: %v", err)
	}
	Evaluate(r, u, repaid, time.Now(), nil)
	if _, ok := repaid.Unlocked["debt_free"]; !ok {
		t.Fatalf("expected debt_free after paying the loan to zero")
	}
}

func TestDiversifiedCountsCategories(t *testing.T) {
	u := NewUniverse(
		&Asset{Symbol: "NIMBUS", Category: "stock", PriceCents: 100},
		&Asset{Symbol: "GLINT", Category: "commodity", PriceCents: 100},
		&Asset{Symbol: "BITZ", Category: "crypto", PriceCents: 100},
	)
	a := NewAccount("t")
	a.Positions["NIMBUS"] = &Position{Quantity: 1, AvgCostCents: 100}
	a.Positions["GLINT"] = &Position{Quantity: 1, AvgCostCents: 100}

	v := View{Account: a, Universe: u}
	if got := v.CategoriesHeld(); got != 2 {
		t.Fatalf("categories got %d want 2", got)
	}
	a.Positions["BITZ"] = &Position{Quantity: 1, AvgCostCents: 100}
	if got := v.CategoriesHeld(); got != 3 {
		t.Fatalf("categories got %d want 3", got)
	}
}
