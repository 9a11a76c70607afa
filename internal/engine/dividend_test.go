package engine

import "testing"

func dividendUniverse(drip bool) *Universe {
	return NewUniverse(&Asset{
		Symbol:                "YIELD",
		Name:                  "Yield Partners",
		Category:              "stock",
		PriceCents:            110 * CentsPerDollar,
		DividendPerShareCents: 30 * CentsPerDollar,
		DividendIntervalDays:  5,
		NextDividendDay:       5,
		DRIP:                  drip,
	})
}

func TestDripReinvestsWholeSharesRemainderToCash(t *testing.T) {
	u := dividendUniverse(true)
	a := NewAccount("t")
	a.Positions["YIELD"] = &Position{Quantity: 10, AvgCostCents: 100 * CentsPerDollar}
	startCash := a.CashCents

	events := PayDividends(u, a, 5, nil)
	if len(events) != 1 {
		t.Fatalf("events got %d want 1", len(events))
	}
	evt := events[0]

	// 10 shares x $30 = $300; at $110/share that is 2 whole shares with $80 left.
	if want := 300 * CentsPerDollar; evt.AmountCents != want {
		t.Fatalf("dividend got %d want %d", evt.AmountCents, want)
	}
	if evt.DripShares != 2 {
		t.Fatalf("drip shares got %d want 2", evt.DripShares)
	}
	if want := 80 * CentsPerDollar; evt.LeftoverCents != want {
		t.Fatalf("leftover got %d want %d", evt.LeftoverCents, want)
	}
	if a.Positions["YIELD"].Quantity != 12 {
		t.Fatalf("quantity got %d want 12", a.Positions["YIELD"].Quantity)
	}
	if got, want := a.CashCents-startCash, 80*CentsPerDollar; got != want {
		t.Fatalf("cash delta got %d want %d", got, want)
	}
	if want := 300 * CentsPerDollar; a.TotalDividendCents != want {
		t.Fatalf("total dividends got %d want %d", a.TotalDividendCents, want)
	}
	if a.TotalDripShares != 2 {
		t.Fatalf("total drip shares got %d want 2", a.TotalDripShares)
	}
}

func TestDividendPaidToCashWithoutDrip(t *testing.T) {
	u := dividendUniverse(false)
	a := NewAccount("t")
	a.Positions["YIELD"] = &Position{Quantity: 4, AvgCostCents: 100 * CentsPerDollar}
	startCash := a.CashCents

	events := PayDividends(u, a, 5, nil)
	if len(events) != 1 {
		t.Fatalf("events got %d want 1", len(events))
	}
	if got, want := a.CashCents-startCash, 120*CentsPerDollar; got != want {
		t.Fatalf("cash delta got %d want %d", got, want)
	}
	if a.Positions["YIELD"].Quantity != 4 {
		t.Fatalf("cash dividend must not change the position")
	}
}

func TestNoHoldingsNoDividend(t *testing.T) {
	u := dividendUniverse(true)
	a := NewAccount("t")
	if events := PayDividends(u, a, 5, nil); len(events) != 0 {
		t.Fatalf("expected no events, got %d", len(events))
	}
}

func TestPayDividendsLeavesScheduleAlone(t *testing.T) {
	u := dividendUniverse(false)
	a := NewAccount("t")
	a.Positions["YIELD"] = &Position{Quantity: 1, AvgCostCents: 100 * CentsPerDollar}

	PayDividends(u, a, 5, nil)
	if got := u.Assets["YIELD"].NextDividendDay; got != 5 {
		t.Fatalf("schedule moved during payment: got %d want 5", got)
	}
}

func TestAdvanceSchedulesMovesOneIntervalFromDueDay(t *testing.T) {
	u := dividendUniverse(false)

	// Processing resumes at day 12 after missed due days; the schedule moves
	// one interval from the processed day, with no catch-up payments.
	AdvanceSchedules(u, 12)
	if got := u.Assets["YIELD"].NextDividendDay; got != 17 {
		t.Fatalf("next dividend day got %d want 17", got)
	}

	// Not due yet: day 16 is before 17, nothing moves.
	AdvanceSchedules(u, 16)
	if got := u.Assets["YIELD"].NextDividendDay; got != 17 {
		t.Fatalf("schedule moved while not due: got %d want 17", got)
	}
}

func TestProcessDayPaysThenAdvances(t *testing.T) {
	u := dividendUniverse(false)
	a := NewAccount("t")
	a.Positions["YIELD"] = &Position{Quantity: 2, AvgCostCents: 100 * CentsPerDollar}

	events := ProcessDay(u, a, 5, nil)
	if len(events) != 1 {
		t.Fatalf("events got %d want 1", len(events))
	}
	if got := u.Assets["YIELD"].NextDividendDay; got != 10 {
		t.Fatalf("next dividend day got %d want 10", got)
	}

	// Same day again: schedule already advanced, nothing due.
	if events := ProcessDay(u, a, 5, nil); len(events) != 0 {
		t.Fatalf("double payment on one day: %d events", len(events))
	}
}
