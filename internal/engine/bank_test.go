package engine

import (
	"errors"
	"testing"
)

func TestDepositAndWithdraw(t *testing.T) {
	a := NewAccount("t") // $1,000 cash

	if err := Deposit(a, 0); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("zero deposit: got %v", err)
	}
	if err := Deposit(a, 2_000*CentsPerDollar); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("overdraft deposit: got %v", err)
	}
	if err := Deposit(a, 600*CentsPerDollar); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if a.CashCents != 400*CentsPerDollar || a.SavingsCents != 600*CentsPerDollar {
		t.Fatalf("balances after deposit: cash %d savings %d", a.CashCents, a.SavingsCents)
	}

	if err := Withdraw(a, 700*CentsPerDollar); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("over-withdraw: got %v", err)
	}
	if err := Withdraw(a, 600*CentsPerDollar); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if a.CashCents != 1_000*CentsPerDollar || a.SavingsCents != 0 {
		t.Fatalf("balances after withdraw: cash %d savings %d", a.CashCents, a.SavingsCents)
	}
}

func TestLoanLimit(t *testing.T) {
	a := NewAccount("t")
	if err := TakeLoan(a, a.LoanLimitCents+1); !errors.Is(err, ErrLoanLimitExceeded) {
		t.Fatalf("over-limit loan: got %v", err)
	}
	if err := TakeLoan(a, a.LoanLimitCents); err != nil {
		t.Fatalf("loan at limit: %v", err)
	}
	if err := TakeLoan(a, 1); !errors.Is(err, ErrLoanLimitExceeded) {
		t.Fatalf("loan past limit: got %v", err)
	}
	if a.TotalBorrowedCents != a.LoanLimitCents {
		t.Fatalf("total borrowed got %d want %d", a.TotalBorrowedCents, a.LoanLimitCents)
	}
}

func TestRepayClampsAtOutstanding(t *testing.T) {
	a := NewAccount("t")
	if err := TakeLoan(a, 50*CentsPerDollar); err != nil {
		t.Fatalf("loan: %v", err)
	}
	repaid, err := RepayLoan(a, 100*CentsPerDollar)
	if err != nil {
		t.Fatalf("repay: %v", err)
	}
	if want := 50 * CentsPerDollar; repaid != want {
		t.Fatalf("repaid got %d want %d", repaid, want)
	}
	if a.LoanCents != 0 {
		t.Fatalf("loan not cleared: %d", a.LoanCents)
	}

	// Nothing outstanding: a repayment is a no-op, not an error.
	repaid, err = RepayLoan(a, 10*CentsPerDollar)
	if err != nil || repaid != 0 {
		t.Fatalf("repay with no loan: repaid=%d err=%v", repaid, err)
	}
}

func TestDailyInterest(t *testing.T) {
	a := NewAccount("t")
	a.SavingsCents = 10_000 * CentsPerDollar
	ApplyDailyInterest(a, 1)
	if want := 10_100 * CentsPerDollar; a.SavingsCents != want {
		t.Fatalf("savings got %d want %d", a.SavingsCents, want)
	}

	a = NewAccount("t")
	a.CashCents = 100 * CentsPerDollar
	a.LoanCents = 1_000 * CentsPerDollar
	ApplyDailyInterest(a, 1)
	// 0.5% of $1,000 = $5, charged from cash.
	if want := 95 * CentsPerDollar; a.CashCents != want {
		t.Fatalf("cash got %d want %d", a.CashCents, want)
	}
	if want := 1_000 * CentsPerDollar; a.LoanCents != want {
		t.Fatalf("loan got %d want %d", a.LoanCents, want)
	}
}

func TestInterestShortfallStaysOnLoan(t *testing.T) {
	a := NewAccount("t")
	a.CashCents = 0
	a.SavingsCents = 0
	a.LoanCents = 1_000 * CentsPerDollar
	ApplyDailyInterest(a, 1)
	if want := 1_005 * CentsPerDollar; a.LoanCents != want {
		t.Fatalf("unpaid interest must accrue onto the loan: got %d want %d", a.LoanCents, want)
	}
}

func TestMinerAndYield(t *testing.T) {
	a := NewAccount("t")
	if err := BuyMiner(a, 0.5, 2_000*CentsPerDollar); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("unaffordable miner: got %v", err)
	}
	if err := BuyMiner(a, 0.5, 250*CentsPerDollar); err != nil {
		t.Fatalf("buy miner: %v", err)
	}
	if a.MinerCount != 1 || a.HashrateKH != 0.5 {
		t.Fatalf("rig state: count %d hashrate %v", a.MinerCount, a.HashrateKH)
	}

	mined := MineYield(a, 1, 0.002)
	if mined != 0.001 {
		t.Fatalf("yield got %v want 0.001", mined)
	}
	if a.MinedUnits != 0.001 {
		t.Fatalf("mined balance got %v want 0.001", a.MinedUnits)
	}
}

func TestSellMined(t *testing.T) {
	a := NewAccount("t")
	a.MinedUnits = 1.5
	startCash := a.CashCents

	if _, err := SellMined(a, 2, 100*CentsPerDollar); !errors.Is(err, ErrInsufficientHoldings) {
		t.Fatalf("oversell: got %v", err)
	}
	proceeds, err := SellMined(a, 1.5, 100*CentsPerDollar)
	if err != nil {
		t.Fatalf("sell mined: %v", err)
	}
	if want := 150 * CentsPerDollar; proceeds != want {
		t.Fatalf("proceeds got %d want %d", proceeds, want)
	}
	if a.MinedUnits != 0 {
		t.Fatalf("mined balance not drained: %v", a.MinedUnits)
	}
	if a.CashCents != startCash+proceeds {
		t.Fatalf("cash not credited")
	}
}
