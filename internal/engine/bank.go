package engine

import (
	"fmt"
	"math"
)

// Deposit moves cash into the interest-bearing savings balance.
func Deposit(a *Account, amountCents int64) error {
	if amountCents <= 0 {
		return ErrInvalidAmount
	}
	if amountCents > a.CashCents {
		return fmt.Errorf("%w: need %s, have %s", ErrInsufficientFunds, FormatCents(amountCents), FormatCents(a.CashCents))
	}
	a.CashCents -= amountCents
	a.SavingsCents += amountCents
	a.appendTx(a.Day, fmt.Sprintf("deposited %s to savings", FormatCents(amountCents)), -amountCents)
	return nil
}

func Withdraw(a *Account, amountCents int64) error {
	if amountCents <= 0 {
		return ErrInvalidAmount
	}
	if amountCents > a.SavingsCents {
		return fmt.Errorf("%w: savings balance is %s", ErrInsufficientFunds, FormatCents(a.SavingsCents))
	}
	a.SavingsCents -= amountCents
	a.CashCents += amountCents
	a.appendTx(a.Day, fmt.Sprintf("withdrew %s from savings", FormatCents(amountCents)), amountCents)
	return nil
}

// TakeLoan credits cash with a new loan, bounded by the account's loan limit
// on total outstanding principal.
func TakeLoan(a *Account, amountCents int64) error {
	if amountCents <= 0 {
		return ErrInvalidAmount
	}
	if a.LoanCents+amountCents > a.LoanLimitCents {
		return fmt.Errorf("%w: %s more available", ErrLoanLimitExceeded, FormatCents(a.LoanLimitCents-a.LoanCents))
	}
	a.LoanCents += amountCents
	a.CashCents += amountCents
	a.TotalBorrowedCents += amountCents
	a.appendTx(a.Day, fmt.Sprintf("took loan of %s", FormatCents(amountCents)), amountCents)
	return nil
}

// RepayLoan pays down the loan from cash, clamped at the outstanding
// balance so an overpayment never drives the loan negative.
func RepayLoan(a *Account, amountCents int64) (int64, error) {
	if amountCents <= 0 {
		return 0, ErrInvalidAmount
	}
	if amountCents > a.LoanCents {
		amountCents = a.LoanCents
	}
	if amountCents == 0 {
		return 0, nil
	}
	if amountCents > a.CashCents {
		return 0, fmt.Errorf("%w: need %s, have %s", ErrInsufficientFunds, FormatCents(amountCents), FormatCents(a.CashCents))
	}
	a.CashCents -= amountCents
	a.LoanCents -= amountCents
	a.appendTx(a.Day, fmt.Sprintf("repaid %s of loan", FormatCents(amountCents)), -amountCents)
	return amountCents, nil
}

// ApplyDailyInterest credits deposit interest on savings and accrues loan
// interest onto the loan, charging it against cash first and savings when
// cash falls short. Interest the account cannot cover stays on the loan.
func ApplyDailyInterest(a *Account, day int) {
	if a.SavingsCents > 0 && a.DepositRate > 0 {
		interest := int64(math.Round(float64(a.SavingsCents) * a.DepositRate))
		if interest > 0 {
			a.SavingsCents += interest
			a.appendTx(day, fmt.Sprintf("earned %s deposit interest", FormatCents(interest)), interest)
		}
	}
	if a.LoanCents > 0 && a.LoanRate > 0 {
		interest := int64(math.Round(float64(a.LoanCents) * a.LoanRate))
		if interest <= 0 {
			return
		}
		a.LoanCents += interest
		switch {
		case a.CashCents >= interest:
			a.CashCents -= interest
			a.LoanCents -= interest
		case a.CashCents+a.SavingsCents >= interest:
			needed := interest - a.CashCents
			a.CashCents = 0
			a.SavingsCents -= needed
			a.LoanCents -= interest
		}
		a.appendTx(day, fmt.Sprintf("accrued %s loan interest", FormatCents(interest)), -interest)
	}
}

// BuyMiner debits cash and adds hashrate. Each kh of capacity mines crypto
// units daily into the account's mined balance.
func BuyMiner(a *Account, kh float64, priceCents int64) error {
	if kh <= 0 || priceCents <= 0 {
		return ErrInvalidAmount
	}
	if priceCents > a.CashCents {
		return fmt.Errorf("%w: miner costs %s", ErrInsufficientFunds, FormatCents(priceCents))
	}
	a.CashCents -= priceCents
	a.MinerCount++
	a.HashrateKH += kh
	a.appendTx(a.Day, fmt.Sprintf("bought miner (%.2f kh) for %s", kh, FormatCents(priceCents)), -priceCents)
	return nil
}

// MineYield adds the daily mined output for the account's hashrate.
func MineYield(a *Account, day int, ratePerKH float64) float64 {
	if a.HashrateKH <= 0 || ratePerKH <= 0 {
		return 0
	}
	mined := a.HashrateKH * ratePerKH
	a.MinedUnits += mined
	return mined
}

// SellMined converts mined crypto units to cash at the given price.
func SellMined(a *Account, units float64, priceCents int64) (int64, error) {
	if units <= 0 {
		return 0, ErrInvalidAmount
	}
	if units > a.MinedUnits {
		return 0, fmt.Errorf("%w: mined balance is %.6f units", ErrInsufficientHoldings, a.MinedUnits)
	}
	proceeds := int64(math.Round(units * float64(priceCents)))
	a.MinedUnits -= units
	a.CashCents += proceeds
	a.appendTx(a.Day, fmt.Sprintf("sold %.6f mined units for %s", units, FormatCents(proceeds)), proceeds)
	return proceeds, nil
}
