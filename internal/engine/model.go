package engine

import (
	"errors"
	"fmt"
	"math"
	"math/big"
)

const (
	CentsPerDollar = int64(100)

	StarterCashCents    = int64(1_000) * CentsPerDollar
	DefaultLoanLimit    = int64(5_000) * CentsPerDollar
	DefaultDepositRate  = 0.01  // per day, on savings
	DefaultLoanRate     = 0.005 // per day, on outstanding loan
	DefaultMiningPerKH  = 0.001 // crypto units mined per kh per day
	FundBaseNAVCents    = int64(100) * CentsPerDollar
	MaxHistoryRetained  = 365
	MaxTransactionsKept = 500
)

var (
	ErrInvalidQuantity      = errors.New("quantity must be a positive whole number of shares")
	ErrUnknownAsset         = errors.New("unknown asset symbol")
	ErrInsufficientFunds    = errors.New("insufficient cash")
	ErrInsufficientHoldings = errors.New("insufficient holdings")
	ErrInvalidAmount        = errors.New("amount must be positive")
	ErrLoanLimitExceeded    = errors.New("loan limit exceeded")
)

func DollarsToCents(v float64) int64 {
	return int64(math.Round(v * float64(CentsPerDollar)))
}

func CentsToDollars(v int64) float64 {
	return float64(v) / float64(CentsPerDollar)
}

// FormatCents renders an amount the way the transaction log and the API
// describe money: plain dollars with two decimals, no locale handling.
func FormatCents(v int64) string {
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s$%d.%02d", sign, v/CentsPerDollar, v%CentsPerDollar)
}

func roundCents(v float64) int64 {
	return int64(math.Round(v))
}

func notionalCents(priceCents, qty int64) (int64, error) {
	v := new(big.Int).Mul(big.NewInt(priceCents), big.NewInt(qty))
	if !v.IsInt64() {
		return 0, fmt.Errorf("notional overflow: %d x %d", priceCents, qty)
	}
	return v.Int64(), nil
}
