package engine

import (
	"math"
	"sort"
)

// Position is one account's holding of one asset. A position whose quantity
// reaches zero is removed from the account rather than kept with a stale
// cost basis.
type Position struct {
	Quantity     int64
	AvgCostCents int64
}

// Transaction is one append-only ledger log entry. Amount is signed: debits
// negative, credits positive.
type Transaction struct {
	Day         int    `json:"day"`
	Description string `json:"description"`
	AmountCents int64  `json:"amount_cents"`
}

// Account is the full per-player financial state. All engine operations take
// an explicit *Account; there is no ambient current-game state.
type Account struct {
	ID string

	CashCents    int64
	SavingsCents int64
	LoanCents    int64

	LoanLimitCents int64
	LoanRate       float64
	DepositRate    float64

	Positions map[string]*Position

	// Mined yield: a secondary balance in crypto units driven by owned
	// hashrate, not by trades.
	MinedUnits float64
	HashrateKH float64
	MinerCount int64

	Day   int
	TxLog []Transaction

	// Unlocked achievement keys -> unlock time (unix seconds). Set once.
	Unlocked map[string]int64

	// Aggregates read by achievement predicates.
	TotalTrades        int64
	TotalDividendCents int64
	TotalDripShares    int64
	TotalBorrowedCents int64
	LargestTradeCents  int64
}

func NewAccount(id string) *Account {
	return &Account{
		ID:             id,
		CashCents:      StarterCashCents,
		LoanLimitCents: DefaultLoanLimit,
		LoanRate:       DefaultLoanRate,
		DepositRate:    DefaultDepositRate,
		Positions:      make(map[string]*Position),
		Unlocked:       make(map[string]int64),
	}
}

func (a *Account) Position(symbol string) (*Position, bool) {
	p, ok := a.Positions[symbol]
	return p, ok
}

// HeldSymbols returns the symbols of non-empty positions in sorted order.
func (a *Account) HeldSymbols() []string {
	out := make([]string, 0, len(a.Positions))
	for sym := range a.Positions {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

func (a *Account) appendTx(day int, description string, amountCents int64) {
	a.TxLog = append(a.TxLog, Transaction{Day: day, Description: description, AmountCents: amountCents})
	if len(a.TxLog) > MaxTransactionsKept {
		a.TxLog = a.TxLog[len(a.TxLog)-MaxTransactionsKept:]
	}
}

// PortfolioValueCents values every position at the current universe price.
func PortfolioValueCents(u *Universe, a *Account) int64 {
	var total int64
	for _, sym := range a.HeldSymbols() {
		pos := a.Positions[sym]
		v, err := notionalCents(u.PriceCents(sym), pos.Quantity)
		if err != nil {
			continue
		}
		total += v
	}
	return total
}

// MarketValueCents values one position at the current universe price. Zero
// when the position is absent or the notional overflows.
func MarketValueCents(u *Universe, a *Account, symbol string) int64 {
	pos, ok := a.Positions[symbol]
	if !ok {
		return 0
	}
	v, err := notionalCents(u.PriceCents(symbol), pos.Quantity)
	if err != nil {
		return 0
	}
	return v
}

// MinedValueCents values the mined crypto balance at the current price of
// the universe's crypto asset. Zero when no crypto asset is configured.
func MinedValueCents(u *Universe, a *Account) int64 {
	if a.MinedUnits <= 0 {
		return 0
	}
	for _, sym := range u.Symbols() {
		if u.Assets[sym].Category == "crypto" {
			return int64(math.Round(a.MinedUnits * float64(u.Assets[sym].PriceCents)))
		}
	}
	return 0
}

func NetWorthCents(u *Universe, a *Account) int64 {
	return a.CashCents + a.SavingsCents + PortfolioValueCents(u, a) + MinedValueCents(u, a) - a.LoanCents
}

// UnrealizedCents is market value minus cost basis for one position.
// Realized gains are not tracked separately from cash flow.
func UnrealizedCents(u *Universe, a *Account, symbol string) int64 {
	pos, ok := a.Positions[symbol]
	if !ok {
		return 0
	}
	market, err := notionalCents(u.PriceCents(symbol), pos.Quantity)
	if err != nil {
		return 0
	}
	cost, err := notionalCents(pos.AvgCostCents, pos.Quantity)
	if err != nil {
		return 0
	}
	return market - cost
}
