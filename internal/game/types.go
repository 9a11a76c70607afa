package game

import "fortuna/internal/engine"

type Dashboard struct {
	AccountID      string               `json:"account_id"`
	Day            int                  `json:"day"`
	CashCents      int64                `json:"cash_cents"`
	SavingsCents   int64                `json:"savings_cents"`
	LoanCents      int64                `json:"loan_cents"`
	LoanLimitCents int64                `json:"loan_limit_cents"`
	PortfolioCents int64                `json:"portfolio_cents"`
	MinedUnits     float64              `json:"mined_units"`
	MinedCents     int64                `json:"mined_cents"`
	HashrateKH     float64              `json:"hashrate_kh"`
	MinerCount     int64                `json:"miner_count"`
	NetWorthCents  int64                `json:"net_worth_cents"`
	Positions      []PositionView       `json:"positions"`
	Recent         []engine.Transaction `json:"recent_transactions"`
}

type PositionView struct {
	Symbol           string `json:"symbol"`
	Name             string `json:"name"`
	Quantity         int64  `json:"quantity"`
	AvgCostCents     int64  `json:"avg_cost_cents"`
	PriceCents       int64  `json:"price_cents"`
	MarketValueCents int64  `json:"market_value_cents"`
	UnrealizedCents  int64  `json:"unrealized_cents"`
}

type AssetView struct {
	Symbol                string  `json:"symbol"`
	Name                  string  `json:"name"`
	Category              string  `json:"category"`
	PriceCents            int64   `json:"price_cents"`
	DividendPerShareCents int64   `json:"dividend_per_share_cents,omitempty"`
	DividendIntervalDays  int     `json:"dividend_interval_days,omitempty"`
	NextDividendDay       int     `json:"next_dividend_day,omitempty"`
	DRIP                  bool    `json:"drip,omitempty"`
	Fund                  bool    `json:"fund,omitempty"`
	History               []int64 `json:"history,omitempty"`
}

type OrderInput struct {
	AccountID      string
	Symbol         string
	Side           engine.Side
	Quantity       int64
	IdempotencyKey string
}

type AchievementView struct {
	engine.Achievement
	Unlocked   bool  `json:"unlocked"`
	UnlockedAt int64 `json:"unlocked_at,omitempty"`
}

type LeaderboardRow struct {
	Rank          int64  `json:"rank"`
	AccountID     string `json:"account_id"`
	NetWorthCents int64  `json:"net_worth_cents"`
}

// TickReport summarizes one world-day advance across every account.
type TickReport struct {
	Day            int `json:"day"`
	Accounts       int `json:"accounts"`
	DividendEvents int `json:"dividend_events"`
	Unlocks        int `json:"unlocks"`
}
