package engine

import (
	"fmt"
	"log/slog"
)

// DividendEvent reports one asset's payout for one day.
type DividendEvent struct {
	Symbol        string `json:"symbol"`
	AmountCents   int64  `json:"amount_cents"`
	DripShares    int64  `json:"drip_shares"`
	LeftoverCents int64  `json:"leftover_cents"`
	Description   string `json:"description"`
}

func dividendDue(a *Asset, day int) bool {
	return a.DividendIntervalDays > 0 && day >= a.NextDividendDay
}

// PayDividends pays (or reinvests) every due dividend into the account
// without touching the schedule, so the networked worker can pay all
// accounts before advancing the shared schedule once. A failure on one
// asset is logged and does not block the others.
func PayDividends(u *Universe, acct *Account, day int, log *slog.Logger) []DividendEvent {
	if log == nil {
		log = slog.Default()
	}
	var events []DividendEvent
	for _, sym := range u.Symbols() {
		asset := u.Assets[sym]
		if !dividendDue(asset, day) {
			continue
		}
		evt, err := payOne(u, acct, asset, day)
		if err != nil {
			log.Warn("dividend skipped", "symbol", sym, "day", day, "err", err)
			continue
		}
		if evt.AmountCents > 0 {
			events = append(events, evt)
		}
	}
	return events
}

// AdvanceSchedules moves every due asset's next-dividend-day forward by
// exactly one interval, whether or not anything was paid. Missed intervals
// are not caught up.
func AdvanceSchedules(u *Universe, day int) {
	for _, sym := range u.Symbols() {
		asset := u.Assets[sym]
		if dividendDue(asset, day) {
			asset.NextDividendDay = day + asset.DividendIntervalDays
		}
	}
}

// ProcessDay runs the full per-day dividend pass for a single account:
// pay then advance. The embedded shell calls this once per day boundary.
func ProcessDay(u *Universe, acct *Account, day int, log *slog.Logger) []DividendEvent {
	events := PayDividends(u, acct, day, log)
	AdvanceSchedules(u, day)
	return events
}

func payOne(u *Universe, acct *Account, asset *Asset, day int) (DividendEvent, error) {
	evt := DividendEvent{Symbol: asset.Symbol}
	pos, ok := acct.Position(asset.Symbol)
	if !ok || asset.DividendPerShareCents <= 0 {
		return evt, nil
	}
	dividend, err := notionalCents(asset.DividendPerShareCents, pos.Quantity)
	if err != nil {
		return evt, err
	}
	if dividend <= 0 {
		return evt, nil
	}
	evt.AmountCents = dividend
	acct.TotalDividendCents += dividend

	if asset.DRIP && asset.PriceCents > 0 {
		shares := dividend / asset.PriceCents
		leftover := dividend - shares*asset.PriceCents
		if shares > 0 {
			if _, err := applyBuy(acct, asset.Symbol, shares, asset.PriceCents); err != nil {
				return evt, err
			}
			acct.TotalDripShares += shares
		}
		acct.CashCents += leftover
		evt.DripShares = shares
		evt.LeftoverCents = leftover
		evt.Description = fmt.Sprintf("%s dividend %s reinvested as %d shares, %s to cash",
			asset.Symbol, FormatCents(dividend), shares, FormatCents(leftover))
	} else {
		acct.CashCents += dividend
		evt.Description = fmt.Sprintf("%s dividend %s paid to cash", asset.Symbol, FormatCents(dividend))
	}
	acct.appendTx(day, evt.Description, dividend)
	return evt, nil
}
