package engine

import "fmt"

type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// TradeResult reports a fully executed order. Description is plain text
// suitable for direct display; the engine does not localize or format
// beyond raw amounts.
type TradeResult struct {
	Symbol        string `json:"symbol"`
	Side          Side   `json:"side"`
	Quantity      int64  `json:"quantity"`
	PriceCents    int64  `json:"price_cents"`
	NotionalCents int64  `json:"notional_cents"`
	CashCents     int64  `json:"cash_cents"`
	Description   string `json:"description"`
}

// ValidateOrder checks an order against the universe and the account without
// mutating either. Execution is only legal after validation passes.
func ValidateOrder(u *Universe, a *Account, symbol string, qty int64, side Side) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	asset, ok := u.Asset(symbol)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAsset, symbol)
	}
	notional, err := notionalCents(asset.PriceCents, qty)
	if err != nil {
		return err
	}
	switch side {
	case SideBuy:
		if notional > a.CashCents {
			return fmt.Errorf("%w: need %s, have %s", ErrInsufficientFunds, FormatCents(notional), FormatCents(a.CashCents))
		}
	case SideSell:
		pos, ok := a.Position(symbol)
		if !ok || qty > pos.Quantity {
			held := int64(0)
			if ok {
				held = pos.Quantity
			}
			return fmt.Errorf("%w: have %d shares of %s", ErrInsufficientHoldings, held, symbol)
		}
	default:
		return fmt.Errorf("side must be buy or sell, got %q", side)
	}
	return nil
}

// ExecuteBuy validates and applies a buy as one unit: debit cash, fold the
// new lot into the position's quantity-weighted average cost, log the
// transaction. There are no partial fills.
func ExecuteBuy(u *Universe, a *Account, symbol string, qty int64) (TradeResult, error) {
	if err := ValidateOrder(u, a, symbol, qty, SideBuy); err != nil {
		return TradeResult{}, err
	}
	asset := u.Assets[symbol]
	notional, err := applyBuy(a, symbol, qty, asset.PriceCents)
	if err != nil {
		return TradeResult{}, err
	}
	a.CashCents -= notional
	a.TotalTrades++
	if notional > a.LargestTradeCents {
		a.LargestTradeCents = notional
	}
	desc := fmt.Sprintf("bought %d %s @ %s for %s", qty, symbol, FormatCents(asset.PriceCents), FormatCents(notional))
	a.appendTx(a.Day, desc, -notional)
	return TradeResult{
		Symbol:        symbol,
		Side:          SideBuy,
		Quantity:      qty,
		PriceCents:    asset.PriceCents,
		NotionalCents: notional,
		CashCents:     a.CashCents,
		Description:   desc,
	}, nil
}

// ExecuteSell validates and applies a sell: credit cash, reduce quantity.
// The average cost of the remaining shares is unchanged (average-cost-basis
// accounting, not FIFO/LIFO); a fully sold position is removed.
func ExecuteSell(u *Universe, a *Account, symbol string, qty int64) (TradeResult, error) {
	if err := ValidateOrder(u, a, symbol, qty, SideSell); err != nil {
		return TradeResult{}, err
	}
	asset := u.Assets[symbol]
	notional, err := notionalCents(asset.PriceCents, qty)
	if err != nil {
		return TradeResult{}, err
	}
	pos := a.Positions[symbol]
	pos.Quantity -= qty
	if pos.Quantity == 0 {
		delete(a.Positions, symbol)
	}
	a.CashCents += notional
	a.TotalTrades++
	if notional > a.LargestTradeCents {
		a.LargestTradeCents = notional
	}
	desc := fmt.Sprintf("sold %d %s @ %s for %s", qty, symbol, FormatCents(asset.PriceCents), FormatCents(notional))
	a.appendTx(a.Day, desc, notional)
	return TradeResult{
		Symbol:        symbol,
		Side:          SideSell,
		Quantity:      qty,
		PriceCents:    asset.PriceCents,
		NotionalCents: notional,
		CashCents:     a.CashCents,
		Description:   desc,
	}, nil
}

// applyBuy folds qty shares at priceCents into the account's position and
// returns the notional. It does not touch cash: ExecuteBuy debits it, while
// the DRIP path funds the purchase from the dividend itself.
func applyBuy(a *Account, symbol string, qty, priceCents int64) (int64, error) {
	notional, err := notionalCents(priceCents, qty)
	if err != nil {
		return 0, err
	}
	pos, ok := a.Positions[symbol]
	if !ok {
		a.Positions[symbol] = &Position{Quantity: qty, AvgCostCents: priceCents}
		return notional, nil
	}
	oldCost, err := notionalCents(pos.AvgCostCents, pos.Quantity)
	if err != nil {
		return 0, err
	}
	newQty := pos.Quantity + qty
	pos.AvgCostCents = (oldCost + notional) / newQty
	pos.Quantity = newQty
	return notional, nil
}
