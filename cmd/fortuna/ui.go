package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"golang.org/x/term"

	"fortuna/internal/engine"
	"fortuna/internal/game"
)

var (
	stdinReader = bufio.NewReader(os.Stdin)
	accent      = color.New(color.FgCyan, color.Bold)
	success     = color.New(color.FgGreen, color.Bold)
	warn        = color.New(color.FgYellow, color.Bold)
	danger      = color.New(color.FgRed, color.Bold)
	neutral     = color.New(color.FgHiWhite)
)

type assetsPayload struct {
	Assets []game.AssetView `json:"assets"`
}

type achievementsPayload struct {
	Achievements []game.AchievementView `json:"achievements"`
}

type leaderboardPayload struct {
	Rows []game.LeaderboardRow `json:"rows"`
}

func printSuccess(msg string) {
	success.Println(msg)
}

func printWarn(msg string) {
	warn.Println(msg)
}

func printInfo(msg string) {
	neutral.Println(msg)
}

func promptRequired(label string) (string, error) {
	for {
		fmt.Printf("%s: ", label)
		text, err := stdinReader.ReadString('\n')
		if err != nil {
			return "", err
		}
		text = strings.TrimSpace(text)
		if text != "" {
			return text, nil
		}
		printWarn(label + " is required.")
	}
}

func promptOptional(label string) (string, error) {
	fmt.Printf("%s: ", label)
	text, err := stdinReader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// promptPassword reads without echo when stdin is a terminal.
func promptPassword(label string) (string, error) {
	fmt.Printf("%s: ", label)
	if term.IsTerminal(int(syscall.Stdin)) {
		raw, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(raw)), nil
	}
	text, err := stdinReader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// parseAmountCents turns a dollars argument like "250" or "19.99" into cents.
func parseAmountCents(raw string) (int64, error) {
	raw = strings.TrimSpace(strings.TrimPrefix(raw, "$"))
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", raw)
	}
	cents := engine.DollarsToCents(v)
	if cents <= 0 {
		return 0, fmt.Errorf("amount must be positive")
	}
	return cents, nil
}

func parseQuantity(raw string) (int64, error) {
	qty, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || qty <= 0 {
		return 0, fmt.Errorf("quantity must be a positive whole number, got %q", raw)
	}
	return qty, nil
}

func renderDashboard(d game.Dashboard) {
	accent.Printf("\n== DAY %d ==\n", d.Day)
	fmt.Printf("Cash:       %s\n", formatCents(d.CashCents))
	fmt.Printf("Savings:    %s\n", formatCents(d.SavingsCents))
	if d.LoanCents > 0 {
		fmt.Printf("Loan:       %s (limit %s)\n", danger.Sprint(formatCents(d.LoanCents)), formatCents(d.LoanLimitCents))
	}
	fmt.Printf("Portfolio:  %s\n", formatCents(d.PortfolioCents))
	if d.MinerCount > 0 {
		fmt.Printf("Mining:     %.4f units (%s) on %.2f kh\n", d.MinedUnits, formatCents(d.MinedCents), d.HashrateKH)
	}
	fmt.Printf("Net Worth:  %s\n", accent.Sprint(formatCents(d.NetWorthCents)))

	fmt.Println()
	accent.Println("Positions")
	if len(d.Positions) == 0 {
		printInfo("No open positions yet.")
	} else {
		fmt.Printf("%-8s %-22s %8s %12s %12s %14s %14s\n", "SYMBOL", "NAME", "QTY", "AVG", "NOW", "VALUE", "P/L")
		for _, p := range d.Positions {
			fmt.Printf("%-8s %-22s %8d %12s %12s %14s %14s\n",
				p.Symbol,
				truncate(p.Name, 22),
				p.Quantity,
				formatCents(p.AvgCostCents),
				formatCents(p.PriceCents),
				formatCents(p.MarketValueCents),
				colorizeCents(p.UnrealizedCents),
			)
		}
	}

	if len(d.Recent) > 0 {
		fmt.Println()
		accent.Println("Recent Activity")
		for _, tx := range d.Recent {
			fmt.Printf("day %-4d %-52s %12s\n", tx.Day, truncate(tx.Description, 52), colorizeCents(tx.AmountCents))
		}
	}
	fmt.Println()
}

func renderAssets(assets []game.AssetView) {
	accent.Println("\n== MARKET ==")
	if len(assets) == 0 {
		printInfo("No assets configured.")
		return
	}
	fmt.Printf("%-8s %-24s %-10s %12s %10s %6s\n", "SYMBOL", "NAME", "CATEGORY", "PRICE", "DIVIDEND", "DRIP")
	for _, a := range assets {
		dividend := "-"
		if a.DividendPerShareCents > 0 {
			dividend = fmt.Sprintf("%s/%dd", formatCents(a.DividendPerShareCents), a.DividendIntervalDays)
		}
		drip := ""
		if a.DRIP {
			drip = "yes"
		}
		name := a.Name
		if a.Fund {
			name += " (fund)"
		}
		fmt.Printf("%-8s %-24s %-10s %12s %10s %6s\n",
			a.Symbol, truncate(name, 24), a.Category, formatCents(a.PriceCents), dividend, drip)
	}
	fmt.Println()
}

func renderAssetDetail(a game.AssetView) {
	accent.Printf("\n== %s (%s) ==\n", a.Symbol, a.Name)
	fmt.Printf("Category:  %s\n", a.Category)
	fmt.Printf("Price:     %s\n", formatCents(a.PriceCents))
	if a.DividendPerShareCents > 0 {
		fmt.Printf("Dividend:  %s per share every %d days (next on day %d)\n",
			formatCents(a.DividendPerShareCents), a.DividendIntervalDays, a.NextDividendDay)
		fmt.Printf("DRIP:      %t\n", a.DRIP)
	}
	if n := len(a.History); n > 1 {
		first := a.History[0]
		last := a.History[n-1]
		fmt.Printf("Trend:     %s over %d ticks\n", colorizeCents(last-first), n)
		limit := n
		if limit > 10 {
			limit = 10
		}
		fmt.Println()
		accent.Println("Recent Prices")
		for i := n - limit; i < n; i++ {
			fmt.Printf("  %12s\n", formatCents(a.History[i]))
		}
	}
	fmt.Println()
}

func renderTrade(res engine.TradeResult) {
	printSuccess(res.Description)
	fmt.Printf("Cash after trade: %s\n", formatCents(res.CashCents))
}

func renderAchievements(views []game.AchievementView) {
	accent.Println("\n== ACHIEVEMENTS ==")
	unlocked := 0
	for _, v := range views {
		if v.Unlocked {
			unlocked++
		}
	}
	fmt.Printf("Unlocked %d of %d\n\n", unlocked, len(views))
	for _, v := range views {
		mark := neutral.Sprint("[ ]")
		if v.Unlocked {
			mark = success.Sprint("[x]")
		}
		fmt.Printf("%s %-22s %3dpt  %s\n", mark, v.Name, v.Points, truncate(v.Description, 48))
	}
	fmt.Println()
}

func renderLeaderboard(rows []game.LeaderboardRow) {
	accent.Println("\n== LEADERBOARD ==")
	if len(rows) == 0 {
		printInfo("No accounts yet.")
		return
	}
	fmt.Printf("%-6s %-38s %16s\n", "RANK", "PLAYER", "NET WORTH")
	for _, row := range rows {
		fmt.Printf("%-6d %-38s %16s\n", row.Rank, truncate(row.AccountID, 38), formatCents(row.NetWorthCents))
	}
	fmt.Println()
}

func renderTransactions(txs []engine.Transaction) {
	accent.Println("\n== TRANSACTION LOG ==")
	if len(txs) == 0 {
		printInfo("No transactions yet.")
		return
	}
	for _, tx := range txs {
		fmt.Printf("day %-4d %-56s %12s\n", tx.Day, truncate(tx.Description, 56), colorizeCents(tx.AmountCents))
	}
	fmt.Println()
}

func decodeInto[T any](in any) (T, error) {
	var out T
	raw, err := json.Marshal(in)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, err
	}
	return out, nil
}

func colorizeCents(v int64) string {
	text := formatCents(v)
	if v > 0 {
		text = "+" + text
	}
	switch {
	case v > 0:
		return success.Sprint(text)
	case v < 0:
		return danger.Sprint(text)
	default:
		return neutral.Sprint(text)
	}
}

func formatCents(v int64) string {
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s$%s.%02d", sign, comma(v/engine.CentsPerDollar), v%engine.CentsPerDollar)
}

func comma(v int64) string {
	s := strconv.FormatInt(v, 10)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	pre := len(s) % 3
	if pre > 0 {
		b.WriteString(s[:pre])
		b.WriteByte(',')
	}
	for i := pre; i < len(s); i += 3 {
		b.WriteString(s[i : i+3])
		if i+3 < len(s) {
			b.WriteByte(',')
		}
	}
	return b.String()
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
