package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"fortuna/internal/config"
	"fortuna/internal/engine"
	"fortuna/internal/game"
	"fortuna/internal/sink"
	"fortuna/internal/store"
)

const localAccountID = "player"

func main() {
	cfg := config.LoadCLIFromEnv()

	root := &cobra.Command{
		Use:          "fortuna",
		Short:        "Fortuna personal finance game",
		SilenceUsage: true,
	}

	root.AddCommand(
		newInitCmd(cfg),
		newStatusCmd(cfg),
		newAssetsCmd(cfg),
		newBuyCmd(cfg),
		newSellCmd(cfg),
		newBankCmd(cfg),
		newMineCmd(cfg),
		newAdvanceCmd(cfg),
		newPlayCmd(cfg),
		newAchievementsCmd(cfg),
		newLogCmd(cfg),
		newMigrateCmd(cfg),
		newRemoteCmd(cfg),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// openLocal opens the embedded deployment: SQLite store, configured universe,
// one fixed account, achievements reported to the log.
func openLocal(ctx context.Context, cfg config.CLIConfig) (*game.Service, func(), error) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	st, err := store.Open(ctx, cfg.DBPath, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	defs, err := config.LoadUniverse(cfg.UniversePath)
	if err != nil {
		st.Close()
		return nil, nil, fmt.Errorf("load universe: %w", err)
	}
	svc := game.NewService(st, defs, game.Options{
		Sink:            sink.NewLog(logger),
		Logger:          logger,
		MiningRatePerKH: cfg.MiningRatePerKH,
	})
	if err := svc.EnsureUniverse(ctx); err != nil {
		st.Close()
		return nil, nil, err
	}
	if err := svc.EnsureAccount(ctx, localAccountID); err != nil {
		st.Close()
		return nil, nil, err
	}
	return svc, func() { st.Close() }, nil
}

func newInitCmd(cfg config.CLIConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the local save and show the starting state",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, done, err := openLocal(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer done()
			d, err := svc.Dashboard(cmd.Context(), localAccountID)
			if err != nil {
				return err
			}
			printSuccess("Save ready at " + cfg.DBPath)
			renderDashboard(d)
			return nil
		},
	}
}

func newStatusCmd(cfg config.CLIConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show balances, positions and net worth",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, done, err := openLocal(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer done()
			d, err := svc.Dashboard(cmd.Context(), localAccountID)
			if err != nil {
				return err
			}
			renderDashboard(d)
			return nil
		},
	}
}

func newAssetsCmd(cfg config.CLIConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "assets [symbol]",
		Short: "List the market, or show one asset in detail",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, done, err := openLocal(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer done()
			if len(args) == 1 {
				detail, err := svc.AssetDetail(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				renderAssetDetail(detail)
				return nil
			}
			assets, err := svc.Assets(cmd.Context())
			if err != nil {
				return err
			}
			renderAssets(assets)
			return nil
		},
	}
}

func newBuyCmd(cfg config.CLIConfig) *cobra.Command {
	return newOrderCmd(cfg, engine.SideBuy, "buy SYMBOL QTY", "Buy whole shares at the current price")
}

func newSellCmd(cfg config.CLIConfig) *cobra.Command {
	return newOrderCmd(cfg, engine.SideSell, "sell SYMBOL QTY", "Sell shares at the current price")
}

func newOrderCmd(cfg config.CLIConfig, side engine.Side, use, short string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			qty, err := parseQuantity(args[1])
			if err != nil {
				return err
			}
			svc, done, err := openLocal(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer done()
			res, err := svc.PlaceOrder(cmd.Context(), game.OrderInput{
				AccountID: localAccountID,
				Symbol:    args[0],
				Side:      side,
				Quantity:  qty,
			})
			if err != nil {
				return err
			}
			renderTrade(res)
			return nil
		},
	}
}

func newBankCmd(cfg config.CLIConfig) *cobra.Command {
	bank := &cobra.Command{
		Use:   "bank",
		Short: "Savings and loans",
	}
	ops := []struct {
		use, short string
		run        func(ctx context.Context, svc *game.Service, cents int64) error
	}{
		{"deposit AMOUNT", "Move cash into savings", func(ctx context.Context, svc *game.Service, cents int64) error {
			return svc.Deposit(ctx, localAccountID, cents, "")
		}},
		{"withdraw AMOUNT", "Move savings back to cash", func(ctx context.Context, svc *game.Service, cents int64) error {
			return svc.Withdraw(ctx, localAccountID, cents, "")
		}},
		{"loan AMOUNT", "Borrow against your loan limit", func(ctx context.Context, svc *game.Service, cents int64) error {
			return svc.TakeLoan(ctx, localAccountID, cents, "")
		}},
		{"repay AMOUNT", "Pay down the loan", func(ctx context.Context, svc *game.Service, cents int64) error {
			repaid, err := svc.RepayLoan(ctx, localAccountID, cents, "")
			if err != nil {
				return err
			}
			printSuccess("Repaid " + formatCents(repaid))
			return nil
		}},
	}
	for _, op := range ops {
		op := op
		bank.AddCommand(&cobra.Command{
			Use:   op.use,
			Short: op.short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				cents, err := parseAmountCents(args[0])
				if err != nil {
					return err
				}
				svc, done, err := openLocal(cmd.Context(), cfg)
				if err != nil {
					return err
				}
				defer done()
				if err := op.run(cmd.Context(), svc, cents); err != nil {
					return err
				}
				d, err := svc.Dashboard(cmd.Context(), localAccountID)
				if err != nil {
					return err
				}
				fmt.Printf("Cash %s / Savings %s / Loan %s\n",
					formatCents(d.CashCents), formatCents(d.SavingsCents), formatCents(d.LoanCents))
				return nil
			},
		})
	}
	return bank
}

func newMineCmd(cfg config.CLIConfig) *cobra.Command {
	mine := &cobra.Command{
		Use:   "mine",
		Short: "Crypto mining rigs",
	}
	mine.AddCommand(&cobra.Command{
		Use:   "buy",
		Short: fmt.Sprintf("Buy a rig (%.2f kh for %s)", game.MinerHashrateKH, formatCents(game.MinerPriceCents)),
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, done, err := openLocal(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer done()
			if err := svc.BuyMiner(cmd.Context(), localAccountID, ""); err != nil {
				return err
			}
			printSuccess("Rig installed. It mines every day the world advances.")
			return nil
		},
	})
	mine.AddCommand(&cobra.Command{
		Use:   "sell UNITS",
		Short: "Sell mined units at the current crypto price",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var units float64
			if _, err := fmt.Sscanf(strings.TrimSpace(args[0]), "%f", &units); err != nil {
				return fmt.Errorf("invalid units %q", args[0])
			}
			svc, done, err := openLocal(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer done()
			proceeds, err := svc.SellMined(cmd.Context(), localAccountID, units, "")
			if err != nil {
				return err
			}
			printSuccess("Sold for " + formatCents(proceeds))
			return nil
		},
	})
	return mine
}

func newAdvanceCmd(cfg config.CLIConfig) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "advance",
		Short: "Advance the world by one or more days",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if days < 1 {
				days = 1
			}
			svc, done, err := openLocal(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer done()
			var last game.TickReport
			for i := 0; i < days; i++ {
				last, err = svc.RunDailyTick(cmd.Context())
				if err != nil {
					return err
				}
			}
			printSuccess(fmt.Sprintf("Advanced to day %d (%d dividend events)", last.Day, last.DividendEvents))
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 1, "number of days to advance")
	return cmd
}

func newPlayCmd(cfg config.CLIConfig) *cobra.Command {
	var every time.Duration
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Advance a day on an interval until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			svc, done, err := openLocal(ctx, cfg)
			if err != nil {
				return err
			}
			defer done()

			ticker := time.NewTicker(every)
			defer ticker.Stop()
			printInfo(fmt.Sprintf("Playing: one day every %s. Ctrl-C to stop.", every))
			for {
				select {
				case <-ctx.Done():
					fmt.Println()
					return nil
				case <-ticker.C:
					report, err := svc.RunDailyTick(ctx)
					if err != nil {
						return err
					}
					d, err := svc.Dashboard(ctx, localAccountID)
					if err != nil {
						return err
					}
					fmt.Printf("day %-4d net worth %s\n", report.Day, formatCents(d.NetWorthCents))
				}
			}
		},
	}
	cmd.Flags().DurationVar(&every, "every", 3*time.Second, "wall-clock time per in-game day")
	return cmd
}

func newAchievementsCmd(cfg config.CLIConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "achievements",
		Short: "Show the achievement board",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, done, err := openLocal(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer done()
			views, err := svc.Achievements(cmd.Context(), localAccountID)
			if err != nil {
				return err
			}
			renderAchievements(views)
			return nil
		},
	}
}

func newLogCmd(cfg config.CLIConfig) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show the transaction log",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, done, err := openLocal(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer done()
			txs, err := svc.TransactionLog(cmd.Context(), localAccountID, limit)
			if err != nil {
				return err
			}
			renderTransactions(txs)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 25, "max entries to show")
	return cmd
}

func newMigrateCmd(cfg config.CLIConfig) *cobra.Command {
	var source, target, account string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Copy an account between stores (local sqlite, postgres DSN)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if target == "" {
				return fmt.Errorf("--target is required")
			}
			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
			src, err := store.Open(cmd.Context(), source, logger)
			if err != nil {
				return fmt.Errorf("open source store: %w", err)
			}
			defer src.Close()
			dst, err := store.Open(cmd.Context(), target, logger)
			if err != nil {
				return fmt.Errorf("open target store: %w", err)
			}
			defer dst.Close()
			defs, err := config.LoadUniverse(cfg.UniversePath)
			if err != nil {
				return err
			}
			rec, err := game.Migrate(cmd.Context(), src, dst, defs, account, logger)
			if err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Migrated %s: %s -> %s (audit %s)", rec.AccountID, rec.Source, rec.Target, rec.ID))
			return nil
		},
	}
	cmd.Flags().StringVar(&source, "source", cfg.DBPath, "source store (path or DSN)")
	cmd.Flags().StringVar(&target, "target", "", "target store (path or DSN)")
	cmd.Flags().StringVar(&account, "account", localAccountID, "account id to migrate")
	return cmd
}
