// Package game orchestrates the engine against a store. It is the single
// write path shared by the CLI shell and the HTTP API: every mutation loads
// the account snapshot, applies engine operations and writes the snapshot
// back under the store's row lock.
package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"fortuna/internal/engine"
	"fortuna/internal/sink"
	"fortuna/internal/store"
)

// Miner hardware sold by the bank. One fixed model keeps the shop simple;
// capacity stacks linearly.
const (
	MinerHashrateKH  = 0.5
	MinerPriceCents  = int64(250) * engine.CentsPerDollar
	leaderboardLimit = 100
)

type Service struct {
	store    store.Store
	defs     *engine.Universe
	market   *engine.Market
	registry *engine.Registry
	sink     sink.Sink
	log      *slog.Logger

	miningRatePerKH float64

	// Per-account mutexes serialize mutations within this process so an
	// idempotency claim and its snapshot update cannot interleave. Cross
	// process exclusion comes from the store's row locks.
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Options tunes the service; zero values pick sane defaults.
type Options struct {
	Market          *engine.Market
	Registry        *engine.Registry
	Sink            sink.Sink
	Logger          *slog.Logger
	MiningRatePerKH float64
}

func NewService(st store.Store, defs *engine.Universe, opts Options) *Service {
	if opts.Market == nil {
		opts.Market = engine.NewMarket()
	}
	if opts.Registry == nil {
		opts.Registry = engine.DefaultRegistry()
	}
	if opts.Sink == nil {
		opts.Sink = sink.NewNoop()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.MiningRatePerKH <= 0 {
		opts.MiningRatePerKH = engine.DefaultMiningPerKH
	}
	return &Service{
		store:           st,
		defs:            defs,
		market:          opts.Market,
		registry:        opts.Registry,
		sink:            opts.Sink,
		log:             opts.Logger,
		miningRatePerKH: opts.MiningRatePerKH,
		locks:           make(map[string]*sync.Mutex),
	}
}

func (s *Service) lock(accountID string) func() {
	s.mu.Lock()
	l, ok := s.locks[accountID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[accountID] = l
	}
	s.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// EnsureUniverse seeds the shared universe from the configured defaults the
// first time a deployment starts against an empty store.
func (s *Service) EnsureUniverse(ctx context.Context) error {
	_, err := s.store.LoadUniverse(ctx)
	if errors.Is(err, store.ErrNotFound) {
		s.log.Info("seeding universe", "assets", len(s.defs.Assets))
		return s.store.SaveUniverse(ctx, engine.ExportUniverse(s.defs, s.log))
	}
	return err
}

// EnsureAccount creates a starter account if none exists yet.
func (s *Service) EnsureAccount(ctx context.Context, accountID string) error {
	_, err := s.store.LoadAccount(ctx, accountID)
	if errors.Is(err, store.ErrNotFound) {
		s.log.Info("creating account", "account_id", accountID)
		return s.store.SaveAccount(ctx, accountID, engine.ExportAccount(engine.NewAccount(accountID), s.log))
	}
	return err
}

func (s *Service) universe(ctx context.Context) (*engine.Universe, error) {
	snap, err := s.store.LoadUniverse(ctx)
	if err != nil {
		return nil, err
	}
	return engine.ImportUniverse(snap, s.defs), nil
}

func (s *Service) account(ctx context.Context, accountID string) (*engine.Account, error) {
	snap, err := s.store.LoadAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return engine.ImportAccount(snap), nil
}

// withAccount runs fn against the rehydrated account under the per-account
// lock and persists the result. Achievements are re-evaluated after every
// successful mutation and the number of new unlocks is returned; unlocks are
// published to the sink after the write commits, and a sink failure never
// rolls the unlock back.
func (s *Service) withAccount(ctx context.Context, accountID string, fn func(u *engine.Universe, a *engine.Account) error) (int, error) {
	defer s.lock(accountID)()

	u, err := s.universe(ctx)
	if err != nil {
		return 0, err
	}
	var unlocked []engine.Achievement
	err = s.store.UpdateAccount(ctx, accountID, func(snap engine.Snapshot) (engine.Snapshot, error) {
		a := engine.ImportAccount(snap)
		if err := fn(u, a); err != nil {
			return nil, err
		}
		unlocked = engine.Evaluate(s.registry, u, a, time.Now(), s.log)
		return engine.ExportAccount(a, s.log), nil
	})
	if err != nil {
		return 0, err
	}
	s.publishUnlocks(ctx, accountID, unlocked)
	return len(unlocked), nil
}

func (s *Service) publishUnlocks(ctx context.Context, accountID string, unlocked []engine.Achievement) {
	for _, ach := range unlocked {
		if err := s.sink.AchievementUnlocked(ctx, accountID, ach); err != nil {
			s.log.Warn("achievement sink publish failed", "account_id", accountID, "key", ach.Key, "err", err)
		}
	}
}

// claim burns the idempotency key before mutating. A blank key is only legal
// for in-process callers that generate their own; the API requires one.
func (s *Service) claim(ctx context.Context, accountID, key, action string) error {
	if strings.TrimSpace(key) == "" {
		key = uuid.NewString()
	}
	return s.store.ClaimIdempotency(ctx, accountID, key, action)
}

func (s *Service) PlaceOrder(ctx context.Context, in OrderInput) (engine.TradeResult, error) {
	in.Symbol = strings.ToUpper(strings.TrimSpace(in.Symbol))
	var out engine.TradeResult
	if err := s.claim(ctx, in.AccountID, in.IdempotencyKey, "order"); err != nil {
		return out, err
	}
	_, err := s.withAccount(ctx, in.AccountID, func(u *engine.Universe, a *engine.Account) error {
		var err error
		switch in.Side {
		case engine.SideBuy:
			out, err = engine.ExecuteBuy(u, a, in.Symbol, in.Quantity)
		case engine.SideSell:
			out, err = engine.ExecuteSell(u, a, in.Symbol, in.Quantity)
		default:
			err = fmt.Errorf("side must be buy or sell, got %q", in.Side)
		}
		return err
	})
	return out, err
}

func (s *Service) Deposit(ctx context.Context, accountID string, amountCents int64, idem string) error {
	if err := s.claim(ctx, accountID, idem, "deposit"); err != nil {
		return err
	}
	_, err := s.withAccount(ctx, accountID, func(_ *engine.Universe, a *engine.Account) error {
		return engine.Deposit(a, amountCents)
	})
	return err
}

func (s *Service) Withdraw(ctx context.Context, accountID string, amountCents int64, idem string) error {
	if err := s.claim(ctx, accountID, idem, "withdraw"); err != nil {
		return err
	}
	_, err := s.withAccount(ctx, accountID, func(_ *engine.Universe, a *engine.Account) error {
		return engine.Withdraw(a, amountCents)
	})
	return err
}

func (s *Service) TakeLoan(ctx context.Context, accountID string, amountCents int64, idem string) error {
	if err := s.claim(ctx, accountID, idem, "loan"); err != nil {
		return err
	}
	_, err := s.withAccount(ctx, accountID, func(_ *engine.Universe, a *engine.Account) error {
		return engine.TakeLoan(a, amountCents)
	})
	return err
}

func (s *Service) RepayLoan(ctx context.Context, accountID string, amountCents int64, idem string) (int64, error) {
	if err := s.claim(ctx, accountID, idem, "repay"); err != nil {
		return 0, err
	}
	var repaid int64
	_, err := s.withAccount(ctx, accountID, func(_ *engine.Universe, a *engine.Account) error {
		var err error
		repaid, err = engine.RepayLoan(a, amountCents)
		return err
	})
	return repaid, err
}

func (s *Service) BuyMiner(ctx context.Context, accountID, idem string) error {
	if err := s.claim(ctx, accountID, idem, "buy_miner"); err != nil {
		return err
	}
	_, err := s.withAccount(ctx, accountID, func(_ *engine.Universe, a *engine.Account) error {
		return engine.BuyMiner(a, MinerHashrateKH, MinerPriceCents)
	})
	return err
}

func (s *Service) SellMined(ctx context.Context, accountID string, units float64, idem string) (int64, error) {
	if err := s.claim(ctx, accountID, idem, "sell_mined"); err != nil {
		return 0, err
	}
	var proceeds int64
	_, err := s.withAccount(ctx, accountID, func(u *engine.Universe, a *engine.Account) error {
		price := cryptoPriceCents(u)
		if price <= 0 {
			return fmt.Errorf("%w: no crypto asset configured", engine.ErrUnknownAsset)
		}
		var err error
		proceeds, err = engine.SellMined(a, units, price)
		return err
	})
	return proceeds, err
}

func cryptoPriceCents(u *engine.Universe) int64 {
	for _, sym := range u.Symbols() {
		if u.Assets[sym].Category == "crypto" {
			return u.Assets[sym].PriceCents
		}
	}
	return 0
}

func (s *Service) Dashboard(ctx context.Context, accountID string) (Dashboard, error) {
	var out Dashboard
	u, err := s.universe(ctx)
	if err != nil {
		return out, err
	}
	a, err := s.account(ctx, accountID)
	if err != nil {
		return out, err
	}
	out = Dashboard{
		AccountID:      a.ID,
		Day:            a.Day,
		CashCents:      a.CashCents,
		SavingsCents:   a.SavingsCents,
		LoanCents:      a.LoanCents,
		LoanLimitCents: a.LoanLimitCents,
		PortfolioCents: engine.PortfolioValueCents(u, a),
		MinedUnits:     a.MinedUnits,
		MinedCents:     engine.MinedValueCents(u, a),
		HashrateKH:     a.HashrateKH,
		MinerCount:     a.MinerCount,
		NetWorthCents:  engine.NetWorthCents(u, a),
	}
	for _, sym := range a.HeldSymbols() {
		pos := a.Positions[sym]
		name := sym
		if asset, ok := u.Asset(sym); ok {
			name = asset.Name
		}
		out.Positions = append(out.Positions, PositionView{
			Symbol:           sym,
			Name:             name,
			Quantity:         pos.Quantity,
			AvgCostCents:     pos.AvgCostCents,
			PriceCents:       u.PriceCents(sym),
			MarketValueCents: engine.MarketValueCents(u, a, sym),
			UnrealizedCents:  engine.UnrealizedCents(u, a, sym),
		})
	}
	n := len(a.TxLog)
	if n > 10 {
		out.Recent = append(out.Recent, a.TxLog[n-10:]...)
	} else {
		out.Recent = append(out.Recent, a.TxLog...)
	}
	return out, nil
}

func (s *Service) Assets(ctx context.Context) ([]AssetView, error) {
	u, err := s.universe(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]AssetView, 0, len(u.Assets))
	for _, sym := range u.Symbols() {
		out = append(out, assetView(u.Assets[sym], false))
	}
	return out, nil
}

func (s *Service) AssetDetail(ctx context.Context, symbol string) (AssetView, error) {
	u, err := s.universe(ctx)
	if err != nil {
		return AssetView{}, err
	}
	a, ok := u.Asset(strings.ToUpper(strings.TrimSpace(symbol)))
	if !ok {
		return AssetView{}, fmt.Errorf("%w: %s", engine.ErrUnknownAsset, symbol)
	}
	return assetView(a, true), nil
}

func assetView(a *engine.Asset, withHistory bool) AssetView {
	v := AssetView{
		Symbol:                a.Symbol,
		Name:                  a.Name,
		Category:              a.Category,
		PriceCents:            a.PriceCents,
		DividendPerShareCents: a.DividendPerShareCents,
		DividendIntervalDays:  a.DividendIntervalDays,
		NextDividendDay:       a.NextDividendDay,
		DRIP:                  a.DRIP,
		Fund:                  a.IsFund(),
	}
	if withHistory {
		v.History = append(v.History, a.History...)
	}
	return v
}

func (s *Service) Achievements(ctx context.Context, accountID string) ([]AchievementView, error) {
	a, err := s.account(ctx, accountID)
	if err != nil {
		return nil, err
	}
	out := make([]AchievementView, 0, len(s.registry.All()))
	for _, entry := range s.registry.All() {
		v := AchievementView{Achievement: entry}
		if ts, ok := a.Unlocked[entry.Key]; ok {
			v.Unlocked = true
			v.UnlockedAt = ts
		}
		out = append(out, v)
	}
	return out, nil
}

func (s *Service) TransactionLog(ctx context.Context, accountID string, limit int) ([]engine.Transaction, error) {
	a, err := s.account(ctx, accountID)
	if err != nil {
		return nil, err
	}
	txs := a.TxLog
	if limit > 0 && len(txs) > limit {
		txs = txs[len(txs)-limit:]
	}
	return append([]engine.Transaction(nil), txs...), nil
}

func (s *Service) Leaderboard(ctx context.Context, limit int) ([]LeaderboardRow, error) {
	if limit <= 0 || limit > leaderboardLimit {
		limit = leaderboardLimit
	}
	u, err := s.universe(ctx)
	if err != nil {
		return nil, err
	}
	ids, err := s.store.AccountIDs(ctx)
	if err != nil {
		return nil, err
	}
	rows := make([]LeaderboardRow, 0, len(ids))
	for _, id := range ids {
		a, err := s.account(ctx, id)
		if err != nil {
			s.log.Warn("leaderboard skipping account", "account_id", id, "err", err)
			continue
		}
		rows = append(rows, LeaderboardRow{AccountID: id, NetWorthCents: engine.NetWorthCents(u, a)})
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].NetWorthCents > rows[j].NetWorthCents })
	if len(rows) > limit {
		rows = rows[:limit]
	}
	for i := range rows {
		rows[i].Rank = int64(i + 1)
	}
	return rows, nil
}

// RunDailyTick advances the world one day: reprice every asset, then pay
// dividends, interest and mining yield into every account against the new
// prices and the old dividend schedule, and only then advance the schedule.
// Splitting payment from schedule advance means every account sees the same
// due day regardless of processing order.
func (s *Service) RunDailyTick(ctx context.Context) (TickReport, error) {
	var report TickReport
	err := s.store.UpdateUniverse(ctx, func(snap engine.Snapshot) (engine.Snapshot, error) {
		u := engine.ImportUniverse(snap, s.defs)
		u.Day++
		s.market.AdvanceAll(u)
		report.Day = u.Day
		return engine.ExportUniverse(u, s.log), nil
	})
	if err != nil {
		return report, err
	}

	ids, err := s.store.AccountIDs(ctx)
	if err != nil {
		return report, err
	}
	for _, id := range ids {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		unlocks, err := s.withAccount(ctx, id, func(u *engine.Universe, a *engine.Account) error {
			a.Day = report.Day
			events := engine.PayDividends(u, a, report.Day, s.log)
			report.DividendEvents += len(events)
			engine.ApplyDailyInterest(a, report.Day)
			if mined := engine.MineYield(a, report.Day, s.miningRatePerKH); mined > 0 {
				s.log.Debug("mining yield", "account_id", id, "units", mined)
			}
			return nil
		})
		if err != nil {
			s.log.Error("tick failed for account", "account_id", id, "day", report.Day, "err", err)
			continue
		}
		report.Accounts++
		report.Unlocks += unlocks
	}

	err = s.store.UpdateUniverse(ctx, func(snap engine.Snapshot) (engine.Snapshot, error) {
		u := engine.ImportUniverse(snap, s.defs)
		engine.AdvanceSchedules(u, report.Day)
		return engine.ExportUniverse(u, s.log), nil
	})
	if err != nil {
		return report, err
	}
	s.log.Info("daily tick complete", "day", report.Day, "accounts", report.Accounts, "dividend_events", report.DividendEvents, "unlocks", report.Unlocks)
	return report, nil
}

// ExportSnapshot merges the account and universe into one portable snapshot.
func (s *Service) ExportSnapshot(ctx context.Context, accountID string) (engine.Snapshot, error) {
	u, err := s.universe(ctx)
	if err != nil {
		return nil, err
	}
	a, err := s.account(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return engine.Export(a, u, s.log), nil
}

// ImportSnapshot overwrites the account from a snapshot produced by either
// deployment form. Unknown keys are dropped and missing ones defaulted by the
// engine importer, so re-importing the same snapshot is a no-op. The shared
// universe is only seeded from the snapshot when the store has none yet.
func (s *Service) ImportSnapshot(ctx context.Context, accountID string, snap engine.Snapshot) error {
	defer s.lock(accountID)()

	a := engine.ImportAccount(snap)
	a.ID = accountID
	if err := s.store.SaveAccount(ctx, accountID, engine.ExportAccount(a, s.log)); err != nil {
		return err
	}
	if _, err := s.store.LoadUniverse(ctx); errors.Is(err, store.ErrNotFound) {
		u := engine.ImportUniverse(snap, s.defs)
		return s.store.SaveUniverse(ctx, engine.ExportUniverse(u, s.log))
	} else if err != nil {
		return err
	}
	return nil
}

// Migrate copies one account between stores, in either direction. The target
// account is overwritten wholesale, so re-running a migration converges on
// the same state; every run appends an audit record to the target store.
func Migrate(ctx context.Context, src, dst store.Store, defs *engine.Universe, accountID string, log *slog.Logger) (store.MigrationRecord, error) {
	if log == nil {
		log = slog.Default()
	}
	snap, err := src.LoadAccount(ctx, accountID)
	if err != nil {
		return store.MigrationRecord{}, fmt.Errorf("load source account: %w", err)
	}
	a := engine.ImportAccount(snap)
	a.ID = accountID
	if err := dst.SaveAccount(ctx, accountID, engine.ExportAccount(a, log)); err != nil {
		return store.MigrationRecord{}, fmt.Errorf("write target account: %w", err)
	}

	if _, err := dst.LoadUniverse(ctx); errors.Is(err, store.ErrNotFound) {
		uniSnap, uerr := src.LoadUniverse(ctx)
		if uerr == nil {
			u := engine.ImportUniverse(uniSnap, defs)
			if serr := dst.SaveUniverse(ctx, engine.ExportUniverse(u, log)); serr != nil {
				return store.MigrationRecord{}, fmt.Errorf("seed target universe: %w", serr)
			}
		} else if !errors.Is(uerr, store.ErrNotFound) {
			return store.MigrationRecord{}, fmt.Errorf("load source universe: %w", uerr)
		}
	} else if err != nil {
		return store.MigrationRecord{}, err
	}

	rec := store.MigrationRecord{
		ID:        uuid.NewString(),
		AccountID: accountID,
		Source:    src.Name(),
		Target:    dst.Name(),
		At:        time.Now().UTC(),
	}
	if err := dst.RecordMigration(ctx, rec); err != nil {
		return rec, fmt.Errorf("record migration: %w", err)
	}
	log.Info("account migrated", "account_id", accountID, "source", rec.Source, "target", rec.Target)
	return rec, nil
}
