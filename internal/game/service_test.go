package game

import (
	"context"
	"errors"
	"sync"
	"testing"

	"fortuna/internal/engine"
	"fortuna/internal/store"
)

func testDefs() *engine.Universe {
	return engine.NewUniverse(
		&engine.Asset{
			Symbol: "YIELD", Name: "Yield Partners", Category: "stock",
			PriceCents:            100 * engine.CentsPerDollar,
			Volatility:            engine.Volatility{Kind: engine.DistUniform, Param: 0.01},
			DividendPerShareCents: 10 * engine.CentsPerDollar,
			DividendIntervalDays:  5,
			NextDividendDay:       1,
		},
		&engine.Asset{
			Symbol: "BITZ", Name: "Bitz", Category: "crypto",
			PriceCents: 500 * engine.CentsPerDollar,
			Volatility: engine.Volatility{Kind: engine.DistGaussian, Param: 0.02},
		},
		&engine.Asset{
			Symbol: "PENNY", Name: "Penny Arcade", Category: "stock",
			PriceCents: 1 * engine.CentsPerDollar,
			Volatility: engine.Volatility{Kind: engine.DistUniform, Param: 0.05},
		},
	)
}

func testService(t *testing.T) (*Service, *store.Memory) {
	t.Helper()
	st := store.NewMemory()
	svc := NewService(st, testDefs(), Options{Market: engine.NewMarketWithSeed(1)})
	if err := svc.EnsureUniverse(context.Background()); err != nil {
		t.Fatalf("ensure universe: %v", err)
	}
	return svc, st
}

func TestPlaceOrderAndDashboard(t *testing.T) {
	ctx := context.Background()
	svc, _ := testService(t)
	if err := svc.EnsureAccount(ctx, "alice"); err != nil {
		t.Fatalf("ensure account: %v", err)
	}

	res, err := svc.PlaceOrder(ctx, OrderInput{AccountID: "alice", Symbol: "yield", Side: engine.SideBuy, Quantity: 5})
	if err != nil {
		t.Fatalf("place order: %v", err)
	}
	if res.Symbol != "YIELD" || res.NotionalCents != 500*engine.CentsPerDollar {
		t.Fatalf("trade result: %+v", res)
	}

	d, err := svc.Dashboard(ctx, "alice")
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if want := 500 * engine.CentsPerDollar; d.CashCents != want {
		t.Fatalf("cash got %d want %d", d.CashCents, want)
	}
	if len(d.Positions) != 1 || d.Positions[0].Quantity != 5 {
		t.Fatalf("positions: %+v", d.Positions)
	}
	// Prices have not moved yet, so buying does not change net worth.
	if want := 1_000 * engine.CentsPerDollar; d.NetWorthCents != want {
		t.Fatalf("net worth got %d want %d", d.NetWorthCents, want)
	}
}

func TestDuplicateIdempotencyKeyRejected(t *testing.T) {
	ctx := context.Background()
	svc, _ := testService(t)
	if err := svc.EnsureAccount(ctx, "alice"); err != nil {
		t.Fatalf("ensure account: %v", err)
	}

	in := OrderInput{AccountID: "alice", Symbol: "YIELD", Side: engine.SideBuy, Quantity: 1, IdempotencyKey: "order-1"}
	if _, err := svc.PlaceOrder(ctx, in); err != nil {
		t.Fatalf("first order: %v", err)
	}
	if _, err := svc.PlaceOrder(ctx, in); !errors.Is(err, store.ErrDuplicateIdempotency) {
		t.Fatalf("replay got %v want ErrDuplicateIdempotency", err)
	}

	d, err := svc.Dashboard(ctx, "alice")
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if d.Positions[0].Quantity != 1 {
		t.Fatalf("replayed order executed twice: %+v", d.Positions)
	}
}

func TestConcurrentOrdersSerializePerAccount(t *testing.T) {
	ctx := context.Background()
	svc, st := testService(t)
	for _, id := range []string{"alice", "bob"} {
		if err := svc.EnsureAccount(ctx, id); err != nil {
			t.Fatalf("ensure %s: %v", id, err)
		}
	}

	// Interleave single-share buys for alice with two-share buys for bob.
	// Per-account serialization means no update is lost and distinct
	// accounts never contaminate each other.
	const orders = 50
	errs := make(chan error, 2*orders)
	var wg sync.WaitGroup
	for i := 0; i < orders; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := svc.PlaceOrder(ctx, OrderInput{AccountID: "alice", Symbol: "PENNY", Side: engine.SideBuy, Quantity: 1})
			errs <- err
		}()
		go func() {
			defer wg.Done()
			_, err := svc.PlaceOrder(ctx, OrderInput{AccountID: "bob", Symbol: "PENNY", Side: engine.SideBuy, Quantity: 2})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("order: %v", err)
		}
	}

	want := map[string]struct{ qty, cash int64 }{
		"alice": {qty: orders, cash: engine.StarterCashCents - orders*engine.CentsPerDollar},
		"bob":   {qty: 2 * orders, cash: engine.StarterCashCents - 2*orders*engine.CentsPerDollar},
	}
	for id, w := range want {
		snap, err := st.LoadAccount(ctx, id)
		if err != nil {
			t.Fatalf("load %s: %v", id, err)
		}
		a := engine.ImportAccount(snap)
		if got := a.Positions["PENNY"].Quantity; got != w.qty {
			t.Fatalf("%s quantity got %d want %d", id, got, w.qty)
		}
		if a.CashCents != w.cash {
			t.Fatalf("%s cash got %d want %d", id, a.CashCents, w.cash)
		}
		if got := a.TotalTrades; got != orders {
			t.Fatalf("%s trades got %d want %d", id, got, orders)
		}
	}
}

func TestDailyTickPaysEveryAccountOnce(t *testing.T) {
	ctx := context.Background()
	svc, st := testService(t)
	for _, id := range []string{"alice", "bob"} {
		if err := svc.EnsureAccount(ctx, id); err != nil {
			t.Fatalf("ensure %s: %v", id, err)
		}
		if _, err := svc.PlaceOrder(ctx, OrderInput{AccountID: id, Symbol: "YIELD", Side: engine.SideBuy, Quantity: 5}); err != nil {
			t.Fatalf("buy for %s: %v", id, err)
		}
	}

	report, err := svc.RunDailyTick(ctx)
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if report.Day != 1 || report.Accounts != 2 {
		t.Fatalf("report: %+v", report)
	}
	if report.DividendEvents != 2 {
		t.Fatalf("dividend events got %d want 2", report.DividendEvents)
	}

	for _, id := range []string{"alice", "bob"} {
		snap, err := st.LoadAccount(ctx, id)
		if err != nil {
			t.Fatalf("load %s: %v", id, err)
		}
		a := engine.ImportAccount(snap)
		if a.Day != 1 {
			t.Fatalf("%s day got %d want 1", id, a.Day)
		}
		// 5 shares x $10/share, paid to cash before the schedule advanced.
		if want := 50 * engine.CentsPerDollar; a.TotalDividendCents != want {
			t.Fatalf("%s dividends got %d want %d", id, a.TotalDividendCents, want)
		}
	}

	uniSnap, err := st.LoadUniverse(ctx)
	if err != nil {
		t.Fatalf("load universe: %v", err)
	}
	u := engine.ImportUniverse(uniSnap, testDefs())
	if u.Day != 1 {
		t.Fatalf("universe day got %d want 1", u.Day)
	}
	if got := u.Assets["YIELD"].NextDividendDay; got != 6 {
		t.Fatalf("schedule advanced to %d want 6", got)
	}

	// The next day nothing is due; no account gets paid twice.
	report, err = svc.RunDailyTick(ctx)
	if err != nil {
		t.Fatalf("second tick: %v", err)
	}
	if report.DividendEvents != 0 {
		t.Fatalf("second tick paid dividends: %+v", report)
	}
}

func TestDailyTickReportsUnlocks(t *testing.T) {
	ctx := context.Background()
	svc, _ := testService(t)
	if err := svc.EnsureAccount(ctx, "alice"); err != nil {
		t.Fatalf("ensure account: %v", err)
	}
	// 50 shares x $10/share pays $500 on the first tick, which unlocks the
	// passive-income achievement during the tick itself.
	if err := svc.TakeLoan(ctx, "alice", 4_000*engine.CentsPerDollar, ""); err != nil {
		t.Fatalf("loan: %v", err)
	}
	if _, err := svc.PlaceOrder(ctx, OrderInput{AccountID: "alice", Symbol: "YIELD", Side: engine.SideBuy, Quantity: 50}); err != nil {
		t.Fatalf("buy: %v", err)
	}

	report, err := svc.RunDailyTick(ctx)
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if report.Unlocks != 1 {
		t.Fatalf("unlocks got %d want 1", report.Unlocks)
	}
	achs, err := svc.Achievements(ctx, "alice")
	if err != nil {
		t.Fatalf("achievements: %v", err)
	}
	var unlocked bool
	for _, a := range achs {
		if a.Key == "dividend_income" {
			unlocked = a.Unlocked
		}
	}
	if !unlocked {
		t.Fatalf("dividend_income not unlocked after tick")
	}
}

func TestSnapshotTransferBetweenServices(t *testing.T) {
	ctx := context.Background()
	src, _ := testService(t)
	if err := src.EnsureAccount(ctx, "alice"); err != nil {
		t.Fatalf("ensure account: %v", err)
	}
	if _, err := src.PlaceOrder(ctx, OrderInput{AccountID: "alice", Symbol: "YIELD", Side: engine.SideBuy, Quantity: 3}); err != nil {
		t.Fatalf("buy: %v", err)
	}
	snap, err := src.ExportSnapshot(ctx, "alice")
	if err != nil {
		t.Fatalf("export: %v", err)
	}

	dst, dstStore := testService(t)
	if err := dst.ImportSnapshot(ctx, "alice", snap); err != nil {
		t.Fatalf("import: %v", err)
	}
	got, err := dstStore.LoadAccount(ctx, "alice")
	if err != nil {
		t.Fatalf("load imported account: %v", err)
	}
	a := engine.ImportAccount(got)
	if a.Positions["YIELD"].Quantity != 3 {
		t.Fatalf("imported position: %+v", a.Positions)
	}

	// Re-importing the same snapshot converges on the same state.
	if err := dst.ImportSnapshot(ctx, "alice", snap); err != nil {
		t.Fatalf("re-import: %v", err)
	}
	again, err := dstStore.LoadAccount(ctx, "alice")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(again) != len(got) {
		t.Fatalf("re-import drifted: %d vs %d keys", len(again), len(got))
	}
}

func TestMigrateOverwritesTargetAndAudits(t *testing.T) {
	ctx := context.Background()
	src, srcStore := testService(t)
	if err := src.EnsureAccount(ctx, "alice"); err != nil {
		t.Fatalf("ensure account: %v", err)
	}
	if _, err := src.PlaceOrder(ctx, OrderInput{AccountID: "alice", Symbol: "BITZ", Side: engine.SideBuy, Quantity: 1}); err != nil {
		t.Fatalf("buy: %v", err)
	}

	dstStore := store.NewMemory()
	rec, err := Migrate(ctx, srcStore, dstStore, testDefs(), "alice", nil)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if rec.AccountID != "alice" || rec.Source != "memory" || rec.Target != "memory" {
		t.Fatalf("audit record: %+v", rec)
	}
	if rec.ID == "" || rec.At.IsZero() {
		t.Fatalf("audit record missing id or timestamp: %+v", rec)
	}

	snap, err := dstStore.LoadAccount(ctx, "alice")
	if err != nil {
		t.Fatalf("load migrated account: %v", err)
	}
	a := engine.ImportAccount(snap)
	if a.Positions["BITZ"].Quantity != 1 {
		t.Fatalf("migrated position: %+v", a.Positions)
	}
	// The target had no universe, so migration seeds it from the source.
	if _, err := dstStore.LoadUniverse(ctx); err != nil {
		t.Fatalf("target universe not seeded: %v", err)
	}
}

func TestMiningLifecycle(t *testing.T) {
	ctx := context.Background()
	svc, _ := testService(t)
	if err := svc.EnsureAccount(ctx, "alice"); err != nil {
		t.Fatalf("ensure account: %v", err)
	}
	if err := svc.BuyMiner(ctx, "alice", ""); err != nil {
		t.Fatalf("buy miner: %v", err)
	}
	if _, err := svc.RunDailyTick(ctx); err != nil {
		t.Fatalf("tick: %v", err)
	}
	d, err := svc.Dashboard(ctx, "alice")
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if d.MinerCount != 1 || d.MinedUnits <= 0 {
		t.Fatalf("mining state: count %d units %v", d.MinerCount, d.MinedUnits)
	}
	if _, err := svc.SellMined(ctx, "alice", d.MinedUnits, ""); err != nil {
		t.Fatalf("sell mined: %v", err)
	}
}

func TestLeaderboardRanksByNetWorth(t *testing.T) {
	ctx := context.Background()
	svc, _ := testService(t)
	for _, id := range []string{"alice", "bob"} {
		if err := svc.EnsureAccount(ctx, id); err != nil {
			t.Fatalf("ensure %s: %v", id, err)
		}
	}
	// Bob's loan interest puts him slightly behind alice after one day.
	if err := svc.TakeLoan(ctx, "bob", 100*engine.CentsPerDollar, ""); err != nil {
		t.Fatalf("loan: %v", err)
	}
	if _, err := svc.RunDailyTick(ctx); err != nil {
		t.Fatalf("tick: %v", err)
	}

	rows, err := svc.Leaderboard(ctx, 10)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows got %d want 2", len(rows))
	}
	if rows[0].Rank != 1 || rows[1].Rank != 2 {
		t.Fatalf("ranks: %+v", rows)
	}
	if rows[0].NetWorthCents < rows[1].NetWorthCents {
		t.Fatalf("leaderboard not sorted: %+v", rows)
	}
}
