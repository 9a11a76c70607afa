package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"

	"fortuna/internal/config"
	"fortuna/internal/game"
	"fortuna/internal/sink"
	"fortuna/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("worker exited", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadWorkerFromEnv()
	if err != nil {
		return err
	}

	st, err := openStore(ctx, cfg.DatabaseURL, cfg.FallbackDBPath, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	defs, err := config.LoadUniverse(cfg.UniversePath)
	if err != nil {
		return err
	}

	achSink, err := buildSink(cfg.DiscordToken, cfg.DiscordChannel, logger)
	if err != nil {
		return err
	}
	defer achSink.Close()

	svc := game.NewService(st, defs, game.Options{
		Sink:            achSink,
		Logger:          logger,
		MiningRatePerKH: cfg.MiningRatePerKH,
	})
	if err := svc.EnsureUniverse(ctx); err != nil {
		return err
	}

	tick := func() {
		report, err := svc.RunDailyTick(ctx)
		if err != nil {
			logger.Error("daily tick failed", "error", err)
			return
		}
		logger.Info("daily tick complete",
			"day", report.Day,
			"accounts", report.Accounts,
			"dividend_events", report.DividendEvents,
			"unlocks", report.Unlocks,
		)
	}

	if cfg.RunOnce {
		tick()
		return nil
	}

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.TickCron, tick); err != nil {
		return err
	}
	scheduler.Start()
	logger.Info("worker scheduled", "cron", cfg.TickCron, "store", st.Name())

	<-ctx.Done()
	logger.Info("shutting down")
	<-scheduler.Stop().Done()
	return nil
}

// openStore mirrors the api binary: primary database plus an optional
// local sqlite fallback.
func openStore(ctx context.Context, databaseURL, fallbackPath string, logger *slog.Logger) (store.Store, error) {
	primary, err := store.Open(ctx, databaseURL, logger)
	if err != nil {
		return nil, err
	}
	if fallbackPath == "" {
		return primary, nil
	}
	local, err := store.OpenSQLite(fallbackPath, logger)
	if err != nil {
		primary.Close()
		return nil, err
	}
	return store.NewFallback(primary, local, logger), nil
}

func buildSink(token, channel string, logger *slog.Logger) (sink.Sink, error) {
	if token == "" || channel == "" {
		return sink.NewLog(logger), nil
	}
	discord, err := sink.NewDiscord(token, channel, logger)
	if err != nil {
		return nil, err
	}
	return sink.NewMulti(sink.NewLog(logger), discord), nil
}
