package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fortuna/internal/api"
	"fortuna/internal/auth"
	"fortuna/internal/config"
	"fortuna/internal/game"
	"fortuna/internal/sink"
	"fortuna/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadAPIFromEnv()
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

	server := api.New(cfg, logger, auth.New(st), svc)
	httpSrv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api listening", "addr", cfg.Addr, "store", st.Name())
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

// openStore opens the primary store, optionally wrapped with a local sqlite
// fallback so reads keep working through database outages.
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
