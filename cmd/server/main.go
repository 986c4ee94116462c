package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"solpay_gateway/internal/chain"
	"solpay_gateway/internal/config"
	httpd "solpay_gateway/internal/delivery/http"
	"solpay_gateway/internal/rates"
	"solpay_gateway/internal/repository"
	"solpay_gateway/internal/usecase"
)

func main() {
	configPath := flag.String("config", "", "optional config file (yaml, json or toml)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)})))

	repo, err := repository.NewSQLiteRepo(cfg.SQLiteDSN)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer repo.Close()

	store := repository.NewMemoryStore(cfg.PendingTTL)
	feed := rates.NewFeed(cfg.RatesURL, nil)
	rpc := chain.NewClient(cfg.SolanaRPCURL, cfg.Commitment)

	payments := usecase.NewPaymentUsecase(store, rpc, repo, feed, repository.NewRequestLog(cfg.RequestLogDir))
	h := httpd.NewHandler(payments, usecase.NewTxUsecase(repo), repo, store, feed)

	srv := &http.Server{
		Addr: ":" + cfg.AppPort,
		Handler: h.Routes(httpd.RouterConfig{
			Sig: httpd.SigConfig{
				Secret:        cfg.HMACSecret,
				MaxAgeSeconds: cfg.SigMaxAgeSeconds,
			},
			CORSOrigins: cfg.CORSOrigins,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return feed.Start(ctx, cfg.RatesInterval) })
	g.Go(func() error { return store.StartSweeper(ctx, cfg.SweepInterval) })
	g.Go(func() error {
		slog.Info("server listening", "addr", srv.Addr, "rpc", cfg.SolanaRPCURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("server: %v", err)
	}
	slog.Info("server stopped", "pending", store.Len())
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
