package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"reddit_alert/internal/api"
	"reddit_alert/internal/config"
	"reddit_alert/internal/dispatcher"
	"reddit_alert/internal/fetcher"
	"reddit_alert/internal/lease"
	"reddit_alert/internal/mailer"
	"reddit_alert/internal/scanner"
	"reddit_alert/internal/scheduler"
	"reddit_alert/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	log := newLogger(cfg.LogLevel)

	if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			log.Error("create data directory", "path", dir, "error", err)
			os.Exit(1)
		}
	}

	store, err := storage.NewSQLite(cfg.DatabasePath)
	if err != nil {
		log.Error("open database", "path", cfg.DatabasePath, "error", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	feed := fetcher.New(&http.Client{Timeout: 30 * time.Second}, cfg.UserAgent)
	leases := lease.NewManager(store, cfg.LeaseTTL)
	sc := scanner.New(store, feed, leases, scanner.Mode(cfg.ScanMode), log)
	dp := dispatcher.New(store, mailer.NewResend(cfg.ResendAPIKey), cfg.SendingEmail, cfg.DispatchBatch, log)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if cfg.ScanSchedule != "" || cfg.DispatchSchedule != "" {
		sched := scheduler.New(log)
		if cfg.ScanSchedule != "" {
			if err := sched.Add(cfg.ScanSchedule, "scan", func(ctx context.Context) error {
				_, err := sc.Run(ctx)
				return err
			}); err != nil {
				log.Error("schedule scan", "error", err)
				os.Exit(1)
			}
		}
		if cfg.DispatchSchedule != "" {
			if err := sched.Add(cfg.DispatchSchedule, "dispatch", func(ctx context.Context) error {
				_, err := dp.Drain(ctx)
				return err
			}); err != nil {
				log.Error("schedule dispatch", "error", err)
				os.Exit(1)
			}
		}
		sched.Start()
		defer sched.Stop()
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.NewServer(sc, dp, log).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("listening", "addr", cfg.HTTPAddr, "scan_mode", cfg.ScanMode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown", "error", err)
	}
	log.Info("server stopped")
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
