package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/coder/quartz"
	"golang.org/x/sync/errgroup"

	"memory-match/api"
	"memory-match/auth"
	"memory-match/config"
	"memory-match/lobby"
	"memory-match/storage"
	"memory-match/ws"
)

// ServeCmd runs the HTTP API and the websocket hub.
type ServeCmd struct {
	Port int `short:"p" help:"HTTP port (overrides config)"`
}

func (c *ServeCmd) Run(cfg *config.Config) error {
	if c.Port > 0 {
		cfg.HTTPPort = c.Port
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	kv, err := storage.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer kv.Close()

	verifier, err := auth.NewVerifier(ctx, cfg.AuthBaseURL, cfg.AuthSecret)
	if err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	if verifier.Enabled() {
		slog.Info("auth enabled", "tag", "main", "jwks", cfg.AuthBaseURL != "")
	} else {
		slog.Info("auth disabled; every client plays anonymously", "tag", "main")
	}

	slog.Info("configuration", "tag", "main",
		"pairs", len(cfg.PairIDs),
		"difficulty", cfg.Difficulty,
		"oddCard", cfg.OddCard,
		"resolutionDelayMS", cfg.ResolutionDelayMS,
		"storage", cfg.StorageBackend)

	clock := quartz.NewReal()
	l := lobby.New(cfg, kv, lobby.Options{Clock: clock})
	defer l.Close()

	hub := ws.NewHub(cfg, l, verifier)
	settings := func(owner string) *storage.Store {
		return storage.NewStore(kv, lobby.SettingsNamespace(owner), clock, cfg.HighScoreLimit)
	}
	handler := api.NewHandler(cfg, l, verifier, settings)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           handler.Router(hub.ServeWS),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		slog.Info("memory-match server listening", "tag", "main", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down", "tag", "main")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
