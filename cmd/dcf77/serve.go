package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/aso824/dcf77decoder/internal/api"
	"github.com/aso824/dcf77decoder/internal/auth"
	"github.com/aso824/dcf77decoder/internal/config"
	"github.com/aso824/dcf77decoder/internal/health"
	"github.com/aso824/dcf77decoder/internal/journal"
	"github.com/aso824/dcf77decoder/internal/metrics"
	"github.com/aso824/dcf77decoder/internal/publish"
	"github.com/aso824/dcf77decoder/internal/store"
	"github.com/aso824/dcf77decoder/internal/stream"
)

const (
	gaugeInterval   = 10 * time.Second
	shutdownTimeout = 5 * time.Second
)

func newServeCommand() *cobra.Command {
	var configPath, addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP decoding service",
		Long: `Run the HTTP service. Settings come from .dcf77.yaml (current directory
or $HOME, or --config) and DCF77_* environment variables, for example
DCF77_SERVER_ADDR or DCF77_MQTT_BROKER.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Server.Addr = addr
			}

			level, _ := config.ParseLevel(cfg.Log.Level)
			logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level: level,
			}))

			// Graceful shutdown on SIGINT/SIGTERM.
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return runServe(ctx, cfg, logger)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "config file (default .dcf77.yaml)")
	cmd.Flags().StringVar(&addr, "addr", config.DefaultServerAddr, "listen address, overrides server.addr")

	return cmd
}

// runServe runs the service until ctx is done, then shuts down and writes a
// final snapshot.
func runServe(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	st := store.New()
	ready := &health.Readiness{}

	var jr *journal.Journal
	if cfg.Journal.Enabled {
		jr = journal.New(cfg.Journal.Dir, cfg.Journal.MaxFiles)
		restoreSnapshot(jr, st, logger)
	}
	metrics.SetReceivers(st.Len())

	var pub publish.Publisher = publish.Nop{}
	if cfg.MQTT.Enabled {
		m, err := publish.NewMQTT(publish.Config{
			Broker:      cfg.MQTT.Broker,
			TopicPrefix: cfg.MQTT.TopicPrefix,
			Username:    cfg.MQTT.Username,
			Password:    cfg.MQTT.Password,
			QoS:         byte(cfg.MQTT.QoS),
			Timeout:     cfg.MQTT.Timeout,
		}, logger)
		if err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
		pub = m
	}
	defer pub.Close()

	streamHandler := stream.NewHandler(st, stream.Config{
		MaxConcurrentPerIP: cfg.Stream.MaxConcurrentPerIP,
		KeepaliveInterval:  cfg.Stream.KeepaliveInterval,
		Buffer:             cfg.Stream.Buffer,
		TrustProxy:         cfg.Server.TrustProxy,
	}, logger)

	authCfg := auth.Config{
		Enabled:    cfg.Auth.Enabled,
		Token:      cfg.Auth.Token,
		PublicRead: cfg.Auth.PublicRead,
	}

	srv := api.NewServer(cfg.Server.Addr, logger, authCfg, api.Deps{
		Store:     st,
		Publisher: pub,
		Stream:    streamHandler,
		Readiness: ready,
		Century:   cfg.Server.Century,
	})

	journalDone := make(chan struct{})
	if jr != nil {
		go func() {
			defer close(journalDone)
			jr.Run(ctx, st, cfg.Journal.Interval, logger)
		}()
	} else {
		close(journalDone)
	}

	// Background goroutine to update the receiver gauges.
	go func() {
		ticker := time.NewTicker(gaugeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				metrics.SetReceivers(st.Len())
				if age := st.AgeSeconds(); age >= 0 {
					metrics.SetLastDecodeAge(age)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	listenErr := make(chan error, 1)
	go func() {
		logger.Info("starting server",
			"addr", cfg.Server.Addr,
			"auth_enabled", authCfg.Enabled,
			"journal_enabled", cfg.Journal.Enabled,
			"mqtt_enabled", cfg.MQTT.Enabled,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			listenErr <- err
		}
	}()
	ready.SetReady(true)

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-listenErr:
		runErr = fmt.Errorf("listen: %w", err)
	}

	ready.SetReady(false)
	logger.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.HTTPServer().Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
		if runErr == nil {
			runErr = fmt.Errorf("shutdown: %w", err)
		}
	}

	cancel()
	<-journalDone

	logger.Info("server stopped")
	return runErr
}

// restoreSnapshot loads the newest snapshot into st. A missing or unreadable
// snapshot leaves the store empty.
func restoreSnapshot(jr *journal.Journal, st *store.Store, logger *slog.Logger) {
	recs, ts, err := jr.LoadLatest()
	switch {
	case errors.Is(err, journal.ErrNoSnapshot):
		logger.Info("no snapshot found, starting empty", "dir", jr.Dir())
	case err != nil:
		logger.Warn("failed to load snapshot, starting empty", "dir", jr.Dir(), "error", err)
	default:
		st.Restore(recs)
		logger.Info("restored receivers from snapshot",
			"count", len(recs),
			"written_at", ts.Format(time.RFC3339),
		)
	}
}
