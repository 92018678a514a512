package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"baconbot/internal/channel"
	"baconbot/internal/config"
	"baconbot/internal/domain"
	"baconbot/internal/gateway"
	"baconbot/internal/ledger"
	"baconbot/internal/security"
	"baconbot/internal/server"
	"baconbot/internal/wallet"

	"github.com/spf13/cobra"
)

var errUnsignedRefused = errors.New("slack.signingSecret is not set; refusing to serve unsigned slash commands (set slack.allowUnsigned for local development)")

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP gateway (and the Socket Mode listener when enabled)",
		Long:  "Serves the /bacon slash-command endpoint, the distribution API and static assets. Press Ctrl+C to stop.",
		RunE:  runServe,
	}
}

// checkSigning enforces that unsigned slash commands are only accepted when
// explicitly allowed.
func checkSigning(cfg *config.Config) error {
	if cfg.Slack.SigningSecret != "" {
		return nil
	}
	if !cfg.Slack.AllowUnsigned {
		return errUnsignedRefused
	}
	logger.Warn("slack signing secret not set: slash commands are accepted without verification")
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := checkSigning(cfg); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Ledger (optional, best-effort)
	var (
		store    *ledger.Store
		reader   domain.LedgerReader
		recorder channel.TransferRecorder
	)
	if cfg.Ledger.Enabled {
		store, err = ledger.Open(cfg.Ledger.DBPath, logger)
		if err != nil {
			return fmt.Errorf("ledger: %w", err)
		}
		defer store.Close()
		reader = store
		recorder = ledger.NewRecorder(store, time.Duration(cfg.Ledger.WriteTimeoutSeconds)*time.Second, logger)
		logger.Info("ledger enabled", "db", cfg.Ledger.DBPath)
	} else {
		logger.Info("ledger disabled")
	}

	settler, err := wallet.New(cfg, logger)
	if err != nil {
		return err
	}
	if cfg.Wallet.Settler == "http" && cfg.Backend.URL == "" {
		logger.Warn("backend.url not set: distribution requests will fail")
	}

	gw := gateway.New(gateway.Config{
		Settler:     settler,
		Ledger:      reader,
		APIPassword: cfg.Wallet.APIPassword,
		Limiter:     gateway.NewRateLimiter(cfg.RateLimit.Burst, float64(cfg.RateLimit.PerMinute)),
		Version:     version,
		Logger:      logger,
	})

	dispatcher := channel.NewDispatcher(channel.DispatcherConfig{
		Command:   cfg.Slack.Command,
		TokenName: cfg.Slack.TokenName,
		Recorder:  recorder,
		Logger:    logger,
	})

	var metricsEndpoint string
	if cfg.Metrics.Enabled {
		metricsEndpoint = cfg.Metrics.Endpoint
	}

	srv := server.New(server.Config{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		StaticDir:       cfg.Server.StaticDir,
		ShutdownTimeout: time.Duration(cfg.Server.ShutdownTimeoutSeconds) * time.Second,
		CommandPath:     cfg.Slack.CommandPath,
		Slash: channel.NewSlashHandler(channel.SlashConfig{
			Verifier:   security.NewVerifier(cfg.Slack.SigningSecret, nil),
			Dispatcher: dispatcher,
			Logger:     logger,
		}),
		Gateway:         gw,
		MetricsEndpoint: metricsEndpoint,
		Logger:          logger,
	})

	var wg sync.WaitGroup
	if cfg.Slack.SocketMode {
		listener := channel.NewSocketListener(channel.SocketConfig{
			BotToken:   cfg.Slack.BotToken,
			AppToken:   cfg.Slack.AppToken,
			Command:    cfg.Slack.Command,
			Dispatcher: dispatcher,
			Logger:     logger,
		})
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := listener.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Error("socket mode listener stopped", "err", err)
			}
		}()
		logger.Info("slack socket mode enabled")
	}

	logger.Info("baconbot started. Press Ctrl+C to stop.", "addr", srv.Addr(), "command", cfg.Slack.Command, "path", cfg.Slack.CommandPath)

	err = srv.Run(ctx)
	stop()

	// Bound the wait for the socket listener the same way the HTTP server is bounded.
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Duration(cfg.Server.ShutdownTimeoutSeconds) * time.Second):
		logger.Warn("shutdown timed out, forcing exit")
	}

	if err != nil {
		return err
	}
	logger.Info("shutdown complete")
	return nil
}
