// Command ranchcore runs the livestock sync and analytics server.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ranchcore/internal/blob"
	"ranchcore/internal/config"
	"ranchcore/internal/core"
	"ranchcore/internal/httpapi"
	"ranchcore/internal/scheduler"
	"ranchcore/internal/seed"
	"ranchcore/pkg/domain"
	"ranchcore/pkg/logger"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "ranchcore",
	Short: "Livestock sync reconciliation and herd analytics server",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runServe(cmd.Context())
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load the demo dataset into the configured store",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runSeed(cmd.Context())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "ranchcore.toml", "path to the TOML config file")
	rootCmd.AddCommand(serveCmd, seedCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := logger.Must(logger.New(cfg.Log.Level))
	defer log.Sync()

	store, err := core.OpenPersistentStore(cfg.Storage, core.NewDefaultRulesEngine())
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer closeStore(store, log)

	blobs, err := blob.Open(ctx, cfg.Blob)
	if err != nil {
		return fmt.Errorf("open blob store: %w", err)
	}

	svc := core.NewService(store, logger.Named(log, "service"))
	reconciler := core.NewReconciler(store, logger.Named(log, "sync"))
	aggregator := core.NewAggregator(store, logger.Named(log, "analytics"), cfg.Analytics.CalfValue)

	if cfg.Scheduler.Enabled {
		sched := scheduler.New(svc, aggregator, cfg.Scheduler.MetricsCron, logger.Named(log, "scheduler"))
		if err := sched.Start(); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
		defer sched.Stop()
	}

	api := httpapi.NewServer(svc, reconciler, aggregator, blobs, cfg.Auth.Tokens, logger.Named(log, "http"))
	api.EnableMetrics()

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", zap.String("addr", cfg.Server.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
	}
	return nil
}

func runSeed(ctx context.Context) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := logger.Must(logger.New(cfg.Log.Level))
	defer log.Sync()

	store, err := core.OpenPersistentStore(cfg.Storage, core.NewDefaultRulesEngine())
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer closeStore(store, log)

	svc := core.NewService(store, logger.Named(log, "service"))
	return seed.New(svc, logger.Named(log, "seed"), domain.Today()).Run(ctx)
}

func closeStore(store core.PersistentStore, log *zap.Logger) {
	if closer, ok := store.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			log.Warn("close store", zap.Error(err))
		}
	}
}
