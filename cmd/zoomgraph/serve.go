package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/zoomgraph/internal/metrics"
	"github.com/kailas-cloud/zoomgraph/internal/snapshot"
	chiTransport "github.com/kailas-cloud/zoomgraph/internal/transport/chi"
	healthuc "github.com/kailas-cloud/zoomgraph/internal/usecase/health"
	queryuc "github.com/kailas-cloud/zoomgraph/internal/usecase/query"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the current snapshot over HTTP and reload newly published runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, "serve")
		if err != nil {
			return err
		}
		defer a.Close()

		if cmd.Flags().Changed("port") {
			a.cfg.HTTP.Port = servePort
		}
		return runServe(ctx, a)
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "HTTP port (overrides http.port)")
}

func runServe(ctx context.Context, a *app) error {
	cfg := a.cfg
	logger := a.logger

	holder := snapshot.NewHolder()
	watcher := snapshot.NewWatcher(a.repo, holder,
		time.Duration(cfg.Reload.IntervalSec)*time.Second,
		metrics.NewSnapshot(prometheus.DefaultRegisterer),
		logger.Named("snapshot"),
	)

	// No published run yet is fine: queries answer 503 until the watcher finds one.
	if _, err := watcher.Refresh(ctx); err != nil {
		logger.Warn("Initial snapshot load failed", zap.Error(err))
	}
	if !holder.Loaded() {
		logger.Warn("No snapshot published yet; serving 503 until a build completes")
	}
	go watcher.Run(ctx)

	querySvc := queryuc.New(holder, queryuc.Limits{
		DefaultPageSize:    cfg.Query.DefaultPageSize,
		MaxPageSize:        cfg.Query.MaxPageSize,
		DefaultSearchLimit: cfg.Query.DefaultSearchLimit,
		MaxSearchLimit:     cfg.Query.MaxSearchLimit,
		DefaultNeighbors:   cfg.Query.DefaultNeighbors,
		MaxNeighbors:       cfg.Query.MaxNeighbors,
	})
	healthSvc := healthuc.New(a.store, holder)

	server := chiTransport.NewServer(querySvc, healthSvc, logger)
	handler := chiTransport.NewRouter(server, chiTransport.RouterConfig{
		APIKeys:     cfg.Auth.APIKeys,
		CORSOrigins: cfg.HTTP.CORSOrigins,
		Metrics:     metrics.NewHTTP(prometheus.DefaultRegisterer),
	}, logger)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
		return fmt.Errorf("shutdown: %w", err)
	}

	logger.Info("Server stopped gracefully")
	return nil
}
