package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	appai "github.com/bryanwahyu/agroscan/internal/application/ai"
	appsession "github.com/bryanwahyu/agroscan/internal/application/session"
	"github.com/bryanwahyu/agroscan/internal/infra/httpserver"
	"github.com/bryanwahyu/agroscan/internal/infra/imaging"
	"github.com/bryanwahyu/agroscan/internal/middleware"
)

const shutdownTimeout = 10 * time.Second

func runServe(cmd *cobra.Command, args []string) error {
	cfg := appConfig

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := middleware.NewMetrics()

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("storage init: %w", err)
	}

	backend, err := buildAnalyzer(cfg)
	if err != nil {
		return err
	}
	analyzer := appai.NewService(backend, cfg.Analysis.Timeout, logger.Named("analysis"), metrics)

	auditDB, err := openAudit(ctx, cfg)
	if err != nil {
		return fmt.Errorf("audit init: %w", err)
	}
	defer auditDB.Close()

	sessions := appsession.NewService(appsession.Deps{
		Analyzer:        analyzer,
		Store:           store,
		Inspector:       imaging.New(),
		Audit:           auditDB.Repository(),
		Logger:          logger.Named("session"),
		NotificationCap: cfg.Session.NotificationsCap,
	}, appsession.Options{
		IdleTTL:       cfg.Session.IdleTTL,
		SweepInterval: cfg.Session.SweepInterval,
		Observer:      metrics,
	})

	limiter := middleware.NewRateLimiter(cfg.Server.RateCapacity, cfg.Server.RateRefill)
	defer limiter.Stop()

	checkers := map[string]middleware.HealthChecker{"storage": store}
	if auditDB.repo != nil {
		checkers["audit"] = auditDB.repo
	}
	gauges := map[string]middleware.Gauge{}
	if counted, ok := store.(interface{ Len() int }); ok {
		gauges["blobs_held"] = counted.Len
	}

	handler := httpserver.NewRouter(httpserver.Options{
		Sessions:       sessions,
		Audit:          auditDB.Repository(),
		Metrics:        metrics,
		Limiter:        limiter,
		Store:          store,
		Checkers:       checkers,
		Gauges:         gauges,
		Logger:         logger.Named("http"),
		APIKeys:        cfg.Server.APIKeys,
		CORSOrigins:    cfg.Server.CORSOrigins,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second, // uploads can be large
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server listening",
			zap.String("addr", addr),
			zap.String("analyzer", backend.Name()),
			zap.String("storage", cfg.Storage.Driver),
			zap.String("audit", cfg.Audit.Driver),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return sessions.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server...")

		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			logger.Warn("shutdown error", zap.Error(err))
		}
		// in-flight analyses are cancelled and every session's blobs released
		sessions.Shutdown(sctx)
		return nil
	})

	return g.Wait()
}
