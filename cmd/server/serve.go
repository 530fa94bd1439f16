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
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/fuomag9/kabomba-status/internal/api"
	"github.com/fuomag9/kabomba-status/internal/database"
	"github.com/fuomag9/kabomba-status/internal/jobs"
	"github.com/fuomag9/kabomba-status/internal/live"
	"github.com/fuomag9/kabomba-status/internal/logger"
	"github.com/fuomag9/kabomba-status/internal/metrics"
	"github.com/fuomag9/kabomba-status/internal/monitor"
	"github.com/fuomag9/kabomba-status/internal/notification"
	"github.com/fuomag9/kabomba-status/internal/settings"
	"github.com/fuomag9/kabomba-status/internal/store"
	"github.com/fuomag9/kabomba-status/internal/uptime"
)

const shutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server and the check scheduler",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	log := logger.Log()

	db, err := database.Connect(cfg.Database, cfg.Log.Level == "debug")
	if err != nil {
		return err
	}
	defer func() {
		if err := database.Close(db); err != nil {
			log.WithError(err).Warn("failed to close database")
		}
	}()

	if err := database.RunMigrations(db, cfg.Database); err != nil {
		return err
	}

	st := store.New(db)
	provider := settings.NewProvider(st, cfg.Checker.SettingsCacheTTL)
	guard := monitor.NewURLGuard(cfg.AllowPrivateIPs)
	hub := live.NewHub()
	dispatcher := notification.NewDispatcher(st, st, provider, notification.NewSMTPMailer())

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.Register(registry)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	checker := monitor.NewScheduler(st, monitor.NewHTTPProber(guard), provider, dispatcher, hub, monitor.Options{
		MinInterval: cfg.Checker.MinInterval,
		RetryDelay:  cfg.Checker.RetryDelay,
	})
	if err := checker.InitializeAll(ctx); err != nil {
		return fmt.Errorf("failed to start checker: %w", err)
	}
	defer checker.Shutdown()

	retention := jobs.NewScheduler(st, provider)
	if err := retention.Start(); err != nil {
		return fmt.Errorf("failed to start jobs: %w", err)
	}

	limiter := api.NewRateLimiter(rate.Limit(cfg.RateLimit.RequestsPerSecond), cfg.RateLimit.Burst)
	go limiter.StartCleanup(ctx)

	router := api.NewRouter(api.Deps{
		Config:   cfg,
		Store:    st,
		Checker:  checker,
		Guard:    guard,
		Settings: provider,
		Mailer:   dispatcher,
		Hub:      hub,
		Uptime:   uptime.NewCalculator(st),
		Registry: registry,
		Limiter:  limiter,
	})

	// No WriteTimeout: the live endpoints hold their responses open
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("port", cfg.Port).WithField("version", version).Info("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	retention.Stop(shutdownCtx)
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	log.Info("server exited")
	return nil
}
