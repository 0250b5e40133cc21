package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"github.com/oktamirror/oktamirror/internal/app"
	"github.com/oktamirror/oktamirror/internal/app/maintenance"
	"github.com/oktamirror/oktamirror/internal/database"
	"github.com/oktamirror/oktamirror/internal/okta"
	"github.com/oktamirror/oktamirror/internal/services"
	apperrors "github.com/oktamirror/oktamirror/pkg/errors"
	"github.com/oktamirror/oktamirror/pkg/logger"
)

const shutdownTimeout = 15 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(apperrors.ExitCodeFor(err))
	}
}

func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("oktamirror-syncd", flag.ContinueOnError)
	fs.SetOutput(os.Stdout)

	var (
		configPath  string
		tenantFlag  string
		once        bool
		daemon      bool
		cleanupOnly bool
	)
	fs.StringVar(&configPath, "config", "", "Path to configuration directory")
	fs.StringVar(&tenantFlag, "tenant", "", "Tenant identifier (defaults to the org URL host)")
	fs.BoolVar(&once, "once", false, "Run a single sync and exit (the default)")
	fs.BoolVar(&daemon, "daemon", false, "Run continuously on the configured schedule")
	fs.BoolVar(&cleanupOnly, "cleanup-only", false, "Run history retention cleanup and exit")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if once && daemon {
		return apperrors.ErrMissingConfig.WithInternal(errors.New("-once and -daemon are mutually exclusive"))
	}

	var paths []string
	if configPath != "" {
		paths = append(paths, configPath)
	}
	cfg, err := app.LoadConfig(paths...)
	if err != nil {
		return apperrors.ErrMissingConfig.WithInternal(err)
	}
	if tenantFlag != "" {
		cfg.Sync.Tenant = tenantFlag
	}

	if err := app.ConfigureLogging(cfg.Log); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer logger.Sync() // best effort

	db, err := database.Init(database.Config{
		Driver: cfg.Database.Driver,
		Path:   cfg.Database.Path,
		DSN:    cfg.Database.DSN,
	})
	if err != nil {
		return apperrors.Wrap(err, "initialise database")
	}

	history, err := services.NewHistoryService(db)
	if err != nil {
		return err
	}
	queries, err := services.NewQueryHistoryService(db)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return err
	}
	tenantID, err := cfg.TenantID()
	if err != nil {
		return err
	}

	log := logger.WithModule("syncd")

	if cleanupOnly {
		if _, err := history.CleanupOldDays(ctx, tenantID, cfg.Sync.HistoryRetentionDays); err != nil {
			return apperrors.ErrCleanupFailed.WithInternal(err)
		}
		log.Info("history cleanup finished", zap.String("tenant_id", tenantID))
		return nil
	}

	syncFn := newSyncRunner(db, cfg, tenantID)

	if daemon {
		return runDaemon(ctx, cfg, tenantID, syncFn, history, queries, log)
	}

	if err := syncFn(ctx); err != nil {
		return err
	}
	if _, err := history.CleanupOldDays(ctx, tenantID, cfg.Sync.HistoryRetentionDays); err != nil {
		return apperrors.ErrCleanupFailed.WithInternal(err)
	}
	return nil
}

// newSyncRunner returns a function that performs one full sync. Each
// invocation builds a fresh client and orchestrator so cancellation state and
// accumulated auth errors never leak between runs.
func newSyncRunner(db *gorm.DB, cfg *app.Config, tenantID string) maintenance.SyncFunc {
	limiter := rate.NewLimiter(rate.Limit(cfg.Okta.RateLimit), cfg.Okta.RateBurst)
	log := logger.WithModule("syncd")

	return func(ctx context.Context) error {
		client, err := okta.NewHTTPClient(okta.Config{
			OrgURL:      cfg.Okta.OrgURL,
			Token:       cfg.Okta.Token,
			PageSize:    cfg.Okta.PageSize,
			PageTimeout: cfg.Okta.PageTimeout,
			Limiter:     limiter,
		})
		if err != nil {
			return apperrors.ErrMissingConfig.WithInternal(err)
		}

		store, err := services.NewStoreService(db)
		if err != nil {
			return err
		}
		history, err := services.NewHistoryService(db)
		if err != nil {
			return err
		}
		sync, err := services.NewSyncService(store, history, client, services.SyncOptions{
			DevicesEnabled: cfg.Sync.DevicesEnabled,
		})
		if err != nil {
			return err
		}

		// Translate signal-driven context cancellation into the
		// orchestrator's cooperative flag so an interrupted run finishes
		// the in-flight batch and records CANCELED instead of FAILED.
		watchCtx, stopWatch := context.WithCancel(ctx)
		defer stopWatch()
		go func() {
			<-watchCtx.Done()
			if ctx.Err() != nil {
				sync.Cancel()
			}
		}()

		hist, err := sync.Run(context.WithoutCancel(ctx), tenantID)
		if err != nil {
			return err
		}
		log.Info("sync run finished",
			zap.String("tenant_id", tenantID),
			zap.String("status", string(hist.Status)),
			zap.Int("records_processed", hist.RecordsProcessed))
		return nil
	}
}

func runDaemon(ctx context.Context, cfg *app.Config, tenantID string, syncFn maintenance.SyncFunc, history *services.HistoryService, queries *services.QueryHistoryService, log *zap.Logger) error {
	scheduler := maintenance.NewScheduler(tenantID, syncFn, history, queries,
		maintenance.WithSyncSchedule(cfg.Sync.Schedule),
		maintenance.WithCleanupSchedule(cfg.Sync.CleanupSchedule),
		maintenance.WithRetentionDays(cfg.Sync.HistoryRetentionDays),
	)
	if err := scheduler.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Endpoint, promhttp.Handler())
		metricsServer = &http.Server{Addr: cfg.Metrics.Address, Handler: mux}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics listener failed", zap.Error(err))
			}
		}()
		log.Info("metrics listener started", zap.String("address", cfg.Metrics.Address))
	}

	log.Info("daemon started",
		zap.String("tenant_id", tenantID),
		zap.String("sync_schedule", cfg.Sync.Schedule))
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if metricsServer != nil {
		_ = metricsServer.Shutdown(shutdownCtx)
	}
	if err := scheduler.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("stop scheduler: %w", err)
	}

	log.Info("daemon stopped")
	return nil
}
