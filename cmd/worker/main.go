// Package main - точка входа для фоновых процессов (Worker) сервиса студентов.
//
// Worker отвечает за периодические задачи:
// - Ежедневный обход просроченных книг и выставление штрафов библиотеки
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/campus-ledger/student-service/config"
	"github.com/campus-ledger/student-service/internal/infrastructure/external/billing"
	"github.com/campus-ledger/student-service/internal/infrastructure/external/library"
	"github.com/campus-ledger/student-service/internal/infrastructure/persistence/memory"
	"github.com/campus-ledger/student-service/internal/infrastructure/persistence/postgres"
	"github.com/campus-ledger/student-service/internal/infrastructure/persistence/redis"
	"github.com/campus-ledger/student-service/internal/infrastructure/scheduler"
	"github.com/campus-ledger/student-service/internal/infrastructure/scheduler/jobs"
	"github.com/campus-ledger/student-service/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. ЗАГРУЗКА КОНФИГУРАЦИИ
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := setupLogger(cfg)
	log.Info("starting student service worker",
		"env", cfg.App.Environment,
		"sweep_interval", cfg.Scheduler.FineSweepInterval.String(),
		"dedup", cfg.Scheduler.FineDedupEnabled,
		"share_feed", cfg.Scheduler.FineSweepShareFeed,
	)

	if !cfg.Scheduler.Enabled {
		log.Info("scheduler disabled, nothing to do")
		return nil
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. ПОДКЛЮЧЕНИЕ К БАЗЕ ДАННЫХ
	// ─────────────────────────────────────────────────────────────────────────
	dbConn, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		log.Info("closing database connection...")
		dbConn.Close()
	}()

	// Worker также должен иметь актуальную схему
	if err := postgres.NewMigrator(dbConn).Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 3. РЕЕСТР ШТРАФОВ (только при включённой дедупликации)
	// ─────────────────────────────────────────────────────────────────────────
	var ledger jobs.FineLedger
	if cfg.Scheduler.FineDedupEnabled {
		ledger = memory.NewFineLedger()
		if !cfg.Redis.Disabled {
			cache, err := redis.NewCache(ctx, redis.Config{
				URL:      cfg.Redis.URL,
				Host:     cfg.Redis.Host,
				Port:     cfg.Redis.Port,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
				PoolSize: cfg.Redis.PoolSize,
			})
			if err != nil {
				log.Warn("redis unavailable, fine dedup is process-local", "error", err)
			} else {
				defer cache.Close()
				ledger = redis.NewFineLedger(cache, cfg.Scheduler.FineDedupTTL)
			}
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. ВНЕШНИЕ КЛИЕНТЫ
	// ─────────────────────────────────────────────────────────────────────────
	billingCfg := billing.DefaultClientConfig(cfg.Billing.BaseURL)
	billingCfg.Timeout = cfg.Billing.RequestTimeout
	billingCfg.Retrier = retry.BillingRetrier(retry.LogRetries(log, "billing"))
	billingCfg.Logger = log

	libraryCfg := library.DefaultClientConfig(cfg.Library.BaseURL)
	libraryCfg.Timeout = cfg.Library.RequestTimeout
	libraryCfg.Retrier = retry.LibraryRetrier(retry.LogRetries(log, "library"))
	libraryCfg.Logger = log

	sweep := jobs.NewLibraryFineSweepJob(
		postgres.NewStudentRepository(dbConn),
		library.NewClient(libraryCfg),
		billing.NewClient(billingCfg),
		ledger,
		log,
		jobs.LibraryFineSweepConfig{
			Concurrency:  cfg.Scheduler.FineSweepConcurrency,
			Timeout:      cfg.Scheduler.FineSweepTimeout,
			FineAmount:   cfg.Enrollment.LibraryFineAmount,
			DedupEnabled: cfg.Scheduler.FineDedupEnabled,
			ShareFeed:    cfg.Scheduler.FineSweepShareFeed,
		},
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 5. ПЛАНИРОВЩИК
	// ─────────────────────────────────────────────────────────────────────────
	schedCfg := scheduler.DefaultSchedulerConfig()
	schedCfg.Logger = log
	sched := scheduler.NewScheduler(schedCfg)

	every, err := scheduler.NewIntervalSchedule(cfg.Scheduler.FineSweepInterval)
	if err != nil {
		return fmt.Errorf("invalid sweep interval: %w", err)
	}
	if err := sched.Register(sweep, every); err != nil {
		return fmt.Errorf("failed to register sweep: %w", err)
	}

	sched.OnJobDone(func(r scheduler.JobResult) {
		if stats := sweep.LastStats(); stats != nil && r.JobName == sweep.Name() {
			log.Info("fine sweep finished",
				"students", stats.TotalStudents,
				"fines_created", stats.FinesCreated,
				"fines_skipped", stats.FinesSkipped,
				"failed_students", stats.FailedStudents,
				"duration", r.Duration.String(),
			)
		}
	})

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	if cfg.Scheduler.FineSweepRunOnStart {
		go func() {
			if _, err := sched.RunNow(ctx, sweep.Name()); err != nil {
				log.Error("initial fine sweep failed", "error", err)
			}
		}()
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", "signal", sig.String())
	case <-ctx.Done():
	}

	log.Info("starting graceful shutdown...", "timeout", cfg.App.ShutdownTimeout.String())

	done := make(chan struct{})
	go func() {
		_ = sched.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(cfg.App.ShutdownTimeout):
		log.Warn("scheduler did not stop in time")
	}

	log.Info("shutdown completed successfully")
	return nil
}

// setupLogger настраивает структурированное логирование.
func setupLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if cfg.App.Debug {
		opts.Level = slog.LevelDebug
	}

	var handler slog.Handler
	if cfg.IsProduction() {
		// JSON формат для production (лучше для агрегаторов логов)
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	log := slog.New(handler)
	slog.SetDefault(log)
	return log
}
