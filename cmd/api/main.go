// Package main - точка входа REST API сервиса студентов.
//
// API отвечает за:
// - Регистрацию, вход и профиль студента
// - Запись на курсы и отписку (сага со счётом за обучение)
// - Поиск счетов и проверку права на выпуск
// - Штрафы библиотеки
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/campus-ledger/student-service/config"
	"github.com/campus-ledger/student-service/internal/application/command"
	"github.com/campus-ledger/student-service/internal/application/query"
	"github.com/campus-ledger/student-service/internal/application/saga"
	"github.com/campus-ledger/student-service/internal/domain/student"
	"github.com/campus-ledger/student-service/internal/infrastructure/external/billing"
	"github.com/campus-ledger/student-service/internal/infrastructure/external/library"
	"github.com/campus-ledger/student-service/internal/infrastructure/persistence/memory"
	"github.com/campus-ledger/student-service/internal/infrastructure/persistence/postgres"
	"github.com/campus-ledger/student-service/internal/infrastructure/persistence/redis"
	httpserver "github.com/campus-ledger/student-service/internal/interface/http"
	"github.com/campus-ledger/student-service/internal/interface/http/handlers"
	"github.com/campus-ledger/student-service/pkg/logger"
	"github.com/campus-ledger/student-service/pkg/retry"
)

// Locker is satisfied by the redis and in-process student lockers.
type Locker interface {
	Lock(ctx context.Context, studentID int64) (func(), error)
}

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
	// 1. КОНФИГУРАЦИЯ И ЛОГИРОВАНИЕ
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := setupLogger(cfg)
	log.Info("starting student service API",
		"env", cfg.App.Environment,
		"version", cfg.App.Version,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 2. POSTGRESQL И МИГРАЦИИ
	// ─────────────────────────────────────────────────────────────────────────
	dbConn, err := postgres.NewConnection(ctx, postgres.Config{
		URL:             cfg.Database.URL,
		MaxConns:        int32(cfg.Database.MaxConns),
		MinConns:        int32(cfg.Database.MinConns),
		MaxConnLifetime: cfg.Database.ConnMaxLifetime,
		MaxConnIdleTime: cfg.Database.ConnMaxIdleTime,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer dbConn.Close()

	if err := postgres.NewMigrator(dbConn).Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Info("database schema is up to date")

	studentRepo := postgres.NewStudentRepository(dbConn)
	ledgerRepo := postgres.NewInvoiceLedgerRepository(dbConn)
	var courseRepo student.CourseRepository = postgres.NewCourseRepository(dbConn)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. REDIS (опционально): блокировки и кэш каталога
	// ─────────────────────────────────────────────────────────────────────────
	var (
		locker     Locker = memory.NewKeyedLocker()
		redisCache *redis.Cache
	)
	if !cfg.Redis.Disabled {
		redisCache, err = redis.NewCache(ctx, redisConfig(cfg))
		if err != nil {
			log.Warn("redis unavailable, using in-process locks", "error", err)
		} else {
			defer redisCache.Close()
			locker = redis.NewStudentLocker(redisCache, cfg.Enrollment.StudentLockTTL, cfg.Enrollment.StudentLockWait, log)
			courseRepo = redis.NewCachedCourseRepository(courseRepo, redisCache, 10*time.Minute, log)
			log.Info("redis connection established")
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. ВНЕШНИЕ СЕРВИСЫ
	// ─────────────────────────────────────────────────────────────────────────
	billingCfg := billing.DefaultClientConfig(cfg.Billing.BaseURL)
	billingCfg.Timeout = cfg.Billing.RequestTimeout
	billingCfg.Retrier = retry.BillingRetrier(retry.LogRetries(log, "billing"))
	billingCfg.Debug = cfg.Billing.Debug
	billingCfg.Logger = log
	billingClient := billing.NewClient(billingCfg)

	libraryCfg := library.DefaultClientConfig(cfg.Library.BaseURL)
	libraryCfg.Timeout = cfg.Library.RequestTimeout
	libraryCfg.Retrier = retry.LibraryRetrier(retry.LogRetries(log, "library"))
	libraryCfg.Debug = cfg.Library.Debug
	libraryCfg.Logger = log
	libraryClient := library.NewClient(libraryCfg)

	// ─────────────────────────────────────────────────────────────────────────
	// 5. КАТАЛОГ КУРСОВ
	// ─────────────────────────────────────────────────────────────────────────
	if cfg.Catalog.SeedOnStart {
		catalog, err := command.LoadCatalog(cfg.Catalog.File)
		if err != nil {
			return fmt.Errorf("failed to load course catalog: %w", err)
		}
		result, err := command.NewSeedCoursesHandler(courseRepo, catalog, log).Handle(ctx)
		if err != nil {
			return fmt.Errorf("failed to seed courses: %w", err)
		}
		log.Info("course catalog seeded",
			"created", result.CoursesCreated,
			"removed", result.DuplicatesRemoved,
		)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. ПРИКЛАДНОЙ СЛОЙ
	// ─────────────────────────────────────────────────────────────────────────
	sagaCfg := saga.DefaultEnrollmentConfig()
	sagaCfg.TuitionAmount = cfg.Enrollment.TuitionAmount
	sagaCfg.InvoiceDueIn = cfg.Enrollment.InvoiceDueIn
	enrollment := saga.NewEnrollmentSaga(studentRepo, courseRepo, ledgerRepo, billingClient, locker, log, sagaCfg)

	invoices := query.NewFindInvoicesHandler(billingClient, query.FindInvoicesConfig{
		ProbeLimit:  cfg.Enrollment.InvoiceProbeLimit,
		Concurrency: cfg.Enrollment.InvoiceProbeConcurrency,
	}, log)

	// ─────────────────────────────────────────────────────────────────────────
	// 7. HEALTH CHECKS
	// ─────────────────────────────────────────────────────────────────────────
	health := handlers.NewCompositeHealthChecker(cfg.App.Version)
	health.AddCheck("database", handlers.NewPingCheck(dbConn))
	if redisCache != nil {
		health.AddOptionalCheck("cache", handlers.NewPingCheck(redisCache))
	}
	health.AddOptionalCheck("billing", handlers.NewBreakerCheck(billingClient))
	health.AddOptionalCheck("library", handlers.NewBreakerCheck(libraryClient))

	// ─────────────────────────────────────────────────────────────────────────
	// 8. HTTP СЕРВЕР
	// ─────────────────────────────────────────────────────────────────────────
	accessLog := logger.New(logger.Options{
		Output: os.Stdout,
		Level:  logger.ParseLevel(cfg.Observability.LogLevel),
	}).With(logger.String("service", cfg.App.Name))

	httpCfg := httpserver.DefaultConfig()
	httpCfg.Host = cfg.HTTP.Host
	httpCfg.Port = cfg.HTTP.Port
	httpCfg.ReadTimeout = cfg.HTTP.ReadTimeout
	httpCfg.WriteTimeout = cfg.HTTP.WriteTimeout
	httpCfg.IdleTimeout = cfg.HTTP.IdleTimeout
	httpCfg.AllowedOrigins = cfg.HTTP.AllowedOrigins
	httpCfg.RateLimitPerMinute = cfg.HTTP.RateLimit
	httpCfg.Version = cfg.App.Version

	server := httpserver.NewServer(httpCfg, httpserver.Dependencies{
		Enrollment:    enrollment,
		Graduation:    command.NewEvaluateGraduationHandler(studentRepo, invoices, locker, log),
		Fines:         command.NewProcessLibraryFineHandler(billingClient, cfg.Enrollment.InvoiceDueIn, log),
		Invoices:      invoices,
		Students:      query.NewStudentReader(studentRepo, courseRepo),
		Register:      command.NewRegisterStudentHandler(studentRepo, libraryClient, billingClient, log),
		Login:         command.NewLoginHandler(studentRepo),
		Manager:       command.NewStudentManager(studentRepo, billingClient, locker, log),
		Logger:        accessLog,
		HealthChecker: health,
	})

	errCh := server.StartAsync()

	// ─────────────────────────────────────────────────────────────────────────
	// 9. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("http shutdown: %w", err)
	}

	log.Info("shutdown completed successfully")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// setupLogger настраивает структурированное логирование.
func setupLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if cfg.App.Debug || cfg.Observability.LogLevel == "debug" {
		opts.Level = slog.LevelDebug
	}

	var handler slog.Handler
	if cfg.Observability.LogFormat == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	log := slog.New(handler)
	slog.SetDefault(log)
	return log
}

func redisConfig(cfg *config.Config) redis.Config {
	return redis.Config{
		URL:          cfg.Redis.URL,
		Host:         cfg.Redis.Host,
		Port:         cfg.Redis.Port,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	}
}
