// Package jobs contains the scheduled jobs of the student service.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/campus-ledger/student-service/internal/domain/billing"
	"github.com/campus-ledger/student-service/internal/domain/library"
	"github.com/campus-ledger/student-service/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// LIBRARY FINE SWEEP JOB
// ══════════════════════════════════════════════════════════════════════════════

// LibraryFineSweepJob bills one LIBRARY_FINE per overdue loan for every
// local student.
//
// The sweep is best-effort. A failure for one student stops that student's
// remaining fines and is logged; other students are unaffected. Nothing is
// retried. Without dedup an item that stays overdue is fined again on the
// next run.
type LibraryFineSweepJob struct {
	students StudentLister
	overdue  OverdueSource
	billing  InvoiceCreator
	ledger   FineLedger
	logger   *slog.Logger

	config LibraryFineSweepConfig

	lastStats atomic.Pointer[SweepStats]
}

// LibraryFineSweepConfig contains configuration for the sweep.
type LibraryFineSweepConfig struct {
	// Concurrency is the number of students processed in parallel.
	Concurrency int

	// Timeout is the maximum duration of one sweep.
	Timeout time.Duration

	// FineAmount is billed per overdue item.
	FineAmount float64

	// DedupEnabled skips items whose fine key is already in the ledger.
	DedupEnabled bool

	// ShareFeed fetches the overdue feed once per run instead of once per
	// student.
	ShareFeed bool
}

// DefaultLibraryFineSweepConfig returns sensible defaults.
func DefaultLibraryFineSweepConfig() LibraryFineSweepConfig {
	return LibraryFineSweepConfig{
		Concurrency: 4,
		Timeout:     30 * time.Minute,
		FineAmount:  5.0,
	}
}

// SweepStats contains statistics from a sweep run.
type SweepStats struct {
	StartedAt      time.Time
	CompletedAt    time.Time
	Duration       time.Duration
	TotalStudents  int
	FinesCreated   int
	FinesSkipped   int
	FailedStudents int
	Errors         []SweepError
}

// SweepError records why a student's fines were cut short.
type SweepError struct {
	StudentID  int64
	Title      string
	Error      error
	OccurredAt time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES (Interfaces)
// ══════════════════════════════════════════════════════════════════════════════

// StudentLister lists every local student.
type StudentLister interface {
	GetAll(ctx context.Context) ([]*student.Student, error)
}

// OverdueSource returns the library's overdue feed.
type OverdueSource interface {
	ListOverdue(ctx context.Context) ([]library.OverdueItem, error)
}

// InvoiceCreator creates invoices in the billing service.
type InvoiceCreator interface {
	CreateInvoice(ctx context.Context, req billing.InvoiceRequest) (*billing.Invoice, error)
}

// FineLedger remembers fines already billed.
type FineLedger interface {
	Seen(ctx context.Context, studentID int64, key string) (bool, error)
	Mark(ctx context.Context, studentID int64, key string) error
}

// NewLibraryFineSweepJob creates a new sweep job. ledger may be nil when
// dedup is disabled.
func NewLibraryFineSweepJob(
	students StudentLister,
	overdue OverdueSource,
	billingClient InvoiceCreator,
	ledger FineLedger,
	logger *slog.Logger,
	config LibraryFineSweepConfig,
) *LibraryFineSweepJob {
	if logger == nil {
		logger = slog.Default()
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 4
	}
	if config.FineAmount <= 0 {
		config.FineAmount = 5.0
	}
	if ledger == nil {
		config.DedupEnabled = false
	}

	return &LibraryFineSweepJob{
		students: students,
		overdue:  overdue,
		billing:  billingClient,
		ledger:   ledger,
		logger:   logger.With("job", "library_fine_sweep"),
		config:   config,
	}
}

// Name returns the job name.
func (j *LibraryFineSweepJob) Name() string {
	return "library_fine_sweep"
}

// Description returns a human-readable description.
func (j *LibraryFineSweepJob) Description() string {
	return "Bills a library fine for every overdue loan of every student"
}

// Run executes one sweep.
func (j *LibraryFineSweepJob) Run(ctx context.Context) error {
	stats := &SweepStats{StartedAt: time.Now()}
	defer func() {
		stats.CompletedAt = time.Now()
		stats.Duration = stats.CompletedAt.Sub(stats.StartedAt)
		j.lastStats.Store(stats)
	}()

	if j.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.Timeout)
		defer cancel()
	}

	students, err := j.students.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("library_fine_sweep: list students: %w", err)
	}
	stats.TotalStudents = len(students)

	feed := j.overdue.ListOverdue
	if j.config.ShareFeed && len(students) > 0 {
		items, err := j.overdue.ListOverdue(ctx)
		if err != nil {
			return fmt.Errorf("library_fine_sweep: fetch overdue feed: %w", err)
		}
		feed = func(context.Context) ([]library.OverdueItem, error) { return items, nil }
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(j.config.Concurrency)

	for _, st := range students {
		if ctx.Err() != nil {
			break
		}

		g.Go(func() error {
			created, skipped, failed := j.sweepStudent(ctx, int64(st.ID), feed)

			mu.Lock()
			defer mu.Unlock()
			stats.FinesCreated += created
			stats.FinesSkipped += skipped
			if failed != nil {
				stats.FailedStudents++
				stats.Errors = append(stats.Errors, *failed)
			}
			return nil
		})
	}
	_ = g.Wait()

	j.logger.Info("library fine sweep completed",
		"duration", time.Since(stats.StartedAt).String(),
		"students", stats.TotalStudents,
		"fines_created", stats.FinesCreated,
		"fines_skipped", stats.FinesSkipped,
		"failed_students", stats.FailedStudents,
	)

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("library_fine_sweep: interrupted: %w", err)
	}
	return nil
}

// sweepStudent bills the student's overdue items in feed order and stops at
// the first failure.
func (j *LibraryFineSweepJob) sweepStudent(
	ctx context.Context,
	studentID int64,
	feed func(context.Context) ([]library.OverdueItem, error),
) (created, skipped int, failed *SweepError) {
	log := j.logger.With("student_id", studentID)

	fail := func(title string, err error) *SweepError {
		log.Error("library fine sweep failed for student", "title", title, "error", err)
		return &SweepError{StudentID: studentID, Title: title, Error: err, OccurredAt: time.Now()}
	}

	items, err := feed(ctx)
	if err != nil {
		return 0, 0, fail("", fmt.Errorf("fetch overdue feed: %w", err))
	}

	for _, item := range items {
		if !item.BelongsTo(studentID) {
			continue
		}

		key := item.FineKey()
		if j.config.DedupEnabled {
			seen, err := j.ledger.Seen(ctx, studentID, key)
			if err != nil {
				return created, skipped, fail(item.Title, err)
			}
			if seen {
				skipped++
				continue
			}
		}

		invoice, err := j.billing.CreateInvoice(ctx, billing.InvoiceRequest{
			StudentID:   strconv.FormatInt(studentID, 10),
			Amount:      j.config.FineAmount,
			Type:        billing.InvoiceTypeLibraryFine,
			Description: item.FineDescription(),
		})
		if err != nil {
			return created, skipped, fail(item.Title, fmt.Errorf("create fine invoice: %w", err))
		}
		created++
		log.Info("library fine created", "title", item.Title, "invoice_ref", invoice.Reference)

		if j.config.DedupEnabled {
			if err := j.ledger.Mark(ctx, studentID, key); err != nil {
				// The invoice exists; the next sweep may bill it again.
				log.Warn("failed to record fine key", "title", item.Title, "error", err)
			}
		}
	}

	return created, skipped, nil
}

// LastStats returns statistics from the last run, or nil before the first.
func (j *LibraryFineSweepJob) LastStats() *SweepStats {
	return j.lastStats.Load()
}
