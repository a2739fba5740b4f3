// Package command contains write operations (CQRS - Commands).
// Commands change local state and, where needed, talk to the billing and
// library services through injected clients.
package command

import (
	"context"
	"log/slog"

	"github.com/campus-ledger/student-service/internal/application/query"
	"github.com/campus-ledger/student-service/internal/domain/billing"
	"github.com/campus-ledger/student-service/internal/domain/shared"
	"github.com/campus-ledger/student-service/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// EVALUATE GRADUATION COMMAND
// A student may graduate when they hold no enrollments and no OUTSTANDING
// invoice. The result is written to Student.Graduated as a cache.
// ══════════════════════════════════════════════════════════════════════════════

// EvaluateGraduationCommand identifies the student to evaluate.
type EvaluateGraduationCommand struct {
	StudentID student.ID
}

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES (Interfaces)
// ══════════════════════════════════════════════════════════════════════════════

// InvoiceFinder lists a student's invoices.
type InvoiceFinder interface {
	Handle(ctx context.Context, q query.FindInvoicesQuery) ([]billing.Invoice, error)
}

// Locker serializes operations on one student.
type Locker interface {
	Lock(ctx context.Context, studentID int64) (unlock func(), err error)
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// EvaluateGraduationHandler handles the EvaluateGraduationCommand.
type EvaluateGraduationHandler struct {
	students student.Repository
	invoices InvoiceFinder
	locker   Locker
	logger   *slog.Logger
}

// NewEvaluateGraduationHandler creates a new EvaluateGraduationHandler.
// locker may be nil.
func NewEvaluateGraduationHandler(students student.Repository, invoices InvoiceFinder, locker Locker, logger *slog.Logger) *EvaluateGraduationHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &EvaluateGraduationHandler{
		students: students,
		invoices: invoices,
		locker:   locker,
		logger:   logger.With("component", "evaluate_graduation"),
	}
}

// Handle evaluates eligibility and persists it. If the invoices cannot be
// read, false is persisted and ErrEligibilityCheckFailed is returned.
func (h *EvaluateGraduationHandler) Handle(ctx context.Context, cmd EvaluateGraduationCommand) (bool, error) {
	if !cmd.StudentID.IsValid() {
		return false, shared.ErrInvalidStudentID
	}

	if h.locker != nil {
		unlock, err := h.locker.Lock(ctx, int64(cmd.StudentID))
		if err != nil {
			return false, err
		}
		defer unlock()
	}

	st, err := h.students.GetByID(ctx, cmd.StudentID)
	if err != nil {
		return false, err
	}

	log := h.logger.With("student_id", int64(st.ID))

	if st.HasEnrollments() {
		log.Debug("not eligible: still enrolled", "courses", len(st.EnrolledCourses))
		return false, h.persist(ctx, st, false)
	}

	invoices, err := h.invoices.Handle(ctx, query.FindInvoicesQuery{StudentID: st.ID})
	if err != nil {
		log.Warn("invoice lookup failed, recording not eligible", "error", err)
		if perr := h.persist(context.WithoutCancel(ctx), st, false); perr != nil {
			log.Error("failed to persist graduation flag", "error", perr)
		}
		return false, shared.WrapError("graduation", "Evaluate", shared.ErrEligibilityCheckFailed,
			"could not read invoices", err)
	}

	for _, inv := range invoices {
		if inv.IsOutstanding() {
			log.Debug("not eligible: outstanding invoice", "invoice_id", inv.ID)
			return false, h.persist(ctx, st, false)
		}
	}

	log.Info("student eligible to graduate")
	return true, h.persist(ctx, st, true)
}

// persist writes the flag alone. The invoice scan can outlive the student
// lock, and st may no longer reflect the enrollment set by then.
func (h *EvaluateGraduationHandler) persist(ctx context.Context, st *student.Student, eligible bool) error {
	st.RecordGraduation(eligible)
	return h.students.SetGraduated(ctx, st.ID, eligible)
}
