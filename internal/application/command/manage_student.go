package command

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/campus-ledger/student-service/internal/domain/shared"
	"github.com/campus-ledger/student-service/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROFILE, DELETE AND VERIFY
// ══════════════════════════════════════════════════════════════════════════════

// UpdateProfileCommand carries the new name and surname. Blank values leave
// the current value unchanged.
type UpdateProfileCommand struct {
	StudentID student.ID
	Name      string
	Surname   string
}

// DeleteStudentCommand identifies the student to delete.
type DeleteStudentCommand struct {
	StudentID student.ID
}

// StudentManager handles profile updates, deletion and existence checks.
type StudentManager struct {
	students student.Repository
	billing  BillingAccounts
	locker   Locker
	logger   *slog.Logger
}

// NewStudentManager creates a new StudentManager. locker may be nil.
func NewStudentManager(students student.Repository, billingAccounts BillingAccounts, locker Locker, logger *slog.Logger) *StudentManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &StudentManager{
		students: students,
		billing:  billingAccounts,
		locker:   locker,
		logger:   logger.With("component", "student_manager"),
	}
}

// UpdateProfile applies the non-blank fields. Only name and surname are
// written, so a concurrent enrollment change is never overwritten.
func (m *StudentManager) UpdateProfile(ctx context.Context, cmd UpdateProfileCommand) (*student.Student, error) {
	if !cmd.StudentID.IsValid() {
		return nil, shared.ErrInvalidStudentID
	}

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, int64(cmd.StudentID))
		if err != nil {
			return nil, err
		}
		defer unlock()
	}

	st, err := m.students.GetByID(ctx, cmd.StudentID)
	if err != nil {
		return nil, err
	}

	st.UpdateProfile(cmd.Name, cmd.Surname)
	if err := m.students.UpdateProfile(ctx, st); err != nil {
		return nil, err
	}
	return st, nil
}

// Delete clears the student's enrollments, removes their billing account if
// one exists and deletes the record. A billing failure is logged only.
// Tuition invoices of the cleared enrollments are left as they are.
func (m *StudentManager) Delete(ctx context.Context, cmd DeleteStudentCommand) error {
	if !cmd.StudentID.IsValid() {
		return shared.ErrInvalidStudentID
	}

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, int64(cmd.StudentID))
		if err != nil {
			return err
		}
		defer unlock()
	}

	st, err := m.students.GetByID(ctx, cmd.StudentID)
	if err != nil {
		return err
	}

	log := m.logger.With("student_id", int64(st.ID))

	st.ClearEnrollments()
	if err := m.students.Update(ctx, st); err != nil {
		return fmt.Errorf("delete_student: clear enrollments: %w", err)
	}

	m.deleteBillingAccount(ctx, log, st.ID)

	if err := m.students.Delete(ctx, st.ID); err != nil {
		return err
	}

	log.Info("student deleted")
	return nil
}

func (m *StudentManager) deleteBillingAccount(ctx context.Context, log *slog.Logger, id student.ID) {
	account, err := m.billing.GetAccountByStudent(ctx, int64(id))
	if err != nil {
		if !shared.IsNotFound(err) {
			log.Warn("failed to look up billing account", "error", err)
		}
		return
	}

	if err := m.billing.DeleteAccount(ctx, account.ID); err != nil {
		log.Warn("failed to delete billing account", "account_id", account.ID, "error", err)
		return
	}
	log.Info("billing account deleted", "account_id", account.ID)
}

// Verify reports whether the student exists.
func (m *StudentManager) Verify(ctx context.Context, id student.ID) (bool, error) {
	if !id.IsValid() {
		return false, nil
	}
	return m.students.Exists(ctx, id)
}
