// Package saga contains business processes that span the local store and a
// remote collaborator, compensating locally when the remote step fails.
package saga

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/campus-ledger/student-service/internal/domain/billing"
	"github.com/campus-ledger/student-service/internal/domain/shared"
	"github.com/campus-ledger/student-service/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENROLLMENT SAGA
// Enroll:   Lock → Load → Add enrollment → Create tuition invoice → Record reference
//           (invoice failure compensates by removing the enrollment)
// Unenroll: Lock → Load → Remove enrollment → Cancel invoice → Forget reference
//           (cancel failure is logged, the reference is kept)
// ══════════════════════════════════════════════════════════════════════════════

// Step names an enrollment saga step.
type Step string

const (
	StepLock             Step = "lock"
	StepLoad             Step = "load"
	StepAddEnrollment    Step = "add_enrollment"
	StepCreateInvoice    Step = "create_invoice"
	StepRecordReference  Step = "record_reference"
	StepRemoveEnrollment Step = "remove_enrollment"
	StepCancelInvoice    Step = "cancel_invoice"
	StepComplete         Step = "complete"
)

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES INTERFACES
// ══════════════════════════════════════════════════════════════════════════════

// BillingClient is the part of the billing service the saga talks to.
type BillingClient interface {
	CreateInvoice(ctx context.Context, req billing.InvoiceRequest) (*billing.Invoice, error)
	CancelInvoice(ctx context.Context, reference string) error
}

// Locker serializes operations on one student.
type Locker interface {
	Lock(ctx context.Context, studentID int64) (unlock func(), err error)
}

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// EnrollmentSagaConfig contains configuration for the enrollment saga.
type EnrollmentSagaConfig struct {
	// TuitionAmount is charged per enrollment.
	TuitionAmount float64

	// InvoiceDueIn is added to today's date for the invoice due date.
	InvoiceDueIn time.Duration

	// Now is the clock (tests).
	Now func() time.Time
}

// DefaultEnrollmentConfig returns default configuration.
func DefaultEnrollmentConfig() EnrollmentSagaConfig {
	return EnrollmentSagaConfig{
		TuitionAmount: 100.0,
		InvoiceDueIn:  billing.DefaultDueIn,
		Now:           time.Now,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// RESULTS
// ══════════════════════════════════════════════════════════════════════════════

// EnrollmentResult describes a successful enrollment.
type EnrollmentResult struct {
	StudentID        student.ID
	CourseID         student.CourseID
	CourseName       string
	InvoiceReference string
	EnrolledAt       time.Time
}

// UnenrollmentResult describes a completed unenrollment. InvoiceCancelled is
// false when there was no reference or the billing service refused.
type UnenrollmentResult struct {
	StudentID        student.ID
	CourseID         student.CourseID
	InvoiceReference string
	InvoiceCancelled bool
}

// ══════════════════════════════════════════════════════════════════════════════
// SAGA IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// EnrollmentSaga keeps the local enrollment edge and the remote tuition
// invoice consistent.
type EnrollmentSaga struct {
	students student.Repository
	courses  student.CourseRepository
	ledger   student.InvoiceLedger
	billing  BillingClient
	locker   Locker
	logger   *slog.Logger

	tuitionAmount float64
	dueIn         time.Duration
	now           func() time.Time
}

// NewEnrollmentSaga creates a new enrollment saga with all dependencies.
func NewEnrollmentSaga(
	students student.Repository,
	courses student.CourseRepository,
	ledger student.InvoiceLedger,
	billingClient BillingClient,
	locker Locker,
	logger *slog.Logger,
	config EnrollmentSagaConfig,
) *EnrollmentSaga {
	if logger == nil {
		logger = slog.Default()
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	if config.InvoiceDueIn <= 0 {
		config.InvoiceDueIn = billing.DefaultDueIn
	}

	return &EnrollmentSaga{
		students:      students,
		courses:       courses,
		ledger:        ledger,
		billing:       billingClient,
		locker:        locker,
		logger:        logger.With("component", "enrollment_saga"),
		tuitionAmount: config.TuitionAmount,
		dueIn:         config.InvoiceDueIn,
		now:           config.Now,
	}
}

// Enroll adds the enrollment and bills tuition for it. If the invoice cannot
// be created the enrollment is removed again and ErrInvoiceCreationFailed is
// returned.
func (s *EnrollmentSaga) Enroll(ctx context.Context, studentID student.ID, courseID student.CourseID) (*EnrollmentResult, error) {
	log := s.logger.With("saga_id", uuid.NewString(), "op", "enroll", "student_id", int64(studentID), "course_id", int64(courseID))

	// Step 1: Lock the student
	unlock, err := s.lock(ctx, studentID, courseID)
	if err != nil {
		return nil, wrapStep("Enroll", StepLock, err)
	}
	defer unlock()

	// Step 2: Load both sides
	st, course, err := s.load(ctx, studentID, courseID)
	if err != nil {
		return nil, wrapStep("Enroll", StepLoad, err)
	}

	// Step 3: Add the enrollment locally
	if err := st.Enroll(*course); err != nil {
		return nil, wrapStep("Enroll", StepAddEnrollment, err)
	}
	if err := s.students.Update(ctx, st); err != nil {
		return nil, wrapStep("Enroll", StepAddEnrollment, err)
	}

	// Step 4: Create the tuition invoice
	invoice, err := s.billing.CreateInvoice(ctx, s.tuitionInvoice(studentID, course))
	if err != nil {
		log.Warn("invoice creation failed, removing enrollment", "error", err)
		if cerr := s.compensateEnroll(ctx, st, courseID); cerr != nil {
			log.Error("compensation failed, enrollment left without invoice", "error", cerr)
			err = errors.Join(err, cerr)
		}
		return nil, shared.WrapError("enrollment", "Enroll", shared.ErrInvoiceCreationFailed,
			fmt.Sprintf("tuition invoice for course %d", courseID), err)
	}

	// Step 5: Remember the reference for this (student, course)
	s.recordReference(ctx, log, studentID, course, invoice.Reference)

	log.Info("student enrolled", "invoice_ref", invoice.Reference)

	return &EnrollmentResult{
		StudentID:        studentID,
		CourseID:         courseID,
		CourseName:       course.Name,
		InvoiceReference: invoice.Reference,
		EnrolledAt:       s.now().UTC(),
	}, nil
}

// Unenroll removes the enrollment and then tries to cancel its tuition
// invoice. The removal stands regardless of the cancellation outcome.
func (s *EnrollmentSaga) Unenroll(ctx context.Context, studentID student.ID, courseID student.CourseID) (*UnenrollmentResult, error) {
	log := s.logger.With("saga_id", uuid.NewString(), "op", "unenroll", "student_id", int64(studentID), "course_id", int64(courseID))

	// Step 1: Lock the student
	unlock, err := s.lock(ctx, studentID, courseID)
	if err != nil {
		return nil, wrapStep("Unenroll", StepLock, err)
	}
	defer unlock()

	// Step 2: Load both sides
	st, course, err := s.load(ctx, studentID, courseID)
	if err != nil {
		return nil, wrapStep("Unenroll", StepLoad, err)
	}

	// Step 3: Remove the enrollment locally
	if err := st.Unenroll(courseID); err != nil {
		return nil, wrapStep("Unenroll", StepRemoveEnrollment, err)
	}
	if err := s.students.Update(ctx, st); err != nil {
		return nil, wrapStep("Unenroll", StepRemoveEnrollment, err)
	}

	result := &UnenrollmentResult{StudentID: studentID, CourseID: courseID}

	// Step 4: Cancel the invoice, if we know it
	ref, err := s.reference(ctx, studentID, course)
	if err != nil {
		log.Error("invoice reference lookup failed, invoice not cancelled", "error", err)
		return result, nil
	}
	if ref == "" {
		log.Info("no invoice reference recorded, nothing to cancel")
		return result, nil
	}
	result.InvoiceReference = ref

	if err := s.billing.CancelInvoice(ctx, ref); err != nil {
		log.Warn("invoice cancellation failed, keeping reference", "invoice_ref", ref, "error", err)
		return result, nil
	}
	result.InvoiceCancelled = true

	// Step 5: Forget the reference
	if err := s.ledger.Remove(ctx, studentID, courseID); err != nil {
		log.Error("failed to clear invoice reference", "invoice_ref", ref, "error", err)
	}
	if course.ClearInvoiceReference(ref) {
		if err := s.courses.Update(ctx, course); err != nil {
			log.Error("failed to clear course invoice reference", "invoice_ref", ref, "error", err)
		}
	}

	log.Info("student unenrolled", "invoice_ref", ref)
	return result, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// SAGA STEPS
// ══════════════════════════════════════════════════════════════════════════════

func (s *EnrollmentSaga) lock(ctx context.Context, studentID student.ID, courseID student.CourseID) (func(), error) {
	if !studentID.IsValid() {
		return nil, shared.ErrInvalidStudentID
	}
	if !courseID.IsValid() {
		return nil, shared.ErrInvalidCourseID
	}
	if s.locker == nil {
		return func() {}, nil
	}
	return s.locker.Lock(ctx, int64(studentID))
}

func (s *EnrollmentSaga) load(ctx context.Context, studentID student.ID, courseID student.CourseID) (*student.Student, *student.Course, error) {
	st, err := s.students.GetByID(ctx, studentID)
	if err != nil {
		return nil, nil, err
	}
	course, err := s.courses.GetByID(ctx, courseID)
	if err != nil {
		return nil, nil, err
	}
	return st, course, nil
}

func (s *EnrollmentSaga) tuitionInvoice(studentID student.ID, course *student.Course) billing.InvoiceRequest {
	id := strconv.FormatInt(int64(studentID), 10)
	return billing.InvoiceRequest{
		StudentID:        id,
		Amount:           s.tuitionAmount,
		Type:             billing.InvoiceTypeTuition,
		Description:      "Tuition fee for course: " + course.Name,
		DueDate:          billing.DueIn(s.now(), s.dueIn),
		AccountStudentID: id,
	}
}

// reference returns the invoice reference for the pair. Enrollments made
// before the ledger existed only have the course-level reference.
func (s *EnrollmentSaga) reference(ctx context.Context, studentID student.ID, course *student.Course) (string, error) {
	ref, err := s.ledger.Get(ctx, studentID, course.ID)
	if err == nil {
		return ref, nil
	}
	if !shared.IsNotFound(err) {
		return "", err
	}
	if course.HasInvoiceReference() {
		return *course.InvoiceReference, nil
	}
	return "", nil
}

// compensateEnroll removes the enrollment added in step 3.
func (s *EnrollmentSaga) compensateEnroll(ctx context.Context, st *student.Student, courseID student.CourseID) error {
	// The caller's context may be the reason the invoice failed.
	ctx = context.WithoutCancel(ctx)

	if err := st.Unenroll(courseID); err != nil {
		return err
	}
	return s.students.Update(ctx, st)
}

// recordReference stores the reference in the ledger and on the course.
// Failures are logged: the enrollment and the invoice both exist by now.
func (s *EnrollmentSaga) recordReference(ctx context.Context, log *slog.Logger, studentID student.ID, course *student.Course, ref string) {
	if err := s.ledger.Record(ctx, studentID, course.ID, ref); err != nil {
		log.Error("failed to record invoice reference", "invoice_ref", ref, "error", err)
	}
	course.SetInvoiceReference(ref)
	if err := s.courses.Update(ctx, course); err != nil {
		log.Error("failed to store course invoice reference", "invoice_ref", ref, "error", err)
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

// StepError records the step an operation stopped at. It unwraps to the
// cause, so errors.Is against shared sentinels keeps working.
type StepError struct {
	Op    string
	Step  Step
	Cause error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s failed at step '%s': %v", e.Op, e.Step, e.Cause)
}

func (e *StepError) Unwrap() error {
	return e.Cause
}

func wrapStep(op string, step Step, err error) error {
	return &StepError{Op: op, Step: step, Cause: err}
}
