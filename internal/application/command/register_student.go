package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/campus-ledger/student-service/internal/domain/billing"
	"github.com/campus-ledger/student-service/internal/domain/shared"
	"github.com/campus-ledger/student-service/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// REGISTER STUDENT COMMAND
// Flow: Validate → Check email → Hash password → Persist → Library account →
//       Billing account
// A failed remote registration removes the local record again.
// ══════════════════════════════════════════════════════════════════════════════

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 6

// RegisterStudentCommand contains the registration form.
type RegisterStudentCommand struct {
	Name     string `json:"name"`
	Surname  string `json:"surname"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate validates the command.
func (c RegisterStudentCommand) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return shared.NewDomainError("student", "Register", shared.ErrEmptyValue, "name is required")
	}
	if len(c.Password) < MinPasswordLength {
		return shared.NewDomainError("student", "Register", shared.ErrValidation,
			fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}
	if _, err := student.NormalizeEmail(c.Email); err != nil {
		return shared.WrapError("student", "Register", shared.ErrValidation, "invalid email", err)
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES (Interfaces)
// ══════════════════════════════════════════════════════════════════════════════

// LibraryAccounts registers students with the library service.
type LibraryAccounts interface {
	RegisterAccount(ctx context.Context, studentID int64) error
}

// BillingAccounts manages student accounts in the billing service.
type BillingAccounts interface {
	CreateAccount(ctx context.Context, studentID int64) (*billing.Account, error)
	GetAccountByStudent(ctx context.Context, studentID int64) (*billing.Account, error)
	DeleteAccount(ctx context.Context, accountID int64) error
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// RegisterStudentHandler handles the RegisterStudentCommand.
type RegisterStudentHandler struct {
	students   student.Repository
	library    LibraryAccounts
	billing    BillingAccounts
	bcryptCost int
	logger     *slog.Logger
}

// NewRegisterStudentHandler creates a new RegisterStudentHandler.
func NewRegisterStudentHandler(students student.Repository, library LibraryAccounts, billingAccounts BillingAccounts, logger *slog.Logger) *RegisterStudentHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RegisterStudentHandler{
		students:   students,
		library:    library,
		billing:    billingAccounts,
		bcryptCost: bcrypt.DefaultCost,
		logger:     logger.With("component", "register_student"),
	}
}

// Handle registers the student and opens their library and billing accounts.
func (h *RegisterStudentHandler) Handle(ctx context.Context, cmd RegisterStudentCommand) (*student.Student, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	email, _ := student.NormalizeEmail(cmd.Email)
	if _, err := h.students.GetByEmail(ctx, email); err == nil {
		return nil, shared.ErrStudentAlreadyExists
	} else if !shared.IsNotFound(err) {
		return nil, fmt.Errorf("register_student: email lookup: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(cmd.Password), h.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("register_student: hash password: %w", err)
	}

	st, err := student.NewStudent(student.NewStudentParams{
		Name:         cmd.Name,
		Surname:      cmd.Surname,
		Email:        email,
		PasswordHash: string(hash),
	})
	if err != nil {
		return nil, shared.WrapError("student", "Register", shared.ErrValidation, err.Error(), err)
	}

	if err := h.students.Create(ctx, st); err != nil {
		return nil, err
	}

	log := h.logger.With("student_id", int64(st.ID))

	if err := h.library.RegisterAccount(ctx, int64(st.ID)); err != nil {
		log.Error("library registration failed", "error", err)
		return nil, h.rollback(ctx, st, fmt.Errorf("register with library service: %w", err))
	}

	if _, err := h.billing.CreateAccount(ctx, int64(st.ID)); err != nil {
		log.Error("billing account creation failed", "error", err)
		return nil, h.rollback(ctx, st, fmt.Errorf("register with billing service: %w", err))
	}

	log.Info("student registered")
	return st, nil
}

func (h *RegisterStudentHandler) rollback(ctx context.Context, st *student.Student, cause error) error {
	if err := h.students.Delete(context.WithoutCancel(ctx), st.ID); err != nil {
		h.logger.Error("failed to remove partially registered student", "student_id", int64(st.ID), "error", err)
		return errors.Join(cause, err)
	}
	return cause
}

// ══════════════════════════════════════════════════════════════════════════════
// LOGIN
// ══════════════════════════════════════════════════════════════════════════════

// LoginCommand contains credentials.
type LoginCommand struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginHandler checks credentials.
type LoginHandler struct {
	students student.Repository
}

// NewLoginHandler creates a new LoginHandler.
func NewLoginHandler(students student.Repository) *LoginHandler {
	return &LoginHandler{students: students}
}

// Handle returns the student on a match and ErrInvalidCredentials otherwise.
// Unknown emails and wrong passwords are indistinguishable to the caller.
func (h *LoginHandler) Handle(ctx context.Context, cmd LoginCommand) (*student.Student, error) {
	email, err := student.NormalizeEmail(cmd.Email)
	if err != nil || cmd.Password == "" {
		return nil, shared.ErrInvalidCredentials
	}

	st, err := h.students.GetByEmail(ctx, email)
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, shared.ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(st.PasswordHash), []byte(cmd.Password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return st, nil
}
