package command

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/campus-ledger/student-service/internal/domain/billing"
	"github.com/campus-ledger/student-service/internal/domain/shared"
	"github.com/campus-ledger/student-service/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROCESS LIBRARY FINE COMMAND
// Bills an ad hoc library fine. The student is not looked up locally; the
// billing service is the judge of the student id.
// ══════════════════════════════════════════════════════════════════════════════

// ProcessLibraryFineCommand contains the fine to bill.
type ProcessLibraryFineCommand struct {
	StudentID   student.ID
	Amount      float64
	Description string
}

// Validate validates the command.
func (c ProcessLibraryFineCommand) Validate() error {
	if !c.StudentID.IsValid() {
		return shared.ErrInvalidStudentID
	}
	if c.Amount <= 0 {
		return shared.NewDomainError("fine", "Validate", shared.ErrValidation, "amount must be positive")
	}
	if strings.TrimSpace(c.Description) == "" {
		return shared.NewDomainError("fine", "Validate", shared.ErrEmptyValue, "description is required")
	}
	return nil
}

// InvoiceCreator creates invoices in the billing service.
type InvoiceCreator interface {
	CreateInvoice(ctx context.Context, req billing.InvoiceRequest) (*billing.Invoice, error)
}

// ProcessLibraryFineHandler handles the ProcessLibraryFineCommand.
type ProcessLibraryFineHandler struct {
	billing InvoiceCreator
	dueIn   time.Duration
	now     func() time.Time
	logger  *slog.Logger
}

// NewProcessLibraryFineHandler creates a new ProcessLibraryFineHandler.
func NewProcessLibraryFineHandler(billingClient InvoiceCreator, dueIn time.Duration, logger *slog.Logger) *ProcessLibraryFineHandler {
	if dueIn <= 0 {
		dueIn = billing.DefaultDueIn
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ProcessLibraryFineHandler{
		billing: billingClient,
		dueIn:   dueIn,
		now:     time.Now,
		logger:  logger.With("component", "process_library_fine"),
	}
}

// Handle creates one LIBRARY_FINE invoice due dueIn from today. Remote
// failures are returned unchanged.
func (h *ProcessLibraryFineHandler) Handle(ctx context.Context, cmd ProcessLibraryFineCommand) (*billing.Invoice, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	invoice, err := h.billing.CreateInvoice(ctx, billing.InvoiceRequest{
		StudentID:   strconv.FormatInt(int64(cmd.StudentID), 10),
		Amount:      cmd.Amount,
		Type:        billing.InvoiceTypeLibraryFine,
		Description: cmd.Description,
		DueDate:     billing.DueIn(h.now(), h.dueIn),
	})
	if err != nil {
		h.logger.Error("failed to create library fine invoice", "student_id", int64(cmd.StudentID), "error", err)
		return nil, err
	}

	h.logger.Info("library fine invoice created", "student_id", int64(cmd.StudentID), "invoice_ref", invoice.Reference)
	return invoice, nil
}
