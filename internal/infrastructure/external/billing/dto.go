// Package billing implements the billing (finance) service client.
// It handles accounts and invoices; the billing service owns both and this
// package only creates, reads and cancels them.
package billing

import (
	"github.com/campus-ledger/student-service/internal/infrastructure/external/transport"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACCOUNT DTOs
// ══════════════════════════════════════════════════════════════════════════════

// AccountDTO represents an account as returned by the billing service.
type AccountDTO struct {
	ID                    transport.FlexInt    `json:"id"`
	StudentID             transport.FlexString `json:"studentId"`
	HasOutstandingBalance bool                 `json:"hasOutstandingBalance"`
}

// CreateAccountRequestDTO is the body of POST /accounts.
type CreateAccountRequestDTO struct {
	StudentID string `json:"studentId"`
}

// ══════════════════════════════════════════════════════════════════════════════
// INVOICE DTOs
// ══════════════════════════════════════════════════════════════════════════════

// InvoiceAccountDTO tags an invoice with the owning account.
type InvoiceAccountDTO struct {
	StudentID string `json:"studentId"`
}

// CreateInvoiceRequestDTO is the body of POST /invoices.
type CreateInvoiceRequestDTO struct {
	StudentID   string             `json:"studentId"`
	Amount      float64            `json:"amount"`
	Type        string             `json:"type"`
	Description string             `json:"description"`
	DueDate     string             `json:"dueDate,omitempty"`
	Account     *InvoiceAccountDTO `json:"account,omitempty"`
}

// InvoiceDTO represents an invoice as returned by the billing service.
type InvoiceDTO struct {
	ID          transport.FlexInt    `json:"id"`
	Reference   transport.FlexString `json:"reference"`
	StudentID   transport.FlexString `json:"studentId"`
	Amount      float64              `json:"amount"`
	Type        string               `json:"type"`
	Description string               `json:"description"`
	DueDate     string               `json:"dueDate"`
	Status      string               `json:"status"`

	// Account is present on some billing builds instead of a top-level studentId.
	Account *struct {
		StudentID transport.FlexString `json:"studentId"`
	} `json:"account,omitempty"`
}
