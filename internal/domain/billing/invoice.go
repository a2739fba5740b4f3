// Package billing describes the records owned by the external billing service
// (accounts and invoices) as seen by this system. Nothing here is persisted
// locally; the billing service owns the lifecycle.
package billing

import (
	"strings"
	"time"
)

// InvoiceType is the category of an invoice.
type InvoiceType string

const (
	InvoiceTypeTuition     InvoiceType = "TUITION_FEES"
	InvoiceTypeLibraryFine InvoiceType = "LIBRARY_FINE"
)

// StatusOutstanding is the only invoice status this system interprets.
// Every other status value is opaque.
const StatusOutstanding = "OUTSTANDING"

// DueDateLayout is the wire format of invoice due dates.
const DueDateLayout = "2006-01-02"

// DefaultDueIn is the payment term for tuition and ad hoc fines.
const DefaultDueIn = 30 * 24 * time.Hour

// Invoice is a remote invoice.
type Invoice struct {
	// ID is the numeric id the invoice is addressable by (GET /invoices/{id}).
	ID int64

	// Reference is the opaque id returned on creation and used for cancellation.
	Reference string

	// StudentID is kept as a string; the billing service is not consistent
	// about encoding it as a number or a string.
	StudentID string

	Amount      float64
	Type        InvoiceType
	Description string
	DueDate     string
	Status      string
}

// IsOutstanding compares the status to the literal OUTSTANDING (case-sensitive).
func (i Invoice) IsOutstanding() bool {
	return i.Status == StatusOutstanding
}

// MatchesFilters applies optional case-insensitive status and type filters.
// Empty filters match everything.
func (i Invoice) MatchesFilters(status, invoiceType string) bool {
	if status != "" && !strings.EqualFold(i.Status, status) {
		return false
	}
	if invoiceType != "" && !strings.EqualFold(string(i.Type), invoiceType) {
		return false
	}
	return true
}

// Account is a remote financial account.
type Account struct {
	ID                    int64
	StudentID             string
	HasOutstandingBalance bool
}

// InvoiceRequest describes an invoice to create.
type InvoiceRequest struct {
	StudentID   string
	Amount      float64
	Type        InvoiceType
	Description string

	// DueDate is optional; zero means no due date is sent.
	DueDate time.Time

	// AccountStudentID tags the invoice with the account it belongs to.
	// Optional; when empty no account object is sent.
	AccountStudentID string
}

// DueIn returns the calendar date d after now, truncated to the day.
func DueIn(now time.Time, d time.Duration) time.Time {
	due := now.Add(d)
	return time.Date(due.Year(), due.Month(), due.Day(), 0, 0, 0, 0, due.Location())
}
