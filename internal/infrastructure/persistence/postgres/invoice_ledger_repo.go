package postgres

import (
	"context"
	"fmt"

	"github.com/campus-ledger/student-service/internal/domain/shared"
	"github.com/campus-ledger/student-service/internal/domain/student"
)

// InvoiceLedgerRepository implements student.InvoiceLedger on the
// enrollment_invoices table.
type InvoiceLedgerRepository struct {
	conn *Connection
}

// NewInvoiceLedgerRepository creates a new InvoiceLedgerRepository.
func NewInvoiceLedgerRepository(conn *Connection) *InvoiceLedgerRepository {
	return &InvoiceLedgerRepository{conn: conn}
}

func (r *InvoiceLedgerRepository) Record(ctx context.Context, studentID student.ID, courseID student.CourseID, reference string) error {
	_, err := r.conn.Exec(ctx, `
		INSERT INTO enrollment_invoices (student_id, course_id, invoice_reference)
		VALUES ($1, $2, $3)
		ON CONFLICT (student_id, course_id)
		DO UPDATE SET invoice_reference = EXCLUDED.invoice_reference, recorded_at = NOW()
	`, int64(studentID), int64(courseID), reference)
	if err != nil {
		return fmt.Errorf("failed to record invoice reference: %w", err)
	}
	return nil
}

func (r *InvoiceLedgerRepository) Get(ctx context.Context, studentID student.ID, courseID student.CourseID) (string, error) {
	var ref string
	err := r.conn.QueryRow(ctx,
		`SELECT invoice_reference FROM enrollment_invoices WHERE student_id = $1 AND course_id = $2`,
		int64(studentID), int64(courseID),
	).Scan(&ref)
	if err != nil {
		if IsNoRows(err) {
			return "", shared.ErrNotFound
		}
		return "", fmt.Errorf("failed to get invoice reference: %w", err)
	}
	return ref, nil
}

func (r *InvoiceLedgerRepository) Remove(ctx context.Context, studentID student.ID, courseID student.CourseID) error {
	_, err := r.conn.Exec(ctx,
		`DELETE FROM enrollment_invoices WHERE student_id = $1 AND course_id = $2`,
		int64(studentID), int64(courseID),
	)
	if err != nil {
		return fmt.Errorf("failed to remove invoice reference: %w", err)
	}
	return nil
}
