package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/campus-ledger/student-service/internal/domain/shared"
	"github.com/campus-ledger/student-service/internal/domain/student"
)

// CourseRepository implements student.CourseRepository for PostgreSQL.
type CourseRepository struct {
	conn *Connection
}

// NewCourseRepository creates a new CourseRepository.
func NewCourseRepository(conn *Connection) *CourseRepository {
	return &CourseRepository{conn: conn}
}

const courseColumns = `id, name, description, invoice_reference`

// Create inserts a course and writes the assigned id back.
func (r *CourseRepository) Create(ctx context.Context, c *student.Course) error {
	var id int64
	err := r.conn.QueryRow(ctx,
		`INSERT INTO courses (name, description, invoice_reference) VALUES ($1, $2, $3) RETURNING id`,
		c.Name, c.Description, c.InvoiceReference,
	).Scan(&id)
	if err != nil {
		return fmt.Errorf("failed to create course: %w", err)
	}

	c.ID = student.CourseID(id)
	return nil
}

func (r *CourseRepository) GetByID(ctx context.Context, id student.CourseID) (*student.Course, error) {
	return scanCourse(r.conn.QueryRow(ctx, `SELECT `+courseColumns+` FROM courses WHERE id = $1`, int64(id)))
}

// GetByName returns the lowest-id course with the given name.
func (r *CourseRepository) GetByName(ctx context.Context, name string) (*student.Course, error) {
	return scanCourse(r.conn.QueryRow(ctx,
		`SELECT `+courseColumns+` FROM courses WHERE name = $1 ORDER BY id LIMIT 1`, name))
}

func (r *CourseRepository) GetAll(ctx context.Context) ([]*student.Course, error) {
	rows, err := r.conn.Query(ctx, `SELECT `+courseColumns+` FROM courses ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list courses: %w", err)
	}
	defer rows.Close()

	var courses []*student.Course
	for rows.Next() {
		c, err := scanCourse(rows)
		if err != nil {
			return nil, err
		}
		courses = append(courses, c)
	}
	return courses, rows.Err()
}

func (r *CourseRepository) Update(ctx context.Context, c *student.Course) error {
	tag, err := r.conn.Exec(ctx,
		`UPDATE courses SET name = $1, description = $2, invoice_reference = $3 WHERE id = $4`,
		c.Name, c.Description, c.InvoiceReference, int64(c.ID),
	)
	if err != nil {
		return fmt.Errorf("failed to update course: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrCourseNotFound
	}
	return nil
}

func (r *CourseRepository) Delete(ctx context.Context, id student.CourseID) error {
	tag, err := r.conn.Exec(ctx, `DELETE FROM courses WHERE id = $1`, int64(id))
	if err != nil {
		return fmt.Errorf("failed to delete course: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrCourseNotFound
	}
	return nil
}

// ReassignEnrollments moves enrollments and ledger rows from one course to
// another, skipping students already enrolled in the target.
func (r *CourseRepository) ReassignEnrollments(ctx context.Context, from, to student.CourseID) error {
	return r.conn.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO enrollments (student_id, course_id, enrolled_at)
			SELECT student_id, $2, enrolled_at FROM enrollments WHERE course_id = $1
			ON CONFLICT (student_id, course_id) DO NOTHING
		`, int64(from), int64(to)); err != nil {
			return fmt.Errorf("failed to copy enrollments: %w", err)
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO enrollment_invoices (student_id, course_id, invoice_reference, recorded_at)
			SELECT student_id, $2, invoice_reference, recorded_at FROM enrollment_invoices WHERE course_id = $1
			ON CONFLICT (student_id, course_id) DO NOTHING
		`, int64(from), int64(to)); err != nil {
			return fmt.Errorf("failed to copy invoice ledger: %w", err)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM enrollments WHERE course_id = $1`, int64(from)); err != nil {
			return fmt.Errorf("failed to drop old enrollments: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM enrollment_invoices WHERE course_id = $1`, int64(from)); err != nil {
			return fmt.Errorf("failed to drop old invoice ledger: %w", err)
		}
		return nil
	})
}

func scanCourse(row pgx.Row) (*student.Course, error) {
	var c student.Course
	var id int64

	if err := row.Scan(&id, &c.Name, &c.Description, &c.InvoiceReference); err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrCourseNotFound
		}
		return nil, fmt.Errorf("failed to scan course: %w", err)
	}

	c.ID = student.CourseID(id)
	return &c, nil
}
