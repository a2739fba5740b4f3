package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/campus-ledger/student-service/internal/domain/shared"
	"github.com/campus-ledger/student-service/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// StudentRepository implements student.Repository for PostgreSQL.
type StudentRepository struct {
	conn *Connection
}

// NewStudentRepository creates a new StudentRepository.
func NewStudentRepository(conn *Connection) *StudentRepository {
	return &StudentRepository{conn: conn}
}

const studentColumns = `id, name, surname, email, password_hash, graduated, created_at, updated_at`

// ─────────────────────────────────────────────────────────────────────────────
// CRUD Operations
// ─────────────────────────────────────────────────────────────────────────────

// Create inserts a new student. The id comes from the students sequence and
// is written back into s.
func (r *StudentRepository) Create(ctx context.Context, s *student.Student) error {
	query := `
		INSERT INTO students (name, surname, email, password_hash, graduated, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	var id int64
	err := r.conn.QueryRow(ctx, query,
		s.Name,
		s.Surname,
		s.Email,
		s.PasswordHash,
		s.Graduated,
		s.CreatedAt,
		s.UpdatedAt,
	).Scan(&id)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrStudentAlreadyExists
		}
		return fmt.Errorf("failed to create student: %w", err)
	}

	s.ID = student.ID(id)
	return nil
}

// GetByID returns a student with the courses they are enrolled in.
func (r *StudentRepository) GetByID(ctx context.Context, id student.ID) (*student.Student, error) {
	row := r.conn.QueryRow(ctx, `SELECT `+studentColumns+` FROM students WHERE id = $1`, int64(id))
	s, err := scanStudent(row)
	if err != nil {
		return nil, err
	}

	if err := r.loadCourses(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// GetByEmail returns a student by normalized email.
func (r *StudentRepository) GetByEmail(ctx context.Context, email string) (*student.Student, error) {
	row := r.conn.QueryRow(ctx, `SELECT `+studentColumns+` FROM students WHERE email = $1`, email)
	s, err := scanStudent(row)
	if err != nil {
		return nil, err
	}

	if err := r.loadCourses(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// Update writes the profile, the graduated flag and replaces the enrollment
// set in one transaction.
func (r *StudentRepository) Update(ctx context.Context, s *student.Student) error {
	return r.conn.WithTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE students SET
				name = $1,
				surname = $2,
				email = $3,
				password_hash = $4,
				graduated = $5,
				updated_at = $6
			WHERE id = $7
		`, s.Name, s.Surname, s.Email, s.PasswordHash, s.Graduated, s.UpdatedAt, int64(s.ID))
		if err != nil {
			if IsUniqueViolation(err) {
				return shared.ErrStudentAlreadyExists
			}
			return fmt.Errorf("failed to update student: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrStudentNotFound
		}

		ids := make([]int64, 0, len(s.EnrolledCourses))
		for _, c := range s.EnrolledCourses {
			ids = append(ids, int64(c.ID))
		}

		if _, err := tx.Exec(ctx,
			`DELETE FROM enrollments WHERE student_id = $1 AND NOT (course_id = ANY($2))`,
			int64(s.ID), ids,
		); err != nil {
			return fmt.Errorf("failed to prune enrollments: %w", err)
		}

		if len(ids) > 0 {
			_, err := tx.Exec(ctx, `
				INSERT INTO enrollments (student_id, course_id)
				SELECT $1, unnest($2::bigint[])
				ON CONFLICT (student_id, course_id) DO NOTHING
			`, int64(s.ID), ids)
			if err != nil {
				if IsForeignKeyViolation(err) {
					return shared.ErrCourseNotFound
				}
				return fmt.Errorf("failed to save enrollments: %w", err)
			}
		}

		return nil
	})
}

// UpdateProfile writes name and surname only.
func (r *StudentRepository) UpdateProfile(ctx context.Context, s *student.Student) error {
	tag, err := r.conn.Exec(ctx,
		`UPDATE students SET name = $1, surname = $2, updated_at = $3 WHERE id = $4`,
		s.Name, s.Surname, s.UpdatedAt, int64(s.ID),
	)
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrStudentNotFound
	}
	return nil
}

// SetGraduated writes the graduated flag only.
func (r *StudentRepository) SetGraduated(ctx context.Context, id student.ID, graduated bool) error {
	tag, err := r.conn.Exec(ctx,
		`UPDATE students SET graduated = $1, updated_at = NOW() WHERE id = $2`,
		graduated, int64(id),
	)
	if err != nil {
		return fmt.Errorf("failed to update graduated flag: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrStudentNotFound
	}
	return nil
}

// Delete removes a student. Enrollments and ledger rows cascade.
func (r *StudentRepository) Delete(ctx context.Context, id student.ID) error {
	tag, err := r.conn.Exec(ctx, `DELETE FROM students WHERE id = $1`, int64(id))
	if err != nil {
		return fmt.Errorf("failed to delete student: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrStudentNotFound
	}
	return nil
}

// GetAll returns all students in ascending id order, with their courses.
func (r *StudentRepository) GetAll(ctx context.Context) ([]*student.Student, error) {
	rows, err := r.conn.Query(ctx, `SELECT `+studentColumns+` FROM students ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list students: %w", err)
	}
	defer rows.Close()

	var students []*student.Student
	byID := make(map[student.ID]*student.Student)
	for rows.Next() {
		s, err := scanStudent(rows)
		if err != nil {
			return nil, err
		}
		students = append(students, s)
		byID[s.ID] = s
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate students: %w", err)
	}

	courseRows, err := r.conn.Query(ctx, `
		SELECT e.student_id, c.id, c.name, c.description, c.invoice_reference
		FROM enrollments e
		JOIN courses c ON c.id = e.course_id
		ORDER BY e.student_id, c.id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list enrollments: %w", err)
	}
	defer courseRows.Close()

	for courseRows.Next() {
		var studentID int64
		var c student.Course
		if err := courseRows.Scan(&studentID, &c.ID, &c.Name, &c.Description, &c.InvoiceReference); err != nil {
			return nil, fmt.Errorf("failed to scan enrollment: %w", err)
		}
		if s, ok := byID[student.ID(studentID)]; ok {
			s.EnrolledCourses = append(s.EnrolledCourses, c)
		}
	}

	return students, courseRows.Err()
}

// Exists checks if a student exists.
func (r *StudentRepository) Exists(ctx context.Context, id student.ID) (bool, error) {
	var exists bool
	err := r.conn.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM students WHERE id = $1)`, int64(id)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check student: %w", err)
	}
	return exists, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

func (r *StudentRepository) loadCourses(ctx context.Context, s *student.Student) error {
	rows, err := r.conn.Query(ctx, `
		SELECT c.id, c.name, c.description, c.invoice_reference
		FROM enrollments e
		JOIN courses c ON c.id = e.course_id
		WHERE e.student_id = $1
		ORDER BY c.id
	`, int64(s.ID))
	if err != nil {
		return fmt.Errorf("failed to load enrollments: %w", err)
	}
	defer rows.Close()

	s.EnrolledCourses = []student.Course{}
	for rows.Next() {
		c, err := scanCourse(rows)
		if err != nil {
			return err
		}
		s.EnrolledCourses = append(s.EnrolledCourses, *c)
	}
	return rows.Err()
}

func scanStudent(row pgx.Row) (*student.Student, error) {
	var s student.Student
	var id int64

	err := row.Scan(&id, &s.Name, &s.Surname, &s.Email, &s.PasswordHash, &s.Graduated, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrStudentNotFound
		}
		return nil, fmt.Errorf("failed to scan student: %w", err)
	}

	s.ID = student.ID(id)
	s.EnrolledCourses = []student.Course{}
	return &s, nil
}
