package query

import (
	"context"
	"time"

	"github.com/campus-ledger/student-service/internal/domain/shared"
	"github.com/campus-ledger/student-service/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT READ QUERIES
// Профиль, записи на курсы и каталог курсов. Только локальное хранилище.
// ══════════════════════════════════════════════════════════════════════════════

// CourseDTO - курс в ответе API.
type CourseDTO struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// StudentProfileDTO - профиль студента. Хэш пароля не отдаётся.
type StudentProfileDTO struct {
	ID        int64       `json:"id"`
	Name      string      `json:"name"`
	Surname   string      `json:"surname"`
	Email     string      `json:"email"`
	Graduated bool        `json:"graduated"`
	Courses   []CourseDTO `json:"courses"`
	CreatedAt time.Time   `json:"createdAt"`
}

// StudentReader - обработчик запросов чтения по студентам и курсам.
type StudentReader struct {
	students student.Repository
	courses  student.CourseRepository
}

// NewStudentReader создаёт новый StudentReader.
func NewStudentReader(students student.Repository, courses student.CourseRepository) *StudentReader {
	return &StudentReader{students: students, courses: courses}
}

// GetProfile возвращает профиль студента.
func (r *StudentReader) GetProfile(ctx context.Context, id student.ID) (*StudentProfileDTO, error) {
	if !id.IsValid() {
		return nil, shared.ErrInvalidStudentID
	}

	st, err := r.students.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	return ToStudentProfileDTO(st), nil
}

// ToStudentProfileDTO преобразует студента в DTO профиля.
func ToStudentProfileDTO(st *student.Student) *StudentProfileDTO {
	dto := &StudentProfileDTO{
		ID:        int64(st.ID),
		Name:      st.Name,
		Surname:   st.Surname,
		Email:     st.Email,
		Graduated: st.Graduated,
		Courses:   make([]CourseDTO, 0, len(st.EnrolledCourses)),
		CreatedAt: st.CreatedAt,
	}
	for _, c := range st.EnrolledCourses {
		dto.Courses = append(dto.Courses, toCourseDTO(c))
	}
	return dto
}

// GetEnrollments возвращает записи студента в виде
// "Course ID: <id> - <name>".
func (r *StudentReader) GetEnrollments(ctx context.Context, id student.ID) ([]string, error) {
	if !id.IsValid() {
		return nil, shared.ErrInvalidStudentID
	}

	st, err := r.students.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	labels := make([]string, 0, len(st.EnrolledCourses))
	for _, c := range st.EnrolledCourses {
		labels = append(labels, c.Label())
	}
	return labels, nil
}

// ListCourses возвращает каталог курсов по возрастанию ID.
func (r *StudentReader) ListCourses(ctx context.Context) ([]CourseDTO, error) {
	courses, err := r.courses.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]CourseDTO, 0, len(courses))
	for _, c := range courses {
		out = append(out, toCourseDTO(*c))
	}
	return out, nil
}

func toCourseDTO(c student.Course) CourseDTO {
	return CourseDTO{ID: int64(c.ID), Name: c.Name, Description: c.Description}
}
