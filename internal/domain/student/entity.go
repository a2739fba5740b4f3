// Package student содержит доменную модель студента и курсов, на которые он записан.
// Это ядро бизнес-логики - здесь нет внешних зависимостей.
package student

import (
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/campus-ledger/student-service/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// ID - уникальный идентификатор студента. Выдаётся централизованно хранилищем
// (последовательность в базе), никогда не генерируется на клиенте.
type ID int64

// IsValid проверяет, что ID положительный.
func (id ID) IsValid() bool {
	return id > 0
}

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: STUDENT
// ══════════════════════════════════════════════════════════════════════════════

// Student - центральная сущность системы.
type Student struct {
	// ID - присваивается хранилищем при Create.
	ID ID

	// Name - имя.
	Name string

	// Surname - фамилия.
	Surname string

	// Email - уникальный адрес, используется для входа.
	Email string

	// PasswordHash - bcrypt-хэш пароля. Открытый пароль нигде не хранится.
	PasswordHash string

	// Graduated - кэш последнего результата проверки права на выпуск.
	// Это производное значение, а не источник истины: его пишет только
	// оценщик выпуска, и никакой код не должен принимать решения на его основе.
	// Актуальное значение всегда пересчитывается заново.
	Graduated bool

	// EnrolledCourses - курсы, на которые записан студент.
	EnrolledCourses []Course

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrInvalidEmail - невалидный email.
	ErrInvalidEmail = errors.New("invalid email address")

	// ErrInvalidPassword - пустой пароль.
	ErrInvalidPassword = errors.New("password is required")

	// ErrInvalidName - невалидное имя или фамилия.
	ErrInvalidName = errors.New("invalid name: must be 1-100 chars")
)

// ══════════════════════════════════════════════════════════════════════════════
// FACTORY & VALIDATION
// ══════════════════════════════════════════════════════════════════════════════

// NewStudentParams содержит параметры для создания нового студента.
type NewStudentParams struct {
	Name         string
	Surname      string
	Email        string
	PasswordHash string
}

// NewStudent создаёт нового студента с валидацией всех полей.
// ID остаётся нулевым до сохранения в репозитории.
func NewStudent(params NewStudentParams) (*Student, error) {
	name := strings.TrimSpace(params.Name)
	if len(name) == 0 || len(name) > 100 {
		return nil, ErrInvalidName
	}

	surname := strings.TrimSpace(params.Surname)
	if len(surname) > 100 {
		return nil, ErrInvalidName
	}

	email, err := NormalizeEmail(params.Email)
	if err != nil {
		return nil, err
	}

	if params.PasswordHash == "" {
		return nil, ErrInvalidPassword
	}

	now := time.Now().UTC()

	return &Student{
		Name:            name,
		Surname:         surname,
		Email:           email,
		PasswordHash:    params.PasswordHash,
		Graduated:       false,
		EnrolledCourses: []Course{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// NormalizeEmail приводит адрес к нижнему регистру и проверяет формат.
func NormalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", ErrInvalidEmail
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return "", ErrInvalidEmail
	}
	return email, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN METHODS (Business Logic)
// ══════════════════════════════════════════════════════════════════════════════

// IsEnrolledIn проверяет, записан ли студент на курс.
func (s *Student) IsEnrolledIn(courseID CourseID) bool {
	for _, c := range s.EnrolledCourses {
		if c.ID == courseID {
			return true
		}
	}
	return false
}

// HasEnrollments возвращает true, если студент записан хотя бы на один курс.
func (s *Student) HasEnrollments() bool {
	return len(s.EnrolledCourses) > 0
}

// Enroll добавляет курс в набор записей.
// Возвращает shared.ErrAlreadyEnrolled, если запись уже есть.
func (s *Student) Enroll(course Course) error {
	if s.IsEnrolledIn(course.ID) {
		return shared.ErrAlreadyEnrolled
	}

	s.EnrolledCourses = append(s.EnrolledCourses, course)
	s.UpdatedAt = time.Now().UTC()
	return nil
}

// Unenroll удаляет курс из набора записей.
// Возвращает shared.ErrNotEnrolled, если записи не было.
func (s *Student) Unenroll(courseID CourseID) error {
	for i, c := range s.EnrolledCourses {
		if c.ID == courseID {
			s.EnrolledCourses = append(s.EnrolledCourses[:i], s.EnrolledCourses[i+1:]...)
			s.UpdatedAt = time.Now().UTC()
			return nil
		}
	}
	return shared.ErrNotEnrolled
}

// ClearEnrollments удаляет все записи на курсы.
func (s *Student) ClearEnrollments() {
	s.EnrolledCourses = []Course{}
	s.UpdatedAt = time.Now().UTC()
}

// UpdateProfile меняет имя и фамилию. Пустые значения игнорируются.
func (s *Student) UpdateProfile(name, surname string) {
	if n := strings.TrimSpace(name); n != "" {
		s.Name = n
	}
	if sn := strings.TrimSpace(surname); sn != "" {
		s.Surname = sn
	}
	s.UpdatedAt = time.Now().UTC()
}

// RecordGraduation сохраняет результат проверки в кэш-поле Graduated.
func (s *Student) RecordGraduation(eligible bool) {
	s.Graduated = eligible
	s.UpdatedAt = time.Now().UTC()
}

// CourseIDs возвращает идентификаторы курсов в порядке записи.
func (s *Student) CourseIDs() []CourseID {
	ids := make([]CourseID, 0, len(s.EnrolledCourses))
	for _, c := range s.EnrolledCourses {
		ids = append(ids, c.ID)
	}
	return ids
}
