package student

import (
	"errors"
	"strconv"
	"strings"
)

// CourseID - идентификатор курса.
type CourseID int64

// IsValid проверяет, что CourseID положительный.
func (id CourseID) IsValid() bool {
	return id > 0
}

// ErrInvalidCourseName - пустое или слишком длинное название курса.
var ErrInvalidCourseName = errors.New("invalid course name: must be 1-200 chars")

// Course - учебный курс. Название логически уникально.
type Course struct {
	ID          CourseID
	Name        string
	Description string

	// InvoiceReference - ссылка на счёт последней успешной записи на курс.
	// Поле историческое и общее для всех студентов курса, поэтому отмена
	// счёта опирается на реестр счетов по паре (студент, курс), а это поле
	// лишь зеркалирует последнюю ссылку.
	InvoiceReference *string
}

// NewCourse создаёт курс с валидацией названия.
func NewCourse(name, description string) (*Course, error) {
	n := strings.TrimSpace(name)
	if len(n) == 0 || len(n) > 200 {
		return nil, ErrInvalidCourseName
	}
	return &Course{
		Name:        n,
		Description: strings.TrimSpace(description),
	}, nil
}

// HasInvoiceReference возвращает true, если к курсу привязана ссылка на счёт.
func (c *Course) HasInvoiceReference() bool {
	return c.InvoiceReference != nil && *c.InvoiceReference != ""
}

// SetInvoiceReference запоминает ссылку на последний созданный счёт.
func (c *Course) SetInvoiceReference(ref string) {
	c.InvoiceReference = &ref
}

// ClearInvoiceReference сбрасывает ссылку, только если она совпадает с ref.
// Возвращает true, если ссылка была сброшена.
func (c *Course) ClearInvoiceReference(ref string) bool {
	if c.InvoiceReference == nil || *c.InvoiceReference != ref {
		return false
	}
	c.InvoiceReference = nil
	return true
}

// DedupKey возвращает ключ для поиска дубликатов курсов (название|описание).
func (c *Course) DedupKey() string {
	return c.Name + "|" + c.Description
}

// Label форматирует курс для списка записей студента.
func (c *Course) Label() string {
	return "Course ID: " + strconv.FormatInt(int64(c.ID), 10) + " - " + c.Name
}
