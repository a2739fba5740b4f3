package student

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-ledger/student-service/internal/domain/shared"
)

func TestNewStudent_Validation(t *testing.T) {
	st, err := NewStudent(NewStudentParams{
		Name:         "  Ada ",
		Surname:      "Lovelace",
		Email:        "Ada@Example.com",
		PasswordHash: "hash",
	})
	require.NoError(t, err)
	assert.Equal(t, "Ada", st.Name)
	assert.Equal(t, "ada@example.com", st.Email)
	assert.False(t, st.Graduated)
	assert.Empty(t, st.EnrolledCourses)
	assert.False(t, st.ID.IsValid())

	_, err = NewStudent(NewStudentParams{Name: "", Email: "a@b.c", PasswordHash: "h"})
	assert.ErrorIs(t, err, ErrInvalidName)

	_, err = NewStudent(NewStudentParams{Name: "A", Email: "not-an-email", PasswordHash: "h"})
	assert.ErrorIs(t, err, ErrInvalidEmail)

	_, err = NewStudent(NewStudentParams{Name: "A", Email: "a@b.c"})
	assert.ErrorIs(t, err, ErrInvalidPassword)
}

func TestStudent_EnrollUnenroll(t *testing.T) {
	st := &Student{ID: 1}
	db := Course{ID: 3, Name: "Database Systems"}

	require.NoError(t, st.Enroll(db))
	assert.True(t, st.IsEnrolledIn(3))
	assert.True(t, st.HasEnrollments())

	assert.ErrorIs(t, st.Enroll(db), shared.ErrAlreadyEnrolled)
	assert.Len(t, st.EnrolledCourses, 1)

	require.NoError(t, st.Unenroll(3))
	assert.False(t, st.HasEnrollments())
	assert.ErrorIs(t, st.Unenroll(3), shared.ErrNotEnrolled)
}

func TestStudent_UpdateProfileIgnoresBlank(t *testing.T) {
	st := &Student{Name: "Ada", Surname: "Lovelace"}

	st.UpdateProfile("   ", "Byron")
	assert.Equal(t, "Ada", st.Name)
	assert.Equal(t, "Byron", st.Surname)

	st.UpdateProfile("Augusta", "")
	assert.Equal(t, "Augusta", st.Name)
	assert.Equal(t, "Byron", st.Surname)
}

func TestCourse_InvoiceReference(t *testing.T) {
	c := &Course{ID: 7, Name: "Web Development"}
	assert.False(t, c.HasInvoiceReference())

	c.SetInvoiceReference("INV-1")
	assert.True(t, c.HasInvoiceReference())

	assert.False(t, c.ClearInvoiceReference("INV-2"))
	assert.Equal(t, "INV-1", *c.InvoiceReference)

	assert.True(t, c.ClearInvoiceReference("INV-1"))
	assert.Nil(t, c.InvoiceReference)

	assert.Equal(t, "Course ID: 7 - Web Development", c.Label())
	assert.Equal(t, "Web Development|", c.DedupKey())
}
