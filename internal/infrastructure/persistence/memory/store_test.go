package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-ledger/student-service/internal/domain/shared"
	"github.com/campus-ledger/student-service/internal/domain/student"
)

func newStudent(t *testing.T, email string) *student.Student {
	t.Helper()
	s, err := student.NewStudent(student.NewStudentParams{Name: "Ada", Surname: "Lovelace", Email: email, PasswordHash: "hash"})
	require.NoError(t, err)
	return s
}

func TestStore_StudentLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	students := store.Students()
	courses := store.Courses()

	a := newStudent(t, "a@example.com")
	require.NoError(t, students.Create(ctx, a))
	b := newStudent(t, "b@example.com")
	require.NoError(t, students.Create(ctx, b))
	assert.Equal(t, student.ID(1), a.ID)
	assert.Equal(t, student.ID(2), b.ID)

	assert.ErrorIs(t, students.Create(ctx, newStudent(t, "A@example.com")), shared.ErrAlreadyExists)

	course := &student.Course{Name: "Math"}
	require.NoError(t, courses.Create(ctx, course))

	require.NoError(t, a.Enroll(*course))
	require.NoError(t, students.Update(ctx, a))

	got, err := students.GetByID(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, got.EnrolledCourses, 1)
	assert.Equal(t, "Math", got.EnrolledCourses[0].Name)

	// Course edits show through enrollments.
	course.Name = "Mathematics"
	require.NoError(t, courses.Update(ctx, course))
	got, _ = students.GetByID(ctx, a.ID)
	assert.Equal(t, "Mathematics", got.EnrolledCourses[0].Name)

	all, err := students.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, a.ID, all[0].ID)

	require.NoError(t, students.Delete(ctx, a.ID))
	_, err = students.GetByID(ctx, a.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)
	assert.ErrorIs(t, students.Delete(ctx, a.ID), shared.ErrNotFound)
}

func TestStore_UpdateRejectsUnknownCourse(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	s := newStudent(t, "a@example.com")
	require.NoError(t, store.Students().Create(ctx, s))

	s.EnrolledCourses = []student.Course{{ID: 99, Name: "Ghost"}}
	assert.ErrorIs(t, store.Students().Update(ctx, s), shared.ErrNotFound)
}

func TestStore_ColumnWritesLeaveEnrollments(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	students := store.Students()

	a := newStudent(t, "a@example.com")
	require.NoError(t, students.Create(ctx, a))
	stale, err := students.GetByID(ctx, a.ID)
	require.NoError(t, err)

	course := &student.Course{Name: "Math"}
	require.NoError(t, store.Courses().Create(ctx, course))
	require.NoError(t, a.Enroll(*course))
	require.NoError(t, students.Update(ctx, a))

	stale.UpdateProfile("Grace", "Hopper")
	require.NoError(t, students.UpdateProfile(ctx, stale))
	require.NoError(t, students.SetGraduated(ctx, a.ID, true))

	got, err := students.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "Grace", got.Name)
	assert.Equal(t, "Hopper", got.Surname)
	assert.True(t, got.Graduated)
	assert.True(t, got.IsEnrolledIn(course.ID))

	assert.ErrorIs(t, students.SetGraduated(ctx, 99, true), shared.ErrNotFound)
	stale.ID = 99
	assert.ErrorIs(t, students.UpdateProfile(ctx, stale), shared.ErrNotFound)
}

func TestStore_ReassignEnrollments(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	courses := store.Courses()
	ledger := store.InvoiceLedger()

	keep := &student.Course{Name: "Math"}
	dup := &student.Course{Name: "Math"}
	require.NoError(t, courses.Create(ctx, keep))
	require.NoError(t, courses.Create(ctx, dup))

	s := newStudent(t, "a@example.com")
	require.NoError(t, store.Students().Create(ctx, s))
	require.NoError(t, s.Enroll(*dup))
	require.NoError(t, store.Students().Update(ctx, s))
	require.NoError(t, ledger.Record(ctx, s.ID, dup.ID, "INV-1"))

	byName, err := courses.GetByName(ctx, "Math")
	require.NoError(t, err)
	assert.Equal(t, keep.ID, byName.ID)

	require.NoError(t, courses.ReassignEnrollments(ctx, dup.ID, keep.ID))
	require.NoError(t, courses.Delete(ctx, dup.ID))

	got, _ := store.Students().GetByID(ctx, s.ID)
	require.Len(t, got.EnrolledCourses, 1)
	assert.Equal(t, keep.ID, got.EnrolledCourses[0].ID)

	ref, err := ledger.Get(ctx, s.ID, keep.ID)
	require.NoError(t, err)
	assert.Equal(t, "INV-1", ref)
}

func TestInvoiceLedger(t *testing.T) {
	ctx := context.Background()
	ledger := NewStore().InvoiceLedger()

	_, err := ledger.Get(ctx, 1, 1)
	assert.ErrorIs(t, err, shared.ErrNotFound)

	require.NoError(t, ledger.Record(ctx, 1, 1, "A"))
	require.NoError(t, ledger.Record(ctx, 1, 1, "B"))
	ref, err := ledger.Get(ctx, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, "B", ref)

	require.NoError(t, ledger.Remove(ctx, 1, 1))
	require.NoError(t, ledger.Remove(ctx, 1, 1))
}

func TestKeyedLocker_Serializes(t *testing.T) {
	locker := NewKeyedLocker()
	ctx := context.Background()

	var mu sync.Mutex
	inside := 0
	maxInside := 0

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := locker.Lock(ctx, 7)
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			inside++
			if inside > maxInside {
				maxInside = inside
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			inside--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxInside)
	assert.Empty(t, locker.slots)
}

func TestKeyedLocker_ContextCancel(t *testing.T) {
	locker := NewKeyedLocker()
	unlock, err := locker.Lock(context.Background(), 1)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(ctx, 1)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// Other students are independent.
	other, err := locker.Lock(context.Background(), 2)
	require.NoError(t, err)
	other()

	unlock()
	unlock()
	assert.Empty(t, locker.slots)
}

func TestFineLedger(t *testing.T) {
	ctx := context.Background()
	l := NewFineLedger()

	seen, err := l.Seen(ctx, 1, "k")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, l.Mark(ctx, 1, "k"))
	seen, _ = l.Seen(ctx, 1, "k")
	assert.True(t, seen)
	seen, _ = l.Seen(ctx, 2, "k")
	assert.False(t, seen)
}
