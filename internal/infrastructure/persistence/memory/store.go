// Package memory provides in-process implementations of the student service
// repositories and coordination primitives. They back tests and local runs
// without PostgreSQL or Redis.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/campus-ledger/student-service/internal/domain/shared"
	"github.com/campus-ledger/student-service/internal/domain/student"
)

type ledgerKey struct {
	student student.ID
	course  student.CourseID
}

// Store holds students, courses, enrollments and the invoice ledger behind a
// single mutex. Ids are issued from per-table counters.
type Store struct {
	mu sync.RWMutex

	students    map[student.ID]*student.Student
	enrollments map[student.ID]map[student.CourseID]struct{}
	courses     map[student.CourseID]*student.Course
	ledger      map[ledgerKey]string

	nextStudent student.ID
	nextCourse  student.CourseID
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		students:    make(map[student.ID]*student.Student),
		enrollments: make(map[student.ID]map[student.CourseID]struct{}),
		courses:     make(map[student.CourseID]*student.Course),
		ledger:      make(map[ledgerKey]string),
	}
}

// Students returns the student.Repository view of the store.
func (s *Store) Students() *StudentRepository { return &StudentRepository{s} }

// Courses returns the student.CourseRepository view of the store.
func (s *Store) Courses() *CourseRepository { return &CourseRepository{s} }

// InvoiceLedger returns the student.InvoiceLedger view of the store.
func (s *Store) InvoiceLedger() *InvoiceLedger { return &InvoiceLedger{s} }

// ─────────────────────────────────────────────────────────────────────────────
// Students
// ─────────────────────────────────────────────────────────────────────────────

// StudentRepository implements student.Repository.
type StudentRepository struct{ s *Store }

func (r *StudentRepository) Create(_ context.Context, st *student.Student) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, existing := range r.s.students {
		if strings.EqualFold(existing.Email, st.Email) {
			return shared.ErrStudentAlreadyExists
		}
	}

	r.s.nextStudent++
	st.ID = r.s.nextStudent

	stored := *st
	stored.EnrolledCourses = nil
	r.s.students[st.ID] = &stored
	r.s.enrollments[st.ID] = courseSet(st.EnrolledCourses)
	return nil
}

func (r *StudentRepository) GetByID(_ context.Context, id student.ID) (*student.Student, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	st, ok := r.s.students[id]
	if !ok {
		return nil, shared.ErrStudentNotFound
	}
	return r.s.hydrate(st), nil
}

func (r *StudentRepository) GetByEmail(_ context.Context, email string) (*student.Student, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, st := range r.s.students {
		if strings.EqualFold(st.Email, email) {
			return r.s.hydrate(st), nil
		}
	}
	return nil, shared.ErrStudentNotFound
}

func (r *StudentRepository) Update(_ context.Context, st *student.Student) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.students[st.ID]; !ok {
		return shared.ErrStudentNotFound
	}
	for id, existing := range r.s.students {
		if id != st.ID && strings.EqualFold(existing.Email, st.Email) {
			return shared.ErrStudentAlreadyExists
		}
	}
	for _, c := range st.EnrolledCourses {
		if _, ok := r.s.courses[c.ID]; !ok {
			return shared.ErrCourseNotFound
		}
	}

	stored := *st
	stored.EnrolledCourses = nil
	r.s.students[st.ID] = &stored
	r.s.enrollments[st.ID] = courseSet(st.EnrolledCourses)
	return nil
}

func (r *StudentRepository) UpdateProfile(_ context.Context, st *student.Student) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok := r.s.students[st.ID]
	if !ok {
		return shared.ErrStudentNotFound
	}
	stored.Name = st.Name
	stored.Surname = st.Surname
	stored.UpdatedAt = st.UpdatedAt
	return nil
}

func (r *StudentRepository) SetGraduated(_ context.Context, id student.ID, graduated bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok := r.s.students[id]
	if !ok {
		return shared.ErrStudentNotFound
	}
	stored.Graduated = graduated
	stored.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *StudentRepository) Delete(_ context.Context, id student.ID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.students[id]; !ok {
		return shared.ErrStudentNotFound
	}
	delete(r.s.students, id)
	delete(r.s.enrollments, id)
	for k := range r.s.ledger {
		if k.student == id {
			delete(r.s.ledger, k)
		}
	}
	return nil
}

func (r *StudentRepository) GetAll(_ context.Context) ([]*student.Student, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]*student.Student, 0, len(r.s.students))
	for _, st := range r.s.students {
		out = append(out, r.s.hydrate(st))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *StudentRepository) Exists(_ context.Context, id student.ID) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	_, ok := r.s.students[id]
	return ok, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Courses
// ─────────────────────────────────────────────────────────────────────────────

// CourseRepository implements student.CourseRepository.
type CourseRepository struct{ s *Store }

func (r *CourseRepository) Create(_ context.Context, c *student.Course) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.nextCourse++
	c.ID = r.s.nextCourse
	r.s.courses[c.ID] = copyCourse(c)
	return nil
}

func (r *CourseRepository) GetByID(_ context.Context, id student.CourseID) (*student.Course, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	c, ok := r.s.courses[id]
	if !ok {
		return nil, shared.ErrCourseNotFound
	}
	return copyCourse(c), nil
}

func (r *CourseRepository) GetByName(_ context.Context, name string) (*student.Course, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var found *student.Course
	for _, c := range r.s.courses {
		if c.Name == name && (found == nil || c.ID < found.ID) {
			found = c
		}
	}
	if found == nil {
		return nil, shared.ErrCourseNotFound
	}
	return copyCourse(found), nil
}

func (r *CourseRepository) GetAll(_ context.Context) ([]*student.Course, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	return r.s.sortedCourses(), nil
}

func (r *CourseRepository) Update(_ context.Context, c *student.Course) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.courses[c.ID]; !ok {
		return shared.ErrCourseNotFound
	}
	r.s.courses[c.ID] = copyCourse(c)
	return nil
}

func (r *CourseRepository) Delete(_ context.Context, id student.CourseID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.courses[id]; !ok {
		return shared.ErrCourseNotFound
	}
	delete(r.s.courses, id)
	for _, set := range r.s.enrollments {
		delete(set, id)
	}
	for k := range r.s.ledger {
		if k.course == id {
			delete(r.s.ledger, k)
		}
	}
	return nil
}

func (r *CourseRepository) ReassignEnrollments(_ context.Context, from, to student.CourseID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for sid, set := range r.s.enrollments {
		if _, ok := set[from]; !ok {
			continue
		}
		delete(set, from)
		set[to] = struct{}{}

		oldKey := ledgerKey{sid, from}
		if ref, ok := r.s.ledger[oldKey]; ok {
			newKey := ledgerKey{sid, to}
			if _, exists := r.s.ledger[newKey]; !exists {
				r.s.ledger[newKey] = ref
			}
			delete(r.s.ledger, oldKey)
		}
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Invoice ledger
// ─────────────────────────────────────────────────────────────────────────────

// InvoiceLedger implements student.InvoiceLedger.
type InvoiceLedger struct{ s *Store }

func (l *InvoiceLedger) Record(_ context.Context, studentID student.ID, courseID student.CourseID, reference string) error {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()

	l.s.ledger[ledgerKey{studentID, courseID}] = reference
	return nil
}

func (l *InvoiceLedger) Get(_ context.Context, studentID student.ID, courseID student.CourseID) (string, error) {
	l.s.mu.RLock()
	defer l.s.mu.RUnlock()

	ref, ok := l.s.ledger[ledgerKey{studentID, courseID}]
	if !ok {
		return "", shared.ErrNotFound
	}
	return ref, nil
}

func (l *InvoiceLedger) Remove(_ context.Context, studentID student.ID, courseID student.CourseID) error {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()

	delete(l.s.ledger, ledgerKey{studentID, courseID})
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers (callers hold s.mu)
// ─────────────────────────────────────────────────────────────────────────────

func (s *Store) hydrate(st *student.Student) *student.Student {
	out := *st
	out.EnrolledCourses = []student.Course{}
	for _, c := range s.sortedCourses() {
		if _, ok := s.enrollments[st.ID][c.ID]; ok {
			out.EnrolledCourses = append(out.EnrolledCourses, *c)
		}
	}
	return &out
}

func (s *Store) sortedCourses() []*student.Course {
	out := make([]*student.Course, 0, len(s.courses))
	for _, c := range s.courses {
		out = append(out, copyCourse(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func copyCourse(c *student.Course) *student.Course {
	out := *c
	if c.InvoiceReference != nil {
		ref := *c.InvoiceReference
		out.InvoiceReference = &ref
	}
	return &out
}

func courseSet(courses []student.Course) map[student.CourseID]struct{} {
	set := make(map[student.CourseID]struct{}, len(courses))
	for _, c := range courses {
		set[c.ID] = struct{}{}
	}
	return set
}
