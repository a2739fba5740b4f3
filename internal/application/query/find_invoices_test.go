package query

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-ledger/student-service/internal/domain/billing"
	"github.com/campus-ledger/student-service/internal/domain/shared"
	"github.com/campus-ledger/student-service/internal/domain/student"
	"github.com/campus-ledger/student-service/internal/infrastructure/persistence/memory"
)

type fakeInvoices struct {
	accountErr error
	noAccount  bool
	invoices   map[int64]billing.Invoice
	failing    map[int64]bool
	calls      atomic.Int32

	mu      sync.Mutex
	maxSeen int
	active  int
}

func (f *fakeInvoices) GetAccountByStudent(_ context.Context, studentID int64) (*billing.Account, error) {
	if f.accountErr != nil {
		return nil, f.accountErr
	}
	if f.noAccount {
		return nil, shared.ErrAccountNotFound
	}
	return &billing.Account{ID: 1, StudentID: strconv.FormatInt(studentID, 10)}, nil
}

func (f *fakeInvoices) GetInvoice(_ context.Context, id int64) (*billing.Invoice, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.active++
	if f.active > f.maxSeen {
		f.maxSeen = f.active
	}
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.active--
		f.mu.Unlock()
	}()

	if f.failing[id] {
		return nil, errors.New("boom")
	}
	inv, ok := f.invoices[id]
	if !ok {
		return nil, shared.ErrInvoiceNotFound
	}
	inv.ID = id
	return &inv, nil
}

func TestFindInvoices_FiltersAndOrders(t *testing.T) {
	src := &fakeInvoices{
		invoices: map[int64]billing.Invoice{
			3:  {StudentID: "7", Status: "OUTSTANDING", Type: billing.InvoiceTypeTuition},
			1:  {StudentID: "7", Status: "PAID", Type: billing.InvoiceTypeLibraryFine},
			2:  {StudentID: "8", Status: "OUTSTANDING", Type: billing.InvoiceTypeTuition},
			50: {StudentID: "7", Status: "outstanding", Type: billing.InvoiceTypeLibraryFine},
			99: {StudentID: "70", Status: "OUTSTANDING", Type: billing.InvoiceTypeTuition},
		},
		failing: map[int64]bool{4: true},
	}
	h := NewFindInvoicesHandler(src, FindInvoicesConfig{ProbeLimit: 100, Concurrency: 4}, nil)

	all, err := h.Handle(context.Background(), FindInvoicesQuery{StudentID: 7})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []int64{1, 3, 50}, []int64{all[0].ID, all[1].ID, all[2].ID})
	assert.Equal(t, int32(100), src.calls.Load())

	outstanding, err := h.Handle(context.Background(), FindInvoicesQuery{StudentID: 7, Status: "Outstanding"})
	require.NoError(t, err)
	require.Len(t, outstanding, 2)
	assert.Equal(t, int64(3), outstanding[0].ID)
	assert.Equal(t, int64(50), outstanding[1].ID)

	fines, err := h.Handle(context.Background(), FindInvoicesQuery{StudentID: 7, Status: "outstanding", Type: "library_fine"})
	require.NoError(t, err)
	require.Len(t, fines, 1)
	assert.Equal(t, int64(50), fines[0].ID)
}

func TestFindInvoices_BoundedConcurrency(t *testing.T) {
	src := &fakeInvoices{invoices: map[int64]billing.Invoice{}}
	h := NewFindInvoicesHandler(src, FindInvoicesConfig{ProbeLimit: 40, Concurrency: 3}, nil)

	_, err := h.Handle(context.Background(), FindInvoicesQuery{StudentID: 1})
	require.NoError(t, err)
	assert.LessOrEqual(t, src.maxSeen, 3)
	assert.Equal(t, int32(40), src.calls.Load())
}

func TestFindInvoices_AccountGate(t *testing.T) {
	for name, src := range map[string]*fakeInvoices{
		"missing account": {noAccount: true},
		"lookup error":    {accountErr: shared.ErrRemoteCallFailed},
	} {
		t.Run(name, func(t *testing.T) {
			h := NewFindInvoicesHandler(src, DefaultFindInvoicesConfig(), nil)

			invoices, err := h.Handle(context.Background(), FindInvoicesQuery{StudentID: 7})
			require.NoError(t, err)
			assert.NotNil(t, invoices)
			assert.Empty(t, invoices)
			assert.Equal(t, int32(0), src.calls.Load())
		})
	}
}

func TestFindInvoices_InvalidStudent(t *testing.T) {
	h := NewFindInvoicesHandler(&fakeInvoices{}, DefaultFindInvoicesConfig(), nil)
	_, err := h.Handle(context.Background(), FindInvoicesQuery{})
	assert.True(t, shared.IsValidation(err))
}

func TestStudentReader(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()

	math := &student.Course{Name: "Math", Description: "Numbers"}
	art := &student.Course{Name: "Art"}
	require.NoError(t, store.Courses().Create(ctx, math))
	require.NoError(t, store.Courses().Create(ctx, art))

	st, err := student.NewStudent(student.NewStudentParams{Name: "Ada", Surname: "L", Email: "ada@example.com", PasswordHash: "h"})
	require.NoError(t, err)
	require.NoError(t, store.Students().Create(ctx, st))
	require.NoError(t, st.Enroll(*art))
	require.NoError(t, st.Enroll(*math))
	require.NoError(t, store.Students().Update(ctx, st))

	r := NewStudentReader(store.Students(), store.Courses())

	labels, err := r.GetEnrollments(ctx, st.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Course ID: 1 - Math", "Course ID: 2 - Art"}, labels)

	profile, err := r.GetProfile(ctx, st.ID)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", profile.Email)
	assert.Len(t, profile.Courses, 2)

	courses, err := r.ListCourses(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Numbers", courses[0].Description)

	_, err = r.GetEnrollments(ctx, 42)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}
