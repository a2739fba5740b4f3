package jobs

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-ledger/student-service/internal/domain/billing"
	"github.com/campus-ledger/student-service/internal/domain/library"
	"github.com/campus-ledger/student-service/internal/domain/shared"
	"github.com/campus-ledger/student-service/internal/domain/student"
	"github.com/campus-ledger/student-service/internal/infrastructure/persistence/memory"
)

type studentList []*student.Student

func (l studentList) GetAll(context.Context) ([]*student.Student, error) { return l, nil }

func studentsWithIDs(ids ...int64) studentList {
	out := make(studentList, 0, len(ids))
	for _, id := range ids {
		out = append(out, &student.Student{ID: student.ID(id)})
	}
	return out
}

type feedSource struct {
	items []library.OverdueItem
	err   error
	calls atomic.Int32
}

func (f *feedSource) ListOverdue(context.Context) ([]library.OverdueItem, error) {
	f.calls.Add(1)
	return f.items, f.err
}

type recordingBilling struct {
	mu       sync.Mutex
	requests []billing.InvoiceRequest
	failOn   map[string]bool
}

func (b *recordingBilling) CreateInvoice(_ context.Context, req billing.InvoiceRequest) (*billing.Invoice, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failOn[req.Description] {
		return nil, shared.ErrRemoteCallFailed
	}
	b.requests = append(b.requests, req)
	return &billing.Invoice{Reference: "F" + req.StudentID}, nil
}

func (b *recordingBilling) descriptions(studentID string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []string
	for _, r := range b.requests {
		if r.StudentID == studentID {
			out = append(out, r.Description)
		}
	}
	sort.Strings(out)
	return out
}

var overdueFeed = []library.OverdueItem{
	{StudentID: "1", Title: "Dune", DueDate: "2026-09-01"},
	{StudentID: "2", Title: "Emma", DueDate: "2026-09-02"},
	{StudentID: "1", Title: "Ulysses", DueDate: "2026-09-03"},
	{StudentID: "10", Title: "Walden", DueDate: "2026-09-04"},
	{StudentID: "3", Title: "Beloved", DueDate: "2026-09-05"},
}

func TestLibraryFineSweep_BillsEachOverdueItem(t *testing.T) {
	source := &feedSource{items: overdueFeed}
	bill := &recordingBilling{}
	job := NewLibraryFineSweepJob(studentsWithIDs(1, 2, 4), source, bill, nil, nil, DefaultLibraryFineSweepConfig())

	require.NoError(t, job.Run(context.Background()))

	assert.Equal(t, []string{"Late return: Dune", "Late return: Ulysses"}, bill.descriptions("1"))
	assert.Equal(t, []string{"Late return: Emma"}, bill.descriptions("2"))
	assert.Empty(t, bill.descriptions("4"))
	assert.Empty(t, bill.descriptions("10"), "ids are compared as whole strings")

	for _, r := range bill.requests {
		assert.Equal(t, billing.InvoiceTypeLibraryFine, r.Type)
		assert.Equal(t, 5.0, r.Amount)
		assert.True(t, r.DueDate.IsZero())
	}

	// One feed request per student.
	assert.Equal(t, int32(3), source.calls.Load())

	stats := job.LastStats()
	require.NotNil(t, stats)
	assert.Equal(t, 3, stats.TotalStudents)
	assert.Equal(t, 3, stats.FinesCreated)
	assert.Zero(t, stats.FailedStudents)
}

func TestLibraryFineSweep_FailureStopsOnlyThatStudent(t *testing.T) {
	source := &feedSource{items: overdueFeed}
	bill := &recordingBilling{failOn: map[string]bool{"Late return: Dune": true}}
	job := NewLibraryFineSweepJob(studentsWithIDs(1, 2, 3), source, bill, nil, nil, DefaultLibraryFineSweepConfig())

	require.NoError(t, job.Run(context.Background()))

	assert.Empty(t, bill.descriptions("1"), "remaining items of the failing student are skipped")
	assert.Equal(t, []string{"Late return: Emma"}, bill.descriptions("2"))
	assert.Equal(t, []string{"Late return: Beloved"}, bill.descriptions("3"))

	stats := job.LastStats()
	assert.Equal(t, 1, stats.FailedStudents)
	require.Len(t, stats.Errors, 1)
	assert.Equal(t, int64(1), stats.Errors[0].StudentID)
	assert.Equal(t, "Dune", stats.Errors[0].Title)
	assert.ErrorIs(t, stats.Errors[0].Error, shared.ErrRemoteCallFailed)
}

func TestLibraryFineSweep_FeedFailureIsPerStudent(t *testing.T) {
	source := &feedSource{err: errors.New("library down")}
	bill := &recordingBilling{}
	job := NewLibraryFineSweepJob(studentsWithIDs(1, 2), source, bill, nil, nil, DefaultLibraryFineSweepConfig())

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 2, job.LastStats().FailedStudents)
	assert.Empty(t, bill.requests)
}

func TestLibraryFineSweep_DuplicatesWithoutDedup(t *testing.T) {
	source := &feedSource{items: overdueFeed}
	bill := &recordingBilling{}
	job := NewLibraryFineSweepJob(studentsWithIDs(2), source, bill, memory.NewFineLedger(), nil, DefaultLibraryFineSweepConfig())

	require.NoError(t, job.Run(context.Background()))
	require.NoError(t, job.Run(context.Background()))

	assert.Len(t, bill.descriptions("2"), 2)
}

func TestLibraryFineSweep_Dedup(t *testing.T) {
	source := &feedSource{items: overdueFeed}
	bill := &recordingBilling{}
	cfg := DefaultLibraryFineSweepConfig()
	cfg.DedupEnabled = true
	cfg.ShareFeed = true
	job := NewLibraryFineSweepJob(studentsWithIDs(1, 2), source, bill, memory.NewFineLedger(), nil, cfg)

	require.NoError(t, job.Run(context.Background()))
	require.NoError(t, job.Run(context.Background()))

	assert.Len(t, bill.descriptions("1"), 2)
	assert.Len(t, bill.descriptions("2"), 1)
	assert.Equal(t, 3, job.LastStats().FinesSkipped)
	assert.Equal(t, 0, job.LastStats().FinesCreated)

	// Shared feed: one request per run.
	assert.Equal(t, int32(2), source.calls.Load())
}

func TestLibraryFineSweep_DedupIgnoredWithoutLedger(t *testing.T) {
	cfg := DefaultLibraryFineSweepConfig()
	cfg.DedupEnabled = true
	job := NewLibraryFineSweepJob(studentsWithIDs(2), &feedSource{items: overdueFeed}, &recordingBilling{}, nil, nil, cfg)

	require.NoError(t, job.Run(context.Background()))
	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 1, job.LastStats().FinesCreated)
}

func TestLibraryFineSweep_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	bill := &recordingBilling{}
	job := NewLibraryFineSweepJob(studentsWithIDs(1, 2), &feedSource{items: overdueFeed}, bill, nil, nil, DefaultLibraryFineSweepConfig())

	err := job.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, bill.requests)
}
