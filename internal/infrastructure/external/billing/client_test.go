package billing

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/campus-ledger/student-service/internal/domain/billing"
	"github.com/campus-ledger/student-service/internal/domain/shared"
	"github.com/campus-ledger/student-service/pkg/retry"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewClient(ClientConfig{
		BaseURL:        srv.URL,
		Timeout:        2 * time.Second,
		Retrier:        retry.New(retry.WithMaxAttempts(3), retry.WithInitialDelay(time.Millisecond), retry.WithMaxDelay(time.Millisecond)),
		DisableBreaker: true,
	})
}

func TestInvoiceDTO_Parsing(t *testing.T) {
	jsonData := `{
    "id": 12,
    "reference": "INV-100",
    "studentId": 42,
    "amount": 100.0,
    "type": "TUITION_FEES",
    "description": "Tuition fee for course: Database Systems",
    "dueDate": "2026-11-14",
    "status": "OUTSTANDING"
}`

	var dto InvoiceDTO
	err := json.Unmarshal([]byte(jsonData), &dto)
	assert.NoError(t, err)

	invoice := toDomainInvoice(dto, 0)
	assert.Equal(t, int64(12), invoice.ID)
	assert.Equal(t, "INV-100", invoice.Reference)
	assert.Equal(t, "42", invoice.StudentID)
	assert.Equal(t, domain.InvoiceTypeTuition, invoice.Type)
	assert.True(t, invoice.IsOutstanding())
}

func TestInvoiceDTO_StudentIDFromAccount(t *testing.T) {
	var dto InvoiceDTO
	err := json.Unmarshal([]byte(`{"reference":"R1","account":{"studentId":"7"},"status":"PAID"}`), &dto)
	assert.NoError(t, err)

	invoice := toDomainInvoice(dto, 5)
	assert.Equal(t, int64(5), invoice.ID)
	assert.Equal(t, "7", invoice.StudentID)
	assert.False(t, invoice.IsOutstanding())
}

func TestClient_CreateInvoice(t *testing.T) {
	var got CreateInvoiceRequestDTO
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/invoices", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"reference":"INV-100","studentId":"42"}`))
	})

	due := time.Date(2026, 11, 14, 0, 0, 0, 0, time.UTC)
	invoice, err := client.CreateInvoice(context.Background(), domain.InvoiceRequest{
		StudentID:        "42",
		Amount:           100.0,
		Type:             domain.InvoiceTypeTuition,
		Description:      "Tuition fee for course: Database Systems",
		DueDate:          due,
		AccountStudentID: "42",
	})
	require.NoError(t, err)
	assert.Equal(t, "INV-100", invoice.Reference)

	assert.Equal(t, "TUITION_FEES", got.Type)
	assert.Equal(t, "2026-11-14", got.DueDate)
	require.NotNil(t, got.Account)
	assert.Equal(t, "42", got.Account.StudentID)
}

func TestClient_CreateInvoiceIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := client.CreateInvoice(context.Background(), domain.InvoiceRequest{StudentID: "1", Amount: 5, Type: domain.InvoiceTypeLibraryFine})
	assert.ErrorIs(t, err, shared.ErrRemoteCallFailed)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_CreateInvoiceMalformedBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>oops</html>`))
	})

	_, err := client.CreateInvoice(context.Background(), domain.InvoiceRequest{StudentID: "1"})
	assert.ErrorIs(t, err, shared.ErrRemoteCallFailed)

	client = newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})
	_, err = client.CreateInvoice(context.Background(), domain.InvoiceRequest{StudentID: "1"})
	assert.ErrorIs(t, err, shared.ErrRemoteCallFailed)
}

func TestClient_GetInvoiceNotFound(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	})

	_, err := client.GetInvoice(context.Background(), 9)
	assert.ErrorIs(t, err, shared.ErrNotFound)
	assert.ErrorIs(t, err, shared.ErrRemoteCallFailed)
	assert.Equal(t, int32(1), calls.Load(), "4xx responses are not retried")
}

func TestClient_GetInvoiceRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"studentId":"3","status":"PAID","type":"LIBRARY_FINE"}`))
	})

	invoice, err := client.GetInvoice(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, int64(4), invoice.ID)
	assert.Equal(t, "3", invoice.StudentID)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	t.Cleanup(srv.Close)

	client := NewClient(ClientConfig{
		BaseURL:        srv.URL,
		Timeout:        50 * time.Millisecond,
		Retrier:        retry.NoRetry(),
		DisableBreaker: true,
	})

	_, err := client.GetAccountByStudent(context.Background(), 1)
	assert.ErrorIs(t, err, shared.ErrRemoteCallFailed)
	assert.ErrorIs(t, err, shared.ErrTimeout)
}

func TestClient_AccountOperations(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/accounts/student/42":
			_, _ = w.Write([]byte(`{"id":9,"studentId":"42","hasOutstandingBalance":false}`))
		case r.Method == http.MethodPost && r.URL.Path == "/accounts":
			_, _ = w.Write([]byte(`{"id":10}`))
		case r.Method == http.MethodDelete && r.URL.Path == "/accounts/9":
			w.WriteHeader(http.StatusNoContent)
		case r.Method == http.MethodDelete && r.URL.Path == "/invoices/INV-1/cancel":
			w.WriteHeader(http.StatusOK)
		default:
			http.NotFound(w, r)
		}
	})
	ctx := context.Background()

	account, err := client.GetAccountByStudent(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, int64(9), account.ID)
	assert.Equal(t, "42", account.StudentID)

	created, err := client.CreateAccount(ctx, 43)
	require.NoError(t, err)
	assert.Equal(t, int64(10), created.ID)
	assert.Equal(t, "43", created.StudentID)

	assert.NoError(t, client.DeleteAccount(ctx, 9))
	assert.NoError(t, client.CancelInvoice(ctx, "INV-1"))
	assert.ErrorIs(t, client.CancelInvoice(ctx, "INV-2"), shared.ErrNotFound)

	_, err = client.GetAccountByStudent(ctx, 1)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}
