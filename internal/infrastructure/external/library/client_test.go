package library

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-ledger/student-service/internal/domain/shared"
	"github.com/campus-ledger/student-service/pkg/retry"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(ClientConfig{
		BaseURL:        srv.URL,
		Timeout:        time.Second,
		Retrier:        retry.NoRetry(),
		DisableBreaker: true,
	})
}

func TestClient_ListOverdue(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/admin/overdue", r.URL.Path)
		_, _ = w.Write([]byte(`[
			{"student_id": "1", "title": "Dune"},
			{"student_id": 2, "title": "Emma", "due_date": "2026-09-01"}
		]`))
	})

	items, err := client.ListOverdue(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.True(t, items[0].BelongsTo(1))
	assert.Equal(t, "Dune", items[0].Title)
	assert.True(t, items[1].BelongsTo(2))
	assert.False(t, items[1].BelongsTo(1))
}

func TestClient_ListOverdueMalformed(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"not":"a list"}`))
	})

	_, err := client.ListOverdue(context.Background())
	assert.ErrorIs(t, err, shared.ErrRemoteCallFailed)
}

func TestClient_RegisterAccount(t *testing.T) {
	var got RegisterRequestDTO
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/register", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte("registered"))
	})

	require.NoError(t, client.RegisterAccount(context.Background(), 15))
	assert.Equal(t, "15", got.StudentID)
}

func TestClient_RegisterAccountFailure(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"library offline"}`, http.StatusInternalServerError)
	})

	err := client.RegisterAccount(context.Background(), 15)
	assert.ErrorIs(t, err, shared.ErrRemoteCallFailed)
	assert.Contains(t, err.Error(), "library offline")
}
