// Package library implements the library service client: the overdue-items
// feed and library account registration.
package library

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	domain "github.com/campus-ledger/student-service/internal/domain/library"
	"github.com/campus-ledger/student-service/internal/infrastructure/external/transport"
	"github.com/campus-ledger/student-service/pkg/circuitbreaker"
	"github.com/campus-ledger/student-service/pkg/retry"
)

// ClientConfig contains configuration for the library client.
type ClientConfig struct {
	BaseURL        string
	Timeout        time.Duration
	Retrier        *retry.Retrier
	HTTPClient     *http.Client
	DisableBreaker bool
	Logger         *slog.Logger
	Debug          bool
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig(baseURL string) ClientConfig {
	return ClientConfig{
		BaseURL: baseURL,
		Timeout: 15 * time.Second,
		Retrier: retry.LibraryRetrier(),
	}
}

// OverdueItemDTO is one entry of GET /admin/overdue.
type OverdueItemDTO struct {
	StudentID transport.FlexString `json:"student_id"`
	Title     string               `json:"title"`
	DueDate   string               `json:"due_date,omitempty"`
}

// RegisterRequestDTO is the body of POST /api/register.
type RegisterRequestDTO struct {
	StudentID string `json:"studentId"`
}

// Client is the library service client.
type Client struct {
	remote *transport.Client
}

// NewClient creates a new library client.
func NewClient(config ClientConfig) *Client {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	logger := config.Logger.With("component", "library_client")

	var breaker *circuitbreaker.CircuitBreaker
	if !config.DisableBreaker {
		breaker = circuitbreaker.LibraryBreaker(transport.BreakerFailure, func(name string, from, to circuitbreaker.State) {
			logger.Warn("circuit state changed", "breaker", name, "from", from.String(), "to", to.String())
		})
	}

	return &Client{
		remote: transport.New(transport.Config{
			Service:    "library",
			BaseURL:    config.BaseURL,
			Timeout:    config.Timeout,
			Retrier:    config.Retrier,
			Breaker:    breaker,
			HTTPClient: config.HTTPClient,
			Logger:     logger,
			Debug:      config.Debug,
		}),
	}
}

// ListOverdue returns the complete overdue-items feed. The library service
// offers no per-student filter.
func (c *Client) ListOverdue(ctx context.Context) ([]domain.OverdueItem, error) {
	var dtos []OverdueItemDTO
	err := c.remote.Do(ctx, transport.Request{
		Method:     http.MethodGet,
		Path:       "/admin/overdue",
		Result:     &dtos,
		Idempotent: true,
	})
	if err != nil {
		return nil, fmt.Errorf("list overdue items: %w", err)
	}

	items := make([]domain.OverdueItem, 0, len(dtos))
	for _, dto := range dtos {
		items = append(items, domain.OverdueItem{
			StudentID: string(dto.StudentID),
			Title:     dto.Title,
			DueDate:   dto.DueDate,
		})
	}
	return items, nil
}

// RegisterAccount creates the library account of a student.
func (c *Client) RegisterAccount(ctx context.Context, studentID int64) error {
	id := strconv.FormatInt(studentID, 10)
	err := c.remote.Do(ctx, transport.Request{
		Method: http.MethodPost,
		Path:   "/api/register",
		Body:   RegisterRequestDTO{StudentID: id},
	})
	if err != nil {
		return fmt.Errorf("register library account for student %s: %w", id, err)
	}
	return nil
}

// BreakerState returns the library circuit state.
func (c *Client) BreakerState() circuitbreaker.State {
	return c.remote.BreakerState()
}
