package billing

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	domain "github.com/campus-ledger/student-service/internal/domain/billing"
	"github.com/campus-ledger/student-service/internal/infrastructure/external/transport"
	"github.com/campus-ledger/student-service/pkg/circuitbreaker"
	"github.com/campus-ledger/student-service/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// ClientConfig contains configuration for the billing client.
type ClientConfig struct {
	// BaseURL is the billing service base URL
	BaseURL string

	// Timeout bounds each call
	Timeout time.Duration

	// Retrier for idempotent calls (lookups, cancellation, deletion)
	Retrier *retry.Retrier

	// HTTPClient overrides the transport (tests)
	HTTPClient *http.Client

	// DisableBreaker turns the circuit breaker off (tests)
	DisableBreaker bool

	// Logger for structured logging
	Logger *slog.Logger

	// Debug enables request logging
	Debug bool
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig(baseURL string) ClientConfig {
	return ClientConfig{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
		Retrier: retry.BillingRetrier(),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Client is the billing service client. It carries no business logic.
type Client struct {
	remote *transport.Client
	logger *slog.Logger
}

// NewClient creates a new billing client.
func NewClient(config ClientConfig) *Client {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	logger := config.Logger.With("component", "billing_client")

	var breaker *circuitbreaker.CircuitBreaker
	if !config.DisableBreaker {
		breaker = circuitbreaker.BillingBreaker(transport.BreakerFailure, func(name string, from, to circuitbreaker.State) {
			logger.Warn("circuit state changed", "breaker", name, "from", from.String(), "to", to.String())
		})
	}

	return &Client{
		remote: transport.New(transport.Config{
			Service:    "billing",
			BaseURL:    config.BaseURL,
			Timeout:    config.Timeout,
			Retrier:    config.Retrier,
			Breaker:    breaker,
			HTTPClient: config.HTTPClient,
			Logger:     logger,
			Debug:      config.Debug,
		}),
		logger: logger,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// INVOICE OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// CreateInvoice creates an invoice. It is never retried so that a lost
// response cannot produce a second invoice. A 2xx reply without a reference
// is treated as a malformed body.
func (c *Client) CreateInvoice(ctx context.Context, req domain.InvoiceRequest) (*domain.Invoice, error) {
	var dto InvoiceDTO
	err := c.remote.Do(ctx, transport.Request{
		Method: http.MethodPost,
		Path:   "/invoices",
		Body:   toCreateInvoiceDTO(req),
		Result: &dto,
	})
	if err != nil {
		return nil, fmt.Errorf("create invoice: %w", err)
	}

	if dto.Reference == "" {
		return nil, fmt.Errorf("create invoice: %w", &transport.Error{
			Service: "billing",
			Method:  http.MethodPost,
			Path:    "/invoices",
			Message: "response has no invoice reference",
		})
	}

	invoice := toDomainInvoice(dto, 0)
	if invoice.StudentID == "" {
		invoice.StudentID = req.StudentID
	}
	return &invoice, nil
}

// GetInvoice fetches an invoice by numeric id. A missing invoice matches
// shared.ErrNotFound.
func (c *Client) GetInvoice(ctx context.Context, id int64) (*domain.Invoice, error) {
	var dto InvoiceDTO
	err := c.remote.Do(ctx, transport.Request{
		Method:     http.MethodGet,
		Path:       "/invoices/" + formatID(id),
		Result:     &dto,
		Idempotent: true,
	})
	if err != nil {
		return nil, fmt.Errorf("get invoice %d: %w", id, err)
	}

	invoice := toDomainInvoice(dto, id)
	return &invoice, nil
}

// CancelInvoice cancels an invoice by reference.
func (c *Client) CancelInvoice(ctx context.Context, reference string) error {
	err := c.remote.Do(ctx, transport.Request{
		Method:     http.MethodDelete,
		Path:       "/invoices/" + url.PathEscape(reference) + "/cancel",
		Idempotent: true,
	})
	if err != nil {
		return fmt.Errorf("cancel invoice %s: %w", reference, err)
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ACCOUNT OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// GetAccountByStudent fetches the account of a student. A missing account
// matches shared.ErrNotFound.
func (c *Client) GetAccountByStudent(ctx context.Context, studentID int64) (*domain.Account, error) {
	var dto AccountDTO
	err := c.remote.Do(ctx, transport.Request{
		Method:     http.MethodGet,
		Path:       "/accounts/student/" + formatID(studentID),
		Result:     &dto,
		Idempotent: true,
	})
	if err != nil {
		return nil, fmt.Errorf("get account for student %d: %w", studentID, err)
	}

	account := toDomainAccount(dto)
	return &account, nil
}

// CreateAccount opens an account for a student.
func (c *Client) CreateAccount(ctx context.Context, studentID int64) (*domain.Account, error) {
	var dto AccountDTO
	err := c.remote.Do(ctx, transport.Request{
		Method: http.MethodPost,
		Path:   "/accounts",
		Body:   CreateAccountRequestDTO{StudentID: formatID(studentID)},
		Result: &dto,
	})
	if err != nil {
		return nil, fmt.Errorf("create account for student %d: %w", studentID, err)
	}

	account := toDomainAccount(dto)
	if account.StudentID == "" {
		account.StudentID = formatID(studentID)
	}
	return &account, nil
}

// DeleteAccount deletes an account by id.
func (c *Client) DeleteAccount(ctx context.Context, accountID int64) error {
	err := c.remote.Do(ctx, transport.Request{
		Method:     http.MethodDelete,
		Path:       "/accounts/" + formatID(accountID),
		Idempotent: true,
	})
	if err != nil {
		return fmt.Errorf("delete account %d: %w", accountID, err)
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// STATUS
// ══════════════════════════════════════════════════════════════════════════════

// BreakerState returns the billing circuit state.
func (c *Client) BreakerState() circuitbreaker.State {
	return c.remote.BreakerState()
}
