// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"log/slog"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/campus-ledger/student-service/internal/domain/billing"
	"github.com/campus-ledger/student-service/internal/domain/shared"
	"github.com/campus-ledger/student-service/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// FIND INVOICES QUERY
// Собирает счета студента из биллинга. У биллинга нет поиска по студенту,
// поэтому счета перебираются по ID 1..ProbeLimit и фильтруются локально.
// ══════════════════════════════════════════════════════════════════════════════

// FindInvoicesQuery содержит параметры поиска счетов.
type FindInvoicesQuery struct {
	// StudentID - ID студента.
	StudentID student.ID

	// Status - фильтр по статусу без учёта регистра (пустой = все).
	Status string

	// Type - фильтр по типу без учёта регистра (пустой = все).
	Type string
}

// Validate проверяет корректность параметров запроса.
func (q FindInvoicesQuery) Validate() error {
	if !q.StudentID.IsValid() {
		return shared.ErrInvalidStudentID
	}
	return nil
}

// InvoiceDTO - счёт в ответе API.
type InvoiceDTO struct {
	ID          int64   `json:"id"`
	Reference   string  `json:"reference"`
	StudentID   string  `json:"studentId"`
	Amount      float64 `json:"amount"`
	Type        string  `json:"type"`
	Description string  `json:"description,omitempty"`
	DueDate     string  `json:"dueDate,omitempty"`
	Status      string  `json:"status"`
}

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES
// ══════════════════════════════════════════════════════════════════════════════

// InvoiceSource - часть биллинга, нужная для поиска.
type InvoiceSource interface {
	GetAccountByStudent(ctx context.Context, studentID int64) (*billing.Account, error)
	GetInvoice(ctx context.Context, id int64) (*billing.Invoice, error)
}

// FindInvoicesConfig - настройки перебора.
type FindInvoicesConfig struct {
	// ProbeLimit - максимальный ID счёта, который проверяется.
	ProbeLimit int

	// Concurrency - число одновременных запросов к биллингу.
	Concurrency int
}

// DefaultFindInvoicesConfig возвращает настройки по умолчанию.
func DefaultFindInvoicesConfig() FindInvoicesConfig {
	return FindInvoicesConfig{ProbeLimit: 100, Concurrency: 8}
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// FindInvoicesHandler обрабатывает запрос поиска счетов.
type FindInvoicesHandler struct {
	source InvoiceSource
	config FindInvoicesConfig
	logger *slog.Logger
}

// NewFindInvoicesHandler создаёт новый обработчик.
func NewFindInvoicesHandler(source InvoiceSource, config FindInvoicesConfig, logger *slog.Logger) *FindInvoicesHandler {
	if config.ProbeLimit <= 0 {
		config.ProbeLimit = DefaultFindInvoicesConfig().ProbeLimit
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FindInvoicesHandler{
		source: source,
		config: config,
		logger: logger.With("component", "find_invoices"),
	}
}

// Handle возвращает счета студента в порядке возрастания ID.
//
// Если у студента нет счёта в биллинге (или проверка аккаунта не удалась),
// возвращается пустой список без ошибки. Счета, которые не удалось получить,
// пропускаются.
func (h *FindInvoicesHandler) Handle(ctx context.Context, q FindInvoicesQuery) ([]billing.Invoice, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	log := h.logger.With("student_id", int64(q.StudentID))

	// Шаг 1: проверка аккаунта
	account, err := h.source.GetAccountByStudent(ctx, int64(q.StudentID))
	if err != nil || account == nil {
		log.Debug("no billing account, returning no invoices", "error", err)
		return []billing.Invoice{}, nil
	}

	// Шаг 2: перебор ID. Каждый слот пишет только своя горутина, порядок
	// результата определяется индексом.
	want := strconv.FormatInt(int64(q.StudentID), 10)
	slots := make([]*billing.Invoice, h.config.ProbeLimit)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.config.Concurrency)

	for i := range slots {
		id := int64(i + 1)
		g.Go(func() error {
			invoice, err := h.source.GetInvoice(gctx, id)
			if err != nil {
				return nil
			}
			if invoice.StudentID != want || !invoice.MatchesFilters(q.Status, q.Type) {
				return nil
			}
			slots[i] = invoice
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Шаг 3: сборка результата
	invoices := make([]billing.Invoice, 0)
	for _, inv := range slots {
		if inv != nil {
			invoices = append(invoices, *inv)
		}
	}

	log.Debug("invoices collected", "count", len(invoices), "probed", h.config.ProbeLimit)
	return invoices, nil
}

// ToInvoiceDTO конвертирует доменный счёт в DTO.
func ToInvoiceDTO(inv billing.Invoice) InvoiceDTO {
	return InvoiceDTO{
		ID:          inv.ID,
		Reference:   inv.Reference,
		StudentID:   inv.StudentID,
		Amount:      inv.Amount,
		Type:        string(inv.Type),
		Description: inv.Description,
		DueDate:     inv.DueDate,
		Status:      inv.Status,
	}
}
