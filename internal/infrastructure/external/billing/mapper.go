package billing

import (
	"strconv"

	domain "github.com/campus-ledger/student-service/internal/domain/billing"
)

// toDomainInvoice maps an InvoiceDTO. fallbackID is used when the body
// carries no id (the id the invoice was fetched by).
func toDomainInvoice(dto InvoiceDTO, fallbackID int64) domain.Invoice {
	id := int64(dto.ID)
	if id == 0 {
		id = fallbackID
	}

	studentID := string(dto.StudentID)
	if studentID == "" && dto.Account != nil {
		studentID = string(dto.Account.StudentID)
	}

	return domain.Invoice{
		ID:          id,
		Reference:   string(dto.Reference),
		StudentID:   studentID,
		Amount:      dto.Amount,
		Type:        domain.InvoiceType(dto.Type),
		Description: dto.Description,
		DueDate:     dto.DueDate,
		Status:      dto.Status,
	}
}

func toDomainAccount(dto AccountDTO) domain.Account {
	return domain.Account{
		ID:                    int64(dto.ID),
		StudentID:             string(dto.StudentID),
		HasOutstandingBalance: dto.HasOutstandingBalance,
	}
}

func toCreateInvoiceDTO(req domain.InvoiceRequest) CreateInvoiceRequestDTO {
	dto := CreateInvoiceRequestDTO{
		StudentID:   req.StudentID,
		Amount:      req.Amount,
		Type:        string(req.Type),
		Description: req.Description,
	}
	if !req.DueDate.IsZero() {
		dto.DueDate = req.DueDate.Format(domain.DueDateLayout)
	}
	if req.AccountStudentID != "" {
		dto.Account = &InvoiceAccountDTO{StudentID: req.AccountStudentID}
	}
	return dto
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
