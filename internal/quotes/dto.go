package quotes

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/quotedesk-backend/pkg/db/models"
	"github.com/angelmondragon/quotedesk-backend/pkg/enums"
	"github.com/angelmondragon/quotedesk-backend/pkg/ledger"
)

// QuoteDTO is the quote header as the API returns it.
type QuoteDTO struct {
	ID          uuid.UUID         `json:"id"`
	CustomerID  uuid.UUID         `json:"customer_id"`
	Title       string            `json:"title"`
	Status      enums.QuoteStatus `json:"status"`
	Currency    enums.Currency    `json:"currency"`
	TaxRate     decimal.Decimal   `json:"tax_rate"`
	Subtotal    decimal.Decimal   `json:"subtotal"`
	TaxAmount   decimal.Decimal   `json:"tax_amount"`
	TotalAmount decimal.Decimal   `json:"total_amount"`
	Version     int64             `json:"version"`
	CreatedBy   *uuid.UUID        `json:"created_by,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// CreateQuoteInput opens a draft quote.
type CreateQuoteInput struct {
	CustomerID uuid.UUID        `json:"customer_id" validate:"required"`
	Title      string           `json:"title" validate:"required,max=200"`
	Currency   string           `json:"currency" validate:"omitempty,currency"`
	TaxRate    *decimal.Decimal `json:"tax_rate"`
}

// UpdateQuoteInput is a partial header update; nil fields are left alone.
type UpdateQuoteInput struct {
	Title   *string          `json:"title" validate:"omitempty,max=200"`
	Status  *string          `json:"status"`
	TaxRate *decimal.Decimal `json:"tax_rate"`
}

// ListParams filters and pages the quote list.
type ListParams struct {
	CustomerID *uuid.UUID
	Status     *enums.QuoteStatus
	Limit      int
	Cursor     string
}

// ListResult is one page of quotes, newest first.
type ListResult struct {
	Quotes     []QuoteDTO `json:"quotes"`
	NextCursor string     `json:"next_cursor,omitempty"`
}

// Export is a rendered spreadsheet ready to stream.
type Export struct {
	Filename string
	Content  []byte
}

func FromModel(m *models.Quote) *QuoteDTO {
	if m == nil {
		return nil
	}
	return &QuoteDTO{
		ID:          m.ID,
		CustomerID:  m.CustomerID,
		Title:       m.Title,
		Status:      m.Status,
		Currency:    m.Currency,
		TaxRate:     m.TaxRate,
		Subtotal:    m.Subtotal,
		TaxAmount:   m.TaxAmount,
		TotalAmount: m.TotalAmount,
		Version:     m.Version,
		CreatedBy:   m.CreatedBy,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func totalsOf(m *models.Quote) ledger.Totals {
	return ledger.Totals{
		Subtotal:    m.Subtotal,
		TaxAmount:   m.TaxAmount,
		TotalAmount: m.TotalAmount,
	}
}
