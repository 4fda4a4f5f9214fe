package client

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/quotedesk-backend/pkg/enums"
)

type Quote struct {
	ID          uuid.UUID         `json:"id"`
	CustomerID  uuid.UUID         `json:"customer_id"`
	Title       string            `json:"title"`
	Status      enums.QuoteStatus `json:"status"`
	Currency    string            `json:"currency"`
	TaxRate     decimal.Decimal   `json:"tax_rate"`
	Subtotal    decimal.Decimal   `json:"subtotal"`
	TaxAmount   decimal.Decimal   `json:"tax_amount"`
	TotalAmount decimal.Decimal   `json:"total_amount"`
	Version     int64             `json:"version"`
	CreatedBy   *uuid.UUID        `json:"created_by,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

type QuotePage struct {
	Quotes     []Quote `json:"quotes"`
	NextCursor string  `json:"next_cursor,omitempty"`
}

type ListQuotesParams struct {
	CustomerID *uuid.UUID
	Status     enums.QuoteStatus
	Limit      int
	Cursor     string
}

type CreateQuoteInput struct {
	CustomerID uuid.UUID        `json:"customer_id"`
	Title      string           `json:"title"`
	Currency   string           `json:"currency,omitempty"`
	TaxRate    *decimal.Decimal `json:"tax_rate,omitempty"`
	// IdempotencyKey is generated when empty.
	IdempotencyKey string `json:"-"`
}

// UpdateQuoteInput changes only the non-nil fields.
type UpdateQuoteInput struct {
	Title   *string          `json:"title,omitempty"`
	Status  *string          `json:"status,omitempty"`
	TaxRate *decimal.Decimal `json:"tax_rate,omitempty"`
}

type Suggestion struct {
	Kind     string     `json:"kind"`
	Severity string     `json:"severity"`
	Row      *int       `json:"row,omitempty"`
	ItemID   *uuid.UUID `json:"item_id,omitempty"`
	Message  string     `json:"message"`
}

type ReviewJob struct {
	ID          uuid.UUID          `json:"id"`
	QuoteID     uuid.UUID          `json:"quote_id"`
	CustomerID  uuid.UUID          `json:"customer_id"`
	Status      enums.ReviewStatus `json:"status"`
	HealthScore *int               `json:"health_score,omitempty"`
	Suggestions []Suggestion       `json:"suggestions"`
	Error       *string            `json:"error,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
	StartedAt   *time.Time         `json:"started_at,omitempty"`
	FinishedAt  *time.Time         `json:"finished_at,omitempty"`
}

// Export is a downloaded spreadsheet.
type Export struct {
	Filename string
	Content  []byte
}
