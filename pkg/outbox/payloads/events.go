package payloads

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/quotedesk-backend/pkg/enums"
)

// Totals is the rounded money summary carried by item replacement events.
type Totals struct {
	Subtotal    decimal.Decimal `json:"subtotal"`
	TaxAmount   decimal.Decimal `json:"tax_amount"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// QuoteCreatedEvent is emitted when a draft quote is opened.
type QuoteCreatedEvent struct {
	QuoteID    uuid.UUID         `json:"quote_id"`
	CustomerID uuid.UUID         `json:"customer_id"`
	Title      string            `json:"title"`
	Status     enums.QuoteStatus `json:"status"`
	Currency   enums.Currency    `json:"currency"`
}

// QuoteUpdatedEvent lists which header fields a PATCH changed.
type QuoteUpdatedEvent struct {
	QuoteID    uuid.UUID         `json:"quote_id"`
	CustomerID uuid.UUID         `json:"customer_id"`
	Status     enums.QuoteStatus `json:"status"`
	Changed    []string          `json:"changed"`
	Version    int64             `json:"version"`
}

// QuoteItemsReplacedEvent follows every successful bulk save of quote items.
type QuoteItemsReplacedEvent struct {
	QuoteID    uuid.UUID       `json:"quote_id"`
	CustomerID uuid.UUID       `json:"customer_id"`
	Version    int64           `json:"version"`
	ItemCount  int             `json:"item_count"`
	TaxRate    decimal.Decimal `json:"tax_rate"`
	Totals     Totals          `json:"totals"`
}

// PartsListItemsReplacedEvent follows every successful bulk save of a ticket parts list.
type PartsListItemsReplacedEvent struct {
	PartsListID uuid.UUID       `json:"parts_list_id"`
	TicketID    uuid.UUID       `json:"ticket_id"`
	Version     int64           `json:"version"`
	ItemCount   int             `json:"item_count"`
	TaxRate     decimal.Decimal `json:"tax_rate"`
	Totals      Totals          `json:"totals"`
}

// ReviewCompletedEvent carries the outcome of a quote review.
type ReviewCompletedEvent struct {
	JobID           uuid.UUID `json:"job_id"`
	QuoteID         uuid.UUID `json:"quote_id"`
	CustomerID      uuid.UUID `json:"customer_id"`
	HealthScore     int       `json:"health_score"`
	SuggestionCount int       `json:"suggestion_count"`
}

// ReviewFailedEvent is emitted when a review errors or is reaped as stale.
type ReviewFailedEvent struct {
	JobID      uuid.UUID `json:"job_id"`
	QuoteID    uuid.UUID `json:"quote_id"`
	CustomerID uuid.UUID `json:"customer_id"`
	Reason     string    `json:"reason"`
}
