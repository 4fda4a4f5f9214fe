package ledger

import (
	"context"

	"github.com/shopspring/decimal"
)

// Ledger is the server's authoritative view of one item list.
type Ledger struct {
	Items   []LineItem      `json:"items"`
	TaxRate decimal.Decimal `json:"tax_rate"`
	Totals  Totals          `json:"totals"`
	Version int64           `json:"version"`
}

// ReplaceRequest carries the full list for a bulk replace. ExpectedVersion
// enables conflict detection when set.
type ReplaceRequest struct {
	Items           []LineItem      `json:"items" validate:"dive"`
	TaxRate         decimal.Decimal `json:"tax_rate"`
	ExpectedVersion *int64          `json:"expected_version,omitempty"`
}

// Gateway loads and persists one ledger. Replace is all-or-nothing.
type Gateway interface {
	Fetch(ctx context.Context) (Ledger, error)
	Replace(ctx context.Context, req ReplaceRequest) (Ledger, error)
}
