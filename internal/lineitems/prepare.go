package lineitems

import (
	"errors"

	"github.com/shopspring/decimal"
	"go.uber.org/multierr"

	pkgerrors "github.com/angelmondragon/quotedesk-backend/pkg/errors"
	"github.com/angelmondragon/quotedesk-backend/pkg/ledger"
	"github.com/angelmondragon/quotedesk-backend/pkg/metrics"
)

// Prepared is a bulk save after the server rules ran over it.
type Prepared struct {
	Items   []ledger.LineItem
	TaxRate decimal.Decimal
	Totals  ledger.Totals
}

// Prepare normalizes every row, checks the tax rate and recomputes totals at
// currency precision. Rejections come back as one validation error listing
// every offending field.
func Prepare(items []ledger.LineItem, taxRate decimal.Decimal) (Prepared, error) {
	var errs error
	errs = multierr.Append(errs, ledger.ValidateTaxRate(taxRate))

	normalized, err := ledger.NormalizeAll(items)
	errs = multierr.Append(errs, err)
	if errs != nil {
		return Prepared{}, ValidationError(errs)
	}
	if normalized == nil {
		normalized = []ledger.LineItem{}
	}

	rate := taxRate.Round(ledger.RatePlaces)
	return Prepared{
		Items:   normalized,
		TaxRate: rate,
		Totals:  ledger.ComputeTotals(normalized, rate).Round(),
	}, nil
}

// ValidationError turns ledger field errors into a typed 400 with details.
func ValidationError(err error) error {
	details := make([]*ledger.FieldError, 0)
	for _, e := range multierr.Errors(err) {
		var fe *ledger.FieldError
		if errors.As(e, &fe) {
			details = append(details, fe)
		}
	}
	return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "line items are invalid").WithDetails(details)
}

// Outcome buckets a save error for the ledger save metrics.
func Outcome(err error) string {
	switch {
	case err == nil:
		return metrics.SaveResultOK
	case pkgerrors.IsCode(err, pkgerrors.CodeValidation):
		return metrics.SaveResultInvalid
	case pkgerrors.IsCode(err, pkgerrors.CodeStaleVersion), pkgerrors.IsCode(err, pkgerrors.CodeStateConflict):
		return metrics.SaveResultConflict
	default:
		return metrics.SaveResultError
	}
}
