package ledger

import "github.com/shopspring/decimal"

// Totals is derived from a list on demand and never stored by this package.
type Totals struct {
	Subtotal    decimal.Decimal `json:"subtotal"`
	TaxAmount   decimal.Decimal `json:"tax_amount"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// ComputeTotals sums total_price across items and applies taxRate.
func ComputeTotals(items []LineItem, taxRate decimal.Decimal) Totals {
	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.TotalPrice)
	}
	tax := subtotal.Mul(taxRate)
	return Totals{
		Subtotal:    subtotal,
		TaxAmount:   tax,
		TotalAmount: subtotal.Add(tax),
	}
}

// Round returns the totals rounded to currency precision.
func (t Totals) Round() Totals {
	return Totals{
		Subtotal:    t.Subtotal.Round(CurrencyPlaces),
		TaxAmount:   t.TaxAmount.Round(CurrencyPlaces),
		TotalAmount: t.Subtotal.Round(CurrencyPlaces).Add(t.TaxAmount.Round(CurrencyPlaces)),
	}
}

func (t Totals) Equal(o Totals) bool {
	return t.Subtotal.Equal(o.Subtotal) &&
		t.TaxAmount.Equal(o.TaxAmount) &&
		t.TotalAmount.Equal(o.TotalAmount)
}
