package ledger

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
)

const (
	// CurrencyPlaces is the precision money columns are stored at.
	CurrencyPlaces = 2
	// RatePlaces is the precision for discount and tax rates.
	RatePlaces = 4
	// QuantityPlaces is the precision for quantities.
	QuantityPlaces = 3
	// MaxItems bounds a single bulk replace.
	MaxItems = 500
)

var one = decimal.NewFromInt(1)

// FieldError describes one rejected value. Row is zero-based; a negative Row
// means the error is not tied to a position.
type FieldError struct {
	Row    int    `json:"row"`
	Field  Field  `json:"field"`
	Reason string `json:"reason"`
}

func (e *FieldError) Error() string {
	if e.Row < 0 {
		return fmt.Sprintf("%s %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("row %d: %s %s", e.Row+1, e.Field, e.Reason)
}

// Validate checks every row and returns all problems combined with multierr.
// Use multierr.Errors to split the result.
func Validate(items []LineItem) error {
	var err error
	if len(items) > MaxItems {
		err = multierr.Append(err, &FieldError{Row: -1, Field: "items", Reason: fmt.Sprintf("must not exceed %d rows", MaxItems)})
	}
	for i, item := range items {
		err = multierr.Append(err, checkItem(i, item))
	}
	return err
}

// ValidateTaxRate rejects a tax rate outside [0,1].
func ValidateTaxRate(rate decimal.Decimal) error {
	if rate.IsNegative() || rate.GreaterThan(one) {
		return &FieldError{Row: -1, Field: "tax_rate", Reason: "must be between 0 and 1"}
	}
	return nil
}

func checkItem(row int, item LineItem) error {
	var err error
	reject := func(f Field, reason string) {
		err = multierr.Append(err, &FieldError{Row: row, Field: f, Reason: reason})
	}
	if item.Quantity.IsNegative() {
		reject(FieldQuantity, "must not be negative")
	}
	if item.UnitPrice.Valid && item.UnitPrice.Decimal.IsNegative() {
		reject(FieldUnitPrice, "must not be negative")
	}
	if item.UnitCost.Valid && item.UnitCost.Decimal.IsNegative() {
		reject(FieldUnitCost, "must not be negative")
	}
	if item.DiscountAmount.IsNegative() {
		reject(FieldDiscountAmount, "must not be negative")
	}
	return err
}

// Normalize applies the server's business rules to one row: inputs are
// validated, the discount rate is clamped into [0,1], values are rounded to
// storage precision and the derived amounts are recomputed from the rounded
// inputs. A discount amount entered by hand is kept when no rate is set,
// capped at the gross amount.
func Normalize(item LineItem) (LineItem, error) {
	if err := checkItem(-1, item); err != nil {
		return item, err
	}

	item.Description = strings.TrimSpace(item.Description)
	item.Category = strings.TrimSpace(item.Category)
	item.SectionName = strings.TrimSpace(item.SectionName)
	item.PartNumber = strings.TrimSpace(item.PartNumber)
	item.Supplier = strings.TrimSpace(item.Supplier)

	item.Quantity = item.Quantity.Round(QuantityPlaces)
	if item.UnitPrice.Valid {
		item.UnitPrice.Decimal = item.UnitPrice.Decimal.Round(CurrencyPlaces)
	}
	if item.UnitCost.Valid {
		item.UnitCost.Decimal = item.UnitCost.Decimal.Round(CurrencyPlaces)
	}
	item.DiscountRate = clamp01(item.DiscountRate).Round(RatePlaces)

	gross := item.Gross().Round(CurrencyPlaces)
	if item.DiscountRate.IsPositive() {
		item.DiscountAmount = gross.Mul(item.DiscountRate).Round(CurrencyPlaces)
	} else {
		item.DiscountAmount = decimal.Min(item.DiscountAmount.Round(CurrencyPlaces), gross)
	}
	total := gross.Sub(item.DiscountAmount)
	if total.IsNegative() {
		total = decimal.Zero
	}
	item.TotalPrice = total
	return item, nil
}

// NormalizeAll validates the whole list first, then normalizes and resequences it.
func NormalizeAll(items []LineItem) ([]LineItem, error) {
	if err := Validate(items); err != nil {
		return nil, err
	}
	out := make([]LineItem, 0, len(items))
	for _, item := range items {
		n, err := Normalize(item)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return Resequence(out), nil
}

func clamp01(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	if d.GreaterThan(one) {
		return one
	}
	return d
}
