// Package ledger implements the editable line-item ledger shared by quotes and
// ticket parts lists: per-row recalculation, totals aggregation, dirty-state
// tracking and an editor that drives a bulk replace-all gateway.
package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Field names an editable column of a LineItem. Values match the JSON names.
type Field string

const (
	FieldDescription    Field = "description"
	FieldCategory       Field = "category"
	FieldSectionName    Field = "section_name"
	FieldPartNumber     Field = "part_number"
	FieldSupplier       Field = "supplier"
	FieldQuantity       Field = "quantity"
	FieldUnitCost       Field = "unit_cost"
	FieldUnitPrice      Field = "unit_price"
	FieldDiscountRate   Field = "discount_rate"
	FieldDiscountAmount Field = "discount_amount"
	FieldIsOptional     Field = "is_optional"
	FieldIsAlternate    Field = "is_alternate"
)

// Fields lists the editable columns in display order.
var Fields = []Field{
	FieldDescription,
	FieldCategory,
	FieldSectionName,
	FieldPartNumber,
	FieldSupplier,
	FieldQuantity,
	FieldUnitCost,
	FieldUnitPrice,
	FieldDiscountRate,
	FieldDiscountAmount,
	FieldIsOptional,
	FieldIsAlternate,
}

var ErrUnknownField = errors.New("unknown line item field")

// ParseField resolves a column name.
func ParseField(name string) (Field, error) {
	f := Field(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range Fields {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownField, name)
}

// Numeric reports whether the column holds a number.
func (f Field) Numeric() bool {
	switch f {
	case FieldQuantity, FieldUnitCost, FieldUnitPrice, FieldDiscountRate, FieldDiscountAmount:
		return true
	}
	return false
}

func (f Field) drivesDiscount() bool {
	return f == FieldQuantity || f == FieldUnitPrice || f == FieldDiscountRate
}

// LineItem is one row of a quote or parts list. ID is nil until the server has
// persisted the row.
type LineItem struct {
	ID             *uuid.UUID          `json:"id,omitempty"`
	Description    string              `json:"description" validate:"max=2000"`
	Category       string              `json:"category" validate:"max=120"`
	SectionName    string              `json:"section_name" validate:"max=120"`
	PartNumber     string              `json:"part_number" validate:"max=120"`
	Supplier       string              `json:"supplier" validate:"max=200"`
	Quantity       decimal.Decimal     `json:"quantity"`
	UnitCost       decimal.NullDecimal `json:"unit_cost"`
	UnitPrice      decimal.NullDecimal `json:"unit_price"`
	DiscountRate   decimal.Decimal     `json:"discount_rate"`
	DiscountAmount decimal.Decimal     `json:"discount_amount"`
	TotalPrice     decimal.Decimal     `json:"total_price"`
	IsOptional     bool                `json:"is_optional"`
	IsAlternate    bool                `json:"is_alternate"`
	SortOrder      int                 `json:"sort_order"`
}

// DefaultItem is the empty row the editor starts from and falls back to.
func DefaultItem() LineItem {
	return LineItem{Quantity: decimal.NewFromInt(1), SortOrder: 1}
}

// Clone returns a copy that shares no pointers with item.
func (item LineItem) Clone() LineItem {
	if item.ID != nil {
		id := *item.ID
		item.ID = &id
	}
	return item
}

// Gross is quantity times unit price, treating a null price as zero.
func (item LineItem) Gross() decimal.Decimal {
	return item.Quantity.Mul(orZero(item.UnitPrice))
}

// Recalculate returns item with derived amounts brought up to date after
// changed was edited. discount_amount is only rederived when one of its inputs
// moved, so a hand-entered amount survives edits to unrelated columns.
func Recalculate(item LineItem, changed Field) LineItem {
	gross := item.Gross()
	if changed.drivesDiscount() {
		item.DiscountAmount = gross.Mul(item.DiscountRate)
	}
	total := gross.Sub(item.DiscountAmount)
	if total.IsNegative() {
		total = decimal.Zero
	}
	item.TotalPrice = total
	return item
}

// SetField assigns raw to one column and recalculates the row.
// Numeric input that does not parse becomes zero.
func SetField(item LineItem, field Field, raw any) (LineItem, error) {
	switch field {
	case FieldDescription:
		item.Description = coerceString(raw)
	case FieldCategory:
		item.Category = coerceString(raw)
	case FieldSectionName:
		item.SectionName = coerceString(raw)
	case FieldPartNumber:
		item.PartNumber = coerceString(raw)
	case FieldSupplier:
		item.Supplier = coerceString(raw)
	case FieldQuantity:
		item.Quantity = Coerce(raw)
	case FieldUnitCost:
		item.UnitCost = CoerceNullable(raw)
	case FieldUnitPrice:
		item.UnitPrice = CoerceNullable(raw)
	case FieldDiscountRate:
		item.DiscountRate = Coerce(raw)
	case FieldDiscountAmount:
		item.DiscountAmount = Coerce(raw)
	case FieldIsOptional, FieldIsAlternate:
		b, err := coerceBool(raw)
		if err != nil {
			return item, fmt.Errorf("%s: %w", field, err)
		}
		if field == FieldIsOptional {
			item.IsOptional = b
		} else {
			item.IsAlternate = b
		}
	default:
		return item, fmt.Errorf("%w: %q", ErrUnknownField, string(field))
	}
	return Recalculate(item, field), nil
}

// Coerce converts loosely typed cell input into a number. Anything that is not
// recognisably numeric (nil, bools, garbage strings, NaN, infinities) is zero.
func Coerce(raw any) decimal.Decimal {
	switch v := raw.(type) {
	case nil:
		return decimal.Zero
	case decimal.Decimal:
		return v
	case *decimal.Decimal:
		if v == nil {
			return decimal.Zero
		}
		return *v
	case decimal.NullDecimal:
		return orZero(v)
	case int:
		return decimal.NewFromInt(int64(v))
	case int32:
		return decimal.NewFromInt32(v)
	case int64:
		return decimal.NewFromInt(v)
	case float32:
		return fromFloat(float64(v))
	case float64:
		return fromFloat(v)
	case json.Number:
		return parseNumber(string(v))
	case string:
		return parseNumber(v)
	default:
		return decimal.Zero
	}
}

// CoerceNullable is Coerce for nullable currency columns: nil and blank input
// clear the value instead of zeroing it.
func CoerceNullable(raw any) decimal.NullDecimal {
	switch v := raw.(type) {
	case nil:
		return decimal.NullDecimal{}
	case decimal.NullDecimal:
		return v
	case string:
		if strings.TrimSpace(v) == "" {
			return decimal.NullDecimal{}
		}
	}
	return decimal.NewNullDecimal(Coerce(raw))
}

func parseNumber(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func fromFloat(f float64) decimal.Decimal {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(f)
}

func coerceString(raw any) string {
	switch v := raw.(type) {
	case nil:
		return ""
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

func coerceBool(raw any) (bool, error) {
	switch v := raw.(type) {
	case nil:
		return false, nil
	case bool:
		return v, nil
	case string:
		if strings.TrimSpace(v) == "" {
			return false, nil
		}
		return strconv.ParseBool(strings.TrimSpace(v))
	default:
		return false, fmt.Errorf("cannot use %T as a flag", raw)
	}
}

func orZero(d decimal.NullDecimal) decimal.Decimal {
	if !d.Valid {
		return decimal.Zero
	}
	return d.Decimal
}

// Resequence returns a copy of items with sort_order reassigned 1..n in list order.
func Resequence(items []LineItem) []LineItem {
	out := make([]LineItem, len(items))
	for i, item := range items {
		out[i] = item.Clone()
		out[i].SortOrder = i + 1
	}
	return out
}

func cloneItems(items []LineItem) []LineItem {
	if items == nil {
		return nil
	}
	out := make([]LineItem, len(items))
	for i, item := range items {
		out[i] = item.Clone()
	}
	return out
}
