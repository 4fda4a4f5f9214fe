package ledger

import "github.com/shopspring/decimal"

// Snapshot is the dirty-tracking baseline taken after every load and save.
type Snapshot struct {
	Items   []LineItem
	TaxRate decimal.Decimal
}

func NewSnapshot(items []LineItem, taxRate decimal.Decimal) Snapshot {
	return Snapshot{Items: cloneItems(items), TaxRate: taxRate}
}

// Equal compares field by field. Decimals compare by value, so 1.50 equals 1.5;
// row order matters.
func (s Snapshot) Equal(o Snapshot) bool {
	if !s.TaxRate.Equal(o.TaxRate) || len(s.Items) != len(o.Items) {
		return false
	}
	for i := range s.Items {
		if !ItemsEqual(s.Items[i], o.Items[i]) {
			return false
		}
	}
	return true
}

// ItemsEqual reports whether two rows hold the same values.
func ItemsEqual(a, b LineItem) bool {
	switch {
	case (a.ID == nil) != (b.ID == nil):
		return false
	case a.ID != nil && *a.ID != *b.ID:
		return false
	}
	return a.Description == b.Description &&
		a.Category == b.Category &&
		a.SectionName == b.SectionName &&
		a.PartNumber == b.PartNumber &&
		a.Supplier == b.Supplier &&
		a.Quantity.Equal(b.Quantity) &&
		nullEqual(a.UnitCost, b.UnitCost) &&
		nullEqual(a.UnitPrice, b.UnitPrice) &&
		a.DiscountRate.Equal(b.DiscountRate) &&
		a.DiscountAmount.Equal(b.DiscountAmount) &&
		a.TotalPrice.Equal(b.TotalPrice) &&
		a.IsOptional == b.IsOptional &&
		a.IsAlternate == b.IsAlternate &&
		a.SortOrder == b.SortOrder
}

func nullEqual(a, b decimal.NullDecimal) bool {
	if a.Valid != b.Valid {
		return false
	}
	return !a.Valid || a.Decimal.Equal(b.Decimal)
}
