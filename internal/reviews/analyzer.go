package reviews

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/quotedesk-backend/pkg/ledger"
)

// Suggestion kinds.
const (
	KindEmptyQuote         = "empty_quote"
	KindZeroPrice          = "zero_price"
	KindHeavyDiscount      = "heavy_discount"
	KindNegativeMargin     = "negative_margin"
	KindMissingDescription = "missing_description"
)

const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

var heavyDiscount = decimal.RequireFromString("0.30")

// penalty per finding, subtracted from a perfect score of 100.
var penalties = map[string]int{
	KindEmptyQuote:         60,
	KindZeroPrice:          10,
	KindHeavyDiscount:      8,
	KindNegativeMargin:     15,
	KindMissingDescription: 4,
}

// Suggestion is one finding against a quote or a single row of it.
type Suggestion struct {
	Kind     string     `json:"kind"`
	Severity string     `json:"severity"`
	Row      *int       `json:"row,omitempty"`
	ItemID   *uuid.UUID `json:"item_id,omitempty"`
	Message  string     `json:"message"`
}

// Result is the outcome of one review.
type Result struct {
	HealthScore int          `json:"health_score"`
	Suggestions []Suggestion `json:"suggestions"`
}

// Analyze scores the items of a quote. It is pure so the worker can be
// tested without a database.
func Analyze(items []ledger.LineItem) Result {
	res := Result{HealthScore: 100, Suggestions: []Suggestion{}}
	add := func(s Suggestion) {
		res.Suggestions = append(res.Suggestions, s)
		res.HealthScore -= penalties[s.Kind]
	}

	if len(items) == 0 {
		add(Suggestion{
			Kind:     KindEmptyQuote,
			Severity: SeverityCritical,
			Message:  "quote has no line items",
		})
	}

	for i, item := range items {
		row := i + 1
		at := func(kind, severity, msg string) Suggestion {
			r := row
			return Suggestion{Kind: kind, Severity: severity, Row: &r, ItemID: item.ID, Message: msg}
		}
		name := strings.TrimSpace(item.Description)
		if name == "" {
			add(at(KindMissingDescription, SeverityInfo, fmt.Sprintf("row %d has no description", row)))
			name = fmt.Sprintf("row %d", row)
		}
		price := decimal.Zero
		if item.UnitPrice.Valid {
			price = item.UnitPrice.Decimal
		}
		if item.Quantity.IsPositive() && !price.IsPositive() && !item.IsAlternate {
			add(at(KindZeroPrice, SeverityWarning, fmt.Sprintf("%s is priced at zero", name)))
		}
		if item.DiscountRate.GreaterThan(heavyDiscount) {
			add(at(KindHeavyDiscount, SeverityWarning,
				fmt.Sprintf("%s carries a %s%% discount", name, item.DiscountRate.Shift(2).StringFixed(0))))
		}
		if item.UnitCost.Valid && price.IsPositive() {
			net := price.Mul(decimal.NewFromInt(1).Sub(item.DiscountRate))
			if net.LessThan(item.UnitCost.Decimal) {
				add(at(KindNegativeMargin, SeverityCritical,
					fmt.Sprintf("%s sells below cost (%s < %s)", name, net.StringFixed(2), item.UnitCost.Decimal.StringFixed(2))))
			}
		}
	}

	if res.HealthScore < 0 {
		res.HealthScore = 0
	}
	return res
}
