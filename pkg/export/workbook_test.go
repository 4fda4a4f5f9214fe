package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/angelmondragon/quotedesk-backend/pkg/ledger"
)

func TestQuoteWorkbook(t *testing.T) {
	items := []ledger.LineItem{
		{
			Description:  "Compressor",
			SectionName:  "HVAC",
			Quantity:     decimal.NewFromInt(2),
			UnitPrice:    decimal.NewNullDecimal(decimal.RequireFromString("50")),
			DiscountRate: decimal.RequireFromString("0.1"),
			SortOrder:    1,
		},
		{
			Description: "=HYPERLINK(\"x\")",
			Quantity:    decimal.NewFromInt(1),
			IsOptional:  true,
			SortOrder:   2,
		},
	}
	for i := range items {
		items[i] = ledger.Recalculate(items[i], ledger.FieldQuantity)
	}
	taxRate := decimal.RequireFromString("0.08")
	totals := ledger.ComputeTotals(items, taxRate).Round()

	data, err := QuoteWorkbook(QuoteHeader{
		Title:     "Rooftop unit: replacement",
		Reference: "Q-1001",
		Currency:  "USD",
		Status:    "draft",
		TaxRate:   taxRate,
		CreatedAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}, items, totals)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	sheets := f.GetSheetList()
	require.Len(t, sheets, 1)
	assert.Equal(t, "Rooftop unit- replacement", sheets[0])

	title, _ := f.GetCellValue(sheets[0], "A1")
	assert.Equal(t, "Rooftop unit: replacement", title)

	desc, _ := f.GetCellValue(sheets[0], "C6")
	assert.Equal(t, "Compressor", desc)

	injected, _ := f.GetCellValue(sheets[0], "C7")
	assert.Equal(t, "'=HYPERLINK(\"x\")", injected)

	flagsCell, _ := f.GetCellValue(sheets[0], "J7")
	assert.Equal(t, "optional", flagsCell)

	totalLabel, _ := f.GetCellValue(sheets[0], "H11")
	assert.Equal(t, "Total", totalLabel)
}

func TestQuoteWorkbookEmpty(t *testing.T) {
	data, err := QuoteWorkbook(QuoteHeader{}, nil, ledger.Totals{})
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{"Quote"}, f.GetSheetList())
}

func TestSheetNameTruncates(t *testing.T) {
	long := "A very long quote title that exceeds the Excel limit"
	assert.Len(t, []rune(sheetName(long)), maxSheetName)
}
