// Package export renders quotes as spreadsheets.
package export

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/angelmondragon/quotedesk-backend/pkg/ledger"
)

const (
	maxSheetName = 31
	headerRow    = 5
	firstItemRow = headerRow + 1
)

// QuoteHeader is the quote metadata printed above the item table.
type QuoteHeader struct {
	Title     string
	Reference string
	Currency  string
	Status    string
	TaxRate   decimal.Decimal
	CreatedAt time.Time
}

var columns = []struct {
	letter string
	title  string
	width  float64
}{
	{"A", "#", 6},
	{"B", "Section", 16},
	{"C", "Description", 42},
	{"D", "Part #", 14},
	{"E", "Qty", 9},
	{"F", "Unit Price", 14},
	{"G", "Discount %", 12},
	{"H", "Discount", 12},
	{"I", "Total", 14},
	{"J", "Flags", 14},
}

// QuoteWorkbook builds an xlsx document for the quote and returns its bytes.
// Totals are written as computed values, not formulas, so the file matches
// what the API reported.
func QuoteWorkbook(header QuoteHeader, items []ledger.LineItem, totals ledger.Totals) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := sheetName(header.Title)
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return nil, fmt.Errorf("set sheet name: %w", err)
	}
	lastCol := columns[len(columns)-1].letter
	for _, col := range columns {
		if err := f.SetColWidth(sheet, col.letter, col.letter, col.width); err != nil {
			return nil, fmt.Errorf("set col width %s: %w", col.letter, err)
		}
	}

	styles, err := newStyles(f)
	if err != nil {
		return nil, err
	}

	if err := f.MergeCell(sheet, "A1", lastCol+"1"); err != nil {
		return nil, fmt.Errorf("merge title: %w", err)
	}
	setCell(f, sheet, "A1", sanitizeCell(header.Title))
	_ = f.SetCellStyle(sheet, "A1", lastCol+"1", styles.title)

	meta := []string{}
	if header.Reference != "" {
		meta = append(meta, "Ref: "+header.Reference)
	}
	if header.Status != "" {
		meta = append(meta, "Status: "+header.Status)
	}
	if header.Currency != "" {
		meta = append(meta, "Currency: "+header.Currency)
	}
	setCell(f, sheet, "A2", sanitizeCell(strings.Join(meta, "   ")))
	if !header.CreatedAt.IsZero() {
		setCell(f, sheet, "A3", "Date: "+header.CreatedAt.UTC().Format("2006-01-02"))
	}

	for _, col := range columns {
		setCell(f, sheet, fmt.Sprintf("%s%d", col.letter, headerRow), col.title)
	}
	_ = f.SetCellStyle(sheet, fmt.Sprintf("A%d", headerRow), fmt.Sprintf("%s%d", lastCol, headerRow), styles.header)

	row := firstItemRow
	for i, item := range items {
		r := fmt.Sprintf("%d", row)
		setCell(f, sheet, "A"+r, i+1)
		setCell(f, sheet, "B"+r, sanitizeCell(item.SectionName))
		setCell(f, sheet, "C"+r, sanitizeCell(item.Description))
		setCell(f, sheet, "D"+r, sanitizeCell(item.PartNumber))
		setCell(f, sheet, "E"+r, item.Quantity.InexactFloat64())
		if item.UnitPrice.Valid {
			setCell(f, sheet, "F"+r, item.UnitPrice.Decimal.InexactFloat64())
		}
		setCell(f, sheet, "G"+r, item.DiscountRate.InexactFloat64())
		setCell(f, sheet, "H"+r, item.DiscountAmount.InexactFloat64())
		setCell(f, sheet, "I"+r, item.TotalPrice.InexactFloat64())
		setCell(f, sheet, "J"+r, flags(item))
		_ = f.SetCellStyle(sheet, "A"+r, lastCol+r, styles.item)
		_ = f.SetCellStyle(sheet, "E"+r, "E"+r, styles.quantity)
		_ = f.SetCellStyle(sheet, "F"+r, "F"+r, styles.money)
		_ = f.SetCellStyle(sheet, "G"+r, "G"+r, styles.percent)
		_ = f.SetCellStyle(sheet, "H"+r, "I"+r, styles.money)
		row++
	}

	row++
	summary := []struct {
		label string
		value decimal.Decimal
		style int
	}{
		{"Subtotal", totals.Subtotal, styles.money},
		{fmt.Sprintf("Tax (%s%%)", header.TaxRate.Mul(decimal.NewFromInt(100)).StringFixed(2)), totals.TaxAmount, styles.money},
		{"Total", totals.TotalAmount, styles.total},
	}
	for _, line := range summary {
		r := fmt.Sprintf("%d", row)
		setCell(f, sheet, "H"+r, line.label)
		_ = f.SetCellStyle(sheet, "H"+r, "H"+r, styles.summaryLabel)
		setCell(f, sheet, "I"+r, line.value.InexactFloat64())
		_ = f.SetCellStyle(sheet, "I"+r, "I"+r, line.style)
		row++
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

type styleSet struct {
	title, header, item, money, quantity, percent, summaryLabel, total int
}

func newStyles(f *excelize.File) (styleSet, error) {
	var s styleSet
	border := thinBorders()
	moneyFmt := "#,##0.00"
	qtyFmt := "#,##0.###"
	pctFmt := "0.00%"
	specs := []struct {
		dst   *int
		style *excelize.Style
		name  string
	}{
		{&s.title, &excelize.Style{Font: &excelize.Font{Bold: true, Size: 16}}, "title"},
		{&s.header, &excelize.Style{
			Font:      &excelize.Font{Bold: true, Color: "#FFFFFF", Size: 11},
			Fill:      excelize.Fill{Type: "pattern", Color: []string{"#2F3B52"}, Pattern: 1},
			Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
			Border:    border,
		}, "header"},
		{&s.item, &excelize.Style{Font: &excelize.Font{Size: 10}, Border: border}, "item"},
		{&s.money, &excelize.Style{Font: &excelize.Font{Size: 10}, Border: border, CustomNumFmt: &moneyFmt}, "money"},
		{&s.quantity, &excelize.Style{Font: &excelize.Font{Size: 10}, Border: border, CustomNumFmt: &qtyFmt}, "quantity"},
		{&s.percent, &excelize.Style{Font: &excelize.Font{Size: 10}, Border: border, CustomNumFmt: &pctFmt}, "percent"},
		{&s.summaryLabel, &excelize.Style{
			Font:      &excelize.Font{Bold: true, Size: 11},
			Alignment: &excelize.Alignment{Horizontal: "right"},
		}, "summary label"},
		{&s.total, &excelize.Style{Font: &excelize.Font{Bold: true, Size: 12}, CustomNumFmt: &moneyFmt}, "total"},
	}
	for _, spec := range specs {
		id, err := f.NewStyle(spec.style)
		if err != nil {
			return s, fmt.Errorf("create %s style: %w", spec.name, err)
		}
		*spec.dst = id
	}
	return s, nil
}

func thinBorders() []excelize.Border {
	return []excelize.Border{
		{Type: "left", Color: "#B0B0B0", Style: 1},
		{Type: "top", Color: "#B0B0B0", Style: 1},
		{Type: "right", Color: "#B0B0B0", Style: 1},
		{Type: "bottom", Color: "#B0B0B0", Style: 1},
	}
}

func setCell(f *excelize.File, sheet, cell string, value any) {
	_ = f.SetCellValue(sheet, cell, value)
}

func flags(item ledger.LineItem) string {
	var out []string
	if item.IsOptional {
		out = append(out, "optional")
	}
	if item.IsAlternate {
		out = append(out, "alternate")
	}
	return strings.Join(out, ", ")
}

// sheetName trims the title to what Excel accepts in a sheet tab.
func sheetName(title string) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return '-'
		}
		return r
	}, strings.TrimSpace(title))
	if runes := []rune(name); len(runes) > maxSheetName {
		name = string(runes[:maxSheetName])
	}
	if name == "" {
		name = "Quote"
	}
	return name
}

// sanitizeCell neutralizes values a spreadsheet would evaluate as formulas.
func sanitizeCell(v string) string {
	if v == "" {
		return v
	}
	switch v[0] {
	case '=', '+', '-', '@', '\t', '\r':
		return "'" + v
	}
	return v
}
