package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/quotedesk-backend/pkg/client"
	"github.com/angelmondragon/quotedesk-backend/pkg/enums"
)

var (
	colorSuccess = lipgloss.Color("#10B981")
	colorWarning = lipgloss.Color("#F59E0B")
	colorError   = lipgloss.Color("#EF4444")
	colorInfo    = lipgloss.Color("#3B82F6")
	colorMuted   = lipgloss.Color("#6B7280")
	colorPrimary = lipgloss.Color("#7C3AED")

	successStyle = lipgloss.NewStyle().Foreground(colorSuccess).Bold(true)
	warningStyle = lipgloss.NewStyle().Foreground(colorWarning).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(colorError).Bold(true)
	infoStyle    = lipgloss.NewStyle().Foreground(colorInfo)
	mutedStyle   = lipgloss.NewStyle().Foreground(colorMuted)
	primaryStyle = lipgloss.NewStyle().Foreground(colorPrimary).Bold(true)
	headerStyle  = lipgloss.NewStyle().Bold(true).PaddingRight(2)
	cellStyle    = lipgloss.NewStyle().PaddingRight(2)
)

func printSuccess(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, successStyle.Render("✓ ")+fmt.Sprintf(format, args...))
}

func printWarning(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, warningStyle.Render("⚠ ")+fmt.Sprintf(format, args...))
}

func printInfo(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, infoStyle.Render("ℹ ")+fmt.Sprintf(format, args...))
}

// printError renders API errors with their code so scripts can grep for it.
func printError(w io.Writer, err error) {
	msg := err.Error()
	if apiErr, ok := client.AsAPIError(err); ok {
		msg = fmt.Sprintf("%s (%s, HTTP %d)", apiErr.Message, apiErr.Code, apiErr.Status)
		if v, ok := apiErr.CurrentVersion(); ok {
			msg += fmt.Sprintf(": server is at version %d", v)
		}
	}
	fmt.Fprintln(w, errorStyle.Render("✗ ")+msg)
}

func section(w io.Writer, title string) {
	fmt.Fprintln(w, primaryStyle.Render(title))
	fmt.Fprintln(w, mutedStyle.Render(strings.Repeat("═", lipgloss.Width(title))))
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// renderTable pads columns to the widest cell. Cells are plain text; styles
// are applied after measuring.
func renderTable(w io.Writer, headers []string, rows [][]string) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && lipgloss.Width(cell) > widths[i] {
				widths[i] = lipgloss.Width(cell)
			}
		}
	}

	cols := make([]string, len(headers))
	for i, h := range headers {
		cols[i] = headerStyle.Width(widths[i] + 2).Render(h)
	}
	fmt.Fprintln(w, lipgloss.JoinHorizontal(lipgloss.Top, cols...))
	for _, row := range rows {
		for i := range cols {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			cols[i] = cellStyle.Width(widths[i] + 2).Render(cell)
		}
		fmt.Fprintln(w, lipgloss.JoinHorizontal(lipgloss.Top, cols...))
	}
}

func statusBadge(status enums.QuoteStatus) string {
	switch status {
	case enums.QuoteStatusAccepted:
		return successStyle.Render(status.String())
	case enums.QuoteStatusSent:
		return infoStyle.Render(status.String())
	case enums.QuoteStatusDeclined, enums.QuoteStatusExpired:
		return mutedStyle.Render(status.String())
	default:
		return warningStyle.Render(status.String())
	}
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}
