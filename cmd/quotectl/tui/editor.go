// Package tui is the terminal line-item editor behind `quotectl edit`.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/quotedesk-backend/pkg/client"
	"github.com/angelmondragon/quotedesk-backend/pkg/ledger"
)

// columns shown in the grid; the rest stay editable through the API only.
var columns = []ledger.Field{
	ledger.FieldDescription,
	ledger.FieldPartNumber,
	ledger.FieldQuantity,
	ledger.FieldUnitPrice,
	ledger.FieldDiscountRate,
	ledger.FieldIsOptional,
}

var columnTitles = map[ledger.Field]string{
	ledger.FieldDescription:  "Description",
	ledger.FieldPartNumber:   "Part #",
	ledger.FieldQuantity:     "Qty",
	ledger.FieldUnitPrice:    "Unit price",
	ledger.FieldDiscountRate: "Disc",
	ledger.FieldIsOptional:   "Opt",
}

var columnWidths = map[ledger.Field]int{
	ledger.FieldDescription:  28,
	ledger.FieldPartNumber:   12,
	ledger.FieldQuantity:     6,
	ledger.FieldUnitPrice:    11,
	ledger.FieldDiscountRate: 6,
	ledger.FieldIsOptional:   4,
}

type loadedMsg struct{ err error }

type savedMsg struct{ err error }

// Model is the bubbletea model wrapping one ledger.Editor.
type Model struct {
	ctx    context.Context
	editor *ledger.Editor
	title  string

	col     int
	input   textinput.Model
	editing bool

	busy        bool
	confirmQuit bool
	status      string
	statusErr   bool
}

// NewModel edits the ledger behind gw. ctx bounds every gateway call.
func NewModel(ctx context.Context, title string, gw ledger.Gateway) Model {
	input := textinput.New()
	input.Prompt = "› "
	input.CharLimit = 2000
	return Model{
		ctx:    ctx,
		editor: ledger.NewEditor(gw),
		title:  title,
		input:  input,
		busy:   true,
		status: "loading…",
	}
}

// Editor exposes the underlying state, mostly for tests.
func (m Model) Editor() *ledger.Editor { return m.editor }

func (m Model) Init() tea.Cmd {
	return m.load()
}

func (m Model) load() tea.Cmd {
	ed, ctx := m.editor, m.ctx
	return func() tea.Msg { return loadedMsg{err: ed.Load(ctx)} }
}

func (m Model) save() tea.Cmd {
	ed, ctx := m.editor, m.ctx
	return func() tea.Msg { return savedMsg{err: ed.Save(ctx)} }
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case loadedMsg:
		m.busy = false
		if msg.err != nil {
			m.setError("load failed", msg.err)
			return m, nil
		}
		m.setStatus(fmt.Sprintf("loaded version %d", m.editor.Version()))
		return m, nil
	case savedMsg:
		m.busy = false
		if msg.err != nil {
			m.setError("save failed", msg.err)
			return m, nil
		}
		m.setStatus(fmt.Sprintf("saved, now at version %d", m.editor.Version()))
		return m, nil
	case tea.KeyMsg:
		if m.editing {
			return m.updateEditing(msg)
		}
		return m.updateGrid(msg)
	}
	return m, nil
}

func (m Model) updateEditing(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.editing = false
		m.input.Blur()
		return m, nil
	case tea.KeyEnter:
		m.editing = false
		m.input.Blur()
		row := m.editor.Focus()
		if err := m.editor.SetCell(row, columns[m.col], m.input.Value()); err != nil {
			m.setError("invalid value", err)
		}
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) updateGrid(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key != "q" && key != "ctrl+c" {
		m.confirmQuit = false
	}

	switch key {
	case "q", "ctrl+c":
		if m.editor.IsDirty() && !m.confirmQuit {
			m.confirmQuit = true
			m.setStatus("unsaved changes; press q again to discard them")
			return m, nil
		}
		return m, tea.Quit
	case "left", "h":
		m.col = max(0, m.col-1)
		return m, nil
	case "right", "l", "tab":
		m.col = min(len(columns)-1, m.col+1)
		return m, nil
	case "a", "n":
		m.editor.AddRow()
		return m, nil
	case "enter":
		return m.startEditing()
	case "ctrl+r":
		if m.busy {
			return m, nil
		}
		m.busy = true
		m.setStatus("reloading…")
		return m, m.load()
	}

	cmd := chordFor(msg).Resolve()
	switch cmd {
	case ledger.KeyNone:
		return m, nil
	case ledger.KeySave:
		if m.busy {
			return m, nil
		}
		if err := ledger.Validate(m.editor.Items()); err != nil {
			m.setError("fix before saving", err)
			return m, nil
		}
		m.busy = true
		m.setStatus("saving…")
		return m, m.save()
	default:
		_ = m.editor.HandleKey(m.ctx, cmd)
		return m, nil
	}
}

func (m Model) startEditing() (tea.Model, tea.Cmd) {
	row := m.editor.Focus()
	if row < 0 {
		_ = m.editor.HandleKey(m.ctx, ledger.KeyDown)
		row = m.editor.Focus()
	}
	items := m.editor.Items()
	if row < 0 || row >= len(items) {
		return m, nil
	}
	m.editing = true
	m.input.SetValue(cellValue(items[row], columns[m.col]))
	m.input.CursorEnd()
	return m, m.input.Focus()
}

func (m *Model) setStatus(s string) {
	m.status, m.statusErr = s, false
}

func (m *Model) setError(prefix string, err error) {
	m.status, m.statusErr = prefix+": "+describe(err), true
}

// describe turns gateway errors into something actionable in the footer.
func describe(err error) string {
	if errors.Is(err, ledger.ErrStaleResponse) {
		return "superseded by a newer request"
	}
	if apiErr, ok := client.AsAPIError(err); ok {
		if apiErr.IsConflict() {
			if v, ok := apiErr.CurrentVersion(); ok {
				return fmt.Sprintf("someone else saved version %d; ctrl+r reloads (local edits are lost)", v)
			}
			return "someone else saved first; ctrl+r reloads"
		}
		return apiErr.Error()
	}
	return err.Error()
}

// chordFor splits bubbletea's "ctrl+shift+z" style names into modifiers.
func chordFor(msg tea.KeyMsg) ledger.Chord {
	name := msg.String()
	var c ledger.Chord
	for {
		switch {
		case strings.HasPrefix(name, "ctrl+"):
			c.Ctrl, name = true, strings.TrimPrefix(name, "ctrl+")
		case strings.HasPrefix(name, "alt+"):
			c.Meta, name = true, strings.TrimPrefix(name, "alt+")
		case strings.HasPrefix(name, "shift+"):
			c.Shift, name = true, strings.TrimPrefix(name, "shift+")
		default:
			c.Key = name
			return c
		}
	}
}

func cellValue(item ledger.LineItem, f ledger.Field) string {
	switch f {
	case ledger.FieldDescription:
		return item.Description
	case ledger.FieldPartNumber:
		return item.PartNumber
	case ledger.FieldQuantity:
		return item.Quantity.String()
	case ledger.FieldUnitPrice:
		if !item.UnitPrice.Valid {
			return ""
		}
		return item.UnitPrice.Decimal.StringFixed(2)
	case ledger.FieldDiscountRate:
		return item.DiscountRate.String()
	case ledger.FieldIsOptional:
		if item.IsOptional {
			return "yes"
		}
		return "no"
	}
	return ""
}

func fit(s string, width int) string {
	r := []rune(s)
	if len(r) > width {
		return string(r[:width-1]) + "…"
	}
	return s + strings.Repeat(" ", width-len(r))
}

func money(d decimal.Decimal) string {
	return d.StringFixed(ledger.CurrencyPlaces)
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(m.title))
	b.WriteString("\n")

	header := make([]string, 0, len(columns)+2)
	header = append(header, cellStyle.Render(fit("#", 3)))
	for _, f := range columns {
		header = append(header, cellStyle.Render(fit(columnTitles[f], columnWidths[f])))
	}
	header = append(header, cellStyle.Render(fit("Total", 11)))
	b.WriteString(headerStyle.Render(lipgloss.JoinHorizontal(lipgloss.Top, header...)))
	b.WriteString("\n")

	focus := m.editor.Focus()
	for i, item := range m.editor.Items() {
		rowStyle := cellStyle
		if m.editor.RowState(i) != ledger.Unselected {
			rowStyle = focusedRowStyle
		}
		cells := []string{rowStyle.Render(fit(fmt.Sprint(i+1), 3))}
		for c, f := range columns {
			style := rowStyle
			if i == focus && c == m.col {
				style = focusedCellStyle
			}
			cells = append(cells, style.Render(fit(cellValue(item, f), columnWidths[f])))
		}
		cells = append(cells, rowStyle.Render(fit(money(item.TotalPrice), 11)))
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, cells...))
		b.WriteString("\n")
	}

	if m.editing {
		b.WriteString("\n" + mutedStyle.Render(columnTitles[columns[m.col]]) + " " + m.input.View() + "\n")
	}

	totals := m.editor.Totals()
	dirty := successStyle.Render("saved")
	if m.editor.IsDirty() {
		dirty = warningStyle.Render("unsaved changes")
	}
	b.WriteString("\n")
	b.WriteString(totalsStyle.Render(fmt.Sprintf(
		"Subtotal %s   Tax (%s) %s   Total %s   v%d   %s",
		money(totals.Subtotal), m.editor.TaxRate().String(), money(totals.TaxAmount),
		money(totals.TotalAmount), m.editor.Version(), dirty,
	)))
	b.WriteString("\n")

	if m.status != "" {
		if m.statusErr {
			b.WriteString(dangerStyle.Render(m.status))
		} else {
			b.WriteString(mutedStyle.Render(m.status))
		}
		b.WriteString("\n")
	}
	b.WriteString(strings.Join([]string{
		formatKey("↑/↓", "row"),
		formatKey("←/→", "column"),
		formatKey("enter", "edit"),
		formatKey("a", "add"),
		formatKey("del", "delete"),
		formatKey("ctrl+d", "duplicate"),
		formatKey("ctrl+z/y", "undo/redo"),
		formatKey("ctrl+s", "save"),
		formatKey("q", "quit"),
	}, " • "))
	return b.String()
}
