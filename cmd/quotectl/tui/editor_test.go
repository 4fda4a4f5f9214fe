package tui

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/quotedesk-backend/pkg/client"
	"github.com/angelmondragon/quotedesk-backend/pkg/ledger"
)

type memGateway struct {
	current  ledger.Ledger
	replaces []ledger.ReplaceRequest
	fail     error
}

func (g *memGateway) Fetch(context.Context) (ledger.Ledger, error) {
	return g.current, nil
}

func (g *memGateway) Replace(_ context.Context, req ledger.ReplaceRequest) (ledger.Ledger, error) {
	g.replaces = append(g.replaces, req)
	if g.fail != nil {
		return ledger.Ledger{}, g.fail
	}
	items := ledger.Resequence(req.Items)
	g.current = ledger.Ledger{
		Items:   items,
		TaxRate: req.TaxRate,
		Totals:  ledger.ComputeTotals(items, req.TaxRate),
		Version: g.current.Version + 1,
	}
	return g.current, nil
}

// step feeds msg to the model. Gateway commands run synchronously and their
// result is fed back; other commands (cursor blink) are dropped.
func step(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, cmd := m.Update(msg)
	m = next.(Model)
	for cmd != nil && m.busy {
		next, cmd = m.Update(cmd())
		m = next.(Model)
	}
	return m
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	case "delete":
		return tea.KeyMsg{Type: tea.KeyDelete}
	case "ctrl+s":
		return tea.KeyMsg{Type: tea.KeyCtrlS}
	case "ctrl+d":
		return tea.KeyMsg{Type: tea.KeyCtrlD}
	case "ctrl+z":
		return tea.KeyMsg{Type: tea.KeyCtrlZ}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func typeText(t *testing.T, m Model, s string) Model {
	for _, r := range s {
		m = step(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	return m
}

func loaded(t *testing.T, gw *memGateway) Model {
	t.Helper()
	m := NewModel(context.Background(), "Quote", gw)
	next, _ := m.Update(loadedMsg{err: m.editor.Load(context.Background())})
	return next.(Model)
}

func TestEditCellAndSave(t *testing.T) {
	gw := &memGateway{current: ledger.Ledger{Items: []ledger.LineItem{ledger.DefaultItem()}, Version: 4}}
	m := loaded(t, gw)

	m = step(t, m, key("down"))
	m = step(t, m, key("enter"))
	require.True(t, m.editing)
	m = typeText(t, m, "Valve")
	m = step(t, m, key("enter"))
	assert.Equal(t, "Valve", m.editor.Items()[0].Description)

	// move to unit price and edit it
	for i := 0; i < 3; i++ {
		m = step(t, m, key("right"))
	}
	m = step(t, m, key("enter"))
	m.input.SetValue("")
	m = typeText(t, m, "40")
	m = step(t, m, key("enter"))
	assert.True(t, decimal.NewFromInt(40).Equal(m.editor.Totals().Subtotal))
	assert.True(t, m.editor.IsDirty())

	m = step(t, m, key("ctrl+s"))
	require.Len(t, gw.replaces, 1)
	require.NotNil(t, gw.replaces[0].ExpectedVersion)
	assert.Equal(t, int64(4), *gw.replaces[0].ExpectedVersion)
	assert.Equal(t, int64(5), m.editor.Version())
	assert.False(t, m.editor.IsDirty())
	assert.False(t, m.statusErr)
	assert.Contains(t, m.View(), "v5")
}

func TestEscCancelsEdit(t *testing.T) {
	m := loaded(t, &memGateway{current: ledger.Ledger{Items: []ledger.LineItem{ledger.DefaultItem()}, Version: 1}})
	m = step(t, m, key("enter"))
	m = typeText(t, m, "ignored")
	m = step(t, m, key("esc"))
	assert.False(t, m.editing)
	assert.Equal(t, "", m.editor.Items()[0].Description)
}

func TestDuplicateDeleteUndo(t *testing.T) {
	m := loaded(t, &memGateway{current: ledger.Ledger{Items: []ledger.LineItem{ledger.DefaultItem()}, Version: 1}})
	m = step(t, m, key("down"))
	m = step(t, m, key("ctrl+d"))
	assert.Len(t, m.editor.Items(), 2)
	m = step(t, m, key("delete"))
	assert.Len(t, m.editor.Items(), 1)
	m = step(t, m, key("ctrl+z"))
	assert.Len(t, m.editor.Items(), 2)
	m = step(t, m, key("a"))
	assert.Len(t, m.editor.Items(), 3)
}

func TestSaveConflictIsExplained(t *testing.T) {
	details, _ := json.Marshal(map[string]any{"current_version": 9})
	gw := &memGateway{
		current: ledger.Ledger{Items: []ledger.LineItem{ledger.DefaultItem()}, Version: 2},
		fail:    &client.APIError{Status: http.StatusConflict, Code: "VERSION_CONFLICT", Details: details},
	}
	m := loaded(t, gw)
	m = step(t, m, key("a"))
	m = step(t, m, key("ctrl+s"))

	assert.True(t, m.statusErr)
	assert.Contains(t, m.status, "version 9")
	assert.True(t, m.editor.IsDirty(), "a failed save keeps local edits")
}

func TestQuitAsksWhenDirty(t *testing.T) {
	m := loaded(t, &memGateway{current: ledger.Ledger{Items: []ledger.LineItem{ledger.DefaultItem()}, Version: 1}})
	m = step(t, m, key("a"))

	next, cmd := m.Update(key("q"))
	m = next.(Model)
	assert.Nil(t, cmd)
	assert.True(t, m.confirmQuit)

	_, cmd = m.Update(key("q"))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestChordFor(t *testing.T) {
	assert.Equal(t, ledger.KeySave, chordFor(tea.KeyMsg{Type: tea.KeyCtrlS}).Resolve())
	assert.Equal(t, ledger.KeyUp, chordFor(tea.KeyMsg{Type: tea.KeyUp}).Resolve())
	assert.Equal(t, ledger.KeyDelete, chordFor(tea.KeyMsg{Type: tea.KeyBackspace}).Resolve())
	assert.Equal(t, ledger.KeyRedo, chordFor(tea.KeyMsg{Type: tea.KeyCtrlY}).Resolve())
}
