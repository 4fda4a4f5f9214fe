package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGateway struct {
	mu       sync.Mutex
	fetch    Ledger
	fetchErr error

	replaceErr error
	replaced   []ReplaceRequest
	// hold, when set, blocks Replace until closed.
	hold chan struct{}
	// respond builds the server answer; defaults to normalizing the request.
	respond func(ReplaceRequest) Ledger
}

func (g *stubGateway) Fetch(ctx context.Context) (Ledger, error) {
	return g.fetch, g.fetchErr
}

func (g *stubGateway) Replace(ctx context.Context, req ReplaceRequest) (Ledger, error) {
	g.mu.Lock()
	g.replaced = append(g.replaced, req)
	hold := g.hold
	g.mu.Unlock()
	if hold != nil {
		<-hold
	}
	if g.replaceErr != nil {
		return Ledger{}, g.replaceErr
	}
	if g.respond != nil {
		return g.respond(req), nil
	}
	items, err := NormalizeAll(req.Items)
	if err != nil {
		return Ledger{}, err
	}
	for i := range items {
		id := uuid.New()
		items[i].ID = &id
	}
	return Ledger{Items: items, TaxRate: req.TaxRate, Totals: ComputeTotals(items, req.TaxRate).Round(), Version: 2}, nil
}

func loadedEditor(t *testing.T, gw *stubGateway) *Editor {
	t.Helper()
	e := NewEditor(gw)
	require.NoError(t, e.Load(context.Background()))
	return e
}

func seedLedger(descriptions ...string) Ledger {
	items := make([]LineItem, 0, len(descriptions))
	for i, d := range descriptions {
		id := uuid.New()
		items = append(items, Recalculate(LineItem{
			ID:          &id,
			Description: d,
			Quantity:    decimal.NewFromInt(int64(i + 1)),
			UnitPrice:   decimal.NewNullDecimal(decimal.NewFromInt(10)),
			SortOrder:   i + 1,
		}, FieldQuantity))
	}
	return Ledger{Items: items, TaxRate: decimal.Zero, Version: 1}
}

func TestEditorDirtyLifecycle(t *testing.T) {
	gw := &stubGateway{fetch: seedLedger("a")}
	e := loadedEditor(t, gw)
	assert.False(t, e.IsDirty(), "clean after load")

	require.NoError(t, e.SetCell(0, FieldUnitPrice, "12.345"))
	assert.True(t, e.IsDirty(), "dirty after edit")

	require.NoError(t, e.Save(context.Background()))
	assert.False(t, e.IsDirty(), "clean after save even though the server rounded the price")
	assert.Equal(t, "12.35", e.Items()[0].UnitPrice.Decimal.String())
	assert.Equal(t, int64(2), e.Version())
}

func TestEditorEditBackToBaselineIsClean(t *testing.T) {
	e := loadedEditor(t, &stubGateway{fetch: seedLedger("a")})
	require.NoError(t, e.SetCell(0, FieldDescription, "b"))
	require.NoError(t, e.SetCell(0, FieldDescription, "a"))
	assert.False(t, e.IsDirty())
}

func TestEditorWorkedExample(t *testing.T) {
	e := loadedEditor(t, &stubGateway{fetch: Ledger{Items: []LineItem{DefaultItem()}}})
	require.NoError(t, e.SetCell(0, FieldQuantity, 2))
	require.NoError(t, e.SetCell(0, FieldUnitPrice, 10))
	require.NoError(t, e.SetCell(0, FieldDiscountRate, "0.1"))
	item := e.Items()[0]
	assert.True(t, item.DiscountAmount.Equal(dec("2")))
	assert.True(t, item.TotalPrice.Equal(dec("18")))

	e.SetTaxRate("0.2")
	totals := e.Totals()
	assert.True(t, totals.Subtotal.Equal(dec("18")))
	assert.True(t, totals.TaxAmount.Equal(dec("3.6")))
	assert.True(t, totals.TotalAmount.Equal(dec("21.6")))
}

func TestEditorEmptyLedger(t *testing.T) {
	e := loadedEditor(t, &stubGateway{fetch: Ledger{TaxRate: dec("0.2")}})
	assert.True(t, e.IsEmpty())
	totals := e.Totals()
	assert.True(t, totals.Subtotal.IsZero() && totals.TaxAmount.IsZero() && totals.TotalAmount.IsZero())
	assert.False(t, e.IsDirty())
}

func TestEditorDeleteLastRowLeavesDefault(t *testing.T) {
	ctx := context.Background()
	e := loadedEditor(t, &stubGateway{fetch: seedLedger("only")})
	e.Click(0, false)
	require.NoError(t, e.HandleKey(ctx, KeyDelete))

	items := e.Items()
	require.Len(t, items, 1)
	want := DefaultItem()
	assert.True(t, ItemsEqual(want, items[0]), "expected a single default row, got %+v", items[0])
}

func TestEditorDeleteMultiSelection(t *testing.T) {
	ctx := context.Background()
	e := loadedEditor(t, &stubGateway{fetch: seedLedger("a", "b", "c", "d")})
	e.Click(1, false)
	e.Click(3, true)
	assert.Equal(t, MultiSelected, e.RowState(1))
	require.NoError(t, e.HandleKey(ctx, KeyDelete))

	items := e.Items()
	require.Len(t, items, 2)
	assert.Equal(t, "a", items[0].Description)
	assert.Equal(t, "c", items[1].Description)
	assert.Equal(t, 1, items[0].SortOrder)
	assert.Equal(t, 2, items[1].SortOrder)
	assert.Equal(t, []int{1}, e.Selection())
}

func TestEditorDuplicateInsertsAfterSource(t *testing.T) {
	ctx := context.Background()
	e := loadedEditor(t, &stubGateway{fetch: seedLedger("a", "b", "c")})
	e.Click(0, false)
	e.Click(2, true)
	require.NoError(t, e.HandleKey(ctx, KeyDuplicate))

	items := e.Items()
	require.Len(t, items, 5)
	got := []string{}
	for _, it := range items {
		got = append(got, it.Description)
	}
	assert.Equal(t, []string{"a", "a", "b", "c", "c"}, got)

	for _, pair := range [][2]int{{0, 1}, {3, 4}} {
		src, dup := items[pair[0]], items[pair[1]]
		assert.NotNil(t, src.ID)
		assert.Nil(t, dup.ID, "duplicate must have a cleared id")
		dup.ID, dup.SortOrder = src.ID, src.SortOrder
		assert.True(t, ItemsEqual(src, dup), "duplicate must preserve values")
	}
	for i, it := range items {
		assert.Equal(t, i+1, it.SortOrder)
	}
	assert.Equal(t, []int{1, 4}, e.Selection())
}

func TestEditorFocusClampsAtBounds(t *testing.T) {
	ctx := context.Background()
	e := loadedEditor(t, &stubGateway{fetch: seedLedger("a", "b")})
	assert.Equal(t, -1, e.Focus())
	require.NoError(t, e.HandleKey(ctx, KeyUp))
	assert.Equal(t, 0, e.Focus())
	require.NoError(t, e.HandleKey(ctx, KeyDown))
	require.NoError(t, e.HandleKey(ctx, KeyDown))
	assert.Equal(t, 1, e.Focus())
	assert.Equal(t, Selected, e.RowState(1))
	assert.Equal(t, Unselected, e.RowState(0))
}

func TestEditorClickTogglesMultiSelection(t *testing.T) {
	e := loadedEditor(t, &stubGateway{fetch: seedLedger("a", "b")})
	e.Click(0, false)
	assert.Equal(t, Selected, e.RowState(0))
	e.Click(1, true)
	assert.Equal(t, MultiSelected, e.RowState(0))
	e.Click(1, true)
	assert.Equal(t, Selected, e.RowState(0))
	e.Click(0, true)
	assert.Equal(t, Unselected, e.RowState(0))
}

func TestEditorUndoRedo(t *testing.T) {
	ctx := context.Background()
	e := loadedEditor(t, &stubGateway{fetch: seedLedger("a")})
	require.NoError(t, e.SetCell(0, FieldDescription, "changed"))
	e.Click(0, false)
	require.NoError(t, e.HandleKey(ctx, KeyDuplicate))
	require.Len(t, e.Items(), 2)

	require.NoError(t, e.HandleKey(ctx, KeyUndo))
	require.Len(t, e.Items(), 1)
	require.NoError(t, e.HandleKey(ctx, KeyUndo))
	assert.Equal(t, "a", e.Items()[0].Description)
	assert.False(t, e.IsDirty())
	assert.False(t, e.Undo())

	require.NoError(t, e.HandleKey(ctx, KeyRedo))
	assert.Equal(t, "changed", e.Items()[0].Description)
	assert.True(t, e.CanRedo())

	require.NoError(t, e.SetCell(0, FieldDescription, "fresh"))
	assert.False(t, e.CanRedo(), "new edits clear the redo log")
}

func TestEditorSaveFailureLeavesStateUntouched(t *testing.T) {
	gw := &stubGateway{fetch: seedLedger("a"), replaceErr: errors.New("boom")}
	e := loadedEditor(t, gw)
	require.NoError(t, e.SetCell(0, FieldDescription, "edited"))

	err := e.HandleKey(context.Background(), KeySave)
	require.Error(t, err)
	assert.Equal(t, "edited", e.Items()[0].Description)
	assert.True(t, e.IsDirty())
	assert.False(t, e.Busy())
}

func TestEditorSaveRejectsInvalidRowsLocally(t *testing.T) {
	gw := &stubGateway{fetch: seedLedger("a")}
	e := loadedEditor(t, gw)
	require.NoError(t, e.SetCell(0, FieldQuantity, "-3"))
	item := e.Items()[0]
	assert.True(t, item.TotalPrice.IsZero(), "client recalculation stays loose and clamps only the total")

	var fe *FieldError
	require.ErrorAs(t, e.Save(context.Background()), &fe)
	assert.Empty(t, gw.replaced, "no request may be sent for invalid rows")
}

func TestEditorSaveSendsExpectedVersion(t *testing.T) {
	gw := &stubGateway{fetch: seedLedger("a")}
	e := loadedEditor(t, gw)
	require.NoError(t, e.Save(context.Background()))
	require.Len(t, gw.replaced, 1)
	require.NotNil(t, gw.replaced[0].ExpectedVersion)
	assert.Equal(t, int64(1), *gw.replaced[0].ExpectedVersion)
}

func TestEditorDiscardsSupersededSave(t *testing.T) {
	hold := make(chan struct{})
	gw := &stubGateway{fetch: seedLedger("server"), hold: hold}
	e := loadedEditor(t, gw)
	require.NoError(t, e.SetCell(0, FieldDescription, "local"))

	done := make(chan error, 1)
	go func() { done <- e.Save(context.Background()) }()
	require.Eventually(t, func() bool {
		gw.mu.Lock()
		defer gw.mu.Unlock()
		return len(gw.replaced) == 1
	}, timeoutShort, tick)

	require.NoError(t, e.Load(context.Background()))
	close(hold)

	assert.ErrorIs(t, <-done, ErrStaleResponse)
	assert.Equal(t, "server", e.Items()[0].Description)
	assert.False(t, e.IsDirty())
}

func TestChordResolve(t *testing.T) {
	cases := []struct {
		chord Chord
		want  Key
	}{
		{Chord{Key: "ArrowUp"}, KeyUp},
		{Chord{Key: "down"}, KeyDown},
		{Chord{Key: "Delete"}, KeyDelete},
		{Chord{Key: "d", Ctrl: true}, KeyDuplicate},
		{Chord{Key: "s", Meta: true}, KeySave},
		{Chord{Key: "z", Ctrl: true}, KeyUndo},
		{Chord{Key: "z", Meta: true, Shift: true}, KeyRedo},
		{Chord{Key: "y", Ctrl: true}, KeyRedo},
		{Chord{Key: "d"}, KeyNone},
	}
	for _, tc := range cases {
		if got := tc.chord.Resolve(); got != tc.want {
			t.Fatalf("%+v resolved to %s, want %s", tc.chord, got, tc.want)
		}
	}
}
