package ledger

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/shopspring/decimal"
)

var (
	// ErrStaleResponse is returned when a newer Load or Save superseded the
	// request; its response was discarded.
	ErrStaleResponse = errors.New("ledger: response superseded by a newer request")
	ErrNoGateway     = errors.New("ledger: no gateway configured")
	ErrRowOutOfRange = errors.New("ledger: row out of range")
)

// RowState is the selection state of a single row.
type RowState int

const (
	Unselected RowState = iota
	Selected
	MultiSelected
)

type history struct {
	items   []LineItem
	taxRate decimal.Decimal
}

// Editor owns the local state of one ledger. It is safe for concurrent use so
// a UI can run Save in the background while rendering.
type Editor struct {
	mu sync.Mutex
	gw Gateway

	items    []LineItem
	taxRate  decimal.Decimal
	version  int64
	baseline Snapshot
	server   Totals

	focus    int
	selected map[int]struct{}

	undo []history
	redo []history

	generation uint64
	inFlight   bool
}

// NewEditor returns an editor holding a single default row.
func NewEditor(gw Gateway) *Editor {
	e := &Editor{
		gw:       gw,
		focus:    -1,
		selected: map[int]struct{}{},
	}
	e.items = []LineItem{DefaultItem()}
	e.baseline = NewSnapshot(e.items, e.taxRate)
	return e
}

// Load replaces local state with the server copy and takes a new baseline.
func (e *Editor) Load(ctx context.Context) error {
	if e.gw == nil {
		return ErrNoGateway
	}
	gen := e.begin()
	res, err := e.gw.Fetch(ctx)
	return e.finish(gen, res, err)
}

// Save sends every row and the tax rate in one request. On success the server
// response becomes both the local state and the baseline. On failure nothing
// local changes. Rows failing Validate are rejected before any network call.
func (e *Editor) Save(ctx context.Context) error {
	if e.gw == nil {
		return ErrNoGateway
	}
	e.mu.Lock()
	if err := Validate(e.items); err != nil {
		e.mu.Unlock()
		return err
	}
	if err := ValidateTaxRate(e.taxRate); err != nil {
		e.mu.Unlock()
		return err
	}
	req := ReplaceRequest{Items: Resequence(e.items), TaxRate: e.taxRate}
	if e.version > 0 {
		v := e.version
		req.ExpectedVersion = &v
	}
	e.generation++
	gen := e.generation
	e.inFlight = true
	e.mu.Unlock()

	res, err := e.gw.Replace(ctx, req)
	return e.finish(gen, res, err)
}

func (e *Editor) begin() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.generation++
	e.inFlight = true
	return e.generation
}

func (e *Editor) finish(gen uint64, res Ledger, err error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if gen != e.generation {
		return ErrStaleResponse
	}
	e.inFlight = false
	if err != nil {
		return err
	}
	e.items = cloneItems(res.Items)
	if e.items == nil {
		e.items = []LineItem{}
	}
	e.taxRate = res.TaxRate
	e.version = res.Version
	e.server = res.Totals
	e.baseline = NewSnapshot(e.items, e.taxRate)
	e.undo, e.redo = nil, nil
	e.clampSelection()
	return nil
}

// Busy reports whether a Load or Save is waiting on the gateway.
func (e *Editor) Busy() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.inFlight
}

func (e *Editor) Items() []LineItem {
	e.mu.Lock()
	defer e.mu.Unlock()
	return cloneItems(e.items)
}

func (e *Editor) TaxRate() decimal.Decimal {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.taxRate
}

func (e *Editor) Version() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.version
}

// Totals is recomputed from the current rows on every call.
func (e *Editor) Totals() Totals {
	e.mu.Lock()
	defer e.mu.Unlock()
	return ComputeTotals(e.items, e.taxRate)
}

// ServerTotals are the totals returned with the last successful Load or Save.
func (e *Editor) ServerTotals() Totals {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.server
}

// IsEmpty reports an empty list, which a UI shows as a "no line items" prompt.
func (e *Editor) IsEmpty() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.items) == 0
}

func (e *Editor) IsDirty() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return !NewSnapshot(e.items, e.taxRate).Equal(e.baseline)
}

// SetCell assigns one column of one row and recalculates that row.
func (e *Editor) SetCell(row int, field Field, raw any) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if row < 0 || row >= len(e.items) {
		return ErrRowOutOfRange
	}
	updated, err := SetField(e.items[row], field, raw)
	if err != nil {
		return err
	}
	e.record()
	e.items[row] = updated
	return nil
}

func (e *Editor) SetTaxRate(raw any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record()
	e.taxRate = Coerce(raw)
}

// AddRow appends a default row and focuses it.
func (e *Editor) AddRow() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record()
	e.items = Resequence(append(e.items, DefaultItem()))
	e.focus = len(e.items) - 1
	e.selected = map[int]struct{}{e.focus: {}}
	return e.focus
}

// Focus returns the focused row, or -1.
func (e *Editor) Focus() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.focus
}

// Selection returns the selected rows in ascending order.
func (e *Editor) Selection() []int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.selection()
}

func (e *Editor) selection() []int {
	rows := make([]int, 0, len(e.selected))
	for r := range e.selected {
		rows = append(rows, r)
	}
	slices.Sort(rows)
	return rows
}

func (e *Editor) RowState(row int) RowState {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.selected[row]; !ok {
		return Unselected
	}
	if len(e.selected) > 1 {
		return MultiSelected
	}
	return Selected
}

// Click selects row. A plain click makes it the only selection; with multi
// (ctrl/cmd held) it toggles membership.
func (e *Editor) Click(row int, multi bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if row < 0 || row >= len(e.items) {
		return
	}
	e.focus = row
	if !multi {
		e.selected = map[int]struct{}{row: {}}
		return
	}
	if _, ok := e.selected[row]; ok {
		delete(e.selected, row)
		return
	}
	e.selected[row] = struct{}{}
}

// HandleKey applies a keyboard command. Only KeySave talks to the gateway.
func (e *Editor) HandleKey(ctx context.Context, key Key) error {
	switch key {
	case KeyUp:
		e.moveFocus(-1)
	case KeyDown:
		e.moveFocus(1)
	case KeyDelete:
		e.deleteSelected()
	case KeyDuplicate:
		e.duplicateSelected()
	case KeySave:
		return e.Save(ctx)
	case KeyUndo:
		e.Undo()
	case KeyRedo:
		e.Redo()
	}
	return nil
}

func (e *Editor) moveFocus(delta int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.items) == 0 {
		return
	}
	next := e.focus + delta
	if e.focus < 0 {
		next = 0
	}
	next = max(0, min(next, len(e.items)-1))
	e.focus = next
	e.selected = map[int]struct{}{next: {}}
}

func (e *Editor) deleteSelected() {
	e.mu.Lock()
	defer e.mu.Unlock()
	rows := e.selection()
	if len(rows) == 0 {
		return
	}
	e.record()
	kept := make([]LineItem, 0, len(e.items))
	for i, item := range e.items {
		if _, drop := e.selected[i]; !drop {
			kept = append(kept, item)
		}
	}
	if len(kept) == 0 {
		kept = []LineItem{DefaultItem()}
	}
	e.items = Resequence(kept)
	e.focus = min(rows[0], len(e.items)-1)
	e.selected = map[int]struct{}{e.focus: {}}
}

func (e *Editor) duplicateSelected() {
	e.mu.Lock()
	defer e.mu.Unlock()
	rows := e.selection()
	if len(rows) == 0 {
		return
	}
	e.record()
	out := make([]LineItem, 0, len(e.items)+len(rows))
	copies := map[int]struct{}{}
	for i, item := range e.items {
		out = append(out, item)
		if _, dup := e.selected[i]; dup {
			c := item.Clone()
			c.ID = nil
			out = append(out, c)
			copies[len(out)-1] = struct{}{}
		}
	}
	e.items = Resequence(out)
	e.selected = copies
	last := 0
	for r := range copies {
		last = max(last, r)
	}
	e.focus = last
}

// Undo restores the state before the last mutation.
func (e *Editor) Undo() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.undo) == 0 {
		return false
	}
	prev := e.undo[len(e.undo)-1]
	e.undo = e.undo[:len(e.undo)-1]
	e.redo = append(e.redo, e.current())
	e.restore(prev)
	return true
}

func (e *Editor) Redo() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.redo) == 0 {
		return false
	}
	next := e.redo[len(e.redo)-1]
	e.redo = e.redo[:len(e.redo)-1]
	e.undo = append(e.undo, e.current())
	e.restore(next)
	return true
}

func (e *Editor) CanUndo() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.undo) > 0
}

func (e *Editor) CanRedo() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.redo) > 0
}

// maxHistory bounds the undo log.
const maxHistory = 100

// record must be called with mu held, before the mutation.
func (e *Editor) record() {
	e.undo = append(e.undo, e.current())
	if len(e.undo) > maxHistory {
		e.undo = e.undo[len(e.undo)-maxHistory:]
	}
	e.redo = nil
}

func (e *Editor) current() history {
	return history{items: cloneItems(e.items), taxRate: e.taxRate}
}

func (e *Editor) restore(h history) {
	e.items = cloneItems(h.items)
	e.taxRate = h.taxRate
	e.clampSelection()
}

func (e *Editor) clampSelection() {
	if e.focus >= len(e.items) {
		e.focus = len(e.items) - 1
	}
	for r := range e.selected {
		if r >= len(e.items) {
			delete(e.selected, r)
		}
	}
}
