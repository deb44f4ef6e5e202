package spreadsheet

import (
	"cmp"
	"fmt"
	"slices"
)

// Default grid bounds
const (
	DefaultRows = 100
	DefaultCols = 26
)

// CellStore is a sparse grid of cell records. a missing key is an empty,
// unstyled cell; empty cells are never stored.
type CellStore struct {
	rows  uint32
	cols  uint32
	cells map[CellCoord]Cell
}

// CellEntry pairs a coordinate with its cell, for ordered export
type CellEntry struct {
	Coord CellCoord
	Cell  Cell
}

// NewCellStore creates an empty store bounded to rows x cols
func NewCellStore(rows, cols uint32) *CellStore {
	return &CellStore{
		rows:  rows,
		cols:  cols,
		cells: make(map[CellCoord]Cell),
	}
}

// Bounds returns the grid as a range covering every valid coordinate
func (cs *CellStore) Bounds() CellRange {
	return CellRange{EndRow: cs.rows - 1, EndCol: cs.cols - 1}
}

// CheckBounds rejects coordinates outside [0,rows) x [0,cols)
func (cs *CellStore) CheckBounds(coord CellCoord) error {
	if coord.Row >= cs.rows || coord.Col >= cs.cols {
		return NewApplicationError(OutOfRange, fmt.Sprintf("cell %s is outside the %dx%d grid", coord, cs.rows, cs.cols))
	}
	return nil
}

// CheckRange rejects ranges that leave the grid
func (cs *CellStore) CheckRange(r CellRange) error {
	if err := cs.CheckBounds(r.Start()); err != nil {
		return err
	}
	return cs.CheckBounds(r.End())
}

// Get returns a copy of the cell at coord and whether anything is stored
func (cs *CellStore) Get(coord CellCoord) (Cell, bool) {
	cell, ok := cs.cells[coord]
	if !ok {
		return Cell{}, false
	}
	return cell.Clone(), true
}

// Lookup is Get with bounds checking: a coordinate outside the grid is an
// OutOfRange error rather than an empty cell
func (cs *CellStore) Lookup(coord CellCoord) (Cell, bool, error) {
	if err := cs.CheckBounds(coord); err != nil {
		return Cell{}, false, err
	}
	cell, ok := cs.Get(coord)
	return cell, ok, nil
}

// Raw returns only the raw text at coord. out-of-grid coordinates read as
// empty, which is how formulas see them.
func (cs *CellStore) Raw(coord CellCoord) string {
	return cs.cells[coord].RawValue
}

// Put stores a copy of cell. storing an empty cell deletes the key.
func (cs *CellStore) Put(coord CellCoord, cell Cell) error {
	if err := cs.CheckBounds(coord); err != nil {
		return err
	}
	if cell.IsEmpty() {
		delete(cs.cells, coord)
		return nil
	}
	cs.cells[coord] = cell.Clone()
	return nil
}

// Delete removes whatever is stored at coord
func (cs *CellStore) Delete(coord CellCoord) {
	delete(cs.cells, coord)
}

// Len returns the number of non-empty cells
func (cs *CellStore) Len() int {
	return len(cs.cells)
}

// Entries returns copies of every stored cell in row-major order
func (cs *CellStore) Entries() []CellEntry {
	entries := make([]CellEntry, 0, len(cs.cells))
	for coord, cell := range cs.cells {
		entries = append(entries, CellEntry{Coord: coord, Cell: cell.Clone()})
	}
	slices.SortFunc(entries, func(a, b CellEntry) int {
		return compareCoords(a.Coord, b.Coord)
	})
	return entries
}

// Clear removes every cell
func (cs *CellStore) Clear() {
	clear(cs.cells)
}

func compareCoords(a, b CellCoord) int {
	if c := cmp.Compare(a.Row, b.Row); c != 0 {
		return c
	}
	return cmp.Compare(a.Col, b.Col)
}

// SheetID identifies a sheet for the life of a workbook. IDs start at 1
// and are never reused.
type SheetID uint32

// Sheet owns one grid plus the rules attached to it
type Sheet struct {
	ID   SheetID
	Name string

	cells       *CellStore
	validations *ValidationRules
	formats     *ConditionalFormats
	refs        *ReferenceIndex
}

func newSheet(id SheetID, name string, rows, cols uint32) *Sheet {
	return &Sheet{
		ID:          id,
		Name:        name,
		cells:       NewCellStore(rows, cols),
		validations: NewValidationRules(),
		formats:     NewConditionalFormats(),
		refs:        NewReferenceIndex(),
	}
}

// Cells exposes the sheet's grid for reads
func (s *Sheet) Cells() *CellStore {
	return s.cells
}

// Validations exposes the sheet's dropdown rules
func (s *Sheet) Validations() *ValidationRules {
	return s.validations
}

// Formats exposes the sheet's conditional format rules
func (s *Sheet) Formats() *ConditionalFormats {
	return s.formats
}

// put writes a cell and keeps the reference index in step with its raw text
func (s *Sheet) put(coord CellCoord, cell Cell) error {
	if err := s.cells.Put(coord, cell); err != nil {
		return err
	}
	s.refs.SetFormula(coord, cell.RawValue)
	return nil
}

// reset empties the grid and its index, leaving rules alone
func (s *Sheet) reset() {
	s.cells.Clear()
	s.refs.Clear()
}

// sheetTable keeps sheets in display order with stable IDs
type sheetTable struct {
	order  []SheetID
	byID   map[SheetID]*Sheet
	nextID SheetID
}

func newSheetTable() *sheetTable {
	return &sheetTable{
		byID:   make(map[SheetID]*Sheet),
		nextID: 1, // start at 1, reserve 0 for no sheet
	}
}

func (st *sheetTable) add(name string, rows, cols uint32) *Sheet {
	sheet := newSheet(st.nextID, name, rows, cols)
	st.byID[sheet.ID] = sheet
	st.order = append(st.order, sheet.ID)
	st.nextID++
	return sheet
}

func (st *sheetTable) remove(id SheetID) bool {
	if _, ok := st.byID[id]; !ok {
		return false
	}
	delete(st.byID, id)
	st.order = slices.DeleteFunc(st.order, func(other SheetID) bool { return other == id })
	return true
}

func (st *sheetTable) get(id SheetID) (*Sheet, bool) {
	sheet, ok := st.byID[id]
	return sheet, ok
}

// byName returns the first sheet in display order with the given name
func (st *sheetTable) byName(name string) (*Sheet, bool) {
	for _, id := range st.order {
		if sheet := st.byID[id]; sheet.Name == name {
			return sheet, true
		}
	}
	return nil, false
}

func (st *sheetTable) list() []*Sheet {
	sheets := make([]*Sheet, len(st.order))
	for i, id := range st.order {
		sheets[i] = st.byID[id]
	}
	return sheets
}

func (st *sheetTable) count() int {
	return len(st.order)
}
