package spreadsheet

import (
	"fmt"
	"strconv"
)

// Command is one user-visible edit. Apply performs every cell write through
// the mutator so the whole edit lands in history as a single group.
type Command interface {
	Name() string
	Apply(m *Mutator) error
}

// Mutator is the write surface handed to a command. it snapshots each
// coordinate the first time it is touched.
type Mutator struct {
	sheet   *Sheet
	value   func(CellCoord) Primitive
	touched map[CellCoord]int // coord -> index into entries
	entries []UndoEntry
}

func newMutator(sheet *Sheet, value func(CellCoord) Primitive) *Mutator {
	return &Mutator{
		sheet:   sheet,
		value:   value,
		touched: make(map[CellCoord]int),
	}
}

// Get returns the current cell at coord
func (m *Mutator) Get(coord CellCoord) (Cell, bool) {
	return m.sheet.cells.Get(coord)
}

// Value returns the displayed value at coord
func (m *Mutator) Value(coord CellCoord) Primitive {
	return m.value(coord)
}

// CheckRange rejects ranges that leave the grid
func (m *Mutator) CheckRange(r CellRange) error {
	return m.sheet.cells.CheckRange(r)
}

// Put writes a cell, recording its prior state on first touch
func (m *Mutator) Put(coord CellCoord, cell Cell) error {
	if err := m.sheet.cells.CheckBounds(coord); err != nil {
		return err
	}
	if _, seen := m.touched[coord]; !seen {
		var before *Cell
		if prev, ok := m.sheet.cells.Get(coord); ok {
			before = &prev
		}
		m.touched[coord] = len(m.entries)
		m.entries = append(m.entries, UndoEntry{Sheet: m.sheet.ID, Coord: coord, Before: before})
	}
	return m.sheet.put(coord, cell)
}

// Update rewrites the cell at coord through fn
func (m *Mutator) Update(coord CellCoord, fn func(Cell) Cell) error {
	cell, _ := m.Get(coord)
	return m.Put(coord, fn(cell))
}

// finish fills in after-states and drops coordinates that ended where they
// started
func (m *Mutator) finish() []UndoEntry {
	entries := make([]UndoEntry, 0, len(m.entries))
	for _, entry := range m.entries {
		if after, ok := m.sheet.cells.Get(entry.Coord); ok {
			entry.After = &after
		}
		if sameCell(entry.Before, entry.After) {
			continue
		}
		entries = append(entries, entry)
	}
	return entries
}

// rollback restores every touched coordinate after a failed command
func (m *Mutator) rollback() {
	for i := len(m.entries) - 1; i >= 0; i-- {
		entry := m.entries[i]
		restoreCell(m.sheet, entry.Coord, entry.Before)
	}
}

func sameCell(a, b *Cell) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

// restoreCell writes a recorded state back, nil meaning empty
func restoreCell(sheet *Sheet, coord CellCoord, state *Cell) {
	if state == nil {
		sheet.cells.Delete(coord)
		sheet.refs.Remove(coord)
		return
	}
	// recorded states were inside the grid when captured
	_ = sheet.put(coord, *state)
}

// SetCellCommand replaces a cell's raw text, keeping its style
type SetCellCommand struct {
	Coord    CellCoord
	RawValue string
}

func (c SetCellCommand) Name() string {
	return "edit " + c.Coord.String()
}

func (c SetCellCommand) Apply(m *Mutator) error {
	return m.Update(c.Coord, func(cell Cell) Cell {
		cell.RawValue = c.RawValue
		return cell
	})
}

// StyleRangeCommand merges a style into every cell of a range. an empty
// property value removes that property.
type StyleRangeCommand struct {
	Range CellRange
	Style Style
	Label string
}

func (c StyleRangeCommand) Name() string {
	if c.Label != "" {
		return c.Label
	}
	return "style " + c.Range.String()
}

func (c StyleRangeCommand) Apply(m *Mutator) error {
	if err := m.CheckRange(c.Range); err != nil {
		return err
	}
	for coord := range c.Range.Enumerate() {
		if err := m.Update(coord, func(cell Cell) Cell {
			cell.Style = cell.Style.Merge(c.Style)
			return cell
		}); err != nil {
			return err
		}
	}
	return nil
}

// FillRangeCommand writes values row-major across a range, cycling when
// the range is larger than the list
type FillRangeCommand struct {
	Range  CellRange
	Values []string
}

func (c FillRangeCommand) Name() string {
	return "fill " + c.Range.String()
}

func (c FillRangeCommand) Apply(m *Mutator) error {
	if len(c.Values) == 0 {
		return NewApplicationError(InvalidArgument, "fill needs at least one value")
	}
	if err := m.CheckRange(c.Range); err != nil {
		return err
	}
	i := 0
	for coord := range c.Range.Enumerate() {
		raw := c.Values[i%len(c.Values)]
		if err := m.Update(coord, func(cell Cell) Cell {
			cell.RawValue = raw
			return cell
		}); err != nil {
			return err
		}
		i++
	}
	return nil
}

// ClearRangeCommand removes content and style from a range
type ClearRangeCommand struct {
	Range CellRange
}

func (c ClearRangeCommand) Name() string {
	return "clear " + c.Range.String()
}

func (c ClearRangeCommand) Apply(m *Mutator) error {
	if err := m.CheckRange(c.Range); err != nil {
		return err
	}
	for coord := range c.Range.Enumerate() {
		if _, ok := m.Get(coord); !ok {
			continue
		}
		if err := m.Put(coord, Cell{}); err != nil {
			return err
		}
	}
	return nil
}

// ReplaceRectCommand pastes a grid of raw strings with its top-left corner
// at TopLeft. ragged rows are allowed; styles are kept.
type ReplaceRectCommand struct {
	TopLeft CellCoord
	Grid    [][]string
}

func (c ReplaceRectCommand) Name() string {
	return "paste at " + c.TopLeft.String()
}

func (c ReplaceRectCommand) Apply(m *Mutator) error {
	for i, row := range c.Grid {
		for j, raw := range row {
			coord := CellCoord{Row: c.TopLeft.Row + uint32(i), Col: c.TopLeft.Col + uint32(j)}
			if err := m.Update(coord, func(cell Cell) Cell {
				cell.RawValue = raw
				return cell
			}); err != nil {
				return err
			}
		}
	}
	return nil
}

// AutoSumCommand writes =SUM over each column of Range into the row below it
type AutoSumCommand struct {
	Range CellRange
}

func (c AutoSumCommand) Name() string {
	return "autosum " + c.Range.String()
}

func (c AutoSumCommand) Apply(m *Mutator) error {
	if err := m.CheckRange(c.Range); err != nil {
		return err
	}
	target := c.Range.EndRow + 1
	for col := c.Range.StartCol; col <= c.Range.EndCol; col++ {
		top := CellCoord{Row: c.Range.StartRow, Col: col}
		bottom := CellCoord{Row: c.Range.EndRow, Col: col}
		formula := fmt.Sprintf("=SUM(%s:%s)", top, bottom)
		if err := m.Update(CellCoord{Row: target, Col: col}, func(cell Cell) Cell {
			cell.RawValue = formula
			return cell
		}); err != nil {
			return err
		}
	}
	return nil
}

// DefaultBorder is the border value used when a toggle names none
const DefaultBorder = "1px solid #000000"

// ToggleBorderCommand sets the border property on every cell of a range,
// or removes it when every cell already carries exactly that border
type ToggleBorderCommand struct {
	Range CellRange
	Value string
}

func (c ToggleBorderCommand) Name() string {
	return "toggle border " + c.Range.String()
}

func (c ToggleBorderCommand) Apply(m *Mutator) error {
	if err := m.CheckRange(c.Range); err != nil {
		return err
	}
	value := c.Value
	if value == "" {
		value = DefaultBorder
	}

	allSet := true
	for coord := range c.Range.Enumerate() {
		cell, _ := m.Get(coord)
		if cell.Style["border"] != value {
			allSet = false
			break
		}
	}
	if allSet {
		value = ""
	}

	return StyleRangeCommand{Range: c.Range, Style: Style{"border": value}}.Apply(m)
}

// FillDownCommand is a drag-fill of Count cells below Anchor. a numeric
// pattern ending at Anchor is extrapolated; otherwise Anchor is copied,
// with formula references shifted by the row offset. Anchor's style is
// copied either way.
type FillDownCommand struct {
	Anchor CellCoord
	Count  int
}

func (c FillDownCommand) Name() string {
	return fmt.Sprintf("fill down %s x%d", c.Anchor, c.Count)
}

func (c FillDownCommand) Apply(m *Mutator) error {
	if c.Count <= 0 {
		return NewApplicationError(InvalidArgument, "fill count must be positive")
	}
	last := CellCoord{Row: c.Anchor.Row + uint32(c.Count), Col: c.Anchor.Col}
	if last.Row < c.Anchor.Row {
		return NewApplicationError(OutOfRange, "fill runs past the last row")
	}
	if err := m.CheckRange(NewCellRange(c.Anchor, last)); err != nil {
		return err
	}

	anchor, _ := m.Get(c.Anchor)
	pattern, detected := DetectFill(CellCoord{Row: c.Anchor.Row + 1, Col: c.Anchor.Col}, func(coord CellCoord) (float64, bool) {
		num, ok := m.Value(coord).(float64)
		return num, ok
	})

	for step := 1; step <= c.Count; step++ {
		raw := anchor.RawValue
		switch {
		case detected:
			raw = formatFillNumber(pattern.Extrapolate(step))
		case IsFormula(raw):
			raw = ShiftFormula(raw, step, 0)
		}
		target := CellCoord{Row: c.Anchor.Row + uint32(step), Col: c.Anchor.Col}
		if err := m.Put(target, Cell{RawValue: raw, Style: anchor.Style}); err != nil {
			return err
		}
	}
	return nil
}

func formatFillNumber(v float64) string {
	return strconv.FormatFloat(roundSignificant(v), 'f', -1, 64)
}

// Style keys written by merge commands
const (
	StyleMergeRows  = "mergeRows"
	StyleMergeCols  = "mergeCols"
	StyleMergedInto = "mergedInto"
)

// MergeCommand marks a range as one merged cell. the top-left cell keeps
// its content and records the span; the other cells are cleared and point
// back at it.
type MergeCommand struct {
	Range CellRange
}

func (c MergeCommand) Name() string {
	return "merge " + c.Range.String()
}

func (c MergeCommand) Apply(m *Mutator) error {
	if err := m.CheckRange(c.Range); err != nil {
		return err
	}
	if c.Range.Size() < 2 {
		return NewApplicationError(InvalidArgument, "merge needs at least two cells")
	}
	origin := c.Range.Start()
	for coord := range c.Range.Enumerate() {
		var err error
		if coord == origin {
			err = m.Update(coord, func(cell Cell) Cell {
				cell.Style = cell.Style.Merge(Style{
					StyleMergeRows: strconv.FormatUint(uint64(c.Range.Rows()), 10),
					StyleMergeCols: strconv.FormatUint(uint64(c.Range.Cols()), 10),
				})
				return cell
			})
		} else {
			err = m.Update(coord, func(cell Cell) Cell {
				return Cell{Style: cell.Style.Merge(Style{StyleMergedInto: origin.String()})}
			})
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// UnmergeCommand removes merge metadata from a range. cleared content is
// not brought back.
type UnmergeCommand struct {
	Range CellRange
}

func (c UnmergeCommand) Name() string {
	return "unmerge " + c.Range.String()
}

func (c UnmergeCommand) Apply(m *Mutator) error {
	return StyleRangeCommand{
		Range: c.Range,
		Style: Style{StyleMergeRows: "", StyleMergeCols: "", StyleMergedInto: ""},
	}.Apply(m)
}
