package spreadsheet

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.alis.build/alog"
)

// AppErrorCode represents gRPC-style error codes for application-level errors.
// note that we are skipping error codes that don't make sense for our use-case,
// like unauthenticated, or permission denied.
type AppErrorCode int

const (
	// OK indicates the operation completed successfully.
	OK AppErrorCode = 0

	// Unknown error.
	Unknown AppErrorCode = 2

	// InvalidArgument indicates client specified an invalid argument.
	InvalidArgument AppErrorCode = 3

	// NotFound means some requested entity (e.g., a sheet) was not found.
	NotFound AppErrorCode = 5

	// AlreadyExists means an attempt to create an entity failed because one
	// already exists.
	AlreadyExists AppErrorCode = 6

	// FailedPrecondition indicates operation was rejected because the
	// workbook is not in a state required for the operation's execution.
	FailedPrecondition AppErrorCode = 9

	// OutOfRange means operation was attempted past the valid range, such
	// as a coordinate outside the grid.
	OutOfRange AppErrorCode = 11

	// Internal errors. Means some invariants expected by underlying
	// system has been broken.
	Internal AppErrorCode = 13
)

// AppError represents errors at the application level (not
// spreadsheet formula errors)
type AppError struct {
	Code    AppErrorCode
	Message string
}

func (e *AppError) Error() string {
	return e.Message
}

// NewApplicationError creates a new application error
func NewApplicationError(code AppErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// AppErrorCodeOf returns the code carried by err, Unknown for foreign
// errors and OK for nil
func AppErrorCodeOf(err error) AppErrorCode {
	if err == nil {
		return OK
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return Unknown
}

// IsOutOfRange reports whether err is a coordinate or range bounds failure
func IsOutOfRange(err error) bool {
	return AppErrorCodeOf(err) == OutOfRange
}

// IsNotFound reports whether err names a missing entity
func IsNotFound(err error) bool {
	return AppErrorCodeOf(err) == NotFound
}

// IsInvalidArgument reports whether err rejects its input
func IsInvalidArgument(err error) bool {
	return AppErrorCodeOf(err) == InvalidArgument
}

// Options configures a workbook. zero fields take defaults.
type Options struct {
	Rows         uint32
	Cols         uint32
	HistoryDepth int
	Clock        Clock
}

// DefaultOptions returns the 100x26 grid with 200 undo groups
func DefaultOptions() Options {
	return Options{
		Rows:         DefaultRows,
		Cols:         DefaultCols,
		HistoryDepth: DefaultHistoryDepth,
	}
}

func (o Options) withDefaults() Options {
	defaults := DefaultOptions()
	if o.Rows == 0 {
		o.Rows = defaults.Rows
	}
	if o.Cols == 0 {
		o.Cols = defaults.Cols
	}
	if o.HistoryDepth == 0 {
		o.HistoryDepth = defaults.HistoryDepth
	}
	return o
}

// SheetInfo describes one sheet in display order
type SheetInfo struct {
	ID     SheetID
	Name   string
	Active bool
}

// Workbook is the engine entry point: an ordered set of sheets, one active,
// with workbook-wide undo history. every mutation goes through a Command so
// that history stays correct. a Workbook is not safe for concurrent use.
type Workbook struct {
	ctx     context.Context
	opts    Options
	sheets  *sheetTable
	active  SheetID
	history *CommandHistory
	engine  *Engine
}

// NewWorkbook creates a workbook holding one empty sheet named "Sheet1"
func NewWorkbook(opts Options) *Workbook {
	opts = opts.withDefaults()
	wb := &Workbook{
		ctx:     context.Background(),
		opts:    opts,
		sheets:  newSheetTable(),
		history: NewCommandHistory(opts.HistoryDepth),
		engine:  NewEngine(opts.Clock),
	}
	wb.active = wb.sheets.add("Sheet1", opts.Rows, opts.Cols).ID
	return wb
}

// WithContext sets the context used for log entries
func (wb *Workbook) WithContext(ctx context.Context) *Workbook {
	wb.ctx = ctx
	return wb
}

// Options returns the options the workbook was built with
func (wb *Workbook) Options() Options {
	return wb.opts
}

// AddSheet appends a new empty sheet and returns its ID. names need not be
// unique.
func (wb *Workbook) AddSheet(name string) (SheetID, error) {
	if name == "" {
		return 0, NewApplicationError(InvalidArgument, "sheet name must not be empty")
	}
	return wb.sheets.add(name, wb.opts.Rows, wb.opts.Cols).ID, nil
}

// RemoveSheet deletes a sheet. the last remaining sheet cannot be removed.
// if the active sheet goes, the first remaining sheet becomes active.
func (wb *Workbook) RemoveSheet(id SheetID) error {
	if _, ok := wb.sheets.get(id); !ok {
		return sheetNotFound(id)
	}
	if wb.sheets.count() == 1 {
		return NewApplicationError(FailedPrecondition, "cannot remove the last sheet")
	}
	wb.sheets.remove(id)
	if wb.active == id {
		wb.active = wb.sheets.order[0]
	}
	return nil
}

func (wb *Workbook) RenameSheet(id SheetID, name string) error {
	if name == "" {
		return NewApplicationError(InvalidArgument, "sheet name must not be empty")
	}
	sheet, ok := wb.sheets.get(id)
	if !ok {
		return sheetNotFound(id)
	}
	sheet.Name = name
	return nil
}

func (wb *Workbook) SetActiveSheet(id SheetID) error {
	if _, ok := wb.sheets.get(id); !ok {
		return sheetNotFound(id)
	}
	wb.active = id
	return nil
}

func (wb *Workbook) ActiveSheet() SheetID {
	return wb.active
}

// SheetByName returns the first sheet with the given name
func (wb *Workbook) SheetByName(name string) (SheetID, bool) {
	sheet, ok := wb.sheets.byName(name)
	if !ok {
		return 0, false
	}
	return sheet.ID, true
}

// Sheets lists every sheet in display order
func (wb *Workbook) Sheets() []SheetInfo {
	sheets := wb.sheets.list()
	infos := make([]SheetInfo, len(sheets))
	for i, sheet := range sheets {
		infos[i] = SheetInfo{ID: sheet.ID, Name: sheet.Name, Active: sheet.ID == wb.active}
	}
	return infos
}

func sheetNotFound(id SheetID) error {
	return NewApplicationError(NotFound, fmt.Sprintf("sheet %d not found", id))
}

func (wb *Workbook) sheet(id SheetID) (*Sheet, error) {
	sheet, ok := wb.sheets.get(id)
	if !ok {
		return nil, sheetNotFound(id)
	}
	return sheet, nil
}

func (wb *Workbook) activeSheet() *Sheet {
	sheet, _ := wb.sheets.get(wb.active)
	return sheet
}

// GetCell returns a copy of the cell at coord on the active sheet. reads
// are lenient: coordinates outside the grid read as empty, the way
// formulas see them. use LookupCell to reject them.
func (wb *Workbook) GetCell(coord CellCoord) (Cell, bool) {
	return wb.activeSheet().cells.Get(coord)
}

// LookupCell is GetCell that fails with an OutOfRange error for
// coordinates outside the grid
func (wb *Workbook) LookupCell(coord CellCoord) (Cell, bool, error) {
	return wb.activeSheet().cells.Lookup(coord)
}

// SetCell replaces the raw text at coord on the active sheet
func (wb *Workbook) SetCell(coord CellCoord, rawValue string) error {
	return wb.Execute(SetCellCommand{Coord: coord, RawValue: rawValue})
}

// SetStyle merges style into the cell at coord on the active sheet
func (wb *Workbook) SetStyle(coord CellCoord, style Style) error {
	return wb.Execute(StyleRangeCommand{Range: SingleCell(coord), Style: style, Label: "style " + coord.String()})
}

// Value returns the displayed value at coord on the active sheet,
// evaluating formulas on demand
func (wb *Workbook) Value(coord CellCoord) Primitive {
	return wb.valueIn(wb.activeSheet(), coord)
}

// Display returns the displayed text at coord on the active sheet
func (wb *Workbook) Display(coord CellCoord) string {
	return FormatValue(wb.Value(coord))
}

// ValueIn is Value for any sheet
func (wb *Workbook) ValueIn(id SheetID, coord CellCoord) (Primitive, error) {
	sheet, err := wb.sheet(id)
	if err != nil {
		return nil, err
	}
	return wb.valueIn(sheet, coord), nil
}

func (wb *Workbook) valueIn(sheet *Sheet, coord CellCoord) Primitive {
	return wb.engine.Value(coord, sheet.cells.Raw(coord), sheet.cells.Raw)
}

// Evaluate evaluates formula text against the active sheet without storing
// it anywhere
func (wb *Workbook) Evaluate(formula string) (Primitive, error) {
	return wb.engine.Evaluate(formula, wb.activeSheet().cells.Raw)
}

// AffectedCells lists formula cells on the active sheet whose displayed
// value may change when coord changes
func (wb *Workbook) AffectedCells(coord CellCoord) []CellCoord {
	return wb.activeSheet().refs.AffectedCells(coord)
}

// Bounds returns the full grid range
func (wb *Workbook) Bounds() CellRange {
	return wb.activeSheet().cells.Bounds()
}

// Execute runs a command against the active sheet as one history group
func (wb *Workbook) Execute(cmd Command) error {
	return wb.ExecuteOn(wb.active, cmd)
}

// ExecuteOn runs a command against a given sheet as one history group. a
// failing command leaves the sheet as it was and records nothing.
func (wb *Workbook) ExecuteOn(id SheetID, cmd Command) error {
	sheet, err := wb.sheet(id)
	if err != nil {
		return err
	}

	m := newMutator(sheet, func(coord CellCoord) Primitive {
		return wb.valueIn(sheet, coord)
	})
	if err := cmd.Apply(m); err != nil {
		m.rollback()
		return err
	}

	wb.history.Push(wb.ctx, CommandGroup{
		ID:      uuid.Must(uuid.NewV7()).String(),
		Label:   cmd.Name(),
		Entries: m.finish(),
	})
	return nil
}

func (wb *Workbook) FillRange(r CellRange, values []string) error {
	return wb.Execute(FillRangeCommand{Range: r, Values: values})
}

func (wb *Workbook) ColorRange(r CellRange, style Style) error {
	return wb.Execute(StyleRangeCommand{Range: r, Style: style, Label: "color " + r.String()})
}

func (wb *Workbook) ClearRange(r CellRange) error {
	return wb.Execute(ClearRangeCommand{Range: r})
}

func (wb *Workbook) ReplaceRect(topLeft CellCoord, grid [][]string) error {
	return wb.Execute(ReplaceRectCommand{TopLeft: topLeft, Grid: grid})
}

func (wb *Workbook) AutoSum(r CellRange) error {
	return wb.Execute(AutoSumCommand{Range: r})
}

func (wb *Workbook) ToggleBorder(r CellRange, value string) error {
	return wb.Execute(ToggleBorderCommand{Range: r, Value: value})
}

func (wb *Workbook) FillDown(anchor CellCoord, count int) error {
	return wb.Execute(FillDownCommand{Anchor: anchor, Count: count})
}

func (wb *Workbook) Merge(r CellRange) error {
	return wb.Execute(MergeCommand{Range: r})
}

func (wb *Workbook) Unmerge(r CellRange) error {
	return wb.Execute(UnmergeCommand{Range: r})
}

// Undo reverses the newest command group. it reports false when there was
// nothing to undo.
func (wb *Workbook) Undo() bool {
	group, ok := wb.history.popUndo()
	if !ok {
		return false
	}
	for i := len(group.Entries) - 1; i >= 0; i-- {
		entry := group.Entries[i]
		wb.restore(group, entry, entry.Before)
	}
	return true
}

// Redo re-applies the newest undone group. it reports false when there was
// nothing to redo.
func (wb *Workbook) Redo() bool {
	group, ok := wb.history.popRedo()
	if !ok {
		return false
	}
	for _, entry := range group.Entries {
		wb.restore(group, entry, entry.After)
	}
	return true
}

func (wb *Workbook) restore(group CommandGroup, entry UndoEntry, state *Cell) {
	sheet, ok := wb.sheets.get(entry.Sheet)
	if !ok {
		alog.Warnf(wb.ctx, "history: %q targets removed sheet %d, skipping %s", group.Label, entry.Sheet, entry.Coord)
		return
	}
	restoreCell(sheet, entry.Coord, state)
}

func (wb *Workbook) CanUndo() bool {
	return wb.history.CanUndo()
}

func (wb *Workbook) CanRedo() bool {
	return wb.history.CanRedo()
}

// History exposes the undo/redo stacks for inspection
func (wb *Workbook) History() *CommandHistory {
	return wb.history
}

// SerializeSheet returns every non-empty cell of a sheet in row-major order
func (wb *Workbook) SerializeSheet(id SheetID) ([]CellEntry, error) {
	sheet, err := wb.sheet(id)
	if err != nil {
		return nil, err
	}
	return sheet.cells.Entries(), nil
}

// LoadSheet replaces a sheet's cells with entries and clears history, so
// the loaded state becomes the new baseline. nothing changes if any entry
// is out of range.
func (wb *Workbook) LoadSheet(id SheetID, entries []CellEntry) error {
	sheet, err := wb.sheet(id)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if err := sheet.cells.CheckBounds(entry.Coord); err != nil {
			return err
		}
	}

	sheet.reset()
	for _, entry := range entries {
		// bounds were checked above
		_ = sheet.put(entry.Coord, entry.Cell)
	}
	wb.history.Clear()
	return nil
}

// SetValidation attaches a dropdown list to coord on the active sheet
func (wb *Workbook) SetValidation(coord CellCoord, allowedValues []string) error {
	sheet := wb.activeSheet()
	if err := sheet.cells.CheckBounds(coord); err != nil {
		return err
	}
	if len(allowedValues) == 0 {
		return NewApplicationError(InvalidArgument, "validation list must not be empty")
	}
	sheet.validations.Set(coord, allowedValues)
	return nil
}

func (wb *Workbook) GetValidation(coord CellCoord) (ValidationRule, bool) {
	return wb.activeSheet().validations.Get(coord)
}

func (wb *Workbook) ClearValidation(coord CellCoord) {
	wb.activeSheet().validations.Clear(coord)
}

func (wb *Workbook) ClearValidations() {
	wb.activeSheet().validations.ClearAll()
}

// IsAllowed reports whether value passes the validation at coord on the
// active sheet
func (wb *Workbook) IsAllowed(coord CellCoord, value string) bool {
	return wb.activeSheet().validations.IsAllowed(coord, value)
}

// Validations returns every rule on a sheet, row-major
func (wb *Workbook) Validations(id SheetID) (map[CellCoord]ValidationRule, []CellCoord, error) {
	sheet, err := wb.sheet(id)
	if err != nil {
		return nil, nil, err
	}
	coords := sheet.validations.Coords()
	rules := make(map[CellCoord]ValidationRule, len(coords))
	for _, coord := range coords {
		rules[coord], _ = sheet.validations.Get(coord)
	}
	return rules, coords, nil
}

// AddFormatRule appends a conditional format rule to the active sheet
func (wb *Workbook) AddFormatRule(r CellRange, predicate Predicate, style Style) error {
	sheet := wb.activeSheet()
	if err := sheet.cells.CheckRange(r); err != nil {
		return err
	}
	if predicate == nil {
		return NewApplicationError(InvalidArgument, "format rule needs a predicate")
	}
	sheet.formats.AddRule(r, predicate, style)
	return nil
}

func (wb *Workbook) ClearFormatRules() {
	wb.activeSheet().formats.Clear()
}

// FormatRules returns a sheet's conditional format rules in order
func (wb *Workbook) FormatRules(id SheetID) ([]ConditionalFormatRule, error) {
	sheet, err := wb.sheet(id)
	if err != nil {
		return nil, err
	}
	return sheet.formats.Rules(), nil
}

// EvaluateFormats runs every conditional format rule of a sheet against its
// current values
func (wb *Workbook) EvaluateFormats(id SheetID) (map[CellCoord]Style, error) {
	sheet, err := wb.sheet(id)
	if err != nil {
		return nil, err
	}
	return sheet.formats.EvaluateAll(func(coord CellCoord) Primitive {
		return wb.valueIn(sheet, coord)
	}), nil
}

// RenderStyles returns the style each cell should be painted with: its own
// style with any matching conditional style applied on top
func (wb *Workbook) RenderStyles(id SheetID) (map[CellCoord]Style, error) {
	sheet, err := wb.sheet(id)
	if err != nil {
		return nil, err
	}
	conditional, err := wb.EvaluateFormats(id)
	if err != nil {
		return nil, err
	}

	styles := make(map[CellCoord]Style)
	for _, entry := range sheet.cells.Entries() {
		if len(entry.Cell.Style) > 0 {
			styles[entry.Coord] = entry.Cell.Style
		}
	}
	for coord, style := range conditional {
		if merged := styles[coord].Merge(style); merged != nil {
			styles[coord] = merged
		}
	}
	return styles, nil
}

// RunnableWorkbook provides a chainable interface for workbook operations.
// it wraps a Workbook and tracks the first error internally
type RunnableWorkbook struct {
	workbook *Workbook
	err      error
	printLn  func(string)
}

// NewRunnableWorkbook creates a new RunnableWorkbook. printLn is used by
// Log and CheckError
func NewRunnableWorkbook(opts Options, printLn func(string)) *RunnableWorkbook {
	return &RunnableWorkbook{
		workbook: NewWorkbook(opts),
		printLn:  printLn,
	}
}

// Set sets a cell's raw text by A1 reference (chainable)
func (r *RunnableWorkbook) Set(ref string, raw string) *RunnableWorkbook {
	return r.do(func(wb *Workbook) error {
		coord, err := ParseCellRef(ref)
		if err != nil {
			return err
		}
		return wb.SetCell(coord, raw)
	})
}

// Style merges a style into every cell of a range (chainable)
func (r *RunnableWorkbook) Style(rangeRef string, style Style) *RunnableWorkbook {
	return r.do(func(wb *Workbook) error {
		rng, err := ParseRange(rangeRef)
		if err != nil {
			return err
		}
		return wb.ColorRange(rng, style)
	})
}

// Exec runs an arbitrary command (chainable)
func (r *RunnableWorkbook) Exec(cmd Command) *RunnableWorkbook {
	return r.do(func(wb *Workbook) error {
		return wb.Execute(cmd)
	})
}

// Undo undoes n groups (chainable)
func (r *RunnableWorkbook) Undo(n int) *RunnableWorkbook {
	return r.do(func(wb *Workbook) error {
		for range n {
			wb.Undo()
		}
		return nil
	})
}

// Redo redoes n groups (chainable)
func (r *RunnableWorkbook) Redo(n int) *RunnableWorkbook {
	return r.do(func(wb *Workbook) error {
		for range n {
			wb.Redo()
		}
		return nil
	})
}

func (r *RunnableWorkbook) do(fn func(*Workbook) error) *RunnableWorkbook {
	if r.err != nil {
		return r // no-op if there's already an error
	}
	r.err = fn(r.workbook)
	return r
}

// Value returns the displayed value at an A1 reference
func (r *RunnableWorkbook) Value(ref string) Primitive {
	if r.err != nil {
		return nil
	}
	coord, err := ParseCellRef(ref)
	if err != nil {
		r.err = err
		return nil
	}
	return r.workbook.Value(coord)
}

// Display returns the displayed text at an A1 reference
func (r *RunnableWorkbook) Display(ref string) string {
	return FormatValue(r.Value(ref))
}

// Log prints the displayed value at an A1 reference (chainable)
func (r *RunnableWorkbook) Log(ref string) *RunnableWorkbook {
	value := r.Value(ref)
	if r.err != nil {
		return r
	}
	if value == nil {
		r.printLn(fmt.Sprintf("%s: <empty>", ref))
	} else {
		r.printLn(fmt.Sprintf("%s: %s", ref, FormatValue(value)))
	}
	return r
}

// CheckError logs the current error state (chainable)
func (r *RunnableWorkbook) CheckError() *RunnableWorkbook {
	if r.err != nil {
		r.printLn(fmt.Sprintf("ERROR: %v", r.err))
	} else {
		r.printLn("No errors")
	}
	return r
}

// Error returns the current error state
func (r *RunnableWorkbook) Error() error {
	return r.err
}

// Run returns the workbook and the first error raised in the chain
func (r *RunnableWorkbook) Run() (*Workbook, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.workbook, nil
}
