package spreadsheet

import (
	"errors"
	"iter"
	"math"
	"strings"
)

// Resolver returns the raw text stored at a coordinate, "" for empty cells
type Resolver func(CellCoord) string

// Engine evaluates formula text against an injected resolver. it holds no
// grid state of its own, only a cache of parsed formulas, so it is not safe
// for concurrent use.
type Engine struct {
	functions *BuiltInFunctions
	formulas  *FormulaTable
}

// NewEngine creates an engine whose time functions read the given clock. a
// nil clock uses wall time.
func NewEngine(clock Clock) *Engine {
	return &Engine{
		functions: NewBuiltInFunctions(clock),
		formulas:  NewFormulaTable(DefaultFormulaCacheSize),
	}
}

// Formulas exposes the parse cache
func (e *Engine) Formulas() *FormulaTable {
	return e.formulas
}

// Evaluate parses and evaluates formula text. every failure is returned as
// a *SpreadsheetError carrying the display token; lex and syntax failures
// map to #ERROR! and keep the underlying error as the cause.
func (e *Engine) Evaluate(formula string, resolve Resolver) (Primitive, error) {
	return splitResult(e.compute(newCalculationStack(), formula, resolve))
}

// EvaluateAt evaluates a formula stored at origin, so a reference back to
// origin is reported as a cycle
func (e *Engine) EvaluateAt(origin CellCoord, formula string, resolve Resolver) (Primitive, error) {
	stack := newCalculationStack()
	stack.push(origin)
	return splitResult(e.compute(stack, formula, resolve))
}

// Value returns what a cell displays given its raw text: literals are
// coerced, formulas are evaluated, and failures become error values
func (e *Engine) Value(origin CellCoord, raw string, resolve Resolver) Primitive {
	if !IsFormula(raw) {
		return literalValue(raw)
	}
	stack := newCalculationStack()
	stack.push(origin)
	return e.compute(stack, raw, resolve)
}

func splitResult(value Primitive) (Primitive, error) {
	if err := checkForError(value); err != nil {
		return nil, err
	}
	return value, nil
}

func (e *Engine) compute(stack *CalculationStack, formula string, resolve Resolver) Primitive {
	ctx := &evalContext{
		functions: e.functions,
		formulas:  e.formulas,
		resolve:   resolve,
		stack:     stack,
	}
	return ctx.evaluateFormula(formula)
}

// evalContext carries per-call evaluation state through the AST
type evalContext struct {
	functions *BuiltInFunctions
	formulas  *FormulaTable
	resolve   Resolver
	stack     *CalculationStack
}

func (c *evalContext) evaluateFormula(formula string) Primitive {
	node, err := c.formulas.Parse(formula)
	if err != nil {
		return &SpreadsheetError{ErrorCode: ErrorCodeOther, Message: err.Error(), Cause: err}
	}

	value, err := node.Eval(c)
	if err != nil {
		return asSpreadsheetError(err)
	}

	switch v := value.(type) {
	case *RangeValue:
		return NewSpreadsheetError(ErrorCodeValue, "range used where a single value is required")
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return NewSpreadsheetError(ErrorCodeNum, "result is not a finite number")
		}
	case nil:
		// a bare reference to an empty cell shows 0
		return 0.0
	}
	return value
}

// cellValue reads a referenced cell's displayed value. formula cells are
// evaluated recursively; revisiting a cell already on the stack is a cycle.
func (c *evalContext) cellValue(coord CellCoord) Primitive {
	raw := c.resolve(coord)
	if !IsFormula(raw) {
		return literalValue(raw)
	}

	if c.stack.isProcessing(coord) {
		return NewSpreadsheetError(ErrorCodeCycle, "circular reference at "+coord.String())
	}
	c.stack.push(coord)
	defer c.stack.pop()

	return c.evaluateFormula(raw)
}

// CalculationStack tracks the chain of formula cells being evaluated in one
// call, for cycle detection
type CalculationStack struct {
	items      []CellCoord            // cells in evaluation order
	processing map[CellCoord]struct{} // currently being processed
}

func newCalculationStack() *CalculationStack {
	return &CalculationStack{
		processing: make(map[CellCoord]struct{}),
	}
}

// push adds a cell to the stack
func (cs *CalculationStack) push(coord CellCoord) {
	cs.items = append(cs.items, coord)
	cs.processing[coord] = struct{}{}
}

// pop removes and returns the top cell from the stack
func (cs *CalculationStack) pop() (CellCoord, bool) {
	if len(cs.items) == 0 {
		return CellCoord{}, false
	}
	coord := cs.items[len(cs.items)-1]
	cs.items = cs.items[:len(cs.items)-1]
	delete(cs.processing, coord)
	return coord, true
}

// isProcessing checks if a cell is currently being processed
func (cs *CalculationStack) isProcessing(coord CellCoord) bool {
	_, exists := cs.processing[coord]
	return exists
}

// Range is a lazily read rectangle of cell values handed to functions
type Range interface {
	Bounds() CellRange
	IterateValues() iter.Seq[Primitive]
}

// RangeValue is the Range produced by evaluating a range reference
type RangeValue struct {
	bounds CellRange
	ctx    *evalContext
}

func (r *RangeValue) Bounds() CellRange {
	return r.bounds
}

// IterateValues yields the displayed value of every cell in row-major
// order, empty cells included as nil
func (r *RangeValue) IterateValues() iter.Seq[Primitive] {
	return func(yield func(Primitive) bool) {
		for coord := range r.bounds.Enumerate() {
			if !yield(r.ctx.cellValue(coord)) {
				return
			}
		}
	}
}

// IsParseError reports whether err comes from malformed formula text
func IsParseError(err error) bool {
	var lexErr *LexError
	var syntaxErr *SyntaxError
	return errors.As(err, &lexErr) || errors.As(err, &syntaxErr)
}

// References returns every cell and range a formula reads, in source
// order. malformed formulas reference nothing.
func References(formula string) (cells []CellCoord, ranges []CellRange) {
	node, err := ParseFormula(formula)
	if err != nil {
		return nil, nil
	}
	var walk func(ASTNode)
	walk = func(n ASTNode) {
		switch node := n.(type) {
		case *CellRefNode:
			cells = append(cells, node.Coord)
		case *RangeRefNode:
			ranges = append(ranges, node.Range)
		case *BinaryOpNode:
			walk(node.Left)
			walk(node.Right)
		case *UnaryOpNode:
			walk(node.Operand)
		case *FunctionCallNode:
			for _, arg := range node.Args {
				walk(arg)
			}
		}
	}
	walk(node)
	return cells, ranges
}

// ShiftFormula moves every relative reference in a formula by the given
// offset, keeping the rest of the text as typed. references pushed above
// row 1 or left of column A become #REF!. text that does not tokenize is
// returned unchanged.
func ShiftFormula(formula string, dRow, dCol int) string {
	if !IsFormula(formula) || (dRow == 0 && dCol == 0) {
		return formula
	}
	tokens, err := NewLexer(formula).Tokenize()
	if err != nil {
		return formula
	}

	runes := []rune(formula)
	var out strings.Builder
	last := 0
	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		if tok.Type != TokenCell {
			continue
		}
		out.WriteString(string(runes[last:tok.Pos]))
		last = tok.Pos + len(tok.Value)

		// a range goes to #REF! as a whole if either corner falls off
		if i+2 < len(tokens) && tokens[i+1].Type == TokenColon && tokens[i+2].Type == TokenCell {
			endTok := tokens[i+2]
			start, okStart := shiftRef(tok.Value, dRow, dCol)
			end, okEnd := shiftRef(endTok.Value, dRow, dCol)
			if okStart && okEnd {
				out.WriteString(start + string(runes[last:endTok.Pos]) + end)
			} else {
				out.WriteString(ErrorMapper[ErrorCodeRef])
			}
			last = endTok.Pos + len(endTok.Value)
			i += 2
			continue
		}

		shifted, ok := shiftRef(tok.Value, dRow, dCol)
		if !ok {
			shifted = ErrorMapper[ErrorCodeRef]
		}
		out.WriteString(shifted)
	}
	out.WriteString(string(runes[last:]))
	return out.String()
}

func shiftRef(ref string, dRow, dCol int) (string, bool) {
	coord, err := ParseCellRef(ref)
	if err != nil {
		return ref, true
	}
	row := int64(coord.Row) + int64(dRow)
	col := int64(coord.Col) + int64(dCol)
	if row < 0 || col < 0 || row > math.MaxUint32 || col > math.MaxUint32 {
		return "", false
	}
	return CellCoord{Row: uint32(row), Col: uint32(col)}.String(), true
}
