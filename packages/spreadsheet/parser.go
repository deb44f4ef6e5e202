package spreadsheet

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

type NodePosition struct {
	Start int
	End   int
}

// ASTNode is one node of a parsed formula. Eval walks the tree post-order;
// ToString renders canonical formula text without the leading '='.
type ASTNode interface {
	Eval(ctx *evalContext) (Primitive, error)
	GetPosition() NodePosition
	ToString() string
}

// BinaryOp identifies an infix operator
type BinaryOp int

const (
	BinOpAdd BinaryOp = iota
	BinOpSubtract
	BinOpMultiply
	BinOpDivide
	BinOpPower
	BinOpConcat
	BinOpEqual
	BinOpNotEqual
	BinOpLess
	BinOpLessEqual
	BinOpGreater
	BinOpGreaterEqual
)

var binaryOpSymbols = map[BinaryOp]string{
	BinOpAdd:          "+",
	BinOpSubtract:     "-",
	BinOpMultiply:     "*",
	BinOpDivide:       "/",
	BinOpPower:        "^",
	BinOpConcat:       "&",
	BinOpEqual:        "=",
	BinOpNotEqual:     "<>",
	BinOpLess:         "<",
	BinOpLessEqual:    "<=",
	BinOpGreater:      ">",
	BinOpGreaterEqual: ">=",
}

func (op BinaryOp) String() string {
	return binaryOpSymbols[op]
}

// UnaryOp identifies a prefix operator
type UnaryOp int

const (
	UnaryOpPlus UnaryOp = iota
	UnaryOpMinus
)

// SyntaxError reports the first token the parser could not accept
type SyntaxError struct {
	Pos      int
	Expected string
	Found    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at %d: expected %s, found %s", e.Pos, e.Expected, e.Found)
}

// LiteralNode is a constant: number, string, boolean or error literal
type LiteralNode struct {
	Value    Primitive
	Position NodePosition
}

func (n *LiteralNode) Eval(ctx *evalContext) (Primitive, error) {
	return n.Value, nil
}

func (n *LiteralNode) GetPosition() NodePosition {
	return n.Position
}

func (n *LiteralNode) ToString() string {
	if s, ok := n.Value.(string); ok {
		return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
	}
	return FormatValue(n.Value)
}

// CellRefNode references a single cell
type CellRefNode struct {
	Coord    CellCoord
	Position NodePosition
}

func (n *CellRefNode) Eval(ctx *evalContext) (Primitive, error) {
	return ctx.cellValue(n.Coord), nil
}

func (n *CellRefNode) GetPosition() NodePosition {
	return n.Position
}

func (n *CellRefNode) ToString() string {
	return n.Coord.String()
}

// RangeRefNode references a rectangle of cells. it only evaluates to
// something useful as a function argument.
type RangeRefNode struct {
	Range    CellRange
	Position NodePosition
}

func (n *RangeRefNode) Eval(ctx *evalContext) (Primitive, error) {
	return &RangeValue{bounds: n.Range, ctx: ctx}, nil
}

func (n *RangeRefNode) GetPosition() NodePosition {
	return n.Position
}

func (n *RangeRefNode) ToString() string {
	return n.Range.Start().String() + ":" + n.Range.End().String()
}

// NameNode is a bare identifier that is neither a function call nor a
// cell reference
type NameNode struct {
	Name     string
	Position NodePosition
}

func (n *NameNode) Eval(ctx *evalContext) (Primitive, error) {
	return nil, NewSpreadsheetError(ErrorCodeName, fmt.Sprintf("unknown name: %s", n.Name))
}

func (n *NameNode) GetPosition() NodePosition {
	return n.Position
}

func (n *NameNode) ToString() string {
	return n.Name
}

// BinaryOpNode represents a binary operation
type BinaryOpNode struct {
	Op       BinaryOp
	Left     ASTNode
	Right    ASTNode
	Position NodePosition
}

func (n *BinaryOpNode) Eval(ctx *evalContext) (Primitive, error) {
	leftVal := evalOperand(ctx, n.Left)
	rightVal := evalOperand(ctx, n.Right)

	// propagate errors, left first
	if err := checkForError(leftVal); err != nil {
		return nil, err
	}
	if err := checkForError(rightVal); err != nil {
		return nil, err
	}

	switch n.Op {
	case BinOpAdd, BinOpSubtract, BinOpMultiply, BinOpDivide, BinOpPower:
		leftNum, leftOk := toNumber(leftVal)
		rightNum, rightOk := toNumber(rightVal)
		if !leftOk || !rightOk {
			return nil, NewSpreadsheetError(ErrorCodeValue, fmt.Sprintf("operator %s requires numeric values", n.Op))
		}
		return arithmetic(n.Op, leftNum, rightNum)

	case BinOpConcat:
		return toString(leftVal) + toString(rightVal), nil
	}

	cmp := comparePrimitives(leftVal, rightVal)
	switch n.Op {
	case BinOpEqual:
		return cmp == 0, nil
	case BinOpNotEqual:
		return cmp != 0, nil
	case BinOpLess:
		return cmp < 0, nil
	case BinOpLessEqual:
		return cmp <= 0, nil
	case BinOpGreater:
		return cmp > 0, nil
	case BinOpGreaterEqual:
		return cmp >= 0, nil
	default:
		return nil, NewSpreadsheetError(ErrorCodeValue, "unknown operator")
	}
}

func arithmetic(op BinaryOp, left, right float64) (Primitive, error) {
	switch op {
	case BinOpAdd:
		return left + right, nil
	case BinOpSubtract:
		return left - right, nil
	case BinOpMultiply:
		return left * right, nil
	case BinOpDivide:
		if right == 0 {
			return nil, NewSpreadsheetError(ErrorCodeDiv0, "division by zero")
		}
		return left / right, nil
	case BinOpPower:
		if left == 0 && right < 0 {
			return nil, NewSpreadsheetError(ErrorCodeDiv0, "division by zero")
		}
		result := math.Pow(left, right)
		if math.IsNaN(result) || math.IsInf(result, 0) {
			return nil, NewSpreadsheetError(ErrorCodeNum, "power result is not a finite number")
		}
		return result, nil
	}
	return nil, NewSpreadsheetError(ErrorCodeValue, "unknown operator")
}

func (n *BinaryOpNode) GetPosition() NodePosition {
	return n.Position
}

func (n *BinaryOpNode) ToString() string {
	return fmt.Sprintf("(%s%s%s)", n.Left.ToString(), n.Op, n.Right.ToString())
}

// UnaryOpNode represents a unary operation
type UnaryOpNode struct {
	Op       UnaryOp
	Operand  ASTNode
	Position NodePosition
}

func (n *UnaryOpNode) Eval(ctx *evalContext) (Primitive, error) {
	val := evalOperand(ctx, n.Operand)
	if err := checkForError(val); err != nil {
		return nil, err
	}

	num, ok := toNumber(val)
	if !ok {
		return nil, NewSpreadsheetError(ErrorCodeValue, "unary operator requires a numeric value")
	}
	if n.Op == UnaryOpMinus {
		return -num, nil
	}
	return num, nil
}

func (n *UnaryOpNode) GetPosition() NodePosition {
	return n.Position
}

func (n *UnaryOpNode) ToString() string {
	if n.Op == UnaryOpMinus {
		return "-" + n.Operand.ToString()
	}
	return "+" + n.Operand.ToString()
}

// FunctionCallNode represents a function call
type FunctionCallNode struct {
	Name     string
	Args     []ASTNode
	Position NodePosition
}

func (n *FunctionCallNode) Eval(ctx *evalContext) (Primitive, error) {
	// ranges pass through untouched here; functions decide how to read them.
	// errors are passed as values too.
	args := make([]any, len(n.Args))
	for i, argNode := range n.Args {
		argVal, err := argNode.Eval(ctx)
		if err != nil {
			args[i] = asSpreadsheetError(err)
			continue
		}
		args[i] = argVal
	}

	result, err := ctx.functions.Call(n.Name, args...)
	if err != nil {
		return nil, asSpreadsheetError(err)
	}
	if _, isRange := result.(*RangeValue); isRange {
		// IF can hand back a range argument
		return nil, NewSpreadsheetError(ErrorCodeValue, "range used where a single value is required")
	}
	return result, nil
}

func (n *FunctionCallNode) GetPosition() NodePosition {
	return n.Position
}

func (n *FunctionCallNode) ToString() string {
	args := make([]string, len(n.Args))
	for i, arg := range n.Args {
		args[i] = arg.ToString()
	}
	return fmt.Sprintf("%s(%s)", n.Name, strings.Join(args, ","))
}

// evalOperand evaluates a node used as a scalar operand. evaluation errors
// become error values, and a range in scalar position is #VALUE!.
func evalOperand(ctx *evalContext, node ASTNode) Primitive {
	val, err := node.Eval(ctx)
	if err != nil {
		return asSpreadsheetError(err)
	}
	if _, isRange := val.(*RangeValue); isRange {
		return NewSpreadsheetError(ErrorCodeValue, "range used where a single value is required")
	}
	return val
}

// asSpreadsheetError converts any evaluation error into an error value
func asSpreadsheetError(err error) *SpreadsheetError {
	if spreadsheetErr, ok := err.(*SpreadsheetError); ok {
		return spreadsheetErr
	}
	return NewSpreadsheetError(ErrorCodeValue, err.Error())
}

// Parser parses tokens into an AST
type Parser struct {
	tokens []Token
	pos    int
}

// NewParser creates a new parser over a token slice ending in TokenEOF
func NewParser(tokens []Token) *Parser {
	return &Parser{tokens: tokens}
}

// ParseFormula tokenizes and parses formula text, with or without the
// leading '='
func ParseFormula(formula string) (ASTNode, error) {
	tokens, err := NewLexer(formula).Tokenize()
	if err != nil {
		return nil, err
	}
	return NewParser(tokens).Parse()
}

// Parse parses the tokens into an AST
func (p *Parser) Parse() (ASTNode, error) {
	if p.current().Type == TokenEOF {
		return nil, p.unexpected("expression")
	}

	node, err := p.parseComparison()
	if err != nil {
		return nil, err
	}

	if p.current().Type != TokenEOF {
		return nil, p.unexpected("operator or end of formula")
	}

	return node, nil
}

// current returns the token under the cursor; past the end it keeps
// returning the trailing EOF
func (p *Parser) current() Token {
	if p.pos >= len(p.tokens) {
		if len(p.tokens) == 0 {
			return Token{Type: TokenEOF}
		}
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[p.pos]
}

func (p *Parser) unexpected(expected string) *SyntaxError {
	tok := p.current()
	found := tok.Type.String()
	if tok.Value != "" {
		found = fmt.Sprintf("%q", tok.Value)
	}
	return &SyntaxError{Pos: tok.Pos, Expected: expected, Found: found}
}

// matchOp consumes the current token if it is one of the given operators
func (p *Parser) matchOp(ops ...string) (Token, bool) {
	tok := p.current()
	if tok.Type != TokenOp {
		return tok, false
	}
	for _, op := range ops {
		if tok.Value == op {
			p.pos++
			return tok, true
		}
	}
	return tok, false
}

var comparisonOps = map[string]BinaryOp{
	"=":  BinOpEqual,
	"<>": BinOpNotEqual,
	"<":  BinOpLess,
	"<=": BinOpLessEqual,
	">":  BinOpGreater,
	">=": BinOpGreaterEqual,
}

// parseComparison handles comparison operators (lowest precedence)
func (p *Parser) parseComparison() (ASTNode, error) {
	left, err := p.parseConcatenation()
	if err != nil {
		return nil, err
	}

	for {
		tok, ok := p.matchOp("=", "<>", "<", "<=", ">", ">=")
		if !ok {
			return left, nil
		}
		right, err := p.parseConcatenation()
		if err != nil {
			return nil, err
		}
		left = newBinaryOp(comparisonOps[tok.Value], left, right)
	}
}

// parseConcatenation handles the & operator
func (p *Parser) parseConcatenation() (ASTNode, error) {
	left, err := p.parseAddition()
	if err != nil {
		return nil, err
	}

	for {
		if _, ok := p.matchOp("&"); !ok {
			return left, nil
		}
		right, err := p.parseAddition()
		if err != nil {
			return nil, err
		}
		left = newBinaryOp(BinOpConcat, left, right)
	}
}

// parseAddition handles addition and subtraction
func (p *Parser) parseAddition() (ASTNode, error) {
	left, err := p.parseMultiplication()
	if err != nil {
		return nil, err
	}

	for {
		tok, ok := p.matchOp("+", "-")
		if !ok {
			return left, nil
		}
		right, err := p.parseMultiplication()
		if err != nil {
			return nil, err
		}
		op := BinOpAdd
		if tok.Value == "-" {
			op = BinOpSubtract
		}
		left = newBinaryOp(op, left, right)
	}
}

// parseMultiplication handles multiplication and division
func (p *Parser) parseMultiplication() (ASTNode, error) {
	left, err := p.parsePower()
	if err != nil {
		return nil, err
	}

	for {
		tok, ok := p.matchOp("*", "/")
		if !ok {
			return left, nil
		}
		right, err := p.parsePower()
		if err != nil {
			return nil, err
		}
		op := BinOpMultiply
		if tok.Value == "/" {
			op = BinOpDivide
		}
		left = newBinaryOp(op, left, right)
	}
}

// parsePower handles exponentiation
func (p *Parser) parsePower() (ASTNode, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}

	// right-associative
	if _, ok := p.matchOp("^"); ok {
		right, err := p.parsePower()
		if err != nil {
			return nil, err
		}
		return newBinaryOp(BinOpPower, left, right), nil
	}

	return left, nil
}

// parseUnary handles unary operators, which bind tighter than ^
func (p *Parser) parseUnary() (ASTNode, error) {
	tok, ok := p.matchOp("+", "-")
	if !ok {
		return p.parsePrimary()
	}

	operand, err := p.parseUnary() // recurse for chained unary operators
	if err != nil {
		return nil, err
	}

	op := UnaryOpPlus
	if tok.Value == "-" {
		op = UnaryOpMinus
	}
	return &UnaryOpNode{
		Op:       op,
		Operand:  operand,
		Position: NodePosition{Start: tok.Pos, End: operand.GetPosition().End},
	}, nil
}

// parsePrimary handles primary expressions (literals, references,
// functions, parentheses)
func (p *Parser) parsePrimary() (ASTNode, error) {
	tok := p.current()
	span := NodePosition{Start: tok.Pos, End: tok.Pos + len([]rune(tok.Value))}

	switch tok.Type {
	case TokenNumber:
		p.pos++
		val, err := strconv.ParseFloat(tok.Value, 64)
		if err != nil || math.IsInf(val, 0) {
			return nil, &SyntaxError{Pos: tok.Pos, Expected: "number", Found: fmt.Sprintf("%q", tok.Value)}
		}
		return &LiteralNode{Value: val, Position: span}, nil

	case TokenString:
		p.pos++
		// the token value is unescaped, so the span is recomputed from the quotes
		span.End = tok.Pos + len([]rune(strings.ReplaceAll(tok.Value, `"`, `""`))) + 2
		return &LiteralNode{Value: tok.Value, Position: span}, nil

	case TokenBoolean:
		p.pos++
		return &LiteralNode{Value: tok.Value == "TRUE", Position: span}, nil

	case TokenError:
		p.pos++
		code, _ := errorCodeForToken(tok.Value)
		return &LiteralNode{Value: NewSpreadsheetError(code, ""), Position: span}, nil

	case TokenCell:
		return p.parseReference()

	case TokenIdent:
		p.pos++
		if p.current().Type == TokenLeftParen {
			return p.parseFunctionCall(tok)
		}
		return &NameNode{Name: tok.Value, Position: span}, nil

	case TokenLeftParen:
		p.pos++
		node, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		if p.current().Type != TokenRightParen {
			return nil, p.unexpected("')'")
		}
		p.pos++
		return node, nil

	default:
		return nil, p.unexpected("value")
	}
}

// parseReference parses CELL or CELL COLON CELL
func (p *Parser) parseReference() (ASTNode, error) {
	startTok := p.current()
	start, err := p.parseCellToken()
	if err != nil {
		return nil, err
	}

	if p.current().Type != TokenColon {
		return &CellRefNode{
			Coord:    start,
			Position: NodePosition{Start: startTok.Pos, End: startTok.Pos + len(startTok.Value)},
		}, nil
	}
	p.pos++ // consume ':'

	endTok := p.current()
	if endTok.Type != TokenCell {
		return nil, p.unexpected("cell reference")
	}
	end, err := p.parseCellToken()
	if err != nil {
		return nil, err
	}

	return &RangeRefNode{
		Range:    NewCellRange(start, end),
		Position: NodePosition{Start: startTok.Pos, End: endTok.Pos + len(endTok.Value)},
	}, nil
}

func (p *Parser) parseCellToken() (CellCoord, error) {
	tok := p.current()
	coord, err := ParseCellRef(tok.Value)
	if err != nil {
		return CellCoord{}, &SyntaxError{Pos: tok.Pos, Expected: "valid cell reference", Found: fmt.Sprintf("%q", tok.Value)}
	}
	p.pos++
	return coord, nil
}

// parseFunctionCall parses the argument list after a function name. either
// ',' or ';' separates arguments.
func (p *Parser) parseFunctionCall(nameTok Token) (ASTNode, error) {
	p.pos++ // consume '('

	args := []ASTNode{}
	if p.current().Type == TokenRightParen {
		p.pos++
		return &FunctionCallNode{
			Name:     nameTok.Value,
			Args:     args,
			Position: NodePosition{Start: nameTok.Pos, End: p.tokens[p.pos-1].Pos + 1},
		}, nil
	}

	for {
		arg, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)

		switch p.current().Type {
		case TokenRightParen:
			p.pos++
			return &FunctionCallNode{
				Name:     nameTok.Value,
				Args:     args,
				Position: NodePosition{Start: nameTok.Pos, End: p.tokens[p.pos-1].Pos + 1},
			}, nil
		case TokenSeparator:
			p.pos++
		default:
			return nil, p.unexpected("',' or ')' in function arguments")
		}
	}
}

func newBinaryOp(op BinaryOp, left, right ASTNode) *BinaryOpNode {
	return &BinaryOpNode{
		Op:       op,
		Left:     left,
		Right:    right,
		Position: NodePosition{Start: left.GetPosition().Start, End: right.GetPosition().End},
	}
}

// comparePrimitives compares two primitive values. returns -1 if left <
// right, 0 if equal, 1 if left > right. numbers sort before text, text
// before booleans; text compares case-insensitively.
func comparePrimitives(left, right Primitive) int {
	// an empty cell compares as 0 against numbers and "" against text
	if left == nil {
		left = emptyLike(right)
	}
	if right == nil {
		right = emptyLike(left)
	}

	rank := func(v Primitive) int {
		switch v.(type) {
		case float64:
			return 0
		case string:
			return 1
		case bool:
			return 2
		default:
			return 3
		}
	}
	if lr, rr := rank(left), rank(right); lr != rr {
		if lr < rr {
			return -1
		}
		return 1
	}

	switch l := left.(type) {
	case float64:
		r := right.(float64)
		switch {
		case l < r:
			return -1
		case l > r:
			return 1
		}
		return 0
	case bool:
		r := right.(bool)
		switch {
		case l == r:
			return 0
		case !l:
			return -1
		}
		return 1
	case string:
		return strings.Compare(foldText(l), foldText(right.(string)))
	}
	return strings.Compare(toString(left), toString(right))
}

func emptyLike(other Primitive) Primitive {
	switch other.(type) {
	case string:
		return ""
	case bool:
		return false
	default:
		return 0.0
	}
}
