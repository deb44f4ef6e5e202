package spreadsheet

import (
	"fmt"
	"strings"
)

// TokenType represents different types of tokens in formulas
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenNumber
	TokenString
	TokenBoolean
	TokenCell
	TokenIdent
	TokenLeftParen
	TokenRightParen
	TokenSeparator
	TokenOp
	TokenColon
	TokenError
)

var tokenNames = map[TokenType]string{
	TokenEOF:        "end of formula",
	TokenNumber:     "number",
	TokenString:     "string",
	TokenBoolean:    "boolean",
	TokenCell:       "cell reference",
	TokenIdent:      "function name",
	TokenLeftParen:  "'('",
	TokenRightParen: "')'",
	TokenSeparator:  "argument separator",
	TokenOp:         "operator",
	TokenColon:      "':'",
	TokenError:      "error literal",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("token(%d)", int(t))
}

// character classification constants. slightly easier to read.
const (
	charNull       = 0
	charTab        = '\t'
	charNewline    = '\n'
	charReturn     = '\r'
	charSpace      = ' '
	charQuote      = '"'
	charAmpersand  = '&'
	charLParen     = '('
	charRParen     = ')'
	charAsterisk   = '*'
	charPlus       = '+'
	charComma      = ','
	charSemicolon  = ';'
	charMinus      = '-'
	charPeriod     = '.'
	charSlash      = '/'
	charColon      = ':'
	charLess       = '<'
	charEqual      = '='
	charGreater    = '>'
	charCaret      = '^'
	charUnderscore = '_'
	charHash       = '#'
)

// Token represents a lexical token with position information
type Token struct {
	Type  TokenType
	Value string
	Pos   int // rune offset in the formula, including the leading '='
}

// LexError reports text the lexer could not turn into tokens
type LexError struct {
	Pos     int
	Message string
}

func (e *LexError) Error() string {
	return fmt.Sprintf("lex error at %d: %s", e.Pos, e.Message)
}

// Lexer tokenizes spreadsheet formula expressions
type Lexer struct {
	runes []rune // UTF-8 aware representation
	pos   int
}

// NewLexer creates a new lexer for the given formula input. a leading '='
// is skipped but still counted in token positions.
func NewLexer(input string) *Lexer {
	l := &Lexer{runes: []rune(input)}
	if len(l.runes) > 0 && l.runes[0] == charEqual {
		l.pos = 1
	}
	return l
}

// Tokenize tokenizes the entire input. the returned slice always ends with
// a TokenEOF on success.
func (l *Lexer) Tokenize() ([]Token, error) {
	var tokens []Token
	for {
		tok, err := l.nextToken()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF {
			return tokens, nil
		}
	}
}

// nextToken returns the next token from the input
func (l *Lexer) nextToken() (Token, error) {
	l.skipWhitespace()

	if l.pos >= len(l.runes) {
		return Token{Type: TokenEOF, Pos: l.pos}, nil
	}

	startPos := l.pos
	ch := l.current()

	if ch == charQuote {
		return l.scanString()
	}

	if isDigit(ch) || (ch == charPeriod && isDigit(l.peek(1))) {
		return l.scanNumber(), nil
	}

	switch ch {
	case charLParen:
		l.pos++
		return Token{Type: TokenLeftParen, Value: "(", Pos: startPos}, nil
	case charRParen:
		l.pos++
		return Token{Type: TokenRightParen, Value: ")", Pos: startPos}, nil
	case charComma, charSemicolon:
		l.pos++
		return Token{Type: TokenSeparator, Value: string(ch), Pos: startPos}, nil
	case charColon:
		l.pos++
		return Token{Type: TokenColon, Value: ":", Pos: startPos}, nil
	case charPlus, charMinus, charAsterisk, charSlash, charCaret, charAmpersand, charEqual:
		l.pos++
		return Token{Type: TokenOp, Value: string(ch), Pos: startPos}, nil
	case charLess, charGreater:
		return l.scanComparison(), nil
	}

	if isAlpha(ch) || ch == charUnderscore {
		return l.scanIdentifierOrCell(), nil
	}

	if ch == charHash {
		if tok, ok := l.scanErrorLiteral(); ok {
			return tok, nil
		}
	}

	return Token{}, &LexError{Pos: startPos, Message: "unexpected character: " + string(ch)}
}

// helper methods for character navigation and classification

func (l *Lexer) current() rune {
	if l.pos >= len(l.runes) {
		return charNull
	}
	return l.runes[l.pos]
}

func (l *Lexer) peek(offset int) rune {
	pos := l.pos + offset
	if pos >= len(l.runes) || pos < 0 {
		return charNull
	}
	return l.runes[pos]
}

// callFollows reports whether the next non-blank character opens an
// argument list
func (l *Lexer) callFollows() bool {
	for offset := 0; ; offset++ {
		switch l.peek(offset) {
		case charSpace, charTab, charNewline, charReturn:
			continue
		case charLParen:
			return true
		default:
			return false
		}
	}
}

func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.runes) {
		switch l.current() {
		case charSpace, charTab, charNewline, charReturn:
			l.pos++
		default:
			return
		}
	}
}

func isDigit(ch rune) bool {
	return ch >= '0' && ch <= '9'
}

func isAlpha(ch rune) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isAlphaNumeric(ch rune) bool {
	return isAlpha(ch) || isDigit(ch)
}

// scanNumber scans a number token including decimals and scientific notation
func (l *Lexer) scanNumber() Token {
	startPos := l.pos

	for isDigit(l.current()) {
		l.pos++
	}

	if l.current() == charPeriod && isDigit(l.peek(1)) {
		l.pos++ // consume '.'
		for isDigit(l.current()) {
			l.pos++
		}
	}

	if l.current() == 'e' || l.current() == 'E' {
		savedPos := l.pos
		l.pos++

		if l.current() == charPlus || l.current() == charMinus {
			l.pos++
		}

		if !isDigit(l.current()) {
			// not scientific notation, restore position
			l.pos = savedPos
		} else {
			for isDigit(l.current()) {
				l.pos++
			}
		}
	}

	return Token{Type: TokenNumber, Value: string(l.runes[startPos:l.pos]), Pos: startPos}
}

// scanString scans a string literal with support for doubled-quote
// escapes. literal case is preserved.
func (l *Lexer) scanString() (Token, error) {
	startPos := l.pos
	l.pos++ // consume opening quote

	var result strings.Builder
	for l.pos < len(l.runes) {
		ch := l.current()
		if ch != charQuote {
			result.WriteRune(ch)
			l.pos++
			continue
		}
		if l.peek(1) == charQuote {
			result.WriteRune(charQuote)
			l.pos += 2
			continue
		}
		l.pos++ // consume closing quote
		return Token{Type: TokenString, Value: result.String(), Pos: startPos}, nil
	}

	return Token{}, &LexError{Pos: startPos, Message: "unterminated string literal"}
}

// scanComparison scans <, <=, <>, >, >=
func (l *Lexer) scanComparison() Token {
	startPos := l.pos
	ch := l.current()
	l.pos++

	next := l.current()
	switch {
	case ch == charLess && next == charEqual:
		l.pos++
		return Token{Type: TokenOp, Value: "<=", Pos: startPos}
	case ch == charLess && next == charGreater:
		l.pos++
		return Token{Type: TokenOp, Value: "<>", Pos: startPos}
	case ch == charGreater && next == charEqual:
		l.pos++
		return Token{Type: TokenOp, Value: ">=", Pos: startPos}
	}
	return Token{Type: TokenOp, Value: string(ch), Pos: startPos}
}

// scanIdentifierOrCell scans function names, cell references and booleans.
// identifiers are uppercased.
func (l *Lexer) scanIdentifierOrCell() Token {
	startPos := l.pos

	for isAlphaNumeric(l.current()) || l.current() == charUnderscore || l.current() == charPeriod {
		l.pos++
	}

	value := strings.ToUpper(string(l.runes[startPos:l.pos]))

	if value == "TRUE" || value == "FALSE" {
		return Token{Type: TokenBoolean, Value: value, Pos: startPos}
	}

	// LOG10( is a function name even though it reads like a cell
	if _, _, ok := splitCellRef(value); ok && !l.callFollows() {
		return Token{Type: TokenCell, Value: value, Pos: startPos}
	}

	return Token{Type: TokenIdent, Value: value, Pos: startPos}
}

// scanErrorLiteral scans an error token such as #REF!, which appears in
// formulas whose references were shifted off the grid
func (l *Lexer) scanErrorLiteral() (Token, bool) {
	startPos := l.pos
	rest := strings.ToUpper(string(l.runes[l.pos:]))
	best := ""
	for _, token := range ErrorMapper {
		if strings.HasPrefix(rest, token) && len(token) > len(best) {
			best = token
		}
	}
	if best == "" {
		return Token{}, false
	}
	l.pos += len([]rune(best))
	return Token{Type: TokenError, Value: best, Pos: startPos}, true
}
