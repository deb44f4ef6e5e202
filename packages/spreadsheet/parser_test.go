package spreadsheet

import (
	"errors"
	"testing"
)

func parseFormula(formula string) bool {
	_, err := ParseFormula(formula)
	return err == nil
}

func TestParserBasicFormulas(t *testing.T) {
	validFormulas := []string{
		"=1+2",
		"=A1",
		"=a1",
		"=SUM(A1:A10)",
		"=SUM(B2:A1)",
		"=SUM(A1:A1)",
		"=SUM(A1:Z1000)",
		"=SUM(1;2;3)",
		"=IF(A1>0, \"pos\"; \"neg\")",
		"=AA1+AB2",
		"=-(-1)",
		"=2^-1",
		"=TRUE",
		"=#REF!+1",
		"=PI()",
		`="Hello 世界"`,
		`="Test 😀 emoji"`,
		`=CONCATENATE("Hello ", "世界")`,
		`="say ""hi"""`,
		"=1.5e3",
		"=.5",
		"1+2",
	}

	for _, formula := range validFormulas {
		t.Run(formula, func(t *testing.T) {
			if !parseFormula(formula) {
				t.Errorf("Failed to parse valid formula: %s", formula)
			}
		})
	}
}

func TestParserInvalidFormulas(t *testing.T) {
	invalidFormulas := []string{
		"=",
		"=SUM(",
		"=A1:",
		"=A1:5",
		`="hello`,
		"=1+",
		"=(1+2",
		"=1 2",
		"=SUM(1,,2)",
		"=A0",
		"=1 $ 2",
		"=#FOO",
	}

	for _, formula := range invalidFormulas {
		t.Run(formula, func(t *testing.T) {
			if parseFormula(formula) {
				t.Errorf("Expected formula to fail but it succeeded: %s", formula)
			}
		})
	}
}

func TestParserErrorTypes(t *testing.T) {
	_, err := ParseFormula(`="unterminated`)
	var lexErr *LexError
	if !errors.As(err, &lexErr) {
		t.Fatalf("expected LexError, got %T: %v", err, err)
	}
	if lexErr.Pos != 1 {
		t.Errorf("LexError.Pos = %d, want 1", lexErr.Pos)
	}

	_, err = ParseFormula("=SUM(1 2)")
	var syntaxErr *SyntaxError
	if !errors.As(err, &syntaxErr) {
		t.Fatalf("expected SyntaxError, got %T: %v", err, err)
	}
	if syntaxErr.Pos != 7 {
		t.Errorf("SyntaxError.Pos = %d, want 7", syntaxErr.Pos)
	}
	if syntaxErr.Expected == "" {
		t.Error("SyntaxError.Expected should name what was expected")
	}

	if !IsParseError(err) {
		t.Error("IsParseError should accept a SyntaxError")
	}
}

func TestParserPrecedence(t *testing.T) {
	tests := []struct {
		formula string
		want    string
	}{
		{"=1+2*3", "(1+(2*3))"},
		{"=(1+2)*3", "((1+2)*3)"},
		{"=10-2-3", "((10-2)-3)"},
		{"=2^3^2", "(2^(3^2))"},
		{"=-2^2", "(-2^2)"},
		{"=1+2&\"x\"", "((1+2)&\"x\")"},
		{"=1+2>2*1", "((1+2)>(2*1))"},
		{"=a1:b2", "A1:B2"},
		{"=B5:A1", "A1:B5"},
		{"=sum(a1, 2; 3)", "SUM(A1,2,3)"},
		{`="a""b"`, `"a""b"`},
		{"=true", "TRUE"},
	}

	for _, tt := range tests {
		t.Run(tt.formula, func(t *testing.T) {
			node, err := ParseFormula(tt.formula)
			if err != nil {
				t.Fatalf("ParseFormula(%q) failed: %v", tt.formula, err)
			}
			if got := node.ToString(); got != tt.want {
				t.Errorf("ToString() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLexerTokens(t *testing.T) {
	tokens, err := NewLexer(`=sum(A1:b2; "MiXed", 1.5e2) <> 3`).Tokenize()
	if err != nil {
		t.Fatalf("Tokenize failed: %v", err)
	}

	want := []struct {
		typ   TokenType
		value string
	}{
		{TokenIdent, "SUM"},
		{TokenLeftParen, "("},
		{TokenCell, "A1"},
		{TokenColon, ":"},
		{TokenCell, "B2"},
		{TokenSeparator, ";"},
		{TokenString, "MiXed"},
		{TokenSeparator, ","},
		{TokenNumber, "1.5e2"},
		{TokenRightParen, ")"},
		{TokenOp, "<>"},
		{TokenNumber, "3"},
		{TokenEOF, ""},
	}

	if len(tokens) != len(want) {
		t.Fatalf("got %d tokens, want %d: %+v", len(tokens), len(want), tokens)
	}
	for i, w := range want {
		if tokens[i].Type != w.typ || tokens[i].Value != w.value {
			t.Errorf("token %d = {%v %q}, want {%v %q}", i, tokens[i].Type, tokens[i].Value, w.typ, w.value)
		}
	}
}

func TestLexerCellShapedFunctionNames(t *testing.T) {
	tests := []struct {
		input string
		want  []TokenType
	}{
		{"=LOG10(1)", []TokenType{TokenIdent, TokenLeftParen, TokenNumber, TokenRightParen, TokenEOF}},
		{"=atan2 (1, 2)", []TokenType{TokenIdent, TokenLeftParen, TokenNumber, TokenSeparator, TokenNumber, TokenRightParen, TokenEOF}},
		{"=LOG10+1", []TokenType{TokenCell, TokenOp, TokenNumber, TokenEOF}},
		{"=SUM(A1)", []TokenType{TokenIdent, TokenLeftParen, TokenCell, TokenRightParen, TokenEOF}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			tokens, err := NewLexer(tt.input).Tokenize()
			if err != nil {
				t.Fatalf("Tokenize failed: %v", err)
			}
			if len(tokens) != len(tt.want) {
				t.Fatalf("got %d tokens, want %d: %+v", len(tokens), len(tt.want), tokens)
			}
			for i, typ := range tt.want {
				if tokens[i].Type != typ {
					t.Errorf("token %d = %v (%q), want %v", i, tokens[i].Type, tokens[i].Value, typ)
				}
			}
		})
	}
}

func TestReferences(t *testing.T) {
	cells, ranges := References("=A1+SUM(B1:C2, D4)*-E5")

	wantCells := []CellCoord{MustParseCellRef("A1"), MustParseCellRef("D4"), MustParseCellRef("E5")}
	if len(cells) != len(wantCells) {
		t.Fatalf("cells = %v, want %v", cells, wantCells)
	}
	for i := range wantCells {
		if cells[i] != wantCells[i] {
			t.Errorf("cells[%d] = %v, want %v", i, cells[i], wantCells[i])
		}
	}

	if len(ranges) != 1 || ranges[0] != MustParseRange("B1:C2") {
		t.Errorf("ranges = %v, want [B1:C2]", ranges)
	}

	if cells, ranges := References("=SUM("); cells != nil || ranges != nil {
		t.Errorf("malformed formula should reference nothing, got %v %v", cells, ranges)
	}
}

func TestShiftFormula(t *testing.T) {
	tests := []struct {
		name    string
		formula string
		dRow    int
		dCol    int
		want    string
	}{
		{"single ref", "=A1*2", 1, 0, "=A2*2"},
		{"range", "=SUM(A1:B2)", 2, 1, "=SUM(B3:C4)"},
		{"keeps spacing and strings", `=IF(A1 > 0, "A1", B1)`, 1, 0, `=IF(A2 > 0, "A1", B2)`},
		{"off grid ref", "=A1+1", -1, 0, "=#REF!+1"},
		{"off grid range", "=SUM(A1:A3)", 0, -1, "=SUM(#REF!)"},
		{"lowercase refs", "=a1+b2", 1, 1, "=B2+C3"},
		{"not a formula", "A1", 1, 0, "A1"},
		{"no offset", "=A1", 0, 0, "=A1"},
		{"untokenizable", `="open`, 1, 0, `="open`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ShiftFormula(tt.formula, tt.dRow, tt.dCol); got != tt.want {
				t.Errorf("ShiftFormula(%q, %d, %d) = %q, want %q", tt.formula, tt.dRow, tt.dCol, got, tt.want)
			}
		})
	}
}
