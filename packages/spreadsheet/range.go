package spreadsheet

import (
	"fmt"
	"iter"
	"strconv"
	"strings"
)

// CellCoord is a zero-based grid position
type CellCoord struct {
	Row uint32
	Col uint32
}

// String renders the coordinate in A1 notation
func (c CellCoord) String() string {
	return ColIndexToLetters(c.Col) + strconv.FormatUint(uint64(c.Row)+1, 10)
}

// CellRange is an inclusive rectangle, always normalized so that
// start <= end on both axes
type CellRange struct {
	StartRow uint32
	StartCol uint32
	EndRow   uint32
	EndCol   uint32
}

// NewCellRange builds a normalized range from two corners given in any order
func NewCellRange(a, b CellCoord) CellRange {
	return CellRange{
		StartRow: min(a.Row, b.Row),
		StartCol: min(a.Col, b.Col),
		EndRow:   max(a.Row, b.Row),
		EndCol:   max(a.Col, b.Col),
	}
}

// SingleCell returns the degenerate 1x1 range for a coordinate
func SingleCell(c CellCoord) CellRange {
	return NewCellRange(c, c)
}

// Start returns the top-left corner
func (r CellRange) Start() CellCoord {
	return CellCoord{Row: r.StartRow, Col: r.StartCol}
}

// End returns the bottom-right corner
func (r CellRange) End() CellCoord {
	return CellCoord{Row: r.EndRow, Col: r.EndCol}
}

// Rows returns the number of rows spanned
func (r CellRange) Rows() uint32 {
	return r.EndRow - r.StartRow + 1
}

// Cols returns the number of columns spanned
func (r CellRange) Cols() uint32 {
	return r.EndCol - r.StartCol + 1
}

// Size returns the number of cells in the range
func (r CellRange) Size() int {
	return int(r.Rows()) * int(r.Cols())
}

// Contains checks whether a coordinate falls inside the range
func (r CellRange) Contains(c CellCoord) bool {
	return c.Row >= r.StartRow && c.Row <= r.EndRow &&
		c.Col >= r.StartCol && c.Col <= r.EndCol
}

// String renders the range as "A1:B2", or "A1" for a single cell
func (r CellRange) String() string {
	if r.StartRow == r.EndRow && r.StartCol == r.EndCol {
		return r.Start().String()
	}
	return r.Start().String() + ":" + r.End().String()
}

// Enumerate returns a lazy row-major sequence over every coordinate in the
// range. each call returns a fresh sequence.
func (r CellRange) Enumerate() iter.Seq[CellCoord] {
	return func(yield func(CellCoord) bool) {
		for row := r.StartRow; row <= r.EndRow; row++ {
			for col := r.StartCol; col <= r.EndCol; col++ {
				if !yield(CellCoord{Row: row, Col: col}) {
					return
				}
				if col == ^uint32(0) {
					break
				}
			}
			if row == ^uint32(0) {
				break
			}
		}
	}
}

// ColIndexToLetters converts a zero-based column index to its bijective
// base-26 name (0=A, 25=Z, 26=AA, ...)
func ColIndexToLetters(i uint32) string {
	n := uint64(i) + 1
	var buf [8]byte
	pos := len(buf)
	for n > 0 {
		n--
		pos--
		buf[pos] = byte('A' + n%26)
		n /= 26
	}
	return string(buf[pos:])
}

// LettersToColIndex converts column letters (case-insensitive) back to a
// zero-based index
func LettersToColIndex(s string) (uint32, error) {
	if s == "" {
		return 0, NewApplicationError(InvalidArgument, "empty column name")
	}
	var n uint64
	for _, ch := range s {
		switch {
		case ch >= 'A' && ch <= 'Z':
			n = n*26 + uint64(ch-'A') + 1
		case ch >= 'a' && ch <= 'z':
			n = n*26 + uint64(ch-'a') + 1
		default:
			return 0, NewApplicationError(InvalidArgument, fmt.Sprintf("invalid column name: %q", s))
		}
		if n > uint64(^uint32(0)) {
			return 0, NewApplicationError(OutOfRange, fmt.Sprintf("column name too large: %q", s))
		}
	}
	return uint32(n - 1), nil
}

// splitCellRef splits "AB12" into letters and digits. both parts must be
// non-empty and nothing else may appear.
func splitCellRef(s string) (letters, digits string, ok bool) {
	letterEnd := 0
	for letterEnd < len(s) && isASCIILetter(s[letterEnd]) {
		letterEnd++
	}
	if letterEnd == 0 || letterEnd == len(s) {
		return "", "", false
	}
	for i := letterEnd; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return "", "", false
		}
	}
	return s[:letterEnd], s[letterEnd:], true
}

func isASCIILetter(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

// ParseCellRef parses a reference like "B12" (case-insensitive, 1-based) into a
// zero-based coordinate
func ParseCellRef(s string) (CellCoord, error) {
	letters, digits, ok := splitCellRef(strings.TrimSpace(s))
	if !ok {
		return CellCoord{}, NewApplicationError(InvalidArgument, fmt.Sprintf("invalid cell reference: %q", s))
	}

	col, err := LettersToColIndex(letters)
	if err != nil {
		return CellCoord{}, err
	}

	rowNum, err := strconv.ParseUint(digits, 10, 32)
	if err != nil {
		return CellCoord{}, NewApplicationError(OutOfRange, fmt.Sprintf("invalid row number: %q", digits))
	}
	if rowNum < 1 {
		return CellCoord{}, NewApplicationError(InvalidArgument, fmt.Sprintf("row number must be positive: %q", s))
	}

	return CellCoord{Row: uint32(rowNum - 1), Col: col}, nil
}

// ParseRange parses "A1" or "A1:B5" into a normalized range
func ParseRange(s string) (CellRange, error) {
	start, end, found := strings.Cut(strings.TrimSpace(s), ":")
	first, err := ParseCellRef(start)
	if err != nil {
		return CellRange{}, err
	}
	if !found {
		return SingleCell(first), nil
	}
	second, err := ParseCellRef(end)
	if err != nil {
		return CellRange{}, err
	}
	return NewCellRange(first, second), nil
}

// MustParseRange is ParseRange for literals known to be valid
func MustParseRange(s string) CellRange {
	r, err := ParseRange(s)
	if err != nil {
		panic(err)
	}
	return r
}

// MustParseCellRef is ParseCellRef for literals known to be valid
func MustParseCellRef(s string) CellCoord {
	c, err := ParseCellRef(s)
	if err != nil {
		panic(err)
	}
	return c
}
