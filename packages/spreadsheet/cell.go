package spreadsheet

import (
	"maps"
	"math"
	"strconv"
	"strings"
)

// Primitive represents basic spreadsheet value types.
// types:
//   - float64: numeric values
//   - string: text values
//   - bool: boolean values (TRUE/FALSE), produced by comparisons
//   - nil: empty cells
//   - *SpreadsheetError: error values (#DIV/0!, #VALUE!, etc.)
type Primitive any

// ErrorCode represents spreadsheet error codes following Excel conventions,
// plus #CYCLE! for circular references
type ErrorCode uint8

const (
	ErrorCodeDiv0  ErrorCode = 1 // #DIV/0! - division by zero
	ErrorCodeValue ErrorCode = 2 // #VALUE! - wrong type of argument or operand
	ErrorCodeRef   ErrorCode = 3 // #REF! - reference off the grid
	ErrorCodeName  ErrorCode = 4 // #NAME? - unrecognized function name
	ErrorCodeNum   ErrorCode = 5 // #NUM! - invalid numeric domain
	ErrorCodeNA    ErrorCode = 6 // #N/A - wrong number of arguments
	ErrorCodeCycle ErrorCode = 7 // #CYCLE! - formula references itself
	ErrorCodeOther ErrorCode = 8 // #ERROR! - malformed formula text
)

// ErrorMapper maps error codes to the token shown in the cell
var ErrorMapper = map[ErrorCode]string{
	ErrorCodeDiv0:  "#DIV/0!",
	ErrorCodeValue: "#VALUE!",
	ErrorCodeRef:   "#REF!",
	ErrorCodeName:  "#NAME?",
	ErrorCodeNum:   "#NUM!",
	ErrorCodeNA:    "#N/A",
	ErrorCodeCycle: "#CYCLE!",
	ErrorCodeOther: "#ERROR!",
}

// errorCodeForToken looks up the code behind a display token such as "#REF!"
func errorCodeForToken(token string) (ErrorCode, bool) {
	for code, t := range ErrorMapper {
		if t == token {
			return code, true
		}
	}
	return 0, false
}

// SpreadsheetError preserves error code for display in cells
type SpreadsheetError struct {
	ErrorCode ErrorCode
	Message   string
	Cause     error // lex or syntax failure behind an #ERROR!, if any
}

func (e *SpreadsheetError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return ErrorMapper[e.ErrorCode]
}

func (e *SpreadsheetError) Unwrap() error {
	return e.Cause
}

// Token returns the stable display token, e.g. "#DIV/0!"
func (e *SpreadsheetError) Token() string {
	return ErrorMapper[e.ErrorCode]
}

func NewSpreadsheetError(code ErrorCode, message string) *SpreadsheetError {
	if message == "" {
		message = ErrorMapper[code]
	}
	return &SpreadsheetError{
		ErrorCode: code,
		Message:   message,
	}
}

// Style is a free-form property bag (color, backgroundColor, fontWeight,
// textAlign, border, decimals, merge metadata, ...)
type Style map[string]string

// Clone returns an independent copy. a nil style clones to nil.
func (s Style) Clone() Style {
	if s == nil {
		return nil
	}
	return maps.Clone(s)
}

// Merge returns a copy of s with every property of other applied on top.
// an empty value in other removes the property.
func (s Style) Merge(other Style) Style {
	out := s.Clone()
	if out == nil {
		out = Style{}
	}
	for k, v := range other {
		if v == "" {
			delete(out, k)
			continue
		}
		out[k] = v
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// Equal reports whether both styles hold the same properties. nil and
// empty styles are equal.
func (s Style) Equal(other Style) bool {
	return maps.Equal(s, other)
}

// Cell is one grid record. RawValue is the source of truth; displayed
// values are always derived from it on read.
type Cell struct {
	RawValue string
	Style    Style
}

// Clone returns a deep copy so callers never alias store internals
func (c Cell) Clone() Cell {
	return Cell{RawValue: c.RawValue, Style: c.Style.Clone()}
}

// IsEmpty reports whether the cell carries neither content nor style
func (c Cell) IsEmpty() bool {
	return c.RawValue == "" && len(c.Style) == 0
}

// Equal compares raw value and style
func (c Cell) Equal(other Cell) bool {
	return c.RawValue == other.RawValue && c.Style.Equal(other.Style)
}

// IsFormula reports whether raw text starts with the formula sigil
func IsFormula(raw string) bool {
	return len(raw) > 0 && raw[0] == '='
}

// literalValue coerces non-formula raw text: empty is nil, numeric text is
// a number, anything else stays a string
func literalValue(raw string) Primitive {
	if raw == "" {
		return nil
	}
	trimmed := strings.TrimSpace(raw)
	if num, err := strconv.ParseFloat(trimmed, 64); err == nil && trimmed != "" && !isSpecialFloatText(trimmed) {
		return num
	}
	return raw
}

// isSpecialFloatText rejects spellings strconv accepts but a grid should
// keep as text ("Inf", "NaN", "0x1p-2", "1_000")
func isSpecialFloatText(s string) bool {
	lower := strings.ToLower(s)
	return strings.Contains(lower, "inf") || strings.Contains(lower, "nan") ||
		strings.Contains(lower, "x") || strings.Contains(lower, "_")
}

// FormatValue renders a computed value the way a cell displays it
func FormatValue(value Primitive) string {
	switch v := value.(type) {
	case nil:
		return ""
	case float64:
		rounded := roundSignificant(v)
		if rounded == 0 {
			return "0"
		}
		return strconv.FormatFloat(rounded, 'f', -1, 64)
	case bool:
		if v {
			return "TRUE"
		}
		return "FALSE"
	case string:
		return v
	case *SpreadsheetError:
		return v.Token()
	default:
		return toString(v)
	}
}

// roundSignificant trims a number to 15 significant digits, which hides
// binary noise such as 0.1+0.2 = 0.30000000000000004
func roundSignificant(v float64) float64 {
	if v == 0 || math.IsInf(v, 0) || math.IsNaN(v) {
		return v
	}
	r, err := strconv.ParseFloat(strconv.FormatFloat(v, 'g', 15, 64), 64)
	if err != nil {
		return v
	}
	return r
}
