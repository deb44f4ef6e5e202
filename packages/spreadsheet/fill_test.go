package spreadsheet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// columnOf builds a number source for column A from top-down values.
// rows past the end and non-float values read as non-numeric.
func columnOf(values ...any) func(CellCoord) (float64, bool) {
	return func(coord CellCoord) (float64, bool) {
		if coord.Col != 0 || int(coord.Row) >= len(values) {
			return 0, false
		}
		num, ok := values[coord.Row].(float64)
		return num, ok
	}
}

func TestDetectFill(t *testing.T) {
	tests := []struct {
		name     string
		values   []any
		kind     FillKind
		step     int
		expected float64
	}{
		{"arithmetic", []any{2.0, 4.0, 6.0}, FillArithmetic, 2, 10},
		{"decreasing", []any{10.0, 7.0}, FillArithmetic, 1, 4},
		{"constant", []any{3.0, 3.0, 3.0}, FillArithmetic, 3, 3},
		{"geometric", []any{2.0, 4.0, 8.0}, FillGeometric, 1, 16},
		{"geometric fractional", []any{81.0, 27.0, 9.0}, FillGeometric, 2, 1},
		{"irregular", []any{1.0, 2.0, 4.0, 7.0}, FillUnknown, 3, 7},
		{"zero breaks geometric", []any{0.0, 1.0, 3.0}, FillUnknown, 1, 3},
		{"text above stops the walk", []any{"header", 5.0, 10.0}, FillArithmetic, 1, 15},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start := CellCoord{Row: uint32(len(tt.values)), Col: 0}
			pattern, ok := DetectFill(start, columnOf(tt.values...))
			require.True(t, ok)
			assert.Equal(t, tt.kind, pattern.Kind, "kind %s", pattern.Kind)
			assert.InDelta(t, tt.expected, pattern.Extrapolate(tt.step), 1e-9)
		})
	}
}

func TestDetectFillNeedsTwoNumbers(t *testing.T) {
	_, ok := DetectFill(CellCoord{Row: 1}, columnOf(5.0))
	assert.False(t, ok)

	_, ok = DetectFill(CellCoord{Row: 0}, columnOf())
	assert.False(t, ok)

	_, ok = DetectFill(CellCoord{Row: 2}, columnOf(1.0, "x"))
	assert.False(t, ok)
}

func TestDetectFillLooksBackFiveRows(t *testing.T) {
	// the first value breaks the pattern but is six rows up
	values := []any{100.0, 1.0, 2.0, 3.0, 4.0, 5.0}
	pattern, ok := DetectFill(CellCoord{Row: 6}, columnOf(values...))
	require.True(t, ok)
	assert.Equal(t, FillArithmetic, pattern.Kind)
	assert.Equal(t, 1.0, pattern.Step)
	assert.Equal(t, 5.0, pattern.LastValue)
}

func TestFillKindString(t *testing.T) {
	assert.Equal(t, "arithmetic", FillArithmetic.String())
	assert.Equal(t, "geometric", FillGeometric.String())
	assert.Equal(t, "unknown", FillUnknown.String())
}
