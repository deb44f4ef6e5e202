package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vogtb/go-spreadsheet/packages/spreadsheet"
)

func TestLoadAndApply(t *testing.T) {
	doc, err := Load("testdata/budget.yaml")
	require.NoError(t, err)
	require.Len(t, doc.Sheets, 2)

	wb, err := NewWorkbook(doc, spreadsheet.Options{})
	require.NoError(t, err)

	sheets := wb.Sheets()
	require.Len(t, sheets, 2)
	assert.Equal(t, "Budget", sheets[0].Name)
	assert.Equal(t, "Notes", sheets[1].Name)
	assert.True(t, sheets[1].Active)
	assert.False(t, wb.CanUndo(), "the document is the undo baseline")

	assert.Equal(t, "checked", wb.Display(spreadsheet.MustParseCellRef("B2")))
	assert.Equal(t, 7.0, wb.Value(spreadsheet.MustParseCellRef("C2")))

	require.NoError(t, wb.SetActiveSheet(sheets[0].ID))
	assert.Equal(t, 1730.5, wb.Value(spreadsheet.MustParseCellRef("B5")))
	assert.Equal(t, "yes", wb.Value(spreadsheet.MustParseCellRef("C2")))

	header, _ := wb.GetCell(spreadsheet.MustParseCellRef("B1"))
	assert.Equal(t, "bold", header.Style["fontWeight"])

	assert.True(t, wb.IsAllowed(spreadsheet.MustParseCellRef("C2"), "no"))
	assert.False(t, wb.IsAllowed(spreadsheet.MustParseCellRef("C3"), "maybe"))

	styles, err := wb.RenderStyles(sheets[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "red", styles[spreadsheet.MustParseCellRef("B2")]["color"])
	assert.NotContains(t, styles, spreadsheet.MustParseCellRef("B3"))
	assert.Equal(t, "#ffeeee", styles[spreadsheet.MustParseCellRef("C3")]["backgroundColor"])
	assert.NotContains(t, styles, spreadsheet.MustParseCellRef("C2"))
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"unknown field", "sheets:\n  - name: A\n    colour: red\n", "failed to parse YAML"},
		{"no sheets", "sheets: []\n", "at least one sheet"},
		{"unnamed sheet", "sheets:\n  - rows: [[a]]\n", "name is required"},
		{"bad top left", "sheets:\n  - name: A\n    top_left: 1A\n", "top_left"},
		{"bad style range", "sheets:\n  - name: A\n    styles:\n      - range: 'A1:'\n", "style range"},
		{"bad validation cell", "sheets:\n  - name: A\n    validations:\n      - cell: '1A'\n        values: [x]\n", "validation cell"},
		{"bad format range", "sheets:\n  - name: A\n    formats:\n      - range: 'B2:'\n        less_than: 1\n", "format range"},
		{"empty validation", "sheets:\n  - name: A\n    validations:\n      - cell: A1\n", "has no values"},
		{"two predicates", "sheets:\n  - name: A\n    formats:\n      - range: A1\n        greater_than: 1\n        less_than: 2\n", "exactly one"},
		{"no predicate", "sheets:\n  - name: A\n    formats:\n      - range: A1\n", "exactly one"},
		{"two active", "sheets:\n  - name: A\n    active: true\n  - name: B\n    active: true\n", "only one sheet"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestApplyOutOfRange(t *testing.T) {
	doc, err := Parse([]byte("sheets:\n  - name: Wide\n    top_left: Z1\n    rows: [[a, b]]\n"))
	require.NoError(t, err)

	_, err = NewWorkbook(doc, spreadsheet.Options{})
	require.Error(t, err)
	assert.True(t, spreadsheet.IsOutOfRange(err))
}

func TestFormatPredicate(t *testing.T) {
	threshold := 3.0
	text := "due"

	p, err := Format{Range: "A1", LessThan: &threshold}.Predicate()
	require.NoError(t, err)
	assert.Equal(t, spreadsheet.LessThan{Threshold: 3}, p)

	p, err = Format{Range: "A1", Contains: &text}.Predicate()
	require.NoError(t, err)
	assert.Equal(t, spreadsheet.ContainsText{Text: "due"}, p)
}
