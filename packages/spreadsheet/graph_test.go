package spreadsheet

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func coords(refs ...string) []CellCoord {
	out := make([]CellCoord, len(refs))
	for i, ref := range refs {
		out[i] = MustParseCellRef(ref)
	}
	return out
}

func TestReferenceIndex(t *testing.T) {
	ri := NewReferenceIndex()
	ri.SetFormula(MustParseCellRef("B1"), "=A1+A2")
	ri.SetFormula(MustParseCellRef("C1"), "=SUM(B1:B3)")
	ri.SetFormula(MustParseCellRef("D1"), "=C1*2")
	ri.SetFormula(MustParseCellRef("E1"), "plain text")
	ri.SetFormula(MustParseCellRef("F1"), "=1+1")

	assert.Equal(t, 3, ri.NodeCount())
	assert.Equal(t, 1, ri.RangeObserverCount())

	assert.Equal(t, coords("B1"), ri.DirectDependents(MustParseCellRef("A1")))
	assert.Equal(t, coords("C1"), ri.DirectDependents(MustParseCellRef("B2")))
	assert.Equal(t, coords("B1", "C1", "D1"), ri.AffectedCells(MustParseCellRef("A2")))
	assert.Empty(t, ri.AffectedCells(MustParseCellRef("Z9")))

	cells, ranges := ri.Precedents(MustParseCellRef("C1"))
	assert.Empty(t, cells)
	assert.Equal(t, []CellRange{MustParseRange("B1:B3")}, ranges)

	// rewriting a formula replaces its edges
	ri.SetFormula(MustParseCellRef("B1"), "=A3")
	assert.Empty(t, ri.DirectDependents(MustParseCellRef("A1")))
	assert.Equal(t, coords("B1"), ri.DirectDependents(MustParseCellRef("A3")))

	ri.Remove(MustParseCellRef("C1"))
	assert.Equal(t, 0, ri.RangeObserverCount())
	assert.Equal(t, coords("B1"), ri.AffectedCells(MustParseCellRef("A3")))

	ri.Clear()
	assert.Equal(t, 0, ri.NodeCount())
}

func TestReferenceIndexCycles(t *testing.T) {
	ri := NewReferenceIndex()
	ri.SetFormula(MustParseCellRef("A1"), "=B1")
	ri.SetFormula(MustParseCellRef("B1"), "=A1")

	// a cycle terminates and includes the start cell
	assert.Equal(t, coords("A1", "B1"), ri.AffectedCells(MustParseCellRef("A1")))
}
