package spreadsheet

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormulaTableCachesParses(t *testing.T) {
	ft := NewFormulaTable(0)

	first, err := ft.Parse("=A1+1")
	require.NoError(t, err)
	second, err := ft.Parse("=A1+1")
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, ft.Len())

	_, err = ft.Parse("=SUM(")
	assert.True(t, IsParseError(err))
	_, again := ft.Parse("=SUM(")
	assert.Equal(t, err, again, "parse failures are cached as well")
	assert.Equal(t, 2, ft.Len())

	ft.Clear()
	assert.Equal(t, 0, ft.Len())
}

func TestFormulaTableStaysBounded(t *testing.T) {
	ft := NewFormulaTable(8)

	hot := "=A1*2"
	for i := range 100 {
		_, _ = ft.Parse(hot)
		_, _ = ft.Parse(fmt.Sprintf("=%d+1", i))
		assert.LessOrEqual(t, ft.Len(), 8)
	}

	// the frequently used formula survives eviction
	_, ok := ft.parsed[hot]
	assert.True(t, ok)
}

func TestEngineUsesFormulaCache(t *testing.T) {
	wb := NewWorkbook(Options{})
	_ = wb.SetCell(MustParseCellRef("A1"), "=1+1")
	_ = wb.SetCell(MustParseCellRef("A2"), "=1+1")

	assert.Equal(t, 2.0, wb.Value(MustParseCellRef("A1")))
	assert.Equal(t, 2.0, wb.Value(MustParseCellRef("A2")))
	assert.Equal(t, 1, wb.engine.Formulas().Len())
}
