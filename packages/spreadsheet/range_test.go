package spreadsheet

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestColumnLetters(t *testing.T) {
	tests := []struct {
		index   uint32
		letters string
	}{
		{0, "A"},
		{25, "Z"},
		{26, "AA"},
		{51, "AZ"},
		{52, "BA"},
		{701, "ZZ"},
		{702, "AAA"},
		{16383, "XFD"},
	}

	for _, tt := range tests {
		t.Run(tt.letters, func(t *testing.T) {
			assert.Equal(t, tt.letters, ColIndexToLetters(tt.index))

			index, err := LettersToColIndex(tt.letters)
			require.NoError(t, err)
			assert.Equal(t, tt.index, index)
		})
	}

	for i := range uint32(2000) {
		index, err := LettersToColIndex(ColIndexToLetters(i))
		require.NoError(t, err)
		require.Equal(t, i, index)
	}

	index, err := LettersToColIndex("xfd")
	require.NoError(t, err)
	assert.Equal(t, uint32(16383), index)

	_, err = LettersToColIndex("")
	assert.True(t, IsInvalidArgument(err))
	_, err = LettersToColIndex("A1")
	assert.True(t, IsInvalidArgument(err))
}

func TestParseCellRef(t *testing.T) {
	coord, err := ParseCellRef("B12")
	require.NoError(t, err)
	assert.Equal(t, CellCoord{Row: 11, Col: 1}, coord)
	assert.Equal(t, "B12", coord.String())

	coord, err = ParseCellRef(" aa1 ")
	require.NoError(t, err)
	assert.Equal(t, CellCoord{Row: 0, Col: 26}, coord)

	for _, bad := range []string{"", "A", "12", "A0", "1A", "A-1", "A1B", "$A$1"} {
		_, err := ParseCellRef(bad)
		assert.Error(t, err, "ParseCellRef(%q)", bad)
	}
}

func TestParseRange(t *testing.T) {
	r, err := ParseRange("B5:A1")
	require.NoError(t, err)
	assert.Equal(t, MustParseRange("A1:B5"), r)
	assert.Equal(t, "A1:B5", r.String())
	assert.Equal(t, uint32(5), r.Rows())
	assert.Equal(t, uint32(2), r.Cols())
	assert.Equal(t, 10, r.Size())

	// corners are normalized independently
	assert.Equal(t, MustParseRange("A1:B5"), MustParseRange("A5:B1"))

	single, err := ParseRange("C3")
	require.NoError(t, err)
	assert.Equal(t, SingleCell(MustParseCellRef("C3")), single)
	assert.Equal(t, "C3", single.String())

	_, err = ParseRange("A1:")
	assert.Error(t, err)
}

func TestRangeEnumerate(t *testing.T) {
	r := MustParseRange("A1:B2")
	var got []string
	for coord := range r.Enumerate() {
		got = append(got, coord.String())
	}
	assert.Equal(t, []string{"A1", "B1", "A2", "B2"}, got)

	assert.True(t, r.Contains(MustParseCellRef("B2")))
	assert.False(t, r.Contains(MustParseCellRef("C1")))

	// early break stops the iterator
	count := 0
	for range MustParseRange("A1:Z100").Enumerate() {
		count++
		if count == 3 {
			break
		}
	}
	assert.Equal(t, 3, count)

	coords := slices.Collect(SingleCell(CellCoord{Row: 4, Col: 4}).Enumerate())
	assert.Equal(t, []CellCoord{{Row: 4, Col: 4}}, coords)
}

func TestCellStoreBounds(t *testing.T) {
	store := NewCellStore(DefaultRows, DefaultCols)
	assert.Equal(t, "A1:Z100", store.Bounds().String())

	require.NoError(t, store.Put(MustParseCellRef("Z100"), Cell{RawValue: "x"}))
	assert.True(t, IsOutOfRange(store.Put(CellCoord{Row: 100}, Cell{RawValue: "x"})))
	assert.True(t, IsOutOfRange(store.CheckRange(MustParseRange("Y99:AA100"))))

	// empty cells are not stored
	require.NoError(t, store.Put(MustParseCellRef("A1"), Cell{RawValue: "y"}))
	require.NoError(t, store.Put(MustParseCellRef("A1"), Cell{}))
	assert.Equal(t, 1, store.Len())

	// Get hands out copies
	require.NoError(t, store.Put(MustParseCellRef("B1"), Cell{RawValue: "s", Style: Style{"color": "red"}}))
	cell, ok := store.Get(MustParseCellRef("B1"))
	require.True(t, ok)
	cell.Style["color"] = "blue"
	again, _ := store.Get(MustParseCellRef("B1"))
	assert.Equal(t, "red", again.Style["color"])
}

func TestLookupCellBounds(t *testing.T) {
	wb := NewWorkbook(Options{})
	require.NoError(t, wb.SetCell(MustParseCellRef("B2"), "7"))

	cell, ok, err := wb.LookupCell(MustParseCellRef("B2"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "7", cell.RawValue)

	_, ok, err = wb.LookupCell(MustParseCellRef("Z100"))
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = wb.LookupCell(CellCoord{Row: 100})
	assert.True(t, IsOutOfRange(err))
	_, _, err = wb.LookupCell(CellCoord{Col: 26})
	assert.True(t, IsOutOfRange(err))

	// GetCell stays lenient
	_, ok = wb.GetCell(CellCoord{Row: 100})
	assert.False(t, ok)
}
