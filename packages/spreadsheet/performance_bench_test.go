package spreadsheet

import (
	"fmt"
	"testing"
)

func BenchmarkLargeCellPopulation(b *testing.B) {
	for i := 0; i < b.N; i++ {
		wb := NewWorkbook(Options{})
		for row := range uint32(DefaultRows) {
			for col := range uint32(DefaultCols) {
				_ = wb.SetCell(CellCoord{Row: row, Col: col}, fmt.Sprint(row*col))
			}
		}
	}
}

func BenchmarkFormulaDependencyChain(b *testing.B) {
	wb := NewWorkbook(Options{})
	_ = wb.SetCell(MustParseCellRef("A1"), "1")
	for i := 2; i <= 100; i++ {
		_ = wb.SetCell(MustParseCellRef(fmt.Sprintf("A%d", i)), fmt.Sprintf("=A%d+1", i-1))
	}

	last := MustParseCellRef("A100")
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		wb.Value(last)
	}
}

func BenchmarkLargeRangeSUM(b *testing.B) {
	wb := NewWorkbook(Options{Rows: 1000})
	for i := 1; i <= 1000; i++ {
		_ = wb.SetCell(MustParseCellRef(fmt.Sprintf("A%d", i)), fmt.Sprint(i))
	}
	_ = wb.SetCell(MustParseCellRef("B1"), "=SUM(A1:A1000)")

	target := MustParseCellRef("B1")
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		wb.Value(target)
	}
}

func BenchmarkWideDependencyFanOut(b *testing.B) {
	wb := NewWorkbook(Options{Rows: 500})
	_ = wb.SetCell(MustParseCellRef("A1"), "100")
	for i := 2; i <= 500; i++ {
		_ = wb.SetCell(MustParseCellRef(fmt.Sprintf("B%d", i)), "=A1*2")
	}

	a1 := MustParseCellRef("A1")
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = wb.SetCell(a1, fmt.Sprint(i))
		for _, coord := range wb.AffectedCells(a1) {
			wb.Value(coord)
		}
	}
}

func BenchmarkComplexNestedFormulas(b *testing.B) {
	wb := NewWorkbook(Options{})
	for i := 1; i <= 20; i++ {
		_ = wb.SetCell(MustParseCellRef(fmt.Sprintf("A%d", i)), fmt.Sprint(i))
		_ = wb.SetCell(MustParseCellRef(fmt.Sprintf("B%d", i)), fmt.Sprint(i*2))
	}
	_ = wb.SetCell(MustParseCellRef("C1"), `=IF(SUM(A1:A20)>100, ROUND(AVERAGE(B1:B20)*MAX(A1:A20)/3, 2), CONCATENATE("low", "-", MIN(B1:B20)))`)

	target := MustParseCellRef("C1")
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		wb.Value(target)
	}
}

func BenchmarkCircularReferenceDetection(b *testing.B) {
	wb := NewWorkbook(Options{})
	for i := 1; i < 50; i++ {
		_ = wb.SetCell(MustParseCellRef(fmt.Sprintf("A%d", i)), fmt.Sprintf("=A%d", i+1))
	}
	_ = wb.SetCell(MustParseCellRef("A50"), "=A1")

	target := MustParseCellRef("A1")
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		wb.Value(target)
	}
}

func BenchmarkUndoRedo(b *testing.B) {
	wb := NewWorkbook(Options{})
	grid := make([][]string, 20)
	for row := range grid {
		grid[row] = make([]string, 10)
		for col := range grid[row] {
			grid[row][col] = fmt.Sprintf("=%s%d*2", ColIndexToLetters(uint32(col)), row+1)
		}
	}
	_ = wb.ReplaceRect(MustParseCellRef("K1"), grid)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		wb.Undo()
		wb.Redo()
	}
}

func BenchmarkRenderStyles(b *testing.B) {
	wb := NewWorkbook(Options{})
	_ = wb.FillRange(MustParseRange("A1:Z100"), []string{"1", "15", "=A1+30", "overdue"})
	_ = wb.AddFormatRule(MustParseRange("A1:Z100"), GreaterThan{Threshold: 10}, Style{"color": "red"})
	_ = wb.AddFormatRule(MustParseRange("A1:Z100"), ContainsText{Text: "due"}, Style{"backgroundColor": "yellow"})

	id := wb.ActiveSheet()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = wb.RenderStyles(id)
	}
}
