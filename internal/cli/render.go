package cli

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/vogtb/go-spreadsheet/packages/document"
	"github.com/vogtb/go-spreadsheet/packages/spreadsheet"
)

// WorkbookView is the rendered state of every sheet
type WorkbookView struct {
	Sheets []SheetView `json:"sheets"`
}

// SheetView lists the non-empty cells of one sheet. Extent is the A1-based
// range covering them, empty for an empty sheet.
type SheetView struct {
	Name   string     `json:"name"`
	Active bool       `json:"active"`
	Extent string     `json:"extent,omitempty"`
	Cells  []CellView `json:"cells"`

	rows, cols uint32
}

// CellView is one cell with its displayed value and final style
type CellView struct {
	Ref     string            `json:"ref"`
	Raw     string            `json:"raw"`
	Display string            `json:"display"`
	Style   map[string]string `json:"style,omitempty"`

	coord spreadsheet.CellCoord
}

// NewRenderCommand creates the render command.
func NewRenderCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render <document>",
		Short: "Render every sheet of a workbook document",
		Long: `Render loads a YAML workbook document and prints each sheet's
displayed values, followed by the style every cell is painted with once
conditional formats are applied.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			wb, err := loadDocument(rootOpts, args[0])
			if err != nil {
				return f.Fail(ExitCommandError, ErrCodeDocument, "failed to load document", err)
			}
			return renderWorkbook(f, wb)
		},
	}
	return cmd
}

func loadDocument(opts *RootOptions, path string) (*spreadsheet.Workbook, error) {
	doc, err := document.Load(path)
	if err != nil {
		return nil, err
	}
	return document.NewWorkbook(doc, opts.workbookOptions())
}

func renderWorkbook(f *OutputFormatter, wb *spreadsheet.Workbook) error {
	view, err := BuildView(wb)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeGeneric, "failed to render workbook", err)
	}
	return f.Success(view)
}

// BuildView evaluates every sheet of wb
func BuildView(wb *spreadsheet.Workbook) (*WorkbookView, error) {
	view := &WorkbookView{}
	for _, info := range wb.Sheets() {
		sheet, err := buildSheetView(wb, info)
		if err != nil {
			return nil, fmt.Errorf("sheet %q: %w", info.Name, err)
		}
		view.Sheets = append(view.Sheets, sheet)
	}
	return view, nil
}

func buildSheetView(wb *spreadsheet.Workbook, info spreadsheet.SheetInfo) (SheetView, error) {
	entries, err := wb.SerializeSheet(info.ID)
	if err != nil {
		return SheetView{}, err
	}
	styles, err := wb.RenderStyles(info.ID)
	if err != nil {
		return SheetView{}, err
	}

	sheet := SheetView{
		Name:   info.Name,
		Active: info.Active,
		Cells:  make([]CellView, 0, len(entries)),
	}
	for _, entry := range entries {
		value, err := wb.ValueIn(info.ID, entry.Coord)
		if err != nil {
			return SheetView{}, err
		}
		sheet.Cells = append(sheet.Cells, CellView{
			Ref:     entry.Coord.String(),
			Raw:     entry.Cell.RawValue,
			Display: spreadsheet.FormatValue(value),
			Style:   styles[entry.Coord],
			coord:   entry.Coord,
		})
		sheet.rows = max(sheet.rows, entry.Coord.Row+1)
		sheet.cols = max(sheet.cols, entry.Coord.Col+1)
	}
	if len(entries) > 0 {
		sheet.Extent = spreadsheet.NewCellRange(
			spreadsheet.CellCoord{},
			spreadsheet.CellCoord{Row: sheet.rows - 1, Col: sheet.cols - 1},
		).String()
	}
	return sheet, nil
}

// WriteText prints each sheet as an aligned grid with row numbers and
// column letters, then its styled cells
func (v *WorkbookView) WriteText(w io.Writer) error {
	var b strings.Builder
	for i, sheet := range v.Sheets {
		if i > 0 {
			b.WriteString("\n")
		}
		sheet.writeText(&b)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func (s SheetView) writeText(b *strings.Builder) {
	header := s.Name
	if s.Extent == "" {
		header += " (empty)"
	} else {
		header += " " + s.Extent
	}
	if s.Active {
		header += " (active)"
	}
	b.WriteString(header + "\n")
	if s.Extent == "" {
		return
	}

	grid := make([][]string, s.rows)
	for row := range grid {
		grid[row] = make([]string, s.cols)
	}
	for _, cell := range s.Cells {
		grid[cell.coord.Row][cell.coord.Col] = cell.Display
	}

	labelWidth := len(strconv.Itoa(int(s.rows)))
	widths := make([]int, s.cols)
	for col := range widths {
		widths[col] = utf8.RuneCountInString(spreadsheet.ColIndexToLetters(uint32(col)))
		for row := range grid {
			widths[col] = max(widths[col], utf8.RuneCountInString(grid[row][col]))
		}
	}

	letters := make([]string, s.cols)
	for col := range letters {
		letters[col] = spreadsheet.ColIndexToLetters(uint32(col))
	}
	writeGridLine(b, "", labelWidth, letters, widths)
	for row := range grid {
		writeGridLine(b, strconv.Itoa(row+1), labelWidth, grid[row], widths)
	}

	var styled []CellView
	for _, cell := range s.Cells {
		if len(cell.Style) > 0 {
			styled = append(styled, cell)
		}
	}
	if len(styled) == 0 {
		return
	}
	b.WriteString("styles:\n")
	for _, cell := range styled {
		props := make([]string, 0, len(cell.Style))
		for _, key := range slices.Sorted(maps.Keys(cell.Style)) {
			props = append(props, key+"="+cell.Style[key])
		}
		fmt.Fprintf(b, "  %s %s\n", cell.Ref, strings.Join(props, " "))
	}
}

func writeGridLine(b *strings.Builder, label string, labelWidth int, values []string, widths []int) {
	var line strings.Builder
	line.WriteString(pad(label, labelWidth))
	for col, value := range values {
		line.WriteString("  ")
		line.WriteString(pad(value, widths[col]))
	}
	b.WriteString(strings.TrimRight(line.String(), " "))
	b.WriteString("\n")
}

func pad(s string, width int) string {
	if n := utf8.RuneCountInString(s); n < width {
		return s + strings.Repeat(" ", width-n)
	}
	return s
}
