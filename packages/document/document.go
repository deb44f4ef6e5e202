// Package document reads workbook documents: YAML files describing sheets,
// their cell grids, styles, validation lists and conditional formats.
package document

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/vogtb/go-spreadsheet/packages/spreadsheet"
)

// Document is a whole workbook
type Document struct {
	Sheets []Sheet `yaml:"sheets"`
}

// Sheet is one sheet of a document. Rows is pasted with its top-left corner
// at TopLeft (A1 when empty); ragged rows are fine.
type Sheet struct {
	Name        string       `yaml:"name"`
	Active      bool         `yaml:"active"`
	TopLeft     string       `yaml:"top_left"`
	Rows        [][]string   `yaml:"rows"`
	Styles      []StyleBlock `yaml:"styles"`
	Validations []Validation `yaml:"validations"`
	Formats     []Format     `yaml:"formats"`
}

// StyleBlock merges Style into every cell of Range
type StyleBlock struct {
	Range string            `yaml:"range"`
	Style map[string]string `yaml:"style"`
}

// Validation restricts Cell to a dropdown list
type Validation struct {
	Cell   string   `yaml:"cell"`
	Values []string `yaml:"values"`
}

// Format is a conditional format rule. exactly one predicate field must be
// set.
type Format struct {
	Range       string            `yaml:"range"`
	GreaterThan *float64          `yaml:"greater_than"`
	LessThan    *float64          `yaml:"less_than"`
	Equals      *string           `yaml:"equals"`
	Contains    *string           `yaml:"contains"`
	Style       map[string]string `yaml:"style"`
}

// Predicate builds the engine predicate named by the rule
func (f Format) Predicate() (spreadsheet.Predicate, error) {
	var predicates []spreadsheet.Predicate
	if f.GreaterThan != nil {
		predicates = append(predicates, spreadsheet.GreaterThan{Threshold: *f.GreaterThan})
	}
	if f.LessThan != nil {
		predicates = append(predicates, spreadsheet.LessThan{Threshold: *f.LessThan})
	}
	if f.Equals != nil {
		predicates = append(predicates, spreadsheet.EqualsText{Text: *f.Equals})
	}
	if f.Contains != nil {
		predicates = append(predicates, spreadsheet.ContainsText{Text: *f.Contains})
	}
	if len(predicates) != 1 {
		return nil, fmt.Errorf("format on %q needs exactly one of greater_than, less_than, equals, contains", f.Range)
	}
	return predicates[0], nil
}

// Load reads and parses a document file
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	return Parse(data)
}

// Parse decodes a document, rejecting unknown fields, and validates it
func Parse(data []byte) (*Document, error) {
	var doc Document
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validate(&doc); err != nil {
		return nil, fmt.Errorf("invalid document: %w", err)
	}
	return &doc, nil
}

func validate(doc *Document) error {
	if len(doc.Sheets) == 0 {
		return fmt.Errorf("at least one sheet is required")
	}

	active := 0
	for i, sheet := range doc.Sheets {
		if sheet.Name == "" {
			return fmt.Errorf("sheet %d: name is required", i)
		}
		if sheet.Active {
			active++
		}
		if sheet.TopLeft != "" {
			if _, err := spreadsheet.ParseCellRef(sheet.TopLeft); err != nil {
				return fmt.Errorf("sheet %q: top_left: %w", sheet.Name, err)
			}
		}
		for _, block := range sheet.Styles {
			if _, err := spreadsheet.ParseRange(block.Range); err != nil {
				return fmt.Errorf("sheet %q: style range: %w", sheet.Name, err)
			}
		}
		for _, v := range sheet.Validations {
			if _, err := spreadsheet.ParseCellRef(v.Cell); err != nil {
				return fmt.Errorf("sheet %q: validation cell: %w", sheet.Name, err)
			}
			if len(v.Values) == 0 {
				return fmt.Errorf("sheet %q: validation on %s has no values", sheet.Name, v.Cell)
			}
		}
		for _, f := range sheet.Formats {
			if _, err := spreadsheet.ParseRange(f.Range); err != nil {
				return fmt.Errorf("sheet %q: format range: %w", sheet.Name, err)
			}
			if _, err := f.Predicate(); err != nil {
				return fmt.Errorf("sheet %q: %w", sheet.Name, err)
			}
		}
	}
	if active > 1 {
		return fmt.Errorf("only one sheet may be active, got %d", active)
	}
	return nil
}

// NewWorkbook builds a fresh workbook from doc
func NewWorkbook(doc *Document, opts spreadsheet.Options) (*spreadsheet.Workbook, error) {
	wb := spreadsheet.NewWorkbook(opts)
	if err := Apply(doc, wb); err != nil {
		return nil, err
	}
	return wb, nil
}

// Apply writes doc into a fresh workbook. the first document sheet takes
// over the workbook's initial sheet; the rest are added. history is cleared
// afterwards so the document is the undo baseline.
func Apply(doc *Document, wb *spreadsheet.Workbook) error {
	activeID := wb.ActiveSheet()
	for i, sheet := range doc.Sheets {
		var id spreadsheet.SheetID
		if i == 0 {
			id = wb.Sheets()[0].ID
			if err := wb.RenameSheet(id, sheet.Name); err != nil {
				return fmt.Errorf("failed to rename sheet: %w", err)
			}
		} else {
			var err error
			if id, err = wb.AddSheet(sheet.Name); err != nil {
				return fmt.Errorf("failed to add sheet %q: %w", sheet.Name, err)
			}
		}
		if i == 0 || sheet.Active {
			activeID = id
		}

		if err := applySheet(wb, id, sheet); err != nil {
			return fmt.Errorf("sheet %q: %w", sheet.Name, err)
		}
	}

	if err := wb.SetActiveSheet(activeID); err != nil {
		return err
	}
	wb.History().Clear()
	return nil
}

func applySheet(wb *spreadsheet.Workbook, id spreadsheet.SheetID, sheet Sheet) error {
	if err := wb.SetActiveSheet(id); err != nil {
		return err
	}

	topLeft := spreadsheet.CellCoord{}
	if sheet.TopLeft != "" {
		var err error
		if topLeft, err = spreadsheet.ParseCellRef(sheet.TopLeft); err != nil {
			return err
		}
	}
	if len(sheet.Rows) > 0 {
		if err := wb.ReplaceRect(topLeft, sheet.Rows); err != nil {
			return fmt.Errorf("failed to write rows: %w", err)
		}
	}

	for _, block := range sheet.Styles {
		r, err := spreadsheet.ParseRange(block.Range)
		if err != nil {
			return err
		}
		if err := wb.ColorRange(r, block.Style); err != nil {
			return fmt.Errorf("failed to style %s: %w", block.Range, err)
		}
	}

	for _, v := range sheet.Validations {
		coord, err := spreadsheet.ParseCellRef(v.Cell)
		if err != nil {
			return err
		}
		if err := wb.SetValidation(coord, v.Values); err != nil {
			return fmt.Errorf("failed to set validation on %s: %w", v.Cell, err)
		}
	}

	for _, f := range sheet.Formats {
		r, err := spreadsheet.ParseRange(f.Range)
		if err != nil {
			return err
		}
		predicate, err := f.Predicate()
		if err != nil {
			return err
		}
		if err := wb.AddFormatRule(r, predicate, f.Style); err != nil {
			return fmt.Errorf("failed to add format on %s: %w", f.Range, err)
		}
	}
	return nil
}
