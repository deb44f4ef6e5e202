package snapshot

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.alis.build/alog"

	"github.com/vogtb/go-spreadsheet/packages/spreadsheet"
)

const (
	kindGreaterThan = "greater_than"
	kindLessThan    = "less_than"
	kindEquals      = "equals"
	kindContains    = "contains"
)

// Save writes wb under name, replacing any snapshot already stored there.
// the write happens in one transaction.
func (s *Store) Save(ctx context.Context, name string, wb *spreadsheet.Workbook) (err error) {
	if name == "" {
		return errors.New("snapshot name must not be empty")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM workbooks WHERE name = ?`, name); err != nil {
		return fmt.Errorf("failed to replace snapshot %q: %w", name, err)
	}

	sheets := wb.Sheets()
	active := 0
	for i, sheet := range sheets {
		if sheet.Active {
			active = i
		}
	}

	opts := wb.Options()
	id := newSnapshotID()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO workbooks (name, id, grid_rows, grid_cols, active_sheet, saved_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, name, id, opts.Rows, opts.Cols, active, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to insert workbook: %w", err)
	}

	cells := 0
	for position, sheet := range sheets {
		n, err := saveSheet(ctx, tx, wb, name, position, sheet)
		if err != nil {
			return fmt.Errorf("failed to save sheet %q: %w", sheet.Name, err)
		}
		cells += n
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}
	alog.Infof(ctx, "snapshot: saved %q (%s) with %d sheets and %d cells", name, id, len(sheets), cells)
	return nil
}

func saveSheet(ctx context.Context, tx *sql.Tx, wb *spreadsheet.Workbook, name string, position int, sheet spreadsheet.SheetInfo) (int, error) {
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO sheets (workbook, position, name) VALUES (?, ?, ?)`,
		name, position, sheet.Name,
	); err != nil {
		return 0, err
	}

	entries, err := wb.SerializeSheet(sheet.ID)
	if err != nil {
		return 0, err
	}
	for _, entry := range entries {
		style, err := encodeStyle(entry.Cell.Style)
		if err != nil {
			return 0, err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO cells (workbook, position, row, col, raw, style) VALUES (?, ?, ?, ?, ?, ?)`,
			name, position, entry.Coord.Row, entry.Coord.Col, entry.Cell.RawValue, style,
		); err != nil {
			return 0, err
		}
	}

	rules, coords, err := wb.Validations(sheet.ID)
	if err != nil {
		return 0, err
	}
	for _, coord := range coords {
		allowed, err := json.Marshal(rules[coord].AllowedValues)
		if err != nil {
			return 0, err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO validations (workbook, position, row, col, allowed) VALUES (?, ?, ?, ?, ?)`,
			name, position, coord.Row, coord.Col, string(allowed),
		); err != nil {
			return 0, err
		}
	}

	formats, err := wb.FormatRules(sheet.ID)
	if err != nil {
		return 0, err
	}
	for seq, rule := range formats {
		kind, operand, err := encodePredicate(rule.Predicate)
		if err != nil {
			return 0, err
		}
		style, err := encodeStyle(rule.Style)
		if err != nil {
			return 0, err
		}
		r := rule.Range
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO formats (workbook, position, seq, start_row, start_col, end_row, end_col, kind, operand, style)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, name, position, seq, r.StartRow, r.StartCol, r.EndRow, r.EndCol, kind, operand, style); err != nil {
			return 0, err
		}
	}

	return len(entries), nil
}

// Load rebuilds the workbook stored under name. the grid size comes from
// the snapshot; the rest of opts is used as given. the loaded workbook has
// empty history.
func (s *Store) Load(ctx context.Context, name string, opts spreadsheet.Options) (*spreadsheet.Workbook, error) {
	var rows, cols uint32
	var active int
	err := s.db.QueryRowContext(ctx,
		`SELECT grid_rows, grid_cols, active_sheet FROM workbooks WHERE name = ?`, name,
	).Scan(&rows, &cols, &active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("load snapshot %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load workbook: %w", err)
	}

	opts.Rows, opts.Cols = rows, cols
	wb := spreadsheet.NewWorkbook(opts).WithContext(ctx)

	names, err := s.sheetNames(ctx, name)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("load snapshot %q: no sheets stored", name)
	}

	ids := make([]spreadsheet.SheetID, len(names))
	for position, sheetName := range names {
		if position == 0 {
			ids[0] = wb.ActiveSheet()
			err = wb.RenameSheet(ids[0], sheetName)
		} else {
			ids[position], err = wb.AddSheet(sheetName)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to restore sheet %q: %w", sheetName, err)
		}
	}

	for position, id := range ids {
		if err := s.loadSheet(ctx, wb, name, position, id); err != nil {
			return nil, fmt.Errorf("failed to restore sheet %q: %w", names[position], err)
		}
	}

	if active < 0 || active >= len(ids) {
		active = 0
	}
	if err := wb.SetActiveSheet(ids[active]); err != nil {
		return nil, err
	}
	wb.History().Clear()

	alog.Infof(ctx, "snapshot: loaded %q with %d sheets", name, len(ids))
	return wb, nil
}

func (s *Store) sheetNames(ctx context.Context, name string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name FROM sheets WHERE workbook = ? ORDER BY position`, name)
	if err != nil {
		return nil, fmt.Errorf("failed to query sheets: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var sheetName string
		if err := rows.Scan(&sheetName); err != nil {
			return nil, fmt.Errorf("failed to scan sheet: %w", err)
		}
		names = append(names, sheetName)
	}
	return names, rows.Err()
}

func (s *Store) loadSheet(ctx context.Context, wb *spreadsheet.Workbook, name string, position int, id spreadsheet.SheetID) error {
	entries, err := s.cellEntries(ctx, name, position)
	if err != nil {
		return err
	}
	if err := wb.LoadSheet(id, entries); err != nil {
		return err
	}

	// validations and formats attach to the active sheet
	if err := wb.SetActiveSheet(id); err != nil {
		return err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT row, col, allowed FROM validations
		WHERE workbook = ? AND position = ?
		ORDER BY row, col
	`, name, position)
	if err != nil {
		return fmt.Errorf("failed to query validations: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var coord spreadsheet.CellCoord
		var allowed string
		if err := rows.Scan(&coord.Row, &coord.Col, &allowed); err != nil {
			return fmt.Errorf("failed to scan validation: %w", err)
		}
		var values []string
		if err := json.Unmarshal([]byte(allowed), &values); err != nil {
			return fmt.Errorf("bad validation at %s: %w", coord, err)
		}
		if err := wb.SetValidation(coord, values); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	formats, err := s.db.QueryContext(ctx, `
		SELECT start_row, start_col, end_row, end_col, kind, operand, style FROM formats
		WHERE workbook = ? AND position = ?
		ORDER BY seq
	`, name, position)
	if err != nil {
		return fmt.Errorf("failed to query formats: %w", err)
	}
	defer formats.Close()
	for formats.Next() {
		var r spreadsheet.CellRange
		var kind, operand string
		var style sql.NullString
		if err := formats.Scan(&r.StartRow, &r.StartCol, &r.EndRow, &r.EndCol, &kind, &operand, &style); err != nil {
			return fmt.Errorf("failed to scan format: %w", err)
		}
		predicate, err := decodePredicate(kind, operand)
		if err != nil {
			return fmt.Errorf("bad format on %s: %w", r, err)
		}
		decoded, err := decodeStyle(style)
		if err != nil {
			return fmt.Errorf("bad format on %s: %w", r, err)
		}
		if err := wb.AddFormatRule(r, predicate, decoded); err != nil {
			return err
		}
	}
	return formats.Err()
}

func (s *Store) cellEntries(ctx context.Context, name string, position int) ([]spreadsheet.CellEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT row, col, raw, style FROM cells
		WHERE workbook = ? AND position = ?
		ORDER BY row, col
	`, name, position)
	if err != nil {
		return nil, fmt.Errorf("failed to query cells: %w", err)
	}
	defer rows.Close()

	var entries []spreadsheet.CellEntry
	for rows.Next() {
		var entry spreadsheet.CellEntry
		var style sql.NullString
		if err := rows.Scan(&entry.Coord.Row, &entry.Coord.Col, &entry.Cell.RawValue, &style); err != nil {
			return nil, fmt.Errorf("failed to scan cell: %w", err)
		}
		if entry.Cell.Style, err = decodeStyle(style); err != nil {
			return nil, fmt.Errorf("bad style at %s: %w", entry.Coord, err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func encodeStyle(style spreadsheet.Style) (sql.NullString, error) {
	if len(style) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(style)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func decodeStyle(value sql.NullString) (spreadsheet.Style, error) {
	if !value.Valid || value.String == "" {
		return nil, nil
	}
	var style spreadsheet.Style
	if err := json.Unmarshal([]byte(value.String), &style); err != nil {
		return nil, err
	}
	return style, nil
}

func encodePredicate(predicate spreadsheet.Predicate) (string, string, error) {
	switch p := predicate.(type) {
	case spreadsheet.GreaterThan:
		return kindGreaterThan, strconv.FormatFloat(p.Threshold, 'g', -1, 64), nil
	case spreadsheet.LessThan:
		return kindLessThan, strconv.FormatFloat(p.Threshold, 'g', -1, 64), nil
	case spreadsheet.EqualsText:
		return kindEquals, p.Text, nil
	case spreadsheet.ContainsText:
		return kindContains, p.Text, nil
	default:
		return "", "", fmt.Errorf("unsupported predicate %T", predicate)
	}
}

func decodePredicate(kind, operand string) (spreadsheet.Predicate, error) {
	switch kind {
	case kindGreaterThan, kindLessThan:
		threshold, err := strconv.ParseFloat(operand, 64)
		if err != nil {
			return nil, fmt.Errorf("bad threshold %q: %w", operand, err)
		}
		if kind == kindGreaterThan {
			return spreadsheet.GreaterThan{Threshold: threshold}, nil
		}
		return spreadsheet.LessThan{Threshold: threshold}, nil
	case kindEquals:
		return spreadsheet.EqualsText{Text: operand}, nil
	case kindContains:
		return spreadsheet.ContainsText{Text: operand}, nil
	default:
		return nil, fmt.Errorf("unknown predicate kind %q", kind)
	}
}
