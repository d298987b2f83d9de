package excelmap

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

/* =========================================================
 *  Save: records → sheet
 * ========================================================= */

// shouldSave decides whether a generated workbook is written out.
func shouldSave(errs []DatumError, strict bool) bool {
	return !strict || len(errs) == 0
}

// saveSheet adds a sheet with records to wb and writes wb to w, unless
// strict mode is on and some datum could not be read.
func saveSheet[T any](wb *Workbook, w io.Writer, headers HeaderMap, records []T, o *Options) ([]DatumError, error) {
	if err := validateHeaderMap(headers); err != nil {
		return nil, err
	}
	if w == nil {
		return nil, fmt.Errorf("%w: the output can not be nil", ErrInvalidArgument)
	}
	schema, err := schemaFor[T](o)
	if err != nil {
		return nil, err
	}
	if schema.empty() {
		return nil, fmt.Errorf("%w: record type has no properties", ErrInvalidArgument)
	}

	sheet, err := wb.createSheet(o.SheetName)
	if err != nil {
		return nil, err
	}

	if err := writeHeader(wb, sheet, headers); err != nil {
		return nil, fmt.Errorf("excelmap: write header: %w", err)
	}

	errs := []DatumError{}
	for i := range records {
		rowErrs, err := writeRow(wb, sheet, schema, headers, &records[i], i, i+1, o)
		errs = append(errs, rowErrs...)
		if err != nil {
			return errs, fmt.Errorf("excelmap: write row %d: %w", i+1, err)
		}
	}

	if !shouldSave(errs, o.Strict) {
		o.Logger.Info().Str("sheet", sheet).Int("datum_errors", len(errs)).Msg("datum errors found, workbook not written")
		return errs, nil
	}
	if err := wb.write(w); err != nil {
		return errs, err
	}
	o.Logger.Info().Str("sheet", sheet).Int("records", len(records)).Int("datum_errors", len(errs)).Msg("sheet saved")
	return errs, nil
}

// writeHeader writes the header row with the header style and sizes each column.
func writeHeader(wb *Workbook, sheet string, headers HeaderMap) error {
	styleID, err := wb.headerStyleID()
	if err != nil {
		return err
	}
	for col, c := range headers {
		if err := wb.setText(sheet, col, 0, c.Header, styleID); err != nil {
			return err
		}
		if err := wb.fitColumn(sheet, col, c.Header); err != nil {
			return err
		}
	}
	return nil
}

/* =========================================================
 *  Parse: sheet → records
 * ========================================================= */

// parseSheet selects the sheet, resolves the header row and maps every
// non-empty data row into a record.
func parseSheet[T any](wb *Workbook, schema *Schema[T], headers ReverseHeaderMap, o *Options) ([]T, []CellError, error) {
	if schema.empty() {
		return nil, nil, fmt.Errorf("%w: record type has no properties", ErrInvalidArgument)
	}
	if len(wb.SheetNames()) == 0 {
		return []T{}, nil, nil
	}

	sheet, err := wb.selectSheet(o)
	if err != nil {
		return nil, nil, err
	}

	rows, err := wb.file.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, nil, fmt.Errorf("%w: read sheet %q: %w", ErrInvalidFormat, sheet, err)
	}
	if len(rows) == 0 {
		return nil, nil, fmt.Errorf("%w: sheet %q has no header row", ErrInvalidHeaderRow, sheet)
	}

	cr := newCellReader(wb.file, sheet)
	meta, err := resolveHeader(cr, rows[0], headers, o.Logger)
	if err != nil {
		return nil, nil, err
	}

	records := []T{}
	errs := []CellError{}
	for rowIdx := 1; rowIdx < len(rows); rowIdx++ {
		cols := rows[rowIdx]
		// Rows without occupied cells are absent rows.
		if len(cols) == 0 {
			continue
		}
		rec, rowErrs := parseRow(cr, schema, meta, rowIdx, cols, o.Logger)
		records = append(records, rec)
		errs = append(errs, rowErrs...)
	}

	o.Logger.Info().Str("sheet", sheet).Int("records", len(records)).Int("cell_errors", len(errs)).Msg("sheet parsed")
	return records, errs, nil
}
