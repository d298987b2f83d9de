package excelmap

import (
	"github.com/rs/zerolog"
)

/* =========================================================
 *  Row Mapping
 * ========================================================= */

// writeRow writes rec into row rowIdx (0-based) in header order. Properties
// that cannot be read are reported as DatumError and written as the
// placeholder with the error style.
func writeRow[T any](
	wb *Workbook,
	sheet string,
	schema *Schema[T],
	headers HeaderMap,
	rec *T,
	recordIdx, rowIdx int,
	o *Options,
) ([]DatumError, error) {
	var errs []DatumError
	for col, c := range headers {
		v, err := schema.Get(rec, c.Prop)
		if err != nil {
			errs = append(errs, DatumError{Record: recordIdx, Prop: c.Prop, Err: err})
			o.Logger.Debug().Int("record", recordIdx).Str("prop", c.Prop).Err(err).Msg("datum error")

			var text string
			if o.Placeholder != nil {
				text = *o.Placeholder
			}
			styleID, serr := wb.errorStyleID()
			if serr != nil {
				return errs, serr
			}
			if werr := wb.setText(sheet, col, rowIdx, text, styleID); werr != nil {
				return errs, werr
			}
			continue
		}

		if werr := wb.setText(sheet, col, rowIdx, stringify(v, schema.layoutOf(c.Prop)), 0); werr != nil {
			return errs, werr
		}
	}
	return errs, nil
}

// parseRow maps one data row (raw cell values, 0-based row index) into a new
// record. Every cell that cannot be set becomes a CellError; the record is
// returned regardless.
func parseRow[T any](
	cr *cellReader,
	schema *Schema[T],
	meta map[int]columnMeta,
	rowIdx int,
	cols []string,
	log zerolog.Logger,
) (T, []CellError) {
	rec := schema.newRecord()
	var errs []CellError

	// The row's own width bounds the scan, not the header width.
	for col, raw := range cols {
		cm, ok := meta[col]
		if !ok {
			continue
		}
		v := cr.read(col, rowIdx, raw)
		if err := coerce(schema, &rec, cm.Prop, v); err != nil {
			ce := CellError{
				Row:    rowIdx,
				Col:    col,
				Cell:   cellName(col, rowIdx),
				Header: cm.Header,
				Prop:   cm.Prop,
				Value:  raw,
				Err:    err,
			}
			errs = append(errs, ce)
			log.Debug().Str("cell", ce.Cell).Str("prop", cm.Prop).Err(err).Msg("cell error")
		}
	}
	return rec, errs
}
