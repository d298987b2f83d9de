package excelmap

import (
	"fmt"
	"io"
)

/* =========================================================
 *  WriteErrorsTo
 * ========================================================= */

// WriteErrorsTo writes cell errors into a copy of the workbook read from r,
// and writes the resulting workbook to w. Each message is written into the
// ErrCol(...) column of its row (joined by newlines), and every failed cell
// gets the red error style. The sheet is selected like Parse does.
//
// If errs is empty, it simply copies r to w.
func WriteErrorsTo(w io.Writer, r io.Reader, errs []CellError, opts ...Option) error {
	if len(errs) == 0 {
		_, err := io.Copy(w, r)
		return err
	}

	o := buildOptions(opts)
	if o.ErrorColumnIndex <= 0 {
		return fmt.Errorf("%w: ErrCol() must be > 0 for WriteErrorsTo", ErrInvalidArgument)
	}

	wb, err := OpenWorkbook(r)
	if err != nil {
		return err
	}
	defer wb.Close()

	return writeErrorsToWorkbook(wb, errs, o, w)
}

// writeErrorsToWorkbook writes the provided CellError list into the selected
// sheet of wb, then writes wb to w.
func writeErrorsToWorkbook(wb *Workbook, errs []CellError, o *Options, w io.Writer) error {
	sheet, err := wb.selectSheet(o)
	if err != nil {
		return err
	}
	styleID, err := wb.errorStyleID()
	if err != nil {
		return err
	}

	errCol := o.ErrorColumnIndex - 1
	messages := make(map[int]string)
	var rows []int
	for _, ce := range errs {
		if ce.Row <= 0 {
			continue
		}
		if ce.Col != errCol {
			if serr := wb.file.SetCellStyle(sheet, cellName(ce.Col, ce.Row), cellName(ce.Col, ce.Row), styleID); serr != nil {
				return serr
			}
		}
		msg := fmt.Sprintf("%s: %v", ce.Header, ce.Err)
		old, seen := messages[ce.Row]
		if !seen {
			rows = append(rows, ce.Row)
			if prev, _ := wb.file.GetCellValue(sheet, cellName(errCol, ce.Row)); prev != "" {
				old, seen = prev, true
			}
		}
		if seen {
			msg = old + "\n" + msg
		}
		messages[ce.Row] = msg
	}

	for _, row := range rows {
		if err := wb.file.SetCellStr(sheet, cellName(errCol, row), messages[row]); err != nil {
			return err
		}
	}
	return wb.write(w)
}
