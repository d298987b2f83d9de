package excelmap

import (
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

/* =========================================================
 *  Cell classification & normalization
 * ========================================================= */

// cellKind is the classified kind of a stored cell.
type cellKind int

const (
	cellBlank cellKind = iota
	cellBool
	cellError
	cellFormula
	cellNumeric
	cellDate // date-formatted numeric, or an ISO date cell
	cellString
)

// builtInDateFormats are the built-in number format IDs that render dates or times.
var builtInDateFormats = map[int]bool{
	14: true, 15: true, 16: true, 17: true, 18: true, 19: true, 20: true, 21: true, 22: true,
	27: true, 28: true, 29: true, 30: true, 31: true, 32: true, 33: true, 34: true, 35: true, 36: true,
	45: true, 46: true, 47: true,
	50: true, 51: true, 52: true, 53: true, 54: true, 55: true, 56: true, 57: true, 58: true,
}

// isDateFormat reports whether a custom number format code renders a date or time.
// Quoted literals, escaped characters and bracketed sections (colors, locales)
// are ignored.
func isDateFormat(code string) bool {
	code = strings.ToLower(code)
	// Only the positive section matters.
	if i := strings.IndexByte(code, ';'); i >= 0 {
		code = code[:i]
	}
	inQuote, inBracket := false, false
	for i := 0; i < len(code); i++ {
		c := code[i]
		switch {
		case inQuote:
			inQuote = c != '"'
		case inBracket:
			if c == ']' {
				inBracket = false
			}
		case c == '"':
			inQuote = true
		case c == '[':
			// [h], [mm] and [ss] are elapsed time tokens.
			if j := strings.IndexByte(code[i:], ']'); j > 1 {
				tok := code[i+1 : i+j]
				if strings.Trim(tok, "hms") == "" {
					return true
				}
			}
			inBracket = true
		case c == '\\' || c == '_' || c == '*':
			i++
		case c == 'y' || c == 'm' || c == 'd' || c == 'h' || c == 's':
			return true
		}
	}
	return false
}

// cellReader normalizes the cells of one sheet.
type cellReader struct {
	f             *excelize.File
	sheet         string
	date1904      bool
	dateStyleMemo map[int]bool
}

func newCellReader(f *excelize.File, sheet string) *cellReader {
	r := &cellReader{f: f, sheet: sheet, dateStyleMemo: make(map[int]bool)}
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		r.date1904 = *props.Date1904
	}
	return r
}

// isDateStyle reports whether style ID formats numbers as dates.
func (r *cellReader) isDateStyle(styleID int) bool {
	if styleID <= 0 {
		return false
	}
	if v, ok := r.dateStyleMemo[styleID]; ok {
		return v
	}
	var isDate bool
	if st, err := r.f.GetStyle(styleID); err == nil && st != nil {
		isDate = builtInDateFormats[st.NumFmt]
		if st.CustomNumFmt != nil {
			isDate = isDateFormat(*st.CustomNumFmt)
		}
	}
	r.dateStyleMemo[styleID] = isDate
	return isDate
}

// classify returns the kind of the cell at (col,row), 0-based, with raw value raw.
func (r *cellReader) classify(col, row int, raw string) cellKind {
	axis := cellName(col, row)
	if formula, err := r.f.GetCellFormula(r.sheet, axis); err == nil && formula != "" {
		return cellFormula
	}
	ct, err := r.f.GetCellType(r.sheet, axis)
	if err != nil {
		return cellBlank
	}
	switch ct {
	case excelize.CellTypeBool:
		return cellBool
	case excelize.CellTypeError:
		return cellError
	case excelize.CellTypeFormula:
		return cellFormula
	case excelize.CellTypeDate:
		return cellDate
	case excelize.CellTypeSharedString, excelize.CellTypeInlineString:
		return cellString
	case excelize.CellTypeNumber, excelize.CellTypeUnset:
		if raw == "" {
			return cellBlank
		}
		if _, err := strconv.ParseFloat(raw, 64); err != nil {
			return cellString
		}
		if styleID, err := r.f.GetCellStyle(r.sheet, axis); err == nil && r.isDateStyle(styleID) {
			return cellDate
		}
		return cellNumeric
	}
	return cellBlank
}

// read normalizes the cell at (col,row), 0-based:
// blank, error and formula cells yield nil; booleans their text; numbers a
// time.Time when date formatted, else their text; strings their trimmed text,
// with "" collapsing to nil.
func (r *cellReader) read(col, row int, raw string) any {
	switch r.classify(col, row, raw) {
	case cellBool:
		if raw == "1" || strings.EqualFold(raw, "true") {
			return "true"
		}
		return "false"
	case cellNumeric:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return raw
		}
		return strconv.FormatFloat(f, 'f', -1, 64)
	case cellDate:
		if t, ok := r.toTime(raw); ok {
			return t
		}
		return nil
	case cellString:
		s := strings.TrimSpace(raw)
		if s == "" {
			return nil
		}
		return s
	}
	return nil
}

func (r *cellReader) toTime(raw string) (time.Time, bool) {
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		t, err := excelize.ExcelDateToTime(f, r.date1904)
		return t, err == nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// readText normalizes a cell to text, as used for header cells.
func (r *cellReader) readText(col, row int, raw string) (string, bool) {
	switch v := r.read(col, row, raw).(type) {
	case string:
		return v, true
	case time.Time:
		return v.Format(time.RFC3339), true
	}
	return "", false
}
