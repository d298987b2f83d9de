package excelmap

import (
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

// Workbook is an XLSX workbook being assembled or read.
type Workbook struct {
	file *excelize.File

	// fresh is true until the first sheet is saved into the default sheet.
	fresh bool

	headerStyle int
	errorStyle  int
}

// NewWorkbook returns an empty workbook. Its default sheet is taken over by
// the first saved sheet.
func NewWorkbook() *Workbook {
	return &Workbook{file: excelize.NewFile(), fresh: true, headerStyle: -1, errorStyle: -1}
}

// OpenWorkbook reads a workbook from r. Unreadable input fails with ErrInvalidFormat.
func OpenWorkbook(r io.Reader) (*Workbook, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFormat, err)
	}
	return &Workbook{file: f, headerStyle: -1, errorStyle: -1}, nil
}

// File returns the underlying excelize file.
func (wb *Workbook) File() *excelize.File { return wb.file }

// SheetNames returns the sheet names in order.
func (wb *Workbook) SheetNames() []string { return wb.file.GetSheetList() }

// Close releases temporary files held by the workbook.
func (wb *Workbook) Close() error { return wb.file.Close() }

// WriteTo serializes the workbook into w.
func (wb *Workbook) WriteTo(w io.Writer) (int64, error) {
	n, err := wb.file.WriteTo(w)
	if err != nil {
		return n, fmt.Errorf("%w: %w", ErrIO, err)
	}
	return n, nil
}

/* =========================================================
 *  Sheets
 * ========================================================= */

// createSheet adds a sheet for saving. An empty name picks the next free "SheetN".
func (wb *Workbook) createSheet(name string) (string, error) {
	f := wb.file
	if wb.fresh {
		wb.fresh = false
		def := f.GetSheetName(0)
		if name == "" || name == def {
			return def, nil
		}
		if err := f.SetSheetName(def, name); err != nil {
			return "", fmt.Errorf("%w: sheet name %q: %w", ErrInvalidArgument, name, err)
		}
		return name, nil
	}

	if name == "" {
		for i := len(f.GetSheetList()) + 1; ; i++ {
			name = fmt.Sprintf("Sheet%d", i)
			if idx, _ := f.GetSheetIndex(name); idx < 0 {
				break
			}
		}
	} else if idx, _ := f.GetSheetIndex(name); idx >= 0 {
		return "", fmt.Errorf("%w: sheet %q already exists", ErrInvalidArgument, name)
	}
	if _, err := f.NewSheet(name); err != nil {
		return "", fmt.Errorf("%w: sheet name %q: %w", ErrInvalidArgument, name, err)
	}
	return name, nil
}

// selectSheet resolves the sheet to parse, based on SheetName or SheetIndex.
func (wb *Workbook) selectSheet(o *Options) (string, error) {
	sheets := wb.file.GetSheetList()
	if o.SheetName != "" {
		for _, s := range sheets {
			if s == o.SheetName {
				return s, nil
			}
		}
		return "", fmt.Errorf("%w: no sheet named %q", ErrSheetNotFound, o.SheetName)
	}
	if o.SheetIndex < 0 || o.SheetIndex >= len(sheets) {
		return "", fmt.Errorf("%w: sheet index %d out of range [0,%d)", ErrSheetNotFound, o.SheetIndex, len(sheets))
	}
	return sheets[o.SheetIndex], nil
}

/* =========================================================
 *  Styles
 * ========================================================= */

func thinBorders() []excelize.Border {
	var out []excelize.Border
	for _, side := range []string{"left", "top", "right", "bottom"} {
		out = append(out, excelize.Border{Type: side, Color: "000000", Style: 1})
	}
	return out
}

// headerStyleID returns the style of header cells: yellow fill, thin borders.
func (wb *Workbook) headerStyleID() (int, error) {
	if wb.headerStyle >= 0 {
		return wb.headerStyle, nil
	}
	id, err := wb.file.NewStyle(&excelize.Style{
		Border: thinBorders(),
		Fill:   excelize.Fill{Type: "pattern", Color: []string{"FFFF00"}, Pattern: 1},
	})
	if err != nil {
		return 0, err
	}
	wb.headerStyle = id
	return id, nil
}

// errorStyleID returns the style of cells whose datum could not be read: red fill.
func (wb *Workbook) errorStyleID() (int, error) {
	if wb.errorStyle >= 0 {
		return wb.errorStyle, nil
	}
	id, err := wb.file.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"FF0000"}, Pattern: 1},
	})
	if err != nil {
		return 0, err
	}
	wb.errorStyle = id
	return id, nil
}

/* =========================================================
 *  Cells
 * ========================================================= */

// setText writes text into a string cell at (col,row), 0-based.
func (wb *Workbook) setText(sheet string, col, row int, text string, styleID int) error {
	axis := cellName(col, row)
	if err := wb.file.SetCellStr(sheet, axis, text); err != nil {
		return err
	}
	if styleID > 0 {
		return wb.file.SetCellStyle(sheet, axis, axis, styleID)
	}
	return nil
}

// fitColumn sizes a column to its header text.
func (wb *Workbook) fitColumn(sheet string, col int, header string) error {
	name, err := excelize.ColumnNumberToName(col + 1)
	if err != nil {
		return err
	}
	width := float64(utf8.RuneCountInString(header)) + 4
	if width < 10 {
		width = 10
	}
	if width > 255 {
		width = 255
	}
	return wb.file.SetColWidth(sheet, name, name, width)
}

// write serializes the workbook, failing with ErrIO.
func (wb *Workbook) write(w io.Writer) error {
	if err := wb.file.Write(w); err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	return nil
}
