package excelmap

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

/*
Package excelmap

High-level features:

  - Save records to a sheet using an ordered header map:
      - HeaderMap{{Prop: "id", Header: "Id"}, ...} → column order and header text
      - Every output cell is a string cell
      - Properties that cannot be read become DatumError entries and are
        written as a placeholder in a red cell
  - Parse a sheet back into records using a reverse header map:
      - ReverseHeaderMap{"Id": "id"} → header text to property name
      - Columns are found by header text, never by index
      - Cells that cannot be set become CellError entries; the record is
        still returned with that property left at its zero value
  - Property access through Schema[T]:
      - derived from exported struct fields (`excel:"name"`, `fmt:"2006-01-02"`)
      - extendable with explicit getters, setter overloads and a constructor
  - Multi-sheet workbooks via SaveAndGet / AppendSheet
  - WriteErrorsTo: write cell errors back into a copy of the source workbook

For strict exports:
  - Use SaveIfNoDatumError (or Strict()) to skip the write when any datum is wrong.
For lenient imports:
  - Use ParseIgnoringErrors to turn format and header failures into an empty result.
*/

/* =========================================================
 *  Errors
 * ========================================================= */

var (
	// ErrInvalidArgument reports a bad header map, record type or destination.
	ErrInvalidArgument = errors.New("excelmap: invalid argument")

	// ErrInvalidFormat reports an input stream that is not a readable workbook.
	ErrInvalidFormat = errors.New("excelmap: invalid workbook format")

	// ErrInvalidHeaderRow reports a header row where no header text matches
	// the reverse header map.
	ErrInvalidHeaderRow = errors.New("excelmap: invalid header row")

	// ErrSheetNotFound reports a sheet index out of range or an unknown sheet name.
	ErrSheetNotFound = errors.New("excelmap: sheet not found")

	// ErrIO reports a failure reading or writing the workbook file or stream.
	ErrIO = errors.New("excelmap: workbook i/o")

	// ErrNoSuitableSetter reports a cell value no setter of the property accepts.
	ErrNoSuitableSetter = errors.New("excelmap: no suitable setter")

	// ErrAccess reports a missing getter or a getter/setter that failed.
	ErrAccess = errors.New("excelmap: property access failed")
)

/* =========================================================
 *  Public Types
 * ========================================================= */

// Column pairs a record property with the header text of its column.
type Column struct {
	Prop   string
	Header string
}

// HeaderMap is the save-direction correspondence. Its order is the column order.
type HeaderMap []Column

// Headers builds a HeaderMap from alternating property/header pairs.
// A trailing unpaired property gets an empty header.
func Headers(pairs ...string) HeaderMap {
	h := make(HeaderMap, 0, (len(pairs)+1)/2)
	for i := 0; i < len(pairs); i += 2 {
		c := Column{Prop: pairs[i]}
		if i+1 < len(pairs) {
			c.Header = pairs[i+1]
		}
		h = append(h, c)
	}
	return h
}

// Reverse returns the parse-direction correspondence for h.
func (h HeaderMap) Reverse() ReverseHeaderMap {
	r := make(ReverseHeaderMap, len(h))
	for _, c := range h {
		r[c.Header] = c.Prop
	}
	return r
}

// ReverseHeaderMap is the parse-direction correspondence: header text → property name.
type ReverseHeaderMap map[string]string

// DatumError is a property of a record that could not be read while saving.
type DatumError struct {
	Record int    // Record index (0-based)
	Prop   string // Property name
	Err    error
}

func (e DatumError) Error() string {
	return fmt.Sprintf("record %d, property %q: %v", e.Record, e.Prop, e.Err)
}

func (e DatumError) Unwrap() error { return e.Err }

// CellError is a cell that could not be written into a record while parsing.
type CellError struct {
	Row    int    // Row index (0-based, header is row 0)
	Col    int    // Column index (0-based)
	Cell   string // Cell reference, e.g. "B3"
	Header string // Header text of the column
	Prop   string // Property name
	Value  string // Raw cell text
	Err    error
}

func (e CellError) Error() string {
	return fmt.Sprintf("cell %s (%s → %s): %v", e.Cell, e.Header, e.Prop, e.Err)
}

func (e CellError) Unwrap() error { return e.Err }

// Option is the configuration option type for Save/Parse APIs.
type Option func(*Options)

/* =========================================================
 *  Options
 * ========================================================= */

// Options control how records are saved and parsed.
type Options struct {
	// Sheet selection (parse) or sheet name (save):
	SheetName  string // If empty, SheetIndex is used when parsing
	SheetIndex int    // 0-based index; used if SheetName is empty

	// Placeholder is written into cells whose property could not be read.
	// nil writes an empty cell.
	Placeholder *string

	// Strict skips the write when any DatumError occurred.
	Strict bool

	// ErrorColumnIndex is the 1-based column WriteErrorsTo writes messages into.
	ErrorColumnIndex int

	Logger zerolog.Logger

	// schema holds a *Schema[T]; checked against T by schemaFor.
	schema any

	loggerSet bool
}

// applyDefaults fills in default values for unspecified options.
func applyDefaults(o *Options) {
	if o.SheetIndex < 0 {
		o.SheetIndex = 0
	}
	if !o.loggerSet {
		o.Logger = zerolog.Nop()
	}
}

func buildOptions(opts []Option) *Options {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}
	applyDefaults(&o)
	return &o
}

/* =========================================================
 *  Option Helpers (public API)
 * ========================================================= */

// Sheet selects a sheet by name when parsing, or names the new sheet when saving.
func Sheet(name string) Option {
	return func(o *Options) { o.SheetName = name }
}

// SheetAt selects a sheet by index (0-based) when parsing.
func SheetAt(idx int) Option {
	return func(o *Options) { o.SheetIndex = idx }
}

// Placeholder sets the text written into cells whose property could not be read.
func Placeholder(text string) Option {
	return func(o *Options) { o.Placeholder = &text }
}

// Strict skips writing the workbook when any DatumError occurred.
func Strict() Option {
	return func(o *Options) { o.Strict = true }
}

// ErrCol sets the 1-based error column index used by WriteErrorsTo.
func ErrCol(idx int) Option {
	return func(o *Options) { o.ErrorColumnIndex = idx }
}

// WithLogger routes debug and info events to l.
func WithLogger(l zerolog.Logger) Option {
	return func(o *Options) {
		o.Logger = l
		o.loggerSet = true
	}
}

// UseSchema sets the property schema for the record type.
// Without it, the schema is derived from the struct fields of the record type.
func UseSchema[T any](s *Schema[T]) Option {
	return func(o *Options) {
		if s != nil {
			o.schema = s
		}
	}
}

// schemaFor returns the configured schema, or derives one for T.
func schemaFor[T any](o *Options) (*Schema[T], error) {
	if o.schema == nil {
		return NewSchema[T]()
	}
	s, ok := o.schema.(*Schema[T])
	if !ok {
		return nil, fmt.Errorf("%w: schema type %T does not match record type", ErrInvalidArgument, o.schema)
	}
	return s, nil
}

/* =========================================================
 *  Public API: Save
 * ========================================================= */

// Save writes records to a new single-sheet workbook in w, even when some
// properties cannot be read. Unreadable properties are returned as DatumError
// and written as the placeholder.
func Save[T any](w io.Writer, headers HeaderMap, records []T, opts ...Option) ([]DatumError, error) {
	wb, errs, err := SaveAndGet(w, headers, records, opts...)
	if wb != nil {
		_ = wb.Close()
	}
	return errs, err
}

// SaveIfNoDatumError writes records to a new workbook in w only if every
// property of every record could be read.
func SaveIfNoDatumError[T any](w io.Writer, headers HeaderMap, records []T, opts ...Option) ([]DatumError, error) {
	return Save(w, headers, records, append(opts, Strict())...)
}

// SaveFile works like Save but writes the workbook to the file at path,
// creating or truncating it. When strict mode skips the write, path is not touched.
func SaveFile[T any](path string, headers HeaderMap, records []T, opts ...Option) ([]DatumError, error) {
	var buf bytes.Buffer
	errs, err := Save(&buf, headers, records, opts...)
	if err != nil {
		return errs, err
	}
	if !shouldSave(errs, buildOptions(opts).Strict) {
		return errs, nil
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return errs, fmt.Errorf("%w: %w", ErrIO, err)
	}
	return errs, nil
}

// SaveAndGet saves records to a new workbook and returns it, so more sheets
// can be added with AppendSheet. The sheet is named by Sheet(...), if given.
func SaveAndGet[T any](w io.Writer, headers HeaderMap, records []T, opts ...Option) (*Workbook, []DatumError, error) {
	o := buildOptions(opts)
	wb := NewWorkbook()
	errs, err := saveSheet(wb, w, headers, records, o)
	if err != nil {
		_ = wb.Close()
		return nil, errs, err
	}
	return wb, errs, nil
}

// AppendSheet saves records to a new sheet of wb and writes the whole
// workbook to w. Calls against the same workbook must not run concurrently.
func AppendSheet[T any](wb *Workbook, w io.Writer, headers HeaderMap, records []T, opts ...Option) (*Workbook, []DatumError, error) {
	if wb == nil || wb.file == nil {
		return nil, nil, fmt.Errorf("%w: the workbook can not be nil", ErrInvalidArgument)
	}
	o := buildOptions(opts)
	errs, err := saveSheet(wb, w, headers, records, o)
	return wb, errs, err
}

/* =========================================================
 *  Public API: Parse
 * ========================================================= */

// Parse reads the selected sheet (default: the first) of the workbook in r
// and returns one record per non-empty data row, plus one CellError per cell
// that could not be set.
func Parse[T any](r io.Reader, headers ReverseHeaderMap, opts ...Option) ([]T, []CellError, error) {
	o := buildOptions(opts)
	if err := validateReverseHeaderMap(headers); err != nil {
		return nil, nil, err
	}
	schema, err := schemaFor[T](o)
	if err != nil {
		return nil, nil, err
	}
	if r == nil {
		return nil, nil, fmt.Errorf("%w: the input can not be nil", ErrInvalidArgument)
	}

	wb, err := OpenWorkbook(r)
	if err != nil {
		return nil, nil, err
	}
	defer wb.Close()

	return parseSheet(wb, schema, headers, o)
}

// ParseFile works like Parse, reading the workbook from path.
func ParseFile[T any](path string, headers ReverseHeaderMap, opts ...Option) ([]T, []CellError, error) {
	if err := validateReverseHeaderMap(headers); err != nil {
		return nil, nil, err
	}
	in, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrIO, err)
	}
	defer in.Close()
	return Parse[T](in, headers, opts...)
}

// ParseIgnoringErrors works like Parse, except that an unreadable workbook or
// a header row matching nothing yields an empty result, and cell errors are
// dropped. A bad sheet index or name, and invalid arguments, are still returned.
func ParseIgnoringErrors[T any](r io.Reader, headers ReverseHeaderMap, opts ...Option) ([]T, error) {
	records, _, err := Parse[T](r, headers, opts...)
	switch {
	case err == nil:
		return records, nil
	case errors.Is(err, ErrInvalidFormat), errors.Is(err, ErrInvalidHeaderRow):
		buildOptions(opts).Logger.Debug().Err(err).Msg("parse failed, returning empty result")
		return []T{}, nil
	default:
		return nil, err
	}
}

// cellName is CoordinatesToCellName for 0-based indexes.
func cellName(col, row int) string {
	name, err := excelize.CoordinatesToCellName(col+1, row+1)
	if err != nil {
		return ""
	}
	return name
}
