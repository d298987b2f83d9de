package excelmap

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

/* =========================================================
 *  Type Conversion: cell → property
 * ========================================================= */

// parseBool converts various common boolean strings into bool.
func parseBool(raw string) (bool, error) {
	s := strings.TrimSpace(strings.ToLower(raw))
	switch s {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	}
	return false, fmt.Errorf("invalid bool: %q", raw)
}

// parseInt accepts integer text, and float text without a fractional part
// (numeric cells often read back as "42.0").
func parseInt(raw string) (int64, error) {
	s := strings.TrimSpace(raw)
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, fmt.Errorf("invalid integer: %q", raw)
	}
	return int64(f), nil
}

func parseUint(raw string) (uint64, error) {
	s := strings.TrimSpace(raw)
	if u, err := strconv.ParseUint(s, 10, 64); err == nil {
		return u, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) || f < 0 || f >= math.MaxUint64 {
		return 0, fmt.Errorf("invalid unsigned integer: %q", raw)
	}
	return uint64(f), nil
}

func parseFloat(raw string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number: %q", raw)
	}
	return f, nil
}

// timeLayouts are tried after the property layout and RFC3339.
var timeLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006/01/02",
	"02/01/2006",
	"02-01-2006",
	"02/01/2006 15:04",
	"02-01-2006 15:04",
}

// parseTime attempts to parse a time value from the cell text.
// It tries in this order:
//  1. Custom layout of the property
//  2. RFC3339
//  3. Several common date/time layouts
//  4. Excel serial number
func parseTime(raw string, layout string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty time")
	}

	if layout != "" {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}

	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}

	for _, l := range timeLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, nil
		}
	}

	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		if t, err := excelize.ExcelDateToTime(f, false); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("cannot parse time: %q", raw)
}

// parseAs converts text for one setter, using its own parser if it has one.
func parseAs[T any](st Setter[T], text, layout string) (any, error) {
	if st.Parse != nil {
		return st.Parse(text)
	}
	switch st.Kind {
	case KindString:
		return text, nil
	case KindBool:
		return parseBool(text)
	case KindInt:
		return parseInt(text)
	case KindUint:
		return parseUint(text)
	case KindFloat:
		return parseFloat(text)
	case KindTime:
		return parseTime(text, layout)
	}
	return nil, fmt.Errorf("no parser for kind %s", st.Kind)
}

// coerce writes a normalized cell value (nil, string or time.Time) into
// prop of rec through the first setter that accepts it.
func coerce[T any](s *Schema[T], rec *T, prop string, raw any) error {
	setters := s.Setters(prop)
	noSetter := fmt.Errorf("%w for property %q with cell value %q", ErrNoSuitableSetter, prop, rawText(raw))
	if len(setters) == 0 {
		return noSetter
	}

	switch v := raw.(type) {
	case nil:
		for _, st := range setters {
			if st.Nullable {
				return invoke(st, rec, prop, nil)
			}
		}
		return noSetter

	case time.Time:
		st, ok := s.SetterFor(prop, KindTime)
		if !ok {
			return noSetter
		}
		return invoke(st, rec, prop, v)

	case string:
		// A string setter always wins over guessing.
		if st, ok := s.SetterFor(prop, KindString); ok {
			return invoke(st, rec, prop, v)
		}
		layout := s.layoutOf(prop)
		for _, st := range setters {
			pv, err := parseAs(st, v, layout)
			if err != nil {
				continue
			}
			return invoke(st, rec, prop, pv)
		}
		return noSetter
	}

	return fmt.Errorf("unsupported cell value %T", raw)
}

/* =========================================================
 *  Type Conversion: property → cell
 * ========================================================= */

// stringify returns the text written into an output cell; nil becomes "".
func stringify(v any, layout string) string {
	if v == nil {
		return ""
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return ""
		}
		rv = rv.Elem()
	}
	v = rv.Interface()

	switch x := v.(type) {
	case string:
		return x
	case time.Time:
		if layout != "" {
			return x.Format(layout)
		}
		return x.Format(time.RFC3339)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	}
	return fmt.Sprint(v)
}

// rawText renders a normalized cell value for error messages.
func rawText(raw any) string {
	switch v := raw.(type) {
	case nil:
		return ""
	case time.Time:
		return v.Format(time.RFC3339)
	}
	return fmt.Sprint(raw)
}
