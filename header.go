package excelmap

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
	"github.com/rs/zerolog"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
		panic(err)
	}
	return v
}

/* =========================================================
 *  Header validation
 * ========================================================= */

// validateHeaderMap checks the save-direction correspondence.
func validateHeaderMap(headers HeaderMap) error {
	if len(headers) == 0 {
		return fmt.Errorf("%w: the header map can not be empty", ErrInvalidArgument)
	}
	for i, c := range headers {
		if err := validate.Var(c.Prop, "notblank"); err != nil {
			return fmt.Errorf("%w: header %d (0-based) has a blank property name", ErrInvalidArgument, i)
		}
	}
	return nil
}

// validateReverseHeaderMap checks the parse-direction correspondence.
func validateReverseHeaderMap(headers ReverseHeaderMap) error {
	if len(headers) == 0 {
		return fmt.Errorf("%w: the reverse header map can not be empty", ErrInvalidArgument)
	}
	for header, prop := range headers {
		if err := validate.Var(header, "notblank"); err != nil {
			return fmt.Errorf("%w: the reverse header map has a blank header text (property %q)", ErrInvalidArgument, prop)
		}
		if err := validate.Var(prop, "notblank"); err != nil {
			return fmt.Errorf("%w: header %q has a blank property name", ErrInvalidArgument, header)
		}
	}
	return nil
}

/* =========================================================
 *  Header resolution
 * ========================================================= */

// columnMeta is what a resolved column maps to.
type columnMeta struct {
	Prop   string
	Header string
}

// resolveHeader reads the header row (row 0) and returns column index → column meta.
// Header cells without text, or with text absent from headers, are skipped.
func resolveHeader(cr *cellReader, headerRow []string, headers ReverseHeaderMap, log zerolog.Logger) (map[int]columnMeta, error) {
	meta := make(map[int]columnMeta, len(headers))
	for col, raw := range headerRow {
		text, ok := cr.readText(col, 0, raw)
		if !ok {
			continue
		}
		prop, ok := headers[text]
		if !ok {
			log.Debug().Int("col", col).Str("header", text).Msg("header not mapped, column ignored")
			continue
		}
		meta[col] = columnMeta{Prop: prop, Header: text}
	}
	if len(meta) == 0 {
		return nil, fmt.Errorf("%w: no header text matches the reverse header map", ErrInvalidHeaderRow)
	}
	return meta, nil
}
