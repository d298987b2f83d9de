// Package mapping loads the YAML mapping files used by the excelmap CLI.
//
// A mapping file names the columns of a sheet and the record property each
// one maps to:
//
//	sheet: Users
//	placeholder: "#ERR"
//	strict: false
//	error_column: 4
//	columns:
//	  - prop: id
//	    header: Id
//	  - prop: name
//	    header: Name
package mapping

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/dreamph/excelmap"
	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
	"gopkg.in/yaml.v3"
)

// Column maps one record property to its header text.
type Column struct {
	Prop   string `yaml:"prop" validate:"notblank"`
	Header string `yaml:"header" validate:"notblank"`
}

// Config is a parsed mapping file.
type Config struct {
	// Sheet is the sheet name to read, or to create when exporting.
	Sheet string `yaml:"sheet"`

	// SheetIndex is the 0-based sheet to read when Sheet is empty.
	SheetIndex int `yaml:"sheet_index" validate:"gte=0"`

	// Placeholder is written into cells whose property is missing.
	Placeholder *string `yaml:"placeholder"`

	// Strict skips the export when any property is missing.
	Strict bool `yaml:"strict"`

	// ErrorColumn is the 1-based column cell errors are written back into.
	ErrorColumn int `yaml:"error_column" validate:"gte=0"`

	Columns []Column `yaml:"columns" validate:"required,min=1,unique=Header,dive"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
		panic(err)
	}
	return v
}

// Load reads and validates the mapping file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("mapping: read %s: %w", path, err)
	}
	cfg, err := Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("mapping: %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes and validates a mapping from r. Unknown keys are rejected.
func Parse(r io.Reader) (*Config, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("empty mapping")
		}
		return nil, fmt.Errorf("decode: %w", err)
	}
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid mapping: %w", err)
	}
	return &cfg, nil
}

// HeaderMap returns the save-direction correspondence, in column order.
func (c *Config) HeaderMap() excelmap.HeaderMap {
	h := make(excelmap.HeaderMap, 0, len(c.Columns))
	for _, col := range c.Columns {
		h = append(h, excelmap.Column{Prop: col.Prop, Header: col.Header})
	}
	return h
}

// ReverseHeaderMap returns the parse-direction correspondence.
func (c *Config) ReverseHeaderMap() excelmap.ReverseHeaderMap {
	return c.HeaderMap().Reverse()
}

// Props returns the distinct property names, in column order.
func (c *Config) Props() []string {
	seen := make(map[string]bool, len(c.Columns))
	var out []string
	for _, col := range c.Columns {
		if !seen[col.Prop] {
			seen[col.Prop] = true
			out = append(out, col.Prop)
		}
	}
	return out
}

// Options returns the excelmap options the mapping selects.
func (c *Config) Options() []excelmap.Option {
	var opts []excelmap.Option
	if c.Sheet != "" {
		opts = append(opts, excelmap.Sheet(c.Sheet))
	} else {
		opts = append(opts, excelmap.SheetAt(c.SheetIndex))
	}
	if c.Placeholder != nil {
		opts = append(opts, excelmap.Placeholder(*c.Placeholder))
	}
	if c.Strict {
		opts = append(opts, excelmap.Strict())
	}
	if c.ErrorColumn > 0 {
		opts = append(opts, excelmap.ErrCol(c.ErrorColumn))
	}
	return opts
}
