package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/dreamph/excelmap"
)

// record is one JSON object; its keys are the mapped properties.
type record map[string]any

// recordSchema exposes every property of the mapping as a record key.
// Empty cells become JSON null, date cells RFC3339 text; any other cell is
// kept as text.
func recordSchema(props []string) *excelmap.Schema[record] {
	s := excelmap.MustSchema[record]().Constructor(func() record { return record{} })
	for _, prop := range props {
		s.Getter(prop, func(r *record) (any, error) {
			v, ok := (*r)[prop]
			if !ok {
				return nil, fmt.Errorf("missing key %q", prop)
			}
			return v, nil
		})
		s.Setter(prop, excelmap.Setter[record]{
			Kind:     excelmap.KindString,
			Nullable: true,
			Set: func(r *record, v any) error {
				(*r)[prop] = v
				return nil
			},
		})
		s.Setter(prop, excelmap.TimeSetter(func(r *record, v time.Time) error {
			(*r)[prop] = v.Format(time.RFC3339)
			return nil
		}))
	}
	return s
}

// readRecords decodes a JSON array of objects, keeping numbers exact.
func readRecords(r io.Reader) ([]record, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var records []record
	if err := dec.Decode(&records); err != nil {
		return nil, fmt.Errorf("decode records: %w", err)
	}
	return records, nil
}

func writeRecords(w io.Writer, records []record) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}
