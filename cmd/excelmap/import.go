package main

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/dreamph/excelmap"
	"github.com/dreamph/excelmap/internal/mapping"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	importIn     string
	importOut    string
	ignoreErrors bool
	errorsOut    string
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Parse an XLSX sheet into JSON records",
	Long: `import reads the mapped sheet and writes a JSON array with one object per
non-empty data row. Cells that cannot be read are logged; with --errors-out a
copy of the workbook is written with every message in the mapping's
error_column.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := mapping.Load(mappingFile)
		if err != nil {
			return err
		}
		if errorsOut != "" && cfg.ErrorColumn <= 0 {
			return fmt.Errorf("--errors-out needs error_column in %s", mappingFile)
		}

		data, err := os.ReadFile(importIn)
		if err != nil {
			return err
		}

		records, cerrs, err := importRecords(cfg, data, ignoreErrors, logger)
		if err != nil {
			return err
		}

		if errorsOut != "" && len(cerrs) > 0 {
			var buf bytes.Buffer
			if err := excelmap.WriteErrorsTo(&buf, bytes.NewReader(data), cerrs, cfg.Options()...); err != nil {
				return err
			}
			if err := os.WriteFile(errorsOut, buf.Bytes(), 0o644); err != nil {
				return err
			}
			logger.Info().Str("file", errorsOut).Int("cell_errors", len(cerrs)).Msg("error workbook written")
		}

		var out io.Writer = os.Stdout
		if importOut != "" && importOut != "-" {
			f, err := os.Create(importOut)
			if err != nil {
				return err
			}
			defer f.Close()
			out = f
		}
		return writeRecords(out, records)
	},
}

func init() {
	importCmd.Flags().StringVarP(&importIn, "in", "i", "", "XLSX input file")
	importCmd.Flags().StringVarP(&importOut, "out", "o", "-", "JSON output file (- for stdout)")
	importCmd.Flags().BoolVar(&ignoreErrors, "ignore-errors", false, "Treat an unreadable workbook or unmatched header row as empty")
	importCmd.Flags().StringVar(&errorsOut, "errors-out", "", "Write a copy of the workbook annotated with cell errors")
	_ = importCmd.MarkFlagRequired("in")
}

// importRecords parses the workbook in data into records.
func importRecords(cfg *mapping.Config, data []byte, ignore bool, log zerolog.Logger) ([]record, []excelmap.CellError, error) {
	opts := append(cfg.Options(),
		excelmap.UseSchema(recordSchema(cfg.Props())),
		excelmap.WithLogger(log),
	)

	if ignore {
		records, err := excelmap.ParseIgnoringErrors[record](bytes.NewReader(data), cfg.ReverseHeaderMap(), opts...)
		return records, nil, err
	}

	records, cerrs, err := excelmap.Parse[record](bytes.NewReader(data), cfg.ReverseHeaderMap(), opts...)
	if err != nil {
		return nil, nil, err
	}
	for _, ce := range cerrs {
		log.Warn().Str("cell", ce.Cell).Str("header", ce.Header).Err(ce.Err).Msg("cell error")
	}
	return records, cerrs, nil
}
