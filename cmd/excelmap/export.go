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
	exportIn     string
	exportOut    string
	exportStrict bool
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Save JSON records into an XLSX sheet",
	Long: `export reads a JSON array of objects and writes one row per object, one
column per mapped property. Objects missing a mapped key are reported and
written as the mapping's placeholder; with --strict (or strict: true in the
mapping) nothing is written when any key is missing.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := mapping.Load(mappingFile)
		if err != nil {
			return err
		}
		if exportStrict {
			cfg.Strict = true
		}

		in, err := os.Open(exportIn)
		if err != nil {
			return err
		}
		defer in.Close()

		var buf bytes.Buffer
		written, err := exportRecords(cfg, in, &buf, logger)
		if err != nil {
			return err
		}
		if !written {
			return fmt.Errorf("datum errors found, %s not written", exportOut)
		}
		if err := os.WriteFile(exportOut, buf.Bytes(), 0o644); err != nil {
			return err
		}
		logger.Info().Str("file", exportOut).Msg("workbook written")
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportIn, "in", "i", "", "JSON records file")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "XLSX output file")
	exportCmd.Flags().BoolVar(&exportStrict, "strict", false, "Write nothing if any record misses a mapped key")
	_ = exportCmd.MarkFlagRequired("in")
	_ = exportCmd.MarkFlagRequired("out")
}

// exportRecords saves the JSON records read from in as a workbook into out.
// It reports whether the workbook was written.
func exportRecords(cfg *mapping.Config, in io.Reader, out io.Writer, log zerolog.Logger) (bool, error) {
	records, err := readRecords(in)
	if err != nil {
		return false, err
	}

	opts := append(cfg.Options(),
		excelmap.UseSchema(recordSchema(cfg.Props())),
		excelmap.WithLogger(log),
	)
	derrs, err := excelmap.Save(out, cfg.HeaderMap(), records, opts...)
	if err != nil {
		return false, err
	}
	for _, de := range derrs {
		log.Warn().Int("record", de.Record).Str("prop", de.Prop).Err(de.Err).Msg("datum error")
	}
	return !cfg.Strict || len(derrs) == 0, nil
}
