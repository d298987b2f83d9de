// Command excelmap converts JSON records to XLSX sheets and back, using a
// YAML mapping file between record keys and column headers.
//
//	excelmap export -m users.yaml -i users.json -o users.xlsx
//	excelmap import -m users.yaml -i users.xlsx -o users.json
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	mappingFile string
	verbose     bool

	logger zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "excelmap",
	Short: "Map JSON records to spreadsheet columns by header text",
	Long: `excelmap saves JSON records into an XLSX sheet and parses sheets back into
JSON records. Columns are identified by their header text, as declared in a
YAML mapping file, never by their position.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := zerolog.InfoLevel
		if verbose {
			level = zerolog.DebugLevel
		}
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
			Level(level).
			With().Timestamp().Logger()
	},
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&mappingFile, "mapping", "m", "mapping.yaml", "Path to the YAML mapping file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(exportCmd, importCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
