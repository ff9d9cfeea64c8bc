package commands

import (
	"log/slog"

	"dgesscraper/lib/resultsdb"
	"dgesscraper/lib/serviceutil"
	"dgesscraper/lib/sqliteutil"

	"github.com/spf13/cobra"
)

var exportDb *string
var exportOut *string
var exportFilter filterFlags

func init() {
	exportDb = exportCmd.Flags().String("db", "results.dges", "The database file to read.")
	exportOut = exportCmd.Flags().String("out", "results.sqlite", "The sqlite file to write.")
	exportFilter = registerFilterFlags(exportCmd)
	rootCmd.AddCommand(exportCmd)
}

var exportCmd = &cobra.Command{
	Use:   "export [--db <path>] [--out <path/to/results.sqlite>]",
	Short: "Exports candidate entries to a sqlite database for SQL querying.",
	Run: func(cmd *cobra.Command, args []string) {
		db := loadDatabase(*exportDb)

		out, err := sqliteutil.OpenDB(resultsdb.Schema, *exportOut)
		if err != nil {
			serviceutil.Fatal("failed to open sqlite output", err)
		}
		defer out.Close()

		count, err := resultsdb.Export(cmd.Context(), out, db, exportFilter.filter())
		if err != nil {
			serviceutil.Fatal("failed to export students", err)
		}
		slog.Info("exported students", "count", count, "out", *exportOut)
	},
}
