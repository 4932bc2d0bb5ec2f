package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	schemaFormat string

	schemaCmd = &cobra.Command{
		Use:   "schema",
		Short: "Show the tables and columns of a data file",
		Long: `Print every table in the data file with its columns and types.

Examples:
  lang2sql schema -f sales.csv
  lang2sql schema -f chinook.db --format json`,
		Run: func(cmd *cobra.Command, args []string) {
			file, cleanup, err := openDataFile()
			if err != nil {
				HandleError(err, "Failed to load data file")
			}
			defer cleanup()

			schema, err := file.Schema(cmd.Context())
			if err != nil {
				HandleError(err, "Failed to read schema")
			}

			if schemaFormat == "json" {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				if err := enc.Encode(schema); err != nil {
					HandleError(err, "Failed to encode JSON")
				}
				return
			}

			for _, tbl := range schema {
				fmt.Printf("Table: %s\n", tbl.Name)
				t := table.NewWriter()
				t.SetOutputMirror(os.Stdout)
				t.SetStyle(table.StyleLight)
				t.AppendHeader(table.Row{"Column", "Type"})
				for _, col := range tbl.Columns {
					t.AppendRow(table.Row{col.Name, col.Type})
				}
				t.Render()
				fmt.Println()
			}
		},
	}
)

func init() {
	schemaCmd.Flags().StringVar(&schemaFormat, "format", "table", "Output format: table, json")
	rootCmd.AddCommand(schemaCmd)
}
