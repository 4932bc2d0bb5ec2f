package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	queryString  string
	queryFormat  string
	queryOutPath string

	queryCmd = &cobra.Command{
		Use:   "query",
		Short: "Run a SQL statement against a data file",
		Long: `Execute the given SQL statement directly, bypassing translation.
Read statements print their rows; write statements print the affected-row
count. Writes happen on a scratch copy: use --out to save the updated
database to a file.

Examples:
  lang2sql query -f sales.csv --sql "SELECT * FROM sales LIMIT 5"
  lang2sql query -f chinook.db --sql "SELECT COUNT(*) FROM Invoice" --format json
  lang2sql query -f chinook.db --sql "DELETE FROM Invoice WHERE Total = 0" --out updated.db`,
		Run: func(cmd *cobra.Command, args []string) {
			file, cleanup, err := openDataFile()
			if err != nil {
				HandleError(err, "Failed to load data file")
			}
			defer cleanup()

			result, err := file.Execute(cmd.Context(), queryString)
			if err != nil {
				HandleError(err, "Failed to execute query")
			}

			if err := renderResult(os.Stdout, result, queryFormat); err != nil {
				HandleError(err, "Failed to render result")
			}

			if queryOutPath != "" {
				data, err := file.Serialize(cmd.Context())
				if err != nil {
					HandleError(err, "Failed to serialize database")
				}
				if err := os.WriteFile(queryOutPath, data, 0o644); err != nil {
					HandleError(err, "Failed to write output file")
				}
				fmt.Printf("Saved updated database to %s\n", queryOutPath)
			}
		},
	}
)

func init() {
	queryCmd.Flags().StringVarP(&queryString, "sql", "q", "", "SQL statement to execute (required)")
	queryCmd.Flags().StringVar(&queryFormat, "format", "table", "Output format: table, json, csv, md")
	queryCmd.Flags().StringVarP(&queryOutPath, "out", "o", "", "Write the updated database to this path")
	_ = queryCmd.MarkFlagRequired("sql")
	rootCmd.AddCommand(queryCmd)
}
