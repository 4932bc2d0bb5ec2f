package cmd

import (
	"github.com/spf13/cobra"
)

var (
	cfgFile  string
	dataPath string

	rootCmd = &cobra.Command{
		Use:   "lang2sql",
		Short: "Lang2SQL - Chat with your data files in plain language",
		Long: `Lang2SQL turns natural language into SQL and runs it against your own
data file: a CSV, a spreadsheet, or an embedded SQLite/DuckDB database.

When run without commands with --file set, it launches an interactive
chat TUI. Use 'serve' for the web interface, or subcommands for one-shot
CLI use.`,
		Run: func(cmd *cobra.Command, args []string) {
			// No subcommand specified - launch TUI
			LaunchTUI(cfgFile, dataPath)
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Path to lang2sql.yaml (default: search working directory)")
	rootCmd.PersistentFlags().StringVarP(&dataPath, "file", "f", "", "Path to the data file (.csv, .xlsx, .db, .sqlite, .duckdb)")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
