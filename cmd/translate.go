package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"lang2sql/internal/translator"
)

var translateExecute bool

var translateCmd = &cobra.Command{
	Use:   "translate [question]",
	Short: "Translate a question into SQL",
	Long: `Send the question plus the data file's schema to Claude and print the
generated SQL statement. Nothing is executed unless --execute is given,
useful for checking what a question would do before letting it touch the
data. With --execute the statement runs against the working copy and the
result is printed; the original file is never modified.

Requires ANTHROPIC_API_KEY environment variable to be set.

Examples:
  lang2sql translate -f chinook.db "How many invoices are from Berlin?"
  lang2sql translate -f sales.csv --execute "Count the rows with no amount"`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		question := args[0]
		cfg := loadConfig()

		file, cleanup, err := openDataFile()
		if err != nil {
			HandleError(err, "Failed to load data file")
		}
		defer cleanup()

		schema, err := file.Schema(cmd.Context())
		if err != nil {
			HandleError(err, "Failed to read schema")
		}

		t, err := translator.New(cfg.APIKey,
			translator.WithModel(cfg.Model),
			translator.WithMaxTokens(cfg.MaxTokens),
		)
		if err != nil {
			HandleError(err, "Failed to create translator")
		}

		stmt, err := t.Translate(cmd.Context(), question, schema)
		if err != nil {
			HandleError(err, "Translation failed")
		}

		fmt.Println(stmt.SQL)
		if stmt.Explanation != "" {
			fmt.Printf("-- %s (%s)\n", stmt.Explanation, stmt.Kind)
		}

		if !translateExecute {
			return
		}
		result, err := file.Execute(cmd.Context(), stmt.SQL)
		if err != nil {
			HandleError(err, "Execution failed")
		}
		fmt.Println()
		if err := renderResult(os.Stdout, result, "table"); err != nil {
			HandleError(err, "Failed to render result")
		}
	},
}

func init() {
	translateCmd.Flags().BoolVar(&translateExecute, "execute", false, "run the generated SQL against the working copy")
	rootCmd.AddCommand(translateCmd)
}
