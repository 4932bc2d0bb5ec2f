package cmd

import (
	"context"
	"fmt"

	"charm.land/fantasy"
	"github.com/spf13/cobra"

	"lang2sql/internal/agent"
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask an open question about a data file using Claude AI via Fantasy",
	Long: `Ask a free-form question and let an AI agent explore the data file to
answer it. Unlike 'translate' and 'chat', the agent may run several
read-only queries before answering, and it never modifies the data.

Requires ANTHROPIC_API_KEY environment variable to be set.

Examples:
  lang2sql ask -f chinook.db "Which artist sells best, and is that stable across years?"
  lang2sql ask -f sales.csv "Are there any obvious outliers in this data?"`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		question := args[0]
		cfg := loadConfig()

		file, cleanup, err := openDataFile()
		if err != nil {
			HandleError(err, "Failed to load data file")
		}
		defer cleanup()

		opts := []agent.AgentOption{
			agent.WithAPIKeyFromEnv(),
			agent.WithRowLimit(cfg.RowLimit),
		}
		if cfg.APIKey != "" {
			opts = []agent.AgentOption{
				agent.WithAPIKey(cfg.APIKey),
				agent.WithRowLimit(cfg.RowLimit),
			}
		}
		fantasyAgent, err := agent.NewAskAgent(file, opts...)
		if err != nil {
			HandleError(err, "Failed to create agent")
		}

		ctx := context.Background()

		result, err := fantasyAgent.Generate(ctx, fantasy.AgentCall{Prompt: question})
		if err != nil {
			HandleError(err, "Failed to generate response")
		}

		fmt.Println(result.Response.Content.Text())
	},
}

func init() {
	rootCmd.AddCommand(askCmd)
}
