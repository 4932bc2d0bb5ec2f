package cmd

import (
	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with a data file in the terminal",
	Long: `Launch the interactive chat TUI against a data file. Each message is
translated to SQL, executed, and the result shown inline. The file on
disk is only updated when you save from inside the session.

Requires ANTHROPIC_API_KEY environment variable to be set.

Example:
  lang2sql chat -f chinook.db`,
	Run: func(cmd *cobra.Command, args []string) {
		LaunchTUI(cfgFile, dataPath)
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
}
