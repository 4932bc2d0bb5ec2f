package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"
)

var (
	serveAddr string

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start the web server",
		Long: `Start the HTTP web server with the chat interface.

Upload a data file in the browser, ask questions in plain language, and
download the updated database when you are done.`,
		Run: func(cmd *cobra.Command, args []string) {
			runServe()
		},
	}
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVarP(&serveAddr, "addr", "a", "", "Listen address (overrides config, e.g. :8080)")
}

func runServe() {
	cfg := loadConfig()
	if serveAddr != "" {
		cfg.Addr = serveAddr
	}
	if cfg.APIKey == "" {
		HandleError(fmt.Errorf("ANTHROPIC_API_KEY environment variable not set"), "Missing API key")
	}

	fmt.Printf("Starting Lang2SQL web server...\n")
	fmt.Printf("Listen address: %s\n", cfg.Addr)
	fmt.Printf("Session work dir: %s\n\n", cfg.WorkDir)

	if err := StartServer(cfg); err != nil {
		log.Fatalf("Server failed: %v\n", err)
	}
}
