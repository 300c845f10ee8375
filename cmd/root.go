package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the inboxgist application
var rootCmd = &cobra.Command{
	Use:   "inboxgist",
	Short: "Gmail retrieval pipeline with LLM summaries",
	Long: `inboxgist signs in to a Gmail account, walks the mailbox through
the raw Gmail REST API and reduces message payload trees into compact,
LLM-ready projections that can be summarized via an OpenAI-compatible
chat-completion endpoint.

It can run as:
  - An HTTP service exposing the retrieval and summarization API (default)
  - A CLI for one-off fetches and OAuth token management`,
	SilenceUsage: true,
}

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "inboxgist version %s\n" .Version}}`)

	// If no subcommand is provided, run the serve command by default
	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newFetchCmd())
	rootCmd.AddCommand(newAuthCmd())
	rootCmd.AddCommand(newVersionCmd())
}
