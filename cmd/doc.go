// Package cmd implements the command-line interface for inboxgist.
//
// This package provides the following commands:
//   - serve: Start the HTTP API server (sign-in, Gmail reads, summarization)
//   - fetch: Fetch messages from the CLI and print them as JSON lines
//   - auth: Manage the cached Google OAuth token used by fetch
//   - version: Display version information
//
// The serve command is the default command when no subcommand is specified.
package cmd
