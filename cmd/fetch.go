package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/inboxgist/inboxgist/internal/config"
	"github.com/inboxgist/inboxgist/internal/gmail"
	"github.com/inboxgist/inboxgist/internal/google"
)

func newFetchCmd() *cobra.Command {
	var (
		query        string
		labelIDs     []string
		limit        int
		format       string
		maxTextChars int
		preferPlain  bool
	)

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch Gmail messages and print them as JSON lines",
		Long: `Fetch messages matching a Gmail query and print one JSON document per
message to stdout.

Formats:
  normalized   headers plus decoded text and HTML bodies
  full         the full payload tree with attachments stripped to metadata
  projection   a single-body record sized for LLM prompts

Requires a cached OAuth token; run "inboxgist auth setup" first.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFetch(cmd.Context(), query, labelIDs, limit, format, maxTextChars, preferPlain)
		},
	}

	cmd.Flags().StringVarP(&query, "query", "q", "", "Gmail search query, e.g. 'in:inbox is:unread'")
	cmd.Flags().StringSliceVar(&labelIDs, "label-ids", nil, "Restrict to messages carrying all of these label IDs")
	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum number of messages to fetch (0 means all)")
	cmd.Flags().StringVar(&format, "format", "normalized", "Output format: normalized, full, or projection")
	cmd.Flags().IntVar(&maxTextChars, "max-text-chars", gmail.DefaultMaxTextChars, "Character cap for decoded text bodies (full format)")
	cmd.Flags().BoolVar(&preferPlain, "prefer-plain", true, "Prefer the plain-text body over HTML (projection format)")

	return cmd
}

func runFetch(ctx context.Context, query string, labelIDs []string, limit int, format string, maxTextChars int, preferPlain bool) error {
	switch format {
	case "normalized", "full", "projection":
	default:
		return fmt.Errorf("unknown format %q (want normalized, full, or projection)", format)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.ValidateOAuth(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	conf := google.NewOOBConfig(cfg.GoogleClientID, cfg.GoogleClientSecret)
	hc, err := google.GetHTTPClient(ctx, conf)
	if err != nil {
		return fmt.Errorf("not authenticated, run \"inboxgist auth setup\": %w", err)
	}

	client := gmail.NewClient(hc)
	enc := json.NewEncoder(os.Stdout)

	switch format {
	case "normalized":
		return client.ForeachNormalizedMessage(ctx, query, labelIDs, limit,
			func(m *gmail.NormalizedMessage) error { return enc.Encode(m) })
	case "full":
		return client.ForeachMessageFullNoBlobs(ctx, query, labelIDs, limit, maxTextChars,
			func(m *gmail.StrippedMessage) error { return enc.Encode(m) })
	default:
		return client.ForeachLlmProjection(ctx, query, labelIDs, limit, preferPlain,
			func(p *gmail.LlmProjection) error { return enc.Encode(p) })
	}
}
