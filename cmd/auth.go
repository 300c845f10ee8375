package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/inboxgist/inboxgist/internal/config"
	"github.com/inboxgist/inboxgist/internal/google"
)

func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage the cached Google OAuth token used by fetch",
	}

	cmd.AddCommand(newAuthSetupCmd())
	cmd.AddCommand(newAuthStatusCmd())
	cmd.AddCommand(newAuthRemoveCmd())

	return cmd
}

func newAuthSetupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Authorize Gmail read access and cache the token",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.ValidateOAuth(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			conf := google.NewOOBConfig(cfg.GoogleClientID, cfg.GoogleClientSecret)

			fmt.Println("Open the following URL in your browser and authorize access:")
			fmt.Println()
			fmt.Println("  " + google.AuthCodeURL(conf, "state"))
			fmt.Println()
			fmt.Print("Paste the authorization code here: ")

			code, err := bufio.NewReader(os.Stdin).ReadString('\n')
			if err != nil {
				return fmt.Errorf("failed to read authorization code: %w", err)
			}
			code = strings.TrimSpace(code)
			if code == "" {
				return fmt.Errorf("no authorization code provided")
			}

			if err := google.SaveToken(cmd.Context(), conf, code); err != nil {
				return err
			}

			fmt.Println("Token saved.")
			return nil
		},
	}
}

func newAuthStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report whether a cached token exists",
		RunE: func(cmd *cobra.Command, args []string) error {
			if google.HasToken() {
				fmt.Println("Authenticated: a cached Google token exists.")
				return nil
			}
			return fmt.Errorf("not authenticated, run \"inboxgist auth setup\"")
		},
	}
}

func newAuthRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove",
		Short: "Delete the cached token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := google.RemoveToken(); err != nil {
				return err
			}
			fmt.Println("Token removed.")
			return nil
		},
	}
}
