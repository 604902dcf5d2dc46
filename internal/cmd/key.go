package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nhle/smart-onboard/internal/app"
	"github.com/nhle/smart-onboard/internal/credential"
)

func newKeyCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "key",
		Short: "Manage the Gemini API key",
	}

	set := &cobra.Command{
		Use:   "set [api-key]",
		Short: "Store an API key (read from stdin when omitted)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := ""
			if len(args) == 1 {
				key = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("reading API key: %w", err)
				}
				key = line
			}
			key = strings.TrimSpace(key)

			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				if err := a.SetAPIKey(ctx, key); err != nil {
					if errors.Is(err, credential.ErrInvalidKeyFormat) {
						return fmt.Errorf("%w: expected at least 30 letters, digits, '-' or '_'", err)
					}
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "API key saved")
				return nil
			})
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove the stored API key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				a.ClearAPIKey(ctx)
				fmt.Fprintln(cmd.OutOrStdout(), "API key removed")
				return nil
			})
		},
	}

	cmd.AddCommand(set, clearCmd)
	return cmd
}
