package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nhle/smart-onboard/internal/app"
	"github.com/nhle/smart-onboard/internal/model"
)

func newTrackCmd(opts *options) *cobra.Command {
	var (
		typ      string
		duration int64
	)

	cmd := &cobra.Command{
		Use:   "track <content-id>",
		Short: "Record an interaction with content",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			it, ok := model.ParseInteractionType(typ)
			if !ok {
				return fmt.Errorf("invalid interaction type %q (valid: view, like, share, save, comment)", typ)
			}

			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				if _, err := opts.content(a, args[0]); err != nil {
					return err
				}
				if _, err := opts.user(ctx, a); err != nil {
					return err
				}
				if err := a.Tracker.TrackInteraction(ctx, opts.userID, args[0], it, duration); err != nil {
					return err
				}
				// Let a triggered interest refresh finish before exiting.
				a.Tracker.Wait()

				fmt.Fprintf(cmd.OutOrStdout(), "recorded %s on %s\n", it, args[0])
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&typ, "type", string(model.InteractionView), "interaction type")
	cmd.Flags().Int64Var(&duration, "duration", 0, "view duration in milliseconds")
	return cmd
}

func newEngagementCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "engagement",
		Short: "Show the user's engagement score",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				if _, err := opts.user(ctx, a); err != nil {
					return err
				}
				eng, err := a.Tracker.EngagementScore(ctx, opts.userID)
				if err != nil {
					return err
				}
				if opts.json {
					return printJSON(cmd.OutOrStdout(), eng)
				}

				w := cmd.OutOrStdout()
				fmt.Fprintf(w, "overall    %3d\n", eng.Overall)
				for _, src := range model.KnownSources {
					fmt.Fprintf(w, "%-10s %3d\n", src, eng.BySource[src])
				}
				return nil
			})
		},
	}
}
