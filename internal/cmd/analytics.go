package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nhle/smart-onboard/internal/app"
	"github.com/nhle/smart-onboard/internal/model"
)

func newAnalyticsCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analytics",
		Short: "Per-source user and engagement counters",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print analytics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				data := a.Analytics.Data(ctx)
				if opts.json {
					return printJSON(cmd.OutOrStdout(), data)
				}

				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "SOURCE\tUSERS\tVIEWS\tCLICKS\tTIME SPENT")
				for _, src := range model.KnownSources {
					e := data.EngagementBySource[src]
					fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%dms\n", src, data.SourceCounts[src], e.Views, e.Clicks, e.TimeSpentMs)
				}
				return tw.Flush()
			})
		},
	}

	reset := &cobra.Command{
		Use:   "reset",
		Short: "Clear all analytics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				a.Analytics.Reset(ctx)
				fmt.Fprintln(cmd.OutOrStdout(), "analytics reset")
				return nil
			})
		},
	}

	cmd.AddCommand(show, reset)
	return cmd
}
