package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nhle/smart-onboard/internal/app"
	"github.com/nhle/smart-onboard/internal/model"
	"github.com/nhle/smart-onboard/internal/tracker"
)

func newWelcomeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "welcome",
		Short: "Print the welcome message for the user's source",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				user, err := opts.user(ctx, a)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), a.AI.WelcomeMessage(ctx, user.Source))
				return nil
			})
		},
	}
}

func newSummaryCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "summary <content-id>",
		Short: "Summarize content for the user's source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				item, err := opts.content(a, args[0])
				if err != nil {
					return err
				}
				user, err := opts.user(ctx, a)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), a.AI.PersonalizedSummary(ctx, item, user.Source))
				return nil
			})
		},
	}
}

func newRelevanceCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "relevance <content-id>",
		Short: "Score content relevance for every source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				item, err := opts.content(a, args[0])
				if err != nil {
					return err
				}
				scores := a.AI.ScoreRelevance(ctx, item)
				if opts.json {
					return printJSON(cmd.OutOrStdout(), scores)
				}
				for _, src := range model.KnownSources {
					fmt.Fprintf(cmd.OutOrStdout(), "%-10s %3d\n", src, scores[src])
				}
				return nil
			})
		},
	}
}

func newRecommendCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "recommend",
		Short: "List content personalized for the user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				if _, err := opts.user(ctx, a); err != nil {
					return err
				}
				items, err := a.Tracker.PersonalizedContent(ctx, opts.userID)
				if err != nil {
					return err
				}
				return opts.printItems(cmd.OutOrStdout(), items)
			})
		},
	}
}

func newPathCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Suggest a three-step exploration path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				if _, err := opts.user(ctx, a); err != nil {
					return err
				}
				items, err := a.Tracker.ExplorationPath(ctx, opts.userID)
				if err != nil {
					return err
				}
				return opts.printItems(cmd.OutOrStdout(), items)
			})
		},
	}
}

func newInterestsCmd(opts *options) *cobra.Command {
	var set []string

	cmd := &cobra.Command{
		Use:   "interests",
		Short: "Predict interests from viewed content, or set them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				user, err := opts.user(ctx, a)
				if err != nil {
					return err
				}

				var interests []string
				if cmd.Flags().Changed("set") {
					interests = set
				} else {
					viewed := a.Catalog.ByIDs(user.Preferences.ViewedContent)
					interests = a.AI.PredictInterests(ctx, viewed)
				}
				if len(interests) > 0 || cmd.Flags().Changed("set") {
					update := tracker.PreferencesUpdate{Interests: append([]string{}, interests...)}
					if err := a.Tracker.UpdatePreferences(ctx, opts.userID, update); err != nil {
						return err
					}
				}

				if opts.json {
					return printJSON(cmd.OutOrStdout(), interests)
				}
				if len(interests) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "no interests yet; view some content first")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), strings.Join(interests, ", "))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVar(&set, "set", nil, "replace interests with this list")
	return cmd
}
