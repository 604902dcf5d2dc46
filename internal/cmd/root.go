// Package cmd implements the smartonboard command line.
package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nhle/smart-onboard/internal/app"
	"github.com/nhle/smart-onboard/internal/logging"
	"github.com/nhle/smart-onboard/internal/model"
	"github.com/nhle/smart-onboard/internal/tracker"
)

const defaultUserID = "demo-user"

type options struct {
	configPath string
	userID     string
	source     string
	json       bool
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:          "smartonboard",
		Short:        "Source-aware onboarding and recommendations",
		Long:         `smartonboard personalizes content for users by the channel they arrived from, using Gemini when it is available and local fallbacks when it is not.`,
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", model.DefaultConfigPath(), "path to the configuration file")
	flags.StringVar(&opts.userID, "user", defaultUserID, "user ID")
	flags.StringVar(&opts.source, "source", "", "arrival source (instagram, referral, blog, direct)")
	flags.BoolVar(&opts.json, "json", false, "print JSON")

	root.AddCommand(
		newStatusCmd(opts),
		newKeyCmd(opts),
		newWelcomeCmd(opts),
		newSummaryCmd(opts),
		newRelevanceCmd(opts),
		newRecommendCmd(opts),
		newPathCmd(opts),
		newInterestsCmd(opts),
		newTrackCmd(opts),
		newEngagementCmd(opts),
		newAnalyticsCmd(opts),
		newConfigCmd(opts),
	)
	return root
}

// withApp loads configuration, starts the application for the duration of
// fn and closes it afterwards.
func (o *options) withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) (err error) {
	cfg, err := model.LoadConfig(o.configPath, "")
	if err != nil {
		return err
	}

	log, err := logging.New(cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	a, err := app.New(app.Options{Config: cfg, Log: log})
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a.Start(ctx)
	return fn(ctx, a)
}

// user loads the current user, creating it when missing. An explicit
// --source updates the stored one.
func (o *options) user(ctx context.Context, a *app.App) (model.User, error) {
	if o.source != "" {
		return a.Tracker.InitUser(ctx, o.userID, model.ParseSource(o.source))
	}
	u, err := a.Tracker.User(ctx, o.userID)
	if errors.Is(err, tracker.ErrUserNotFound) {
		return a.Tracker.InitUser(ctx, o.userID, model.SourceDirect)
	}
	return u, err
}

func (o *options) content(a *app.App, id string) (model.ContentItem, error) {
	item, ok := a.Catalog.Get(id)
	if !ok {
		return model.ContentItem{}, fmt.Errorf("unknown content %q", id)
	}
	return item, nil
}

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// printItems lists content one per line, or as JSON.
func (o *options) printItems(w io.Writer, items []model.ContentItem) error {
	if o.json {
		return printJSON(w, items)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for i, item := range items {
		fmt.Fprintf(tw, "%d.\t%s\t%s\n", i+1, item.ID, item.Title)
	}
	return tw.Flush()
}
