package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nhle/smart-onboard/internal/ai"
	"github.com/nhle/smart-onboard/internal/app"
	"github.com/nhle/smart-onboard/internal/credential"
	"github.com/nhle/smart-onboard/internal/status"
)

type statusReport struct {
	Credential credential.Status `json:"credential"`
	API        ai.APIStatus      `json:"api"`
	Registry   status.Snapshot   `json:"registry"`
	Network    string            `json:"network,omitempty"`
}

func newStatusCmd(opts *options) *cobra.Command {
	var initialize bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show API key, initialization and connectivity status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				if initialize {
					a.AI.Initialize(ctx)
				}

				report := statusReport{
					Credential: a.Resolver.Status(ctx),
					API:        a.AI.APIStatus(),
					Registry:   a.Registry.Snapshot(),
				}
				if a.Monitor != nil {
					report.Network = a.Monitor.CheckNow(ctx).String()
				}

				if opts.json {
					return printJSON(cmd.OutOrStdout(), report)
				}
				printStatus(cmd, report)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&initialize, "init", false, "attempt initialization before reporting")
	return cmd
}

func printStatus(cmd *cobra.Command, r statusReport) {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "API key:      %s\n", keyLine(r.Credential))
	fmt.Fprintf(w, "State:        %s", r.API.State)
	if r.API.Cause != ai.CauseNone {
		fmt.Fprintf(w, " (%s)", r.API.Cause)
	}
	fmt.Fprintln(w)
	if r.API.Model != "" {
		fmt.Fprintf(w, "Model:        %s\n", r.API.Model)
	}
	fmt.Fprintf(w, "Retries:      %d/%d\n", r.API.RetryCount, r.API.MaxRetries)
	if !r.API.NextAttemptAt.IsZero() {
		fmt.Fprintf(w, "Next attempt: %s\n", r.API.NextAttemptAt.Format(time.RFC3339))
	}
	if r.Registry.QuotaIssues {
		fmt.Fprintln(w, "Quota:        recent quota or rate limit issues")
	}
	if r.Registry.AuthError {
		fmt.Fprintf(w, "Auth error:   %s\n", r.Registry.AuthErrorMessage)
	}
	if r.Network != "" {
		fmt.Fprintf(w, "Network:      %s\n", r.Network)
	}
}

func keyLine(st credential.Status) string {
	switch {
	case !st.HasKey:
		return "not configured"
	case !st.KeyValid:
		return fmt.Sprintf("invalid format (%s)", st.Origin)
	default:
		return fmt.Sprintf("configured (%s)", st.Origin)
	}
}
