package commands

import (
	"github.com/benvon/jotjot/internal/app"
	"github.com/benvon/jotjot/internal/report"
	"github.com/benvon/jotjot/internal/validation"
	"github.com/spf13/cobra"
)

func newReportCmd(deps Deps, flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Run the daily email report",
	}

	var opts report.RunOptions
	run := &cobra.Command{
		Use:   "run",
		Short: "Send the daily report to every eligible user",
		Long:  "Send yesterday's log (or --date) to each user with reports enabled. --user limits the run to one user.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Date != "" {
				if err := validation.ValidateDate(opts.Date); err != nil {
					return err
				}
			}
			appOpts := AppOptions{Debug: flags.debug, LogOnlyMail: opts.DryRun}
			return withApp(cmd, deps, appOpts, func(a *app.App) error {
				summary, err := a.Orchestrator.Run(cmd.Context(), opts)
				if err != nil {
					return err
				}
				return printResult(cmd.OutOrStdout(), flags.output, summary)
			})
		},
	}
	run.Flags().BoolVar(&opts.DryRun, "dry-run", false, "log the rendered reports instead of sending")
	run.Flags().StringVar(&opts.UserID, "user", "", "only report for this user id")
	run.Flags().StringVar(&opts.Date, "date", "", "report date (YYYY-MM-DD), default yesterday")

	cmd.AddCommand(run)
	return cmd
}
