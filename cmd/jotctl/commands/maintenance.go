package commands

import (
	"github.com/benvon/jotjot/internal/app"
	"github.com/spf13/cobra"
)

func newMaintenanceCmd(deps Deps, flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "maintenance",
		Short: "Collect operational metrics",
	}

	var (
		tables    []string
		functions []string
		target    string
		dryRun    bool
	)
	run := &cobra.Command{
		Use:   "run",
		Short: "Collect table and function metrics and mail the report",
		Long:  "Defaults to the configured tables and functions. --target overrides the operator address.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, deps, AppOptions{Debug: flags.debug, LogOnlyMail: dryRun}, func(a *app.App) error {
				if len(tables) == 0 {
					tables = a.Config.MaintenanceTables
				}
				if len(functions) == 0 {
					functions = a.Config.MaintenanceFunctions
				}
				rep, err := a.Maintenance.CollectAndReport(cmd.Context(), tables, functions, target)
				if rep != nil {
					if printErr := printResult(cmd.OutOrStdout(), flags.output, rep); printErr != nil {
						return printErr
					}
				}
				return err
			})
		},
	}
	run.Flags().StringSliceVar(&tables, "table", nil, "table to count (repeatable)")
	run.Flags().StringSliceVar(&functions, "function", nil, "function to measure (repeatable)")
	run.Flags().StringVar(&target, "target", "", "send the report here instead of the operator")
	run.Flags().BoolVar(&dryRun, "dry-run", false, "log the report instead of sending")

	cmd.AddCommand(run)
	return cmd
}
