package commands

import (
	"fmt"

	"github.com/benvon/jotjot/internal/app"
	"github.com/benvon/jotjot/internal/models"
	"github.com/spf13/cobra"
)

func newPreferenceCmd(deps Deps, flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preference",
		Short: "Inspect or change a user's email preference",
	}
	cmd.AddCommand(newPreferenceGetCmd(deps, flags))
	cmd.AddCommand(newPreferenceSetCmd(deps, flags, "enable", true))
	cmd.AddCommand(newPreferenceSetCmd(deps, flags, "disable", false))
	return cmd
}

func newPreferenceGetCmd(deps Deps, flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "get <user-id>",
		Short: "Show a user's stored preference",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, deps, AppOptions{Debug: flags.debug}, func(a *app.App) error {
				pref := a.Store.GetPreference(cmd.Context(), args[0])
				if pref == nil {
					return fmt.Errorf("no preference stored for %s", args[0])
				}
				return printResult(cmd.OutOrStdout(), flags.output, pref)
			})
		},
	}
}

func newPreferenceSetCmd(deps Deps, flags *rootFlags, verb string, enabled bool) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " <user-id>",
		Short: fmt.Sprintf("Turn daily report emails %s for a user", map[bool]string{true: "on", false: "off"}[enabled]),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, deps, AppOptions{Debug: flags.debug}, func(a *app.App) error {
				ctx := cmd.Context()
				if a.Store.GetPreference(ctx, args[0]) == nil {
					return fmt.Errorf("no preference stored for %s", args[0])
				}
				if err := a.Store.SetPreference(ctx, args[0], models.PreferenceUpdate{EmailSummaryEnabled: &enabled}); err != nil {
					return err
				}
				return printResult(cmd.OutOrStdout(), flags.output, a.Store.GetPreference(ctx, args[0]))
			})
		},
	}
}
