// Package commands implements the jotctl operator CLI.
package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/benvon/jotjot/internal/app"
	"github.com/benvon/jotjot/internal/queue"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// AppOptions adjust how a command's App is built
type AppOptions struct {
	Debug       bool
	LogOnlyMail bool
}

// Deps are the constructors commands call. Tests replace them.
type Deps struct {
	NewApp   func(ctx context.Context, opts AppOptions) (*app.App, error)
	NewQueue func(ctx context.Context) (queue.JobQueue, error)
}

type rootFlags struct {
	output string
	debug  bool
}

// NewRootCmd creates the jotctl command tree
func NewRootCmd(deps Deps) *cobra.Command {
	flags := &rootFlags{}
	rootCmd := &cobra.Command{
		Use:           "jotctl",
		Short:         "Operator tool for the JotJot daily log skill",
		Long:          "Run reports and maintenance, inspect preferences, parse utterances and replay invocation events.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&flags.output, "output", "o", "yaml", "output format (yaml|json)")
	rootCmd.PersistentFlags().BoolVar(&flags.debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(newReportCmd(deps, flags))
	rootCmd.AddCommand(newPreferenceCmd(deps, flags))
	rootCmd.AddCommand(newMaintenanceCmd(deps, flags))
	rootCmd.AddCommand(newParseCmd(flags))
	rootCmd.AddCommand(newInvokeCmd(deps, flags))
	rootCmd.AddCommand(newEnqueueCmd(deps, flags))
	return rootCmd
}

// withApp builds an App, runs fn and closes the App
func withApp(cmd *cobra.Command, deps Deps, opts AppOptions, fn func(*app.App) error) error {
	a, err := deps.NewApp(cmd.Context(), opts)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()
	return fn(a)
}

// printResult writes v to the command's output in the selected format
func printResult(w io.Writer, format string, v any) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml", "":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}
