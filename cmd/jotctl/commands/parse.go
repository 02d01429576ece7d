package commands

import (
	"strings"

	"github.com/benvon/jotjot/internal/parser"
	"github.com/spf13/cobra"
)

func newParseCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "parse <utterance>...",
		Short: "Show the fields extracted from an utterance",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return printResult(cmd.OutOrStdout(), flags.output, parser.Parse(strings.Join(args, " ")))
		},
	}
}
