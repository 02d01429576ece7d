package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/benvon/jotjot/internal/app"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newInvokeCmd(deps Deps, flags *rootFlags) *cobra.Command {
	var (
		file   string
		dryRun bool
	)
	cmd := &cobra.Command{
		Use:   "invoke -f <event.yaml|event.json>",
		Short: "Route an invocation payload as the Lambda entry point would",
		Long:  "The payload may be YAML or JSON; '-' reads stdin. Skill envelopes and direct events are both accepted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readPayload(cmd.InOrStdin(), file)
			if err != nil {
				return err
			}
			return withApp(cmd, deps, AppOptions{Debug: flags.debug, LogOnlyMail: dryRun}, func(a *app.App) error {
				out, err := a.Router.Route(cmd.Context(), raw)
				if err != nil {
					return err
				}
				return printResult(cmd.OutOrStdout(), flags.output, out)
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "payload file, or - for stdin")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "log outgoing mail instead of sending")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// readPayload loads a YAML or JSON document and returns it as JSON. YAML is a
// superset of JSON so one decoder serves both.
func readPayload(stdin io.Reader, file string) (json.RawMessage, error) {
	var data []byte
	var err error
	if file == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(file)
	}
	if err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}

	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	if doc == nil {
		return nil, fmt.Errorf("payload %s is empty", file)
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return raw, nil
}
