package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/A-Cloud-Ninja/ironbar/pkg/dynamic"
	"github.com/A-Cloud-Ninja/ironbar/pkg/script"
)

func newParseCommand() *cobra.Command {
	var (
		jsonOutput bool
		noVars     bool
	)

	cmd := &cobra.Command{
		Use:   "parse TEMPLATE",
		Short: "Show how a template is split into segments",
		Example: `  ironbar parse 'cpu {{poll:1000:cpu.sh}} ##1 #volume'
  ironbar parse --json '{{date}}'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			segments, err := dynamic.NewParser(!noVars).Parse(args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(segments)
			}

			for i, seg := range segments {
				switch seg.Kind {
				case dynamic.SegmentCommand:
					s, err := script.Parse(seg.Value)
					if err != nil {
						fmt.Fprintf(out, "%d\t%s\t%q\tinvalid: %v\n", i, seg.Kind, seg.Value, err)
						continue
					}
					fmt.Fprintf(out, "%d\t%s\t%q\t%s\n", i, seg.Kind, seg.Value, s)
				default:
					fmt.Fprintf(out, "%d\t%s\t%q\n", i, seg.Kind, seg.Value)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output in JSON format")
	cmd.Flags().BoolVar(&noVars, "no-vars", false, "treat #name as plain text")

	return cmd
}
