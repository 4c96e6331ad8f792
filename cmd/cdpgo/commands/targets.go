package commands

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// targets: list the debuggable targets the browser reports.
func targetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "targets",
		Short: "List debuggable targets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			targets, err := client.Targets(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			index := color.New(color.FgCyan).SprintfFunc()
			title := color.New(color.Bold).SprintFunc()
			faint := color.New(color.Faint).SprintFunc()
			for i, tgt := range targets {
				fmt.Fprintf(out, "%s %s (%s)\n", index("[%d]", i), title(tgt.Title), tgt.Type)
				fmt.Fprintf(out, "    %s\n", tgt.URL)
				fmt.Fprintf(out, "    %s\n", faint(tgt.ID))
			}
			return nil
		},
	}
}
