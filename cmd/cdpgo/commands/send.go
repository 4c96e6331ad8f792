package commands

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wirebird/cdpgo/cdp"
)

// send <method> [params-json]: connect to a tab, issue one command, print the
// result.
func sendCmd() *cobra.Command {
	var (
		tab      int
		targetID string
	)
	cmd := &cobra.Command{
		Use:   "send <method> [params-json]",
		Short: "Send a single command and print its result",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var params map[string]any
			if len(args) == 2 {
				if err := json.Unmarshal([]byte(args[1]), &params); err != nil {
					return fmt.Errorf("parsing params: %w", err)
				}
			}

			session, err := connectSession(cmd, tab, targetID)
			if err != nil {
				return err
			}
			defer session.Close() //nolint:errcheck

			res, err := session.SendWithTimeout(args[0], params, cfg.Timeout)
			if err != nil {
				return err
			}

			var pretty bytes.Buffer
			if err := json.Indent(&pretty, res.Result, "", "  "); err != nil {
				return fmt.Errorf("formatting result: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), pretty.String())
			return nil
		},
	}
	cmd.Flags().IntVar(&tab, "tab", 0, "tab index to connect to")
	cmd.Flags().StringVar(&targetID, "target", "", "target id to connect to (overrides --tab)")
	return cmd
}

func connectSession(cmd *cobra.Command, tab int, targetID string) (*cdp.Session, error) {
	if targetID != "" {
		return client.ConnectToTarget(cmd.Context(), targetID)
	}
	return client.ConnectToTab(cmd.Context(), tab)
}
