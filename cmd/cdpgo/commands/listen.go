package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wirebird/cdpgo/cdp"
)

// listen: connect to a tab and print incoming events until the wait budget
// runs dry.
func listenCmd() *cobra.Command {
	var (
		tab      int
		targetID string
		event    string
		count    int
	)
	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Stream events from a tab",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := connectSession(cmd, tab, targetID)
			if err != nil {
				return err
			}
			defer session.Close() //nolint:errcheck

			match := func(m *cdp.Message) bool {
				if m.Method == "" {
					return false
				}
				return event == "" || string(m.Method) == event
			}

			for seen := 0; count == 0 || seen < count; seen++ {
				msg, err := session.WaitFor(match, cfg.Timeout)
				if errors.Is(err, cdp.ErrNoMessage) {
					logger.Infof("listen", "no matching event within %s", cfg.Timeout)
					return nil
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", msg.Method, string(msg.Params))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&tab, "tab", 0, "tab index to connect to")
	cmd.Flags().StringVar(&targetID, "target", "", "target id to connect to (overrides --tab)")
	cmd.Flags().StringVar(&event, "event", "", "only print events with this method")
	cmd.Flags().IntVar(&count, "count", 0, "stop after this many events (0 = until timeout)")
	return cmd
}
