package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var eventsCount int

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Watch gateway events",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _, err := mustClient()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		seen := 0
		return client.StreamEvents(cmd.Context(), func(evt EventEnvelope) bool {
			if evt.Type == "ready" || evt.Type == "ping" {
				return true
			}
			if outputFormat == "json" {
				_ = printJSON(out, evt)
			} else {
				ts := evt.Timestamp
				if ts.IsZero() {
					ts = time.Now()
				}
				fmt.Fprintf(out, "%s\t%s\t%s\n", ts.Format(time.RFC3339), evt.Type, string(evt.Data))
			}
			seen++
			return eventsCount <= 0 || seen < eventsCount
		})
	},
}

func init() {
	eventsCmd.Flags().IntVar(&eventsCount, "count", 0, "Stop after this many events (0 streams forever)")
}
