// nudge is a chat assistant that turns commitments into escalating reminders
// and warns about calendar invitations that clash with accepted meetings.
package main

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/vthunder/nudge/internal/logging"
)

func main() {
	root := &cobra.Command{
		Use:           "nudge",
		Short:         "Reminder and calendar conflict assistant",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(serveCmd(), conflictsCmd(), slotsCmd())

	err := root.Execute()
	if err != nil {
		logging.Error("main", "%v", err)
	}
	logging.Sync()
	if err != nil {
		os.Exit(1)
	}
}
