package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/bpd-ops/central/depgraph"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show connection state and workload summary",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	eng, cleanup, err := openEngine(cmd.Context())
	if err != nil {
		return err
	}
	defer cleanup()

	state := eng.Snapshot()

	mode := "local"
	if eng.HasCredentials() {
		mode = "remote"
	}
	conn := "offline"
	if eng.Status() {
		conn = "connected"
	}
	fmt.Printf("Mode:      %s (%s)\n", mode, conn)
	if state.CurrentUser != nil {
		fmt.Printf("User:      %s (%s)\n", state.CurrentUser.Name, state.CurrentUser.Role)
	}
	fmt.Printf("Tasks:     %d\n", len(state.Tasks))
	fmt.Printf("Programs:  %d\n", len(state.Programs))
	fmt.Printf("Users:     %d\n", len(state.Users))

	if state.CurrentUser == nil {
		return nil
	}

	stats := depgraph.UserStats(state.CurrentUser.ID, state.Tasks)
	blockers := depgraph.DirectBlockers(state.CurrentUser.ID, state.Tasks)

	fmt.Println()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ASSIGNED\tCOMPLETED\tIN PROGRESS\tRATE\tBLOCKERS")
	fmt.Fprintf(w, "%d\t%d\t%d\t%d%%\t%d\n",
		stats.Total, stats.Completed, stats.InProgress, stats.Rate, len(blockers))
	return w.Flush()
}
