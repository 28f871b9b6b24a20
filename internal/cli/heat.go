package cli

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/bpd-ops/central/depgraph"
)

var heatCmd = &cobra.Command{
	Use:   "heat",
	Short: "Score funding programs by priority and deadline pressure",
	RunE:  runHeat,
}

func runHeat(cmd *cobra.Command, args []string) error {
	eng, cleanup, err := openEngine(cmd.Context())
	if err != nil {
		return err
	}
	defer cleanup()

	state := eng.Snapshot()
	heat := depgraph.HeatByProgram(state.Programs, state.Tasks, time.Now())

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PROGRAM\tLEVEL\tSCORE\tACTIVE\tCRITICAL\tDUE <48H")
	for _, h := range heat {
		fmt.Fprintf(w, "%s\t%s\t%.1f\t%d\t%d\t%d\n",
			h.Program.Name, h.Level(), h.Score, h.TaskCount, h.CriticalTasks, h.UpcomingTasks)
	}
	return w.Flush()
}
