package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/bpd-ops/central/depgraph"
	"github.com/bpd-ops/central/model"
)

var (
	tasksBlocked   bool
	tasksBlocking  bool
	tasksUnblocked bool
	tasksUser      string
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "List tasks with dependency state",
	RunE:  runTasks,
}

func init() {
	tasksCmd.Flags().BoolVar(&tasksBlocked, "blocked", false, "only tasks waiting on an incomplete prerequisite")
	tasksCmd.Flags().BoolVar(&tasksBlocking, "blocking", false, "only tasks that hold up other work")
	tasksCmd.Flags().BoolVar(&tasksUnblocked, "unblocked", false, "only open tasks whose prerequisites all completed")
	tasksCmd.Flags().StringVar(&tasksUser, "user", "", "only tasks assigned to this user ID")
}

func runTasks(cmd *cobra.Command, args []string) error {
	eng, cleanup, err := openEngine(cmd.Context())
	if err != nil {
		return err
	}
	defer cleanup()

	state := eng.Snapshot()
	all := state.Tasks

	var rows []model.Task
	switch {
	case tasksUnblocked:
		userID := tasksUser
		if userID == "" && state.CurrentUser != nil {
			userID = state.CurrentUser.ID
		}
		rows = depgraph.NewlyUnblocked(userID, all)
	default:
		for _, t := range all {
			if tasksUser != "" && t.AssignedToID != tasksUser {
				continue
			}
			if tasksBlocked && !depgraph.IsBlocked(t, all) {
				continue
			}
			if tasksBlocking && !depgraph.IsBlocking(t, all) {
				continue
			}
			rows = append(rows, t)
		}
	}

	if len(rows) == 0 {
		fmt.Println("No tasks.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tPROGRAM\tASSIGNEE\tSTATUS\tPROGRESS\tDEPS")
	for _, t := range rows {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d%%\t%s\n",
			t.ID, t.Name, t.Program, t.AssignedTo, depState(t, all), t.Progress, depList(t))
	}
	return w.Flush()
}

// depState renders status plus dependency markers, e.g. "Open [blocked]".
func depState(t model.Task, all []model.Task) string {
	s := string(t.Status)
	if depgraph.IsBlocked(t, all) {
		s += " [blocked]"
	}
	if depgraph.IsBlocking(t, all) {
		s += " [blocking]"
	}
	return s
}

func depList(t model.Task) string {
	if len(t.DependentTasks) == 0 {
		return "-"
	}
	out := t.DependentTasks[0]
	for _, id := range t.DependentTasks[1:] {
		out += "," + id
	}
	return out
}
