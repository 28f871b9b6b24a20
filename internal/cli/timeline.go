package cli

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/bpd-ops/central/depgraph"
	"github.com/bpd-ops/central/model"
)

var timelineCmd = &cobra.Command{
	Use:   "timeline",
	Short: "Show the computed timeline layout for all tasks",
	RunE:  runTimeline,
}

func runTimeline(cmd *cobra.Command, args []string) error {
	eng, cleanup, err := openEngine(cmd.Context())
	if err != nil {
		return err
	}
	defer cleanup()

	state := eng.Snapshot()
	if len(state.Tasks) == 0 {
		fmt.Println("No tasks.")
		return nil
	}

	window := taskWindow(state.Tasks)
	spans, edges := depgraph.Layout(window, state.Tasks)

	fmt.Printf("Window: %s .. %s\n\n",
		window.Start.Format("2006-01-02"), window.End.Format("2006-01-02"))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ROW\tTASK\tX\tWIDTH\tFLAGS")
	for _, s := range spans {
		fmt.Fprintf(w, "%d\t%s\t%.0f\t%.0f\t%s\n", s.Row, s.TaskID, s.X, s.Width, spanFlags(s))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if len(edges) > 0 {
		fmt.Println()
		for _, e := range edges {
			link := "pending"
			if e.Resolved {
				link = "resolved"
			}
			fmt.Printf("%s -> %s (%s)\n", e.FromTaskID, e.ToTaskID, link)
		}
	}
	return nil
}

// taskWindow spans the earliest start to the latest planned end.
func taskWindow(tasks []model.Task) depgraph.Window {
	w := depgraph.Window{Start: tasks[0].StartDate, End: tasks[0].PlannedEndDate}
	for _, t := range tasks[1:] {
		if t.StartDate.Before(w.Start) {
			w.Start = t.StartDate
		}
		if t.PlannedEndDate.After(w.End) {
			w.End = t.PlannedEndDate
		}
	}
	w.End = w.End.Add(24 * time.Hour)
	return w
}

func spanFlags(s depgraph.Span) string {
	switch {
	case s.Completed:
		return "completed"
	case s.Blocked && s.Blocking:
		return "blocked,blocking"
	case s.Blocked:
		return "blocked"
	case s.Blocking:
		return "blocking"
	default:
		return "-"
	}
}
