package depgraph

import (
	"sort"
	"time"

	"github.com/bpd-ops/central/model"
)

// Timeline geometry constants. Offsets are abstract units the renderer
// maps to pixels; one day is DayWidth units, one task row RowHeight.
const (
	DayWidth    = 40.0
	RowHeight   = 64.0
	MinBarWidth = 20.0
)

// Window is the visible time range of a timeline.
type Window struct {
	Start time.Time
	End   time.Time
}

// OffsetX maps an instant to a horizontal offset inside the window.
// The mapping is linear, so it is monotonic and deterministic for a
// fixed window; instants before Start map to negative offsets.
func (w Window) OffsetX(t time.Time) float64 {
	return t.Sub(w.Start).Hours() / 24 * DayWidth
}

// Span is the rendered bar for one task.
type Span struct {
	TaskID    string
	Row       int
	X         float64
	Width     float64
	Completed bool
	Blocked   bool
	Blocking  bool
}

// Edge is the connector drawn from a prerequisite's end position to its
// dependent's start position. Resolved edges (prerequisite Completed)
// render solid; unresolved ones dashed.
type Edge struct {
	FromTaskID string
	ToTaskID   string
	X1, Y1     float64
	X2, Y2     float64
	Resolved   bool
}

// Layout computes spans and dependency edges for the snapshot within the
// window. Tasks are rowed in start-date order; edges whose prerequisite
// is missing from the snapshot are skipped. Given the same window and
// task set the output is identical, there is no hidden state.
func Layout(w Window, tasks []model.Task) ([]Span, []Edge) {
	ordered := append([]model.Task(nil), tasks...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].StartDate.Before(ordered[j].StartDate)
	})

	rowOf := make(map[string]int, len(ordered))
	for i, t := range ordered {
		rowOf[t.ID] = i
	}

	spans := make([]Span, 0, len(ordered))
	var edges []Edge
	for i, t := range ordered {
		x := w.OffsetX(t.StartDate)
		width := w.OffsetX(t.PlannedEndDate) - x
		if width < MinBarWidth {
			width = MinBarWidth
		}
		spans = append(spans, Span{
			TaskID:    t.ID,
			Row:       i,
			X:         x,
			Width:     width,
			Completed: t.Status == model.StatusCompleted,
			Blocked:   IsBlocked(t, ordered),
			Blocking:  IsBlocking(t, ordered),
		})

		for _, depID := range t.DependentTasks {
			preRow, ok := rowOf[depID]
			if !ok {
				continue
			}
			pre := ordered[preRow]
			edges = append(edges, Edge{
				FromTaskID: depID,
				ToTaskID:   t.ID,
				X1:         w.OffsetX(pre.PlannedEndDate),
				Y1:         float64(preRow)*RowHeight + RowHeight/2,
				X2:         x,
				Y2:         float64(i)*RowHeight + RowHeight/2,
				Resolved:   pre.Status == model.StatusCompleted,
			})
		}
	}
	return spans, edges
}
