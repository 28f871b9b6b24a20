package depgraph

import (
	"sort"
	"time"

	"github.com/bpd-ops/central/model"
)

// Heat score thresholds for display ranking.
const (
	HeatInferno = 60.0
	HeatHigh    = 30.0
)

const (
	proximity48h = 48 * time.Hour
	proximity7d  = 7 * 24 * time.Hour
)

// priorityWeight maps task priority to its heat contribution.
func priorityWeight(p model.Priority) float64 {
	switch p {
	case model.PriorityCritical:
		return 20
	case model.PriorityHigh:
		return 10
	case model.PriorityMedium:
		return 5
	default:
		return 2
	}
}

// urgencyMultiplier scales a task's weight by how close its planned end
// date is: overdue x3, due within 48h x2.5, due within 7 days x1.5.
func urgencyMultiplier(plannedEnd, now time.Time) float64 {
	diff := plannedEnd.Sub(now)
	switch {
	case diff < 0:
		return 3
	case diff < proximity48h:
		return 2.5
	case diff < proximity7d:
		return 1.5
	default:
		return 1
	}
}

// ProgramHeat is the risk summary for one funding program.
type ProgramHeat struct {
	Program       model.Program
	Score         float64
	TaskCount     int // active (non-completed) tasks
	CriticalTasks int
	UpcomingTasks int // active tasks due within 48h
}

// Level buckets the score for display: "Inferno" >= 60, "High" >= 30,
// "Stable" otherwise.
func (h ProgramHeat) Level() string {
	switch {
	case h.Score >= HeatInferno:
		return "Inferno"
	case h.Score >= HeatHigh:
		return "High"
	default:
		return "Stable"
	}
}

// TaskHeat returns the heat contribution of a single task at the given
// instant. Completed tasks contribute nothing.
func TaskHeat(t model.Task, now time.Time) float64 {
	if t.Status == model.StatusCompleted {
		return 0
	}
	return priorityWeight(t.Priority) * urgencyMultiplier(t.PlannedEndDate, now)
}

// HeatByProgram scores every program over the snapshot and returns the
// results sorted hottest first. Scoring is display-only; it never feeds
// back into the data model.
func HeatByProgram(programs []model.Program, tasks []model.Task, now time.Time) []ProgramHeat {
	out := make([]ProgramHeat, 0, len(programs))
	for _, p := range programs {
		h := ProgramHeat{Program: p}
		for _, t := range tasks {
			if t.Program != p.Name || t.Status == model.StatusCompleted {
				continue
			}
			h.TaskCount++
			h.Score += TaskHeat(t, now)
			if t.Priority == model.PriorityCritical {
				h.CriticalTasks++
			}
			if d := t.PlannedEndDate.Sub(now); d > 0 && d < proximity48h {
				h.UpcomingTasks++
			}
		}
		out = append(out, h)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}
