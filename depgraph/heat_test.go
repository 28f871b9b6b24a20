package depgraph

import (
	"testing"
	"time"

	"github.com/bpd-ops/central/model"
)

func heatTask(priority model.Priority, status model.Status, due time.Time) model.Task {
	return model.Task{
		ID:             model.NewID(),
		Program:        "BEAD",
		Priority:       priority,
		Status:         status,
		PlannedEndDate: due,
	}
}

func TestTaskHeat_CompletedIsZero(t *testing.T) {
	now := day(10)
	task := heatTask(model.PriorityCritical, model.StatusCompleted, day(1))
	if got := TaskHeat(task, now); got != 0 {
		t.Errorf("TaskHeat(completed) = %v, want 0", got)
	}
}

func TestTaskHeat_PriorityOrdering(t *testing.T) {
	now := day(1)
	due := day(20) // far out, multiplier 1

	var prev float64
	for _, p := range []model.Priority{model.PriorityLow, model.PriorityMedium, model.PriorityHigh, model.PriorityCritical} {
		h := TaskHeat(heatTask(p, model.StatusOpen, due), now)
		if h <= prev {
			t.Errorf("TaskHeat(%s) = %v, want > %v", p, h, prev)
		}
		prev = h
	}
}

func TestTaskHeat_UrgencyMultipliers(t *testing.T) {
	due := day(10)
	tests := []struct {
		name string
		now  time.Time
		want float64
	}{
		{"overdue", day(11), 60},   // 20 * 3
		{"within 48h", day(9), 50}, // 20 * 2.5
		{"within 7d", day(5), 30},  // 20 * 1.5
		{"far out", day(1), 20},    // 20 * 1
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := heatTask(model.PriorityCritical, model.StatusOpen, due)
			if got := TaskHeat(task, tt.now); got != tt.want {
				t.Errorf("TaskHeat = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestProgramHeat_Levels(t *testing.T) {
	tests := []struct {
		score float64
		want  string
	}{
		{75, "Inferno"},
		{60, "Inferno"},
		{45, "High"},
		{30, "High"},
		{10, "Stable"},
		{0, "Stable"},
	}
	for _, tt := range tests {
		h := ProgramHeat{Score: tt.score}
		if got := h.Level(); got != tt.want {
			t.Errorf("Level(%v) = %q, want %q", tt.score, got, tt.want)
		}
	}
}

func TestHeatByProgram(t *testing.T) {
	now := day(1)
	programs := []model.Program{
		{ID: "p1", Name: "BEAD"},
		{ID: "p2", Name: "CPF"},
	}
	tasks := []model.Task{
		{ID: "t1", Program: "BEAD", Priority: model.PriorityCritical, Status: model.StatusOpen, PlannedEndDate: day(20)},
		{ID: "t2", Program: "BEAD", Priority: model.PriorityCritical, Status: model.StatusCompleted, PlannedEndDate: day(20)},
		{ID: "t3", Program: "CPF", Priority: model.PriorityLow, Status: model.StatusOpen, PlannedEndDate: day(20)},
	}

	heat := HeatByProgram(programs, tasks, now)
	if len(heat) != 2 {
		t.Fatalf("len = %d, want 2", len(heat))
	}
	// Sorted hottest first.
	if heat[0].Program.Name != "BEAD" {
		t.Errorf("hottest = %s, want BEAD", heat[0].Program.Name)
	}
	if heat[0].Score != 20 {
		t.Errorf("BEAD score = %v, want 20 (completed task excluded)", heat[0].Score)
	}
	if heat[0].TaskCount != 1 {
		t.Errorf("BEAD active count = %d, want 1", heat[0].TaskCount)
	}
	if heat[0].CriticalTasks != 1 {
		t.Errorf("BEAD critical = %d, want 1", heat[0].CriticalTasks)
	}
	if heat[1].Score != 2 {
		t.Errorf("CPF score = %v, want 2", heat[1].Score)
	}
}
