package depgraph

import (
	"reflect"
	"testing"
	"time"

	"github.com/bpd-ops/central/model"
)

func TestWindowOffsetX(t *testing.T) {
	w := Window{Start: day(1), End: day(30)}

	if got := w.OffsetX(day(1)); got != 0 {
		t.Errorf("OffsetX(start) = %v, want 0", got)
	}
	if got := w.OffsetX(day(2)); got != DayWidth {
		t.Errorf("OffsetX(start+1d) = %v, want %v", got, DayWidth)
	}
	if got := w.OffsetX(day(1).Add(-24 * time.Hour)); got != -DayWidth {
		t.Errorf("OffsetX(start-1d) = %v, want %v", got, -DayWidth)
	}
}

func TestLayout(t *testing.T) {
	w := Window{Start: day(1), End: day(30)}
	tasks := chain()

	spans, edges := Layout(w, tasks)
	if len(spans) != 3 {
		t.Fatalf("spans = %d, want 3", len(spans))
	}

	// Rowed in start-date order.
	for i, want := range []string{"a", "b", "c"} {
		if spans[i].TaskID != want {
			t.Errorf("spans[%d] = %s, want %s", i, spans[i].TaskID, want)
		}
		if spans[i].Row != i {
			t.Errorf("spans[%d].Row = %d, want %d", i, spans[i].Row, i)
		}
	}

	if !spans[0].Completed {
		t.Error("span a should be marked completed")
	}
	if !spans[2].Blocked {
		t.Error("span c should be marked blocked")
	}
	if !spans[1].Blocking {
		t.Error("span b should be marked blocking")
	}

	if len(edges) != 2 {
		t.Fatalf("edges = %d, want 2", len(edges))
	}
	var resolved, pending int
	for _, e := range edges {
		if e.Resolved {
			resolved++
		} else {
			pending++
		}
	}
	if resolved != 1 || pending != 1 {
		t.Errorf("resolved/pending = %d/%d, want 1/1", resolved, pending)
	}
}

func TestLayout_Deterministic(t *testing.T) {
	w := Window{Start: day(1), End: day(30)}
	tasks := chain()

	s1, e1 := Layout(w, tasks)
	s2, e2 := Layout(w, tasks)
	if !reflect.DeepEqual(s1, s2) || !reflect.DeepEqual(e1, e2) {
		t.Error("Layout output differs across identical calls")
	}
}

func TestLayout_MinBarWidth(t *testing.T) {
	w := Window{Start: day(1), End: day(30)}
	tasks := []model.Task{
		// Zero-duration task still renders a visible bar.
		{ID: "blip", Status: model.StatusOpen, StartDate: day(3), PlannedEndDate: day(3)},
	}
	spans, _ := Layout(w, tasks)
	if len(spans) != 1 {
		t.Fatalf("spans = %d, want 1", len(spans))
	}
	if spans[0].Width < MinBarWidth {
		t.Errorf("Width = %v, want >= %v", spans[0].Width, MinBarWidth)
	}
}

func TestLayout_SkipsMissingPrerequisiteEdges(t *testing.T) {
	w := Window{Start: day(1), End: day(30)}
	tasks := []model.Task{
		{ID: "x", Status: model.StatusOpen, StartDate: day(2), PlannedEndDate: day(4), DependentTasks: []string{"ghost"}},
	}
	_, edges := Layout(w, tasks)
	if len(edges) != 0 {
		t.Errorf("edges = %d, want 0 for missing prerequisite", len(edges))
	}
}
