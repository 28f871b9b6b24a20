package backend

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/bpd-ops/central/model"
	"github.com/bpd-ops/central/signal"
	"github.com/bpd-ops/central/store"
)

func newLocalPair(t *testing.T) (*Local, *Local) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "local-test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	bus := signal.NewBus()
	return NewLocal(st, bus), NewLocal(st, bus)
}

func localTask(id string) model.Task {
	return model.Task{
		ID:             id,
		Name:           "Task " + id,
		Program:        "BEAD",
		Priority:       model.PriorityMedium,
		Status:         model.StatusOpen,
		StartDate:      time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		PlannedEndDate: time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		UpdatedAt:      time.Now().UTC(),
		UpdatedBy:      "test",
	}
}

func TestLocal_WriteSignalsOtherSession(t *testing.T) {
	a, b := newLocalPair(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes, err := b.Changes(ctx)
	if err != nil {
		t.Fatalf("Changes: %v", err)
	}

	if err := a.InsertTask(ctx, localTask("t1")); err != nil {
		t.Fatalf("InsertTask: %v", err)
	}

	select {
	case <-changes:
	case <-time.After(time.Second):
		t.Fatal("no change signal after write")
	}

	state, err := b.FetchState(ctx)
	if err != nil {
		t.Fatalf("FetchState: %v", err)
	}
	if len(state.Tasks) != 1 || state.Tasks[0].ID != "t1" {
		t.Errorf("state tasks = %v, want [t1]", state.Tasks)
	}
}

func TestLocal_WriterDoesNotSeeOwnSignal(t *testing.T) {
	a, _ := newLocalPair(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes, err := a.Changes(ctx)
	if err != nil {
		t.Fatalf("Changes: %v", err)
	}
	if err := a.InsertTask(ctx, localTask("t1")); err != nil {
		t.Fatalf("InsertTask: %v", err)
	}

	// The writer's session refreshes on the write path; an echoed
	// signal would make it refresh and notify twice.
	select {
	case <-changes:
		t.Fatal("writer received an echo of its own change")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestLocal_SignalsCoalesce(t *testing.T) {
	a, b := newLocalPair(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes, err := b.Changes(ctx)
	if err != nil {
		t.Fatalf("Changes: %v", err)
	}

	// Burst of writes while nobody is draining.
	for i := 0; i < 5; i++ {
		task := localTask("t" + string(rune('0'+i)))
		if err := a.InsertTask(ctx, task); err != nil {
			t.Fatalf("InsertTask: %v", err)
		}
	}

	// At most one pending signal; a full re-read covers the burst.
	<-changes
	select {
	case <-changes:
		t.Error("more than one pending signal after burst")
	default:
	}
}

func TestLocal_ChangesClosedOnCancel(t *testing.T) {
	a, _ := newLocalPair(t)
	ctx, cancel := context.WithCancel(context.Background())

	changes, err := a.Changes(ctx)
	if err != nil {
		t.Fatalf("Changes: %v", err)
	}
	cancel()

	select {
	case _, ok := <-changes:
		if ok {
			t.Error("expected closed channel, got signal")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed after cancel")
	}
}

func TestLocal_FailedWriteDoesNotSignal(t *testing.T) {
	a, b := newLocalPair(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes, err := b.Changes(ctx)
	if err != nil {
		t.Fatalf("Changes: %v", err)
	}

	if err := a.DeleteTask(ctx, "missing"); err == nil {
		t.Fatal("DeleteTask(missing) should fail")
	}
	select {
	case <-changes:
		t.Error("failed write should not broadcast")
	case <-time.After(100 * time.Millisecond):
	}
}
