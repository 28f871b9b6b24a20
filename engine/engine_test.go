package engine

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/bpd-ops/central/backend"
	"github.com/bpd-ops/central/model"
	"github.com/bpd-ops/central/signal"
	"github.com/bpd-ops/central/store"
)

func day(d int) time.Time {
	return time.Date(2025, time.March, d, 0, 0, 0, 0, time.UTC)
}

func testSeed() model.AppState {
	return model.AppState{
		Tasks: []model.Task{
			{ID: "t-a", Name: "Filing", AssignedToID: "u-glen", Status: model.StatusCompleted,
				Program: "BEAD", StartDate: day(1), PlannedEndDate: day(5), UpdatedAt: day(5), UpdatedBy: "system",
				DependentTasks: []string{}},
			{ID: "t-b", Name: "Review", AssignedToID: "u-glen", Status: model.StatusInProgress,
				Program: "BEAD", StartDate: day(6), PlannedEndDate: day(10), UpdatedAt: day(6), UpdatedBy: "system",
				DependentTasks: []string{"t-a"}},
			{ID: "t-c", Name: "Publish", AssignedToID: "u-dayna", Status: model.StatusOpen,
				Program: "BEAD", StartDate: day(11), PlannedEndDate: day(15), UpdatedAt: day(7), UpdatedBy: "system",
				DependentTasks: []string{"t-b"}},
		},
		Programs: []model.Program{
			{ID: "p-bead", Name: "BEAD", Color: "indigo", CreatedAt: day(1), CreatedBy: "u-admin"},
		},
		Users: []model.User{
			{ID: "u-admin", Name: "System Admin", Role: "Admin"},
			{ID: "u-glen", Name: "Glen", Role: "Manager"},
			{ID: "u-dayna", Name: "Dayna", Role: "Staff"},
		},
	}
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "engine-test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	eng := New(backend.NewLocal(st, signal.NewBus()), nil)
	connected, err := eng.Initialize(context.Background(), testSeed())
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if !connected {
		t.Fatal("Initialize reported disconnected for local backend")
	}
	t.Cleanup(func() { eng.Close() })
	return eng
}

func TestInitialize_SeedsAndSelectsUser(t *testing.T) {
	eng := newTestEngine(t)

	state := eng.Snapshot()
	if len(state.Tasks) != 3 {
		t.Fatalf("tasks = %d, want 3", len(state.Tasks))
	}
	if state.CurrentUser == nil || state.CurrentUser.ID != "u-admin" {
		t.Errorf("CurrentUser = %v, want seed's first user", state.CurrentUser)
	}
	if !eng.Status() {
		t.Error("Status = false after successful initialize")
	}
}

func TestSubscribe_ImmediateCallback(t *testing.T) {
	eng := newTestEngine(t)

	var calls int
	var last model.AppState
	unsub := eng.Subscribe(func(s model.AppState) {
		calls++
		last = s
	})
	defer unsub()

	if calls != 1 {
		t.Fatalf("calls = %d, want immediate callback", calls)
	}
	if len(last.Tasks) != 3 {
		t.Errorf("immediate state tasks = %d, want 3", len(last.Tasks))
	}
}

func TestAddTask_FansOutNewState(t *testing.T) {
	eng := newTestEngine(t)

	var mu sync.Mutex
	var states []model.AppState
	unsub := eng.Subscribe(func(s model.AppState) {
		mu.Lock()
		states = append(states, s)
		mu.Unlock()
	})
	defer unsub()

	created, err := eng.AddTask(context.Background(), model.Task{
		Name: "New filing", Program: "BEAD",
		StartDate: day(20), PlannedEndDate: day(25),
	})
	if err != nil {
		t.Fatalf("AddTask: %v", err)
	}
	if created.ID == "" {
		t.Error("AddTask did not assign an ID")
	}
	if created.Status != model.StatusOpen {
		t.Errorf("default status = %q, want Open", created.Status)
	}
	if created.UpdatedBy != "System Admin" {
		t.Errorf("UpdatedBy = %q, want current user name", created.UpdatedBy)
	}

	// One write, one delivery of the post-mutation state. The writer's
	// own bus signal is filtered, so there is no realtime echo; any
	// late extra delivery would show up in the window below.
	time.Sleep(100 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if len(states) != 2 {
		t.Fatalf("fan-outs = %d, want exactly initial + post-write", len(states))
	}
	final := states[len(states)-1]
	if len(final.Tasks) != 4 {
		t.Errorf("final tasks = %d, want 4", len(final.Tasks))
	}
}

func TestWrite_NotifiesSubscribersExactlyOnce(t *testing.T) {
	eng := newTestEngine(t)

	var mu sync.Mutex
	counts := make([]int, 3)
	for i := 0; i < 3; i++ {
		i := i
		unsub := eng.Subscribe(func(s model.AppState) {
			mu.Lock()
			if len(s.Tasks) == 4 {
				counts[i]++
			}
			mu.Unlock()
		})
		defer unsub()
	}

	if _, err := eng.AddTask(context.Background(), model.Task{
		Name: "Quarterly report", Program: "BEAD",
		StartDate: day(20), PlannedEndDate: day(25),
	}); err != nil {
		t.Fatalf("AddTask: %v", err)
	}

	time.Sleep(100 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	for i, n := range counts {
		if n != 1 {
			t.Errorf("subscriber %d saw the post-mutation state %d times, want exactly 1", i, n)
		}
	}
}

func TestAddTask_RejectsSelfDependency(t *testing.T) {
	eng := newTestEngine(t)

	_, err := eng.AddTask(context.Background(), model.Task{
		ID: "t-self", Name: "Loop", DependentTasks: []string{"t-self"},
	})
	if err == nil {
		t.Fatal("self-dependency should be rejected")
	}
	if len(eng.Snapshot().Tasks) != 3 {
		t.Error("rejected task leaked into state")
	}
}

func TestUpdateTask_RejectsCycle(t *testing.T) {
	eng := newTestEngine(t)

	// t-a <- t-b <- t-c exists; pointing t-a at t-c closes the loop.
	deps := []string{"t-c"}
	err := eng.UpdateTask(context.Background(), "t-a", model.TaskPatch{DependentTasks: &deps})
	if err == nil {
		t.Fatal("cycle should be rejected")
	}

	state := eng.Snapshot()
	if got := state.FindTask("t-a"); len(got.DependentTasks) != 0 {
		t.Errorf("t-a deps = %v, want unchanged", got.DependentTasks)
	}
}

func TestUpdateTask_RejectsBlockedCompletion(t *testing.T) {
	eng := newTestEngine(t)

	done := model.StatusCompleted
	err := eng.UpdateTask(context.Background(), "t-c", model.TaskPatch{Status: &done})
	if err == nil {
		t.Fatal("completing a blocked task should be rejected")
	}

	// Complete the blocker, then the transition goes through.
	if err := eng.UpdateTask(context.Background(), "t-b", model.TaskPatch{Status: &done}); err != nil {
		t.Fatalf("complete t-b: %v", err)
	}
	if err := eng.UpdateTask(context.Background(), "t-c", model.TaskPatch{Status: &done}); err != nil {
		t.Fatalf("complete t-c after unblock: %v", err)
	}
}

func TestUpdateTask_RapidPatchesMerge(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	status := model.StatusOnHold
	if err := eng.UpdateTask(ctx, "t-b", model.TaskPatch{Status: &status}); err != nil {
		t.Fatalf("patch status: %v", err)
	}
	progress := 80
	if err := eng.UpdateTask(ctx, "t-b", model.TaskPatch{Progress: &progress}); err != nil {
		t.Fatalf("patch progress: %v", err)
	}

	got := eng.Snapshot().FindTask("t-b")
	if got.Status != model.StatusOnHold {
		t.Errorf("Status = %q, want On Hold (first patch lost)", got.Status)
	}
	if got.Progress != 80 {
		t.Errorf("Progress = %d, want 80", got.Progress)
	}
}

func TestUnblockObservation(t *testing.T) {
	eng := newTestEngine(t)

	done := model.StatusCompleted
	if err := eng.UpdateTask(context.Background(), "t-b", model.TaskPatch{Status: &done}); err != nil {
		t.Fatalf("complete t-b: %v", err)
	}

	var found bool
	for _, n := range eng.Snapshot().Notifications {
		if n.Type == model.NotifyDependency {
			found = true
		}
	}
	if !found {
		t.Error("no DEPENDENCY notification after t-c became unblocked")
	}
}

func TestNotificationsSurviveRefresh(t *testing.T) {
	eng := newTestEngine(t)

	eng.Notify(model.Notification{Type: model.NotifySystem, Title: "hello", Message: "world"})

	// A write triggers a full reconciliation refresh; the feed is
	// session state and must carry over.
	if _, err := eng.AddTask(context.Background(), model.Task{Name: "x", Program: "BEAD"}); err != nil {
		t.Fatalf("AddTask: %v", err)
	}

	var found bool
	for _, n := range eng.Snapshot().Notifications {
		if n.Title == "hello" {
			found = true
		}
	}
	if !found {
		t.Error("notification lost across refresh")
	}
}

func TestMarkAndClearNotifications(t *testing.T) {
	eng := newTestEngine(t)

	eng.Notify(model.Notification{Type: model.NotifySystem, Title: "a"})
	eng.Notify(model.Notification{Type: model.NotifySystem, Title: "b"})

	eng.MarkNotificationsRead()
	for _, n := range eng.Snapshot().Notifications {
		if !n.Read {
			t.Errorf("notification %q still unread", n.Title)
		}
	}

	eng.ClearNotifications()
	if got := eng.Snapshot().Notifications; len(got) != 0 {
		t.Errorf("feed = %d entries after clear, want 0", len(got))
	}
}

func TestSetCurrentUser(t *testing.T) {
	eng := newTestEngine(t)

	if err := eng.SetCurrentUser(context.Background(), "u-dayna"); err != nil {
		t.Fatalf("SetCurrentUser: %v", err)
	}
	state := eng.Snapshot()
	if state.CurrentUser == nil || state.CurrentUser.ID != "u-dayna" {
		t.Errorf("CurrentUser = %v, want u-dayna", state.CurrentUser)
	}
}

func TestDeleteProgram_TasksKeepName(t *testing.T) {
	eng := newTestEngine(t)

	if err := eng.DeleteProgram(context.Background(), "p-bead"); err != nil {
		t.Fatalf("DeleteProgram: %v", err)
	}
	state := eng.Snapshot()
	if len(state.Programs) != 0 {
		t.Fatalf("programs = %d, want 0", len(state.Programs))
	}
	if got := state.FindTask("t-a"); got.Program != "BEAD" {
		t.Errorf("task program = %q, want dangling BEAD", got.Program)
	}
}

// failingBackend wraps a Backend and fails every write.
type failingBackend struct {
	backend.Backend
	err error
}

func (f *failingBackend) InsertTask(context.Context, model.Task) error { return f.err }
func (f *failingBackend) PatchTask(context.Context, string, model.TaskPatch) error {
	return f.err
}

func TestFailedWrite_KeepsStateAndMarksDisconnected(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "fail-test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()

	wrapped := &failingBackend{
		Backend: backend.NewLocal(st, signal.NewBus()),
		err:     errors.New("write refused"),
	}
	eng := New(wrapped, nil)
	if _, err := eng.Initialize(context.Background(), testSeed()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	defer eng.Close()

	before := eng.Snapshot()
	if _, err := eng.AddTask(context.Background(), model.Task{Name: "doomed"}); err == nil {
		t.Fatal("AddTask should surface the backend error")
	}

	after := eng.Snapshot()
	if len(after.Tasks) != len(before.Tasks) {
		t.Errorf("tasks = %d, want unchanged %d", len(after.Tasks), len(before.Tasks))
	}
	if eng.Status() {
		t.Error("Status = true after failed write, want false")
	}
}

// gatedBackend lets a test script FetchState responses while delegating
// everything else.
type gatedBackend struct {
	backend.Backend

	mu    sync.Mutex
	fetch func(context.Context) (*model.AppState, error)
}

func (g *gatedBackend) setFetch(f func(context.Context) (*model.AppState, error)) {
	g.mu.Lock()
	g.fetch = f
	g.mu.Unlock()
}

func (g *gatedBackend) FetchState(ctx context.Context) (*model.AppState, error) {
	g.mu.Lock()
	f := g.fetch
	g.mu.Unlock()
	if f == nil {
		return g.Backend.FetchState(ctx)
	}
	return f(ctx)
}

func TestRefresh_StaleFetchDiscarded(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "stale-test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()

	gated := &gatedBackend{Backend: backend.NewLocal(st, signal.NewBus())}
	eng := New(gated, nil)
	if _, err := eng.Initialize(context.Background(), testSeed()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	defer eng.Close()

	var mu sync.Mutex
	var delivered []model.AppState
	unsub := eng.Subscribe(func(s model.AppState) {
		mu.Lock()
		delivered = append(delivered, s)
		mu.Unlock()
	})
	defer unsub()

	// Park a fetch that will complete last but return yesterday's state.
	stale := eng.Snapshot()
	started := make(chan struct{})
	release := make(chan struct{})
	gated.setFetch(func(context.Context) (*model.AppState, error) {
		close(started)
		<-release
		s := stale.Clone()
		return &s, nil
	})

	done := make(chan error, 1)
	go func() { done <- eng.Reconnect(context.Background()) }()
	<-started

	// A newer fetch starts after and completes first, carrying a fourth
	// task the slow response has never seen.
	gated.setFetch(nil)
	extra := testSeed().Tasks[0]
	extra.ID = "t-extra"
	extra.Name = "Late addition"
	if err := st.InsertTask(extra); err != nil {
		t.Fatalf("InsertTask: %v", err)
	}
	if err := eng.Reconnect(context.Background()); err != nil {
		t.Fatalf("fast Reconnect: %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("slow Reconnect: %v", err)
	}

	if got := len(eng.Snapshot().Tasks); got != 4 {
		t.Fatalf("tasks = %d, want 4: slow fetch regressed the shadow state", got)
	}
	mu.Lock()
	defer mu.Unlock()
	last := delivered[len(delivered)-1]
	if len(last.Tasks) != 4 {
		t.Errorf("last delivered snapshot has %d tasks, want the newest state last", len(last.Tasks))
	}
}

// unreachableBackend fails its probe, like a remote endpoint that is down.
type unreachableBackend struct {
	backend.Backend
}

func (u *unreachableBackend) Probe(context.Context) error {
	return errors.New("connection refused")
}

func TestInitialize_ProbeFailureIsNotAnError(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "probe-test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()

	eng := New(&unreachableBackend{Backend: backend.NewLocal(st, signal.NewBus())}, nil)
	connected, err := eng.Initialize(context.Background(), testSeed())
	if err != nil {
		t.Fatalf("Initialize returned error %v, want graceful offline", err)
	}
	if connected {
		t.Error("connected = true, want false")
	}
	if eng.Status() {
		t.Error("Status = true after failed probe")
	}
}
