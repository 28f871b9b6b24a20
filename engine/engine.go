// Package engine implements the synchronization engine: it owns the
// single in-memory shadow AppState, mediates every read and write
// between callers and the persistence backend, and guarantees every
// subscriber sees a consistent, fully populated state after every
// mutation. Writes are confirmed-only: a mutation is not reflected
// until the backend acknowledges and a fresh reconciliation fetch
// completes.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bpd-ops/central/backend"
	"github.com/bpd-ops/central/depgraph"
	"github.com/bpd-ops/central/model"
)

// Subscriber receives the full post-change AppState, never a diff.
type Subscriber func(model.AppState)

// Engine mediates between the UI and a persistence backend.
type Engine struct {
	backend backend.Backend
	logger  *slog.Logger

	mu         sync.Mutex
	state      model.AppState
	subs       map[int]Subscriber
	nextSub    int
	appliedGen uint64
	sessionUID string

	// dispatchMu serializes subscriber delivery so snapshots arrive in
	// the order they were applied. Acquired while mu is still held.
	dispatchMu sync.Mutex

	fetchGen  atomic.Uint64
	connected atomic.Bool

	realtimeCancel context.CancelFunc
}

// New creates an engine over the given backend. Call Initialize before
// issuing mutations.
func New(b backend.Backend, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		backend: b,
		logger:  logger,
		subs:    make(map[int]Subscriber),
	}
}

// Initialize probes the backend, seeds it when empty, performs the first
// reconciliation fetch, and starts the realtime loop. Idempotent: a
// second call never overwrites existing stored state. Returns whether a
// live connection was established; on probe failure the last known
// shadow state (if any) stays visible and the engine reports
// disconnected rather than failing the caller.
func (e *Engine) Initialize(ctx context.Context, seed model.AppState) (bool, error) {
	if err := e.backend.Probe(ctx); err != nil {
		e.connected.Store(false)
		e.logger.Warn("backend probe failed, staying on last known state",
			slog.String("backend", e.backend.Name()), slog.Any("err", err))
		return false, nil
	}

	seeded, err := e.backend.SeedIfEmpty(ctx, seed)
	if err != nil {
		e.connected.Store(false)
		return false, fmt.Errorf("seed backend: %w", err)
	}
	if seeded {
		e.logger.Info("seeded empty backend", slog.String("backend", e.backend.Name()))
	}

	if err := e.refresh(ctx); err != nil {
		return false, fmt.Errorf("initial sync: %w", err)
	}
	e.startRealtime(ctx)
	e.connected.Store(true)
	return true, nil
}

// Reconnect re-probes and re-synchronizes, tearing down any previous
// realtime subscription. Safe to call repeatedly, e.g. after the user
// pastes new credentials into a backend that reads them lazily.
func (e *Engine) Reconnect(ctx context.Context) error {
	if err := e.backend.Probe(ctx); err != nil {
		e.connected.Store(false)
		return fmt.Errorf("reconnect probe: %w", err)
	}
	if err := e.refresh(ctx); err != nil {
		return fmt.Errorf("reconnect sync: %w", err)
	}
	e.startRealtime(ctx)
	e.connected.Store(true)
	return nil
}

// Close stops the realtime loop and releases the backend.
func (e *Engine) Close() error {
	e.mu.Lock()
	cancel := e.realtimeCancel
	e.realtimeCancel = nil
	e.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return e.backend.Close()
}

// Status reports current connectivity.
func (e *Engine) Status() bool { return e.connected.Load() }

// HasCredentials reports whether the backend is configured.
func (e *Engine) HasCredentials() bool { return e.backend.HasCredentials() }

// Snapshot returns an independent copy of the current shadow state.
func (e *Engine) Snapshot() model.AppState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Clone()
}

// Subscribe registers a callback that is invoked immediately with the
// current state and again after every subsequent change. The returned
// function unsubscribes.
func (e *Engine) Subscribe(fn Subscriber) (unsubscribe func()) {
	e.mu.Lock()
	e.nextSub++
	id := e.nextSub
	e.subs[id] = fn
	current := e.state.Clone()
	e.dispatchMu.Lock()
	e.mu.Unlock()

	fn(current)
	e.dispatchMu.Unlock()

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.subs, id)
	}
}

// --- Task mutations ---

// AddTask creates a task: assigns ID and update stamp, attributes it to
// the current user (or "system"), validates the dependency edges, writes
// through the backend, and re-syncs. The returned task reflects the
// values as written.
func (e *Engine) AddTask(ctx context.Context, t model.Task) (*model.Task, error) {
	if t.ID == "" {
		t.ID = model.NewID()
	}
	if t.Status == "" {
		t.Status = model.StatusOpen
	}
	if t.DependentTasks == nil {
		t.DependentTasks = []string{}
	}
	t.UpdatedAt = time.Now().UTC()
	t.UpdatedBy = e.actorName()

	snap := e.Snapshot()
	if err := validateDeps(t.ID, t.DependentTasks, snap.Tasks); err != nil {
		return nil, err
	}
	if err := e.backend.InsertTask(ctx, t); err != nil {
		return nil, e.writeFailed("add task", err)
	}
	e.syncAfterWrite(ctx)
	return &t, nil
}

// UpdateTask applies a partial update. Setting status to Completed is
// rejected while the task still has unresolved prerequisites; changing
// the dependency list is rejected when it would introduce a cycle.
func (e *Engine) UpdateTask(ctx context.Context, id string, p model.TaskPatch) error {
	snap := e.Snapshot()
	current := snap.FindTask(id)
	if current == nil {
		return fmt.Errorf("task %s not found", id)
	}

	patched := *current
	p.Apply(&patched)
	if p.DependentTasks != nil {
		if err := validateDeps(id, patched.DependentTasks, snap.Tasks); err != nil {
			return err
		}
	}
	if p.Status != nil && *p.Status == model.StatusCompleted && current.Status != model.StatusCompleted {
		if !depgraph.CanComplete(patched, snap.Tasks) {
			return fmt.Errorf("task %s cannot complete: unresolved prerequisites", id)
		}
	}

	by := e.actorName()
	p.UpdatedBy = &by
	if err := e.backend.PatchTask(ctx, id, p); err != nil {
		return e.writeFailed("update task", err)
	}
	e.syncAfterWrite(ctx)
	return nil
}

// DeleteTask removes a task. Removal is immediate and irreversible;
// tasks that depended on it keep a dangling edge, which the graph
// queries ignore.
func (e *Engine) DeleteTask(ctx context.Context, id string) error {
	if err := e.backend.DeleteTask(ctx, id); err != nil {
		return e.writeFailed("delete task", err)
	}
	e.syncAfterWrite(ctx)
	return nil
}

// --- Program mutations ---

// AddProgram creates a funding program attributed to the current user.
func (e *Engine) AddProgram(ctx context.Context, p model.Program) (*model.Program, error) {
	if p.ID == "" {
		p.ID = model.NewID()
	}
	p.CreatedAt = time.Now().UTC()
	p.CreatedBy = e.actorID()

	if err := e.backend.InsertProgram(ctx, p); err != nil {
		return nil, e.writeFailed("add program", err)
	}
	e.syncAfterWrite(ctx)
	return &p, nil
}

// UpdateProgram applies a partial update to a program.
func (e *Engine) UpdateProgram(ctx context.Context, id string, p model.ProgramPatch) error {
	if err := e.backend.PatchProgram(ctx, id, p); err != nil {
		return e.writeFailed("update program", err)
	}
	e.syncAfterWrite(ctx)
	return nil
}

// DeleteProgram removes a program. Tasks keep their program name string;
// a dangling reference is tolerated by design, but it is worth noticing.
func (e *Engine) DeleteProgram(ctx context.Context, id string) error {
	snap := e.Snapshot()
	var name string
	for _, prog := range snap.Programs {
		if prog.ID == id {
			name = prog.Name
			break
		}
	}
	if name != "" {
		var referencing int
		for _, t := range snap.Tasks {
			if t.Program == name {
				referencing++
			}
		}
		if referencing > 0 {
			e.logger.Warn("deleting program still referenced by tasks",
				slog.String("program", name), slog.Int("tasks", referencing))
		}
	}

	if err := e.backend.DeleteProgram(ctx, id); err != nil {
		return e.writeFailed("delete program", err)
	}
	e.syncAfterWrite(ctx)
	return nil
}

// --- User mutations ---

// AddUser creates a user.
func (e *Engine) AddUser(ctx context.Context, u model.User) (*model.User, error) {
	if u.ID == "" {
		u.ID = model.NewID()
	}
	if err := e.backend.InsertUser(ctx, u); err != nil {
		return nil, e.writeFailed("add user", err)
	}
	e.syncAfterWrite(ctx)
	return &u, nil
}

// UpdateUser applies a partial update to a user. The current-user
// reference is re-resolved on the next refresh, so edits to the logged
// in user propagate automatically.
func (e *Engine) UpdateUser(ctx context.Context, id string, p model.UserPatch) error {
	if err := e.backend.PatchUser(ctx, id, p); err != nil {
		return e.writeFailed("update user", err)
	}
	e.syncAfterWrite(ctx)
	return nil
}

// DeleteUser removes a user.
func (e *Engine) DeleteUser(ctx context.Context, id string) error {
	if err := e.backend.DeleteUser(ctx, id); err != nil {
		return e.writeFailed("delete user", err)
	}
	e.syncAfterWrite(ctx)
	return nil
}

// SetCurrentUser switches the simulated logged-in identity. This is
// session bookkeeping layered over the synced user list, not an
// authentication event.
func (e *Engine) SetCurrentUser(ctx context.Context, userID string) error {
	if err := e.backend.SetCurrentUser(ctx, userID); err != nil {
		return e.writeFailed("set current user", err)
	}
	e.mu.Lock()
	e.sessionUID = userID
	e.mu.Unlock()
	e.syncAfterWrite(ctx)
	return nil
}

// --- Notification feed ---

// Notify appends an entry to the session's observation feed and fans the
// new state out. The feed is append-only and never written through the
// backend.
func (e *Engine) Notify(n model.Notification) {
	if n.ID == "" {
		n.ID = model.NewID()
	}
	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now().UTC()
	}
	e.mu.Lock()
	e.state.Notifications = append(e.state.Notifications, n)
	e.publishLocked()
}

// MarkNotificationsRead flips every feed entry to read.
func (e *Engine) MarkNotificationsRead() {
	e.mu.Lock()
	for i := range e.state.Notifications {
		e.state.Notifications[i].Read = true
	}
	e.publishLocked()
}

// ClearNotifications empties the feed.
func (e *Engine) ClearNotifications() {
	e.mu.Lock()
	e.state.Notifications = nil
	e.publishLocked()
}

// --- Internals ---

// refresh performs a full reconciliation fetch and replaces the shadow
// state wholesale. Fetches are guarded by a generation counter: a fetch
// that started before a newer one is discarded on completion, so a slow
// response can never regress the shadow state to stale data.
func (e *Engine) refresh(ctx context.Context) error {
	gen := e.fetchGen.Add(1)

	st, err := e.backend.FetchState(ctx)
	if err != nil {
		e.connected.Store(false)
		e.logger.Warn("reconciliation fetch failed, keeping last known state", slog.Any("err", err))
		return err
	}

	e.mu.Lock()
	if gen <= e.appliedGen {
		e.mu.Unlock()
		return nil // a newer fetch already applied
	}
	e.appliedGen = gen

	prev := e.state

	// Session overlays: the feed is engine-owned, and a backend that
	// does not persist user selection gets it re-resolved here.
	st.Notifications = prev.Notifications
	if st.CurrentUser == nil && e.sessionUID != "" {
		st.CurrentUser = st.FindUser(e.sessionUID)
	}
	if st.CurrentUser != nil {
		e.sessionUID = st.CurrentUser.ID
	}

	e.state = *st
	e.observeUnblocked(prev, st)
	e.connected.Store(true)
	e.publishLocked()
	return nil
}

// syncAfterWrite runs the post-mutation reconciliation fetch. A failed
// refetch leaves the pre-mutation state visible, which is itself the
// error signal; the write already succeeded at the backend.
func (e *Engine) syncAfterWrite(ctx context.Context) {
	if err := e.refresh(ctx); err != nil {
		e.logger.Warn("post-write sync failed", slog.Any("err", err))
	}
}

// startRealtime (re)starts the change-feed loop, canceling any previous
// subscription first.
func (e *Engine) startRealtime(ctx context.Context) {
	e.mu.Lock()
	if e.realtimeCancel != nil {
		e.realtimeCancel()
	}
	rctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	e.realtimeCancel = cancel
	e.mu.Unlock()

	ch, err := e.backend.Changes(rctx)
	if err != nil {
		e.logger.Warn("realtime subscription unavailable", slog.Any("err", err))
		return
	}
	go func() {
		for range ch {
			if err := e.refresh(rctx); err != nil && rctx.Err() == nil {
				e.logger.Warn("realtime refresh failed", slog.Any("err", err))
			}
		}
	}()
}

// observeUnblocked appends a DEPENDENCY feed entry for every task whose
// prerequisites all resolved between the two snapshots. Called with mu
// held.
func (e *Engine) observeUnblocked(prev model.AppState, next *model.AppState) {
	if len(prev.Tasks) == 0 {
		return
	}
	for _, t := range next.Tasks {
		if t.Status == model.StatusCompleted || len(t.DependentTasks) == 0 {
			continue
		}
		if depgraph.IsBlocked(t, next.Tasks) {
			continue
		}
		before := prev.FindTask(t.ID)
		if before == nil || !depgraph.IsBlocked(*before, prev.Tasks) {
			continue
		}
		e.state.Notifications = append(e.state.Notifications, model.Notification{
			ID:        model.NewID(),
			Type:      model.NotifyDependency,
			Title:     "Prerequisites clear",
			Message:   fmt.Sprintf("%q is no longer blocked and is ready for execution.", t.Name),
			Timestamp: time.Now().UTC(),
		})
	}
}

// publishLocked delivers the current state to every subscriber. Called
// with mu held; it hands off to dispatchMu before releasing mu, so two
// racing state applications cannot deliver their snapshots out of
// application order. mu is released on return.
func (e *Engine) publishLocked() {
	state := e.state.Clone()
	targets := make([]Subscriber, 0, len(e.subs))
	for _, fn := range e.subs {
		targets = append(targets, fn)
	}
	e.dispatchMu.Lock()
	e.mu.Unlock()

	for _, fn := range targets {
		fn(state)
	}
	e.dispatchMu.Unlock()
}

// writeFailed marks the connection down and surfaces the error to the
// caller. The shadow state is untouched, so subscribers keep seeing
// pre-mutation data.
func (e *Engine) writeFailed(op string, err error) error {
	e.connected.Store(false)
	e.logger.Warn("backend write failed", slog.String("op", op), slog.Any("err", err))
	return fmt.Errorf("%s: %w", op, err)
}

func (e *Engine) actorName() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state.CurrentUser != nil {
		return e.state.CurrentUser.Name
	}
	return "system"
}

func (e *Engine) actorID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state.CurrentUser != nil {
		return e.state.CurrentUser.ID
	}
	return "system"
}

// validateDeps rejects self-dependencies and cycles at write time.
// Tolerating cycles would merely mark every member permanently blocked,
// but nothing could ever resolve them, so they are refused up front.
func validateDeps(taskID string, deps []string, all []model.Task) error {
	for _, d := range deps {
		if d == taskID {
			return fmt.Errorf("task %s cannot depend on itself", taskID)
		}
	}
	if depgraph.WouldCreateCycle(taskID, deps, all) {
		return fmt.Errorf("dependency cycle rejected for task %s", taskID)
	}
	return nil
}
