package backend

import (
	"context"
	"time"

	"github.com/bpd-ops/central/model"
	"github.com/bpd-ops/central/signal"
	"github.com/bpd-ops/central/store"
)

// Local is the offline/demo strategy: a durable SQLite store plus a
// same-origin broadcast bus. Every write publishes a "changed" signal;
// every open session, the writer included, re-reads the store. The
// store itself is the single source of truth, so no conflict resolution
// is needed.
type Local struct {
	store *store.Store
	bus   *signal.Bus
	id    string
}

// NewLocal wraps an open store and a shared bus. Sessions that should
// see each other's writes must share the same bus instance.
func NewLocal(st *store.Store, bus *signal.Bus) *Local {
	return &Local{store: st, bus: bus, id: model.NewID()}
}

func (l *Local) Name() string { return "local" }

// HasCredentials is trivially true: the local store needs none.
func (l *Local) HasCredentials() bool { return true }

// Probe always succeeds once the store is open.
func (l *Local) Probe(ctx context.Context) error {
	_, err := l.store.Empty()
	return err
}

func (l *Local) SeedIfEmpty(ctx context.Context, seed model.AppState) (bool, error) {
	seeded, err := l.store.SeedIfEmpty(seed)
	if err != nil {
		return false, err
	}
	if seeded {
		l.broadcast()
	}
	return seeded, nil
}

func (l *Local) FetchState(ctx context.Context) (*model.AppState, error) {
	return l.store.ReadState()
}

func (l *Local) InsertTask(ctx context.Context, t model.Task) error {
	if err := l.store.InsertTask(t); err != nil {
		return err
	}
	l.broadcast()
	return nil
}

func (l *Local) PatchTask(ctx context.Context, id string, p model.TaskPatch) error {
	if _, err := l.store.PatchTask(id, p, nowUTC()); err != nil {
		return err
	}
	l.broadcast()
	return nil
}

func (l *Local) DeleteTask(ctx context.Context, id string) error {
	if err := l.store.DeleteTask(id); err != nil {
		return err
	}
	l.broadcast()
	return nil
}

func (l *Local) InsertProgram(ctx context.Context, p model.Program) error {
	if err := l.store.InsertProgram(p); err != nil {
		return err
	}
	l.broadcast()
	return nil
}

func (l *Local) PatchProgram(ctx context.Context, id string, p model.ProgramPatch) error {
	if _, err := l.store.PatchProgram(id, p); err != nil {
		return err
	}
	l.broadcast()
	return nil
}

func (l *Local) DeleteProgram(ctx context.Context, id string) error {
	if err := l.store.DeleteProgram(id); err != nil {
		return err
	}
	l.broadcast()
	return nil
}

func (l *Local) InsertUser(ctx context.Context, u model.User) error {
	if err := l.store.InsertUser(u); err != nil {
		return err
	}
	l.broadcast()
	return nil
}

func (l *Local) PatchUser(ctx context.Context, id string, p model.UserPatch) error {
	if _, err := l.store.PatchUser(id, p); err != nil {
		return err
	}
	l.broadcast()
	return nil
}

func (l *Local) DeleteUser(ctx context.Context, id string) error {
	if err := l.store.DeleteUser(id); err != nil {
		return err
	}
	l.broadcast()
	return nil
}

func (l *Local) SetCurrentUser(ctx context.Context, userID string) error {
	if err := l.store.SetCurrentUser(userID); err != nil {
		return err
	}
	l.broadcast()
	return nil
}

// Changes adapts a bus subscription into a signal channel. Signals
// originated by this session are filtered out: the writer refreshes on
// its own write path, and an echo would notify its subscribers a second
// time. Remaining signals are coalesced when the consumer lags: the
// channel holds at most one pending signal, which is enough because
// consumers re-read everything.
func (l *Local) Changes(ctx context.Context) (<-chan struct{}, error) {
	ch := make(chan struct{}, 1)
	unsub := l.bus.Subscribe(func(c signal.Change) {
		if c.Source == l.id {
			return
		}
		select {
		case ch <- struct{}{}:
		default:
		}
	})
	go func() {
		<-ctx.Done()
		unsub()
		close(ch)
	}()
	return ch, nil
}

// Close is a no-op; the store's owner closes it.
func (l *Local) Close() error { return nil }

func (l *Local) broadcast() {
	l.bus.Publish(signal.Change{Source: l.id})
}

func nowUTC() time.Time { return time.Now().UTC() }
