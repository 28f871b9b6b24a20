// Package backend defines the persistence adapter contract: two
// interchangeable strategies (local SQLite and remote-with-realtime)
// behind one interface, selected at startup based on credential
// presence.
package backend

import (
	"context"
	"errors"

	"github.com/bpd-ops/central/model"
)

// ErrNoCredentials indicates the remote strategy has no endpoint or
// access key configured. The caller falls back to local-only mode; this
// is not a failure condition.
var ErrNoCredentials = errors.New("remote credentials not configured")

// Backend is the persistence adapter the synchronization engine writes
// through. Implementations must never corrupt previously fetched state
// on a failed write; the engine keeps the last good snapshot and marks
// the connection down instead.
type Backend interface {
	// Name identifies the strategy ("local" or "remote").
	Name() string

	// HasCredentials reports whether the backend is configured.
	// Trivially true for the local strategy.
	HasCredentials() bool

	// Probe performs a cheap existence check against the backing store.
	Probe(ctx context.Context) error

	// SeedIfEmpty writes the seed state only when no stored state
	// exists, selecting the seed's first user as current. Idempotent.
	SeedIfEmpty(ctx context.Context, seed model.AppState) (bool, error)

	// FetchState performs a full reconciliation fetch: all tasks ordered
	// most recently updated first, all programs, all users.
	FetchState(ctx context.Context) (*model.AppState, error)

	InsertTask(ctx context.Context, t model.Task) error
	PatchTask(ctx context.Context, id string, p model.TaskPatch) error
	DeleteTask(ctx context.Context, id string) error

	InsertProgram(ctx context.Context, p model.Program) error
	PatchProgram(ctx context.Context, id string, p model.ProgramPatch) error
	DeleteProgram(ctx context.Context, id string) error

	InsertUser(ctx context.Context, u model.User) error
	PatchUser(ctx context.Context, id string, p model.UserPatch) error
	DeleteUser(ctx context.Context, id string) error

	// SetCurrentUser persists the session's user selection where the
	// strategy supports it.
	SetCurrentUser(ctx context.Context, userID string) error

	// Changes returns a channel that receives one signal per remote
	// state change ("something changed, re-read"). The channel closes
	// when the feed drops or ctx is canceled.
	Changes(ctx context.Context) (<-chan struct{}, error)

	Close() error
}
