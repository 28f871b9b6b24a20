// Package store persists the shared AppState in SQLite. It backs both
// the local (offline) backend in-process and the centrald daemon's
// relational tables. Columns are the snake_case wire names; translation
// to the entity shape happens entirely in this package.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/bpd-ops/central/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS tasks (
	id               TEXT PRIMARY KEY,
	name             TEXT NOT NULL,
	description      TEXT NOT NULL DEFAULT '',
	program          TEXT NOT NULL DEFAULT '',
	assigned_to      TEXT NOT NULL DEFAULT '',
	assigned_to_id   TEXT NOT NULL DEFAULT '',
	priority         TEXT NOT NULL DEFAULT 'Medium',
	status           TEXT NOT NULL DEFAULT 'Open',
	progress         INTEGER NOT NULL DEFAULT 0,
	start_date       DATETIME NOT NULL,
	planned_end_date DATETIME NOT NULL,
	actual_end_date  DATETIME,
	dependent_tasks  TEXT NOT NULL DEFAULT '[]',
	notes            TEXT NOT NULL DEFAULT '[]',
	updated_at       DATETIME NOT NULL,
	updated_by       TEXT NOT NULL DEFAULT 'system'
);
CREATE TABLE IF NOT EXISTS programs (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	color       TEXT NOT NULL DEFAULT '',
	created_at  DATETIME NOT NULL,
	created_by  TEXT NOT NULL DEFAULT 'system'
);
CREATE TABLE IF NOT EXISTS users (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	email      TEXT NOT NULL DEFAULT '',
	role       TEXT NOT NULL DEFAULT '',
	department TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

const metaCurrentUser = "current_user_id"

// Store is a SQLite-backed shared-state store.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the store at dbPath and ensures the schema
// exists. The caller is responsible for calling Close.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	db.SetMaxOpenConns(1) // prevent SQLITE_BUSY
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database connection.
func (s *Store) Close() error { return s.db.Close() }

// Empty reports whether the store holds no state at all.
func (s *Store) Empty() (bool, error) {
	var n int
	err := s.db.QueryRow(
		`SELECT (SELECT COUNT(*) FROM tasks) + (SELECT COUNT(*) FROM programs) + (SELECT COUNT(*) FROM users)`,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("count rows: %w", err)
	}
	return n == 0, nil
}

// SeedIfEmpty writes the seed state only when the store holds nothing,
// selecting the seed's first user as the current user. Calling it again
// leaves existing state untouched. Returns whether seeding happened.
func (s *Store) SeedIfEmpty(seed model.AppState) (bool, error) {
	empty, err := s.Empty()
	if err != nil {
		return false, err
	}
	if !empty {
		return false, nil
	}
	for i := range seed.Tasks {
		if err := s.InsertTask(seed.Tasks[i]); err != nil {
			return false, err
		}
	}
	for i := range seed.Programs {
		if err := s.InsertProgram(seed.Programs[i]); err != nil {
			return false, err
		}
	}
	for i := range seed.Users {
		if err := s.InsertUser(seed.Users[i]); err != nil {
			return false, err
		}
	}
	if len(seed.Users) > 0 {
		if err := s.SetCurrentUser(seed.Users[0].ID); err != nil {
			return false, err
		}
	}
	return true, nil
}

// ReadState returns the full shared state: tasks ordered most recently
// updated first, all programs, all users, and the current user if one is
// selected. Notifications are session-scoped and never stored here.
func (s *Store) ReadState() (*model.AppState, error) {
	tasks, err := s.ListTasks()
	if err != nil {
		return nil, err
	}
	programs, err := s.ListPrograms()
	if err != nil {
		return nil, err
	}
	users, err := s.ListUsers()
	if err != nil {
		return nil, err
	}
	st := &model.AppState{Tasks: tasks, Programs: programs, Users: users}

	var currentID string
	err = s.db.QueryRow(`SELECT value FROM meta WHERE key=?`, metaCurrentUser).Scan(&currentID)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("read current user: %w", err)
	}
	if currentID != "" {
		st.CurrentUser = st.FindUser(currentID)
	}
	return st, nil
}

// SetCurrentUser records the selected user ID. An unknown ID is stored
// as-is; ReadState simply resolves it to no user.
func (s *Store) SetCurrentUser(userID string) error {
	_, err := s.db.Exec(
		`INSERT INTO meta (key, value) VALUES (?,?)
		 ON CONFLICT(key) DO UPDATE SET value=excluded.value`,
		metaCurrentUser, userID,
	)
	if err != nil {
		return fmt.Errorf("set current user: %w", err)
	}
	return nil
}

// --- Tasks ---

// InsertTask persists a new task. The caller assigns ID and timestamps.
func (s *Store) InsertTask(t model.Task) error {
	deps, _ := json.Marshal(t.DependentTasks)
	notes, _ := json.Marshal(t.Notes)
	_, err := s.db.Exec(`
		INSERT INTO tasks
			(id, name, description, program, assigned_to, assigned_to_id, priority, status,
			 progress, start_date, planned_end_date, actual_end_date, dependent_tasks, notes,
			 updated_at, updated_by)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		t.ID, t.Name, t.Description, t.Program, t.AssignedTo, t.AssignedToID,
		string(t.Priority), string(t.Status), t.Progress,
		t.StartDate, t.PlannedEndDate, nullTime(t.ActualEndDate),
		string(deps), string(notes), t.UpdatedAt, t.UpdatedBy,
	)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

// GetTask retrieves a task by ID.
func (s *Store) GetTask(id string) (*model.Task, error) {
	row := s.db.QueryRow(`SELECT * FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("task %s not found", id)
	}
	return t, err
}

// UpdateTask overwrites an existing task row. Last write wins at row
// granularity; there are no concurrency tokens.
func (s *Store) UpdateTask(t model.Task) error {
	deps, _ := json.Marshal(t.DependentTasks)
	notes, _ := json.Marshal(t.Notes)
	res, err := s.db.Exec(`
		UPDATE tasks SET
			name=?, description=?, program=?, assigned_to=?, assigned_to_id=?, priority=?, status=?,
			progress=?, start_date=?, planned_end_date=?, actual_end_date=?, dependent_tasks=?, notes=?,
			updated_at=?, updated_by=?
		WHERE id=?`,
		t.Name, t.Description, t.Program, t.AssignedTo, t.AssignedToID,
		string(t.Priority), string(t.Status), t.Progress,
		t.StartDate, t.PlannedEndDate, nullTime(t.ActualEndDate),
		string(deps), string(notes), t.UpdatedAt, t.UpdatedBy, t.ID,
	)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	return requireRow(res, "task", t.ID)
}

// PatchTask applies a partial update to a task in a read-modify-write,
// stamping updated_at. Fields absent from the patch keep their stored
// values, so two back-to-back patches touching different fields yield
// the union of both.
func (s *Store) PatchTask(id string, p model.TaskPatch, now time.Time) (*model.Task, error) {
	t, err := s.GetTask(id)
	if err != nil {
		return nil, err
	}
	p.Apply(t)
	t.UpdatedAt = now
	if err := s.UpdateTask(*t); err != nil {
		return nil, err
	}
	return t, nil
}

// DeleteTask removes a task by ID. Removal is immediate; tasks that
// depended on it keep their dangling edge.
func (s *Store) DeleteTask(id string) error {
	res, err := s.db.Exec(`DELETE FROM tasks WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return requireRow(res, "task", id)
}

// ListTasks returns all tasks ordered most recently updated first.
func (s *Store) ListTasks() ([]model.Task, error) {
	rows, err := s.db.Query(`SELECT * FROM tasks ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	tasks := []model.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

// --- Programs ---

// InsertProgram persists a new program.
func (s *Store) InsertProgram(p model.Program) error {
	_, err := s.db.Exec(`
		INSERT INTO programs (id, name, description, color, created_at, created_by)
		VALUES (?,?,?,?,?,?)`,
		p.ID, p.Name, p.Description, p.Color, p.CreatedAt, p.CreatedBy,
	)
	if err != nil {
		return fmt.Errorf("insert program: %w", err)
	}
	return nil
}

// GetProgram retrieves a program by ID.
func (s *Store) GetProgram(id string) (*model.Program, error) {
	var p model.Program
	err := s.db.QueryRow(
		`SELECT id, name, description, color, created_at, created_by FROM programs WHERE id=?`, id,
	).Scan(&p.ID, &p.Name, &p.Description, &p.Color, &p.CreatedAt, &p.CreatedBy)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("program %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateProgram overwrites an existing program row.
func (s *Store) UpdateProgram(p model.Program) error {
	res, err := s.db.Exec(
		`UPDATE programs SET name=?, description=?, color=? WHERE id=?`,
		p.Name, p.Description, p.Color, p.ID,
	)
	if err != nil {
		return fmt.Errorf("update program: %w", err)
	}
	return requireRow(res, "program", p.ID)
}

// PatchProgram applies a partial update to a program.
func (s *Store) PatchProgram(id string, p model.ProgramPatch) (*model.Program, error) {
	prog, err := s.GetProgram(id)
	if err != nil {
		return nil, err
	}
	p.Apply(prog)
	if err := s.UpdateProgram(*prog); err != nil {
		return nil, err
	}
	return prog, nil
}

// DeleteProgram removes a program. Tasks referencing it by name are left
// untouched; the dangling reference is tolerated, not an error.
func (s *Store) DeleteProgram(id string) error {
	res, err := s.db.Exec(`DELETE FROM programs WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("delete program: %w", err)
	}
	return requireRow(res, "program", id)
}

// ListPrograms returns all programs in creation order.
func (s *Store) ListPrograms() ([]model.Program, error) {
	rows, err := s.db.Query(
		`SELECT id, name, description, color, created_at, created_by FROM programs ORDER BY created_at ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list programs: %w", err)
	}
	defer rows.Close()

	programs := []model.Program{}
	for rows.Next() {
		var p model.Program
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Color, &p.CreatedAt, &p.CreatedBy); err != nil {
			return nil, err
		}
		programs = append(programs, p)
	}
	return programs, rows.Err()
}

// --- Users ---

// InsertUser persists a new user.
func (s *Store) InsertUser(u model.User) error {
	_, err := s.db.Exec(
		`INSERT INTO users (id, name, email, role, department) VALUES (?,?,?,?,?)`,
		u.ID, u.Name, u.Email, u.Role, u.Department,
	)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetUser retrieves a user by ID.
func (s *Store) GetUser(id string) (*model.User, error) {
	var u model.User
	err := s.db.QueryRow(
		`SELECT id, name, email, role, department FROM users WHERE id=?`, id,
	).Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.Department)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// UpdateUser overwrites an existing user row.
func (s *Store) UpdateUser(u model.User) error {
	res, err := s.db.Exec(
		`UPDATE users SET name=?, email=?, role=?, department=? WHERE id=?`,
		u.Name, u.Email, u.Role, u.Department, u.ID,
	)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return requireRow(res, "user", u.ID)
}

// PatchUser applies a partial update to a user.
func (s *Store) PatchUser(id string, p model.UserPatch) (*model.User, error) {
	u, err := s.GetUser(id)
	if err != nil {
		return nil, err
	}
	p.Apply(u)
	if err := s.UpdateUser(*u); err != nil {
		return nil, err
	}
	return u, nil
}

// DeleteUser removes a user by ID.
func (s *Store) DeleteUser(id string) error {
	res, err := s.db.Exec(`DELETE FROM users WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return requireRow(res, "user", id)
}

// ListUsers returns all users.
func (s *Store) ListUsers() ([]model.User, error) {
	rows, err := s.db.Query(`SELECT id, name, email, role, department FROM users ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.Department); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// scanner abstracts sql.Row and sql.Rows for scanTask.
type scanner interface {
	Scan(dest ...any) error
}

func scanTask(s scanner) (*model.Task, error) {
	var t model.Task
	var priority, status, depsJSON, notesJSON string
	var actualEnd sql.NullTime

	err := s.Scan(
		&t.ID, &t.Name, &t.Description, &t.Program, &t.AssignedTo, &t.AssignedToID,
		&priority, &status, &t.Progress,
		&t.StartDate, &t.PlannedEndDate, &actualEnd,
		&depsJSON, &notesJSON, &t.UpdatedAt, &t.UpdatedBy,
	)
	if err != nil {
		return nil, err
	}

	t.Priority = model.Priority(priority)
	t.Status = model.Status(status)

	// Missing or malformed list columns decode to empty, never fatal.
	_ = json.Unmarshal([]byte(depsJSON), &t.DependentTasks)
	_ = json.Unmarshal([]byte(notesJSON), &t.Notes)
	if t.DependentTasks == nil {
		t.DependentTasks = []string{}
	}

	if actualEnd.Valid {
		t.ActualEndDate = &actualEnd.Time
	}
	return &t, nil
}

func requireRow(res sql.Result, kind, id string) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("%s %s not found", kind, id)
	}
	return nil
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
