// Package model defines the shared entity records for the central sync
// core: tasks, funding programs, users, notifications, and the AppState
// aggregate every subscriber receives.
//
// JSON tags are the wire format (snake_case columns of the remote
// backend); Go field names are the in-memory shape. Nothing outside the
// persistence layer should need to know about the wire spelling.
package model

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a task.
type Status string

const (
	StatusOpen       Status = "Open"
	StatusInProgress Status = "In Progress"
	StatusOnHold     Status = "On Hold"
	StatusCompleted  Status = "Completed"
)

// Priority ranks a task's importance.
type Priority string

const (
	PriorityLow      Priority = "Low"
	PriorityMedium   Priority = "Medium"
	PriorityHigh     Priority = "High"
	PriorityCritical Priority = "Critical"
)

// NotificationType tags an entry in the observation feed.
type NotificationType string

const (
	NotifyTaskUpdate NotificationType = "TASK_UPDATE"
	NotifyDependency NotificationType = "DEPENDENCY"
	NotifySystem     NotificationType = "SYSTEM"
	NotifyAlert      NotificationType = "ALERT"
	NotifySentinel   NotificationType = "SENTINEL"
)

// Task is a unit of grant-tracking work. Program references a Program by
// name, not by ID; deleting a program leaves the name dangling here.
// DependentTasks holds the IDs of prerequisite tasks.
type Task struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Description    string     `json:"description"`
	Program        string     `json:"program"`
	AssignedTo     string     `json:"assigned_to"`
	AssignedToID   string     `json:"assigned_to_id"`
	Priority       Priority   `json:"priority"`
	Status         Status     `json:"status"`
	Progress       int        `json:"progress"` // 0-100
	StartDate      time.Time  `json:"start_date"`
	PlannedEndDate time.Time  `json:"planned_end_date"`
	ActualEndDate  *time.Time `json:"actual_end_date,omitempty"`
	DependentTasks []string   `json:"dependent_tasks"`
	Notes          []string   `json:"notes,omitempty"`
	UpdatedAt      time.Time  `json:"updated_at"`
	UpdatedBy      string     `json:"updated_by"`
}

// TaskPatch is a partial task update. Nil fields are left unchanged.
// UpdatedAt/UpdatedBy are stamped by the engine, never by callers.
type TaskPatch struct {
	Name           *string    `json:"name,omitempty"`
	Description    *string    `json:"description,omitempty"`
	Program        *string    `json:"program,omitempty"`
	AssignedTo     *string    `json:"assigned_to,omitempty"`
	AssignedToID   *string    `json:"assigned_to_id,omitempty"`
	Priority       *Priority  `json:"priority,omitempty"`
	Status         *Status    `json:"status,omitempty"`
	Progress       *int       `json:"progress,omitempty"`
	StartDate      *time.Time `json:"start_date,omitempty"`
	PlannedEndDate *time.Time `json:"planned_end_date,omitempty"`
	ActualEndDate  *time.Time `json:"actual_end_date,omitempty"`
	DependentTasks *[]string  `json:"dependent_tasks,omitempty"`
	Notes          *[]string  `json:"notes,omitempty"`
	UpdatedBy      *string    `json:"updated_by,omitempty"`
}

// Apply copies the patch's non-nil fields onto t.
func (p TaskPatch) Apply(t *Task) {
	if p.Name != nil {
		t.Name = *p.Name
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Program != nil {
		t.Program = *p.Program
	}
	if p.AssignedTo != nil {
		t.AssignedTo = *p.AssignedTo
	}
	if p.AssignedToID != nil {
		t.AssignedToID = *p.AssignedToID
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.Progress != nil {
		t.Progress = *p.Progress
	}
	if p.StartDate != nil {
		t.StartDate = *p.StartDate
	}
	if p.PlannedEndDate != nil {
		t.PlannedEndDate = *p.PlannedEndDate
	}
	if p.ActualEndDate != nil {
		t.ActualEndDate = p.ActualEndDate
	}
	if p.DependentTasks != nil {
		t.DependentTasks = append([]string(nil), (*p.DependentTasks)...)
	}
	if p.Notes != nil {
		t.Notes = append([]string(nil), (*p.Notes)...)
	}
	if p.UpdatedBy != nil {
		t.UpdatedBy = *p.UpdatedBy
	}
}

// Program is a funding program. Name is the de facto foreign key used by
// Task.Program.
type Program struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Color       string    `json:"color"`
	CreatedAt   time.Time `json:"created_at"`
	CreatedBy   string    `json:"created_by"`
}

// ProgramPatch is a partial program update.
type ProgramPatch struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Color       *string `json:"color,omitempty"`
}

// Apply copies the patch's non-nil fields onto p.
func (pp ProgramPatch) Apply(p *Program) {
	if pp.Name != nil {
		p.Name = *pp.Name
	}
	if pp.Description != nil {
		p.Description = *pp.Description
	}
	if pp.Color != nil {
		p.Color = *pp.Color
	}
}

// User is an office member. Role is free text (Admin/Manager/Staff).
type User struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Role       string `json:"role"`
	Department string `json:"department"`
}

// UserPatch is a partial user update.
type UserPatch struct {
	Name       *string `json:"name,omitempty"`
	Email      *string `json:"email,omitempty"`
	Role       *string `json:"role,omitempty"`
	Department *string `json:"department,omitempty"`
}

// Apply copies the patch's non-nil fields onto u.
func (p UserPatch) Apply(u *User) {
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.Email != nil {
		u.Email = *p.Email
	}
	if p.Role != nil {
		u.Role = *p.Role
	}
	if p.Department != nil {
		u.Department = *p.Department
	}
}

// Notification is one entry in the append-only observation feed.
type Notification struct {
	ID        string           `json:"id"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Timestamp time.Time        `json:"timestamp"`
	Read      bool             `json:"read"`
}

// AppState is the aggregate every view subscribes to. It is replaced
// wholesale on every change; subscribers never receive diffs.
type AppState struct {
	Tasks         []Task         `json:"tasks"`
	Programs      []Program      `json:"programs"`
	Users         []User         `json:"users"`
	CurrentUser   *User          `json:"current_user,omitempty"`
	Notifications []Notification `json:"notifications,omitempty"`
}

// Clone returns a deep copy so a subscriber can hold state without
// aliasing the engine's shadow copy.
func (s AppState) Clone() AppState {
	out := AppState{
		Tasks:         make([]Task, len(s.Tasks)),
		Programs:      append([]Program(nil), s.Programs...),
		Users:         append([]User(nil), s.Users...),
		Notifications: append([]Notification(nil), s.Notifications...),
	}
	for i, t := range s.Tasks {
		t.DependentTasks = append([]string(nil), t.DependentTasks...)
		t.Notes = append([]string(nil), t.Notes...)
		if t.ActualEndDate != nil {
			d := *t.ActualEndDate
			t.ActualEndDate = &d
		}
		out.Tasks[i] = t
	}
	if s.CurrentUser != nil {
		u := *s.CurrentUser
		out.CurrentUser = &u
	}
	return out
}

// FindTask returns the task with the given ID, or nil.
func (s AppState) FindTask(id string) *Task {
	for i := range s.Tasks {
		if s.Tasks[i].ID == id {
			return &s.Tasks[i]
		}
	}
	return nil
}

// FindUser returns the user with the given ID, or nil.
func (s AppState) FindUser(id string) *User {
	for i := range s.Users {
		if s.Users[i].ID == id {
			return &s.Users[i]
		}
	}
	return nil
}

// NewID generates a unique opaque entity ID.
func NewID() string {
	return uuid.NewString()
}
