// Package depgraph derives blocked/blocking/critical-path views over a
// task snapshot. Every function is pure: it operates on the task list it
// is given and touches no shared state, so results are correct for
// whatever snapshot the caller holds at call time.
package depgraph

import "github.com/bpd-ops/central/model"

// index builds an ID lookup over a snapshot.
func index(tasks []model.Task) map[string]*model.Task {
	m := make(map[string]*model.Task, len(tasks))
	for i := range tasks {
		m[tasks[i].ID] = &tasks[i]
	}
	return m
}

// IsBlocked reports whether task has at least one prerequisite that is
// not Completed. Dependency IDs that resolve to no task are ignored.
func IsBlocked(task model.Task, all []model.Task) bool {
	byID := index(all)
	for _, depID := range task.DependentTasks {
		if dep, ok := byID[depID]; ok && dep.Status != model.StatusCompleted {
			return true
		}
	}
	return false
}

// IsBlocking reports whether any other, not-yet-Completed task lists this
// task as a prerequisite.
func IsBlocking(task model.Task, all []model.Task) bool {
	for i := range all {
		other := &all[i]
		if other.ID == task.ID || other.Status == model.StatusCompleted {
			continue
		}
		for _, depID := range other.DependentTasks {
			if depID == task.ID {
				return true
			}
		}
	}
	return false
}

// Dependents returns the tasks that list task as a prerequisite,
// completed or not.
func Dependents(task model.Task, all []model.Task) []model.Task {
	var out []model.Task
	for _, other := range all {
		for _, depID := range other.DependentTasks {
			if depID == task.ID {
				out = append(out, other)
				break
			}
		}
	}
	return out
}

// NewlyUnblocked returns the tasks assigned to userID that are not yet
// Completed, have at least one declared prerequisite, and whose every
// prerequisite now resolves to Completed. Recomputed on every call,
// never cached.
func NewlyUnblocked(userID string, all []model.Task) []model.Task {
	byID := index(all)
	var out []model.Task
	for _, t := range all {
		if t.AssignedToID != userID || t.Status == model.StatusCompleted {
			continue
		}
		if len(t.DependentTasks) == 0 {
			continue
		}
		ready := true
		for _, depID := range t.DependentTasks {
			dep, ok := byID[depID]
			if !ok || dep.Status != model.StatusCompleted {
				ready = false
				break
			}
		}
		if ready {
			out = append(out, t)
		}
	}
	return out
}

// DirectBlockers returns the tasks assigned to userID that are not
// Completed and are blocking at least one other unfinished task.
func DirectBlockers(userID string, all []model.Task) []model.Task {
	var out []model.Task
	for _, t := range all {
		if t.AssignedToID != userID || t.Status == model.StatusCompleted {
			continue
		}
		if IsBlocking(t, all) {
			out = append(out, t)
		}
	}
	return out
}

// CanComplete is the single authoritative dependency gate on the
// Completed transition: a task may complete only when it is not blocked.
// The data layer does not enforce this; whatever layer performs the
// transition must consult it.
func CanComplete(task model.Task, all []model.Task) bool {
	return !IsBlocked(task, all)
}

// WouldCreateCycle reports whether setting taskID's prerequisites to deps
// would introduce a dependency cycle (including a self-dependency).
// Edges of the rest of the snapshot are taken as-is.
func WouldCreateCycle(taskID string, deps []string, all []model.Task) bool {
	edges := make(map[string][]string, len(all))
	for _, t := range all {
		if t.ID == taskID {
			continue
		}
		edges[t.ID] = t.DependentTasks
	}
	edges[taskID] = deps

	// Walk prerequisites from taskID; reaching taskID again is a cycle.
	seen := map[string]bool{}
	stack := append([]string(nil), deps...)
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if id == taskID {
			return true
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		stack = append(stack, edges[id]...)
	}
	return false
}

// Stats summarizes a user's workload for the mission view.
type Stats struct {
	Total      int
	Completed  int
	InProgress int
	Rate       int // completion percentage, 0 when no tasks
}

// UserStats computes completion stats over the tasks assigned to userID.
func UserStats(userID string, all []model.Task) Stats {
	var s Stats
	for _, t := range all {
		if t.AssignedToID != userID {
			continue
		}
		s.Total++
		switch t.Status {
		case model.StatusCompleted:
			s.Completed++
		case model.StatusInProgress:
			s.InProgress++
		}
	}
	if s.Total > 0 {
		s.Rate = s.Completed * 100 / s.Total
	}
	return s
}
