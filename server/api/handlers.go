// Package api implements the centrald REST surface over the shared
// relational store: the three entity tables, the combined state fetch,
// and the idempotent seed endpoint.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/bpd-ops/central/model"
	"github.com/bpd-ops/central/server/ws"
	"github.com/bpd-ops/central/store"
)

// Handlers bundles all REST API handler dependencies.
type Handlers struct {
	Store   *store.Store
	Hub     *ws.Hub
	Logger  *slog.Logger
	Version string
}

// RegisterRoutes registers all API routes on the given mux.
func (h *Handlers) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/health", h.health)
	mux.HandleFunc("GET /api/state", h.getState)
	mux.HandleFunc("POST /api/state/seed", h.seedState)

	mux.HandleFunc("GET /api/tasks", h.listTasks)
	mux.HandleFunc("POST /api/tasks", h.createTask)
	mux.HandleFunc("GET /api/tasks/{id}", h.getTask)
	mux.HandleFunc("PATCH /api/tasks/{id}", h.patchTask)
	mux.HandleFunc("DELETE /api/tasks/{id}", h.deleteTask)

	mux.HandleFunc("POST /api/programs", h.createProgram)
	mux.HandleFunc("PATCH /api/programs/{id}", h.patchProgram)
	mux.HandleFunc("DELETE /api/programs/{id}", h.deleteProgram)

	mux.HandleFunc("POST /api/users", h.createUser)
	mux.HandleFunc("PATCH /api/users/{id}", h.patchUser)
	mux.HandleFunc("DELETE /api/users/{id}", h.deleteUser)

	mux.HandleFunc("GET /api/version", h.version)
}

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// health is the cheap existence probe sync clients hit before
// exposing connected=true.
func (h *Handlers) health(w http.ResponseWriter, _ *http.Request) {
	if _, err := h.Store.Empty(); err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// getState returns the full reconciliation payload: tasks newest-update
// first, all programs, all users.
func (h *Handlers) getState(w http.ResponseWriter, _ *http.Request) {
	st, err := h.Store.ReadState()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	// Current-user selection is per-session on clients; never leak the
	// daemon's local meta row to remote consumers.
	st.CurrentUser = nil
	writeJSON(w, http.StatusOK, st)
}

// seedState writes the posted state only when the store is empty.
func (h *Handlers) seedState(w http.ResponseWriter, r *http.Request) {
	var seed model.AppState
	if err := json.NewDecoder(r.Body).Decode(&seed); err != nil {
		writeError(w, http.StatusBadRequest, "invalid seed body")
		return
	}
	seeded, err := h.Store.SeedIfEmpty(seed)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if seeded {
		h.Hub.Broadcast(ws.ChangeEvent("tasks"))
	}
	writeJSON(w, http.StatusOK, map[string]bool{"seeded": seeded})
}

// --- Task handlers ---

func (h *Handlers) listTasks(w http.ResponseWriter, _ *http.Request) {
	tasks, err := h.Store.ListTasks()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (h *Handlers) createTask(w http.ResponseWriter, r *http.Request) {
	var t model.Task
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		writeError(w, http.StatusBadRequest, "invalid task body")
		return
	}
	if t.ID == "" || t.Name == "" {
		writeError(w, http.StatusBadRequest, "task id and name are required")
		return
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = time.Now().UTC()
	}
	if err := h.Store.InsertTask(t); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.Hub.Broadcast(ws.ChangeEvent("tasks"))
	writeJSON(w, http.StatusCreated, t)
}

func (h *Handlers) getTask(w http.ResponseWriter, r *http.Request) {
	t, err := h.Store.GetTask(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// patchTask applies a partial update server-side, so two back-to-back
// patches touching different fields merge instead of clobbering.
func (h *Handlers) patchTask(w http.ResponseWriter, r *http.Request) {
	var p model.TaskPatch
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid patch body")
		return
	}
	t, err := h.Store.PatchTask(r.PathValue("id"), p, time.Now().UTC())
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	h.Hub.Broadcast(ws.ChangeEvent("tasks"))
	writeJSON(w, http.StatusOK, t)
}

func (h *Handlers) deleteTask(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.DeleteTask(r.PathValue("id")); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	h.Hub.Broadcast(ws.ChangeEvent("tasks"))
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// --- Program handlers ---

func (h *Handlers) createProgram(w http.ResponseWriter, r *http.Request) {
	var p model.Program
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid program body")
		return
	}
	if p.ID == "" || p.Name == "" {
		writeError(w, http.StatusBadRequest, "program id and name are required")
		return
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	if err := h.Store.InsertProgram(p); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.Hub.Broadcast(ws.ChangeEvent("programs"))
	writeJSON(w, http.StatusCreated, p)
}

func (h *Handlers) patchProgram(w http.ResponseWriter, r *http.Request) {
	var p model.ProgramPatch
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid patch body")
		return
	}
	prog, err := h.Store.PatchProgram(r.PathValue("id"), p)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	h.Hub.Broadcast(ws.ChangeEvent("programs"))
	writeJSON(w, http.StatusOK, prog)
}

// deleteProgram removes a program without touching tasks that still
// reference its name. The dangling reference is the observed contract.
func (h *Handlers) deleteProgram(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.DeleteProgram(r.PathValue("id")); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	h.Hub.Broadcast(ws.ChangeEvent("programs"))
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// --- User handlers ---

func (h *Handlers) createUser(w http.ResponseWriter, r *http.Request) {
	var u model.User
	if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
		writeError(w, http.StatusBadRequest, "invalid user body")
		return
	}
	if u.ID == "" || u.Name == "" {
		writeError(w, http.StatusBadRequest, "user id and name are required")
		return
	}
	if err := h.Store.InsertUser(u); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.Hub.Broadcast(ws.ChangeEvent("users"))
	writeJSON(w, http.StatusCreated, u)
}

func (h *Handlers) patchUser(w http.ResponseWriter, r *http.Request) {
	var p model.UserPatch
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid patch body")
		return
	}
	u, err := h.Store.PatchUser(r.PathValue("id"), p)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	h.Hub.Broadcast(ws.ChangeEvent("users"))
	writeJSON(w, http.StatusOK, u)
}

func (h *Handlers) deleteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.DeleteUser(r.PathValue("id")); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	h.Hub.Broadcast(ws.ChangeEvent("users"))
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *Handlers) version(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": h.Version})
}
