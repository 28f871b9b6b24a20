package backend

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/bpd-ops/central/model"
)

// Remote is the connected strategy: a relational backend reached over
// HTTP with an SSE change feed. The wire format is snake_case JSON;
// translation to the entity shape happens in the model's tags, so no
// other component sees column names.
type Remote struct {
	baseURL string
	key     string
	http    *http.Client
	logger  *slog.Logger
}

// RemoteConfig configures the remote strategy.
type RemoteConfig struct {
	URL        string
	Key        string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// NewRemote creates a remote backend. Returns ErrNoCredentials when the
// endpoint URL or access key is absent; callers treat that as "operate
// local-only", not as a failure.
func NewRemote(cfg RemoteConfig) (*Remote, error) {
	if cfg.URL == "" || cfg.Key == "" {
		return nil, ErrNoCredentials
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Remote{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		key:     cfg.Key,
		http:    cfg.HTTPClient,
		logger:  cfg.Logger,
	}, nil
}

func (r *Remote) Name() string { return "remote" }

func (r *Remote) HasCredentials() bool { return r.baseURL != "" && r.key != "" }

// Probe performs the cheap existence check against the health endpoint.
func (r *Remote) Probe(ctx context.Context) error {
	return r.do(ctx, http.MethodGet, "/api/health", nil, nil)
}

func (r *Remote) SeedIfEmpty(ctx context.Context, seed model.AppState) (bool, error) {
	var resp struct {
		Seeded bool `json:"seeded"`
	}
	if err := r.do(ctx, http.MethodPost, "/api/state/seed", seed, &resp); err != nil {
		return false, err
	}
	return resp.Seeded, nil
}

func (r *Remote) FetchState(ctx context.Context) (*model.AppState, error) {
	var st model.AppState
	if err := r.do(ctx, http.MethodGet, "/api/state", nil, &st); err != nil {
		return nil, err
	}
	if st.Tasks == nil {
		st.Tasks = []model.Task{}
	}
	return &st, nil
}

func (r *Remote) InsertTask(ctx context.Context, t model.Task) error {
	return r.do(ctx, http.MethodPost, "/api/tasks", t, nil)
}

func (r *Remote) PatchTask(ctx context.Context, id string, p model.TaskPatch) error {
	return r.do(ctx, http.MethodPatch, "/api/tasks/"+id, p, nil)
}

func (r *Remote) DeleteTask(ctx context.Context, id string) error {
	return r.do(ctx, http.MethodDelete, "/api/tasks/"+id, nil, nil)
}

func (r *Remote) InsertProgram(ctx context.Context, p model.Program) error {
	return r.do(ctx, http.MethodPost, "/api/programs", p, nil)
}

func (r *Remote) PatchProgram(ctx context.Context, id string, p model.ProgramPatch) error {
	return r.do(ctx, http.MethodPatch, "/api/programs/"+id, p, nil)
}

func (r *Remote) DeleteProgram(ctx context.Context, id string) error {
	return r.do(ctx, http.MethodDelete, "/api/programs/"+id, nil, nil)
}

func (r *Remote) InsertUser(ctx context.Context, u model.User) error {
	return r.do(ctx, http.MethodPost, "/api/users", u, nil)
}

func (r *Remote) PatchUser(ctx context.Context, id string, p model.UserPatch) error {
	return r.do(ctx, http.MethodPatch, "/api/users/"+id, p, nil)
}

func (r *Remote) DeleteUser(ctx context.Context, id string) error {
	return r.do(ctx, http.MethodDelete, "/api/users/"+id, nil, nil)
}

// SetCurrentUser is a no-op. The shared remote store holds state for
// every office session at once, so writing a single "current user"
// through would fight between sessions; the selection lives in the
// engine's session state instead.
func (r *Remote) SetCurrentUser(ctx context.Context, userID string) error {
	return nil
}

// Changes subscribes to the SSE change feed. Each event on the feed
// means "something changed, re-fetch"; row-level payloads are not
// consumed. The channel closes when the stream drops.
func (r *Remote) Changes(ctx context.Context) (<-chan struct{}, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/events", nil)
	if err != nil {
		return nil, fmt.Errorf("remote: build events request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+r.key)
	req.Header.Set("Accept", "text/event-stream")

	resp, err := r.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("remote: connect events: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("remote: events status %d", resp.StatusCode)
	}

	ch := make(chan struct{}, 1)
	go func() {
		defer resp.Body.Close()
		defer close(ch)

		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			var event struct {
				Type string `json:"type"`
			}
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &event); err != nil {
				continue
			}
			if event.Type == "connected" {
				continue
			}
			// Coalesce: one pending signal is enough, consumers
			// re-fetch everything anyway.
			select {
			case ch <- struct{}{}:
			default:
			}
		}
		if err := scanner.Err(); err != nil && ctx.Err() == nil {
			r.logger.Warn("realtime stream dropped", slog.Any("err", err))
		}
	}()
	return ch, nil
}

func (r *Remote) Close() error { return nil }

// do executes one JSON request/response round-trip.
func (r *Remote) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("remote: marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("remote: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+r.key)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := r.http.Do(req)
	if err != nil {
		return fmt.Errorf("remote: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("remote: %s %s: %s (status %d)", method, path, apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("remote: %s %s: status %d", method, path, resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("remote: decode response: %w", err)
		}
	}
	return nil
}
