// Package sentinel is the boundary to the generative-AI collaborator:
// tasks in, free-text analysis or structured alerts out. The collaborator
// is fallible and slow; Service guarantees callers a deterministic
// fallback string instead of an error, whatever goes wrong.
package sentinel

import (
	"context"
	"log/slog"

	"github.com/bpd-ops/central/model"
)

// FallbackMessage is returned verbatim on any analysis failure,
// including missing credentials.
const FallbackMessage = "Failed to generate AI insights. Please check your connection."

// Alert is a structured finding surfaced into the observation feed.
type Alert struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}

// Analyzer produces project-health output from a task snapshot.
type Analyzer interface {
	// Name returns the analyzer identifier (e.g., "gemini", "mock").
	Name() string

	// AnalyzeHealth returns a free-text status report over the tasks.
	AnalyzeHealth(ctx context.Context, tasks []model.Task) (string, error)

	// Scan returns structured alerts worth raising to the office.
	Scan(ctx context.Context, tasks []model.Task) ([]Alert, error)
}

// Service wraps an Analyzer and never propagates errors to callers.
type Service struct {
	analyzer Analyzer
	logger   *slog.Logger
}

// NewService creates a Service. A nil analyzer is treated as "no
// credentials": every call yields the fallback.
func NewService(a Analyzer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{analyzer: a, logger: logger}
}

// AnalyzeHealth returns the analyzer's report, or FallbackMessage on any
// failure.
func (s *Service) AnalyzeHealth(ctx context.Context, tasks []model.Task) string {
	if s.analyzer == nil {
		return FallbackMessage
	}
	text, err := s.analyzer.AnalyzeHealth(ctx, tasks)
	if err != nil {
		s.logger.Warn("ai analysis failed", slog.String("analyzer", s.analyzer.Name()), slog.Any("err", err))
		return FallbackMessage
	}
	return text
}

// Scan returns structured alerts, or nil on any failure. Failures are
// logged, never surfaced.
func (s *Service) Scan(ctx context.Context, tasks []model.Task) []Alert {
	if s.analyzer == nil {
		return nil
	}
	alerts, err := s.analyzer.Scan(ctx, tasks)
	if err != nil {
		s.logger.Warn("sentinel scan failed", slog.String("analyzer", s.analyzer.Name()), slog.Any("err", err))
		return nil
	}
	return alerts
}
