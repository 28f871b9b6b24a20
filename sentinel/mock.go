package sentinel

import (
	"context"

	"github.com/bpd-ops/central/model"
)

const defaultMockReport = "All programs tracking nominally. No blockers detected."

// MockAnalyzer implements Analyzer for testing with scripted output.
type MockAnalyzer struct {
	Reports []string
	Alerts  []Alert
	Err     error

	idx int
}

// NewMockAnalyzer creates a MockAnalyzer that cycles through reports.
func NewMockAnalyzer(reports ...string) *MockAnalyzer {
	return &MockAnalyzer{Reports: reports}
}

func (m *MockAnalyzer) Name() string { return "mock" }

// AnalyzeHealth returns the next scripted report, or Err when set.
func (m *MockAnalyzer) AnalyzeHealth(_ context.Context, _ []model.Task) (string, error) {
	if m.Err != nil {
		return "", m.Err
	}
	if len(m.Reports) == 0 {
		return defaultMockReport, nil
	}
	report := m.Reports[m.idx%len(m.Reports)]
	m.idx++
	return report, nil
}

// Scan returns the scripted alerts, or Err when set.
func (m *MockAnalyzer) Scan(_ context.Context, _ []model.Task) ([]Alert, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Alerts, nil
}
