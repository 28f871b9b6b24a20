package sentinel

import (
	"context"
	"errors"
	"testing"

	"github.com/bpd-ops/central/model"
)

func TestService_NilAnalyzerFallsBack(t *testing.T) {
	svc := NewService(nil, nil)

	if got := svc.AnalyzeHealth(context.Background(), nil); got != FallbackMessage {
		t.Errorf("AnalyzeHealth = %q, want fallback", got)
	}
	if got := svc.Scan(context.Background(), nil); got != nil {
		t.Errorf("Scan = %v, want nil", got)
	}
}

func TestService_AnalyzerErrorFallsBack(t *testing.T) {
	svc := NewService(&MockAnalyzer{Err: errors.New("quota exceeded")}, nil)

	if got := svc.AnalyzeHealth(context.Background(), nil); got != FallbackMessage {
		t.Errorf("AnalyzeHealth = %q, want fallback on error", got)
	}
	if got := svc.Scan(context.Background(), nil); got != nil {
		t.Errorf("Scan = %v, want nil on error", got)
	}
}

func TestService_PassesThroughReports(t *testing.T) {
	svc := NewService(NewMockAnalyzer("first", "second"), nil)

	tasks := []model.Task{{ID: "t1", Name: "Task"}}
	if got := svc.AnalyzeHealth(context.Background(), tasks); got != "first" {
		t.Errorf("report 1 = %q, want first", got)
	}
	if got := svc.AnalyzeHealth(context.Background(), tasks); got != "second" {
		t.Errorf("report 2 = %q, want second", got)
	}
	// Cycles back around.
	if got := svc.AnalyzeHealth(context.Background(), tasks); got != "first" {
		t.Errorf("report 3 = %q, want first again", got)
	}
}

func TestService_PassesThroughAlerts(t *testing.T) {
	alerts := []Alert{{Title: "Overdue", Message: "Task slipped"}}
	svc := NewService(&MockAnalyzer{Alerts: alerts}, nil)

	got := svc.Scan(context.Background(), nil)
	if len(got) != 1 || got[0].Title != "Overdue" {
		t.Errorf("Scan = %v, want scripted alerts", got)
	}
}
