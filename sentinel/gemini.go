package sentinel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bpd-ops/central/model"
)

const (
	defaultGeminiBaseURL = "https://generativelanguage.googleapis.com"
	defaultGeminiModel   = "gemini-2.0-flash"

	healthSystemPrompt = "You are an expert project management consultant for the Broadband Policy " +
		"and Development team. Keep your response professional, data-driven, and actionable."

	scanSystemPrompt = "You are a project sentinel. Respond ONLY with a JSON array of objects " +
		`with "title" and "message" fields describing risks worth alerting on. Respond with [] when nothing stands out.`
)

// GeminiConfig holds configuration for the Gemini analyzer.
type GeminiConfig struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
}

// GeminiAnalyzer implements Analyzer using the Gemini generateContent API.
type GeminiAnalyzer struct {
	config GeminiConfig
}

// NewGeminiAnalyzer creates a Gemini analyzer with the given config.
func NewGeminiAnalyzer(cfg GeminiConfig) *GeminiAnalyzer {
	if cfg.Model == "" {
		cfg.Model = defaultGeminiModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultGeminiBaseURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &GeminiAnalyzer{config: cfg}
}

func (g *GeminiAnalyzer) Name() string { return "gemini" }

// taskDigest is the task projection sent to the model.
type taskDigest struct {
	Name     string `json:"name"`
	Status   string `json:"status"`
	Progress int    `json:"progress"`
	End      string `json:"end"`
}

type geminiRequest struct {
	Contents          []geminiContent `json:"contents"`
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (g *GeminiAnalyzer) AnalyzeHealth(ctx context.Context, tasks []model.Task) (string, error) {
	prompt := fmt.Sprintf(
		"Analyze the following BPD tasks and provide a concise status report.\n"+
			"Highlight:\n"+
			"1. Critical blockers (tasks with 0%% progress past start date).\n"+
			"2. Overdue tasks.\n"+
			"3. Suggested priorities for the next 2 weeks.\n\n"+
			"Task Data: %s", digestJSON(tasks),
	)
	return g.generate(ctx, healthSystemPrompt, prompt)
}

func (g *GeminiAnalyzer) Scan(ctx context.Context, tasks []model.Task) ([]Alert, error) {
	prompt := fmt.Sprintf("Scan these tasks for risks.\n\nTask Data: %s", digestJSON(tasks))
	text, err := g.generate(ctx, scanSystemPrompt, prompt)
	if err != nil {
		return nil, err
	}

	// Models wrap JSON in fences more often than not.
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")

	var alerts []Alert
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &alerts); err != nil {
		return nil, fmt.Errorf("gemini: parse alerts: %w", err)
	}
	return alerts, nil
}

func (g *GeminiAnalyzer) generate(ctx context.Context, system, prompt string) (string, error) {
	if g.config.APIKey == "" {
		return "", fmt.Errorf("gemini: missing api key")
	}

	reqBody := geminiRequest{
		Contents:          []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
		SystemInstruction: &geminiContent{Parts: []geminiPart{{Text: system}}},
	}
	data, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("gemini: marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", g.config.BaseURL, g.config.Model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("gemini: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.config.APIKey)

	resp, err := g.config.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("gemini: request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("gemini: read response: %w", err)
	}

	var parsed geminiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("gemini: decode response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("gemini: api error %d: %s", parsed.Error.Code, parsed.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("gemini: status %d", resp.StatusCode)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini: empty response")
	}

	var sb strings.Builder
	for _, part := range parsed.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	return sb.String(), nil
}

func digestJSON(tasks []model.Task) string {
	digests := make([]taskDigest, len(tasks))
	for i, t := range tasks {
		digests[i] = taskDigest{
			Name:     t.Name,
			Status:   string(t.Status),
			Progress: t.Progress,
			End:      t.PlannedEndDate.Format("2006-01-02"),
		}
	}
	data, _ := json.Marshal(digests)
	return string(data)
}
