package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/bpd-ops/central/model"
	"github.com/bpd-ops/central/sentinel"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Generate an AI project-health report",
	Long:  `Report sends the current task snapshot to the configured analyzer (Gemini, via GEMINI_API_KEY) and prints the returned status report. Without credentials it prints the standard fallback message.`,
	RunE:  runReport,
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan tasks for risks and raise alerts into the feed",
	RunE:  runScan,
}

func runReport(cmd *cobra.Command, args []string) error {
	eng, cleanup, err := openEngine(cmd.Context())
	if err != nil {
		return err
	}
	defer cleanup()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	svc := sentinel.NewService(resolveAnalyzer(), newLogger(cfg))
	fmt.Println(svc.AnalyzeHealth(cmd.Context(), eng.Snapshot().Tasks))
	return nil
}

func runScan(cmd *cobra.Command, args []string) error {
	eng, cleanup, err := openEngine(cmd.Context())
	if err != nil {
		return err
	}
	defer cleanup()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	svc := sentinel.NewService(resolveAnalyzer(), newLogger(cfg))

	alerts := svc.Scan(cmd.Context(), eng.Snapshot().Tasks)
	if len(alerts) == 0 {
		fmt.Println("No alerts.")
		return nil
	}
	for _, a := range alerts {
		eng.Notify(model.Notification{
			ID:        model.NewID(),
			Type:      model.NotifySentinel,
			Title:     a.Title,
			Message:   a.Message,
			Timestamp: time.Now().UTC(),
		})
		fmt.Printf("[%s] %s\n", a.Title, a.Message)
	}
	return nil
}

// resolveAnalyzer returns the Gemini analyzer when an API key is in the
// environment, nil otherwise. Nil means every call falls back.
func resolveAnalyzer() sentinel.Analyzer {
	key := os.Getenv("GEMINI_API_KEY")
	if key == "" {
		key = os.Getenv("API_KEY")
	}
	if key == "" {
		return nil
	}
	return sentinel.NewGeminiAnalyzer(sentinel.GeminiConfig{APIKey: key})
}
