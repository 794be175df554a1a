package engine

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/IanFrelinger/disaster-response-dashboard-sub008/internal/config"
	"github.com/IanFrelinger/disaster-response-dashboard-sub008/internal/critic"
	"github.com/IanFrelinger/disaster-response-dashboard-sub008/internal/system"
	"github.com/IanFrelinger/disaster-response-dashboard-sub008/internal/timeline"
)

// StageTiming is one measured pipeline stage for the performance report.
type StageTiming struct {
	Name    string  `json:"name"`
	Seconds float64 `json:"seconds"`
}

// RunSummary is the machine-readable record of one pipeline run. It is
// written to the work directory on every exit path so a failed run still
// leaves enough evidence to diagnose.
type RunSummary struct {
	RunID      string    `json:"run_id"`
	Version    string    `json:"version,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	TimelinePath     string  `json:"timeline_path"`
	BeatCount        int     `json:"beat_count"`
	BudgetSeconds    float64 `json:"budget_seconds"`
	Resolution       string  `json:"resolution"`
	FPS              int     `json:"fps"`
	Encoder          string  `json:"encoder"`
	NarrationEnabled bool    `json:"narration_enabled"`

	Attempts             int           `json:"attempts"`
	Beats                []BeatOutcome `json:"beats"`
	Quality              critic.Report `json:"quality"`
	FinalVideo           string        `json:"final_video,omitempty"`
	FinalDurationSeconds float64       `json:"final_duration_seconds,omitempty"`

	Stages []StageTiming   `json:"stages,omitempty"`
	Host   system.Snapshot `json:"host"`
}

func newRunSummary(cfg *config.Config, tl *timeline.Timeline) *RunSummary {
	return &RunSummary{
		RunID:            uuid.NewString(),
		Version:          cfg.BuildVersion,
		StartedAt:        time.Now(),
		TimelinePath:     cfg.TimelinePath,
		BeatCount:        len(tl.Beats),
		BudgetSeconds:    tl.TotalDuration(),
		Resolution:       fmt.Sprintf("%dx%d", cfg.Width, cfg.Height),
		FPS:              cfg.FPS,
		Encoder:          cfg.VideoEncoder,
		NarrationEnabled: cfg.TTS.APIKey != "",
		Host:             system.TakeSnapshot(),
	}
}

// Write marshals the summary with indentation so it stays diffable
// between runs.
func (s *RunSummary) Write(path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// writePerformanceReport prints stage timings to the console and appends
// them to pipeline.log in the work directory.
func (p *Pipeline) writePerformanceReport(s *RunSummary) {
	elapsed := s.FinishedAt.Sub(s.StartedAt)

	var lines []string
	lines = append(lines, fmt.Sprintf("run %s: %d beats, %d attempt(s), %.1fs elapsed",
		s.RunID, s.BeatCount, s.Attempts, elapsed.Seconds()))
	for _, st := range s.Stages {
		lines = append(lines, fmt.Sprintf("  %-14s %8.2fs", st.Name, st.Seconds))
	}
	lines = append(lines, fmt.Sprintf("  score %.1f, passed=%v", s.Quality.OverallScore, s.Quality.Passed))

	log.Printf("[*] performance report:")
	for _, l := range lines {
		log.Printf("[*] %s", l)
	}

	logPath := filepath.Join(p.cfg.WorkDir, "pipeline.log")
	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.Printf("[!] could not append performance report: %v", err)
		return
	}
	defer f.Close()

	fmt.Fprintf(f, "[%s]\n", s.FinishedAt.Format(time.RFC3339))
	for _, l := range lines {
		fmt.Fprintln(f, l)
	}
}
