package session

import (
	"github.com/IanFrelinger/disaster-response-dashboard-sub008/internal/overlay"
)

// CaptureStatus is the tagged outcome of one beat's capture. Every
// consumer handles all three variants explicitly; there is no nullable
// "maybe it worked" state.
type CaptureStatus string

const (
	StatusSuccess            CaptureStatus = "success"
	StatusFailed             CaptureStatus = "failed"
	StatusFallbackScreenshot CaptureStatus = "fallback_screenshot"
)

// ActionError records a single contained action failure with enough
// context to reproduce it.
type ActionError struct {
	Index  int    `json:"index"`
	Action string `json:"action"`
	Error  string `json:"error"`
}

// CaptureArtifact is the output of running one beat through the capture
// session.
type CaptureArtifact struct {
	BeatID                string                `json:"beat_id"`
	VideoFilePath         string                `json:"video_file,omitempty"`
	ScreenshotPath        string                `json:"screenshot_file,omitempty"`
	ActualDurationSeconds float64               `json:"actual_duration_seconds,omitempty"`
	Status                CaptureStatus         `json:"status"`
	Error                 string                `json:"error,omitempty"`
	ActionErrors          []ActionError         `json:"action_errors,omitempty"`
	Overlays              []*overlay.Descriptor `json:"overlays,omitempty"`
}

// Usable reports whether assembly can build a segment from this artifact.
func (a CaptureArtifact) Usable() bool {
	switch a.Status {
	case StatusSuccess:
		return a.VideoFilePath != ""
	case StatusFallbackScreenshot:
		return a.ScreenshotPath != ""
	default:
		return false
	}
}
