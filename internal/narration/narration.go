package narration

// Status is the per-beat narration outcome. Audio generation fails
// independently of video capture; the two are reconciled only at assembly.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped" // No narration text on the beat
)

// Artifact is the result of synthesizing one beat's narration.
type Artifact struct {
	BeatID          string  `json:"beat_id"`
	AudioFilePath   string  `json:"audio_file,omitempty"`
	DurationSeconds float64 `json:"duration_seconds,omitempty"`
	Status          Status  `json:"status"`
	Error           string  `json:"error,omitempty"`
}

// Usable reports whether the artifact carries audio the assembler can mux.
func (a Artifact) Usable() bool {
	return a.Status == StatusSuccess && a.AudioFilePath != ""
}
