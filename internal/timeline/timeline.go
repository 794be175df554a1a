package timeline

import (
	"fmt"
)

// Timeline is the complete beat list for one video run.
// Beat order in the file is the final segment order of the assembled video.
type Timeline struct {
	Version  string   `yaml:"version"`
	Viewport Viewport `yaml:"viewport,omitempty"`
	Beats    []Beat   `yaml:"beats"`
}

// Viewport is the recording resolution for the whole run.
type Viewport struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// Beat is one timed unit of the presentation: a UI-action script, a
// narration line and a wall-clock duration budget.
type Beat struct {
	ID        string   `yaml:"id"`
	Duration  float64  `yaml:"duration"` // Target duration in seconds
	Narration string   `yaml:"narration,omitempty"`
	RawActions []string `yaml:"actions"`

	// Actions is the parsed form of RawActions, populated at load time.
	// Order is semantically meaningful and executed strictly in sequence.
	Actions []Action `yaml:"-"`
}

// Validate checks structural invariants that must hold before any browser
// work starts: unique non-empty ids, positive durations, parseable actions.
func (t *Timeline) Validate() error {
	if len(t.Beats) == 0 {
		return fmt.Errorf("timeline contains no beats")
	}

	seen := make(map[string]bool, len(t.Beats))
	for i := range t.Beats {
		b := &t.Beats[i]
		if b.ID == "" {
			return fmt.Errorf("beat %d: empty id", i)
		}
		if seen[b.ID] {
			return fmt.Errorf("beat %q: duplicate id", b.ID)
		}
		seen[b.ID] = true

		if b.Duration <= 0 {
			return fmt.Errorf("beat %q: duration must be positive, got %.2f", b.ID, b.Duration)
		}
	}
	return nil
}

// TotalDuration is the sum of per-beat target durations. The assembled
// video is expected to land within a few seconds of this value.
func (t *Timeline) TotalDuration() float64 {
	total := 0.0
	for _, b := range t.Beats {
		total += b.Duration
	}
	return total
}

// BeatByID returns the beat with the given id, or nil.
func (t *Timeline) BeatByID(id string) *Beat {
	for i := range t.Beats {
		if t.Beats[i].ID == id {
			return &t.Beats[i]
		}
	}
	return nil
}
