package critic

import (
	"fmt"
	"math"
)

// BeatReview is the per-beat evidence the gate scores. The engine maps
// its artifacts into this shape so the critic stays free of pipeline
// dependencies and is testable in isolation.
type BeatReview struct {
	ID              string
	TargetDuration  float64
	ActualDuration  float64
	HasNarrationText bool
	CaptureUsable   bool // Success or screenshot fallback
	CaptureFailed   bool
	NarrationUsable bool
}

// Evidence is everything the gate sees about one finished attempt.
type Evidence struct {
	Beats            []BeatReview
	FinalDuration    float64
	ExpectedDuration float64
	FinalVideoExists bool
}

// Report is the gate's verdict: weighted category scores, an overall
// score, and blocking issues that fail the attempt regardless of score.
type Report struct {
	OverallScore   float64            `json:"overall_score"`
	CategoryScores map[string]float64 `json:"category_scores"`
	BlockingIssues []string           `json:"blocking_issues,omitempty"`
	Passed         bool               `json:"passed"`
}

// Category weights. Coverage dominates: a video missing beats is worse
// than one that drifts a few seconds.
const (
	weightCoverage  = 0.5
	weightDuration  = 0.3
	weightNarration = 0.2

	// Aggregate drift inside this window scores full marks; real actions
	// rarely land exactly on budget.
	durationToleranceSecs = 3.0
)

// Critic scores finished attempts against a pass threshold.
type Critic struct {
	Threshold float64
}

func New(threshold float64) *Critic {
	return &Critic{Threshold: threshold}
}

// Review computes the quality report for one attempt.
func (c *Critic) Review(ev Evidence) Report {
	r := Report{CategoryScores: make(map[string]float64)}

	coverage := c.scoreCoverage(ev, &r)
	duration := c.scoreDuration(ev, &r)
	narration := c.scoreNarration(ev)

	r.CategoryScores["beat_coverage"] = coverage
	r.CategoryScores["duration_match"] = duration
	r.CategoryScores["narration_presence"] = narration

	r.OverallScore = coverage*weightCoverage + duration*weightDuration + narration*weightNarration
	r.Passed = r.OverallScore >= c.Threshold && len(r.BlockingIssues) == 0
	return r
}

func (c *Critic) scoreCoverage(ev Evidence, r *Report) float64 {
	if len(ev.Beats) == 0 {
		r.BlockingIssues = append(r.BlockingIssues, "no beats reviewed")
		return 0
	}
	if !ev.FinalVideoExists {
		r.BlockingIssues = append(r.BlockingIssues, "final video missing")
	}

	usable := 0
	for _, b := range ev.Beats {
		if b.CaptureUsable {
			usable++
		}
		if b.CaptureFailed {
			r.BlockingIssues = append(r.BlockingIssues, fmt.Sprintf("beat %s capture failed", b.ID))
		}
	}
	if usable == 0 {
		r.BlockingIssues = append(r.BlockingIssues, "no usable captures")
	}
	return float64(usable) / float64(len(ev.Beats)) * 100
}

func (c *Critic) scoreDuration(ev Evidence, r *Report) float64 {
	if ev.ExpectedDuration <= 0 {
		return 0
	}
	drift := math.Abs(ev.FinalDuration - ev.ExpectedDuration)
	if drift <= durationToleranceSecs {
		return 100
	}

	// Past the tolerance window the score decays linearly, hitting zero
	// at 25% total drift.
	excess := drift - durationToleranceSecs
	limit := ev.ExpectedDuration * 0.25
	if limit <= 0 || excess >= limit {
		return 0
	}
	return (1 - excess/limit) * 100
}

func (c *Critic) scoreNarration(ev Evidence) float64 {
	narrated, delivered := 0, 0
	for _, b := range ev.Beats {
		if !b.HasNarrationText {
			continue
		}
		narrated++
		if b.NarrationUsable {
			delivered++
		}
	}
	if narrated == 0 {
		// A silent timeline is not penalized for being silent.
		return 100
	}
	return float64(delivered) / float64(narrated) * 100
}
