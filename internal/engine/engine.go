package engine

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/IanFrelinger/disaster-response-dashboard-sub008/internal/config"
	"github.com/IanFrelinger/disaster-response-dashboard-sub008/internal/critic"
	"github.com/IanFrelinger/disaster-response-dashboard-sub008/internal/narration"
	"github.com/IanFrelinger/disaster-response-dashboard-sub008/internal/overlay"
	"github.com/IanFrelinger/disaster-response-dashboard-sub008/internal/session"
	"github.com/IanFrelinger/disaster-response-dashboard-sub008/internal/system"
	"github.com/IanFrelinger/disaster-response-dashboard-sub008/internal/timeline"
	"github.com/IanFrelinger/disaster-response-dashboard-sub008/internal/video"
)

// BeatOutcome pairs everything one beat produced across the pipeline.
type BeatOutcome struct {
	Beat      timeline.Beat           `json:"-"`
	BeatID    string                  `json:"beat_id"`
	Capture   session.CaptureArtifact `json:"capture"`
	Narration narration.Artifact      `json:"narration"`
}

// Pipeline drives one promo-video production run end to end: capture
// every beat, synthesize narration, assemble, and keep regenerating
// until the quality gate passes or the attempt budget runs out.
type Pipeline struct {
	cfg *config.Config
	tl  *timeline.Timeline

	tts      *narration.Client
	enc      video.Encoder
	asm      *video.Assembler
	renderer *overlay.Renderer

	// Narration is a pure function of beat text, so usable artifacts are
	// reused across regeneration attempts instead of re-billing the API.
	narrCache map[string]narration.Artifact

	// captureBeats and probeDuration are swapped in tests.
	captureBeats  func(ctx context.Context) ([]session.CaptureArtifact, error)
	probeDuration func(path string) (float64, error)

	lastOutcomes []BeatOutcome

	stageMu sync.Mutex // narration records its stage from its own goroutine
	stages  []StageTiming
}

func NewPipeline(cfg *config.Config, tl *timeline.Timeline) *Pipeline {
	p := &Pipeline{
		cfg: cfg,
		tl:  tl,
		tts: narration.NewClient(cfg.TTS),
		enc: &video.FFmpegEncoder{EncoderName: cfg.VideoEncoder, Quality: cfg.Quality},
		asm: &video.Assembler{
			Width:        cfg.Width,
			Height:       cfg.Height,
			FPS:          cfg.FPS,
			EncoderName:  cfg.VideoEncoder,
			Quality:      cfg.Quality,
			FadeDuration: cfg.FadeDuration,
		},
		renderer:      overlay.NewRenderer(),
		narrCache:     make(map[string]narration.Artifact),
		probeDuration: system.GetMediaDuration,
	}
	p.captureBeats = p.captureAll
	return p
}

// Run executes the full pipeline under the global circuit breaker and
// writes a machine-readable run summary next to the artifacts whatever
// the outcome.
func (p *Pipeline) Run(ctx context.Context) (*RunSummary, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.GlobalTimeout)
	defer cancel()

	for _, d := range []string{
		filepath.Join(p.cfg.WorkDir, "audio"),
		filepath.Join(p.cfg.WorkDir, "overlays"),
		filepath.Join(p.cfg.WorkDir, "normalized"),
	} {
		if err := os.MkdirAll(d, 0755); err != nil {
			return nil, fmt.Errorf("create work dir: %w", err)
		}
	}

	summary := newRunSummary(p.cfg, p.tl)
	gate := critic.New(p.cfg.QualityThreshold)

	report, attempts, gateErr := critic.RunGate(ctx, gate, p.cfg.MaxAttempts, p.attempt)

	summary.FinishedAt = time.Now()
	summary.Attempts = attempts
	summary.Quality = report
	summary.Beats = p.lastOutcomes
	summary.Stages = p.stages
	if report.Passed {
		summary.FinalVideo = p.cfg.OutputVideo
		if dur, err := p.probeDuration(p.cfg.OutputVideo); err == nil {
			summary.FinalDurationSeconds = dur
		}
	}

	if err := summary.Write(filepath.Join(p.cfg.WorkDir, "run_summary.json")); err != nil {
		log.Printf("[!] could not write run summary: %v", err)
	}
	if p.cfg.ShowStats {
		p.writePerformanceReport(summary)
	}

	return summary, gateErr
}

// attempt is one full produce cycle: capture, narrate, assemble, measure.
func (p *Pipeline) attempt(ctx context.Context, n int) (critic.Evidence, error) {
	log.Printf("[*] attempt %d/%d: %d beats, %.0fs budget",
		n, p.cfg.MaxAttempts, len(p.tl.Beats), p.tl.TotalDuration())

	// Narration runs concurrently with the capture pass; the two only
	// meet again at segment preparation.
	narrDone := make(chan []narration.Artifact, 1)
	go func() { narrDone <- p.synthesizeMissing(ctx) }()

	capStart := time.Now()
	captures, err := p.captureBeats(ctx)
	p.recordStage("capture", capStart)
	if err != nil {
		<-narrDone
		return critic.Evidence{}, fmt.Errorf("capture pass: %w", err)
	}

	narrArts := <-narrDone

	outcomes := make([]BeatOutcome, len(p.tl.Beats))
	for i, beat := range p.tl.Beats {
		outcomes[i] = BeatOutcome{
			Beat:      beat,
			BeatID:    beat.ID,
			Capture:   captures[i],
			Narration: narrArts[i],
		}
	}
	p.lastOutcomes = outcomes

	// When the global timeout already fired, finish the attempt on a
	// bounded grace context so beats captured before the deadline still
	// reach the final encode.
	actx := ctx
	if ctx.Err() != nil {
		log.Printf("[!] assembling best-effort output from the beats captured in time")
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(context.WithoutCancel(ctx), 2*p.cfg.VideoTimeout)
		defer cancel()
	}

	prepStart := time.Now()
	segments, err := p.prepareSegments(actx, outcomes)
	p.recordStage("segment_prep", prepStart)
	if err != nil {
		return critic.Evidence{}, err
	}

	finalExists := false
	var finalDur float64
	if len(segments) > 0 {
		asmStart := time.Now()
		err = p.asm.Assemble(actx, segments, p.cfg.OutputVideo)
		p.recordStage("assembly", asmStart)
		if err != nil {
			return critic.Evidence{}, fmt.Errorf("assemble: %w", err)
		}
		finalExists = true
		if dur, perr := p.probeDuration(p.cfg.OutputVideo); perr == nil {
			finalDur = dur
		}
	}

	return p.buildEvidence(outcomes, finalExists, finalDur), nil
}

// captureAll records every beat in timeline order with one browser
// process. A fresh browser per attempt keeps regeneration attempts
// independent of each other.
func (p *Pipeline) captureAll(ctx context.Context) ([]session.CaptureArtifact, error) {
	mgr, err := session.NewManager(p.cfg, p.cfg.WorkDir)
	if err != nil {
		return nil, err
	}
	defer mgr.Close()

	arts := make([]session.CaptureArtifact, len(p.tl.Beats))
	for i, beat := range p.tl.Beats {
		if err := ctx.Err(); err != nil {
			// Out of time: keep what was captured so the attempt can still
			// assemble a partial video, and mark the rest failed.
			log.Printf("[!] run timeout reached at beat %d/%d, capturing stops", i+1, len(p.tl.Beats))
			for j := i; j < len(p.tl.Beats); j++ {
				arts[j] = session.CaptureArtifact{
					BeatID: p.tl.Beats[j].ID,
					Status: session.StatusFailed,
					Error:  "run timeout before capture",
				}
			}
			break
		}
		log.Printf("[>] beat %d/%d: %s (%.1fs)", i+1, len(p.tl.Beats), beat.ID, beat.Duration)
		arts[i] = mgr.RunBeat(ctx, beat)
		log.Printf("[>] beat %s: %s", beat.ID, arts[i].Status)
	}
	return arts, nil
}

// synthesizeMissing fills the narration cache for any beat that does not
// already have a usable artifact, then returns artifacts in beat order.
func (p *Pipeline) synthesizeMissing(ctx context.Context) []narration.Artifact {
	var pending []timeline.Beat
	for _, beat := range p.tl.Beats {
		cached, ok := p.narrCache[beat.ID]
		if ok && (cached.Usable() || cached.Status == narration.StatusSkipped) {
			continue
		}
		pending = append(pending, beat)
	}

	if len(pending) > 0 {
		start := time.Now()
		arts, err := p.tts.SynthesizeAll(ctx, pending, filepath.Join(p.cfg.WorkDir, "audio"))
		p.recordStage("narration", start)
		if err != nil {
			log.Printf("[!] narration pass aborted: %v", err)
		}
		for _, a := range arts {
			p.narrCache[a.BeatID] = a
		}
	}

	out := make([]narration.Artifact, len(p.tl.Beats))
	for i, beat := range p.tl.Beats {
		out[i] = p.narrCache[beat.ID]
	}
	return out
}

// prepareSegments turns beat outcomes into assembler segments: successful
// captures are normalized, screenshot fallbacks become exact-duration
// stills, and failed beats are dropped with a logged gap.
func (p *Pipeline) prepareSegments(ctx context.Context, outcomes []BeatOutcome) ([]video.Segment, error) {
	var segments []video.Segment
	for i := range outcomes {
		oc := &outcomes[i]
		params := video.StillParams{
			Width:    p.cfg.Width,
			Height:   p.cfg.Height,
			FPS:      p.cfg.FPS,
			Duration: oc.Beat.Duration,
		}
		dst := filepath.Join(p.cfg.WorkDir, "normalized", oc.BeatID+".mp4")

		var dur float64
		switch oc.Capture.Status {
		case session.StatusSuccess:
			if err := p.enc.Normalize(ctx, oc.Capture.VideoFilePath, dst, params); err != nil {
				return nil, fmt.Errorf("normalize beat %s: %w", oc.BeatID, err)
			}
			dur = oc.Capture.ActualDurationSeconds
			if dur <= 0 {
				dur = oc.Beat.Duration
			}
		case session.StatusFallbackScreenshot:
			// A still of a page that never painted pads the video with
			// dead air; demote it to a failed capture instead.
			if a, err := critic.AnalyzeStill(oc.Capture.ScreenshotPath); err == nil && a.Blank() {
				log.Printf("[-] beat %s: fallback screenshot is blank (stddev %.1f), dropping", oc.BeatID, a.StdDev)
				oc.Capture.Status = session.StatusFailed
				oc.Capture.Error = "fallback screenshot is blank"
				continue
			}
			if err := p.enc.EncodeStill(ctx, oc.Capture.ScreenshotPath, dst, params); err != nil {
				return nil, fmt.Errorf("encode still for beat %s: %w", oc.BeatID, err)
			}
			dur = oc.Beat.Duration
		default:
			log.Printf("[-] beat %s excluded from assembly: %s", oc.BeatID, oc.Capture.Error)
			continue
		}

		seg := video.Segment{
			BeatID:   oc.BeatID,
			Path:     dst,
			Duration: dur,
		}
		if oc.Narration.Usable() {
			seg.AudioPath = oc.Narration.AudioFilePath
		}

		clips, err := p.renderOverlays(*oc)
		if err != nil {
			return nil, err
		}
		seg.Overlays = clips

		segments = append(segments, seg)
	}
	return segments, nil
}

// renderOverlays rasterizes a beat's overlay descriptors into card images
// and maps them onto assembler clips.
func (p *Pipeline) renderOverlays(oc BeatOutcome) ([]video.OverlayClip, error) {
	clips := make([]video.OverlayClip, 0, len(oc.Capture.Overlays))
	for i, d := range oc.Capture.Overlays {
		path := filepath.Join(p.cfg.WorkDir, "overlays", fmt.Sprintf("%s_%d.png", oc.BeatID, i))
		if err := p.renderer.RenderToFile(d, path); err != nil {
			return nil, fmt.Errorf("render overlay %d of beat %s: %w", i, oc.BeatID, err)
		}
		clips = append(clips, overlayClip(d, path))
	}
	return clips, nil
}

// overlayClip translates a resolved descriptor into render metadata for
// the assembler. End stays zero: an overlay without an explicit exit
// holds until its segment ends.
func overlayClip(d *overlay.Descriptor, imagePath string) video.OverlayClip {
	return video.OverlayClip{
		ImagePath: imagePath,
		X:         d.X,
		Y:         d.Y,
		Width:     d.Width,
		Height:    d.Height,
		Start:     float64(d.StartOffsetMs) / 1000,
		Animation: string(d.Animation.Type),
		AnimSecs:  float64(d.Animation.DurationMs) / 1000,
	}
}

// buildEvidence maps one attempt's outcomes into the critic's input.
// Expected duration is the timeline budget minus the crossfade overlap
// the assembler consumes at every boundary.
func (p *Pipeline) buildEvidence(outcomes []BeatOutcome, finalExists bool, finalDur float64) critic.Evidence {
	ev := critic.Evidence{
		FinalVideoExists: finalExists,
		FinalDuration:    finalDur,
		ExpectedDuration: p.expectedDuration(),
	}
	for _, oc := range outcomes {
		ev.Beats = append(ev.Beats, critic.BeatReview{
			ID:               oc.BeatID,
			TargetDuration:   oc.Beat.Duration,
			ActualDuration:   oc.Capture.ActualDurationSeconds,
			HasNarrationText: oc.Beat.Narration != "",
			CaptureUsable:    oc.Capture.Usable(),
			CaptureFailed:    oc.Capture.Status == session.StatusFailed,
			NarrationUsable:  oc.Narration.Usable(),
		})
	}
	return ev
}

func (p *Pipeline) expectedDuration() float64 {
	total := p.tl.TotalDuration()
	if n := len(p.tl.Beats); n > 1 {
		total -= p.cfg.FadeDuration * float64(n-1)
	}
	return total
}

func (p *Pipeline) recordStage(name string, start time.Time) {
	p.stageMu.Lock()
	defer p.stageMu.Unlock()
	p.stages = append(p.stages, StageTiming{
		Name:    name,
		Seconds: time.Since(start).Seconds(),
	})
}
