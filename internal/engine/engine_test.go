package engine

import (
	"context"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/IanFrelinger/disaster-response-dashboard-sub008/internal/config"
	"github.com/IanFrelinger/disaster-response-dashboard-sub008/internal/narration"
	"github.com/IanFrelinger/disaster-response-dashboard-sub008/internal/overlay"
	"github.com/IanFrelinger/disaster-response-dashboard-sub008/internal/session"
	"github.com/IanFrelinger/disaster-response-dashboard-sub008/internal/timeline"
	"github.com/IanFrelinger/disaster-response-dashboard-sub008/internal/video"
)

// fakeEncoder records encode calls and writes placeholder output files.
type fakeEncoder struct {
	stills     []string
	normalized []string
}

func (f *fakeEncoder) EncodeStill(_ context.Context, imagePath, videoPath string, _ video.StillParams) error {
	f.stills = append(f.stills, imagePath)
	return os.WriteFile(videoPath, []byte("still"), 0644)
}

func (f *fakeEncoder) Normalize(_ context.Context, srcPath, dstPath string, _ video.StillParams) error {
	f.normalized = append(f.normalized, srcPath)
	return os.WriteFile(dstPath, []byte("norm"), 0644)
}

func testTimeline() *timeline.Timeline {
	return &timeline.Timeline{
		Version: "1",
		Beats: []timeline.Beat{
			{ID: "intro", Duration: 8, Narration: "Welcome to the dashboard."},
			{ID: "map", Duration: 12, Narration: "Live incidents appear here."},
			{ID: "outro", Duration: 6},
		},
	}
}

func testPipeline(t *testing.T) (*Pipeline, *fakeEncoder) {
	t.Helper()
	cfg := config.Default()
	cfg.WorkDir = t.TempDir()
	cfg.OutputVideo = filepath.Join(cfg.WorkDir, "final.mp4")

	p := NewPipeline(cfg, testTimeline())
	enc := &fakeEncoder{}
	p.enc = enc
	for _, d := range []string{"audio", "overlays", "normalized"} {
		if err := os.MkdirAll(filepath.Join(cfg.WorkDir, d), 0755); err != nil {
			t.Fatal(err)
		}
	}
	return p, enc
}

func TestPrepareSegmentsRoutesByCaptureStatus(t *testing.T) {
	p, enc := testPipeline(t)

	shot := filepath.Join(p.cfg.WorkDir, "map.png")
	if err := os.WriteFile(shot, []byte("png"), 0644); err != nil {
		t.Fatal(err)
	}

	outcomes := []BeatOutcome{
		{
			Beat: p.tl.Beats[0], BeatID: "intro",
			Capture: session.CaptureArtifact{
				BeatID: "intro", Status: session.StatusSuccess,
				VideoFilePath: "intro.webm", ActualDurationSeconds: 8.3,
			},
		},
		{
			Beat: p.tl.Beats[1], BeatID: "map",
			Capture: session.CaptureArtifact{
				BeatID: "map", Status: session.StatusFallbackScreenshot,
				ScreenshotPath: shot,
			},
		},
		{
			Beat: p.tl.Beats[2], BeatID: "outro",
			Capture: session.CaptureArtifact{
				BeatID: "outro", Status: session.StatusFailed, Error: "browser crashed",
			},
		},
	}

	segments, err := p.prepareSegments(context.Background(), outcomes)
	if err != nil {
		t.Fatalf("prepareSegments: %v", err)
	}

	if len(segments) != 2 {
		t.Fatalf("got %d segments, want 2 (failed beat excluded)", len(segments))
	}
	if segments[0].BeatID != "intro" || segments[1].BeatID != "map" {
		t.Fatalf("segment order %s, %s breaks timeline order", segments[0].BeatID, segments[1].BeatID)
	}
	if segments[0].Duration != 8.3 {
		t.Fatalf("success segment duration = %.1f, want measured 8.3", segments[0].Duration)
	}
	if segments[1].Duration != 12 {
		t.Fatalf("fallback segment duration = %.1f, want target 12", segments[1].Duration)
	}
	if len(enc.normalized) != 1 || enc.normalized[0] != "intro.webm" {
		t.Fatalf("normalized = %v", enc.normalized)
	}
	if len(enc.stills) != 1 || enc.stills[0] != shot {
		t.Fatalf("stills = %v", enc.stills)
	}
}

func TestPrepareSegmentsAttachesNarrationAndOverlays(t *testing.T) {
	p, _ := testPipeline(t)

	audio := filepath.Join(p.cfg.WorkDir, "audio", "intro.mp3")
	if err := os.WriteFile(audio, []byte("mp3"), 0644); err != nil {
		t.Fatal(err)
	}

	act, err := timeline.ParseAction("overlay(title:Disaster Response,in,500)")
	if err != nil {
		t.Fatal(err)
	}
	desc, err := overlay.Generate(act, 1920, 1080)
	if err != nil {
		t.Fatal(err)
	}

	outcomes := []BeatOutcome{{
		Beat: p.tl.Beats[0], BeatID: "intro",
		Capture: session.CaptureArtifact{
			BeatID: "intro", Status: session.StatusSuccess,
			VideoFilePath: "intro.webm", ActualDurationSeconds: 8,
			Overlays: []*overlay.Descriptor{desc},
		},
		Narration: narration.Artifact{
			BeatID: "intro", Status: narration.StatusSuccess, AudioFilePath: audio,
		},
	}}

	segments, err := p.prepareSegments(context.Background(), outcomes)
	if err != nil {
		t.Fatalf("prepareSegments: %v", err)
	}
	seg := segments[0]
	if seg.AudioPath != audio {
		t.Fatalf("audio path = %q, want %q", seg.AudioPath, audio)
	}
	if len(seg.Overlays) != 1 {
		t.Fatalf("got %d overlay clips, want 1", len(seg.Overlays))
	}
	clip := seg.Overlays[0]
	if clip.Start != 0.5 {
		t.Fatalf("clip start = %.2f, want 0.5", clip.Start)
	}
	if clip.X != desc.X || clip.Y != desc.Y || clip.Width != desc.Width {
		t.Fatal("clip geometry does not match descriptor")
	}
	if _, err := os.Stat(clip.ImagePath); err != nil {
		t.Fatalf("overlay card not rendered: %v", err)
	}
}

func TestBuildEvidenceMapsOutcomes(t *testing.T) {
	p, _ := testPipeline(t)

	outcomes := []BeatOutcome{
		{
			Beat: p.tl.Beats[0], BeatID: "intro",
			Capture:   session.CaptureArtifact{Status: session.StatusSuccess, VideoFilePath: "intro.webm", ActualDurationSeconds: 8.1},
			Narration: narration.Artifact{Status: narration.StatusSuccess, AudioFilePath: "x.mp3"},
		},
		{
			Beat:    p.tl.Beats[1], BeatID: "map",
			Capture: session.CaptureArtifact{Status: session.StatusFallbackScreenshot, ScreenshotPath: "m.png"},
		},
		{
			Beat:    p.tl.Beats[2], BeatID: "outro",
			Capture: session.CaptureArtifact{Status: session.StatusFailed},
		},
	}

	ev := p.buildEvidence(outcomes, true, 24.5)
	if !ev.FinalVideoExists || ev.FinalDuration != 24.5 {
		t.Fatal("final video facts not carried over")
	}
	// 8 + 12 + 6 minus two 0.5s crossfades.
	if ev.ExpectedDuration != 25 {
		t.Fatalf("expected duration = %.1f, want 25", ev.ExpectedDuration)
	}

	if !ev.Beats[0].CaptureUsable || !ev.Beats[0].NarrationUsable || !ev.Beats[0].HasNarrationText {
		t.Fatalf("intro review wrong: %+v", ev.Beats[0])
	}
	if !ev.Beats[1].CaptureUsable || ev.Beats[1].CaptureFailed {
		t.Fatal("screenshot fallback must count as usable, not failed")
	}
	if ev.Beats[2].CaptureUsable || !ev.Beats[2].CaptureFailed {
		t.Fatal("failed capture misclassified")
	}
	if ev.Beats[2].HasNarrationText {
		t.Fatal("outro has no narration text")
	}
}

func TestSynthesizeMissingCachesAcrossAttempts(t *testing.T) {
	p, _ := testPipeline(t)

	// Pre-seed the cache as a previous attempt would have left it.
	audio := filepath.Join(p.cfg.WorkDir, "audio", "intro.mp3")
	if err := os.WriteFile(audio, []byte("mp3"), 0644); err != nil {
		t.Fatal(err)
	}
	p.narrCache["intro"] = narration.Artifact{
		BeatID: "intro", Status: narration.StatusSuccess,
		AudioFilePath: audio, DurationSeconds: 3,
	}

	// No API key is configured, so anything not cached comes back failed
	// (or skipped when the beat has no narration text).
	arts := p.synthesizeMissing(context.Background())
	if len(arts) != 3 {
		t.Fatalf("got %d artifacts, want one per beat", len(arts))
	}
	if arts[0].Status != narration.StatusSuccess || arts[0].AudioFilePath != audio {
		t.Fatalf("cached artifact not reused: %+v", arts[0])
	}
	if arts[1].Status != narration.StatusFailed {
		t.Fatalf("map artifact = %s, want failed without an API key", arts[1].Status)
	}
	if arts[2].Status != narration.StatusSkipped {
		t.Fatalf("outro artifact = %s, want skipped (no text)", arts[2].Status)
	}
}

func TestRunSummaryWrite(t *testing.T) {
	p, _ := testPipeline(t)
	s := newRunSummary(p.cfg, p.tl)
	if s.RunID == "" {
		t.Fatal("run id not assigned")
	}
	if s.BeatCount != 3 || s.BudgetSeconds != 26 {
		t.Fatalf("summary header wrong: %+v", s)
	}

	path := filepath.Join(p.cfg.WorkDir, "run_summary.json")
	if err := s.Write(path); err != nil {
		t.Fatalf("Write: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) == 0 {
		t.Fatal("summary file empty")
	}
}

func TestPrepareSegmentsDemotesBlankScreenshot(t *testing.T) {
	p, enc := testPipeline(t)

	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	shot := filepath.Join(p.cfg.WorkDir, "blank.png")
	f, err := os.Create(shot)
	if err != nil {
		t.Fatal(err)
	}
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
	f.Close()

	outcomes := []BeatOutcome{{
		Beat: p.tl.Beats[0], BeatID: "intro",
		Capture: session.CaptureArtifact{
			BeatID: "intro", Status: session.StatusFallbackScreenshot,
			ScreenshotPath: shot,
		},
	}}

	segments, err := p.prepareSegments(context.Background(), outcomes)
	if err != nil {
		t.Fatalf("prepareSegments: %v", err)
	}
	if len(segments) != 0 {
		t.Fatalf("blank screenshot still produced %d segment(s)", len(segments))
	}
	if len(enc.stills) != 0 {
		t.Fatalf("blank screenshot was encoded: %v", enc.stills)
	}
	if outcomes[0].Capture.Status != session.StatusFailed {
		t.Fatalf("capture not demoted: %s", outcomes[0].Capture.Status)
	}
}
