package session

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/IanFrelinger/disaster-response-dashboard-sub008/internal/config"
	"github.com/IanFrelinger/disaster-response-dashboard-sub008/internal/system"
	"github.com/IanFrelinger/disaster-response-dashboard-sub008/internal/timeline"
)

// Manager owns the browser for the duration of a run. One browser process
// is shared across all beats; each beat gets its own recording context
// because the video container only flushes when its page closes. The
// manager carries the last page URL forward so a beat without its own
// navigate starts where the previous beat ended.
type Manager struct {
	cfg    *config.Config
	interp *Interpreter

	pw      *playwright.Playwright
	browser playwright.Browser

	videoDir string
	shotDir  string
	lastURL  string

	// probeDuration measures a finalized segment; swapped in tests.
	probeDuration func(path string) (float64, error)
}

// NewManager launches the browser. The caller must Close the manager on
// every exit path so no browser process outlives the run.
func NewManager(cfg *config.Config, workDir string) (*Manager, error) {
	videoDir := filepath.Join(workDir, "segments")
	shotDir := filepath.Join(workDir, "screenshots")
	for _, d := range []string{videoDir, shotDir} {
		if err := os.MkdirAll(d, 0755); err != nil {
			return nil, err
		}
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("start playwright: %w", err)
	}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(cfg.Headless),
	})
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	return &Manager{
		cfg: cfg,
		interp: &Interpreter{
			BaseURL:     cfg.BaseURL,
			ViewportW:   cfg.Width,
			ViewportH:   cfg.Height,
			StepTimeout: cfg.StepTimeout,
		},
		pw:            pw,
		browser:       browser,
		videoDir:      videoDir,
		shotDir:       shotDir,
		probeDuration: system.GetMediaDuration,
	}, nil
}

// Close shuts the browser down. Idempotent enough to defer unconditionally.
func (m *Manager) Close() error {
	var firstErr error
	if m.browser != nil {
		if err := m.browser.Close(); err != nil {
			firstErr = err
		}
		m.browser = nil
	}
	if m.pw != nil {
		if err := m.pw.Stop(); err != nil && firstErr == nil {
			firstErr = err
		}
		m.pw = nil
	}
	return firstErr
}

// RunBeat executes one beat inside its timeout envelope and returns a
// capture artifact that is never silently empty: success carries a video,
// finalization failure degrades to a screenshot, and anything worse is
// marked failed with the error attached.
func (m *Manager) RunBeat(ctx context.Context, beat timeline.Beat) CaptureArtifact {
	art := CaptureArtifact{BeatID: beat.ID, Status: StatusFailed}

	// Whole-beat hard ceiling, the last-resort circuit breaker above the
	// per-step and per-video tiers.
	beatCtx, cancel := context.WithTimeout(ctx, m.cfg.BeatTimeout)
	defer cancel()

	bctx, page, err := m.newRecordingPage()
	if err != nil {
		art.Error = fmt.Sprintf("open recording page: %v", err)
		return art
	}

	finalized := false
	defer func() {
		// Close order is page then context: most recording backends only
		// flush the container file once the page is gone.
		if !finalized {
			_ = page.Close()
			_ = bctx.Close()
		}
	}()

	drv := &pageDriver{page: page}

	// Beats chain: beat N+1 starts on beat N's final page unless it
	// navigates somewhere itself.
	if m.lastURL != "" && !startsWithNavigate(beat) {
		if err := drv.Navigate(m.lastURL, m.cfg.StepTimeout); err != nil {
			log.Printf("[capture] beat %s: could not restore page state (%s): %v", beat.ID, m.lastURL, err)
		}
	}

	res, runErr := m.interp.Run(beatCtx, drv, beat)
	art.Overlays = res.Overlays
	art.ActionErrors = res.ActionErrors
	if runErr != nil {
		art.Error = fmt.Sprintf("beat interrupted: %v", runErr)
	}
	m.lastURL = page.URL()

	// Take the fallback still before finalization: once the page is
	// closed there is nothing left to screenshot.
	shotPath := filepath.Join(m.shotDir, beat.ID+".png")
	if _, err := page.Screenshot(playwright.PageScreenshotOptions{
		Path:    playwright.String(shotPath),
		Timeout: playwright.Float(float64(m.cfg.StepTimeout.Milliseconds())),
	}); err == nil {
		art.ScreenshotPath = shotPath
	} else {
		log.Printf("[capture] beat %s: screenshot failed: %v", beat.ID, err)
	}

	videoPath, vErr := m.finalizeVideo(page, bctx, beat.ID)
	finalized = true

	art.Status = classifyCapture(runErr, vErr, art.ScreenshotPath != "")
	switch {
	case art.Status == StatusSuccess:
		art.VideoFilePath = videoPath
		if dur, err := m.probeDuration(videoPath); err == nil {
			art.ActualDurationSeconds = dur
		}
	case runErr != nil:
		log.Printf("[capture] beat %s: interrupted mid-beat, demoted to %s", beat.ID, art.Status)
	case art.Status == StatusFallbackScreenshot:
		log.Printf("[capture] beat %s: video finalization failed (%v), falling back to screenshot", beat.ID, vErr)
		art.Error = vErr.Error()
	default:
		art.Error = vErr.Error()
	}

	return art
}

// classifyCapture decides a beat's artifact status. An interrupted beat
// is never Success even when its partial video finalized cleanly: the
// recording does not cover the beat, and the screenshot fallback restores
// the full target duration at assembly.
func classifyCapture(runErr, finalizeErr error, hasScreenshot bool) CaptureStatus {
	switch {
	case runErr == nil && finalizeErr == nil:
		return StatusSuccess
	case hasScreenshot:
		return StatusFallbackScreenshot
	default:
		return StatusFailed
	}
}

func (m *Manager) newRecordingPage() (playwright.BrowserContext, playwright.Page, error) {
	size := &playwright.Size{Width: m.cfg.Width, Height: m.cfg.Height}
	bctx, err := m.browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport: size,
		RecordVideo: &playwright.RecordVideo{
			Dir:  m.videoDir,
			Size: size,
		},
	})
	if err != nil {
		return nil, nil, err
	}

	page, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		return nil, nil, err
	}
	return bctx, page, nil
}

// finalizeVideo closes page then context to flush the recording, then
// copies the segment into place under the video tier timeout. A segment
// that cannot be flushed, or flushes to zero bytes, is an error so that
// a beat is never marked Success with an empty artifact behind it.
func (m *Manager) finalizeVideo(page playwright.Page, bctx playwright.BrowserContext, beatID string) (string, error) {
	video := page.Video()

	if err := page.Close(); err != nil {
		_ = bctx.Close()
		return "", fmt.Errorf("close page: %w", err)
	}
	if err := bctx.Close(); err != nil {
		return "", fmt.Errorf("close context: %w", err)
	}

	if video == nil {
		return "", fmt.Errorf("no video recorded")
	}

	dst := filepath.Join(m.videoDir, beatID+".webm")
	done := make(chan error, 1)
	go func() { done <- video.SaveAs(dst) }()

	select {
	case err := <-done:
		if err != nil {
			return "", fmt.Errorf("save video: %w", err)
		}
	case <-time.After(m.cfg.VideoTimeout):
		return "", fmt.Errorf("video finalization timed out after %v", m.cfg.VideoTimeout)
	}

	fi, err := os.Stat(dst)
	if err != nil {
		return "", fmt.Errorf("stat segment: %w", err)
	}
	if fi.Size() == 0 {
		return "", fmt.Errorf("segment %s is empty", filepath.Base(dst))
	}

	return dst, nil
}

func startsWithNavigate(beat timeline.Beat) bool {
	return len(beat.Actions) > 0 && beat.Actions[0].Op == timeline.OpNavigate
}
